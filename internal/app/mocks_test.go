package app

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"exitSentry/internal/domain"
	"exitSentry/internal/ports"
)

// Mock implementations of the ports consumed by the monitor.

type mockLogger struct {
	mu        sync.Mutex
	debugMsgs []string
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debugMsgs = append(m.debugMsgs, msg)
}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnMsgs = append(m.warnMsgs, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorMsgs = append(m.errorMsgs, msg)
}

func (m *mockLogger) warnCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.warnMsgs)
}

type mockExchange struct {
	openOrders []ports.OpenOrderRef
	openErr    error
	// openOrdersGate, when non-nil, blocks ListOpenConditionalOrders until the
	// channel is closed; openOrdersEntered is closed once the blocked call has
	// started. Used by overlap tests.
	openOrdersGate    chan struct{}
	openOrdersEntered chan struct{}
	openCalls         int

	trades    []json.RawMessage
	tradesErr error

	cancelErr error
	cancelled []string
}

func (m *mockExchange) ListOpenConditionalOrders(ctx context.Context) ([]ports.OpenOrderRef, error) {
	m.openCalls++
	if m.openOrdersGate != nil {
		if m.openOrdersEntered != nil {
			close(m.openOrdersEntered)
		}
		<-m.openOrdersGate
	}
	return m.openOrders, m.openErr
}

func (m *mockExchange) ListRecentTrades(ctx context.Context, contract string, limit int) ([]json.RawMessage, error) {
	return m.trades, m.tradesErr
}

func (m *mockExchange) CancelOrder(ctx context.Context, contract string, orderID string) error {
	m.cancelled = append(m.cancelled, orderID)
	return m.cancelErr
}

func (m *mockExchange) ContractPnl(entry, exit, quantity float64, side domain.PositionSide, spec *ports.ContractSpec) float64 {
	delta := exit - entry
	if side == domain.Short {
		delta = entry - exit
	}
	return delta * quantity
}

func (m *mockExchange) NormalizeSymbol(symbol string) *ports.ContractSpec {
	return &ports.ContractSpec{
		Symbol:           symbol,
		Contract:         strings.ToUpper(symbol) + "USDT",
		QuantoMultiplier: 1.0,
	}
}

type mockOrderRepo struct {
	mu        sync.Mutex
	orders    map[string]*domain.ConditionalOrder
	listErr   error
	updateErr map[string]error // per order ID

	listCalls     int
	statusUpdates []string // "<orderID>:<status>" in call order
}

func newMockOrderRepo(orders ...*domain.ConditionalOrder) *mockOrderRepo {
	repo := &mockOrderRepo{
		orders:    make(map[string]*domain.ConditionalOrder),
		updateErr: make(map[string]error),
	}
	for _, o := range orders {
		repo.orders[o.OrderID] = o
	}
	return repo
}

func (m *mockOrderRepo) CreateOrder(ctx context.Context, order *domain.ConditionalOrder) (int64, error) {
	m.orders[order.OrderID] = order
	return int64(len(m.orders)), nil
}

func (m *mockOrderRepo) activeListCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}

func (m *mockOrderRepo) ListActive(ctx context.Context) ([]*domain.ConditionalOrder, error) {
	m.mu.Lock()
	m.listCalls++
	m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	active := make([]*domain.ConditionalOrder, 0)
	for _, o := range m.orders {
		if o.Status == domain.StatusActive {
			active = append(active, o)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].Symbol != active[j].Symbol {
			return active[i].Symbol < active[j].Symbol
		}
		return active[i].CreatedAt.After(active[j].CreatedAt)
	})
	return active, nil
}

func (m *mockOrderRepo) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	if err := m.updateErr[orderID]; err != nil {
		return err
	}
	order, ok := m.orders[orderID]
	if !ok {
		return ports.ErrNotFound
	}
	if order.Status != domain.StatusActive {
		return nil // terminal, no-op
	}
	order.Status = status
	m.statusUpdates = append(m.statusUpdates, orderID+":"+string(status))
	return nil
}

func (m *mockOrderRepo) FindActiveByKind(ctx context.Context, symbol string, side domain.PositionSide, kind domain.OrderKind) (*domain.ConditionalOrder, error) {
	for _, o := range m.orders {
		if o.Symbol == symbol && o.Side == side && o.Kind == kind && o.Status == domain.StatusActive {
			return o, nil
		}
	}
	return nil, nil
}

type mockPositionRepo struct {
	positions map[string]*domain.Position
	findErr   error
	deleteErr error
	deleted   []string
}

func posKey(symbol string, side domain.PositionSide) string {
	return symbol + "/" + string(side)
}

func newMockPositionRepo(positions ...*domain.Position) *mockPositionRepo {
	repo := &mockPositionRepo{positions: make(map[string]*domain.Position)}
	for _, p := range positions {
		repo.positions[posKey(p.Symbol, p.Side)] = p
	}
	return repo
}

func (m *mockPositionRepo) CreatePosition(ctx context.Context, pos *domain.Position) (int64, error) {
	m.positions[posKey(pos.Symbol, pos.Side)] = pos
	return int64(len(m.positions)), nil
}

func (m *mockPositionRepo) FindBySymbolAndSide(ctx context.Context, symbol string, side domain.PositionSide) (*domain.Position, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.positions[posKey(symbol, side)], nil
}

func (m *mockPositionRepo) DeletePosition(ctx context.Context, symbol string, side domain.PositionSide) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.positions, posKey(symbol, side))
	m.deleted = append(m.deleted, posKey(symbol, side))
	return nil
}

type mockLedger struct {
	trades []*domain.LedgerEntry
	events []*domain.CloseEvent

	createTradeErr error
	createEventErr error
}

func (m *mockLedger) CreateTrade(ctx context.Context, entry *domain.LedgerEntry) (int64, error) {
	if m.createTradeErr != nil {
		return 0, m.createTradeErr
	}
	m.trades = append(m.trades, entry)
	return int64(len(m.trades)), nil
}

func (m *mockLedger) CreateCloseEvent(ctx context.Context, event *domain.CloseEvent) (int64, error) {
	if m.createEventErr != nil {
		return 0, m.createEventErr
	}
	m.events = append(m.events, event)
	return int64(len(m.events)), nil
}

func (m *mockLedger) ListUnprocessedCloseEvents(ctx context.Context, limit int) ([]*domain.CloseEvent, error) {
	unprocessed := make([]*domain.CloseEvent, 0)
	for _, e := range m.events {
		if !e.Processed {
			unprocessed = append(unprocessed, e)
		}
	}
	return unprocessed, nil
}

func (m *mockLedger) MarkCloseEventProcessed(ctx context.Context, id int64) error {
	for i, e := range m.events {
		if int64(i+1) == id {
			e.Processed = true
			return nil
		}
	}
	return ports.ErrNotFound
}
