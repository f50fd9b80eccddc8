package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"exitSentry/config"
	"exitSentry/internal/domain"
	"exitSentry/internal/ports"
)

const (
	// Delay before the first reconciliation pass, so orders created moments
	// before startup are not evaluated as "missing" while the exchange is
	// still propagating them.
	initialGraceDelay = 5 * time.Minute

	// Lookback interval for matching trade history against a disappeared
	// order. Trades older than this never confirm a trigger, which keeps
	// stale history from re-surfacing after order recreation.
	recencyWindow = 5 * time.Minute
)

// Monitor is the scheduled driver of the exit reconciliation cycle. It diffs
// locally tracked conditional orders against the exchange's open order set,
// confirms disappearances against trade history, and updates order, position
// and ledger state accordingly.
type Monitor struct {
	cfg       *config.Config
	logger    ports.Logger
	exchange  ports.ExchangeClient
	orderRepo ports.ConditionalOrderRepository
	posRepo   ports.PositionRepository
	ledger    ports.LedgerRepository

	graceDelay time.Duration
	window     time.Duration
	now        func() time.Time

	// Lifecycle state
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	// In-flight guard: at most one reconciliation pass at a time. A timer
	// firing mid-pass is skipped entirely, no queueing or catch-up.
	passMu   sync.Mutex
	inFlight bool
}

// NewMonitor creates a new reconciliation monitor.
func NewMonitor(
	cfg *config.Config,
	logger ports.Logger,
	exchange ports.ExchangeClient,
	orderRepo ports.ConditionalOrderRepository,
	posRepo ports.PositionRepository,
	ledger ports.LedgerRepository,
) (*Monitor, error) {
	if cfg == nil || logger == nil || exchange == nil || orderRepo == nil || posRepo == nil || ledger == nil {
		return nil, fmt.Errorf("missing required dependencies for Monitor")
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("configuration PollInterval must be positive")
	}
	if cfg.TradeBatchLimit <= 0 {
		return nil, fmt.Errorf("configuration TradeBatchLimit must be positive")
	}

	return &Monitor{
		cfg:        cfg,
		logger:     logger,
		exchange:   exchange,
		orderRepo:  orderRepo,
		posRepo:    posRepo,
		ledger:     ledger,
		graceDelay: initialGraceDelay,
		window:     recencyWindow,
		now:        time.Now,
	}, nil
}

// Start begins periodic reconciliation. Calling Start while the monitor is
// already running logs a warning and does nothing.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx := context.Background()
	if m.running {
		m.logger.Warn(ctx, "Reconciliation monitor is already running")
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})

	m.logger.Info(ctx, "Starting reconciliation monitor", map[string]interface{}{
		"pollInterval": m.cfg.PollInterval.String(),
		"graceDelay":   m.graceDelay.String(),
	})

	go m.run(m.stopCh, m.doneCh)
}

// Stop halts periodic reconciliation and waits for an in-progress pass to
// drain. Stopping a monitor that is not running is a no-op.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	stopCh, doneCh := m.stopCh, m.doneCh
	m.mu.Unlock()

	close(stopCh)
	<-doneCh
	m.logger.Info(context.Background(), "Reconciliation monitor stopped")
}

// run is the scheduler goroutine: an initial grace delay, then a fixed-cadence
// ticker until stopped. There is no cancellation of an in-progress pass; Stop
// waits for the current pass to finish.
func (m *Monitor) run(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)
	ctx := context.Background()

	grace := time.NewTimer(m.graceDelay)
	select {
	case <-stopCh:
		grace.Stop()
		return
	case <-grace.C:
	}
	m.RunPass(ctx)

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			m.RunPass(ctx)
		}
	}
}

// RunPass executes a single reconciliation pass. If another pass is still in
// flight the call is skipped entirely. No error escapes: every failure is
// surfaced via logging and resolved by a later pass.
func (m *Monitor) RunPass(ctx context.Context) {
	m.passMu.Lock()
	if m.inFlight {
		m.passMu.Unlock()
		m.logger.Debug(ctx, "Previous reconciliation pass still running, skipping this cycle")
		return
	}
	m.inFlight = true
	m.passMu.Unlock()
	defer func() {
		m.passMu.Lock()
		m.inFlight = false
		m.passMu.Unlock()
	}()

	passID := uuid.NewString()

	// 1. Active orders tracked locally. Nothing active means nothing to do.
	active, err := m.orderRepo.ListActive(ctx)
	if err != nil {
		m.logger.Error(ctx, err, "Failed to list active conditional orders", map[string]interface{}{"passID": passID})
		return
	}
	if len(active) == 0 {
		m.logger.Debug(ctx, "No active conditional orders to reconcile", map[string]interface{}{"passID": passID})
		return
	}
	m.logger.Debug(ctx, "Reconciling active conditional orders", map[string]interface{}{"passID": passID, "count": len(active)})

	// 2. Open conditional orders on the exchange. An empty set while local
	// active orders exist is indistinguishable from a failed call, so the
	// pass aborts without mutating anything rather than treating every
	// order as filled.
	open, err := m.exchange.ListOpenConditionalOrders(ctx)
	if err != nil {
		m.logger.Error(ctx, err, "Failed to list open conditional orders from exchange", map[string]interface{}{"passID": passID})
		return
	}
	if len(open) == 0 {
		m.logger.Warn(ctx, "Exchange returned no open conditional orders while local active orders exist, skipping pass (possible API error)", map[string]interface{}{"passID": passID, "localActive": len(active)})
		return
	}

	openSet := make(map[string]struct{}, len(open))
	for _, ref := range open {
		openSet[ref.OrderID] = struct{}{}
	}

	// 3. Every local order absent from the exchange is a trigger candidate.
	// Candidates are processed independently; one failing does not abort
	// the others.
	for _, order := range active {
		if _, stillOpen := openSet[order.OrderID]; stillOpen {
			continue
		}
		if err := m.handleMissingOrder(ctx, passID, order); err != nil {
			m.logger.Error(ctx, err, "Failed to process trigger candidate", map[string]interface{}{
				"passID":  passID,
				"orderID": order.OrderID,
				"symbol":  order.Symbol,
				"kind":    order.Kind,
			})
		}
	}
}

// handleMissingOrder resolves a single candidate: a locally active order that
// is no longer open on the exchange. Confirmed triggers flow through status
// transition, sibling cancellation, close recording and position removal;
// unconfirmed disappearances are resolved as external cancellations.
func (m *Monitor) handleMissingOrder(ctx context.Context, passID string, order *domain.ConditionalOrder) error {
	fields := map[string]interface{}{
		"passID":  passID,
		"orderID": order.OrderID,
		"symbol":  order.Symbol,
		"side":    order.Side,
		"kind":    order.Kind,
	}
	m.logger.Info(ctx, "Conditional order missing from exchange, checking for trigger", fields)

	// 1. Confirm against trade history. No confirming trade means the order
	// disappeared without filling: resolved as an external cancellation,
	// nothing else is touched.
	trade, err := m.confirmTrigger(ctx, order)
	if err != nil {
		return fmt.Errorf("trade history lookup for order %s failed: %w", order.OrderID, err)
	}
	if trade == nil {
		if err := m.orderRepo.UpdateStatus(ctx, order.OrderID, domain.StatusCancelled); err != nil {
			return fmt.Errorf("failed to mark order %s cancelled: %w", order.OrderID, err)
		}
		m.logger.Info(ctx, "No confirming close trade found, order marked cancelled", fields)
		return nil
	}

	m.logger.Info(ctx, "Conditional order trigger confirmed", map[string]interface{}{
		"passID":     passID,
		"orderID":    order.OrderID,
		"symbol":     order.Symbol,
		"kind":       order.Kind,
		"closePrice": trade.Price.String(),
		"tradeID":    trade.ID,
	})

	// 2. Transition the triggered order.
	if err := m.orderRepo.UpdateStatus(ctx, order.OrderID, domain.StatusTriggered); err != nil {
		return fmt.Errorf("failed to mark order %s triggered: %w", order.OrderID, err)
	}

	// 3. Tear down the unused sibling order.
	if err := m.cancelOppositeOrder(ctx, passID, order); err != nil {
		return err
	}

	// 4. Position lookup for PnL inputs. A missing position means PnL cannot
	// be computed: the event is skipped, but the transitions above are not
	// rolled back.
	position, err := m.posRepo.FindBySymbolAndSide(ctx, order.Symbol, order.Side)
	if err != nil {
		return fmt.Errorf("failed to look up position for %s %s: %w", order.Symbol, order.Side, err)
	}
	if position == nil {
		m.logger.Warn(ctx, "No position found for triggered order, close event skipped", fields)
		return nil
	}

	// 5. Record the close, then drop the position.
	if err := m.recordClose(ctx, order, trade, position); err != nil {
		return err
	}
	if err := m.posRepo.DeletePosition(ctx, order.Symbol, order.Side); err != nil {
		return fmt.Errorf("failed to delete position for %s %s: %w", order.Symbol, order.Side, err)
	}

	m.logger.Info(ctx, "Trigger processing complete", fields)
	return nil
}

// cancelOppositeOrder tears down the sibling conditional order (the other kind
// for the same symbol/side) after a trigger. The exchange-side cancel is best
// effort: the order may already be gone, so a failure there is logged and
// swallowed. The local record is marked cancelled unconditionally.
func (m *Monitor) cancelOppositeOrder(ctx context.Context, passID string, triggered *domain.ConditionalOrder) error {
	oppositeKind := triggered.Kind.Opposite()

	opposite, err := m.orderRepo.FindActiveByKind(ctx, triggered.Symbol, triggered.Side, oppositeKind)
	if err != nil {
		return fmt.Errorf("failed to look up opposite %s order for %s %s: %w", oppositeKind, triggered.Symbol, triggered.Side, err)
	}
	if opposite == nil {
		m.logger.Debug(ctx, "No active opposite order to cancel", map[string]interface{}{"passID": passID, "symbol": triggered.Symbol, "kind": oppositeKind})
		return nil
	}

	spec := m.exchange.NormalizeSymbol(triggered.Symbol)
	if err := m.exchange.CancelOrder(ctx, spec.Contract, opposite.OrderID); err != nil {
		m.logger.Warn(ctx, "Exchange-side cancel of opposite order failed (may already be gone)", map[string]interface{}{
			"passID":  passID,
			"orderID": opposite.OrderID,
			"error":   err.Error(),
		})
	}

	if err := m.orderRepo.UpdateStatus(ctx, opposite.OrderID, domain.StatusCancelled); err != nil {
		return fmt.Errorf("failed to mark opposite order %s cancelled: %w", opposite.OrderID, err)
	}
	m.logger.Info(ctx, "Opposite conditional order cancelled", map[string]interface{}{"passID": passID, "orderID": opposite.OrderID, "kind": oppositeKind})
	return nil
}
