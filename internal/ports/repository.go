package ports

import (
	"context"

	"exitSentry/internal/domain"
)

// ConditionalOrderRepository defines read/write access to persisted conditional
// orders. The reconciliation monitor is the sole writer of order status.
type ConditionalOrderRepository interface {
	// CreateOrder saves a new conditional order and returns its assigned ID.
	CreateOrder(ctx context.Context, order *domain.ConditionalOrder) (int64, error)
	// ListActive retrieves all active orders ordered by symbol, then creation
	// time descending (most recent first, so newer orders win ambiguous matches).
	ListActive(ctx context.Context) ([]*domain.ConditionalOrder, error)
	// UpdateStatus transitions an order identified by its exchange order ID.
	// triggered_at is set when (and only when) the new status is triggered.
	// Setting the same status twice is a no-op.
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) error
	// FindActiveByKind retrieves the active order of the given kind for a
	// (symbol, side) pair, if any. Returns nil, nil when not found.
	FindActiveByKind(ctx context.Context, symbol string, side domain.PositionSide, kind domain.OrderKind) (*domain.ConditionalOrder, error)
}

// PositionRepository defines access to locally tracked open positions.
type PositionRepository interface {
	// CreatePosition saves a new position and returns its assigned ID.
	CreatePosition(ctx context.Context, pos *domain.Position) (int64, error)
	// FindBySymbolAndSide retrieves the open position for a (symbol, side) pair.
	// Returns nil, nil if none is tracked.
	FindBySymbolAndSide(ctx context.Context, symbol string, side domain.PositionSide) (*domain.Position, error)
	// DeletePosition removes the position for a (symbol, side) pair. Deleting a
	// position that does not exist is a no-op.
	DeletePosition(ctx context.Context, symbol string, side domain.PositionSide) error
}

// LedgerRepository defines write access to the trade ledger and the close-event
// stream consumed by downstream decision logic.
type LedgerRepository interface {
	// CreateTrade inserts a ledger row for a confirmed closing fill.
	CreateTrade(ctx context.Context, entry *domain.LedgerEntry) (int64, error)
	// CreateCloseEvent inserts a close event with processed=false.
	CreateCloseEvent(ctx context.Context, event *domain.CloseEvent) (int64, error)
	// ListUnprocessedCloseEvents returns close events not yet consumed, newest
	// first, up to limit.
	ListUnprocessedCloseEvents(ctx context.Context, limit int) ([]*domain.CloseEvent, error)
	// MarkCloseEventProcessed flips processed to true for a consumed event.
	MarkCloseEventProcessed(ctx context.Context, id int64) error
}
