package domain

import "time"

// ConditionalOrder represents a pending exit instruction (stop-loss or take-profit)
// resting on the exchange. Rows are created by the order-placement logic and
// mutated only by the reconciliation monitor; they are never deleted so that the
// full order history remains available as an audit trail.
type ConditionalOrder struct {
	ID           int64        // Local database identifier
	OrderID      string       // Exchange-assigned order identifier (unique)
	Symbol       string       // Trading symbol (e.g., "BTC")
	Side         PositionSide // Side of the position this order protects
	Kind         OrderKind    // stop_loss or take_profit
	TriggerPrice float64      // Price level that arms the order
	OrderPrice   float64      // Execution price submitted with the order
	Quantity     float64      // Contract quantity
	Status       OrderStatus  // active, triggered or cancelled
	CreatedAt    time.Time    // When the order was placed
	UpdatedAt    time.Time    // Last status transition (zero value if untouched)
	TriggeredAt  time.Time    // Set iff status is triggered (zero value otherwise)
}

// IsActive reports whether the order is still awaiting its trigger condition.
func (o *ConditionalOrder) IsActive() bool {
	return o.Status == StatusActive
}
