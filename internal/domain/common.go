package domain

// PositionSide represents the direction of a position (long or short).
type PositionSide string

const (
	Long  PositionSide = "long"
	Short PositionSide = "short"
)

// OrderKind distinguishes the two conditional exit order types.
type OrderKind string

const (
	StopLoss   OrderKind = "stop_loss"
	TakeProfit OrderKind = "take_profit"
)

// Opposite returns the sibling kind (stop_loss <-> take_profit).
func (k OrderKind) Opposite() OrderKind {
	if k == StopLoss {
		return TakeProfit
	}
	return StopLoss
}

// OrderStatus represents the lifecycle state of a conditional order.
// Transitions are active -> triggered or active -> cancelled; both are terminal.
type OrderStatus string

const (
	StatusActive    OrderStatus = "active"
	StatusTriggered OrderStatus = "triggered"
	StatusCancelled OrderStatus = "cancelled"
)

// CloseReason indicates which conditional order closed a position.
type CloseReason string

const (
	CloseReasonStopLoss   CloseReason = "stop_loss_triggered"
	CloseReasonTakeProfit CloseReason = "take_profit_triggered"
)

// CloseReasonFor maps an order kind to the close reason recorded for downstream consumers.
func CloseReasonFor(kind OrderKind) CloseReason {
	if kind == StopLoss {
		return CloseReasonStopLoss
	}
	return CloseReasonTakeProfit
}
