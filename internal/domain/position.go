package domain

// Position is the local record of an open exchange position believed to exist.
// At most one position exists per (symbol, side). Created by the order-placement
// logic; read by the close recorder for PnL inputs; deleted by the reconciliation
// monitor immediately after a confirmed close has been recorded.
type Position struct {
	ID         int64        // Local database identifier
	Symbol     string       // Trading symbol (e.g., "BTC")
	Side       PositionSide // long or short
	EntryPrice float64      // Average entry price
	Quantity   float64      // Contract quantity
	Leverage   int          // Leverage applied at entry

	// Fraction of the position already closed by partial take-profit logic
	// (written elsewhere, preserved by reads here).
	PartialClosePercent float64
}
