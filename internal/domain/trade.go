package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeRecord is the canonical shape of an executed trade after normalization
// from a venue-native payload. It exists only in memory; what gets persisted is
// a LedgerEntry derived from it after PnL computation.
//
// Size is signed: a sell is negative, a buy positive. A long position is closed
// by a sell and a short by a buy, which is how the trigger detector recognises
// closing trades.
type TradeRecord struct {
	ID        string          // Venue trade identifier
	Price     decimal.Decimal // Execution price
	Size      decimal.Decimal // Signed quantity
	Fee       decimal.Decimal // Fee charged by the venue
	Timestamp int64           // Execution time, epoch milliseconds
}

// Time returns the execution time as a time.Time.
func (t *TradeRecord) Time() time.Time {
	return time.UnixMilli(t.Timestamp)
}

// IsSell reports whether the trade reduced exposure on the buy side.
func (t *TradeRecord) IsSell() bool {
	return t.Size.IsNegative()
}

// LedgerEntry is a persisted row in the trade ledger, written once per
// confirmed position close.
type LedgerEntry struct {
	ID        int64        // Local database identifier
	TradeID   string       // Venue trade identifier of the closing fill
	Symbol    string       // Trading symbol
	Side      PositionSide // Side of the position that was closed
	Type      string       // Always "close" for entries written here
	Price     float64      // Fill price
	Quantity  float64      // Absolute filled quantity
	Leverage  int          // Leverage of the closed position
	PNL       float64      // Realized profit or loss
	Fee       float64      // Venue fee
	Timestamp time.Time    // Fill time
	Status    string       // Always "filled" for entries written here
}

// CloseEvent is an immutable fact recorded for downstream decision logic once a
// conditional order has been confirmed as triggered. Processed starts false and
// is flipped only by the downstream consumer, never by the recorder.
type CloseEvent struct {
	ID             int64
	Symbol         string
	Side           PositionSide
	CloseReason    CloseReason
	TriggerPrice   float64
	ClosePrice     float64
	EntryPrice     float64
	Quantity       float64
	PNL            float64
	PNLPercent     float64
	TriggerOrderID string
	CloseTradeID   string
	CreatedAt      time.Time
	Processed      bool
}
