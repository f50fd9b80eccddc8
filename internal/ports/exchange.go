package ports

import (
	"context"
	"encoding/json"

	"exitSentry/internal/domain"
)

// OpenOrderRef identifies a conditional order currently resting on the exchange.
// Only the identifier matters to the reconciliation diff; the rest of the venue
// payload is not needed.
type OpenOrderRef struct {
	OrderID string
}

// ContractSpec describes the venue contract a symbol trades as. The quanto
// multiplier converts contract quantity into underlying size for PnL math
// (1.0 for linear USDT-margined contracts).
type ContractSpec struct {
	Symbol           string // Local symbol (e.g., "BTC")
	Contract         string // Venue contract name (e.g., "BTCUSDT")
	QuantoMultiplier float64
}

// ExchangeClient is the capability consumed from the exchange boundary.
// Order placement, authentication and transport concerns live behind this
// interface; the reconciliation core only observes and cancels.
type ExchangeClient interface {
	// ListOpenConditionalOrders returns the conditional orders currently open on
	// the exchange. A legitimately empty book returns an empty slice; callers
	// that hold local active orders must treat an empty result as a transport
	// failure signal rather than "everything filled".
	ListOpenConditionalOrders(ctx context.Context) ([]OpenOrderRef, error)

	// ListRecentTrades returns the most recent account trades for a contract,
	// newest first, in the venue-native JSON shape. Normalization into
	// domain.TradeRecord happens at the caller's boundary.
	ListRecentTrades(ctx context.Context, contract string, limit int) ([]json.RawMessage, error)

	// CancelOrder cancels a resting order by its exchange identifier. The
	// contract is required because some venues scope order identifiers per
	// contract. Returns ErrOrderNotFound (wrapped) when the order is already
	// gone, which callers tolerate.
	CancelOrder(ctx context.Context, contract string, orderID string) error

	// ContractPnl computes the realized PnL for closing quantity contracts
	// opened at entry and closed at exit on the given side.
	ContractPnl(entry, exit, quantity float64, side domain.PositionSide, spec *ContractSpec) float64

	// NormalizeSymbol resolves a local symbol into its venue contract spec.
	NormalizeSymbol(symbol string) *ContractSpec
}
