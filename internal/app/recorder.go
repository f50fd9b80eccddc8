package app

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"exitSentry/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// recordClose computes the realized PnL of a confirmed trigger and persists
// the closing fill in the trade ledger plus a close event for downstream
// decision logic. The two writes are sequential, not transactional: a ledger
// failure aborts before the event is written and the candidate is abandoned
// for this pass.
func (m *Monitor) recordClose(ctx context.Context, order *domain.ConditionalOrder, trade *domain.TradeRecord, position *domain.Position) error {
	entry := decimal.NewFromFloat(position.EntryPrice)
	if entry.IsZero() {
		return fmt.Errorf("position %s %s has zero entry price, cannot compute PnL", position.Symbol, position.Side)
	}

	exit := trade.Price
	quantity := trade.Size.Abs()

	spec := m.exchange.NormalizeSymbol(order.Symbol)
	pnl := m.exchange.ContractPnl(position.EntryPrice, exit.InexactFloat64(), quantity.InexactFloat64(), order.Side, spec)

	// Percentage return on margin: price change relative to entry, scaled by
	// leverage. The delta is inverted for shorts.
	priceChange := exit.Sub(entry).Div(entry)
	if order.Side == domain.Short {
		priceChange = entry.Sub(exit).Div(entry)
	}
	pnlPercent := priceChange.Mul(hundred).Mul(decimal.NewFromInt(int64(position.Leverage)))

	ledgerEntry := &domain.LedgerEntry{
		TradeID:   trade.ID,
		Symbol:    order.Symbol,
		Side:      order.Side,
		Type:      "close",
		Price:     exit.InexactFloat64(),
		Quantity:  quantity.InexactFloat64(),
		Leverage:  position.Leverage,
		PNL:       pnl,
		Fee:       trade.Fee.InexactFloat64(),
		Timestamp: trade.Time().UTC(),
		Status:    "filled",
	}
	if _, err := m.ledger.CreateTrade(ctx, ledgerEntry); err != nil {
		return fmt.Errorf("failed to insert trade ledger row for %s: %w", order.Symbol, err)
	}

	event := &domain.CloseEvent{
		Symbol:         order.Symbol,
		Side:           order.Side,
		CloseReason:    domain.CloseReasonFor(order.Kind),
		TriggerPrice:   order.TriggerPrice,
		ClosePrice:     exit.InexactFloat64(),
		EntryPrice:     position.EntryPrice,
		Quantity:       quantity.InexactFloat64(),
		PNL:            pnl,
		PNLPercent:     pnlPercent.InexactFloat64(),
		TriggerOrderID: order.OrderID,
		CloseTradeID:   trade.ID,
		CreatedAt:      m.now().UTC(),
	}
	if _, err := m.ledger.CreateCloseEvent(ctx, event); err != nil {
		return fmt.Errorf("failed to insert close event for %s: %w", order.Symbol, err)
	}

	m.logger.Info(ctx, "Close recorded", map[string]interface{}{
		"symbol":     order.Symbol,
		"side":       order.Side,
		"reason":     event.CloseReason,
		"pnl":        fmt.Sprintf("%.2f", pnl),
		"pnlPercent": fmt.Sprintf("%.2f", event.PNLPercent),
	})
	return nil
}
