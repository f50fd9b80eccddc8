package app

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"exitSentry/internal/domain"
	"exitSentry/internal/normalize"
)

// confirmTrigger searches recent trade history for a fill matching the given
// disappeared order. Returns nil when no trade confirms the trigger; the
// caller then resolves the disappearance as an external cancellation.
//
// A trade confirms when all of the following hold:
//   - it executed after the order was created,
//   - it executed within the recency window of now (stale history from before
//     an order recreation must not confirm; the cost is a false negative when
//     detection is delayed past the window),
//   - its direction closes the position (long closed by a sell, short by a buy),
//   - its price satisfies the directional trigger condition for the order kind.
//
// The trade list is newest first, and the first match wins.
func (m *Monitor) confirmTrigger(ctx context.Context, order *domain.ConditionalOrder) (*domain.TradeRecord, error) {
	spec := m.exchange.NormalizeSymbol(order.Symbol)
	payloads, err := m.exchange.ListRecentTrades(ctx, spec.Contract, m.cfg.TradeBatchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent trades for %s: %w", spec.Contract, err)
	}

	now := m.now()
	triggerPrice := decimal.NewFromFloat(order.TriggerPrice)

	for _, payload := range payloads {
		trade, err := normalize.TradeRecord(payload)
		if err != nil {
			m.logger.Debug(ctx, "Skipping unrecognizable trade payload", map[string]interface{}{"symbol": order.Symbol, "error": err.Error()})
			continue
		}

		tradeTime := trade.Time()

		// A trade cannot retroactively confirm an order created after it.
		if !tradeTime.After(order.CreatedAt) {
			continue
		}

		// Only trades within the recency window count; older history is
		// assumed to belong to a previous incarnation of this order.
		if now.Sub(tradeTime) > m.window {
			m.logger.Debug(ctx, "Skipping stale trade outside recency window", map[string]interface{}{
				"tradeID":   trade.ID,
				"tradeTime": tradeTime.UTC().Format("2006-01-02T15:04:05Z07:00"),
				"ageMin":    int(now.Sub(tradeTime).Minutes()),
			})
			continue
		}

		// Closing direction is opposite the position side.
		isCloseTrade := (order.Side == domain.Long && trade.Size.IsNegative()) ||
			(order.Side == domain.Short && trade.Size.IsPositive())
		if !isCloseTrade {
			continue
		}

		if matchesTriggerCondition(order, trade.Price, triggerPrice) {
			m.logger.Debug(ctx, "Found confirming close trade", map[string]interface{}{
				"tradeID": trade.ID,
				"price":   trade.Price.String(),
			})
			return trade, nil
		}
	}

	return nil, nil
}

// matchesTriggerCondition checks the directional price condition: a stop loss
// on a long fires at or below the trigger price and on a short at or above;
// a take profit is the mirror.
func matchesTriggerCondition(order *domain.ConditionalOrder, tradePrice, triggerPrice decimal.Decimal) bool {
	if order.Kind == domain.StopLoss {
		if order.Side == domain.Long {
			return tradePrice.LessThanOrEqual(triggerPrice)
		}
		return tradePrice.GreaterThanOrEqual(triggerPrice)
	}
	if order.Side == domain.Long {
		return tradePrice.GreaterThanOrEqual(triggerPrice)
	}
	return tradePrice.LessThanOrEqual(triggerPrice)
}
