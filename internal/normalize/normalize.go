// Package normalize maps venue-native trade payloads into the canonical
// domain.TradeRecord shape. Venues disagree on field names (Binance reports
// "qty"/"commission"/"time", Gate reports "size"/"fee"/"create_time"), so the
// mapping is resolved once here, at the boundary, instead of being re-inspected
// at every call site.
package normalize

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"exitSentry/internal/domain"
)

// Alternative field names probed per canonical field, in priority order.
var (
	idKeys    = []string{"id", "orderId", "tradeId"}
	priceKeys = []string{"price", "avgPrice", "deal_price"}
	sizeKeys  = []string{"size", "qty", "amount"}
	feeKeys   = []string{"fee", "commission", "fee_amount"}
	timeKeys  = []string{"timestamp", "time", "create_time"}
)

func firstField(payload []byte, keys []string) gjson.Result {
	for _, k := range keys {
		if r := gjson.GetBytes(payload, k); r.Exists() {
			return r
		}
	}
	return gjson.Result{}
}

// TradeRecord extracts a canonical trade record from a venue-native JSON
// payload. Venues that report an unsigned quantity alongside a side field
// (Binance) have the sign derived from the side: a sell becomes negative.
// Venues that report a signed size (Gate) keep it as-is.
func TradeRecord(payload []byte) (*domain.TradeRecord, error) {
	if !gjson.ValidBytes(payload) {
		return nil, fmt.Errorf("trade payload is not valid JSON")
	}

	id := firstField(payload, idKeys)
	if !id.Exists() || id.String() == "" {
		return nil, fmt.Errorf("trade payload has no recognizable id field")
	}

	priceRaw := firstField(payload, priceKeys)
	if !priceRaw.Exists() {
		return nil, fmt.Errorf("trade %s has no recognizable price field", id.String())
	}
	price, err := decimal.NewFromString(priceRaw.String())
	if err != nil {
		return nil, fmt.Errorf("trade %s has unparseable price %q: %w", id.String(), priceRaw.String(), err)
	}

	sizeRaw := firstField(payload, sizeKeys)
	if !sizeRaw.Exists() {
		return nil, fmt.Errorf("trade %s has no recognizable size field", id.String())
	}
	size, err := decimal.NewFromString(sizeRaw.String())
	if err != nil {
		return nil, fmt.Errorf("trade %s has unparseable size %q: %w", id.String(), sizeRaw.String(), err)
	}

	// Binance reports quantity unsigned and carries the direction in "side".
	// Only apply it when the payload has no signed "size" of its own.
	if !gjson.GetBytes(payload, "size").Exists() {
		if side := gjson.GetBytes(payload, "side"); side.Exists() {
			if strings.EqualFold(side.String(), "SELL") && size.IsPositive() {
				size = size.Neg()
			}
		}
	}

	fee := decimal.Zero
	if feeRaw := firstField(payload, feeKeys); feeRaw.Exists() {
		fee, err = decimal.NewFromString(feeRaw.String())
		if err != nil {
			return nil, fmt.Errorf("trade %s has unparseable fee %q: %w", id.String(), feeRaw.String(), err)
		}
	}

	ts := firstField(payload, timeKeys)
	if !ts.Exists() {
		return nil, fmt.Errorf("trade %s has no recognizable timestamp field", id.String())
	}

	return &domain.TradeRecord{
		ID:        id.String(),
		Price:     price,
		Size:      size,
		Fee:       fee,
		Timestamp: ts.Int(),
	}, nil
}
