package utils

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"exitSentry/internal/domain"
)

// WriteCloseEventsToCSV exports close events for offline analysis in
// spreadsheet tooling.
func WriteCloseEventsToCSV(events []*domain.CloseEvent, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	writer.Write([]string{"created_at", "symbol", "side", "close_reason", "entry_price", "trigger_price", "close_price", "quantity", "pnl", "pnl_percent", "trigger_order_id", "close_trade_id"})

	for _, e := range events {
		writer.Write([]string{
			e.CreatedAt.Format(time.RFC3339),
			e.Symbol,
			string(e.Side),
			string(e.CloseReason),
			strconv.FormatFloat(e.EntryPrice, 'f', -1, 64),
			strconv.FormatFloat(e.TriggerPrice, 'f', -1, 64),
			strconv.FormatFloat(e.ClosePrice, 'f', -1, 64),
			strconv.FormatFloat(e.Quantity, 'f', -1, 64),
			strconv.FormatFloat(e.PNL, 'f', -1, 64),
			strconv.FormatFloat(e.PNLPercent, 'f', -1, 64),
			e.TriggerOrderID,
			e.CloseTradeID,
		})
	}
	return writer.Error()
}
