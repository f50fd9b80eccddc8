// Command close_events reports close events recorded by the reconciliation
// monitor that downstream logic has not consumed yet. With -ack the printed
// events are marked processed; with -export they are additionally written to
// a CSV file for offline analysis.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"exitSentry/internal/adapters/logger"
	"exitSentry/internal/adapters/sqlite"
	"exitSentry/internal/utils"
)

func main() {
	var (
		dbPath     = flag.String("db", "./data/trading.db", "path to the sqlite database")
		limit      = flag.Int("limit", 100, "maximum number of events to fetch")
		ack        = flag.Bool("ack", false, "mark the printed events as processed")
		exportPath = flag.String("export", "", "write the events to this CSV file")
	)
	flag.Parse()

	appLogger := logger.New("close_events", logger.ParseLevel("warn"))
	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: *dbPath, Logger: appLogger})
	if err != nil {
		log.Fatalf("Error opening database %s: %v", *dbPath, err)
	}
	defer repo.Close()

	ctx := context.Background()
	events, err := repo.ListUnprocessedCloseEvents(ctx, *limit)
	if err != nil {
		log.Fatalf("Error listing close events: %v", err)
	}
	if len(events) == 0 {
		log.Println("No unprocessed close events.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "Time\tSymbol\tSide\tReason\tEntry\tClose\tQty\tPnL\tPnL%\t")
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%.2f\t%.4f\t%.2f\t%.2f\t\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"),
			e.Symbol,
			e.Side,
			e.CloseReason,
			e.EntryPrice,
			e.ClosePrice,
			e.Quantity,
			e.PNL,
			e.PNLPercent,
		)
	}
	w.Flush()

	if *exportPath != "" {
		if err := utils.WriteCloseEventsToCSV(events, *exportPath); err != nil {
			log.Fatalf("Error exporting to %s: %v", *exportPath, err)
		}
		log.Printf("Exported %d events to %s", len(events), *exportPath)
	}

	if *ack {
		for _, e := range events {
			if err := repo.MarkCloseEventProcessed(ctx, e.ID); err != nil {
				log.Fatalf("Error marking event %d processed: %v", e.ID, err)
			}
		}
		log.Printf("Marked %d events processed", len(events))
	}
}
