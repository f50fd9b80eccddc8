package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"exitSentry/internal/domain"
	"exitSentry/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements ports.ConditionalOrderRepository, ports.PositionRepository
// and ports.LedgerRepository using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/trading.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Open database connection, WAL mode for better concurrency
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// SQLite handles concurrency internally, but the Go driver benefits from
	// limiting connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Database schema initialized/verified")

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
// NOTE: This is a basic approach. A proper migration tool is recommended for production.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS price_orders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id TEXT NOT NULL UNIQUE,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		type TEXT NOT NULL,
		trigger_price REAL NOT NULL,
		order_price REAL NOT NULL,
		quantity REAL NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP DEFAULT NULL,
		triggered_at TIMESTAMP DEFAULT NULL
	);

	CREATE TABLE IF NOT EXISTS positions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		entry_price REAL NOT NULL,
		quantity REAL NOT NULL,
		leverage INTEGER NOT NULL,
		partial_close_percentage REAL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		type TEXT NOT NULL,
		price REAL NOT NULL,
		quantity REAL NOT NULL,
		leverage INTEGER NOT NULL,
		pnl REAL DEFAULT NULL,
		fee REAL DEFAULT NULL,
		timestamp TIMESTAMP NOT NULL,
		status TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS position_close_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		close_reason TEXT NOT NULL,
		trigger_price REAL NOT NULL,
		close_price REAL NOT NULL,
		entry_price REAL NOT NULL,
		quantity REAL NOT NULL,
		pnl REAL NOT NULL,
		pnl_percent REAL NOT NULL,
		trigger_order_id TEXT NOT NULL,
		close_trade_id TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		processed INTEGER NOT NULL DEFAULT 0
	);

	-- Add indexes for common lookups
	CREATE INDEX IF NOT EXISTS idx_price_orders_symbol ON price_orders (symbol);
	CREATE INDEX IF NOT EXISTS idx_price_orders_status ON price_orders (status);
	CREATE INDEX IF NOT EXISTS idx_price_orders_order_id ON price_orders (order_id);
	CREATE INDEX IF NOT EXISTS idx_positions_symbol_side ON positions (symbol, side);
	CREATE INDEX IF NOT EXISTS idx_close_events_processed ON position_close_events (processed, created_at);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- ConditionalOrderRepository Implementation ---

// CreateOrder saves a new conditional order and returns its assigned ID.
func (r *Repository) CreateOrder(ctx context.Context, order *domain.ConditionalOrder) (int64, error) {
	const query = `
	INSERT INTO price_orders (order_id, symbol, side, type, trigger_price, order_price, quantity, status, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		order.OrderID, order.Symbol, order.Side, order.Kind,
		order.TriggerPrice, order.OrderPrice, order.Quantity, order.Status, order.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert conditional order %s: %w", order.OrderID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for order %s: %w", order.OrderID, err)
	}
	order.ID = id
	r.logger.Debug(ctx, "Conditional order created", map[string]interface{}{"orderID": order.OrderID, "symbol": order.Symbol, "kind": order.Kind})
	return id, nil
}

// ListActive retrieves all active conditional orders ordered by symbol, then
// creation time descending (most recent first).
func (r *Repository) ListActive(ctx context.Context) ([]*domain.ConditionalOrder, error) {
	const query = `
	SELECT id, order_id, symbol, side, type, trigger_price, order_price, quantity, status, created_at, updated_at, triggered_at
	FROM price_orders
	WHERE status = ?
	ORDER BY symbol, created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, domain.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to query active conditional orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*domain.ConditionalOrder, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conditional order during ListActive: %w", err)
		}
		orders = append(orders, order)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conditional order rows: %w", err)
	}
	return orders, nil
}

// UpdateStatus transitions an active order to triggered or cancelled. The
// transition only applies while the order is still active; re-applying a status
// an order already holds is a no-op. An unknown order ID is reported as
// ports.ErrNotFound.
func (r *Repository) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	const query = `
	UPDATE price_orders
	SET status = ?, updated_at = ?, triggered_at = ?
	WHERE order_id = ? AND status = ?`

	now := time.Now().UTC()
	var triggeredAt sql.NullTime
	if status == domain.StatusTriggered {
		triggeredAt = sql.NullTime{Time: now, Valid: true}
	}

	result, err := r.db.ExecContext(ctx, query, status, now, triggeredAt, orderID, domain.StatusActive)
	if err != nil {
		return fmt.Errorf("failed to update status of order %s: %w", orderID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for order %s: %w", orderID, err)
	}
	if rowsAffected == 0 {
		// Either the order does not exist or it already reached a terminal
		// status. The latter is a no-op, not an error.
		var current string
		err := r.db.QueryRowContext(ctx, `SELECT status FROM price_orders WHERE order_id = ?`, orderID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("order %s not found for status update: %w", orderID, ports.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to read current status of order %s: %w", orderID, err)
		}
		r.logger.Debug(ctx, "Order status update skipped, already terminal", map[string]interface{}{"orderID": orderID, "currentStatus": current, "requestedStatus": status})
		return nil
	}
	r.logger.Debug(ctx, "Order status updated", map[string]interface{}{"orderID": orderID, "status": status})
	return nil
}

// FindActiveByKind retrieves the active order of the given kind for a
// (symbol, side) pair, if any. Returns nil, nil when not found.
func (r *Repository) FindActiveByKind(ctx context.Context, symbol string, side domain.PositionSide, kind domain.OrderKind) (*domain.ConditionalOrder, error) {
	const query = `
	SELECT id, order_id, symbol, side, type, trigger_price, order_price, quantity, status, created_at, updated_at, triggered_at
	FROM price_orders
	WHERE symbol = ? AND side = ? AND type = ? AND status = ?
	LIMIT 1`

	row := r.db.QueryRowContext(ctx, query, symbol, side, kind, domain.StatusActive)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug(ctx, "No active order of requested kind", map[string]interface{}{"symbol": symbol, "side": side, "kind": kind})
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query active %s order for %s %s: %w", kind, symbol, side, err)
	}
	return order, nil
}

// --- PositionRepository Implementation ---

// CreatePosition saves a new position and returns its assigned ID.
func (r *Repository) CreatePosition(ctx context.Context, pos *domain.Position) (int64, error) {
	const query = `
	INSERT INTO positions (symbol, side, entry_price, quantity, leverage, partial_close_percentage)
	VALUES (?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		pos.Symbol, pos.Side, pos.EntryPrice, pos.Quantity, pos.Leverage, pos.PartialClosePercent)
	if err != nil {
		return 0, fmt.Errorf("failed to insert position for %s %s: %w", pos.Symbol, pos.Side, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for position %s %s: %w", pos.Symbol, pos.Side, err)
	}
	pos.ID = id
	r.logger.Debug(ctx, "Position created", map[string]interface{}{"positionID": id, "symbol": pos.Symbol, "side": pos.Side})
	return id, nil
}

// FindBySymbolAndSide retrieves the open position for a (symbol, side) pair.
func (r *Repository) FindBySymbolAndSide(ctx context.Context, symbol string, side domain.PositionSide) (*domain.Position, error) {
	const query = `
	SELECT id, symbol, side, entry_price, quantity, leverage, COALESCE(partial_close_percentage, 0)
	FROM positions
	WHERE symbol = ? AND side = ?
	LIMIT 1`

	p := &domain.Position{}
	err := r.db.QueryRowContext(ctx, query, symbol, side).Scan(
		&p.ID, &p.Symbol, &p.Side, &p.EntryPrice, &p.Quantity, &p.Leverage, &p.PartialClosePercent)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug(ctx, "No position found", map[string]interface{}{"symbol": symbol, "side": side})
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query position for %s %s: %w", symbol, side, err)
	}
	return p, nil
}

// DeletePosition removes the position for a (symbol, side) pair.
func (r *Repository) DeletePosition(ctx context.Context, symbol string, side domain.PositionSide) error {
	const query = `DELETE FROM positions WHERE symbol = ? AND side = ?`

	result, err := r.db.ExecContext(ctx, query, symbol, side)
	if err != nil {
		return fmt.Errorf("failed to delete position for %s %s: %w", symbol, side, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected deleting position %s %s: %w", symbol, side, err)
	}
	r.logger.Debug(ctx, "Position deleted", map[string]interface{}{"symbol": symbol, "side": side, "rows": rowsAffected})
	return nil
}

// --- LedgerRepository Implementation ---

// CreateTrade inserts a ledger row for a confirmed closing fill.
func (r *Repository) CreateTrade(ctx context.Context, entry *domain.LedgerEntry) (int64, error) {
	const query = `
	INSERT INTO trades (order_id, symbol, side, type, price, quantity, leverage, pnl, fee, timestamp, status)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		entry.TradeID, entry.Symbol, entry.Side, entry.Type, entry.Price, entry.Quantity,
		entry.Leverage, entry.PNL, entry.Fee, entry.Timestamp, entry.Status)
	if err != nil {
		return 0, fmt.Errorf("failed to insert trade ledger row for %s: %w", entry.Symbol, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for trade ledger row %s: %w", entry.Symbol, err)
	}
	entry.ID = id
	r.logger.Debug(ctx, "Trade ledger row created", map[string]interface{}{"ledgerID": id, "symbol": entry.Symbol, "pnl": entry.PNL})
	return id, nil
}

// CreateCloseEvent inserts a close event with processed=false.
func (r *Repository) CreateCloseEvent(ctx context.Context, event *domain.CloseEvent) (int64, error) {
	const query = `
	INSERT INTO position_close_events
		(symbol, side, close_reason, trigger_price, close_price, entry_price,
		 quantity, pnl, pnl_percent, trigger_order_id, close_trade_id, created_at, processed)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`

	result, err := r.db.ExecContext(ctx, query,
		event.Symbol, event.Side, event.CloseReason, event.TriggerPrice, event.ClosePrice,
		event.EntryPrice, event.Quantity, event.PNL, event.PNLPercent,
		event.TriggerOrderID, event.CloseTradeID, event.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert close event for %s %s: %w", event.Symbol, event.Side, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for close event %s: %w", event.Symbol, err)
	}
	event.ID = id
	event.Processed = false
	r.logger.Debug(ctx, "Close event created", map[string]interface{}{"eventID": id, "symbol": event.Symbol, "reason": event.CloseReason})
	return id, nil
}

// ListUnprocessedCloseEvents returns close events not yet consumed, newest first.
func (r *Repository) ListUnprocessedCloseEvents(ctx context.Context, limit int) ([]*domain.CloseEvent, error) {
	const query = `
	SELECT id, symbol, side, close_reason, trigger_price, close_price, entry_price,
	       quantity, pnl, pnl_percent, trigger_order_id, close_trade_id, created_at, processed
	FROM position_close_events
	WHERE processed = 0
	ORDER BY created_at DESC
	LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unprocessed close events: %w", err)
	}
	defer rows.Close()

	events := make([]*domain.CloseEvent, 0)
	for rows.Next() {
		e := &domain.CloseEvent{}
		err := rows.Scan(&e.ID, &e.Symbol, &e.Side, &e.CloseReason, &e.TriggerPrice, &e.ClosePrice,
			&e.EntryPrice, &e.Quantity, &e.PNL, &e.PNLPercent, &e.TriggerOrderID, &e.CloseTradeID,
			&e.CreatedAt, &e.Processed)
		if err != nil {
			return nil, fmt.Errorf("failed to scan close event: %w", err)
		}
		events = append(events, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating close event rows: %w", err)
	}
	return events, nil
}

// MarkCloseEventProcessed flips processed to true for a consumed event.
func (r *Repository) MarkCloseEventProcessed(ctx context.Context, id int64) error {
	const query = `UPDATE position_close_events SET processed = 1 WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark close event %d processed: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for close event %d: %w", id, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("close event %d not found: %w", id, ports.ErrNotFound)
	}
	return nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanOrder scans a row into a domain.ConditionalOrder struct.
func scanOrder(s scanner) (*domain.ConditionalOrder, error) {
	o := &domain.ConditionalOrder{}
	var side, kind, status string
	var updatedAt, triggeredAt sql.NullTime
	err := s.Scan(
		&o.ID, &o.OrderID, &o.Symbol, &side, &kind, &o.TriggerPrice, &o.OrderPrice,
		&o.Quantity, &status, &o.CreatedAt, &updatedAt, &triggeredAt)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	if updatedAt.Valid {
		o.UpdatedAt = updatedAt.Time
	}
	if triggeredAt.Valid {
		o.TriggeredAt = triggeredAt.Time
	}
	o.Side = domain.PositionSide(side)
	o.Kind = domain.OrderKind(kind)
	o.Status = domain.OrderStatus(status)
	return o, nil
}
