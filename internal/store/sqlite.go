package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tradelink/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ OrderStore = (*SQLiteStore)(nil)
var _ ExecutionStore = (*SQLiteStore)(nil)

// SQLiteStore implements OrderStore and ExecutionStore backed by a SQLite
// database.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS orders (
	venue_id    TEXT PRIMARY KEY,
	symbol      TEXT NOT NULL,
	side        TEXT NOT NULL,
	kind        TEXT NOT NULL,
	size        REAL NOT NULL,
	price       REAL NOT NULL,
	limit_price REAL NOT NULL,
	trade_id    INTEGER NOT NULL,
	status      TEXT NOT NULL,
	filled_size REAL NOT NULL,
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);

CREATE TABLE IF NOT EXISTS executions (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	venue_id     TEXT NOT NULL,
	symbol       TEXT NOT NULL,
	ts           INTEGER NOT NULL,
	size         REAL NOT NULL,
	price        REAL NOT NULL,
	closed       REAL NOT NULL,
	closed_value REAL NOT NULL,
	closed_comm  REAL NOT NULL,
	opened       REAL NOT NULL,
	opened_value REAL NOT NULL,
	opened_comm  REAL NOT NULL,
	margin       REAL NOT NULL,
	pnl          REAL NOT NULL,
	pos_size     REAL NOT NULL,
	pos_price    REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_executions_symbol_ts ON executions(symbol, ts);
`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and runs the
// schema migration.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// OrderStore implementation
// ---------------------------------------------------------------------------

// SaveOrder inserts or replaces an order keyed by its venue ID.
func (s *SQLiteStore) SaveOrder(ctx context.Context, o *domain.Order) error {
	if o.VenueID == "" {
		return fmt.Errorf("order has no venue ID")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO orders
			(venue_id, symbol, side, kind, size, price, limit_price,
			 trade_id, status, filled_size, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.VenueID, o.Instrument.Code, string(o.Side), string(o.Kind),
		o.Size, o.Price, o.LimitPrice, o.TradeID, string(o.Status),
		o.FilledSize, o.CreatedAt.UnixMilli(), o.UpdatedAt.UnixMilli(),
	)
	return err
}

// GetOrder retrieves a single order by its venue ID. The instrument carries
// only the symbol code; metadata lives outside the journal.
func (s *SQLiteStore) GetOrder(ctx context.Context, venueID string) (*domain.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT venue_id, symbol, side, kind, size, price, limit_price,
		       trade_id, status, filled_size, created_at, updated_at
		FROM orders WHERE venue_id = ?`, venueID)

	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %s not found", venueID)
	}
	return o, err
}

// ListOrders returns all orders with the given status, oldest first.
func (s *SQLiteStore) ListOrders(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT venue_id, symbol, side, kind, size, price, limit_price,
		       trade_id, status, filled_size, created_at, updated_at
		FROM orders WHERE status = ? ORDER BY created_at`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// UpdateOrder persists the mutable fields of an existing order.
func (s *SQLiteStore) UpdateOrder(ctx context.Context, o *domain.Order) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE orders SET status = ?, filled_size = ?, updated_at = ?
		WHERE venue_id = ?`,
		string(o.Status), o.FilledSize, o.UpdatedAt.UnixMilli(), o.VenueID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(r rowScanner) (*domain.Order, error) {
	var (
		o                    domain.Order
		symbol, side, kind   string
		status               string
		createdMS, updatedMS int64
	)
	err := r.Scan(&o.VenueID, &symbol, &side, &kind, &o.Size, &o.Price,
		&o.LimitPrice, &o.TradeID, &status, &o.FilledSize, &createdMS, &updatedMS)
	if err != nil {
		return nil, err
	}
	o.Instrument = &domain.Instrument{Code: symbol}
	o.Side = domain.Side(side)
	o.Kind = domain.OrderKind(kind)
	o.Status = domain.OrderStatus(status)
	o.CreatedAt = time.UnixMilli(createdMS)
	o.UpdatedAt = time.UnixMilli(updatedMS)
	return &o, nil
}

// ---------------------------------------------------------------------------
// ExecutionStore implementation
// ---------------------------------------------------------------------------

// SaveExecutions appends fills for the given order.
func (s *SQLiteStore) SaveExecutions(ctx context.Context, venueID, symbol string, execs []domain.Execution) error {
	if len(execs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO executions
			(venue_id, symbol, ts, size, price, closed, closed_value,
			 closed_comm, opened, opened_value, opened_comm, margin, pnl,
			 pos_size, pos_price)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, ex := range execs {
		_, err := stmt.ExecContext(ctx,
			venueID, symbol, ex.Time.UnixMilli(), ex.Size, ex.Price,
			ex.Closed, ex.ClosedValue, ex.ClosedCommission,
			ex.Opened, ex.OpenedValue, ex.OpenedCommission,
			ex.Margin, ex.PnL, ex.PositionSize, ex.PositionPrice)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// AllExecutions returns every journaled fill, oldest first. Used to feed
// the Parquet exporter.
func (s *SQLiteStore) AllExecutions(ctx context.Context) ([]ExecutionRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT venue_id, symbol, ts, size, price, closed, closed_value,
		       closed_comm, opened, opened_value, opened_comm, margin, pnl,
		       pos_size, pos_price
		FROM executions ORDER BY ts`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanExecutionRows(rows)
}

// ListExecutions returns fills for a symbol within [start, end], oldest
// first.
func (s *SQLiteStore) ListExecutions(ctx context.Context, symbol string, start, end time.Time) ([]ExecutionRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT venue_id, symbol, ts, size, price, closed, closed_value,
		       closed_comm, opened, opened_value, opened_comm, margin, pnl,
		       pos_size, pos_price
		FROM executions
		WHERE symbol = ? AND ts BETWEEN ? AND ?
		ORDER BY ts`,
		symbol, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanExecutionRows(rows)
}

func scanExecutionRows(rows *sql.Rows) ([]ExecutionRow, error) {
	var out []ExecutionRow
	for rows.Next() {
		var (
			r  ExecutionRow
			ms int64
		)
		err := rows.Scan(&r.VenueID, &r.Symbol, &ms, &r.Size, &r.Price,
			&r.Closed, &r.ClosedValue, &r.ClosedCommission,
			&r.Opened, &r.OpenedValue, &r.OpenedCommission,
			&r.Margin, &r.PnL, &r.PositionSize, &r.PositionPrice)
		if err != nil {
			return nil, err
		}
		r.Time = time.UnixMilli(ms)
		out = append(out, r)
	}
	return out, rows.Err()
}
