// Package store persists the trading journal: orders keyed by their venue
// identifier, the executions applied to them, and a Parquet export of
// execution history for offline analysis.
package store

import (
	"context"
	"time"

	"tradelink/internal/domain"
)

// OrderStore persists and retrieves order records.
type OrderStore interface {
	// SaveOrder inserts or replaces an order keyed by its venue ID.
	SaveOrder(ctx context.Context, o *domain.Order) error

	// GetOrder retrieves a single order by its venue ID.
	GetOrder(ctx context.Context, venueID string) (*domain.Order, error)

	// ListOrders returns all orders with the given status.
	ListOrders(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error)

	// UpdateOrder persists the mutable fields (status, filled size) of an
	// existing order.
	UpdateOrder(ctx context.Context, o *domain.Order) error
}

// ExecutionStore persists individual fills.
type ExecutionStore interface {
	// SaveExecutions appends fills for the given order.
	SaveExecutions(ctx context.Context, venueID, symbol string, execs []domain.Execution) error

	// ListExecutions returns fills for a symbol within [start, end].
	ListExecutions(ctx context.Context, symbol string, start, end time.Time) ([]ExecutionRow, error)
}

// ExecutionRow is a stored fill with its order and instrument keys.
type ExecutionRow struct {
	VenueID string
	Symbol  string
	domain.Execution
}
