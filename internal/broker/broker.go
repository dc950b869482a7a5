// Package broker reconciles the engine's view of orders, positions, and cash
// with the asynchronous event stream of an execution venue. Orders are
// submitted on the caller's goroutine; everything after that is driven by
// venue callbacks and observed through polled notifications.
package broker

import (
	"context"

	"tradelink/internal/domain"
	"tradelink/internal/position"
)

// Broker is the engine-facing surface of the adapter.
type Broker interface {
	// Start opens the venue session and selects the trading account.
	Start(ctx context.Context) error

	// Stop closes the venue session.
	Stop() error

	// Buy submits a buy order built from the intent. The returned order is
	// a snapshot taken at submission; later state arrives as notifications.
	Buy(intent Intent) (*domain.Order, error)

	// Sell submits a sell order built from the intent. Snapshot semantics
	// as for Buy.
	Sell(intent Intent) (*domain.Order, error)

	// Cash returns the last-known cash balance. Never blocks; the venue is
	// authoritative and re-delivers on change.
	Cash() float64

	// Value returns the last-known mark-to-market equity.
	Value() float64

	// Position returns a snapshot of the instrument's position.
	Position(inst *domain.Instrument) position.Position

	// CommissionInfo returns the commission scheme that would be attached
	// to orders for the instrument.
	CommissionInfo(inst *domain.Instrument) domain.CommissionInfo

	// Notification pops the oldest queued order snapshot. A nil order with
	// ok true is a tick boundary; ok false means the queue is empty.
	Notification() (o *domain.Order, ok bool)

	// Next marks a tick boundary in the notification stream.
	Next()
}

// Intent is an order request in engine-native terms. Size is absolute; the
// direction comes from calling Buy or Sell.
type Intent struct {
	Instrument *domain.Instrument
	Size       float64
	Price      float64
	LimitPrice float64
	Kind       domain.OrderKind
	Validity   domain.Validity
	TradeID    int

	// Extra holds venue request fields by schema name. Names the venue
	// schema does not define are dropped.
	Extra map[string]any
}
