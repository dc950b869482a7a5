// Package venue defines the execution-venue boundary: the session interface
// used to place orders, the venue-native order request, and the callback
// surface through which the venue pushes events on its own delivery
// goroutine. Events arrive in arbitrary order; handlers must tolerate
// references to orders they never placed.
package venue

import (
	"context"
	"time"
)

// OrderType is the venue-native execution type code.
type OrderType int

const (
	OrderTypeMarket OrderType = iota + 1
	OrderTypeLimit
	OrderTypeStopMarket
	OrderTypeStopLimit
)

// OrderSide is the venue-native side code.
type OrderSide int

const (
	OrderSideBuy OrderSide = iota + 1
	OrderSideSell
)

// TimeRestriction is the venue-native time-in-force code.
type TimeRestriction int

const (
	TimeRestrictionNone TimeRestriction = iota
	TimeRestrictionDate
	TimeRestrictionCloseAuction
	TimeRestrictionSession
)

// VolumeRestriction is the venue-native volume-restriction code.
type VolumeRestriction int

const (
	VolumeRestrictionNone VolumeRestriction = iota
)

// OrderRequest is a venue-native order. SendOrder consumes it; everything
// here mirrors the venue's order schema.
type OrderRequest struct {
	Account    string
	SymbolCode string
	OrderType  OrderType
	OrderSide  OrderSide
	Volume     float64
	Price      float64
	StopPrice  float64

	VolumeRestriction VolumeRestriction
	TimeRestriction   TimeRestriction
	ValidDate         time.Time // zero unless date-restricted

	HideVolume   float64
	MinVolume    float64
	UserOrderID  string
	ExtendedInfo string
}

// Apply sets a request field by its schema name, returning whether the name
// (and value type) matched. Unknown fields are dropped: callers pass
// arbitrary extras and only those the schema defines take effect.
func (r *OrderRequest) Apply(field string, value any) bool {
	switch field {
	case "HideVolume":
		if v, ok := value.(float64); ok {
			r.HideVolume = v
			return true
		}
	case "MinVolume":
		if v, ok := value.(float64); ok {
			r.MinVolume = v
			return true
		}
	case "UserOrderID":
		if v, ok := value.(string); ok {
			r.UserOrderID = v
			return true
		}
	case "ExtendedInfo":
		if v, ok := value.(string); ok {
			r.ExtendedInfo = v
			return true
		}
	}
	return false
}

// OrderEvent is the payload of an order-related venue callback.
type OrderEvent struct {
	OrderID string
	Volume  float64
	Price   float64
}

// BalanceEvent reports an account's balance after a change.
type BalanceEvent struct {
	Account  string
	Cash     float64
	NetWorth float64
}

// Account is one venue account with its last-known balances.
type Account struct {
	ID       string
	Cash     float64
	NetWorth float64
}

// Handler is the callback surface a session delivers events into. All
// methods are invoked on the session's delivery goroutine and must not
// block it; implementations absorb errors locally and never return them
// across this boundary.
type Handler interface {
	// OrderAccepted signals the order is live in the market.
	OrderAccepted(ev OrderEvent)

	// OrderCancelled signals the order left the market without completing.
	// The venue reports expirations through this same event.
	OrderCancelled(ev OrderEvent)

	// OrderPartiallyExecuted reports a fill that leaves the order open.
	OrderPartiallyExecuted(ev OrderEvent)

	// OrderExecuted reports the fill that completes the order.
	OrderExecuted(ev OrderEvent)

	// BalanceChanged reports new balances for an account.
	BalanceChanged(ev BalanceEvent)

	// OrderModified reports an order modification made outside this
	// adapter. Carries no actionable information here.
	OrderModified(ev OrderEvent)

	// OrderLocationChanged reports routing changes. Carries no actionable
	// information here.
	OrderLocationChanged(ev OrderEvent)

	// OpenPositionsChanged reports a position snapshot refresh for an
	// account. Snapshots omit flat positions and are not used for
	// accounting.
	OpenPositionsChanged(account string)

	// ClosedOperations reports closed-operation summaries for an account.
	ClosedOperations(account string)

	// ServerShutdown signals the venue is going down.
	ServerShutdown()

	// InternalEvent carries venue-internal diagnostics.
	InternalEvent(p1, p2, p3 int)
}

// Session is a live connection to an execution venue.
type Session interface {
	// Start opens the session and begins delivering events to h on the
	// session's own goroutine. Accounts are available once Start returns.
	Start(ctx context.Context, h Handler) error

	// Stop closes the session. No events are delivered afterwards.
	Stop() error

	// Accounts returns the venue accounts visible to this session.
	Accounts() []Account

	// SendOrder places the order and synchronously returns the
	// venue-assigned order identifier. Placement is fire-and-forget:
	// acceptance and fills arrive later as events.
	SendOrder(req OrderRequest) (string, error)
}
