// Package domain defines the engine-native order, instrument, and account
// types shared by the broker adapter, the journal, and the engine layer.
package domain

import "time"

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderKind identifies the execution type of an order.
type OrderKind string

const (
	OrderKindMarket    OrderKind = "market"
	OrderKindLimit     OrderKind = "limit"
	OrderKindStop      OrderKind = "stop"
	OrderKindStopLimit OrderKind = "stop_limit"
	// OrderKindClose executes in the closing auction of the session.
	OrderKindClose OrderKind = "close"
)

// OrderStatus is the lifecycle state of an order.
//
// The venue reports expired orders as cancelled; the two are therefore
// indistinguishable here and both surface as OrderStatusCancelled.
type OrderStatus string

const (
	OrderStatusCreated         OrderStatus = "created"
	OrderStatusSubmitted       OrderStatus = "submitted"
	OrderStatusAccepted        OrderStatus = "accepted"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusCompleted       OrderStatus = "completed"
	OrderStatusCancelled       OrderStatus = "cancelled"
)

// statusRank orders lifecycle states so transitions never regress. The two
// terminal states share a rank.
var statusRank = map[OrderStatus]int{
	OrderStatusCreated:         0,
	OrderStatusSubmitted:       1,
	OrderStatusAccepted:        2,
	OrderStatusPartiallyFilled: 3,
	OrderStatusCompleted:       4,
	OrderStatusCancelled:       4,
}

// InstrumentType classifies an instrument for commission purposes.
type InstrumentType string

const (
	InstrumentStock  InstrumentType = "stock"
	InstrumentIndex  InstrumentType = "index"
	InstrumentFuture InstrumentType = "future"
	InstrumentOption InstrumentType = "option"
	InstrumentFund   InstrumentType = "fund"
)

// FutureLike reports whether the type settles against a contract multiplier
// rather than trading cash-for-shares.
func (t InstrumentType) FutureLike() bool {
	switch t {
	case InstrumentFuture, InstrumentOption, InstrumentFund:
		return true
	}
	return false
}

// Instrument is the tradeable contract metadata the adapter needs. Metadata
// lookup itself lives outside this module; instances are treated as
// immutable once constructed.
type Instrument struct {
	Code       string // venue symbol code
	PointValue float64
	Type       InstrumentType
}

// OneDay is the duration that maps a duration-bound validity to the venue's
// session (day-order) restriction instead of a concrete date.
const OneDay = 24 * time.Hour

// ValidityKind discriminates the validity variants.
type ValidityKind int

const (
	ValidityNone     ValidityKind = iota // good until cancelled
	ValidityDate                         // good until a concrete date
	ValidityDuration                     // good for a duration from submission
	ValidityDay                          // good for the current session
)

// Validity is the time-in-force of an order.
type Validity struct {
	Kind     ValidityKind
	Date     time.Time
	Duration time.Duration
}

// GoodTillDate returns a validity bound to a concrete date.
func GoodTillDate(t time.Time) Validity {
	return Validity{Kind: ValidityDate, Date: t}
}

// GoodFor returns a validity lasting d from submission time. A duration of
// exactly OneDay is treated as a day order.
func GoodFor(d time.Duration) Validity {
	return Validity{Kind: ValidityDuration, Duration: d}
}

// DayOrder returns a validity restricted to the current session.
func DayOrder() Validity {
	return Validity{Kind: ValidityDay}
}

// CommissionInfo computes the monetary figures attached to executions. All
// sizes are signed; implementations must accept both signs.
type CommissionInfo interface {
	// Commission returns the commission charged for trading size at price.
	Commission(size, price float64) float64

	// OperationCost returns the cash needed to carry out the operation.
	OperationCost(size, price float64) float64

	// ProfitAndLoss returns the realized result of closing size contracts
	// entered at avgPrice and exited at price.
	ProfitAndLoss(size, avgPrice, price float64) float64

	// ValueSize returns the margin-equivalent value of size at price.
	ValueSize(size, price float64) float64
}

// Execution records one fill applied to an order, including the opened/closed
// split and the monetary figures computed from the order's commission scheme.
type Execution struct {
	Time  time.Time
	Size  float64 // signed fill size
	Price float64

	Closed           float64 // portion reducing the prior position (signed)
	ClosedValue      float64
	ClosedCommission float64
	Opened           float64 // portion extending the position (signed)
	OpenedValue      float64
	OpenedCommission float64

	Margin float64
	PnL    float64

	// Resulting position after this fill.
	PositionSize  float64
	PositionPrice float64
}

// AccountInfo is a snapshot of the venue account's financial state.
type AccountInfo struct {
	ID       string
	Cash     float64
	NetWorth float64
}
