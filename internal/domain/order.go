package domain

import "time"

// Order is an order intent plus its mutable lifecycle state. The broker
// adapter holds the authoritative copy keyed by venue order ID; callers
// observe it through cloned snapshots delivered as notifications.
//
// After submission the order is mutated only on the venue callback
// goroutine; the registry insert is the hand-off point.
type Order struct {
	Instrument *Instrument
	Side       Side
	Size       float64 // absolute quantity
	Price      float64
	LimitPrice float64 // limit leg of stop-limit orders; also accepted as the limit price
	Kind       OrderKind
	Validity   Validity
	TradeID    int

	VenueID    string // assigned by the venue at submission
	Status     OrderStatus
	Comm       CommissionInfo
	Executions []Execution
	FilledSize float64 // absolute quantity filled so far

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsBuy reports whether the order buys.
func (o *Order) IsBuy() bool { return o.Side == SideBuy }

// IsSell reports whether the order sells.
func (o *Order) IsSell() bool { return o.Side == SideSell }

// Remaining returns the unfilled absolute quantity.
func (o *Order) Remaining() float64 { return o.Size - o.FilledSize }

// Alive reports whether the order can still trade.
func (o *Order) Alive() bool {
	switch o.Status {
	case OrderStatusSubmitted, OrderStatusAccepted, OrderStatusPartiallyFilled:
		return true
	}
	return false
}

// advance moves the order to status unless that would regress the lifecycle.
// It returns whether the transition was applied. Re-entering
// PartiallyFilled is allowed; leaving a terminal state is not.
func (o *Order) advance(status OrderStatus) bool {
	cur := statusRank[o.Status]
	next := statusRank[status]
	if next < cur {
		return false
	}
	if cur == statusRank[OrderStatusCompleted] && status != o.Status {
		return false
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	return true
}

// Submit marks the order as sent to the venue.
func (o *Order) Submit() { o.advance(OrderStatusSubmitted) }

// Accept marks the order as live in the market.
func (o *Order) Accept() { o.advance(OrderStatusAccepted) }

// Cancel marks the order as cancelled. Expired orders arrive through the
// same venue event and end up here as well.
func (o *Order) Cancel() { o.advance(OrderStatusCancelled) }

// MarkPartial marks the order as partially filled.
func (o *Order) MarkPartial() { o.advance(OrderStatusPartiallyFilled) }

// Complete marks the order as fully filled.
func (o *Order) Complete() { o.advance(OrderStatusCompleted) }

// Execute appends a fill to the order. All monetary figures come from the
// order's commission scheme; size is signed, posSize/posPrice are the
// position resulting from the fill.
func (o *Order) Execute(ts time.Time, size, price,
	closed, closedValue, closedComm,
	opened, openedValue, openedComm,
	margin, pnl, posSize, posPrice float64) {

	o.Executions = append(o.Executions, Execution{
		Time:             ts,
		Size:             size,
		Price:            price,
		Closed:           closed,
		ClosedValue:      closedValue,
		ClosedCommission: closedComm,
		Opened:           opened,
		OpenedValue:      openedValue,
		OpenedCommission: openedComm,
		Margin:           margin,
		PnL:              pnl,
		PositionSize:     posSize,
		PositionPrice:    posPrice,
	})
	if size < 0 {
		o.FilledSize -= size
	} else {
		o.FilledSize += size
	}
	o.UpdatedAt = time.Now()
}

// Clone returns a deep snapshot of the order suitable for handing across
// goroutines. The instrument pointer is shared; instruments are immutable.
func (o *Order) Clone() *Order {
	c := *o
	c.Executions = make([]Execution, len(o.Executions))
	copy(c.Executions, o.Executions)
	return &c
}
