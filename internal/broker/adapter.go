package broker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"tradelink/internal/comm"
	"tradelink/internal/domain"
	"tradelink/internal/position"
	"tradelink/internal/venue"
)

// Compile-time interface checks.
var _ Broker = (*Adapter)(nil)
var _ venue.Handler = (*Adapter)(nil)

// Options configures an Adapter.
type Options struct {
	// Account selects the venue account. Empty picks the first account
	// the session reports.
	Account string

	// Commission is the global commission scheme. Nil means instruments
	// without a per-instrument scheme get a synthesized approximation
	// (zero commission, notional cost).
	Commission domain.CommissionInfo

	Logger *slog.Logger
}

// Adapter keeps the engine's orders, positions, and cash consistent with the
// venue's event stream. Two goroutine domains touch it: the caller (submits,
// polls, reads balances) and the venue's delivery goroutine (the
// venue.Handler methods). The position ledger and the order registry carry
// their own locks; balances are atomic reads of last-known values.
type Adapter struct {
	log     *slog.Logger
	session venue.Session
	comms   *comm.Resolver

	ledger *position.Ledger
	orders *registry
	notifs *notifications

	cashBits  atomic.Uint64
	valueBits atomic.Uint64

	accMu         sync.Mutex
	accName       string
	startingCash  float64
	startingValue float64

	wantAccount string
}

// New creates an adapter over the given venue session.
func New(session venue.Session, opts Options) *Adapter {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{
		log:         log.With("component", "broker"),
		session:     session,
		comms:       comm.NewResolver(opts.Commission),
		ledger:      position.NewLedger(),
		orders:      newRegistry(),
		notifs:      &notifications{},
		wantAccount: opts.Account,
	}
}

// SetCommission registers a per-instrument commission scheme. Call during
// setup, before Start.
func (a *Adapter) SetCommission(code string, ci domain.CommissionInfo) {
	a.comms.SetScheme(code, ci)
}

// Start opens the session and selects the trading account: the configured
// one if present, otherwise the first the venue reports.
func (a *Adapter) Start(ctx context.Context) error {
	if err := a.session.Start(ctx, a); err != nil {
		return fmt.Errorf("starting venue session: %w", err)
	}

	for _, acc := range a.session.Accounts() {
		if a.wantAccount != "" && a.wantAccount != acc.ID {
			continue
		}
		a.accMu.Lock()
		a.accName = acc.ID
		a.startingCash = acc.Cash
		a.startingValue = acc.NetWorth
		a.accMu.Unlock()
		a.storeCash(acc.Cash)
		a.storeValue(acc.NetWorth)

		a.log.Info("account selected", "account", acc.ID, "cash", acc.Cash, "value", acc.NetWorth)
		return nil
	}

	return fmt.Errorf("venue reported no account matching %q", a.wantAccount)
}

// Stop closes the venue session.
func (a *Adapter) Stop() error {
	return a.session.Stop()
}

// Buy submits a buy order.
func (a *Adapter) Buy(intent Intent) (*domain.Order, error) {
	return a.submit(intent, domain.SideBuy)
}

// Sell submits a sell order.
func (a *Adapter) Sell(intent Intent) (*domain.Order, error) {
	return a.submit(intent, domain.SideSell)
}

// submit is the synchronous submission path: translate, send, register,
// notify. A venue failure propagates to the caller and leaves no registry
// or notification state behind. The returned order is a snapshot; the live
// record stays in the registry, mutated only by venue callbacks, and later
// state is observed through notifications.
func (a *Adapter) submit(intent Intent, side domain.Side) (*domain.Order, error) {
	kind := intent.Kind
	if kind == "" {
		kind = domain.OrderKindMarket
	}
	now := time.Now()
	o := &domain.Order{
		Instrument: intent.Instrument,
		Side:       side,
		Size:       math.Abs(intent.Size),
		Price:      intent.Price,
		LimitPrice: intent.LimitPrice,
		Kind:       kind,
		Validity:   intent.Validity,
		TradeID:    intent.TradeID,
		Status:     domain.OrderStatusCreated,
		CreatedAt:  now,
	}
	o.Submit()

	req := buildRequest(a.accountName(), o, intent.Extra, now)
	id, err := a.session.SendOrder(req)
	if err != nil {
		return nil, fmt.Errorf("submitting %s %v %s: %w", side, o.Size, o.Instrument.Code, err)
	}

	o.VenueID = id
	o.Comm = a.comms.Resolve(o.Instrument)
	a.orders.insert(id, o)
	a.notify(o)

	a.log.Debug("order submitted", "id", id, "side", side, "symbol", o.Instrument.Code, "size", o.Size)
	return o.Clone(), nil
}

// Cash returns the last-known cash balance.
func (a *Adapter) Cash() float64 {
	return math.Float64frombits(a.cashBits.Load())
}

// Value returns the last-known mark-to-market equity.
func (a *Adapter) Value() float64 {
	return math.Float64frombits(a.valueBits.Load())
}

// StartingCash returns the cash balance captured at account selection.
func (a *Adapter) StartingCash() float64 {
	a.accMu.Lock()
	defer a.accMu.Unlock()
	return a.startingCash
}

// StartingValue returns the equity captured at account selection.
func (a *Adapter) StartingValue() float64 {
	a.accMu.Lock()
	defer a.accMu.Unlock()
	return a.startingValue
}

// Position returns a copy of the instrument's position.
func (a *Adapter) Position(inst *domain.Instrument) position.Position {
	return a.ledger.Get(inst.Code)
}

// Positions returns a copy of every position the ledger tracks.
func (a *Adapter) Positions() map[string]position.Position {
	return a.ledger.Snapshot()
}

// CommissionInfo resolves the commission scheme for the instrument.
func (a *Adapter) CommissionInfo(inst *domain.Instrument) domain.CommissionInfo {
	return a.comms.Resolve(inst)
}

// Notification pops the oldest queued snapshot.
func (a *Adapter) Notification() (*domain.Order, bool) {
	return a.notifs.pop()
}

// Next marks a tick boundary in the notification stream.
func (a *Adapter) Next() {
	a.notifs.pushBoundary()
}

func (a *Adapter) notify(o *domain.Order) {
	a.notifs.push(o.Clone())
}

func (a *Adapter) accountName() string {
	a.accMu.Lock()
	defer a.accMu.Unlock()
	return a.accName
}

func (a *Adapter) storeCash(v float64)  { a.cashBits.Store(math.Float64bits(v)) }
func (a *Adapter) storeValue(v float64) { a.valueBits.Store(math.Float64bits(v)) }

//
// venue.Handler — the event reconciler. Runs on the venue's delivery
// goroutine; errors are absorbed here, never returned across the callback
// boundary.
//

// OrderAccepted moves a known order to Accepted.
func (a *Adapter) OrderAccepted(ev venue.OrderEvent) {
	o, ok := a.orders.lookup(ev.OrderID)
	if !ok {
		a.log.Debug("accepted event for unknown order", "id", ev.OrderID)
		return
	}
	o.Accept()
	a.notify(o)
}

// OrderCancelled moves a known order to Cancelled. Expired orders arrive
// here too; the venue does not distinguish them.
func (a *Adapter) OrderCancelled(ev venue.OrderEvent) {
	o, ok := a.orders.lookup(ev.OrderID)
	if !ok {
		a.log.Debug("cancel event for unknown order", "id", ev.OrderID)
		return
	}
	o.Cancel()
	a.notify(o)
}

// OrderPartiallyExecuted applies a fill that leaves the order open.
func (a *Adapter) OrderPartiallyExecuted(ev venue.OrderEvent) {
	a.applyExecution(ev, true)
}

// OrderExecuted applies the fill that completes the order.
func (a *Adapter) OrderExecuted(ev venue.OrderEvent) {
	a.applyExecution(ev, false)
}

// applyExecution is the single accounting step every fill goes through:
// ledger update, monetary figures from the order's commission scheme, fill
// record, status, notification.
func (a *Adapter) applyExecution(ev venue.OrderEvent, partial bool) {
	o, ok := a.orders.lookup(ev.OrderID)
	if !ok {
		a.log.Debug("fill event for unknown order", "id", ev.OrderID)
		return
	}

	size := ev.Volume
	if o.IsSell() {
		size = -size
	}

	u := a.ledger.Apply(o.Instrument.Code, size, ev.Price)

	ci := o.Comm
	closedValue := ci.OperationCost(u.Closed, u.PriorPrice)
	closedComm := ci.Commission(u.Closed, ev.Price)
	openedValue := ci.OperationCost(u.Opened, ev.Price)
	openedComm := ci.Commission(u.Opened, ev.Price)
	pnl := ci.ProfitAndLoss(-u.Closed, u.PriorPrice, ev.Price)
	margin := ci.ValueSize(size, ev.Price)

	o.Execute(time.Now(), size, ev.Price,
		u.Closed, closedValue, closedComm,
		u.Opened, openedValue, openedComm,
		margin, pnl, u.Size, u.Price)

	if partial {
		o.MarkPartial()
	} else {
		o.Complete()
	}
	a.notify(o)

	a.log.Debug("fill applied", "id", ev.OrderID, "size", size, "price", ev.Price,
		"partial", partial, "position", u.Size, "pnl", pnl)
}

// BalanceChanged updates cash and equity for the selected account. Events
// for other accounts are dropped.
func (a *Adapter) BalanceChanged(ev venue.BalanceEvent) {
	name := a.accountName()
	if name == "" || name != ev.Account {
		return
	}
	a.storeCash(ev.Cash)
	a.storeValue(ev.NetWorth)
}

// OrderModified is accepted but unused: order modification is out of scope.
func (a *Adapter) OrderModified(venue.OrderEvent) {}

// OrderLocationChanged is accepted but unused: submitted status is set
// locally at submission time.
func (a *Adapter) OrderLocationChanged(venue.OrderEvent) {}

// OpenPositionsChanged is accepted but unused. Snapshots omit positions that
// went flat, so they cannot drive the accounting; fills are authoritative.
func (a *Adapter) OpenPositionsChanged(string) {}

// ClosedOperations is accepted but unused.
func (a *Adapter) ClosedOperations(string) {}

// ServerShutdown logs the venue going away; in-flight state is kept.
func (a *Adapter) ServerShutdown() {
	a.log.Warn("venue reported shutdown")
}

// InternalEvent is accepted but unused.
func (a *Adapter) InternalEvent(int, int, int) {}
