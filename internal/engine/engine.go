// Package engine coordinates order submission, journaling, and risk checking
// on top of the broker adapter. It owns the polling loop that drains broker
// notifications once per tick and persists what it sees.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"tradelink/internal/broker"
	"tradelink/internal/domain"
	"tradelink/internal/store"
)

// Engine orchestrates the trading lifecycle: risk-checks intents, forwards
// them to the broker, and journals orders and executions as notifications
// arrive.
type Engine struct {
	broker broker.Broker
	orders store.OrderStore
	execs  store.ExecutionStore
	risk   *RiskManager
	log    *slog.Logger

	realized float64
	// journaled execution count per venue ID, to persist only new fills
	execCount map[string]int
}

// New creates an Engine wired with the given dependencies. The stores may be
// nil, in which case journaling is disabled.
func New(b broker.Broker, orders store.OrderStore, execs store.ExecutionStore, risk *RiskManager, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		broker:    b,
		orders:    orders,
		execs:     execs,
		risk:      risk,
		log:       log,
		execCount: make(map[string]int),
	}
}

// Submit risk-checks the intent and forwards it to the broker. A journal
// write failure does not unwind the submission; the order is live at the
// venue regardless of what the local journal thinks.
func (e *Engine) Submit(ctx context.Context, intent broker.Intent, side domain.Side) (*domain.Order, error) {
	if e.risk != nil {
		acct := &domain.AccountInfo{Cash: e.broker.Cash(), NetWorth: e.broker.Value()}
		if err := e.risk.CheckOrder(intent, side, acct, e.realized); err != nil {
			return nil, fmt.Errorf("risk check: %w", err)
		}
	}

	var (
		o   *domain.Order
		err error
	)
	switch side {
	case domain.SideBuy:
		o, err = e.broker.Buy(intent)
	case domain.SideSell:
		o, err = e.broker.Sell(intent)
	default:
		return nil, fmt.Errorf("unknown side %q", side)
	}
	if err != nil {
		return nil, err
	}

	if e.orders != nil {
		if jerr := e.orders.SaveOrder(ctx, o); jerr != nil {
			e.log.Warn("journaling submitted order failed",
				"venue_id", o.VenueID, "error", jerr)
		}
	}
	return o, nil
}

// Tick advances the broker's notification stream by one boundary and drains
// everything queued before it, journaling order updates and new executions.
// It returns the order snapshots observed this tick.
func (e *Engine) Tick(ctx context.Context) []*domain.Order {
	e.broker.Next()

	var seen []*domain.Order
	for {
		o, ok := e.broker.Notification()
		if !ok {
			// Queue exhausted without reaching the boundary. Should not
			// happen after Next, but don't spin.
			break
		}
		if o == nil {
			// Tick boundary.
			break
		}
		seen = append(seen, o)
		e.journal(ctx, o)
	}
	return seen
}

// journal persists an order snapshot and any executions not yet stored.
func (e *Engine) journal(ctx context.Context, o *domain.Order) {
	if o.VenueID == "" {
		// Submission-time snapshot taken before the venue assigned an ID.
		return
	}

	if e.orders != nil {
		if err := e.orders.UpdateOrder(ctx, o); err != nil {
			e.log.Warn("journaling order update failed",
				"venue_id", o.VenueID, "error", err)
		}
	}

	prev := e.execCount[o.VenueID]
	if len(o.Executions) <= prev {
		return
	}
	fresh := o.Executions[prev:]
	e.execCount[o.VenueID] = len(o.Executions)

	for _, ex := range fresh {
		e.realized += ex.PnL - ex.ClosedCommission - ex.OpenedCommission
	}

	if e.execs != nil {
		if err := e.execs.SaveExecutions(ctx, o.VenueID, o.Instrument.Code, fresh); err != nil {
			e.log.Warn("journaling executions failed",
				"venue_id", o.VenueID, "count", len(fresh), "error", err)
		}
	}
}

// RealizedPnL returns the net realized profit and loss accumulated from
// journaled executions, commissions included.
func (e *Engine) RealizedPnL() float64 {
	return e.realized
}
