package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"tradelink/internal/broker"
	"tradelink/internal/domain"
	"tradelink/internal/position"
	"tradelink/internal/store"
)

// fakeBroker scripts a notification stream and records submissions.
type fakeBroker struct {
	queue  []*domain.Order // nil entries are tick boundaries
	bought []broker.Intent
	sold   []broker.Intent
	cash   float64
	value  float64
	nextID int
}

func (f *fakeBroker) Start(context.Context) error { return nil }
func (f *fakeBroker) Stop() error                 { return nil }

func (f *fakeBroker) Buy(intent broker.Intent) (*domain.Order, error) {
	f.bought = append(f.bought, intent)
	return f.makeOrder(intent, domain.SideBuy), nil
}

func (f *fakeBroker) Sell(intent broker.Intent) (*domain.Order, error) {
	f.sold = append(f.sold, intent)
	return f.makeOrder(intent, domain.SideSell), nil
}

func (f *fakeBroker) makeOrder(intent broker.Intent, side domain.Side) *domain.Order {
	f.nextID++
	o := newTestOrder(intent.Instrument, side, intent.Size, intent.Price)
	o.VenueID = "FAKE-" + string(rune('0'+f.nextID))
	o.Submit()
	return o
}

func newTestOrder(inst *domain.Instrument, side domain.Side, size, price float64) *domain.Order {
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	return &domain.Order{
		Instrument: inst,
		Side:       side,
		Size:       size,
		Price:      price,
		Kind:       domain.OrderKindMarket,
		Status:     domain.OrderStatusCreated,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (f *fakeBroker) Cash() float64  { return f.cash }
func (f *fakeBroker) Value() float64 { return f.value }

func (f *fakeBroker) Position(*domain.Instrument) position.Position { return position.Position{} }

func (f *fakeBroker) CommissionInfo(*domain.Instrument) domain.CommissionInfo { return nil }

func (f *fakeBroker) Notification() (*domain.Order, bool) {
	if len(f.queue) == 0 {
		return nil, false
	}
	o := f.queue[0]
	f.queue = f.queue[1:]
	return o, true
}

func (f *fakeBroker) Next() {}

var _ broker.Broker = (*fakeBroker)(nil)

// memStore records journal calls in memory.
type memStore struct {
	saved   []*domain.Order
	updated []*domain.Order
	execs   map[string][]domain.Execution
}

func newMemStore() *memStore {
	return &memStore{execs: make(map[string][]domain.Execution)}
}

func (m *memStore) SaveOrder(_ context.Context, o *domain.Order) error {
	m.saved = append(m.saved, o)
	return nil
}

func (m *memStore) GetOrder(context.Context, string) (*domain.Order, error) { return nil, nil }

func (m *memStore) ListOrders(context.Context, domain.OrderStatus) ([]domain.Order, error) {
	return nil, nil
}

func (m *memStore) UpdateOrder(_ context.Context, o *domain.Order) error {
	m.updated = append(m.updated, o)
	return nil
}

func (m *memStore) SaveExecutions(_ context.Context, venueID, _ string, execs []domain.Execution) error {
	m.execs[venueID] = append(m.execs[venueID], execs...)
	return nil
}

func (m *memStore) ListExecutions(context.Context, string, time.Time, time.Time) ([]store.ExecutionRow, error) {
	return nil, nil
}

var es2025 = &domain.Instrument{Code: "ES2025", PointValue: 50, Type: domain.InstrumentFuture}

func TestSubmitJournalsOrder(t *testing.T) {
	fb := &fakeBroker{cash: 50000, value: 100000}
	ms := newMemStore()
	e := New(fb, ms, ms, nil, nil)

	o, err := e.Submit(context.Background(), broker.Intent{
		Instrument: es2025, Size: 2, Price: 100,
	}, domain.SideBuy)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(fb.bought) != 1 {
		t.Fatalf("buys = %d, want 1", len(fb.bought))
	}
	if len(ms.saved) != 1 || ms.saved[0].VenueID != o.VenueID {
		t.Errorf("journaled orders = %d", len(ms.saved))
	}

	if _, err := e.Submit(context.Background(), broker.Intent{
		Instrument: es2025, Size: 1, Price: 100,
	}, domain.SideSell); err != nil {
		t.Fatalf("Submit sell: %v", err)
	}
	if len(fb.sold) != 1 {
		t.Fatalf("sells = %d, want 1", len(fb.sold))
	}
}

func TestSubmitRejectedByRisk(t *testing.T) {
	fb := &fakeBroker{cash: 50000, value: 100000}
	ms := newMemStore()
	e := New(fb, ms, ms, NewRiskManager(0.10, 0), nil)

	// Notional 20000 exceeds 10% of 100000.
	_, err := e.Submit(context.Background(), broker.Intent{
		Instrument: es2025, Size: 200, Price: 100,
	}, domain.SideBuy)
	if err == nil {
		t.Fatal("expected risk rejection")
	}
	if !strings.Contains(err.Error(), "risk check") {
		t.Errorf("error = %v", err)
	}
	if len(fb.bought) != 0 {
		t.Errorf("order reached broker despite rejection")
	}
	if len(ms.saved) != 0 {
		t.Errorf("rejected order was journaled")
	}
}

func TestTickDrainsToBoundary(t *testing.T) {
	filled := newTestOrder(es2025, domain.SideBuy, 3, 100)
	filled.VenueID = "FAKE-1"
	filled.Submit()
	filled.Accept()
	ts := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	filled.Execute(ts, 3, 100, 0, 0, 0, 3, 300, 6, 150, 0, 3, 100)
	filled.Complete()

	after := newTestOrder(es2025, domain.SideSell, 1, 101)
	after.VenueID = "FAKE-2"
	after.Submit()

	fb := &fakeBroker{queue: []*domain.Order{filled, nil, after}}
	ms := newMemStore()
	e := New(fb, ms, ms, nil, nil)

	seen := e.Tick(context.Background())
	if len(seen) != 1 {
		t.Fatalf("seen = %d, want 1 (stop at boundary)", len(seen))
	}
	if seen[0].VenueID != "FAKE-1" {
		t.Errorf("seen order = %s", seen[0].VenueID)
	}
	if len(ms.updated) != 1 {
		t.Errorf("journal updates = %d, want 1", len(ms.updated))
	}
	if got := len(ms.execs["FAKE-1"]); got != 1 {
		t.Errorf("journaled executions = %d, want 1", got)
	}

	// The order left after the boundary is picked up next tick.
	seen = e.Tick(context.Background())
	if len(seen) != 1 || seen[0].VenueID != "FAKE-2" {
		t.Fatalf("second tick = %v", seen)
	}
}

func TestTickJournalsOnlyNewExecutions(t *testing.T) {
	ts := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)

	o := newTestOrder(es2025, domain.SideBuy, 5, 100)
	o.VenueID = "FAKE-1"
	o.Submit()
	o.Accept()
	o.Execute(ts, 2, 100, 0, 0, 0, 2, 200, 4, 100, 0, 2, 100)
	first := o.Clone()

	o.Execute(ts.Add(time.Minute), 3, 100, 0, 0, 0, 3, 300, 6, 150, 0, 5, 100)
	o.Complete()
	second := o.Clone()

	fb := &fakeBroker{queue: []*domain.Order{first, second, nil}}
	ms := newMemStore()
	e := New(fb, ms, ms, nil, nil)

	e.Tick(context.Background())
	if got := len(ms.execs["FAKE-1"]); got != 2 {
		t.Fatalf("journaled executions = %d, want 2 (no duplicates)", got)
	}
}

func TestRealizedPnLAccumulates(t *testing.T) {
	ts := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)

	o := newTestOrder(es2025, domain.SideSell, 3, 104)
	o.VenueID = "FAKE-1"
	o.Submit()
	o.Accept()
	// Closing 3 at 104 from entry 100: pnl 600, closing commission 6.
	o.Execute(ts, -3, 104, -3, 300, 6, 0, 0, 0, 0, 600, 0, 100)
	o.Complete()

	fb := &fakeBroker{queue: []*domain.Order{o.Clone(), nil}}
	e := New(fb, nil, nil, nil, nil)

	e.Tick(context.Background())
	if got := e.RealizedPnL(); got != 594 {
		t.Errorf("realized = %v, want 594", got)
	}
}

func TestRiskManagerDailyLoss(t *testing.T) {
	rm := NewRiskManager(0, 0.02)
	acct := &domain.AccountInfo{Cash: 50000, NetWorth: 100000}
	intent := broker.Intent{Instrument: es2025, Size: 1, Price: 100}

	if err := rm.CheckOrder(intent, domain.SideBuy, acct, -1000); err != nil {
		t.Errorf("loss under limit rejected: %v", err)
	}
	if err := rm.CheckOrder(intent, domain.SideBuy, acct, -2500); err == nil {
		t.Error("loss over limit accepted")
	}
	// Profits never trip the loss check.
	if err := rm.CheckOrder(intent, domain.SideBuy, acct, 5000); err != nil {
		t.Errorf("profitable day rejected: %v", err)
	}
}

func TestRiskManagerSkipsWithoutPrice(t *testing.T) {
	rm := NewRiskManager(0.10, 0)
	acct := &domain.AccountInfo{NetWorth: 100000}

	// Market order with no reference price cannot be notional-checked.
	err := rm.CheckOrder(broker.Intent{Instrument: es2025, Size: 1000}, domain.SideBuy, acct, 0)
	if err != nil {
		t.Errorf("priceless intent rejected: %v", err)
	}

	// Limit price serves as the reference when Price is unset.
	err = rm.CheckOrder(broker.Intent{Instrument: es2025, Size: 1000, LimitPrice: 100}, domain.SideBuy, acct, 0)
	if err == nil {
		t.Error("oversized limit order accepted")
	}
}
