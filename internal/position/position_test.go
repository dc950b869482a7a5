package position

import (
	"fmt"
	"math"
	"sync"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestUpdateWeightedAverage(t *testing.T) {
	p := &Position{}

	fills := []struct{ size, price float64 }{
		{10, 100},
		{5, 110},
		{5, 90},
	}
	var sumSize, sumCost float64
	for _, f := range fills {
		p.Update(f.size, f.price)
		sumSize += f.size
		sumCost += f.size * f.price
	}

	if p.Size != 20 {
		t.Fatalf("Size = %v, want 20", p.Size)
	}
	want := sumCost / sumSize
	if !almostEqual(p.Price, want) {
		t.Errorf("Price = %v, want size-weighted mean %v", p.Price, want)
	}
}

func TestUpdateCloseKeepsEntryPrice(t *testing.T) {
	p := &Position{}
	p.Update(10, 100)

	size, price, opened, closed := p.Update(-4, 110)
	if size != 6 || !almostEqual(price, 100) {
		t.Errorf("after partial close: size=%v price=%v, want 6/100", size, price)
	}
	if opened != 0 || closed != -4 {
		t.Errorf("split = opened %v closed %v, want 0/-4", opened, closed)
	}

	// Closing to exactly flat keeps the entry price for P&L of the leg.
	size, price, opened, closed = p.Update(-6, 120)
	if size != 0 || !almostEqual(price, 100) {
		t.Errorf("after full close: size=%v price=%v, want 0/100", size, price)
	}
	if opened != 0 || closed != -6 {
		t.Errorf("split = opened %v closed %v, want 0/-6", opened, closed)
	}
}

func TestUpdateReopenAfterFlat(t *testing.T) {
	p := &Position{}
	p.Update(10, 100)
	p.Update(-10, 120)

	// Average after reopening reflects only fills since the flat point.
	size, price, opened, closed := p.Update(3, 150)
	if size != 3 || !almostEqual(price, 150) {
		t.Errorf("reopened: size=%v price=%v, want 3/150", size, price)
	}
	if opened != 3 || closed != 0 {
		t.Errorf("split = opened %v closed %v, want 3/0", opened, closed)
	}
}

func TestUpdateReversalSplitsFill(t *testing.T) {
	p := &Position{}
	p.Update(5, 100)

	// Long 5 receives a sell of 8: closed 5 at the old price, opened -3 at
	// the fill price.
	size, price, opened, closed := p.Update(-8, 110)
	if size != -3 {
		t.Errorf("size = %v, want -3", size)
	}
	if !almostEqual(price, 110) {
		t.Errorf("price = %v, want fill price 110", price)
	}
	if closed != -5 || opened != -3 {
		t.Errorf("split = opened %v closed %v, want -3/-5", opened, closed)
	}
}

func TestUpdateShortSide(t *testing.T) {
	p := &Position{}
	p.Update(-10, 50)
	p.Update(-10, 60)

	if p.Size != -20 || !almostEqual(p.Price, 55) {
		t.Fatalf("short position = %v @ %v, want -20 @ 55", p.Size, p.Price)
	}

	size, price, opened, closed := p.Update(15, 52)
	if size != -5 || !almostEqual(price, 55) {
		t.Errorf("after cover: size=%v price=%v, want -5/55", size, price)
	}
	if opened != 0 || closed != 15 {
		t.Errorf("split = opened %v closed %v, want 0/15", opened, closed)
	}
}

func TestLedgerApplyCapturesPriorPrice(t *testing.T) {
	l := NewLedger()
	l.Apply("AAPL", 10, 100)

	u := l.Apply("AAPL", -4, 110)
	if u.PriorPrice != 100 {
		t.Errorf("PriorPrice = %v, want 100", u.PriorPrice)
	}
	if u.Size != 6 || u.Closed != -4 || u.Opened != 0 {
		t.Errorf("update = %+v", u)
	}
}

func TestLedgerGetUnknownIsZero(t *testing.T) {
	l := NewLedger()
	p := l.Get("MISSING")
	if p.Size != 0 || p.Price != 0 {
		t.Errorf("zero position expected, got %+v", p)
	}
}

func TestLedgerConcurrentUpdates(t *testing.T) {
	l := NewLedger()
	const perInstrument = 200

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		code := fmt.Sprintf("SYM%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perInstrument; j++ {
				l.Apply(code, 1, 100)
			}
		}()
	}
	wg.Wait()

	for i := 0; i < 4; i++ {
		code := fmt.Sprintf("SYM%d", i)
		if got := l.Get(code).Size; got != perInstrument {
			t.Errorf("%s size = %v, want %v", code, got, perInstrument)
		}
	}
}

func TestLedgerSnapshotIsCopy(t *testing.T) {
	l := NewLedger()
	l.Apply("ES", 2, 4000)

	snap := l.Snapshot()
	if p := snap["ES"]; p.Size != 2 {
		t.Fatalf("snapshot ES size = %v, want 2", p.Size)
	}
	snap["ES"] = Position{Size: 99}
	if got := l.Get("ES").Size; got != 2 {
		t.Errorf("ledger mutated through snapshot: size = %v", got)
	}
}
