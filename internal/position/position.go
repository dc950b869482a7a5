// Package position implements fill-driven position accounting with
// weighted-average entry pricing. The venue does not report positions that
// have gone flat, so the ledger here — updated from execution events only —
// is the authoritative view of what the adapter holds.
package position

import "sync"

// Position is a signed per-instrument holding. Size is the sum of all signed
// fills since start; Price is the weighted-average entry price of the open
// portion.
type Position struct {
	Size  float64
	Price float64
}

// Update applies a signed fill of size at price and returns the new size and
// average price together with the opened/closed split of the fill.
//
// closed is the portion of size that reduces the existing position toward
// zero (opposite sign to the prior size, bounded by it); opened is the
// remainder extending or creating a position in the fill's direction. The
// average price blends only over the opened portion; reducing a position
// leaves it untouched, so later closes settle against the original entry.
func (p *Position) Update(size, price float64) (newSize, newPrice, opened, closed float64) {
	prior := p.Size
	p.Size += size

	switch {
	case prior == 0:
		opened = size
		if size != 0 {
			p.Price = price
		}
	case (prior > 0) == (size > 0):
		// Same direction: the whole fill opens.
		opened = size
		p.Price = (p.Price*prior + size*price) / p.Size
	case p.Size == 0:
		// Exact flat: the whole fill closes, entry price kept for P&L.
		closed = size
	case (p.Size > 0) == (prior > 0):
		// Partial reduction.
		closed = size
	default:
		// Reversal: close out the prior position, open the rest.
		closed = -prior
		opened = p.Size
		p.Price = price
	}

	return p.Size, p.Price, opened, closed
}

// Update is the result of applying one fill through the ledger.
type Update struct {
	Size       float64
	Price      float64
	Opened     float64
	Closed     float64
	PriorPrice float64 // average price before the fill, for closed-leg P&L
}

// Ledger holds the per-instrument positions. A single lock serializes every
// read-modify-write; entries are created lazily on first access and never
// removed (a flat position stays and may be reused).
type Ledger struct {
	mu        sync.Mutex
	positions map[string]*Position
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{positions: make(map[string]*Position)}
}

// get returns the live entry for code, creating a zero position if needed.
// Callers must hold l.mu.
func (l *Ledger) get(code string) *Position {
	p, ok := l.positions[code]
	if !ok {
		p = &Position{}
		l.positions[code] = p
	}
	return p
}

// Get returns a copy of the position for code. Unknown instruments report a
// zero position.
func (l *Ledger) Get(code string) Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	return *l.get(code)
}

// Apply runs one fill against the instrument's position, capturing the
// pre-fill average price. The whole update happens under the ledger lock.
func (l *Ledger) Apply(code string, size, price float64) Update {
	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.get(code)
	prior := p.Price
	newSize, newPrice, opened, closed := p.Update(size, price)
	return Update{
		Size:       newSize,
		Price:      newPrice,
		Opened:     opened,
		Closed:     closed,
		PriorPrice: prior,
	}
}

// Snapshot returns a copy of every position, including flat ones.
func (l *Ledger) Snapshot() map[string]Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]Position, len(l.positions))
	for code, p := range l.positions {
		out[code] = *p
	}
	return out
}
