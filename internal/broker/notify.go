package broker

import (
	"sync"

	"tradelink/internal/domain"
)

// notifications is the queue of order snapshots handed to the engine.
// Insertion order is delivery order; a nil entry marks a tick boundary.
// Both the caller goroutine (submission) and the venue callback goroutine
// push; only the caller pops. Neither side ever blocks.
type notifications struct {
	mu    sync.Mutex
	items []*domain.Order
}

// push appends a snapshot. Callers pass an already-cloned order.
func (n *notifications) push(o *domain.Order) {
	n.mu.Lock()
	n.items = append(n.items, o)
	n.mu.Unlock()
}

// pushBoundary appends the tick-boundary sentinel.
func (n *notifications) pushBoundary() {
	n.push(nil)
}

// pop removes and returns the oldest entry. ok is false when the queue is
// empty; a nil order with ok true is a boundary.
func (n *notifications) pop() (*domain.Order, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if len(n.items) == 0 {
		return nil, false
	}
	o := n.items[0]
	n.items = n.items[1:]
	return o, true
}
