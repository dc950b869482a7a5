package broker

import (
	"sync"

	"tradelink/internal/domain"
)

// registry maps venue order identifiers to the adapter's authoritative order
// records. Entries persist for the adapter's lifetime: identifiers are
// venue-assigned and not reused within a session.
//
// A lookup miss is not an error — it marks an event for an order this
// adapter did not originate (the venue reports third-party activity on the
// same account). The lock guards only the map; callers must not hold it
// across accounting or notification work.
type registry struct {
	mu   sync.Mutex
	byID map[string]*domain.Order
}

func newRegistry() *registry {
	return &registry{byID: make(map[string]*domain.Order)}
}

func (r *registry) insert(id string, o *domain.Order) {
	r.mu.Lock()
	r.byID[id] = o
	r.mu.Unlock()
}

func (r *registry) lookup(id string) (*domain.Order, bool) {
	r.mu.Lock()
	o, ok := r.byID[id]
	r.mu.Unlock()
	return o, ok
}
