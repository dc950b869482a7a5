package venue

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Compile-time interface check.
var _ Session = (*MockSession)(nil)

// ErrSessionClosed is returned by SendOrder on a session that is not running.
var ErrSessionClosed = errors.New("venue: session closed")

// MockSession is an in-memory Session for tests and paper mode. It assigns
// order identifiers synchronously and lets the caller drive the callback
// surface through the Emit methods, which deliver events exactly as a real
// venue would: from a goroutine other than the caller's, in any order the
// test chooses.
type MockSession struct {
	mu       sync.Mutex
	handler  Handler
	running  bool
	nextID   int
	accounts []Account

	// Sent records every order request in submission order.
	Sent []OrderRequest

	// FailNext makes the next SendOrder return this error once.
	FailNext error
}

// NewMockSession returns a mock session exposing the given accounts.
func NewMockSession(accounts ...Account) *MockSession {
	if len(accounts) == 0 {
		accounts = []Account{{ID: "PAPER", Cash: 100000, NetWorth: 100000}}
	}
	return &MockSession{accounts: accounts}
}

// Start stores the handler and marks the session live.
func (s *MockSession) Start(_ context.Context, h Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
	s.running = true
	return nil
}

// Stop marks the session closed.
func (s *MockSession) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return nil
}

// Accounts returns the configured accounts.
func (s *MockSession) Accounts() []Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Account, len(s.accounts))
	copy(out, s.accounts)
	return out
}

// SendOrder records the request and returns a synthetic identifier.
func (s *MockSession) SendOrder(req OrderRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return "", ErrSessionClosed
	}
	if err := s.FailNext; err != nil {
		s.FailNext = nil
		return "", err
	}

	s.nextID++
	id := fmt.Sprintf("SIM-%d", s.nextID)
	s.Sent = append(s.Sent, req)
	return id, nil
}

// deliver runs fn on a fresh goroutine, mimicking the venue's delivery
// thread, and waits for it to finish so tests stay deterministic.
func (s *MockSession) deliver(fn func(h Handler)) {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h == nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		fn(h)
	}()
	<-done
}

// EmitAccepted delivers an accepted-in-market event.
func (s *MockSession) EmitAccepted(orderID string) {
	s.deliver(func(h Handler) { h.OrderAccepted(OrderEvent{OrderID: orderID}) })
}

// EmitCancelled delivers a cancelled event.
func (s *MockSession) EmitCancelled(orderID string) {
	s.deliver(func(h Handler) { h.OrderCancelled(OrderEvent{OrderID: orderID}) })
}

// EmitPartialFill delivers a partial-execution event.
func (s *MockSession) EmitPartialFill(orderID string, volume, price float64) {
	s.deliver(func(h Handler) {
		h.OrderPartiallyExecuted(OrderEvent{OrderID: orderID, Volume: volume, Price: price})
	})
}

// EmitFill delivers a total-execution event.
func (s *MockSession) EmitFill(orderID string, volume, price float64) {
	s.deliver(func(h Handler) {
		h.OrderExecuted(OrderEvent{OrderID: orderID, Volume: volume, Price: price})
	})
}

// EmitBalance delivers a balance-change event.
func (s *MockSession) EmitBalance(account string, cash, netWorth float64) {
	s.deliver(func(h Handler) {
		h.BalanceChanged(BalanceEvent{Account: account, Cash: cash, NetWorth: netWorth})
	})
}

// EmitModified delivers an order-modification event.
func (s *MockSession) EmitModified(orderID string) {
	s.deliver(func(h Handler) { h.OrderModified(OrderEvent{OrderID: orderID}) })
}

// EmitPositionsChanged delivers a position-snapshot refresh.
func (s *MockSession) EmitPositionsChanged(account string) {
	s.deliver(func(h Handler) { h.OpenPositionsChanged(account) })
}
