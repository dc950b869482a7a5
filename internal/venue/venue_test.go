package venue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"
)

func TestOrderRequestApply(t *testing.T) {
	req := &OrderRequest{}

	if !req.Apply("HideVolume", 5.0) {
		t.Error("Apply(HideVolume) = false, want true")
	}
	if req.HideVolume != 5 {
		t.Errorf("HideVolume = %v, want 5", req.HideVolume)
	}
	if !req.Apply("ExtendedInfo", "TradeId 7") {
		t.Error("Apply(ExtendedInfo) = false, want true")
	}
	if req.ExtendedInfo != "TradeId 7" {
		t.Errorf("ExtendedInfo = %q", req.ExtendedInfo)
	}

	// Unknown fields are dropped, not errors.
	if req.Apply("NoSuchField", 1.0) {
		t.Error("Apply(NoSuchField) = true, want false")
	}
	// Type mismatches are dropped too.
	if req.Apply("HideVolume", "not a number") {
		t.Error("Apply with wrong type = true, want false")
	}
	if req.HideVolume != 5 {
		t.Errorf("HideVolume changed by rejected Apply: %v", req.HideVolume)
	}
}

func TestMockSessionAssignsSequentialIDs(t *testing.T) {
	s := NewMockSession()
	if err := s.Start(context.Background(), nopHandler{}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	id1, err := s.SendOrder(OrderRequest{SymbolCode: "AAPL", Volume: 10})
	if err != nil {
		t.Fatalf("SendOrder: %v", err)
	}
	id2, err := s.SendOrder(OrderRequest{SymbolCode: "MSFT", Volume: 5})
	if err != nil {
		t.Fatalf("SendOrder: %v", err)
	}
	if id1 == id2 {
		t.Errorf("identifiers must be unique, got %q twice", id1)
	}
	if len(s.Sent) != 2 || s.Sent[0].SymbolCode != "AAPL" {
		t.Errorf("Sent = %+v", s.Sent)
	}
}

func TestMockSessionFailNext(t *testing.T) {
	s := NewMockSession()
	if err := s.Start(context.Background(), nopHandler{}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	boom := errors.New("venue down")
	s.FailNext = boom
	if _, err := s.SendOrder(OrderRequest{}); !errors.Is(err, boom) {
		t.Errorf("SendOrder error = %v, want %v", err, boom)
	}
	// The failure is one-shot.
	if _, err := s.SendOrder(OrderRequest{}); err != nil {
		t.Errorf("second SendOrder: %v", err)
	}
}

func TestMockSessionClosed(t *testing.T) {
	s := NewMockSession()
	if _, err := s.SendOrder(OrderRequest{}); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("SendOrder before Start = %v, want ErrSessionClosed", err)
	}
}

func TestGatewayDispatchEvents(t *testing.T) {
	s := NewGatewaySession("ws://example/trade", "", slog.Default())
	rec := &recordingHandler{}
	s.handler = rec

	frames := []string{
		`{"op":"event","kind":"accepted","order_id":"G1"}`,
		`{"op":"event","kind":"partial_fill","order_id":"G1","volume":4,"price":110}`,
		`{"op":"event","kind":"fill","order_id":"G1","volume":6,"price":120}`,
		`{"op":"event","kind":"cancelled","order_id":"G2"}`,
		`{"op":"event","kind":"balance","account":"ACC","cash":5000,"net_worth":10000}`,
		`{"op":"event","kind":"positions","account":"ACC"}`,
		`{"op":"event","kind":"shutdown"}`,
	}
	for _, raw := range frames {
		var f gatewayFrame
		if err := json.Unmarshal([]byte(raw), &f); err != nil {
			t.Fatalf("unmarshal %s: %v", raw, err)
		}
		s.handleFrame(f)
	}

	want := []string{
		"accepted:G1",
		"partial:G1:4:110",
		"fill:G1:6:120",
		"cancelled:G2",
		"balance:ACC:5000:10000",
		"positions:ACC",
		"shutdown",
	}
	if len(rec.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", rec.calls, want)
	}
	for i := range want {
		if rec.calls[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, rec.calls[i], want[i])
		}
	}
}

func TestGatewayOrderFrameDates(t *testing.T) {
	req := OrderRequest{SymbolCode: "SAN", Volume: 100}
	if o := toGatewayOrder(req); o.ValidDate != "" {
		t.Errorf("ValidDate = %q for unrestricted order, want empty", o.ValidDate)
	}
}

// nopHandler satisfies Handler with no behavior.
type nopHandler struct{}

func (nopHandler) OrderAccepted(OrderEvent)          {}
func (nopHandler) OrderCancelled(OrderEvent)         {}
func (nopHandler) OrderPartiallyExecuted(OrderEvent) {}
func (nopHandler) OrderExecuted(OrderEvent)          {}
func (nopHandler) BalanceChanged(BalanceEvent)       {}
func (nopHandler) OrderModified(OrderEvent)          {}
func (nopHandler) OrderLocationChanged(OrderEvent)   {}
func (nopHandler) OpenPositionsChanged(string)       {}
func (nopHandler) ClosedOperations(string)           {}
func (nopHandler) ServerShutdown()                   {}
func (nopHandler) InternalEvent(int, int, int)       {}

// recordingHandler captures the callback sequence as strings.
type recordingHandler struct {
	calls []string
}

func (r *recordingHandler) OrderAccepted(ev OrderEvent) {
	r.calls = append(r.calls, "accepted:"+ev.OrderID)
}
func (r *recordingHandler) OrderCancelled(ev OrderEvent) {
	r.calls = append(r.calls, "cancelled:"+ev.OrderID)
}
func (r *recordingHandler) OrderPartiallyExecuted(ev OrderEvent) {
	r.calls = append(r.calls, fmtEvent("partial", ev))
}
func (r *recordingHandler) OrderExecuted(ev OrderEvent) {
	r.calls = append(r.calls, fmtEvent("fill", ev))
}
func (r *recordingHandler) BalanceChanged(ev BalanceEvent) {
	r.calls = append(r.calls, fmtBalance(ev))
}
func (r *recordingHandler) OrderModified(ev OrderEvent)   { r.calls = append(r.calls, "modified:"+ev.OrderID) }
func (r *recordingHandler) OrderLocationChanged(ev OrderEvent) {
	r.calls = append(r.calls, "location:"+ev.OrderID)
}
func (r *recordingHandler) OpenPositionsChanged(account string) {
	r.calls = append(r.calls, "positions:"+account)
}
func (r *recordingHandler) ClosedOperations(account string) {
	r.calls = append(r.calls, "closed_ops:"+account)
}
func (r *recordingHandler) ServerShutdown()              { r.calls = append(r.calls, "shutdown") }
func (r *recordingHandler) InternalEvent(p1, p2, p3 int) { r.calls = append(r.calls, "internal") }

func fmtEvent(kind string, ev OrderEvent) string {
	return fmt.Sprintf("%s:%s:%v:%v", kind, ev.OrderID, ev.Volume, ev.Price)
}

func fmtBalance(ev BalanceEvent) string {
	return fmt.Sprintf("balance:%s:%v:%v", ev.Account, ev.Cash, ev.NetWorth)
}
