package venue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Compile-time interface check.
var _ Session = (*GatewaySession)(nil)

// ErrSendTimeout is returned when the gateway does not acknowledge an order
// within the configured window.
var ErrSendTimeout = errors.New("venue: order acknowledgement timed out")

// gatewayFrame is the JSON envelope of the gateway protocol, both directions.
type gatewayFrame struct {
	Op  string `json:"op"`
	Ref uint64 `json:"ref,omitempty"`

	// send_order / order_ack
	Order   *gatewayOrder `json:"order,omitempty"`
	OrderID string        `json:"order_id,omitempty"`
	Error   string        `json:"error,omitempty"`

	// accounts
	Accounts []gatewayAccount `json:"accounts,omitempty"`

	// event
	Kind     string  `json:"kind,omitempty"`
	Volume   float64 `json:"volume,omitempty"`
	Price    float64 `json:"price,omitempty"`
	Account  string  `json:"account,omitempty"`
	Cash     float64 `json:"cash,omitempty"`
	NetWorth float64 `json:"net_worth,omitempty"`
	P1       int     `json:"p1,omitempty"`
	P2       int     `json:"p2,omitempty"`
	P3       int     `json:"p3,omitempty"`
}

type gatewayOrder struct {
	Account           string  `json:"account"`
	SymbolCode        string  `json:"symbol"`
	OrderType         int     `json:"order_type"`
	OrderSide         int     `json:"order_side"`
	Volume            float64 `json:"volume"`
	Price             float64 `json:"price"`
	StopPrice         float64 `json:"stop_price"`
	VolumeRestriction int     `json:"volume_restriction"`
	TimeRestriction   int     `json:"time_restriction"`
	ValidDate         string  `json:"valid_date,omitempty"` // YYYY-MM-DD
	HideVolume        float64 `json:"hide_volume,omitempty"`
	MinVolume         float64 `json:"min_volume,omitempty"`
	UserOrderID       string  `json:"user_order_id,omitempty"`
	ExtendedInfo      string  `json:"extended_info,omitempty"`
}

type gatewayAccount struct {
	ID       string  `json:"id"`
	Cash     float64 `json:"cash"`
	NetWorth float64 `json:"net_worth"`
}

// GatewaySession implements Session over a websocket trading gateway. It
// owns the connection lifecycle: reconnection with backoff, a single reader
// goroutine that dispatches event frames into the Handler, and serialized
// writes. Order placement is request/acknowledge: SendOrder writes a frame
// and blocks until the gateway returns the assigned identifier.
type GatewaySession struct {
	url     string
	token   string
	log     *slog.Logger
	handler Handler

	AckTimeout   time.Duration
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	MaxReconnect time.Duration

	mu       sync.Mutex
	conn     *websocket.Conn
	accounts []Account
	pending  map[uint64]chan gatewayFrame
	nextRef  uint64
	cancel   context.CancelFunc
	ready    chan struct{} // closed once the accounts frame arrives

	writeMu sync.Mutex
	wg      sync.WaitGroup
}

// NewGatewaySession creates a session for the given gateway URL.
func NewGatewaySession(url, token string, log *slog.Logger) *GatewaySession {
	return &GatewaySession{
		url:          url,
		token:        token,
		log:          log.With("session", "gateway"),
		AckTimeout:   10 * time.Second,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  60 * time.Second,
		MaxReconnect: 30 * time.Second,
		pending:      make(map[uint64]chan gatewayFrame),
		ready:        make(chan struct{}),
	}
}

// Start connects to the gateway and blocks until the account list has been
// received, then keeps the connection alive in the background.
func (s *GatewaySession) Start(ctx context.Context, h Handler) error {
	s.mu.Lock()
	s.handler = h
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	if err := s.connect(ctx); err != nil {
		return err
	}

	s.wg.Add(1)
	go s.runLoop(ctx)

	select {
	case <-s.ready:
	case <-time.After(s.AckTimeout):
		return fmt.Errorf("gateway %s: no accounts frame within %s", s.url, s.AckTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Stop tears down the connection and the reader goroutine.
func (s *GatewaySession) Stop() error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.closeConn()
	s.wg.Wait()
	return nil
}

// Accounts returns the accounts announced by the gateway at connect time.
func (s *GatewaySession) Accounts() []Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Account, len(s.accounts))
	copy(out, s.accounts)
	return out
}

// SendOrder writes a send_order frame and waits for the matching ack.
func (s *GatewaySession) SendOrder(req OrderRequest) (string, error) {
	s.mu.Lock()
	s.nextRef++
	ref := s.nextRef
	ack := make(chan gatewayFrame, 1)
	s.pending[ref] = ack
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, ref)
		s.mu.Unlock()
	}()

	frame := gatewayFrame{Op: "send_order", Ref: ref, Order: toGatewayOrder(req)}
	if err := s.writeFrame(frame); err != nil {
		return "", fmt.Errorf("sending order for %s: %w", req.SymbolCode, err)
	}

	select {
	case resp := <-ack:
		if resp.Error != "" {
			return "", fmt.Errorf("gateway rejected order for %s: %s", req.SymbolCode, resp.Error)
		}
		return resp.OrderID, nil
	case <-time.After(s.AckTimeout):
		return "", ErrSendTimeout
	}
}

func toGatewayOrder(req OrderRequest) *gatewayOrder {
	o := &gatewayOrder{
		Account:           req.Account,
		SymbolCode:        req.SymbolCode,
		OrderType:         int(req.OrderType),
		OrderSide:         int(req.OrderSide),
		Volume:            req.Volume,
		Price:             req.Price,
		StopPrice:         req.StopPrice,
		VolumeRestriction: int(req.VolumeRestriction),
		TimeRestriction:   int(req.TimeRestriction),
		HideVolume:        req.HideVolume,
		MinVolume:         req.MinVolume,
		UserOrderID:       req.UserOrderID,
		ExtendedInfo:      req.ExtendedInfo,
	}
	if !req.ValidDate.IsZero() {
		// The gateway keeps dates only; time of day would be discarded anyway.
		o.ValidDate = req.ValidDate.Format("2006-01-02")
	}
	return o
}

func (s *GatewaySession) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: s.DialTimeout}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dialing gateway %s: %w", s.url, err)
	}

	if s.token != "" {
		auth := struct {
			Op    string `json:"op"`
			Token string `json:"token"`
		}{Op: "auth", Token: s.token}
		if err := conn.WriteJSON(auth); err != nil {
			conn.Close()
			return fmt.Errorf("authenticating with gateway: %w", err)
		}
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	s.log.Info("gateway connected", "url", s.url)
	return nil
}

// runLoop reads frames until the context is cancelled, reconnecting with
// exponential backoff on read failures.
func (s *GatewaySession) runLoop(ctx context.Context) {
	defer s.wg.Done()

	retry := 0
	for {
		s.readFrames(ctx)
		if ctx.Err() != nil {
			return
		}

		delay := time.Second << retry
		if delay > s.MaxReconnect {
			delay = s.MaxReconnect
		} else if retry < 10 {
			retry++
		}
		s.log.Warn("gateway disconnected, reconnecting", "delay", delay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		if err := s.connect(ctx); err != nil {
			s.log.Warn("gateway reconnect failed", "err", err)
			continue
		}
		retry = 0
	}
}

func (s *GatewaySession) readFrames(ctx context.Context) {
	for {
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(s.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.log.Warn("gateway read error", "err", err)
			}
			s.closeConn()
			return
		}

		var frame gatewayFrame
		if err := json.Unmarshal(msg, &frame); err != nil {
			s.log.Warn("dropping malformed gateway frame", "err", err)
			continue
		}
		s.handleFrame(frame)
	}
}

func (s *GatewaySession) handleFrame(frame gatewayFrame) {
	switch frame.Op {
	case "order_ack":
		s.mu.Lock()
		ack, ok := s.pending[frame.Ref]
		s.mu.Unlock()
		if ok {
			ack <- frame
		}

	case "accounts":
		s.mu.Lock()
		s.accounts = s.accounts[:0]
		for _, a := range frame.Accounts {
			s.accounts = append(s.accounts, Account(a))
		}
		select {
		case <-s.ready:
		default:
			close(s.ready)
		}
		s.mu.Unlock()

	case "event":
		s.dispatchEvent(frame)

	default:
		s.log.Debug("ignoring gateway frame", "op", frame.Op)
	}
}

// dispatchEvent fans one event frame out to the handler. This is the
// venue's delivery path: it runs on the reader goroutine.
func (s *GatewaySession) dispatchEvent(frame gatewayFrame) {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h == nil {
		return
	}

	ev := OrderEvent{OrderID: frame.OrderID, Volume: frame.Volume, Price: frame.Price}
	switch frame.Kind {
	case "accepted":
		h.OrderAccepted(ev)
	case "cancelled":
		h.OrderCancelled(ev)
	case "partial_fill":
		h.OrderPartiallyExecuted(ev)
	case "fill":
		h.OrderExecuted(ev)
	case "balance":
		h.BalanceChanged(BalanceEvent{
			Account:  frame.Account,
			Cash:     frame.Cash,
			NetWorth: frame.NetWorth,
		})
	case "modified":
		h.OrderModified(ev)
	case "order_location":
		h.OrderLocationChanged(ev)
	case "positions":
		h.OpenPositionsChanged(frame.Account)
	case "closed_operations":
		h.ClosedOperations(frame.Account)
	case "shutdown":
		h.ServerShutdown()
	case "internal":
		h.InternalEvent(frame.P1, frame.P2, frame.P3)
	default:
		s.log.Debug("ignoring gateway event", "kind", frame.Kind)
	}
}

func (s *GatewaySession) writeFrame(frame gatewayFrame) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrSessionClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteJSON(frame)
}

func (s *GatewaySession) closeConn() {
	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.mu.Unlock()
}
