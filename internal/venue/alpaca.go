package venue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"

	"tradelink/internal/util"
)

// Compile-time interface check.
var _ Session = (*AlpacaSession)(nil)

// AlpacaSession implements Session on top of the Alpaca trading API. Order
// placement maps the venue-native request onto an Alpaca order; the trade
// updates stream is translated into the Handler callback surface.
//
// Alpaca has no valid-until order date; date-restricted requests degrade to
// good-till-cancelled. Alpaca also reports expirations as a distinct event,
// but they are delivered as cancellations to keep one behavior across
// sessions.
type AlpacaSession struct {
	client  *alpaca.Client
	log     *slog.Logger
	refresh *util.RateLimiter // caps account refreshes after fills

	mu      sync.Mutex
	account Account
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewAlpacaSession creates a session against the given Alpaca endpoint.
func NewAlpacaSession(apiKey, apiSecret, baseURL string, log *slog.Logger) *AlpacaSession {
	return &AlpacaSession{
		client: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
			BaseURL:   baseURL,
		}),
		log:     log.With("session", "alpaca"),
		refresh: util.NewRateLimiter(30),
	}
}

// Start fetches the account and begins streaming trade updates into h.
func (s *AlpacaSession) Start(ctx context.Context, h Handler) error {
	var acct *alpaca.Account
	err := util.Retry(ctx, 3, time.Second, func() error {
		var err error
		acct, err = s.client.GetAccount()
		return err
	})
	if err != nil {
		return fmt.Errorf("fetching alpaca account: %w", err)
	}

	s.mu.Lock()
	s.account = Account{
		ID:       acct.ID,
		Cash:     acct.Cash.InexactFloat64(),
		NetWorth: acct.Equity.InexactFloat64(),
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// The empty request subscribes to every trade update on the account.
		err := s.client.StreamTradeUpdates(ctx, func(tu alpaca.TradeUpdate) {
			s.dispatch(ctx, h, tu)
		}, alpaca.StreamTradeUpdatesRequest{})
		if err != nil && ctx.Err() == nil {
			s.log.Error("trade update stream ended", "err", err)
		}
	}()

	s.log.Info("session started", "account", acct.ID)
	return nil
}

// Stop cancels the trade updates stream and waits for it to drain.
func (s *AlpacaSession) Stop() error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	return nil
}

// Accounts returns the single Alpaca account behind this session.
func (s *AlpacaSession) Accounts() []Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return []Account{s.account}
}

// SendOrder places the order and returns Alpaca's order ID.
func (s *AlpacaSession) SendOrder(req OrderRequest) (string, error) {
	qty := decimal.NewFromFloat(req.Volume)
	por := alpaca.PlaceOrderRequest{
		Symbol:        req.SymbolCode,
		Qty:           &qty,
		Side:          alpacaSide(req.OrderSide),
		Type:          alpacaOrderType(req.OrderType),
		TimeInForce:   alpacaTIF(req.TimeRestriction),
		ClientOrderID: req.UserOrderID,
	}
	if req.Price != 0 {
		p := decimal.NewFromFloat(req.Price)
		por.LimitPrice = &p
	}
	if req.StopPrice != 0 {
		p := decimal.NewFromFloat(req.StopPrice)
		por.StopPrice = &p
	}

	order, err := s.client.PlaceOrder(por)
	if err != nil {
		return "", fmt.Errorf("placing alpaca order for %s: %w", req.SymbolCode, err)
	}
	return order.ID, nil
}

// dispatch translates one Alpaca trade update into the callback surface.
func (s *AlpacaSession) dispatch(ctx context.Context, h Handler, tu alpaca.TradeUpdate) {
	ev := OrderEvent{OrderID: tu.Order.ID}
	if tu.Qty != nil {
		ev.Volume = tu.Qty.InexactFloat64()
	}
	if tu.Price != nil {
		ev.Price = tu.Price.InexactFloat64()
	}

	switch tu.Event {
	case "new", "accepted", "pending_new":
		h.OrderAccepted(ev)
	case "partial_fill":
		h.OrderPartiallyExecuted(ev)
		s.emitBalance(ctx, h)
	case "fill":
		h.OrderExecuted(ev)
		s.emitBalance(ctx, h)
	case "canceled", "expired", "rejected":
		h.OrderCancelled(ev)
	case "replaced":
		h.OrderModified(ev)
	default:
		s.log.Debug("ignoring trade update", "event", tu.Event, "order", tu.Order.ID)
	}
}

// emitBalance refreshes the account and delivers a balance event. Refreshes
// are rate limited; a skipped refresh is fine, the venue re-delivers on the
// next fill.
func (s *AlpacaSession) emitBalance(ctx context.Context, h Handler) {
	if err := s.refresh.Wait(ctx); err != nil {
		return
	}
	acct, err := s.client.GetAccount()
	if err != nil {
		s.log.Warn("account refresh failed", "err", err)
		return
	}

	ev := BalanceEvent{
		Account:  acct.ID,
		Cash:     acct.Cash.InexactFloat64(),
		NetWorth: acct.Equity.InexactFloat64(),
	}
	s.mu.Lock()
	s.account = Account{ID: ev.Account, Cash: ev.Cash, NetWorth: ev.NetWorth}
	s.mu.Unlock()

	h.BalanceChanged(ev)
}

func alpacaSide(side OrderSide) alpaca.Side {
	if side == OrderSideSell {
		return alpaca.Sell
	}
	return alpaca.Buy
}

func alpacaOrderType(ot OrderType) alpaca.OrderType {
	switch ot {
	case OrderTypeLimit:
		return alpaca.Limit
	case OrderTypeStopMarket:
		return alpaca.Stop
	case OrderTypeStopLimit:
		return alpaca.StopLimit
	default:
		return alpaca.Market
	}
}

func alpacaTIF(tr TimeRestriction) alpaca.TimeInForce {
	switch tr {
	case TimeRestrictionSession:
		return alpaca.Day
	case TimeRestrictionCloseAuction:
		return alpaca.CLS
	default:
		// No valid-until support: date restrictions degrade to GTC.
		return alpaca.GTC
	}
}
