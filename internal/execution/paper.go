// Package execution provides a simulated exchange for dry runs and tests.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"dca_ladder/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceSource supplies the market price the paper exchange follows.
type PriceSource interface {
	FetchTicker(ctx context.Context, pair domain.Pair) (domain.Ticker, error)
}

// PaperExchange keeps limit orders and balances in memory and fills them against a
// single mutable price. It implements domain.ExchangeClient.
type PaperExchange struct {
	mu       sync.Mutex
	market   domain.MarketInfo
	price    decimal.Decimal
	balances map[string]*domain.Balance
	orders   map[string]*domain.Order
	seq      []string          // Placement order
	clients  map[string]string // Client order id -> order id
	source   PriceSource
}

// NewPaperExchange creates a paper exchange for market quoted at price.
func NewPaperExchange(market domain.MarketInfo, price decimal.Decimal) *PaperExchange {
	return &PaperExchange{
		market:   market,
		price:    price,
		balances: make(map[string]*domain.Balance),
		orders:   make(map[string]*domain.Order),
		clients:  make(map[string]string),
	}
}

// WithPriceSource makes FetchTicker follow src before answering.
func (p *PaperExchange) WithPriceSource(src PriceSource) *PaperExchange {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.source = src
	return p
}

// Deposit credits amount to the free balance of currency.
func (p *PaperExchange) Deposit(currency string, amount decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b := p.balance(currency)
	b.Free = b.Free.Add(amount)
	b.Total = b.Total.Add(amount)
}

// SetPrice moves the market and fills every open order it crosses.
func (p *PaperExchange) SetPrice(price decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.price = price
	p.match()
}

// FillOrder executes amount of an open order at its limit price.
func (p *PaperExchange) FillOrder(id string, amount decimal.Decimal) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	o, ok := p.orders[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}
	if !o.IsOpen() {
		return fmt.Errorf("order %s is %s", id, o.Status)
	}
	if amount.GreaterThan(o.Remaining()) {
		amount = o.Remaining()
	}
	p.fill(o, amount)
	return nil
}

// CancelExternally cancels an order as if the account owner did it on the exchange.
func (p *PaperExchange) CancelExternally(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	o, ok := p.orders[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}
	p.cancel(o)
	return nil
}

// Orders returns a copy of every order in placement order.
func (p *PaperExchange) Orders() []domain.Order {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]domain.Order, 0, len(p.seq))
	for _, id := range p.seq {
		out = append(out, *p.orders[id])
	}
	return out
}

// OpenOrders returns the open orders of side, sorted by price.
func (p *PaperExchange) OpenOrders(side domain.Side) []domain.Order {
	var out []domain.Order
	for _, o := range p.Orders() {
		if o.Side == side && o.IsOpen() {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price.LessThan(out[j].Price) })
	return out
}

func (p *PaperExchange) FetchMarket(ctx context.Context, pair domain.Pair) (domain.MarketInfo, error) {
	if err := p.checkPair(pair); err != nil {
		return domain.MarketInfo{}, err
	}
	return p.market, nil
}

func (p *PaperExchange) FetchTicker(ctx context.Context, pair domain.Pair) (domain.Ticker, error) {
	if err := p.checkPair(pair); err != nil {
		return domain.Ticker{}, err
	}

	p.mu.Lock()
	src := p.source
	p.mu.Unlock()

	if src != nil {
		t, err := src.FetchTicker(ctx, pair)
		if err != nil {
			return domain.Ticker{}, err
		}
		if t.Ask.IsPositive() {
			p.SetPrice(t.Ask)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return domain.Ticker{Pair: pair, Ask: p.price, Bid: p.price, Last: p.price}, nil
}

func (p *PaperExchange) FetchOrder(ctx context.Context, id string, pair domain.Pair) (domain.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	o, ok := p.orders[id]
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}
	return *o, nil
}

func (p *PaperExchange) PlaceLimitSellOrder(ctx context.Context, pair domain.Pair, amount, price decimal.Decimal) (domain.Order, error) {
	return p.place(ctx, pair, domain.SideSell, amount, price)
}

func (p *PaperExchange) PlaceLimitBuyOrder(ctx context.Context, pair domain.Pair, amount, price decimal.Decimal) (domain.Order, error) {
	return p.place(ctx, pair, domain.SideBuy, amount, price)
}

func (p *PaperExchange) CancelOrder(ctx context.Context, id string, pair domain.Pair) (domain.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	o, ok := p.orders[id]
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}
	if !o.IsOpen() {
		return domain.Order{}, fmt.Errorf("order %s is already %s", id, o.Status)
	}
	p.cancel(o)
	return *o, nil
}

func (p *PaperExchange) FetchBalance(ctx context.Context) (domain.Balances, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(domain.Balances, len(p.balances))
	for cur, b := range p.balances {
		out[cur] = *b
	}
	return out, nil
}

// place opens a limit order. A repeated client order id returns the order it already opened.
func (p *PaperExchange) place(ctx context.Context, pair domain.Pair, side domain.Side, amount, price decimal.Decimal) (domain.Order, error) {
	if err := p.checkPair(pair); err != nil {
		return domain.Order{}, err
	}
	if !amount.IsPositive() || !price.IsPositive() {
		return domain.Order{}, errors.New("amount and price must be positive")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	clientID, hasClientID := domain.ClientOrderID(ctx)
	if hasClientID {
		if id, ok := p.clients[clientID]; ok {
			return *p.orders[id], nil
		}
	}

	currency, lock := p.market.Pair.Base, amount
	if side == domain.SideBuy {
		currency, lock = p.market.Pair.Quote, amount.Mul(price)
	}
	b := p.balance(currency)
	if b.Free.LessThan(lock) {
		return domain.Order{}, &domain.InsufficientBalanceError{Currency: currency, Need: lock, Available: b.Free}
	}
	b.Free = b.Free.Sub(lock)
	b.Used = b.Used.Add(lock)

	o := &domain.Order{
		ID:     uuid.NewString(),
		Pair:   pair,
		Side:   side,
		Status: domain.OrderStatusOpen,
		Price:  price,
		Amount: amount,
		Filled: decimal.Zero,
	}
	p.orders[o.ID] = o
	p.seq = append(p.seq, o.ID)
	if hasClientID {
		p.clients[clientID] = o.ID
	}

	slog.Debug("Paper order placed",
		slog.String("id", o.ID),
		slog.String("side", string(side)),
		slog.String("price", price.String()),
		slog.String("amount", amount.String()),
	)

	p.match()
	return *o, nil
}

// match fills open orders crossed by the current price. Caller holds mu.
func (p *PaperExchange) match() {
	for _, id := range p.seq {
		o := p.orders[id]
		if !o.IsOpen() {
			continue
		}
		crossed := (o.Side == domain.SideSell && p.price.GreaterThanOrEqual(o.Price)) ||
			(o.Side == domain.SideBuy && p.price.LessThanOrEqual(o.Price))
		if crossed {
			p.fill(o, o.Remaining())
		}
	}
}

// fill executes amount of o at its limit price. Caller holds mu.
func (p *PaperExchange) fill(o *domain.Order, amount decimal.Decimal) {
	notional := amount.Mul(o.Price)
	base := p.balance(p.market.Pair.Base)
	quote := p.balance(p.market.Pair.Quote)

	if o.Side == domain.SideSell {
		base.Used = base.Used.Sub(amount)
		base.Total = base.Total.Sub(amount)
		quote.Free = quote.Free.Add(notional)
		quote.Total = quote.Total.Add(notional)
	} else {
		quote.Used = quote.Used.Sub(notional)
		quote.Total = quote.Total.Sub(notional)
		base.Free = base.Free.Add(amount)
		base.Total = base.Total.Add(amount)
	}

	o.Filled = o.Filled.Add(amount)
	if o.Remaining().IsZero() {
		o.Status = domain.OrderStatusClosed
	}
}

// cancel releases the unfilled part of o. Caller holds mu.
func (p *PaperExchange) cancel(o *domain.Order) {
	if !o.IsOpen() {
		return
	}
	if o.Side == domain.SideSell {
		b := p.balance(p.market.Pair.Base)
		b.Used = b.Used.Sub(o.Remaining())
		b.Free = b.Free.Add(o.Remaining())
	} else {
		locked := o.Remaining().Mul(o.Price)
		b := p.balance(p.market.Pair.Quote)
		b.Used = b.Used.Sub(locked)
		b.Free = b.Free.Add(locked)
	}
	o.Status = domain.OrderStatusCanceled
}

func (p *PaperExchange) balance(currency string) *domain.Balance {
	b, ok := p.balances[currency]
	if !ok {
		b = &domain.Balance{Currency: currency}
		p.balances[currency] = b
	}
	return b
}

func (p *PaperExchange) checkPair(pair domain.Pair) error {
	if pair != p.market.Pair {
		return fmt.Errorf("%w: %s is not traded here", domain.ErrInvalidSymbol, pair)
	}
	return nil
}
