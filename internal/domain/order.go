package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// OrderStatus is the normalised order state reported by an exchange.
type OrderStatus string

const (
	OrderStatusOpen     OrderStatus = "open"
	OrderStatusClosed   OrderStatus = "closed" // Fully filled
	OrderStatusCanceled OrderStatus = "canceled"
)

// Side of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Order is a limit order as seen by the exchange.
type Order struct {
	ID     string          `json:"id"`
	Pair   Pair            `json:"pair"`
	Side   Side            `json:"side"`
	Status OrderStatus     `json:"status"`
	Price  decimal.Decimal `json:"price"`
	Amount decimal.Decimal `json:"amount"`
	Filled decimal.Decimal `json:"filled"`
}

// IsOpen checks if the order is still active.
func (o *Order) IsOpen() bool {
	return o.Status == OrderStatusOpen
}

// Remaining returns the unfilled amount.
func (o *Order) Remaining() decimal.Decimal {
	return o.Amount.Sub(o.Filled)
}

// HasID reports whether the exchange acknowledged the order with an identifier.
func HasID(o Order) bool {
	return o.ID != ""
}

type clientOrderIDKey struct{}

// WithClientOrderID tags ctx with the client order id of one logical placement.
// Every retry of that placement carries the same id so the exchange can dedupe it.
func WithClientOrderID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, clientOrderIDKey{}, id)
}

// ClientOrderID returns the id set by WithClientOrderID.
func ClientOrderID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(clientOrderIDKey{}).(string)
	return id, ok && id != ""
}
