package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LadderState is the persisted aggregate of one bot run.
//
// BuyOrder and BuyOrderPrice are only changed through SetBuyOrder/ClearBuyOrder so
// that one is never present without the other.
type LadderState struct {
	SellOrders     []string         `json:"sell_orders"` // Rung order, lowest price first
	BuyOrder       string           `json:"buy_order,omitempty"`
	BuyOrderPrice  *decimal.Decimal `json:"buy_order_price,omitempty"`
	FirstSellPrice *decimal.Decimal `json:"first_sell_price,omitempty"`
	FirstSellTime  time.Time        `json:"first_sell_time"`
	Unrecoverable  bool             `json:"unrecoverable"`
}

// HasBuyOrder reports whether a buy order is tracked.
func (s LadderState) HasBuyOrder() bool {
	return s.BuyOrder != ""
}

// SetBuyOrder records the buy order together with its price.
func (s *LadderState) SetBuyOrder(id string, price decimal.Decimal) {
	s.BuyOrder = id
	s.BuyOrderPrice = &price
}

// ClearBuyOrder forgets the buy order and its price.
func (s *LadderState) ClearBuyOrder() {
	s.BuyOrder = ""
	s.BuyOrderPrice = nil
}

// SetFirstSell records rung 0 of a freshly built ladder.
func (s *LadderState) SetFirstSell(price decimal.Decimal, at time.Time) {
	s.FirstSellPrice = &price
	s.FirstSellTime = at
}

// Clone returns a deep copy, safe to mutate before committing.
func (s LadderState) Clone() LadderState {
	c := s
	c.SellOrders = append([]string(nil), s.SellOrders...)
	if s.BuyOrderPrice != nil {
		p := *s.BuyOrderPrice
		c.BuyOrderPrice = &p
	}
	if s.FirstSellPrice != nil {
		p := *s.FirstSellPrice
		c.FirstSellPrice = &p
	}
	return c
}

// Validate checks the buy order invariant.
func (s LadderState) Validate() error {
	if s.HasBuyOrder() != (s.BuyOrderPrice != nil) {
		return fmt.Errorf("%w: buy order %q with price set=%t", ErrInvalidState, s.BuyOrder, s.BuyOrderPrice != nil)
	}
	return nil
}
