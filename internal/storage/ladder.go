// Package storage maps the ladder state onto a key/value StateStore.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dca_ladder/internal/domain"
)

// Persisted keys.
const (
	KeySellOrders     = "sellOrders"
	KeyBuyOrder       = "buyOrder"
	KeyBuyOrderPrice  = "buyOrderPrice"
	KeyFirstSellPrice = "firstSellPrice"
	KeyFirstSellTime  = "firstSellTime"
	KeyUnrecoverable  = "unrecoverable"
)

// Field selects which parts of the state a Save writes.
type Field int

const (
	FieldSellOrders Field = iota + 1
	FieldBuyOrder         // buyOrder + buyOrderPrice, always together
	FieldFirstSell        // firstSellPrice + firstSellTime
	FieldFirstSellPrice
	FieldUnrecoverable
)

// LadderRepository loads and saves a domain.LadderState.
// Values are JSON encoded; a missing value is null.
type LadderRepository struct {
	store domain.StateStore
}

// NewLadderRepository creates a repository on top of store.
func NewLadderRepository(store domain.StateStore) *LadderRepository {
	return &LadderRepository{store: store}
}

// Load reads the full state. Keys that were never written take their zero value.
func (r *LadderRepository) Load(ctx context.Context) (domain.LadderState, error) {
	var (
		state     domain.LadderState
		buyOrder  *string
		timestamp *int64
	)

	targets := []struct {
		key string
		dst any
	}{
		{KeySellOrders, &state.SellOrders},
		{KeyBuyOrder, &buyOrder},
		{KeyBuyOrderPrice, &state.BuyOrderPrice},
		{KeyFirstSellPrice, &state.FirstSellPrice},
		{KeyFirstSellTime, &timestamp},
		{KeyUnrecoverable, &state.Unrecoverable},
	}

	for _, tgt := range targets {
		raw, found, err := r.store.Get(ctx, tgt.key)
		if err != nil {
			return domain.LadderState{}, fmt.Errorf("load %s: %w", tgt.key, err)
		}
		if !found || raw == "" {
			continue
		}
		if err := json.Unmarshal([]byte(raw), tgt.dst); err != nil {
			return domain.LadderState{}, fmt.Errorf("decode %s: %w", tgt.key, err)
		}
	}

	if buyOrder != nil {
		state.BuyOrder = *buyOrder
	}
	if timestamp != nil {
		state.FirstSellTime = time.UnixMilli(*timestamp)
	}
	if state.SellOrders == nil {
		state.SellOrders = []string{}
	}

	if err := state.Validate(); err != nil {
		return domain.LadderState{}, err
	}
	return state, nil
}

// Save writes the selected fields of state in one atomic store write.
func (r *LadderRepository) Save(ctx context.Context, state domain.LadderState, fields ...Field) error {
	if err := state.Validate(); err != nil {
		return err
	}

	entries := make(map[string]string, len(fields)*2)
	put := func(key string, v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		entries[key] = string(b)
		return nil
	}

	for _, f := range fields {
		var err error
		switch f {
		case FieldSellOrders:
			orders := state.SellOrders
			if orders == nil {
				orders = []string{}
			}
			err = put(KeySellOrders, orders)
		case FieldBuyOrder:
			var id *string
			if state.HasBuyOrder() {
				id = &state.BuyOrder
			}
			if err = put(KeyBuyOrder, id); err == nil {
				err = put(KeyBuyOrderPrice, state.BuyOrderPrice)
			}
		case FieldFirstSell:
			if err = put(KeyFirstSellPrice, state.FirstSellPrice); err == nil {
				err = put(KeyFirstSellTime, millis(state.FirstSellTime))
			}
		case FieldFirstSellPrice:
			err = put(KeyFirstSellPrice, state.FirstSellPrice)
		case FieldUnrecoverable:
			err = put(KeyUnrecoverable, state.Unrecoverable)
		default:
			err = fmt.Errorf("unknown state field %d", f)
		}
		if err != nil {
			return err
		}
	}

	if len(entries) == 0 {
		return nil
	}
	return r.store.Set(ctx, entries)
}

func millis(t time.Time) *int64 {
	if t.IsZero() {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

// Reset overwrites every key with the empty state. Only meant for the operator
// after all orders of the bot were cancelled by hand.
func (r *LadderRepository) Reset(ctx context.Context) error {
	return r.Save(ctx, domain.LadderState{SellOrders: []string{}},
		FieldSellOrders, FieldBuyOrder, FieldFirstSell, FieldUnrecoverable)
}
