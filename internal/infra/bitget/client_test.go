package bitget

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"dca_ladder/internal/domain"
	"dca_ladder/internal/infra"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var btcusdt = domain.Pair{Base: "BTC", Quote: "USDT"}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &infra.Config{}
	cfg.Exchange.Bitget.RestURL = srv.URL
	cfg.Exchange.Bitget.AccessKey = "key"
	cfg.Exchange.Bitget.SecretKey = "secret"
	cfg.Exchange.Bitget.Passphrase = "pass"
	cfg.Exchange.Bitget.RateLimitMS = 1
	return NewClient(cfg)
}

func writeData(t *testing.T, w http.ResponseWriter, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, json.NewEncoder(w).Encode(apiResponse{Code: successCode, Msg: "success", Data: raw}))
}

func TestClient_FetchMarket(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathSymbols, r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		writeData(t, w, []symbolInfo{{
			Symbol: "BTCUSDT", BaseCoin: "BTC", QuoteCoin: "USDT",
			MinTradeAmount: "0", MinTradeUSDT: "1",
			PricePrecision: "2", QuantityPrecision: "6", Status: "online",
		}})
	})

	m, err := c.FetchMarket(context.Background(), btcusdt)
	require.NoError(t, err)
	assert.Equal(t, btcusdt, m.Pair)
	assert.Equal(t, "1", m.MinOrderSize.String())
	assert.Equal(t, int32(2), m.PricePrecision)
	assert.Equal(t, int32(6), m.AmountPrecision)
}

func TestClient_FetchTicker(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathTickers, r.URL.Path)
		writeData(t, w, []tickerData{{Symbol: "BTCUSDT", AskPr: "30000.5", BidPr: "30000.1", LastPr: "30000.2"}})
	})

	tk, err := c.FetchTicker(context.Background(), btcusdt)
	require.NoError(t, err)
	assert.Equal(t, "30000.5", tk.Ask.String())
	assert.Equal(t, "30000.1", tk.Bid.String())
}

func TestClient_FetchOrder(t *testing.T) {
	tests := []struct {
		wire string
		want domain.OrderStatus
	}{
		{"live", domain.OrderStatusOpen},
		{"partially_filled", domain.OrderStatusOpen},
		{"filled", domain.OrderStatusClosed},
		{"cancelled", domain.OrderStatusCanceled},
	}

	for _, tt := range tests {
		t.Run(tt.wire, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, pathOrderInfo, r.URL.Path)
				assert.Equal(t, "42", r.URL.Query().Get("orderId"))
				assert.NotEmpty(t, r.Header.Get("ACCESS-SIGN"))
				writeData(t, w, []orderInfo{{
					OrderID: "42", Symbol: "BTCUSDT", Price: "101.5", Size: "0.5",
					Side: "sell", Status: tt.wire, BaseVolume: "0.2",
				}})
			})

			o, err := c.FetchOrder(context.Background(), "42", btcusdt)
			require.NoError(t, err)
			assert.Equal(t, "42", o.ID)
			assert.Equal(t, tt.want, o.Status)
			assert.Equal(t, domain.SideSell, o.Side)
			assert.Equal(t, "101.5", o.Price.String())
			assert.Equal(t, "0.2", o.Filled.String())
		})
	}
}

func TestClient_PlaceLimitOrder(t *testing.T) {
	var got placeOrderRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, pathPlaceOrder, r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		writeData(t, w, orderAck{OrderID: "1001", ClientOid: got.ClientOid})
	})

	o, err := c.PlaceLimitBuyOrder(context.Background(), btcusdt, decimal.RequireFromString("0.0102"), decimal.RequireFromString("99.99"))
	require.NoError(t, err)

	assert.Equal(t, "1001", o.ID)
	assert.Equal(t, domain.SideBuy, o.Side)
	assert.Equal(t, "BTCUSDT", got.Symbol)
	assert.Equal(t, "buy", got.Side)
	assert.Equal(t, "limit", got.OrderType)
	assert.Equal(t, "99.99", got.Price)
	assert.Equal(t, "0.0102", got.Size)
	assert.NotEmpty(t, got.ClientOid)
}

func TestClient_PlaceOrderUsesClientOrderID(t *testing.T) {
	var oids []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req placeOrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		oids = append(oids, req.ClientOid)
		writeData(t, w, orderAck{OrderID: "1", ClientOid: req.ClientOid})
	})

	ctx := domain.WithClientOrderID(context.Background(), "oid-1")
	for i := 0; i < 2; i++ {
		_, err := c.PlaceLimitSellOrder(ctx, btcusdt, decimal.NewFromInt(1), decimal.NewFromInt(100))
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"oid-1", "oid-1"}, oids, "retries of one placement share the client id")
}

func TestClient_CancelOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req cancelOrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "7", req.OrderID)
		writeData(t, w, orderAck{OrderID: "7"})
	})

	o, err := c.CancelOrder(context.Background(), "7", btcusdt)
	require.NoError(t, err)
	assert.Equal(t, "7", o.ID)
}

func TestClient_FetchBalance(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeData(t, w, []assetData{
			{Coin: "btc", Available: "1.5", Frozen: "0.5", Locked: "0"},
			{Coin: "USDT", Available: "100", Frozen: "0", Locked: "0"},
		})
	})

	b, err := c.FetchBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.5", b.Free("BTC").String())
	assert.Equal(t, "2", b["BTC"].Total.String())
	assert.Equal(t, "100", b.Free("USDT").String())
}

func TestClient_Errors(t *testing.T) {
	t.Run("business error is not retriable", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(apiResponse{Code: "43012", Msg: "Insufficient balance"})
		})

		_, err := c.PlaceLimitSellOrder(context.Background(), btcusdt, decimal.NewFromInt(1), decimal.NewFromInt(100))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "43012")
		assert.False(t, domain.IsRetriable(err))
	})

	t.Run("server error is retriable", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad gateway", http.StatusBadGateway)
		})

		_, err := c.FetchTicker(context.Background(), btcusdt)
		require.Error(t, err)
		assert.True(t, domain.IsRetriable(err))
	})

	t.Run("private call without credentials", func(t *testing.T) {
		cfg := &infra.Config{}
		c := NewClient(cfg)

		_, err := c.FetchBalance(context.Background())
		assert.True(t, errors.Is(err, ErrMissingCredentials))
	})
}
