// Package bitget implements domain.ExchangeClient on the Bitget V2 spot REST API.
package bitget

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"dca_ladder/internal/domain"
	"dca_ladder/internal/infra"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// BaseURLMainnet is the public V2 host.
const BaseURLMainnet = infra.DefaultBitgetRestURL

const (
	pathSymbols     = "/api/v2/spot/public/symbols"
	pathTickers     = "/api/v2/spot/market/tickers"
	pathOrderInfo   = "/api/v2/spot/trade/orderInfo"
	pathPlaceOrder  = "/api/v2/spot/trade/place-order"
	pathCancelOrder = "/api/v2/spot/trade/cancel-order"
	pathAssets      = "/api/v2/spot/account/assets"
)

// ErrMissingCredentials is returned by private endpoints when no API key is configured.
var ErrMissingCredentials = errors.New("bitget api credentials are not configured")

// Client is the Bitget V2 REST API Client (Boundary Layer)
type Client struct {
	baseURL    string
	httpClient *http.Client
	signer     *Signer
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a new Bitget API client from the exchange section of cfg.
func NewClient(cfg *infra.Config) *Client {
	bg := cfg.Exchange.Bitget

	baseURL := strings.TrimRight(bg.RestURL, "/")
	if baseURL == "" {
		baseURL = BaseURLMainnet
	}

	interval := time.Duration(bg.RateLimitMS) * time.Millisecond
	if interval <= 0 {
		interval = 55 * time.Millisecond
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		signer:  NewSigner(bg.AccessKey, bg.SecretKey, bg.Passphrase),
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		logger:  slog.Default().With("module", "bitget_client"),
	}
}

// Symbol converts a pair into the exchange symbol, e.g. BTCUSDT.
func Symbol(pair domain.Pair) string {
	return pair.Base + pair.Quote
}

func (c *Client) FetchMarket(ctx context.Context, pair domain.Pair) (domain.MarketInfo, error) {
	var symbols []symbolInfo
	if err := c.call(ctx, http.MethodGet, pathSymbols, url.Values{"symbol": {Symbol(pair)}}, nil, false, &symbols); err != nil {
		return domain.MarketInfo{}, err
	}

	for _, s := range symbols {
		if s.Symbol != Symbol(pair) {
			continue
		}
		minSize, err := parseDecimal(s.MinTradeUSDT)
		if err != nil {
			return domain.MarketInfo{}, fmt.Errorf("minTradeUSDT: %w", err)
		}
		pricePrec, err := strconv.ParseInt(s.PricePrecision, 10, 32)
		if err != nil {
			return domain.MarketInfo{}, fmt.Errorf("pricePrecision: %w", err)
		}
		amountPrec, err := strconv.ParseInt(s.QuantityPrecision, 10, 32)
		if err != nil {
			return domain.MarketInfo{}, fmt.Errorf("quantityPrecision: %w", err)
		}
		return domain.MarketInfo{
			Pair:            pair,
			MinOrderSize:    minSize,
			AmountPrecision: int32(amountPrec),
			PricePrecision:  int32(pricePrec),
		}, nil
	}
	return domain.MarketInfo{}, fmt.Errorf("%w: %s", domain.ErrInvalidSymbol, Symbol(pair))
}

func (c *Client) FetchTicker(ctx context.Context, pair domain.Pair) (domain.Ticker, error) {
	var tickers []tickerData
	if err := c.call(ctx, http.MethodGet, pathTickers, url.Values{"symbol": {Symbol(pair)}}, nil, false, &tickers); err != nil {
		return domain.Ticker{}, err
	}
	if len(tickers) == 0 {
		return domain.Ticker{}, fmt.Errorf("%w: no ticker for %s", domain.ErrInvalidSymbol, Symbol(pair))
	}

	t := tickers[0]
	ask, err := parseDecimal(t.AskPr)
	if err != nil {
		return domain.Ticker{}, fmt.Errorf("askPr: %w", err)
	}
	// Bid and last are informational
	bid, _ := parseDecimal(t.BidPr)
	last, _ := parseDecimal(t.LastPr)

	return domain.Ticker{Pair: pair, Ask: ask, Bid: bid, Last: last}, nil
}

func (c *Client) FetchOrder(ctx context.Context, id string, pair domain.Pair) (domain.Order, error) {
	var orders []orderInfo
	if err := c.call(ctx, http.MethodGet, pathOrderInfo, url.Values{"orderId": {id}}, nil, true, &orders); err != nil {
		return domain.Order{}, err
	}
	if len(orders) == 0 {
		return domain.Order{}, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}
	return toOrder(orders[0], pair)
}

func (c *Client) PlaceLimitSellOrder(ctx context.Context, pair domain.Pair, amount, price decimal.Decimal) (domain.Order, error) {
	return c.placeOrder(ctx, pair, domain.SideSell, amount, price)
}

func (c *Client) PlaceLimitBuyOrder(ctx context.Context, pair domain.Pair, amount, price decimal.Decimal) (domain.Order, error) {
	return c.placeOrder(ctx, pair, domain.SideBuy, amount, price)
}

func (c *Client) placeOrder(ctx context.Context, pair domain.Pair, side domain.Side, amount, price decimal.Decimal) (domain.Order, error) {
	clientOid, ok := domain.ClientOrderID(ctx)
	if !ok {
		clientOid = uuid.NewString()
	}

	req := placeOrderRequest{
		Symbol:    Symbol(pair),
		Side:      string(side),
		OrderType: "limit",
		Force:     "gtc",
		Price:     price.String(),
		Size:      amount.String(),
		ClientOid: clientOid,
	}

	var ack orderAck
	if err := c.call(ctx, http.MethodPost, pathPlaceOrder, nil, req, true, &ack); err != nil {
		return domain.Order{}, err
	}

	c.logger.Info("Order Placed Successfully",
		slog.String("oid", ack.OrderID),
		slog.String("client_oid", req.ClientOid),
		slog.String("side", req.Side),
		slog.String("symbol", req.Symbol),
	)

	return domain.Order{
		ID:     ack.OrderID,
		Pair:   pair,
		Side:   side,
		Status: domain.OrderStatusOpen,
		Price:  price,
		Amount: amount,
		Filled: decimal.Zero,
	}, nil
}

func (c *Client) CancelOrder(ctx context.Context, id string, pair domain.Pair) (domain.Order, error) {
	var ack orderAck
	req := cancelOrderRequest{Symbol: Symbol(pair), OrderID: id}
	if err := c.call(ctx, http.MethodPost, pathCancelOrder, nil, req, true, &ack); err != nil {
		return domain.Order{}, err
	}
	return domain.Order{ID: ack.OrderID, Pair: pair, Status: domain.OrderStatusCanceled}, nil
}

func (c *Client) FetchBalance(ctx context.Context) (domain.Balances, error) {
	var assets []assetData
	if err := c.call(ctx, http.MethodGet, pathAssets, nil, nil, true, &assets); err != nil {
		return nil, err
	}

	out := make(domain.Balances, len(assets))
	for _, a := range assets {
		free, err := parseDecimal(a.Available)
		if err != nil {
			return nil, fmt.Errorf("%s available: %w", a.Coin, err)
		}
		frozen, _ := parseDecimal(a.Frozen)
		locked, _ := parseDecimal(a.Locked)
		used := frozen.Add(locked)

		coin := strings.ToUpper(a.Coin)
		out[coin] = domain.Balance{Currency: coin, Free: free, Used: used, Total: free.Add(used)}
	}
	return out, nil
}

// call performs one request and decodes the data field of the envelope into out.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, body any, private bool, out any) error {
	op := method + " " + path

	if private && !c.signer.HasCredentials() {
		return domain.NewFatalNetworkError(op, ErrMissingCredentials)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	resp, err := c.doRequest(ctx, method, path, query.Encode(), body)
	if err != nil {
		return domain.NewNetworkError(op, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.NewNetworkError(op, err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return domain.NewNetworkError(op, fmt.Errorf("status=%d body=%s", resp.StatusCode, string(bodyBytes)))
	}

	if resp.StatusCode != http.StatusOK || apiResp.Code != successCode {
		err := fmt.Errorf("bitget business error: status=%d code=%s msg=%s", resp.StatusCode, apiResp.Code, apiResp.Msg)
		// 4xx other than rate limiting will fail the same way again
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return domain.NewFatalNetworkError(op, err)
		}
		return domain.NewNetworkError(op, err)
	}

	if err := json.Unmarshal(apiResp.Data, out); err != nil {
		return fmt.Errorf("%s: failed to parse data: %w", op, err)
	}
	return nil
}

// doRequest handles Auth headers and serialization
func (c *Client) doRequest(ctx context.Context, method, path, query string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	var bodyStr string

	if body != nil {
		jsonBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBytes)
		bodyStr = string(jsonBytes)
	}

	reqURL := c.baseURL + path
	if query != "" {
		reqURL += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, err
	}

	for k, v := range c.signer.GenerateHeaders(method, path, query, bodyStr) {
		req.Header.Set(k, v)
	}

	return c.httpClient.Do(req)
}

func toOrder(o orderInfo, pair domain.Pair) (domain.Order, error) {
	price, err := parseDecimal(o.Price)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order %s price: %w", o.OrderID, err)
	}
	amount, err := parseDecimal(o.Size)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order %s size: %w", o.OrderID, err)
	}
	filled, err := parseDecimal(o.BaseVolume)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order %s baseVolume: %w", o.OrderID, err)
	}

	return domain.Order{
		ID:     o.OrderID,
		Pair:   pair,
		Side:   domain.Side(strings.ToLower(o.Side)),
		Status: toStatus(o.Status),
		Price:  price,
		Amount: amount,
		Filled: filled,
	}, nil
}

func toStatus(s string) domain.OrderStatus {
	switch s {
	case "filled":
		return domain.OrderStatusClosed
	case "cancelled", "canceled":
		return domain.OrderStatusCanceled
	default: // init, new, live, partially_filled
		return domain.OrderStatusOpen
	}
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
