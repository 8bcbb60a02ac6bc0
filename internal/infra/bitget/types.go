package bitget

import "encoding/json"

// successCode is returned by every successful V2 call.
const successCode = "00000"

// apiResponse is the V2 envelope.
type apiResponse struct {
	Code        string          `json:"code"`
	Msg         string          `json:"msg"`
	RequestTime int64           `json:"requestTime"`
	Data        json.RawMessage `json:"data"`
}

// Numbers are strings on the wire.

type symbolInfo struct {
	Symbol            string `json:"symbol"`
	BaseCoin          string `json:"baseCoin"`
	QuoteCoin         string `json:"quoteCoin"`
	MinTradeAmount    string `json:"minTradeAmount"`
	MinTradeUSDT      string `json:"minTradeUSDT"`
	PricePrecision    string `json:"pricePrecision"`
	QuantityPrecision string `json:"quantityPrecision"`
	Status            string `json:"status"`
}

type tickerData struct {
	Symbol string `json:"symbol"`
	LastPr string `json:"lastPr"`
	AskPr  string `json:"askPr"`
	BidPr  string `json:"bidPr"`
	Ts     string `json:"ts"`
}

type orderInfo struct {
	OrderID    string `json:"orderId"`
	ClientOid  string `json:"clientOid"`
	Symbol     string `json:"symbol"`
	Price      string `json:"price"`
	Size       string `json:"size"`
	OrderType  string `json:"orderType"`
	Side       string `json:"side"`
	Status     string `json:"status"` // live, partially_filled, filled, cancelled
	PriceAvg   string `json:"priceAvg"`
	BaseVolume string `json:"baseVolume"` // Filled amount
}

type placeOrderRequest struct {
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`      // buy, sell
	OrderType string `json:"orderType"` // limit
	Force     string `json:"force"`     // gtc
	Price     string `json:"price"`
	Size      string `json:"size"`
	ClientOid string `json:"clientOid"`
}

type cancelOrderRequest struct {
	Symbol  string `json:"symbol"`
	OrderID string `json:"orderId"`
}

type orderAck struct {
	OrderID   string `json:"orderId"`
	ClientOid string `json:"clientOid"`
}

type assetData struct {
	Coin      string `json:"coin"`
	Available string `json:"available"`
	Frozen    string `json:"frozen"`
	Locked    string `json:"locked"`
}
