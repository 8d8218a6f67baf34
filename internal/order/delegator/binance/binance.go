// Package binance implements the execution venue against the Binance Spot
// REST API.
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/model"
	"main/internal/model/enum"
)

const (
	// BaseURL is the production Binance Spot endpoint.
	BaseURL = "https://api.binance.com"
	// TestnetBaseURL is the Spot testnet endpoint.
	TestnetBaseURL = "https://testnet.binance.vision"

	recvWindowMs = 5000
)

type Config struct {
	APIKey    string
	APISecret string
	BaseURL   string
	Timeout   time.Duration
}

// Delegator routes orders to Binance over signed REST calls.
type Delegator struct {
	apiKey    string
	apiSecret string
	baseURL   string
	client    *http.Client
}

func New(conf Config) *Delegator {
	baseURL := conf.BaseURL
	if baseURL == "" {
		baseURL = BaseURL
	}
	timeout := conf.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Delegator{
		apiKey:    conf.APIKey,
		apiSecret: conf.APISecret,
		baseURL:   baseURL,
		client:    &http.Client{Timeout: timeout},
	}
}

func (d *Delegator) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(d.apiSecret))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
}

func (e *apiError) Error() string {
	return "binance api error " + strconv.Itoa(e.Code) + ": " + e.Message
}

func (d *Delegator) request(ctx context.Context, method, endpoint string, params url.Values, signed bool) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}
	if signed {
		params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
		params.Set("recvWindow", strconv.Itoa(recvWindowMs))
		params.Set("signature", d.sign(params.Encode()))
	}

	reqURL := d.baseURL + endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	if d.apiKey != "" {
		req.Header.Set("X-MBX-APIKEY", d.apiKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, endpoint)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Code != 0 {
			return nil, &apiErr
		}
		return nil, errors.Errorf("http %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

func (d *Delegator) GetTicker(ctx context.Context, symbol string) (model.SymbolStats, error) {
	params := url.Values{"symbol": {symbol}}
	body, err := d.request(ctx, http.MethodGet, "/api/v3/ticker/24hr", params, false)
	if err != nil {
		return model.SymbolStats{}, err
	}

	var payload struct {
		Symbol      string `json:"symbol"`
		LastPrice   string `json:"lastPrice"`
		PriceChange string `json:"priceChangePercent"`
		HighPrice   string `json:"highPrice"`
		LowPrice    string `json:"lowPrice"`
		Volume      string `json:"volume"`
		Count       int64  `json:"count"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return model.SymbolStats{}, errors.Wrap(err, "parse ticker")
	}

	stats := model.SymbolStats{
		Symbol:     payload.Symbol,
		TradeCount: payload.Count,
		LastUpdate: time.Now(),
	}
	if stats.LastPrice, err = parseDecimal(payload.LastPrice); err != nil {
		return model.SymbolStats{}, err
	}
	if stats.PriceChange24h, err = parseDecimal(payload.PriceChange); err != nil {
		return model.SymbolStats{}, err
	}
	if stats.High24h, err = parseDecimal(payload.HighPrice); err != nil {
		return model.SymbolStats{}, err
	}
	if stats.Low24h, err = parseDecimal(payload.LowPrice); err != nil {
		return model.SymbolStats{}, err
	}
	if stats.Volume24h, err = parseDecimal(payload.Volume); err != nil {
		return model.SymbolStats{}, err
	}
	return stats, nil
}

func (d *Delegator) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error) {
	params := url.Values{
		"symbol":   {symbol},
		"interval": {interval},
		"limit":    {strconv.Itoa(limit)},
	}
	body, err := d.request(ctx, http.MethodGet, "/api/v3/klines", params, false)
	if err != nil {
		return nil, err
	}

	var rows [][]json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, errors.Wrap(err, "parse klines")
	}

	candles := make([]model.Candle, 0, len(rows))
	for _, row := range rows {
		candle, err := candleFromRow(symbol, interval, row)
		if err != nil {
			return nil, err
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// PlaceOrder submits the order and returns Binance's orderId.
func (d *Delegator) PlaceOrder(ctx context.Context, order *model.Order) (string, error) {
	params := url.Values{
		"symbol":           {order.Symbol},
		"side":             {string(order.Side)},
		"type":             {string(order.Type)},
		"quantity":         {order.Quantity.String()},
		"newClientOrderId": {order.ClientOrderID},
	}
	switch order.Type {
	case enum.OrderTypeLimit:
		params.Set("price", order.Price.String())
		params.Set("timeInForce", "GTC")
	case enum.OrderTypeStopLoss, enum.OrderTypeTakeProfit:
		params.Set("stopPrice", order.StopPrice.String())
	}

	body, err := d.request(ctx, http.MethodPost, "/api/v3/order", params, true)
	if err != nil {
		return "", err
	}

	var payload struct {
		OrderID int64  `json:"orderId"`
		Status  string `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", errors.Wrap(err, "parse order response")
	}

	logs.Infof("placed %s %s %s, exchange id %d, status %s",
		order.Side, order.Type, order.Symbol, payload.OrderID, payload.Status)

	return strconv.FormatInt(payload.OrderID, 10), nil
}

func (d *Delegator) CancelOrder(ctx context.Context, symbol, exchangeOrderID string) error {
	params := url.Values{
		"symbol":  {symbol},
		"orderId": {exchangeOrderID},
	}
	_, err := d.request(ctx, http.MethodDelete, "/api/v3/order", params, true)
	return err
}
