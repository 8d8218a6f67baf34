// Package binance decodes the exchange's websocket payloads into model types.
package binance

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"main/internal/model"
	"main/pkg/exception"
)

type tickerPayload struct {
	EventType      string `json:"e"`
	EventTime      int64  `json:"E"`
	Symbol         string `json:"s"`
	LastPrice      string `json:"c"`
	PriceChangePct string `json:"P"`
	High           string `json:"h"`
	Low            string `json:"l"`
	Volume         string `json:"v"`
	TradeCount     int64  `json:"n"`
}

type klinePayload struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Kline     struct {
		OpenTime    int64  `json:"t"`
		CloseTime   int64  `json:"T"`
		Interval    string `json:"i"`
		Open        string `json:"o"`
		Close       string `json:"c"`
		High        string `json:"h"`
		Low         string `json:"l"`
		Volume      string `json:"v"`
		QuoteVolume string `json:"q"`
		TradeCount  int64  `json:"n"`
		Closed      bool   `json:"x"`
	} `json:"k"`
}

type depthPayload struct {
	LastUpdateID int64       `json:"lastUpdateId"`
	Bids         [][2]string `json:"bids"`
	Asks         [][2]string `json:"asks"`
}

type tradePayload struct {
	EventType  string `json:"e"`
	EventTime  int64  `json:"E"`
	Symbol     string `json:"s"`
	TradeID    int64  `json:"t"`
	Price      string `json:"p"`
	Quantity   string `json:"q"`
	TradeTime  int64  `json:"T"`
	BuyerMaker bool   `json:"m"`
}

func dec(s string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(exception.ErrMarketDataInvalidPayload, "decimal %q", s)
	}
	return v, nil
}

// ParseTicker decodes a 24hrTicker event.
func ParseTicker(raw []byte) (model.Tick, error) {
	var payload tickerPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return model.Tick{}, errors.Wrap(exception.ErrMarketDataInvalidPayload, err.Error())
	}
	if payload.Symbol == "" {
		return model.Tick{}, errors.Wrap(exception.ErrMarketDataInvalidPayload, "ticker without symbol")
	}

	tick := model.Tick{
		Symbol:     payload.Symbol,
		TradeCount: payload.TradeCount,
		Timestamp:  time.UnixMilli(payload.EventTime),
	}
	var err error
	if tick.Price, err = dec(payload.LastPrice); err != nil {
		return model.Tick{}, err
	}
	if tick.PriceChangePct, err = dec(payload.PriceChangePct); err != nil {
		return model.Tick{}, err
	}
	if tick.High24h, err = dec(payload.High); err != nil {
		return model.Tick{}, err
	}
	if tick.Low24h, err = dec(payload.Low); err != nil {
		return model.Tick{}, err
	}
	if tick.Volume24h, err = dec(payload.Volume); err != nil {
		return model.Tick{}, err
	}
	return tick, nil
}

// ParseKline decodes a kline event. The candle carries the exchange's closed
// flag; open candles replace the previous snapshot of the same interval.
func ParseKline(raw []byte) (model.Candle, error) {
	var payload klinePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return model.Candle{}, errors.Wrap(exception.ErrMarketDataInvalidPayload, err.Error())
	}
	if payload.Symbol == "" || payload.Kline.Interval == "" {
		return model.Candle{}, errors.Wrap(exception.ErrMarketDataInvalidPayload, "kline without symbol or interval")
	}

	k := payload.Kline
	candle := model.Candle{
		Symbol:     payload.Symbol,
		Interval:   k.Interval,
		OpenTime:   time.UnixMilli(k.OpenTime),
		CloseTime:  time.UnixMilli(k.CloseTime),
		TradeCount: k.TradeCount,
		Closed:     k.Closed,
	}
	var err error
	if candle.Open, err = dec(k.Open); err != nil {
		return model.Candle{}, err
	}
	if candle.High, err = dec(k.High); err != nil {
		return model.Candle{}, err
	}
	if candle.Low, err = dec(k.Low); err != nil {
		return model.Candle{}, err
	}
	if candle.Close, err = dec(k.Close); err != nil {
		return model.Candle{}, err
	}
	if candle.Volume, err = dec(k.Volume); err != nil {
		return model.Candle{}, err
	}
	if candle.QuoteVolume, err = dec(k.QuoteVolume); err != nil {
		return model.Candle{}, err
	}
	return candle, nil
}

// ParseDepth decodes a partial book depth snapshot. Depth frames carry no
// event type or symbol, the stream they arrive on identifies them.
func ParseDepth(symbol string, raw []byte) (model.DepthSnapshot, error) {
	var payload depthPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return model.DepthSnapshot{}, errors.Wrap(exception.ErrMarketDataInvalidPayload, err.Error())
	}

	snapshot := model.DepthSnapshot{
		Symbol:       symbol,
		LastUpdateID: payload.LastUpdateID,
		Bids:         make([]model.Level, 0, len(payload.Bids)),
		Asks:         make([]model.Level, 0, len(payload.Asks)),
		Timestamp:    time.Now(),
	}
	for _, raw := range payload.Bids {
		level, err := parseLevel(raw)
		if err != nil {
			return model.DepthSnapshot{}, err
		}
		snapshot.Bids = append(snapshot.Bids, level)
	}
	for _, raw := range payload.Asks {
		level, err := parseLevel(raw)
		if err != nil {
			return model.DepthSnapshot{}, err
		}
		snapshot.Asks = append(snapshot.Asks, level)
	}
	return snapshot, nil
}

func parseLevel(raw [2]string) (model.Level, error) {
	price, err := dec(raw[0])
	if err != nil {
		return model.Level{}, err
	}
	quantity, err := dec(raw[1])
	if err != nil {
		return model.Level{}, err
	}
	return model.Level{Price: price, Quantity: quantity}, nil
}

// ParseTrade decodes a trade event.
func ParseTrade(raw []byte) (model.Trade, error) {
	var payload tradePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return model.Trade{}, errors.Wrap(exception.ErrMarketDataInvalidPayload, err.Error())
	}
	if payload.Symbol == "" {
		return model.Trade{}, errors.Wrap(exception.ErrMarketDataInvalidPayload, "trade without symbol")
	}

	trade := model.Trade{
		Symbol:     payload.Symbol,
		TradeID:    payload.TradeID,
		BuyerMaker: payload.BuyerMaker,
		Timestamp:  time.UnixMilli(payload.TradeTime),
	}
	var err error
	if trade.Price, err = dec(payload.Price); err != nil {
		return model.Trade{}, err
	}
	if trade.Quantity, err = dec(payload.Quantity); err != nil {
		return model.Trade{}, err
	}
	return trade, nil
}
