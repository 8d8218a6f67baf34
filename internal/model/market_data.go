package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"main/internal/model/enum"
)

// StreamKey is the identity of one logical stream subscription.
// Interval is only meaningful for kline streams.
type StreamKey struct {
	Symbol   string
	Kind     enum.StreamKind
	Interval string
}

// Name renders the exchange stream name, e.g. "btcusdt@kline_1m".
func (k StreamKey) Name() string {
	symbol := strings.ToLower(k.Symbol)
	switch k.Kind {
	case enum.StreamKline:
		return symbol + "@kline_" + k.Interval
	case enum.StreamDepth:
		return symbol + "@depth20@1000ms"
	case enum.StreamTrade:
		return symbol + "@trade"
	default:
		return symbol + "@ticker"
	}
}

// Tick is one 24h rolling ticker update.
type Tick struct {
	Symbol         string
	Price          decimal.Decimal
	PriceChangePct decimal.Decimal
	High24h        decimal.Decimal
	Low24h         decimal.Decimal
	Volume24h      decimal.Decimal
	TradeCount     int64
	Timestamp      time.Time
}

// Candle is one kline. Closed candles are immutable; the open candle for the
// current interval may be replaced in place.
type Candle struct {
	Symbol      string
	Interval    string
	OpenTime    time.Time
	CloseTime   time.Time
	Open        decimal.Decimal
	High        decimal.Decimal
	Low         decimal.Decimal
	Close       decimal.Decimal
	Volume      decimal.Decimal
	QuoteVolume decimal.Decimal
	TradeCount  int64
	Closed      bool
}

// Level is one order-book price level.
type Level struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// DepthSnapshot is a point-in-time view of the order book.
type DepthSnapshot struct {
	Symbol       string
	Bids         []Level
	Asks         []Level
	LastUpdateID int64
	Timestamp    time.Time
}

// Trade is one executed trade print.
type Trade struct {
	Symbol     string
	TradeID    int64
	Price      decimal.Decimal
	Quantity   decimal.Decimal
	BuyerMaker bool
	Timestamp  time.Time
}

// SymbolStats are incrementally maintained rolling statistics for a symbol.
// The zero value is returned for symbols with no data yet.
type SymbolStats struct {
	Symbol         string
	LastPrice      decimal.Decimal
	PriceChange24h decimal.Decimal
	High24h        decimal.Decimal
	Low24h         decimal.Decimal
	Volume24h      decimal.Decimal
	TickCount      int64
	TradeCount     int64
	LastUpdate     time.Time
}
