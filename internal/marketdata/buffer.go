package marketdata

import (
	"sync"

	"github.com/shopspring/decimal"

	"main/internal/model"
)

const (
	defaultTickCapacity  = 1000
	defaultKlineCapacity = 500
	defaultDepthCapacity = 100
	defaultTradeCapacity = 500
)

// Config bounds each per-(symbol, kind) ring.
type Config struct {
	TickCapacity  int
	KlineCapacity int
	DepthCapacity int
	TradeCapacity int
}

func (c Config) withDefaults() Config {
	if c.TickCapacity <= 0 {
		c.TickCapacity = defaultTickCapacity
	}
	if c.KlineCapacity <= 0 {
		c.KlineCapacity = defaultKlineCapacity
	}
	if c.DepthCapacity <= 0 {
		c.DepthCapacity = defaultDepthCapacity
	}
	if c.TradeCapacity <= 0 {
		c.TradeCapacity = defaultTradeCapacity
	}
	return c
}

// Buffer is the bounded in-memory market data store. One writer per stream,
// many readers; readers always receive copies.
type Buffer struct {
	cfg Config

	mu     sync.RWMutex
	ticks  map[string]*Ring[model.Tick]
	klines map[string]map[string]*Ring[model.Candle]
	depth  map[string]*Ring[model.DepthSnapshot]
	trades map[string]*Ring[model.Trade]
	stats  map[string]*model.SymbolStats
}

// NewBuffer allocates an empty buffer with bounded rings.
func NewBuffer(cfg Config) *Buffer {
	return &Buffer{
		cfg:    cfg.withDefaults(),
		ticks:  make(map[string]*Ring[model.Tick]),
		klines: make(map[string]map[string]*Ring[model.Candle]),
		depth:  make(map[string]*Ring[model.DepthSnapshot]),
		trades: make(map[string]*Ring[model.Trade]),
		stats:  make(map[string]*model.SymbolStats),
	}
}

// AppendTick stores a ticker update and refreshes the rolling statistics.
func (b *Buffer) AppendTick(tick model.Tick) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ring, ok := b.ticks[tick.Symbol]
	if !ok {
		ring = NewRing[model.Tick](b.cfg.TickCapacity)
		b.ticks[tick.Symbol] = ring
	}
	ring.Append(tick)

	stats := b.statsLocked(tick.Symbol)
	stats.LastPrice = tick.Price
	stats.PriceChange24h = tick.PriceChangePct
	stats.High24h = tick.High24h
	stats.Low24h = tick.Low24h
	stats.Volume24h = tick.Volume24h
	stats.TickCount++
	stats.LastUpdate = tick.Timestamp
}

// AppendCandle stores a kline. The open candle for the current interval is
// replaced in place; a closed or new-interval candle appends.
func (b *Buffer) AppendCandle(candle model.Candle) {
	b.mu.Lock()
	defer b.mu.Unlock()

	intervals, ok := b.klines[candle.Symbol]
	if !ok {
		intervals = make(map[string]*Ring[model.Candle])
		b.klines[candle.Symbol] = intervals
	}
	ring, ok := intervals[candle.Interval]
	if !ok {
		ring = NewRing[model.Candle](b.cfg.KlineCapacity)
		intervals[candle.Interval] = ring
	}

	if newest, ok := ring.Newest(); ok && !newest.Closed && newest.OpenTime.Equal(candle.OpenTime) {
		ring.ReplaceNewest(candle)
		return
	}
	ring.Append(candle)
}

// AppendDepth stores an order-book snapshot.
func (b *Buffer) AppendDepth(snapshot model.DepthSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ring, ok := b.depth[snapshot.Symbol]
	if !ok {
		ring = NewRing[model.DepthSnapshot](b.cfg.DepthCapacity)
		b.depth[snapshot.Symbol] = ring
	}
	ring.Append(snapshot)
}

// AppendTrade stores a trade print and bumps the trade counter.
func (b *Buffer) AppendTrade(trade model.Trade) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ring, ok := b.trades[trade.Symbol]
	if !ok {
		ring = NewRing[model.Trade](b.cfg.TradeCapacity)
		b.trades[trade.Symbol] = ring
	}
	ring.Append(trade)
	b.statsLocked(trade.Symbol).TradeCount++
}

// RecentTicks returns up to n ticks, oldest to newest.
func (b *Buffer) RecentTicks(symbol string, n int) []model.Tick {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if ring, ok := b.ticks[symbol]; ok {
		return ring.Recent(n)
	}
	return nil
}

// RecentCandles returns up to n candles for an interval, oldest to newest.
func (b *Buffer) RecentCandles(symbol, interval string, n int) []model.Candle {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if intervals, ok := b.klines[symbol]; ok {
		if ring, ok := intervals[interval]; ok {
			return ring.Recent(n)
		}
	}
	return nil
}

// RecentDepth returns up to n order-book snapshots, oldest to newest.
func (b *Buffer) RecentDepth(symbol string, n int) []model.DepthSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if ring, ok := b.depth[symbol]; ok {
		return ring.Recent(n)
	}
	return nil
}

// RecentTrades returns up to n trade prints, oldest to newest.
func (b *Buffer) RecentTrades(symbol string, n int) []model.Trade {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if ring, ok := b.trades[symbol]; ok {
		return ring.Recent(n)
	}
	return nil
}

// Stats returns a snapshot of the rolling statistics for a symbol. Unknown
// symbols yield zero-valued stats, never an error.
func (b *Buffer) Stats(symbol string) model.SymbolStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if stats, ok := b.stats[symbol]; ok {
		return *stats
	}
	return model.SymbolStats{Symbol: symbol}
}

// LastPrice returns the most recent tick price, zero when unknown.
func (b *Buffer) LastPrice(symbol string) decimal.Decimal {
	return b.Stats(symbol).LastPrice
}

func (b *Buffer) statsLocked(symbol string) *model.SymbolStats {
	stats, ok := b.stats[symbol]
	if !ok {
		stats = &model.SymbolStats{Symbol: symbol}
		b.stats[symbol] = stats
	}
	return stats
}
