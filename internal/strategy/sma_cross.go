package strategy

import (
	"github.com/shopspring/decimal"

	"main/internal/marketdata"
	"main/internal/model"
	"main/internal/model/enum"
)

// SMACross signals on the close-price crossover of a fast and a slow simple
// moving average. Only closed candles feed the averages.
type SMACross struct {
	Fast int
	Slow int
	// StopLossPct/TakeProfitPct set the protective levels relative to entry.
	StopLossPct   decimal.Decimal
	TakeProfitPct decimal.Decimal
}

func NewSMACross(fast, slow int) *SMACross {
	return &SMACross{
		Fast:          fast,
		Slow:          slow,
		StopLossPct:   decimal.NewFromFloat(0.02),
		TakeProfitPct: decimal.NewFromFloat(0.04),
	}
}

func (s *SMACross) Name() string { return "sma_cross" }

func (s *SMACross) Evaluate(buffer *marketdata.Buffer, symbol, interval string) model.Signal {
	// One extra closed candle so the averages exist both before and after
	// the cross, plus one slot for the open candle the filter drops.
	candles := closedCandles(buffer.RecentCandles(symbol, interval, s.Slow+2))
	if len(candles) < s.Slow+1 {
		return model.Hold("insufficient closed candles")
	}
	if len(candles) > s.Slow+1 {
		candles = candles[len(candles)-s.Slow-1:]
	}

	prevFast := sma(candles[:len(candles)-1], s.Fast)
	prevSlow := sma(candles[:len(candles)-1], s.Slow)
	currFast := sma(candles, s.Fast)
	currSlow := sma(candles, s.Slow)

	entry := candles[len(candles)-1].Close
	switch {
	case prevFast.LessThanOrEqual(prevSlow) && currFast.GreaterThan(currSlow):
		return model.Signal{
			Action:     enum.SignalBuy,
			Confidence: s.confidence(currFast, currSlow),
			EntryPrice: entry,
			StopLoss:   entry.Mul(decimal.NewFromInt(1).Sub(s.StopLossPct)),
			TakeProfit: entry.Mul(decimal.NewFromInt(1).Add(s.TakeProfitPct)),
			Reason:     "fast sma crossed above slow sma",
		}
	case prevFast.GreaterThanOrEqual(prevSlow) && currFast.LessThan(currSlow):
		return model.Signal{
			Action:     enum.SignalSell,
			Confidence: s.confidence(currFast, currSlow),
			EntryPrice: entry,
			StopLoss:   entry.Mul(decimal.NewFromInt(1).Add(s.StopLossPct)),
			TakeProfit: entry.Mul(decimal.NewFromInt(1).Sub(s.TakeProfitPct)),
			Reason:     "fast sma crossed below slow sma",
		}
	}
	return model.Hold("no crossover")
}

// confidence scales with the relative separation of the averages, capped at 1.
func (s *SMACross) confidence(fast, slow decimal.Decimal) float64 {
	if slow.IsZero() {
		return 0
	}
	gap, _ := fast.Sub(slow).Abs().Div(slow).Float64()
	confidence := gap * 100
	if confidence > 1 {
		return 1
	}
	return confidence
}

func closedCandles(candles []model.Candle) []model.Candle {
	closed := candles[:0:0]
	for _, c := range candles {
		if c.Closed {
			closed = append(closed, c)
		}
	}
	return closed
}

// sma averages the closes of the last n candles.
func sma(candles []model.Candle, n int) decimal.Decimal {
	if n <= 0 || len(candles) < n {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, c := range candles[len(candles)-n:] {
		sum = sum.Add(c.Close)
	}
	return sum.Div(decimal.NewFromInt(int64(n)))
}
