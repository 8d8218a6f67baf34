package strategy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"main/internal/marketdata"
	"main/internal/model"
	"main/internal/model/enum"
)

func seedCandles(buffer *marketdata.Buffer, symbol, interval string, closes []float64) {
	start := time.Unix(1700000000, 0)
	for i, close := range closes {
		buffer.AppendCandle(model.Candle{
			Symbol:   symbol,
			Interval: interval,
			OpenTime: start.Add(time.Duration(i) * time.Minute),
			Close:    decimal.NewFromFloat(close),
			Closed:   true,
		})
	}
}

func TestSMACrossSignals(t *testing.T) {
	provider := NewSMACross(2, 3)

	testCases := []struct {
		name   string
		closes []float64
		action enum.SignalAction
	}{
		{"uptrend breakout", []float64{100, 100, 100, 100, 110}, enum.SignalBuy},
		{"downtrend breakdown", []float64{100, 100, 100, 100, 90}, enum.SignalSell},
		{"flat market", []float64{100, 100, 100, 100, 100}, enum.SignalHold},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			buffer := marketdata.NewBuffer(marketdata.Config{})
			seedCandles(buffer, "BTCUSDT", "1m", tc.closes)

			signal := provider.Evaluate(buffer, "BTCUSDT", "1m")
			if signal.Action != tc.action {
				t.Fatalf("action mismatch! should be %s but got %s (%s)", tc.action, signal.Action, signal.Reason)
			}
		})
	}
}

func TestSMACrossProtectiveLevels(t *testing.T) {
	provider := NewSMACross(2, 3)
	buffer := marketdata.NewBuffer(marketdata.Config{})
	seedCandles(buffer, "BTCUSDT", "1m", []float64{100, 100, 100, 100, 110})

	signal := provider.Evaluate(buffer, "BTCUSDT", "1m")
	require.Equal(t, enum.SignalBuy, signal.Action)
	require.True(t, signal.EntryPrice.Equal(decimal.NewFromInt(110)))
	require.True(t, signal.StopLoss.LessThan(signal.EntryPrice))
	require.True(t, signal.TakeProfit.GreaterThan(signal.EntryPrice))
	require.Greater(t, signal.Confidence, 0.0)
}

func TestSMACrossInsufficientData(t *testing.T) {
	provider := NewSMACross(2, 3)
	buffer := marketdata.NewBuffer(marketdata.Config{})
	seedCandles(buffer, "BTCUSDT", "1m", []float64{100, 101})

	signal := provider.Evaluate(buffer, "BTCUSDT", "1m")
	require.Equal(t, enum.SignalHold, signal.Action)
}

func TestSMACrossIgnoresOpenCandle(t *testing.T) {
	provider := NewSMACross(2, 3)
	buffer := marketdata.NewBuffer(marketdata.Config{})
	seedCandles(buffer, "BTCUSDT", "1m", []float64{100, 100, 100, 100})

	// A sudden spike on the still-open candle must not produce a signal.
	buffer.AppendCandle(model.Candle{
		Symbol:   "BTCUSDT",
		Interval: "1m",
		OpenTime: time.Unix(1700000000, 0).Add(5 * time.Minute),
		Close:    decimal.NewFromInt(200),
		Closed:   false,
	})

	signal := provider.Evaluate(buffer, "BTCUSDT", "1m")
	require.Equal(t, enum.SignalHold, signal.Action)
}

func TestRegistry(t *testing.T) {
	provider := NewSMACross(9, 21)
	Register(provider)

	got, err := Lookup("sma_cross")
	require.NoError(t, err)
	require.Same(t, SignalProvider(provider), got)

	_, err = Lookup("missing")
	require.Error(t, err)
	require.Contains(t, Names(), "sma_cross")
}
