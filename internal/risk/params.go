package risk

import "github.com/shopspring/decimal"

// Parameters defines the trading risk limits. Updates swap the whole struct
// atomically; a reader never observes a partially-updated set.
type Parameters struct {
	// MaxPositionSize caps position value in quote currency.
	MaxPositionSize decimal.Decimal
	// MaxPositionPct caps position value as a fraction of equity.
	MaxPositionPct decimal.Decimal
	// StopLossPct is the default stop distance when a request has none.
	StopLossPct decimal.Decimal
	// TakeProfitPct is the default take-profit distance.
	TakeProfitPct decimal.Decimal
	// MaxDailyLoss trips the circuit breaker once cumulative realized
	// losses reach it.
	MaxDailyLoss decimal.Decimal
	// MaxOrdersPerSymbol caps concurrently active orders per symbol.
	MaxOrdersPerSymbol int
}

// DefaultParameters mirrors the conventional limits used by the demo account.
func DefaultParameters() Parameters {
	return Parameters{
		MaxPositionSize:    decimal.NewFromInt(1000),
		MaxPositionPct:     decimal.NewFromFloat(0.1),
		StopLossPct:        decimal.NewFromFloat(0.02),
		TakeProfitPct:      decimal.NewFromFloat(0.04),
		MaxDailyLoss:       decimal.NewFromInt(100),
		MaxOrdersPerSymbol: 5,
	}
}
