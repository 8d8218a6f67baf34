package risk

import (
	"github.com/shopspring/decimal"
)

// Sizing breaks down how a recommended quantity was derived.
type Sizing struct {
	// Optimal is the quantity implied purely by the risk budget.
	Optimal decimal.Decimal
	// MaxByValue is the cap implied by the position limits.
	MaxByValue decimal.Decimal
	// Recommended is min(Optimal, MaxByValue), the quantity to submit.
	Recommended decimal.Decimal
	// PositionValue is Recommended * entry price.
	PositionValue decimal.Decimal
	// RiskAmount is the equity put at risk if the stop is hit.
	RiskAmount decimal.Decimal
}

// Sizer computes position sizes from the risk budget and the engine limits.
type Sizer struct {
	engine *Engine
}

func NewSizer(engine *Engine) *Sizer {
	return &Sizer{engine: engine}
}

// Size computes the quantity to trade given an entry, a stop level and the
// account equity. riskPct is the fraction of equity to put at risk per trade.
// A stop equal to the entry leaves nothing to size against and yields zero.
func (s *Sizer) Size(entry, stop, equity, riskPct decimal.Decimal) Sizing {
	params := s.engine.Params()

	if entry.IsZero() || equity.IsZero() {
		return Sizing{}
	}

	perUnit := entry.Sub(stop).Abs()
	if stop.IsZero() && params.StopLossPct.IsPositive() {
		perUnit = entry.Mul(params.StopLossPct)
	}
	if perUnit.IsZero() {
		return Sizing{}
	}

	riskAmount := equity.Mul(riskPct)
	optimal := riskAmount.Div(perUnit)

	maxByValue := optimal
	if params.MaxPositionSize.IsPositive() {
		maxByValue = params.MaxPositionSize.Div(entry)
	}
	if params.MaxPositionPct.IsPositive() {
		byPct := equity.Mul(params.MaxPositionPct).Div(entry)
		if byPct.LessThan(maxByValue) {
			maxByValue = byPct
		}
	}

	recommended := optimal
	if maxByValue.LessThan(recommended) {
		recommended = maxByValue
	}

	return Sizing{
		Optimal:       optimal,
		MaxByValue:    maxByValue,
		Recommended:   recommended,
		PositionValue: recommended.Mul(entry),
		RiskAmount:    recommended.Mul(perUnit),
	}
}
