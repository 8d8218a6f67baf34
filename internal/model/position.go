package model

import (
	"time"

	"github.com/shopspring/decimal"

	"main/internal/model/enum"
)

// Position is an open or closed holding for one symbol.
type Position struct {
	ID         string
	Symbol     string
	Side       enum.OrderSide
	Quantity   decimal.Decimal
	EntryPrice decimal.Decimal
	ExitPrice  decimal.Decimal
	StopLoss   decimal.Decimal
	TakeProfit decimal.Decimal
	PnL        decimal.Decimal
	Status     enum.PositionStatus
	ExitReason string
	EntryTime  time.Time
	ExitTime   time.Time
}

// UnrealizedPnL computes side-aware PnL at the given price.
func (p Position) UnrealizedPnL(current decimal.Decimal) decimal.Decimal {
	if p.Side == enum.OrderSideBuy {
		return current.Sub(p.EntryPrice).Mul(p.Quantity)
	}
	return p.EntryPrice.Sub(current).Mul(p.Quantity)
}

// ShouldExit applies the side-aware stop-loss/take-profit rules. Zero-valued
// levels are treated as unset.
func (p Position) ShouldExit(current decimal.Decimal) (bool, string) {
	if p.Side == enum.OrderSideBuy {
		if !p.StopLoss.IsZero() && current.LessThanOrEqual(p.StopLoss) {
			return true, "stop_loss_triggered"
		}
		if !p.TakeProfit.IsZero() && current.GreaterThanOrEqual(p.TakeProfit) {
			return true, "take_profit_triggered"
		}
		return false, ""
	}
	if !p.StopLoss.IsZero() && current.GreaterThanOrEqual(p.StopLoss) {
		return true, "stop_loss_triggered"
	}
	if !p.TakeProfit.IsZero() && current.LessThanOrEqual(p.TakeProfit) {
		return true, "take_profit_triggered"
	}
	return false, ""
}
