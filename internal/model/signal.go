package model

import (
	"github.com/shopspring/decimal"

	"main/internal/model/enum"
)

// Signal is a trading decision produced by a signal provider.
// Confidence is in [0, 1]. StopLoss/TakeProfit are optional (zero = unset).
type Signal struct {
	Action     enum.SignalAction
	Confidence float64
	EntryPrice decimal.Decimal
	StopLoss   decimal.Decimal
	TakeProfit decimal.Decimal
	Reason     string
}

// Hold is the neutral signal with an explanatory reason.
func Hold(reason string) Signal {
	return Signal{Action: enum.SignalHold, Reason: reason}
}
