package enum

// PositionStatus tracks whether a position is still held.
type PositionStatus string

const (
	PositionOpen   PositionStatus = "open"
	PositionClosed PositionStatus = "closed"
)

// SignalAction is the decision produced by a signal provider.
type SignalAction string

const (
	SignalBuy  SignalAction = "buy"
	SignalSell SignalAction = "sell"
	SignalHold SignalAction = "hold"
)

func (a SignalAction) IsAvailable() bool {
	switch a {
	case SignalBuy, SignalSell, SignalHold:
		return true
	default:
		return false
	}
}

// Side converts a non-hold action into the order side that opens the position.
func (a SignalAction) Side() OrderSide {
	if a == SignalSell {
		return OrderSideSell
	}
	return OrderSideBuy
}
