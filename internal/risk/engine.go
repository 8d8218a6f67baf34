package risk

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"main/internal/model"
	"main/internal/model/enum"
)

// Reason tags why an order intent was denied.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonMaxOrders
	ReasonMaxPositionValue
	ReasonMaxPositionPct
	ReasonStopSide
	ReasonDailyLoss
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonMaxOrders:
		return "max_orders_per_symbol"
	case ReasonMaxPositionValue:
		return "max_position_value"
	case ReasonMaxPositionPct:
		return "max_position_percentage"
	case ReasonStopSide:
		return "stop_loss_wrong_side"
	case ReasonDailyLoss:
		return "daily_loss_breaker"
	default:
		return "unknown"
	}
}

// Decision is the outcome of a pre-trade evaluation.
type Decision struct {
	Allow   bool
	Reason  Reason
	Message string
}

func deny(reason Reason, format string, args ...any) Decision {
	return Decision{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// StateView provides the account snapshot an evaluation runs against.
type StateView struct {
	// ActiveOrders counts non-terminal orders already tracked for the symbol.
	ActiveOrders int
	// Equity is the current account equity in quote currency.
	Equity decimal.Decimal
	// CurrentPrice is the latest market price, used for market orders.
	CurrentPrice decimal.Decimal
}

// Engine evaluates order intents against the configured limits and tracks
// the daily-loss circuit breaker.
type Engine struct {
	params atomic.Pointer[Parameters]

	mu        sync.Mutex
	dailyLoss decimal.Decimal
	tripped   atomic.Bool
}

// NewEngine creates a risk engine with the given limits.
func NewEngine(params Parameters) *Engine {
	e := &Engine{}
	e.params.Store(&params)
	return e
}

// Params returns the current limits.
func (e *Engine) Params() Parameters {
	return *e.params.Load()
}

// Update atomically replaces the limits.
func (e *Engine) Update(params Parameters) {
	e.params.Store(&params)
}

// Evaluate applies the pre-trade checks. A denied decision means no exchange
// call may be made.
func (e *Engine) Evaluate(req model.OrderRequest, view StateView) Decision {
	params := e.Params()

	if e.tripped.Load() {
		return deny(ReasonDailyLoss, "daily loss limit reached, trading suspended until reset")
	}

	if params.MaxOrdersPerSymbol > 0 && view.ActiveOrders >= params.MaxOrdersPerSymbol {
		return deny(ReasonMaxOrders, "maximum orders per symbol exceeded (%d)", params.MaxOrdersPerSymbol)
	}

	entry := req.Price
	if entry.IsZero() {
		entry = view.CurrentPrice
	}

	positionValue := req.Quantity.Mul(entry)
	if params.MaxPositionSize.IsPositive() && positionValue.GreaterThan(params.MaxPositionSize) {
		return deny(ReasonMaxPositionValue, "position value %s exceeds maximum %s", positionValue, params.MaxPositionSize)
	}
	if params.MaxPositionPct.IsPositive() && view.Equity.IsPositive() {
		limit := view.Equity.Mul(params.MaxPositionPct)
		if positionValue.GreaterThan(limit) {
			return deny(ReasonMaxPositionPct, "position value %s exceeds %s%% of equity", positionValue, params.MaxPositionPct.Mul(decimal.NewFromInt(100)))
		}
	}

	if !req.StopLossPrice.IsZero() && !entry.IsZero() {
		switch req.Side {
		case enum.OrderSideBuy:
			if req.StopLossPrice.GreaterThanOrEqual(entry) {
				return deny(ReasonStopSide, "stop loss must be below entry price for BUY orders")
			}
		case enum.OrderSideSell:
			if req.StopLossPrice.LessThanOrEqual(entry) {
				return deny(ReasonStopSide, "stop loss must be above entry price for SELL orders")
			}
		}
	}

	return Decision{Allow: true, Reason: ReasonNone}
}

// RecordRealizedPnL feeds a closed trade into the daily-loss tracker.
// Returns true when this record tripped the breaker.
func (e *Engine) RecordRealizedPnL(pnl decimal.Decimal) bool {
	if !pnl.IsNegative() {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.dailyLoss = e.dailyLoss.Add(pnl.Abs())
	params := e.Params()
	if params.MaxDailyLoss.IsPositive() && e.dailyLoss.GreaterThanOrEqual(params.MaxDailyLoss) {
		return e.tripped.CompareAndSwap(false, true)
	}
	return false
}

// DailyLoss returns the cumulative realized loss since the last reset.
func (e *Engine) DailyLoss() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dailyLoss
}

// BreakerTripped reports whether new submissions are suspended.
func (e *Engine) BreakerTripped() bool {
	return e.tripped.Load()
}

// ResetDailyLoss clears the tracker and re-arms the breaker. Called at the
// daily rollover or by an explicit operator action.
func (e *Engine) ResetDailyLoss() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dailyLoss = decimal.Zero
	e.tripped.Store(false)
}
