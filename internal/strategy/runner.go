package strategy

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/marketdata"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/order"
	"main/internal/risk"
	"main/internal/state"
)

type RunnerConfig struct {
	Provider SignalProvider
	Buffer   *marketdata.Buffer
	Bus      *bus.Bus
	Manager  *order.Manager
	Book     *state.Book
	Sizer    *risk.Sizer

	// RiskPct is the fraction of equity risked per trade.
	RiskPct decimal.Decimal
	// MinConfidence drops weaker signals.
	MinConfidence float64
}

// Runner evaluates one provider on every closed candle and turns actionable
// signals into orders. At most one open position per symbol.
type Runner struct {
	conf RunnerConfig
	sub  *bus.Subscription
}

func NewRunner(conf RunnerConfig) (*Runner, error) {
	if conf.RiskPct.IsZero() {
		conf.RiskPct = decimal.NewFromFloat(0.01)
	}
	r := &Runner{conf: conf}

	sub, err := conf.Bus.Subscribe(enum.TopicKlineClosed, r.onKlineClosed, bus.Async)
	if err != nil {
		return nil, err
	}
	r.sub = sub
	return r, nil
}

func (r *Runner) Shutdown() {
	if r.sub != nil {
		r.sub.Close()
	}
}

func (r *Runner) onKlineClosed(e bus.Event) {
	ke, ok := e.(bus.KlineClosedEvent)
	if !ok {
		return
	}
	candle := ke.Candle

	signal := r.conf.Provider.Evaluate(r.conf.Buffer, candle.Symbol, candle.Interval)
	if signal.Action == enum.SignalHold {
		return
	}
	if signal.Confidence < r.conf.MinConfidence {
		return
	}
	if _, open := r.conf.Book.OpenPosition(candle.Symbol); open {
		return
	}

	sizing := r.conf.Sizer.Size(signal.EntryPrice, signal.StopLoss, r.conf.Book.Equity(), r.conf.RiskPct)
	if !sizing.Recommended.IsPositive() {
		logs.Warnf("%s signal on %s sized to zero, skipped", signal.Action, candle.Symbol)
		return
	}

	result, err := r.conf.Manager.Submit(context.Background(), model.OrderRequest{
		Symbol:        candle.Symbol,
		Side:          signal.Action.Side(),
		Type:          enum.OrderTypeMarket,
		Quantity:      sizing.Recommended,
		StopLossPrice: signal.StopLoss,
		TakeProfit:    signal.TakeProfit,
		Strategy:      r.conf.Provider.Name(),
	})
	if err != nil {
		logs.Errorf("submit %s order for %s: %+v", signal.Action, candle.Symbol, err)
		return
	}
	if !result.OK {
		logs.Warnf("%s order for %s rejected: %s", signal.Action, candle.Symbol, result.Reason)
		return
	}
	logs.Infof("%s %s %s @ %s (%s)", signal.Action, sizing.Recommended, candle.Symbol, signal.EntryPrice, signal.Reason)
}
