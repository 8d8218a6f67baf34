package state

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/order"
)

const defaultCheckInterval = 30 * time.Second

// PriceFunc answers the latest price for a symbol, zero when unknown.
type PriceFunc func(symbol string) decimal.Decimal

type MonitorConfig struct {
	Book    *Book
	Manager *order.Manager
	Prices  PriceFunc
	// CheckInterval spaces the periodic exit sweeps.
	CheckInterval time.Duration
}

// Monitor periodically sweeps open positions and closes any whose stop-loss
// or take-profit level has been reached. Each trigger closes a position
// exactly once, even when a level stays breached across sweeps.
type Monitor struct {
	book     *Book
	manager  *order.Manager
	prices   PriceFunc
	interval time.Duration
}

func NewMonitor(conf MonitorConfig) *Monitor {
	interval := conf.CheckInterval
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	return &Monitor{
		book:     conf.Book,
		manager:  conf.Manager,
		prices:   conf.Prices,
		interval: interval,
	}
}

// Run sweeps until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	logs.Infof("position monitor started, interval %s", m.interval)
	for {
		select {
		case <-ctx.Done():
			logs.Info("position monitor stopped")
			return
		case <-sys.Shutdown():
			logs.Info("position monitor stopped")
			return
		case <-ticker.C:
			m.CheckOnce(ctx)
		}
	}
}

// CheckOnce runs a single sweep over all open positions. Positions without a
// known price are skipped until data arrives.
func (m *Monitor) CheckOnce(ctx context.Context) {
	for _, position := range m.book.OpenPositions() {
		price := m.prices(position.Symbol)
		if price.IsZero() {
			continue
		}

		exit, reason := position.ShouldExit(price)
		if !exit {
			continue
		}
		if err := m.book.BeginExit(position.Symbol); err != nil {
			continue
		}
		m.exit(ctx, position, price, reason)
	}
}

// exit closes the position with an opposite-side market order, then settles
// the book and cancels any leftover protective orders for the symbol. A
// failed close clears the in-flight mark so the next sweep retries.
func (m *Monitor) exit(ctx context.Context, position model.Position, price decimal.Decimal, reason string) {
	result, err := m.manager.Submit(ctx, model.OrderRequest{
		Symbol:        position.Symbol,
		Side:          position.Side.Opposite(),
		Type:          enum.OrderTypeMarket,
		Quantity:      position.Quantity,
		ParentOrderID: position.ID,
		ReduceOnly:    true,
	})
	if err != nil || !result.OK {
		m.book.AbortExit(position.Symbol)
		logs.Errorf("close %s position: %v (%s)", position.Symbol, err, result.Reason)
		return
	}

	if _, err := m.book.Close(position.Symbol, price, reason); err != nil {
		logs.Errorf("settle %s position: %+v", position.Symbol, err)
		return
	}

	for _, leftover := range m.manager.ActiveOrders(position.Symbol) {
		if leftover.ID == result.Order.ID || !leftover.Status.IsCancellable() {
			continue
		}
		if _, err := m.manager.Cancel(ctx, leftover.ID); err != nil {
			logs.Warnf("cancel leftover order %s: %v", leftover.ID, err)
		}
	}
}
