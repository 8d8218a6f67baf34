// Package state tracks open positions and account equity, and watches them
// for stop-loss and take-profit exits.
package state

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/obs"
	"main/internal/risk"
	"main/pkg/exception"
)

type BookConfig struct {
	Bus    *bus.Bus
	Engine *risk.Engine
	// InitialEquity seeds the account balance for PnL accounting.
	InitialEquity decimal.Decimal
}

// Book holds the open position per symbol and the realized account equity.
// One open position per symbol at a time; exits are guarded so each trigger
// closes a position exactly once.
type Book struct {
	mu        sync.Mutex
	open      map[string]*model.Position // by symbol
	closed    []model.Position
	equity    decimal.Decimal
	exiting   map[string]struct{} // symbols with an exit in flight
	busSub    *bus.Subscription
	eventsBus *bus.Bus
	engine    *risk.Engine
}

func NewBook(conf BookConfig) *Book {
	b := &Book{
		open:      make(map[string]*model.Position),
		exiting:   make(map[string]struct{}),
		equity:    conf.InitialEquity,
		eventsBus: conf.Bus,
		engine:    conf.Engine,
	}
	obs.Equity.Set(equityGauge(b.equity))

	if conf.Bus != nil {
		sub, err := conf.Bus.Subscribe(enum.TopicOrder, b.onOrderEvent, bus.Sync)
		if err != nil {
			logs.Errorf("subscribe order events: %+v", err)
		} else {
			b.busSub = sub
		}
	}
	return b
}

// onOrderEvent opens a position when an entry order fills. Protective child
// orders never open positions.
func (b *Book) onOrderEvent(e bus.Event) {
	oe, ok := e.(bus.OrderEvent)
	if !ok || oe.Transition != "filled" || oe.Order.ParentOrderID != "" {
		return
	}
	if oe.Order.Type != enum.OrderTypeMarket && oe.Order.Type != enum.OrderTypeLimit {
		return
	}

	if _, err := b.Open(oe.Order); err != nil {
		logs.Warnf("open position for order %s: %v", oe.Order.ID, err)
	}
}

// Open records a new position from a filled entry order.
func (b *Book) Open(order model.Order) (model.Position, error) {
	b.mu.Lock()
	if _, exists := b.open[order.Symbol]; exists {
		b.mu.Unlock()
		return model.Position{}, errors.Wrap(exception.ErrPositionAlreadyOpen, order.Symbol)
	}

	position := &model.Position{
		ID:         uuid.NewString(),
		Symbol:     order.Symbol,
		Side:       order.Side,
		Quantity:   order.FilledQuantity,
		EntryPrice: order.AvgFillPrice,
		StopLoss:   order.StopLossPrice,
		TakeProfit: order.TakeProfitPrice,
		Status:     enum.PositionOpen,
		EntryTime:  time.Now(),
	}
	b.open[order.Symbol] = position
	snapshot := *position
	b.mu.Unlock()

	logs.Infof("opened %s %s %s @ %s", position.Side, position.Quantity, position.Symbol, position.EntryPrice)
	b.publish(bus.PositionEvent{Position: snapshot, Action: "opened", At: time.Now()})
	return snapshot, nil
}

// Close settles the open position for the symbol at the given price, records
// realized PnL against equity and the daily-loss tracker, and clears any
// exit-in-flight mark.
func (b *Book) Close(symbol string, exitPrice decimal.Decimal, reason string) (model.Position, error) {
	b.mu.Lock()
	position, ok := b.open[symbol]
	if !ok {
		b.mu.Unlock()
		return model.Position{}, errors.Wrap(exception.ErrPositionUnknownID, symbol)
	}

	position.ExitPrice = exitPrice
	position.PnL = position.UnrealizedPnL(exitPrice)
	position.Status = enum.PositionClosed
	position.ExitReason = reason
	position.ExitTime = time.Now()

	delete(b.open, symbol)
	delete(b.exiting, symbol)
	b.closed = append(b.closed, *position)
	b.equity = b.equity.Add(position.PnL)
	obs.Equity.Set(equityGauge(b.equity))
	obs.PositionsClosed.WithLabelValues(reason).Inc()
	snapshot := *position
	b.mu.Unlock()

	logs.Infof("closed %s %s @ %s, pnl %s (%s)", snapshot.Side, snapshot.Symbol, exitPrice, snapshot.PnL, reason)
	if b.engine != nil {
		if b.engine.RecordRealizedPnL(snapshot.PnL) {
			logs.Warnf("daily loss limit reached, breaker tripped")
			b.publish(bus.RiskEvent{
				Kind:     "breaker_tripped",
				Message:  "daily loss limit reached",
				Severity: "critical",
				At:       time.Now(),
			})
		}
	}
	b.publish(bus.PositionEvent{Position: snapshot, Action: "closed", At: time.Now()})
	return snapshot, nil
}

// BeginExit marks the symbol's position as exiting. A second trigger while
// an exit is in flight is refused, so concurrent triggers collapse to one
// close.
func (b *Book) BeginExit(symbol string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.open[symbol]; !ok {
		return errors.Wrap(exception.ErrPositionUnknownID, symbol)
	}
	if _, inFlight := b.exiting[symbol]; inFlight {
		return exception.ErrPositionExitInFlight
	}
	b.exiting[symbol] = struct{}{}
	return nil
}

// AbortExit clears the exit-in-flight mark after a failed close attempt so a
// later trigger can retry.
func (b *Book) AbortExit(symbol string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.exiting, symbol)
}

// OpenPosition returns a copy of the open position for the symbol.
func (b *Book) OpenPosition(symbol string) (model.Position, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	position, ok := b.open[symbol]
	if !ok {
		return model.Position{}, false
	}
	return *position, true
}

// OpenPositions returns copies of every open position.
func (b *Book) OpenPositions() []model.Position {
	b.mu.Lock()
	defer b.mu.Unlock()
	positions := make([]model.Position, 0, len(b.open))
	for _, p := range b.open {
		positions = append(positions, *p)
	}
	return positions
}

// ClosedPositions returns copies of the settled positions, oldest first.
func (b *Book) ClosedPositions() []model.Position {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.Position(nil), b.closed...)
}

// Equity returns the realized account equity.
func (b *Book) Equity() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.equity
}

// Shutdown detaches the book from the bus.
func (b *Book) Shutdown() {
	if b.busSub != nil {
		b.busSub.Close()
	}
}

func (b *Book) publish(e bus.Event) {
	if b.eventsBus != nil {
		b.eventsBus.Publish(e)
	}
}

func equityGauge(equity decimal.Decimal) float64 {
	f, _ := equity.Float64()
	return f
}
