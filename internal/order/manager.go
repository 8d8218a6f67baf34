// Package order tracks the full lifecycle of every order and routes accepted
// ones to the configured execution venue.
package order

import (
	"context"
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
	"main/internal/order/delegator"
	"main/internal/risk"
	"main/pkg/exception"
)

// Result is the outcome of a submission or cancellation.
type Result struct {
	OK     bool
	Reason string
	Order  model.Order
}

type Config struct {
	Delegator delegator.Delegator
	Engine    *risk.Engine
	Bus       *bus.Bus

	// Equity answers the current account equity for risk evaluation.
	Equity func() decimal.Decimal
	// Price answers the latest market price for a symbol, zero when unknown.
	Price func(symbol string) decimal.Decimal
}

// Manager owns all tracked orders. All mutation happens under one mutex so
// transitions are serialized; events are published after the lock is
// released so subscribers may call back in.
type Manager struct {
	mu     sync.Mutex
	orders map[string]*model.Order

	delegator delegator.Delegator
	engine    *risk.Engine
	bus       *bus.Bus
	equity    func() decimal.Decimal
	price     func(symbol string) decimal.Decimal
}

func NewManager(conf Config) (*Manager, error) {
	if conf.Delegator == nil {
		return nil, exception.ErrOrderNilDelegator
	}

	m := &Manager{
		orders:    make(map[string]*model.Order),
		delegator: conf.Delegator,
		engine:    conf.Engine,
		bus:       conf.Bus,
		equity:    conf.Equity,
		price:     conf.Price,
	}
	if m.equity == nil {
		m.equity = func() decimal.Decimal { return decimal.Zero }
	}
	if m.price == nil {
		m.price = func(string) decimal.Decimal { return decimal.Zero }
	}
	return m, nil
}

// Submit runs the full pipeline: validate, risk gate, route to the venue,
// then spawn linked protective orders. The risk gate runs before any
// exchange call; a denied intent never leaves the process.
func (m *Manager) Submit(ctx context.Context, req model.OrderRequest) (Result, error) {
	if err := validate(req); err != nil {
		return Result{Reason: err.Error()}, err
	}

	m.mu.Lock()
	events := make([]bus.Event, 0, 4)
	result := m.submitLocked(ctx, req, &events)
	m.mu.Unlock()

	m.publish(events)
	return result, nil
}

func (m *Manager) submitLocked(ctx context.Context, req model.OrderRequest, events *[]bus.Event) Result {
	now := time.Now()
	clientID := req.ClientOrderID
	if clientID == "" {
		clientID = uuid.NewString()
	}

	order := &model.Order{
		ID:                uuid.NewString(),
		ClientOrderID:     clientID,
		Symbol:            req.Symbol,
		Side:              req.Side,
		Type:              req.Type,
		Status:            enum.OrderStatusPending,
		Quantity:          req.Quantity,
		RemainingQuantity: req.Quantity,
		Price:             req.Price,
		StopPrice:         req.StopPrice,
		ParentOrderID:     req.ParentOrderID,
		StopLossPrice:     req.StopLossPrice,
		TakeProfitPrice:   req.TakeProfit,
		Strategy:          req.Strategy,
		CreatedAt:         now,
	}
	m.orders[order.ID] = order
	*events = append(*events, bus.OrderEvent{Order: order.Clone(), Transition: "created", At: now})

	// Protective children run through the same gate as their parent, so
	// they count toward the per-symbol order limit. Only position-close
	// orders bypass it.
	if m.engine != nil && !req.ReduceOnly {
		decision := m.engine.Evaluate(req, risk.StateView{
			ActiveOrders: m.countActiveLocked(req.Symbol) - 1,
			Equity:       m.equity(),
			CurrentPrice: m.price(req.Symbol),
		})
		if !decision.Allow {
			order.Status = enum.OrderStatusRejected
			order.Reason = decision.Message
			obs.OrderRejections.WithLabelValues(decision.Reason.String()).Inc()
			logs.Warnf("order %s rejected: %s", order.ID, decision.Message)
			*events = append(*events, bus.OrderEvent{Order: order.Clone(), Transition: "rejected", At: time.Now()})
			return Result{Reason: decision.Message, Order: order.Clone()}
		}
	}

	exchangeID, err := m.delegator.PlaceOrder(ctx, order)
	if err != nil {
		order.Status = enum.OrderStatusRejected
		order.Reason = err.Error()
		obs.OrderRejections.WithLabelValues("exchange_error").Inc()
		logs.Errorf("place order %s: %+v", order.ID, errors.Wrap(err, "delegate"))
		*events = append(*events, bus.OrderEvent{Order: order.Clone(), Transition: "rejected", At: time.Now()})
		return Result{Reason: order.Reason, Order: order.Clone()}
	}

	order.ExchangeOrderID = exchangeID
	order.Status = enum.OrderStatusSubmitted
	order.SubmittedAt = time.Now()
	obs.Orders.WithLabelValues(string(order.Side), string(order.Status)).Inc()
	*events = append(*events, bus.OrderEvent{Order: order.Clone(), Transition: "submitted", At: order.SubmittedAt})

	m.spawnChildrenLocked(ctx, req, order, events)
	return Result{OK: true, Order: order.Clone()}
}

// spawnChildrenLocked places the linked stop-loss and take-profit orders for
// a submitted parent. Children carry the opposite side and the parent's full
// quantity.
func (m *Manager) spawnChildrenLocked(ctx context.Context, req model.OrderRequest, parent *model.Order, events *[]bus.Event) {
	childReq := func(typ enum.OrderType, stop decimal.Decimal) model.OrderRequest {
		return model.OrderRequest{
			Symbol:        req.Symbol,
			Side:          req.Side.Opposite(),
			Type:          typ,
			Quantity:      req.Quantity,
			StopPrice:     stop,
			ParentOrderID: parent.ID,
			Strategy:      req.Strategy,
		}
	}

	if !req.StopLossPrice.IsZero() {
		result := m.submitLocked(ctx, childReq(enum.OrderTypeStopLoss, req.StopLossPrice), events)
		if result.OK {
			parent.Children = append(parent.Children, result.Order.ID)
			parent.StopLossOrderID = result.Order.ID
		} else {
			logs.Warnf("stop loss child for %s not placed: %s", parent.ID, result.Reason)
		}
	}
	if !req.TakeProfit.IsZero() {
		result := m.submitLocked(ctx, childReq(enum.OrderTypeTakeProfit, req.TakeProfit), events)
		if result.OK {
			parent.Children = append(parent.Children, result.Order.ID)
			parent.TakeProfitOrderID = result.Order.ID
		} else {
			logs.Warnf("take profit child for %s not placed: %s", parent.ID, result.Reason)
		}
	}
}

// Cancel cancels the order and cascades into every linked child that is
// still cancellable.
func (m *Manager) Cancel(ctx context.Context, id string) (Result, error) {
	m.mu.Lock()
	order, ok := m.orders[id]
	if !ok {
		m.mu.Unlock()
		return Result{Reason: "unknown order id"}, exception.ErrOrderUnknownID
	}
	if !order.Status.IsCancellable() {
		m.mu.Unlock()
		return Result{Reason: "not cancellable from " + string(order.Status), Order: order.Clone()},
			errors.Wrapf(exception.ErrOrderNotCancellable, "status %s", order.Status)
	}

	events := make([]bus.Event, 0, 4)
	err := m.cancelLocked(ctx, order, "cancelled by caller", &events)
	if err != nil {
		result := Result{Reason: err.Error(), Order: order.Clone()}
		m.mu.Unlock()
		return result, err
	}
	result := Result{OK: true, Order: order.Clone()}
	m.mu.Unlock()

	m.publish(events)
	return result, nil
}

// cancelLocked transitions the order to CANCELLED and cascades into its
// children. When the exchange rejects the cancel the order keeps its status
// and the error is returned; the order may still be live on the venue.
func (m *Manager) cancelLocked(ctx context.Context, order *model.Order, reason string, events *[]bus.Event) error {
	if order.ExchangeOrderID != "" {
		if err := m.delegator.CancelOrder(ctx, order.Symbol, order.ExchangeOrderID); err != nil {
			logs.Errorf("cancel %s on exchange: %v", order.ID, err)
			return errors.Wrapf(exception.ErrOrderExchangeFailure, "cancel: %v", err)
		}
	}

	order.Status = enum.OrderStatusCancelled
	order.Reason = reason
	order.CancelledAt = time.Now()
	obs.Orders.WithLabelValues(string(order.Side), string(order.Status)).Inc()
	*events = append(*events, bus.OrderEvent{Order: order.Clone(), Transition: "cancelled", At: order.CancelledAt})

	for _, childID := range order.Children {
		child, ok := m.orders[childID]
		if !ok || !child.Status.IsCancellable() {
			continue
		}
		// Cascade is best effort: a stuck child keeps its status and stays
		// cancellable later.
		if err := m.cancelLocked(ctx, child, "parent cancelled", events); err != nil {
			logs.Warnf("cancel child %s: %v", childID, err)
		}
	}
	return nil
}

// ApplyFill records an execution. Fills never exceed the remaining quantity
// and filled plus remaining always equals the original quantity.
func (m *Manager) ApplyFill(id string, quantity, price decimal.Decimal) error {
	m.mu.Lock()
	order, ok := m.orders[id]
	if !ok {
		m.mu.Unlock()
		return exception.ErrOrderUnknownID
	}
	if order.Status.IsTerminal() {
		m.mu.Unlock()
		return errors.Wrapf(exception.ErrOrderTerminal, "status %s", order.Status)
	}
	if !quantity.IsPositive() || quantity.GreaterThan(order.RemainingQuantity) {
		m.mu.Unlock()
		return errors.Wrapf(exception.ErrOrderInvalidFill, "fill %s, remaining %s", quantity, order.RemainingQuantity)
	}

	filledValue := order.AvgFillPrice.Mul(order.FilledQuantity).Add(price.Mul(quantity))
	order.FilledQuantity = order.FilledQuantity.Add(quantity)
	order.RemainingQuantity = order.Quantity.Sub(order.FilledQuantity)
	order.AvgFillPrice = filledValue.Div(order.FilledQuantity)

	transition := "partially_filled"
	order.Status = enum.OrderStatusPartiallyFilled
	if order.RemainingQuantity.IsZero() {
		transition = "filled"
		order.Status = enum.OrderStatusFilled
		order.FilledAt = time.Now()
	}
	obs.Orders.WithLabelValues(string(order.Side), string(order.Status)).Inc()

	events := []bus.Event{bus.OrderEvent{Order: order.Clone(), Transition: transition, At: time.Now()}}
	m.mu.Unlock()

	m.publish(events)
	return nil
}

// Get returns a copy of one tracked order.
func (m *Manager) Get(id string) (model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return model.Order{}, exception.ErrOrderUnknownID
	}
	return order.Clone(), nil
}

// ActiveOrders returns copies of every non-terminal order, optionally
// filtered by symbol. Empty symbol matches all.
func (m *Manager) ActiveOrders(symbol string) []model.Order {
	m.mu.Lock()
	defer m.mu.Unlock()

	active := make([]model.Order, 0, len(m.orders))
	for _, order := range m.orders {
		if order.Status.IsTerminal() {
			continue
		}
		if symbol != "" && order.Symbol != symbol {
			continue
		}
		active = append(active, order.Clone())
	}
	return active
}

func (m *Manager) countActiveLocked(symbol string) int {
	count := 0
	for _, order := range m.orders {
		if !order.Status.IsTerminal() && order.Symbol == symbol {
			count++
		}
	}
	return count
}

func (m *Manager) publish(events []bus.Event) {
	if m.bus == nil {
		return
	}
	for _, e := range events {
		m.bus.Publish(e)
	}
}

func validate(req model.OrderRequest) error {
	switch {
	case req.Symbol == "":
		return errors.Wrap(exception.ErrOrderInvalidRequest, "empty symbol")
	case !req.Quantity.IsPositive():
		return errors.Wrap(exception.ErrOrderInvalidRequest, "quantity must be positive")
	case req.Type == enum.OrderTypeLimit && !req.Price.IsPositive():
		return errors.Wrap(exception.ErrOrderInvalidRequest, "limit order needs a price")
	}
	return nil
}
