package model

import (
	"time"

	"github.com/shopspring/decimal"

	"main/internal/model/enum"
)

// OrderRequest is the caller's intent, immutable once constructed.
type OrderRequest struct {
	Symbol        string
	Side          enum.OrderSide
	Type          enum.OrderType
	Quantity      decimal.Decimal
	Price         decimal.Decimal // limit price, zero for market orders
	StopPrice     decimal.Decimal // trigger price for stop orders
	TimeInForce   enum.TimeInForce
	StopLossPrice decimal.Decimal // spawns a linked child when set
	TakeProfit    decimal.Decimal // spawns a linked child when set
	ParentOrderID string
	// ReduceOnly marks an order that closes an existing position. Such
	// orders skip the pre-trade risk gate; a tripped breaker must never
	// strand an open position.
	ReduceOnly    bool
	Strategy      string
	ClientOrderID string // filled with a uuid by the order manager when empty
}

// Order is the manager's view of one tracked order. Mutated only by the
// order manager; terminal statuses are final.
type Order struct {
	ID              string
	ClientOrderID   string
	ExchangeOrderID string
	Symbol          string
	Side            enum.OrderSide
	Type            enum.OrderType
	Status          enum.OrderStatus

	Quantity          decimal.Decimal
	FilledQuantity    decimal.Decimal
	RemainingQuantity decimal.Decimal
	Price             decimal.Decimal
	StopPrice         decimal.Decimal
	AvgFillPrice      decimal.Decimal

	ParentOrderID     string
	Children          []string
	StopLossOrderID   string
	TakeProfitOrderID string
	StopLossPrice     decimal.Decimal
	TakeProfitPrice   decimal.Decimal

	Strategy string
	Reason   string // rejection or cancellation reason

	CreatedAt   time.Time
	SubmittedAt time.Time
	FilledAt    time.Time
	CancelledAt time.Time
}

// Clone returns a deep copy safe to hand to readers.
func (o Order) Clone() Order {
	clone := o
	clone.Children = append([]string(nil), o.Children...)
	return clone
}
