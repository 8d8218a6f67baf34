// Package paper implements a simulated execution venue. Orders are
// acknowledged instantly and market orders fill at the last known price.
package paper

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"main/internal/model"
	"main/internal/model/enum"
	"main/pkg/exception"
)

// PriceSource answers the latest traded price for a symbol. A zero price
// means no data yet.
type PriceSource func(symbol string) decimal.Decimal

// FillFunc receives simulated executions. Invoked from a separate goroutine
// so callers may re-enter the order manager.
type FillFunc func(orderID string, quantity, price decimal.Decimal)

// Delegator is an in-memory venue for paper trading.
type Delegator struct {
	prices PriceSource
	onFill FillFunc
	seq    atomic.Int64

	// FillDelay spaces the ack from the simulated execution.
	FillDelay time.Duration
}

func New(prices PriceSource, onFill FillFunc) *Delegator {
	return &Delegator{
		prices:    prices,
		onFill:    onFill,
		FillDelay: 10 * time.Millisecond,
	}
}

func (d *Delegator) GetTicker(_ context.Context, symbol string) (model.SymbolStats, error) {
	price := d.prices(symbol)
	if price.IsZero() {
		return model.SymbolStats{}, exception.ErrMarketDataNoPrice
	}
	return model.SymbolStats{
		Symbol:     symbol,
		LastPrice:  price,
		LastUpdate: time.Now(),
	}, nil
}

func (d *Delegator) GetKlines(context.Context, string, string, int) ([]model.Candle, error) {
	return nil, nil
}

// PlaceOrder acknowledges immediately. Market orders are filled in full at
// the current price shortly after the ack returns.
func (d *Delegator) PlaceOrder(_ context.Context, order *model.Order) (string, error) {
	id := "PAPER-" + order.Symbol + "-" + strconv.FormatInt(d.seq.Add(1), 10)

	if order.Type == enum.OrderTypeMarket && d.onFill != nil {
		price := d.prices(order.Symbol)
		if price.IsZero() {
			price = order.Price
		}
		orderID := order.ID
		quantity := order.Quantity
		go func() {
			time.Sleep(d.FillDelay)
			d.onFill(orderID, quantity, price)
		}()
	}

	return id, nil
}

func (d *Delegator) CancelOrder(context.Context, string, string) error {
	return nil
}
