// Package delegator defines the exchange boundary for order routing.
package delegator

import (
	"context"

	"main/internal/model"
)

// Delegator routes accepted orders to an execution venue and answers the
// REST-side market queries the venue exposes. Implementations return the
// venue's own order identifier on placement.
type Delegator interface {
	// GetTicker fetches the venue's rolling 24h statistics for a symbol.
	GetTicker(ctx context.Context, symbol string) (model.SymbolStats, error)
	// GetKlines fetches up to limit recent candles for a symbol and interval.
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error)
	// PlaceOrder submits the order and returns the exchange order id.
	PlaceOrder(ctx context.Context, order *model.Order) (string, error)
	// CancelOrder cancels a previously placed order on the venue.
	CancelOrder(ctx context.Context, symbol, exchangeOrderID string) error
}
