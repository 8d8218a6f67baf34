package exception

import "errors"

var (
	ErrMarketDataInvalidPayload = errors.New("market data: invalid payload")
	ErrMarketDataUnknownKind    = errors.New("market data: unknown stream kind")
	ErrMarketDataNoPrice        = errors.New("market data: no price available")
)
