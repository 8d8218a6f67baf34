package exception

import "errors"

var (
	ErrOrderInvalidRequest  = errors.New("order: invalid request")
	ErrOrderUnknownID       = errors.New("order: unknown order id")
	ErrOrderNotCancellable  = errors.New("order: not cancellable from current status")
	ErrOrderNilDelegator    = errors.New("order: nil delegator")
	ErrOrderInvalidFill     = errors.New("order: invalid fill quantity")
	ErrOrderTerminal        = errors.New("order: already in terminal status")
	ErrOrderExchangeFailure = errors.New("order: exchange call failed")
)
