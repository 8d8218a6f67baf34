package exception

import "errors"

var (
	ErrPositionUnknownID    = errors.New("position: unknown position id")
	ErrPositionAlreadyOpen  = errors.New("position: symbol already has an open position")
	ErrPositionExitInFlight = errors.New("position: exit already in flight")
)
