package exception

import "errors"

var (
	ErrStreamInvalidRequest = errors.New("stream: invalid request")
	ErrStreamUnknownKey     = errors.New("stream: unknown stream key")
	ErrStreamClosed         = errors.New("stream: supervisor closed")
	ErrStreamDialFailed     = errors.New("stream: dial failed")
)
