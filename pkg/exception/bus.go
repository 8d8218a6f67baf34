package exception

import "errors"

var (
	ErrBusClosed        = errors.New("bus: closed")
	ErrBusInvalidTopic  = errors.New("bus: invalid topic")
	ErrBusNilHandler    = errors.New("bus: nil handler")
	ErrBusQueueFull     = errors.New("bus: subscriber queue full")
	ErrBusNilSubscriber = errors.New("bus: nil subscription")
)
