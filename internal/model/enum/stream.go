package enum

// StreamKind identifies the kind of market data carried by one stream.
type StreamKind string

const (
	StreamTicker StreamKind = "ticker"
	StreamKline  StreamKind = "kline"
	StreamDepth  StreamKind = "depth"
	StreamTrade  StreamKind = "trade"
)

func (k StreamKind) IsAvailable() bool {
	switch k {
	case StreamTicker, StreamKline, StreamDepth, StreamTrade:
		return true
	default:
		return false
	}
}

// StreamState tracks the lifecycle of one supervised stream connection.
type StreamState uint8

const (
	StreamDisconnected StreamState = iota
	StreamConnecting
	StreamConnected
	StreamFailed
)

func (s StreamState) String() string {
	switch s {
	case StreamDisconnected:
		return "disconnected"
	case StreamConnecting:
		return "connecting"
	case StreamConnected:
		return "connected"
	case StreamFailed:
		return "failed"
	default:
		return "unknown"
	}
}
