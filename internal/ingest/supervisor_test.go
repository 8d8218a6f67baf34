package ingest

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"main/internal/bus"
	"main/internal/marketdata"
	"main/internal/model"
	"main/internal/model/enum"
	"main/pkg/exception"
)

type fakeConn struct {
	messages chan []byte
	closed   chan struct{}
}

func newFakeConn(messages ...[]byte) *fakeConn {
	conn := &fakeConn{
		messages: make(chan []byte, len(messages)+1),
		closed:   make(chan struct{}),
	}
	for _, m := range messages {
		conn.messages <- m
	}
	return conn
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case raw, ok := <-c.messages:
		if !ok {
			return 0, nil, io.EOF
		}
		return 1, raw, nil
	case <-c.closed:
		return 0, nil, io.EOF
	}
}

func (c *fakeConn) SetReadLimit(int64)                        {}
func (c *fakeConn) SetReadDeadline(time.Time) error           { return nil }
func (c *fakeConn) SetPongHandler(func(string) error)         {}
func (c *fakeConn) WriteControl(int, []byte, time.Time) error { return nil }
func (c *fakeConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return nil
}

func waitForState(t *testing.T, s *Supervisor, key model.StreamKey, want enum.StreamState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		state, err := s.State(key)
		if err == nil && state == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	state, _ := s.State(key)
	t.Fatalf("state mismatch! should be %s but got %s", want, state)
}

func TestSubscribeValidation(t *testing.T) {
	s := NewSupervisor(Config{})
	defer s.Close()

	err := s.Subscribe(context.Background(), model.StreamKey{Kind: enum.StreamTicker})
	require.ErrorIs(t, err, exception.ErrStreamInvalidRequest)

	err = s.Subscribe(context.Background(), model.StreamKey{Symbol: "BTCUSDT", Kind: enum.StreamKline})
	require.ErrorIs(t, err, exception.ErrStreamInvalidRequest)

	_, err = s.State(model.StreamKey{Symbol: "BTCUSDT", Kind: enum.StreamTicker})
	require.ErrorIs(t, err, exception.ErrStreamUnknownKey)
}

func TestReconnectExhaustionMarksFailed(t *testing.T) {
	var dials atomic.Int32
	s := NewSupervisor(Config{
		Dial: func(context.Context, string) (Conn, error) {
			dials.Add(1)
			return nil, exception.ErrStreamDialFailed
		},
		BaseDelay:   time.Millisecond,
		MaxAttempts: 3,
	})
	defer s.Close()

	key := model.StreamKey{Symbol: "BTCUSDT", Kind: enum.StreamTicker}
	require.NoError(t, s.Subscribe(context.Background(), key))

	waitForState(t, s, key, enum.StreamFailed)
	require.EqualValues(t, 3, dials.Load())

	// A failed stream stays failed until someone resubscribes.
	time.Sleep(20 * time.Millisecond)
	require.EqualValues(t, 3, dials.Load())
}

func TestResubscribeAfterFailureGetsFreshBudget(t *testing.T) {
	var dials atomic.Int32
	s := NewSupervisor(Config{
		Dial: func(context.Context, string) (Conn, error) {
			dials.Add(1)
			return nil, exception.ErrStreamDialFailed
		},
		BaseDelay:   time.Millisecond,
		MaxAttempts: 2,
	})
	defer s.Close()

	key := model.StreamKey{Symbol: "BTCUSDT", Kind: enum.StreamTrade}
	require.NoError(t, s.Subscribe(context.Background(), key))
	waitForState(t, s, key, enum.StreamFailed)
	require.EqualValues(t, 2, dials.Load())

	require.NoError(t, s.Subscribe(context.Background(), key))
	waitForState(t, s, key, enum.StreamFailed)
	require.EqualValues(t, 4, dials.Load())
}

func TestSubscribeIdempotentWhileLive(t *testing.T) {
	var dials atomic.Int32
	s := NewSupervisor(Config{
		Dial: func(context.Context, string) (Conn, error) {
			dials.Add(1)
			return newFakeConn(), nil
		},
		BaseDelay:   time.Millisecond,
		MaxAttempts: 3,
	})
	defer s.Close()

	key := model.StreamKey{Symbol: "BTCUSDT", Kind: enum.StreamTicker}
	require.NoError(t, s.Subscribe(context.Background(), key))
	waitForState(t, s, key, enum.StreamConnected)

	require.NoError(t, s.Subscribe(context.Background(), key))
	require.EqualValues(t, 1, dials.Load())
	require.Len(t, s.Streams(), 1)
}

func TestMessageRefundsRetryBudget(t *testing.T) {
	ticker := []byte(`{"e":"24hrTicker","E":1700000000000,"s":"BTCUSDT","c":"50000.1","P":"1.5","h":"51000","l":"49000","v":"1234.5","n":42}`)

	var dials atomic.Int32
	s := NewSupervisor(Config{
		// Every dial succeeds and delivers one message before the connection
		// drops again.
		Dial: func(context.Context, string) (Conn, error) {
			dials.Add(1)
			return newFakeConnClosed(ticker), nil
		},
		BaseDelay:   time.Millisecond,
		MaxAttempts: 2,
	})
	defer s.Close()

	key := model.StreamKey{Symbol: "BTCUSDT", Kind: enum.StreamTicker}
	require.NoError(t, s.Subscribe(context.Background(), key))

	// With the budget refunded after each delivered message the stream
	// survives far more drops than MaxAttempts alone would allow.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && dials.Load() < 6 {
		time.Sleep(5 * time.Millisecond)
	}
	require.GreaterOrEqual(t, dials.Load(), int32(6))
}

func newFakeConnClosed(messages ...[]byte) *fakeConn {
	conn := newFakeConn(messages...)
	close(conn.messages)
	return conn
}

func TestDispatchFansOutToBufferAndBus(t *testing.T) {
	buffer := marketdata.NewBuffer(marketdata.Config{})
	b := bus.New(bus.Config{})
	defer b.Shutdown(context.Background())

	var klineEvents atomic.Int32
	_, err := b.Subscribe(enum.TopicKlineClosed, func(bus.Event) { klineEvents.Add(1) }, bus.Sync)
	require.NoError(t, err)

	s := NewSupervisor(Config{Buffer: buffer, Bus: b})

	openKline := []byte(`{"e":"kline","E":1700000000000,"s":"BTCUSDT","k":{"t":1700000000000,"T":1700000059999,"i":"1m","o":"50000","c":"50100","h":"50200","l":"49900","v":"10","q":"501000","n":5,"x":false}}`)
	closedKline := []byte(`{"e":"kline","E":1700000060000,"s":"BTCUSDT","k":{"t":1700000000000,"T":1700000059999,"i":"1m","o":"50000","c":"50150","h":"50200","l":"49900","v":"12","q":"601800","n":7,"x":true}}`)

	key := model.StreamKey{Symbol: "BTCUSDT", Kind: enum.StreamKline, Interval: "1m"}
	s.dispatch(key, openKline)
	s.dispatch(key, closedKline)

	candles := buffer.RecentCandles("BTCUSDT", "1m", 10)
	require.Len(t, candles, 1, "open candle must be replaced in place")
	require.True(t, candles[0].Closed)
	require.EqualValues(t, 1, klineEvents.Load(), "only closed candles are published")

	// Garbage frames are counted and skipped.
	s.dispatch(key, []byte(`{not json`))
	require.Len(t, buffer.RecentCandles("BTCUSDT", "1m", 10), 1)
}
