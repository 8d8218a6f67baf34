// Package ingest supervises the websocket market-data streams: one
// connection per subscribed stream, reconnecting with linear backoff and
// publishing every decoded message to the buffer and the event bus.
package ingest

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/ingest/binance"
	"main/internal/marketdata"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/obs"
	"main/pkg/exception"
)

const (
	defaultBaseURL      = "wss://stream.binance.com:9443/ws"
	defaultBaseDelay    = time.Second
	defaultMaxAttempts  = 5
	defaultPingInterval = 15 * time.Second
	defaultDialTimeout  = 10 * time.Second

	readLimit = 1 << 20
)

// Conn is the subset of a websocket connection the supervisor reads from.
type Conn interface {
	ReadMessage() (int, []byte, error)
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// DialFunc opens a connection to one stream endpoint.
type DialFunc func(ctx context.Context, url string) (Conn, error)

func gorillaDial(ctx context.Context, url string) (Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: defaultDialTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

type Config struct {
	BaseURL string
	Dial    DialFunc

	// BaseDelay scales the reconnect backoff: retry n waits BaseDelay * n.
	BaseDelay time.Duration
	// MaxAttempts is the consecutive reconnect budget before a stream is
	// marked failed. A successful message refunds the whole budget.
	MaxAttempts  int
	PingInterval time.Duration

	Buffer *marketdata.Buffer
	Bus    *bus.Bus
}

// Supervisor owns one reader goroutine per subscribed stream.
type Supervisor struct {
	conf Config

	mu     sync.Mutex
	tasks  map[model.StreamKey]*task
	closed bool
}

type task struct {
	key    model.StreamKey
	state  atomic.Uint32
	cancel context.CancelFunc
	done   chan struct{}
}

func (t *task) setState(s enum.StreamState) { t.state.Store(uint32(s)) }
func (t *task) getState() enum.StreamState  { return enum.StreamState(t.state.Load()) }

func NewSupervisor(conf Config) *Supervisor {
	if conf.BaseURL == "" {
		conf.BaseURL = defaultBaseURL
	}
	if conf.Dial == nil {
		conf.Dial = gorillaDial
	}
	if conf.BaseDelay <= 0 {
		conf.BaseDelay = defaultBaseDelay
	}
	if conf.MaxAttempts <= 0 {
		conf.MaxAttempts = defaultMaxAttempts
	}
	if conf.PingInterval <= 0 {
		conf.PingInterval = defaultPingInterval
	}
	return &Supervisor{
		conf:  conf,
		tasks: make(map[model.StreamKey]*task),
	}
}

// Subscribe starts supervising the stream. Subscribing an already live
// stream is a no-op; resubscribing a failed stream restarts it with a fresh
// retry budget.
func (s *Supervisor) Subscribe(ctx context.Context, key model.StreamKey) error {
	if key.Symbol == "" || !key.Kind.IsAvailable() {
		return exception.ErrStreamInvalidRequest
	}
	if key.Kind == enum.StreamKline && key.Interval == "" {
		return exception.ErrStreamInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return exception.ErrStreamClosed
	}
	if existing, ok := s.tasks[key]; ok {
		if existing.getState() != enum.StreamFailed {
			return nil
		}
		delete(s.tasks, key)
	}

	taskCtx, cancel := context.WithCancel(ctx)
	t := &task{key: key, cancel: cancel, done: make(chan struct{})}
	t.setState(enum.StreamConnecting)
	s.tasks[key] = t

	go s.run(taskCtx, t)
	return nil
}

// Unsubscribe stops the stream's reader and waits for it to exit.
func (s *Supervisor) Unsubscribe(key model.StreamKey) error {
	s.mu.Lock()
	t, ok := s.tasks[key]
	if ok {
		delete(s.tasks, key)
	}
	s.mu.Unlock()

	if !ok {
		return exception.ErrStreamUnknownKey
	}
	t.cancel()
	<-t.done
	return nil
}

// State reports the lifecycle state of one stream.
func (s *Supervisor) State(key model.StreamKey) (enum.StreamState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[key]
	if !ok {
		return enum.StreamDisconnected, exception.ErrStreamUnknownKey
	}
	return t.getState(), nil
}

// Streams returns the state of every supervised stream.
func (s *Supervisor) Streams() map[model.StreamKey]enum.StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	states := make(map[model.StreamKey]enum.StreamState, len(s.tasks))
	for key, t := range s.tasks {
		states[key] = t.getState()
	}
	return states
}

// Close stops every stream and waits for all readers to exit.
func (s *Supervisor) Close() {
	s.mu.Lock()
	s.closed = true
	tasks := make([]*task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	s.tasks = make(map[model.StreamKey]*task)
	s.mu.Unlock()

	for _, t := range tasks {
		t.cancel()
	}
	for _, t := range tasks {
		<-t.done
	}
}

// run owns one stream: dial, read until the connection drops, back off
// linearly, redial. Exhausting the retry budget marks the stream failed and
// leaves recovery to an explicit resubscribe.
func (s *Supervisor) run(ctx context.Context, t *task) {
	defer close(t.done)

	name := t.key.Name()
	url := s.conf.BaseURL + "/" + name
	attempt := 0

	for {
		if ctx.Err() != nil {
			t.setState(enum.StreamDisconnected)
			return
		}

		t.setState(enum.StreamConnecting)
		conn, err := s.conf.Dial(ctx, url)
		if err != nil {
			attempt++
			obs.StreamReconnects.WithLabelValues(name).Inc()
			if attempt >= s.conf.MaxAttempts {
				s.fail(t, name)
				return
			}
			delay := s.conf.BaseDelay * time.Duration(attempt)
			logs.Warnf("stream %s dial failed (attempt %d/%d), retrying in %s: %v",
				name, attempt, s.conf.MaxAttempts, delay, err)
			if !sleep(ctx, delay) {
				t.setState(enum.StreamDisconnected)
				return
			}
			continue
		}

		t.setState(enum.StreamConnected)
		logs.Infof("stream %s connected", name)
		s.publish(bus.SystemEvent{Action: "stream_connected", Message: name, At: time.Now()})

		attempt = s.read(ctx, t, conn, attempt)
		_ = conn.Close()

		if ctx.Err() != nil {
			t.setState(enum.StreamDisconnected)
			return
		}

		attempt++
		obs.StreamReconnects.WithLabelValues(name).Inc()
		if attempt >= s.conf.MaxAttempts {
			s.fail(t, name)
			return
		}
		delay := s.conf.BaseDelay * time.Duration(attempt)
		logs.Warnf("stream %s disconnected (attempt %d/%d), reconnecting in %s",
			name, attempt, s.conf.MaxAttempts, delay)
		if !sleep(ctx, delay) {
			t.setState(enum.StreamDisconnected)
			return
		}
	}
}

// read pumps messages until the connection drops. Returns the retry counter,
// reset to zero as soon as one message arrives intact.
func (s *Supervisor) read(ctx context.Context, t *task, conn Conn, attempt int) int {
	name := t.key.Name()

	conn.SetReadLimit(readLimit)
	deadline := 2 * s.conf.PingInterval
	_ = conn.SetReadDeadline(time.Now().Add(deadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(deadline))
	})

	pingCtx, stopPing := context.WithCancel(ctx)
	defer stopPing()
	go s.ping(pingCtx, conn)

	// Closing the connection is the only way to unblock a pending read.
	go func() {
		<-pingCtx.Done()
		_ = conn.Close()
	}()

	for {
		if ctx.Err() != nil {
			return attempt
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				logs.Warnf("stream %s read: %v", name, err)
			}
			return attempt
		}
		attempt = 0
		_ = conn.SetReadDeadline(time.Now().Add(deadline))
		s.dispatch(t.key, raw)
	}
}

func (s *Supervisor) ping(ctx context.Context, conn Conn) {
	ticker := time.NewTicker(s.conf.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(5 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func (s *Supervisor) fail(t *task, name string) {
	t.setState(enum.StreamFailed)
	obs.StreamFailures.WithLabelValues(name).Inc()
	logs.Errorf("stream %s failed after %d attempts, waiting for resubscribe", name, s.conf.MaxAttempts)
	s.publish(bus.SystemEvent{
		Action:  "stream_failed",
		Message: name,
		At:      time.Now(),
	})
}

// dispatch decodes one frame and fans it out. A malformed frame is counted
// and skipped without touching the connection.
func (s *Supervisor) dispatch(key model.StreamKey, raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			logs.Errorf("stream %s dispatch panic: %v", key.Name(), r)
		}
	}()

	now := time.Now()
	switch key.Kind {
	case enum.StreamTicker:
		tick, err := binance.ParseTicker(raw)
		if err != nil {
			s.parseError(key, err)
			return
		}
		if s.conf.Buffer != nil {
			s.conf.Buffer.AppendTick(tick)
		}
		s.publish(bus.MarketDataEvent{Symbol: tick.Symbol, Price: tick.Price, Volume: tick.Volume24h, At: now})

	case enum.StreamKline:
		candle, err := binance.ParseKline(raw)
		if err != nil {
			s.parseError(key, err)
			return
		}
		if s.conf.Buffer != nil {
			s.conf.Buffer.AppendCandle(candle)
		}
		if candle.Closed {
			s.publish(bus.KlineClosedEvent{Candle: candle, At: now})
		}

	case enum.StreamDepth:
		snapshot, err := binance.ParseDepth(key.Symbol, raw)
		if err != nil {
			s.parseError(key, err)
			return
		}
		if s.conf.Buffer != nil {
			s.conf.Buffer.AppendDepth(snapshot)
		}
		s.publish(bus.DepthEvent{Snapshot: snapshot, At: now})

	case enum.StreamTrade:
		trade, err := binance.ParseTrade(raw)
		if err != nil {
			s.parseError(key, err)
			return
		}
		if s.conf.Buffer != nil {
			s.conf.Buffer.AppendTrade(trade)
		}
		s.publish(bus.TradeEvent{Trade: trade, At: now})

	default:
		s.parseError(key, exception.ErrMarketDataUnknownKind)
	}
}

func (s *Supervisor) parseError(key model.StreamKey, err error) {
	obs.ParseErrors.WithLabelValues(key.Name()).Inc()
	logs.Warnf("stream %s: %v", key.Name(), err)
}

func (s *Supervisor) publish(e bus.Event) {
	if s.conf.Bus != nil {
		s.conf.Bus.Publish(e)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
