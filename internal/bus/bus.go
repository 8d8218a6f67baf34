package bus

import (
	"context"
	"sort"
	"sync"

	"github.com/yanun0323/logs"

	"main/internal/model/enum"
	"main/internal/obs"
	"main/pkg/exception"
)

const (
	defaultHistorySize    = 1000
	defaultAsyncQueueSize = 256
)

// Mode selects how a subscriber receives events.
type Mode uint8

const (
	// Sync handlers run on the publisher's goroutine, in subscription order.
	Sync Mode = iota
	// Async handlers run on their own goroutine behind a bounded queue.
	Async
)

// Handler consumes one event. Panics are recovered and isolated per subscriber.
type Handler func(Event)

// Subscription is the handle returned by Subscribe. Closing it removes
// exactly that registration; removal from dispatch lists is lazy.
type Subscription struct {
	id      uint64
	topic   enum.Topic
	mode    Mode
	handler Handler
	q       *queue

	mu     sync.Mutex
	closed bool
}

// Close disposes the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.q != nil {
		s.q.close()
	}
}

func (s *Subscription) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Config bounds the bus history and async queues.
type Config struct {
	HistorySize    int
	AsyncQueueSize int
}

// Bus is the typed in-process publish/subscribe hub.
type Bus struct {
	historyCap int
	asyncCap   int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	subs    map[enum.Topic][]*Subscription
	history map[enum.Topic]*eventRing
	nextID  uint64
	closed  bool
}

// New allocates a bus with bounded per-topic history.
func New(cfg Config) *Bus {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = defaultHistorySize
	}
	if cfg.AsyncQueueSize <= 0 {
		cfg.AsyncQueueSize = defaultAsyncQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		historyCap: cfg.HistorySize,
		asyncCap:   cfg.AsyncQueueSize,
		ctx:        ctx,
		cancel:     cancel,
		subs:       make(map[enum.Topic][]*Subscription),
		history:    make(map[enum.Topic]*eventRing),
	}
}

// Subscribe registers a handler for one topic.
func (b *Bus) Subscribe(topic enum.Topic, handler Handler, mode Mode) (*Subscription, error) {
	if !topic.IsAvailable() {
		return nil, exception.ErrBusInvalidTopic
	}
	if handler == nil {
		return nil, exception.ErrBusNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, exception.ErrBusClosed
	}

	b.nextID++
	sub := &Subscription{id: b.nextID, topic: topic, mode: mode, handler: handler}
	if mode == Async {
		sub.q = newQueue(b.asyncCap)
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			sub.q.run(b.ctx, func(e Event) { invoke(sub, e) })
		}()
	}
	b.subs[topic] = append(b.subs[topic], sub)
	return sub, nil
}

// Unsubscribe disposes the given subscription.
func (b *Bus) Unsubscribe(sub *Subscription) error {
	if sub == nil {
		return exception.ErrBusNilSubscriber
	}
	sub.Close()
	return nil
}

// Publish appends the event to history and delivers it: sync subscribers run
// in subscription order on the caller's goroutine, async subscribers receive
// it on their queues without blocking the publisher.
func (b *Bus) Publish(e Event) {
	if e == nil || !e.Topic().IsAvailable() {
		return
	}
	topic := e.Topic()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.historyLocked(topic).append(e)
	subs := b.pruneLocked(topic)
	b.mu.Unlock()

	obs.EventsPublished.WithLabelValues(topic.String()).Inc()

	for _, sub := range subs {
		if sub.isClosed() {
			continue
		}
		switch sub.mode {
		case Sync:
			invoke(sub, e)
		case Async:
			if err := sub.q.tryPublish(e); err != nil {
				obs.AsyncQueueDrops.WithLabelValues(topic.String()).Inc()
				logs.Warnf("bus: dropped %s event for slow subscriber %d", topic, sub.id)
			}
		}
	}
}

// History returns the most recent limit events for one topic, oldest first.
func (b *Bus) History(topic enum.Topic, limit int) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ring, ok := b.history[topic]
	if !ok {
		return nil
	}
	return ring.recent(limit)
}

// HistoryAll merges the retained history of every topic, oldest first.
// Non-positive limits return everything retained.
func (b *Bus) HistoryAll(limit int) []Event {
	if limit < 0 {
		limit = 0
	}
	b.mu.Lock()
	merged := make([]Event, 0, limit)
	for _, ring := range b.history {
		merged = append(merged, ring.recent(b.historyCap)...)
	}
	b.mu.Unlock()

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].OccurredAt().Before(merged[j].OccurredAt())
	})
	if limit > 0 && len(merged) > limit {
		merged = merged[len(merged)-limit:]
	}
	return merged
}

// Shutdown stops accepting events, closes async queues, and waits for
// in-flight async work to drain or the context to expire.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	var all []*Subscription
	for _, subs := range b.subs {
		all = append(all, subs...)
	}
	b.mu.Unlock()

	for _, sub := range all {
		sub.Close()
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		b.cancel()
		return ctx.Err()
	}
	b.cancel()
	return nil
}

// pruneLocked drops closed subscriptions for a topic and returns a dispatch
// snapshot.
func (b *Bus) pruneLocked(topic enum.Topic) []*Subscription {
	subs := b.subs[topic]
	alive := subs
	pruned := false
	for _, sub := range subs {
		if sub.isClosed() {
			pruned = true
			break
		}
	}
	if pruned {
		alive = make([]*Subscription, 0, len(subs))
		for _, sub := range subs {
			if !sub.isClosed() {
				alive = append(alive, sub)
			}
		}
		b.subs[topic] = alive
	}
	out := make([]*Subscription, len(alive))
	copy(out, alive)
	return out
}

func (b *Bus) historyLocked(topic enum.Topic) *eventRing {
	ring, ok := b.history[topic]
	if !ok {
		ring = newEventRing(b.historyCap)
		b.history[topic] = ring
	}
	return ring
}

func invoke(sub *Subscription, e Event) {
	defer func() {
		if r := recover(); r != nil {
			obs.SubscriberErrors.WithLabelValues(e.Topic().String()).Inc()
			logs.Errorf("bus: subscriber %d panic on %s, err: %+v", sub.id, e.Topic(), r)
		}
	}()
	sub.handler(e)
}

// eventRing is the bounded per-topic history.
type eventRing struct {
	buf  []Event
	head int
	size int
}

func newEventRing(capacity int) *eventRing {
	return &eventRing{buf: make([]Event, capacity)}
}

func (r *eventRing) append(e Event) {
	if r.size < len(r.buf) {
		r.buf[(r.head+r.size)%len(r.buf)] = e
		r.size++
		return
	}
	r.buf[r.head] = e
	r.head = (r.head + 1) % len(r.buf)
}

func (r *eventRing) recent(n int) []Event {
	if n <= 0 || n > r.size {
		n = r.size
	}
	if n == 0 {
		return nil
	}
	out := make([]Event, n)
	start := r.size - n
	for i := 0; i < n; i++ {
		out[i] = r.buf[(r.head+start+i)%len(r.buf)]
	}
	return out
}
