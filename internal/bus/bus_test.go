package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model/enum"
	"main/pkg/exception"
)

func systemEvent(msg string) SystemEvent {
	return SystemEvent{Action: "test", Message: msg, At: time.Now()}
}

func TestSyncDeliveryOrder(t *testing.T) {
	b := New(Config{})
	defer b.Shutdown(context.Background())

	var got []string
	_, err := b.Subscribe(enum.TopicSystem, func(e Event) {
		got = append(got, e.(SystemEvent).Message)
	}, Sync)
	require.NoError(t, err)

	b.Publish(systemEvent("e1"))
	b.Publish(systemEvent("e2"))
	b.Publish(systemEvent("e3"))

	assert.Equal(t, []string{"e1", "e2", "e3"}, got)
}

func TestSubscriberPanicIsolated(t *testing.T) {
	b := New(Config{})
	defer b.Shutdown(context.Background())

	var survived int
	_, err := b.Subscribe(enum.TopicSystem, func(Event) { panic("boom") }, Sync)
	require.NoError(t, err)
	_, err = b.Subscribe(enum.TopicSystem, func(Event) { survived++ }, Sync)
	require.NoError(t, err)

	b.Publish(systemEvent("e1"))
	b.Publish(systemEvent("e2"))

	assert.Equal(t, 2, survived, "second subscriber must run despite the first panicking")
}

func TestAsyncDelivery(t *testing.T) {
	b := New(Config{})
	defer b.Shutdown(context.Background())

	received := make(chan string, 8)
	_, err := b.Subscribe(enum.TopicSystem, func(e Event) {
		received <- e.(SystemEvent).Message
	}, Async)
	require.NoError(t, err)

	b.Publish(systemEvent("e1"))
	b.Publish(systemEvent("e2"))

	for _, want := range []string{"e1", "e2"} {
		select {
		case got := <-received:
			assert.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for async delivery")
		}
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New(Config{})
	defer b.Shutdown(context.Background())

	var count int
	sub, err := b.Subscribe(enum.TopicSystem, func(Event) { count++ }, Sync)
	require.NoError(t, err)

	b.Publish(systemEvent("e1"))
	require.NoError(t, b.Unsubscribe(sub))
	b.Publish(systemEvent("e2"))

	assert.Equal(t, 1, count)
}

func TestHistoryBoundAndFilter(t *testing.T) {
	b := New(Config{HistorySize: 3})
	defer b.Shutdown(context.Background())

	for _, msg := range []string{"e1", "e2", "e3", "e4", "e5"} {
		b.Publish(systemEvent(msg))
	}
	b.Publish(RiskEvent{Kind: "breaker", Message: "tripped", Severity: "critical", At: time.Now()})

	history := b.History(enum.TopicSystem, 10)
	require.Len(t, history, 3, "history must stay within its bound")
	assert.Equal(t, "e3", history[0].(SystemEvent).Message)
	assert.Equal(t, "e5", history[2].(SystemEvent).Message)

	risk := b.History(enum.TopicRisk, 10)
	require.Len(t, risk, 1)

	all := b.HistoryAll(10)
	assert.Len(t, all, 4)
	assert.Len(t, b.HistoryAll(-1), 4, "non-positive limit must return everything")
	assert.Len(t, b.HistoryAll(0), 4)
}

func TestQueueCloseDuringPublish(t *testing.T) {
	for i := 0; i < 2000; i++ {
		q := newQueue(64)
		start := make(chan struct{})

		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for j := 0; j < 8; j++ {
					_ = q.tryPublish(systemEvent("e"))
				}
			}()
		}

		close(start)
		q.close()
		wg.Wait()
	}
}

func TestQueueDrainsAfterClose(t *testing.T) {
	q := newQueue(8)
	for i := 0; i < 5; i++ {
		require.NoError(t, q.tryPublish(systemEvent("e")))
	}
	q.close()
	require.ErrorIs(t, q.tryPublish(systemEvent("late")), exception.ErrBusClosed)

	var handled int
	q.run(context.Background(), func(Event) { handled++ })
	assert.Equal(t, 5, handled, "buffered events must drain after close")
}

func TestSubscribeValidation(t *testing.T) {
	b := New(Config{})
	defer b.Shutdown(context.Background())

	_, err := b.Subscribe(enum.Topic(0), func(Event) {}, Sync)
	assert.Error(t, err)

	_, err = b.Subscribe(enum.TopicSystem, nil, Sync)
	assert.Error(t, err)
}

func TestShutdownDrainsAsync(t *testing.T) {
	b := New(Config{AsyncQueueSize: 16})

	received := make(chan struct{}, 16)
	_, err := b.Subscribe(enum.TopicSystem, func(Event) {
		received <- struct{}{}
	}, Async)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		b.Publish(systemEvent("e"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, b.Shutdown(ctx))
	assert.Len(t, received, 5, "buffered events must drain before shutdown returns")

	// publish after shutdown is a no-op
	b.Publish(systemEvent("late"))
}
