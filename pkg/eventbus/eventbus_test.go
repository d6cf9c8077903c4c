package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receiveOne[T any](t *testing.T, ch <-chan T) T {
	t.Helper()

	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed unexpectedly")
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		panic("unreachable")
	}
}

func TestBus_PublishReachesAllSubscribers(t *testing.T) {
	bus := New[string]()
	defer bus.Close()

	ctx := context.Background()
	ch1, cleanup1 := bus.Subscribe(ctx)
	defer cleanup1()
	ch2, cleanup2 := bus.Subscribe(ctx)
	defer cleanup2()

	delivered := bus.Publish("hello")

	assert.Equal(t, 2, delivered)
	assert.Equal(t, "hello", receiveOne(t, ch1))
	assert.Equal(t, "hello", receiveOne(t, ch2))
}

func TestBus_SubscriberSeesPublishOrder(t *testing.T) {
	bus := New[int]()
	defer bus.Close()

	ch, cleanup := bus.Subscribe(context.Background())
	defer cleanup()

	for i := 1; i <= 5; i++ {
		bus.Publish(i)
	}

	for i := 1; i <= 5; i++ {
		assert.Equal(t, i, receiveOne(t, ch))
	}
}

func TestBus_ReplayDeliversCurrentValueFirst(t *testing.T) {
	bus := NewWithConfig[bool](Config{BufferSize: 4, ReplayLast: true})
	defer bus.Close()

	bus.Publish(true)
	bus.Publish(false)

	ch, cleanup := bus.Subscribe(context.Background())
	defer cleanup()

	assert.False(t, receiveOne(t, ch), "late subscriber must see the latest value first")

	bus.Publish(true)
	assert.True(t, receiveOne(t, ch))
}

func TestBus_ReplayWithNoHistoryDeliversNothing(t *testing.T) {
	bus := NewWithConfig[int](Config{ReplayLast: true})
	defer bus.Close()

	ch, cleanup := bus.Subscribe(context.Background())
	defer cleanup()

	select {
	case v := <-ch:
		t.Fatalf("expected no replay value, got %v", v)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestBus_BackpressureKeepsNewestValue(t *testing.T) {
	bus := NewWithConfig[int](Config{BufferSize: 2})
	defer bus.Close()

	ch, cleanup := bus.Subscribe(context.Background())
	defer cleanup()

	for i := 1; i <= 10; i++ {
		bus.Publish(i)
	}

	// Drain whatever survived; the final value must be the last publish.
	var got []int
drain:
	for {
		select {
		case v := <-ch:
			got = append(got, v)
		default:
			break drain
		}
	}

	require.NotEmpty(t, got)
	assert.Equal(t, 10, got[len(got)-1])
	assert.LessOrEqual(t, len(got), 2)

	stats := bus.Stats()
	assert.Equal(t, uint64(8), stats.Dropped)
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := New[int]()
	defer bus.Close()

	ch, cleanup := bus.Subscribe(context.Background())
	cleanup()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel must be closed after unsubscribe")
	case <-time.After(time.Second):
		t.Fatal("channel not closed after unsubscribe")
	}

	assert.Equal(t, 0, bus.Publish(1))
}

func TestBus_ContextCancellationUnsubscribes(t *testing.T) {
	bus := New[int]()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := bus.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after context cancellation")
	}
}

func TestBus_CloseIsIdempotentAndStopsPublishing(t *testing.T) {
	bus := New[int]()

	ch, _ := bus.Subscribe(context.Background())

	bus.Close()
	bus.Close()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, bus.Publish(1))
	assert.True(t, bus.Stats().IsClosed)
}

func TestBus_SubscribeAfterCloseReturnsClosedChannel(t *testing.T) {
	bus := New[int]()
	bus.Close()

	ch, cleanup := bus.Subscribe(context.Background())
	cleanup()

	_, ok := <-ch
	assert.False(t, ok)
}

func TestBus_SubscribeRacingCloseNeverLeavesChannelOpen(t *testing.T) {
	// A Subscribe that passes the closed fast path just before Close
	// sweeps the subscriber map must still end up with a closed channel.
	for i := 0; i < 100; i++ {
		bus := New[int]()

		const subscribers = 8
		chans := make([]<-chan int, subscribers)

		start := make(chan struct{})
		var wg sync.WaitGroup

		for j := 0; j < subscribers; j++ {
			wg.Add(1)
			go func(j int) {
				defer wg.Done()
				<-start
				ch, _ := bus.Subscribe(context.Background())
				chans[j] = ch
			}(j)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			bus.Close()
		}()

		close(start)
		wg.Wait()

		for j, ch := range chans {
			select {
			case _, ok := <-ch:
				assert.False(t, ok, "subscriber %d received a value on a closed bus", j)
			case <-time.After(time.Second):
				t.Fatalf("subscriber %d channel left open after close", j)
			}
		}
	}
}
