// Package eventbus provides a small generic pub/sub fanout used for the
// connectivity stream and realtime change feeds. Publishes are ordered:
// every subscriber sees values in publish order, and a bus configured
// with replay delivers the latest value to each new subscriber first.
package eventbus

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"
)

// Config customises buffer sizing and replay behaviour.
type Config struct {
	// BufferSize is the per-subscriber channel capacity.
	BufferSize int
	// ReplayLast delivers the most recently published value to each
	// new subscriber before any subsequent publishes.
	ReplayLast bool
}

var DefaultConfig = Config{
	BufferSize: 16,
}

// Bus fans values out to any number of subscribers. Subscriber channels
// are buffered; when a subscriber falls BufferSize values behind, the
// oldest buffered value is evicted so the newest is never lost
// (last-write-wins under backpressure).
type Bus[T any] struct {
	subscribers *xsync.Map[string, *subscriber[T]]

	// mu serialises Publish and Subscribe so replay and fanout agree
	// on ordering.
	mu      sync.Mutex
	last    T
	hasLast bool

	subscriberSeq atomic.Uint64
	closed        atomic.Bool
	bufferSize    int
	replayLast    bool
}

type subscriber[T any] struct {
	id      string
	ch      chan T
	dropped atomic.Uint64
	active  atomic.Bool
}

// New creates a Bus with the default configuration.
func New[T any]() *Bus[T] {
	return NewWithConfig[T](DefaultConfig)
}

// NewWithConfig creates a Bus with explicit configuration.
func NewWithConfig[T any](cfg Config) *Bus[T] {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig.BufferSize
	}

	return &Bus[T]{
		subscribers: xsync.NewMap[string, *subscriber[T]](),
		bufferSize:  cfg.BufferSize,
		replayLast:  cfg.ReplayLast,
	}
}

// Subscribe registers a new observer and returns its channel plus a
// cleanup function. On a replay bus the current value (if any) is
// already buffered when Subscribe returns. The channel is closed on
// unsubscribe or bus Close; cancelling ctx unsubscribes too.
func (b *Bus[T]) Subscribe(ctx context.Context) (<-chan T, func()) {
	if b.closed.Load() {
		ch := make(chan T)
		close(ch)
		return ch, func() {}
	}

	id := "sub_" + strconv.FormatUint(b.subscriberSeq.Add(1), 10)

	sub := &subscriber[T]{
		id: id,
		ch: make(chan T, b.bufferSize),
	}
	sub.active.Store(true)

	b.mu.Lock()
	// Re-check under the lock: Close may have swept the subscriber map
	// between the fast-path check above and here, and a store after the
	// sweep would leave this channel open forever.
	if b.closed.Load() {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	if b.replayLast && b.hasLast {
		sub.ch <- b.last
	}
	b.subscribers.Store(id, sub)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.unsubscribe(id)
	}()

	return sub.ch, func() { b.unsubscribe(id) }
}

// Publish delivers value to every active subscriber and records it as
// the replay value. Publishes are totally ordered; each subscriber sees
// them in the order they were made. Returns the number of subscribers
// reached.
func (b *Bus[T]) Publish(value T) int {
	if b.closed.Load() {
		return 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.last = value
	b.hasLast = true

	delivered := 0

	b.subscribers.Range(func(id string, sub *subscriber[T]) bool {
		if !sub.active.Load() {
			return true
		}

		for {
			select {
			case sub.ch <- value:
				delivered++
				return true
			default:
			}

			// Buffer full: evict the oldest buffered value and retry
			// so the subscriber converges on the latest state.
			select {
			case <-sub.ch:
				sub.dropped.Add(1)
			default:
			}
		}
	})

	return delivered
}

// Close shuts the bus down and closes every subscriber channel.
func (b *Bus[T]) Close() {
	if !b.closed.CompareAndSwap(false, true) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscribers.Range(func(id string, sub *subscriber[T]) bool {
		if sub.active.CompareAndSwap(true, false) {
			close(sub.ch)
		}
		return true
	})
	b.subscribers.Clear()
}

// Stats reports aggregate bus counters.
func (b *Bus[T]) Stats() Stats {
	stats := Stats{IsClosed: b.closed.Load()}
	if stats.IsClosed {
		return stats
	}

	b.subscribers.Range(func(id string, sub *subscriber[T]) bool {
		stats.Subscribers++
		stats.Dropped += sub.dropped.Load()
		return true
	})

	return stats
}

// Stats provides aggregate metrics for a Bus.
type Stats struct {
	Subscribers int
	Dropped     uint64
	IsClosed    bool
}

func (b *Bus[T]) unsubscribe(id string) {
	if sub, exists := b.subscribers.LoadAndDelete(id); exists {
		b.mu.Lock()
		defer b.mu.Unlock()

		if sub.active.CompareAndSwap(true, false) {
			close(sub.ch)
		}
	}
}
