package store

import (
	"context"
	"errors"
	"io"

	"github.com/tidefall/docstore/internal/core/domain"
)

// Change is one typed realtime event from the collection. HasDoc is
// false for removals, where the backend only reports the id.
type Change[T any] struct {
	Doc    T
	ID     string
	Kind   domain.ChangeKind
	HasDoc bool
}

// Watch opens a realtime subscription over the collection. Events are
// delivered in feed order on the returned channel until the feed ends,
// ctx is cancelled, or the stop function is called; the channel is
// closed afterwards. Opening the feed is not retried: a caller that
// wants the subscription back after a failure re-subscribes.
func (s *Store[T]) Watch(ctx context.Context) (<-chan Change[T], func(), error) {
	feed, err := s.backend.Watch(ctx, s.collection)
	if err != nil {
		s.logger.Error("watch failed to open", "error", err)
		return nil, nil, err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	events := make(chan Change[T], s.policy.ChangeBufferSize)

	go func() {
		defer close(events)
		defer func() {
			_ = feed.Close(context.Background())
		}()

		for {
			raw, err := feed.Next(watchCtx)
			if err != nil {
				if errors.Is(err, io.EOF) || watchCtx.Err() != nil {
					s.logger.Debug("watch closed")
				} else {
					s.logger.Error("watch terminated", "error", err)
				}
				return
			}

			change := Change[T]{ID: raw.ID, Kind: raw.Kind}

			if raw.Doc != nil {
				if err := raw.Doc.Decode(&change.Doc); err != nil {
					s.logger.Warn("failed to decode change document", "id", raw.ID, "error", err)
					continue
				}
				change.HasDoc = true
			}

			select {
			case events <- change:
			case <-watchCtx.Done():
				return
			}
		}
	}()

	stop := func() {
		cancel()
	}

	return events, stop, nil
}
