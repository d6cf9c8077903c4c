// Package store is the client facade over the document backend. Every
// remote call is wrapped in a per-attempt deadline and an exponential
// backoff retrier; reads swallow terminal failure into an empty result,
// writes propagate it.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tidefall/docstore/internal/core/constants"
	"github.com/tidefall/docstore/internal/core/domain"
	"github.com/tidefall/docstore/internal/core/ports"
	"github.com/tidefall/docstore/pkg/deadline"
	"github.com/tidefall/docstore/pkg/retry"
)

// Policy bundles the retry and timeout knobs for one store. Zero
// fields fall back to package defaults.
type Policy struct {
	OperationTimeout time.Duration
	ReadAttempts     int
	WriteAttempts    int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
	ChangeBufferSize int
}

func (p Policy) normalise() Policy {
	if p.OperationTimeout <= 0 {
		p.OperationTimeout = constants.DefaultOperationTimeout
	}
	if p.ReadAttempts < 1 {
		p.ReadAttempts = constants.DefaultReadAttempts
	}
	if p.WriteAttempts < 1 {
		p.WriteAttempts = constants.DefaultWriteAttempts
	}
	if p.RetryBaseDelay <= 0 {
		p.RetryBaseDelay = constants.DefaultRetryBaseDelay
	}
	if p.RetryMaxDelay <= 0 {
		p.RetryMaxDelay = constants.DefaultRetryMaxDelay
	}
	if p.ChangeBufferSize <= 0 {
		p.ChangeBufferSize = constants.DefaultChangeBufferSize
	}
	return p
}

// Store provides typed collection access. T is the document type; bson
// tags on T form the serialisation boundary at the backend edge.
type Store[T any] struct {
	backend    ports.DocumentBackend
	logger     *slog.Logger
	collection string
	policy     Policy
}

// New creates a Store over one collection of the backend.
func New[T any](backend ports.DocumentBackend, collection string, policy Policy, logger *slog.Logger) *Store[T] {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store[T]{
		backend:    backend,
		collection: collection,
		policy:     policy.normalise(),
		logger:     logger.With("component", "store", "collection", collection),
	}
}

func (s *Store[T]) readPolicy() retry.Policy {
	return retry.Policy{
		Attempts:  s.policy.ReadAttempts,
		BaseDelay: s.policy.RetryBaseDelay,
		MaxDelay:  s.policy.RetryMaxDelay,
	}
}

func (s *Store[T]) writePolicy() retry.Policy {
	return retry.Policy{
		Attempts:  s.policy.WriteAttempts,
		BaseDelay: s.policy.RetryBaseDelay,
		MaxDelay:  s.policy.RetryMaxDelay,
	}
}

// attempt runs one backend call under its own fresh deadline, so each
// retry gets the full operation timeout.
func attempt[T, R any](s *Store[T], ctx context.Context, op string, fn func(context.Context) (R, error)) (R, error) {
	return deadline.Run(ctx, s.policy.OperationTimeout, op+" "+s.collection, fn)
}

// List returns every document in the collection. Terminal failure is
// logged and reported as an empty slice so callers always receive a
// well-typed collection.
func (s *Store[T]) List(ctx context.Context) []T {
	docs, err := s.read(ctx, "list", func(ctx context.Context) ([]T, error) {
		var out []T
		if err := s.backend.List(ctx, s.collection, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return []T{}
	}

	return docs
}

// Query returns the documents matching a single field/operator/value
// predicate, with the same empty-on-failure policy as List.
func (s *Store[T]) Query(ctx context.Context, field string, op domain.Operator, value any) []T {
	filter := domain.Filter{Field: field, Op: op, Value: value}

	docs, err := s.read(ctx, "query", func(ctx context.Context) ([]T, error) {
		var out []T
		if err := s.backend.Query(ctx, s.collection, filter, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return []T{}
	}

	return docs
}

func (s *Store[T]) read(ctx context.Context, op string, fn func(context.Context) ([]T, error)) ([]T, error) {
	opID := uuid.NewString()
	start := time.Now()

	docs, err := retry.Do(ctx, s.readPolicy(), func(ctx context.Context) ([]T, error) {
		return attempt(s, ctx, op, fn)
	})
	if err != nil {
		s.logFailure(op, opID, s.policy.ReadAttempts, start, err)
		return nil, domain.NewStoreError(op, s.collection, s.policy.ReadAttempts, err)
	}

	if docs == nil {
		docs = []T{}
	}

	s.logger.Debug("read completed", "op", op, "op_id", opID, "count", len(docs), "duration", time.Since(start))

	return docs, nil
}

// Get fetches one document by id. Lookups are a single attempt with a
// deadline and no retry: a missing document is a definitive answer, not
// a transient fault.
func (s *Store[T]) Get(ctx context.Context, id string) (T, error) {
	opID := uuid.NewString()
	start := time.Now()

	doc, err := attempt(s, ctx, "get", func(ctx context.Context) (T, error) {
		var out T
		if err := s.backend.Get(ctx, s.collection, id, &out); err != nil {
			return out, err
		}
		return out, nil
	})
	if err != nil {
		if domain.IsNotFound(err) {
			s.logger.Debug("document not found", "op", "get", "op_id", opID, "id", id)
		} else {
			s.logFailure("get", opID, 1, start, err)
		}

		var zero T
		return zero, domain.NewStoreError("get", s.collection, 1, err)
	}

	return doc, nil
}

// Add inserts a document and returns its id. Terminal failure after the
// write budget is propagated to the caller; retried inserts may leave
// duplicate documents if an earlier attempt succeeded remotely after
// its deadline fired.
func (s *Store[T]) Add(ctx context.Context, doc T) (string, error) {
	return s.write(ctx, "add", func(ctx context.Context) (string, error) {
		return s.backend.Insert(ctx, s.collection, doc)
	})
}

// Update replaces the stored fields of the document with the given id.
func (s *Store[T]) Update(ctx context.Context, id string, doc T) error {
	_, err := s.write(ctx, "update", func(ctx context.Context) (string, error) {
		return id, s.backend.Update(ctx, s.collection, id, doc)
	})
	return err
}

// Delete removes the document with the given id.
func (s *Store[T]) Delete(ctx context.Context, id string) error {
	_, err := s.write(ctx, "delete", func(ctx context.Context) (string, error) {
		return id, s.backend.Delete(ctx, s.collection, id)
	})
	return err
}

func (s *Store[T]) write(ctx context.Context, op string, fn func(context.Context) (string, error)) (string, error) {
	opID := uuid.NewString()
	start := time.Now()

	id, err := retry.Do(ctx, s.writePolicy(), func(ctx context.Context) (string, error) {
		return attempt(s, ctx, op, fn)
	})
	if err != nil {
		s.logFailure(op, opID, s.policy.WriteAttempts, start, err)
		return "", domain.NewStoreError(op, s.collection, s.policy.WriteAttempts, err)
	}

	s.logger.Debug("write completed", "op", op, "op_id", opID, "id", id, "duration", time.Since(start))

	return id, nil
}

func (s *Store[T]) logFailure(op, opID string, attempts int, start time.Time, err error) {
	if domain.IsPermissionDenied(err) {
		s.logger.Warn("permission denied by backend",
			"op", op, "op_id", opID, "attempts", attempts, "duration", time.Since(start), "error", err)
		return
	}

	s.logger.Error("operation failed",
		"op", op, "op_id", opID, "attempts", attempts, "duration", time.Since(start), "error", err)
}
