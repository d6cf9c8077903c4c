package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidefall/docstore/internal/core/domain"
	"github.com/tidefall/docstore/internal/core/ports"
	"github.com/tidefall/docstore/pkg/deadline"
	"github.com/tidefall/docstore/pkg/retry"
)

type testDoc struct {
	Name   string `bson:"name"`
	Status string `bson:"status"`
}

// fakeBackend scripts per-operation outcomes and counts invocations.
// The counters are mutex-guarded because attempts run on the deadline
// goroutine.
type fakeBackend struct {
	listFn   func(ctx context.Context, call int, out any) error
	queryFn  func(ctx context.Context, call int, filter domain.Filter, out any) error
	getFn    func(ctx context.Context, call int, id string, out any) error
	insertFn func(ctx context.Context, call int, doc any) (string, error)
	updateFn func(ctx context.Context, call int, id string, doc any) error
	deleteFn func(ctx context.Context, call int, id string) error
	watchFn  func(ctx context.Context) (ports.ChangeFeed, error)

	mu    sync.Mutex
	calls map[string]int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{calls: map[string]int{}}
}

func (f *fakeBackend) bump(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[op]++
	return f.calls[op]
}

func (f *fakeBackend) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[op]
}

func (f *fakeBackend) List(ctx context.Context, collection string, out any) error {
	return f.listFn(ctx, f.bump("list"), out)
}

func (f *fakeBackend) Query(ctx context.Context, collection string, filter domain.Filter, out any) error {
	return f.queryFn(ctx, f.bump("query"), filter, out)
}

func (f *fakeBackend) Get(ctx context.Context, collection, id string, out any) error {
	return f.getFn(ctx, f.bump("get"), id, out)
}

func (f *fakeBackend) Insert(ctx context.Context, collection string, doc any) (string, error) {
	return f.insertFn(ctx, f.bump("insert"), doc)
}

func (f *fakeBackend) Update(ctx context.Context, collection, id string, doc any) error {
	return f.updateFn(ctx, f.bump("update"), id, doc)
}

func (f *fakeBackend) Delete(ctx context.Context, collection, id string) error {
	return f.deleteFn(ctx, f.bump("delete"), id)
}

func (f *fakeBackend) Watch(ctx context.Context, collection string) (ports.ChangeFeed, error) {
	f.bump("watch")
	return f.watchFn(ctx)
}

func fastStore(backend ports.DocumentBackend) *Store[testDoc] {
	return New[testDoc](backend, "people", Policy{
		OperationTimeout: 100 * time.Millisecond,
		ReadAttempts:     3,
		WriteAttempts:    4,
		RetryBaseDelay:   time.Millisecond,
		RetryMaxDelay:    4 * time.Millisecond,
	}, nil)
}

func TestQuery_RecoversAfterTransientFailures(t *testing.T) {
	backend := newFakeBackend()
	records := []testDoc{{Name: "ada"}, {Name: "grace"}, {Name: "edsger"}}

	backend.queryFn = func(ctx context.Context, call int, filter domain.Filter, out any) error {
		if call <= 2 {
			return errors.New("transient remote failure")
		}
		*out.(*[]testDoc) = records
		return nil
	}

	docs := fastStore(backend).Query(context.Background(), "status", domain.OpEqual, "active")

	assert.Equal(t, records, docs)
	assert.Equal(t, 3, backend.count("query"), "two failures then a success consumes three attempts")
}

func TestQuery_PassesFilterThrough(t *testing.T) {
	backend := newFakeBackend()

	seen := make(chan domain.Filter, 1)
	backend.queryFn = func(ctx context.Context, call int, filter domain.Filter, out any) error {
		seen <- filter
		return nil
	}

	fastStore(backend).Query(context.Background(), "status", domain.OpGreaterThan, 10)

	assert.Equal(t, domain.Filter{Field: "status", Op: domain.OpGreaterThan, Value: 10}, <-seen)
}

func TestList_TerminalFailureBecomesEmptyResult(t *testing.T) {
	backend := newFakeBackend()
	backend.listFn = func(ctx context.Context, call int, out any) error {
		return errors.New("backend down")
	}

	docs := fastStore(backend).List(context.Background())

	assert.NotNil(t, docs)
	assert.Empty(t, docs, "reads must swallow terminal failure into an empty collection")
	assert.Equal(t, 3, backend.count("list"), "read budget is three attempts")
}

func TestList_NilResultNormalisedToEmptySlice(t *testing.T) {
	backend := newFakeBackend()
	backend.listFn = func(ctx context.Context, call int, out any) error {
		return nil // backend leaves the slice nil for an empty collection
	}

	docs := fastStore(backend).List(context.Background())

	assert.NotNil(t, docs)
	assert.Empty(t, docs)
}

func TestAdd_ExhaustsWriteBudgetAndPropagates(t *testing.T) {
	backend := newFakeBackend()
	remoteErr := errors.New("write rejected")

	backend.insertFn = func(ctx context.Context, call int, doc any) (string, error) {
		return "", remoteErr
	}

	_, err := fastStore(backend).Add(context.Background(), testDoc{Name: "ada"})

	require.Error(t, err)
	assert.Equal(t, 4, backend.count("insert"), "write budget is four attempts")
	assert.ErrorIs(t, err, remoteErr)
	assert.ErrorIs(t, err, retry.ErrExhausted)

	var storeErr *domain.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "add", storeErr.Op)
	assert.Equal(t, "people", storeErr.Collection)
	assert.Equal(t, 4, storeErr.Attempts)
}

func TestAdd_ReturnsGeneratedID(t *testing.T) {
	backend := newFakeBackend()
	backend.insertFn = func(ctx context.Context, call int, doc any) (string, error) {
		return "generated-id", nil
	}

	id, err := fastStore(backend).Add(context.Background(), testDoc{Name: "ada"})

	require.NoError(t, err)
	assert.Equal(t, "generated-id", id)
	assert.Equal(t, 1, backend.count("insert"))
}

func TestGet_MissingDocumentIsNotRetried(t *testing.T) {
	backend := newFakeBackend()
	backend.getFn = func(ctx context.Context, call int, id string, out any) error {
		return domain.ErrNotFound
	}

	_, err := fastStore(backend).Get(context.Background(), "nope")

	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
	assert.Equal(t, 1, backend.count("get"), "lookups are a single attempt")
}

func TestGet_TransientFailureIsNotRetriedEither(t *testing.T) {
	backend := newFakeBackend()
	backend.getFn = func(ctx context.Context, call int, id string, out any) error {
		return errors.New("flaky")
	}

	_, err := fastStore(backend).Get(context.Background(), "id-1")

	require.Error(t, err)
	assert.Equal(t, 1, backend.count("get"))
}

func TestGet_ReturnsDecodedDocument(t *testing.T) {
	backend := newFakeBackend()
	backend.getFn = func(ctx context.Context, call int, id string, out any) error {
		*out.(*testDoc) = testDoc{Name: "ada", Status: "active"}
		return nil
	}

	doc, err := fastStore(backend).Get(context.Background(), "id-1")

	require.NoError(t, err)
	assert.Equal(t, testDoc{Name: "ada", Status: "active"}, doc)
}

func TestUpdate_RetriesThenSucceeds(t *testing.T) {
	backend := newFakeBackend()
	backend.updateFn = func(ctx context.Context, call int, id string, doc any) error {
		if call == 1 {
			return errors.New("transient")
		}
		return nil
	}

	err := fastStore(backend).Update(context.Background(), "id-1", testDoc{Name: "ada"})

	require.NoError(t, err)
	assert.Equal(t, 2, backend.count("update"))
}

func TestDelete_TerminalFailurePropagates(t *testing.T) {
	backend := newFakeBackend()
	backend.deleteFn = func(ctx context.Context, call int, id string) error {
		return errors.New("still broken")
	}

	err := fastStore(backend).Delete(context.Background(), "id-1")

	require.Error(t, err)
	assert.Equal(t, 4, backend.count("delete"))
}

func TestStore_HangingBackendTimesOutPerAttempt(t *testing.T) {
	backend := newFakeBackend()
	backend.listFn = func(ctx context.Context, call int, out any) error {
		<-ctx.Done() // honour the attempt deadline
		return ctx.Err()
	}

	start := time.Now()
	docs := fastStore(backend).List(context.Background())
	elapsed := time.Since(start)

	assert.Empty(t, docs)
	assert.Equal(t, 3, backend.count("list"), "each attempt gets its own fresh deadline")
	assert.GreaterOrEqual(t, elapsed, 300*time.Millisecond, "three attempts of 100ms each")
}

func TestStore_DeadlineErrorIsRetryable(t *testing.T) {
	backend := newFakeBackend()
	backend.queryFn = func(ctx context.Context, call int, filter domain.Filter, out any) error {
		if call == 1 {
			<-ctx.Done() // first attempt hangs until its deadline
			return ctx.Err()
		}
		*out.(*[]testDoc) = []testDoc{{Name: "ada"}}
		return nil
	}

	docs := fastStore(backend).Query(context.Background(), "status", domain.OpEqual, "active")

	assert.Len(t, docs, 1, "a timed-out attempt must feed back into the retrier")
	assert.Equal(t, 2, backend.count("query"))
}

func TestStore_PermissionDeniedStillRetried(t *testing.T) {
	// Retries are unconditional: access-denial is logged distinctly but
	// consumes attempts like any other failure.
	backend := newFakeBackend()
	backend.insertFn = func(ctx context.Context, call int, doc any) (string, error) {
		return "", domain.ErrPermissionDenied
	}

	_, err := fastStore(backend).Add(context.Background(), testDoc{})

	require.Error(t, err)
	assert.True(t, domain.IsPermissionDenied(err))
	assert.Equal(t, 4, backend.count("insert"))
}

func TestStore_BackendIgnoringContextStillTimesOut(t *testing.T) {
	backend := newFakeBackend()
	release := make(chan struct{})
	defer close(release)

	backend.getFn = func(ctx context.Context, call int, id string, out any) error {
		<-release // ignores ctx entirely
		return nil
	}

	start := time.Now()
	_, err := fastStore(backend).Get(context.Background(), "id-1")

	require.Error(t, err)
	assert.ErrorIs(t, err, deadline.ErrDeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}
