package ports

import (
	"context"

	"github.com/tidefall/docstore/internal/core/domain"
)

// DocumentBackend is the capability surface of the managed document
// database the store delegates all persistence, query and realtime work
// to. Implementations own serialisation, transport and reconnection;
// the store owns retry, timeout and connectivity intent.
//
// `out` parameters follow the driver decode convention: List and Query
// expect a pointer to a slice, Get a pointer to a struct.
type DocumentBackend interface {
	List(ctx context.Context, collection string, out any) error
	Insert(ctx context.Context, collection string, doc any) (string, error)
	Get(ctx context.Context, collection, id string, out any) error
	Update(ctx context.Context, collection, id string, doc any) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, filter domain.Filter, out any) error
	Watch(ctx context.Context, collection string) (ChangeFeed, error)
}

// ChangeFeed yields realtime changes for one collection until closed.
type ChangeFeed interface {
	// Next blocks until a change arrives, the feed fails, or ctx ends.
	Next(ctx context.Context) (domain.Change, error)
	Close(ctx context.Context) error
}

// NetworkToggler flips the backend's connectivity on and off. The
// toggle expresses intent; implementations are not required to verify
// the resulting network condition.
type NetworkToggler interface {
	EnableNetwork(ctx context.Context) error
	DisableNetwork(ctx context.Context) error
}

// ConnectivityStream is the observable online/offline state consumed by
// application code.
type ConnectivityStream interface {
	Online() bool
	SetOnline(ctx context.Context) error
	SetOffline(ctx context.Context) error
	Subscribe(ctx context.Context) (<-chan bool, func())
}
