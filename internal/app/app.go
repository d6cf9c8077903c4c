// Package app is the composition root: it constructs the backend, the
// connectivity tracker and the store explicitly and shares them by
// reference, then tails the configured collection's change feed.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/tidefall/docstore/internal/adapter/mongodb"
	"github.com/tidefall/docstore/internal/adapter/store"
	"github.com/tidefall/docstore/internal/config"
)

const DefaultShutdownTimeout = 10 * time.Second

// Application wires the document store together and runs the tail loop.
type Application struct {
	configMu     sync.RWMutex
	config       *config.Config
	logger       *slog.Logger
	backend      *mongodb.Backend
	connectivity *store.Connectivity
	documents    *store.Store[bson.M]
	stopWatch    func()
	watchDone    chan struct{}
}

// New loads configuration and connects the backend.
func New(ctx context.Context, logger *slog.Logger) (*Application, error) {
	app := &Application{
		logger:    logger,
		watchDone: make(chan struct{}),
	}

	cfg, err := config.Load(func() {
		// Hot reloading: retry/timeout policy is bound at store
		// construction, so a changed file needs a restart to apply.
		logger.Warn("configuration file changed; restart to apply")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	app.setConfig(cfg)

	backend, err := mongodb.Connect(ctx, mongodb.Config{
		URI:                    cfg.Database.URI,
		Database:               cfg.Database.Database,
		ServerSelectionTimeout: cfg.Database.ServerSelectionTimeout,
		HeartbeatInterval:      cfg.Database.HeartbeatInterval,
		MaxPoolSize:            cfg.Database.MaxPoolSize,
		Logger:                 logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect backend: %w", err)
	}
	app.backend = backend

	app.connectivity = store.NewConnectivity(backend, logger)
	app.documents = store.New[bson.M](backend, cfg.Database.Collection, store.Policy{
		OperationTimeout: cfg.Store.OperationTimeout,
		ReadAttempts:     cfg.Store.ReadAttempts,
		WriteAttempts:    cfg.Store.WriteAttempts,
		RetryBaseDelay:   cfg.Store.RetryBaseDelay,
		RetryMaxDelay:    cfg.Store.RetryMaxDelay,
		ChangeBufferSize: cfg.Store.ChangeBufferSize,
	}, logger)

	return app, nil
}

// Start begins tailing the collection and logging connectivity changes.
func (a *Application) Start(ctx context.Context) error {
	cfg := a.getConfig()

	docs := a.documents.List(ctx)
	a.logger.Info("collection snapshot", "collection", cfg.Database.Collection, "documents", len(docs))

	connectivity, cleanupConnectivity := a.connectivity.Subscribe(ctx)

	events, stopWatch, err := a.documents.Watch(ctx)
	if err != nil {
		cleanupConnectivity()
		return fmt.Errorf("failed to open change feed: %w", err)
	}
	a.stopWatch = stopWatch

	go func() {
		defer close(a.watchDone)
		defer cleanupConnectivity()

		for {
			select {
			case online, ok := <-connectivity:
				if !ok {
					return
				}
				a.logger.Info("connectivity", "online", online)
			case change, ok := <-events:
				if !ok {
					a.logger.Info("change feed closed")
					return
				}
				if change.HasDoc {
					a.logger.Info("document changed",
						"kind", change.Kind.String(), "id", change.ID, "doc", change.Doc)
				} else {
					a.logger.Info("document changed", "kind", change.Kind.String(), "id", change.ID)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	a.logger.Info("docstore started", "collection", cfg.Database.Collection)
	return nil
}

// Stop tears the feed, the connectivity stream and the backend down.
func (a *Application) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, DefaultShutdownTimeout)
	defer cancel()

	if a.stopWatch != nil {
		a.stopWatch()
	}

	select {
	case <-a.watchDone:
	case <-shutdownCtx.Done():
		a.logger.Warn("tail loop did not drain before shutdown deadline")
	}

	a.connectivity.Close()

	if err := a.backend.Close(shutdownCtx); err != nil {
		return fmt.Errorf("backend shutdown error: %w", err)
	}

	return nil
}

func (a *Application) setConfig(cfg *config.Config) {
	a.configMu.Lock()
	defer a.configMu.Unlock()
	a.config = cfg
}

func (a *Application) getConfig() *config.Config {
	a.configMu.RLock()
	defer a.configMu.RUnlock()
	return a.config
}
