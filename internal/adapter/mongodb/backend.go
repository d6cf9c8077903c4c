// Package mongodb implements the document-backend port on top of the
// official MongoDB driver. It owns connection lifecycle, serialisation
// and change streams; retry and timeout policy live with the caller.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tidefall/docstore/internal/core/constants"
	"github.com/tidefall/docstore/internal/core/domain"
	"github.com/tidefall/docstore/internal/core/ports"
)

var (
	ErrEmptyURI        = errors.New("mongodb uri cannot be empty")
	ErrEmptyDatabase   = errors.New("database name cannot be empty")
	ErrEmptyCollection = errors.New("collection name cannot be empty")
	ErrConnect         = errors.New("mongodb connect failed")
	ErrPing            = errors.New("mongodb ping failed")
)

// Config defines connection and pool behaviour.
type Config struct {
	Logger                 *slog.Logger
	URI                    string
	Database               string
	ServerSelectionTimeout time.Duration
	HeartbeatInterval      time.Duration
	MaxPoolSize            uint64
}

func (cfg Config) validate() error {
	if strings.TrimSpace(cfg.URI) == "" {
		return ErrEmptyURI
	}
	if strings.TrimSpace(cfg.Database) == "" {
		return ErrEmptyDatabase
	}
	return nil
}

// Backend wraps a MongoDB client behind the DocumentBackend and
// NetworkToggler ports. DisableNetwork tears the topology down and
// EnableNetwork re-establishes it; the driver has no lighter-weight
// client-side offline switch, so the toggle is approximate by design of
// the port: it records intent, it does not verify reachability.
type Backend struct {
	logger *slog.Logger
	client *mongo.Client
	cfg    Config
	mu     sync.RWMutex
}

var _ ports.DocumentBackend = (*Backend)(nil)
var _ ports.NetworkToggler = (*Backend)(nil)

// Connect validates cfg, dials MongoDB and pings it once.
func Connect(ctx context.Context, cfg Config) (*Backend, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	b := &Backend{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "mongodb"),
	}

	if err := b.connect(ctx); err != nil {
		return nil, err
	}

	return b, nil
}

func (b *Backend) connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client != nil {
		return nil
	}

	return b.connectLocked(ctx)
}

// connectLocked performs the actual dial. Caller must hold b.mu.
func (b *Backend) connectLocked(ctx context.Context) error {
	clientOptions := options.Client().ApplyURI(b.cfg.URI)

	serverSelectionTimeout := b.cfg.ServerSelectionTimeout
	if serverSelectionTimeout <= 0 {
		serverSelectionTimeout = constants.DefaultServerSelectionTimeout
	}

	heartbeatInterval := b.cfg.HeartbeatInterval
	if heartbeatInterval <= 0 {
		heartbeatInterval = constants.DefaultHeartbeatInterval
	}

	clientOptions.SetServerSelectionTimeout(serverSelectionTimeout)
	clientOptions.SetHeartbeatInterval(heartbeatInterval)

	if b.cfg.MaxPoolSize > 0 {
		clientOptions.SetMaxPoolSize(b.cfg.MaxPoolSize)
	}

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		b.logger.Error("mongodb connect failed", "error", err)
		return fmt.Errorf("%w: %w", ErrConnect, err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		if disconnectErr := client.Disconnect(ctx); disconnectErr != nil {
			b.logger.Warn("failed to disconnect after ping failure", "error", disconnectErr)
		}
		b.logger.Error("mongodb ping failed", "error", err)
		return fmt.Errorf("%w: %w", ErrPing, err)
	}

	b.client = client
	b.logger.Debug("mongodb connected", "database", b.cfg.Database)

	return nil
}

// Close releases the MongoDB connection. The backend is marked closed
// even if disconnect fails.
func (b *Backend) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client == nil {
		return nil
	}

	err := b.client.Disconnect(ctx)
	b.client = nil

	if err != nil {
		b.logger.Warn("mongodb disconnect failed", "error", err)
		return err
	}

	return nil
}

// EnableNetwork re-establishes the database topology.
func (b *Backend) EnableNetwork(ctx context.Context) error {
	return b.connect(ctx)
}

// DisableNetwork tears the database topology down.
func (b *Backend) DisableNetwork(ctx context.Context) error {
	return b.Close(ctx)
}

// Ping checks availability on the active connection.
func (b *Backend) Ping(ctx context.Context) error {
	b.mu.RLock()
	client := b.client
	b.mu.RUnlock()

	if client == nil {
		return domain.ErrClosed
	}

	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("%w: %w", ErrPing, err)
	}

	return nil
}

func (b *Backend) collection(name string) (*mongo.Collection, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyCollection
	}

	b.mu.RLock()
	client := b.client
	b.mu.RUnlock()

	if client == nil {
		return nil, domain.ErrClosed
	}

	return client.Database(b.cfg.Database).Collection(name), nil
}

// List reads the whole collection into out (a pointer to a slice).
func (b *Backend) List(ctx context.Context, collection string, out any) error {
	coll, err := b.collection(collection)
	if err != nil {
		return err
	}

	cursor, err := coll.Find(ctx, bson.D{})
	if err != nil {
		return translateError(err)
	}

	if err := cursor.All(ctx, out); err != nil {
		return translateError(err)
	}

	return nil
}

// Insert adds one document and returns its id.
func (b *Backend) Insert(ctx context.Context, collection string, doc any) (string, error) {
	coll, err := b.collection(collection)
	if err != nil {
		return "", err
	}

	result, err := coll.InsertOne(ctx, doc)
	if err != nil {
		return "", translateError(err)
	}

	return formatID(result.InsertedID), nil
}

// Get fetches one document by id into out.
func (b *Backend) Get(ctx context.Context, collection, id string, out any) error {
	coll, err := b.collection(collection)
	if err != nil {
		return err
	}

	err = coll.FindOne(ctx, bson.D{{Key: "_id", Value: parseID(id)}}).Decode(out)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return fmt.Errorf("%w: id %s in collection %s", domain.ErrNotFound, id, collection)
		}
		return translateError(err)
	}

	return nil
}

// Update replaces the fields of one document by id.
func (b *Backend) Update(ctx context.Context, collection, id string, doc any) error {
	coll, err := b.collection(collection)
	if err != nil {
		return err
	}

	result, err := coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: parseID(id)}},
		bson.D{{Key: "$set", Value: doc}},
	)
	if err != nil {
		return translateError(err)
	}

	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: id %s in collection %s", domain.ErrNotFound, id, collection)
	}

	return nil
}

// Delete removes one document by id.
func (b *Backend) Delete(ctx context.Context, collection, id string) error {
	coll, err := b.collection(collection)
	if err != nil {
		return err
	}

	result, err := coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: parseID(id)}})
	if err != nil {
		return translateError(err)
	}

	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: id %s in collection %s", domain.ErrNotFound, id, collection)
	}

	return nil
}

// Query runs a single field/operator/value predicate against the
// collection and decodes matches into out.
func (b *Backend) Query(ctx context.Context, collection string, filter domain.Filter, out any) error {
	coll, err := b.collection(collection)
	if err != nil {
		return err
	}

	selector, err := buildSelector(filter)
	if err != nil {
		return err
	}

	cursor, err := coll.Find(ctx, selector)
	if err != nil {
		return translateError(err)
	}

	if err := cursor.All(ctx, out); err != nil {
		return translateError(err)
	}

	return nil
}

// Watch opens a change stream over the collection.
func (b *Backend) Watch(ctx context.Context, collection string) (ports.ChangeFeed, error) {
	coll, err := b.collection(collection)
	if err != nil {
		return nil, err
	}

	streamOptions := options.ChangeStream().SetFullDocument(options.UpdateLookup)

	stream, err := coll.Watch(ctx, mongo.Pipeline{}, streamOptions)
	if err != nil {
		return nil, &domain.WatchError{Collection: collection, Err: translateError(err)}
	}

	return &changeFeed{stream: stream, collection: collection}, nil
}

// parseID maps a caller-facing string id onto the _id value stored by
// the driver: object ids round-trip through hex, anything else is kept
// as a plain string key.
func parseID(id string) any {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}

func formatID(id any) string {
	switch v := id.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// mongo "Unauthorized" command error code
const codeUnauthorized = 13

// translateError maps driver failures onto the domain error kinds the
// store logs and classifies against.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		if cmdErr.Code == codeUnauthorized || cmdErr.Name == "Unauthorized" {
			return fmt.Errorf("%w: %w", domain.ErrPermissionDenied, err)
		}
	}

	var writeErr mongo.WriteException
	if errors.As(err, &writeErr) {
		for _, we := range writeErr.WriteErrors {
			if we.Code == codeUnauthorized {
				return fmt.Errorf("%w: %w", domain.ErrPermissionDenied, err)
			}
		}
	}

	return err
}
