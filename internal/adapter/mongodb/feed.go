package mongodb

import (
	"context"
	"fmt"
	"io"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/tidefall/docstore/internal/core/domain"
)

// changeFeed adapts a driver change stream to the ChangeFeed port.
type changeFeed struct {
	stream     *mongo.ChangeStream
	collection string
}

// streamEvent is the subset of the change-stream envelope we consume.
type streamEvent struct {
	FullDocument bson.Raw `bson:"fullDocument"`
	DocumentKey  struct {
		ID any `bson:"_id"`
	} `bson:"documentKey"`
	OperationType string `bson:"operationType"`
}

func (f *changeFeed) Next(ctx context.Context) (domain.Change, error) {
	if !f.stream.Next(ctx) {
		if err := f.stream.Err(); err != nil {
			return domain.Change{}, &domain.WatchError{Collection: f.collection, Err: err}
		}
		if err := ctx.Err(); err != nil {
			return domain.Change{}, err
		}
		return domain.Change{}, io.EOF
	}

	var event streamEvent
	if err := f.stream.Decode(&event); err != nil {
		return domain.Change{}, &domain.WatchError{
			Collection: f.collection,
			Err:        fmt.Errorf("decoding change event: %w", err),
		}
	}

	change := domain.Change{
		ID:   formatID(event.DocumentKey.ID),
		Kind: changeKind(event.OperationType),
	}

	if len(event.FullDocument) > 0 {
		change.Doc = rawDocument(event.FullDocument)
	}

	return change, nil
}

func (f *changeFeed) Close(ctx context.Context) error {
	return f.stream.Close(ctx)
}

func changeKind(operationType string) domain.ChangeKind {
	switch operationType {
	case "insert":
		return domain.ChangeAdded
	case "update", "replace":
		return domain.ChangeUpdated
	case "delete":
		return domain.ChangeRemoved
	default:
		return domain.ChangeUnknown
	}
}

// rawDocument exposes a bson payload through the serialisation boundary
// of the domain.
type rawDocument bson.Raw

func (r rawDocument) Decode(out any) error {
	return bson.Unmarshal(bson.Raw(r), out)
}
