package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	mongoConnectTimeout = 10 * time.Second
	mongoSelectTimeout  = 5 * time.Second
	// snapshot traffic is one small document per cart write
	mongoPoolSize = 20
)

// OpenMongoStore connects to uri, checks the server answers and returns a
// snapshot store over database with its indexes in place.
func OpenMongoStore(ctx context.Context, uri, database string, ttl time.Duration) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetAppName("storefront").
		SetConnectTimeout(mongoConnectTimeout).
		SetServerSelectionTimeout(mongoSelectTimeout).
		SetMaxPoolSize(mongoPoolSize))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	store := NewMongoStore(client.Database(database), ttl)
	if err := store.Ping(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	if err := store.CreateIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return store, nil
}
