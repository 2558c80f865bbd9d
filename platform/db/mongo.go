package db

import (
	"context"
	"fmt"
	"time"

	"workorders_backend/platform/config"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// NewMongoDatabase connects to MongoDB, verifies the connection and returns
// the configured database handle.
func NewMongoDatabase(ctx context.Context, cfg config.MongoConfig) (*mongo.Database, error) {
	if cfg.GetMongoURI() == "" {
		return nil, fmt.Errorf("mongodb uri is empty")
	}

	clientOptions := options.Client().ApplyURI(cfg.GetMongoURI()).
		SetMaxPoolSize(50).
		SetMinPoolSize(5).
		SetConnectTimeout(5 * time.Second).
		SetSocketTimeout(10 * time.Second)

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancelPing := context.WithTimeout(ctx, 2*time.Second)
	defer cancelPing()

	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(cfg.GetMongoDatabase()), nil
}

// CloseMongo disconnects the client behind database.
func CloseMongo(ctx context.Context, database *mongo.Database) error {
	if database == nil {
		return nil
	}
	return database.Client().Disconnect(ctx)
}

// MongoHealth adapts a MongoDB database to the readiness checker contract.
type MongoHealth struct {
	database *mongo.Database
}

// NewMongoHealth wraps database for health checks.
func NewMongoHealth(database *mongo.Database) *MongoHealth {
	return &MongoHealth{database: database}
}

// Ping checks MongoDB connectivity.
func (h *MongoHealth) Ping(ctx context.Context) error {
	return h.database.Client().Ping(ctx, nil)
}
