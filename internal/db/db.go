package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names.
const (
	UsersCollection    = "users"
	ContestsCollection = "contests"
	PaymentsCollection = "payments"
	EntriesCollection  = "contestEntries"
)

// Connect opens a MongoDB client for uri and verifies it with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	slog.Info("connected to mongodb")
	return client, nil
}

// Disconnect closes the client, bounded by a timeout.
func Disconnect(client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return client.Disconnect(ctx)
}

// IndexModels lists the indexes the registration invariants rely on, keyed
// by collection.
func IndexModels() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		UsersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		ContestsCollection: {
			{Keys: bson.D{{Key: "creatorEmail", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "approvalStatus", Value: 1}, {Key: "deadline", Value: 1}, {Key: "participants", Value: -1}}},
			{Keys: bson.D{{Key: "winnerEmail", Value: 1}}},
		},
		PaymentsCollection: {
			{Keys: bson.D{{Key: "sessionId", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "userEmail", Value: 1}, {Key: "contestId", Value: 1}, {Key: "status", Value: 1}}},
		},
		EntriesCollection: {
			{Keys: bson.D{{Key: "contestId", Value: 1}, {Key: "userEmail", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "userEmail", Value: 1}, {Key: "joinedAt", Value: -1}}},
			{Keys: bson.D{{Key: "contestId", Value: 1}, {Key: "submittedAt", Value: -1}}},
		},
	}
}

// EnsureIndexes creates the indexes from IndexModels.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for collection, models := range IndexModels() {
		if _, err := database.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			slog.Error("failed to create indexes", "collection", collection, "error", err)
			return fmt.Errorf("failed to create indexes on %s: %w", collection, err)
		}
	}
	return nil
}
