package connection

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	mongox "github.com/dmitrymomot/orgkit/pkg/mongo"
	"github.com/dmitrymomot/orgkit/svc/organization"
)

// MongoHandle keeps tenant partitions as collections of one database.
type MongoHandle struct {
	db    *mongo.Database
	owned bool
}

// NewSharedMongoHandle wraps the process-wide database. Close leaves the
// client connected; its owner disconnects it on shutdown.
func NewSharedMongoHandle(db *mongo.Database) *MongoHandle {
	return &MongoHandle{db: db}
}

func newOwnedMongoHandle(client *mongo.Client, database string) *MongoHandle {
	return &MongoHandle{db: client.Database(database), owned: true}
}

// Database exposes the tenant database for data access.
func (h *MongoHandle) Database() *mongo.Database {
	return h.db
}

// Collection returns the partition collection for a tenant.
func (h *MongoHandle) Collection(partitionKey string) *mongo.Collection {
	return h.db.Collection(organization.PartitionName(partitionKey))
}

func (h *MongoHandle) Kind() string { return "mongo" }

func (h *MongoHandle) Ping(ctx context.Context) error {
	return h.db.Client().Ping(ctx, nil)
}

func (h *MongoHandle) Provision(ctx context.Context, partitionKey string) error {
	name := organization.PartitionName(partitionKey)
	if err := h.db.CreateCollection(ctx, name); err != nil && !mongox.IsNamespaceExists(err) {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}

	_, err := h.db.Collection(name).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "created_at", Value: -1}},
		Options: options.Index().SetName("created_at"),
	})
	if err != nil {
		return fmt.Errorf("failed to index collection %s: %w", name, err)
	}
	return nil
}

func (h *MongoHandle) RenamePartition(ctx context.Context, from, to string) error {
	if from == to {
		return nil
	}
	src := h.db.Name() + "." + organization.PartitionName(from)
	dst := h.db.Name() + "." + organization.PartitionName(to)

	err := h.db.Client().Database("admin").RunCommand(ctx, bson.D{
		{Key: "renameCollection", Value: src},
		{Key: "to", Value: dst},
	}).Err()
	switch {
	case err == nil:
		return nil
	case mongox.IsNamespaceNotFound(err):
		return h.Provision(ctx, to)
	case mongox.IsNamespaceExists(err):
		return errors.Join(ErrPartitionExists, err)
	default:
		return fmt.Errorf("failed to rename collection %s to %s: %w", src, dst, err)
	}
}

func (h *MongoHandle) DropPartition(ctx context.Context, partitionKey string) error {
	name := organization.PartitionName(partitionKey)
	if err := h.db.Collection(name).Drop(ctx); err != nil && !mongox.IsNamespaceNotFound(err) {
		return fmt.Errorf("failed to drop collection %s: %w", name, err)
	}
	return nil
}

func (h *MongoHandle) Close(ctx context.Context) error {
	if !h.owned {
		return nil
	}
	return h.db.Client().Disconnect(ctx)
}
