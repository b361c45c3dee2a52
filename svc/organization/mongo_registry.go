package organization

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	mongox "github.com/dmitrymomot/orgkit/pkg/mongo"
)

// MongoRegistry stores organizations in a collection of the control database.
type MongoRegistry struct {
	coll *mongo.Collection
	opts registryOptions
}

func NewMongoRegistry(db *mongo.Database, collection string, opts ...RegistryOption) *MongoRegistry {
	return &MongoRegistry{
		coll: db.Collection(collection),
		opts: newRegistryOptions(opts),
	}
}

// EnsureIndexes creates the unique partition key index and the lookup indexes.
func (r *MongoRegistry) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "partition_key", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_partition_key"),
		},
		{Keys: bson.D{{Key: "admin.email", Value: 1}}, Options: options.Index().SetName("admin_email")},
		{Keys: bson.D{{Key: "created_at", Value: -1}}, Options: options.Index().SetName("created_at")},
		{Keys: bson.D{{Key: "db_mode", Value: 1}}, Options: options.Index().SetName("db_mode")},
	})
	if err != nil {
		return fmt.Errorf("failed to create organization indexes: %w", err)
	}
	return nil
}

func (r *MongoRegistry) Create(ctx context.Context, org *Organization) error {
	stamp(org, r.opts.timestamp())

	doc, err := r.seal(org)
	if err != nil {
		return err
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongox.IsDuplicateKeyError(err) {
			return errConflict(fmt.Sprintf("organization %q already exists", org.Name))
		}
		return fmt.Errorf("failed to insert organization: %w", err)
	}
	return nil
}

func (r *MongoRegistry) FindByName(ctx context.Context, name string) (*Organization, error) {
	key := PartitionKey(name)
	if key == "" {
		return nil, ErrNotFound
	}
	return r.findOne(ctx, bson.D{{Key: "partition_key", Value: key}})
}

func (r *MongoRegistry) FindByID(ctx context.Context, id string) (*Organization, error) {
	return r.findOne(ctx, bson.D{{Key: "_id", Value: id}})
}

func (r *MongoRegistry) findOne(ctx context.Context, filter bson.D) (*Organization, error) {
	var org Organization
	if err := r.coll.FindOne(ctx, filter).Decode(&org); err != nil {
		if mongox.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find organization: %w", err)
	}
	return r.open(&org)
}

// Update replaces the record only if it has not changed since it was read,
// so a patch is applied entirely or not at all.
func (r *MongoRegistry) Update(ctx context.Context, id string, patch Patch) (*Organization, error) {
	current, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	next, err := patch.Apply(current, r.opts.timestamp())
	if err != nil {
		return nil, err
	}

	doc, err := r.seal(next)
	if err != nil {
		return nil, err
	}

	filter := bson.D{
		{Key: "_id", Value: id},
		{Key: "updated_at", Value: current.UpdatedAt},
	}
	var stored Organization
	err = r.coll.FindOneAndReplace(ctx, filter, doc,
		options.FindOneAndReplace().SetReturnDocument(options.After),
	).Decode(&stored)
	switch {
	case err == nil:
		return r.open(&stored)
	case mongox.IsDuplicateKeyError(err):
		return nil, errConflict(fmt.Sprintf("organization %q already exists", next.Name))
	case mongox.IsNotFoundError(err):
		if _, findErr := r.FindByID(ctx, id); errors.Is(findErr, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errConflict("organization was modified concurrently")
	default:
		return nil, fmt.Errorf("failed to update organization: %w", err)
	}
}

func (r *MongoRegistry) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRegistry) CountByMode(ctx context.Context) (map[DBMode]int64, error) {
	cur, err := r.coll.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$db_mode"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count organizations: %w", err)
	}

	var rows []struct {
		Mode  DBMode `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode organization counts: %w", err)
	}

	counts := map[DBMode]int64{ModeShared: 0, ModeDedicated: 0}
	for _, row := range rows {
		counts[row.Mode] = row.Count
	}
	return counts, nil
}

// seal returns the document to persist, with the descriptor URI encrypted
// when a sealer is configured. org itself is left untouched.
func (r *MongoRegistry) seal(org *Organization) (*Organization, error) {
	if r.opts.sealer == nil || org.Descriptor == nil || org.Descriptor.URI == "" {
		return org, nil
	}
	doc := org.Clone()
	uri, err := r.opts.sealer.Seal(org.ID, org.Descriptor.URI)
	if err != nil {
		return nil, fmt.Errorf("failed to seal connection uri: %w", err)
	}
	doc.Descriptor.URI = uri
	return doc, nil
}

func (r *MongoRegistry) open(org *Organization) (*Organization, error) {
	if r.opts.sealer == nil || org.Descriptor == nil || org.Descriptor.URI == "" {
		return org, nil
	}
	uri, err := r.opts.sealer.Open(org.ID, org.Descriptor.URI)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection uri of organization %s: %w", org.ID, err)
	}
	org.Descriptor.URI = uri
	return org, nil
}
