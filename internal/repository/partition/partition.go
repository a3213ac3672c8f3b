package partition

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type (
	// Document is one stored partition. The value is kept as its JSON
	// encoding so that nested objects round-trip as plain JSON objects.
	Document struct {
		Name      string    `bson:"name"`
		Value     string    `bson:"value"`
		UpdatedAt time.Time `bson:"updated_at"`
	}

	PartitionRepo struct {
		collection *mongo.Collection
	}
)

func NewPartitionRepo(db *mongo.Database) *PartitionRepo {
	return &PartitionRepo{
		collection: db.Collection("partitions"),
	}
}

// GetByName returns nil, nil when no partition with that name exists.
func (r *PartitionRepo) GetByName(ctx context.Context, name string) (*Document, error) {
	filter := bson.M{
		"name": name,
	}

	var doc Document
	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return &doc, nil
}

// Put replaces the partition, creating it if needed.
func (r *PartitionRepo) Put(ctx context.Context, doc *Document) error {
	filter := bson.M{
		"name": doc.Name,
	}

	doc.UpdatedAt = time.Now().UTC()
	_, err := r.collection.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	return err
}
