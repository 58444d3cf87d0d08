package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mhersch/flowlevel/pkg/observability"
	"github.com/mhersch/flowlevel/pkg/report"
)

const (
	mongoDatabase   = "flowlevel"
	mongoCollection = "reports"
)

// MongoStore persists reports in MongoDB for multi-instance deployments.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore connects to MongoDB at the given URI and verifies the
// connection with a ping.
func NewMongoStore(ctx context.Context, uri string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(mongoDatabase).Collection(mongoCollection),
	}, nil
}

// Put upserts a report keyed by its ID.
func (s *MongoStore) Put(ctx context.Context, r *report.Report) error {
	_, err := s.coll.ReplaceOne(ctx,
		bson.M{"_id": r.ID},
		r,
		options.Replace().SetUpsert(true),
	)
	observability.Store().OnStorePut(ctx, r.ID, err)
	if err != nil {
		return fmt.Errorf("put report %s: %w", r.ID, err)
	}
	return nil
}

// Get retrieves a report by ID.
func (s *MongoStore) Get(ctx context.Context, id string) (*report.Report, error) {
	var r report.Report
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&r)
	observability.Store().OnStoreGet(ctx, id, err == nil)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report %s: %w", id, err)
	}
	return &r, nil
}

// List returns summaries of all stored reports, newest first.
func (s *MongoStore) List(ctx context.Context) ([]Summary, error) {
	cur, err := s.coll.Find(ctx,
		bson.M{},
		options.Find().
			SetSort(bson.D{{Key: "created_at", Value: -1}}).
			SetProjection(bson.M{"_id": 1, "program": 1, "created_at": 1, "regions": 1}),
	)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer cur.Close(ctx)

	var out []Summary
	for cur.Next(ctx) {
		var doc struct {
			ID        string                `bson:"_id"`
			Program   string                `bson:"program"`
			CreatedAt time.Time             `bson:"created_at"`
			Regions   []report.RegionReport `bson:"regions"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode summary: %w", err)
		}
		out = append(out, Summary{
			ID:        doc.ID,
			Program:   doc.Program,
			CreatedAt: doc.CreatedAt,
			Regions:   len(doc.Regions),
		})
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return out, nil
}

// Delete removes a report by ID.
func (s *MongoStore) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete report %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ensure MongoStore implements Store.
var _ Store = (*MongoStore)(nil)
