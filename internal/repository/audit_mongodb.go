package repository

import (
	"context"
	"fmt"
	"time"

	"consign-review-api/internal/model"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDBAuditRepository implements AuditRepository using MongoDB.
type MongoDBAuditRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoDBAuditRepository connects to MongoDB and ensures indexes.
func NewMongoDBAuditRepository(uri, database, collection string) (*MongoDBAuditRepository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(20).
		SetMaxConnIdleTime(5 * time.Minute)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	coll := client.Database(database).Collection(collection)

	_, err = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "line_item_id", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	if err != nil {
		log.WithField("component", "AuditRepository").WithError(err).Warn("Failed to create MongoDB indexes")
	}

	log.WithFields(log.Fields{
		"component":  "AuditRepository",
		"database":   database,
		"collection": collection,
	}).Info("MongoDB audit store initialized")

	return &MongoDBAuditRepository{client: client, collection: coll}, nil
}

// InsertDispatch records one dispatch attempt.
func (r *MongoDBAuditRepository) InsertDispatch(ctx context.Context, rec *model.DispatchRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()

	if _, err := r.collection.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("failed to insert dispatch record: %w", err)
	}
	return nil
}

func mongoFilter(filter AuditFilter) bson.M {
	m := bson.M{}
	if filter.LineItemID != "" {
		m["line_item_id"] = filter.LineItemID
	}
	if filter.ShopID != "" {
		m["shop_id"] = filter.ShopID
	}
	if filter.Action != "" {
		m["action"] = filter.Action
	}
	return m
}

// ListDispatches returns records newest first.
func (r *MongoDBAuditRepository) ListDispatches(ctx context.Context, filter AuditFilter, limit, offset int) ([]model.DispatchRecord, int64, error) {
	f := mongoFilter(filter)

	findOptions := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := r.collection.Find(ctx, f, findOptions)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list dispatch records: %w", err)
	}
	defer cursor.Close(ctx)

	records := []model.DispatchRecord{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, 0, fmt.Errorf("failed to decode dispatch records: %w", err)
	}

	total, err := r.collection.CountDocuments(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count dispatch records: %w", err)
	}

	return records, total, nil
}

// DeleteOlderThan removes records created before cutoff.
func (r *MongoDBAuditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"created_at": bson.M{"$lt": cutoff.UTC()}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete old dispatch records: %w", err)
	}
	return result.DeletedCount, nil
}

// GetStats returns record counts per outcome.
func (r *MongoDBAuditRepository) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := map[string]interface{}{"backend": "mongodb"}

	var total int64
	for _, outcome := range []string{model.OutcomeSuccess, model.OutcomeFailed} {
		n, err := r.collection.CountDocuments(ctx, bson.M{"outcome": outcome})
		if err != nil {
			return nil, err
		}
		stats[outcome+"_dispatches"] = n
		total += n
	}
	stats["total_dispatches"] = total

	return stats, nil
}

// Close closes the MongoDB connection.
func (r *MongoDBAuditRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

// Ensure MongoDBAuditRepository implements AuditRepository
var _ AuditRepository = (*MongoDBAuditRepository)(nil)
