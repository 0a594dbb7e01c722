package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/okian/calibrate/internal/domain/model"
)

// Default Mongo collection name for the assessment ledger.
const defaultCollection = "snapshots"

// MongoStore implements Store on a MongoDB collection. The collection is
// insert-only; the adapter never issues updates or deletes.
type MongoStore struct {
	collection *mongo.Collection
}

// NewMongoStore creates a ledger backed by the given database.
func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	return &MongoStore{
		collection: client.Database(database).Collection(defaultCollection),
	}
}

// Append inserts a snapshot. The unique index on id enforces the
// append-only contract across processes.
func (s *MongoStore) Append(ctx context.Context, snap model.Snapshot) (model.Snapshot, error) {
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	doc := toDocument(snap)
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.Snapshot{}, fmt.Errorf("%w: snapshot %s already recorded", ErrImmutableLedger, snap.ID)
		}
		return model.Snapshot{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return snap, nil
}

// ByPlayer returns a player's snapshots matching the filter, oldest first.
func (s *MongoStore) ByPlayer(ctx context.Context, playerID string, f Filter) ([]model.Snapshot, error) {
	q := filterQuery(f)
	q["player_id"] = playerID
	return s.find(ctx, q, f.Limit)
}

// ByCoach returns a coach's snapshots matching the filter, oldest first.
func (s *MongoStore) ByCoach(ctx context.Context, coachID string, f Filter) ([]model.Snapshot, error) {
	q := filterQuery(f)
	q["coach_id"] = coachID
	return s.find(ctx, q, f.Limit)
}

// Query returns all snapshots matching the filter, oldest first.
func (s *MongoStore) Query(ctx context.Context, f Filter) ([]model.Snapshot, error) {
	return s.find(ctx, filterQuery(f), f.Limit)
}

// Players lists distinct player IDs present in the ledger.
func (s *MongoStore) Players(ctx context.Context) ([]string, error) {
	raw, err := s.collection.Distinct(ctx, "player_id", bson.M{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if id, ok := v.(string); ok {
			out = append(out, id)
		}
	}
	return out, nil
}

// Count returns the number of snapshots in the ledger. Errors degrade to
// zero; callers treating this as a gauge tolerate that.
func (s *MongoStore) Count(ctx context.Context) int {
	n, err := s.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0
	}
	return int(n)
}

// EnsureIndexes creates the unique id index and the read-path indexes.
// Call once at startup.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "player_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "coach_id", Value: 1}, {Key: "created_at", Value: 1}}},
	}
	if _, err := s.collection.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *MongoStore) find(ctx context.Context, q bson.M, limit int) ([]model.Snapshot, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if limit > 0 {
		// Tail limit: take the most recent N, then restore chronological order.
		opts = options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(int64(limit))
	}
	cur, err := s.collection.Find(ctx, q, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer cur.Close(ctx)

	var docs []snapshotDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	out := make([]model.Snapshot, len(docs))
	if limit > 0 {
		for i, d := range docs {
			out[len(docs)-1-i] = d.toModel()
		}
	} else {
		for i, d := range docs {
			out[i] = d.toModel()
		}
	}
	return out, nil
}

// filterQuery translates a Filter into a Mongo query document.
func filterQuery(f Filter) bson.M {
	q := bson.M{}
	if f.Context.Center != "" {
		q["context.center"] = f.Context.Center
	}
	if f.Context.Position != "" {
		q["context.position"] = f.Context.Position
	}
	if f.Context.AgeGroup != "" {
		q["context.age_group"] = f.Context.AgeGroup
	}
	if f.Context.Season != "" {
		q["context.season"] = f.Context.Season
	}
	if f.Context.Source != "" {
		q["context.source"] = f.Context.Source
	}
	if f.MetricKey != "" {
		q["values.key"] = f.MetricKey
	}
	return q
}
