package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const questionsCollection = "questions"

// MongoStore keeps question records in a MongoDB collection, using the same
// document field names as the question bank API.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ QuestionStore = (*MongoStore)(nil)

func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	coll := client.Database(database).Collection(questionsCollection)
	_, err = coll.Indexes().CreateOne(connectCtx, mongo.IndexModel{
		Keys: bson.D{{Key: "category", Value: 1}, {Key: "difficulty", Value: 1}, {Key: "type", Value: 1}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create question index: %w", err)
	}

	return &MongoStore{client: client, coll: coll}, nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// mongoFilter mirrors buildWhere: enum fields are restricted to valid values
// even when the caller leaves them unconstrained.
func mongoFilter(f Filter) bson.M {
	m := bson.M{
		"type":       bson.M{"$in": validKinds},
		"difficulty": bson.M{"$in": validDifficulties},
	}
	if f.Kind != "" {
		m["type"] = string(f.Kind)
	}
	if f.Difficulty != "" {
		m["difficulty"] = string(f.Difficulty)
	}
	if len(f.Categories) > 0 {
		m["category"] = bson.M{"$in": f.Categories}
	}
	if f.Text != "" {
		m["question"] = f.Text
	}
	if len(f.Tags) > 0 {
		m["tags"] = bson.M{"$in": f.Tags}
	}
	if f.WithReferenceAnswer {
		m["answer"] = bson.M{"$regex": `\S`}
	}
	return m
}

func (s *MongoStore) Find(ctx context.Context, filter Filter) ([]QuestionRecord, error) {
	if filter.impossible() {
		return []QuestionRecord{}, nil
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cur, err := s.coll.Find(ctx, mongoFilter(filter), opts)
	if err != nil {
		return nil, storeErr("find", fmt.Errorf("failed to query questions: %w", err))
	}

	records := []QuestionRecord{}
	if err := cur.All(ctx, &records); err != nil {
		return nil, storeErr("find", fmt.Errorf("failed to decode questions: %w", err))
	}
	for i := range records {
		if records[i].Tags == nil {
			records[i].Tags = []string{}
		}
	}
	return records, nil
}

func (s *MongoStore) FindOne(ctx context.Context, filter Filter) (*QuestionRecord, error) {
	if filter.impossible() {
		return nil, nil
	}

	var record QuestionRecord
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	err := s.coll.FindOne(ctx, mongoFilter(filter), opts).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil // Not found
		}
		return nil, storeErr("find_one", fmt.Errorf("failed to query question: %w", err))
	}
	if record.Tags == nil {
		record.Tags = []string{}
	}
	return &record, nil
}

func (s *MongoStore) Create(ctx context.Context, record *QuestionRecord) error {
	record.ID = uuid.NewString()
	record.CreatedAt = time.Now().UTC()
	if record.Tags == nil {
		record.Tags = []string{}
	}

	if _, err := s.coll.InsertOne(ctx, record); err != nil {
		return storeErr("create", fmt.Errorf("failed to insert question: %w", err))
	}
	return nil
}

func (s *MongoStore) Update(ctx context.Context, id string, update QuestionUpdate) error {
	if update.Empty() {
		return nil
	}

	set := bson.M{}
	if update.Text != nil {
		set["question"] = *update.Text
	}
	if update.Kind != nil {
		set["type"] = string(*update.Kind)
	}
	if update.Difficulty != nil {
		set["difficulty"] = string(*update.Difficulty)
	}
	if update.Category != nil {
		set["category"] = *update.Category
	}
	if update.Tags != nil {
		set["tags"] = update.Tags
	}
	if update.ReferenceAnswer != nil {
		set["answer"] = *update.ReferenceAnswer
	}

	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return storeErr("update", fmt.Errorf("failed to update question: %w", err))
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return storeErr("delete", fmt.Errorf("failed to delete question: %w", err))
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Seed(ctx context.Context, records []QuestionRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	// Seeded records get strictly increasing timestamps so createdAt ordering
	// matches input order.
	base := time.Now().UTC()
	docs := make([]interface{}, 0, len(records))
	for i := range records {
		records[i].ID = uuid.NewString()
		records[i].CreatedAt = base.Add(time.Duration(i) * time.Millisecond)
		if records[i].Tags == nil {
			records[i].Tags = []string{}
		}
		docs = append(docs, records[i])
	}

	res, err := s.coll.InsertMany(ctx, docs)
	if err != nil {
		return 0, storeErr("seed", fmt.Errorf("failed to insert questions: %w", err))
	}
	return len(res.InsertedIDs), nil
}

func (s *MongoStore) Count(ctx context.Context) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, storeErr("count", fmt.Errorf("failed to count questions: %w", err))
	}
	return n, nil
}
