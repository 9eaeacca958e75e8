// Package mongo stores the ledger in a MongoDB collection. Integer ids come
// from a counters collection so they stay monotonic and are never reused.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"safepiggy/internal/core"
	"safepiggy/internal/query"
	"safepiggy/internal/storage"
)

const (
	expensesCollection = "expenses"
	countersCollection = "counters"
	expenseSequence    = "expenses"
)

type Store struct {
	client   *mongo.Client
	expenses *mongo.Collection
	counters *mongo.Collection
}

var _ storage.Store = (*Store)(nil)

// New connects to uri, pings the server and ensures the query indexes.
func New(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}

	db := client.Database(dbName)
	s := &Store{
		client:   client,
		expenses: db.Collection(expensesCollection),
		counters: db.Collection(countersCollection),
	}

	_, err = s.expenses.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "date", Value: -1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "category", Value: 1}, {Key: "date", Value: -1}}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("create indexes: %w", err)
	}

	slog.InfoContext(ctx, "MongoDB store ready", "database", dbName)
	return s, nil
}

func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": expenseSequence},
		bson.M{"$inc": bson.M{"seq": 1}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next expense id: %w", err)
	}
	return counter.Seq, nil
}

func (s *Store) Insert(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	id, err := s.nextID(ctx)
	if err != nil {
		return core.Expense{}, err
	}
	e.ID = id
	if _, err := s.expenses.InsertOne(ctx, e); err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	return e, nil
}

func (s *Store) Get(ctx context.Context, id int64) (core.Expense, error) {
	var e core.Expense
	err := s.expenses.FindOne(ctx, bson.M{"_id": id}).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.Expense{}, core.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, err)
	}
	return e, nil
}

func (s *Store) Update(ctx context.Context, id int64, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", id, err)
	}
	e.ID = id
	var saved core.Expense
	opts := options.FindOneAndReplace().SetReturnDocument(options.After)
	err := s.expenses.FindOneAndReplace(ctx, bson.M{"_id": id}, e, opts).Decode(&saved)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.Expense{}, core.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", id, err)
	}
	return saved, nil
}

func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.expenses.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("delete expense %d: %w", id, err)
	}
	return res.DeletedCount > 0, nil
}

func (s *Store) Query(ctx context.Context, p query.Predicate, o query.Ordering) ([]core.Expense, error) {
	opts := options.Find().SetSort(sortDoc(o))
	if o.Limit > 0 {
		opts = opts.SetLimit(int64(o.Limit))
	}
	cursor, err := s.expenses.Find(ctx, filterDoc(p), opts)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer cursor.Close(ctx)

	items := make([]core.Expense, 0)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("decode expenses: %w", err)
	}
	return items, nil
}

func (s *Store) Sum(ctx context.Context, p query.Predicate) (float64, error) {
	cursor, err := s.expenses.Aggregate(ctx, sumPipeline(p))
	if err != nil {
		return 0, fmt.Errorf("sum expenses: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Total float64 `bson:"total"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return 0, fmt.Errorf("decode sum: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return core.NormalizeTotal(rows[0].Total), nil
}

func (s *Store) Breakdown(ctx context.Context, p query.Predicate) ([]core.CategoryTotal, error) {
	cursor, err := s.expenses.Aggregate(ctx, breakdownPipeline(p))
	if err != nil {
		return nil, fmt.Errorf("category breakdown: %w", err)
	}
	defer cursor.Close(ctx)

	out := make([]core.CategoryTotal, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode breakdown: %w", err)
	}
	for i := range out {
		out[i].Total = core.NormalizeTotal(out[i].Total)
	}
	return out, nil
}
