package storage

import (
	"context"

	"safepiggy/internal/core"
	"safepiggy/internal/query"
)

// Store is the expense ledger. Every mutation is durable before it
// returns and reads observe the latest completed write.
type Store interface {
	// Insert assigns a fresh id and returns the stored record.
	Insert(ctx context.Context, e core.Expense) (core.Expense, error)
	// Get returns core.ErrNotFound when no record has the id.
	Get(ctx context.Context, id int64) (core.Expense, error)
	// Update overwrites every field but the id. Returns core.ErrNotFound
	// when no record has the id.
	Update(ctx context.Context, id int64, e core.Expense) (core.Expense, error)
	// Delete reports whether a record was removed.
	Delete(ctx context.Context, id int64) (bool, error)
	Query(ctx context.Context, p query.Predicate, o query.Ordering) ([]core.Expense, error)
	// Sum is 0 when nothing matches.
	Sum(ctx context.Context, p query.Predicate) (float64, error)
	// Breakdown sums matching records per category, ordered by category
	// name. Categories with no matching rows are omitted.
	Breakdown(ctx context.Context, p query.Predicate) ([]core.CategoryTotal, error)
	Ping(ctx context.Context) error
	Close() error
}
