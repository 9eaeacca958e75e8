// Package stats builds the monthly dashboard summary from the ledger.
package stats

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"safepiggy/internal/core"
	"safepiggy/internal/query"
	"safepiggy/internal/storage"
)

// RecentLimit is how many transactions the summary lists.
const RecentLimit = 5

type Aggregator struct {
	store storage.Store
	now   func() time.Time
}

// NewAggregator uses time.Now when now is nil.
func NewAggregator(store storage.Store, now func() time.Time) *Aggregator {
	if now == nil {
		now = time.Now
	}
	return &Aggregator{store: store, now: now}
}

// Now returns the aggregator's notion of the current time.
func (a *Aggregator) Now() time.Time {
	return a.now()
}

// MonthlyStats summarises the month the aggregator's clock is in.
func (a *Aggregator) MonthlyStats(ctx context.Context) (core.MonthlyStats, error) {
	return a.MonthlyStatsAt(ctx, a.now())
}

// MonthlyStatsAt runs the four store reads concurrently for now's month,
// in now's location. The recent list is global and not limited to the
// month.
func (a *Aggregator) MonthlyStatsAt(ctx context.Context, now time.Time) (core.MonthlyStats, error) {
	thisMonth := query.InMonth(core.MonthRangeAt(now, 0))
	lastMonth := query.InMonth(core.MonthRangeAt(now, -1))

	var out core.MonthlyStats
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		total, err := a.store.Sum(gctx, thisMonth)
		if err != nil {
			return fmt.Errorf("total this month: %w", err)
		}
		out.TotalThisMonth = total
		return nil
	})
	g.Go(func() error {
		total, err := a.store.Sum(gctx, lastMonth)
		if err != nil {
			return fmt.Errorf("total last month: %w", err)
		}
		out.TotalLastMonth = total
		return nil
	})
	g.Go(func() error {
		rows, err := a.store.Breakdown(gctx, thisMonth)
		if err != nil {
			return fmt.Errorf("category breakdown: %w", err)
		}
		out.CategoryBreakdown = rows
		return nil
	})
	g.Go(func() error {
		recent, err := a.store.Query(gctx, query.All(), query.Newest(RecentLimit))
		if err != nil {
			return fmt.Errorf("recent transactions: %w", err)
		}
		out.LastFiveTransactions = recent
		return nil
	})

	if err := g.Wait(); err != nil {
		return core.MonthlyStats{}, err
	}

	if out.CategoryBreakdown == nil {
		out.CategoryBreakdown = []core.CategoryTotal{}
	}
	if out.LastFiveTransactions == nil {
		out.LastFiveTransactions = []core.Expense{}
	}
	return out, nil
}

// CacheKey identifies the month a summary was computed for. It reads
// now in its own location, as MonthRangeAt does.
func CacheKey(now time.Time) string {
	return now.Format("2006-01")
}
