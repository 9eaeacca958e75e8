// Package services orchestrates ledger operations for the HTTP layer:
// validation, persistence, the cached monthly summary and export requests.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"safepiggy/internal/amqp"
	"safepiggy/internal/cache"
	"safepiggy/internal/core"
	"safepiggy/internal/export"
	"safepiggy/internal/log"
	"safepiggy/internal/query"
	"safepiggy/internal/sheets"
	"safepiggy/internal/stats"
	"safepiggy/internal/storage"
)

// ErrExportUnavailable is returned when no export queue is configured.
var ErrExportUnavailable = errors.New("spreadsheet export is not configured")

// MsgInvalidSheet is the validation message for an unusable sheet name.
const MsgInvalidSheet = "Invalid sheet name."

// ExportPublisher queues spreadsheet export requests.
type ExportPublisher interface {
	PublishExportRequest(ctx context.Context, msg *amqp.ExportRequestMessage) error
}

// ListResult is a filtered listing with the sum over the same filter.
type ListResult struct {
	Expenses []core.Expense `json:"expenses"`
	Total    float64        `json:"total"`
}

type ExpenseService struct {
	store      storage.Store
	aggregator *stats.Aggregator
	publisher  ExportPublisher

	statsCache   cache.Cache[core.MonthlyStats]
	statsGroup   singleflight.Group
	statsTimeout time.Duration
	generation   atomic.Uint64
}

// DefaultStatsTimeout bounds one shared monthly summary computation.
const DefaultStatsTimeout = 10 * time.Second

type Option func(*ExpenseService)

// WithStatsCache caches monthly summaries; every write purges it.
func WithStatsCache(c cache.Cache[core.MonthlyStats]) Option {
	return func(s *ExpenseService) { s.statsCache = c }
}

func WithPublisher(p ExportPublisher) Option {
	return func(s *ExpenseService) { s.publisher = p }
}

// WithStatsTimeout overrides DefaultStatsTimeout.
func WithStatsTimeout(d time.Duration) Option {
	return func(s *ExpenseService) {
		if d > 0 {
			s.statsTimeout = d
		}
	}
}

// WithClock pins "now" for the monthly summary.
func WithClock(now func() time.Time) Option {
	return func(s *ExpenseService) { s.aggregator = stats.NewAggregator(s.store, now) }
}

func NewExpenseService(store storage.Store, opts ...Option) *ExpenseService {
	s := &ExpenseService{store: store, statsTimeout: DefaultStatsTimeout}
	s.aggregator = stats.NewAggregator(store, nil)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates payload and stores the canonical record.
func (s *ExpenseService) Create(ctx context.Context, payload map[string]any) (core.Expense, error) {
	res := core.ValidateExpense(payload)
	if !res.IsValid() {
		return core.Expense{}, res.Err()
	}

	saved, err := s.store.Insert(ctx, res.Parsed)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	s.invalidateStats()

	log.NewStructuredLogger(log.FromContext(ctx)).
		LogExpenseSaved(ctx, log.OpCreate, saved.ID, saved.Amount, string(saved.Category), saved.Date)
	return saved, nil
}

// Update validates payload before touching the store, so an invalid body
// for an unknown id is a validation error.
func (s *ExpenseService) Update(ctx context.Context, id int64, payload map[string]any) (core.Expense, error) {
	res := core.ValidateExpense(payload)
	if !res.IsValid() {
		return core.Expense{}, res.Err()
	}

	saved, err := s.store.Update(ctx, id, res.Parsed)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Expense{}, err
		}
		return core.Expense{}, fmt.Errorf("update expense %d: %w", id, err)
	}
	s.invalidateStats()

	log.NewStructuredLogger(log.FromContext(ctx)).
		LogExpenseSaved(ctx, log.OpUpdate, saved.ID, saved.Amount, string(saved.Category), saved.Date)
	return saved, nil
}

// Delete returns core.ErrNotFound when nothing was removed.
func (s *ExpenseService) Delete(ctx context.Context, id int64) error {
	ok, err := s.store.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	if !ok {
		return core.ErrNotFound
	}
	s.invalidateStats()

	log.FromContext(ctx).WithComponent(log.ComponentExpense).InfoContext(ctx, "Expense deleted",
		log.FieldExpenseID, id,
		log.FieldOperation, log.OpDelete)
	return nil
}

func (s *ExpenseService) Get(ctx context.Context, id int64) (core.Expense, error) {
	e, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Expense{}, err
		}
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, err)
	}
	return e, nil
}

// List returns the matching expenses in the filter's order and their sum.
func (s *ExpenseService) List(ctx context.Context, f query.Filter) (ListResult, error) {
	p := f.Predicate()
	items, err := s.store.Query(ctx, p, f.Ordering())
	if err != nil {
		return ListResult{}, fmt.Errorf("list expenses: %w", err)
	}
	total, err := s.store.Sum(ctx, p)
	if err != nil {
		return ListResult{}, fmt.Errorf("sum expenses: %w", err)
	}
	return ListResult{Expenses: items, Total: total}, nil
}

// MonthlyStats serves the summary from cache when possible. Concurrent
// misses for the same month share one computation, which runs detached
// from any single caller and is bounded by statsTimeout. A caller whose
// ctx ends stops waiting without failing the others.
func (s *ExpenseService) MonthlyStats(ctx context.Context) (core.MonthlyStats, error) {
	now := s.aggregator.Now()
	key := stats.CacheKey(now)
	if s.statsCache != nil {
		if v, ok := s.statsCache.Get(key); ok {
			return v, nil
		}
	}

	shared := context.WithoutCancel(ctx)
	ch := s.statsGroup.DoChan(key, func() (any, error) {
		cctx, cancel := context.WithTimeout(shared, s.statsTimeout)
		defer cancel()

		gen := s.generation.Load()
		out, err := s.aggregator.MonthlyStatsAt(cctx, now)
		if err != nil {
			return core.MonthlyStats{}, err
		}
		// A write that landed while computing makes out stale.
		if s.statsCache != nil && s.generation.Load() == gen {
			s.statsCache.Set(key, out)
		}
		return out, nil
	})

	select {
	case <-ctx.Done():
		return core.MonthlyStats{}, fmt.Errorf("monthly stats: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return core.MonthlyStats{}, fmt.Errorf("monthly stats: %w", res.Err)
		}
		return res.Val.(core.MonthlyStats), nil
	}
}

// ExportCSV queries before writing anything, so a store failure leaves w
// untouched.
func (s *ExpenseService) ExportCSV(ctx context.Context, w io.Writer, f query.Filter, format export.Format) (int, error) {
	items, err := s.store.Query(ctx, f.Predicate(), f.Ordering())
	if err != nil {
		return 0, fmt.Errorf("export expenses: %w", err)
	}
	if err := export.WriteCSV(w, items, format); err != nil {
		return 0, err
	}
	return len(items), nil
}

// RequestSheetsExport queues an export of the expenses matching f. An
// empty sheet means the worker's default.
func (s *ExpenseService) RequestSheetsExport(ctx context.Context, f query.Filter, sheet, requestID string) error {
	if s.publisher == nil {
		return ErrExportUnavailable
	}
	if sheet != "" {
		if err := sheets.ValidSheetName(sheet); err != nil {
			return &core.ValidationError{Messages: []string{MsgInvalidSheet}}
		}
	}

	msg := amqp.NewExportRequestMessage(f, sheet, requestID)
	if err := s.publisher.PublishExportRequest(ctx, msg); err != nil {
		return fmt.Errorf("queue sheets export: %w", err)
	}
	return nil
}

// Ping checks the store.
func (s *ExpenseService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *ExpenseService) invalidateStats() {
	s.generation.Add(1)
	if s.statsCache != nil {
		s.statsCache.Purge()
	}
}

// Close releases the store and, when it has one, the publisher.
func (s *ExpenseService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close expense service: %w", errors.Join(errs...))
	}

	return nil
}
