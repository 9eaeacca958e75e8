// Package memory is a mutex-guarded in-process Store, used by tests and
// by DATA_BACKEND=memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"safepiggy/internal/core"
	"safepiggy/internal/query"
	"safepiggy/internal/storage"
)

type Store struct {
	mu     sync.RWMutex
	nextID int64
	items  map[int64]core.Expense
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{items: make(map[int64]core.Expense)}
}

func (s *Store) Insert(_ context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	e.ID = s.nextID
	s.items[e.ID] = e
	return e, nil
}

func (s *Store) Get(_ context.Context, id int64) (core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[id]
	if !ok {
		return core.Expense{}, core.ErrNotFound
	}
	return e, nil
}

func (s *Store) Update(_ context.Context, id int64, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", id, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return core.Expense{}, core.ErrNotFound
	}
	e.ID = id
	s.items[id] = e
	return e, nil
}

func (s *Store) Delete(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return false, nil
	}
	delete(s.items, id)
	return true, nil
}

func (s *Store) Query(_ context.Context, p query.Predicate, o query.Ordering) ([]core.Expense, error) {
	return o.Apply(s.match(p)), nil
}

func (s *Store) Sum(_ context.Context, p query.Predicate) (float64, error) {
	return core.SumExpenses(s.match(p)), nil
}

func (s *Store) Breakdown(_ context.Context, p query.Predicate) ([]core.CategoryTotal, error) {
	groups := make(map[core.Category][]float64)
	for _, e := range s.match(p) {
		groups[e.Category] = append(groups[e.Category], e.Amount)
	}
	out := make([]core.CategoryTotal, 0, len(groups))
	for c, amounts := range groups {
		out = append(out, core.CategoryTotal{Category: c, Total: core.SumAmounts(amounts...)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) match(p query.Predicate) []core.Expense {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Expense, 0, len(s.items))
	for _, e := range s.items {
		if p.Match(e) {
			out = append(out, e)
		}
	}
	return out
}
