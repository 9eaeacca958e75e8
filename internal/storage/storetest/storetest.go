// Package storetest runs the same behavioural checks against any
// storage.Store implementation.
package storetest

import (
	"context"
	"errors"
	"testing"

	"safepiggy/internal/core"
	"safepiggy/internal/query"
	"safepiggy/internal/storage"
)

// Factory returns a fresh, empty store. Cleanup is the caller's job
// (t.Cleanup inside the factory is fine).
type Factory func(t *testing.T) storage.Store

func Expense(desc string, amount float64, cat core.Category, date string) core.Expense {
	return core.Expense{
		Description:   desc,
		Amount:        amount,
		Category:      cat,
		Date:          date,
		PaymentMethod: core.Card,
	}
}

// Seed inserts items in order and returns them with their ids.
func Seed(t *testing.T, s storage.Store, items ...core.Expense) []core.Expense {
	t.Helper()
	out := make([]core.Expense, 0, len(items))
	for _, e := range items {
		saved, err := s.Insert(context.Background(), e)
		if err != nil {
			t.Fatalf("insert %q: %v", e.Description, err)
		}
		out = append(out, saved)
	}
	return out
}

// Run executes the full suite.
func Run(t *testing.T, newStore Factory) {
	t.Run("InsertGetRoundTrip", func(t *testing.T) { testInsertGet(t, newStore(t)) })
	t.Run("IDsIncreaseAndAreNotReused", func(t *testing.T) { testIDs(t, newStore(t)) })
	t.Run("UpdateOverwritesAllFields", func(t *testing.T) { testUpdate(t, newStore(t)) })
	t.Run("RejectsInvalidRecords", func(t *testing.T) { testRejectsInvalid(t, newStore(t)) })
	t.Run("DeleteTwice", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("FilterAndTotal", func(t *testing.T) { testFilterAndTotal(t, newStore(t)) })
	t.Run("Ordering", func(t *testing.T) { testOrdering(t, newStore(t)) })
	t.Run("SumEmpty", func(t *testing.T) { testSumEmpty(t, newStore(t)) })
	t.Run("Breakdown", func(t *testing.T) { testBreakdown(t, newStore(t)) })
	t.Run("Ping", func(t *testing.T) {
		if err := newStore(t).Ping(context.Background()); err != nil {
			t.Fatalf("ping: %v", err)
		}
	})
}

func testInsertGet(t *testing.T, s storage.Store) {
	ctx := context.Background()
	in := Expense("Lunch", 12.75, core.Food, "2024-01-15")
	in.Recurring = 1
	in.PaymentMethod = core.BankTransfer

	saved, err := s.Insert(ctx, in)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if saved.ID <= 0 {
		t.Fatalf("expected positive id, got %d", saved.ID)
	}
	got, err := s.Get(ctx, saved.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	in.ID = saved.ID
	if got != in {
		t.Fatalf("get = %+v, want %+v", got, in)
	}
	if _, err := s.Get(ctx, saved.ID+1000); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("get unknown id: got %v, want ErrNotFound", err)
	}
}

func testIDs(t *testing.T, s storage.Store) {
	ctx := context.Background()
	seeded := Seed(t, s,
		Expense("a", 1, core.Food, "2024-01-01"),
		Expense("b", 2, core.Food, "2024-01-02"),
	)
	if seeded[1].ID <= seeded[0].ID {
		t.Fatalf("ids not increasing: %d then %d", seeded[0].ID, seeded[1].ID)
	}
	if ok, err := s.Delete(ctx, seeded[1].ID); err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	next := Seed(t, s, Expense("c", 3, core.Food, "2024-01-03"))[0]
	if next.ID <= seeded[1].ID {
		t.Fatalf("id %d reused or decreased after deleting %d", next.ID, seeded[1].ID)
	}
}

func testUpdate(t *testing.T, s storage.Store) {
	ctx := context.Background()
	orig := Seed(t, s, Expense("Bus", 2.5, core.Transport, "2024-01-10"))[0]

	changed := core.Expense{
		ID:            9999,
		Description:   "Train",
		Amount:        19.9,
		Category:      core.Entertainment,
		Date:          "2024-02-01",
		PaymentMethod: core.Cash,
		Recurring:     1,
	}
	saved, err := s.Update(ctx, orig.ID, changed)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	changed.ID = orig.ID
	if saved != changed {
		t.Fatalf("update returned %+v, want %+v", saved, changed)
	}
	got, err := s.Get(ctx, orig.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != changed {
		t.Fatalf("get after update = %+v, want %+v", got, changed)
	}

	if _, err := s.Update(ctx, orig.ID+1000, changed); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("update unknown id: got %v, want ErrNotFound", err)
	}
}

func testRejectsInvalid(t *testing.T, s storage.Store) {
	ctx := context.Background()
	orig := Seed(t, s, Expense("Bus", 2.5, core.Transport, "2024-01-10"))[0]

	bad := map[string]struct {
		e    core.Expense
		want error
	}{
		"blank description": {Expense("  ", 5, core.Food, "2024-01-01"), core.ErrEmptyDescription},
		"zero amount":       {Expense("Lunch", 0, core.Food, "2024-01-01"), core.ErrInvalidAmount},
		"unknown category":  {Expense("Lunch", 5, "Travel", "2024-01-01"), core.ErrInvalidCategory},
		"bad date":          {Expense("Lunch", 5, core.Food, "01/02/2024"), core.ErrInvalidDate},
	}
	for name, tc := range bad {
		if _, err := s.Insert(ctx, tc.e); !errors.Is(err, tc.want) {
			t.Errorf("insert %s: got %v, want %v", name, err, tc.want)
		}
		if _, err := s.Update(ctx, orig.ID, tc.e); !errors.Is(err, tc.want) {
			t.Errorf("update %s: got %v, want %v", name, err, tc.want)
		}
	}

	items, err := s.Query(ctx, query.All(), query.Ordering{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(items) != 1 || items[0] != orig {
		t.Fatalf("store changed by rejected writes: %+v", items)
	}
}

func testDelete(t *testing.T, s storage.Store) {
	ctx := context.Background()
	e := Seed(t, s, Expense("x", 1, core.Other, "2024-01-01"))[0]

	ok, err := s.Delete(ctx, e.ID)
	if err != nil || !ok {
		t.Fatalf("first delete: ok=%v err=%v", ok, err)
	}
	ok, err = s.Delete(ctx, e.ID)
	if err != nil || ok {
		t.Fatalf("second delete: ok=%v err=%v, want false", ok, err)
	}
	if _, err := s.Get(ctx, e.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("get after delete: %v", err)
	}
	if ok, _ := s.Delete(ctx, 424242); ok {
		t.Fatalf("delete of unknown id reported success")
	}
}

func testFilterAndTotal(t *testing.T, s storage.Store) {
	ctx := context.Background()
	seeded := Seed(t, s,
		Expense("Food expense", 25.00, core.Food, "2024-01-15"),
		Expense("Transport expense", 15.50, core.Transport, "2024-01-20"),
		Expense("Another food expense", 30.00, core.Food, "2024-02-10"),
	)

	p := query.Build(query.Filter{Category: "Food"})
	items, err := s.Query(ctx, p, query.Ordering{By: query.SortByDate})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(items) != 2 || items[0].ID != seeded[2].ID || items[1].ID != seeded[0].ID {
		t.Fatalf("food query = %+v", items)
	}
	for _, e := range items {
		if e.Category != core.Food {
			t.Fatalf("non-food record returned: %+v", e)
		}
	}
	total, err := s.Sum(ctx, p)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if total != 55 {
		t.Fatalf("food total = %v, want 55", total)
	}
	if total != core.SumExpenses(items) {
		t.Fatalf("sum %v disagrees with listed amounts %v", total, core.SumExpenses(items))
	}

	disjoint := query.Build(query.Filter{StartDate: "2025-01-01"})
	none, err := s.Query(ctx, disjoint, query.Ordering{})
	if err != nil {
		t.Fatalf("query disjoint: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("disjoint predicate matched %d records", len(none))
	}

	january := query.Build(query.Filter{StartDate: "2024-01-15", EndDate: "2024-01-20"})
	jan, err := s.Query(ctx, january, query.Ordering{})
	if err != nil {
		t.Fatalf("query january: %v", err)
	}
	if len(jan) != 2 {
		t.Fatalf("inclusive range matched %d records, want 2", len(jan))
	}
	janTotal, _ := s.Sum(ctx, january)
	if janTotal != 40.5 {
		t.Fatalf("january total = %v, want 40.5", janTotal)
	}
}

func testOrdering(t *testing.T, s storage.Store) {
	ctx := context.Background()
	seeded := Seed(t, s,
		Expense("a", 10, core.Food, "2024-03-01"),
		Expense("b", 50, core.Bills, "2024-01-01"),
		Expense("c", 10, core.Other, "2024-03-01"),
		Expense("d", 5, core.Food, "2024-02-01"),
	)

	byDate, err := s.Query(ctx, query.All(), query.Ordering{By: query.SortByDate})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	wantDate := []int64{seeded[2].ID, seeded[0].ID, seeded[3].ID, seeded[1].ID}
	assertIDs(t, "date order", byDate, wantDate)

	byAmount, err := s.Query(ctx, query.All(), query.Ordering{By: query.SortByAmount})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	wantAmount := []int64{seeded[1].ID, seeded[2].ID, seeded[0].ID, seeded[3].ID}
	assertIDs(t, "amount order", byAmount, wantAmount)

	limited, err := s.Query(ctx, query.All(), query.Newest(2))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	assertIDs(t, "limited", limited, wantDate[:2])
}

func testSumEmpty(t *testing.T, s storage.Store) {
	total, err := s.Sum(context.Background(), query.All())
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if total != 0 {
		t.Fatalf("empty sum = %v", total)
	}
	items, err := s.Query(context.Background(), query.All(), query.Ordering{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Fatalf("empty query should be a non-nil empty slice, got %#v", items)
	}
}

func testBreakdown(t *testing.T, s storage.Store) {
	ctx := context.Background()
	Seed(t, s,
		Expense("groceries", 50, core.Food, "2024-03-03"),
		Expense("bus", 30, core.Transport, "2024-03-10"),
		Expense("last month", 40, core.Food, "2024-02-15"),
	)
	p := query.InMonth(core.MonthRange{Start: "2024-03-01", End: "2024-03-31"})
	rows, err := s.Breakdown(ctx, p)
	if err != nil {
		t.Fatalf("breakdown: %v", err)
	}
	want := []core.CategoryTotal{{Category: core.Food, Total: 50}, {Category: core.Transport, Total: 30}}
	if len(rows) != len(want) {
		t.Fatalf("breakdown = %+v, want %+v", rows, want)
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Fatalf("breakdown[%d] = %+v, want %+v", i, rows[i], want[i])
		}
	}

	empty, err := s.Breakdown(ctx, query.Build(query.Filter{StartDate: "2030-01-01"}))
	if err != nil {
		t.Fatalf("breakdown empty: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no rows, got %+v", empty)
	}
}

func assertIDs(t *testing.T, label string, items []core.Expense, want []int64) {
	t.Helper()
	if len(items) != len(want) {
		t.Fatalf("%s: got %d items, want %d", label, len(items), len(want))
	}
	for i, e := range items {
		if e.ID != want[i] {
			got := make([]int64, len(items))
			for j, it := range items {
				got[j] = it.ID
			}
			t.Fatalf("%s: ids %v, want %v", label, got, want)
		}
	}
}
