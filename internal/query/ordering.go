package query

import (
	"sort"

	"safepiggy/internal/core"
)

// SortField represents a field that can be sorted on.
type SortField string

const (
	SortByDate   SortField = "date"
	SortByAmount SortField = "amount"
)

// ParseSort maps "amount" to SortByAmount; anything else sorts by date.
func ParseSort(s string) SortField {
	if s == string(SortByAmount) {
		return SortByAmount
	}
	return SortByDate
}

// Ordering is always descending on By, with id descending as the
// tiebreaker so equal keys list newest-inserted first. Limit 0 means
// unlimited.
type Ordering struct {
	By    SortField
	Limit int
}

// Newest is date descending, id descending.
func Newest(limit int) Ordering {
	return Ordering{By: SortByDate, Limit: limit}
}

// Less reports whether a sorts before b.
func (o Ordering) Less(a, b core.Expense) bool {
	switch o.By {
	case SortByAmount:
		if a.Amount != b.Amount {
			return a.Amount > b.Amount
		}
	default:
		if a.Date != b.Date {
			return a.Date > b.Date
		}
	}
	return a.ID > b.ID
}

// Apply sorts items in place and truncates to Limit.
func (o Ordering) Apply(items []core.Expense) []core.Expense {
	sort.SliceStable(items, func(i, j int) bool { return o.Less(items[i], items[j]) })
	if o.Limit > 0 && len(items) > o.Limit {
		items = items[:o.Limit]
	}
	return items
}
