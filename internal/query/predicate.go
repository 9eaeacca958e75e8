// Package query turns optional listing filters into typed predicates and
// orderings. Storage backends render them (SQL with bound parameters, Mongo
// filter documents, in-memory matching); nothing here touches a store.
package query

import (
	"net/url"
	"strings"

	"safepiggy/internal/core"
)

// ClauseKind identifies one filter dimension.
type ClauseKind int

const (
	CategoryIs ClauseKind = iota
	DateFrom
	DateTo
)

func (k ClauseKind) String() string {
	switch k {
	case CategoryIs:
		return "category_is"
	case DateFrom:
		return "date_from"
	case DateTo:
		return "date_to"
	default:
		return "unknown"
	}
}

// Clause is a single condition. Value is compared verbatim: dates are
// ISO strings, so >= and <= are lexicographic.
type Clause struct {
	Kind  ClauseKind
	Value string
}

// Match reports whether e satisfies the clause.
func (c Clause) Match(e core.Expense) bool {
	switch c.Kind {
	case CategoryIs:
		return string(e.Category) == c.Value
	case DateFrom:
		return e.Date >= c.Value
	case DateTo:
		return e.Date <= c.Value
	default:
		return false
	}
}

// Predicate is a conjunction of clauses. The zero value matches everything.
type Predicate struct {
	Clauses []Clause
}

// All matches every record.
func All() Predicate { return Predicate{} }

// InMonth restricts to dates inside r, inclusive on both ends.
func InMonth(r core.MonthRange) Predicate {
	return Build(Filter{StartDate: r.Start, EndDate: r.End})
}

// Match reports whether e satisfies every clause.
func (p Predicate) Match(e core.Expense) bool {
	for _, c := range p.Clauses {
		if !c.Match(e) {
			return false
		}
	}
	return true
}

func (p Predicate) IsEmpty() bool { return len(p.Clauses) == 0 }

// Filter holds the raw optional listing parameters. Empty means absent.
type Filter struct {
	Category  string `json:"category,omitempty"`
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
	SortBy    string `json:"sortBy,omitempty"`
}

// FilterFromValues reads category, startDate, endDate and sortBy from a
// query string.
func FilterFromValues(v url.Values) Filter {
	return Filter{
		Category:  strings.TrimSpace(v.Get("category")),
		StartDate: strings.TrimSpace(v.Get("startDate")),
		EndDate:   strings.TrimSpace(v.Get("endDate")),
		SortBy:    strings.TrimSpace(v.Get("sortBy")),
	}
}

// Predicate builds the conjunction for the filter's present fields.
func (f Filter) Predicate() Predicate { return Build(f) }

// Ordering maps SortBy onto an ordering without a limit.
func (f Filter) Ordering() Ordering { return Ordering{By: ParseSort(f.SortBy)} }

// Build produces (category matches) AND (date >= start) AND (date <= end),
// dropping every clause whose parameter is absent.
func Build(f Filter) Predicate {
	var p Predicate
	if f.Category != "" {
		p.Clauses = append(p.Clauses, Clause{Kind: CategoryIs, Value: f.Category})
	}
	if f.StartDate != "" {
		p.Clauses = append(p.Clauses, Clause{Kind: DateFrom, Value: f.StartDate})
	}
	if f.EndDate != "" {
		p.Clauses = append(p.Clauses, Clause{Kind: DateTo, Value: f.EndDate})
	}
	return p
}
