package core

// MonthlyStats is the dashboard summary: totals for the current and
// previous month, the current month split by category and the most
// recent expenses overall.
type MonthlyStats struct {
	TotalThisMonth       float64         `json:"totalThisMonth"`
	TotalLastMonth       float64         `json:"totalLastMonth"`
	CategoryBreakdown    []CategoryTotal `json:"categoryBreakdown"`
	LastFiveTransactions []Expense       `json:"lastFiveTransactions"`
}
