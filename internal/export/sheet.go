package export

import (
	"safepiggy/internal/core"
)

// SheetHeader is the first row written to a spreadsheet export. Unlike
// the CSV it keeps the recurring flag.
var SheetHeader = []any{"ID", "Description", "Amount", "Category", "Date", "Payment Method", "Recurring"}

// SheetRows returns the header followed by one row per expense.
func SheetRows(items []core.Expense) [][]any {
	rows := make([][]any, 0, len(items)+1)
	rows = append(rows, SheetHeader)
	for _, e := range items {
		recurring := "No"
		if e.Recurring == 1 {
			recurring = "Yes"
		}
		rows = append(rows, []any{
			e.ID,
			e.Description,
			e.Amount,
			string(e.Category),
			e.Date,
			string(e.PaymentMethod),
			recurring,
		})
	}
	return rows
}
