// Package core provides money handling utilities.
//
// Amounts travel as float64 (the wire and column type) but are summed
// through decimal so that 25.00 + 30.00 is exactly 55.
package core

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// SumAmounts adds amounts in decimal space and converts back once.
func SumAmounts(amounts ...float64) float64 {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(decimal.NewFromFloat(a))
	}
	return total.InexactFloat64()
}

// SumExpenses totals the amounts of the given expenses.
func SumExpenses(items []Expense) float64 {
	amounts := make([]float64, len(items))
	for i, e := range items {
		amounts[i] = e.Amount
	}
	return SumAmounts(amounts...)
}

// NormalizeTotal trims float noise from a database-computed sum
// (0.1+0.2 style artifacts) by rounding to 10 decimal places.
func NormalizeTotal(total float64) float64 {
	return decimal.NewFromFloat(total).Round(10).InexactFloat64()
}

// FormatAmount renders an amount in its shortest round-trip form:
// 25.5 -> "25.5", 30 -> "30".
func FormatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}
