package core

import (
	"math"
	"strconv"
	"strings"
)

// Client-facing validation messages. The browser client matches on these.
const (
	MsgDescriptionRequired = "Description is required."
	MsgAmountInvalid       = "Amount must be a positive number."
	MsgCategoryInvalid     = "Invalid category."
	MsgPaymentInvalid      = "Invalid payment method."
	MsgDateInvalid         = "Invalid date format. Use ISO date string."
)

// ValidationResult is the outcome of ValidateExpense. Parsed is meaningful
// only when Errors is empty, except Amount and Recurring which always hold
// their coerced values.
type ValidationResult struct {
	Errors []string
	Parsed Expense
}

func (r ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// Err returns a *ValidationError when the submission failed, nil otherwise.
func (r ValidationResult) Err() error {
	if r.IsValid() {
		return nil
	}
	return &ValidationError{Messages: append([]string(nil), r.Errors...)}
}

// ValidateExpense normalizes a raw decoded submission. Every rule runs;
// errors come back in a fixed order.
func ValidateExpense(payload map[string]any) ValidationResult {
	var res ValidationResult

	desc, ok := payload["description"].(string)
	desc = SanitizeInput(desc)
	if !ok || desc == "" {
		res.Errors = append(res.Errors, MsgDescriptionRequired)
	}
	res.Parsed.Description = desc

	amount := toNumber(payload["amount"])
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		res.Errors = append(res.Errors, MsgAmountInvalid)
	}
	res.Parsed.Amount = amount

	category, _ := payload["category"].(string)
	if !Category(category).IsValid() {
		res.Errors = append(res.Errors, MsgCategoryInvalid)
	}
	res.Parsed.Category = Category(category)

	method, _ := payload["payment_method"].(string)
	if !PaymentMethod(method).IsValid() {
		res.Errors = append(res.Errors, MsgPaymentInvalid)
	}
	res.Parsed.PaymentMethod = PaymentMethod(method)

	rawDate, _ := payload["date"].(string)
	date, err := ParseDate(strings.TrimSpace(rawDate))
	if rawDate == "" || err != nil {
		res.Errors = append(res.Errors, MsgDateInvalid)
	}
	res.Parsed.Date = date

	if truthy(payload["recurring"]) {
		res.Parsed.Recurring = 1
	}

	return res
}

// SanitizeInput removes control characters (tab, newline and carriage
// return excepted) and trims surrounding whitespace.
func SanitizeInput(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		if r == 127 {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// toNumber mirrors loose numeric coercion: numbers pass through, strings
// are parsed (blank is zero), booleans are 1/0, anything else is NaN.
func toNumber(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case float32:
		return float64(val)
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case bool:
		if val {
			return 1
		}
		return 0
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case float64:
		return val != 0 && !math.IsNaN(val)
	case int:
		return val != 0
	case int64:
		return val != 0
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(val)); err == nil {
			return b
		}
		return val != ""
	default:
		return true
	}
}
