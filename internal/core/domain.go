package core

import (
	"errors"
	"strings"
)

const (
	Food          Category = "Food"
	Transport     Category = "Transport"
	Entertainment Category = "Entertainment"
	Bills         Category = "Bills"
	Other         Category = "Other"

	Cash         PaymentMethod = "Cash"
	Card         PaymentMethod = "Card"
	BankTransfer PaymentMethod = "Bank Transfer"
)

type (
	// Category is the closed set of spending categories.
	Category string

	// PaymentMethod is the closed set of ways an expense was paid.
	PaymentMethod string

	// Expense is a single ledger row. Date is always stored as YYYY-MM-DD
	// so lexicographic comparison is chronological.
	Expense struct {
		ID            int64         `json:"id" bson:"_id"`
		Description   string        `json:"description" bson:"description"`
		Amount        float64       `json:"amount" bson:"amount"`
		Category      Category      `json:"category" bson:"category"`
		Date          string        `json:"date" bson:"date"`
		PaymentMethod PaymentMethod `json:"payment_method" bson:"payment_method"`
		Recurring     int           `json:"recurring" bson:"recurring"`
	}
)

// Categories lists every valid category in display order.
var Categories = []Category{Food, Transport, Entertainment, Bills, Other}

// PaymentMethods lists every valid payment method.
var PaymentMethods = []PaymentMethod{Cash, Card, BankTransfer}

var (
	ErrNotFound         = errors.New("expense not found")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrInvalidCategory  = errors.New("invalid category")
	ErrInvalidPayment   = errors.New("invalid payment method")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidRecurring = errors.New("recurring must be 0 or 1")
)

func (c Category) IsValid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

func (p PaymentMethod) IsValid() bool {
	for _, v := range PaymentMethods {
		if p == v {
			return true
		}
	}
	return false
}

// Validate checks the stored-record invariants. Submissions coming from
// clients go through ValidateExpense instead, which reports every problem.
func (e Expense) Validate() error {
	if strings.TrimSpace(e.Description) == "" {
		return ErrEmptyDescription
	}
	if !(e.Amount > 0) {
		return ErrInvalidAmount
	}
	if !e.Category.IsValid() {
		return ErrInvalidCategory
	}
	if !e.PaymentMethod.IsValid() {
		return ErrInvalidPayment
	}
	if _, err := ParseDate(e.Date); err != nil {
		return ErrInvalidDate
	}
	if e.Recurring != 0 && e.Recurring != 1 {
		return ErrInvalidRecurring
	}
	return nil
}

// ValidationError carries every failed rule for a submission, in rule order.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, " ")
}

// CategoryTotal is one row of a per-category breakdown.
type CategoryTotal struct {
	Category Category `json:"category" bson:"_id"`
	Total    float64  `json:"total" bson:"total"`
}
