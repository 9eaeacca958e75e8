package export

import (
	"encoding/csv"
	"strings"
	"testing"

	"safepiggy/internal/core"
)

func TestCSV_LegacyFormat(t *testing.T) {
	items := []core.Expense{
		{ID: 1, Description: "Test expense", Amount: 25.5, Category: core.Food, Date: "2024-01-15", PaymentMethod: core.Card, Recurring: 1},
		{ID: 2, Description: "Rent", Amount: 800, Category: core.Bills, Date: "2024-01-01", PaymentMethod: core.BankTransfer},
	}
	got, err := CSV(items, FormatLegacy)
	if err != nil {
		t.Fatalf("CSV: %v", err)
	}
	want := "id,description,amount,category,date,payment_method\n" +
		`1,"Test expense",25.5,Food,2024-01-15,Card` + "\n" +
		`2,"Rent",800,Bills,2024-01-01,Bank Transfer`
	if got != want {
		t.Fatalf("CSV =\n%s\nwant\n%s", got, want)
	}
	if strings.HasSuffix(got, "\n") {
		t.Fatalf("legacy CSV must not end with a newline")
	}
}

func TestCSV_LegacyEmpty(t *testing.T) {
	got, err := CSV(nil, FormatLegacy)
	if err != nil {
		t.Fatalf("CSV: %v", err)
	}
	if got != "id,description,amount,category,date,payment_method" {
		t.Fatalf("empty CSV = %q", got)
	}
}

func TestCSV_LegacyDoesNotEscapeQuotes(t *testing.T) {
	items := []core.Expense{{ID: 7, Description: `Dinner "Luigi's"`, Amount: 40, Category: core.Food, Date: "2024-03-02", PaymentMethod: core.Cash}}
	got, _ := CSV(items, FormatLegacy)
	if !strings.Contains(got, `7,"Dinner "Luigi's"",40,Food,2024-03-02,Cash`) {
		t.Fatalf("legacy row = %q", got)
	}
}

func TestCSV_RFC4180(t *testing.T) {
	items := []core.Expense{
		{ID: 7, Description: `Dinner "Luigi's", Rome`, Amount: 40.25, Category: core.Food, Date: "2024-03-02", PaymentMethod: core.Cash},
	}
	got, err := CSV(items, FormatRFC4180)
	if err != nil {
		t.Fatalf("CSV: %v", err)
	}
	records, err := csv.NewReader(strings.NewReader(got)).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[1][1] != `Dinner "Luigi's", Rome` {
		t.Fatalf("description round trip = %q", records[1][1])
	}
	if records[1][2] != "40.25" {
		t.Fatalf("amount = %q", records[1][2])
	}
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{
		"":        FormatLegacy,
		"legacy":  FormatLegacy,
		"rfc4180": FormatRFC4180,
		"RFC4180": FormatRFC4180,
		"excel":   FormatLegacy,
	}
	for in, want := range cases {
		if got := ParseFormat(in); got != want {
			t.Fatalf("ParseFormat(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSheetRows(t *testing.T) {
	rows := SheetRows([]core.Expense{
		{ID: 3, Description: "Gym", Amount: 30, Category: core.Other, Date: "2024-01-05", PaymentMethod: core.Card, Recurring: 1},
	})
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0][0] != "ID" || len(rows[0]) != 7 {
		t.Fatalf("header = %v", rows[0])
	}
	if rows[1][0] != int64(3) || rows[1][6] != "Yes" {
		t.Fatalf("row = %v", rows[1])
	}
}
