// Package export renders query results for download and for spreadsheets.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"safepiggy/internal/core"
)

// Format selects the CSV dialect.
type Format string

const (
	// FormatLegacy wraps the description in quotes without escaping
	// embedded quotes, joins lines with \n and has no trailing newline.
	// Existing downloads depend on this shape.
	FormatLegacy Format = "legacy"
	// FormatRFC4180 is proper CSV via encoding/csv.
	FormatRFC4180 Format = "rfc4180"
)

// Header lists the exported columns. recurring is not part of the CSV.
var Header = []string{"id", "description", "amount", "category", "date", "payment_method"}

// ParseFormat maps "rfc4180" (any case) to FormatRFC4180; everything else
// is legacy.
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), string(FormatRFC4180)) {
		return FormatRFC4180
	}
	return FormatLegacy
}

// CSV renders items in the given order.
func CSV(items []core.Expense, format Format) (string, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, items, format); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// WriteCSV streams items to w in the given order.
func WriteCSV(w io.Writer, items []core.Expense, format Format) error {
	if format == FormatRFC4180 {
		return writeRFC4180(w, items)
	}
	return writeLegacy(w, items)
}

func writeLegacy(w io.Writer, items []core.Expense) error {
	if _, err := io.WriteString(w, strings.Join(Header, ",")); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range items {
		line := "\n" + strconv.FormatInt(e.ID, 10) +
			`,"` + e.Description + `",` +
			core.FormatAmount(e.Amount) + "," +
			string(e.Category) + "," +
			e.Date + "," +
			string(e.PaymentMethod)
		if _, err := io.WriteString(w, line); err != nil {
			return fmt.Errorf("write csv row %d: %w", e.ID, err)
		}
	}
	return nil
}

func writeRFC4180(w io.Writer, items []core.Expense) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range items {
		if err := cw.Write(record(e)); err != nil {
			return fmt.Errorf("write csv row %d: %w", e.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func record(e core.Expense) []string {
	return []string{
		strconv.FormatInt(e.ID, 10),
		e.Description,
		core.FormatAmount(e.Amount),
		string(e.Category),
		e.Date,
		string(e.PaymentMethod),
	}
}
