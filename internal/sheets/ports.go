// Package sheets holds the spreadsheet export port. Implementations live in
// the google and memory subpackages.
package sheets

import (
	"context"
	"errors"
)

// ErrInvalidSheetName is returned for names the Sheets API cannot address.
var ErrInvalidSheetName = errors.New("invalid sheet name")

// RowWriter replaces the whole content of a spreadsheet tab.
type RowWriter interface {
	// ReplaceRows clears sheet (creating it if needed), writes rows from A1
	// and returns the updated range in A1 notation.
	ReplaceRows(ctx context.Context, sheet string, rows [][]any) (string, error)
}

// ValidSheetName rejects empty names and characters that would break an
// A1 range.
func ValidSheetName(name string) error {
	if name == "" || len(name) > 100 {
		return ErrInvalidSheetName
	}
	for _, r := range name {
		switch r {
		case '\'', '!', '[', ']', '*', '?', '/', '\\', ':':
			return ErrInvalidSheetName
		}
		if r < 32 {
			return ErrInvalidSheetName
		}
	}
	return nil
}
