// Package memory is an in-process RowWriter for tests and local runs
// without Google credentials.
package memory

import (
	"context"
	"fmt"
	"sync"

	"safepiggy/internal/sheets"
)

type Writer struct {
	mu     sync.Mutex
	sheets map[string][][]any
	writes int
}

var _ sheets.RowWriter = (*Writer)(nil)

func New() *Writer {
	return &Writer{sheets: make(map[string][][]any)}
}

func (w *Writer) ReplaceRows(ctx context.Context, sheet string, rows [][]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := sheets.ValidSheetName(sheet); err != nil {
		return "", fmt.Errorf("replace rows in %q: %w", sheet, err)
	}

	copied := make([][]any, len(rows))
	for i, r := range rows {
		copied[i] = append([]any(nil), r...)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.sheets[sheet] = copied
	w.writes++
	return fmt.Sprintf("%s!A1:%s%d", sheet, columnName(width(rows)), max(len(rows), 1)), nil
}

// Rows returns a copy of what was last written to sheet.
func (w *Writer) Rows(sheet string) ([][]any, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	rows, ok := w.sheets[sheet]
	if !ok {
		return nil, false
	}
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = append([]any(nil), r...)
	}
	return out, true
}

// Writes counts successful ReplaceRows calls.
func (w *Writer) Writes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writes
}

func width(rows [][]any) int {
	n := 1
	for _, r := range rows {
		if len(r) > n {
			n = len(r)
		}
	}
	return n
}

// columnName converts a 1-based column index to A1 letters.
func columnName(n int) string {
	name := ""
	for n > 0 {
		n--
		name = string(rune('A'+n%26)) + name
		n /= 26
	}
	return name
}
