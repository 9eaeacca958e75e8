// Package worker runs spreadsheet exports off the request path, fed by
// AMQP export requests and by a monthly schedule.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"safepiggy/internal/amqp"
	"safepiggy/internal/core"
	"safepiggy/internal/export"
	"safepiggy/internal/query"
	"safepiggy/internal/sheets"
	"safepiggy/internal/storage"
)

// ExportWorker copies filtered ledger contents into a spreadsheet tab.
type ExportWorker struct {
	store        storage.Store
	writer       sheets.RowWriter
	defaultSheet string
}

func NewExportWorker(store storage.Store, writer sheets.RowWriter, defaultSheet string) *ExportWorker {
	if defaultSheet == "" {
		defaultSheet = "Expenses"
	}
	return &ExportWorker{
		store:        store,
		writer:       writer,
		defaultSheet: defaultSheet,
	}
}

// HandleExportRequest is the AMQP handler. Requests naming an unusable
// sheet are dropped instead of being requeued forever.
func (w *ExportWorker) HandleExportRequest(ctx context.Context, msg *amqp.ExportRequestMessage) error {
	sheet := msg.Sheet
	if sheet == "" {
		sheet = w.defaultSheet
	}

	n, err := w.Export(ctx, msg.Filter, sheet)
	if errors.Is(err, sheets.ErrInvalidSheetName) {
		slog.WarnContext(ctx, "Dropping export request with invalid sheet name",
			"request_id", msg.RequestID,
			"sheet", sheet)
		return nil
	}
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Export request completed",
		"request_id", msg.RequestID,
		"sheet", sheet,
		"expenses", n,
		"queued_for", time.Since(msg.RequestedAt).Round(time.Millisecond))
	return nil
}

// Export writes every expense matching filter, in the filter's order, and
// returns how many were written.
func (w *ExportWorker) Export(ctx context.Context, filter query.Filter, sheet string) (int, error) {
	items, err := w.store.Query(ctx, filter.Predicate(), filter.Ordering())
	if err != nil {
		return 0, fmt.Errorf("query expenses for export: %w", err)
	}
	if _, err := w.writer.ReplaceRows(ctx, sheet, export.SheetRows(items)); err != nil {
		return 0, fmt.Errorf("export to sheet %q: %w", sheet, err)
	}
	return len(items), nil
}

// ExportPreviousMonth writes last month's expenses, relative to now, to a
// tab named after the month (e.g. "2024-02").
func (w *ExportWorker) ExportPreviousMonth(ctx context.Context, now time.Time) (string, int, error) {
	r := core.MonthRangeAt(now, -1)
	sheet := r.Start[:7]
	n, err := w.Export(ctx, query.Filter{StartDate: r.Start, EndDate: r.End}, sheet)
	if err != nil {
		return sheet, 0, err
	}
	return sheet, n, nil
}
