package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"

	"safepiggy/internal/core"
	"safepiggy/internal/export"
	"safepiggy/internal/log"
	"safepiggy/internal/middleware/trace"
	"safepiggy/internal/services"
)

func (s *Server) withTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.requestTimeout)
}

// writeError maps service errors onto the API's status codes. Anything
// unrecognised is logged and reported as a bare 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		ValidationErrorResponse(verr.Messages).Write(w)
	case errors.Is(err, core.ErrNotFound):
		NotFoundError().Write(w)
	case errors.Is(err, services.ErrExportUnavailable):
		ServiceUnavailableError(MsgExportDisabled).Write(w)
	default:
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, log.ComponentHTTP, op,
				log.NewFields().
					WithRequestID(trace.GetRequestID(r.Context())).
					WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "", ""))
		InternalServerError().Write(w)
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().JSON(map[string]string{"message": "Expense Tracker API is running"}).Write(w)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(http.StatusNotFound, "Not found").Write(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().JSON(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.withTimeout(r)
	defer cancel()

	if err := s.service.Ping(ctx); err != nil {
		log.FromContext(ctx).WithComponent(log.ComponentStorage).WarnContext(ctx, "Readiness check failed", log.FieldError, err.Error())
		ServiceUnavailableError("store unavailable").Write(w)
		return
	}
	NewJSONResponse().JSON(map[string]string{"status": "ready"}).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	payload, err := NewRequestBodyParser(w, r).Payload()
	if err != nil {
		ValidationErrorResponse([]string{MsgInvalidBody}).Write(w)
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	saved, err := s.service.Create(ctx, payload)
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).JSON(saved).Write(w)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.withTimeout(r)
	defer cancel()

	res, err := s.service.List(ctx, ParseFilter(r))
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().JSON(res).Write(w)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(r)
	if !ok {
		NotFoundError().Write(w)
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	e, err := s.service.Get(ctx, id)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().JSON(e).Write(w)
}

// handleUpdateExpense leaves validation to the service, which checks the
// body before the id. An unusable id is passed as 0, which names no record,
// so a bad body for a bad id is still a 400.
func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	payload, err := NewRequestBodyParser(w, r).Payload()
	if err != nil {
		ValidationErrorResponse([]string{MsgInvalidBody}).Write(w)
		return
	}
	id, _ := ParseID(r)

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	saved, err := s.service.Update(ctx, id, payload)
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().JSON(saved).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(r)
	if !ok {
		NotFoundError().Write(w)
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	if err := s.service.Delete(ctx, id); err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleMonthlyStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.withTimeout(r)
	defer cancel()

	st, err := s.service.MonthlyStats(ctx)
	if err != nil {
		s.writeError(w, r, log.OpStats, err)
		return
	}
	NewJSONResponse().JSON(st).Write(w)
}

// handleExportCSV renders into a buffer first so a failure can still be
// reported with a proper status.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.withTimeout(r)
	defer cancel()

	format := export.ParseFormat(r.URL.Query().Get("format"))
	var buf bytes.Buffer
	n, err := s.service.ExportCSV(ctx, &buf, ParseFilter(r), format)
	if err != nil {
		s.writeError(w, r, log.OpExport, err)
		return
	}

	log.FromContext(ctx).WithComponent(log.ComponentExport).DebugContext(ctx, "CSV export",
		"rows", n,
		"format", string(format))

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="expenses.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleExportSheets(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.withTimeout(r)
	defer cancel()

	sheet := strings.TrimSpace(r.URL.Query().Get("sheet"))
	if err := s.service.RequestSheetsExport(ctx, ParseFilter(r), sheet, trace.GetRequestID(ctx)); err != nil {
		s.writeError(w, r, log.OpExport, err)
		return
	}
	NewJSONResponse().Status(http.StatusAccepted).JSON(map[string]string{"status": "queued"}).Write(w)
}
