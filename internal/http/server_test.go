package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"safepiggy/internal/amqp"
	"safepiggy/internal/core"
	"safepiggy/internal/log"
	"safepiggy/internal/query"
	"safepiggy/internal/services"
	"safepiggy/internal/storage"
	"safepiggy/internal/storage/memory"
)

func testLogger() *log.Logger {
	return log.New(log.Config{
		Component: "test",
		Handler:   slog.NewTextHandler(io.Discard, nil),
	})
}

func newTestServer(t *testing.T, store storage.Store, cfg Config, opts ...services.Option) *Server {
	t.Helper()
	if store == nil {
		store = memory.New()
	}
	opts = append([]services.Option{services.WithClock(func() time.Time {
		return time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
	})}, opts...)
	srv, err := NewServer(cfg, services.NewExpenseService(store, opts...), testLogger())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

const lunch = `{"description":"Test expense","amount":25.5,"category":"Food","date":"2024-01-15","payment_method":"Card","recurring":false}`

func TestRootAndHealth(t *testing.T) {
	srv := newTestServer(t, nil, Config{})

	rr := do(t, srv, http.MethodGet, "/", "")
	if rr.Code != http.StatusOK || rr.Body.String() != `{"message":"Expense Tracker API is running"}` {
		t.Fatalf("root = %d %s", rr.Code, rr.Body.String())
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		if rr := do(t, srv, http.MethodGet, path, ""); rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}

	rr = do(t, srv, http.MethodGet, "/nope", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown path status=%d", rr.Code)
	}
}

func TestCreateExpense(t *testing.T) {
	srv := newTestServer(t, nil, Config{})

	rr := do(t, srv, http.MethodPost, "/api/expenses", lunch)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	got := decode[core.Expense](t, rr)
	want := core.Expense{ID: 1, Description: "Test expense", Amount: 25.5, Category: core.Food, Date: "2024-01-15", PaymentMethod: core.Card}
	if got != want {
		t.Fatalf("created = %+v, want %+v", got, want)
	}
	if !strings.Contains(rr.Body.String(), `"recurring":0`) {
		t.Fatalf("recurring should be serialized as 0: %s", rr.Body.String())
	}
}

func TestCreateExpense_Invalid(t *testing.T) {
	srv := newTestServer(t, nil, Config{})

	rr := do(t, srv, http.MethodPost, "/api/expenses", `{"description":"  ","amount":-5,"category":"Food","date":"2024-01-15","payment_method":"Card"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rr.Code)
	}
	body := decode[struct{ Errors []string }](t, rr)
	if len(body.Errors) != 2 || body.Errors[0] != core.MsgDescriptionRequired || body.Errors[1] != core.MsgAmountInvalid {
		t.Fatalf("errors = %v", body.Errors)
	}

	rr = do(t, srv, http.MethodPost, "/api/expenses", `{"description":`)
	if rr.Code != http.StatusBadRequest || !strings.Contains(rr.Body.String(), MsgInvalidBody) {
		t.Fatalf("malformed body = %d %s", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodGet, "/api/expenses", "")
	if decode[services.ListResult](t, rr).Total != 0 {
		t.Fatalf("invalid submissions must not be stored")
	}
}

func TestListExpenses_FilteredTotal(t *testing.T) {
	srv := newTestServer(t, nil, Config{})
	for _, body := range []string{
		`{"description":"Food expense","amount":25,"category":"Food","date":"2024-01-15","payment_method":"Card"}`,
		`{"description":"Transport expense","amount":15.5,"category":"Transport","date":"2024-01-20","payment_method":"Cash"}`,
		`{"description":"Another food expense","amount":30,"category":"Food","date":"2024-02-10","payment_method":"Card"}`,
	} {
		if rr := do(t, srv, http.MethodPost, "/api/expenses", body); rr.Code != http.StatusCreated {
			t.Fatalf("seed status=%d", rr.Code)
		}
	}

	rr := do(t, srv, http.MethodGet, "/api/expenses?category=Food", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	res := decode[services.ListResult](t, rr)
	if len(res.Expenses) != 2 || res.Expenses[0].ID != 3 || res.Expenses[1].ID != 1 || res.Total != 55 {
		t.Fatalf("list = %+v", res)
	}

	rr = do(t, srv, http.MethodGet, "/api/expenses?startDate=2025-01-01", "")
	if !strings.Contains(rr.Body.String(), `"expenses":[]`) {
		t.Fatalf("empty listing should be an array: %s", rr.Body.String())
	}
}

func TestGetUpdateDeleteExpense(t *testing.T) {
	srv := newTestServer(t, nil, Config{})
	do(t, srv, http.MethodPost, "/api/expenses", lunch)

	if rr := do(t, srv, http.MethodGet, "/api/expenses/1", ""); rr.Code != http.StatusOK {
		t.Fatalf("get status=%d", rr.Code)
	}
	for _, path := range []string{"/api/expenses/999", "/api/expenses/abc"} {
		rr := do(t, srv, http.MethodGet, path, "")
		if rr.Code != http.StatusNotFound || rr.Body.String() != `{"error":"Expense not found"}` {
			t.Fatalf("GET %s = %d %s", path, rr.Code, rr.Body.String())
		}
	}

	updated := strings.Replace(lunch, `"recurring":false`, `"recurring":true`, 1)
	rr := do(t, srv, http.MethodPut, "/api/expenses/1", updated)
	if rr.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}
	if e := decode[core.Expense](t, rr); e.ID != 1 || e.Recurring != 1 {
		t.Fatalf("updated = %+v", e)
	}

	if rr := do(t, srv, http.MethodPut, "/api/expenses/999", lunch); rr.Code != http.StatusNotFound {
		t.Fatalf("update unknown status=%d", rr.Code)
	}
	if rr := do(t, srv, http.MethodPut, "/api/expenses/abc", `{"amount":0}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid body for bad id should be 400, got %d", rr.Code)
	}

	rr = do(t, srv, http.MethodDelete, "/api/expenses/1", "")
	if rr.Code != http.StatusNoContent || rr.Body.Len() != 0 {
		t.Fatalf("delete = %d %q", rr.Code, rr.Body.String())
	}
	if rr := do(t, srv, http.MethodDelete, "/api/expenses/1", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("second delete status=%d", rr.Code)
	}
}

// updateRecorder answers Update with a canned error and records what the
// handler passed on.
type updateRecorder struct {
	ExpenseService
	calls   int
	lastID  int64
	respond error
}

func (u *updateRecorder) Update(_ context.Context, id int64, _ map[string]any) (core.Expense, error) {
	u.calls++
	u.lastID = id
	return core.Expense{}, u.respond
}

func TestUpdateExpense_ValidationIsLeftToService(t *testing.T) {
	rec := &updateRecorder{respond: &core.ValidationError{Messages: []string{"Amount must be a positive number."}}}
	srv, err := NewServer(Config{}, rec, testLogger())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	tests := []struct {
		path   string
		wantID int64
	}{
		{"/api/expenses/7", 7},
		{"/api/expenses/abc", 0},
		{"/api/expenses/-3", 0},
	}
	for _, tt := range tests {
		before := rec.calls
		rr := do(t, srv, http.MethodPut, tt.path, `{"amount":0}`)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("PUT %s = %d, want 400", tt.path, rr.Code)
		}
		if rec.calls != before+1 || rec.lastID != tt.wantID {
			t.Fatalf("PUT %s: service calls %d, id %d; want one call with id %d", tt.path, rec.calls-before, rec.lastID, tt.wantID)
		}
	}

	rec.respond = core.ErrNotFound
	if rr := do(t, srv, http.MethodPut, "/api/expenses/abc", lunch); rr.Code != http.StatusNotFound {
		t.Fatalf("valid body for bad id = %d, want 404", rr.Code)
	}
}

func TestMonthlyStats(t *testing.T) {
	srv := newTestServer(t, nil, Config{})
	for _, body := range []string{
		`{"description":"Groceries","amount":50,"category":"Food","date":"2024-03-05","payment_method":"Card"}`,
		`{"description":"Bus","amount":30,"category":"Transport","date":"2024-03-10","payment_method":"Cash"}`,
		`{"description":"Dinner","amount":40,"category":"Food","date":"2024-02-20","payment_method":"Card"}`,
	} {
		do(t, srv, http.MethodPost, "/api/expenses", body)
	}

	rr := do(t, srv, http.MethodGet, "/api/stats/month", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	st := decode[core.MonthlyStats](t, rr)
	if st.TotalThisMonth != 80 || st.TotalLastMonth != 40 || len(st.CategoryBreakdown) != 2 || len(st.LastFiveTransactions) != 3 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestExportCSV(t *testing.T) {
	srv := newTestServer(t, nil, Config{})
	do(t, srv, http.MethodPost, "/api/expenses", lunch)

	rr := do(t, srv, http.MethodGet, "/api/expenses/export/csv", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); cd != `attachment; filename="expenses.csv"` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	lines := strings.Split(rr.Body.String(), "\n")
	if len(lines) != 2 || lines[1] != `1,"Test expense",25.5,Food,2024-01-15,Card` {
		t.Fatalf("csv = %q", rr.Body.String())
	}

	rr = do(t, srv, http.MethodGet, "/api/expenses/export/csv?format=rfc4180&category=Bills", "")
	if rr.Body.String() != "id,description,amount,category,date,payment_method\n" {
		t.Fatalf("filtered rfc4180 csv = %q", rr.Body.String())
	}
}

type fakePublisher struct {
	msgs []*amqp.ExportRequestMessage
}

func (p *fakePublisher) PublishExportRequest(_ context.Context, msg *amqp.ExportRequestMessage) error {
	p.msgs = append(p.msgs, msg)
	return nil
}

func TestExportSheets(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		srv := newTestServer(t, nil, Config{})
		rr := do(t, srv, http.MethodPost, "/api/expenses/export/sheets", "")
		if rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("status=%d", rr.Code)
		}
	})

	t.Run("queued", func(t *testing.T) {
		pub := &fakePublisher{}
		srv := newTestServer(t, nil, Config{}, services.WithPublisher(pub))

		req := httptest.NewRequest(http.MethodPost, "/api/expenses/export/sheets?category=Food&sheet=Food", nil)
		req.Header.Set("X-Request-ID", "req_test")
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusAccepted || rr.Body.String() != `{"status":"queued"}` {
			t.Fatalf("export = %d %s", rr.Code, rr.Body.String())
		}
		if len(pub.msgs) != 1 {
			t.Fatalf("published %d messages", len(pub.msgs))
		}
		msg := pub.msgs[0]
		if msg.Filter != (query.Filter{Category: "Food"}) || msg.Sheet != "Food" || msg.RequestID != "req_test" {
			t.Fatalf("message = %+v", msg)
		}
	})

	t.Run("invalid sheet", func(t *testing.T) {
		srv := newTestServer(t, nil, Config{}, services.WithPublisher(&fakePublisher{}))
		rr := do(t, srv, http.MethodPost, "/api/expenses/export/sheets?sheet=a%21b", "")
		if rr.Code != http.StatusBadRequest || !strings.Contains(rr.Body.String(), services.MsgInvalidSheet) {
			t.Fatalf("export = %d %s", rr.Code, rr.Body.String())
		}
	})
}

var errDown = errors.New("database is down")

type brokenStore struct {
	storage.Store
}

func (brokenStore) Insert(context.Context, core.Expense) (core.Expense, error) {
	return core.Expense{}, errDown
}

func (brokenStore) Query(context.Context, query.Predicate, query.Ordering) ([]core.Expense, error) {
	return nil, errDown
}

func (brokenStore) Ping(context.Context) error { return errDown }

func (brokenStore) Close() error { return nil }

func TestStoreFailureIsOpaque(t *testing.T) {
	srv := newTestServer(t, brokenStore{}, Config{})

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodPost, "/api/expenses", lunch},
		{http.MethodGet, "/api/expenses", ""},
		{http.MethodGet, "/api/expenses/export/csv", ""},
	} {
		rr := do(t, srv, tc.method, tc.path, tc.body)
		if rr.Code != http.StatusInternalServerError || rr.Body.String() != `{"error":"Internal server error"}` {
			t.Fatalf("%s %s = %d %s", tc.method, tc.path, rr.Code, rr.Body.String())
		}
		if strings.Contains(rr.Body.String(), errDown.Error()) {
			t.Fatalf("store error leaked to client")
		}
	}

	if rr := do(t, srv, http.MethodGet, "/readyz", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status=%d", rr.Code)
	}
}

func TestMiddlewareChain(t *testing.T) {
	srv := newTestServer(t, nil, Config{CORSAllowedOrigin: "https://app.example.com"})

	req := httptest.NewRequest(http.MethodOptions, "/api/expenses", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("preflight status=%d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "https://app.example.com" {
		t.Errorf("allow origin = %q", rr.Header().Get("Access-Control-Allow-Origin"))
	}
	if !strings.Contains(rr.Header().Get("Access-Control-Allow-Methods"), http.MethodDelete) {
		t.Errorf("allow methods = %q", rr.Header().Get("Access-Control-Allow-Methods"))
	}

	req = httptest.NewRequest(http.MethodGet, "/api/expenses", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rr = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Errorf("unlisted origin must not be allowed")
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("security headers missing")
	}
	if !strings.HasPrefix(rr.Header().Get("X-Request-ID"), "req_") {
		t.Errorf("request id header = %q", rr.Header().Get("X-Request-ID"))
	}
}

func TestRateLimitOnWrites(t *testing.T) {
	srv := newTestServer(t, nil, Config{RateLimitPerMinute: 2})

	for i := 0; i < 2; i++ {
		if rr := do(t, srv, http.MethodPost, "/api/expenses", lunch); rr.Code != http.StatusCreated {
			t.Fatalf("write %d status=%d", i, rr.Code)
		}
	}
	rr := do(t, srv, http.MethodPost, "/api/expenses", lunch)
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") != "60" {
		t.Fatalf("third write = %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/api/expenses", ""); rr.Code != http.StatusOK {
		t.Fatalf("reads are not limited, got %d", rr.Code)
	}
	if srv.Metrics().RateLimitHits != 1 {
		t.Fatalf("metrics = %+v", srv.Metrics())
	}
}

func TestNewServer_BadTrustedProxy(t *testing.T) {
	_, err := NewServer(Config{TrustedProxies: []string{"bogus"}}, services.NewExpenseService(memory.New()), testLogger())
	if err == nil {
		t.Fatal("expected error")
	}
}
