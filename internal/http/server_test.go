package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notimo/internal/core"
	"notimo/internal/ledger"
	"notimo/internal/log"
	"notimo/internal/middleware/ratelimit"
	"notimo/internal/services"
	"notimo/internal/source"
	"notimo/internal/source/memory"
)

var now = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func seedTransactions() []core.Transaction {
	day := func(m time.Month, d int) core.Date {
		return core.Date{Time: time.Date(2024, m, d, 9, 0, 0, 0, time.UTC)}
	}
	return []core.Transaction{
		{ID: "a", Position: core.Income, Module: core.Tracking, Category: core.NamedCategory("Salaire"),
			FlatAmount: core.AmountFromInt(2000), CreatedAt: day(time.March, 1), Status: core.StatusValidated},
		{ID: "b", Position: core.Expense, Module: core.Tracking, Category: core.NamedCategory("Transport"),
			LineItems: []core.LineItem{{Name: "taxi", Amount: core.AmountFromInt(1500)}},
			CreatedAt: day(time.March, 15), Status: core.StatusValidated},
		{ID: "c", Position: core.Expense, Module: core.Tracking, Category: core.NamedCategory("Loisirs"),
			FlatAmount: core.AmountFromInt(300), CreatedAt: day(time.February, 10), Status: core.StatusValidated},
		{ID: "d", Position: core.Expense, Module: core.Budget, Category: core.NamedCategory("Logement"),
			FlatAmount: core.AmountFromInt(5000), CreatedAt: day(time.March, 2), Status: core.StatusValidated},
	}
}

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	store := memory.New(seedTransactions(), source.DefaultCategories(),
		memory.WithClock(func() time.Time { return now }))
	svc := services.NewTransactionService(store, nil, services.Config{
		Options: ledger.Options{Now: func() time.Time { return now }, Location: time.UTC},
		Logger:  log.Discard(),
	})
	require.NoError(t, svc.RefreshAll(context.Background()))

	opts.Logger = log.Discard()
	opts.Location = time.UTC
	srv := NewServer(":0", svc, opts)
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
		_ = svc.Close()
	})
	return srv
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decodeView(t *testing.T, rr *httptest.ResponseRecorder) ViewResponse {
	t.Helper()
	var v ViewResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func assertDecimal(t *testing.T, want int64, got string) {
	t.Helper()
	d, err := decimal.NewFromString(got)
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.NewFromInt(want)), "want %d, got %s", want, got)
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, Options{})
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}

	failing := newTestServer(t, Options{Ready: func(context.Context) error { return errors.New("db locked") }})
	rr := do(t, failing, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "db locked")
}

func TestView(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodGet, "/api/tracking/view", "")
	require.Equal(t, http.StatusOK, rr.Code)
	v := decodeView(t, rr)
	assert.Equal(t, "tracking", v.Module)
	assert.Equal(t, 3, v.Count)
	assertDecimal(t, 2000, v.Totals.Income)
	assertDecimal(t, 1800, v.Totals.Expense)
	assertDecimal(t, 200, v.Totals.Balance)
	require.Len(t, v.Transactions, 3)
	assert.Equal(t, "b", v.Transactions[0].ID, "newest first")
	require.NotEmpty(t, v.ByCategory)
	assert.Equal(t, "Salaire", v.ByCategory[0].Name)

	suivi := decodeView(t, do(t, srv, http.MethodGet, "/api/suivi/view", ""))
	assert.Equal(t, "tracking", suivi.Module, "backend spellings are accepted")
}

func TestViewPreviewDoesNotChangeState(t *testing.T) {
	srv := newTestServer(t, Options{})

	v := decodeView(t, do(t, srv, http.MethodGet, "/api/tracking/view?month=2024-03", ""))
	assert.Equal(t, 2, v.Count)
	assert.Equal(t, "month", v.Filter.Period)
	assert.Equal(t, "2024-03", v.Filter.Month)

	v = decodeView(t, do(t, srv, http.MethodGet, "/api/tracking/view?year=2024&month=2", ""))
	assert.Equal(t, 1, v.Count)

	v = decodeView(t, do(t, srv, http.MethodGet, "/api/tracking/view?label=taxi", ""))
	require.Equal(t, 1, v.Count)
	assert.Equal(t, "label", v.Filter.Drill)

	v = decodeView(t, do(t, srv, http.MethodGet, "/api/tracking/view", ""))
	assert.Equal(t, 3, v.Count, "previews must not change the module filter")
}

func TestViewErrors(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodGet, "/api/tracking/view?period=week", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, srv, http.MethodGet, "/api/archive/view", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	var e ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &e))
	assert.Contains(t, e.Error, "archive")
	assert.NotEmpty(t, e.RequestID)
	assert.Equal(t, e.RequestID, rr.Header().Get("X-Request-ID"))
}

func TestSetFilter(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodPost, "/api/tracking/filter", `{"period":"month","month":"2024-02"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, 1, decodeView(t, rr).Count)

	v := decodeView(t, do(t, srv, http.MethodGet, "/api/tracking/view", ""))
	assert.Equal(t, 1, v.Count, "the filter is kept")
	assert.Equal(t, "month|m=2024-02", v.Filter.Key)

	rr = do(t, srv, http.MethodPost, "/api/tracking/filter", `{"period":"all","sort":"asc"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code, "unknown fields are rejected")

	rr = do(t, srv, http.MethodPost, "/api/tracking/filter", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMonthsAndLabels(t *testing.T) {
	srv := newTestServer(t, Options{})

	var months []MonthResponse
	rr := do(t, srv, http.MethodGet, "/api/tracking/months", "")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &months))
	require.Len(t, months, 2)
	assert.Equal(t, MonthResponse{Key: "2024-03", Label: "mars 2024"}, months[0])
	assert.Equal(t, "2024-02", months[1].Key)

	var labels []string
	rr = do(t, srv, http.MethodGet, "/api/tracking/labels", "")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &labels))
	assert.Equal(t, []string{"taxi"}, labels)

	rr = do(t, srv, http.MethodGet, "/api/budget/labels", "")
	assert.Equal(t, "[]\n", rr.Body.String())
}

func TestCreateTransaction(t *testing.T) {
	srv := newTestServer(t, Options{})

	body := `{"position":"depense","volet":"suivi","categorie_id":"2",
		"libelles":[{"nom":"bus","montant":"250","date":"2024-03-15"}]}`
	rr := do(t, srv, http.MethodPost, "/api/transactions", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var created CreatedResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.NotEmpty(t, created.Transaction.ID)
	assert.Equal(t, "/api/tracking/transactions/"+created.Transaction.ID, rr.Header().Get("Location"))
	assert.Equal(t, 4, created.View.Count)
	assertDecimal(t, -50, created.View.Totals.Balance)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"no line items", `{"position":"depense","volet":"suivi","categorie_id":"2","libelles":[]}`, http.StatusUnprocessableEntity},
		{"unknown category", `{"position":"depense","volet":"suivi","categorie_id":"99","libelles":[{"nom":"x","montant":1}]}`, http.StatusUnprocessableEntity},
		{"bad amount", `{"position":"depense","volet":"suivi","categorie_id":"2","libelles":[{"nom":"x","montant":"abc"}]}`, http.StatusUnprocessableEntity},
		{"missing module", `{"position":"depense","categorie_id":"2","libelles":[{"nom":"x","montant":1}]}`, http.StatusUnprocessableEntity},
		{"not json", `[1,2`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/api/transactions", tt.body)
			assert.Equal(t, tt.code, rr.Code, rr.Body.String())
		})
	}
}

func TestDeleteTransaction(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodDelete, "/api/tracking/transactions/b", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	v := decodeView(t, rr)
	assert.Equal(t, 2, v.Count)
	assertDecimal(t, 1700, v.Totals.Balance)

	rr = do(t, srv, http.MethodDelete, "/api/tracking/transactions/b", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, srv, http.MethodGet, "/api/tracking/transactions/b", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestDeleteTransactionOfAnotherModule(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodDelete, "/api/budget/transactions/a", "")
	assert.Equal(t, http.StatusNotFound, rr.Code, rr.Body.String())

	v := decodeView(t, do(t, srv, http.MethodGet, "/api/tracking/view", ""))
	assert.Equal(t, 3, v.Count)
	assertDecimal(t, 2000, v.Totals.Income)

	rr = do(t, srv, http.MethodDelete, "/api/tracking/transactions/a", "")
	assert.Equal(t, http.StatusOK, rr.Code, "the owning module can still delete it")
}

func TestOversizedBody(t *testing.T) {
	srv := newTestServer(t, Options{})
	huge := `{"period":"` + strings.Repeat("x", maxBodyBytes+1) + `"}`

	for _, target := range []string{"/api/transactions", "/api/tracking/filter", "/api/categories"} {
		rr := do(t, srv, http.MethodPost, target, huge)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code, target)
	}
}

func TestRefresh(t *testing.T) {
	srv := newTestServer(t, Options{})
	rr := do(t, srv, http.MethodPost, "/api/budget/refresh", "")
	require.Equal(t, http.StatusOK, rr.Code)
	v := decodeView(t, rr)
	assert.Equal(t, 1, v.Count)
	assertDecimal(t, -5000, v.Totals.Balance)
}

func TestCategories(t *testing.T) {
	srv := newTestServer(t, Options{})

	var cats []map[string]any
	rr := do(t, srv, http.MethodGet, "/api/categories?position=revenu", "")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &cats))
	require.Len(t, cats, 3)
	for _, c := range cats {
		assert.Equal(t, "revenu", c["type_categorie"])
	}

	rr = do(t, srv, http.MethodPost, "/api/categories", `{"nom":"Cadeaux","type_categorie":"revenu"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, "Cadeaux", created["nom"])
	assert.NotEmpty(t, created["id"])

	rr = do(t, srv, http.MethodGet, "/api/categories?position=income", "")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &cats))
	assert.Len(t, cats, 4, "new categories are listable right away")

	rr = do(t, srv, http.MethodPost, "/api/categories", `{"nom":" ","type_categorie":"revenu"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = do(t, srv, http.MethodGet, "/api/categories?position=loan", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestMiddlewareStack(t *testing.T) {
	srv := newTestServer(t, Options{RateLimit: ratelimit.Config{Requests: 1}})

	rr := do(t, srv, http.MethodGet, "/api/tracking/view", "")
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))

	rr = do(t, srv, http.MethodPost, "/api/tracking/refresh", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = do(t, srv, http.MethodPost, "/api/tracking/refresh", "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Contains(t, rr.Body.String(), "rate limit")

	rr = do(t, srv, http.MethodGet, "/api/tracking/view", "")
	assert.Equal(t, http.StatusOK, rr.Code, "reads are never limited")

	rr = do(t, srv, http.MethodTrace, "/api/tracking/view", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
