package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"notimo/internal/core"
	"notimo/internal/ledger"
	"notimo/internal/log"
	"notimo/internal/middleware/trace"
	"notimo/internal/services"
	"notimo/internal/source"
	"notimo/internal/source/remote"
	"notimo/internal/wire"
)

// TotalsResponse carries exact decimal strings and their display form.
type TotalsResponse struct {
	Income         string `json:"income"`
	Expense        string `json:"expense"`
	Balance        string `json:"balance"`
	IncomeDisplay  string `json:"income_display"`
	ExpenseDisplay string `json:"expense_display"`
	BalanceDisplay string `json:"balance_display"`
}

type FilterResponse struct {
	Period string   `json:"period"`
	Month  string   `json:"month,omitempty"`
	Dates  []string `json:"dates,omitempty"`
	Drill  string   `json:"drill,omitempty"`
	Value  string   `json:"value,omitempty"`
	Key    string   `json:"key"`
}

type CategoryAmountResponse struct {
	Name     string `json:"name"`
	Position string `json:"position"`
	Amount   string `json:"amount"`
	Count    int    `json:"count"`
}

// ViewResponse is the JSON rendering of a ledger view.
type ViewResponse struct {
	Module       string                    `json:"module"`
	Filter       FilterResponse            `json:"filter"`
	Totals       TotalsResponse            `json:"totals"`
	Count        int                       `json:"count"`
	Transactions []wire.TransactionPayload `json:"transactions"`
	ByCategory   []CategoryAmountResponse  `json:"by_category"`
	Diagnostics  []string                  `json:"diagnostics,omitempty"`
}

type MonthResponse struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

type CreatedResponse struct {
	Transaction wire.TransactionPayload `json:"transaction"`
	View        ViewResponse            `json:"view"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func NewTotalsResponse(t core.Totals) TotalsResponse {
	return TotalsResponse{
		Income:         t.Income.String(),
		Expense:        t.Expense.String(),
		Balance:        t.Balance.String(),
		IncomeDisplay:  core.FormatAmount(t.Income),
		ExpenseDisplay: core.FormatAmount(t.Expense),
		BalanceDisplay: core.FormatAmount(t.Balance),
	}
}

func NewFilterResponse(f ledger.FilterState) FilterResponse {
	out := FilterResponse{
		Period: string(f.Period()),
		Dates:  f.Dates(),
		Key:    f.Key(),
	}
	if k, ok := f.Month(); ok {
		out.Month = k.String()
	}
	if d, v := f.Drill(); d != ledger.DrillNone {
		out.Drill = d.String()
		out.Value = v
	}
	if len(out.Dates) == 0 {
		out.Dates = nil
	}
	return out
}

// NewViewResponse renders v. The category breakdown covers the visible
// transactions only.
func NewViewResponse(v ledger.View) ViewResponse {
	var agg ledger.Aggregator
	out := ViewResponse{
		Module:       string(v.Module),
		Filter:       NewFilterResponse(v.Filter),
		Totals:       NewTotalsResponse(v.Totals),
		Count:        len(v.Visible),
		Transactions: wire.EncodeTransactions(v.Visible),
		ByCategory:   []CategoryAmountResponse{},
	}
	for _, ca := range agg.ByCategory(v.Visible) {
		out.ByCategory = append(out.ByCategory, CategoryAmountResponse{
			Name:     ca.Name,
			Position: string(ca.Position),
			Amount:   ca.Amount.String(),
			Count:    ca.Count,
		})
	}
	for _, d := range v.Diagnostics {
		out.Diagnostics = append(out.Diagnostics, d.Error())
	}
	return out
}

func NewMonthsResponse(months []ledger.MonthOption) []MonthResponse {
	out := make([]MonthResponse, len(months))
	for i, m := range months {
		out[i] = MonthResponse{Key: m.MonthKey.String(), Label: m.Label}
	}
	return out
}

func NewCategoriesResponse(cats []core.Category) []wire.CategoryPayload {
	out := make([]wire.CategoryPayload, len(cats))
	for i, c := range cats {
		out[i] = wire.EncodeCategory(c)
	}
	return out
}

// writeJSON writes v with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to encode response", log.FieldError, err)
	}
}

// writeError maps err to a status and writes it as JSON. Server errors
// are logged with their cause and reported generically.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldError, err)
		msg = http.StatusText(status)
	}
	writeJSON(w, r, status, ErrorResponse{Error: msg, RequestID: trace.GetRequestID(r.Context())})
}

func errorStatus(err error) int {
	var apiErr *remote.APIError
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, source.ErrNotFound), errors.Is(err, errNoRoute):
		return http.StatusNotFound
	case errors.Is(err, source.ErrUnknownCategory), services.IsValidation(err):
		return http.StatusUnprocessableEntity
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// healthResponse is returned by /healthz and /readyz.
type healthResponse struct {
	Status string    `json:"status"`
	Error  string    `json:"error,omitempty"`
	Time   time.Time `json:"time"`
}
