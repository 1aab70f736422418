// Package http provides the JSON API over the ledger service.
//
// This file turns query strings and request bodies into filter states,
// drafts and categories.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"notimo/internal/core"
	"notimo/internal/ledger"
	"notimo/internal/wire"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

var (
	errBadRequest = errors.New("bad request")
	errNoRoute    = errors.New("not found")
)

// badRequest wraps a parsing failure so that it maps to 400.
func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// FilterRequest is the client's description of a filter state, read from
// the view query string or the filter endpoint body.
type FilterRequest struct {
	Period   string   `json:"period,omitempty"`
	Month    string   `json:"month,omitempty"` // YYYY-MM
	Dates    []string `json:"dates,omitempty"` // YYYY-MM-DD
	Category string   `json:"category,omitempty"`
	Label    string   `json:"label,omitempty"`
}

// IsEmpty reports whether the request names no filter at all.
func (fr FilterRequest) IsEmpty() bool {
	return fr.Period == "" && fr.Month == "" && len(fr.Dates) == 0 &&
		fr.Category == "" && fr.Label == ""
}

// State builds the filter state. Without an explicit period, a month
// selects the month period, dates select the custom period and anything
// else shows all transactions.
func (fr FilterRequest) State() (ledger.FilterState, error) {
	period, err := ledger.ParsePeriod(fr.Period)
	if err != nil {
		return ledger.FilterState{}, badRequest("%v", err)
	}
	if fr.Category != "" && fr.Label != "" {
		return ledger.FilterState{}, badRequest("category and label are mutually exclusive")
	}

	var f ledger.FilterState
	if fr.Month != "" {
		k, err := ledger.ParseMonthKey(fr.Month)
		if err != nil {
			return ledger.FilterState{}, badRequest("%v", err)
		}
		f = f.SelectMonth(k)
	}

	seen := make(map[string]bool, len(fr.Dates))
	for _, d := range fr.Dates {
		d = strings.TrimSpace(d)
		if d == "" || seen[d] {
			continue
		}
		if _, err := time.Parse(time.DateOnly, d); err != nil {
			return ledger.FilterState{}, badRequest("invalid date %q: want YYYY-MM-DD", d)
		}
		seen[d] = true
		f = f.ToggleDate(d)
	}

	switch {
	case fr.Period != "":
		f = f.WithPeriod(period)
	case fr.Month != "" && len(seen) > 0:
		f = f.WithPeriod(ledger.PeriodMonth)
	case fr.Month == "" && len(seen) == 0:
		f = f.WithPeriod(ledger.PeriodAll)
	}

	if name := strings.TrimSpace(fr.Category); name != "" {
		f = f.ToggleCategory(name)
	}
	if name := strings.TrimSpace(fr.Label); name != "" {
		f = f.ToggleLabel(name)
	}
	return f, nil
}

// ParseFilterQuery reads period, month (YYYY-MM, or a month number with
// year), dates (comma separated or repeated), category and label.
func ParseFilterQuery(q url.Values) (FilterRequest, error) {
	fr := FilterRequest{
		Period:   strings.TrimSpace(q.Get("period")),
		Category: sanitizeInput(q.Get("category")),
		Label:    sanitizeInput(q.Get("label")),
	}

	month := strings.TrimSpace(q.Get("month"))
	if year := strings.TrimSpace(q.Get("year")); year != "" && month != "" && !strings.Contains(month, "-") {
		y, err := strconv.Atoi(year)
		if err != nil {
			return FilterRequest{}, badRequest("invalid year %q", year)
		}
		m, err := strconv.Atoi(month)
		if err != nil || m < 1 || m > 12 {
			return FilterRequest{}, badRequest("invalid month %q", month)
		}
		month = core.MonthKey{Year: y, Month: m}.String()
	}
	fr.Month = month

	for _, v := range q["dates"] {
		for _, d := range strings.Split(v, ",") {
			if d = strings.TrimSpace(d); d != "" {
				fr.Dates = append(fr.Dates, d)
			}
		}
	}
	return fr, nil
}

// decodeJSON reads a bounded JSON body into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("empty body")
		}
		return fmt.Errorf("%w: malformed JSON: %w", errBadRequest, err)
	}
	return nil
}

// readDraft decodes a creation payload in the backend shape
// (position, categorie_id, volet, libelles).
func readDraft(w http.ResponseWriter, r *http.Request, loc *time.Location) (core.Draft, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return core.Draft{}, fmt.Errorf("%w: read body: %w", errBadRequest, err)
	}
	d, err := wire.DecodeDraft(data, loc)
	if err != nil {
		if errors.Is(err, core.ErrInvalidPosition) || errors.Is(err, core.ErrInvalidModule) {
			return core.Draft{}, err
		}
		return core.Draft{}, badRequest("%v", err)
	}
	d.Comment = sanitizeInput(d.Comment)
	for i := range d.LineItems {
		d.LineItems[i].Name = sanitizeInput(d.LineItems[i].Name)
		d.LineItems[i].Comment = sanitizeInput(d.LineItems[i].Comment)
	}
	return d, nil
}

// readCategory decodes a category object in either key spelling.
func readCategory(w http.ResponseWriter, r *http.Request) (core.Category, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return core.Category{}, fmt.Errorf("%w: read body: %w", errBadRequest, err)
	}
	c, err := wire.DecodeCategory(data)
	if err != nil {
		return core.Category{}, badRequest("%v", err)
	}
	c.ID = ""
	c.Name = sanitizeInput(c.Name)
	return c, nil
}

// parseModule reads the {module} path value; an unknown module is a
// missing resource.
func parseModule(r *http.Request) (core.Module, error) {
	m, err := core.ParseModule(r.PathValue("module"))
	if err != nil {
		return "", fmt.Errorf("%w: unknown module %q", errNoRoute, r.PathValue("module"))
	}
	return m, nil
}

// sanitizeInput removes control characters except tab, newline and
// carriage return, and trims whitespace.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
