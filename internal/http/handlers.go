package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"notimo/internal/core"
	"notimo/internal/log"
	"notimo/internal/wire"
)

const readyTimeout = 3 * time.Second

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, healthResponse{Status: "ok", Time: time.Now()})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err)
			writeJSON(w, r, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Error: err.Error(), Time: time.Now()})
			return
		}
	}
	writeJSON(w, r, http.StatusOK, healthResponse{Status: "ready", Time: time.Now()})
}

// handleView returns the module's current view, or a preview of the filter
// named in the query string. Previews leave the module's filter untouched.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	module, err := parseModule(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	fr, err := ParseFilterQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}

	if fr.IsEmpty() {
		v, err := s.svc.View(module)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, NewViewResponse(v))
		return
	}

	f, err := fr.State()
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := s.svc.Preview(module, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, NewViewResponse(v))
}

// handleSetFilter replaces the module's filter state.
func (s *Server) handleSetFilter(w http.ResponseWriter, r *http.Request) {
	module, err := parseModule(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var fr FilterRequest
	if err := decodeJSON(w, r, &fr); err != nil {
		writeError(w, r, err)
		return
	}
	f, err := fr.State()
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := s.svc.SetFilter(module, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).DebugContext(r.Context(), "Filter updated",
		log.FieldModule, string(module), "filter", f.Key())
	writeJSON(w, r, http.StatusOK, NewViewResponse(v))
}

func (s *Server) handleMonths(w http.ResponseWriter, r *http.Request) {
	module, err := parseModule(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	months, err := s.svc.Months(module)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, NewMonthsResponse(months))
}

func (s *Server) handleLabels(w http.ResponseWriter, r *http.Request) {
	module, err := parseModule(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	labels, err := s.svc.Labels(module)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if labels == nil {
		labels = []string{}
	}
	writeJSON(w, r, http.StatusOK, labels)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	module, err := parseModule(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := s.svc.Refresh(r.Context(), module)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, NewViewResponse(v))
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	d, err := readDraft(w, r, s.loc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	tx, v, err := s.svc.Create(r.Context(), d)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/"+string(tx.Module)+"/transactions/"+tx.ID)
	writeJSON(w, r, http.StatusCreated, CreatedResponse{
		Transaction: wire.EncodeTransaction(tx),
		View:        NewViewResponse(v),
	})
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	module, err := parseModule(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, r, badRequest("missing transaction id"))
		return
	}
	v, err := s.svc.Delete(r.Context(), module, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction deleted",
		log.FieldTransactionID, id, log.FieldModule, string(module))
	writeJSON(w, r, http.StatusOK, NewViewResponse(v))
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	var position core.Position
	if raw := strings.TrimSpace(r.URL.Query().Get("position")); raw != "" {
		p, err := core.ParsePosition(raw)
		if err != nil {
			writeError(w, r, err)
			return
		}
		position = p
	}
	cats, err := s.svc.ListCategories(r.Context(), position)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, NewCategoriesResponse(cats))
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	c, err := readCategory(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.svc.CreateCategory(r.Context(), c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, wire.EncodeCategory(created))
}
