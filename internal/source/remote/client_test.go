package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"notimo/internal/core"
	"notimo/internal/log"
	"notimo/internal/source"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL + "/api", Token: "tok", Location: time.UTC, Logger: log.Discard()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestListTransactions(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/transactions/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("unexpected auth header %q", got)
		}
		if got := r.URL.Query().Get("volet"); got != "budget" {
			t.Errorf("unexpected volet %q", got)
		}
		_, _ = io.WriteString(w, `[
		  {"id": 1, "type": "depense", "volet": "budget", "montant": 10},
		  {"id": 2, "type": "depense", "volet": "suivi", "montant": 20}
		]`)
	})

	txs, err := c.ListTransactions(context.Background(), core.Budget)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 1 || txs[0].ID != "1" {
		t.Fatalf("expected only the budget transaction, got %+v", txs)
	}
}

func TestCreateTransactionSendsDraftPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/transactions/" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["position"] != "depense" || body["volet"] != "suivi" || body["categorie_id"] != "2" {
			t.Errorf("unexpected payload %v", body)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id": 99, "type": "depense", "volet": "suivi",
		  "categorie_detail": {"id": 2, "nom": "Transport"},
		  "libelles": [{"nom": "taxi", "montant": "1500"}], "created_at": "2024-03-15T08:00:00Z"}`)
	})

	tx, err := c.CreateTransaction(context.Background(), core.Draft{
		Position:   core.Expense,
		Module:     core.Tracking,
		CategoryID: "2",
		LineItems:  []core.LineItem{{Name: "taxi", Amount: core.AmountFromInt(1500)}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if tx.ID != "99" || tx.CategoryName() != "Transport" {
		t.Fatalf("unexpected transaction %+v", tx)
	}
}

func TestCreateTransactionValidatesLocally(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("backend should not be called")
	})
	_, err := c.CreateTransaction(context.Background(), core.Draft{Position: core.Expense, Module: core.Tracking, CategoryID: "1"})
	if !errors.Is(err, core.ErrNoLineItems) {
		t.Fatalf("expected ErrNoLineItems, got %v", err)
	}
}

func TestDeleteTransaction(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/transactions/7/":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	if err := c.DeleteTransaction(context.Background(), "7"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := c.DeleteTransaction(context.Background(), "8"); !errors.Is(err, source.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAPIErrorCarriesStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail": "token expired"}`, http.StatusUnauthorized)
	})

	_, err := c.ListTransactions(context.Background(), core.Tracking)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected status %d", apiErr.StatusCode)
	}
}

func TestCategories(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			if got := r.URL.Query().Get("type_categorie"); got != "revenu" {
				t.Errorf("unexpected type_categorie %q", got)
			}
			_, _ = io.WriteString(w, `[{"id": 6, "nom": "Salaire", "type_categorie": "revenu"}, "Prime"]`)
		case http.MethodPost:
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["icone"] != core.DefaultIncomeIcon {
				t.Errorf("default icon not sent: %v", body)
			}
			_, _ = io.WriteString(w, `{"id": 12, "nom": "Cadeaux"}`)
		}
	})

	cats, err := c.ListCategories(context.Background(), core.Income)
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	if len(cats) != 2 || cats[1].Name != "Prime" || cats[1].Type != core.Income {
		t.Fatalf("unexpected categories %+v", cats)
	}

	created, err := c.CreateCategory(context.Background(), core.Category{Name: "Cadeaux", Type: core.Income})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	if created.ID != "12" || created.Type != core.Income || created.Color != core.DefaultIncomeColor {
		t.Fatalf("unexpected category %+v", created)
	}
}
