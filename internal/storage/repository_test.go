package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"notimo/internal/core"
	"notimo/internal/log"
	"notimo/internal/source"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	clock := func() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) }
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "db", "notimo.db"),
		WithLocation(time.UTC), WithLogger(log.Discard()), WithClock(clock))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestMigrationsSeedDefaultCategories(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	all, err := repo.ListCategories(ctx, "")
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	if len(all) != len(source.DefaultCategories()) {
		t.Fatalf("expected %d default categories, got %d", len(source.DefaultCategories()), len(all))
	}
	income, err := repo.ListCategories(ctx, core.Income)
	if err != nil {
		t.Fatalf("list income categories: %v", err)
	}
	for _, c := range income {
		if c.Type != core.Income || !c.Predefined {
			t.Fatalf("unexpected income category %+v", c)
		}
	}
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notimo.db")
	first, err := RunMigrations(path)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := RunMigrations(path)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if first != second || first != 2 {
		t.Fatalf("expected schema version 2 twice, got %d and %d", first, second)
	}
}

func TestCreateListDeleteTransaction(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	draft := core.Draft{
		Position:   core.Expense,
		Module:     core.Budget,
		CategoryID: "2",
		Comment:    "mars",
		LineItems: []core.LineItem{
			{Name: "taxi", Amount: core.ParseAmount("1500")},
			{Name: "bus", Amount: core.ParseAmount("250,5"), Date: core.NewDate(2024, 3, 2)},
		},
	}
	created, err := repo.CreateTransaction(ctx, draft)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.LocalID == nil || *created.LocalID != 1 {
		t.Fatalf("expected local id 1, got %v", created.LocalID)
	}
	if created.Status != core.StatusValidated {
		t.Fatalf("expected validated status, got %q", created.Status)
	}

	if _, err := repo.CreateTransaction(ctx, draft); err != nil {
		t.Fatalf("second create: %v", err)
	}

	budget, err := repo.ListTransactions(ctx, core.Budget)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(budget) != 2 || budget[0].ID != created.ID || *budget[1].LocalID != 2 {
		t.Fatalf("unexpected listing %+v", budget)
	}
	got := budget[0]
	if got.CategoryName() != "Transport" {
		t.Fatalf("category lost: %q", got.CategoryName())
	}
	amount, diags := got.EffectiveAmount()
	if len(diags) != 0 || amount.String() != "1750.5" {
		t.Fatalf("expected 1750.5, got %s (%v)", amount, diags)
	}
	if !got.LineItems[0].Date.Equal(created.CreatedAt.Time) {
		t.Fatalf("line without date should take the creation date, got %v", got.LineItems[0].Date)
	}
	if !got.LineItems[1].Date.Equal(time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("line date lost: %v", got.LineItems[1].Date)
	}

	tracking, err := repo.ListTransactions(ctx, core.Tracking)
	if err != nil {
		t.Fatalf("list tracking: %v", err)
	}
	if len(tracking) != 0 {
		t.Fatalf("expected no tracking transactions, got %d", len(tracking))
	}

	if err := repo.DeleteTransaction(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.DeleteTransaction(ctx, created.ID); !errors.Is(err, source.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if n, _ := repo.Count(ctx); n != 1 {
		t.Fatalf("expected 1 transaction left, got %d", n)
	}
}

func TestCreateTransactionRejectsUnknownCategory(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.CreateTransaction(context.Background(), core.Draft{
		Position:   core.Income,
		Module:     core.Tracking,
		CategoryID: "999",
		LineItems:  []core.LineItem{{Name: "x", Amount: core.AmountFromInt(1)}},
	})
	if !errors.Is(err, source.ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
}

func TestImportKeepsMalformedAmounts(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	zero := int64(0)
	txs := []core.Transaction{
		{ID: "seed", LocalID: &zero, Position: core.Income, Module: core.Tracking, FlatAmount: core.AmountFromInt(0)},
		{ID: "bad", Position: core.Expense, Module: core.Tracking, Category: core.NamedCategory("Loisirs"),
			LineItems: []core.LineItem{{Name: "cinema", Amount: core.ParseAmount("abc")}}},
		{ID: "flat", Position: core.Expense, Module: core.Tracking},
	}
	added, err := repo.Import(ctx, txs)
	if err != nil || added != 3 {
		t.Fatalf("import: added=%d err=%v", added, err)
	}
	again, err := repo.Import(ctx, txs)
	if err != nil || again != 0 {
		t.Fatalf("re-import should add nothing: added=%d err=%v", again, err)
	}

	got, err := repo.ListTransactions(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 || !got[0].IsSeed() {
		t.Fatalf("unexpected listing %+v", got)
	}
	if got[1].CategoryName() != "Loisirs" {
		t.Fatalf("named category lost: %q", got[1].CategoryName())
	}
	if _, diags := got[1].EffectiveAmount(); len(diags) != 1 || diags[0].Raw != "abc" {
		t.Fatalf("expected the raw malformed amount back, got %v", diags)
	}
	if _, diags := got[2].EffectiveAmount(); len(diags) != 1 || !errors.Is(diags[0].Err, core.ErrMissingAmount) {
		t.Fatalf("expected a missing amount, got %v", diags)
	}
	if !got[2].CreatedAt.IsEmpty() {
		t.Fatalf("expected empty created_at")
	}
}

func TestCreateCategory(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	c, err := repo.CreateCategory(ctx, core.Category{Name: "  Cadeaux ", Type: core.Income})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.ID != "9" || c.Name != "Cadeaux" || c.Icon != core.DefaultIncomeIcon {
		t.Fatalf("unexpected category %+v", c)
	}

	dup, err := repo.CreateCategory(ctx, core.Category{Name: "cadeaux", Type: core.Income})
	if err != nil || dup.ID != c.ID {
		t.Fatalf("expected the existing category, got %+v (%v)", dup, err)
	}

	if _, err := repo.CreateCategory(ctx, core.Category{Name: "", Type: core.Income}); !errors.Is(err, core.ErrEmptyCategory) {
		t.Fatalf("expected ErrEmptyCategory, got %v", err)
	}

	income, _ := repo.ListCategories(ctx, core.Income)
	if income[len(income)-1].Name != "Cadeaux" {
		t.Fatalf("new category not listable: %+v", income)
	}
}
