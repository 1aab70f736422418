// Package source declares the ports through which the ledger reads and
// writes transactions and categories. Adapters live in subpackages.
package source

import (
	"context"
	"errors"

	"notimo/internal/core"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUnknownCategory = errors.New("unknown category")
)

// Ports for outbound adapters.
type (
	TransactionLister interface {
		// ListTransactions returns every transaction of the module.
		ListTransactions(ctx context.Context, module core.Module) ([]core.Transaction, error)
	}

	TransactionWriter interface {
		// CreateTransaction persists a validated draft and returns the
		// stored transaction.
		CreateTransaction(ctx context.Context, d core.Draft) (core.Transaction, error)
	}

	TransactionDeleter interface {
		DeleteTransaction(ctx context.Context, id string) error
	}

	CategoryReader interface {
		// ListCategories returns the categories of one position, or all of
		// them when position is empty.
		ListCategories(ctx context.Context, position core.Position) ([]core.Category, error)
	}

	CategoryWriter interface {
		CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	}

	// Backend is implemented by every adapter.
	Backend interface {
		TransactionLister
		TransactionWriter
		TransactionDeleter
		CategoryReader
		CategoryWriter
	}
)

// DefaultCategories are the predefined categories offered when a backend
// starts empty.
func DefaultCategories() []core.Category {
	mk := func(id, name string, p core.Position) core.Category {
		return core.Category{ID: id, Name: name, Type: p, Predefined: true}.WithDefaults()
	}
	return []core.Category{
		mk("1", "Alimentation", core.Expense),
		mk("2", "Transport", core.Expense),
		mk("3", "Logement", core.Expense),
		mk("4", "Loisirs", core.Expense),
		mk("5", "Santé", core.Expense),
		mk("6", "Salaire", core.Income),
		mk("7", "Prime", core.Income),
		mk("8", "Autres revenus", core.Income),
	}
}

// FilterCategories keeps the categories of one position; an empty position
// keeps all.
func FilterCategories(cats []core.Category, position core.Position) []core.Category {
	out := make([]core.Category, 0, len(cats))
	for _, c := range cats {
		if position == "" || c.Type == position {
			out = append(out, c)
		}
	}
	return out
}

// BuildTransaction turns a validated draft into the transaction a backend
// stores. The flat amount is the line item total.
func BuildTransaction(id string, d core.Draft, cat core.Category, created core.Date) core.Transaction {
	total := core.Zero
	lines := make([]core.LineItem, len(d.LineItems))
	for i, li := range d.LineItems {
		total = total.Add(li.Amount.OrZero())
		lines[i] = li
		if lines[i].Date.IsEmpty() {
			lines[i].Date = created
		}
	}
	return core.Transaction{
		ID:         id,
		Position:   d.Position,
		Module:     d.Module,
		Category:   core.DetailedCategory(cat),
		LineItems:  lines,
		FlatAmount: core.AmountOf(total),
		CreatedAt:  created,
		Status:     core.StatusValidated,
	}
}
