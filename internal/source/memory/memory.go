// Package memory is an in-process backend, seeded from JSON files. It is
// the default for local development and the fake used by tests.
package memory

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"notimo/internal/core"
	"notimo/internal/source"
	"notimo/internal/wire"
)

const (
	TransactionsFile = "seed_transactions.json"
	CategoriesFile   = "seed_categories.json"
)

type Store struct {
	mu        sync.Mutex
	items     []core.Transaction
	cats      []core.Category
	nextLocal int64
	now       func() time.Time
}

type Option func(*Store)

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(txs []core.Transaction, cats []core.Category, opts ...Option) *Store {
	s := &Store{
		items: append([]core.Transaction(nil), txs...),
		cats:  dedupe(cats),
		now:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	for _, tx := range s.items {
		if tx.LocalID != nil && *tx.LocalID >= s.nextLocal {
			s.nextLocal = *tx.LocalID + 1
		}
	}
	if s.nextLocal == 0 {
		s.nextLocal = 1
	}
	return s
}

// NewFromFiles seeds the store from base/seed_transactions.json and
// base/seed_categories.json. Missing files give an empty ledger and the
// default categories; unreadable JSON is an error.
func NewFromFiles(base string, loc *time.Location, opts ...Option) (*Store, error) {
	var txs []core.Transaction
	if data, err := os.ReadFile(filepath.Join(base, TransactionsFile)); err == nil {
		if txs, err = wire.DecodeTransactions(data, loc); err != nil {
			return nil, err
		}
	}

	cats := source.DefaultCategories()
	if data, err := os.ReadFile(filepath.Join(base, CategoriesFile)); err == nil {
		seeded, err := wire.DecodeCategories(data, core.Expense)
		if err != nil {
			return nil, err
		}
		if len(seeded) > 0 {
			cats = seeded
		}
	}
	return New(txs, cats, opts...), nil
}

func (s *Store) ListTransactions(_ context.Context, module core.Module) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0, len(s.items))
	for _, tx := range s.items {
		if module == "" || tx.Module == module {
			out = append(out, tx)
		}
	}
	return out, nil
}

// CreateTransaction stores the draft with a fresh uuid and the next local id.
func (s *Store) CreateTransaction(_ context.Context, d core.Draft) (core.Transaction, error) {
	if err := d.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cat, ok := s.categoryByID(d.CategoryID)
	if !ok {
		return core.Transaction{}, source.ErrUnknownCategory
	}
	tx := source.BuildTransaction(uuid.NewString(), d, cat, core.Date{Time: s.now()})
	local := s.nextLocal
	s.nextLocal++
	tx.LocalID = &local
	s.items = append(s.items, tx)
	return tx, nil
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, tx := range s.items {
		if tx.ID == id {
			s.items = append(s.items[:i:i], s.items[i+1:]...)
			return nil
		}
	}
	return source.ErrNotFound
}

func (s *Store) ListCategories(_ context.Context, position core.Position) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return source.FilterCategories(s.cats, position), nil
}

// CreateCategory adds c, or returns the existing category with the same
// name and position.
func (s *Store) CreateCategory(_ context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	c = c.WithDefaults()
	c.Name = strings.TrimSpace(c.Name)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.cats {
		if strings.EqualFold(existing.Name, c.Name) && existing.Type == c.Type {
			return existing, nil
		}
	}
	if c.ID == "" {
		c.ID = strconv.Itoa(s.maxCategoryID() + 1)
	}
	s.cats = append(s.cats, c)
	return c, nil
}

func (s *Store) categoryByID(id string) (core.Category, bool) {
	id = strings.TrimSpace(id)
	for _, c := range s.cats {
		if c.ID == id {
			return c, true
		}
	}
	return core.Category{}, false
}

func (s *Store) maxCategoryID() int {
	max := 0
	for _, c := range s.cats {
		if n, err := strconv.Atoi(c.ID); err == nil && n > max {
			max = n
		}
	}
	return max
}

var _ source.Backend = (*Store)(nil)

func dedupe(in []core.Category) []core.Category {
	seen := map[string]struct{}{}
	out := make([]core.Category, 0, len(in))
	for _, c := range in {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		key := string(c.Type) + "|" + strings.ToLower(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		c.Name = name
		out = append(out, c)
	}
	return out
}
