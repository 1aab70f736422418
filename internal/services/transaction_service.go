package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"notimo/internal/cache"
	"notimo/internal/core"
	"notimo/internal/ledger"
	"notimo/internal/log"
	"notimo/internal/source"
)

const publishTimeout = 5 * time.Second

// Config configures the per-module engines.
type Config struct {
	Options   ledger.Options
	CacheSize int
	CacheTTL  time.Duration
	Logger    *log.Logger
}

// TransactionService orchestrates the backend, one ledger engine per module
// and the event publisher.
type TransactionService struct {
	backend   Backend
	publisher Publisher
	engines   map[core.Module]*ledger.Engine
	cancels   []func()
	logger    *log.Logger
}

// NewTransactionService wires an engine for every module. publisher may be
// nil, in which case events are skipped.
func NewTransactionService(backend Backend, publisher Publisher, cfg Config) *TransactionService {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default(log.ComponentService)
	}
	s := &TransactionService{
		backend:   backend,
		publisher: publisher,
		engines:   make(map[core.Module]*ledger.Engine, len(core.Modules())),
		logger:    logger,
	}
	if publisher == nil {
		logger.Warn("AMQP client not available, ledger events will be skipped")
	}

	for _, m := range core.Modules() {
		e := ledger.NewEngine(ledger.EngineConfig{
			Module:    m,
			Options:   cfg.Options,
			CacheSize: cfg.CacheSize,
			CacheTTL:  cfg.CacheTTL,
			Logger:    logger.WithComponent(log.ComponentLedger),
		})
		s.engines[m] = e
		s.cancels = append(s.cancels, e.Subscribe(s.viewChanged(e)))
	}
	return s
}

// Engine returns the engine of module m.
func (s *TransactionService) Engine(m core.Module) (*ledger.Engine, error) {
	e, ok := s.engines[m]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidModule, m)
	}
	return e, nil
}

// CacheCleaners returns the view memos that need expiry sweeps.
func (s *TransactionService) CacheCleaners() []cache.Cleaner {
	var out []cache.Cleaner
	for _, m := range core.Modules() {
		if c := s.engines[m].CacheCleaner(); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// Refresh re-reads module from the backend and re-seeds its engine.
func (s *TransactionService) Refresh(ctx context.Context, module core.Module) (ledger.View, error) {
	e, err := s.Engine(module)
	if err != nil {
		return ledger.View{}, err
	}
	txs, err := s.backend.ListTransactions(ctx, module)
	if err != nil {
		return e.View(), fmt.Errorf("list %s transactions: %w", module, err)
	}
	v := e.SetTransactions(txs)
	s.logger.DebugContext(ctx, "Module refreshed",
		log.FieldModule, string(module),
		log.FieldCount, len(txs),
		log.FieldVersion, e.Version())
	return v, nil
}

// RefreshAll refreshes every module concurrently.
func (s *TransactionService) RefreshAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, m := range core.Modules() {
		g.Go(func() error {
			_, err := s.Refresh(ctx, m)
			return err
		})
	}
	return g.Wait()
}

// Create validates and stores d, then refreshes its module. When the
// refresh fails the stored transaction is added to the engine directly.
func (s *TransactionService) Create(ctx context.Context, d core.Draft) (core.Transaction, ledger.View, error) {
	if err := d.Validate(); err != nil {
		return core.Transaction{}, ledger.View{}, fmt.Errorf("validation failed: %w", err)
	}
	e, err := s.Engine(d.Module)
	if err != nil {
		return core.Transaction{}, ledger.View{}, err
	}

	tx, err := s.backend.CreateTransaction(ctx, d)
	if err != nil {
		return core.Transaction{}, e.View(), fmt.Errorf("create transaction: %w", err)
	}
	s.logger.InfoContext(ctx, "Transaction created",
		log.FieldTransactionID, tx.ID,
		log.FieldModule, string(tx.Module))

	v, err := s.Refresh(ctx, d.Module)
	if err != nil {
		s.logger.WarnContext(ctx, "Refresh after create failed, using the stored transaction",
			log.FieldTransactionID, tx.ID,
			log.FieldError, err)
		v = e.SetTransactions(append(e.Transactions(), tx))
	}
	return tx, v, nil
}

// Delete removes id through the backend, then from the engine, then
// publishes a deletion event. Publishing failures are logged only. An id
// loaded by another module's engine is not found in module.
func (s *TransactionService) Delete(ctx context.Context, module core.Module, id string) (ledger.View, error) {
	e, err := s.Engine(module)
	if err != nil {
		return ledger.View{}, err
	}
	for m, other := range s.engines {
		if m != module && other.Contains(id) {
			return e.View(), fmt.Errorf("delete transaction %s: %w in %s, it belongs to %s",
				id, source.ErrNotFound, module, m)
		}
	}
	if err := s.backend.DeleteTransaction(ctx, id); err != nil {
		return e.View(), fmt.Errorf("delete transaction %s: %w", id, err)
	}

	v, removed := e.Remove(id)
	if !removed {
		s.logger.DebugContext(ctx, "Deleted transaction was not loaded",
			log.FieldTransactionID, id, log.FieldModule, string(module))
	}

	if s.publisher != nil {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if err := s.publisher.PublishTransactionDeleted(pctx, module, id); err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish delete message",
				log.FieldTransactionID, id, log.FieldError, err)
		}
	}
	return v, nil
}

func (s *TransactionService) View(module core.Module) (ledger.View, error) {
	e, err := s.Engine(module)
	if err != nil {
		return ledger.View{}, err
	}
	return e.View(), nil
}

// SetFilter replaces the module's filter state.
func (s *TransactionService) SetFilter(module core.Module, f ledger.FilterState) (ledger.View, error) {
	e, err := s.Engine(module)
	if err != nil {
		return ledger.View{}, err
	}
	return e.SetFilter(f), nil
}

// Preview computes the view for f without touching the module's state.
func (s *TransactionService) Preview(module core.Module, f ledger.FilterState) (ledger.View, error) {
	e, err := s.Engine(module)
	if err != nil {
		return ledger.View{}, err
	}
	return e.Preview(f), nil
}

func (s *TransactionService) Months(module core.Module) ([]ledger.MonthOption, error) {
	e, err := s.Engine(module)
	if err != nil {
		return nil, err
	}
	return e.Months(), nil
}

func (s *TransactionService) Labels(module core.Module) ([]string, error) {
	e, err := s.Engine(module)
	if err != nil {
		return nil, err
	}
	return e.Labels(), nil
}

func (s *TransactionService) ListCategories(ctx context.Context, position core.Position) ([]core.Category, error) {
	if position != "" && !position.Valid() {
		return nil, core.ErrInvalidPosition
	}
	cats, err := s.backend.ListCategories(ctx, position)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

// CreateCategory stores c; the new category is listable right away.
func (s *TransactionService) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	created, err := s.backend.CreateCategory(ctx, c.WithDefaults())
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	s.logger.InfoContext(ctx, "Category created", "category_id", created.ID, "name", created.Name)
	return created, nil
}

// Close unsubscribes the event observers.
func (s *TransactionService) Close() error {
	for _, cancel := range s.cancels {
		cancel()
	}
	s.cancels = nil
	return nil
}

func (s *TransactionService) viewChanged(e *ledger.Engine) ledger.Observer {
	return func(v ledger.View) {
		if s.publisher == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		err := s.publisher.PublishViewChanged(ctx, v.Module, v.Filter.Key(), v.Totals, len(v.Visible), e.Version())
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish view changed message",
				log.FieldModule, string(v.Module), log.FieldError, err)
		}
	}
}

// IsValidation reports whether err comes from draft or category validation.
func IsValidation(err error) bool {
	for _, target := range []error{
		core.ErrInvalidAmount, core.ErrMissingAmount, core.ErrNoLineItems,
		core.ErrEmptyCategory, core.ErrEmptyLineName, core.ErrInvalidPosition,
		core.ErrInvalidModule, core.ErrInvalidDate,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
