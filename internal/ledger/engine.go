package ledger

import (
	"sync"
	"time"

	"notimo/internal/cache"
	"notimo/internal/core"
	"notimo/internal/log"
)

// Observer receives every view the engine computes.
type Observer func(View)

// EngineConfig configures an Engine.
type EngineConfig struct {
	Module  core.Module
	Options Options
	// CacheSize bounds the view memo; zero disables it.
	CacheSize int
	CacheTTL  time.Duration
	Logger    *log.Logger
}

type viewKey struct {
	version uint64
	filter  string
	day     string
}

// Engine holds the collection and filter state of one module and keeps
// the derived view current. It is safe for concurrent use.
type Engine struct {
	module core.Module
	opts   Options
	logger *log.Logger

	mu        sync.Mutex
	txs       []core.Transaction
	version   uint64
	filter    FilterState
	view      View
	observers map[int]Observer
	nextID    int

	memo *cache.LRUCache[viewKey, View]
}

func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default(log.ComponentLedger)
	}
	e := &Engine{
		module:    cfg.Module,
		opts:      cfg.Options,
		logger:    logger.With(log.FieldModule, string(cfg.Module)),
		observers: make(map[int]Observer),
	}
	if cfg.CacheSize > 0 {
		e.memo = cache.NewLRUCache[viewKey, View](cfg.CacheSize, cfg.CacheTTL)
	}
	e.view = e.compute()
	return e
}

func (e *Engine) Module() core.Module { return e.module }

// CacheCleaner exposes the view memo for expiry sweeps; nil when disabled.
func (e *Engine) CacheCleaner() cache.Cleaner {
	if e.memo == nil {
		return nil
	}
	return e.memo
}

// View returns the current view.
func (e *Engine) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view
}

func (e *Engine) Filter() FilterState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.filter
}

// Transactions returns a copy of the current collection.
func (e *Engine) Transactions() []core.Transaction {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]core.Transaction(nil), e.txs...)
}

// Version increases with every collection change.
func (e *Engine) Version() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.version
}

// Months lists the months present in the current collection.
func (e *Engine) Months() []MonthOption {
	e.mu.Lock()
	txs := e.txs
	e.mu.Unlock()
	return AvailableMonths(scope(txs, e.module), e.opts.Location)
}

// Labels lists the line item names present in the module.
func (e *Engine) Labels() []string {
	e.mu.Lock()
	txs := e.txs
	e.mu.Unlock()
	return Labels(scope(txs, e.module))
}

// SetTransactions replaces the collection and recomputes the view.
func (e *Engine) SetTransactions(txs []core.Transaction) View {
	owned := append([]core.Transaction(nil), txs...)

	e.mu.Lock()
	e.txs = owned
	e.version++
	version := e.version
	e.view = e.compute()
	v := e.view
	observers := e.snapshotObservers()
	e.mu.Unlock()

	e.reportDiagnostics(owned, version)
	notify(observers, v)
	return v
}

// Remove drops the transaction with the given id. It reports whether the
// collection changed.
// Contains reports whether a transaction with id is loaded.
func (e *Engine) Contains(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, tx := range e.txs {
		if tx.ID == id {
			return true
		}
	}
	return false
}

func (e *Engine) Remove(id string) (View, bool) {
	e.mu.Lock()
	idx := -1
	for i, tx := range e.txs {
		if tx.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		v := e.view
		e.mu.Unlock()
		return v, false
	}
	next := make([]core.Transaction, 0, len(e.txs)-1)
	next = append(next, e.txs[:idx]...)
	next = append(next, e.txs[idx+1:]...)
	e.txs = next
	e.version++
	e.view = e.compute()
	v := e.view
	observers := e.snapshotObservers()
	e.mu.Unlock()

	notify(observers, v)
	return v, true
}

// SetFilter replaces the filter state and recomputes the view.
func (e *Engine) SetFilter(f FilterState) View {
	return e.Update(func(FilterState) FilterState { return f })
}

// Update applies fn to the current filter state atomically.
func (e *Engine) Update(fn func(FilterState) FilterState) View {
	e.mu.Lock()
	e.filter = fn(e.filter)
	e.view = e.compute()
	v := e.view
	observers := e.snapshotObservers()
	e.mu.Unlock()

	notify(observers, v)
	return v
}

// Preview computes the view for f without changing the engine state.
func (e *Engine) Preview(f FilterState) View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.computeFor(f)
}

// Subscribe registers o and returns a function that unregisters it.
func (e *Engine) Subscribe(o Observer) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	e.observers[id] = o
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.observers, id)
	}
}

// compute must be called with mu held.
func (e *Engine) compute() View {
	return e.computeFor(e.filter)
}

func (e *Engine) computeFor(f FilterState) View {
	if e.memo == nil {
		return ComputeView(e.txs, e.module, f, e.opts)
	}
	key := viewKey{
		version: e.version,
		filter:  f.Key(),
		day:     e.opts.now().In(e.opts.location()).Format(time.DateOnly),
	}
	if v, ok := e.memo.Get(key); ok {
		return v
	}
	v := ComputeView(e.txs, e.module, f, e.opts)
	e.memo.Set(key, v)
	return v
}

func (e *Engine) snapshotObservers() []Observer {
	out := make([]Observer, 0, len(e.observers))
	for i := 0; i < e.nextID; i++ {
		if o, ok := e.observers[i]; ok {
			out = append(out, o)
		}
	}
	return out
}

func (e *Engine) reportDiagnostics(txs []core.Transaction, version uint64) {
	var amounts, others []core.Diagnostic
	for _, tx := range scope(txs, e.module) {
		_, d := tx.EffectiveAmount()
		amounts = append(amounts, d...)
		others = append(others, tx.Diagnostics()...)
	}
	for _, d := range amounts {
		e.logger.Warn("Malformed transaction value counted as zero",
			append(log.NewFields().WithOperation(log.OpRefresh).WithDiagnostic(d).ToSlice(),
				log.FieldVersion, version)...)
	}
	for _, d := range others {
		e.logger.Warn("Malformed transaction value ignored",
			append(log.NewFields().WithOperation(log.OpRefresh).WithDiagnostic(d).ToSlice(),
				log.FieldVersion, version)...)
	}
}

func notify(observers []Observer, v View) {
	for _, o := range observers {
		o(v)
	}
}

func scope(txs []core.Transaction, m core.Module) []core.Transaction {
	if m == "" {
		return txs
	}
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Module == m {
			out = append(out, tx)
		}
	}
	return out
}
