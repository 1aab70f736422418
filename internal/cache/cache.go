// Package cache memoizes computed ledger views. LRUCache holds the
// entries; Manager sweeps expired ones in the background.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"notimo/internal/log"
)

// Cleaner drops expired entries and reports how many it removed.
type Cleaner interface {
	CleanExpired() int
}

var _ Cleaner = (*LRUCache[string, int])(nil)

type Manager struct {
	mu      sync.Mutex
	caches  []Cleaner
	cancel  context.CancelFunc
	done    chan struct{}
	evicted atomic.Int64
	logger  *log.Logger
}

func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default(log.ComponentCache)
	}
	return &Manager{logger: logger.WithComponent(log.ComponentCache)}
}

func (m *Manager) Register(c Cleaner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches = append(m.caches, c)
}

// StartCleanup sweeps every registered cache each interval until Stop.
// Calls after the first are ignored.
func (m *Manager) StartCleanup(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(ctx, interval, m.done)
}

// CleanNow runs one sweep and returns the number of evicted entries.
func (m *Manager) CleanNow() int {
	m.mu.Lock()
	caches := append([]Cleaner(nil), m.caches...)
	m.mu.Unlock()

	n := 0
	for _, c := range caches {
		n += c.CleanExpired()
	}
	m.evicted.Add(int64(n))
	return n
}

// Evicted is the total removed by sweeps so far.
func (m *Manager) Evicted() int64 {
	return m.evicted.Load()
}

func (m *Manager) run(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.CleanNow(); n > 0 {
				m.logger.Debug("Evicted expired views", log.FieldCount, n)
			}
		}
	}
}

// Stop ends the sweep loop and waits for it. Safe to call more than once
// and without StartCleanup.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
