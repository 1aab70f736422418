package ledger

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notimo/internal/core"
	"notimo/internal/log"
)

func newTestEngine(cacheSize int) *Engine {
	return NewEngine(EngineConfig{
		Module:    core.Tracking,
		Options:   testOpts(),
		CacheSize: cacheSize,
		Logger:    log.Discard(),
	})
}

func TestEngineNotifiesObservers(t *testing.T) {
	e := newTestEngine(0)

	var got []View
	cancel := e.Subscribe(func(v View) { got = append(got, v) })

	e.SetTransactions([]core.Transaction{
		mkTx("a", core.Income, "100", "2024-03-01", withCategory("Salaire")),
		mkTx("b", core.Expense, "40", "2024-03-02", withCategory("Transport")),
		mkTx("budget", core.Expense, "999", "2024-03-02", withModule(core.Budget)),
	})
	e.Update(func(f FilterState) FilterState { return f.ToggleCategory("Transport") })

	require.Len(t, got, 2)
	assert.Equal(t, []string{"b", "a"}, ids(got[0].Visible))
	assert.True(t, got[0].Totals.Balance.Equal(money("60")))
	assert.Equal(t, []string{"b"}, ids(got[1].Visible))

	cancel()
	e.SetFilter(FilterState{})
	assert.Len(t, got, 2)
	assert.Len(t, e.View().Visible, 2)
}

func TestEngineRemove(t *testing.T) {
	e := newTestEngine(0)
	e.SetTransactions([]core.Transaction{
		mkTx("a", core.Income, "100", "2024-03-01"),
		mkTx("b", core.Expense, "40", "2024-03-02"),
	})
	before := e.Version()

	v, ok := e.Remove("a")
	require.True(t, ok)
	assert.Equal(t, []string{"b"}, ids(v.Visible))
	assert.True(t, v.Totals.Income.IsZero())
	assert.Greater(t, e.Version(), before)

	_, ok = e.Remove("missing")
	assert.False(t, ok)
}

func TestEngineOwnsItsCollection(t *testing.T) {
	e := newTestEngine(0)
	txs := []core.Transaction{mkTx("a", core.Income, "1", "2024-03-01")}
	e.SetTransactions(txs)

	txs[0].ID = "mutated"
	assert.Equal(t, "a", e.Transactions()[0].ID)
}

func TestEngineMemoServesRepeatedFilters(t *testing.T) {
	e := newTestEngine(8)
	e.SetTransactions([]core.Transaction{
		mkTx("a", core.Income, "1", "2024-03-01", withCategory("X")),
		mkTx("b", core.Income, "1", "2024-03-02", withCategory("Y")),
	})

	e.Update(func(f FilterState) FilterState { return f.ToggleCategory("X") })
	e.Update(func(f FilterState) FilterState { return f.ToggleCategory("X") })
	v := e.Update(func(f FilterState) FilterState { return f.ToggleCategory("X") })
	assert.Equal(t, []string{"a"}, ids(v.Visible))

	st := e.memo.Stats()
	assert.GreaterOrEqual(t, st.Hits, uint64(2))

	// a new collection version must not reuse stale views
	e.SetTransactions(nil)
	assert.Empty(t, e.View().Visible)
	assert.NotNil(t, e.CacheCleaner())
}

func TestEngineMonthsAndLabelsAreModuleScoped(t *testing.T) {
	e := newTestEngine(0)
	e.SetTransactions([]core.Transaction{
		mkTx("a", core.Income, "1", "2024-03-01", withLines("salaire")),
		mkTx("b", core.Income, "1", "2023-01-01", withLines("prime"), withModule(core.Budget)),
	})

	months := e.Months()
	require.Len(t, months, 1)
	assert.Equal(t, "mars 2024", months[0].Label)
	assert.Equal(t, []string{"salaire"}, e.Labels())
}

func TestEngineConcurrentUse(t *testing.T) {
	e := newTestEngine(4)
	txs := []core.Transaction{
		mkTx("a", core.Income, "1", "2024-03-01", withCategory("X")),
		mkTx("b", core.Income, "1", "2024-03-02", withCategory("Y")),
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				e.SetTransactions(txs)
				e.Update(func(f FilterState) FilterState { return f.ToggleCategory("X") })
				_ = e.View()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, e.Transactions(), 2)
}
