package ledger

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notimo/internal/core"
	"notimo/internal/log"
)

func TestAggregateSumInvariant(t *testing.T) {
	txs := []core.Transaction{
		mkTx("1", core.Income, "1000.50", "2024-03-01"),
		mkTx("2", core.Income, "250", "2024-03-02"),
		mkTx("3", core.Expense, "300.25", "2024-03-03"),
		mkTx("4", core.Expense, "2000", "2024-03-04"),
	}

	s := (&Aggregator{}).Aggregate(txs)

	assert.True(t, s.Income.Equal(money("1250.50")))
	assert.True(t, s.Expense.Equal(money("2300.25")))
	assert.True(t, s.Balance.Equal(s.Income.Sub(s.Expense)))
	assert.True(t, s.Balance.IsNegative())
	assert.Equal(t, 4, s.Count)
}

func TestAggregateLogsDiagnostics(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Output: &buf, Component: log.ComponentLedger})

	s := NewAggregator(nil, logger).Aggregate([]core.Transaction{
		mkTx("bad", core.Expense, "12a", "2024-03-01"),
	})

	require.Len(t, s.Diagnostics, 1)
	assert.True(t, s.Expense.IsZero())
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "transaction_id=bad")
}

func TestAggregateUnknownPositionIsReported(t *testing.T) {
	tx := mkTx("odd", core.Position("transfer"), "10", "2024-03-01")
	s := (&Aggregator{}).Aggregate([]core.Transaction{tx})

	assert.True(t, s.Income.IsZero())
	assert.True(t, s.Expense.IsZero())
	require.Len(t, s.Diagnostics, 1)
	assert.Equal(t, core.FieldPosition, s.Diagnostics[0].Field)
}

func TestAndPredicate(t *testing.T) {
	p := And(ValidatedOnly, InModule(core.Budget), nil)

	assert.True(t, p(mkTx("1", core.Income, "1", "", withStatus(core.StatusValidated), withModule(core.Budget))))
	assert.False(t, p(mkTx("2", core.Income, "1", "", withStatus(core.StatusValidated))))
	assert.False(t, p(mkTx("3", core.Income, "1", "", withModule(core.Budget))))
}

func TestAggregateParallelMatchesSequential(t *testing.T) {
	var txs []core.Transaction
	for i := 0; i < 103; i++ {
		pos := core.Expense
		if i%3 == 0 {
			pos = core.Income
		}
		amount := fmt.Sprintf("%d.%02d", i*7, i%100)
		if i%17 == 0 {
			amount = "n/a"
		}
		txs = append(txs, mkTx(fmt.Sprintf("t%d", i), pos, amount, "2024-03-01"))
	}
	agg := &Aggregator{Include: AnyStatus}
	want := agg.Aggregate(txs)

	for _, shards := range []int{0, 1, 2, 7, 64, 500} {
		got, err := agg.AggregateParallel(context.Background(), txs, shards)
		require.NoError(t, err)
		assert.True(t, want.Income.Equal(got.Income), "shards=%d", shards)
		assert.True(t, want.Expense.Equal(got.Expense), "shards=%d", shards)
		assert.True(t, want.Balance.Equal(got.Balance), "shards=%d", shards)
		assert.Equal(t, want.Count, got.Count)
		assert.Equal(t, want.Diagnostics, got.Diagnostics)
	}
}

func TestAggregateParallelHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	txs := []core.Transaction{
		mkTx("1", core.Income, "1", ""),
		mkTx("2", core.Income, "1", ""),
		mkTx("3", core.Income, "1", ""),
	}
	_, err := (&Aggregator{}).AggregateParallel(ctx, txs, 3)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestByCategory(t *testing.T) {
	txs := []core.Transaction{
		mkTx("1", core.Expense, "100", "", withCategory("Transport")),
		mkTx("2", core.Expense, "300", "", withCategory("Loisirs")),
		mkTx("3", core.Expense, "250", "", withCategory("Transport")),
		mkTx("4", core.Income, "900", ""),
	}

	got := (&Aggregator{}).ByCategory(txs)

	require.Len(t, got, 3)
	assert.Equal(t, core.PlaceholderCategory, got[0].Name)
	assert.Equal(t, core.Income, got[0].Position)
	assert.Equal(t, "Transport", got[1].Name)
	assert.True(t, got[1].Amount.Equal(money("350")))
	assert.Equal(t, 2, got[1].Count)
	assert.Equal(t, "Loisirs", got[2].Name)
}

func TestByMonth(t *testing.T) {
	txs := []core.Transaction{
		mkTx("1", core.Income, "100", "2024-02-10"),
		mkTx("2", core.Expense, "40", "2024-02-11"),
		mkTx("3", core.Income, "5", "2024-03-01"),
		mkTx("4", core.Income, "5", "nope"),
	}

	got := (&Aggregator{}).ByMonth(txs, time.UTC)

	require.Len(t, got, 2)
	assert.Equal(t, core.MonthKey{Year: 2024, Month: 3}, got[0].MonthKey)
	assert.Equal(t, core.MonthKey{Year: 2024, Month: 2}, got[1].MonthKey)
	assert.True(t, got[1].Totals.Balance.Equal(money("60")))
	assert.Equal(t, 2, got[1].Count)
}

func TestAvailableMonthsAndLabels(t *testing.T) {
	txs := []core.Transaction{
		mkTx("1", core.Expense, "1", "2024-03-04", withLines("pain", "lait")),
		mkTx("2", core.Expense, "1", "2023-12-31", withLines("lait", " ")),
		mkTx("3", core.Expense, "1", "2024-03-20", withCategory("Transport")),
		mkTx("4", core.Expense, "1", "garbage", withLines("essence")),
	}

	months := AvailableMonths(txs, time.UTC)
	require.Len(t, months, 2)
	assert.Equal(t, "mars 2024", months[0].Label)
	assert.Equal(t, "décembre 2023", months[1].Label)

	assert.Equal(t, []string{"pain", "lait", "essence"}, Labels(txs))
	assert.Equal(t, []string{core.PlaceholderCategory, "Transport"}, Categories(txs))
}

func TestParseMonthKey(t *testing.T) {
	k, err := ParseMonthKey("2024-03")
	require.NoError(t, err)
	assert.Equal(t, core.MonthKey{Year: 2024, Month: 3}, k)

	_, err = ParseMonthKey("03/2024")
	assert.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "invalid month"))
}
