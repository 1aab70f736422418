// Package ledger derives balances and filtered views from transaction
// collections. Everything here is pure over its inputs except Engine, which
// owns a mutable collection and notifies observers.
package ledger

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"notimo/internal/core"
	"notimo/internal/log"
)

// Predicate decides whether a transaction takes part in a computation.
type Predicate func(core.Transaction) bool

// AnyStatus includes every transaction.
func AnyStatus(core.Transaction) bool { return true }

// ValidatedOnly includes only transactions the backend marked as validated.
func ValidatedOnly(tx core.Transaction) bool { return tx.Status == core.StatusValidated }

// InModule scopes a computation to one module.
func InModule(m core.Module) Predicate {
	return func(tx core.Transaction) bool { return tx.Module == m }
}

// And combines predicates; nil entries are ignored.
func And(ps ...Predicate) Predicate {
	return func(tx core.Transaction) bool {
		for _, p := range ps {
			if p != nil && !p(tx) {
				return false
			}
		}
		return true
	}
}

// Summary is the result of an aggregation.
type Summary struct {
	core.Totals
	Count       int
	Diagnostics []core.Diagnostic
}

// Aggregator sums transactions into income, expense and balance.
// The zero value includes every transaction and logs nothing.
type Aggregator struct {
	Include Predicate
	Logger  *log.Logger
}

func NewAggregator(include Predicate, logger *log.Logger) *Aggregator {
	return &Aggregator{Include: include, Logger: logger}
}

func (a *Aggregator) includes(tx core.Transaction) bool {
	return a.Include == nil || a.Include(tx)
}

// Aggregate computes the totals over txs. Malformed amounts contribute zero
// and come back as diagnostics.
func (a *Aggregator) Aggregate(txs []core.Transaction) Summary {
	s := a.sum(txs)
	a.report(s.Diagnostics)
	return s
}

func (a *Aggregator) sum(txs []core.Transaction) Summary {
	s := Summary{Totals: core.Totals{Income: core.Zero, Expense: core.Zero, Balance: core.Zero}}
	for _, tx := range txs {
		if !a.includes(tx) {
			continue
		}
		amount, diags := tx.EffectiveAmount()
		s.Diagnostics = append(s.Diagnostics, diags...)
		switch tx.Position {
		case core.Income:
			s.Income = s.Income.Add(amount)
		case core.Expense:
			s.Expense = s.Expense.Add(amount)
		default:
			s.Diagnostics = append(s.Diagnostics, core.Diagnostic{
				TransactionID: tx.ID,
				LineIndex:     -1,
				Field:         core.FieldPosition,
				Raw:           string(tx.Position),
				Err:           core.ErrInvalidPosition,
			})
			continue
		}
		s.Count++
	}
	s.Balance = s.Income.Sub(s.Expense)
	return s
}

func (a *Aggregator) report(diags []core.Diagnostic) {
	if a.Logger == nil {
		return
	}
	for _, d := range diags {
		a.Logger.Warn("Malformed transaction value counted as zero",
			log.NewFields().WithOperation(log.OpAggregate).WithDiagnostic(d).ToSlice()...)
	}
}

// AggregateParallel splits txs into shards summed concurrently. The result
// equals Aggregate(txs), diagnostics included and in the same order.
func (a *Aggregator) AggregateParallel(ctx context.Context, txs []core.Transaction, shards int) (Summary, error) {
	if shards < 1 {
		shards = 1
	}
	if shards > len(txs) {
		shards = len(txs)
	}
	if shards <= 1 {
		if err := ctx.Err(); err != nil {
			return Summary{}, err
		}
		return a.Aggregate(txs), nil
	}

	size := (len(txs) + shards - 1) / shards
	parts := make([]Summary, shards)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < shards; i++ {
		lo := i * size
		hi := min(lo+size, len(txs))
		if lo >= hi {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			parts[i] = a.sum(txs[lo:hi])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	total := Summary{Totals: core.Totals{Income: core.Zero, Expense: core.Zero}}
	for _, p := range parts {
		total.Income = total.Income.Add(p.Income)
		total.Expense = total.Expense.Add(p.Expense)
		total.Count += p.Count
		total.Diagnostics = append(total.Diagnostics, p.Diagnostics...)
	}
	total.Balance = total.Income.Sub(total.Expense)
	a.report(total.Diagnostics)
	return total, nil
}

// ByCategory groups included transactions by category display name and
// position, largest amount first.
func (a *Aggregator) ByCategory(txs []core.Transaction) []core.CategoryAmount {
	type key struct {
		name string
		pos  core.Position
	}
	idx := map[key]int{}
	var out []core.CategoryAmount
	for _, tx := range txs {
		if !a.includes(tx) || !tx.Position.Valid() {
			continue
		}
		amount, _ := tx.EffectiveAmount()
		k := key{tx.CategoryName(), tx.Position}
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, core.CategoryAmount{Name: k.name, Position: k.pos, Amount: core.Zero})
		}
		out[i].Amount = out[i].Amount.Add(amount)
		out[i].Count++
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ByMonth totals included transactions per calendar month of CreatedAt in
// loc, most recent first. Undated transactions are skipped.
func (a *Aggregator) ByMonth(txs []core.Transaction, loc *time.Location) []core.MonthOverview {
	if loc == nil {
		loc = time.Local
	}
	buckets := map[core.MonthKey][]core.Transaction{}
	for _, tx := range txs {
		if tx.CreatedAt.IsEmpty() {
			continue
		}
		k := monthOf(tx.CreatedAt, loc)
		buckets[k] = append(buckets[k], tx)
	}

	out := make([]core.MonthOverview, 0, len(buckets))
	for k, group := range buckets {
		s := a.sum(group)
		out = append(out, core.MonthOverview{MonthKey: k, Totals: s.Totals, Count: s.Count})
	}
	sort.Slice(out, func(i, j int) bool { return out[j].MonthKey.Before(out[i].MonthKey) })
	return out
}

func monthOf(d core.Date, loc *time.Location) core.MonthKey {
	t := d.In(loc)
	return core.MonthKey{Year: t.Year(), Month: int(t.Month())}
}
