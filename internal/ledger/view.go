package ledger

import (
	"sort"
	"time"

	"notimo/internal/core"
)

// Options carries the environment a view is computed in.
type Options struct {
	// Now defaults to time.Now.
	Now func() time.Time
	// Location is used for calendar bucketing; defaults to time.Local.
	Location *time.Location
	// Include gates which visible transactions count toward the totals.
	Include Predicate
}

func (o Options) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.Local
	}
	return o.Location
}

// View is a filtered, sorted slice of transactions plus its totals.
// Views may be shared between callers and must be treated as read-only.
type View struct {
	Module      core.Module
	Filter      FilterState
	Visible     []core.Transaction
	Totals      core.Totals
	Diagnostics []core.Diagnostic
}

// ComputeView scopes txs to module, applies the drill and period of f,
// sorts newest first with the seed row last and totals the result.
// Unparseable dates and decode failures of every scoped transaction are
// reported ahead of the amount diagnostics of the visible ones.
// txs is never modified.
func ComputeView(txs []core.Transaction, module core.Module, f FilterState, opts Options) View {
	loc := opts.location()
	keepPeriod := periodPredicate(f, opts.now().In(loc), loc)
	keepDrill := drillPredicate(f)

	var diags []core.Diagnostic
	visible := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if module != "" && tx.Module != module {
			continue
		}
		// reported before filtering: a bad date drops the row from dated periods
		diags = append(diags, tx.Diagnostics()...)
		if !keepDrill(tx) || !keepPeriod(tx) {
			continue
		}
		visible = append(visible, tx)
	}
	SortNewestFirst(visible)

	agg := Aggregator{Include: opts.Include}
	s := agg.Aggregate(visible)
	return View{
		Module:      module,
		Filter:      f,
		Visible:     visible,
		Totals:      s.Totals,
		Diagnostics: append(diags, s.Diagnostics...),
	}
}

// SortNewestFirst orders txs by CreatedAt descending, keeping the seed row
// last. Ties keep their input order; undated rows sort after dated ones.
func SortNewestFirst(txs []core.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		a, b := txs[i], txs[j]
		if a.IsSeed() != b.IsSeed() {
			return b.IsSeed()
		}
		return a.CreatedAt.After(b.CreatedAt.Time)
	})
}

func drillPredicate(f FilterState) Predicate {
	kind, value := f.Drill()
	switch kind {
	case DrillCategory:
		return func(tx core.Transaction) bool { return tx.CategoryName() == value }
	case DrillLabel:
		return func(tx core.Transaction) bool { return tx.HasLabel(value) }
	}
	return passAll
}

func periodPredicate(f FilterState, now time.Time, loc *time.Location) Predicate {
	dated := func(keep func(t time.Time) bool) Predicate {
		return func(tx core.Transaction) bool {
			if tx.CreatedAt.IsEmpty() {
				return false
			}
			return keep(tx.CreatedAt.In(loc))
		}
	}

	switch f.Period() {
	case PeriodToday:
		y, m, d := now.Date()
		return dated(func(t time.Time) bool {
			ty, tm, td := t.Date()
			return ty == y && tm == m && td == d
		})
	case PeriodMonth:
		k, ok := f.Month()
		if !ok {
			return passAll
		}
		return dated(func(t time.Time) bool {
			return t.Year() == k.Year && int(t.Month()) == k.Month
		})
	case PeriodYear:
		return dated(func(t time.Time) bool { return t.Year() == now.Year() })
	case PeriodCustom:
		if len(f.dates) == 0 {
			return passAll
		}
		return dated(func(t time.Time) bool { return f.HasDate(t.Format(time.DateOnly)) })
	}
	return passAll
}

func passAll(core.Transaction) bool { return true }
