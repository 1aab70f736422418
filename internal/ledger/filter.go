package ledger

import (
	"fmt"
	"sort"
	"strings"

	"notimo/internal/core"
)

// Period selects which dates a view keeps.
type Period string

const (
	PeriodAll    Period = "all"
	PeriodToday  Period = "today"
	PeriodMonth  Period = "month"
	PeriodYear   Period = "year"
	PeriodCustom Period = "custom"
)

// ParsePeriod maps a query value to a Period. Empty means PeriodAll.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PeriodAll, nil
	case PeriodAll, PeriodToday, PeriodMonth, PeriodYear, PeriodCustom:
		return p, nil
	}
	return "", fmt.Errorf("unknown period %q", s)
}

// Drill narrows a view to one category or one line item name.
type Drill int

const (
	DrillNone Drill = iota
	DrillCategory
	DrillLabel
)

func (d Drill) String() string {
	switch d {
	case DrillCategory:
		return "category"
	case DrillLabel:
		return "label"
	}
	return "none"
}

// FilterState is an immutable description of what the user is looking at.
// Every mutator returns a new value; the zero value shows everything.
//
// The month selection and the custom date set survive period switches so
// that going back to a period restores what was picked before.
type FilterState struct {
	period   Period
	month    core.MonthKey
	hasMonth bool
	dates    map[string]struct{}
	drill    Drill
	value    string
}

// NewFilter returns a state with the given period and no drill.
func NewFilter(p Period) FilterState {
	return FilterState{}.WithPeriod(p)
}

func (f FilterState) Period() Period {
	if f.period == "" {
		return PeriodAll
	}
	return f.period
}

// Month returns the selected month, if any.
func (f FilterState) Month() (core.MonthKey, bool) {
	return f.month, f.hasMonth
}

// Dates returns the selected custom days, sorted.
func (f FilterState) Dates() []string {
	out := make([]string, 0, len(f.dates))
	for d := range f.dates {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func (f FilterState) HasDate(iso string) bool {
	_, ok := f.dates[iso]
	return ok
}

// Drill returns the active drill and its value.
func (f FilterState) Drill() (Drill, string) {
	return f.drill, f.value
}

// WithPeriod switches the active period. An unknown period is a caller
// bug and panics; use ParsePeriod at the boundary.
func (f FilterState) WithPeriod(p Period) FilterState {
	if _, err := ParsePeriod(string(p)); err != nil {
		panic(err)
	}
	f.period = p
	return f
}

// SelectMonth switches to the month period for the given month.
func (f FilterState) SelectMonth(k core.MonthKey) FilterState {
	f.period = PeriodMonth
	f.month = k
	f.hasMonth = true
	return f
}

// ClearMonth drops the month selection, which makes the month period
// pass everything.
func (f FilterState) ClearMonth() FilterState {
	f.month = core.MonthKey{}
	f.hasMonth = false
	return f
}

// ToggleDate adds or removes a YYYY-MM-DD day from the custom set and
// switches to the custom period.
func (f FilterState) ToggleDate(iso string) FilterState {
	dates := make(map[string]struct{}, len(f.dates)+1)
	for d := range f.dates {
		dates[d] = struct{}{}
	}
	if _, ok := dates[iso]; ok {
		delete(dates, iso)
	} else {
		dates[iso] = struct{}{}
	}
	f.dates = dates
	f.period = PeriodCustom
	return f
}

// ToggleCategory drills into a category; toggling the active one clears
// the drill. Any label drill is replaced.
func (f FilterState) ToggleCategory(name string) FilterState {
	return f.toggle(DrillCategory, name)
}

// ToggleLabel drills into a line item name; toggling the active one clears
// the drill. Any category drill is replaced.
func (f FilterState) ToggleLabel(name string) FilterState {
	return f.toggle(DrillLabel, name)
}

func (f FilterState) toggle(kind Drill, value string) FilterState {
	if f.drill == kind && f.value == value {
		return f.ClearDrill()
	}
	f.drill = kind
	f.value = value
	return f
}

func (f FilterState) ClearDrill() FilterState {
	f.drill = DrillNone
	f.value = ""
	return f
}

// Key is a canonical string for the state, equal for equal states.
func (f FilterState) Key() string {
	var b strings.Builder
	b.WriteString(string(f.Period()))
	if f.hasMonth {
		b.WriteString("|m=")
		b.WriteString(f.month.String())
	}
	if len(f.dates) > 0 {
		b.WriteString("|d=")
		b.WriteString(strings.Join(f.Dates(), ","))
	}
	if f.drill != DrillNone {
		fmt.Fprintf(&b, "|%s=%q", f.drill, f.value)
	}
	return b.String()
}

// Equal reports whether two states select the same view.
func (f FilterState) Equal(o FilterState) bool {
	return f.Key() == o.Key()
}
