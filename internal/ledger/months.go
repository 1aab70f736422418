package ledger

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"notimo/internal/core"
)

var frenchMonths = [...]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

// MonthOption is an entry of the month picker.
type MonthOption struct {
	core.MonthKey
	Label string
}

// MonthLabel renders a month the way the picker shows it, e.g. "mars 2024".
func MonthLabel(k core.MonthKey) string {
	if k.Month < 1 || k.Month > 12 {
		return k.String()
	}
	return fmt.Sprintf("%s %d", frenchMonths[k.Month-1], k.Year)
}

// ParseMonthKey parses "YYYY-MM".
func ParseMonthKey(s string) (core.MonthKey, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return core.MonthKey{}, fmt.Errorf("invalid month %q: %w", s, err)
	}
	return core.MonthKey{Year: t.Year(), Month: int(t.Month())}, nil
}

// AvailableMonths lists the distinct months in which txs were created,
// most recent first. Undated transactions are ignored.
func AvailableMonths(txs []core.Transaction, loc *time.Location) []MonthOption {
	if loc == nil {
		loc = time.Local
	}
	seen := map[core.MonthKey]bool{}
	var keys []core.MonthKey
	for _, tx := range txs {
		if tx.CreatedAt.IsEmpty() {
			continue
		}
		k := monthOf(tx.CreatedAt, loc)
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[j].Before(keys[i]) })

	out := make([]MonthOption, len(keys))
	for i, k := range keys {
		out[i] = MonthOption{MonthKey: k, Label: MonthLabel(k)}
	}
	return out
}

// Labels returns the distinct line item names in first-seen order.
func Labels(txs []core.Transaction) []string {
	seen := map[string]bool{}
	var out []string
	for _, tx := range txs {
		for _, li := range tx.LineItems {
			name := strings.TrimSpace(li.Name)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// Categories returns the distinct category display names in first-seen
// order.
func Categories(txs []core.Transaction) []string {
	seen := map[string]bool{}
	var out []string
	for _, tx := range txs {
		name := tx.CategoryName()
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
