package core

import "fmt"

// Diagnostic fields.
const (
	FieldAmount    = "amount"
	FieldCreatedAt = "created_at"
	FieldLineDate  = "line_date"
	FieldLineItems = "line_items"
	FieldPosition  = "position"
)

// Diagnostic records a data-quality problem found while reading a
// transaction. It never stops aggregation.
type Diagnostic struct {
	TransactionID string
	LineIndex     int // -1 for transaction-level fields
	Field         string
	Raw           string
	Err           error
}

func (d Diagnostic) Error() string {
	if d.LineIndex >= 0 {
		return fmt.Sprintf("transaction %s line %d: %s %q: %v", d.TransactionID, d.LineIndex, d.Field, d.Raw, d.Err)
	}
	return fmt.Sprintf("transaction %s: %s %q: %v", d.TransactionID, d.Field, d.Raw, d.Err)
}

func (d Diagnostic) Unwrap() error { return d.Err }

// Totals is the income/expense/balance triple shown in the balance bubbles.
type Totals struct {
	Income  Money
	Expense Money
	Balance Money
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name     string
	Position Position
	Amount   Money
	Count    int
}

// MonthKey identifies a calendar month.
type MonthKey struct {
	Year  int
	Month int // 1-12
}

func (k MonthKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, k.Month)
}

// Before orders months chronologically.
func (k MonthKey) Before(o MonthKey) bool {
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	return k.Month < o.Month
}

// MonthOverview is a compact summary for a specific year+month.
type MonthOverview struct {
	MonthKey
	Totals Totals
	Count  int
}
