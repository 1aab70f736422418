package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Expense Position = "expense"
	Income  Position = "income"

	Tracking Module = "tracking"
	Budget   Module = "budget"

	StatusValidated Status = "validee"
	StatusPending   Status = "en_attente"
	StatusCancelled Status = "annulee"
)

// PlaceholderCategory is shown when a transaction carries no usable category.
const PlaceholderCategory = "Transaction"

type (
	// Position is the income/expense polarity of a transaction.
	Position string

	// Module partitions transactions into already incurred (tracking) and
	// planned (budget) ones.
	Module string

	Status string

	LineItem struct {
		Name    string
		Amount  Amount
		Date    Date
		Comment string
	}

	Transaction struct {
		ID         string
		LocalID    *int64 // set only by backends that number rows per user
		Position   Position
		Module     Module
		Category   CategoryRef
		LineItems  []LineItem
		FlatAmount Amount // montant / montant_total when no line items are sent
		CreatedAt  Date
		Status     Status
		// Malformed holds decode problems the reader could not attach to
		// a single value, such as an unreadable libelles array.
		Malformed  []Diagnostic
	}

	// Draft is the user submission that creates a transaction.
	Draft struct {
		Position   Position
		Module     Module
		CategoryID string
		LineItems  []LineItem
		Comment    string
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrMissingAmount   = errors.New("missing amount")
	ErrInvalidDate     = errors.New("invalid date")
	ErrNoLineItems     = errors.New("at least one line item is required")
	ErrEmptyCategory   = errors.New("empty category")
	ErrEmptyLineName   = errors.New("empty line item name")
	ErrInvalidPosition = errors.New("invalid position")
	ErrInvalidModule   = errors.New("invalid module")
)

// ParsePosition accepts both the english names and the backend spellings.
func ParsePosition(s string) (Position, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "expense", "depense", "dépense":
		return Expense, nil
	case "income", "revenu":
		return Income, nil
	}
	return "", ErrInvalidPosition
}

func (p Position) Valid() bool { return p == Expense || p == Income }

// Wire returns the spelling used by the NoTiMo backend.
func (p Position) Wire() string {
	if p == Income {
		return "revenu"
	}
	return "depense"
}

func ParseModule(s string) (Module, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tracking", "suivi":
		return Tracking, nil
	case "budget":
		return Budget, nil
	}
	return "", ErrInvalidModule
}

func (m Module) Valid() bool { return m == Tracking || m == Budget }

func (m Module) Wire() string {
	if m == Budget {
		return "budget"
	}
	return "suivi"
}

// Modules lists every module in display order.
func Modules() []Module { return []Module{Tracking, Budget} }

// EffectiveAmount is the sum of the line items when there are any, else the
// flat amount. Malformed amounts count as zero and are reported as
// diagnostics. It is recomputed on every call.
func (t Transaction) EffectiveAmount() (Money, []Diagnostic) {
	var diags []Diagnostic
	if len(t.LineItems) == 0 {
		v, err := t.FlatAmount.Value()
		if err != nil {
			diags = append(diags, Diagnostic{
				TransactionID: t.ID,
				LineIndex:     -1,
				Field:         FieldAmount,
				Raw:           t.FlatAmount.Raw(),
				Err:           err,
			})
		}
		return v, diags
	}
	sum := Zero
	for i, li := range t.LineItems {
		v, err := li.Amount.Value()
		if err != nil {
			diags = append(diags, Diagnostic{
				TransactionID: t.ID,
				LineIndex:     i,
				Field:         FieldAmount,
				Raw:           li.Amount.Raw(),
				Err:           err,
			})
			continue
		}
		sum = sum.Add(v)
	}
	return sum, diags
}

// CategoryName resolves the category to its display name.
func (t Transaction) CategoryName() string {
	return DisplayName(t.Category)
}

// Diagnostics lists the non-amount problems found while reading t: decode
// failures and dates that were present but could not be parsed.
func (t Transaction) Diagnostics() []Diagnostic {
	diags := append([]Diagnostic(nil), t.Malformed...)
	if err := t.CreatedAt.Err(); err != nil {
		diags = append(diags, Diagnostic{
			TransactionID: t.ID,
			LineIndex:     -1,
			Field:         FieldCreatedAt,
			Raw:           t.CreatedAt.Raw(),
			Err:           err,
		})
	}
	for i, li := range t.LineItems {
		if err := li.Date.Err(); err != nil {
			diags = append(diags, Diagnostic{
				TransactionID: t.ID,
				LineIndex:     i,
				Field:         FieldLineDate,
				Raw:           li.Date.Raw(),
				Err:           err,
			})
		}
	}
	return diags
}

// HasLabel reports whether any line item carries the given name.
func (t Transaction) HasLabel(name string) bool {
	for _, li := range t.LineItems {
		if strings.TrimSpace(li.Name) == name {
			return true
		}
	}
	return false
}

// IsSeed reports whether the transaction is the pinned initial row that
// the backend creates for every account (local id 0).
func (t Transaction) IsSeed() bool {
	return t.LocalID != nil && *t.LocalID == 0
}

func (d Draft) Validate() error {
	if !d.Position.Valid() {
		return ErrInvalidPosition
	}
	if !d.Module.Valid() {
		return ErrInvalidModule
	}
	if strings.TrimSpace(d.CategoryID) == "" {
		return ErrEmptyCategory
	}
	if len(d.LineItems) == 0 {
		return ErrNoLineItems
	}
	for _, li := range d.LineItems {
		if strings.TrimSpace(li.Name) == "" {
			return ErrEmptyLineName
		}
		v, err := li.Amount.Value()
		if err != nil {
			return err
		}
		if !v.IsPositive() {
			return ErrInvalidAmount
		}
	}
	return nil
}

// Date wraps time.Time. The zero value stands for a missing or
// unparseable date; an unparseable one keeps its raw text and error.
type Date struct {
	time.Time
	raw string
	err error
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// ParseDate parses the timestamp formats produced by the backends. Values
// without a zone are read in loc.
func ParseDate(s string, loc *time.Location) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrInvalidDate
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return Date{Time: t}, nil
		}
	}
	return Date{raw: s, err: ErrInvalidDate}, ErrInvalidDate
}

// NewDate creates a new Date from year, month, day in UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// IsEmpty returns true if the date is missing or could not be parsed.
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// Raw is the text of an unparseable date.
func (d Date) Raw() string { return d.raw }

// Err is non-nil when the date was present but could not be parsed.
func (d Date) Err() error { return d.err }

// ISODay returns the calendar day as YYYY-MM-DD in loc.
func (d Date) ISODay(loc *time.Location) string {
	if d.IsZero() {
		return ""
	}
	if loc == nil {
		loc = time.Local
	}
	return d.In(loc).Format(time.DateOnly)
}
