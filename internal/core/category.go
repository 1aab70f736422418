package core

import "strings"

// Default glyphs and colors per position, used when a category is created
// without them.
const (
	DefaultExpenseIcon  = "💸"
	DefaultIncomeIcon   = "💰"
	DefaultExpenseColor = "#EF4444"
	DefaultIncomeColor  = "#10B981"
)

// Category is a named bucket for transactions of one position.
type Category struct {
	ID         string
	Name       string
	Icon       string
	Color      string
	Type       Position
	Predefined bool
}

// WithDefaults fills the icon and color from the category position.
func (c Category) WithDefaults() Category {
	if c.Icon == "" {
		c.Icon = DefaultIcon(c.Type)
	}
	if c.Color == "" {
		c.Color = DefaultColor(c.Type)
	}
	return c
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyCategory
	}
	if !c.Type.Valid() {
		return ErrInvalidPosition
	}
	return nil
}

func DefaultIcon(p Position) string {
	if p == Income {
		return DefaultIncomeIcon
	}
	return DefaultExpenseIcon
}

func DefaultColor(p Position) string {
	if p == Income {
		return DefaultIncomeColor
	}
	return DefaultExpenseColor
}

// CategoryRef is how a transaction points at its category: backends send
// either a bare name or a full category object.
type CategoryRef interface {
	DisplayName() string
}

// NamedCategory is a category known only by its label.
type NamedCategory string

func (n NamedCategory) DisplayName() string {
	return strings.TrimSpace(string(n))
}

// DetailedCategory is a category carried as a full object.
type DetailedCategory Category

func (d DetailedCategory) DisplayName() string {
	return strings.TrimSpace(d.Name)
}

// Details returns the underlying category.
func (d DetailedCategory) Details() Category { return Category(d) }

// DisplayName resolves any reference, including nil, to a display name.
// References that resolve to a blank name fall back to PlaceholderCategory.
func DisplayName(ref CategoryRef) string {
	if ref == nil {
		return PlaceholderCategory
	}
	if name := ref.DisplayName(); name != "" {
		return name
	}
	return PlaceholderCategory
}
