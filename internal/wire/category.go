package wire

import (
	"encoding/json"
	"fmt"
	"strings"

	"notimo/internal/core"
)

// CategoryPayload is the category object accepted by POST /categories/.
type CategoryPayload struct {
	ID            string `json:"id,omitempty"`
	Nom           string `json:"nom"`
	TypeCategorie string `json:"type_categorie"`
	Icone         string `json:"icone,omitempty"`
	Couleur       string `json:"couleur,omitempty"`
	Predefinie    bool   `json:"predefinie,omitempty"`
}

// EncodeCategory renders c in the backend shape with defaults filled in.
func EncodeCategory(c core.Category) CategoryPayload {
	c = c.WithDefaults()
	return CategoryPayload{
		ID:            c.ID,
		Nom:           strings.TrimSpace(c.Name),
		TypeCategorie: c.Type.Wire(),
		Icone:         c.Icon,
		Couleur:       c.Color,
		Predefinie:    c.Predefined,
	}
}

// DecodeCategory reads one category object. Both french and english keys
// are understood.
func DecodeCategory(data []byte) (core.Category, error) {
	var f fields
	if err := json.Unmarshal(data, &f); err != nil || f == nil {
		return core.Category{}, fmt.Errorf("decode category: not a JSON object")
	}
	return categoryFromFields(f), nil
}

// DecodeCategories reads a list whose entries are either plain names or
// category objects. Plain names take the fallback position.
func DecodeCategories(data []byte, fallback core.Position) ([]core.Category, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	out := make([]core.Category, 0, len(items))
	for _, item := range items {
		switch ref := categoryFrom(item).(type) {
		case core.NamedCategory:
			out = append(out, core.Category{Name: ref.DisplayName(), Type: fallback})
		case core.DetailedCategory:
			c := ref.Details()
			if c.Type == "" {
				c.Type = fallback
			}
			out = append(out, c)
		}
	}
	return out, nil
}

func categoryFromFields(f fields) core.Category {
	c := core.Category{
		ID:    text(f["id"]),
		Name:  strings.TrimSpace(firstOf(f, "nom", "name")),
		Icon:  firstOf(f, "icone", "icon"),
		Color: firstOf(f, "couleur", "color"),
	}
	if p, err := core.ParsePosition(firstOf(f, "type_categorie", "type")); err == nil {
		c.Type = p
	}
	switch strings.ToLower(firstOf(f, "predefinie", "predefined")) {
	case "true", "1":
		c.Predefined = true
	}
	return c
}
