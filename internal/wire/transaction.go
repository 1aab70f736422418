// Package wire converts between the JSON shapes spoken by the NoTiMo
// backend and the core model.
//
// The backend is loose about types: ids arrive as numbers or strings,
// amounts as numbers or localized strings, and the category as a plain
// name, an id or an embedded object. Decoding never fails on a bad field
// value; it is kept as an invalid Amount or an empty Date so that the
// ledger can report it.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"notimo/internal/core"
)

var ErrNotObject = errors.New("transaction payload is not a JSON object")

type fields map[string]json.RawMessage

func (f fields) has(key string) bool {
	raw, ok := f[key]
	return ok && !isNull(raw)
}

// DecodeTransactions decodes a list of transactions. Both a bare array and
// a paginated {"results": [...]} envelope are accepted.
func DecodeTransactions(data []byte, loc *time.Location) ([]core.Transaction, error) {
	var items []json.RawMessage
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var page struct {
			Results []json.RawMessage `json:"results"`
		}
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return nil, fmt.Errorf("decode transaction page: %w", err)
		}
		items = page.Results
	} else if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}

	out := make([]core.Transaction, 0, len(items))
	for i, item := range items {
		tx, err := DecodeTransaction(item, loc)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		out = append(out, tx)
	}
	return out, nil
}

// DecodeTransaction decodes one transaction object.
func DecodeTransaction(data []byte, loc *time.Location) (core.Transaction, error) {
	var f fields
	if err := json.Unmarshal(data, &f); err != nil || f == nil {
		return core.Transaction{}, ErrNotObject
	}

	tx := core.Transaction{
		ID:        text(f["id"]),
		LocalID:   localID(f["local_id"]),
		Position:  position(f),
		Module:    module(f),
		Category:  categoryRef(f),
		CreatedAt: date(firstOf(f, "created_at", "date"), loc),
		Status:    core.Status(strings.ToLower(text(f["statut"]))),
	}

	switch {
	case f.has("montant_total"):
		tx.FlatAmount = amount(f["montant_total"])
	case f.has("montant"):
		tx.FlatAmount = amount(f["montant"])
	}

	var lines []fields
	if f.has("libelles") {
		if err := json.Unmarshal(f["libelles"], &lines); err != nil {
			tx.Malformed = append(tx.Malformed, core.Diagnostic{
				TransactionID: tx.ID,
				LineIndex:     -1,
				Field:         core.FieldLineItems,
				Raw:           string(f["libelles"]),
				Err:           err,
			})
		}
	}
	for _, lf := range lines {
		tx.LineItems = append(tx.LineItems, core.LineItem{
			Name:    strings.TrimSpace(text(lf["nom"])),
			Amount:  amount(lf["montant"]),
			Date:    date(text(lf["date"]), loc),
			Comment: text(lf["commentaire"]),
		})
	}

	// older records carry a single libelle next to a flat montant
	if len(tx.LineItems) == 0 {
		if name := strings.TrimSpace(text(f["libelle"])); name != "" {
			tx.LineItems = []core.LineItem{{
				Name:    name,
				Amount:  tx.FlatAmount,
				Date:    tx.CreatedAt,
				Comment: text(f["commentaire"]),
			}}
		}
	}
	return tx, nil
}

func position(f fields) core.Position {
	raw := firstOf(f, "position", "type")
	if raw == "" {
		return ""
	}
	if p, err := core.ParsePosition(raw); err == nil {
		return p
	}
	return core.Position(strings.ToLower(raw))
}

func module(f fields) core.Module {
	raw := firstOf(f, "volet", "module")
	if raw == "" {
		return core.Tracking
	}
	if m, err := core.ParseModule(raw); err == nil {
		return m
	}
	return core.Module(strings.ToLower(raw))
}

// categoryRef prefers a usable categorie field and falls back to
// categorie_detail. A bare numeric id carries no name.
func categoryRef(f fields) core.CategoryRef {
	if ref := categoryFrom(f["categorie"]); ref != nil {
		return ref
	}
	return categoryFrom(f["categorie_detail"])
}

func categoryFrom(raw json.RawMessage) core.CategoryRef {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || isNull(raw) {
		return nil
	}
	switch raw[0] {
	case '"':
		var s string
		if json.Unmarshal(raw, &s) == nil && strings.TrimSpace(s) != "" {
			return core.NamedCategory(s)
		}
	case '{':
		var cf fields
		if json.Unmarshal(raw, &cf) == nil {
			return core.DetailedCategory(categoryFromFields(cf))
		}
	}
	return nil
}

func amount(raw json.RawMessage) core.Amount {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || isNull(raw) {
		return core.Amount{}
	}
	return core.ParseAmount(text(raw))
}

// date keeps an unparseable value on the returned Date so it surfaces as a
// diagnostic later.
func date(s string, loc *time.Location) core.Date {
	d, _ := core.ParseDate(s, loc)
	return d
}

func localID(raw json.RawMessage) *int64 {
	s := text(raw)
	if s == "" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

func firstOf(f fields, keys ...string) string {
	for _, k := range keys {
		if s := strings.TrimSpace(text(f[k])); s != "" {
			return s
		}
	}
	return ""
}

// text renders strings, numbers and booleans as plain text; anything else
// is empty.
func text(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || isNull(raw) {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return s
		}
		return ""
	case '{', '[':
		return ""
	}
	return string(raw)
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
