package wire

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"notimo/internal/core"
)

// Montant marshals a valid amount as a JSON number and an invalid one as
// its raw text, so a malformed value stays malformed across a round trip.
type Montant struct {
	core.Amount
}

func (m Montant) MarshalJSON() ([]byte, error) {
	if v, err := m.Value(); err == nil {
		return []byte(v.String()), nil
	}
	if m.Raw() == "" {
		return []byte("null"), nil
	}
	return json.Marshal(m.Raw())
}

func (m *Montant) UnmarshalJSON(b []byte) error {
	m.Amount = amount(b)
	return nil
}

// LinePayload is one libellé of a transaction or a creation payload.
type LinePayload struct {
	Nom         string  `json:"nom"`
	Montant     Montant `json:"montant"`
	Date        string  `json:"date,omitempty"`
	Commentaire string  `json:"commentaire,omitempty"`
}

// DraftPayload is the body of POST /transactions/.
type DraftPayload struct {
	Position    string        `json:"position"`
	CategorieID string        `json:"categorie_id"`
	Volet       string        `json:"volet"`
	Libelles    []LinePayload `json:"libelles"`
	Commentaire string        `json:"commentaire,omitempty"`
}

// EncodeDraft renders a draft. Line dates are written as YYYY-MM-DD in loc.
func EncodeDraft(d core.Draft, loc *time.Location) DraftPayload {
	p := DraftPayload{
		Position:    d.Position.Wire(),
		CategorieID: strings.TrimSpace(d.CategoryID),
		Volet:       d.Module.Wire(),
		Libelles:    make([]LinePayload, 0, len(d.LineItems)),
		Commentaire: d.Comment,
	}
	for _, li := range d.LineItems {
		p.Libelles = append(p.Libelles, LinePayload{
			Nom:         strings.TrimSpace(li.Name),
			Montant:     Montant{li.Amount},
			Date:        li.Date.ISODay(loc),
			Commentaire: li.Comment,
		})
	}
	return p
}

// DecodeDraft reads a creation payload. Field values are not validated
// here; call Draft.Validate.
func DecodeDraft(data []byte, loc *time.Location) (core.Draft, error) {
	var f fields
	if err := json.Unmarshal(data, &f); err != nil || f == nil {
		return core.Draft{}, fmt.Errorf("decode draft: not a JSON object")
	}

	d := core.Draft{
		Position:   position(f),
		CategoryID: firstOf(f, "categorie_id", "category_id"),
		Comment:    text(f["commentaire"]),
	}
	// a missing volet must fail validation rather than default to tracking
	if firstOf(f, "volet", "module") != "" {
		d.Module = module(f)
	}

	var lines []fields
	if f.has("libelles") {
		if err := json.Unmarshal(f["libelles"], &lines); err != nil {
			return core.Draft{}, fmt.Errorf("decode draft libelles: %w", err)
		}
	}
	for _, lf := range lines {
		d.LineItems = append(d.LineItems, core.LineItem{
			Name:    strings.TrimSpace(text(lf["nom"])),
			Amount:  amount(lf["montant"]),
			Date:    date(text(lf["date"]), loc),
			Comment: text(lf["commentaire"]),
		})
	}
	return d, nil
}

// TransactionPayload is the canonical shape this service writes
// transactions in, for seed files and its own JSON API.
type TransactionPayload struct {
	ID           string        `json:"id"`
	LocalID      *int64        `json:"local_id,omitempty"`
	Position     string        `json:"position"`
	Volet        string        `json:"volet"`
	Categorie    any           `json:"categorie,omitempty"`
	Libelles     []LinePayload `json:"libelles,omitempty"`
	MontantTotal Montant       `json:"montant_total"`
	CreatedAt    string        `json:"created_at,omitempty"`
	Statut       string        `json:"statut,omitempty"`
}

// EncodeTransaction renders tx so that DecodeTransaction reads it back.
// MontantTotal carries the effective amount, or the raw flat amount when
// it is malformed.
func EncodeTransaction(tx core.Transaction) TransactionPayload {
	total, _ := tx.EffectiveAmount()
	p := TransactionPayload{
		ID:           tx.ID,
		LocalID:      tx.LocalID,
		Position:     string(tx.Position),
		Volet:        string(tx.Module),
		MontantTotal: Montant{core.AmountOf(total)},
		Statut:       string(tx.Status),
	}
	if tx.Position.Valid() {
		p.Position = tx.Position.Wire()
	}
	if tx.Module.Valid() {
		p.Volet = tx.Module.Wire()
	}
	if len(tx.LineItems) == 0 && !tx.FlatAmount.Valid() {
		p.MontantTotal = Montant{tx.FlatAmount}
	}
	if !tx.CreatedAt.IsEmpty() {
		p.CreatedAt = tx.CreatedAt.Format(time.RFC3339)
	}

	switch ref := tx.Category.(type) {
	case core.NamedCategory:
		p.Categorie = string(ref)
	case core.DetailedCategory:
		p.Categorie = EncodeCategory(ref.Details())
	}

	for _, li := range tx.LineItems {
		lp := LinePayload{
			Nom:         li.Name,
			Montant:     Montant{li.Amount},
			Commentaire: li.Comment,
		}
		if !li.Date.IsEmpty() {
			lp.Date = li.Date.Format(time.RFC3339)
		}
		p.Libelles = append(p.Libelles, lp)
	}
	return p
}

func EncodeTransactions(txs []core.Transaction) []TransactionPayload {
	out := make([]TransactionPayload, len(txs))
	for i, tx := range txs {
		out[i] = EncodeTransaction(tx)
	}
	return out
}
