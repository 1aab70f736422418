package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"notimo/internal/core"
)

const (
	headerID         = "ID"
	headerLocalID    = "LocalID"
	headerVolet      = "Volet"
	headerPosition   = "Position"
	headerCategoryID = "CategorieID"
	headerCategory   = "Categorie"
	headerLabel      = "Libelle"
	headerAmount     = "Montant"
	headerDate       = "Date"
	headerCreatedAt  = "CreatedAt"
	headerStatus     = "Statut"
	headerComment    = "Commentaire"
	headerName       = "Nom"
	headerType       = "Type"
	headerIcon       = "Icone"
	headerColor      = "Couleur"
	headerPredefined = "Predefinie"
)

var (
	transactionHeaders = []string{
		headerID, headerLocalID, headerVolet, headerPosition, headerCategoryID, headerCategory,
		headerLabel, headerAmount, headerDate, headerCreatedAt, headerStatus, headerComment,
	}
	categoryHeaders = []string{headerID, headerName, headerType, headerIcon, headerColor, headerPredefined}
)

// layout maps header names to column indexes. Sheets without a header row
// are read with the default column order.
type layout struct {
	cols  map[string]int
	start int
}

func newLayout(values [][]any, defaults []string) layout {
	l := layout{cols: map[string]int{}}
	var headers []string
	if len(values) > 0 {
		headers = toStrings(values[0])
	}
	if indexOf(headers, headerID) >= 0 {
		for _, name := range defaults {
			l.cols[name] = indexOf(headers, name)
		}
		l.start = 1
		return l
	}
	for i, name := range defaults {
		l.cols[name] = i
	}
	return l
}

func (l layout) get(row []string, name string) string {
	idx, ok := l.cols[name]
	if !ok {
		return ""
	}
	return safeGet(row, idx)
}

// parseTransactions groups line item rows into transactions by id, keeping
// the order in which ids first appear. Rows without an id are skipped.
func parseTransactions(values [][]any, loc *time.Location) []core.Transaction {
	l := newLayout(values, transactionHeaders)
	index := map[string]int{}
	var out []core.Transaction

	for i := l.start; i < len(values); i++ {
		row := toStrings(values[i])
		id := l.get(row, headerID)
		if id == "" {
			continue
		}
		pos, ok := index[id]
		if !ok {
			pos = len(out)
			index[id] = pos
			out = append(out, headerFields(l, row, id, loc))
		}
		tx := &out[pos]

		amount := core.ParseAmount(l.get(row, headerAmount))
		name := l.get(row, headerLabel)
		if name == "" {
			tx.FlatAmount = amount
			continue
		}
		item := core.LineItem{
			Name:    name,
			Amount:  amount,
			Comment: l.get(row, headerComment),
		}
		item.Date, _ = core.ParseDate(l.get(row, headerDate), loc)
		tx.LineItems = append(tx.LineItems, item)
	}
	return out
}

func headerFields(l layout, row []string, id string, loc *time.Location) core.Transaction {
	tx := core.Transaction{
		ID:     id,
		Module: core.Tracking,
		Status: core.Status(strings.ToLower(l.get(row, headerStatus))),
	}
	if n, err := strconv.ParseInt(l.get(row, headerLocalID), 10, 64); err == nil {
		tx.LocalID = &n
	}
	if raw := l.get(row, headerVolet); raw != "" {
		if m, err := core.ParseModule(raw); err == nil {
			tx.Module = m
		} else {
			tx.Module = core.Module(strings.ToLower(raw))
		}
	}
	if raw := l.get(row, headerPosition); raw != "" {
		if p, err := core.ParsePosition(raw); err == nil {
			tx.Position = p
		} else {
			tx.Position = core.Position(strings.ToLower(raw))
		}
	}
	name := l.get(row, headerCategory)
	switch catID := l.get(row, headerCategoryID); {
	case catID != "":
		tx.Category = core.DetailedCategory(core.Category{ID: catID, Name: name, Type: tx.Position})
	case name != "":
		tx.Category = core.NamedCategory(name)
	}
	tx.CreatedAt, _ = core.ParseDate(l.get(row, headerCreatedAt), loc)
	return tx
}

// transactionRows renders tx as one row per line item, in the default
// column order. comment fills line items that carry none.
func transactionRows(tx core.Transaction, comment string, loc *time.Location) [][]any {
	var local string
	if tx.LocalID != nil {
		local = strconv.FormatInt(*tx.LocalID, 10)
	}
	var catID, catName string
	switch ref := tx.Category.(type) {
	case core.DetailedCategory:
		catID, catName = ref.ID, ref.Name
	case core.NamedCategory:
		catName = string(ref)
	}
	created := ""
	if !tx.CreatedAt.IsEmpty() {
		created = tx.CreatedAt.Format(time.RFC3339)
	}

	row := func(name string, amount core.Amount, day core.Date, note string) []any {
		if note == "" {
			note = comment
		}
		return []any{
			tx.ID, local, tx.Module.Wire(), tx.Position.Wire(), catID, catName,
			name, amountCell(amount), day.ISODay(loc), created, string(tx.Status), note,
		}
	}

	if len(tx.LineItems) == 0 {
		return [][]any{row("", tx.FlatAmount, tx.CreatedAt, "")}
	}
	rows := make([][]any, 0, len(tx.LineItems))
	for _, li := range tx.LineItems {
		rows = append(rows, row(li.Name, li.Amount, li.Date, li.Comment))
	}
	return rows
}

func amountCell(a core.Amount) string {
	if v, err := a.Value(); err == nil {
		return v.String()
	}
	return a.Raw()
}

func parseCategories(values [][]any) []core.Category {
	l := newLayout(values, categoryHeaders)
	var out []core.Category
	seen := map[string]bool{}
	for i := l.start; i < len(values); i++ {
		row := toStrings(values[i])
		name := l.get(row, headerName)
		if name == "" || strings.HasPrefix(name, "#") {
			continue
		}
		c := core.Category{
			ID:    l.get(row, headerID),
			Name:  name,
			Icon:  l.get(row, headerIcon),
			Color: l.get(row, headerColor),
		}
		if p, err := core.ParsePosition(l.get(row, headerType)); err == nil {
			c.Type = p
		}
		c.Predefined, _ = strconv.ParseBool(strings.ToLower(l.get(row, headerPredefined)))
		key := string(c.Type) + "|" + strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c.WithDefaults())
	}
	return out
}

func categoryRow(c core.Category) []any {
	return []any{c.ID, c.Name, c.Type.Wire(), c.Icon, c.Color, strconv.FormatBool(c.Predefined)}
}

func nextCategoryID(cats []core.Category) string {
	max := 0
	for _, c := range cats {
		if n, err := strconv.Atoi(c.ID); err == nil && n > max {
			max = n
		}
	}
	return strconv.Itoa(max + 1)
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
