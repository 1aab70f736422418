// Package storage keeps transactions and categories in a local SQLite
// database. The schema is managed by embedded migrations.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"notimo/internal/core"
	"notimo/internal/log"
	"notimo/internal/source"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db     *sql.DB
	loc    *time.Location
	now    func() time.Time
	logger *log.Logger
}

var _ source.Backend = (*SQLiteRepository)(nil)

type Option func(*SQLiteRepository)

func WithLocation(loc *time.Location) Option {
	return func(r *SQLiteRepository) {
		if loc != nil {
			r.loc = loc
		}
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(r *SQLiteRepository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *SQLiteRepository) { r.now = now }
}

func NewSQLiteRepository(dbPath string, opts ...Option) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// one writer at a time; sqlite serialises them anyway
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &SQLiteRepository{
		db:     db,
		loc:    time.Local,
		now:    time.Now,
		logger: log.Default(log.ComponentStorage),
	}
	for _, o := range opts {
		o(r)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	r.logger.Info("SQLite database ready", "path", dbPath, "schema_version", version)
	return r, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const selectTransactions = `
SELECT t.id, t.local_id, t.module, t.position, t.category_id, t.category_name,
       COALESCE(c.icon, ''), COALESCE(c.color, ''), COALESCE(c.predefined, 0),
       t.flat_amount, t.created_at, t.status
FROM transactions t
LEFT JOIN categories c ON CAST(c.id AS TEXT) = t.category_id
WHERE (? = '' OR t.module = ?)
ORDER BY t.rowid`

const selectLineItems = `
SELECT l.transaction_id, l.name, l.amount, l.date, l.comment
FROM line_items l
JOIN transactions t ON t.id = l.transaction_id
WHERE (? = '' OR t.module = ?)
ORDER BY l.transaction_id, l.idx`

// ListTransactions returns the module's transactions in insertion order.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, module core.Module) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, selectTransactions, string(module), string(module))
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	index := map[string]int{}
	for rows.Next() {
		var (
			tx                    core.Transaction
			local                 sql.NullInt64
			mod, pos, catID, name string
			icon, color           string
			predefined            int64
			flat                  sql.NullString
			created, status       string
		)
		if err := rows.Scan(&tx.ID, &local, &mod, &pos, &catID, &name,
			&icon, &color, &predefined, &flat, &created, &status); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if local.Valid {
			n := local.Int64
			tx.LocalID = &n
		}
		tx.Module = core.Module(mod)
		tx.Position = core.Position(pos)
		tx.Status = core.Status(status)
		tx.FlatAmount = amountFromColumn(flat)
		tx.CreatedAt = r.date(created)
		switch {
		case catID != "":
			tx.Category = core.DetailedCategory(core.Category{
				ID: catID, Name: name, Icon: icon, Color: color,
				Type: tx.Position, Predefined: predefined != 0,
			})
		case name != "":
			tx.Category = core.NamedCategory(name)
		}
		index[tx.ID] = len(out)
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}

	lines, err := r.db.QueryContext(ctx, selectLineItems, string(module), string(module))
	if err != nil {
		return nil, fmt.Errorf("query line items: %w", err)
	}
	defer lines.Close()
	for lines.Next() {
		var (
			txID, date string
			li         core.LineItem
			amount     sql.NullString
		)
		if err := lines.Scan(&txID, &li.Name, &amount, &date, &li.Comment); err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		i, ok := index[txID]
		if !ok {
			continue
		}
		li.Amount = amountFromColumn(amount)
		li.Date = r.date(date)
		out[i].LineItems = append(out[i].LineItems, li)
	}
	if err := lines.Err(); err != nil {
		return nil, fmt.Errorf("iterate line items: %w", err)
	}

	r.logger.DebugContext(ctx, "Transactions loaded",
		log.FieldModule, string(module), log.FieldCount, len(out))
	return out, nil
}

// CreateTransaction stores a validated draft under a fresh uuid and the
// next local id.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, d core.Draft) (core.Transaction, error) {
	if err := d.Validate(); err != nil {
		return core.Transaction{}, err
	}
	cat, err := r.category(ctx, d.CategoryID)
	if err != nil {
		return core.Transaction{}, err
	}

	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("begin: %w", err)
	}
	defer dbtx.Rollback()

	var local int64
	if err := dbtx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(local_id), 0) + 1 FROM transactions`).Scan(&local); err != nil {
		return core.Transaction{}, fmt.Errorf("next local id: %w", err)
	}

	tx := source.BuildTransaction(uuid.NewString(), d, cat, core.Date{Time: r.now().In(r.loc)})
	tx.LocalID = &local
	if err := insertTransaction(ctx, dbtx, tx, d.Comment); err != nil {
		return core.Transaction{}, err
	}
	if err := dbtx.Commit(); err != nil {
		return core.Transaction{}, fmt.Errorf("commit: %w", err)
	}

	r.logger.InfoContext(ctx, "Transaction saved to SQLite",
		log.FieldTransactionID, tx.ID,
		log.FieldModule, string(tx.Module),
		log.FieldCount, len(tx.LineItems))
	return tx, nil
}

// Import inserts already built transactions, keeping their ids. Rows whose
// id is already stored are left untouched. It returns how many were added.
func (r *SQLiteRepository) Import(ctx context.Context, txs []core.Transaction) (int, error) {
	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer dbtx.Rollback()

	added := 0
	for _, tx := range txs {
		if tx.ID == "" {
			continue
		}
		var exists int
		err := dbtx.QueryRowContext(ctx, `SELECT 1 FROM transactions WHERE id = ?`, tx.ID).Scan(&exists)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("lookup %s: %w", tx.ID, err)
		}
		if err := insertTransaction(ctx, dbtx, tx, ""); err != nil {
			return 0, err
		}
		added++
	}
	if err := dbtx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return added, nil
}

// Count returns the number of stored transactions.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer dbtx.Rollback()

	if _, err := dbtx.ExecContext(ctx, `DELETE FROM line_items WHERE transaction_id = ?`, id); err != nil {
		return fmt.Errorf("delete line items of %s: %w", id, err)
	}
	res, err := dbtx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return source.ErrNotFound
	}
	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	r.logger.InfoContext(ctx, "Transaction deleted from SQLite", log.FieldTransactionID, id)
	return nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, position core.Position) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, type, icon, color, predefined FROM categories
		 WHERE (? = '' OR type = ?) ORDER BY id`, string(position), string(position))
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}

// CreateCategory adds c, or returns the stored category with the same name
// (case-insensitive) and position.
func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	c = c.WithDefaults()
	c.Name = strings.TrimSpace(c.Name)

	existing, err := scanCategory(r.db.QueryRowContext(ctx,
		`SELECT id, name, type, icon, color, predefined FROM categories
		 WHERE type = ? AND name = ? COLLATE NOCASE`, string(c.Type), c.Name))
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, err
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (name, type, icon, color, predefined) VALUES (?, ?, ?, ?, ?)`,
		c.Name, string(c.Type), c.Icon, c.Color, boolInt(c.Predefined))
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Category{}, fmt.Errorf("category id: %w", err)
	}
	c.ID = strconv.FormatInt(id, 10)

	r.logger.InfoContext(ctx, "Category created", "category_id", c.ID, "name", c.Name)
	return c, nil
}

func (r *SQLiteRepository) category(ctx context.Context, id string) (core.Category, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil {
		return core.Category{}, source.ErrUnknownCategory
	}
	c, err := scanCategory(r.db.QueryRowContext(ctx,
		`SELECT id, name, type, icon, color, predefined FROM categories WHERE id = ?`, n))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, source.ErrUnknownCategory
	}
	return c, err
}

func (r *SQLiteRepository) date(s string) core.Date {
	d, _ := core.ParseDate(s, r.loc)
	return d
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCategory(s rowScanner) (core.Category, error) {
	var (
		c          core.Category
		id         int64
		typ        string
		predefined int64
	)
	if err := s.Scan(&id, &c.Name, &typ, &c.Icon, &c.Color, &predefined); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Category{}, err
		}
		return core.Category{}, fmt.Errorf("scan category: %w", err)
	}
	c.ID = strconv.FormatInt(id, 10)
	c.Type = core.Position(typ)
	c.Predefined = predefined != 0
	return c.WithDefaults(), nil
}

func insertTransaction(ctx context.Context, dbtx *sql.Tx, tx core.Transaction, comment string) error {
	var local sql.NullInt64
	if tx.LocalID != nil {
		local = sql.NullInt64{Int64: *tx.LocalID, Valid: true}
	}
	var catID, catName string
	switch ref := tx.Category.(type) {
	case core.DetailedCategory:
		catID, catName = ref.ID, ref.Name
	case core.NamedCategory:
		catName = string(ref)
	}

	_, err := dbtx.ExecContext(ctx,
		`INSERT INTO transactions (id, local_id, module, position, category_id, category_name,
		                           flat_amount, created_at, status, comment)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, local, string(tx.Module), string(tx.Position), catID, catName,
		amountColumn(tx.FlatAmount), dateColumn(tx.CreatedAt), string(tx.Status), comment)
	if err != nil {
		return fmt.Errorf("insert transaction %s: %w", tx.ID, err)
	}

	for i, li := range tx.LineItems {
		_, err := dbtx.ExecContext(ctx,
			`INSERT INTO line_items (transaction_id, idx, name, amount, date, comment)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			tx.ID, i, li.Name, amountColumn(li.Amount), dateColumn(li.Date), li.Comment)
		if err != nil {
			return fmt.Errorf("insert line item %d of %s: %w", i, tx.ID, err)
		}
	}
	return nil
}

// amountColumn keeps malformed input verbatim so that reading it back
// reports the same diagnostic. Missing amounts are NULL.
func amountColumn(a core.Amount) sql.NullString {
	if v, err := a.Value(); err == nil {
		return sql.NullString{String: v.String(), Valid: true}
	}
	if a.Raw() == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: a.Raw(), Valid: true}
}

func amountFromColumn(s sql.NullString) core.Amount {
	if !s.Valid {
		return core.Amount{}
	}
	return core.ParseAmount(s.String)
}

func dateColumn(d core.Date) string {
	if d.IsEmpty() {
		return ""
	}
	return d.Format(time.RFC3339Nano)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
