// Package google stores transactions in a Google Sheets spreadsheet, one
// row per line item.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"notimo/internal/core"
	"notimo/internal/log"
	"notimo/internal/source"
)

const (
	DefaultTransactionsSheet = "Transactions"
	DefaultCategoriesSheet   = "Categories"
)

var errNoService = errors.New("sheets service not initialized")

type Config struct {
	SpreadsheetID     string
	TransactionsSheet string
	CategoriesSheet   string
	// CredentialsJSON takes precedence over CredentialsFile.
	CredentialsJSON string
	CredentialsFile string
	// OAuth is used instead of the service account when fully set.
	OAuth    OAuthCredentials
	Location *time.Location
	Logger   *log.Logger
}

type Client struct {
	svc               *gsheet.Service
	spreadsheetID     string
	transactionsSheet string
	categoriesSheet   string
	loc               *time.Location
	now               func() time.Time
	logger            *log.Logger

	// serialises read-modify-write sequences
	mu sync.Mutex
}

var _ source.Backend = (*Client)(nil)

// New creates a Sheets client authenticated with OAuth user credentials
// or a service account. GOOGLE_APPLICATION_CREDENTIALS is used when the
// config names neither.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default(log.ComponentSheets)
	}

	svc, err := newSheetsService(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(svc, cfg, logger), nil
}

func newClient(svc *gsheet.Service, cfg Config, logger *log.Logger) *Client {
	c := &Client{
		svc:               svc,
		spreadsheetID:     strings.TrimSpace(cfg.SpreadsheetID),
		transactionsSheet: strings.TrimSpace(cfg.TransactionsSheet),
		categoriesSheet:   strings.TrimSpace(cfg.CategoriesSheet),
		loc:               cfg.Location,
		now:               time.Now,
		logger:            logger,
	}
	if c.transactionsSheet == "" {
		c.transactionsSheet = DefaultTransactionsSheet
	}
	if c.categoriesSheet == "" {
		c.categoriesSheet = DefaultCategoriesSheet
	}
	if c.loc == nil {
		c.loc = time.Local
	}
	return c
}

func newSheetsService(ctx context.Context, cfg Config, logger *log.Logger) (*gsheet.Service, error) {
	if cfg.OAuth.configured() {
		ts, err := oauthTokenSource(ctx, cfg.OAuth)
		if err != nil {
			return nil, err
		}
		logger.InfoContext(ctx, "Creating Google Sheets service", "auth", "oauth")
		svc, err := gsheet.NewService(ctx, goption.WithTokenSource(ts))
		if err != nil {
			return nil, fmt.Errorf("create sheets service: %w", err)
		}
		return svc, nil
	}

	inline := strings.TrimSpace(cfg.CredentialsJSON)
	file := strings.TrimSpace(cfg.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentials []byte
	switch {
	case inline != "":
		credentials = []byte(inline)
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentials = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	logger.InfoContext(ctx, "Creating Google Sheets service",
		"auth", "service_account",
		"credentials_size", len(credentials),
		"scope", gsheet.SpreadsheetsScope)

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentials),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

func (c *Client) ListTransactions(ctx context.Context, module core.Module) ([]core.Transaction, error) {
	values, err := c.read(ctx, c.transactionsSheet, "A:L")
	if err != nil {
		return nil, err
	}
	txs := parseTransactions(values, c.loc)
	if module == "" {
		return txs, nil
	}
	out := txs[:0]
	for _, tx := range txs {
		if tx.Module == module {
			out = append(out, tx)
		}
	}
	return out, nil
}

// CreateTransaction appends one row per line item.
func (c *Client) CreateTransaction(ctx context.Context, d core.Draft) (core.Transaction, error) {
	if err := d.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return core.Transaction{}, errNoService
	}

	cats, err := c.ListCategories(ctx, "")
	if err != nil {
		return core.Transaction{}, err
	}
	cat, ok := findCategory(cats, d.CategoryID)
	if !ok {
		return core.Transaction{}, source.ErrUnknownCategory
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	values, err := c.read(ctx, c.transactionsSheet, "A:L")
	if err != nil {
		return core.Transaction{}, err
	}
	tx := source.BuildTransaction(uuid.NewString(), d, cat, core.Date{Time: c.now().In(c.loc)})
	local := nextLocalID(parseTransactions(values, c.loc))
	tx.LocalID = &local

	rows := transactionRows(tx, d.Comment, c.loc)
	if len(values) == 0 {
		rows = append([][]any{toAny(transactionHeaders)}, rows...)
	}
	if err := c.append(ctx, c.transactionsSheet, "A:L", rows); err != nil {
		return core.Transaction{}, err
	}
	c.logger.InfoContext(ctx, "Transaction appended",
		log.FieldTransactionID, tx.ID, log.FieldCount, len(tx.LineItems))
	return tx, nil
}

// DeleteTransaction removes every row of the transaction.
func (c *Client) DeleteTransaction(ctx context.Context, id string) error {
	if c.svc == nil {
		return errNoService
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	values, err := c.read(ctx, c.transactionsSheet, "A:L")
	if err != nil {
		return err
	}
	spans := rowSpans(values, id)
	if len(spans) == 0 {
		return source.ErrNotFound
	}

	sheetID, err := c.sheetID(ctx, c.transactionsSheet)
	if err != nil {
		return err
	}
	reqs := make([]*gsheet.Request, 0, len(spans))
	for _, s := range spans {
		reqs = append(reqs, &gsheet.Request{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: s.start,
					EndIndex:   s.end,
				},
			},
		})
	}
	_, err = c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{Requests: reqs}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("delete rows of %s: %w", id, err)
	}
	return nil
}

// ListCategories reads the categories sheet, falling back to the defaults
// when it is empty.
func (c *Client) ListCategories(ctx context.Context, position core.Position) ([]core.Category, error) {
	values, err := c.read(ctx, c.categoriesSheet, "A:F")
	if err != nil {
		return nil, err
	}
	cats := parseCategories(values)
	if len(cats) == 0 {
		cats = source.DefaultCategories()
	}
	return source.FilterCategories(cats, position), nil
}

func (c *Client) CreateCategory(ctx context.Context, cat core.Category) (core.Category, error) {
	if err := cat.Validate(); err != nil {
		return core.Category{}, err
	}
	if c.svc == nil {
		return core.Category{}, errNoService
	}
	cat = cat.WithDefaults()
	cat.Name = strings.TrimSpace(cat.Name)

	c.mu.Lock()
	defer c.mu.Unlock()

	values, err := c.read(ctx, c.categoriesSheet, "A:F")
	if err != nil {
		return core.Category{}, err
	}
	existing := parseCategories(values)
	for _, e := range existing {
		if strings.EqualFold(e.Name, cat.Name) && e.Type == cat.Type {
			return e, nil
		}
	}
	if cat.ID == "" {
		cat.ID = nextCategoryID(existing)
	}

	rows := [][]any{categoryRow(cat)}
	if len(values) == 0 {
		rows = append([][]any{toAny(categoryHeaders)}, rows...)
	}
	if err := c.append(ctx, c.categoriesSheet, "A:F", rows); err != nil {
		return core.Category{}, err
	}
	return cat, nil
}

func (c *Client) read(ctx context.Context, sheet, cols string) ([][]any, error) {
	if c.svc == nil {
		return nil, errNoService
	}
	rng := fmt.Sprintf("%s!%s", sheet, cols)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

func (c *Client) append(ctx context.Context, sheet, cols string, rows [][]any) error {
	rng := fmt.Sprintf("%s!%s", sheet, cols)
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", rng, err)
	}
	return nil
}

func (c *Client) sheetID(ctx context.Context, title string) (int64, error) {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet metadata: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == title {
			return sh.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", title)
}

func findCategory(cats []core.Category, id string) (core.Category, bool) {
	id = strings.TrimSpace(id)
	for _, c := range cats {
		if c.ID == id {
			return c, true
		}
	}
	return core.Category{}, false
}

func nextLocalID(txs []core.Transaction) int64 {
	var next int64 = 1
	for _, tx := range txs {
		if tx.LocalID != nil && *tx.LocalID >= next {
			next = *tx.LocalID + 1
		}
	}
	return next
}

type span struct {
	start, end int64
}

// rowSpans returns the zero-based, end-exclusive row ranges holding id,
// bottom-most first so that deleting them in order keeps indexes valid.
func rowSpans(values [][]any, id string) []span {
	if len(values) == 0 {
		return nil
	}
	col := indexOf(toStrings(values[0]), headerID)
	if col < 0 {
		col = 0
	}
	var spans []span
	for i := 1; i < len(values); i++ {
		if safeGet(toStrings(values[i]), col) != id {
			continue
		}
		if n := len(spans); n > 0 && spans[n-1].end == int64(i) {
			spans[n-1].end++
			continue
		}
		spans = append(spans, span{start: int64(i), end: int64(i) + 1})
	}
	sort.Slice(spans, func(a, b int) bool { return spans[a].start > spans[b].start })
	return spans
}
