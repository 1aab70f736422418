// Package remote talks to the NoTiMo REST backend.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"notimo/internal/core"
	"notimo/internal/log"
	"notimo/internal/source"
	"notimo/internal/wire"
)

const maxErrorBody = 4 << 10

// APIError is returned for non-2xx responses.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

type Config struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	Location   *time.Location
	HTTPClient *http.Client
	Logger     *log.Logger
}

type Client struct {
	base   *url.URL
	token  string
	http   *http.Client
	loc    *time.Location
	logger *log.Logger
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("remote: base url is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("remote: parse base url: %w", err)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default(log.ComponentRemote)
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &Client{base: base, token: cfg.Token, http: hc, loc: loc, logger: logger}, nil
}

// ListTransactions fetches the module's transactions. The volet query
// parameter is advisory, so results are filtered again locally.
func (c *Client) ListTransactions(ctx context.Context, module core.Module) ([]core.Transaction, error) {
	q := url.Values{}
	if module != "" {
		q.Set("volet", module.Wire())
	}
	body, err := c.do(ctx, http.MethodGet, "transactions/", q, nil)
	if err != nil {
		return nil, err
	}
	txs, err := wire.DecodeTransactions(body, c.loc)
	if err != nil {
		return nil, err
	}
	if module == "" {
		return txs, nil
	}
	out := txs[:0]
	for _, tx := range txs {
		if tx.Module == module {
			out = append(out, tx)
		}
	}
	c.logger.DebugContext(ctx, "Fetched transactions",
		log.FieldModule, string(module), log.FieldCount, len(out))
	return out, nil
}

func (c *Client) CreateTransaction(ctx context.Context, d core.Draft) (core.Transaction, error) {
	if err := d.Validate(); err != nil {
		return core.Transaction{}, err
	}
	body, err := c.do(ctx, http.MethodPost, "transactions/", nil, wire.EncodeDraft(d, c.loc))
	if err != nil {
		return core.Transaction{}, err
	}
	return wire.DecodeTransaction(body, c.loc)
}

func (c *Client) DeleteTransaction(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "transactions/"+url.PathEscape(id)+"/", nil, nil)
	return err
}

func (c *Client) ListCategories(ctx context.Context, position core.Position) ([]core.Category, error) {
	q := url.Values{}
	if position != "" {
		q.Set("type_categorie", position.Wire())
	}
	body, err := c.do(ctx, http.MethodGet, "categories/", q, nil)
	if err != nil {
		return nil, err
	}
	cats, err := wire.DecodeCategories(body, position)
	if err != nil {
		return nil, err
	}
	return source.FilterCategories(cats, position), nil
}

func (c *Client) CreateCategory(ctx context.Context, cat core.Category) (core.Category, error) {
	if err := cat.Validate(); err != nil {
		return core.Category{}, err
	}
	body, err := c.do(ctx, http.MethodPost, "categories/", nil, wire.EncodeCategory(cat))
	if err != nil {
		return core.Category{}, err
	}
	created, err := wire.DecodeCategory(body)
	if err != nil {
		return core.Category{}, err
	}
	if created.Type == "" {
		created.Type = cat.Type
	}
	return created.WithDefaults(), nil
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, payload any) ([]byte, error) {
	u := c.base.JoinPath(path)
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("remote: encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("remote: read %s %s: %w", method, path, err)
	}
	c.logger.DebugContext(ctx, "Backend call",
		log.FieldMethod, method,
		log.FieldPath, u.Path,
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode == http.StatusNotFound && method == http.MethodDelete {
		return nil, source.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		return nil, &APIError{Method: method, Path: u.Path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return data, nil
}

var _ source.Backend = (*Client)(nil)
