// Package notion is a typed client for the Notion REST API: database queries,
// block children, page reads and writes. All requests share one rate limiter.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/pders01/guide-sync/internal/config"
	"github.com/pders01/guide-sync/internal/logger"
)

const (
	// DefaultURL is the public API endpoint
	DefaultURL = "https://api.notion.com/v1"
	// DefaultVersion pins the API revision the property shapes are written against
	DefaultVersion = "2022-06-28"
	maxPageSize    = 100
)

var (
	ErrNotFound    = errors.New("notion: not found")
	ErrWriteFailed = errors.New("notion: write failed")
)

// APIError is a non-2xx response
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("notion API error %d", e.Status)
	}
	return fmt.Sprintf("notion API error %d (%s): %s", e.Status, e.Code, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// Client wraps the Notion HTTP API
type Client struct {
	baseURL  string
	token    string
	version  string
	pageSize int
	http     *http.Client
	limiter  *rate.Limiter
	log      *logger.Logger
}

// NewClient creates a client from the notion config section. A zero
// request interval disables spacing.
func NewClient(cfg config.Notion, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultURL
	}
	version := cfg.Version
	if version == "" {
		version = DefaultVersion
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	limit := rate.Inf
	if cfg.RequestInterval > 0 {
		limit = rate.Every(cfg.RequestInterval)
	}

	return &Client{
		baseURL:  base,
		token:    cfg.Token,
		version:  version,
		pageSize: pageSize,
		http:     &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(limit, 1),
		log:      log,
	}
}

// QueryDatabasePage fetches one page of query results starting at cursor
func (c *Client) QueryDatabasePage(ctx context.Context, dbID string, q Query, cursor string) (*QueryResult, error) {
	q.StartCursor = cursor
	if q.PageSize <= 0 {
		q.PageSize = c.pageSize
	}
	var res QueryResult
	if err := c.do(ctx, http.MethodPost, "/databases/"+url.PathEscape(dbID)+"/query", q, &res); err != nil {
		return nil, fmt.Errorf("failed to query database %s: %w", dbID, err)
	}
	return &res, nil
}

// QueryDatabase returns every page matching q, in response order
func (c *Client) QueryDatabase(ctx context.Context, dbID string, q Query) ([]Page, error) {
	var all []Page
	cursor := ""
	for {
		res, err := c.QueryDatabasePage(ctx, dbID, q, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, res.Results...)
		if !res.HasMore || res.NextCursor == nil || *res.NextCursor == "" {
			break
		}
		cursor = *res.NextCursor
	}
	return all, nil
}

// FetchChildrenPage fetches one page of a block's children
func (c *Client) FetchChildrenPage(ctx context.Context, blockID, cursor string) (*ChildrenResult, error) {
	params := url.Values{}
	params.Set("page_size", strconv.Itoa(c.pageSize))
	if cursor != "" {
		params.Set("start_cursor", cursor)
	}
	var res ChildrenResult
	path := "/blocks/" + url.PathEscape(blockID) + "/children?" + params.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, fmt.Errorf("failed to fetch children of %s: %w", blockID, err)
	}
	return &res, nil
}

// FetchChildren returns all direct children of a block
func (c *Client) FetchChildren(ctx context.Context, blockID string) ([]Block, error) {
	var all []Block
	cursor := ""
	for {
		res, err := c.FetchChildrenPage(ctx, blockID, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, res.Results...)
		if !res.HasMore || res.NextCursor == nil || *res.NextCursor == "" {
			break
		}
		cursor = *res.NextCursor
	}
	return all, nil
}

// FetchTree returns a block's children and, for toggles, their nested children
func (c *Client) FetchTree(ctx context.Context, blockID string) ([]Block, error) {
	blocks, err := c.FetchChildren(ctx, blockID)
	if err != nil {
		return nil, err
	}
	for i := range blocks {
		if blocks[i].Type != "toggle" || !blocks[i].HasChildren {
			continue
		}
		children, err := c.FetchTree(ctx, blocks[i].ID)
		if err != nil {
			return nil, err
		}
		blocks[i].Children = children
	}
	return blocks, nil
}

// FetchPage reads a single page. A missing page returns an error matching ErrNotFound.
func (c *Client) FetchPage(ctx context.Context, pageID string) (*Page, error) {
	var page Page
	if err := c.do(ctx, http.MethodGet, "/pages/"+url.PathEscape(pageID), nil, &page); err != nil {
		return nil, fmt.Errorf("failed to fetch page %s: %w", pageID, err)
	}
	return &page, nil
}

// PatchPage updates properties of a page. Failures wrap ErrWriteFailed.
func (c *Client) PatchPage(ctx context.Context, pageID string, fields Fields) (*Page, error) {
	body := map[string]any{"properties": fields}
	var page Page
	if err := c.do(ctx, http.MethodPatch, "/pages/"+url.PathEscape(pageID), body, &page); err != nil {
		return nil, fmt.Errorf("%w: page %s: %w", ErrWriteFailed, pageID, err)
	}
	return &page, nil
}

// CreatePage adds a row to a database, optionally with body blocks
func (c *Client) CreatePage(ctx context.Context, dbID string, fields Fields, children []Block) (*Page, error) {
	if len(children) > maxPageSize {
		return nil, fmt.Errorf("%w: at most %d children per request, got %d", ErrWriteFailed, maxPageSize, len(children))
	}
	body := map[string]any{
		"parent":     map[string]string{"database_id": dbID},
		"properties": fields,
	}
	if len(children) > 0 {
		body["children"] = children
	}
	var page Page
	if err := c.do(ctx, http.MethodPost, "/pages", body, &page); err != nil {
		return nil, fmt.Errorf("%w: create in %s: %w", ErrWriteFailed, dbID, err)
	}
	return &page, nil
}

// RetrieveDatabase reads a database's property schema
func (c *Client) RetrieveDatabase(ctx context.Context, dbID string) (*Database, error) {
	var db Database
	if err := c.do(ctx, http.MethodGet, "/databases/"+url.PathEscape(dbID), nil, &db); err != nil {
		return nil, fmt.Errorf("failed to retrieve database %s: %w", dbID, err)
	}
	return &db, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", c.version)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("notion request failed", "method", method, "path", path, "error", err)
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		apiErr.Status = resp.StatusCode
		if resp.StatusCode != http.StatusNotFound {
			c.log.Warn("notion API error", "method", method, "path", path, "status", resp.StatusCode, "code", apiErr.Code)
		}
		return apiErr
	}

	c.log.Debug("notion request", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
