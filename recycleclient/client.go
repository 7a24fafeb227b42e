package recycleclient

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

	"github.com/rhesis-ai/rhesis-backend/httpx"
	"github.com/rhesis-ai/rhesis-backend/httpx/backoff"
	"github.com/rhesis-ai/rhesis-backend/httpx/policy"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrGone         = errors.New("deleted")
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
)

// APIError is a non-2xx answer of the server
type APIError struct {
	StatusCode int    `json:"-"`
	Detail     string `json:"detail"`
	RestoreURL string `json:"restore_url,omitempty"`
	Message    string `json:"message,omitempty"`
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("recycle api: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("recycle api: %d %s", e.StatusCode, e.Detail)
}

// Is matches the sentinel of the status code
func (e *APIError) Is(target error) bool {
	switch e.StatusCode {
	case http.StatusNotFound:
		return target == ErrNotFound
	case http.StatusGone:
		return target == ErrGone
	case http.StatusBadRequest:
		return target == ErrBadRequest
	case http.StatusUnauthorized:
		return target == ErrUnauthorized
	case http.StatusForbidden:
		return target == ErrForbidden
	case http.StatusConflict:
		return target == ErrConflict
	}
	return false
}

// Client talks to the Recycle API and the entity routes of rhesisd
type Client struct {
	http *httpx.Client
}

// New builds a client for the server at baseURL authenticating with token.
// Requests are retried on transport errors and 5xx, except POSTs.
func New(baseURL, token string, opts ...httpx.ClientOption) *Client {
	defaults := []httpx.ClientOption{
		httpx.WithBaseURL(baseURL),
		httpx.WithHeader("Authorization", "Bearer "+token),
		httpx.WithHeader("Accept", "application/json"),
		httpx.WithRequestTimeout(30 * time.Second),
		httpx.WithRetry(policy.RetryConfig{
			MaxAttempts:    3,
			Backoff:        backoff.NewExponential(),
			OnlyIdempotent: true,
		}),
	}
	return &Client{http: httpx.NewClient(append(defaults, opts...)...)}
}

// Item is an entity as rendered by the server
type Item map[string]any

func (i Item) ID() string {
	id, _ := i["id"].(string)
	return id
}

func (i Item) IsDeleted() bool {
	deleted, _ := i["is_deleted"].(bool)
	return deleted
}

type Page struct {
	Model   string `json:"model"`
	Items   []Item `json:"items"`
	Count   int    `json:"count"`
	Total   int64  `json:"total"`
	Skip    int    `json:"skip"`
	Limit   int    `json:"limit"`
	HasMore bool   `json:"has_more"`
}

type ListOptions struct {
	Skip  int
	Limit int

	// Scope narrows an admin listing to one organization. Nil keeps the
	// caller's organization; a pointer to "" lists every organization.
	Scope *string
}

func (o ListOptions) query() string {
	v := url.Values{}
	if o.Skip > 0 {
		v.Set("skip", strconv.Itoa(o.Skip))
	}
	if o.Limit > 0 {
		v.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Scope != nil {
		v.Set("scope", *o.Scope)
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

type RestoreResult struct {
	Message  string         `json:"message"`
	Item     Item           `json:"item"`
	Cascaded map[string]int `json:"cascaded"`
}

type Outcome struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type Failure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

type BulkResult struct {
	Message  string    `json:"message"`
	Restored []string  `json:"restored"`
	NotFound []string  `json:"not_found"`
	Failed   []Failure `json:"failed"`
	Results  []Outcome `json:"results"`
}

type Counts struct {
	Counts map[string]int64 `json:"counts"`
	Total  int64            `json:"total"`
}

func segment(s string) string {
	return url.PathEscape(s)
}

func (c *Client) call(ctx context.Context, req *httpx.Request, out any) error {
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response of %s %s: %w", req.Method, req.Path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(body, apiErr)
		return apiErr
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response of %s %s: %w", req.Method, req.Path, err)
	}
	return nil
}

// Models lists the entity types of the recycle bin
func (c *Client) Models(ctx context.Context) ([]string, error) {
	var out struct {
		Models []string `json:"models"`
	}
	if err := c.call(ctx, &httpx.Request{Method: http.MethodGet, Path: "/recycle/models"}, &out); err != nil {
		return nil, err
	}
	return out.Models, nil
}

// ListDeleted returns a page of the bin for typ
func (c *Client) ListDeleted(ctx context.Context, typ string, opts ListOptions) (*Page, error) {
	var page Page
	req := &httpx.Request{Method: http.MethodGet, Path: "/recycle/" + segment(typ) + opts.query()}
	if err := c.call(ctx, req, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Restore brings an entity and its cascading children back
func (c *Client) Restore(ctx context.Context, typ, id string) (*RestoreResult, error) {
	var out RestoreResult
	req := &httpx.Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("/recycle/%s/%s/restore", segment(typ), segment(id)),
	}
	if err := c.call(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BulkRestore restores ids independently; per-id outcomes are in the result
func (c *Client) BulkRestore(ctx context.Context, typ string, ids []string) (*BulkResult, error) {
	payload, err := json.Marshal(map[string][]string{"ids": ids})
	if err != nil {
		return nil, err
	}

	var out BulkResult
	req := &httpx.Request{
		Method:  http.MethodPost,
		Path:    "/recycle/bulk-restore/" + segment(typ),
		Headers: httpx.Headers{"Content-Type": "application/json"},
		Body:    bytes.NewReader(payload),
	}
	if err := c.call(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Purge permanently deletes one entity
func (c *Client) Purge(ctx context.Context, typ, id string) error {
	req := &httpx.Request{
		Method: http.MethodDelete,
		Path:   fmt.Sprintf("/recycle/%s/%s?confirm=true", segment(typ), segment(id)),
	}
	return c.call(ctx, req, nil)
}

// Empty permanently deletes every entity of typ in the bin
func (c *Client) Empty(ctx context.Context, typ string) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	req := &httpx.Request{Method: http.MethodDelete, Path: "/recycle/empty/" + segment(typ) + "?confirm=true"}
	if err := c.call(ctx, req, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// Counts returns the number of deleted entities per type
func (c *Client) Counts(ctx context.Context) (*Counts, error) {
	var out Counts
	if err := c.call(ctx, &httpx.Request{Method: http.MethodGet, Path: "/recycle/stats/counts"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get fetches an active entity. A soft-deleted one fails with ErrGone and
// an *APIError carrying its restore URL.
func (c *Client) Get(ctx context.Context, typ, id string) (Item, error) {
	var out Item
	req := &httpx.Request{Method: http.MethodGet, Path: fmt.Sprintf("/api/%s/%s", segment(typ), segment(id))}
	if err := c.call(ctx, req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SoftDelete moves an entity to the bin
func (c *Client) SoftDelete(ctx context.Context, typ, id string) (Item, error) {
	var out Item
	req := &httpx.Request{Method: http.MethodDelete, Path: fmt.Sprintf("/api/%s/%s", segment(typ), segment(id))}
	if err := c.call(ctx, req, &out); err != nil {
		return nil, err
	}
	return out, nil
}
