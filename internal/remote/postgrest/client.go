// Package postgrest talks to a hosted PostgREST endpoint (the REST layer
// of a Supabase project).
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/lifetrack/internal/domain"
)

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "Lifetrack/1.0"
	restPrefix     = "/rest/v1/"
)

// Client implements domain.RemoteStore over PostgREST
type Client struct {
	baseURL     string
	apiKey      string
	accessToken string
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewClient creates a new PostgREST client. accessToken may be empty,
// in which case requests are made with the anon key only.
func NewClient(baseURL, apiKey, accessToken string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		accessToken: accessToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// doRequest performs an authenticated HTTP request against a collection
func (c *Client) doRequest(ctx context.Context, method, collection string, query url.Values, payload any, prefer string) ([]byte, error) {
	if err := domain.ValidateIdentifier(collection); err != nil {
		return nil, err
	}

	reqURL := c.baseURL + restPrefix + collection
	if len(query) > 0 {
		reqURL = fmt.Sprintf("%s?%s", reqURL, query.Encode())
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	bearer := c.accessToken
	if bearer == "" {
		bearer = c.apiKey
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("User-Agent", userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	c.logger.Debug("postgrest request", "method", method, "url", reqURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("postgrest request failed", "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrRemoteUnreachable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, domain.ErrAuthFailed
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: collection %s", domain.ErrNotFound, collection)
	case resp.StatusCode >= 300:
		c.logger.Error("postgrest request error", "status", resp.StatusCode, "body", string(respBody))
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return respBody, nil
}

// Close releases idle keep-alive connections
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// parseRows parses a JSON array response
func (c *Client) parseRows(body []byte) ([]domain.Record, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	var rows []domain.Record
	if err := json.Unmarshal(body, &rows); err != nil {
		c.logger.Error("JSON parse error", "error", err, "bodyLen", len(body))
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return rows, nil
}

// Insert creates a row. Rows are merged on primary key conflict, so
// replaying the same insert leaves a single row.
func (c *Client) Insert(ctx context.Context, collection string, rec domain.Record) (domain.Record, error) {
	body, err := c.doRequest(ctx, http.MethodPost, collection, nil, rec,
		"return=representation,resolution=merge-duplicates")
	if err != nil {
		return nil, err
	}
	rows, err := c.parseRows(body)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return rec.Clone(), nil
	}
	return rows[0], nil
}

// Update patches the row with the given id
func (c *Client) Update(ctx context.Context, collection, id string, patch domain.Record) (domain.Record, error) {
	query := url.Values{}
	query.Set("id", "eq."+id)

	body, err := c.doRequest(ctx, http.MethodPatch, collection, query, patch, "return=representation")
	if err != nil {
		return nil, err
	}
	rows, err := c.parseRows(body)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrNoMatch, collection, id)
	}
	return rows[0], nil
}

// Delete removes the row with the given id. Deleting a missing row succeeds.
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	query := url.Values{}
	query.Set("id", "eq."+id)

	_, err := c.doRequest(ctx, http.MethodDelete, collection, query, nil, "")
	return err
}

// Query returns the rows matching filter, sorted by order
func (c *Client) Query(ctx context.Context, collection string, filter domain.Filter, order domain.Order) ([]domain.Record, error) {
	query, err := buildQuery(filter, order)
	if err != nil {
		return nil, err
	}
	body, err := c.doRequest(ctx, http.MethodGet, collection, query, nil, "")
	if err != nil {
		return nil, err
	}
	return c.parseRows(body)
}

// buildQuery renders filter and order as PostgREST query parameters
func buildQuery(filter domain.Filter, order domain.Order) (url.Values, error) {
	query := url.Values{}
	query.Set("select", "*")
	for _, cond := range filter {
		if err := domain.ValidateIdentifier(cond.Column); err != nil {
			return nil, err
		}
		switch cond.Op {
		case domain.OpEq, domain.OpGte, domain.OpLte:
		default:
			return nil, fmt.Errorf("unsupported filter operator: %s", cond.Op)
		}
		query.Add(cond.Column, string(cond.Op)+"."+formatValue(cond.Value))
	}
	if order.Column != "" {
		if err := domain.ValidateIdentifier(order.Column); err != nil {
			return nil, err
		}
		dir := "asc"
		if order.Descending {
			dir = "desc"
		}
		query.Set("order", order.Column+"."+dir)
	}
	return query, nil
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return "null"
	default:
		return fmt.Sprint(t)
	}
}
