package coda

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the public API root of the document service.
const DefaultBaseURL = "https://coda.io/apis/v1"

// Client is a thin HTTP client for the tabular document REST API.
// It handles Bearer token authentication and JSON marshaling. It does
// NOT retry: callers own the retry policy, because list lookups,
// best-effort deletes, and rate-limited inserts all want different ones.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a new document API client. An empty baseURL selects
// the public service endpoint. The token is used for Bearer authentication.
func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ListDocs returns every document visible to the token.
func (c *Client) ListDocs(ctx context.Context) ([]Doc, error) {
	var out docList
	if err := c.do(ctx, http.MethodGet, "/docs", nil, &out, 0); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// ListTables returns the tables of a document.
func (c *Client) ListTables(ctx context.Context, docID string) ([]Table, error) {
	var out tableList
	path := fmt.Sprintf("/docs/%s/tables", docID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out, 0); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// ListRowIDs returns the identifiers of every current row in a table.
func (c *Client) ListRowIDs(ctx context.Context, docID, tableID string) ([]string, error) {
	var out rowList
	path := fmt.Sprintf("/docs/%s/tables/%s/rows", docID, tableID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out, 0); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(out.Items))
	for _, r := range out.Items {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

// DeleteRows deletes a batch of rows by ID. The service queues deletions
// asynchronously; only a 202 counts as accepted.
func (c *Client) DeleteRows(ctx context.Context, docID, tableID string, rowIDs []string) error {
	path := fmt.Sprintf("/docs/%s/tables/%s/rows", docID, tableID)
	body := deleteRowsRequest{RowIDs: rowIDs}
	return c.do(ctx, http.MethodDelete, path, body, nil, http.StatusAccepted)
}

// InsertRows uploads a batch of rows. The service queues inserts
// asynchronously; only a 202 counts as accepted.
func (c *Client) InsertRows(ctx context.Context, docID, tableID string, rows []Row) error {
	path := fmt.Sprintf("/docs/%s/tables/%s/rows", docID, tableID)
	body := insertRowsRequest{Rows: rows}
	return c.do(ctx, http.MethodPost, path, body, nil, http.StatusAccepted)
}

// do is the core HTTP method: builds the request, handles auth, and
// JSON (de)serialization. When want is non-zero, any other status is a
// StatusError even if it is 2xx; when zero, any 2xx succeeds.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	result interface{},
	want int,
) error {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request %s %s: %w", method, path, err)
	}

	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return fmt.Errorf("reading response body: %w", readErr)
	}

	accepted := resp.StatusCode >= 200 && resp.StatusCode < 300
	if want != 0 {
		accepted = resp.StatusCode == want
	}
	if !accepted {
		return &StatusError{
			Code:   resp.StatusCode,
			Method: method,
			Path:   path,
			Body:   string(respBody),
		}
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("unmarshaling response from %s %s: %w", method, path, err)
	}

	return nil
}

// StatusError is returned for any non-accepted HTTP status.
type StatusError struct {
	Code   int
	Method string
	Path   string
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d on %s %s: %s",
		e.Code, e.Method, e.Path, e.Body)
}

// IsRateLimited reports whether err (or any error in its chain) is a
// 429 status from the service.
func IsRateLimited(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusTooManyRequests
}
