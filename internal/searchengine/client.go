package searchengine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to a search engine node. Every call is bounded by the
// configured request timeout; that timeout is independent of any retry
// policy layered on top by callers.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the node at baseURL. requestTimeout
// bounds each individual call; zero means no timeout.
func NewClient(baseURL string, requestTimeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// IsTransient reports whether an error is worth retrying: network-class
// failures, throttling, and server errors. Per-document rejections and
// client errors are structural and never transient.
func IsTransient(err error) bool {
	var docErr *DocumentError
	if errors.As(err, &docErr) {
		return false
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode == http.StatusTooManyRequests || reqErr.StatusCode >= 500
	}
	// Anything else at this layer is a transport failure (connection
	// refused, reset, request timeout).
	return err != nil
}

// BulkIndex submits docs to the index's bulk endpoint in one request.
// A per-document rejection is returned as *DocumentError with the
// document's offset in docs; request-level failures come back as
// *RequestError or a transport error.
func (c *Client) BulkIndex(ctx context.Context, index string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, doc := range docs {
		if err := enc.Encode(bulkAction{}); err != nil {
			return fmt.Errorf("encoding bulk action: %w", err)
		}
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encoding document: %w", err)
		}
	}

	var resp bulkResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/"+index+"/_bulk", &body, &resp); err != nil {
		return err
	}

	if !resp.Errors {
		return nil
	}
	for i, item := range resp.Items {
		if item.Index.Status >= 500 || item.Index.Status == http.StatusTooManyRequests {
			return &RequestError{StatusCode: item.Index.Status, Body: item.Index.Error}
		}
		if item.Index.Status >= 400 {
			return &DocumentError{Position: i, Status: item.Index.Status, Reason: item.Index.Error}
		}
	}
	return &RequestError{StatusCode: http.StatusInternalServerError, Body: "bulk response flagged errors without a failing item"}
}

// Count returns the number of documents in an index.
func (c *Client) Count(ctx context.Context, index string) (int64, error) {
	var resp countResponse
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/"+index+"/_count", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// Health verifies the node is reachable and reporting healthy.
func (c *Client) Health(ctx context.Context) error {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/_cluster/health", nil, &resp); err != nil {
		return err
	}
	if resp.Status != "green" && resp.Status != "yellow" {
		return fmt.Errorf("cluster health is %q", resp.Status)
	}
	return nil
}

// ScrollPage is one page of a scroll cursor. An empty Docs slice means
// the cursor is exhausted.
type ScrollPage struct {
	ScrollID string
	Docs     []Document
}

// OpenScroll starts a cursor over an index with the given page size and
// keep-alive, returning the first page.
func (c *Client) OpenScroll(ctx context.Context, index string, size int, keepAlive time.Duration) (*ScrollPage, error) {
	url := fmt.Sprintf("%s/%s/_search?scroll=%s&size=%d", c.baseURL, index, keepAlive, size)
	var resp searchResponse
	if err := c.do(ctx, http.MethodPost, url, nil, &resp); err != nil {
		return nil, err
	}
	return scrollPage(&resp), nil
}

// NextScroll fetches the next page of an open cursor.
func (c *Client) NextScroll(ctx context.Context, scrollID string) (*ScrollPage, error) {
	body, err := json.Marshal(map[string]string{"scroll_id": scrollID})
	if err != nil {
		return nil, err
	}
	var resp searchResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/_search/scroll", bytes.NewReader(body), &resp); err != nil {
		return nil, err
	}
	return scrollPage(&resp), nil
}

// ClearScroll releases a cursor's server-side state.
func (c *Client) ClearScroll(ctx context.Context, scrollID string) error {
	body, err := json.Marshal(map[string]string{"scroll_id": scrollID})
	if err != nil {
		return err
	}
	var resp struct {
		Succeeded bool `json:"succeeded"`
	}
	return c.do(ctx, http.MethodDelete, c.baseURL+"/_search/scroll", bytes.NewReader(body), &resp)
}

func scrollPage(resp *searchResponse) *ScrollPage {
	page := &ScrollPage{ScrollID: resp.ScrollID}
	for _, hit := range resp.Hits.Hits {
		page.Docs = append(page.Docs, hit.Source)
	}
	return page
}

func (c *Client) do(ctx context.Context, method, url string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-ndjson")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &RequestError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
