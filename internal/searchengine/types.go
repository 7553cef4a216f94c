package searchengine

import "fmt"

// Document is a single search-engine document, keyed by field name.
// Absent fields are absent, never explicit nulls, so the index mapping
// policy stays in control of the index.
type Document map[string]any

// bulkAction is the action line preceding each document in a bulk body.
type bulkAction struct {
	Index struct{} `json:"index"`
}

// bulkItemResult is the per-document outcome inside a bulk response.
type bulkItemResult struct {
	Status int    `json:"status"`
	Error  string `json:"error,omitempty"`
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []struct {
		Index bulkItemResult `json:"index"`
	} `json:"items"`
}

type countResponse struct {
	Count int64 `json:"count"`
}

type searchHit struct {
	Source Document `json:"_source"`
}

type searchResponse struct {
	ScrollID string `json:"_scroll_id"`
	Hits     struct {
		Hits []searchHit `json:"hits"`
	} `json:"hits"`
}

// RequestError is a request-level failure reported by the search
// engine. Throttling (429) and server errors (5xx) are transient;
// other statuses are permanent.
type RequestError struct {
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("search engine returned status %d: %s", e.StatusCode, e.Body)
}

// DocumentError is a per-document rejection inside an otherwise
// accepted bulk request. It is never transient: the document itself is
// malformed for the target mapping. Position is the document's offset
// within the submitted batch.
type DocumentError struct {
	Position int
	Status   int
	Reason   string
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("document %d rejected with status %d: %s", e.Position, e.Status, e.Reason)
}
