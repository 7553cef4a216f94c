// Package searchengine provides the embedded search engine used by the
// harness (an in-memory index store behind a minimal HTTP API: bulk
// index, count, scroll search, cluster health) and the HTTP client the
// loader and connector speak to it with.
package searchengine

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"searchrunner/internal/logging"
)

// Node is an embedded search engine instance. Indices live in memory
// and are created implicitly on first write, mirroring an index with a
// dynamic mapping policy.
type Node struct {
	listener net.Listener
	server   *http.Server

	mu      sync.Mutex
	indices map[string][]Document
	scrolls map[string]*scrollState
	closed  bool
}

// scrollState is a server-side cursor over a point-in-time snapshot.
type scrollState struct {
	docs    []Document
	pos     int
	size    int
	expires time.Time
}

// StartNode starts an embedded node on a loopback port.
func StartNode() (*Node, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("binding search engine listener: %w", err)
	}

	n := &Node{
		listener: ln,
		indices:  make(map[string][]Document),
		scrolls:  make(map[string]*scrollState),
	}
	n.server = &http.Server{Handler: http.HandlerFunc(n.route)}

	go func() {
		if err := n.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			logging.Error("Search engine server stopped: %v", err)
		}
	}()

	logging.Info("Embedded search engine started at %s", n.URL())
	return n, nil
}

// URL returns the node's base URL.
func (n *Node) URL() string {
	return "http://" + n.listener.Addr().String()
}

// Count returns the number of documents in an index. Missing indices
// count zero.
func (n *Node) Count(index string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.indices[index])
}

// Close shuts the node down and releases its listener.
func (n *Node) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	n.mu.Unlock()

	return n.server.Close()
}

func (n *Node) route(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(r.URL.Path, "/")
	parts := strings.Split(path, "/")

	switch {
	case path == "_cluster/health":
		writeJSON(w, http.StatusOK, map[string]string{"status": "green"})
	case path == "_search/scroll" && r.Method == http.MethodPost:
		n.handleScrollNext(w, r)
	case path == "_search/scroll" && r.Method == http.MethodDelete:
		n.handleScrollClear(w, r)
	case len(parts) == 2 && parts[1] == "_bulk" && r.Method == http.MethodPost:
		n.handleBulk(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "_count" && r.Method == http.MethodGet:
		n.handleCount(w, parts[0])
	case len(parts) == 2 && parts[1] == "_search" && r.Method == http.MethodPost:
		n.handleSearch(w, r, parts[0])
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no such route: " + path})
	}
}

// handleBulk ingests NDJSON action/document pairs. Documents are
// validated individually: a malformed document gets a per-item 400
// while the rest of the batch is still indexed (at-least-once, not
// transactional).
func (n *Node) handleBulk(w http.ResponseWriter, r *http.Request, index string) {
	scanner := bufio.NewScanner(r.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var resp bulkResponse
	var accepted []Document
	expectDoc := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !expectDoc {
			var action bulkAction
			if err := json.Unmarshal([]byte(line), &action); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed action line"})
				return
			}
			expectDoc = true
			continue
		}

		var item bulkItemResult
		var doc Document
		if err := json.Unmarshal([]byte(line), &doc); err != nil {
			item = bulkItemResult{Status: http.StatusBadRequest, Error: "mapper_parsing_exception: " + err.Error()}
			resp.Errors = true
		} else {
			item = bulkItemResult{Status: http.StatusCreated}
			accepted = append(accepted, doc)
		}
		resp.Items = append(resp.Items, struct {
			Index bulkItemResult `json:"index"`
		}{item})
		expectDoc = false
	}

	if err := scanner.Err(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if expectDoc {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "truncated bulk body"})
		return
	}

	n.mu.Lock()
	n.indices[index] = append(n.indices[index], accepted...)
	n.mu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

func (n *Node) handleCount(w http.ResponseWriter, index string) {
	n.mu.Lock()
	count := int64(len(n.indices[index]))
	n.mu.Unlock()
	writeJSON(w, http.StatusOK, countResponse{Count: count})
}

func (n *Node) handleSearch(w http.ResponseWriter, r *http.Request, index string) {
	size := 10
	if s := r.URL.Query().Get("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid size parameter: " + s})
			return
		}
		size = n
	}

	keepAlive := time.Minute
	if s := r.URL.Query().Get("scroll"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			keepAlive = d
		}
	}

	n.mu.Lock()
	snapshot := make([]Document, len(n.indices[index]))
	copy(snapshot, n.indices[index])

	st := &scrollState{docs: snapshot, size: size, expires: time.Now().Add(keepAlive)}
	id := uuid.NewString()
	n.scrolls[id] = st
	page := st.next()
	n.mu.Unlock()

	writeSearchPage(w, id, page)
}

func (n *Node) handleScrollNext(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScrollID string `json:"scroll_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed scroll request"})
		return
	}

	n.mu.Lock()
	st, ok := n.scrolls[req.ScrollID]
	if ok && time.Now().After(st.expires) {
		delete(n.scrolls, req.ScrollID)
		ok = false
	}
	if !ok {
		n.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "scroll context expired or missing"})
		return
	}
	page := st.next()
	n.mu.Unlock()

	writeSearchPage(w, req.ScrollID, page)
}

func (n *Node) handleScrollClear(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScrollID string `json:"scroll_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed scroll request"})
		return
	}

	n.mu.Lock()
	delete(n.scrolls, req.ScrollID)
	n.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]bool{"succeeded": true})
}

func (s *scrollState) next() []Document {
	if s.pos >= len(s.docs) {
		return nil
	}
	end := s.pos + s.size
	if end > len(s.docs) {
		end = len(s.docs)
	}
	page := s.docs[s.pos:end]
	s.pos = end
	return page
}

func writeSearchPage(w http.ResponseWriter, scrollID string, page []Document) {
	var resp searchResponse
	resp.ScrollID = scrollID
	resp.Hits.Hits = make([]searchHit, len(page))
	for i, d := range page {
		resp.Hits.Hits[i] = searchHit{Source: d}
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
