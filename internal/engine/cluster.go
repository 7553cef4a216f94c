// Package engine hosts the query engine stand-in used by the harness: a
// coordinator with a plugin/catalog registry, client sessions, and the
// Rows stream abstraction that connectors produce.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"searchrunner/internal/logging"
)

// Cluster is a multi-node query engine. Plugins are installed once,
// then catalogs are created over them; each catalog binds a connector
// instance plus its immutable configuration, resolved at startup rather
// than at call time.
type Cluster struct {
	nodeCount int

	listener net.Listener
	server   *http.Server

	mu       sync.RWMutex
	plugins  map[string]Plugin
	catalogs map[string]*Catalog
	closed   bool
}

// Catalog is a named, configured instance of a connector.
type Catalog struct {
	Name      string
	Plugin    string
	Config    map[string]string
	Connector Connector
}

// NewCluster starts a cluster with the requested node count. The
// coordinator binds a loopback HTTP endpoint serving cluster info.
func NewCluster(nodeCount int) (*Cluster, error) {
	if nodeCount < 1 {
		return nil, fmt.Errorf("node count must be at least 1, got %d", nodeCount)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("binding coordinator listener: %w", err)
	}

	c := &Cluster{
		nodeCount: nodeCount,
		listener:  ln,
		plugins:   make(map[string]Plugin),
		catalogs:  make(map[string]*Catalog),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/info", c.handleInfo)
	c.server = &http.Server{Handler: mux}

	go func() {
		if err := c.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			logging.Error("Coordinator server stopped: %v", err)
		}
	}()

	logging.Info("Query cluster started: %d nodes, coordinator at %s", nodeCount, c.BaseURL())
	return c, nil
}

func (c *Cluster) handleInfo(w http.ResponseWriter, r *http.Request) {
	c.mu.RLock()
	names := make([]string, 0, len(c.catalogs))
	for name := range c.catalogs {
		names = append(names, name)
	}
	c.mu.RUnlock()
	sort.Strings(names)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"nodes":    c.nodeCount,
		"catalogs": names,
	})
}

// NodeCount returns the number of nodes in the cluster.
func (c *Cluster) NodeCount() int {
	return c.nodeCount
}

// BaseURL returns the coordinator's base access URL.
func (c *Cluster) BaseURL() string {
	return "http://" + c.listener.Addr().String()
}

// InstallPlugin registers a plugin by name. Installing the same name
// twice is an error.
func (c *Cluster) InstallPlugin(p Plugin) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.plugins[p.Name()]; ok {
		return fmt.Errorf("plugin %q already installed", p.Name())
	}
	c.plugins[p.Name()] = p
	logging.Debug("Installed plugin %q", p.Name())
	return nil
}

// CreateCatalog registers a catalog backed by the named plugin. The
// config map is passed verbatim to the plugin and is immutable for the
// catalog's lifetime.
func (c *Cluster) CreateCatalog(name, plugin string, config map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.plugins[plugin]
	if !ok {
		return fmt.Errorf("creating catalog %q: plugin %q not installed", name, plugin)
	}
	if _, ok := c.catalogs[name]; ok {
		return fmt.Errorf("catalog %q already exists", name)
	}

	conn, err := p.NewConnector(name, config)
	if err != nil {
		return fmt.Errorf("creating catalog %q: %w", name, err)
	}

	c.catalogs[name] = &Catalog{
		Name:      name,
		Plugin:    plugin,
		Config:    config,
		Connector: conn,
	}
	logging.Info("Created catalog %q using plugin %q", name, plugin)
	return nil
}

// Catalog looks up a registered catalog by name.
func (c *Cluster) Catalog(name string) (*Catalog, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cat, ok := c.catalogs[name]
	return cat, ok
}

// Session opens a client session bound to a catalog and schema.
func (c *Cluster) Session(catalog, schema string) (*Session, error) {
	cat, ok := c.Catalog(catalog)
	if !ok {
		return nil, fmt.Errorf("catalog %q not registered", catalog)
	}
	return &Session{cluster: c, catalog: cat, schema: schema}, nil
}

// Close shuts down the coordinator and closes every catalog's
// connector. The first error wins; later close errors are logged and
// suppressed.
func (c *Cluster) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	var firstErr error

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.server.Shutdown(shutdownCtx); err != nil {
		firstErr = fmt.Errorf("shutting down coordinator: %w", err)
	}

	for name, cat := range c.catalogs {
		if err := cat.Connector.Close(); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("closing catalog %q: %w", name, err)
			} else {
				logging.Warn("Suppressed close error for catalog %q: %v", name, err)
			}
		}
	}

	return firstErr
}
