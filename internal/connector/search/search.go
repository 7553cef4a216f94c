// Package search implements the search-index connector plugin: table
// descriptions resolved at catalog creation, a bulk client for writes,
// and scroll-backed scans for reads.
package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"searchrunner/internal/engine"
	"searchrunner/internal/searchengine"
	"searchrunner/internal/tabledesc"
)

// Config is the parsed catalog configuration.
type Config struct {
	DefaultSchema       string
	TableDescriptionDir string
	ScrollSize          int
	ScrollTimeout       time.Duration
	RequestTimeout      time.Duration
	MaxRetries          int
	MaxRetryTime        time.Duration
}

// RetryPolicy bounds bulk request retries: attempts and a wall-clock
// cap, applied per batch.
type RetryPolicy struct {
	MaxRetries   int
	MaxRetryTime time.Duration
}

// ParseConfig validates the catalog config map. Every key is checked;
// unknown keys are rejected so typos fail at catalog creation instead
// of silently falling back to defaults.
func ParseConfig(raw map[string]string) (*Config, error) {
	cfg := &Config{
		DefaultSchema:  "default",
		ScrollSize:     1000,
		ScrollTimeout:  time.Minute,
		RequestTimeout: 10 * time.Second,
		MaxRetries:     5,
		MaxRetryTime:   10 * time.Second,
	}

	for key, value := range raw {
		var err error
		switch key {
		case "default-schema-name":
			cfg.DefaultSchema = value
		case "table-description-directory":
			cfg.TableDescriptionDir = value
		case "scroll-size":
			cfg.ScrollSize, err = parsePositiveInt(value)
		case "scroll-timeout":
			cfg.ScrollTimeout, err = parsePositiveDuration(value)
		case "request-timeout":
			cfg.RequestTimeout, err = parsePositiveDuration(value)
		case "max-request-retries":
			cfg.MaxRetries, err = parsePositiveInt(value)
		case "max-request-retry-time":
			cfg.MaxRetryTime, err = parsePositiveDuration(value)
		default:
			return nil, fmt.Errorf("unknown catalog config key %q", key)
		}
		if err != nil {
			return nil, fmt.Errorf("catalog config key %q: %w", key, err)
		}
	}

	if cfg.TableDescriptionDir == "" {
		return nil, fmt.Errorf("catalog config key %q is required", "table-description-directory")
	}
	return cfg, nil
}

func parsePositiveInt(value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", value)
	}
	if n < 1 {
		return 0, fmt.Errorf("must be at least 1, got %d", n)
	}
	return n, nil
}

func parsePositiveDuration(value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", value)
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", value)
	}
	return d, nil
}

// Plugin implements engine.Plugin over one search engine endpoint.
type Plugin struct {
	nodeURL string
}

// NewPlugin creates the plugin for the search engine at nodeURL.
func NewPlugin(nodeURL string) *Plugin {
	return &Plugin{nodeURL: nodeURL}
}

// Name returns the plugin name.
func (p *Plugin) Name() string { return "search" }

// NewConnector parses the catalog config, resolves table descriptions,
// and builds the bulk client. All configuration errors surface here,
// at catalog creation.
func (p *Plugin) NewConnector(catalog string, config map[string]string) (engine.Connector, error) {
	cfg, err := ParseConfig(config)
	if err != nil {
		return nil, err
	}

	provider, err := tabledesc.Resolve(cfg.TableDescriptionDir, cfg.DefaultSchema)
	if err != nil {
		return nil, err
	}

	return &Connector{
		cfg:      cfg,
		provider: provider,
		client:   searchengine.NewClient(p.nodeURL, cfg.RequestTimeout),
	}, nil
}

// Connector serves scans over described tables and exposes the write
// path (client plus retry policy) to the loader.
type Connector struct {
	cfg      *Config
	provider *tabledesc.Provider
	client   *searchengine.Client
}

// Name returns the plugin name.
func (c *Connector) Name() string { return "search" }

// Provider returns the resolved table descriptions.
func (c *Connector) Provider() *tabledesc.Provider { return c.provider }

// Client returns the bulk client, configured with the catalog's
// request timeout.
func (c *Connector) Client() *searchengine.Client { return c.client }

// Retry returns the catalog's bulk retry policy.
func (c *Connector) Retry() RetryPolicy {
	return RetryPolicy{MaxRetries: c.cfg.MaxRetries, MaxRetryTime: c.cfg.MaxRetryTime}
}

// Query serves simple full-table scans: SELECT * FROM [schema.]table.
// Anything beyond that shape is rejected; the harness only needs
// enough of a read path to verify loads.
func (c *Connector) Query(ctx context.Context, schema, sqlText string) (engine.Rows, error) {
	table, err := scanTarget(sqlText)
	if err != nil {
		return nil, err
	}

	desc, ok := c.provider.Get(table)
	if !ok {
		return nil, fmt.Errorf("table %q is not described", table)
	}

	page, err := c.client.OpenScroll(ctx, desc.IndexName, c.cfg.ScrollSize, c.cfg.ScrollTimeout)
	if err != nil {
		return nil, fmt.Errorf("opening scroll over %s: %w", desc.IndexName, err)
	}

	return &scrollRows{
		ctx:    ctx,
		client: c.client,
		desc:   desc,
		page:   page,
	}, nil
}

// Close releases nothing: the client holds no persistent connections
// and the engine node is owned by the harness.
func (c *Connector) Close() error { return nil }

// scanTarget extracts the table name from a full-table scan statement.
func scanTarget(sqlText string) (string, error) {
	fields := strings.Fields(strings.TrimSuffix(strings.TrimSpace(sqlText), ";"))
	if len(fields) != 4 ||
		!strings.EqualFold(fields[0], "SELECT") || fields[1] != "*" ||
		!strings.EqualFold(fields[2], "FROM") {
		return "", fmt.Errorf("unsupported query %q: only SELECT * FROM <table> scans are served", sqlText)
	}
	table := fields[3]
	if i := strings.LastIndex(table, "."); i >= 0 {
		table = table[i+1:]
	}
	if table == "" {
		return "", fmt.Errorf("unsupported query %q: missing table", sqlText)
	}
	return table, nil
}

// scrollRows streams documents out of an index page by page, shaping
// each hit into the descriptor's column order. Fields absent from a
// document come back as nil.
type scrollRows struct {
	ctx    context.Context
	client *searchengine.Client
	desc   *tabledesc.TableDescription
	page   *searchengine.ScrollPage
	pos    int
	row    []any
	err    error
	done   bool
}

func (r *scrollRows) Columns() []string { return r.desc.ColumnNames() }

func (r *scrollRows) Next() bool {
	if r.err != nil || r.done {
		return false
	}
	for r.pos >= len(r.page.Docs) {
		if len(r.page.Docs) == 0 {
			r.done = true
			return false
		}
		next, err := r.client.NextScroll(r.ctx, r.page.ScrollID)
		if err != nil {
			r.err = err
			return false
		}
		r.page = next
		r.pos = 0
	}

	doc := r.page.Docs[r.pos]
	r.pos++

	row := make([]any, len(r.desc.Columns))
	for i, col := range r.desc.Columns {
		value, ok := doc[col.Name]
		if !ok {
			continue
		}
		row[i], r.err = shapeValue(col.Type, value)
		if r.err != nil {
			return false
		}
	}
	r.row = row
	return true
}

func (r *scrollRows) Row() []any { return r.row }

func (r *scrollRows) Err() error { return r.err }

func (r *scrollRows) Close() error {
	if r.page.ScrollID == "" {
		return nil
	}
	return r.client.ClearScroll(context.Background(), r.page.ScrollID)
}

// shapeValue converts a decoded JSON value to the descriptor's type.
// JSON decoding gives float64 for every number, so integral columns
// need the narrowing here. An explicit JSON null counts as absent:
// writers outside this harness may encode missing fields either way.
func shapeValue(typ engine.Type, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch typ {
	case engine.TypeBoolean:
		if b, ok := value.(bool); ok {
			return b, nil
		}
	case engine.TypeInteger, engine.TypeBigint:
		if f, ok := value.(float64); ok {
			return int64(f), nil
		}
	case engine.TypeDouble:
		if f, ok := value.(float64); ok {
			return f, nil
		}
	case engine.TypeVarchar, engine.TypeTimestamp, engine.TypeDate:
		if s, ok := value.(string); ok {
			return s, nil
		}
	}
	return nil, fmt.Errorf("value %v (%T) does not fit column type %s", value, value, typ)
}
