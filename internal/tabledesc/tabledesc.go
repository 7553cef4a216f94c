// Package tabledesc resolves table-description documents: the mapping
// artifacts that bind a logical table name and schema to a physical
// search index and its typed columns.
package tabledesc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"searchrunner/internal/engine"
)

// ConfigError reports a malformed or unresolvable table description
// setup. It is fatal: the harness cannot register the search catalog
// without a complete, valid set of descriptions.
type ConfigError struct {
	Location string
	Err      error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("table descriptions at %s: %v", e.Location, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Column is one typed column of a described table.
type Column struct {
	Name string      `json:"name"`
	Type engine.Type `json:"type"`
}

// TableDescription binds a logical table to a physical index. Instances
// are constructed once at catalog registration and immutable after.
type TableDescription struct {
	TableName  string   `json:"tableName"`
	SchemaName string   `json:"schemaName"`
	IndexName  string   `json:"indexName"`
	Columns    []Column `json:"columns"`
}

// ColumnNames returns the described column names in order.
func (d *TableDescription) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// Provider holds resolved table descriptions for one catalog, queried
// by the connector at planning time. Lookups are case-insensitive:
// names are lower-cased on store and on lookup, matching the
// lower-cased physical index derivation.
type Provider struct {
	descriptions map[string]*TableDescription
}

// Get looks up a description by logical table name.
func (p *Provider) Get(table string) (*TableDescription, bool) {
	d, ok := p.descriptions[strings.ToLower(table)]
	return d, ok
}

// Tables returns the described table names, sorted.
func (p *Provider) Tables() []string {
	names := make([]string, 0, len(p.descriptions))
	for name := range p.descriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve loads every *.json description document under location,
// which may be a filesystem path or a file:// URI. defaultSchema fills
// descriptions that omit a schema name. Any unresolvable location,
// unreadable file, malformed document, or unknown column type fails
// with a ConfigError.
func Resolve(location, defaultSchema string) (*Provider, error) {
	dir, err := resolveLocation(location)
	if err != nil {
		return nil, &ConfigError{Location: location, Err: err}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &ConfigError{Location: location, Err: err}
	}

	provider := &Provider{descriptions: make(map[string]*TableDescription)}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		desc, err := decodeDescription(path, defaultSchema)
		if err != nil {
			return nil, &ConfigError{Location: location, Err: fmt.Errorf("%s: %w", entry.Name(), err)}
		}
		key := strings.ToLower(desc.TableName)
		if _, exists := provider.descriptions[key]; exists {
			return nil, &ConfigError{Location: location, Err: fmt.Errorf("duplicate description for table %q", desc.TableName)}
		}
		provider.descriptions[key] = desc
	}

	if len(provider.descriptions) == 0 {
		return nil, &ConfigError{Location: location, Err: fmt.Errorf("no table description documents found")}
	}
	return provider, nil
}

// resolveLocation turns a path or file:// URI into a filesystem path.
func resolveLocation(location string) (string, error) {
	if location == "" {
		return "", fmt.Errorf("empty location")
	}
	if strings.Contains(location, "://") {
		u, err := url.Parse(location)
		if err != nil {
			return "", fmt.Errorf("parsing location URI: %w", err)
		}
		if u.Scheme != "file" {
			return "", fmt.Errorf("unsupported location scheme %q", u.Scheme)
		}
		return u.Path, nil
	}
	return location, nil
}

// decodeDescription decodes one document with the engine's type system:
// every column type must resolve to a known semantic type tag.
func decodeDescription(path, defaultSchema string) (*TableDescription, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var desc TableDescription
	if err := dec.Decode(&desc); err != nil {
		return nil, fmt.Errorf("decoding: %w", err)
	}

	if desc.TableName == "" {
		return nil, fmt.Errorf("missing tableName")
	}
	if len(desc.Columns) == 0 {
		return nil, fmt.Errorf("table %q has no columns", desc.TableName)
	}
	for i, c := range desc.Columns {
		if c.Name == "" {
			return nil, fmt.Errorf("table %q column %d has no name", desc.TableName, i)
		}
		parsed, err := engine.ParseType(string(c.Type))
		if err != nil {
			return nil, fmt.Errorf("table %q column %q: %w", desc.TableName, c.Name, err)
		}
		desc.Columns[i].Type = parsed
	}

	if desc.SchemaName == "" {
		desc.SchemaName = defaultSchema
	}
	// The physical index is always the lower-cased logical name.
	if desc.IndexName == "" {
		desc.IndexName = strings.ToLower(desc.TableName)
	} else {
		desc.IndexName = strings.ToLower(desc.IndexName)
	}

	return &desc, nil
}
