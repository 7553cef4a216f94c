package engine

import "context"

// Connector is a data-source plugin instance bound to one catalog.
// It plans and executes queries against an external data store.
type Connector interface {
	// Name returns the connector's plugin name.
	Name() string

	// Query executes sql against the given schema and returns a lazy
	// result stream.
	Query(ctx context.Context, schema, sql string) (Rows, error)

	// Close releases the connector's backend resources.
	Close() error
}

// Plugin constructs connectors. One plugin can back multiple catalogs,
// each with its own immutable configuration.
type Plugin interface {
	// Name returns the plugin name used in CreateCatalog.
	Name() string

	// NewConnector builds a connector for the named catalog from the
	// catalog's configuration map. The map is owned by the catalog and
	// must not be mutated.
	NewConnector(catalog string, config map[string]string) (Connector, error)
}
