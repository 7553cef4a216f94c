package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"searchrunner/internal/logging"
)

// Session is a client session bound to one catalog and schema. Sessions
// are lightweight; the cluster owns the underlying connectors.
type Session struct {
	cluster *Cluster
	catalog *Catalog
	schema  string
}

// Catalog returns the session's catalog name.
func (s *Session) Catalog() string { return s.catalog.Name }

// Schema returns the session's default schema.
func (s *Session) Schema() string { return s.schema }

// Query submits sql to the session's catalog and returns a lazy result
// stream. Each submission is assigned a query ID for log correlation.
// A submission failure is structural (bad query, catalog backend
// unavailable) and is never retried here.
func (s *Session) Query(ctx context.Context, sql string) (Rows, error) {
	queryID := uuid.NewString()
	start := time.Now()
	logging.Debug("Query %s on %s.%s: %s", queryID, s.catalog.Name, s.schema, sql)

	rows, err := s.catalog.Connector.Query(ctx, s.schema, sql)
	if err != nil {
		return nil, fmt.Errorf("query %s failed on catalog %q: %w", queryID, s.catalog.Name, err)
	}

	logging.Debug("Query %s streaming after %v", queryID, time.Since(start))
	return rows, nil
}
