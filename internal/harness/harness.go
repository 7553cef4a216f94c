// Package harness bootstraps the full test environment: an embedded
// search engine, a query cluster with the benchmark and search
// catalogs, and the per-table loads that populate the indices.
package harness

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"searchrunner/internal/benchdata"
	"searchrunner/internal/config"
	"searchrunner/internal/connector/benchmark"
	"searchrunner/internal/connector/search"
	"searchrunner/internal/engine"
	"searchrunner/internal/loader"
	"searchrunner/internal/logging"
	"searchrunner/internal/searchengine"
)

// BootstrapError reports a failed environment build. Stage names the
// step that failed; everything acquired before it has been released.
type BootstrapError struct {
	Stage string
	Err   error
}

func (e *BootstrapError) Error() string {
	return fmt.Sprintf("bootstrap failed at %s: %v", e.Stage, e.Err)
}

func (e *BootstrapError) Unwrap() error { return e.Err }

// Constructor seams for failure injection in tests.
var (
	startSearchNode = searchengine.StartNode
	newCluster      = engine.NewCluster
)

// RunningCluster is a fully built environment. The search node and the
// cluster live until Close.
type RunningCluster struct {
	Cluster    *engine.Cluster
	SearchNode *searchengine.Node

	cfg    *config.Config
	search *search.Connector
}

// Build starts the search engine, then the query cluster, then
// installs both catalogs. The search engine comes up first so a
// failure there aborts before any cluster resources exist; any later
// failure releases everything already acquired, keeping the first
// error and suppressing close errors.
func Build(ctx context.Context, cfg *config.Config) (*RunningCluster, error) {
	node, err := startSearchNode()
	if err != nil {
		return nil, &BootstrapError{Stage: "search engine", Err: err}
	}
	if err := searchengine.NewClient(node.URL(), 5*time.Second).Health(ctx); err != nil {
		return nil, abort("search engine health", err, node)
	}
	logging.Info("Search engine listening on %s", node.URL())

	cluster, err := newCluster(cfg.Cluster.NodeCount)
	if err != nil {
		return nil, abort("query cluster", err, node)
	}
	logging.Info("Query cluster with %d nodes on %s", cluster.NodeCount(), cluster.BaseURL())

	if err := cluster.InstallPlugin(benchmark.New()); err != nil {
		return nil, abort("benchmark plugin", err, cluster, node)
	}
	benchConfig := map[string]string{"driver": cfg.Benchmark.Driver}
	if cfg.Benchmark.DSN != "" {
		benchConfig["dsn"] = cfg.Benchmark.DSN
	}
	if err := cluster.CreateCatalog("benchmark", "benchmark", benchConfig); err != nil {
		return nil, abort("benchmark catalog", err, cluster, node)
	}

	if err := cluster.InstallPlugin(search.NewPlugin(node.URL())); err != nil {
		return nil, abort("search plugin", err, cluster, node)
	}
	if err := cluster.CreateCatalog("search", "search", cfg.CatalogConfig()); err != nil {
		return nil, abort("search catalog", err, cluster, node)
	}

	cat, _ := cluster.Catalog("search")
	sc, ok := cat.Connector.(*search.Connector)
	if !ok {
		return nil, abort("search catalog", fmt.Errorf("unexpected connector type %T", cat.Connector), cluster, node)
	}

	return &RunningCluster{
		Cluster:    cluster,
		SearchNode: node,
		cfg:        cfg,
		search:     sc,
	}, nil
}

// abort releases partially acquired resources and wraps the primary
// error. Close failures during teardown are logged, never returned.
func abort(stage string, primary error, closers ...io.Closer) error {
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logging.Warn("Teardown after failed bootstrap: %v", err)
		}
	}
	return &BootstrapError{Stage: stage, Err: primary}
}

// Session returns a session on the search catalog under the configured
// default schema.
func (rc *RunningCluster) Session() (*engine.Session, error) {
	return rc.Cluster.Session("search", rc.cfg.Search.DefaultSchema)
}

// LoadAll loads every configured benchmark table into its index,
// sequentially and fail-fast. Each table gets a progress bar and a
// timing line; an aggregate line follows the last table.
func (rc *RunningCluster) LoadAll(ctx context.Context) error {
	start := time.Now()
	var total int64

	for _, name := range rc.cfg.Benchmark.Tables {
		table, ok := benchdata.Lookup(name)
		if !ok {
			return fmt.Errorf("unknown benchmark table %q", name)
		}
		desc, ok := rc.search.Provider().Get(name)
		if !ok {
			return fmt.Errorf("no table description for %q", name)
		}

		session, err := rc.Cluster.Session("benchmark", benchdata.SchemaName)
		if err != nil {
			return err
		}

		bar := progressbar.Default(int64(table.RowCount), "load "+name)
		policy := rc.search.Retry()
		l := loader.New(session, rc.search.Client(), loader.Options{
			Table:        name,
			Index:        desc.IndexName,
			BatchSize:    rc.cfg.Loader.BatchSize,
			MaxRetries:   policy.MaxRetries,
			MaxRetryTime: policy.MaxRetryTime,
			Progress:     func(rows int) { bar.Add(rows) },
		})

		tableStart := time.Now()
		query := fmt.Sprintf("SELECT * FROM %s.%s", benchdata.SchemaName, name)
		loaded, err := l.Load(ctx, query)
		bar.Finish()
		if err != nil {
			return err
		}

		logging.Info("Loaded %d rows into %s in %s",
			loaded, desc.IndexName, time.Since(tableStart).Round(time.Millisecond))
		total += loaded
	}

	logging.Info("Loaded %d rows across %d tables in %s",
		total, len(rc.cfg.Benchmark.Tables), time.Since(start).Round(time.Millisecond))
	return nil
}

// Close tears the environment down: cluster first, then the search
// node. The first error wins; later ones are logged.
func (rc *RunningCluster) Close() error {
	err := rc.Cluster.Close()
	if nodeErr := rc.SearchNode.Close(); nodeErr != nil {
		if err == nil {
			err = nodeErr
		} else {
			logging.Warn("Closing search node: %v", nodeErr)
		}
	}
	return err
}
