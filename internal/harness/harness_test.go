package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"searchrunner/internal/benchdata"
	"searchrunner/internal/config"
	"searchrunner/internal/engine"
	"searchrunner/internal/searchengine"
)

// writeDescriptions generates a descriptor per dataset table.
func writeDescriptions(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, table := range benchdata.Tables() {
		var cols []map[string]string
		for _, c := range table.Columns {
			cols = append(cols, map[string]string{"name": c.Name, "type": string(c.Type)})
		}
		doc := map[string]any{
			"tableName":  table.Name,
			"schemaName": benchdata.SchemaName,
			"columns":    cols,
		}
		data, err := json.Marshal(doc)
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, table.Name+".json"), data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.Cluster.NodeCount = 1
	cfg.Search.TableDescriptionDir = writeDescriptions(t)
	cfg.Loader.BatchSize = 100
	return cfg
}

func TestBuildAndLoadAll(t *testing.T) {
	ctx := context.Background()
	rc, err := Build(ctx, testConfig(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer rc.Close()

	if err := rc.LoadAll(ctx); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}

	for _, table := range benchdata.Tables() {
		if got := rc.SearchNode.Count(table.Name); got != table.RowCount {
			t.Errorf("%s: indexed %d docs, want %d", table.Name, got, table.RowCount)
		}
	}

	// The returned environment is ready to query through the search
	// catalog.
	session, err := rc.Session()
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	rows, err := session.Query(ctx, "SELECT * FROM region")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		n++
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows: %v", err)
	}
	if n != 5 {
		t.Errorf("region scan returned %d rows, want 5", n)
	}
}

func TestLoadAllSubsetOfTables(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Benchmark.Tables = []string{"region", "nation"}

	rc, err := Build(ctx, cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer rc.Close()

	if err := rc.LoadAll(ctx); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if got := rc.SearchNode.Count("nation"); got != 25 {
		t.Errorf("nation count = %d, want 25", got)
	}
	if got := rc.SearchNode.Count("customer"); got != 0 {
		t.Errorf("customer count = %d, want 0: table not configured", got)
	}
}

func TestBuildSearchEngineFailure(t *testing.T) {
	orig := startSearchNode
	startSearchNode = func() (*searchengine.Node, error) {
		return nil, fmt.Errorf("port exhausted")
	}
	defer func() { startSearchNode = orig }()

	_, err := Build(context.Background(), testConfig(t))
	var bootErr *BootstrapError
	if !errors.As(err, &bootErr) {
		t.Fatalf("expected *BootstrapError, got %v", err)
	}
	if bootErr.Stage != "search engine" {
		t.Errorf("stage = %q", bootErr.Stage)
	}
}

func TestBuildClusterFailureReleasesSearchNode(t *testing.T) {
	var nodeURL string
	origStart := startSearchNode
	startSearchNode = func() (*searchengine.Node, error) {
		node, err := searchengine.StartNode()
		if node != nil {
			nodeURL = node.URL()
		}
		return node, err
	}
	origCluster := newCluster
	newCluster = func(nodeCount int) (*engine.Cluster, error) {
		return nil, fmt.Errorf("injected cluster failure")
	}
	defer func() {
		startSearchNode = origStart
		newCluster = origCluster
	}()

	_, err := Build(context.Background(), testConfig(t))
	var bootErr *BootstrapError
	if !errors.As(err, &bootErr) {
		t.Fatalf("expected *BootstrapError, got %v", err)
	}
	if bootErr.Stage != "query cluster" {
		t.Errorf("stage = %q", bootErr.Stage)
	}

	// The search node must have been released: its endpoint no longer
	// answers.
	client := searchengine.NewClient(nodeURL, 500*time.Millisecond)
	if err := client.Health(context.Background()); err == nil {
		t.Error("search node still serving after failed bootstrap")
	}
}

func TestBuildBadCatalogConfigReleasesEverything(t *testing.T) {
	var nodeURL string
	origStart := startSearchNode
	startSearchNode = func() (*searchengine.Node, error) {
		node, err := searchengine.StartNode()
		if node != nil {
			nodeURL = node.URL()
		}
		return node, err
	}
	defer func() { startSearchNode = origStart }()

	cfg := testConfig(t)
	cfg.Search.TableDescriptionDir = filepath.Join(t.TempDir(), "missing")

	_, err := Build(context.Background(), cfg)
	var bootErr *BootstrapError
	if !errors.As(err, &bootErr) {
		t.Fatalf("expected *BootstrapError, got %v", err)
	}
	if bootErr.Stage != "search catalog" {
		t.Errorf("stage = %q", bootErr.Stage)
	}

	client := searchengine.NewClient(nodeURL, 500*time.Millisecond)
	if err := client.Health(context.Background()); err == nil {
		t.Error("search node still serving after failed bootstrap")
	}
}

func TestCloseIsCleanAfterLoad(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Benchmark.Tables = []string{"region"}

	rc, err := Build(ctx, cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := rc.LoadAll(ctx); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if err := rc.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
