package tabledesc

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"searchrunner/internal/engine"
)

func writeDoc(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "orders.json", `{
		"tableName": "Orders",
		"columns": [
			{"name": "orderkey", "type": "bigint"},
			{"name": "comment", "type": "varchar"}
		]
	}`)
	writeDoc(t, dir, "region.json", `{
		"tableName": "region",
		"schemaName": "sales",
		"indexName": "Region-IDX",
		"columns": [{"name": "name", "type": "VARCHAR"}]
	}`)
	writeDoc(t, dir, "notes.txt", "ignored, not a description")

	provider, err := Resolve(dir, "tiny")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	orders, ok := provider.Get("orders")
	if !ok {
		t.Fatal("orders not found")
	}
	if orders.SchemaName != "tiny" {
		t.Errorf("default schema not applied: %q", orders.SchemaName)
	}
	if orders.IndexName != "orders" {
		t.Errorf("index name should be lower-cased table name, got %q", orders.IndexName)
	}
	if orders.Columns[0].Type != engine.TypeBigint {
		t.Errorf("column type = %q", orders.Columns[0].Type)
	}

	region, ok := provider.Get("region")
	if !ok {
		t.Fatal("region not found")
	}
	if region.SchemaName != "sales" {
		t.Errorf("explicit schema overridden: %q", region.SchemaName)
	}
	if region.IndexName != "region-idx" {
		t.Errorf("explicit index not lower-cased: %q", region.IndexName)
	}

	// Lookups normalize case the same way index derivation does.
	if _, ok := provider.Get("ORDERS"); !ok {
		t.Error("upper-case lookup should resolve")
	}
	if _, ok := provider.Get("lineitem"); ok {
		t.Error("unknown table should miss")
	}

	tables := provider.Tables()
	if len(tables) != 2 {
		t.Errorf("tables = %v", tables)
	}
}

func TestResolveFileURI(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "t.json", `{"tableName":"t","columns":[{"name":"a","type":"integer"}]}`)

	provider, err := Resolve("file://"+dir, "tiny")
	if err != nil {
		t.Fatalf("Resolve with file URI: %v", err)
	}
	if _, ok := provider.Get("t"); !ok {
		t.Error("table not resolved via file URI")
	}
}

func TestResolveFailures(t *testing.T) {
	valid := `{"tableName":"t","columns":[{"name":"a","type":"integer"}]}`

	tests := []struct {
		name  string
		setup func(t *testing.T) string
	}{
		{
			name:  "missing directory",
			setup: func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope") },
		},
		{
			name: "unsupported scheme",
			setup: func(t *testing.T) string {
				return "https://example.com/descriptions"
			},
		},
		{
			name: "empty directory",
			setup: func(t *testing.T) string {
				return t.TempDir()
			},
		},
		{
			name: "malformed json",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeDoc(t, dir, "bad.json", `{"tableName": "t",`)
				return dir
			},
		},
		{
			name: "unknown field",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeDoc(t, dir, "bad.json", `{"tableName":"t","shardCount":5,"columns":[{"name":"a","type":"integer"}]}`)
				return dir
			},
		},
		{
			name: "unknown type",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeDoc(t, dir, "bad.json", `{"tableName":"t","columns":[{"name":"a","type":"geopoint"}]}`)
				return dir
			},
		},
		{
			name: "missing table name",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeDoc(t, dir, "bad.json", `{"columns":[{"name":"a","type":"integer"}]}`)
				return dir
			},
		},
		{
			name: "no columns",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeDoc(t, dir, "bad.json", `{"tableName":"t","columns":[]}`)
				return dir
			},
		},
		{
			name: "duplicate table across documents",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeDoc(t, dir, "a.json", valid)
				writeDoc(t, dir, "b.json", `{"tableName":"T","columns":[{"name":"a","type":"integer"}]}`)
				return dir
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.setup(t), "tiny")
			if err == nil {
				t.Fatal("expected ConfigError")
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Errorf("expected *ConfigError, got %T: %v", err, err)
			}
		})
	}
}
