package benchmark

import (
	"context"
	"testing"

	"searchrunner/internal/benchdata"
	"searchrunner/internal/engine"
)

func openConnector(t *testing.T) engine.Connector {
	t.Helper()
	conn, err := New().NewConnector("benchmark", nil)
	if err != nil {
		t.Fatalf("NewConnector: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func drain(t *testing.T, rows engine.Rows) [][]any {
	t.Helper()
	defer rows.Close()
	var out [][]any
	for rows.Next() {
		row := make([]any, len(rows.Row()))
		copy(row, rows.Row())
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows: %v", err)
	}
	return out
}

func TestSeededTables(t *testing.T) {
	conn := openConnector(t)
	ctx := context.Background()

	for _, table := range benchdata.Tables() {
		rows, err := conn.Query(ctx, benchdata.SchemaName, "SELECT * FROM "+benchdata.SchemaName+"."+table.Name)
		if err != nil {
			t.Fatalf("query %s: %v", table.Name, err)
		}
		got := drain(t, rows)
		if len(got) != table.RowCount {
			t.Errorf("%s: %d rows, want %d", table.Name, len(got), table.RowCount)
		}
	}
}

func TestQueryColumnsAndLaziness(t *testing.T) {
	conn := openConnector(t)

	rows, err := conn.Query(context.Background(), "tiny", "SELECT regionkey, name FROM tiny.region ORDER BY regionkey")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()

	cols := rows.Columns()
	if len(cols) != 2 || cols[0] != "regionkey" || cols[1] != "name" {
		t.Fatalf("columns = %v", cols)
	}

	if !rows.Next() {
		t.Fatal("expected a first row")
	}
	first := rows.Row()
	if len(first) != 2 {
		t.Fatalf("row width = %d", len(first))
	}
	if first[1] == nil {
		t.Error("region name should not be null")
	}
}

func TestNullValuesSurviveScan(t *testing.T) {
	conn := openConnector(t)

	rows, err := conn.Query(context.Background(), "tiny", "SELECT phone FROM tiny.customer")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	got := drain(t, rows)

	nulls := 0
	for _, row := range got {
		if row[0] == nil {
			nulls++
		}
	}
	if nulls == 0 {
		t.Error("expected some null phones in the seed data")
	}
	if nulls == len(got) {
		t.Error("expected some non-null phones in the seed data")
	}
}

func TestQuerySyntaxErrorSurfaces(t *testing.T) {
	conn := openConnector(t)
	if _, err := conn.Query(context.Background(), "tiny", "SELECT FROM WHERE"); err == nil {
		t.Fatal("expected query error")
	}
}

func TestUnknownDriverRejected(t *testing.T) {
	if _, err := New().NewConnector("benchmark", map[string]string{"driver": "oracle"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestPostgresRequiresDSN(t *testing.T) {
	if _, err := New().NewConnector("benchmark", map[string]string{"driver": "postgres"}); err == nil {
		t.Fatal("expected error for missing dsn")
	}
}
