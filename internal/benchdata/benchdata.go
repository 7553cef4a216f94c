// Package benchdata defines the synthetic benchmark dataset: a small,
// deterministic set of tables the harness seeds into the benchmark
// catalog and loads into the search engine. Generation is pure: row i
// of a table is the same in every process.
package benchdata

import (
	"fmt"
	"strings"
	"time"

	"searchrunner/internal/engine"
)

// SchemaName is the logical schema the dataset lives in.
const SchemaName = "tiny"

// Column describes one column of a benchmark table.
type Column struct {
	Name string
	Type engine.Type
}

// Table is a benchmark table with a deterministic row generator.
type Table struct {
	Name     string
	Columns  []Column
	RowCount int
	row      func(i int) []any
}

// Row returns row i (0-based) of the table.
func (t Table) Row(i int) []any {
	return t.row(i)
}

// ColumnNames returns the column names in order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// CreateStmt returns DDL for the table, portable across the benchmark
// catalog's SQL backends.
func (t Table) CreateStmt() string {
	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		defs[i] = c.Name + " " + sqlType(c.Type)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", t.Name, strings.Join(defs, ", "))
}

// InsertStmt returns a parameterized INSERT for one row.
func (t Table) InsertStmt() string {
	ph := make([]string, len(t.Columns))
	for i := range ph {
		ph[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.Name, strings.Join(t.ColumnNames(), ", "), strings.Join(ph, ", "))
}

func sqlType(t engine.Type) string {
	switch t {
	case engine.TypeBoolean:
		return "BOOLEAN"
	case engine.TypeInteger:
		return "INTEGER"
	case engine.TypeBigint:
		return "BIGINT"
	case engine.TypeDouble:
		return "DOUBLE PRECISION"
	case engine.TypeTimestamp:
		return "TIMESTAMP"
	case engine.TypeDate:
		return "DATE"
	default:
		return "VARCHAR"
	}
}

var epoch = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

var regions = []string{"africa", "america", "asia", "europe", "middle east"}

var nations = []string{
	"algeria", "argentina", "brazil", "canada", "egypt",
	"ethiopia", "france", "germany", "india", "indonesia",
	"iran", "iraq", "japan", "jordan", "kenya",
	"morocco", "mozambique", "peru", "china", "romania",
	"saudi arabia", "vietnam", "russia", "united kingdom", "united states",
}

var segments = []string{"automobile", "building", "furniture", "machinery", "household"}

var statuses = []string{"open", "filled", "pending"}

var tables = []Table{
	{
		Name: "region",
		Columns: []Column{
			{Name: "regionkey", Type: engine.TypeBigint},
			{Name: "name", Type: engine.TypeVarchar},
			{Name: "comment", Type: engine.TypeVarchar},
		},
		RowCount: len(regions),
		row: func(i int) []any {
			return []any{int64(i), regions[i], fmt.Sprintf("region %d", i)}
		},
	},
	{
		Name: "nation",
		Columns: []Column{
			{Name: "nationkey", Type: engine.TypeBigint},
			{Name: "name", Type: engine.TypeVarchar},
			{Name: "regionkey", Type: engine.TypeBigint},
			{Name: "comment", Type: engine.TypeVarchar},
		},
		RowCount: len(nations),
		row: func(i int) []any {
			return []any{int64(i), nations[i], int64(i % len(regions)), fmt.Sprintf("nation %d", i)}
		},
	},
	{
		Name: "customer",
		Columns: []Column{
			{Name: "custkey", Type: engine.TypeBigint},
			{Name: "name", Type: engine.TypeVarchar},
			{Name: "nationkey", Type: engine.TypeBigint},
			{Name: "phone", Type: engine.TypeVarchar},
			{Name: "acctbal", Type: engine.TypeDouble},
			{Name: "mktsegment", Type: engine.TypeVarchar},
		},
		RowCount: 150,
		row: func(i int) []any {
			// Every seventh customer has no phone on file; the loader
			// must omit the field rather than index an explicit null.
			var phone any
			if i%7 != 0 {
				phone = fmt.Sprintf("27-%03d-%04d", i%1000, 1000+i)
			}
			return []any{
				int64(i + 1),
				fmt.Sprintf("customer-%06d", i+1),
				int64(i % len(nations)),
				phone,
				float64(i%9000) + float64(i%100)/100.0,
				segments[i%len(segments)],
			}
		},
	},
	{
		Name: "orders",
		Columns: []Column{
			{Name: "orderkey", Type: engine.TypeBigint},
			{Name: "custkey", Type: engine.TypeBigint},
			{Name: "orderstatus", Type: engine.TypeVarchar},
			{Name: "totalprice", Type: engine.TypeDouble},
			{Name: "orderdate", Type: engine.TypeTimestamp},
			{Name: "shippriority", Type: engine.TypeInteger},
		},
		RowCount: 375,
		row: func(i int) []any {
			return []any{
				int64(i + 1),
				int64(i%150 + 1),
				statuses[i%len(statuses)],
				float64((i*971)%100000) / 100.0,
				epoch.AddDate(0, 0, i%730),
				int64(i % 3),
			}
		},
	},
}

// Tables returns the benchmark tables in load order. Callers must not
// mutate the returned slice.
func Tables() []Table {
	return tables
}

// TableNames returns the benchmark table names in load order.
func TableNames() []string {
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}
	return names
}

// Lookup finds a benchmark table by name.
func Lookup(name string) (Table, bool) {
	for _, t := range tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}
