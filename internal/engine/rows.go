package engine

// Rows is a lazy, finite result stream. It is not restartable: once a
// row has been consumed it cannot be re-read without re-submitting the
// query. Callers must check Err after Next returns false and must Close
// the stream on every exit path.
type Rows interface {
	// Columns returns the column names in result order.
	Columns() []string

	// Next advances to the next row. It returns false at end of stream
	// or on error.
	Next() bool

	// Row returns the current row's values in column order. The slice is
	// only valid until the next call to Next.
	Row() []any

	// Err returns the error, if any, that ended the stream early.
	Err() error

	// Close releases the stream's resources.
	Close() error
}

// sliceRows adapts a materialized result to the Rows interface.
// Used by connectors whose backends page results in memory.
type sliceRows struct {
	cols []string
	rows [][]any
	pos  int
	err  error
}

// NewSliceRows wraps pre-fetched rows in a Rows stream.
func NewSliceRows(cols []string, rows [][]any) Rows {
	return &sliceRows{cols: cols, rows: rows, pos: -1}
}

func (r *sliceRows) Columns() []string { return r.cols }

func (r *sliceRows) Next() bool {
	if r.pos+1 >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *sliceRows) Row() []any   { return r.rows[r.pos] }
func (r *sliceRows) Err() error   { return r.err }
func (r *sliceRows) Close() error { return nil }
