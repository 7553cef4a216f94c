package loader

import (
	"fmt"
	"math"
	"time"

	"searchrunner/internal/searchengine"
)

// documentFrom shapes one row into a document. Null values are
// omitted rather than written as JSON null; integral values widen to
// int64 and timestamps render as RFC 3339 strings, so a document
// round-trips through JSON without losing the column's semantic type.
func documentFrom(cols []string, row []any) (searchengine.Document, error) {
	doc := make(searchengine.Document, len(cols))
	for i, col := range cols {
		value, err := fieldValue(row[i])
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col, err)
		}
		if value != nil {
			doc[col] = value
		}
	}
	return doc, nil
}

func fieldValue(v any) (any, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case bool, string, int64, float64:
		return v, nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint:
		if uint64(v) > math.MaxInt64 {
			return nil, fmt.Errorf("unsigned value %d overflows int64", v)
		}
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return nil, fmt.Errorf("unsigned value %d overflows int64", v)
		}
		return int64(v), nil
	case float32:
		return float64(v), nil
	case []byte:
		return string(v), nil
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano), nil
	}
	return nil, fmt.Errorf("unsupported value type %T", v)
}
