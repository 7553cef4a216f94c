package engine

import (
	"fmt"
	"strings"
)

// Type is a semantic type tag in the query engine's type system.
// Table descriptions reference these tags, and the decoder rejects
// anything it does not know.
type Type string

const (
	TypeBoolean   Type = "boolean"
	TypeInteger   Type = "integer"
	TypeBigint    Type = "bigint"
	TypeDouble    Type = "double"
	TypeVarchar   Type = "varchar"
	TypeTimestamp Type = "timestamp"
	TypeDate      Type = "date"
)

// ParseType resolves a type name to a semantic type tag.
// Matching is case-insensitive.
func ParseType(s string) (Type, error) {
	switch Type(strings.ToLower(s)) {
	case TypeBoolean:
		return TypeBoolean, nil
	case TypeInteger:
		return TypeInteger, nil
	case TypeBigint:
		return TypeBigint, nil
	case TypeDouble:
		return TypeDouble, nil
	case TypeVarchar:
		return TypeVarchar, nil
	case TypeTimestamp:
		return TypeTimestamp, nil
	case TypeDate:
		return TypeDate, nil
	}
	return "", fmt.Errorf("unknown type %q", s)
}
