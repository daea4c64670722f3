package schema

import (
	"fmt"
	"strings"

	"github.com/granarylabs/granary/internal/domain"
)

// maxVarcharLen caps declared text lengths; longer declarations fall back to
// the destination's unbounded text type.
const maxVarcharLen = 65535

// TypeMapper converts logical column types into destination DDL type strings.
// Mapping is pure: the same descriptor always yields the same type string.
type TypeMapper struct {
	dialect string
}

// NewTypeMapper creates a mapper for the given destination dialect.
func NewTypeMapper(dialect string) *TypeMapper {
	return &TypeMapper{dialect: dialect}
}

// Map returns the destination type for one column. Unknown logical types
// consult name-based heuristics and otherwise land as unbounded text, so an
// odd column never blocks the rest of the table.
func (m *TypeMapper) Map(col domain.ColumnDescriptor) string {
	t := col.Type
	if t == domain.TypeUnknown || t == "" {
		t = heuristicType(col.Name)
	}
	if m.dialect == "postgres" {
		return postgresType(t, col.MaxLength)
	}
	return sqliteType(t, col.MaxLength)
}

func postgresType(t domain.LogicalType, maxLen int) string {
	switch t {
	case domain.TypeString:
		if maxLen > 0 && maxLen <= maxVarcharLen {
			return fmt.Sprintf("varchar(%d)", maxLen)
		}
		return "text"
	case domain.TypeSmallInt:
		return "smallint"
	case domain.TypeInteger:
		return "integer"
	case domain.TypeBigInt:
		return "bigint"
	case domain.TypeFloat:
		return "real"
	case domain.TypeDouble:
		return "double precision"
	case domain.TypeDecimal:
		return "numeric(18,6)"
	case domain.TypeCurrency:
		return "numeric(19,4)"
	case domain.TypeBoolean:
		return "boolean"
	case domain.TypeDateTime:
		return "timestamp"
	case domain.TypeBinary:
		return "bytea"
	case domain.TypeGUID:
		return "uuid"
	}
	return "text"
}

func sqliteType(t domain.LogicalType, maxLen int) string {
	switch t {
	case domain.TypeString:
		if maxLen > 0 && maxLen <= maxVarcharLen {
			return fmt.Sprintf("varchar(%d)", maxLen)
		}
		return "text"
	case domain.TypeSmallInt:
		return "smallint"
	case domain.TypeInteger:
		return "integer"
	case domain.TypeBigInt:
		return "bigint"
	case domain.TypeFloat:
		return "real"
	case domain.TypeDouble:
		return "double precision"
	case domain.TypeDecimal:
		return "numeric(18,6)"
	case domain.TypeCurrency:
		return "numeric(19,4)"
	case domain.TypeBoolean:
		return "boolean"
	case domain.TypeDateTime:
		return "datetime"
	case domain.TypeBinary:
		return "blob"
	case domain.TypeGUID:
		// No native UUID type; fixed-length text holds the canonical form.
		return "char(36)"
	}
	return "text"
}

// heuristicType guesses a logical type from the column name. It applies only
// when the source reports no type at all, never overriding a declared type,
// length, or nullability.
func heuristicType(name string) domain.LogicalType {
	lower := strings.ToLower(name)
	switch {
	case hasAnySuffix(lower, "_amount", "_price", "_total", "_cost", "_balance") ||
		lower == "amount" || lower == "price" || lower == "total" || lower == "cost":
		return domain.TypeCurrency
	case hasAnySuffix(lower, "_date", "_time", "_at", "_timestamp") ||
		lower == "date" || lower == "timestamp":
		return domain.TypeDateTime
	case hasAnySuffix(lower, "_count", "_qty", "_quantity") ||
		lower == "count" || lower == "qty" || lower == "quantity":
		return domain.TypeInteger
	}
	return domain.TypeString
}

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}
