package schema

import (
	"testing"

	"github.com/granarylabs/granary/internal/domain"
)

func TestMapPostgres(t *testing.T) {
	m := NewTypeMapper("postgres")
	tests := []struct {
		name string
		col  domain.ColumnDescriptor
		want string
	}{
		{"bounded string", domain.ColumnDescriptor{Name: "c", Type: domain.TypeString, MaxLength: 40}, "varchar(40)"},
		{"unbounded string", domain.ColumnDescriptor{Name: "c", Type: domain.TypeString}, "text"},
		{"oversized string", domain.ColumnDescriptor{Name: "c", Type: domain.TypeString, MaxLength: 100000}, "text"},
		{"smallint", domain.ColumnDescriptor{Name: "c", Type: domain.TypeSmallInt}, "smallint"},
		{"integer", domain.ColumnDescriptor{Name: "c", Type: domain.TypeInteger}, "integer"},
		{"bigint", domain.ColumnDescriptor{Name: "c", Type: domain.TypeBigInt}, "bigint"},
		{"float", domain.ColumnDescriptor{Name: "c", Type: domain.TypeFloat}, "real"},
		{"double", domain.ColumnDescriptor{Name: "c", Type: domain.TypeDouble}, "double precision"},
		{"decimal", domain.ColumnDescriptor{Name: "c", Type: domain.TypeDecimal}, "numeric(18,6)"},
		{"currency", domain.ColumnDescriptor{Name: "c", Type: domain.TypeCurrency}, "numeric(19,4)"},
		{"boolean", domain.ColumnDescriptor{Name: "c", Type: domain.TypeBoolean}, "boolean"},
		{"datetime", domain.ColumnDescriptor{Name: "c", Type: domain.TypeDateTime}, "timestamp"},
		{"binary", domain.ColumnDescriptor{Name: "c", Type: domain.TypeBinary}, "bytea"},
		{"guid", domain.ColumnDescriptor{Name: "c", Type: domain.TypeGUID}, "uuid"},
		{"unknown", domain.ColumnDescriptor{Name: "mystery", Type: domain.TypeUnknown}, "text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Map(tt.col); got != tt.want {
				t.Errorf("Map(%v) = %q, want %q", tt.col.Type, got, tt.want)
			}
		})
	}
}

func TestMapSQLite(t *testing.T) {
	m := NewTypeMapper("sqlite")
	tests := []struct {
		name string
		col  domain.ColumnDescriptor
		want string
	}{
		{"bounded string", domain.ColumnDescriptor{Name: "c", Type: domain.TypeString, MaxLength: 40}, "varchar(40)"},
		{"datetime", domain.ColumnDescriptor{Name: "c", Type: domain.TypeDateTime}, "datetime"},
		{"binary", domain.ColumnDescriptor{Name: "c", Type: domain.TypeBinary}, "blob"},
		{"guid falls back to fixed text", domain.ColumnDescriptor{Name: "c", Type: domain.TypeGUID}, "char(36)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Map(tt.col); got != tt.want {
				t.Errorf("Map(%v) = %q, want %q", tt.col.Type, got, tt.want)
			}
		})
	}
}

func TestMapIsPure(t *testing.T) {
	m := NewTypeMapper("postgres")
	col := domain.ColumnDescriptor{Name: "total_amount", Type: domain.TypeUnknown, Nullable: true}
	first := m.Map(col)
	for i := 0; i < 100; i++ {
		if got := m.Map(col); got != first {
			t.Fatalf("Map() not deterministic: %q then %q", first, got)
		}
	}
}

func TestHeuristicsOnlyForUnknown(t *testing.T) {
	m := NewTypeMapper("postgres")

	// A declared string named like an amount stays a string.
	declared := domain.ColumnDescriptor{Name: "total_amount", Type: domain.TypeString, MaxLength: 10}
	if got := m.Map(declared); got != "varchar(10)" {
		t.Errorf("Map(declared string) = %q, want varchar(10)", got)
	}

	// The same name with no type signal maps to fixed-point.
	unknown := domain.ColumnDescriptor{Name: "total_amount", Type: domain.TypeUnknown}
	if got := m.Map(unknown); got != "numeric(19,4)" {
		t.Errorf("Map(unknown amount) = %q, want numeric(19,4)", got)
	}
}

func TestHeuristicType(t *testing.T) {
	tests := []struct {
		name string
		want domain.LogicalType
	}{
		{"total_amount", domain.TypeCurrency},
		{"unit_price", domain.TypeCurrency},
		{"created_at", domain.TypeDateTime},
		{"ship_date", domain.TypeDateTime},
		{"item_count", domain.TypeInteger},
		{"qty", domain.TypeInteger},
		{"customer_name", domain.TypeString},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := heuristicType(tt.name); got != tt.want {
				t.Errorf("heuristicType(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}
