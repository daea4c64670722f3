package sqlitefile

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/granarylabs/granary/internal/domain"
	"github.com/granarylabs/granary/internal/source"
)

func newTestDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orders.sqlite")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open fixture db: %v", err)
	}
	defer db.Close()

	stmts := []string{
		`CREATE TABLE orders (
			id INTEGER PRIMARY KEY,
			customer VARCHAR(40) NOT NULL,
			total DECIMAL(10,2),
			placed_at DATETIME
		)`,
		`CREATE TABLE notes (body TEXT)`,
		`INSERT INTO orders (customer, total, placed_at) VALUES ('acme', 12.5, '2024-01-02 15:04:05')`,
		`INSERT INTO orders (customer, total, placed_at) VALUES ('globex', 99.0, '2024-02-03 08:00:00')`,
		`INSERT INTO notes (body) VALUES ('hello')`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("fixture statement %q: %v", stmt, err)
		}
	}
	return path
}

func TestOpenAndTables(t *testing.T) {
	path := newTestDB(t)
	adapter := NewAdapter()

	conn, err := adapter.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer conn.Close()

	tables, err := conn.Tables(context.Background())
	if err != nil {
		t.Fatalf("Tables() error = %v", err)
	}
	want := []string{"notes", "orders"}
	if len(tables) != len(want) {
		t.Fatalf("Tables() = %v, want %v", tables, want)
	}
	for i := range want {
		if tables[i] != want[i] {
			t.Errorf("Tables()[%d] = %q, want %q", i, tables[i], want[i])
		}
	}
}

func TestCursorColumnsAndRows(t *testing.T) {
	path := newTestDB(t)
	adapter := NewAdapter()

	conn, err := adapter.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer conn.Close()

	cur, err := conn.OpenCursor(context.Background(), "orders")
	if err != nil {
		t.Fatalf("OpenCursor() error = %v", err)
	}
	defer cur.Close()

	cols := cur.Columns()
	if len(cols) != 4 {
		t.Fatalf("Columns() returned %d columns, want 4", len(cols))
	}

	id := cols[0]
	if id.Name != "id" || id.Type != domain.TypeInteger {
		t.Errorf("id column = %+v, want integer id", id)
	}
	if !id.IsPrimaryKey || !id.IsIdentity {
		t.Errorf("id column = %+v, want primary key identity", id)
	}
	customer := cols[1]
	if customer.Type != domain.TypeString || customer.MaxLength != 40 {
		t.Errorf("customer column = %+v, want string(40)", customer)
	}
	if customer.Nullable {
		t.Error("customer column is nullable, want NOT NULL")
	}
	if cols[2].Type != domain.TypeDecimal {
		t.Errorf("total column type = %v, want decimal", cols[2].Type)
	}
	if cols[3].Type != domain.TypeDateTime {
		t.Errorf("placed_at column type = %v, want datetime", cols[3].Type)
	}

	var rows [][]interface{}
	for {
		row, err := cur.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		rows = append(rows, row)
	}
	if len(rows) != 2 {
		t.Fatalf("read %d rows, want 2", len(rows))
	}
	if got := rows[0][1]; got != "acme" {
		t.Errorf("rows[0].customer = %v, want acme", got)
	}
	if _, ok := rows[0][3].(time.Time); !ok {
		t.Errorf("rows[0].placed_at = %T, want time.Time", rows[0][3])
	}
}

func TestOpenMissingFile(t *testing.T) {
	adapter := NewAdapter()
	_, err := adapter.Open(context.Background(), filepath.Join(t.TempDir(), "gone.sqlite"))
	if err == nil {
		t.Fatal("Open() error = nil, want open error")
	}
}

func TestOpenNotADatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.sqlite")
	if err := os.WriteFile(path, []byte("this is not a database"), 0o644); err != nil {
		t.Fatal(err)
	}

	adapter := NewAdapter()
	_, err := adapter.Open(context.Background(), path)
	if err == nil {
		t.Fatal("Open() error = nil, want schema error")
	}
	if !errors.Is(err, source.ErrSchemaUnavailable) {
		t.Errorf("Open() error = %v, want ErrSchemaUnavailable", err)
	}
}

func TestMapDeclaredType(t *testing.T) {
	tests := []struct {
		decl    string
		want    domain.LogicalType
		wantLen int
	}{
		{"INTEGER", domain.TypeInteger, 0},
		{"int", domain.TypeInteger, 0},
		{"BIGINT", domain.TypeBigInt, 0},
		{"SMALLINT", domain.TypeSmallInt, 0},
		{"TINYINT", domain.TypeSmallInt, 0},
		{"VARCHAR(40)", domain.TypeString, 40},
		{"NVARCHAR(255)", domain.TypeString, 255},
		{"CHAR(10)", domain.TypeString, 10},
		{"TEXT", domain.TypeString, 0},
		{"BLOB", domain.TypeBinary, 0},
		{"", domain.TypeBinary, 0},
		{"REAL", domain.TypeDouble, 0},
		{"DOUBLE PRECISION", domain.TypeDouble, 0},
		{"FLOAT", domain.TypeDouble, 0},
		{"DECIMAL(10,2)", domain.TypeDecimal, 0},
		{"NUMERIC", domain.TypeDecimal, 0},
		{"MONEY", domain.TypeCurrency, 0},
		{"BOOLEAN", domain.TypeBoolean, 0},
		{"DATETIME", domain.TypeDateTime, 0},
		{"TIMESTAMP", domain.TypeDateTime, 0},
		{"GUID", domain.TypeGUID, 0},
		{"UNIQUEIDENTIFIER", domain.TypeGUID, 0},
	}

	for _, tt := range tests {
		t.Run(tt.decl, func(t *testing.T) {
			got, gotLen := mapDeclaredType(tt.decl)
			if got != tt.want || gotLen != tt.wantLen {
				t.Errorf("mapDeclaredType(%q) = (%v, %d), want (%v, %d)",
					tt.decl, got, gotLen, tt.want, tt.wantLen)
			}
		})
	}
}

func TestQuoteIdent(t *testing.T) {
	if got := quoteIdent(`weird"name`); got != `"weird""name"` {
		t.Errorf("quoteIdent() = %s", got)
	}
}
