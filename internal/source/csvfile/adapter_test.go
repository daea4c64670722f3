package csvfile

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/granarylabs/granary/internal/domain"
	"github.com/granarylabs/granary/internal/source"
)

func writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func openCursor(t *testing.T, path string) source.Cursor {
	t.Helper()
	adapter := NewAdapter()
	conn, err := adapter.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	tables, err := conn.Tables(context.Background())
	if err != nil {
		t.Fatalf("Tables() error = %v", err)
	}
	cur, err := conn.OpenCursor(context.Background(), tables[0])
	if err != nil {
		t.Fatalf("OpenCursor() error = %v", err)
	}
	t.Cleanup(func() { cur.Close() })
	return cur
}

func TestTablesNamedAfterFile(t *testing.T) {
	path := writeCSV(t, "daily_sales.csv", "a,b\n1,2\n")
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
	if len(tables) != 1 || tables[0] != "daily_sales" {
		t.Errorf("Tables() = %v, want [daily_sales]", tables)
	}
}

func TestInferredColumnTypes(t *testing.T) {
	content := "id,name,active,score,joined,big\n" +
		"1,ann,true,1.5,2024-01-02,9999999999\n" +
		"2,bob,false,2,2024-02-03,1\n" +
		"3,,true,,2024-03-04,-9999999999\n"
	cur := openCursor(t, writeCSV(t, "users.csv", content))

	cols := cur.Columns()
	want := []domain.LogicalType{
		domain.TypeInteger,
		domain.TypeString,
		domain.TypeBoolean,
		domain.TypeDouble,
		domain.TypeDateTime,
		domain.TypeBigInt,
	}
	if len(cols) != len(want) {
		t.Fatalf("Columns() returned %d columns, want %d", len(cols), len(want))
	}
	for i, w := range want {
		if cols[i].Type != w {
			t.Errorf("column %s type = %v, want %v", cols[i].Name, cols[i].Type, w)
		}
		if !cols[i].Nullable {
			t.Errorf("column %s is not nullable, CSV columns always are", cols[i].Name)
		}
	}
}

func TestRowConversion(t *testing.T) {
	content := "id,name,active,joined\n" +
		"1,ann,true,2024-01-02 15:04:05\n" +
		"2,,false,\n"
	cur := openCursor(t, writeCSV(t, "users.csv", content))

	row1, err := cur.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if got := row1[0]; got != int64(1) {
		t.Errorf("row1.id = %v (%T), want int64 1", got, got)
	}
	if got := row1[2]; got != true {
		t.Errorf("row1.active = %v, want true", got)
	}
	if _, ok := row1[3].(time.Time); !ok {
		t.Errorf("row1.joined = %T, want time.Time", row1[3])
	}

	row2, err := cur.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if row2[1] != nil {
		t.Errorf("row2.name = %v, want nil for empty cell", row2[1])
	}
	if row2[3] != nil {
		t.Errorf("row2.joined = %v, want nil for empty cell", row2[3])
	}

	if _, err := cur.Next(); err != io.EOF {
		t.Errorf("Next() after last row = %v, want io.EOF", err)
	}
}

func TestConversionMismatchPastSample(t *testing.T) {
	adapter := NewAdapter()
	adapter.sampleSize = 2

	content := "n\n1\n2\nnot-a-number\n"
	path := writeCSV(t, "nums.csv", content)
	conn, err := adapter.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer conn.Close()

	cur, err := conn.OpenCursor(context.Background(), "nums")
	if err != nil {
		t.Fatalf("OpenCursor() error = %v", err)
	}
	defer cur.Close()

	if cur.Columns()[0].Type != domain.TypeInteger {
		t.Fatalf("inferred type = %v, want integer from sample", cur.Columns()[0].Type)
	}
	if _, err := cur.Next(); err != nil {
		t.Fatalf("Next() row 1 error = %v", err)
	}
	if _, err := cur.Next(); err != nil {
		t.Fatalf("Next() row 2 error = %v", err)
	}
	if _, err := cur.Next(); err == nil {
		t.Error("Next() row 3 error = nil, want conversion error")
	}
}

func TestEmptyFileSchemaUnavailable(t *testing.T) {
	adapter := NewAdapter()
	path := writeCSV(t, "empty.csv", "")
	conn, err := adapter.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer conn.Close()

	_, err = conn.OpenCursor(context.Background(), "empty")
	if !errors.Is(err, source.ErrSchemaUnavailable) {
		t.Errorf("OpenCursor() error = %v, want ErrSchemaUnavailable", err)
	}
}

func TestBlankHeaderColumnSchemaUnavailable(t *testing.T) {
	adapter := NewAdapter()
	path := writeCSV(t, "bad.csv", "a,,c\n1,2,3\n")
	conn, err := adapter.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer conn.Close()

	_, err = conn.OpenCursor(context.Background(), "bad")
	if !errors.Is(err, source.ErrSchemaUnavailable) {
		t.Errorf("OpenCursor() error = %v, want ErrSchemaUnavailable", err)
	}
}

func TestHeaderBOMStripped(t *testing.T) {
	cur := openCursor(t, writeCSV(t, "bom.csv", "\uFEFFid,name\n1,ann\n"))
	if got := cur.Columns()[0].Name; got != "id" {
		t.Errorf("first column name = %q, want id", got)
	}
}

func TestHeaderOnlyFileHasNoRows(t *testing.T) {
	cur := openCursor(t, writeCSV(t, "only_header.csv", "a,b\n"))
	if _, err := cur.Next(); err != io.EOF {
		t.Errorf("Next() = %v, want io.EOF", err)
	}
}
