package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/granarylabs/granary/internal/domain"
)

func readReport(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return rows
}

func TestWritePassListsFailuresAndSkips(t *testing.T) {
	w := NewWriter(t.TempDir())
	result := &domain.PassResult{
		PassID:       "p1",
		Total:        4,
		Succeeded:    1,
		Partial:      1,
		Failed:       1,
		Skipped:      1,
		RowsImported: 250,
		StartTime:    time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC),
		Files: []domain.FileOutcome{
			{
				Path:   "/drop/good.sqlite",
				Status: domain.FileStatusSuccess,
				Tables: []domain.TableOutcome{
					{TableName: "orders", Status: domain.TableStatusSuccess, RowsImported: 200},
				},
			},
			{
				Path:   "/drop/mixed.sqlite",
				Status: domain.FileStatusPartial,
				Tables: []domain.TableOutcome{
					{TableName: "customers", Status: domain.TableStatusSuccess, RowsImported: 50},
					{TableName: "invoices", Status: domain.TableStatusFailed, ErrorMessage: "transfer failed: constraint"},
				},
			},
			{
				Path:   "/drop/bad.sqlite",
				Status: domain.FileStatusFailed,
				Tables: []domain.TableOutcome{
					{TableName: "events", Status: domain.TableStatusFailed, ErrorMessage: "schema mismatch"},
				},
			},
			{
				Path:         "/drop/locked.sqlite",
				Status:       domain.FileStatusSkipped,
				ErrorMessage: "file is locked",
			},
		},
	}

	path, err := w.WritePass(result)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "pass_20240501_103000.csv" {
		t.Errorf("report file = %q", filepath.Base(path))
	}

	rows := readReport(t, path)
	want := [][]string{
		{"file", "table", "rows", "error"},
		{"/drop/mixed.sqlite", "invoices", "0", "transfer failed: constraint"},
		{"/drop/bad.sqlite", "events", "0", "schema mismatch"},
		{"/drop/locked.sqlite", "", "0", "file is locked"},
		{"summary", "", "250", "total=4 success=1 partial_success=1 failed=1 skipped=1"},
	}
	if len(rows) != len(want) {
		t.Fatalf("report has %d rows, want %d: %v", len(rows), len(want), rows)
	}
	for i := range want {
		for j := range want[i] {
			if rows[i][j] != want[i][j] {
				t.Errorf("row %d col %d = %q, want %q", i, j, rows[i][j], want[i][j])
			}
		}
	}
}

func TestWritePassSucceedingTablesExcluded(t *testing.T) {
	w := NewWriter(t.TempDir())
	result := &domain.PassResult{
		Total:     1,
		Succeeded: 1,
		StartTime: time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC),
		Files: []domain.FileOutcome{
			{
				Path:   "/drop/clean.csv",
				Status: domain.FileStatusSuccess,
				Tables: []domain.TableOutcome{
					{TableName: "clean", Status: domain.TableStatusSuccess, RowsImported: 10},
				},
			},
		},
	}

	path, err := w.WritePass(result)
	if err != nil {
		t.Fatal(err)
	}

	rows := readReport(t, path)
	if len(rows) != 2 {
		t.Fatalf("report has %d rows, want header + summary only: %v", len(rows), rows)
	}
}
