package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

type fakeProvider struct {
	id   string
	exts []string
}

func (p *fakeProvider) GetFormatID() string    { return p.id }
func (p *fakeProvider) GetDisplayName() string { return p.id }
func (p *fakeProvider) Extensions() []string   { return p.exts }
func (p *fakeProvider) Open(ctx context.Context, path string) (Connection, error) {
	return nil, nil
}

func TestRegistryForPath(t *testing.T) {
	reg := NewRegistry()
	sqlite := &fakeProvider{id: "sqlite", exts: []string{".sqlite", ".db"}}
	csv := &fakeProvider{id: "csv", exts: []string{".csv"}}
	if err := reg.Register(sqlite); err != nil {
		t.Fatalf("Register(sqlite) error = %v", err)
	}
	if err := reg.Register(csv); err != nil {
		t.Fatalf("Register(csv) error = %v", err)
	}

	tests := []struct {
		path   string
		wantID string
		wantOK bool
	}{
		{"/drop/orders.sqlite", "sqlite", true},
		{"/drop/orders.DB", "sqlite", true},
		{"/drop/items.csv", "csv", true},
		{"/drop/items.CSV", "csv", true},
		{"/drop/readme.txt", "", false},
		{"/drop/noext", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			p, ok := reg.ForPath(tt.path)
			if ok != tt.wantOK {
				t.Fatalf("ForPath(%q) ok = %v, want %v", tt.path, ok, tt.wantOK)
			}
			if ok && p.GetFormatID() != tt.wantID {
				t.Errorf("ForPath(%q) = %q, want %q", tt.path, p.GetFormatID(), tt.wantID)
			}
		})
	}
}

func TestRegistryRejectsDuplicateExtension(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(&fakeProvider{id: "a", exts: []string{".db"}}); err != nil {
		t.Fatalf("Register(a) error = %v", err)
	}
	if err := reg.Register(&fakeProvider{id: "b", exts: []string{".db"}}); err == nil {
		t.Error("Register(b) error = nil, want duplicate extension error")
	}
}

func TestRegistryExtensions(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeProvider{id: "csv", exts: []string{".csv"}})
	reg.Register(&fakeProvider{id: "sqlite", exts: []string{".sqlite", ".db"}})

	got := reg.Extensions()
	want := []string{".csv", ".db", ".sqlite"}
	if len(got) != len(want) {
		t.Fatalf("Extensions() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Extensions()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	mustWrite := func(name string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	mustWrite("a.sqlite")
	mustWrite("b.csv")
	mustWrite("B.CSV")
	mustWrite("notes.txt")
	if err := os.Mkdir(filepath.Join(dir, "sub.sqlite"), 0o755); err != nil {
		t.Fatal(err)
	}

	files, err := Scan(dir, []string{".sqlite", ".csv"})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if len(files) != 3 {
		t.Fatalf("Scan() returned %d files, want 3", len(files))
	}
	seen := make(map[string]bool)
	for _, f := range files {
		seen[filepath.Base(f.Path)] = true
		if !filepath.IsAbs(f.Path) {
			t.Errorf("Scan() path %q is not absolute", f.Path)
		}
		if f.ModTime.IsZero() {
			t.Errorf("Scan() path %q has zero mod time", f.Path)
		}
	}
	for _, name := range []string{"a.sqlite", "b.csv", "B.CSV"} {
		if !seen[name] {
			t.Errorf("Scan() missing %s", name)
		}
	}
	if seen["notes.txt"] || seen["sub.sqlite"] {
		t.Error("Scan() picked up an excluded entry")
	}
}

func TestScanMissingFolder(t *testing.T) {
	_, err := Scan(filepath.Join(t.TempDir(), "nope"), []string{".csv"})
	if err == nil {
		t.Fatal("Scan() error = nil, want folder error")
	}
}
