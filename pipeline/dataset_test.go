package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleCSV = `Domaine,Prix_concurrent,Cout_production,Marge_voulue,Prix_marchandise
Mode,100,40,0.3,95
Sport,200,80,0.4,210
Mode,,40,0.3,95
Livres,50,abc,0.2,55
Sport,300,120,0.5,320
`

func writeDataset(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	return path
}

func TestLoadCSVDropsBadRows(t *testing.T) {
	path := writeDataset(t, "dataset.csv", sampleCSV)

	dataset, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("load csv: %v", err)
	}

	if len(dataset.Rows) != 3 {
		t.Fatalf("expected 3 usable rows, got %d", len(dataset.Rows))
	}
	if dataset.Dropped != 2 {
		t.Fatalf("expected 2 dropped rows, got %d", dataset.Dropped)
	}
	if dataset.Source != path {
		t.Fatalf("unexpected source: %s", dataset.Source)
	}

	first := dataset.Rows[0]
	if first.Domaine != "Mode" || first.PrixConcurrent != 100 || first.PrixMarchandise != 95 {
		t.Fatalf("unexpected first row: %+v", first)
	}

	counts := dataset.DomainCounts()
	if counts["Mode"] != 1 || counts["Sport"] != 2 {
		t.Fatalf("unexpected domain counts: %v", counts)
	}
	if len(dataset.Domains()) != 3 {
		t.Fatalf("unexpected domains: %v", dataset.Domains())
	}
}

func TestLoadCSVMissingColumn(t *testing.T) {
	path := writeDataset(t, "dataset.csv", strings.Replace(sampleCSV, "Prix_marchandise", "Prix", 1))

	_, err := LoadCSV(path)
	if err == nil || !strings.Contains(err.Error(), "Prix_marchandise") {
		t.Fatalf("expected missing column error, got %v", err)
	}
}

func TestLoadCSVNoUsableRows(t *testing.T) {
	path := writeDataset(t, "dataset.csv",
		"Domaine,Prix_concurrent,Cout_production,Marge_voulue,Prix_marchandise\nMode,,,,\n")

	if _, err := LoadCSV(path); err == nil {
		t.Fatal("expected error on dataset with no usable rows")
	}
}

func TestLoadFirstAvailable(t *testing.T) {
	dir := t.TempDir()
	second := filepath.Join(dir, "second.csv")
	if err := os.WriteFile(second, []byte(sampleCSV), 0o600); err != nil {
		t.Fatalf("write dataset: %v", err)
	}

	dataset, err := LoadFirstAvailable([]string{
		filepath.Join(dir, "first.csv"),
		second,
	})
	if err != nil {
		t.Fatalf("load first available: %v", err)
	}
	if dataset.Source != second {
		t.Fatalf("expected %s, got %s", second, dataset.Source)
	}
}

func TestLoadFirstAvailableNone(t *testing.T) {
	_, err := LoadFirstAvailable([]string{filepath.Join(t.TempDir(), "missing.csv")})
	if !errors.Is(err, ErrNoDataset) {
		t.Fatalf("expected ErrNoDataset, got %v", err)
	}
}
