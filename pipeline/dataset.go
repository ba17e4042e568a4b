package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
)

// ErrNoDataset is returned when none of the candidate dataset files exist.
var ErrNoDataset = errors.New("no dataset found")

// CandidateDatasetFiles is the ordered list of dataset filenames the
// trainer tries; the first existing file wins.
func CandidateDatasetFiles() []string {
	return []string{
		"dataset_projet_reseau_cameroun_enrichi.csv",
		"dataset_projet_reseau_100.csv",
	}
}

// Row is one usable dataset record.
type Row struct {
	Domaine         string
	PrixConcurrent  float64
	CoutProduction  float64
	MargeVoulue     float64
	PrixMarchandise float64
}

// Dataset is the cleaned tabular training data.
type Dataset struct {
	Rows    []Row
	Source  string
	Dropped int
}

var requiredColumns = []string{
	"Domaine",
	"Prix_concurrent",
	"Cout_production",
	"Marge_voulue",
	"Prix_marchandise",
}

// LoadFirstAvailable tries the candidate files in order and loads the
// first one that exists.
func LoadFirstAvailable(candidates []string) (*Dataset, error) {
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		dataset, err := LoadCSV(path)
		if err != nil {
			return nil, err
		}
		return dataset, nil
	}
	return nil, ErrNoDataset
}

// LoadCSV reads a dataset file. Rows with missing or unparseable values
// in any used column are dropped rather than imputed.
func LoadCSV(path string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[name] = i
	}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("dataset %s is missing column %q", path, name)
		}
	}

	dataset := &Dataset{Source: path}
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	for _, record := range records {
		row, ok := parseRow(record, columns)
		if !ok {
			dataset.Dropped++
			continue
		}
		dataset.Rows = append(dataset.Rows, row)
	}

	if len(dataset.Rows) == 0 {
		return nil, fmt.Errorf("dataset %s has no usable rows", path)
	}
	return dataset, nil
}

func parseRow(record []string, columns map[string]int) (Row, bool) {
	field := func(name string) (string, bool) {
		idx := columns[name]
		if idx >= len(record) {
			return "", false
		}
		value := record[idx]
		if value == "" {
			return "", false
		}
		return value, true
	}

	domaine, ok := field("Domaine")
	if !ok {
		return Row{}, false
	}

	numeric := func(name string) (float64, bool) {
		raw, ok := field(name)
		if !ok {
			return 0, false
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, false
		}
		return value, true
	}

	prixConcurrent, ok := numeric("Prix_concurrent")
	if !ok {
		return Row{}, false
	}
	coutProduction, ok := numeric("Cout_production")
	if !ok {
		return Row{}, false
	}
	margeVoulue, ok := numeric("Marge_voulue")
	if !ok {
		return Row{}, false
	}
	prixMarchandise, ok := numeric("Prix_marchandise")
	if !ok {
		return Row{}, false
	}

	return Row{
		Domaine:         domaine,
		PrixConcurrent:  prixConcurrent,
		CoutProduction:  coutProduction,
		MargeVoulue:     margeVoulue,
		PrixMarchandise: prixMarchandise,
	}, true
}

// Domains returns the domain column values in row order.
func (d *Dataset) Domains() []string {
	domains := make([]string, len(d.Rows))
	for i, row := range d.Rows {
		domains[i] = row.Domaine
	}
	return domains
}

// DomainCounts returns the number of rows per domain.
func (d *Dataset) DomainCounts() map[string]int {
	counts := make(map[string]int)
	for _, row := range d.Rows {
		counts[row.Domaine]++
	}
	return counts
}
