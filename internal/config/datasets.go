package config

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Dataset is one line of a run's dataset file.
type Dataset struct {
	Name     string
	Sample   string
	Platform string
	SAM      string // path to the SAM/BAM file
}

// LoadDatasets reads a dataset file.
func LoadDatasets(path string) ([]Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset file: %w", err)
	}
	defer f.Close()
	return ReadDatasets(f)
}

// ReadDatasets parses comma-separated "name,sample,platform,sam" lines.
// Blank lines and lines starting with # are ignored. Dataset names must
// be unique.
func ReadDatasets(r io.Reader) ([]Dataset, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out []Dataset
	seen := make(map[string]int)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read dataset file: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if len(rec) != 4 {
			return nil, fmt.Errorf("dataset file line %d: expected 4 fields (name,sample,platform,sam), got %d", line, len(rec))
		}
		for i := range rec {
			rec[i] = strings.TrimSpace(rec[i])
		}
		d := Dataset{Name: rec[0], Sample: rec[1], Platform: rec[2], SAM: rec[3]}
		if d.Name == "" || d.SAM == "" {
			return nil, fmt.Errorf("dataset file line %d: name and sam path are required", line)
		}
		if prev, ok := seen[d.Name]; ok {
			return nil, fmt.Errorf("dataset file line %d: dataset %q already defined on line %d", line, d.Name, prev)
		}
		seen[d.Name] = line
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("dataset file lists no datasets")
	}
	return out, nil
}
