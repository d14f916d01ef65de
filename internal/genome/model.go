package genome

import (
	"fmt"
	"strconv"
	"strings"
)

// Model is an annotated transcript read from a gene-model file.
// Exons are sorted by genomic position regardless of strand.
type Model struct {
	GeneID         string
	GeneName       string
	TranscriptID   string
	TranscriptName string
	Source         string // GTF source column
	Chrom          string
	Strand         Strand
	Exons          []Interval
	ExonIDs        []string // parallel to Exons, may be empty
}

// Start returns the lowest exon coordinate.
func (m *Model) Start() int64 { return m.Exons[0].Start }

// End returns the highest exon coordinate.
func (m *Model) End() int64 { return m.Exons[len(m.Exons)-1].End }

// Read returns the model as a read so it can be walked edge by edge.
func (m *Model) Read() *Read {
	return &Read{
		ID:      m.TranscriptID,
		Dataset: m.Source,
		Chrom:   m.Chrom,
		Start:   m.Start(),
		End:     m.End(),
		Strand:  m.Strand,
		Exons:   m.Exons,
	}
}

// Length returns the summed exon length.
func (m *Model) Length() int64 {
	return m.Read().Length()
}

// FormatPath encodes an edge path as comma-separated IDs.
func FormatPath(path []int64) string {
	var b strings.Builder
	for i, id := range path {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(id, 10))
	}
	return b.String()
}

// ParsePath decodes a comma-separated edge path.
func ParsePath(s string) ([]int64, error) {
	if s == "" {
		return nil, fmt.Errorf("empty transcript path")
	}
	parts := strings.Split(s, ",")
	path := make([]int64, len(parts))
	for i, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse path %q: %w", s, err)
		}
		path[i] = id
	}
	return path, nil
}

// ExonIDAt returns the source ID of the i-th exon counted 5'->3', or "".
func (m *Model) ExonIDAt(i int) string {
	if len(m.ExonIDs) != len(m.Exons) || i < 0 || i >= len(m.Exons) {
		return ""
	}
	if m.Strand == Reverse {
		i = len(m.Exons) - 1 - i
	}
	return m.ExonIDs[i]
}
