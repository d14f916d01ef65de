// Package output provides read assignment and QC output formatters.
package output

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/vibe-talon/internal/registry"
)

// TabWriter writes read assignments in tab-delimited format.
type TabWriter struct {
	w       *bufio.Writer
	columns []string
}

// NewTabWriter creates a new tab-delimited writer.
func NewTabWriter(w io.Writer) *TabWriter {
	return &TabWriter{
		w: bufio.NewWriter(w),
		columns: []string{
			"dataset",
			"read_ID",
			"chromosome",
			"start",
			"end",
			"strand",
			"gene_ID",
			"transcript_ID",
			"annotation_status",
			"length",
			"diff_5",
			"diff_3",
		},
	}
}

// WriteHeader writes the header line.
func (tw *TabWriter) WriteHeader() error {
	_, err := tw.w.WriteString(strings.Join(tw.columns, "\t") + "\n")
	return err
}

// Write writes a single assignment.
func (tw *TabWriter) Write(a *registry.Assignment) error {
	r := a.Read
	values := []string{
		r.Dataset,
		r.ID,
		r.Chrom,
		strconv.FormatInt(r.Start, 10),
		strconv.FormatInt(r.End, 10),
		r.Strand.String(),
		strconv.FormatInt(a.GeneID, 10),
		strconv.FormatInt(a.TranscriptID, 10),
		string(a.Status),
		strconv.FormatInt(r.Length(), 10),
		strconv.FormatInt(a.Diff5, 10),
		strconv.FormatInt(a.Diff3, 10),
	}

	_, err := tw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}
