package output

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/vibe-talon/internal/alignment"
)

// QCWriter logs reads rejected for low coverage or identity.
type QCWriter struct {
	w *bufio.Writer
}

// NewQCWriter creates a QC log writer.
func NewQCWriter(w io.Writer) *QCWriter {
	return &QCWriter{w: bufio.NewWriter(w)}
}

// WriteHeader records the thresholds in use followed by the column names.
func (qw *QCWriter) WriteHeader(f alignment.Filter) error {
	_, err := fmt.Fprintf(qw.w, "# Min read length: %d\n# Fraction aligned: %g\n# Min identity to reference: %g\n%s\n",
		f.MinLength, f.MinCoverage, f.MinIdentity,
		strings.Join([]string{"dataset", "read_ID", "fraction_aligned", "identity"}, "\t"))
	return err
}

// Write logs one rejected alignment.
func (qw *QCWriter) Write(a *alignment.Alignment) error {
	values := []string{
		a.Read.Dataset,
		a.Read.ID,
		strconv.FormatFloat(a.Coverage, 'g', 6, 64),
		strconv.FormatFloat(a.Identity, 'g', 6, 64),
	}
	_, err := qw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (qw *QCWriter) Flush() error {
	return qw.w.Flush()
}
