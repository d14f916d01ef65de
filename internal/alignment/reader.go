package alignment

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/bgzf"
	"github.com/biogo/hts/sam"
)

// RecordReader yields alignment records until io.EOF.
type RecordReader interface {
	Read() (*sam.Record, error)
}

// Reader reads records from a SAM, gzipped SAM or BAM file.
type Reader struct {
	RecordReader
	closers []io.Closer
}

// Open opens an alignment file. Files ending in .bam are read as BAM with
// the given number of decompression goroutines, .gz as gzipped SAM, and
// anything else as plain SAM.
func Open(path string, threads int) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open alignment file: %w", err)
	}
	r := &Reader{closers: []io.Closer{f}}

	switch {
	case strings.HasSuffix(path, ".bam"):
		ok, err := bgzf.HasEOF(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("check BAM EOF marker: %w", err)
		}
		if !ok {
			f.Close()
			return nil, fmt.Errorf("%s: BAM EOF marker is absent, file may be truncated", path)
		}
		br, err := bam.NewReader(f, threads)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open BAM reader: %w", err)
		}
		r.RecordReader = br
		r.closers = append(r.closers, br)

	case strings.HasSuffix(path, ".gz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open gzip reader: %w", err)
		}
		r.closers = append(r.closers, gz)
		if r.RecordReader, err = sam.NewReader(bufio.NewReader(gz)); err != nil {
			r.Close()
			return nil, fmt.Errorf("read SAM header: %w", err)
		}

	default:
		if r.RecordReader, err = sam.NewReader(bufio.NewReader(f)); err != nil {
			f.Close()
			return nil, fmt.Errorf("read SAM header: %w", err)
		}
	}
	return r, nil
}

// Close releases the file and any decompressor, innermost first.
func (r *Reader) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i].Close())
	}
	return errors.Join(errs...)
}
