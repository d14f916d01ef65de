// Package alignment turns SAM/BAM records into reads for identification.
package alignment

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/biogo/hts/sam"

	"github.com/inodb/vibe-talon/internal/genome"
)

// ErrMissingMD is returned for a record without an MD tag. Identity cannot
// be computed without it.
var ErrMissingMD = errors.New("record lacks the MD tag")

var mdTag = sam.NewTag("MD")

// Alignment is a decoded SAM record with its QC metrics.
type Alignment struct {
	Read      *genome.Read
	SeqLength int
	Coverage  float64 // fraction of read bases that are not clipped
	Identity  float64 // fraction of read bases matching the reference
}

// Primary reports whether the record is a primary, mapped alignment on
// either strand, i.e. its flag is exactly 0 or 16.
func Primary(rec *sam.Record) bool {
	return rec.Flags == 0 || rec.Flags == sam.Reverse
}

// Decode converts a mapped record into an Alignment tagged with dataset.
func Decode(rec *sam.Record, dataset string) (*Alignment, error) {
	if rec.Ref == nil {
		return nil, &genome.MalformedReadError{ReadID: rec.Name, Message: "no reference"}
	}
	aux := rec.AuxFields.Get(mdTag)
	if aux == nil {
		return nil, fmt.Errorf("%s: %w", rec.Name, ErrMissingMD)
	}
	md, ok := aux.Value().(string)
	if !ok {
		return nil, fmt.Errorf("%s: MD tag has type %c", rec.Name, aux.Type())
	}
	identity, err := Identity(md, rec.Seq.Length)
	if err != nil {
		return nil, &genome.MalformedReadError{ReadID: rec.Name, Message: err.Error()}
	}

	exons := Exons(int64(rec.Pos)+1, rec.Cigar)
	if len(exons) == 0 {
		return nil, &genome.MalformedReadError{ReadID: rec.Name, Message: "CIGAR aligns no reference bases"}
	}
	strand := genome.Forward
	if rec.Flags&sam.Reverse != 0 {
		strand = genome.Reverse
	}

	return &Alignment{
		Read: &genome.Read{
			ID:      rec.Name,
			Dataset: dataset,
			Chrom:   rec.Ref.Name(),
			Start:   exons[0].Start,
			End:     exons[len(exons)-1].End,
			Strand:  strand,
			Exons:   exons,
		},
		SeqLength: rec.Seq.Length,
		Coverage:  Coverage(rec.Cigar),
		Identity:  identity,
	}, nil
}

// Exons walks a CIGAR from the 1-based leftmost position and returns the
// aligned blocks. Reference skips (N) separate exons; deletions stay
// inside the current exon.
func Exons(start int64, cigar sam.Cigar) []genome.Interval {
	var exons []genome.Interval
	pos := start
	open := false
	for _, op := range cigar {
		n := int64(op.Len())
		switch op.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch, sam.CigarDeletion:
			if open {
				exons[len(exons)-1].End = pos + n - 1
			} else {
				exons = append(exons, genome.Interval{Start: pos, End: pos + n - 1})
				open = true
			}
			pos += n
		case sam.CigarSkipped:
			open = false
			pos += n
		}
	}
	return exons
}

// Coverage returns the fraction of read bases that are aligned rather than
// soft or hard clipped.
func Coverage(cigar sam.Cigar) float64 {
	var aligned, clipped int
	for _, op := range cigar {
		switch op.Type() {
		case sam.CigarMatch, sam.CigarInsertion, sam.CigarEqual, sam.CigarMismatch:
			aligned += op.Len()
		case sam.CigarSoftClipped, sam.CigarHardClipped:
			clipped += op.Len()
		}
	}
	if aligned+clipped == 0 {
		return 0
	}
	return float64(aligned) / float64(aligned+clipped)
}

// Identity returns MD matches / (read length + deleted bases).
func Identity(md string, seqLength int) (float64, error) {
	matches, _, deletions, err := parseMD(md)
	if err != nil {
		return 0, err
	}
	total := seqLength + deletions
	if total == 0 {
		return 0, nil
	}
	return float64(matches) / float64(total), nil
}

// parseMD counts matched, mismatched and deleted reference bases in an MD
// tag value such as "10A5^AC6".
func parseMD(md string) (matches, mismatches, deletions int, err error) {
	for i := 0; i < len(md); {
		c := md[i]
		switch {
		case isDigit(c):
			j := i
			for j < len(md) && isDigit(md[j]) {
				j++
			}
			n, err := strconv.Atoi(md[i:j])
			if err != nil {
				return 0, 0, 0, fmt.Errorf("MD %q: %w", md, err)
			}
			matches += n
			i = j
		case c == '^':
			j := i + 1
			for j < len(md) && isBase(md[j]) {
				j++
			}
			if j == i+1 {
				return 0, 0, 0, fmt.Errorf("MD %q: empty deletion at offset %d", md, i)
			}
			deletions += j - i - 1
			i = j
		case isBase(c):
			mismatches++
			i++
		default:
			return 0, 0, 0, fmt.Errorf("MD %q: unexpected %q at offset %d", md, c, i)
		}
	}
	return matches, mismatches, deletions, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isBase(c byte) bool { return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') }
