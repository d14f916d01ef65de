package genome

import "fmt"

// Interval is an exon [Start, End] in 1-based inclusive genomic coordinates.
type Interval struct {
	Start int64
	End   int64
}

// Read is an aligned long read, ready for identification.
// Exons are sorted by genomic position regardless of strand.
type Read struct {
	ID      string
	Dataset string
	Chrom   string
	Start   int64
	End     int64
	Strand  Strand
	Exons   []Interval
}

// MalformedReadError reports a read that cannot be identified.
type MalformedReadError struct {
	ReadID  string
	Message string
}

func (e *MalformedReadError) Error() string {
	return fmt.Sprintf("malformed read %s: %s", e.ReadID, e.Message)
}

// Validate checks that the read has the fields and coordinate layout the
// matcher assumes: at least one exon, start <= end, and strictly increasing
// exon boundaries so that no edge has zero length.
func (r *Read) Validate() error {
	bad := func(format string, args ...any) error {
		return &MalformedReadError{ReadID: r.ID, Message: fmt.Sprintf(format, args...)}
	}
	switch {
	case r.ID == "":
		return bad("missing read ID")
	case r.Dataset == "":
		return bad("missing dataset")
	case r.Chrom == "":
		return bad("missing chromosome")
	case r.Strand != Forward && r.Strand != Reverse:
		return bad("invalid strand %d", r.Strand)
	case len(r.Exons) == 0:
		return bad("no exons")
	case r.Start > r.End:
		return bad("start %d > end %d", r.Start, r.End)
	}

	prev := int64(0)
	for i, e := range r.Exons {
		if e.Start >= e.End {
			return bad("exon %d has start %d >= end %d", i+1, e.Start, e.End)
		}
		if e.Start <= prev {
			return bad("exon %d starts at %d, not after %d", i+1, e.Start, prev)
		}
		prev = e.End
	}
	if r.Exons[0].Start != r.Start || r.Exons[len(r.Exons)-1].End != r.End {
		return bad("exons span %d-%d but read spans %d-%d",
			r.Exons[0].Start, r.Exons[len(r.Exons)-1].End, r.Start, r.End)
	}
	return nil
}

// NExons returns the number of exons in the read.
func (r *Read) NExons() int {
	return len(r.Exons)
}

// Length returns the summed exon length of the read.
func (r *Read) Length() int64 {
	var n int64
	for _, e := range r.Exons {
		n += e.End - e.Start + 1
	}
	return n
}

// Positions returns the exon boundaries in 5'->3' order.
func (r *Read) Positions() []int64 {
	pos := make([]int64, 0, 2*len(r.Exons))
	for _, e := range r.Exons {
		pos = append(pos, e.Start, e.End)
	}
	if r.Strand == Reverse {
		for i, j := 0, len(pos)-1; i < j; i, j = i+1, j-1 {
			pos[i], pos[j] = pos[j], pos[i]
		}
	}
	return pos
}

// QueryEdge is one exon or intron of a read, ordered 5'->3'.
type QueryEdge struct {
	Pos1, Pos2 int64
	Type       EdgeType
}

// Start returns the lower genomic coordinate of the edge.
func (q QueryEdge) Start() int64 { return min(q.Pos1, q.Pos2) }

// End returns the higher genomic coordinate of the edge.
func (q QueryEdge) End() int64 { return max(q.Pos1, q.Pos2) }

// Edges returns the read's alternating exon/intron edges in 5'->3' order.
func (r *Read) Edges() []QueryEdge {
	pos := r.Positions()
	edges := make([]QueryEdge, 0, len(pos)-1)
	for i := 0; i+1 < len(pos); i++ {
		t := Exon
		if i%2 == 1 {
			t = Intron
		}
		edges = append(edges, QueryEdge{Pos1: pos[i], Pos2: pos[i+1], Type: t})
	}
	return edges
}
