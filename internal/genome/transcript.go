// Package genome defines the genomic records shared by the index, matcher and registry.
package genome

import (
	"fmt"
	"sort"
)

// Strand is +1 (forward) or -1 (reverse).
type Strand int8

const (
	Forward Strand = 1
	Reverse Strand = -1
)

// ParseStrand converts "+" or "-" to a Strand.
func ParseStrand(s string) (Strand, error) {
	switch s {
	case "+":
		return Forward, nil
	case "-":
		return Reverse, nil
	}
	return 0, fmt.Errorf("invalid strand %q", s)
}

// String returns "+" or "-".
func (s Strand) String() string {
	if s == Reverse {
		return "-"
	}
	return "+"
}

// EdgeType distinguishes exons from introns.
type EdgeType uint8

const (
	Exon EdgeType = iota
	Intron
)

// String returns the database name of the edge type.
func (t EdgeType) String() string {
	if t == Intron {
		return "intron"
	}
	return "exon"
}

// ParseEdgeType converts "exon" or "intron" to an EdgeType.
func ParseEdgeType(s string) (EdgeType, error) {
	switch s {
	case "exon":
		return Exon, nil
	case "intron":
		return Intron, nil
	}
	return 0, fmt.Errorf("invalid edge type %q", s)
}

// Vertex is a single genomic position used as a transcript boundary or splice site.
// Vertices are scoped to a gene: the same coordinate in two genes is two vertices.
type Vertex struct {
	ID     int64
	GeneID int64
	Chrom  string
	Pos    int64 // 1-based
	Strand Strand
}

// Edge is an exon or intron between two vertices. V1 and V2 are ordered 5'->3'
// for the edge's strand, so on the reverse strand Pos1 > Pos2.
type Edge struct {
	ID            int64
	GeneID        int64
	Chrom         string
	Strand        Strand
	Type          EdgeType
	V1, V2        int64 // vertex IDs
	Pos1, Pos2    int64 // vertex positions
	TranscriptIDs map[int64]struct{}
}

// Start returns the lower genomic coordinate of the edge.
func (e *Edge) Start() int64 { return min(e.Pos1, e.Pos2) }

// End returns the higher genomic coordinate of the edge.
func (e *Edge) End() int64 { return max(e.Pos1, e.Pos2) }

// AddTranscript records that a transcript uses this edge.
func (e *Edge) AddTranscript(id int64) {
	if e.TranscriptIDs == nil {
		e.TranscriptIDs = make(map[int64]struct{})
	}
	e.TranscriptIDs[id] = struct{}{}
}

// HasTranscript reports whether the transcript uses this edge.
func (e *Edge) HasTranscript(id int64) bool {
	_, ok := e.TranscriptIDs[id]
	return ok
}

// Transcripts returns the IDs of the transcripts using this edge in ascending order.
func (e *Edge) Transcripts() []int64 {
	ids := make([]int64, 0, len(e.TranscriptIDs))
	for id := range e.TranscriptIDs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Transcript is an ordered path of alternating exon and intron edges.
type Transcript struct {
	ID          int64
	GeneID      int64
	Chrom       string
	Start       int64 // lowest exon coordinate (1-based)
	End         int64 // highest exon coordinate (1-based, inclusive)
	Strand      Strand
	Path        []int64 // edge IDs, 5'->3'
	StartVertex int64   // 5' vertex
	EndVertex   int64   // 3' vertex
	NExons      int
}

// IsForwardStrand returns true if the transcript is on the forward strand.
func (t *Transcript) IsForwardStrand() bool {
	return t.Strand == Forward
}

// Contains returns true if the given position is within the transcript boundaries.
func (t *Transcript) Contains(pos int64) bool {
	return pos >= t.Start && pos <= t.End
}

// Deltas returns the signed 5' and 3' distances between an observed span and an
// annotated span. A positive delta means the observed end extends beyond the
// annotated end, on either strand.
func Deltas(obsStart, obsEnd, annStart, annEnd int64, strand Strand) (diff5, diff3 int64) {
	if strand == Reverse {
		return obsEnd - annEnd, annStart - obsStart
	}
	return annStart - obsStart, obsEnd - annEnd
}
