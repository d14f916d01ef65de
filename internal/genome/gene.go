package genome

// Gene is a genomic region spanning all of its transcripts.
type Gene struct {
	ID     int64
	Chrom  string
	Start  int64 // 1-based
	End    int64 // 1-based, inclusive
	Strand Strand
}

// Contains returns true if the given position is within the gene boundaries.
func (g *Gene) Contains(pos int64) bool {
	return pos >= g.Start && pos <= g.End
}

// Overlap returns the number of bases shared by the gene and [start, end],
// or 0 if they are disjoint.
func (g *Gene) Overlap(start, end int64) int64 {
	lo := max(g.Start, start)
	hi := min(g.End, end)
	if hi < lo {
		return 0
	}
	return hi - lo + 1
}
