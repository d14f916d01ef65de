// Package match classifies a read against the known transcripts of an index.
package match

import (
	"sort"

	"go.uber.org/zap"

	"github.com/inodb/vibe-talon/internal/genome"
	"github.com/inodb/vibe-talon/internal/index"
)

// Type is the outcome of matching a read.
type Type uint8

const (
	// None means no query edge matched a known edge.
	None Type = iota
	// Partial means some edges matched but no known transcript matched in full.
	Partial
	// Full means a known transcript has the read's complete edge path.
	Full
)

// String returns the lower-case name of the match type.
func (t Type) String() string {
	switch t {
	case Full:
		return "full"
	case Partial:
		return "partial"
	}
	return "none"
}

// EdgeMatch holds the known edges matching one query edge, ordered by ID.
type EdgeMatch struct {
	Query genome.QueryEdge
	IDs   []int64
}

// Matched reports whether any known edge matched.
func (m EdgeMatch) Matched() bool { return len(m.IDs) > 0 }

func (m EdgeMatch) has(id int64) bool {
	i := sort.Search(len(m.IDs), func(i int) bool { return m.IDs[i] >= id })
	return i < len(m.IDs) && m.IDs[i] == id
}

// Result is the classification of one read.
type Result struct {
	Type Type
	// Best is the chosen full match, or the best partial match, or 0.
	Best         int64
	Diff5, Diff3 int64 // set for full matches only

	EdgeMatches    []EdgeMatch // one per query edge, 5'->3'
	FullMatches    []int64     // ascending
	PartialMatches []int64     // ascending
}

// Tracker matches reads against an index. It only reads the index.
type Tracker struct {
	idx    *index.Index
	logger *zap.Logger
}

// NewTracker creates a tracker over idx.
func NewTracker(idx *index.Index) *Tracker {
	return &Tracker{idx: idx, logger: zap.NewNop()}
}

// SetLogger sets the logger for match diagnostics.
func (t *Tracker) SetLogger(l *zap.Logger) {
	t.logger = l
}

// Match classifies a validated read.
func (t *Tracker) Match(r *genome.Read) *Result {
	query := r.Edges()
	res := &Result{EdgeMatches: make([]EdgeMatch, len(query))}
	anyMatched := false
	for i, q := range query {
		res.EdgeMatches[i] = EdgeMatch{Query: q, IDs: t.candidates(r, query, i)}
		anyMatched = anyMatched || res.EdgeMatches[i].Matched()
	}
	if !anyMatched {
		return res
	}

	res.FullMatches = t.fullMatches(res.EdgeMatches)
	if len(res.FullMatches) > 0 {
		t.pickFull(r, res)
		t.logger.Debug("full match",
			zap.String("read", r.ID),
			zap.Int64("transcript", res.Best),
			zap.Int64("diff_5", res.Diff5),
			zap.Int64("diff_3", res.Diff3),
			zap.Int("candidates", len(res.FullMatches)))
		return res
	}

	res.Type = Partial
	res.PartialMatches, res.Best = t.partialMatches(res.EdgeMatches)
	t.logger.Debug("partial match",
		zap.String("read", r.ID),
		zap.Int64("best", res.Best),
		zap.Int("candidates", len(res.PartialMatches)))
	return res
}

// candidates finds the known edges matching query edge i. Internal edges
// must match exactly. Terminal exons only need to share their splice site,
// and a single-exon read matches any overlapping exon, so read ends may
// differ from annotated ends.
func (t *Tracker) candidates(r *genome.Read, query []genome.QueryEdge, i int) []int64 {
	q := query[i]
	last := len(query) - 1

	var keep func(e *genome.Edge) bool
	switch {
	case last == 0:
		keep = func(e *genome.Edge) bool { return true }
	case i == 0:
		keep = func(e *genome.Edge) bool { return e.Pos2 == q.Pos2 }
	case i == last:
		keep = func(e *genome.Edge) bool { return e.Pos1 == q.Pos1 }
	default:
		edges := t.idx.EdgesAt(r.Chrom, r.Strand, q.Pos1, q.Pos2, q.Type)
		ids := make([]int64, len(edges))
		for j, e := range edges {
			ids[j] = e.ID
		}
		return ids
	}

	var ids []int64
	for _, e := range t.idx.OverlappingEdges(r.Chrom, q.Start(), q.End(), genome.Exon) {
		if e.Strand == r.Strand && keep(e) {
			ids = append(ids, e.ID)
		}
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
	return ids
}

// fullMatches returns transcripts whose path has one edge per query edge,
// each among that position's candidates.
func (t *Tracker) fullMatches(matches []EdgeMatch) []int64 {
	seen := make(map[int64]bool)
	var full []int64
	for _, id := range matches[0].IDs {
		for _, tid := range t.idx.Edge(id).Transcripts() {
			if seen[tid] {
				continue
			}
			seen[tid] = true
			tx := t.idx.Transcript(tid)
			if tx == nil || len(tx.Path) != len(matches) {
				continue
			}
			ok := true
			for i, eid := range tx.Path {
				if !matches[i].has(eid) {
					ok = false
					break
				}
			}
			if ok {
				full = append(full, tid)
			}
		}
	}
	sort.Slice(full, func(a, b int) bool { return full[a] < full[b] })
	return full
}

// pickFull selects the full match with the smallest |diff5| + |diff3|.
// FullMatches is ascending, so the first minimum is the lowest ID.
func (t *Tracker) pickFull(r *genome.Read, res *Result) {
	res.Type = Full
	bestScore := int64(-1)
	for _, tid := range res.FullMatches {
		tx := t.idx.Transcript(tid)
		d5, d3 := genome.Deltas(r.Start, r.End, tx.Start, tx.End, r.Strand)
		score := abs(d5) + abs(d3)
		if bestScore < 0 || score < bestScore {
			bestScore = score
			res.Best, res.Diff5, res.Diff3 = tid, d5, d3
		}
	}
}

// partialMatches returns every transcript using at least one candidate edge,
// and the one covering the most query positions (lowest ID on ties).
func (t *Tracker) partialMatches(matches []EdgeMatch) ([]int64, int64) {
	hits := make(map[int64]int)
	for _, m := range matches {
		atPos := make(map[int64]bool)
		for _, id := range m.IDs {
			for _, tid := range t.idx.Edge(id).Transcripts() {
				atPos[tid] = true
			}
		}
		for tid := range atPos {
			hits[tid]++
		}
	}

	ids := make([]int64, 0, len(hits))
	for tid := range hits {
		ids = append(ids, tid)
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })

	var best int64
	bestHits := 0
	for _, tid := range ids {
		if hits[tid] > bestHits {
			best, bestHits = tid, hits[tid]
		}
	}
	return ids, best
}

func abs(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}
