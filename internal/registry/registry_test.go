package registry

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-talon/internal/genome"
	"github.com/inodb/vibe-talon/internal/match"
)

func exons(coords ...int64) []genome.Interval {
	out := make([]genome.Interval, 0, len(coords)/2)
	for i := 0; i+1 < len(coords); i += 2 {
		out = append(out, genome.Interval{Start: coords[i], End: coords[i+1]})
	}
	return out
}

func model(gene, tx, chrom string, strand genome.Strand, coords ...int64) *genome.Model {
	return &genome.Model{
		GeneID: gene, TranscriptID: tx, Source: "TEST",
		Chrom: chrom, Strand: strand, Exons: exons(coords...),
	}
}

func readOf(id, chrom string, strand genome.Strand, coords ...int64) *genome.Read {
	ex := exons(coords...)
	return &genome.Read{
		ID: id, Dataset: "d1", Chrom: chrom, Strand: strand,
		Start: ex[0].Start, End: ex[len(ex)-1].End, Exons: ex,
	}
}

// knownState imports models into a fresh state and returns it as a run would
// load it: counters at the imported values and dataset d1 registered.
func knownState(t *testing.T, models ...*genome.Model) *State {
	t.Helper()
	st := NewState()
	r := New("test", st)
	for _, m := range models {
		_, _, err := r.ImportModel("test_annot", m)
		require.NoError(t, err)
	}
	r.AddDataset("d1", "s1", "PacBio")
	st.Counters = r.Allocator().Snapshot()
	st.Datasets = map[string]int64{"d1": 1}
	return st
}

type run struct {
	t       *testing.T
	reg     *Registry
	tracker *match.Tracker
}

func newRun(t *testing.T, st *State) *run {
	reg := New("test", st)
	return &run{t: t, reg: reg, tracker: match.NewTracker(reg.Index())}
}

func (r *run) identify(read *genome.Read) (*Assignment, *match.Result) {
	r.t.Helper()
	require.NoError(r.t, read.Validate())
	res := r.tracker.Match(read)
	a, err := r.reg.Identify(read, res)
	require.NoError(r.t, err)
	return a, res
}

var toyModel = func() *genome.Model {
	return model("G1", "T1", "chr1", genome.Forward, 1, 100, 500, 600, 900, 1000)
}

func TestIdentify_KnownTranscriptMintsNothing(t *testing.T) {
	r := newRun(t, knownState(t, toyModel()))
	before := r.reg.Allocator().Snapshot()

	a, res := r.identify(readOf("r1", "chr1", genome.Forward, 1, 100, 500, 600, 900, 1000))
	assert.Equal(t, match.Full, res.Type)
	assert.Equal(t, Known, a.Status)
	assert.Equal(t, int64(1), a.TranscriptID)
	assert.Equal(t, int64(1), a.GeneID)
	assert.Equal(t, int64(0), a.Diff5)
	assert.Equal(t, int64(0), a.Diff3)

	after := r.reg.Allocator().Snapshot()
	for _, c := range []Category{Genes, Transcripts, Vertices, Edges, Datasets} {
		assert.Equal(t, before[c], after[c], "counter %s", c)
	}
	assert.Equal(t, before[Observed]+1, after[Observed])
	assert.Empty(t, r.reg.Vertices())
	assert.Empty(t, r.reg.Edges())
	assert.Empty(t, r.reg.Transcripts())
	require.NoError(t, r.reg.Verify())
}

func TestIdentify_NovelFirstExonEnd(t *testing.T) {
	r := newRun(t, knownState(t, toyModel()))
	alloc := r.reg.Allocator()

	a, res := r.identify(readOf("r1", "chr1", genome.Forward, 1, 150, 500, 600, 900, 1000))
	assert.Equal(t, match.Partial, res.Type)
	assert.Equal(t, Novel, a.Status)
	assert.Equal(t, int64(1), a.GeneID)

	assert.Equal(t, int64(1), alloc.Minted(Vertices), "only the vertex at 150 is new")
	assert.Equal(t, int64(2), alloc.Minted(Edges), "novel 1-150 exon and 150-500 intron")
	assert.Equal(t, int64(1), alloc.Minted(Transcripts))
	assert.Equal(t, int64(0), alloc.Minted(Genes))
	require.Len(t, r.reg.Annotations(ExonAnnotation), 1)
	assert.Equal(t, "exon_status", r.reg.Annotations(ExonAnnotation)[0].Attribute)
	assert.Equal(t, string(Novel), r.reg.Annotations(ExonAnnotation)[0].Value)
	assert.Equal(t, "d1", r.reg.Annotations(ExonAnnotation)[0].Source)

	// The known 500-600 exon and downstream edges are reused.
	tx := r.reg.Index().Transcript(a.TranscriptID)
	known := r.reg.Index().Transcript(1)
	assert.Equal(t, known.Path[2:], tx.Path[2:])
	assert.Equal(t, int64(0), a.Diff5)
	assert.Equal(t, int64(0), a.Diff3)
	require.NoError(t, r.reg.Verify())
}

func TestIdentify_RepeatedNovelLocus(t *testing.T) {
	r := newRun(t, knownState(t, toyModel()))
	alloc := r.reg.Allocator()

	var first *Assignment
	for i := 0; i < 1000; i++ {
		a, res := r.identify(readOf(fmt.Sprintf("r%d", i), "chr2", genome.Forward, 5000, 6000))
		if i == 0 {
			first = a
			assert.Equal(t, match.None, res.Type)
		} else {
			assert.Equal(t, match.Full, res.Type)
			assert.Equal(t, first.TranscriptID, a.TranscriptID)
		}
		assert.Equal(t, Novel, a.Status)
	}

	assert.Equal(t, int64(1), alloc.Minted(Genes))
	assert.Equal(t, int64(1), alloc.Minted(Transcripts))
	assert.Equal(t, int64(2), alloc.Minted(Vertices))
	assert.Equal(t, int64(1), alloc.Minted(Edges))
	assert.Equal(t, int64(1000), alloc.Minted(Observed))
	assert.Equal(t, int64(1000), r.reg.Count(first.TranscriptID, 1))
	assert.Equal(t, []AbundanceRow{{TranscriptID: first.TranscriptID, DatasetID: 1, Count: 1000}}, r.reg.Abundance())
	require.NoError(t, r.reg.Verify())
}

func TestIdentify_NovelExonSharedAcrossReads(t *testing.T) {
	r := newRun(t, knownState(t, toyModel()))

	a, _ := r.identify(readOf("r1", "chr1", genome.Forward, 1, 100, 300, 400, 900, 1000))
	b, res := r.identify(readOf("r2", "chr1", genome.Forward, 1, 100, 300, 400, 500, 600, 900, 1000))
	assert.Equal(t, match.Partial, res.Type)
	require.NotEqual(t, a.TranscriptID, b.TranscriptID)

	ta := r.reg.Index().Transcript(a.TranscriptID)
	tb := r.reg.Index().Transcript(b.TranscriptID)
	assert.Equal(t, ta.Path[2], tb.Path[2], "300-400 exon minted once")
	assert.Len(t, r.reg.Index().VerticesAt("chr1", 300, genome.Forward), 1)
	assert.Len(t, r.reg.Index().VerticesAt("chr1", 400, genome.Forward), 1)
	assert.Len(t, r.reg.Index().EdgesAt("chr1", genome.Forward, 300, 400, genome.Exon), 1)
	require.NoError(t, r.reg.Verify())
}

func TestIdentify_RepeatedNovelStructureReusesTranscript(t *testing.T) {
	r := newRun(t, knownState(t, toyModel()))

	a, _ := r.identify(readOf("r1", "chr1", genome.Forward, 1, 100, 300, 400, 900, 1000))
	b, res := r.identify(readOf("r2", "chr1", genome.Forward, 1, 100, 300, 400, 900, 1000))
	assert.Equal(t, match.Full, res.Type)
	assert.Equal(t, a.TranscriptID, b.TranscriptID)
	assert.Equal(t, Novel, b.Status)
	assert.Equal(t, int64(1), r.reg.Allocator().Minted(Transcripts))
}

func TestIdentify_OtherGeneEdgesAreReminted(t *testing.T) {
	st := knownState(t,
		model("G1", "T1", "chr1", genome.Forward, 1, 100, 500, 600),
		model("G2", "T2", "chr1", genome.Forward, 2000, 2100, 2500, 2600, 2900, 3000),
	)
	r := newRun(t, st)
	alloc := r.reg.Allocator()
	g2Exon := r.reg.Index().EdgesAt("chr1", genome.Forward, 2500, 2600, genome.Exon)
	require.Len(t, g2Exon, 1)

	// Two boundary positions in each gene: the tie goes to gene 1.
	a, res := r.identify(readOf("r1", "chr1", genome.Forward, 500, 600, 2500, 2600))
	require.Equal(t, match.Partial, res.Type)
	assert.Equal(t, int64(1), a.GeneID)
	assert.Contains(t, res.EdgeMatches[2].IDs, g2Exon[0].ID, "gene 2 exon matched")

	tx := r.reg.Index().Transcript(a.TranscriptID)
	reminted := r.reg.Index().Edge(tx.Path[2])
	assert.NotEqual(t, g2Exon[0].ID, reminted.ID, "edge from another gene is never reused")
	assert.Equal(t, int64(1), reminted.GeneID)
	assert.Equal(t, int64(2500), reminted.Pos1)
	assert.Equal(t, int64(2600), reminted.Pos2)
	assert.Equal(t, int64(2), alloc.Minted(Vertices))
	assert.Equal(t, int64(2), alloc.Minted(Edges))
	assert.Len(t, r.reg.Index().EdgesAt("chr1", genome.Forward, 2500, 2600, genome.Exon), 2)
	require.NoError(t, r.reg.Verify())
}

func TestIdentify_MinusStrandDeltaSign(t *testing.T) {
	st := knownState(t,
		model("G1", "T1", "chr1", genome.Forward, 11, 100, 500, 600, 900, 1000),
		model("G2", "T2", "chr1", genome.Reverse, 11, 100, 500, 600, 900, 1000),
	)
	r := newRun(t, st)

	fwd, _ := r.identify(readOf("f", "chr1", genome.Forward, 11, 100, 500, 600, 900, 1010))
	rev, _ := r.identify(readOf("r", "chr1", genome.Reverse, 1, 100, 500, 600, 900, 1000))
	assert.Equal(t, int64(10), fwd.Diff3)
	assert.Equal(t, int64(10), rev.Diff3)
	assert.Equal(t, int64(0), rev.Diff5)

	obs := r.reg.Observed()
	require.Len(t, obs, 2)
	assert.Equal(t, obs[0].Diff3, obs[1].Diff3)
	assert.Equal(t, int64(2), obs[1].TranscriptID)

	// Start/end vertices follow transcript orientation.
	idx := r.reg.Index()
	assert.Equal(t, int64(1000), idx.Vertex(obs[1].StartVertex).Pos)
	assert.Equal(t, int64(11), idx.Vertex(obs[1].EndVertex).Pos)
}

func TestIdentify_NovelMinusStrandTranscript(t *testing.T) {
	r := newRun(t, knownState(t, toyModel()))

	a, _ := r.identify(readOf("r1", "chr3", genome.Reverse, 100, 200, 400, 500))
	tx := r.reg.Index().Transcript(a.TranscriptID)
	idx := r.reg.Index()
	assert.Equal(t, int64(500), idx.Vertex(tx.StartVertex).Pos)
	assert.Equal(t, int64(100), idx.Vertex(tx.EndVertex).Pos)
	assert.Equal(t, int64(100), tx.Start)
	assert.Equal(t, int64(500), tx.End)
	assert.Equal(t, 2, tx.NExons)

	g := r.reg.GeneIndex().Gene(a.GeneID)
	assert.Equal(t, genome.Reverse, g.Strand)
	assert.Equal(t, int64(100), g.Start)
	assert.Equal(t, int64(500), g.End)
}

func TestIdentify_SingleExonUsesPartialMatchGene(t *testing.T) {
	r := newRun(t, knownState(t, toyModel()))

	a, res := r.identify(readOf("r1", "chr1", genome.Forward, 520, 580))
	require.Equal(t, match.Partial, res.Type)
	assert.Equal(t, int64(1), a.GeneID)
	assert.Equal(t, int64(0), r.reg.Allocator().Minted(Genes))
	assert.Equal(t, int64(1), r.reg.Allocator().Minted(Edges), "novel exon at read coordinates")
}

func TestIdentify_SingleExonFallsBackToGeneOverlap(t *testing.T) {
	r := newRun(t, knownState(t, toyModel()))

	// Entirely intronic: no edge matches, but inside the gene span.
	a, res := r.identify(readOf("r1", "chr1", genome.Forward, 200, 300))
	require.Equal(t, match.None, res.Type)
	assert.Equal(t, int64(1), a.GeneID)
	assert.Equal(t, int64(0), r.reg.Allocator().Minted(Genes))
}

func TestIdentify_MintedGeneFoundByLaterReads(t *testing.T) {
	r := newRun(t, knownState(t, toyModel()))

	a, _ := r.identify(readOf("r1", "chr2", genome.Forward, 5000, 5100, 5500, 6000))
	b, _ := r.identify(readOf("r2", "chr2", genome.Forward, 5200, 5300, 5400, 5450))
	assert.Equal(t, a.GeneID, b.GeneID)
	assert.NotEqual(t, a.TranscriptID, b.TranscriptID)
	assert.Equal(t, int64(1), r.reg.Allocator().Minted(Genes))
	require.Len(t, r.reg.Annotations(GeneAnnotation), 1)
	assert.Equal(t, "gene_status", r.reg.Annotations(GeneAnnotation)[0].Attribute)
}

func TestIdentify_AutoRegistersDataset(t *testing.T) {
	r := newRun(t, knownState(t, toyModel()))
	read := readOf("r1", "chr1", genome.Forward, 1, 100, 500, 600, 900, 1000)
	read.Dataset = "d2"

	r.identify(read)
	require.Len(t, r.reg.Datasets(), 1)
	assert.Equal(t, "d2", r.reg.Datasets()[0].Name)
	assert.Equal(t, int64(2), r.reg.Datasets()[0].ID)
	assert.Equal(t, int64(2), r.reg.Observed()[0].DatasetID)
}

func TestAddDataset_Dedup(t *testing.T) {
	reg := New("test", knownState(t))
	assert.True(t, reg.HasDataset("d1"))

	id, added := reg.AddDataset("d1", "", "")
	assert.False(t, added)
	assert.Equal(t, int64(1), id)

	id, added = reg.AddDataset("d2", "s2", "ONT")
	assert.True(t, added)
	assert.Equal(t, int64(2), id)
	id, added = reg.AddDataset("d2", "s2", "ONT")
	assert.False(t, added)
	assert.Equal(t, int64(2), id)
	assert.Len(t, reg.Datasets(), 1)
}

func TestImportModel_SharesStructure(t *testing.T) {
	st := NewState()
	reg := New("test", st)

	t1, minted, err := reg.ImportModel("annot", model("G1", "T1", "chr1", genome.Forward, 1, 100, 500, 600, 900, 1000))
	require.NoError(t, err)
	assert.True(t, minted)
	t2, minted, err := reg.ImportModel("annot", model("G1", "T2", "chr1", genome.Forward, 1, 100, 900, 1200))
	require.NoError(t, err)
	assert.True(t, minted)
	_, minted, err = reg.ImportModel("annot", model("G1", "T3", "chr1", genome.Forward, 1, 100, 500, 600, 900, 1000))
	require.NoError(t, err)
	assert.False(t, minted, "identical path is not minted twice")

	assert.Equal(t, t1.GeneID, t2.GeneID)
	assert.Equal(t, t1.Path[0], t2.Path[0], "shared first exon")
	alloc := reg.Allocator()
	assert.Equal(t, int64(1), alloc.Value(Genes))
	assert.Equal(t, int64(2), alloc.Value(Transcripts))
	assert.Equal(t, int64(7), alloc.Value(Vertices))
	assert.Equal(t, int64(7), alloc.Value(Edges))

	g := reg.GeneIndex().Gene(t1.GeneID)
	assert.Equal(t, int64(1200), g.End, "gene span grows with its transcripts")
	require.NoError(t, reg.Verify())
}

func TestImportModel_ExonIDsFollowStrand(t *testing.T) {
	reg := New("test", NewState())
	m := model("G1", "T1", "chr1", genome.Reverse, 1, 100, 500, 600)
	m.ExonIDs = []string{"E-low", "E-high"}

	tx, _, err := reg.ImportModel("annot", m)
	require.NoError(t, err)

	ids := map[int64]string{}
	for _, a := range reg.Annotations(ExonAnnotation) {
		if a.Attribute == "exon_id" {
			ids[a.ID] = a.Value
		}
	}
	assert.Equal(t, "E-high", ids[tx.Path[0]])
	assert.Equal(t, "E-low", ids[tx.Path[2]])
}

func TestImportModel_Rejects(t *testing.T) {
	reg := New("test", NewState())
	_, _, err := reg.ImportModel("annot", model("G1", "T1", "chr1", genome.Forward, 1, 100, 100, 200))
	var mre *genome.MalformedReadError
	assert.True(t, errors.As(err, &mre))

	_, _, err = reg.ImportModel("annot", model("G1", "T1", "chr1", genome.Forward, 1, 100))
	require.NoError(t, err)
	_, _, err = reg.ImportModel("annot", model("G1", "T2", "chr1", genome.Reverse, 1, 100))
	assert.Error(t, err, "gene strand mismatch")
}

func TestVerify_DetectsDuplicateAllocation(t *testing.T) {
	r := newRun(t, knownState(t, toyModel()))
	r.identify(readOf("r1", "chr2", genome.Forward, 5000, 6000))
	require.NoError(t, r.reg.Verify())

	// Stage a second vertex under an existing coordinate key.
	v := *r.reg.stagedVertices[0]
	v.ID = r.reg.alloc.Next(Vertices)
	r.reg.stagedVertices = append(r.reg.stagedVertices, &v)
	assert.True(t, errors.Is(r.reg.Verify(), ErrDuplicateAllocation))
}

func TestVerify_DetectsCounterMismatch(t *testing.T) {
	r := newRun(t, knownState(t, toyModel()))
	r.identify(readOf("r1", "chr2", genome.Forward, 5000, 6000))

	r.reg.alloc.Next(Edges)
	err := r.reg.Verify()
	assert.True(t, errors.Is(err, ErrDuplicateAllocation))
	assert.Contains(t, err.Error(), "edge")
}

func TestAllocator(t *testing.T) {
	a := NewAllocator(map[Category]int64{Genes: 10})
	assert.Equal(t, int64(11), a.Next(Genes))
	assert.Equal(t, int64(1), a.Next(Edges))
	assert.Equal(t, int64(11), a.Value(Genes))
	assert.Equal(t, int64(10), a.Start(Genes))
	assert.Equal(t, int64(1), a.Minted(Genes))

	snap := a.Snapshot()
	a.Next(Genes)
	assert.Equal(t, int64(11), snap[Genes], "snapshot is a copy")

	c, err := ParseCategory("vertex")
	require.NoError(t, err)
	assert.Equal(t, Vertices, c)
	_, err = ParseCategory("bogus")
	assert.Error(t, err)
}
