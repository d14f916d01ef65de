// Package registry mints and stages novel genes, transcripts, edges, vertices
// and observations during a run, keeping the in-memory indexes current.
package registry

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/inodb/vibe-talon/internal/genome"
	"github.com/inodb/vibe-talon/internal/index"
)

// ErrDuplicateAllocation reports a key minted under two IDs, or an ID staged twice.
var ErrDuplicateAllocation = errors.New("duplicate novel allocation")

// State is the known registry content a run starts from.
type State struct {
	Index    *index.Index
	Genes    *index.GeneIndex
	Counters map[Category]int64
	Datasets map[string]int64 // dataset name -> ID
}

// NewState returns an empty state for a fresh database.
func NewState() *State {
	return &State{
		Index:    index.New(),
		Genes:    index.NewGeneIndex(),
		Counters: make(map[Category]int64),
		Datasets: make(map[string]int64),
	}
}

type geneKey struct {
	chrom      string
	start, end int64
	strand     genome.Strand
}

// Registry owns the indexes for one run and stages every row the run adds.
// It is not safe for concurrent use.
type Registry struct {
	build  string
	idx    *index.Index
	genes  *index.GeneIndex
	alloc  *Allocator
	logger *zap.Logger

	datasetIDs  map[string]int64
	geneKeys    map[geneKey]int64
	sourceGenes map[string]int64
	paths       map[string]int64

	stagedGenes       []*genome.Gene
	stagedTranscripts []*genome.Transcript
	stagedVertices    []*genome.Vertex
	stagedEdges       []*genome.Edge
	stagedDatasets    []DatasetRow
	stagedObserved    []ObservedRow
	annotations       map[AnnotationKind][]Annotation
	abundance         map[int64]map[int64]int64
}

// New creates a registry for a genome build over a loaded state.
func New(build string, st *State) *Registry {
	r := &Registry{
		build:       build,
		idx:         st.Index,
		genes:       st.Genes,
		alloc:       NewAllocator(st.Counters),
		logger:      zap.NewNop(),
		datasetIDs:  make(map[string]int64, len(st.Datasets)),
		geneKeys:    make(map[geneKey]int64),
		sourceGenes: make(map[string]int64),
		paths:       make(map[string]int64),
		annotations: make(map[AnnotationKind][]Annotation),
		abundance:   make(map[int64]map[int64]int64),
	}
	for name, id := range st.Datasets {
		r.datasetIDs[name] = id
	}
	for _, id := range r.idx.TranscriptIDs() {
		r.paths[genome.FormatPath(r.idx.Transcript(id).Path)] = id
	}
	return r
}

// SetLogger sets the logger for minting diagnostics.
func (r *Registry) SetLogger(l *zap.Logger) {
	r.logger = l
}

// Build returns the genome build the registry serves.
func (r *Registry) Build() string { return r.build }

// Index returns the interval index, including entities minted this run.
func (r *Registry) Index() *index.Index { return r.idx }

// GeneIndex returns the gene locus index, including genes minted this run.
func (r *Registry) GeneIndex() *index.GeneIndex { return r.genes }

// Allocator returns the run's ID allocator.
func (r *Registry) Allocator() *Allocator { return r.alloc }

// AddDataset stages a dataset unless one with the same name exists.
// It returns the dataset ID and whether it was newly added.
func (r *Registry) AddDataset(name, sample, platform string) (int64, bool) {
	if id, ok := r.datasetIDs[name]; ok {
		return id, false
	}
	id := r.alloc.Next(Datasets)
	r.datasetIDs[name] = id
	r.stagedDatasets = append(r.stagedDatasets, DatasetRow{ID: id, Name: name, Sample: sample, Platform: platform})
	r.logger.Debug("added dataset", zap.String("name", name), zap.Int64("id", id))
	return id, true
}

// HasDataset reports whether a dataset name is known or staged.
func (r *Registry) HasDataset(name string) bool {
	_, ok := r.datasetIDs[name]
	return ok
}

// DatasetNames returns dataset ID -> name for known and staged datasets.
func (r *Registry) DatasetNames() map[int64]string {
	out := make(map[int64]string, len(r.datasetIDs))
	for name, id := range r.datasetIDs {
		out[id] = name
	}
	return out
}

func (r *Registry) annotate(kind AnnotationKind, id int64, name, source, attr, value string) {
	r.annotations[kind] = append(r.annotations[kind], Annotation{
		ID: id, Name: name, Source: source, Attribute: attr, Value: value,
	})
}

// vertexFor returns the gene's vertex at a coordinate, minting it if needed.
func (r *Registry) vertexFor(chrom string, pos int64, strand genome.Strand, geneID int64) (*genome.Vertex, error) {
	if v := r.idx.LookupVertex(chrom, pos, strand, geneID); v != nil {
		return v, nil
	}
	v := &genome.Vertex{ID: r.alloc.Next(Vertices), GeneID: geneID, Chrom: chrom, Pos: pos, Strand: strand}
	if err := r.idx.InsertVertex(v); err != nil {
		return nil, fmt.Errorf("mint vertex: %w", err)
	}
	r.stagedVertices = append(r.stagedVertices, v)
	return v, nil
}

// edgeFor returns the gene's edge for a query edge, minting it and its
// vertices if needed. The bool reports whether the edge was minted.
func (r *Registry) edgeFor(chrom string, strand genome.Strand, geneID int64, q genome.QueryEdge) (*genome.Edge, bool, error) {
	v1, err := r.vertexFor(chrom, q.Pos1, strand, geneID)
	if err != nil {
		return nil, false, err
	}
	v2, err := r.vertexFor(chrom, q.Pos2, strand, geneID)
	if err != nil {
		return nil, false, err
	}
	if e := r.idx.LookupEdge(v1.ID, v2.ID, q.Type); e != nil {
		return e, false, nil
	}
	e := &genome.Edge{ID: r.alloc.Next(Edges), GeneID: geneID, Type: q.Type, V1: v1.ID, V2: v2.ID}
	if err := r.idx.InsertEdge(e); err != nil {
		return nil, false, fmt.Errorf("mint %s edge %d-%d: %w", q.Type, q.Pos1, q.Pos2, err)
	}
	r.stagedEdges = append(r.stagedEdges, e)
	return e, true, nil
}

// mintGene stages a gene spanning [start, end] and indexes it immediately.
func (r *Registry) mintGene(chrom string, start, end int64, strand genome.Strand) (*genome.Gene, error) {
	key := geneKey{chrom, start, end, strand}
	if id, ok := r.geneKeys[key]; ok {
		return r.genes.Gene(id), nil
	}
	g := &genome.Gene{ID: r.alloc.Next(Genes), Chrom: chrom, Start: start, End: end, Strand: strand}
	if err := r.genes.Insert(g); err != nil {
		return nil, fmt.Errorf("mint gene: %w", err)
	}
	r.geneKeys[key] = g.ID
	r.stagedGenes = append(r.stagedGenes, g)
	return g, nil
}

// transcriptFor returns the transcript with this path, minting it if needed.
// The bool reports whether the transcript was minted.
func (r *Registry) transcriptFor(geneID int64, chrom string, strand genome.Strand, path []int64) (*genome.Transcript, bool, error) {
	key := genome.FormatPath(path)
	if id, ok := r.paths[key]; ok {
		return r.idx.Transcript(id), false, nil
	}

	t := &genome.Transcript{
		ID:     r.alloc.Next(Transcripts),
		GeneID: geneID,
		Chrom:  chrom,
		Strand: strand,
		Path:   path,
	}
	for i, id := range path {
		e := r.idx.Edge(id)
		if i == 0 || e.Start() < t.Start {
			t.Start = e.Start()
		}
		if e.End() > t.End {
			t.End = e.End()
		}
		if e.Type == genome.Exon {
			t.NExons++
		}
	}
	t.StartVertex = r.idx.Edge(path[0]).V1
	t.EndVertex = r.idx.Edge(path[len(path)-1]).V2

	if err := r.idx.AddTranscript(t); err != nil {
		return nil, false, fmt.Errorf("mint transcript: %w", err)
	}
	if err := r.genes.Extend(geneID, t.Start, t.End); err != nil {
		return nil, false, fmt.Errorf("extend gene %d: %w", geneID, err)
	}
	r.paths[key] = t.ID
	r.stagedTranscripts = append(r.stagedTranscripts, t)
	return t, true, nil
}

// Genes returns the genes staged this run.
func (r *Registry) Genes() []*genome.Gene { return r.stagedGenes }

// Transcripts returns the transcripts staged this run.
func (r *Registry) Transcripts() []*genome.Transcript { return r.stagedTranscripts }

// Vertices returns the vertices staged this run.
func (r *Registry) Vertices() []*genome.Vertex { return r.stagedVertices }

// Edges returns the edges staged this run.
func (r *Registry) Edges() []*genome.Edge { return r.stagedEdges }

// Datasets returns the datasets staged this run.
func (r *Registry) Datasets() []DatasetRow { return r.stagedDatasets }

// Observed returns the observations staged this run.
func (r *Registry) Observed() []ObservedRow { return r.stagedObserved }

// Annotations returns the staged annotation rows of one kind.
func (r *Registry) Annotations(kind AnnotationKind) []Annotation { return r.annotations[kind] }

// Abundance returns per-transcript, per-dataset read counts ordered by
// transcript then dataset.
func (r *Registry) Abundance() []AbundanceRow {
	var rows []AbundanceRow
	for tid, byDataset := range r.abundance {
		for did, n := range byDataset {
			rows = append(rows, AbundanceRow{TranscriptID: tid, DatasetID: did, Count: n})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TranscriptID != rows[j].TranscriptID {
			return rows[i].TranscriptID < rows[j].TranscriptID
		}
		return rows[i].DatasetID < rows[j].DatasetID
	})
	return rows
}

// Count returns the number of reads assigned to a transcript in a dataset.
func (r *Registry) Count(transcriptID, datasetID int64) int64 {
	return r.abundance[transcriptID][datasetID]
}
