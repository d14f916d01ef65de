package index

import (
	"errors"
	"fmt"
	"sort"

	"github.com/inodb/vibe-talon/internal/genome"
)

var (
	// ErrZeroLengthEdge is returned when an edge would join a vertex to itself.
	ErrZeroLengthEdge = errors.New("zero-length edge")
	// ErrDuplicateKey is returned when an ID or coordinate key is already indexed.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrNotFound is returned when a referenced vertex or edge is not indexed.
	ErrNotFound = errors.New("not found")
)

// VertexKey identifies a vertex: its coordinate within one gene.
type VertexKey struct {
	Chrom  string
	Pos    int64
	Strand genome.Strand
	GeneID int64
}

// EdgeKey identifies an edge. Vertices are gene-scoped, so the key is too.
type EdgeKey struct {
	V1, V2 int64
	Type   genome.EdgeType
}

type siteKey struct {
	chrom  string
	pos    int64
	strand genome.Strand
}

type coordKey struct {
	chrom      string
	strand     genome.Strand
	pos1, pos2 int64
	typ        genome.EdgeType
}

type treeKey struct {
	chrom string
	typ   genome.EdgeType
}

// Index holds every known vertex, edge and transcript of one genome build.
// Records live in ID-keyed arenas; per-chromosome interval trees hold edge IDs.
type Index struct {
	vertices   map[int64]*genome.Vertex
	vertexKeys map[VertexKey]int64
	sites      map[siteKey][]int64

	edges    map[int64]*genome.Edge
	edgeKeys map[EdgeKey]int64
	coords   map[coordKey][]int64
	trees    map[treeKey]*IntervalTree

	transcripts map[int64]*genome.Transcript
}

// New creates an empty index.
func New() *Index {
	return &Index{
		vertices:    make(map[int64]*genome.Vertex),
		vertexKeys:  make(map[VertexKey]int64),
		sites:       make(map[siteKey][]int64),
		edges:       make(map[int64]*genome.Edge),
		edgeKeys:    make(map[EdgeKey]int64),
		coords:      make(map[coordKey][]int64),
		trees:       make(map[treeKey]*IntervalTree),
		transcripts: make(map[int64]*genome.Transcript),
	}
}

// NumVertices returns the number of indexed vertices.
func (x *Index) NumVertices() int { return len(x.vertices) }

// NumEdges returns the number of indexed edges.
func (x *Index) NumEdges() int { return len(x.edges) }

// NumTranscripts returns the number of indexed transcripts.
func (x *Index) NumTranscripts() int { return len(x.transcripts) }

// Vertex returns the vertex with the given ID, or nil.
func (x *Index) Vertex(id int64) *genome.Vertex { return x.vertices[id] }

// Edge returns the edge with the given ID, or nil.
func (x *Index) Edge(id int64) *genome.Edge { return x.edges[id] }

// Transcript returns the transcript with the given ID, or nil.
func (x *Index) Transcript(id int64) *genome.Transcript { return x.transcripts[id] }

// LookupVertex returns the vertex at a coordinate within a gene, or nil.
func (x *Index) LookupVertex(chrom string, pos int64, strand genome.Strand, geneID int64) *genome.Vertex {
	id, ok := x.vertexKeys[VertexKey{Chrom: chrom, Pos: pos, Strand: strand, GeneID: geneID}]
	if !ok {
		return nil
	}
	return x.vertices[id]
}

// VerticesAt returns all vertices at a coordinate across genes, ordered by ID.
func (x *Index) VerticesAt(chrom string, pos int64, strand genome.Strand) []*genome.Vertex {
	ids := x.sites[siteKey{chrom, pos, strand}]
	out := make([]*genome.Vertex, len(ids))
	for i, id := range ids {
		out[i] = x.vertices[id]
	}
	return out
}

// InsertVertex adds a vertex. Its ID and coordinate key must both be new.
func (x *Index) InsertVertex(v *genome.Vertex) error {
	if _, ok := x.vertices[v.ID]; ok {
		return fmt.Errorf("vertex %d: %w", v.ID, ErrDuplicateKey)
	}
	key := VertexKey{Chrom: v.Chrom, Pos: v.Pos, Strand: v.Strand, GeneID: v.GeneID}
	if id, ok := x.vertexKeys[key]; ok {
		return fmt.Errorf("vertex %s:%d%s in gene %d already indexed as %d: %w",
			v.Chrom, v.Pos, v.Strand, v.GeneID, id, ErrDuplicateKey)
	}
	x.vertices[v.ID] = v
	x.vertexKeys[key] = v.ID
	sk := siteKey{v.Chrom, v.Pos, v.Strand}
	x.sites[sk] = insertSorted(x.sites[sk], v.ID)
	return nil
}

// LookupEdge returns the edge joining v1 to v2 with the given type, or nil.
func (x *Index) LookupEdge(v1, v2 int64, typ genome.EdgeType) *genome.Edge {
	id, ok := x.edgeKeys[EdgeKey{V1: v1, V2: v2, Type: typ}]
	if !ok {
		return nil
	}
	return x.edges[id]
}

// EdgesAt returns all edges with exactly these 5'->3' positions, across genes,
// ordered by ID.
func (x *Index) EdgesAt(chrom string, strand genome.Strand, pos1, pos2 int64, typ genome.EdgeType) []*genome.Edge {
	ids := x.coords[coordKey{chrom, strand, pos1, pos2, typ}]
	out := make([]*genome.Edge, len(ids))
	for i, id := range ids {
		out[i] = x.edges[id]
	}
	return out
}

// OverlappingEdges returns edges of the given type overlapping [start, end]
// on either strand, ordered by (start, end, id).
func (x *Index) OverlappingEdges(chrom string, start, end int64, typ genome.EdgeType) []*genome.Edge {
	tree, ok := x.trees[treeKey{chrom, typ}]
	if !ok {
		return nil
	}
	ids := tree.FindOverlaps(start, end)
	out := make([]*genome.Edge, len(ids))
	for i, id := range ids {
		out[i] = x.edges[id]
	}
	return out
}

// InsertEdge adds an edge between two indexed vertices. Chrom, Strand, Pos1
// and Pos2 are taken from the vertices.
func (x *Index) InsertEdge(e *genome.Edge) error {
	if e.V1 == e.V2 {
		return fmt.Errorf("edge %d: %w", e.ID, ErrZeroLengthEdge)
	}
	if _, ok := x.edges[e.ID]; ok {
		return fmt.Errorf("edge %d: %w", e.ID, ErrDuplicateKey)
	}
	v1, v2 := x.vertices[e.V1], x.vertices[e.V2]
	if v1 == nil || v2 == nil {
		return fmt.Errorf("edge %d: vertex %d or %d: %w", e.ID, e.V1, e.V2, ErrNotFound)
	}
	if v1.Pos == v2.Pos {
		return fmt.Errorf("edge %d at %s:%d: %w", e.ID, v1.Chrom, v1.Pos, ErrZeroLengthEdge)
	}
	key := EdgeKey{V1: e.V1, V2: e.V2, Type: e.Type}
	if id, ok := x.edgeKeys[key]; ok {
		return fmt.Errorf("edge %d-%d %s already indexed as %d: %w", e.V1, e.V2, e.Type, id, ErrDuplicateKey)
	}

	e.Chrom, e.Strand = v1.Chrom, v1.Strand
	e.Pos1, e.Pos2 = v1.Pos, v2.Pos
	x.edges[e.ID] = e
	x.edgeKeys[key] = e.ID
	ck := coordKey{e.Chrom, e.Strand, e.Pos1, e.Pos2, e.Type}
	x.coords[ck] = insertSorted(x.coords[ck], e.ID)

	tk := treeKey{e.Chrom, e.Type}
	tree, ok := x.trees[tk]
	if !ok {
		tree = NewIntervalTree()
		x.trees[tk] = tree
	}
	tree.Insert(e.Start(), e.End(), e.ID)
	return nil
}

// AddTranscript indexes a transcript and tags every edge on its path with it.
func (x *Index) AddTranscript(t *genome.Transcript) error {
	if _, ok := x.transcripts[t.ID]; ok {
		return fmt.Errorf("transcript %d: %w", t.ID, ErrDuplicateKey)
	}
	for _, id := range t.Path {
		if _, ok := x.edges[id]; !ok {
			return fmt.Errorf("transcript %d: edge %d: %w", t.ID, id, ErrNotFound)
		}
	}
	for _, id := range t.Path {
		x.edges[id].AddTranscript(t.ID)
	}
	x.transcripts[t.ID] = t
	return nil
}

// TranscriptIDs returns all indexed transcript IDs in ascending order.
func (x *Index) TranscriptIDs() []int64 {
	ids := make([]int64, 0, len(x.transcripts))
	for id := range x.transcripts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func insertSorted(ids []int64, id int64) []int64 {
	i := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	ids = append(ids, 0)
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids
}
