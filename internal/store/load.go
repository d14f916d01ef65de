package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/inodb/vibe-talon/internal/genome"
	"github.com/inodb/vibe-talon/internal/registry"
)

// Load reconstructs the known registry for one genome build: vertices,
// edges, transcripts, gene spans, counters and datasets.
func (s *Store) Load(ctx context.Context, build string) (*registry.State, error) {
	st := registry.NewState()

	var err error
	if st.Counters, err = s.Counters(ctx); err != nil {
		return nil, err
	}
	if st.Datasets, err = s.Datasets(ctx); err != nil {
		return nil, err
	}
	if err := s.loadGenes(ctx, build, st); err != nil {
		return nil, err
	}
	if err := s.loadEdges(ctx, build, st); err != nil {
		return nil, err
	}
	if err := s.loadTranscripts(ctx, build, st); err != nil {
		return nil, err
	}

	s.logger.Info("loaded registry",
		zap.String("build", build),
		zap.Int("genes", st.Genes.Len()),
		zap.Int("transcripts", st.Index.NumTranscripts()),
		zap.Int("vertices", st.Index.NumVertices()),
		zap.Int("edges", st.Index.NumEdges()))
	return st, nil
}

// Counters returns the persisted counter values.
func (s *Store) Counters(ctx context.Context) (map[registry.Category]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT category, counter_value FROM counters`)
	if err != nil {
		return nil, fmt.Errorf("query counters: %w", err)
	}
	defer rows.Close()

	out := make(map[registry.Category]int64)
	for rows.Next() {
		var name string
		var v int64
		if err := rows.Scan(&name, &v); err != nil {
			return nil, fmt.Errorf("scan counter: %w", err)
		}
		c, err := registry.ParseCategory(name)
		if err != nil {
			return nil, err
		}
		out[c] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counters: %w", err)
	}
	return out, nil
}

// Datasets returns dataset name -> ID.
func (s *Store) Datasets(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT dataset_id, dataset_name FROM datasets`)
	if err != nil {
		return nil, fmt.Errorf("query datasets: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan dataset: %w", err)
		}
		out[name] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate datasets: %w", err)
	}
	return out, nil
}

// loadGenes indexes the build's vertices and derives each gene's span
// from the positions of its vertices.
func (s *Store) loadGenes(ctx context.Context, build string, st *registry.State) error {
	rows, err := s.db.QueryContext(ctx, `SELECT v.vertex_id, v.gene_id, l.chromosome, l.pos, l.strand
		FROM vertices v
		JOIN locations l ON l.location_id = v.vertex_id
		WHERE l.genome_build = ?
		ORDER BY v.vertex_id`, build)
	if err != nil {
		return fmt.Errorf("query vertices: %w", err)
	}
	defer rows.Close()

	spans := make(map[int64]*genome.Gene)
	var order []int64
	for rows.Next() {
		var v genome.Vertex
		var strand string
		if err := rows.Scan(&v.ID, &v.GeneID, &v.Chrom, &v.Pos, &strand); err != nil {
			return fmt.Errorf("scan vertex: %w", err)
		}
		if v.Strand, err = genome.ParseStrand(strand); err != nil {
			return fmt.Errorf("vertex %d: %w", v.ID, err)
		}
		if err := st.Index.InsertVertex(&v); err != nil {
			return err
		}

		g, ok := spans[v.GeneID]
		if !ok {
			spans[v.GeneID] = &genome.Gene{ID: v.GeneID, Chrom: v.Chrom, Start: v.Pos, End: v.Pos, Strand: v.Strand}
			order = append(order, v.GeneID)
			continue
		}
		g.Start = min(g.Start, v.Pos)
		g.End = max(g.End, v.Pos)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate vertices: %w", err)
	}

	for _, id := range order {
		if err := st.Genes.Insert(spans[id]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) loadEdges(ctx context.Context, build string, st *registry.State) error {
	rows, err := s.db.QueryContext(ctx, `SELECT e.edge_id, e.v1, e.v2, e.edge_type
		FROM edges e
		JOIN locations l ON l.location_id = e.v1
		WHERE l.genome_build = ?
		ORDER BY e.edge_id`, build)
	if err != nil {
		return fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e genome.Edge
		var typ string
		if err := rows.Scan(&e.ID, &e.V1, &e.V2, &typ); err != nil {
			return fmt.Errorf("scan edge: %w", err)
		}
		if e.Type, err = genome.ParseEdgeType(typ); err != nil {
			return fmt.Errorf("edge %d: %w", e.ID, err)
		}
		if v := st.Index.Vertex(e.V1); v != nil {
			e.GeneID = v.GeneID
		}
		if err := st.Index.InsertEdge(&e); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate edges: %w", err)
	}
	return nil
}

func (s *Store) loadTranscripts(ctx context.Context, build string, st *registry.State) error {
	rows, err := s.db.QueryContext(ctx, `SELECT t.transcript_id, t.gene_id, t.path, t.start_vertex, t.end_vertex, t.n_exons
		FROM transcripts t
		JOIN locations l ON l.location_id = t.start_vertex
		WHERE l.genome_build = ?
		ORDER BY t.transcript_id`, build)
	if err != nil {
		return fmt.Errorf("query transcripts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t genome.Transcript
		var path string
		if err := rows.Scan(&t.ID, &t.GeneID, &path, &t.StartVertex, &t.EndVertex, &t.NExons); err != nil {
			return fmt.Errorf("scan transcript: %w", err)
		}
		if t.Path, err = genome.ParsePath(path); err != nil {
			return fmt.Errorf("transcript %d: %w", t.ID, err)
		}
		for i, id := range t.Path {
			e := st.Index.Edge(id)
			if e == nil {
				return fmt.Errorf("transcript %d: edge %d not in build %s", t.ID, id, build)
			}
			if i == 0 {
				t.Chrom, t.Strand, t.Start, t.End = e.Chrom, e.Strand, e.Start(), e.End()
				continue
			}
			t.Start = min(t.Start, e.Start())
			t.End = max(t.End, e.End())
		}
		if err := st.Index.AddTranscript(&t); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate transcripts: %w", err)
	}
	return nil
}
