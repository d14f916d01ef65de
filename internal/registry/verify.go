package registry

import (
	"fmt"

	"github.com/inodb/vibe-talon/internal/genome"
	"github.com/inodb/vibe-talon/internal/index"
)

// Verify checks the staging tables for allocation faults: an ID staged twice,
// a coordinate key staged under two IDs, a staged ID outside the range minted
// this run, or a counter that disagrees with the number of staged rows.
// Any fault wraps ErrDuplicateAllocation.
func (r *Registry) Verify() error {
	type keyed struct {
		cat  Category
		ids  []int64
		keys []any
	}
	var checks []keyed

	genes := keyed{cat: Genes}
	for _, g := range r.stagedGenes {
		genes.ids = append(genes.ids, g.ID)
	}
	checks = append(checks, genes)

	tx := keyed{cat: Transcripts}
	for _, t := range r.stagedTranscripts {
		tx.ids = append(tx.ids, t.ID)
		tx.keys = append(tx.keys, genome.FormatPath(t.Path))
	}
	checks = append(checks, tx)

	vs := keyed{cat: Vertices}
	for _, v := range r.stagedVertices {
		vs.ids = append(vs.ids, v.ID)
		vs.keys = append(vs.keys, index.VertexKey{Chrom: v.Chrom, Pos: v.Pos, Strand: v.Strand, GeneID: v.GeneID})
	}
	checks = append(checks, vs)

	es := keyed{cat: Edges}
	for _, e := range r.stagedEdges {
		es.ids = append(es.ids, e.ID)
		es.keys = append(es.keys, index.EdgeKey{V1: e.V1, V2: e.V2, Type: e.Type})
	}
	checks = append(checks, es)

	ds := keyed{cat: Datasets}
	for _, d := range r.stagedDatasets {
		ds.ids = append(ds.ids, d.ID)
		ds.keys = append(ds.keys, d.Name)
	}
	checks = append(checks, ds)

	obs := keyed{cat: Observed}
	for _, o := range r.stagedObserved {
		obs.ids = append(obs.ids, o.ID)
	}
	checks = append(checks, obs)

	for _, c := range checks {
		if err := r.verifyCategory(c.cat, c.ids, c.keys); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) verifyCategory(cat Category, ids []int64, keys []any) error {
	if n := r.alloc.Minted(cat); n != int64(len(ids)) {
		return fmt.Errorf("%s: %d minted but %d staged: %w", cat, n, len(ids), ErrDuplicateAllocation)
	}
	lo, hi := r.alloc.Start(cat), r.alloc.Value(cat)
	seenID := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if id <= lo || id > hi {
			return fmt.Errorf("%s: staged ID %d outside minted range (%d, %d]: %w", cat, id, lo, hi, ErrDuplicateAllocation)
		}
		if seenID[id] {
			return fmt.Errorf("%s: ID %d staged twice: %w", cat, id, ErrDuplicateAllocation)
		}
		seenID[id] = true
	}
	seenKey := make(map[any]int64, len(keys))
	for i, k := range keys {
		if prev, ok := seenKey[k]; ok {
			return fmt.Errorf("%s: key %v minted as %d and %d: %w", cat, k, prev, ids[i], ErrDuplicateAllocation)
		}
		seenKey[k] = ids[i]
	}
	return nil
}
