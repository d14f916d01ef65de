package index

import (
	"fmt"

	"github.com/inodb/vibe-talon/internal/genome"
)

type strandKey struct {
	chrom  string
	strand genome.Strand
}

// GeneIndex holds gene spans per chromosome and strand for positional gene
// assignment.
type GeneIndex struct {
	genes map[int64]*genome.Gene
	trees map[strandKey]*IntervalTree
}

// NewGeneIndex creates an empty gene index.
func NewGeneIndex() *GeneIndex {
	return &GeneIndex{
		genes: make(map[int64]*genome.Gene),
		trees: make(map[strandKey]*IntervalTree),
	}
}

// Len returns the number of indexed genes.
func (g *GeneIndex) Len() int { return len(g.genes) }

// Gene returns the gene with the given ID, or nil.
func (g *GeneIndex) Gene(id int64) *genome.Gene { return g.genes[id] }

// Insert adds a gene.
func (g *GeneIndex) Insert(gene *genome.Gene) error {
	if _, ok := g.genes[gene.ID]; ok {
		return fmt.Errorf("gene %d: %w", gene.ID, ErrDuplicateKey)
	}
	if gene.Start > gene.End {
		return fmt.Errorf("gene %d: start %d > end %d", gene.ID, gene.Start, gene.End)
	}
	g.genes[gene.ID] = gene
	k := strandKey{gene.Chrom, gene.Strand}
	tree, ok := g.trees[k]
	if !ok {
		tree = NewIntervalTree()
		g.trees[k] = tree
	}
	tree.Insert(gene.Start, gene.End, gene.ID)
	return nil
}

// Extend grows a gene's span to cover [start, end].
func (g *GeneIndex) Extend(id, start, end int64) error {
	gene, ok := g.genes[id]
	if !ok {
		return fmt.Errorf("gene %d: %w", id, ErrNotFound)
	}
	if start >= gene.Start && end <= gene.End {
		return nil
	}
	tree := g.trees[strandKey{gene.Chrom, gene.Strand}]
	tree.Remove(id)
	gene.Start = min(gene.Start, start)
	gene.End = max(gene.End, end)
	tree.Insert(gene.Start, gene.End, id)
	return nil
}

// FindByOverlap returns the same-strand gene sharing the most bases with
// [start, end]. Ties go to the lowest gene ID.
func (g *GeneIndex) FindByOverlap(chrom string, start, end int64, strand genome.Strand) (int64, bool) {
	tree, ok := g.trees[strandKey{chrom, strand}]
	if !ok {
		return 0, false
	}
	var (
		best     int64
		bestOver int64
		found    bool
	)
	for _, id := range tree.FindOverlaps(start, end) {
		over := g.genes[id].Overlap(start, end)
		if !found || over > bestOver || (over == bestOver && id < best) {
			best, bestOver, found = id, over, true
		}
	}
	return best, found
}
