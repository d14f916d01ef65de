package registry

import (
	"fmt"

	"github.com/inodb/vibe-talon/internal/genome"
)

// ImportModel registers an annotated transcript as known. Genes are keyed by
// the model's gene ID; vertices, edges and identical paths are shared with
// previously imported models. The bool reports whether a new transcript was
// minted.
func (r *Registry) ImportModel(annot string, m *genome.Model) (*genome.Transcript, bool, error) {
	read := m.Read()
	if read.Dataset == "" {
		read.Dataset = annot
	}
	if err := read.Validate(); err != nil {
		return nil, false, err
	}

	geneID, ok := r.sourceGenes[m.GeneID]
	if ok {
		g := r.genes.Gene(geneID)
		if g.Chrom != m.Chrom || g.Strand != m.Strand {
			return nil, false, fmt.Errorf("transcript %s: gene %s is on %s%s, not %s%s",
				m.TranscriptID, m.GeneID, g.Chrom, g.Strand, m.Chrom, m.Strand)
		}
	} else {
		g := &genome.Gene{ID: r.alloc.Next(Genes), Chrom: m.Chrom, Start: m.Start(), End: m.End(), Strand: m.Strand}
		if err := r.genes.Insert(g); err != nil {
			return nil, false, fmt.Errorf("gene %s: %w", m.GeneID, err)
		}
		geneID = g.ID
		r.sourceGenes[m.GeneID] = geneID
		r.stagedGenes = append(r.stagedGenes, g)
		r.annotate(GeneAnnotation, geneID, annot, m.Source, "gene_id", m.GeneID)
		if m.GeneName != "" {
			r.annotate(GeneAnnotation, geneID, annot, m.Source, "gene_name", m.GeneName)
		}
		r.annotate(GeneAnnotation, geneID, annot, m.Source, "gene_status", string(Known))
	}

	query := read.Edges()
	path := make([]int64, 0, len(query))
	for k, q := range query {
		e, minted, err := r.edgeFor(m.Chrom, m.Strand, geneID, q)
		if err != nil {
			return nil, false, fmt.Errorf("transcript %s: %w", m.TranscriptID, err)
		}
		path = append(path, e.ID)
		if !minted || q.Type != genome.Exon {
			continue
		}
		if exonID := m.ExonIDAt(k / 2); exonID != "" {
			r.annotate(ExonAnnotation, e.ID, annot, m.Source, "exon_id", exonID)
		}
		r.annotate(ExonAnnotation, e.ID, annot, m.Source, "exon_status", string(Known))
	}

	tx, minted, err := r.transcriptFor(geneID, m.Chrom, m.Strand, path)
	if err != nil {
		return nil, false, fmt.Errorf("transcript %s: %w", m.TranscriptID, err)
	}
	if minted {
		r.annotate(TranscriptAnnotation, tx.ID, annot, m.Source, "transcript_id", m.TranscriptID)
		if m.TranscriptName != "" {
			r.annotate(TranscriptAnnotation, tx.ID, annot, m.Source, "transcript_name", m.TranscriptName)
		}
		r.annotate(TranscriptAnnotation, tx.ID, annot, m.Source, "transcript_status", string(Known))
	}
	return tx, minted, nil
}
