package registry

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/inodb/vibe-talon/internal/genome"
	"github.com/inodb/vibe-talon/internal/match"
)

// Assignment is the identity given to one read.
type Assignment struct {
	Read          *genome.Read
	GeneID        int64
	TranscriptID  int64
	Match         match.Type
	Status        Status
	Diff5, Diff3  int64
	ObservationID int64
}

// Identify assigns a read to a transcript. A full match reuses the matched
// transcript; otherwise a gene is chosen and the read's structure is
// materialized as a transcript of that gene, minting what is missing.
// Every read is recorded as one observation and one abundance count.
func (r *Registry) Identify(read *genome.Read, res *match.Result) (*Assignment, error) {
	datasetID, _ := r.AddDataset(read.Dataset, "", "")

	var (
		tx     *genome.Transcript
		d5, d3 int64
	)
	if res.Type == match.Full {
		tx = r.idx.Transcript(res.Best)
		if tx == nil {
			return nil, fmt.Errorf("read %s: matched transcript %d not indexed", read.ID, res.Best)
		}
		d5, d3 = res.Diff5, res.Diff3
	} else {
		geneID, err := r.assignGene(read, res)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", read.ID, err)
		}
		tx, err = r.materialize(read, res, geneID)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", read.ID, err)
		}
		d5, d3 = genome.Deltas(read.Start, read.End, tx.Start, tx.End, read.Strand)
	}

	status := Known
	if tx.ID > r.alloc.Start(Transcripts) {
		status = Novel
	}

	obs := ObservedRow{
		ID:           r.alloc.Next(Observed),
		GeneID:       tx.GeneID,
		TranscriptID: tx.ID,
		ReadName:     read.ID,
		DatasetID:    datasetID,
		StartVertex:  tx.StartVertex,
		EndVertex:    tx.EndVertex,
		Diff5:        d5,
		Diff3:        d3,
		ReadLength:   read.Length(),
	}
	r.stagedObserved = append(r.stagedObserved, obs)

	byDataset, ok := r.abundance[tx.ID]
	if !ok {
		byDataset = make(map[int64]int64)
		r.abundance[tx.ID] = byDataset
	}
	byDataset[datasetID]++

	return &Assignment{
		Read:          read,
		GeneID:        tx.GeneID,
		TranscriptID:  tx.ID,
		Match:         res.Type,
		Status:        status,
		Diff5:         d5,
		Diff3:         d3,
		ObservationID: obs.ID,
	}, nil
}

// assignGene picks the gene for a read without a full match.
func (r *Registry) assignGene(read *genome.Read, res *match.Result) (int64, error) {
	if read.NExons() == 1 {
		if res.Type == match.Partial && res.Best != 0 {
			if t := r.idx.Transcript(res.Best); t != nil {
				return t.GeneID, nil
			}
		}
	} else if id, ok := r.voteGene(read); ok {
		return id, nil
	}

	if id, ok := r.genes.FindByOverlap(read.Chrom, read.Start, read.End, read.Strand); ok {
		return id, nil
	}

	g, err := r.mintGene(read.Chrom, read.Start, read.End, read.Strand)
	if err != nil {
		return 0, err
	}
	r.annotate(GeneAnnotation, g.ID, RunAnnotation, read.Dataset, "gene_status", string(Novel))
	r.logger.Debug("minted gene",
		zap.Int64("gene", g.ID),
		zap.String("chrom", g.Chrom),
		zap.Int64("start", g.Start),
		zap.Int64("end", g.End))
	return g.ID, nil
}

// voteGene returns the gene owning vertices at the most of the read's
// boundary positions. Ties go to the lowest gene ID.
func (r *Registry) voteGene(read *genome.Read) (int64, bool) {
	votes := make(map[int64]int)
	for _, pos := range read.Positions() {
		seen := make(map[int64]bool)
		for _, v := range r.idx.VerticesAt(read.Chrom, pos, read.Strand) {
			if !seen[v.GeneID] {
				seen[v.GeneID] = true
				votes[v.GeneID]++
			}
		}
	}
	if len(votes) == 0 {
		return 0, false
	}
	ids := make([]int64, 0, len(votes))
	for id := range votes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	best := ids[0]
	for _, id := range ids[1:] {
		if votes[id] > votes[best] {
			best = id
		}
	}
	return best, true
}

// materialize builds the read's edge path under geneID. A matched edge is
// reused only when it belongs to geneID and has the read's exact
// coordinates; edges matched in another gene are re-minted in this one.
func (r *Registry) materialize(read *genome.Read, res *match.Result, geneID int64) (*genome.Transcript, error) {
	query := read.Edges()
	path := make([]int64, 0, len(query))
	var mintedExons []int64
	for i, q := range query {
		var e *genome.Edge
		if i < len(res.EdgeMatches) {
			for _, id := range res.EdgeMatches[i].IDs {
				c := r.idx.Edge(id)
				if c.GeneID == geneID && c.Type == q.Type && c.Pos1 == q.Pos1 && c.Pos2 == q.Pos2 {
					e = c
					break
				}
			}
		}
		if e == nil {
			var (
				minted bool
				err    error
			)
			e, minted, err = r.edgeFor(read.Chrom, read.Strand, geneID, q)
			if err != nil {
				return nil, err
			}
			if minted && e.Type == genome.Exon {
				mintedExons = append(mintedExons, e.ID)
			}
		}
		path = append(path, e.ID)
	}

	tx, minted, err := r.transcriptFor(geneID, read.Chrom, read.Strand, path)
	if err != nil {
		return nil, err
	}
	for _, id := range mintedExons {
		r.annotate(ExonAnnotation, id, RunAnnotation, read.Dataset, "exon_status", string(Novel))
	}
	if minted {
		r.annotate(TranscriptAnnotation, tx.ID, RunAnnotation, read.Dataset, "transcript_status", string(Novel))
		r.logger.Debug("minted transcript",
			zap.String("read", read.ID),
			zap.Int64("transcript", tx.ID),
			zap.Int64("gene", geneID),
			zap.Int("edges", len(path)))
	}
	return tx, nil
}
