package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/inodb/vibe-talon/internal/genome"
	"github.com/inodb/vibe-talon/internal/registry"
)

// maxParams keeps multi-row INSERTs under SQLite's bound-parameter limit.
const maxParams = 32766

// IntegrityError reports a counter that disagrees with its table after flush.
type IntegrityError struct {
	Category registry.Category
	Expected int64 // counter value
	Actual   int64 // live row count
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed for %s: counter is %d but table has %d rows",
		e.Category, e.Expected, e.Actual)
}

// counterTables maps each counted category to the table it counts.
var counterTables = map[registry.Category]string{
	registry.Genes:       "genes",
	registry.Transcripts: "transcripts",
	registry.Vertices:    "vertices",
	registry.Edges:       "edges",
	registry.Datasets:    "datasets",
	registry.Observed:    "observed",
}

var annotationTables = map[registry.AnnotationKind]string{
	registry.GeneAnnotation:       "gene_annotations",
	registry.TranscriptAnnotation: "transcript_annotations",
	registry.ExonAnnotation:       "exon_annotations",
}

// Flush writes everything the registry staged in one transaction, in
// dependency order, then checks every counter against its table. On any
// error, including an IntegrityError, the transaction is rolled back.
func (s *Store) Flush(ctx context.Context, reg *registry.Registry) (err error) {
	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("rollback failed", zap.Error(rbErr))
			}
		}
	}()

	steps := []struct {
		name string
		fn   func(context.Context, *sql.Tx, *registry.Registry) error
	}{
		{"build", s.writeBuild},
		{"genes", s.writeGenes},
		{"transcripts", s.writeTranscripts},
		{"edges", s.writeEdges},
		{"vertices", s.writeVertices},
		{"observed", s.writeObserved},
		{"datasets", s.writeDatasets},
		{"counters", s.writeCounters},
		{"abundance", s.writeAbundance},
	}
	for _, step := range steps {
		if err := step.fn(ctx, tx, reg); err != nil {
			return fmt.Errorf("write %s: %w", step.name, err)
		}
	}

	if err := checkIntegrity(ctx, tx, reg.Allocator().Snapshot()); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.logger.Info("flushed registry",
		zap.Int("genes", len(reg.Genes())),
		zap.Int("transcripts", len(reg.Transcripts())),
		zap.Int("edges", len(reg.Edges())),
		zap.Int("vertices", len(reg.Vertices())),
		zap.Int("observed", len(reg.Observed())),
		zap.Int("datasets", len(reg.Datasets())),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// CheckIntegrity compares persisted counters with live row counts.
func (s *Store) CheckIntegrity(ctx context.Context) error {
	counters, err := s.Counters(ctx)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()
	return checkIntegrity(ctx, tx, counters)
}

func checkIntegrity(ctx context.Context, tx *sql.Tx, counters map[registry.Category]int64) error {
	for _, c := range registry.Categories {
		var n int64
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+counterTables[c]).Scan(&n); err != nil {
			return fmt.Errorf("count %s: %w", c, err)
		}
		if n != counters[c] {
			return &IntegrityError{Category: c, Expected: counters[c], Actual: n}
		}
	}
	return nil
}

func (s *Store) writeBuild(ctx context.Context, tx *sql.Tx, reg *registry.Registry) error {
	var n int64
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM genome_builds WHERE name = ?`, reg.Build()).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO genome_builds (name) VALUES (?)`, reg.Build())
	return err
}

func (s *Store) writeGenes(ctx context.Context, tx *sql.Tx, reg *registry.Registry) error {
	rows := make([][]any, 0, len(reg.Genes()))
	for _, g := range reg.Genes() {
		rows = append(rows, []any{g.ID, g.Chrom, g.Strand.String()})
	}
	if err := s.insertRows(ctx, tx, "genes", []string{"gene_id", "chromosome", "strand"}, rows); err != nil {
		return err
	}
	return s.writeAnnotations(ctx, tx, reg, registry.GeneAnnotation)
}

func (s *Store) writeTranscripts(ctx context.Context, tx *sql.Tx, reg *registry.Registry) error {
	rows := make([][]any, 0, len(reg.Transcripts()))
	for _, t := range reg.Transcripts() {
		rows = append(rows, []any{t.ID, t.GeneID, genome.FormatPath(t.Path), t.StartVertex, t.EndVertex, t.NExons})
	}
	cols := []string{"transcript_id", "gene_id", "path", "start_vertex", "end_vertex", "n_exons"}
	if err := s.insertRows(ctx, tx, "transcripts", cols, rows); err != nil {
		return err
	}
	return s.writeAnnotations(ctx, tx, reg, registry.TranscriptAnnotation)
}

func (s *Store) writeEdges(ctx context.Context, tx *sql.Tx, reg *registry.Registry) error {
	rows := make([][]any, 0, len(reg.Edges()))
	for _, e := range reg.Edges() {
		rows = append(rows, []any{e.ID, e.V1, e.V2, e.Type.String(), e.Strand.String()})
	}
	if err := s.insertRows(ctx, tx, "edges", []string{"edge_id", "v1", "v2", "edge_type", "strand"}, rows); err != nil {
		return err
	}
	return s.writeAnnotations(ctx, tx, reg, registry.ExonAnnotation)
}

func (s *Store) writeVertices(ctx context.Context, tx *sql.Tx, reg *registry.Registry) error {
	vertices := make([][]any, 0, len(reg.Vertices()))
	locations := make([][]any, 0, len(reg.Vertices()))
	for _, v := range reg.Vertices() {
		vertices = append(vertices, []any{v.ID, v.GeneID})
		locations = append(locations, []any{v.ID, reg.Build(), v.Chrom, v.Pos, v.Strand.String()})
	}
	if err := s.insertRows(ctx, tx, "vertices", []string{"vertex_id", "gene_id"}, vertices); err != nil {
		return err
	}
	cols := []string{"location_id", "genome_build", "chromosome", "pos", "strand"}
	return s.insertRows(ctx, tx, "locations", cols, locations)
}

func (s *Store) writeObserved(ctx context.Context, tx *sql.Tx, reg *registry.Registry) error {
	rows := make([][]any, 0, len(reg.Observed()))
	for _, o := range reg.Observed() {
		rows = append(rows, []any{
			o.ID, o.GeneID, o.TranscriptID, o.ReadName, o.DatasetID,
			o.StartVertex, o.EndVertex, o.Diff5, o.Diff3, o.ReadLength,
		})
	}
	cols := []string{
		"obs_id", "gene_id", "transcript_id", "read_name", "dataset",
		"start_vertex", "end_vertex", "diff_5", "diff_3", "read_length",
	}
	return s.insertRows(ctx, tx, "observed", cols, rows)
}

func (s *Store) writeDatasets(ctx context.Context, tx *sql.Tx, reg *registry.Registry) error {
	rows := make([][]any, 0, len(reg.Datasets()))
	for _, d := range reg.Datasets() {
		rows = append(rows, []any{d.ID, d.Name, d.Sample, d.Platform})
	}
	return s.insertRows(ctx, tx, "datasets", []string{"dataset_id", "dataset_name", "sample", "platform"}, rows)
}

func (s *Store) writeCounters(ctx context.Context, tx *sql.Tx, reg *registry.Registry) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM counters`); err != nil {
		return err
	}
	snap := reg.Allocator().Snapshot()
	rows := make([][]any, 0, len(registry.Categories))
	for _, c := range registry.Categories {
		rows = append(rows, []any{string(c), snap[c]})
	}
	return s.insertRows(ctx, tx, "counters", []string{"category", "counter_value"}, rows)
}

func (s *Store) writeAbundance(ctx context.Context, tx *sql.Tx, reg *registry.Registry) error {
	ab := reg.Abundance()
	rows := make([][]any, 0, len(ab))
	for _, a := range ab {
		rows = append(rows, []any{a.TranscriptID, a.DatasetID, a.Count})
	}
	return s.insertRows(ctx, tx, "abundance", []string{"transcript_id", "dataset", "total"}, rows)
}

func (s *Store) writeAnnotations(ctx context.Context, tx *sql.Tx, reg *registry.Registry, kind registry.AnnotationKind) error {
	anns := reg.Annotations(kind)
	rows := make([][]any, 0, len(anns))
	for _, a := range anns {
		rows = append(rows, []any{a.ID, a.Name, a.Source, a.Attribute, a.Value})
	}
	cols := []string{"id", "annot_name", "source", "attribute", "attr_value"}
	return s.insertRows(ctx, tx, annotationTables[kind], cols, rows)
}

// insertRows writes rows with multi-row INSERT statements of at most
// batchSize rows each.
func (s *Store) insertRows(ctx context.Context, tx *sql.Tx, table string, cols []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	chunk := min(s.batchSize, maxParams/len(cols))
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	prefix := "INSERT INTO " + table + " (" + strings.Join(cols, ", ") + ") VALUES "

	for lo := 0; lo < len(rows); lo += chunk {
		hi := min(lo+chunk, len(rows))

		var b strings.Builder
		b.WriteString(prefix)
		args := make([]any, 0, (hi-lo)*len(cols))
		for i := lo; i < hi; i++ {
			if i > lo {
				b.WriteString(", ")
			}
			b.WriteString(placeholder)
			args = append(args, rows[i]...)
		}
		if _, err := tx.ExecContext(ctx, b.String(), args...); err != nil {
			return fmt.Errorf("insert into %s: %w", table, err)
		}
	}
	s.logger.Debug("inserted rows", zap.String("table", table), zap.Int("rows", len(rows)))
	return nil
}
