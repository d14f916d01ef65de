// Package annotate assigns transcript identities to aligned long reads.
package annotate

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/inodb/vibe-talon/internal/alignment"
	"github.com/inodb/vibe-talon/internal/genome"
	"github.com/inodb/vibe-talon/internal/match"
	"github.com/inodb/vibe-talon/internal/registry"
)

// AssignmentWriter defines the interface for writing read assignments.
type AssignmentWriter interface {
	WriteHeader() error
	Write(a *registry.Assignment) error
	Flush() error
}

// QCWriter receives alignments rejected for low coverage or identity.
type QCWriter interface {
	Write(a *alignment.Alignment) error
}

// Stats counts what happened to the records of one dataset.
type Stats struct {
	Alignments int // primary alignments decoded
	Assigned   int
	Known      int
	Novel      int
	TooShort   int
	LowQuality int
	Malformed  int
}

// Annotator identifies reads against a registry.
// Reads are identified one at a time, in input order.
type Annotator struct {
	reg     *registry.Registry
	tracker *match.Tracker
	filter  alignment.Filter
	workers int
	qc      QCWriter
	logger  *zap.Logger
}

// NewAnnotator creates a new annotator over the given registry.
func NewAnnotator(reg *registry.Registry) *Annotator {
	return &Annotator{
		reg:     reg,
		tracker: match.NewTracker(reg.Index()),
		filter:  alignment.DefaultFilter,
		logger:  zap.NewNop(),
	}
}

// SetFilter sets the read QC thresholds.
func (a *Annotator) SetFilter(f alignment.Filter) {
	a.filter = f
}

// SetWorkers sets the number of SAM decoding goroutines. 0 means one per CPU.
func (a *Annotator) SetWorkers(n int) {
	a.workers = n
}

// SetQCWriter sets where reads failing coverage or identity are logged.
func (a *Annotator) SetQCWriter(qc QCWriter) {
	a.qc = qc
}

// SetLogger sets the logger for warning and info messages.
func (a *Annotator) SetLogger(l *zap.Logger) {
	a.logger = l
	a.tracker.SetLogger(l)
}

// AnnotateRead validates, matches and identifies a single read.
func (a *Annotator) AnnotateRead(read *genome.Read) (*registry.Assignment, error) {
	if err := read.Validate(); err != nil {
		return nil, err
	}
	return a.reg.Identify(read, a.tracker.Match(read))
}

// AnnotateAll identifies every primary alignment of r as part of dataset
// and writes each assignment. Malformed reads are logged and skipped; a
// record without an MD tag stops the run.
func (a *Annotator) AnnotateAll(ctx context.Context, r alignment.RecordReader, dataset string, writer AssignmentWriter) (*Stats, error) {
	stats := &Stats{}
	log := a.logger.With(zap.String("dataset", dataset))

	err := alignment.Stream(ctx, r, dataset, a.workers, func(res alignment.WorkResult) error {
		var mre *genome.MalformedReadError
		if res.Err != nil {
			if errors.As(res.Err, &mre) {
				stats.Malformed++
				log.Warn("skipping malformed read", zap.String("read", res.Name), zap.Error(res.Err))
				return nil
			}
			return res.Err
		}
		stats.Alignments++

		switch a.filter.Check(res.Alignment) {
		case alignment.TooShort:
			stats.TooShort++
			return nil
		case alignment.LowQuality:
			stats.LowQuality++
			if a.qc != nil {
				if err := a.qc.Write(res.Alignment); err != nil {
					return fmt.Errorf("write QC log: %w", err)
				}
			}
			return nil
		}

		assignment, err := a.AnnotateRead(res.Alignment.Read)
		if errors.As(err, &mre) {
			stats.Malformed++
			log.Warn("skipping malformed read", zap.String("read", res.Name), zap.Error(err))
			return nil
		}
		if err != nil {
			return err
		}

		stats.Assigned++
		if assignment.Status == registry.Known {
			stats.Known++
		} else {
			stats.Novel++
		}
		if err := writer.Write(assignment); err != nil {
			return fmt.Errorf("write assignment: %w", err)
		}
		return nil
	})
	if err != nil {
		return stats, err
	}

	log.Info("identified reads",
		zap.Int("alignments", stats.Alignments),
		zap.Int("assigned", stats.Assigned),
		zap.Int("known", stats.Known),
		zap.Int("novel", stats.Novel),
		zap.Int("too_short", stats.TooShort),
		zap.Int("low_quality", stats.LowQuality),
		zap.Int("malformed", stats.Malformed))

	return stats, writer.Flush()
}
