package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inodb/vibe-talon/internal/genome"
	"github.com/inodb/vibe-talon/internal/gtf"
	"github.com/inodb/vibe-talon/internal/registry"
)

type initOptions struct {
	gtfPath   string
	annot     string
	chrom     string
	minLength int64
}

func newInitCmd() *cobra.Command {
	var opts initOptions
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Load a GTF annotation into the registry database",
		Long: `Load the genes, transcripts, splice vertices and exon/intron edges of a GTF
annotation into the registry database as known features of a genome build.
The database is created if it does not exist.`,
		Example: `  vibe-talon init --gtf gencode.v44.annotation.gtf.gz --annot gencode_v44 --build hg38 --db talon.db`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.gtfPath, "gtf", "", "GTF annotation file (.gtf or .gtf.gz)")
	cmd.Flags().StringVar(&opts.annot, "annot", "", "Name of the annotation, used to label its rows")
	cmd.Flags().StringVar(&opts.chrom, "chrom", "", "Only load this chromosome")
	cmd.Flags().Int64Var(&opts.minLength, "min-length", 300, "Drop transcripts shorter than this many bases")
	_ = cmd.MarkFlagRequired("gtf")
	_ = cmd.MarkFlagRequired("annot")

	return cmd
}

func runInit(ctx context.Context, opts initOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	s, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	exists, err := s.HasBuild(ctx, cfg.Build)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("genome build %q is already in %s", cfg.Build, cfg.Database)
	}
	// Counters and datasets carry over from builds already in the database.
	st, err := s.Load(ctx, cfg.Build)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}

	start := time.Now()
	loader := gtf.NewLoader(opts.gtfPath)
	loader.SetMinLength(opts.minLength)
	loader.SetChromosome(opts.chrom)
	loader.SetLogger(logger)
	models, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load GTF: %w", err)
	}
	logger.Info("read GTF", zap.String("path", opts.gtfPath), zap.Int("transcripts", len(models)),
		zap.Duration("elapsed", time.Since(start)))

	reg := registry.New(cfg.Build, st)
	reg.SetLogger(logger)
	skipped := 0
	for _, m := range models {
		_, _, err := reg.ImportModel(opts.annot, m)
		var mre *genome.MalformedReadError
		if errors.As(err, &mre) {
			skipped++
			logger.Warn("skipping malformed transcript", zap.String("transcript", m.TranscriptID), zap.Error(err))
			continue
		}
		if err != nil {
			return err
		}
	}
	if err := reg.Verify(); err != nil {
		return err
	}

	if err := s.Flush(ctx, reg); err != nil {
		return err
	}
	logger.Info("initialized genome build",
		zap.String("build", cfg.Build),
		zap.String("annotation", opts.annot),
		zap.Int("genes", len(reg.Genes())),
		zap.Int("transcripts", len(reg.Transcripts())),
		zap.Int("skipped", skipped),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}
