package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inodb/vibe-talon/internal/alignment"
	"github.com/inodb/vibe-talon/internal/annotate"
	"github.com/inodb/vibe-talon/internal/config"
	"github.com/inodb/vibe-talon/internal/output"
	"github.com/inodb/vibe-talon/internal/registry"
)

type runOptions struct {
	datasets string
	prefix   string
	noUpdate bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Identify the reads of one or more datasets",
		Long: `Identify the aligned reads of each dataset in the dataset file against the
registry, minting novel genes, transcripts, vertices and edges as needed, and
record every read as an observation of its transcript.

The dataset file has one comma-separated line per dataset:
  name,sample,platform,path/to/reads.sam

Datasets already in the database are skipped. Outputs:
  PREFIX_talon.tsv        one line per identified read
  PREFIX_talon_QC.log     reads rejected for low coverage or identity
  PREFIX_abundance.tsv    reads per transcript and dataset`,
		Example: `  vibe-talon run --config datasets.csv --db talon.db --build hg38 -o results/run1`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.datasets, "config", "", "Dataset file: name,sample,platform,sam path per line")
	f.StringVarP(&opts.prefix, "output", "o", "", "Output prefix")
	f.BoolVar(&opts.noUpdate, "no-update", false, "Write outputs but leave the database unchanged")
	f.Int("workers", 0, "SAM decoding goroutines (default: one per CPU)")
	f.Int("bam-threads", 1, "BAM decompression goroutines")
	f.Int("min-length", alignment.DefaultFilter.MinLength, "Minimum read length")
	f.Float64("min-coverage", alignment.DefaultFilter.MinCoverage, "Minimum fraction of the read aligned")
	f.Float64("min-identity", alignment.DefaultFilter.MinIdentity, "Minimum identity to the reference")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("output")

	mustBind("workers", f.Lookup("workers"))
	mustBind("bam-threads", f.Lookup("bam-threads"))
	mustBind("filter.min-length", f.Lookup("min-length"))
	mustBind("filter.min-coverage", f.Lookup("min-coverage"))
	mustBind("filter.min-identity", f.Lookup("min-identity"))

	return cmd
}

func runRun(ctx context.Context, opts runOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	datasets, err := config.LoadDatasets(opts.datasets)
	if err != nil {
		return err
	}

	s, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	ok, err := s.HasBuild(ctx, cfg.Build)
	if err != nil {
		return err
	}
	if !ok {
		builds, err := s.Builds(ctx)
		if err != nil {
			return err
		}
		return fmt.Errorf("genome build %q is not in the database; the choices are: %s",
			cfg.Build, strings.Join(builds, ", "))
	}

	start := time.Now()
	st, err := s.Load(ctx, cfg.Build)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}
	reg := registry.New(cfg.Build, st)
	reg.SetLogger(logger)

	var todo []config.Dataset
	for _, d := range datasets {
		if reg.HasDataset(d.Name) && !opts.noUpdate {
			logger.Warn("ignoring dataset already in the database", zap.String("dataset", d.Name))
			continue
		}
		todo = append(todo, d)
	}
	if len(todo) == 0 {
		logger.Info("no new datasets to identify")
		return nil
	}

	filter := cfg.Filter.Filter()
	w, err := newRunWriters(opts.prefix, filter)
	if err != nil {
		return err
	}
	defer w.close()

	ann := annotate.NewAnnotator(reg)
	ann.SetFilter(filter)
	ann.SetWorkers(cfg.Workers)
	ann.SetQCWriter(w.qc)
	ann.SetLogger(logger)

	for _, d := range todo {
		reg.AddDataset(d.Name, d.Sample, d.Platform)
		if err := identifyDataset(ctx, ann, d, cfg.BAMThreads, w.tab); err != nil {
			return err
		}
	}

	if err := w.qc.Flush(); err != nil {
		return fmt.Errorf("write QC log: %w", err)
	}
	if err := output.WriteAbundance(w.abundance, reg.Abundance(), reg.DatasetNames()); err != nil {
		return fmt.Errorf("write abundance: %w", err)
	}
	if err := reg.Verify(); err != nil {
		return err
	}

	if opts.noUpdate {
		logger.Info("database left unchanged", zap.Duration("elapsed", time.Since(start)))
		return nil
	}
	if err := s.Flush(ctx, reg); err != nil {
		return err
	}
	logger.Info("run complete",
		zap.Int("datasets", len(todo)),
		zap.Int("observed", len(reg.Observed())),
		zap.Int64("novel_transcripts", reg.Allocator().Minted(registry.Transcripts)),
		zap.Int64("novel_genes", reg.Allocator().Minted(registry.Genes)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func identifyDataset(ctx context.Context, ann *annotate.Annotator, d config.Dataset, threads int, tw *output.TabWriter) error {
	r, err := alignment.Open(d.SAM, threads)
	if err != nil {
		return fmt.Errorf("dataset %s: %w", d.Name, err)
	}
	defer r.Close()

	if _, err := ann.AnnotateAll(ctx, r, d.Name, tw); err != nil {
		return fmt.Errorf("dataset %s: %w", d.Name, err)
	}
	return nil
}

// runWriters holds the output files of a run.
type runWriters struct {
	files     []*os.File
	tab       *output.TabWriter
	qc        *output.QCWriter
	abundance *os.File
}

func newRunWriters(prefix string, filter alignment.Filter) (*runWriters, error) {
	w := &runWriters{}
	create := func(suffix string) (*os.File, error) {
		f, err := os.Create(prefix + suffix)
		if err != nil {
			return nil, fmt.Errorf("create output file: %w", err)
		}
		w.files = append(w.files, f)
		return f, nil
	}

	tf, err := create("_talon.tsv")
	if err != nil {
		return nil, err
	}
	w.tab = output.NewTabWriter(tf)
	if err := w.tab.WriteHeader(); err != nil {
		w.close()
		return nil, err
	}

	qf, err := create("_talon_QC.log")
	if err != nil {
		w.close()
		return nil, err
	}
	w.qc = output.NewQCWriter(qf)
	if err := w.qc.WriteHeader(filter); err != nil {
		w.close()
		return nil, err
	}

	if w.abundance, err = create("_abundance.tsv"); err != nil {
		w.close()
		return nil, err
	}
	return w, nil
}

func (w *runWriters) close() {
	for _, f := range w.files {
		f.Close()
	}
}
