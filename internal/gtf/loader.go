// Package gtf reads annotated transcript models from GENCODE/Ensembl GTF files.
package gtf

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/inodb/vibe-talon/internal/genome"
)

// Loader loads transcript models from a GTF file.
type Loader struct {
	path      string
	chrom     string
	minLength int64
	logger    *zap.Logger
}

// NewLoader creates a new GTF loader.
func NewLoader(path string) *Loader {
	return &Loader{path: path, logger: zap.NewNop()}
}

// SetMinLength drops transcripts whose summed exon length is below n.
func (l *Loader) SetMinLength(n int64) {
	l.minLength = n
}

// SetChromosome restricts loading to one chromosome.
func (l *Loader) SetChromosome(chrom string) {
	l.chrom = chrom
}

// SetLogger sets the logger for skipped lines and filtered transcripts.
func (l *Loader) SetLogger(logger *zap.Logger) {
	l.logger = logger
}

// Load parses the GTF file and returns its transcript models ordered by
// chromosome, start, end and transcript ID.
func (l *Loader) Load() ([]*genome.Model, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open GTF file: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f

	// Handle gzipped files
	if strings.HasSuffix(l.path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	return l.parseGTF(reader)
}

// gtfFeature represents a parsed GTF line.
type gtfFeature struct {
	chrom       string
	source      string
	featureType string
	start       int64
	end         int64
	strand      genome.Strand
	attributes  map[string]string
}

// parseGTF parses GTF content and returns the models that pass the filters.
func (l *Loader) parseGTF(reader io.Reader) ([]*genome.Model, error) {
	scanner := bufio.NewScanner(reader)
	// Increase buffer size for long lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	models := make(map[string]*genome.Model)
	exonIDs := make(map[string]map[genome.Interval]string)

	lineNum := 0
	skipped := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		// Skip comments and empty lines
		if strings.HasPrefix(line, "#") || line == "" {
			continue
		}

		feat, err := parseLine(line)
		if err != nil {
			skipped++
			l.logger.Debug("skipping GTF line", zap.Int("line", lineNum), zap.Error(err))
			continue
		}
		if l.chrom != "" && feat.chrom != l.chrom {
			continue
		}
		if feat.featureType != "transcript" && feat.featureType != "exon" {
			continue
		}

		transcriptID := feat.attributes["transcript_id"]
		if transcriptID == "" {
			continue
		}

		m, ok := models[transcriptID]
		if !ok {
			m = &genome.Model{
				TranscriptID: transcriptID,
				GeneID:       feat.attributes["gene_id"],
				Chrom:        feat.chrom,
				Strand:       feat.strand,
				Source:       feat.source,
			}
			models[transcriptID] = m
		}
		if m.GeneName == "" {
			m.GeneName = feat.attributes["gene_name"]
		}
		if m.TranscriptName == "" {
			m.TranscriptName = feat.attributes["transcript_name"]
		}

		if feat.featureType == "exon" {
			exon := genome.Interval{Start: feat.start, End: feat.end}
			m.Exons = append(m.Exons, exon)
			if id := feat.attributes["exon_id"]; id != "" {
				if exonIDs[transcriptID] == nil {
					exonIDs[transcriptID] = make(map[genome.Interval]string)
				}
				exonIDs[transcriptID][exon] = id
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan GTF: %w", err)
	}
	if skipped > 0 {
		l.logger.Warn("skipped malformed GTF lines", zap.Int("count", skipped))
	}

	out := make([]*genome.Model, 0, len(models))
	short := 0
	for id, m := range models {
		if len(m.Exons) == 0 {
			continue
		}

		// Sort exons by genomic position
		sort.Slice(m.Exons, func(i, j int) bool {
			return m.Exons[i].Start < m.Exons[j].Start
		})
		if ids := exonIDs[id]; len(ids) == len(m.Exons) {
			m.ExonIDs = make([]string, len(m.Exons))
			for i, e := range m.Exons {
				m.ExonIDs[i] = ids[e]
			}
		}

		if m.Length() < l.minLength {
			short++
			continue
		}
		out = append(out, m)
	}
	if short > 0 {
		l.logger.Info("dropped short transcripts", zap.Int("count", short), zap.Int64("min_length", l.minLength))
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Chrom != b.Chrom {
			return a.Chrom < b.Chrom
		}
		if a.Start() != b.Start() {
			return a.Start() < b.Start()
		}
		if a.End() != b.End() {
			return a.End() < b.End()
		}
		return a.TranscriptID < b.TranscriptID
	})
	return out, nil
}

// parseLine parses a single GTF line.
func parseLine(line string) (*gtfFeature, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 9 {
		return nil, fmt.Errorf("invalid GTF line: expected 9 fields, got %d", len(fields))
	}

	start, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse start: %w", err)
	}

	end, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse end: %w", err)
	}

	strand, err := genome.ParseStrand(fields[6])
	if err != nil {
		return nil, err
	}

	return &gtfFeature{
		chrom:       fields[0],
		source:      fields[1],
		featureType: fields[2],
		start:       start,
		end:         end,
		strand:      strand,
		attributes:  parseAttributes(fields[8]),
	}, nil
}

// parseAttributes parses GTF attribute column.
// Format: key "value"; key "value"; ...
func parseAttributes(attrStr string) map[string]string {
	attrs := make(map[string]string)

	for _, part := range strings.Split(attrStr, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		// Find the first space to separate key from value
		idx := strings.Index(part, " ")
		if idx == -1 {
			continue
		}

		key := part[:idx]
		value := strings.Trim(strings.TrimSpace(part[idx+1:]), "\"")

		// Keep the first value of repeated keys such as tag
		if _, ok := attrs[key]; !ok {
			attrs[key] = value
		}
	}

	return attrs
}
