package gtf

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-talon/internal/genome"
)

const toyGTF = `##description: toy annotation
chr1	HAVANA	gene	1	1000	.	+	.	gene_id "G1.1"; gene_name "Alpha";
chr1	HAVANA	transcript	1	1000	.	+	.	gene_id "G1.1"; transcript_id "T1.1"; gene_name "Alpha"; transcript_name "Alpha-201"; tag "basic"; tag "CCDS";
chr1	HAVANA	exon	900	1000	.	+	.	gene_id "G1.1"; transcript_id "T1.1"; exon_number "3"; exon_id "E3";
chr1	HAVANA	exon	1	100	.	+	.	gene_id "G1.1"; transcript_id "T1.1"; exon_number "1"; exon_id "E1";
chr1	HAVANA	exon	500	600	.	+	.	gene_id "G1.1"; transcript_id "T1.1"; exon_number "2"; exon_id "E2";
chr1	HAVANA	CDS	510	600	.	+	0	gene_id "G1.1"; transcript_id "T1.1"; exon_number "2";
chr1	HAVANA	transcript	1	1000	.	+	.	gene_id "G1.1"; transcript_id "T2.1"; gene_name "Alpha"; transcript_name "Alpha-202";
chr1	HAVANA	exon	1	100	.	+	.	gene_id "G1.1"; transcript_id "T2.1"; exon_number "1"; exon_id "E1";
chr1	HAVANA	exon	900	1000	.	+	.	gene_id "G1.1"; transcript_id "T2.1"; exon_number "2"; exon_id "E3";
chr2	ENSEMBL	transcript	2000	2600	.	-	.	gene_id "G2"; transcript_id "T3"; gene_name "Beta";
chr2	ENSEMBL	exon	2500	2600	.	-	.	gene_id "G2"; transcript_id "T3"; exon_number "1"; exon_id "E5";
chr2	ENSEMBL	exon	2000	2100	.	-	.	gene_id "G2"; transcript_id "T3"; exon_number "2"; exon_id "E4";
chr2	ENSEMBL	transcript	5000	5020	.	+	.	gene_id "G3"; transcript_id "T4";
chr2	ENSEMBL	exon	5000	5020	.	+	.	gene_id "G3"; transcript_id "T4"; exon_number "1";
chr2	ENSEMBL	exon	bad	5020	.	+	.	gene_id "G3"; transcript_id "T4";
`

func TestParseAttributes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected map[string]string
	}{
		{
			name:  "basic attributes",
			input: `gene_id "ENSG00000133703"; transcript_id "ENST00000311936"; gene_name "KRAS";`,
			expected: map[string]string{
				"gene_id":       "ENSG00000133703",
				"transcript_id": "ENST00000311936",
				"gene_name":     "KRAS",
			},
		},
		{
			name:  "repeated tags",
			input: `gene_id "ENSG00000133703"; tag "Ensembl_canonical"; tag "MANE_Select";`,
			expected: map[string]string{
				"gene_id": "ENSG00000133703",
				"tag":     "Ensembl_canonical", // first value wins
			},
		},
		{
			name:     "unquoted and empty parts",
			input:    `exon_number 2;; level 2`,
			expected: map[string]string{"exon_number": "2", "level": "2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseAttributes(tt.input))
		})
	}
}

func TestParseLine(t *testing.T) {
	feat, err := parseLine("chr1\tHAVANA\texon\t500\t600\t.\t-\t.\tgene_id \"G1\"; transcript_id \"T1\";")
	require.NoError(t, err)
	assert.Equal(t, "chr1", feat.chrom)
	assert.Equal(t, "HAVANA", feat.source)
	assert.Equal(t, "exon", feat.featureType)
	assert.Equal(t, int64(500), feat.start)
	assert.Equal(t, int64(600), feat.end)
	assert.Equal(t, genome.Reverse, feat.strand)
	assert.Equal(t, "T1", feat.attributes["transcript_id"])

	for _, bad := range []string{
		"chr1\tHAVANA\texon\t500",
		"chr1\tHAVANA\texon\tx\t600\t.\t+\t.\t",
		"chr1\tHAVANA\texon\t500\ty\t.\t+\t.\t",
		"chr1\tHAVANA\texon\t500\t600\t.\t.\t.\t",
	} {
		_, err := parseLine(bad)
		assert.Error(t, err, bad)
	}
}

func TestLoader_ParseGTF(t *testing.T) {
	l := NewLoader("")
	models, err := l.parseGTF(strings.NewReader(toyGTF))
	require.NoError(t, err)
	require.Len(t, models, 4)

	ids := make([]string, len(models))
	for i, m := range models {
		ids[i] = m.TranscriptID
	}
	assert.Equal(t, []string{"T1.1", "T2.1", "T3", "T4"}, ids)

	t1 := models[0]
	assert.Equal(t, "G1.1", t1.GeneID)
	assert.Equal(t, "Alpha", t1.GeneName)
	assert.Equal(t, "Alpha-201", t1.TranscriptName)
	assert.Equal(t, "HAVANA", t1.Source)
	assert.Equal(t, genome.Forward, t1.Strand)
	assert.Equal(t, []genome.Interval{{Start: 1, End: 100}, {Start: 500, End: 600}, {Start: 900, End: 1000}}, t1.Exons)
	assert.Equal(t, []string{"E1", "E2", "E3"}, t1.ExonIDs)

	t3 := models[2]
	assert.Equal(t, genome.Reverse, t3.Strand)
	assert.Equal(t, "ENSEMBL", t3.Source)
	assert.Equal(t, []string{"E4", "E5"}, t3.ExonIDs)
	assert.Equal(t, "E5", t3.ExonIDAt(0), "5' exon of a minus-strand transcript")

	t4 := models[3]
	assert.Nil(t, t4.ExonIDs, "exon IDs are dropped when not every exon has one")
}

func TestLoader_MinLength(t *testing.T) {
	l := NewLoader("")
	l.SetMinLength(100)
	models, err := l.parseGTF(strings.NewReader(toyGTF))
	require.NoError(t, err)
	require.Len(t, models, 3)
	for _, m := range models {
		assert.NotEqual(t, "T4", m.TranscriptID)
		assert.GreaterOrEqual(t, m.Length(), int64(100))
	}
}

func TestLoader_FilterChromosome(t *testing.T) {
	l := NewLoader("")
	l.SetChromosome("chr2")
	models, err := l.parseGTF(strings.NewReader(toyGTF))
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "T3", models[0].TranscriptID)
}

func TestLoader_LoadGzip(t *testing.T) {
	dir := t.TempDir()

	plain := filepath.Join(dir, "toy.gtf")
	require.NoError(t, os.WriteFile(plain, []byte(toyGTF), 0644))

	gzPath := filepath.Join(dir, "toy.gtf.gz")
	f, err := os.Create(gzPath)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(toyGTF))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	want, err := NewLoader(plain).Load()
	require.NoError(t, err)
	got, err := NewLoader(gzPath).Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = NewLoader(filepath.Join(dir, "missing.gtf")).Load()
	assert.Error(t, err)
}
