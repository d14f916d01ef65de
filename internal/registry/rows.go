package registry

// Status is the annotation status of a gene, transcript or exon.
type Status string

const (
	Known Status = "KNOWN"
	Novel Status = "NOVEL"
)

// RunAnnotation is the annot_name of annotation rows minted while identifying reads.
const RunAnnotation = "vibe_talon_run"

// AnnotationKind selects one of the annotation tables.
type AnnotationKind string

const (
	GeneAnnotation       AnnotationKind = "gene"
	TranscriptAnnotation AnnotationKind = "transcript"
	ExonAnnotation       AnnotationKind = "exon"
)

// AnnotationKinds lists the annotation tables in flush order.
var AnnotationKinds = []AnnotationKind{GeneAnnotation, TranscriptAnnotation, ExonAnnotation}

// Annotation is one attribute of a gene, transcript or exon.
type Annotation struct {
	ID        int64
	Name      string // annotation set, e.g. gencode_v45
	Source    string
	Attribute string
	Value     string
}

// DatasetRow is a staged dataset.
type DatasetRow struct {
	ID       int64
	Name     string
	Sample   string
	Platform string
}

// ObservedRow records how one read was identified.
type ObservedRow struct {
	ID           int64
	GeneID       int64
	TranscriptID int64
	ReadName     string
	DatasetID    int64
	StartVertex  int64
	EndVertex    int64
	Diff5        int64
	Diff3        int64
	ReadLength   int64
}

// AbundanceRow is the number of reads assigned to a transcript in a dataset.
type AbundanceRow struct {
	TranscriptID int64
	DatasetID    int64
	Count        int64
}
