package alignment

// Verdict is the outcome of the read QC filter.
type Verdict int

const (
	Accept     Verdict = iota
	TooShort           // read sequence below the minimum length
	LowQuality         // coverage or identity below the minimum
)

func (v Verdict) String() string {
	switch v {
	case Accept:
		return "accept"
	case TooShort:
		return "too_short"
	case LowQuality:
		return "low_quality"
	}
	return "unknown"
}

// Filter holds the read QC thresholds.
type Filter struct {
	MinLength   int
	MinCoverage float64
	MinIdentity float64
}

// DefaultFilter holds the default QC thresholds.
var DefaultFilter = Filter{MinLength: 300, MinCoverage: 0.9, MinIdentity: 0.85}

// Check applies the filter to a decoded alignment.
func (f Filter) Check(a *Alignment) Verdict {
	if a.SeqLength < f.MinLength {
		return TooShort
	}
	if a.Coverage < f.MinCoverage || a.Identity < f.MinIdentity {
		return LowQuality
	}
	return Accept
}
