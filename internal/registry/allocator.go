package registry

import "fmt"

// Category names one counted entity table.
type Category string

const (
	Genes       Category = "genes"
	Transcripts Category = "transcripts"
	Vertices    Category = "vertex"
	Edges       Category = "edge"
	Datasets    Category = "dataset"
	Observed    Category = "observed"
)

// Categories lists every counted category in flush order.
var Categories = []Category{Genes, Transcripts, Edges, Vertices, Observed, Datasets}

// ParseCategory converts a counter name to a Category.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown counter category %q", s)
}

// Allocator hands out monotonically increasing IDs per category, starting
// after the values persisted by the previous run.
type Allocator struct {
	start  map[Category]int64
	values map[Category]int64
}

// NewAllocator creates an allocator resuming from the given counter values.
// Missing categories start at zero.
func NewAllocator(initial map[Category]int64) *Allocator {
	a := &Allocator{
		start:  make(map[Category]int64, len(Categories)),
		values: make(map[Category]int64, len(Categories)),
	}
	for _, c := range Categories {
		a.start[c] = initial[c]
		a.values[c] = initial[c]
	}
	return a
}

// Next allocates and returns the next ID in a category.
func (a *Allocator) Next(c Category) int64 {
	a.values[c]++
	return a.values[c]
}

// Value returns the last ID allocated in a category.
func (a *Allocator) Value(c Category) int64 {
	return a.values[c]
}

// Start returns the counter value the allocator resumed from.
func (a *Allocator) Start(c Category) int64 {
	return a.start[c]
}

// Minted returns how many IDs were allocated in a category this run.
func (a *Allocator) Minted(c Category) int64 {
	return a.values[c] - a.start[c]
}

// Snapshot returns a copy of all counter values.
func (a *Allocator) Snapshot() map[Category]int64 {
	out := make(map[Category]int64, len(a.values))
	for c, v := range a.values {
		out[c] = v
	}
	return out
}
