// Package index provides the in-memory genomic indexes consulted while
// identifying reads: vertices and edges per chromosome, and gene loci.
package index

import "sort"

// IntervalTree provides O(log n + k) overlap queries using a sorted-slice approach.
// Intervals are held by ID; inserts and removals mark the prune array stale and
// it is rebuilt on the next query.
type IntervalTree struct {
	intervals []interval
	maxEnd    []int64 // maxEnd[i] = max(end) for intervals[:i+1]
	stale     bool
}

type interval struct {
	start int64
	end   int64
	id    int64
}

func (a interval) less(b interval) bool {
	if a.start != b.start {
		return a.start < b.start
	}
	if a.end != b.end {
		return a.end < b.end
	}
	return a.id < b.id
}

// NewIntervalTree creates an empty interval tree.
func NewIntervalTree() *IntervalTree {
	return &IntervalTree{}
}

// Len returns the number of intervals in the tree.
func (t *IntervalTree) Len() int {
	return len(t.intervals)
}

// Insert adds the interval [start, end] under id.
func (t *IntervalTree) Insert(start, end, id int64) {
	iv := interval{start: start, end: end, id: id}
	i := sort.Search(len(t.intervals), func(i int) bool {
		return iv.less(t.intervals[i])
	})
	t.intervals = append(t.intervals, interval{})
	copy(t.intervals[i+1:], t.intervals[i:])
	t.intervals[i] = iv
	t.stale = true
}

// Remove deletes the interval stored under id. It returns false if id is absent.
func (t *IntervalTree) Remove(id int64) bool {
	for i, iv := range t.intervals {
		if iv.id == id {
			t.intervals = append(t.intervals[:i], t.intervals[i+1:]...)
			t.stale = true
			return true
		}
	}
	return false
}

func (t *IntervalTree) rebuild() {
	t.maxEnd = t.maxEnd[:0]
	for i, iv := range t.intervals {
		m := iv.end
		if i > 0 && t.maxEnd[i-1] > m {
			m = t.maxEnd[i-1]
		}
		t.maxEnd = append(t.maxEnd, m)
	}
	t.stale = false
}

// FindOverlaps returns the IDs of all intervals overlapping [start, end],
// ordered by (start, end, id).
func (t *IntervalTree) FindOverlaps(start, end int64) []int64 {
	if len(t.intervals) == 0 {
		return nil
	}
	if t.stale || len(t.maxEnd) != len(t.intervals) {
		t.rebuild()
	}

	// Candidates are [0, hi): every interval starting after end is disjoint.
	hi := sort.Search(len(t.intervals), func(i int) bool {
		return t.intervals[i].start > end
	})

	var result []int64
	for i := hi - 1; i >= 0; i-- {
		// Nothing in intervals[:i+1] reaches start.
		if t.maxEnd[i] < start {
			break
		}
		if t.intervals[i].end >= start {
			result = append(result, t.intervals[i].id)
		}
	}

	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result
}

// FindPoint returns the IDs of all intervals containing pos.
func (t *IntervalTree) FindPoint(pos int64) []int64 {
	return t.FindOverlaps(pos, pos)
}
