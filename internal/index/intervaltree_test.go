package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func buildTree(ivs ...[3]int64) *IntervalTree {
	tree := NewIntervalTree()
	for _, iv := range ivs {
		tree.Insert(iv[0], iv[1], iv[2])
	}
	return tree
}

func TestIntervalTree_Empty(t *testing.T) {
	tree := NewIntervalTree()
	assert.Empty(t, tree.FindPoint(100))
	assert.Equal(t, 0, tree.Len())
}

func TestIntervalTree_SingleInterval(t *testing.T) {
	tree := buildTree([3]int64{100, 200, 1})

	assert.Equal(t, []int64{1}, tree.FindPoint(150))
	assert.Len(t, tree.FindPoint(100), 1, "start boundary inclusive")
	assert.Len(t, tree.FindPoint(200), 1, "end boundary inclusive")
	assert.Empty(t, tree.FindPoint(99), "before start")
	assert.Empty(t, tree.FindPoint(201), "after end")
}

func TestIntervalTree_Overlapping(t *testing.T) {
	tree := buildTree(
		[3]int64{200, 400, 3},
		[3]int64{100, 300, 1},
		[3]int64{150, 250, 2},
	)

	assert.Equal(t, []int64{1, 2}, tree.FindPoint(175))
	assert.Equal(t, []int64{1, 2, 3}, tree.FindPoint(250))
	assert.Equal(t, []int64{3}, tree.FindPoint(350))
	assert.Equal(t, []int64{1, 2, 3}, tree.FindOverlaps(240, 260))
}

func TestIntervalTree_SortedOutput(t *testing.T) {
	// Same coordinates, inserted out of ID order.
	tree := buildTree(
		[3]int64{100, 200, 9},
		[3]int64{100, 200, 4},
		[3]int64{100, 150, 7},
	)
	assert.Equal(t, []int64{7, 4, 9}, tree.FindOverlaps(120, 130))
}

func TestIntervalTree_LongIntervalBeforeShortOnes(t *testing.T) {
	// A long interval followed by short ones: the prune must not stop early.
	tree := buildTree(
		[3]int64{1, 1000, 1},
		[3]int64{5, 6, 2},
		[3]int64{7, 8, 3},
	)
	assert.Equal(t, []int64{1}, tree.FindPoint(100))
}

func TestIntervalTree_InsertAfterQuery(t *testing.T) {
	tree := buildTree([3]int64{100, 200, 1})
	assert.Len(t, tree.FindPoint(150), 1)

	tree.Insert(120, 180, 2)
	assert.Equal(t, []int64{1, 2}, tree.FindPoint(150))
}

func TestIntervalTree_Remove(t *testing.T) {
	tree := buildTree([3]int64{100, 200, 1}, [3]int64{150, 250, 2})
	assert.True(t, tree.Remove(1))
	assert.False(t, tree.Remove(1))
	assert.Equal(t, []int64{2}, tree.FindPoint(175))
	assert.Empty(t, tree.FindPoint(120))
}

func TestIntervalTree_MatchesLinearScan(t *testing.T) {
	ivs := [][3]int64{
		{1000, 5000, 1},
		{2000, 3000, 2},
		{4000, 8000, 3},
		{6000, 7000, 4},
		{9000, 10000, 5},
		{100, 12000, 6},
	}
	tree := buildTree(ivs...)

	for pos := int64(0); pos <= 13000; pos += 250 {
		for _, width := range []int64{0, 300, 2500} {
			want := map[int64]bool{}
			for _, iv := range ivs {
				if iv[0] <= pos+width && iv[1] >= pos {
					want[iv[2]] = true
				}
			}
			got := map[int64]bool{}
			for _, id := range tree.FindOverlaps(pos, pos+width) {
				got[id] = true
			}
			assert.Equal(t, want, got, "pos=%d width=%d", pos, width)
		}
	}
}
