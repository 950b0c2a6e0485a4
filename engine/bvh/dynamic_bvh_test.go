package bvh

import (
	"sort"
	"testing"

	"github.com/spaghettifunk/scenecull/engine/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func box(x, y, z, size float32) math.AABB {
	return math.NewAABB(math.NewVec3(x, y, z), math.NewVec3(size, size, size))
}

func query(b *DynamicBVH[int], aabb math.AABB) []int {
	var out []int
	b.AABBQuery(aabb, func(v int) bool {
		out = append(out, v)
		return false
	})
	sort.Ints(out)
	return out
}

// checkTree walks the whole tree verifying parent links and that every
// internal volume encloses its children.
func checkTree(t *testing.T, b *DynamicBVH[int]) {
	t.Helper()
	if b.root == nullNode {
		assert.Equal(t, 0, b.LeafCount())
		return
	}
	require.Equal(t, nullNode, b.nodes[b.root].parent)
	leaves := 0
	var walk func(n int32)
	walk = func(n int32) {
		nd := b.nodes[n]
		require.True(t, nd.used)
		if nd.isLeaf() {
			leaves++
			return
		}
		for _, c := range nd.children {
			require.Equal(t, n, b.nodes[c].parent)
			require.True(t, nd.volume.contains(b.nodes[c].volume))
			walk(c)
		}
	}
	walk(b.root)
	assert.Equal(t, b.LeafCount(), leaves)
}

func TestInsertQueryRemove(t *testing.T) {
	b := New[int]()
	assert.True(t, b.IsEmpty())

	ids := make([]ID, 0, 10)
	for i := 0; i < 10; i++ {
		ids = append(ids, b.Insert(box(float32(i*10), 0, 0, 1), i))
	}
	checkTree(t, b)
	assert.Equal(t, 10, b.LeafCount())

	assert.Equal(t, []int{3}, query(b, box(30.5, 0.5, 0.5, 0.1)))
	assert.Equal(t, []int{2, 3, 4}, query(b, box(20, 0, 0, 21)))
	assert.Empty(t, query(b, box(500, 500, 500, 1)))

	b.Remove(ids[3])
	checkTree(t, b)
	assert.Empty(t, query(b, box(30.5, 0.5, 0.5, 0.1)))

	data, aabb, ok := b.Get(ids[4])
	require.True(t, ok)
	assert.Equal(t, 4, data)
	assert.Equal(t, box(40, 0, 0, 1), aabb)

	_, _, ok = b.Get(ids[3])
	assert.False(t, ok)
}

func TestUpdateMovesLeaf(t *testing.T) {
	b := New[int]()
	a := b.Insert(box(0, 0, 0, 1), 1)
	b.Insert(box(5, 5, 5, 1), 2)

	assert.False(t, b.Update(a, box(0, 0, 0, 1)))
	assert.True(t, b.Update(a, box(100, 0, 0, 1)))
	checkTree(t, b)

	assert.Empty(t, query(b, box(0, 0, 0, 1)))
	assert.Equal(t, []int{1}, query(b, box(100, 0, 0, 1)))
}

func TestQueryStopsEarly(t *testing.T) {
	b := New[int]()
	for i := 0; i < 8; i++ {
		b.Insert(box(0, 0, 0, 1), i)
	}
	calls := 0
	b.AABBQuery(box(0, 0, 0, 1), func(int) bool {
		calls++
		return true
	})
	assert.Equal(t, 1, calls)
}

func TestQueryMaskFiltersLeaves(t *testing.T) {
	b := New[int]()
	b.InsertMasked(box(0, 0, 0, 1), 1, 0b001)
	b.InsertMasked(box(0, 0, 0, 1), 2, 0b010)
	c := b.InsertMasked(box(0, 0, 0, 1), 3, 0b110)
	b.Insert(box(0, 0, 0, 1), 4)

	masked := func(mask uint32) []int {
		var out []int
		b.AABBQueryMask(box(0, 0, 0, 1), mask, func(v int) bool {
			out = append(out, v)
			return false
		})
		sort.Ints(out)
		return out
	}

	assert.Equal(t, []int{1, 4}, masked(0b001))
	assert.Equal(t, []int{2, 3, 4}, masked(0b010))
	assert.Empty(t, masked(0))
	assert.Equal(t, []int{1, 2, 3, 4}, query(b, box(0, 0, 0, 1)))

	// the mask survives a move
	b.SetMask(c, 0b001)
	b.Update(c, box(0.5, 0, 0, 1))
	assert.Equal(t, []int{1, 3, 4}, masked(0b001))
	checkTree(t, b)
}

func TestRandomChurnKeepsTreeConsistent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	b := New[int]()
	live := map[int]ID{}

	for step := 0; step < 2000; step++ {
		switch {
		case len(live) < 50 || rng.Intn(3) == 0:
			v := step
			live[v] = b.Insert(box(rng.Float32()*100, rng.Float32()*100, rng.Float32()*100, 1+rng.Float32()), v)
		case rng.Intn(2) == 0:
			for v, id := range live {
				b.Update(id, box(rng.Float32()*100, rng.Float32()*100, rng.Float32()*100, 1))
				_ = v
				break
			}
		default:
			for v, id := range live {
				b.Remove(id)
				delete(live, v)
				break
			}
		}
		if step%100 == 0 {
			b.OptimizeIncremental(5)
			checkTree(t, b)
		}
	}
	checkTree(t, b)
	assert.Equal(t, len(live), b.LeafCount())

	// every live leaf is found by a query over its own box
	for v, id := range live {
		_, aabb, ok := b.Get(id)
		require.True(t, ok)
		assert.Contains(t, query(b, aabb), v)
	}

	for v, id := range live {
		b.Remove(id)
		delete(live, v)
	}
	assert.True(t, b.IsEmpty())
	assert.Equal(t, 0, b.LeafCount())
}

func TestOptimizeIncrementalKeepsLeaves(t *testing.T) {
	b := New[int]()
	// sorted insertion produces a lopsided tree
	for i := 0; i < 64; i++ {
		b.Insert(box(float32(i), 0, 0, 1), i)
	}
	b.OptimizeIncremental(-1)
	checkTree(t, b)
	assert.Equal(t, 64, b.LeafCount())
	assert.Len(t, query(b, box(-1, -1, -1, 100)), 64)
}

func TestQuantizeMotion(t *testing.T) {
	current := box(0.25, 0, 0, 1)

	// no motion: raw box
	assert.Equal(t, current, QuantizeMotion(current, current))

	// small motion: snapped outward onto a grid, still enclosing the box
	prev := box(0, 0, 0, 1)
	q := QuantizeMotion(current, prev)
	assert.NotEqual(t, current, q)
	assert.True(t, q.Encloses(current))
	// motion span is 1.25 so the grid is 2^ceil(log2 1.25) / 2 = 1
	assert.Equal(t, math.NewVec3(0, 0, 0), q.Position)
	assert.Equal(t, math.NewVec3(2, 2, 2), q.End())

	// a jump larger than twice the object's size is not quantized
	far := box(50, 0, 0, 1)
	assert.Equal(t, far, QuantizeMotion(far, prev))
}
