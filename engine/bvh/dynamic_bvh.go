package bvh

import (
	"github.com/chewxy/math32"
	"github.com/spaghettifunk/scenecull/engine/math"
)

// ID identifies a leaf inside a DynamicBVH.
type ID int32

const InvalidID ID = -1

func (id ID) IsValid() bool {
	return id >= 0
}

const nullNode int32 = -1

// AllMask matches every leaf in a masked query.
const AllMask = ^uint32(0)

type volume struct {
	min, max math.Vec3
}

func volumeFromAABB(aabb math.AABB) volume {
	return volume{min: aabb.Position, max: aabb.End()}
}

func (v volume) aabb() math.AABB {
	return math.NewAABBFromMinMax(v.min, v.max)
}

func (v volume) merge(o volume) volume {
	return volume{min: v.min.Min(o.min), max: v.max.Max(o.max)}
}

func (v volume) contains(o volume) bool {
	return v.min.X <= o.min.X && v.min.Y <= o.min.Y && v.min.Z <= o.min.Z &&
		v.max.X >= o.max.X && v.max.Y >= o.max.Y && v.max.Z >= o.max.Z
}

func (v volume) intersects(o volume) bool {
	return v.min.X <= o.max.X && v.max.X >= o.min.X &&
		v.min.Y <= o.max.Y && v.max.Y >= o.min.Y &&
		v.min.Z <= o.max.Z && v.max.Z >= o.min.Z
}

// proximity is the Manhattan distance between the doubled centers.
func (v volume) proximity(o volume) float32 {
	d := v.min.Add(v.max).Sub(o.min.Add(o.max))
	return math32.Abs(d.X) + math32.Abs(d.Y) + math32.Abs(d.Z)
}

type node[T any] struct {
	volume   volume
	parent   int32
	children [2]int32
	data     T
	// leaves only, tested against the query mask
	mask uint32
	// free-list link while the node is unused
	nextFree int32
	used     bool
}

func (n *node[T]) isLeaf() bool {
	return n.children[1] == nullNode
}

// DynamicBVH is an incrementally maintained bounding volume hierarchy over
// axis-aligned boxes. Every leaf carries a payload of type T. Nodes live in
// a single slice and are recycled through a free list, so IDs are plain
// indices. Internal nodes always have exactly two children.
//
// It is not safe for concurrent mutation; concurrent AABBQuery calls are
// fine while nothing mutates the tree.
type DynamicBVH[T any] struct {
	nodes  []node[T]
	root   int32
	free   int32
	leaves int
	opath  uint32
}

func New[T any]() *DynamicBVH[T] {
	return &DynamicBVH[T]{root: nullNode, free: nullNode}
}

func (b *DynamicBVH[T]) IsEmpty() bool {
	return b.root == nullNode
}

func (b *DynamicBVH[T]) LeafCount() int {
	return b.leaves
}

// Clear drops every node. Outstanding IDs become invalid.
func (b *DynamicBVH[T]) Clear() {
	b.nodes = b.nodes[:0]
	b.root = nullNode
	b.free = nullNode
	b.leaves = 0
	b.opath = 0
}

func (b *DynamicBVH[T]) createNode(parent int32, v volume, data T) int32 {
	var idx int32
	if b.free != nullNode {
		idx = b.free
		b.free = b.nodes[idx].nextFree
	} else {
		b.nodes = append(b.nodes, node[T]{})
		idx = int32(len(b.nodes) - 1)
	}
	b.nodes[idx] = node[T]{
		volume:   v,
		parent:   parent,
		children: [2]int32{nullNode, nullNode},
		data:     data,
		nextFree: nullNode,
		used:     true,
	}
	return idx
}

func (b *DynamicBVH[T]) deleteNode(idx int32) {
	b.nodes[idx] = node[T]{nextFree: b.free, parent: nullNode, children: [2]int32{nullNode, nullNode}}
	b.free = idx
}

func (b *DynamicBVH[T]) indexOf(n int32) int {
	p := b.nodes[n].parent
	if b.nodes[p].children[1] == n {
		return 1
	}
	return 0
}

func (b *DynamicBVH[T]) insertLeaf(root, leaf int32) {
	if b.root == nullNode {
		b.root = leaf
		b.nodes[leaf].parent = nullNode
		return
	}

	leafVolume := b.nodes[leaf].volume
	for !b.nodes[root].isLeaf() {
		c0 := b.nodes[root].children[0]
		c1 := b.nodes[root].children[1]
		if leafVolume.proximity(b.nodes[c0].volume) < leafVolume.proximity(b.nodes[c1].volume) {
			root = c0
		} else {
			root = c1
		}
	}

	prev := b.nodes[root].parent
	var zero T
	n := b.createNode(prev, leafVolume.merge(b.nodes[root].volume), zero)
	if prev != nullNode {
		b.nodes[prev].children[b.indexOf(root)] = n
		b.nodes[n].children = [2]int32{root, leaf}
		b.nodes[root].parent = n
		b.nodes[leaf].parent = n
		for prev != nullNode {
			if b.nodes[prev].volume.contains(b.nodes[n].volume) {
				break
			}
			c := b.nodes[prev].children
			b.nodes[prev].volume = b.nodes[c[0]].volume.merge(b.nodes[c[1]].volume)
			n = prev
			prev = b.nodes[n].parent
		}
	} else {
		b.nodes[n].children = [2]int32{root, leaf}
		b.nodes[root].parent = n
		b.nodes[leaf].parent = n
		b.root = n
	}
}

// removeLeaf unlinks leaf and returns the lowest ancestor whose volume did
// not change, or the root.
func (b *DynamicBVH[T]) removeLeaf(leaf int32) int32 {
	if leaf == b.root {
		b.root = nullNode
		return nullNode
	}
	parent := b.nodes[leaf].parent
	prev := b.nodes[parent].parent
	sibling := b.nodes[parent].children[1-b.indexOf(leaf)]
	if prev != nullNode {
		b.nodes[prev].children[b.indexOf(parent)] = sibling
		b.nodes[sibling].parent = prev
		b.deleteNode(parent)
		for prev != nullNode {
			old := b.nodes[prev].volume
			c := b.nodes[prev].children
			b.nodes[prev].volume = b.nodes[c[0]].volume.merge(b.nodes[c[1]].volume)
			if old == b.nodes[prev].volume {
				return prev
			}
			prev = b.nodes[prev].parent
		}
		return b.root
	}
	b.root = sibling
	b.nodes[sibling].parent = nullNode
	b.deleteNode(parent)
	return b.root
}

// Insert adds a leaf for aabb carrying data.
func (b *DynamicBVH[T]) Insert(aabb math.AABB, data T) ID {
	return b.InsertMasked(aabb, data, AllMask)
}

// InsertMasked adds a leaf that AABBQueryMask only reports when the query
// mask shares a bit with mask.
func (b *DynamicBVH[T]) InsertMasked(aabb math.AABB, data T, mask uint32) ID {
	leaf := b.createNode(nullNode, volumeFromAABB(aabb), data)
	b.nodes[leaf].mask = mask
	b.insertLeaf(b.root, leaf)
	b.leaves++
	return ID(leaf)
}

// SetMask replaces the query mask of a leaf.
func (b *DynamicBVH[T]) SetMask(id ID, mask uint32) {
	if b.valid(id) {
		b.nodes[id].mask = mask
	}
}

func (b *DynamicBVH[T]) valid(id ID) bool {
	if !id.IsValid() || int(id) >= len(b.nodes) {
		return false
	}
	n := &b.nodes[id]
	return n.used && n.isLeaf()
}

// Update moves the leaf to aabb. It reports false when the volume did not
// change and the tree was left untouched.
func (b *DynamicBVH[T]) Update(id ID, aabb math.AABB) bool {
	if !b.valid(id) {
		return false
	}
	v := volumeFromAABB(aabb)
	leaf := int32(id)
	if b.nodes[leaf].volume == v {
		return false
	}
	b.removeLeaf(leaf)
	b.nodes[leaf].volume = v
	b.insertLeaf(b.root, leaf)
	return true
}

// Remove deletes the leaf. id must not be used afterwards.
func (b *DynamicBVH[T]) Remove(id ID) {
	if !b.valid(id) {
		return
	}
	b.removeLeaf(int32(id))
	b.deleteNode(int32(id))
	b.leaves--
}

// Get returns the payload and box of a leaf.
func (b *DynamicBVH[T]) Get(id ID) (T, math.AABB, bool) {
	if !b.valid(id) {
		var zero T
		return zero, math.AABB{}, false
	}
	n := &b.nodes[id]
	return n.data, n.volume.aabb(), true
}

// OptimizeIncremental reinserts up to passes leaves, choosing them by
// walking from the root along a bit path that advances on every pass so
// successive frames visit different parts of the tree. A negative passes
// value reinserts as many leaves as the tree holds.
func (b *DynamicBVH[T]) OptimizeIncremental(passes int) {
	if passes < 0 {
		passes = b.leaves
	}
	for ; passes > 0 && b.root != nullNode; passes-- {
		n := b.root
		bit := uint32(0)
		for !b.nodes[n].isLeaf() {
			n = b.nodes[n].children[(b.opath>>bit)&1]
			bit = (bit + 1) & 31
		}
		if n != b.root {
			b.removeLeaf(n)
			b.insertLeaf(b.root, n)
		}
		b.opath++
	}
}

// AABBQuery calls fn for every leaf whose box overlaps aabb. Returning true
// from fn stops the query.
func (b *DynamicBVH[T]) AABBQuery(aabb math.AABB, fn func(data T) bool) {
	b.AABBQueryMask(aabb, AllMask, fn)
}

// AABBQueryMask is AABBQuery restricted to leaves whose mask shares a bit
// with mask.
func (b *DynamicBVH[T]) AABBQueryMask(aabb math.AABB, mask uint32, fn func(data T) bool) {
	if b.root == nullNode || mask == 0 {
		return
	}
	v := volumeFromAABB(aabb)
	var fixed [64]int32
	stack := fixed[:0]
	stack = append(stack, b.root)
	for len(stack) > 0 {
		n := &b.nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]
		if !n.volume.intersects(v) {
			continue
		}
		if n.isLeaf() {
			if n.mask&mask == 0 {
				continue
			}
			if fn(n.data) {
				return
			}
			continue
		}
		stack = append(stack, n.children[0], n.children[1])
	}
}

// Height is the number of nodes on the longest root-to-leaf path.
func (b *DynamicBVH[T]) Height() int {
	return b.height(b.root)
}

func (b *DynamicBVH[T]) height(n int32) int {
	if n == nullNode {
		return 0
	}
	if b.nodes[n].isLeaf() {
		return 1
	}
	return 1 + max(b.height(b.nodes[n].children[0]), b.height(b.nodes[n].children[1]))
}

// QuantizeMotion returns the box to insert for an object whose bounds went
// from prev to current. Small motions are snapped outward to a
// power-of-two grid sized from the motion so jitter does not update the
// tree every frame. When the motion spans at least twice the object's own
// longest axis it is treated as a jump and current is returned unchanged.
func QuantizeMotion(current, prev math.AABB) math.AABB {
	if current == prev {
		return current
	}
	motion := current.Merge(prev)
	motionLongest := motion.GetLongestAxisSize()
	longest := current.GetLongestAxisSize()
	if motionLongest >= longest*2 || motionLongest <= 0 {
		return current
	}
	quantizeSize := math.NextPowerOfTwoScale(motionLongest) * 0.5
	return current.Quantize(quantizeSize)
}
