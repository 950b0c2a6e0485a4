package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/scenecull/engine/core"
	"github.com/spaghettifunk/scenecull/engine/math"
	"github.com/spaghettifunk/scenecull/engine/renderer/metadata"
	"github.com/spaghettifunk/scenecull/engine/systems"
)

func (f *fixture) setRange(rid core.RID, begin, end float32) {
	f.cull.InstanceGeometrySetVisibilityRange(rid, begin, end, 0, 0, metadata.VISIBILITY_RANGE_FADE_DISABLED)
}

func TestVisibilityDepthOrdering(t *testing.T) {
	f := newFixture(t, nil)
	a := f.mesh(0, 0, 0)
	b := f.mesh(0, 0, 0)
	c := f.mesh(0, 0, 0)
	for _, rid := range []core.RID{a, b, c} {
		f.setRange(rid, 0, 100)
	}
	f.cull.Update()

	f.cull.InstanceSetVisibilityParent(c, b)
	f.cull.InstanceSetVisibilityParent(b, a)
	assert.Equal(t, 2, f.cull.InstanceGetVisibilityDepth(a))
	assert.Equal(t, 1, f.cull.InstanceGetVisibilityDepth(b))
	assert.Equal(t, 0, f.cull.InstanceGetVisibilityDepth(c))

	s := f.scene()
	require.Equal(t, 3, s.VisibilityLen())
	assert.Equal(t, 0, f.cull.InstanceGetVisibilityIndex(a))
	assert.Equal(t, 1, f.cull.InstanceGetVisibilityIndex(b))
	assert.Equal(t, 2, f.cull.InstanceGetVisibilityIndex(c))
	checkDepthOrder(t, s)
	checkAlignment(t, s)

	f.cull.InstanceSetVisibilityParent(c, core.NilRID)
	assert.Equal(t, 1, f.cull.InstanceGetVisibilityDepth(a))
	assert.Equal(t, 0, f.cull.InstanceGetVisibilityDepth(b))
	checkDepthOrder(t, s)
	checkAlignment(t, s)

	// depth is tracked for unlisted instances too
	d := f.mesh(0, 0, 0)
	f.cull.InstanceSetVisibilityParent(d, c)
	assert.Equal(t, 1, f.cull.InstanceGetVisibilityDepth(c))
	f.cull.Update()
	checkDepthOrder(t, s)
	checkAlignment(t, s)
}

func TestVisibilityListMembership(t *testing.T) {
	f := newFixture(t, nil)
	rid := f.mesh(0, 0, 0)
	f.cull.Update()
	assert.Equal(t, -1, f.cull.InstanceGetVisibilityIndex(rid))

	f.cull.InstanceGeometrySetVisibilityRange(rid, 1, 10, 0.5, 2, metadata.VISIBILITY_RANGE_FADE_SELF)
	assert.Equal(t, 0, f.cull.InstanceGetVisibilityIndex(rid))
	g := f.geometry(t, rid)
	assert.True(t, g.FadeBeginEnabled)
	assert.EqualValues(t, 0.5, g.FadeBeginMin)
	assert.EqualValues(t, 1.5, g.FadeBeginMax)
	assert.True(t, g.FadeEndEnabled)
	assert.EqualValues(t, 8, g.FadeEndMin)
	assert.EqualValues(t, 12, g.FadeEndMax)

	vd := f.scene().VisibilityAt(0)
	assert.EqualValues(t, 10, vd.RangeEnd)
	assert.Equal(t, metadata.VISIBILITY_RANGE_FADE_SELF, vd.FadeMode)

	f.cull.InstanceGeometrySetVisibilityRange(rid, 0, 0, 0, 0, metadata.VISIBILITY_RANGE_FADE_DISABLED)
	assert.Equal(t, -1, f.cull.InstanceGetVisibilityIndex(rid))
	assert.False(t, g.FadeEndEnabled)
	assert.Equal(t, 0, f.scene().VisibilityLen())

	// collision volumes are never listed
	c := f.collision(0, 0, 0, unitBox())
	f.setRange(c, 0, 10)
	f.cull.Update()
	assert.Equal(t, -1, f.cull.InstanceGetVisibilityIndex(c))
}

func TestVisibilityRangeHidesFarInstances(t *testing.T) {
	f := newFixture(t, nil)
	near := f.mesh(0, 0, 0)
	far := f.mesh(50, 0, 0)
	closeUp := f.mesh(1, 0, 0)
	f.setRange(near, 0, 20)
	f.setRange(far, 0, 20)
	f.setRange(closeUp, 5, 0)
	f.cull.Update()

	f.cull.VisibilityCull(f.scenario, math.NewVec3Zero(), 1)
	assert.False(t, f.cull.InstanceIsVisibilityHidden(near))
	assert.True(t, f.cull.InstanceIsVisibilityHidden(far))
	assert.False(t, f.cull.InstanceIsVisibilityHidden(closeUp))
	assert.Equal(t, FLAG_VISIBILITY_DEPENDENCY_HIDDEN_CLOSE_RANGE, f.cull.InstanceVisibilityFlags(closeUp))
	assert.Equal(t, 3, f.cull.Metrics().VisibilityCulls)
}

func TestHiddenParentHidesDescendants(t *testing.T) {
	f := newFixture(t, nil)
	parent := f.mesh(0, 0, 0)
	child := f.mesh(0, 0, 0)
	grandchild := f.mesh(0, 0, 0)
	f.setRange(parent, 0, 10)
	f.cull.InstanceSetVisibilityParent(child, parent)
	f.cull.InstanceSetVisibilityParent(grandchild, child)
	f.cull.Update()

	// every member of the chain is listed so the state flows down
	s := f.scene()
	assert.Equal(t, 3, s.VisibilityLen())
	checkAlignment(t, s)

	f.cull.VisibilityCull(f.scenario, math.NewVec3(100, 0, 0), 1)
	assert.True(t, f.cull.InstanceIsVisibilityHidden(parent))
	assert.True(t, f.cull.InstanceIsVisibilityHidden(child))
	assert.True(t, f.cull.InstanceIsVisibilityHidden(grandchild))

	// while the parent draws itself, its dependencies stay hidden
	f.cull.VisibilityCull(f.scenario, math.NewVec3(5, 0, 0), 1)
	assert.False(t, f.cull.InstanceIsVisibilityHidden(parent))
	assert.True(t, f.cull.InstanceIsVisibilityHidden(child))

	// too close for the parent: the child takes over
	f.setRange(parent, 3, 10)
	f.cull.VisibilityCull(f.scenario, math.NewVec3(1, 0, 0), 1)
	assert.Equal(t, FLAG_VISIBILITY_DEPENDENCY_HIDDEN_CLOSE_RANGE, f.cull.InstanceVisibilityFlags(parent))
	assert.False(t, f.cull.InstanceIsVisibilityHidden(child))
	assert.True(t, f.cull.VisibilityParentCheck(s, s.InstanceDataAt(f.cull.InstanceGetArrayIndex(child))))
	assert.EqualValues(t, 1, f.geometry(t, child).ParentFadeAlpha)
}

func TestFadeDependenciesSetsChildAlpha(t *testing.T) {
	f := newFixture(t, nil)
	parent := f.mesh(0, 0, 0)
	child := f.mesh(0, 0, 0)
	f.cull.InstanceGeometrySetVisibilityRange(parent, 0, 10, 0, 2, metadata.VISIBILITY_RANGE_FADE_DEPENDENCIES)
	f.cull.InstanceSetVisibilityParent(child, parent)
	f.cull.Update()

	// 11 is three quarters into the 8..12 fade band
	f.cull.VisibilityCull(f.scenario, math.NewVec3(11, 0, 0), 1)
	assert.Equal(t, FLAG_VISIBILITY_DEPENDENCY_FADE_CHILDREN, f.cull.InstanceVisibilityFlags(parent))
	assert.False(t, f.cull.InstanceIsVisibilityHidden(child))
	assert.InDelta(t, 0.75, f.geometry(t, child).ParentFadeAlpha, 1e-5)

	// detaching restores full opacity
	f.cull.InstanceSetVisibilityParent(child, core.NilRID)
	assert.EqualValues(t, 1, f.geometry(t, child).ParentFadeAlpha)
}

func TestVisibilityHysteresisPerViewport(t *testing.T) {
	f := newFixture(t, nil)
	rid := f.mesh(0, 0, 0)
	f.cull.InstanceGeometrySetVisibilityRange(rid, 0, 10, 0, 1, metadata.VISIBILITY_RANGE_FADE_DISABLED)
	f.cull.Update()

	// a viewport that never saw it needs the camera inside the margin
	f.cull.VisibilityCull(f.scenario, math.NewVec3(9.5, 0, 0), 1)
	assert.True(t, f.cull.InstanceIsVisibilityHidden(rid))
	f.cull.VisibilityCull(f.scenario, math.NewVec3(8.5, 0, 0), 1)
	assert.False(t, f.cull.InstanceIsVisibilityHidden(rid))

	// once seen, it stays until the far side of the margin
	f.cull.VisibilityCull(f.scenario, math.NewVec3(10.5, 0, 0), 1)
	assert.False(t, f.cull.InstanceIsVisibilityHidden(rid))
	f.cull.VisibilityCull(f.scenario, math.NewVec3(11.5, 0, 0), 1)
	assert.True(t, f.cull.InstanceIsVisibilityHidden(rid))

	// another viewport keeps its own state
	f.cull.VisibilityCull(f.scenario, math.NewVec3(10.5, 0, 0), 2)
	assert.True(t, f.cull.InstanceIsVisibilityHidden(rid))
}

func TestVisibilityCycleRejected(t *testing.T) {
	f := newFixture(t, nil)
	root := f.mesh(0, 0, 0)
	a := f.mesh(0, 0, 0)
	b := f.mesh(0, 0, 0)
	f.cull.Update()

	f.cull.InstanceSetVisibilityParent(a, root)
	f.cull.InstanceSetVisibilityParent(b, a)

	// b -> a -> b
	f.cull.InstanceSetVisibilityParent(a, b)
	assert.Equal(t, root, f.cull.InstanceGetVisibilityParent(a))
	assert.Equal(t, a, f.cull.InstanceGetVisibilityParent(b))
	assert.Equal(t, 2, f.cull.InstanceGetVisibilityDepth(root))
	assert.Equal(t, 1, f.cull.InstanceGetVisibilityDepth(a))
	assert.Equal(t, 0, f.cull.InstanceGetVisibilityDepth(b))

	// an instance cannot be its own parent
	f.cull.InstanceSetVisibilityParent(b, b)
	assert.Equal(t, a, f.cull.InstanceGetVisibilityParent(b))

	// a parent-less instance stays parent-less
	f.cull.InstanceSetVisibilityParent(root, b)
	assert.Equal(t, core.NilRID, f.cull.InstanceGetVisibilityParent(root))
	assert.Equal(t, 2, f.cull.InstanceGetVisibilityDepth(root))

	s := f.scene()
	checkAlignment(t, s)
	checkDepthOrder(t, s)
}

func TestCrossScenarioParentIsIgnored(t *testing.T) {
	f := newFixture(t, nil)
	other := f.cull.ScenarioCreate()
	parent := f.mesh(0, 0, 0)
	child := f.mesh(0, 0, 0)
	f.cull.InstanceSetScenario(parent, other)
	f.setRange(parent, 0, 1)
	f.cull.InstanceSetVisibilityParent(child, parent)
	f.cull.Update()

	s := f.scene()
	idata := s.InstanceDataAt(f.cull.InstanceGetArrayIndex(child))
	assert.EqualValues(t, -1, idata.ParentArrayIndex)

	f.cull.VisibilityCull(f.scenario, math.NewVec3(100, 0, 0), 1)
	assert.False(t, f.cull.InstanceIsVisibilityHidden(child))
	checkAlignment(t, s)
	checkAlignment(t, f.cull.Scenario(other))
}

// buildForest places trees of three levels along the x axis: a root with
// a range, a child per root and a grandchild per child.
func buildForest(f *fixture, roots int) []core.RID {
	var all []core.RID
	for i := 0; i < roots; i++ {
		x := float32(i) + 0.25
		root := f.mesh(x, 0, 0)
		f.setRange(root, 0, 50)
		child := f.mesh(x, 1, 0)
		f.cull.InstanceGeometrySetVisibilityRange(child, 0, 80, 0, 0, metadata.VISIBILITY_RANGE_FADE_DISABLED)
		f.cull.InstanceSetVisibilityParent(child, root)
		grandchild := f.mesh(x, 2, 0)
		f.cull.InstanceSetVisibilityParent(grandchild, child)
		all = append(all, root, child, grandchild)
	}
	f.cull.Update()
	return all
}

func TestThreadedCullMatchesSerial(t *testing.T) {
	js, err := systems.NewJobSystem(4, 16)
	require.NoError(t, err)
	defer js.Shutdown()

	serial := newFixture(t, nil)
	threaded := newFixture(t, js)
	threaded.cull.SetThreadCullThreshold(1)

	const roots = 120
	serialRIDs := buildForest(serial, roots)
	threadedRIDs := buildForest(threaded, roots)

	for _, x := range []float32{0, 40, 75, 200} {
		camera := math.NewVec3(x, 0, 0)
		serial.cull.VisibilityCull(serial.scenario, camera, 1)
		threaded.cull.VisibilityCull(threaded.scenario, camera, 1)
		for i := range serialRIDs {
			require.Equal(t,
				serial.cull.InstanceVisibilityFlags(serialRIDs[i]),
				threaded.cull.InstanceVisibilityFlags(threadedRIDs[i]),
				"instance %d with camera at %v", i, x)
		}
	}

	// a root in range draws itself in place of its tree; past 50 units
	// the whole tree is hidden
	threaded.cull.VisibilityCull(threaded.scenario, math.NewVec3Zero(), 1)
	for i := 0; i < roots; i++ {
		assert.Equal(t, float32(i)+0.25 > 50, threaded.cull.InstanceIsVisibilityHidden(threadedRIDs[3*i]), "root %d", i)
		assert.True(t, threaded.cull.InstanceIsVisibilityHidden(threadedRIDs[3*i+1]), "child %d", i)
		assert.True(t, threaded.cull.InstanceIsVisibilityHidden(threadedRIDs[3*i+2]), "grandchild %d", i)
	}
	checkAlignment(t, threaded.scene())
	checkDepthOrder(t, threaded.scene())
}
