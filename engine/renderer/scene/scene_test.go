package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/scenecull/engine/config"
	"github.com/spaghettifunk/scenecull/engine/core"
	"github.com/spaghettifunk/scenecull/engine/math"
	"github.com/spaghettifunk/scenecull/engine/renderer/dummy"
	"github.com/spaghettifunk/scenecull/engine/renderer/metadata"
)

type fixture struct {
	cull     *RendererSceneCull
	storage  *dummy.Storage
	render   *dummy.SceneRender
	scenario core.RID
}

func newFixture(t testing.TB, workers metadata.WorkerPool) *fixture {
	t.Helper()
	storage := dummy.NewStorage()
	render := dummy.NewSceneRender()
	cull := New(config.Default().SpatialIndexer, storage.Bundle(), render, workers)
	f := &fixture{
		cull:     cull,
		storage:  storage,
		render:   render,
		scenario: cull.ScenarioCreate(),
	}
	require.True(t, cull.IsScenario(f.scenario))
	return f
}

// unitBox is a 1x1x1 box centered on the origin.
func unitBox() math.AABB {
	return math.NewAABB(math.NewVec3(-0.5, -0.5, -0.5), math.NewVec3(1, 1, 1))
}

func at(x, y, z float32) math.Transform3D {
	return math.NewTransformFromPosition(math.NewVec3(x, y, z))
}

// mesh places a single-surface mesh instance at position.
func (f *fixture) mesh(x, y, z float32) core.RID {
	mat := f.storage.MaterialCreate(true, false)
	base := f.storage.MeshCreate(unitBox(), mat)
	rid := f.cull.InstanceCreate2(base, f.scenario)
	f.cull.InstanceSetTransform(rid, at(x, y, z))
	return rid
}

// particles places a particle system whose bounds come from a custom AABB.
func (f *fixture) particles(x, y, z float32, bounds math.AABB) (core.RID, core.RID) {
	base := f.storage.ParticlesCreate(math.AABB{})
	rid := f.cull.InstanceCreate2(base, f.scenario)
	f.cull.InstanceSetCustomAABB(rid, &bounds)
	f.cull.InstanceSetTransform(rid, at(x, y, z))
	return rid, base
}

func (f *fixture) collision(x, y, z float32, bounds math.AABB) core.RID {
	base := f.storage.ParticlesCollisionCreate(bounds, false)
	rid := f.cull.InstanceCreate2(base, f.scenario)
	f.cull.InstanceSetTransform(rid, at(x, y, z))
	return rid
}

func (f *fixture) geometry(t testing.TB, rid core.RID) *dummy.GeometryInstance {
	t.Helper()
	g, ok := f.cull.InstanceGetGeometry(rid).(*dummy.GeometryInstance)
	require.True(t, ok, "instance %s has no geometry", rid)
	return g
}

func (f *fixture) scene() *Scenario {
	return f.cull.Scenario(f.scenario)
}

// checkAlignment verifies that every cached index in the scenario points
// back at the record that caches it.
func checkAlignment(t *testing.T, s *Scenario) {
	t.Helper()
	require.Equal(t, s.InstanceDataLen(), len(s.instanceAABBs))

	for i := 0; i < s.InstanceDataLen(); i++ {
		d := s.InstanceDataAt(i)
		inst := d.instance
		require.NotNil(t, inst)
		require.EqualValues(t, i, inst.arrayIndex)
		assert.Equal(t, inst.transformedAABB, s.InstanceAABBAt(i))
		assert.Equal(t, inst.visibilityIndex, d.VisibilityIndex)
		assert.Equal(t, parentArrayIndex(inst), d.ParentArrayIndex)
		assert.Equal(t, inst.baseType, d.BaseType())

		if d.VisibilityIndex >= 0 {
			vd := s.VisibilityAt(int(d.VisibilityIndex))
			assert.EqualValues(t, i, vd.ArrayIndex)
			assert.Same(t, inst, vd.instance)
		}
	}

	for j := 0; j < s.VisibilityLen(); j++ {
		vd := s.VisibilityAt(j)
		require.NotNil(t, vd.instance)
		assert.EqualValues(t, j, vd.instance.visibilityIndex)
		assert.Same(t, vd.instance, s.InstanceDataAt(int(vd.ArrayIndex)).instance)
	}
}

// checkDepthOrder verifies that the visibility list holds deeper entries
// first and that every entry sits in the bin of its depth.
func checkDepthOrder(t *testing.T, s *Scenario) {
	t.Helper()
	prev := -1
	for j := 0; j < s.VisibilityLen(); j++ {
		depth := s.VisibilityAt(j).instance.visibilityDependenciesDepth
		assert.Equal(t, depth, s.instanceVisibility.BinOf(j))
		if prev >= 0 {
			assert.LessOrEqual(t, depth, prev)
		}
		prev = depth
	}
}

func TestScenarioLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	s := f.scene()
	require.NotNil(t, s)
	assert.Equal(t, f.scenario, s.RID())

	a := f.mesh(0, 0, 0)
	b := f.mesh(5, 0, 0)
	c := f.collision(10, 0, 0, unitBox())
	assert.Equal(t, 3, f.cull.ScenarioInstanceCount(f.scenario))

	f.cull.Update()
	geometry, volumes := f.cull.ScenarioIndexerLeafCount(f.scenario)
	assert.Equal(t, 2, geometry)
	assert.Equal(t, 1, volumes)
	assert.Equal(t, 3, s.InstanceDataLen())
	checkAlignment(t, s)

	require.True(t, f.cull.Free(f.scenario))
	assert.False(t, f.cull.IsScenario(f.scenario))
	for _, rid := range []core.RID{a, b, c} {
		assert.True(t, f.cull.IsInstance(rid))
		assert.Equal(t, -1, f.cull.InstanceGetArrayIndex(rid))
	}

	// assigning a freed scenario is refused
	f.cull.InstanceSetScenario(a, f.scenario)
	f.cull.Update()
	assert.Equal(t, -1, f.cull.InstanceGetArrayIndex(a))
}

func TestInstancesCullAABB(t *testing.T) {
	f := newFixture(t, nil)
	near := f.mesh(0, 0, 0)
	far := f.mesh(50, 0, 0)
	vol := f.collision(1, 0, 0, unitBox())

	// the query processes pending instances itself
	got := f.cull.InstancesCullAABB(math.NewAABB(math.NewVec3(-2, -2, -2), math.NewVec3(4, 4, 4)), f.scenario)
	assert.ElementsMatch(t, []core.RID{near, vol}, got)
	assert.NotContains(t, got, far)

	assert.Empty(t, f.cull.InstancesCullAABB(math.NewAABB(math.NewVec3(20, 20, 20), math.NewVec3(1, 1, 1)), f.scenario))
	assert.Nil(t, f.cull.InstancesCullAABB(unitBox(), core.NewRID()))
}

func TestUpdateCountsWork(t *testing.T) {
	f := newFixture(t, nil)
	for i := 0; i < 4; i++ {
		f.mesh(float32(i)*3, 0, 0)
	}
	f.cull.Update()

	m := f.cull.Metrics()
	assert.Equal(t, 4, m.DirtyInstances)
	assert.Equal(t, 1, f.render.Updates())
	assert.Equal(t, 1, f.storage.DirtyResourceUpdates())

	f.cull.Update()
	assert.Equal(t, 0, f.cull.Metrics().DirtyInstances)
}
