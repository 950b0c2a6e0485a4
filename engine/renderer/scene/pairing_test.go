package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/scenecull/engine/core"
	"github.com/spaghettifunk/scenecull/engine/math"
)

func box(size float32) math.AABB {
	h := size / 2
	return math.NewAABB(math.NewVec3(-h, -h, -h), math.NewVec3(size, size, size))
}

func TestParticlesPairWithCollision(t *testing.T) {
	f := newFixture(t, nil)
	a := f.mesh(0, 0, 0)
	b, bBase := f.particles(0, 0, 0, box(2))
	c := f.collision(0, 0, 0, box(2))
	f.cull.Update()

	assert.Equal(t, []core.RID{c}, f.cull.InstancePairs(b))
	assert.Equal(t, []core.RID{b}, f.cull.InstancePairs(c))
	assert.Empty(t, f.cull.InstancePairs(a))
	assert.Equal(t, 1, f.cull.PairCount())
	assert.Equal(t, 1, f.storage.ParticlesCollisionCount(bBase))
	assert.Equal(t, 1, f.cull.Metrics().PairsCreated)

	f.cull.InstanceSetTransform(c, at(100, 100, 100))
	f.cull.Update()

	assert.Empty(t, f.cull.InstancePairs(b))
	assert.Empty(t, f.cull.InstancePairs(c))
	assert.Zero(t, f.cull.PairCount())
	assert.Equal(t, 0, f.storage.ParticlesCollisionCount(bBase))
	assert.Equal(t, 1, f.cull.Metrics().PairsDestroyed)
}

func TestPairingIsSymmetric(t *testing.T) {
	f := newFixture(t, nil)
	p, pBase := f.particles(0, 0, 0, box(2))
	c := f.collision(10, 0, 0, box(2))
	f.cull.Update()
	require.Zero(t, f.cull.PairCount())

	check := func(paired bool) {
		t.Helper()
		if paired {
			assert.Equal(t, []core.RID{c}, f.cull.InstancePairs(p))
			assert.Equal(t, []core.RID{p}, f.cull.InstancePairs(c))
			assert.Equal(t, 1, f.storage.ParticlesCollisionCount(pBase))
		} else {
			assert.Empty(t, f.cull.InstancePairs(p))
			assert.Empty(t, f.cull.InstancePairs(c))
			assert.Zero(t, f.storage.ParticlesCollisionCount(pBase))
		}
	}

	// the volume moves onto the particles
	f.cull.InstanceSetTransform(c, at(0.5, 0, 0))
	f.cull.Update()
	check(true)

	// moving while still overlapping keeps the single pair
	f.cull.InstanceSetTransform(p, at(0.25, 0, 0))
	f.cull.Update()
	check(true)
	assert.Zero(t, f.cull.Metrics().PairsCreated)
	assert.Zero(t, f.cull.Metrics().PairsDestroyed)

	// the particles move away
	f.cull.InstanceSetTransform(p, at(-20, 0, 0))
	f.cull.Update()
	check(false)

	// and the particles move back onto the volume
	f.cull.InstanceSetTransform(p, at(0, 0, 0))
	f.cull.Update()
	check(true)

	f.cull.InstanceSetVisible(c, false)
	check(false)
	f.cull.InstanceSetVisible(c, true)
	f.cull.Update()
	check(true)
}

func TestPairingNeedsPreciseOverlap(t *testing.T) {
	f := newFixture(t, nil)
	p, _ := f.particles(0, 0, 0, box(2))
	// the boxes share a face only
	c := f.collision(2, 0, 0, box(2))
	f.cull.Update()

	assert.Empty(t, f.cull.InstancePairs(p))
	assert.Empty(t, f.cull.InstancePairs(c))
}

func TestZeroLayerMaskNeverPairs(t *testing.T) {
	f := newFixture(t, nil)
	p, _ := f.particles(0, 0, 0, box(2))
	c := f.collision(20, 0, 0, box(2))
	f.cull.InstanceSetLayerMask(c, 0)
	f.cull.Update()

	f.cull.InstanceSetTransform(c, at(0, 0, 0))
	f.cull.Update()
	assert.Empty(t, f.cull.InstancePairs(c))

	f.cull.InstanceSetTransform(p, at(0.5, 0, 0))
	f.cull.Update()
	assert.Empty(t, f.cull.InstancePairs(p))
}

func TestLayerMaskChangeUpdatesPairs(t *testing.T) {
	f := newFixture(t, nil)
	p, pBase := f.particles(0, 0, 0, box(2))
	c := f.collision(0, 0, 0, box(2))
	f.cull.Update()
	require.Equal(t, []core.RID{p}, f.cull.InstancePairs(c))

	// clearing the mask drops the pair without either side moving
	f.cull.InstanceSetLayerMask(c, 0)
	assert.Empty(t, f.cull.InstancePairs(c))
	assert.Empty(t, f.cull.InstancePairs(p))
	assert.Zero(t, f.cull.PairCount())
	assert.Zero(t, f.storage.ParticlesCollisionCount(pBase))
	f.cull.Update()
	assert.Zero(t, f.cull.PairCount())

	// a non-zero mask to another non-zero mask leaves the pair alone
	f.cull.InstanceSetLayerMask(c, 1)
	assert.Equal(t, []core.RID{c}, f.cull.InstancePairs(p))
	f.cull.InstanceSetLayerMask(c, 6)
	assert.Equal(t, []core.RID{c}, f.cull.InstancePairs(p))
	assert.Equal(t, 1, f.cull.PairCount())
	assert.Equal(t, 1, f.storage.ParticlesCollisionCount(pBase))

	// and the particles side works the same way
	f.cull.InstanceSetLayerMask(p, 0)
	assert.Zero(t, f.cull.PairCount())
}

func TestCollisionFollowsVisibility(t *testing.T) {
	f := newFixture(t, nil)
	c := f.collision(0, 0, 0, box(2))
	f.cull.Update()

	ci := f.cull.instanceOwner.GetOrNil(c).collisionInstance
	require.True(t, ci.IsValid())
	assert.True(t, f.storage.ParticlesCollisionInstanceIsActive(ci))

	f.cull.InstanceSetVisible(c, false)
	assert.False(t, f.storage.ParticlesCollisionInstanceIsActive(ci))
	f.cull.InstanceSetVisible(c, true)
	assert.True(t, f.storage.ParticlesCollisionInstanceIsActive(ci))
}

func TestParticlesReceiveEmissionTransform(t *testing.T) {
	f := newFixture(t, nil)
	_, base := f.particles(3, 4, 5, box(1))
	f.cull.Update()
	assert.Equal(t, at(3, 4, 5), f.storage.ParticlesGetEmissionTransform(base))
}
