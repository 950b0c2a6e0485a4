package scene

import (
	"github.com/spaghettifunk/scenecull/engine/containers"
	"github.com/spaghettifunk/scenecull/engine/core"
	"github.com/spaghettifunk/scenecull/engine/renderer/metadata"
)

// pairRule says which partner types an instance type pairs with and in
// which index those partners live.
type pairRule struct {
	mask    uint32
	indexer indexerType
}

var pairRules = [metadata.INSTANCE_MAX][]pairRule{
	metadata.INSTANCE_PARTICLES: {
		{mask: metadata.INSTANCE_PARTICLES_COLLISION.Mask(), indexer: indexerVolumes},
	},
	metadata.INSTANCE_PARTICLES_COLLISION: {
		{mask: metadata.INSTANCE_PARTICLES.Mask(), indexer: indexerGeometry},
	},
}

// instancePair is called when a and b start overlapping.
func (c *RendererSceneCull) instancePair(a, b *Instance) {
	// lesser type always first
	if a.baseType > b.baseType {
		a, b = b, a
	}
	if a.baseType == metadata.INSTANCE_PARTICLES && b.baseType == metadata.INSTANCE_PARTICLES_COLLISION {
		c.storage.Particles.ParticlesAddCollision(a.base, b.collisionInstance)
	}
	c.counters.PairsCreated++
}

// instanceUnpair is called when a and b stop overlapping.
func (c *RendererSceneCull) instanceUnpair(a, b *Instance) {
	if a.baseType > b.baseType {
		a, b = b, a
	}
	if a.baseType == metadata.INSTANCE_PARTICLES && b.baseType == metadata.INSTANCE_PARTICLES_COLLISION {
		c.storage.Particles.ParticlesRemoveCollision(a.base, b.collisionInstance)
	}
	c.counters.PairsDestroyed++
}

func (c *RendererSceneCull) pairOther(h containers.Handle, instance *Instance) *Instance {
	pair := c.pairAllocator.Get(h)
	if pair.a == instance {
		return pair.b
	}
	return pair.a
}

// freePair releases a pair record and unlinks it from both instances.
func (c *RendererSceneCull) freePair(h containers.Handle) {
	pair := c.pairAllocator.Get(h)
	if pair == nil {
		return
	}
	pair.a.pairs = removeHandle(pair.a.pairs, h)
	pair.b.pairs = removeHandle(pair.b.pairs, h)
	c.pairAllocator.Free(h)
}

func removeHandle(handles []containers.Handle, h containers.Handle) []containers.Handle {
	for i, v := range handles {
		if v == h {
			last := len(handles) - 1
			handles[i] = handles[last]
			return handles[:last]
		}
	}
	return handles
}

/**
 * @brief Recomputes the pairs of instance after it was inserted or moved.
 *
 * Every partner found in the indexes gets its pairCheck stamped with the
 * current pass. Existing pairs whose partner was not stamped are torn
 * down, kept pairs reset the stamp so only new partners are announced.
 */
func (c *RendererSceneCull) pairInstance(instance *Instance) {
	c.pairPass++
	pass := c.pairPass

	var found []containers.Handle
	// a zero layer mask pairs with nothing, in either direction
	if instance.base.IsValid() && instance.layerMask != 0 {
		for _, rule := range pairRules[instance.baseType] {
			c.queryPartners(instance, rule, pass, &found)
		}
	}

	// process the existing pairs
	for len(instance.pairs) > 0 {
		h := instance.pairs[len(instance.pairs)-1]
		other := c.pairOther(h, instance)
		if other.pairCheck != pass {
			c.instanceUnpair(instance, other)
		} else {
			// kept: clear the stamp so it is not announced as new
			other.pairCheck = 0
		}
		c.freePair(h)
	}

	// now link the new pairs
	for _, h := range found {
		pair := c.pairAllocator.Get(h)
		if pair.b.pairCheck == pass {
			c.instancePair(instance, pair.b)
		}
		pair.a.pairs = append(pair.a.pairs, h)
		pair.b.pairs = append(pair.b.pairs, h)
	}
}

func (c *RendererSceneCull) queryPartners(instance *Instance, rule pairRule, pass uint64, found *[]containers.Handle) {
	index := instance.scenario.indexers[rule.indexer]
	index.AABBQueryMask(instance.transformedAABB, rule.mask, func(other *Instance) bool {
		// the index is coarse, so test the real bounds
		if other == instance || !other.base.IsValid() {
			return false
		}
		if other.layerMask == 0 {
			return false
		}
		if !instance.transformedAABB.Intersects(other.transformedAABB) {
			return false
		}
		other.pairCheck = pass
		h, pair := c.pairAllocator.Alloc()
		pair.a = instance
		pair.b = other
		*found = append(*found, h)
		return false
	})
}

// unpairAll tears down every pair of instance.
func (c *RendererSceneCull) unpairAll(instance *Instance) {
	for len(instance.pairs) > 0 {
		h := instance.pairs[len(instance.pairs)-1]
		other := c.pairOther(h, instance)
		c.instanceUnpair(instance, other)
		c.freePair(h)
	}
}

// InstancePairs returns the instances currently paired with rid.
func (c *RendererSceneCull) InstancePairs(rid core.RID) []core.RID {
	instance := c.instanceOwner.GetOrNil(rid)
	if instance == nil {
		core.LogError("InstancePairs: invalid instance %s", rid)
		return nil
	}
	out := make([]core.RID, 0, len(instance.pairs))
	for _, h := range instance.pairs {
		out = append(out, c.pairOther(h, instance).self)
	}
	return out
}

// PairCount is the number of live pair records across all scenarios.
func (c *RendererSceneCull) PairCount() int {
	return c.pairAllocator.Count()
}
