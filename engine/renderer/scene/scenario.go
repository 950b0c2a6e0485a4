package scene

import (
	"github.com/google/uuid"

	"github.com/spaghettifunk/scenecull/engine/bvh"
	"github.com/spaghettifunk/scenecull/engine/containers"
	"github.com/spaghettifunk/scenecull/engine/core"
	"github.com/spaghettifunk/scenecull/engine/math"
)

/* SCENARIO API */

func (c *RendererSceneCull) ScenarioAllocate() core.RID {
	return c.scenarioOwner.Allocate()
}

func (c *RendererSceneCull) ScenarioInitialize(rid core.RID) {
	scenario := c.scenarioOwner.Initialize(rid)
	if scenario == nil {
		return
	}
	scenario.self = rid
	scenario.ID = uuid.New()
	scenario.indexers[indexerGeometry] = bvh.New[*Instance]()
	scenario.indexers[indexerVolumes] = bvh.New[*Instance]()
	scenario.instances = make(map[*Instance]struct{})
	scenario.instanceVisibility = containers.NewBinSortedArray(func(vd *InstanceVisibilityData, index int) {
		vd.instance.visibilityIndex = int32(index)
		// an entry being removed may belong to an instance that already left the arrays
		if ai := vd.instance.arrayIndex; ai >= 0 && vd.instance.scenario == scenario {
			scenario.instanceData[ai].VisibilityIndex = int32(index)
		}
	})
	core.LogDebug("scenario %s initialized (%s)", rid, scenario.ID)
}

// ScenarioCreate allocates and initializes a scenario in one call.
func (c *RendererSceneCull) ScenarioCreate() core.RID {
	rid := c.ScenarioAllocate()
	c.ScenarioInitialize(rid)
	return rid
}

// Scenario returns the scenario behind rid, or nil.
func (c *RendererSceneCull) Scenario(rid core.RID) *Scenario {
	return c.scenarioOwner.GetOrNil(rid)
}

func (c *RendererSceneCull) IsScenario(rid core.RID) bool {
	return c.scenarioOwner.Owns(rid)
}

// ScenarioInstanceCount returns how many instances are assigned to the
// scenario, paired or not.
func (c *RendererSceneCull) ScenarioInstanceCount(rid core.RID) int {
	scenario := c.scenarioOwner.GetOrNil(rid)
	if scenario == nil {
		core.LogError("ScenarioInstanceCount: invalid scenario %s", rid)
		return 0
	}
	return len(scenario.instances)
}

// ScenarioIndexerLeafCount returns the number of leaves in the geometry and
// volume indexes.
func (c *RendererSceneCull) ScenarioIndexerLeafCount(rid core.RID) (geometry int, volumes int) {
	scenario := c.scenarioOwner.GetOrNil(rid)
	if scenario == nil {
		core.LogError("ScenarioIndexerLeafCount: invalid scenario %s", rid)
		return 0, 0
	}
	return scenario.indexers[indexerGeometry].LeafCount(), scenario.indexers[indexerVolumes].LeafCount()
}

/**
 * @brief Returns every instance in the scenario whose world bounds
 * overlap aabb. Pending dirty instances are processed first.
 */
func (c *RendererSceneCull) InstancesCullAABB(aabb math.AABB, scenarioRID core.RID) []core.RID {
	scenario := c.scenarioOwner.GetOrNil(scenarioRID)
	if scenario == nil {
		core.LogError("InstancesCullAABB: invalid scenario %s", scenarioRID)
		return nil
	}
	// check dirty instances before culling
	c.UpdateDirtyInstances()

	var out []core.RID
	collect := func(instance *Instance) bool {
		if instance.transformedAABB.Intersects(aabb) {
			out = append(out, instance.self)
		}
		return false
	}
	scenario.indexers[indexerGeometry].AABBQuery(aabb, collect)
	scenario.indexers[indexerVolumes].AABBQuery(aabb, collect)
	return out
}

func (c *RendererSceneCull) freeScenario(rid core.RID) {
	scenario := c.scenarioOwner.GetOrNil(rid)
	for len(scenario.instances) > 0 {
		for instance := range scenario.instances {
			c.InstanceSetScenario(instance.self, core.NilRID)
			break
		}
	}
	scenario.indexers[indexerGeometry].Clear()
	scenario.indexers[indexerVolumes].Clear()
	scenario.instanceData = nil
	scenario.instanceAABBs = nil
	if err := c.scenarioOwner.Free(rid); err != nil {
		core.LogError(err.Error())
	}
}
