package scene

import (
	"github.com/spaghettifunk/scenecull/engine/config"
	"github.com/spaghettifunk/scenecull/engine/containers"
	"github.com/spaghettifunk/scenecull/engine/core"
	"github.com/spaghettifunk/scenecull/engine/renderer/metadata"
)

/**
 * @brief Tracks every instance of every scenario, keeps the spatial indexes
 * current and resolves pairs and visibility ranges once per frame.
 *
 * All mutation happens on the update thread. Only VisibilityCull fans out
 * to the worker pool.
 */
type RendererSceneCull struct {
	storage     metadata.Storage
	sceneRender metadata.RendererSceneRender
	workers     metadata.WorkerPool

	instanceOwner *core.RIDOwner[Instance]
	scenarioOwner *core.RIDOwner[Scenario]

	updateList    *containers.RingQueue[*Instance]
	pairAllocator *containers.PagedAllocator[InstancePair]
	pairPass      uint64

	indexerUpdateIterations int
	threadCullThreshold     int

	counters core.CullCounters
}

// New builds a scene cull. workers may be nil, in which case the
// visibility cull always runs on the calling goroutine.
func New(cfg config.SpatialIndexerConfig, storage metadata.Storage, sceneRender metadata.RendererSceneRender, workers metadata.WorkerPool) *RendererSceneCull {
	return &RendererSceneCull{
		storage:                 storage,
		sceneRender:             sceneRender,
		workers:                 workers,
		instanceOwner:           core.NewRIDOwner[Instance](),
		scenarioOwner:           core.NewRIDOwner[Scenario](),
		updateList:              containers.NewRingQueue[*Instance](64),
		pairAllocator:           containers.NewPagedAllocator[InstancePair](containers.DefaultPageSize),
		indexerUpdateIterations: cfg.UpdateIterationsPerFrame,
		threadCullThreshold:     cfg.ThreadedCullMinimumInstances,
	}
}

// SetIndexerUpdateIterations sets how many leaves each spatial index
// reinserts per frame.
func (c *RendererSceneCull) SetIndexerUpdateIterations(iterations int) {
	c.indexerUpdateIterations = iterations
}

// SetThreadCullThreshold sets the visibility list size from which the range
// cull is spread over the worker pool.
func (c *RendererSceneCull) SetThreadCullThreshold(threshold int) {
	c.threadCullThreshold = threshold
}

// Metrics returns the counters gathered since the last Update started.
func (c *RendererSceneCull) Metrics() core.CullCounters {
	return c.counters
}

func (c *RendererSceneCull) SceneRender() metadata.RendererSceneRender {
	return c.sceneRender
}

/**
 * @brief The per-frame entry point. Rebalances every spatial index, lets
 * the render backend update, then drains the dirty instances.
 */
func (c *RendererSceneCull) Update() {
	c.counters = core.CullCounters{}

	for _, rid := range c.scenarioOwner.Owned() {
		s := c.scenarioOwner.GetOrNil(rid)
		s.indexers[indexerGeometry].OptimizeIncremental(c.indexerUpdateIterations)
		s.indexers[indexerVolumes].OptimizeIncremental(c.indexerUpdateIterations)
	}
	c.sceneRender.Update()
	c.UpdateDirtyInstances()
}

// UpdateDirtyInstances processes every queued instance, then lets the
// storages flush resources the instances touched.
func (c *RendererSceneCull) UpdateDirtyInstances() {
	for !c.updateList.IsEmpty() {
		instance, err := c.updateList.Dequeue()
		if err != nil {
			break
		}
		if !instance.inUpdateList {
			continue
		}
		c.updateDirtyInstance(instance)
	}

	// Update dirty resources after dirty instances as instance updates may affect resources.
	c.storage.Utilities.UpdateDirtyResources()
}

func (c *RendererSceneCull) queueUpdate(instance *Instance, updateAABB, updateDependencies bool) {
	if updateAABB {
		instance.updateAABB = true
	}
	if updateDependencies {
		instance.updateDependencies = true
	}
	if instance.inUpdateList {
		return
	}
	instance.inUpdateList = true
	c.updateList.Enqueue(instance)
}

// DirtyCount is the number of instances waiting for the next update.
func (c *RendererSceneCull) DirtyCount() int {
	n := 0
	for i := 0; i < c.updateList.Len(); i++ {
		if inst, ok := c.updateList.At(i); ok && inst.inUpdateList {
			n++
		}
	}
	return n
}

/**
 * @brief Releases an instance or a scenario. Handles owned by the render
 * backend are forwarded to it.
 * @return False when nobody recognised rid.
 */
func (c *RendererSceneCull) Free(rid core.RID) bool {
	if rid.IsNull() {
		return true
	}

	if c.sceneRender.Free(rid) {
		return true
	}

	if c.instanceOwner.Owns(rid) {
		c.UpdateDirtyInstances()

		instance := c.instanceOwner.GetOrNil(rid)

		for len(instance.visibilityDependencies) > 0 {
			for dep := range instance.visibilityDependencies {
				c.InstanceSetVisibilityParent(dep.self, core.NilRID)
				break
			}
		}
		if instance.visibilityParent != nil {
			c.InstanceSetVisibilityParent(rid, core.NilRID)
		}

		c.InstanceSetScenario(rid, core.NilRID)
		c.InstanceGeometrySetMaterialOverride(rid, core.NilRID)
		c.InstanceGeometrySetMaterialOverlay(rid, core.NilRID)
		c.InstanceAttachSkeleton(rid, core.NilRID)
		c.InstanceSetBase(rid, core.NilRID)

		if instance.allocatedShaderUniforms {
			c.storage.Material.GlobalShaderParametersInstanceFree(instance.self)
			instance.allocatedShaderUniforms = false
		}
		// in case something changed this
		c.UpdateDirtyInstances()

		instance.dependencyTracker.Clear()
		if err := c.instanceOwner.Free(rid); err != nil {
			core.LogError(err.Error())
		}
		return true
	}

	if c.scenarioOwner.Owns(rid) {
		c.freeScenario(rid)
		return true
	}

	return false
}
