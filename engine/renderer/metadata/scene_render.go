package metadata

import (
	"github.com/spaghettifunk/scenecull/engine/core"
	"github.com/spaghettifunk/scenecull/engine/math"
)

/**
 * @brief The renderer's opaque per-instance draw state. The scene cull
 * forwards every geometry-relevant change through it.
 */
type GeometryInstance interface {
	SetTransform(transform math.Transform3D, aabb math.AABB, transformedAABB math.AABB)
	SetSkeleton(skeleton core.RID)
	SetMaterialOverride(material core.RID)
	SetMaterialOverlay(material core.RID)
	SetSurfaceMaterials(materials []core.RID)
	SetMeshInstance(meshInstance core.RID)
	SetLayerMask(mask uint32)
	SetPivotData(sortingOffset float32, useAABBCenter bool)
	SetFadeRange(beginEnabled bool, beginMin, beginMax float32, endEnabled bool, endMin, endMax float32)
	SetParentFadeAlpha(alpha float32)
	SetLODBias(bias float32)
	SetTransparency(transparency float32)
	SetUseBakedLight(enable bool)
	SetUseDynamicGI(enable bool)
	SetCastDoubleSidedShadows(enable bool)
	SetInstanceShaderUniformsOffset(offset int32)
}

/** @brief Opaque render target storage created per viewport. */
type RenderSceneBuffers interface {
	Configure(width, height uint32)
}

// RendererSceneRender is the backend the scene cull drives.
type RendererSceneRender interface {
	GeometryInstanceCreate(base core.RID) GeometryInstance
	GeometryInstanceFree(instance GeometryInstance)

	RenderBuffersCreate() RenderSceneBuffers
	Update()
	Free(rid core.RID) bool
	SetTime(time float64, step float64)
	SetDebugDrawMode(mode ViewportDebugDraw)
}

// WorkerPool runs the parallel parts of the cull.
type WorkerPool interface {
	ThreadCount() int
	// ParallelFor calls fn(i) for every i in [0, count) across the pool and
	// returns once all calls have finished.
	ParallelFor(count int, fn func(i int))
}
