package metadata

import (
	"github.com/spaghettifunk/scenecull/engine/core"
	"github.com/spaghettifunk/scenecull/engine/math"
)

// MeshStorage owns meshes, multimeshes, mesh instances and skeletons.
type MeshStorage interface {
	MeshGetAABB(mesh core.RID, skeleton core.RID) math.AABB
	MeshGetSurfaceCount(mesh core.RID) int
	MeshSurfaceGetMaterial(mesh core.RID, surface int) core.RID
	MeshNeedsInstance(mesh core.RID, hasSkeleton bool) bool
	MeshInstanceCreate(mesh core.RID) core.RID
	MeshInstanceFree(meshInstance core.RID)
	MeshInstanceSetSkeleton(meshInstance core.RID, skeleton core.RID)

	MultimeshGetAABB(multimesh core.RID) math.AABB
	MultimeshGetMesh(multimesh core.RID) core.RID

	SkeletonUpdateDependency(skeleton core.RID, tracker *DependencyTracker)
}

// ParticlesStorage owns particle systems and particle collision shapes.
type ParticlesStorage interface {
	ParticlesGetAABB(particles core.RID) math.AABB
	ParticlesGetProcessMaterial(particles core.RID) core.RID
	ParticlesGetDrawPasses(particles core.RID) int
	ParticlesGetDrawPassMesh(particles core.RID, pass int) core.RID
	ParticlesSetEmissionTransform(particles core.RID, transform math.Transform3D)
	ParticlesAddCollision(particles core.RID, collisionInstance core.RID)
	ParticlesRemoveCollision(particles core.RID, collisionInstance core.RID)

	ParticlesCollisionGetAABB(collision core.RID) math.AABB
	ParticlesCollisionIsHeightfield(collision core.RID) bool
	ParticlesCollisionInstanceCreate(collision core.RID) core.RID
	ParticlesCollisionInstanceFree(collisionInstance core.RID)
	ParticlesCollisionInstanceSetTransform(collisionInstance core.RID, transform math.Transform3D)
	ParticlesCollisionInstanceSetActive(collisionInstance core.RID, active bool)
}

// MaterialStorage answers material queries and owns the global shader
// parameter buffer that backs per-instance uniforms.
type MaterialStorage interface {
	MaterialCastsShadows(material core.RID) bool
	MaterialIsAnimated(material core.RID) bool
	MaterialGetInstanceShaderParameters(material core.RID) []InstanceShaderParam
	MaterialUpdateDependency(material core.RID, tracker *DependencyTracker)

	GlobalShaderParametersInstanceAllocate(instance core.RID) int32
	GlobalShaderParametersInstanceFree(instance core.RID)
	GlobalShaderParametersInstanceUpdate(instance core.RID, index int32, value interface{}, flagsCount int)
}

// Utilities covers queries that span storages.
type Utilities interface {
	GetBaseType(base core.RID) InstanceType
	BaseUpdateDependency(base core.RID, tracker *DependencyTracker)
	UpdateDirtyResources()
}

// Storage bundles every storage the scene cull consumes.
type Storage struct {
	Mesh      MeshStorage
	Particles ParticlesStorage
	Material  MaterialStorage
	Utilities Utilities
}
