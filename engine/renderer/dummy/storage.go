package dummy

import (
	"github.com/spaghettifunk/scenecull/engine/core"
	"github.com/spaghettifunk/scenecull/engine/math"
	"github.com/spaghettifunk/scenecull/engine/renderer/metadata"
)

// instanceUniformSlots is how many global parameter slots one instance
// reserves.
const instanceUniformSlots int32 = 16

type mesh struct {
	aabb          math.AABB
	materials     []core.RID
	needsInstance bool
}

type meshInstance struct {
	mesh     core.RID
	skeleton core.RID
}

type multimesh struct {
	aabb math.AABB
	mesh core.RID
}

type particles struct {
	aabb               math.AABB
	processMaterial    core.RID
	drawPasses         []core.RID
	emissionTransform  math.Transform3D
	collisionInstances map[core.RID]struct{}
}

type particlesCollision struct {
	aabb        math.AABB
	heightfield bool
}

type collisionInstance struct {
	collision core.RID
	transform math.Transform3D
	active    bool
}

type material struct {
	castsShadows bool
	animated     bool
	params       []metadata.InstanceShaderParam
}

type globalSlot struct {
	offset int32
	values map[int32]interface{}
}

/**
 * @brief An in-memory stand-in for the GPU storages. It keeps just enough
 * state to answer the scene cull's queries and records what the cull
 * asked of it so it can be inspected afterwards.
 *
 * Every resource keeps the set of trackers that declared a dependency on
 * it; changes and deletions are broadcast to them.
 */
type Storage struct {
	meshes             map[core.RID]*mesh
	meshInstances      map[core.RID]*meshInstance
	multimeshes        map[core.RID]*multimesh
	particles          map[core.RID]*particles
	collisions         map[core.RID]*particlesCollision
	collisionInstances map[core.RID]*collisionInstance
	materials          map[core.RID]*material
	skeletons          map[core.RID]struct{}

	dependents map[core.RID]map[*metadata.DependencyTracker]struct{}

	globalSlots map[core.RID]*globalSlot
	freeOffsets []int32
	nextOffset  int32

	dirtyResourceUpdates int
}

func NewStorage() *Storage {
	return &Storage{
		meshes:             make(map[core.RID]*mesh),
		meshInstances:      make(map[core.RID]*meshInstance),
		multimeshes:        make(map[core.RID]*multimesh),
		particles:          make(map[core.RID]*particles),
		collisions:         make(map[core.RID]*particlesCollision),
		collisionInstances: make(map[core.RID]*collisionInstance),
		materials:          make(map[core.RID]*material),
		skeletons:          make(map[core.RID]struct{}),
		dependents:         make(map[core.RID]map[*metadata.DependencyTracker]struct{}),
		globalSlots:        make(map[core.RID]*globalSlot),
	}
}

// Bundle exposes the storage through the interfaces the scene cull takes.
func (s *Storage) Bundle() metadata.Storage {
	return metadata.Storage{
		Mesh:      s,
		Particles: s,
		Material:  s,
		Utilities: s,
	}
}

func (s *Storage) track(rid core.RID, tracker *metadata.DependencyTracker) {
	tracker.Track(rid)
	set, ok := s.dependents[rid]
	if !ok {
		set = make(map[*metadata.DependencyTracker]struct{})
		s.dependents[rid] = set
	}
	set[tracker] = struct{}{}
}

// NotifyChanged tells every tracker depending on rid that it changed.
func (s *Storage) NotifyChanged(rid core.RID, what metadata.DependencyChangedNotification) {
	for tracker := range s.dependents[rid] {
		if !tracker.DependsOn(rid) {
			// dropped on a later update pass
			delete(s.dependents[rid], tracker)
			continue
		}
		tracker.Changed(what, rid)
	}
}

func (s *Storage) notifyDeleted(rid core.RID) {
	set := s.dependents[rid]
	delete(s.dependents, rid)
	for tracker := range set {
		tracker.Deleted(rid)
	}
}

// Free releases any resource created by this storage.
func (s *Storage) Free(rid core.RID) bool {
	switch {
	case s.hasMesh(rid):
		delete(s.meshes, rid)
	case s.multimeshes[rid] != nil:
		delete(s.multimeshes, rid)
	case s.particles[rid] != nil:
		delete(s.particles, rid)
	case s.collisions[rid] != nil:
		delete(s.collisions, rid)
	case s.materials[rid] != nil:
		delete(s.materials, rid)
	case s.isSkeleton(rid):
		delete(s.skeletons, rid)
	default:
		return false
	}
	s.notifyDeleted(rid)
	return true
}

func (s *Storage) hasMesh(rid core.RID) bool {
	_, ok := s.meshes[rid]
	return ok
}

func (s *Storage) isSkeleton(rid core.RID) bool {
	_, ok := s.skeletons[rid]
	return ok
}

/* MESH API */

// MeshCreate creates a mesh with one surface per material given.
func (s *Storage) MeshCreate(aabb math.AABB, surfaceMaterials ...core.RID) core.RID {
	rid := core.NewRID()
	s.meshes[rid] = &mesh{aabb: aabb, materials: append([]core.RID(nil), surfaceMaterials...)}
	return rid
}

func (s *Storage) MeshSetAABB(rid core.RID, aabb math.AABB) {
	m, ok := s.meshes[rid]
	if !ok {
		core.LogError("MeshSetAABB: invalid mesh %s", rid)
		return
	}
	m.aabb = aabb
	s.NotifyChanged(rid, metadata.DEPENDENCY_CHANGED_AABB)
}

func (s *Storage) MeshSurfaceSetMaterial(rid core.RID, surface int, mat core.RID) {
	m, ok := s.meshes[rid]
	if !ok || surface < 0 || surface >= len(m.materials) {
		core.LogError("MeshSurfaceSetMaterial: invalid mesh %s or surface %d", rid, surface)
		return
	}
	m.materials[surface] = mat
	s.NotifyChanged(rid, metadata.DEPENDENCY_CHANGED_MATERIAL)
}

// MeshAddSurface appends a surface, which changes the mesh as a whole.
func (s *Storage) MeshAddSurface(rid core.RID, mat core.RID) {
	m, ok := s.meshes[rid]
	if !ok {
		core.LogError("MeshAddSurface: invalid mesh %s", rid)
		return
	}
	m.materials = append(m.materials, mat)
	s.NotifyChanged(rid, metadata.DEPENDENCY_CHANGED_MESH)
}

// MeshSetNeedsInstance marks the mesh as requiring per-instance data, like
// a mesh with blend shapes.
func (s *Storage) MeshSetNeedsInstance(rid core.RID, needs bool) {
	if m, ok := s.meshes[rid]; ok {
		m.needsInstance = needs
		s.NotifyChanged(rid, metadata.DEPENDENCY_CHANGED_MESH)
	}
}

func (s *Storage) MeshGetAABB(rid core.RID, skeleton core.RID) math.AABB {
	if m, ok := s.meshes[rid]; ok {
		return m.aabb
	}
	return math.AABB{}
}

func (s *Storage) MeshGetSurfaceCount(rid core.RID) int {
	if m, ok := s.meshes[rid]; ok {
		return len(m.materials)
	}
	return 0
}

func (s *Storage) MeshSurfaceGetMaterial(rid core.RID, surface int) core.RID {
	m, ok := s.meshes[rid]
	if !ok || surface < 0 || surface >= len(m.materials) {
		return core.NilRID
	}
	return m.materials[surface]
}

func (s *Storage) MeshNeedsInstance(rid core.RID, hasSkeleton bool) bool {
	m, ok := s.meshes[rid]
	if !ok {
		return false
	}
	return hasSkeleton || m.needsInstance
}

func (s *Storage) MeshInstanceCreate(rid core.RID) core.RID {
	mi := core.NewRID()
	s.meshInstances[mi] = &meshInstance{mesh: rid}
	return mi
}

func (s *Storage) MeshInstanceFree(rid core.RID) {
	delete(s.meshInstances, rid)
}

func (s *Storage) MeshInstanceSetSkeleton(rid core.RID, skeleton core.RID) {
	if mi, ok := s.meshInstances[rid]; ok {
		mi.skeleton = skeleton
	}
}

// MeshInstanceCount is the number of live mesh instances.
func (s *Storage) MeshInstanceCount() int {
	return len(s.meshInstances)
}

func (s *Storage) MultimeshCreate(mesh core.RID, aabb math.AABB) core.RID {
	rid := core.NewRID()
	s.multimeshes[rid] = &multimesh{aabb: aabb, mesh: mesh}
	return rid
}

func (s *Storage) MultimeshGetAABB(rid core.RID) math.AABB {
	if mm, ok := s.multimeshes[rid]; ok {
		return mm.aabb
	}
	return math.AABB{}
}

func (s *Storage) MultimeshGetMesh(rid core.RID) core.RID {
	if mm, ok := s.multimeshes[rid]; ok {
		return mm.mesh
	}
	return core.NilRID
}

func (s *Storage) SkeletonCreate() core.RID {
	rid := core.NewRID()
	s.skeletons[rid] = struct{}{}
	return rid
}

// SkeletonSetBones simulates a pose change.
func (s *Storage) SkeletonSetBones(rid core.RID) {
	s.NotifyChanged(rid, metadata.DEPENDENCY_CHANGED_SKELETON_BONES)
}

func (s *Storage) SkeletonUpdateDependency(rid core.RID, tracker *metadata.DependencyTracker) {
	if !s.isSkeleton(rid) {
		return
	}
	s.track(rid, tracker)
}

/* PARTICLES API */

func (s *Storage) ParticlesCreate(aabb math.AABB) core.RID {
	rid := core.NewRID()
	s.particles[rid] = &particles{aabb: aabb, collisionInstances: make(map[core.RID]struct{})}
	return rid
}

func (s *Storage) ParticlesSetAABB(rid core.RID, aabb math.AABB) {
	if p, ok := s.particles[rid]; ok {
		p.aabb = aabb
		s.NotifyChanged(rid, metadata.DEPENDENCY_CHANGED_AABB)
	}
}

func (s *Storage) ParticlesSetProcessMaterial(rid core.RID, mat core.RID) {
	if p, ok := s.particles[rid]; ok {
		p.processMaterial = mat
		s.NotifyChanged(rid, metadata.DEPENDENCY_CHANGED_MATERIAL)
	}
}

func (s *Storage) ParticlesSetDrawPassMesh(rid core.RID, pass int, mesh core.RID) {
	p, ok := s.particles[rid]
	if !ok || pass < 0 {
		return
	}
	for len(p.drawPasses) <= pass {
		p.drawPasses = append(p.drawPasses, core.NilRID)
	}
	p.drawPasses[pass] = mesh
	s.NotifyChanged(rid, metadata.DEPENDENCY_CHANGED_PARTICLES)
}

func (s *Storage) ParticlesGetAABB(rid core.RID) math.AABB {
	if p, ok := s.particles[rid]; ok {
		return p.aabb
	}
	return math.AABB{}
}

func (s *Storage) ParticlesGetProcessMaterial(rid core.RID) core.RID {
	if p, ok := s.particles[rid]; ok {
		return p.processMaterial
	}
	return core.NilRID
}

func (s *Storage) ParticlesGetDrawPasses(rid core.RID) int {
	if p, ok := s.particles[rid]; ok {
		return len(p.drawPasses)
	}
	return 0
}

func (s *Storage) ParticlesGetDrawPassMesh(rid core.RID, pass int) core.RID {
	p, ok := s.particles[rid]
	if !ok || pass < 0 || pass >= len(p.drawPasses) {
		return core.NilRID
	}
	return p.drawPasses[pass]
}

func (s *Storage) ParticlesSetEmissionTransform(rid core.RID, transform math.Transform3D) {
	if p, ok := s.particles[rid]; ok {
		p.emissionTransform = transform
	}
}

// ParticlesGetEmissionTransform returns the last emission transform set by
// the scene cull.
func (s *Storage) ParticlesGetEmissionTransform(rid core.RID) math.Transform3D {
	if p, ok := s.particles[rid]; ok {
		return p.emissionTransform
	}
	return math.NewTransformIdentity()
}

func (s *Storage) ParticlesAddCollision(rid core.RID, collisionInstance core.RID) {
	if p, ok := s.particles[rid]; ok {
		p.collisionInstances[collisionInstance] = struct{}{}
	}
}

func (s *Storage) ParticlesRemoveCollision(rid core.RID, collisionInstance core.RID) {
	if p, ok := s.particles[rid]; ok {
		delete(p.collisionInstances, collisionInstance)
	}
}

// ParticlesHasCollision reports whether the collision instance currently
// affects the particles.
func (s *Storage) ParticlesHasCollision(rid core.RID, collisionInstance core.RID) bool {
	p, ok := s.particles[rid]
	if !ok {
		return false
	}
	_, ok = p.collisionInstances[collisionInstance]
	return ok
}

// ParticlesCollisionCount is the number of collision instances affecting
// the particles.
func (s *Storage) ParticlesCollisionCount(rid core.RID) int {
	if p, ok := s.particles[rid]; ok {
		return len(p.collisionInstances)
	}
	return 0
}

func (s *Storage) ParticlesCollisionCreate(aabb math.AABB, heightfield bool) core.RID {
	rid := core.NewRID()
	s.collisions[rid] = &particlesCollision{aabb: aabb, heightfield: heightfield}
	return rid
}

func (s *Storage) ParticlesCollisionSetAABB(rid core.RID, aabb math.AABB) {
	if pc, ok := s.collisions[rid]; ok {
		pc.aabb = aabb
		s.NotifyChanged(rid, metadata.DEPENDENCY_CHANGED_AABB)
	}
}

func (s *Storage) ParticlesCollisionGetAABB(rid core.RID) math.AABB {
	if pc, ok := s.collisions[rid]; ok {
		return pc.aabb
	}
	return math.AABB{}
}

func (s *Storage) ParticlesCollisionIsHeightfield(rid core.RID) bool {
	if pc, ok := s.collisions[rid]; ok {
		return pc.heightfield
	}
	return false
}

func (s *Storage) ParticlesCollisionInstanceCreate(rid core.RID) core.RID {
	ci := core.NewRID()
	s.collisionInstances[ci] = &collisionInstance{collision: rid, transform: math.NewTransformIdentity()}
	return ci
}

func (s *Storage) ParticlesCollisionInstanceFree(rid core.RID) {
	delete(s.collisionInstances, rid)
}

func (s *Storage) ParticlesCollisionInstanceSetTransform(rid core.RID, transform math.Transform3D) {
	if ci, ok := s.collisionInstances[rid]; ok {
		ci.transform = transform
	}
}

func (s *Storage) ParticlesCollisionInstanceSetActive(rid core.RID, active bool) {
	if ci, ok := s.collisionInstances[rid]; ok {
		ci.active = active
	}
}

// ParticlesCollisionInstanceIsActive reports the last active state set by
// the scene cull.
func (s *Storage) ParticlesCollisionInstanceIsActive(rid core.RID) bool {
	ci, ok := s.collisionInstances[rid]
	return ok && ci.active
}

/* MATERIAL API */

func (s *Storage) MaterialCreate(castsShadows, animated bool, params ...metadata.InstanceShaderParam) core.RID {
	rid := core.NewRID()
	s.materials[rid] = &material{castsShadows: castsShadows, animated: animated, params: params}
	return rid
}

// MaterialSetInstanceShaderParameters replaces the uniforms the material
// exports per instance, as a shader recompile would.
func (s *Storage) MaterialSetInstanceShaderParameters(rid core.RID, params ...metadata.InstanceShaderParam) {
	if m, ok := s.materials[rid]; ok {
		m.params = params
		s.NotifyChanged(rid, metadata.DEPENDENCY_CHANGED_MATERIAL)
	}
}

func (s *Storage) MaterialSetCastsShadows(rid core.RID, casts bool) {
	if m, ok := s.materials[rid]; ok {
		m.castsShadows = casts
		s.NotifyChanged(rid, metadata.DEPENDENCY_CHANGED_MATERIAL)
	}
}

func (s *Storage) MaterialCastsShadows(rid core.RID) bool {
	if m, ok := s.materials[rid]; ok {
		return m.castsShadows
	}
	return true
}

func (s *Storage) MaterialIsAnimated(rid core.RID) bool {
	if m, ok := s.materials[rid]; ok {
		return m.animated
	}
	return false
}

func (s *Storage) MaterialGetInstanceShaderParameters(rid core.RID) []metadata.InstanceShaderParam {
	if m, ok := s.materials[rid]; ok {
		return m.params
	}
	return nil
}

func (s *Storage) MaterialUpdateDependency(rid core.RID, tracker *metadata.DependencyTracker) {
	if _, ok := s.materials[rid]; !ok {
		return
	}
	s.track(rid, tracker)
}

func (s *Storage) GlobalShaderParametersInstanceAllocate(instance core.RID) int32 {
	if slot, ok := s.globalSlots[instance]; ok {
		return slot.offset
	}
	var offset int32
	if n := len(s.freeOffsets); n > 0 {
		offset = s.freeOffsets[n-1]
		s.freeOffsets = s.freeOffsets[:n-1]
	} else {
		offset = s.nextOffset
		s.nextOffset += instanceUniformSlots
	}
	s.globalSlots[instance] = &globalSlot{offset: offset, values: make(map[int32]interface{})}
	return offset
}

func (s *Storage) GlobalShaderParametersInstanceFree(instance core.RID) {
	slot, ok := s.globalSlots[instance]
	if !ok {
		return
	}
	delete(s.globalSlots, instance)
	s.freeOffsets = append(s.freeOffsets, slot.offset)
}

func (s *Storage) GlobalShaderParametersInstanceUpdate(instance core.RID, index int32, value interface{}, flagsCount int) {
	slot, ok := s.globalSlots[instance]
	if !ok {
		core.LogError("GlobalShaderParametersInstanceUpdate: %s has no allocated parameters", instance)
		return
	}
	if index < 0 || index >= instanceUniformSlots {
		core.LogError("GlobalShaderParametersInstanceUpdate: index %d out of range", index)
		return
	}
	slot.values[index] = value
}

// GlobalShaderParameter returns the value written at index for instance.
func (s *Storage) GlobalShaderParameter(instance core.RID, index int32) (interface{}, bool) {
	slot, ok := s.globalSlots[instance]
	if !ok {
		return nil, false
	}
	v, ok := slot.values[index]
	return v, ok
}

// GlobalShaderParametersAllocated is the number of instances holding a
// parameter slot.
func (s *Storage) GlobalShaderParametersAllocated() int {
	return len(s.globalSlots)
}

/* UTILITIES API */

func (s *Storage) GetBaseType(rid core.RID) metadata.InstanceType {
	switch {
	case s.hasMesh(rid):
		return metadata.INSTANCE_MESH
	case s.multimeshes[rid] != nil:
		return metadata.INSTANCE_MULTIMESH
	case s.particles[rid] != nil:
		return metadata.INSTANCE_PARTICLES
	case s.collisions[rid] != nil:
		return metadata.INSTANCE_PARTICLES_COLLISION
	}
	return metadata.INSTANCE_NONE
}

func (s *Storage) BaseUpdateDependency(rid core.RID, tracker *metadata.DependencyTracker) {
	if s.GetBaseType(rid) == metadata.INSTANCE_NONE {
		return
	}
	s.track(rid, tracker)
}

func (s *Storage) UpdateDirtyResources() {
	s.dirtyResourceUpdates++
}

// DirtyResourceUpdates counts the UpdateDirtyResources calls.
func (s *Storage) DirtyResourceUpdates() int {
	return s.dirtyResourceUpdates
}
