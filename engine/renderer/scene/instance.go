package scene

import (
	"github.com/spaghettifunk/scenecull/engine/core"
	"github.com/spaghettifunk/scenecull/engine/math"
	"github.com/spaghettifunk/scenecull/engine/renderer/metadata"
)

/* INSTANCING API */

func (c *RendererSceneCull) InstanceAllocate() core.RID {
	return c.instanceOwner.Allocate()
}

func (c *RendererSceneCull) InstanceInitialize(rid core.RID) {
	instance := c.instanceOwner.Initialize(rid)
	if instance == nil {
		return
	}
	instance.init(rid)
	instance.dependencyTracker.OnChanged = func(what metadata.DependencyChangedNotification, dep core.RID) {
		c.dependencyChanged(instance, what)
	}
	instance.dependencyTracker.OnDeleted = func(dep core.RID) {
		c.dependencyDeleted(instance, dep)
	}
}

// InstanceCreate allocates and initializes an instance in one call.
func (c *RendererSceneCull) InstanceCreate() core.RID {
	rid := c.InstanceAllocate()
	c.InstanceInitialize(rid)
	return rid
}

// InstanceCreate2 creates an instance with a base already placed in a
// scenario.
func (c *RendererSceneCull) InstanceCreate2(base core.RID, scenario core.RID) core.RID {
	rid := c.InstanceCreate()
	c.InstanceSetBase(rid, base)
	c.InstanceSetScenario(rid, scenario)
	return rid
}

func (c *RendererSceneCull) IsInstance(rid core.RID) bool {
	return c.instanceOwner.Owns(rid)
}

func (c *RendererSceneCull) getInstance(rid core.RID, op string) *Instance {
	instance := c.instanceOwner.GetOrNil(rid)
	if instance == nil {
		core.LogError("%s: invalid instance %s", op, rid)
	}
	return instance
}

func (c *RendererSceneCull) dependencyChanged(instance *Instance, what metadata.DependencyChangedNotification) {
	switch what {
	case metadata.DEPENDENCY_CHANGED_AABB:
		c.queueUpdate(instance, true, false)
	case metadata.DEPENDENCY_CHANGED_MATERIAL:
		c.queueUpdate(instance, false, true)
	case metadata.DEPENDENCY_CHANGED_MESH,
		metadata.DEPENDENCY_CHANGED_PARTICLES,
		metadata.DEPENDENCY_CHANGED_MULTIMESH,
		metadata.DEPENDENCY_CHANGED_SKELETON_DATA,
		metadata.DEPENDENCY_CHANGED_PARTICLES_INSTANCES:
		c.queueUpdate(instance, true, true)
	case metadata.DEPENDENCY_CHANGED_SKELETON_BONES:
		c.queueUpdate(instance, true, false)
	}
}

func (c *RendererSceneCull) dependencyDeleted(instance *Instance, dep core.RID) {
	if dep == instance.base {
		c.InstanceSetBase(instance.self, core.NilRID)
		return
	}
	if dep == instance.skeleton {
		c.InstanceAttachSkeleton(instance.self, core.NilRID)
		return
	}
	// the same material may be used in several slots
	if dep == instance.materialOverride {
		c.InstanceGeometrySetMaterialOverride(instance.self, core.NilRID)
	}
	if dep == instance.materialOverlay {
		c.InstanceGeometrySetMaterialOverlay(instance.self, core.NilRID)
	}
	for i, m := range instance.materials {
		if m == dep {
			c.InstanceSetSurfaceOverrideMaterial(instance.self, i, core.NilRID)
		}
	}
	c.queueUpdate(instance, false, true)
}

/**
 * @brief Binds the resource the instance displays. Anything created for
 * the previous base is released first.
 */
func (c *RendererSceneCull) InstanceSetBase(rid core.RID, base core.RID) {
	instance := c.getInstance(rid, "InstanceSetBase")
	if instance == nil {
		return
	}

	if instance.baseType != metadata.INSTANCE_NONE {
		// free anything related to that base
		if instance.indexerID.IsValid() {
			c.unpairInstance(instance)
		}
		if instance.meshInstance.IsValid() {
			c.storage.Mesh.MeshInstanceFree(instance.meshInstance)
			instance.meshInstance = core.NilRID
		}
		switch instance.baseType {
		case metadata.INSTANCE_MESH, metadata.INSTANCE_MULTIMESH, metadata.INSTANCE_PARTICLES:
			if instance.geometry != nil {
				c.sceneRender.GeometryInstanceFree(instance.geometry)
				instance.geometry = nil
			}
		case metadata.INSTANCE_PARTICLES_COLLISION:
			c.storage.Particles.ParticlesCollisionInstanceFree(instance.collisionInstance)
			instance.collisionInstance = core.NilRID
		}
		instance.materials = nil
		instance.materialIsAnimated = false
	}

	instance.baseType = metadata.INSTANCE_NONE
	instance.base = core.NilRID

	if base.IsValid() {
		baseType := c.storage.Utilities.GetBaseType(base)
		switch baseType {
		case metadata.INSTANCE_MESH, metadata.INSTANCE_MULTIMESH, metadata.INSTANCE_PARTICLES:
			geom := c.sceneRender.GeometryInstanceCreate(base)
			if geom == nil {
				core.LogError("InstanceSetBase: render backend refused geometry for %s", base)
				return
			}
			instance.geometry = geom
			geom.SetSkeleton(instance.skeleton)
			geom.SetMaterialOverride(instance.materialOverride)
			geom.SetMaterialOverlay(instance.materialOverlay)
			geom.SetSurfaceMaterials(instance.materials)
			geom.SetTransform(instance.transform, instance.aabb, instance.transformedAABB)
			geom.SetLayerMask(instance.layerMask)
			geom.SetPivotData(instance.sortingOffset, instance.useAABBCenter)
			geom.SetLODBias(instance.lodBias)
			geom.SetTransparency(instance.transparency)
			geom.SetUseBakedLight(instance.bakedLight)
			geom.SetUseDynamicGI(instance.dynamicGI)
			geom.SetInstanceShaderUniformsOffset(instance.shaderUniformsOffset)
			geom.SetCastDoubleSidedShadows(instance.castShadows == metadata.SHADOW_CASTING_SETTING_DOUBLE_SIDED)
			geom.SetMeshInstance(instance.meshInstance)
		case metadata.INSTANCE_PARTICLES_COLLISION:
			instance.collisionInstance = c.storage.Particles.ParticlesCollisionInstanceCreate(base)
			c.storage.Particles.ParticlesCollisionInstanceSetActive(instance.collisionInstance, instance.visible)
		default:
			core.LogError("InstanceSetBase: unsupported base type %s for %s", baseType, base)
			return
		}

		instance.baseType = baseType
		instance.base = base

		if baseType == metadata.INSTANCE_MESH {
			c.instanceUpdateMeshInstance(instance)
		}

		// forcefully update the dependency now, so if for some reason it gets removed, we can immediately clear it
		c.storage.Utilities.BaseUpdateDependency(base, instance.dependencyTracker)
	}

	c.queueUpdate(instance, true, true)
}

// InstanceSetScenario moves the instance into scenario, or out of any
// scenario when scenario is null.
func (c *RendererSceneCull) InstanceSetScenario(rid core.RID, scenarioRID core.RID) {
	instance := c.getInstance(rid, "InstanceSetScenario")
	if instance == nil {
		return
	}

	if instance.scenario != nil {
		delete(instance.scenario.instances, instance)
		if instance.indexerID.IsValid() {
			c.unpairInstance(instance)
		}
		instance.scenario = nil
	}

	if scenarioRID.IsValid() {
		scenario := c.scenarioOwner.GetOrNil(scenarioRID)
		if scenario == nil {
			core.LogError("InstanceSetScenario: invalid scenario %s", scenarioRID)
			return
		}
		instance.scenario = scenario
		scenario.instances[instance] = struct{}{}
		c.queueUpdate(instance, true, true)
	}
}

func (c *RendererSceneCull) instanceUpdateMeshInstance(instance *Instance) {
	needsInstance := c.storage.Mesh.MeshNeedsInstance(instance.base, instance.skeleton.IsValid())
	if needsInstance != instance.meshInstance.IsValid() {
		if needsInstance {
			instance.meshInstance = c.storage.Mesh.MeshInstanceCreate(instance.base)
		} else {
			c.storage.Mesh.MeshInstanceFree(instance.meshInstance)
			instance.meshInstance = core.NilRID
		}

		instance.geometry.SetMeshInstance(instance.meshInstance)

		if idata := instance.data(); idata != nil {
			idata.setFlag(FLAG_USES_MESH_INSTANCE, instance.meshInstance.IsValid())
		}
	}

	if instance.meshInstance.IsValid() {
		c.storage.Mesh.MeshInstanceSetSkeleton(instance.meshInstance, instance.skeleton)
	}
}

func (c *RendererSceneCull) InstanceSetLayerMask(rid core.RID, mask uint32) {
	instance := c.getInstance(rid, "InstanceSetLayerMask")
	if instance == nil || instance.layerMask == mask {
		return
	}

	wasPairable := instance.layerMask != 0
	instance.layerMask = mask
	if idata := instance.data(); idata != nil {
		idata.LayerMask = mask
	}
	if instance.isGeometry() {
		instance.geometry.SetLayerMask(mask)
	}

	// a zero mask pairs with nothing, so pairs appear or go away right here
	if wasPairable != (mask != 0) && instance.indexerID.IsValid() {
		c.pairInstance(instance)
	}
}

func (c *RendererSceneCull) InstanceSetPivotData(rid core.RID, sortingOffset float32, useAABBCenter bool) {
	instance := c.getInstance(rid, "InstanceSetPivotData")
	if instance == nil {
		return
	}

	instance.sortingOffset = sortingOffset
	instance.useAABBCenter = useAABBCenter
	if instance.isGeometry() {
		instance.geometry.SetPivotData(sortingOffset, useAABBCenter)
	}
}

func (c *RendererSceneCull) InstanceGeometrySetTransparency(rid core.RID, transparency float32) {
	instance := c.getInstance(rid, "InstanceGeometrySetTransparency")
	if instance == nil {
		return
	}

	instance.transparency = transparency
	if instance.isGeometry() {
		instance.geometry.SetTransparency(transparency)
	}
}

/**
 * @brief Places the instance. Setting the current transform again is a
 * no-op; non-finite transforms are rejected in debug builds.
 */
func (c *RendererSceneCull) InstanceSetTransform(rid core.RID, transform math.Transform3D) {
	instance := c.getInstance(rid, "InstanceSetTransform")
	if instance == nil {
		return
	}

	if instance.transform == transform {
		return
	}

	if debugEnabled && !transform.IsFinite() {
		core.LogError("InstanceSetTransform: %s: %s", rid, core.ErrNonFiniteTransform)
		return
	}

	instance.transform = transform
	c.queueUpdate(instance, true, false)
}

func (c *RendererSceneCull) InstanceAttachObjectInstanceID(rid core.RID, id uint64) {
	instance := c.getInstance(rid, "InstanceAttachObjectInstanceID")
	if instance == nil {
		return
	}
	instance.objectID = id
}

func (c *RendererSceneCull) InstanceSetSurfaceOverrideMaterial(rid core.RID, surface int, material core.RID) {
	instance := c.getInstance(rid, "InstanceSetSurfaceOverrideMaterial")
	if instance == nil {
		return
	}

	if instance.baseType == metadata.INSTANCE_MESH {
		// may not have been updated yet, so size to the larger of the two
		size := max(surface+1, c.storage.Mesh.MeshGetSurfaceCount(instance.base))
		instance.materials = resizeRIDs(instance.materials, size)
	}

	if surface < 0 || surface >= len(instance.materials) {
		core.LogError("InstanceSetSurfaceOverrideMaterial: surface %d out of range for %s", surface, rid)
		return
	}

	instance.materials[surface] = material
	c.queueUpdate(instance, false, true)
}

func resizeRIDs(s []core.RID, size int) []core.RID {
	if size <= len(s) {
		return s[:size]
	}
	return append(s, make([]core.RID, size-len(s))...)
}

/**
 * @brief Shows or hides the instance. Hiding removes it from its scenario
 * right away, showing queues it for reinsertion.
 */
func (c *RendererSceneCull) InstanceSetVisible(rid core.RID, visible bool) {
	instance := c.getInstance(rid, "InstanceSetVisible")
	if instance == nil || instance.visible == visible {
		return
	}

	instance.visible = visible

	if visible {
		if instance.scenario != nil {
			c.queueUpdate(instance, true, false)
		}
	} else if instance.indexerID.IsValid() {
		c.unpairInstance(instance)
	}

	if instance.baseType == metadata.INSTANCE_PARTICLES_COLLISION {
		c.storage.Particles.ParticlesCollisionInstanceSetActive(instance.collisionInstance, visible)
	}
}

func (c *RendererSceneCull) InstanceAttachSkeleton(rid core.RID, skeleton core.RID) {
	instance := c.getInstance(rid, "InstanceAttachSkeleton")
	if instance == nil || instance.skeleton == skeleton {
		return
	}

	instance.skeleton = skeleton

	if skeleton.IsValid() {
		// update the dependency now, so if cleared, we remove it
		c.storage.Mesh.SkeletonUpdateDependency(skeleton, instance.dependencyTracker)
	}

	c.queueUpdate(instance, true, true)

	if instance.isGeometry() {
		if instance.baseType == metadata.INSTANCE_MESH {
			c.instanceUpdateMeshInstance(instance)
		}
		instance.geometry.SetSkeleton(skeleton)
	}
}

// InstanceSetCustomAABB overrides the bounds reported by the base. A nil
// aabb returns to the base's bounds. Collision bases ignore it.
func (c *RendererSceneCull) InstanceSetCustomAABB(rid core.RID, aabb *math.AABB) {
	instance := c.getInstance(rid, "InstanceSetCustomAABB")
	if instance == nil {
		return
	}
	if !instance.baseType.IsGeometry() {
		core.LogError("InstanceSetCustomAABB: %s is not a geometry instance", rid)
		return
	}

	if aabb != nil {
		custom := *aabb
		instance.customAABB = &custom
	} else {
		instance.customAABB = nil
	}

	if instance.scenario != nil {
		c.queueUpdate(instance, true, false)
	}
}

func (c *RendererSceneCull) InstanceSetExtraVisibilityMargin(rid core.RID, margin float32) {
	instance := c.getInstance(rid, "InstanceSetExtraVisibilityMargin")
	if instance == nil {
		return
	}

	instance.extraMargin = margin
	c.queueUpdate(instance, true, false)
}

func (c *RendererSceneCull) InstanceSetIgnoreCulling(rid core.RID, enabled bool) {
	instance := c.getInstance(rid, "InstanceSetIgnoreCulling")
	if instance == nil {
		return
	}

	instance.ignoreCulling = enabled
	if idata := instance.data(); idata != nil {
		idata.setFlag(FLAG_IGNORE_ALL_CULLING, enabled)
	}
}

func (c *RendererSceneCull) InstanceGeometrySetFlag(rid core.RID, flag metadata.InstanceFlags, enabled bool) {
	instance := c.getInstance(rid, "InstanceGeometrySetFlag")
	if instance == nil {
		return
	}

	switch flag {
	case metadata.INSTANCE_FLAG_USE_BAKED_LIGHT:
		instance.bakedLight = enabled
		if idata := instance.data(); idata != nil {
			idata.setFlag(FLAG_USES_BAKED_LIGHT, enabled)
		}
		if instance.isGeometry() {
			instance.geometry.SetUseBakedLight(enabled)
		}

	case metadata.INSTANCE_FLAG_USE_DYNAMIC_GI:
		if enabled == instance.dynamicGI {
			return
		}
		if instance.indexerID.IsValid() {
			c.unpairInstance(instance)
			c.queueUpdate(instance, true, true)
		}
		// once out of the index, it can be changed
		instance.dynamicGI = enabled
		if instance.isGeometry() {
			instance.geometry.SetUseDynamicGI(enabled)
		}

	case metadata.INSTANCE_FLAG_DRAW_NEXT_FRAME_IF_VISIBLE:
		instance.redrawIfVisible = enabled
		if idata := instance.data(); idata != nil {
			idata.setFlag(FLAG_REDRAW_IF_VISIBLE, enabled)
		}

	case metadata.INSTANCE_FLAG_IGNORE_OCCLUSION_CULLING:
		instance.ignoreOcclusion = enabled
		if idata := instance.data(); idata != nil {
			idata.setFlag(FLAG_IGNORE_OCCLUSION_CULLING, enabled)
		}
	}
}

func (c *RendererSceneCull) InstanceGeometrySetCastShadowsSetting(rid core.RID, setting metadata.ShadowCastingSetting) {
	instance := c.getInstance(rid, "InstanceGeometrySetCastShadowsSetting")
	if instance == nil {
		return
	}

	instance.castShadows = setting

	if idata := instance.data(); idata != nil {
		idata.setFlag(FLAG_CAST_SHADOWS, setting != metadata.SHADOW_CASTING_SETTING_OFF)
		idata.setFlag(FLAG_CAST_SHADOWS_ONLY, setting == metadata.SHADOW_CASTING_SETTING_SHADOWS_ONLY)
	}

	if instance.isGeometry() {
		instance.geometry.SetCastDoubleSidedShadows(setting == metadata.SHADOW_CASTING_SETTING_DOUBLE_SIDED)
	}

	c.queueUpdate(instance, false, true)
}

func (c *RendererSceneCull) InstanceGeometrySetMaterialOverride(rid core.RID, material core.RID) {
	instance := c.getInstance(rid, "InstanceGeometrySetMaterialOverride")
	if instance == nil {
		return
	}

	instance.materialOverride = material
	c.queueUpdate(instance, false, true)

	if instance.isGeometry() {
		instance.geometry.SetMaterialOverride(material)
	}
}

func (c *RendererSceneCull) InstanceGeometrySetMaterialOverlay(rid core.RID, material core.RID) {
	instance := c.getInstance(rid, "InstanceGeometrySetMaterialOverlay")
	if instance == nil {
		return
	}

	instance.materialOverlay = material
	c.queueUpdate(instance, false, true)

	if instance.isGeometry() {
		instance.geometry.SetMaterialOverlay(material)
	}
}

func (c *RendererSceneCull) InstanceGeometrySetLODBias(rid core.RID, bias float32) {
	instance := c.getInstance(rid, "InstanceGeometrySetLODBias")
	if instance == nil {
		return
	}

	instance.lodBias = bias
	if instance.isGeometry() {
		instance.geometry.SetLODBias(bias)
	}
}

/**
 * @brief Sets a per-instance shader uniform. Values for uniforms no
 * material exports yet are kept and applied once one does.
 */
func (c *RendererSceneCull) InstanceGeometrySetShaderParameter(rid core.RID, name string, value interface{}) {
	instance := c.getInstance(rid, "InstanceGeometrySetShaderParameter")
	if instance == nil {
		return
	}

	param, ok := instance.shaderUniforms[name]
	if !ok {
		instance.shaderUniforms[name] = &instanceShaderParameter{index: -1, value: value}
		return
	}

	param.value = value
	if param.index >= 0 && instance.allocatedShaderUniforms {
		// update directly
		c.storage.Material.GlobalShaderParametersInstanceUpdate(rid, param.index, value, param.info.FlagsCount())
	}
}

func (c *RendererSceneCull) InstanceGeometryGetShaderParameter(rid core.RID, name string) interface{} {
	instance := c.getInstance(rid, "InstanceGeometryGetShaderParameter")
	if instance == nil {
		return nil
	}
	if param, ok := instance.shaderUniforms[name]; ok {
		return param.value
	}
	return nil
}

func (c *RendererSceneCull) InstanceGeometryGetShaderParameterDefaultValue(rid core.RID, name string) interface{} {
	instance := c.getInstance(rid, "InstanceGeometryGetShaderParameterDefaultValue")
	if instance == nil {
		return nil
	}
	if param, ok := instance.shaderUniforms[name]; ok {
		return param.defaultValue
	}
	return nil
}

// InstanceGeometryGetShaderParameterList returns the uniforms exported by
// the instance's materials, as of the last dependency update.
func (c *RendererSceneCull) InstanceGeometryGetShaderParameterList(rid core.RID) []metadata.InstanceShaderParam {
	instance := c.getInstance(rid, "InstanceGeometryGetShaderParameterList")
	if instance == nil {
		return nil
	}
	// the list is built from the dependency update
	c.UpdateDirtyInstances()

	var out []metadata.InstanceShaderParam
	for _, param := range instance.shaderUniforms {
		if param.index >= 0 {
			out = append(out, param.info)
		}
	}
	return out
}

/* Getters used by the render facade and tests. */

func (c *RendererSceneCull) InstanceGetBaseType(rid core.RID) metadata.InstanceType {
	instance := c.getInstance(rid, "InstanceGetBaseType")
	if instance == nil {
		return metadata.INSTANCE_NONE
	}
	return instance.baseType
}

func (c *RendererSceneCull) InstanceGetTransform(rid core.RID) math.Transform3D {
	instance := c.getInstance(rid, "InstanceGetTransform")
	if instance == nil {
		return math.NewTransformIdentity()
	}
	return instance.transform
}

func (c *RendererSceneCull) InstanceGetAABB(rid core.RID) math.AABB {
	instance := c.getInstance(rid, "InstanceGetAABB")
	if instance == nil {
		return math.AABB{}
	}
	return instance.aabb
}

func (c *RendererSceneCull) InstanceGetTransformedAABB(rid core.RID) math.AABB {
	instance := c.getInstance(rid, "InstanceGetTransformedAABB")
	if instance == nil {
		return math.AABB{}
	}
	return instance.transformedAABB
}

func (c *RendererSceneCull) InstanceGetObjectInstanceID(rid core.RID) uint64 {
	instance := c.getInstance(rid, "InstanceGetObjectInstanceID")
	if instance == nil {
		return 0
	}
	return instance.objectID
}

// InstanceGetArrayIndex returns the slot in the scenario's cull arrays, or
// -1 when the instance is not paired into a scenario.
func (c *RendererSceneCull) InstanceGetArrayIndex(rid core.RID) int {
	instance := c.getInstance(rid, "InstanceGetArrayIndex")
	if instance == nil {
		return -1
	}
	return int(instance.arrayIndex)
}

func (c *RendererSceneCull) InstanceGetVisibilityIndex(rid core.RID) int {
	instance := c.getInstance(rid, "InstanceGetVisibilityIndex")
	if instance == nil {
		return -1
	}
	return int(instance.visibilityIndex)
}

func (c *RendererSceneCull) InstanceGetGeometry(rid core.RID) metadata.GeometryInstance {
	instance := c.getInstance(rid, "InstanceGetGeometry")
	if instance == nil {
		return nil
	}
	return instance.geometry
}

func (c *RendererSceneCull) InstanceGetMeshInstance(rid core.RID) core.RID {
	instance := c.getInstance(rid, "InstanceGetMeshInstance")
	if instance == nil {
		return core.NilRID
	}
	return instance.meshInstance
}

func (c *RendererSceneCull) InstanceIsMaterialAnimated(rid core.RID) bool {
	instance := c.getInstance(rid, "InstanceIsMaterialAnimated")
	if instance == nil {
		return false
	}
	return instance.materialIsAnimated
}

// InstanceCanCastShadows reports whether the instance's setting and
// materials allow it to cast shadows.
func (c *RendererSceneCull) InstanceCanCastShadows(rid core.RID) bool {
	instance := c.getInstance(rid, "InstanceCanCastShadows")
	if instance == nil {
		return false
	}
	return instance.canCastShadows
}

// InstanceGetShaderUniformsOffset returns the instance's global parameter
// slot, -1 when none is allocated.
func (c *RendererSceneCull) InstanceGetShaderUniformsOffset(rid core.RID) int32 {
	instance := c.getInstance(rid, "InstanceGetShaderUniformsOffset")
	if instance == nil {
		return -1
	}
	return instance.shaderUniformsOffset
}
