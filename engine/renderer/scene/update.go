package scene

import (
	"github.com/spaghettifunk/scenecull/engine/bvh"
	"github.com/spaghettifunk/scenecull/engine/core"
	"github.com/spaghettifunk/scenecull/engine/math"
	"github.com/spaghettifunk/scenecull/engine/renderer/metadata"
)

// updateInstance pushes a new transform or AABB through to the render
// backend, the spatial index and the pairs.
func (c *RendererSceneCull) updateInstance(instance *Instance) {
	instance.version++

	switch instance.baseType {
	case metadata.INSTANCE_PARTICLES:
		c.storage.Particles.ParticlesSetEmissionTransform(instance.base, instance.transform)
	case metadata.INSTANCE_PARTICLES_COLLISION:
		c.storage.Particles.ParticlesCollisionInstanceSetTransform(instance.collisionInstance, instance.transform)
	}

	if !instance.aabb.HasSurface() {
		return
	}

	instance.transformedAABB = instance.transform.XformAABB(instance.aabb)

	if instance.isGeometry() {
		instance.geometry.SetTransform(instance.transform, instance.aabb, instance.transformedAABB)
	}

	// an exact zero determinant only, nearly singular scenes still cull
	if instance.scenario == nil || !instance.visible || instance.transform.Basis.Determinant() == 0 {
		// out of the index until the basis is invertible again
		c.unpairInstance(instance)
		instance.prevTransformedAABB = instance.transformedAABB
		return
	}

	scenario := instance.scenario

	// quantize to improve moving object performance
	indexAABB := instance.transformedAABB
	if instance.indexerID.IsValid() {
		indexAABB = bvh.QuantizeMotion(instance.transformedAABB, instance.prevTransformedAABB)
	}

	if !instance.indexerID.IsValid() {
		c.insertInstance(instance, indexAABB)
	} else {
		scenario.indexers[instance.indexer()].Update(instance.indexerID, indexAABB)
		scenario.instanceAABBs[instance.arrayIndex] = instance.transformedAABB
	}

	if instance.visibilityIndex != -1 {
		scenario.instanceVisibility.Get(int(instance.visibilityIndex)).Position = instance.transformedAABB.Center()
	}

	// move instance and repair
	c.pairInstance(instance)

	instance.prevTransformedAABB = instance.transformedAABB
}

// insertInstance adds the instance to its scenario's index and appends its
// cull record.
func (c *RendererSceneCull) insertInstance(instance *Instance, indexAABB math.AABB) {
	scenario := instance.scenario
	instance.indexerID = scenario.indexers[instance.indexer()].InsertMasked(indexAABB, instance, instance.baseType.Mask())

	instance.arrayIndex = int32(len(scenario.instanceData))
	idata := InstanceData{
		// changing the base type means de-indexing, so this never needs to be changed later
		Flags:            uint32(instance.baseType),
		LayerMask:        instance.layerMask,
		BaseRID:          instance.base,
		InstanceGeometry: instance.geometry,
		ParentArrayIndex: parentArrayIndex(instance),
		VisibilityIndex:  instance.visibilityIndex,
		instance:         instance,
	}

	for dep := range instance.visibilityDependencies {
		if depData := dep.data(); depData != nil && dep.scenario == scenario {
			depData.ParentArrayIndex = instance.arrayIndex
		}
	}

	idata.setFlag(FLAG_CAST_SHADOWS, instance.castShadows != metadata.SHADOW_CASTING_SETTING_OFF)
	idata.setFlag(FLAG_CAST_SHADOWS_ONLY, instance.castShadows == metadata.SHADOW_CASTING_SETTING_SHADOWS_ONLY)
	idata.setFlag(FLAG_REDRAW_IF_VISIBLE, instance.redrawIfVisible)
	idata.setFlag(FLAG_USES_BAKED_LIGHT, instance.bakedLight)
	idata.setFlag(FLAG_USES_MESH_INSTANCE, instance.meshInstance.IsValid())
	idata.setFlag(FLAG_IGNORE_OCCLUSION_CULLING, instance.ignoreOcclusion)
	idata.setFlag(FLAG_IGNORE_ALL_CULLING, instance.ignoreCulling)

	scenario.instanceData = append(scenario.instanceData, idata)
	scenario.instanceAABBs = append(scenario.instanceAABBs, instance.transformedAABB)
	c.updateInstanceVisibilityDependencies(instance)
}

// parentArrayIndex returns the array index of the instance's visibility
// parent when both sit in the same scenario.
func parentArrayIndex(instance *Instance) int32 {
	parent := instance.visibilityParent
	if parent == nil || parent.scenario != instance.scenario {
		return -1
	}
	return parent.arrayIndex
}

/**
 * @brief Removes the instance from its scenario's index and cull arrays.
 * The last record is swapped into the freed slot and everything that
 * caches its index is patched.
 */
func (c *RendererSceneCull) unpairInstance(instance *Instance) {
	if !instance.indexerID.IsValid() {
		return
	}

	c.unpairAll(instance)

	scenario := instance.scenario
	scenario.indexers[instance.indexer()].Remove(instance.indexerID)
	instance.indexerID = bvh.InvalidID

	// replace this by last
	swapWith := int32(len(scenario.instanceData) - 1)
	if swapWith != instance.arrayIndex {
		swapped := scenario.instanceData[swapWith].instance
		swapped.arrayIndex = instance.arrayIndex
		scenario.instanceData[instance.arrayIndex] = scenario.instanceData[swapWith]
		scenario.instanceAABBs[instance.arrayIndex] = scenario.instanceAABBs[swapWith]

		if swapped.visibilityIndex != -1 {
			scenario.instanceVisibility.Get(int(swapped.visibilityIndex)).ArrayIndex = swapped.arrayIndex
		}

		for dep := range swapped.visibilityDependencies {
			if dep != instance && dep.scenario == scenario && dep.arrayIndex != -1 {
				scenario.instanceData[dep.arrayIndex].ParentArrayIndex = swapped.arrayIndex
			}
		}
	}

	// pop last
	scenario.instanceData[swapWith] = InstanceData{}
	scenario.instanceData = scenario.instanceData[:swapWith]
	scenario.instanceAABBs = scenario.instanceAABBs[:swapWith]

	instance.arrayIndex = -1

	for dep := range instance.visibilityDependencies {
		if depData := dep.data(); depData != nil && dep.scenario == scenario {
			depData.ParentArrayIndex = -1
			if dep.isGeometry() {
				depData.InstanceGeometry.SetParentFadeAlpha(1.0)
			}
		}
	}

	c.updateInstanceVisibilityDependencies(instance)
}

// updateInstanceAABB recomputes the object space bounds from the base or
// the custom override.
func (c *RendererSceneCull) updateInstanceAABB(instance *Instance) {
	if instance.baseType != metadata.INSTANCE_NONE && !instance.base.IsValid() {
		core.LogError("updateInstanceAABB: %s has a base type but no base", instance.self)
		return
	}

	var aabb math.AABB
	switch instance.baseType {
	case metadata.INSTANCE_MESH:
		if instance.customAABB != nil {
			aabb = *instance.customAABB
		} else {
			aabb = c.storage.Mesh.MeshGetAABB(instance.base, instance.skeleton)
		}
	case metadata.INSTANCE_MULTIMESH:
		if instance.customAABB != nil {
			aabb = *instance.customAABB
		} else {
			aabb = c.storage.Mesh.MultimeshGetAABB(instance.base)
		}
	case metadata.INSTANCE_PARTICLES:
		if instance.customAABB != nil {
			aabb = *instance.customAABB
		} else {
			aabb = c.storage.Particles.ParticlesGetAABB(instance.base)
		}
	case metadata.INSTANCE_PARTICLES_COLLISION:
		aabb = c.storage.Particles.ParticlesCollisionGetAABB(instance.base)
	}

	if instance.extraMargin != 0 {
		aabb = aabb.Grow(instance.extraMargin)
	}

	instance.aabb = aabb
}

// updateDirtyInstance runs the queued work of one instance.
func (c *RendererSceneCull) updateDirtyInstance(instance *Instance) {
	if instance.updateAABB {
		c.updateInstanceAABB(instance)
	}

	if instance.updateDependencies {
		c.updateInstanceDependencies(instance)
	}

	instance.inUpdateList = false
	c.counters.DirtyInstances++

	c.updateInstance(instance)

	instance.updateAABB = false
	instance.updateDependencies = false
}

/**
 * @brief Re-declares every resource the instance depends on and recomputes
 * what is derived from its materials: shadow casting, animation and the
 * instance shader uniforms.
 */
func (c *RendererSceneCull) updateInstanceDependencies(instance *Instance) {
	tracker := instance.dependencyTracker
	mesh := c.storage.Mesh
	material := c.storage.Material

	tracker.UpdateBegin()

	if instance.base.IsValid() {
		c.storage.Utilities.BaseUpdateDependency(instance.base, tracker)
	}
	if instance.materialOverride.IsValid() {
		material.MaterialUpdateDependency(instance.materialOverride, tracker)
	}
	if instance.materialOverlay.IsValid() {
		material.MaterialUpdateDependency(instance.materialOverlay, tracker)
	}

	if instance.baseType == metadata.INSTANCE_MESH {
		// remove materials no longer used
		instance.materials = resizeRIDs(instance.materials, mesh.MeshGetSurfaceCount(instance.base))
		c.instanceUpdateMeshInstance(instance)
	}

	if instance.baseType == metadata.INSTANCE_PARTICLES {
		// update the process material dependency
		if processMaterial := c.storage.Particles.ParticlesGetProcessMaterial(instance.base); processMaterial.IsValid() {
			material.MaterialUpdateDependency(processMaterial, tracker)
		}
	}

	if instance.isGeometry() {
		canCastShadows := instance.castShadows != metadata.SHADOW_CASTING_SETTING_OFF
		isAnimated := false
		params := make(map[string]*instanceShaderParameter)

		// surface reports whether a surface material lets the instance cast
		// shadows and folds it into the aggregate state.
		surface := func(mat core.RID) bool {
			if !mat.IsValid() {
				return true
			}
			casts := material.MaterialCastsShadows(mat)
			if material.MaterialIsAnimated(mat) {
				isAnimated = true
			}
			c.mergeShaderUniforms(params, instance.shaderUniforms, mat)
			material.MaterialUpdateDependency(mat, tracker)
			return casts
		}

		if instance.materialOverride.IsValid() {
			if !material.MaterialCastsShadows(instance.materialOverride) {
				canCastShadows = false
			}
			isAnimated = material.MaterialIsAnimated(instance.materialOverride)
			c.mergeShaderUniforms(params, instance.shaderUniforms, instance.materialOverride)
		} else {
			castShadows := false
			switch instance.baseType {
			case metadata.INSTANCE_MESH:
				for i, mat := range instance.materials {
					if !mat.IsValid() {
						mat = mesh.MeshSurfaceGetMaterial(instance.base, i)
					}
					if surface(mat) {
						castShadows = true
					}
				}

			case metadata.INSTANCE_MULTIMESH:
				castShadows = true
				if m := mesh.MultimeshGetMesh(instance.base); m.IsValid() {
					castShadows = false
					for i := 0; i < mesh.MeshGetSurfaceCount(m); i++ {
						if surface(mesh.MeshSurfaceGetMaterial(m, i)) {
							castShadows = true
						}
					}
					c.storage.Utilities.BaseUpdateDependency(m, tracker)
				}

			case metadata.INSTANCE_PARTICLES:
				passes := c.storage.Particles.ParticlesGetDrawPasses(instance.base)
				for p := 0; p < passes; p++ {
					m := c.storage.Particles.ParticlesGetDrawPassMesh(instance.base, p)
					if !m.IsValid() {
						continue
					}
					for i := 0; i < mesh.MeshGetSurfaceCount(m); i++ {
						if surface(mesh.MeshSurfaceGetMaterial(m, i)) {
							castShadows = true
						}
					}
				}
			}
			if !castShadows {
				canCastShadows = false
			}
		}

		if instance.materialOverlay.IsValid() {
			canCastShadows = canCastShadows && material.MaterialCastsShadows(instance.materialOverlay)
			isAnimated = isAnimated || material.MaterialIsAnimated(instance.materialOverlay)
			c.mergeShaderUniforms(params, instance.shaderUniforms, instance.materialOverlay)
		}

		instance.canCastShadows = canCastShadows
		instance.materialIsAnimated = isAnimated

		// values set before any material exported the uniform are kept
		for name, param := range instance.shaderUniforms {
			if _, ok := params[name]; !ok && param.index < 0 {
				params[name] = param
			}
		}
		instance.shaderUniforms = params

		c.updateShaderUniformAllocation(instance)
	}

	if instance.skeleton.IsValid() {
		mesh.SkeletonUpdateDependency(instance.skeleton, tracker)
	}

	tracker.UpdateEnd()

	if instance.isGeometry() {
		instance.geometry.SetSurfaceMaterials(instance.materials)
	}
}

/**
 * @brief Adds the instance uniforms exported by mat to params. The first
 * material to export a name wins; later conflicting exports only warn.
 */
func (c *RendererSceneCull) mergeShaderUniforms(params map[string]*instanceShaderParameter, existing map[string]*instanceShaderParameter, mat core.RID) {
	for _, exported := range c.storage.Material.MaterialGetInstanceShaderParameters(mat) {
		if current, ok := params[exported.Name]; ok {
			if current.info.Type != exported.Type {
				core.LogWarn("more than one material in instance export the same instance shader uniform '%s', but they do it with different data types. Only the first one (in order) will display correctly", exported.Name)
			}
			if current.index != exported.Index {
				core.LogWarn("more than one material in instance export the same instance shader uniform '%s', but they do it with different indices. Only the first one (in order) will display correctly", exported.Name)
			}
			// first one found always has priority
			continue
		}

		param := &instanceShaderParameter{
			info:         exported,
			index:        exported.Index,
			defaultValue: exported.DefaultValue,
			value:        exported.DefaultValue,
		}
		if prev, ok := existing[exported.Name]; ok && prev.value != nil {
			param.value = prev.value
		}
		params[exported.Name] = param
	}
}

// updateShaderUniformAllocation allocates or frees the instance's global
// parameter slot when its set of exported uniforms became (non-)empty.
func (c *RendererSceneCull) updateShaderUniformAllocation(instance *Instance) {
	exported := 0
	for _, param := range instance.shaderUniforms {
		if param.index >= 0 {
			exported++
		}
	}
	needed := exported > 0
	material := c.storage.Material

	if needed != instance.allocatedShaderUniforms {
		instance.allocatedShaderUniforms = needed
		if needed {
			instance.shaderUniformsOffset = material.GlobalShaderParametersInstanceAllocate(instance.self)
		} else {
			material.GlobalShaderParametersInstanceFree(instance.self)
			instance.shaderUniformsOffset = -1
		}
		instance.geometry.SetInstanceShaderUniformsOffset(instance.shaderUniformsOffset)
	}

	if !needed {
		return
	}
	for _, param := range instance.shaderUniforms {
		if param.index >= 0 && param.value != nil {
			material.GlobalShaderParametersInstanceUpdate(instance.self, param.index, param.value, param.info.FlagsCount())
		}
	}
}
