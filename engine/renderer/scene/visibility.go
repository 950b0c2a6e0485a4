package scene

import (
	"github.com/spaghettifunk/scenecull/engine/core"
	"github.com/spaghettifunk/scenecull/engine/math"
	"github.com/spaghettifunk/scenecull/engine/renderer/metadata"
)

// Results of visibilityRangeCheck.
const (
	rangeBeyondEnd   = -1
	rangeVisible     = 0
	rangeBeforeBegin = 1
	rangeFade        = 2
)

/**
 * @brief Sets the distances between which the instance is drawn. Zero
 * disables a limit. Margins widen the limits into a fade band.
 */
func (c *RendererSceneCull) InstanceGeometrySetVisibilityRange(rid core.RID, min, max, minMargin, maxMargin float32, fadeMode metadata.VisibilityRangeFadeMode) {
	instance := c.getInstance(rid, "InstanceGeometrySetVisibilityRange")
	if instance == nil {
		return
	}

	instance.visibilityRangeBegin = min
	instance.visibilityRangeEnd = max
	instance.visibilityRangeBeginMargin = minMargin
	instance.visibilityRangeEndMargin = maxMargin
	instance.visibilityRangeFadeMode = fadeMode

	c.updateInstanceVisibilityDependencies(instance)

	if instance.scenario != nil && instance.visibilityIndex != -1 {
		vd := instance.scenario.instanceVisibility.Get(int(instance.visibilityIndex))
		vd.RangeBegin = min
		vd.RangeEnd = max
		vd.RangeBeginMargin = minMargin
		vd.RangeEndMargin = maxMargin
		vd.FadeMode = fadeMode
	}
}

/**
 * @brief Makes parentRID the visibility parent of rid, or clears it when
 * parentRID is null. An assignment that would close a cycle is rolled
 * back with a warning.
 */
func (c *RendererSceneCull) InstanceSetVisibilityParent(rid core.RID, parentRID core.RID) {
	instance := c.getInstance(rid, "InstanceSetVisibilityParent")
	if instance == nil {
		return
	}

	if parentRID == rid {
		core.LogWarn("InstanceSetVisibilityParent: %s: %s: an instance cannot be its own visibility parent", rid, core.ErrVisibilityCycle)
		return
	}

	var parent *Instance
	if parentRID.IsValid() {
		parent = c.instanceOwner.GetOrNil(parentRID)
		if parent == nil {
			core.LogError("InstanceSetVisibilityParent: invalid parent instance %s", parentRID)
			return
		}
	}

	old := instance.visibilityParent
	if old != nil {
		delete(old.visibilityDependencies, instance)
		instance.visibilityParent = nil
		c.updateInstanceVisibilityDepth(old)
	}

	if parent != nil {
		parent.visibilityDependencies[instance] = struct{}{}
		instance.visibilityParent = parent

		if c.updateInstanceVisibilityDepth(parent) {
			core.LogWarn("InstanceSetVisibilityParent: %s: the latest change to the visibility parent of %s will have no effect", core.ErrVisibilityCycle, rid)
			delete(parent.visibilityDependencies, instance)
			instance.visibilityParent = nil
			c.updateInstanceVisibilityDepth(parent)

			// the previous parent was part of an acyclic tree
			if old != nil {
				old.visibilityDependencies[instance] = struct{}{}
				instance.visibilityParent = old
				c.updateInstanceVisibilityDepth(old)
			}
		}
	}

	c.updateInstanceVisibilityDependencies(instance)
}

// InstanceGetVisibilityParent returns the visibility parent of rid.
func (c *RendererSceneCull) InstanceGetVisibilityParent(rid core.RID) core.RID {
	instance := c.getInstance(rid, "InstanceGetVisibilityParent")
	if instance == nil || instance.visibilityParent == nil {
		return core.NilRID
	}
	return instance.visibilityParent.self
}

// InstanceGetVisibilityDepth returns the height of the instance's
// visibility subtree: 0 without dependents.
func (c *RendererSceneCull) InstanceGetVisibilityDepth(rid core.RID) int {
	instance := c.getInstance(rid, "InstanceGetVisibilityDepth")
	if instance == nil {
		return 0
	}
	return instance.visibilityDependenciesDepth
}

/**
 * @brief Recomputes the depth of instance and of every ancestor, moving
 * listed entries to their new bin.
 * @return True when the walk revisited a node, meaning the tree has a cycle.
 */
func (c *RendererSceneCull) updateInstanceVisibilityDepth(instance *Instance) bool {
	traversed := make(map[*Instance]struct{})

	for instance != nil {
		depth := 0
		if len(instance.visibilityDependencies) > 0 {
			for dep := range instance.visibilityDependencies {
				depth = max(depth, dep.visibilityDependenciesDepth)
			}
			depth++
		}
		instance.visibilityDependenciesDepth = depth

		if instance.scenario != nil && instance.visibilityIndex != -1 {
			instance.scenario.instanceVisibility.Move(int(instance.visibilityIndex), depth)
		}

		traversed[instance] = struct{}{}

		instance = instance.visibilityParent
		if _, seen := traversed[instance]; seen && instance != nil {
			return true
		}
	}
	return false
}

func (c *RendererSceneCull) needsVisibilityCull(instance *Instance) bool {
	return (instance.hasVisibilityRange() || instance.visibilityParent != nil) &&
		instance.isGeometry() && instance.arrayIndex != -1
}

/**
 * @brief Adds or removes the instance from the visibility list and
 * refreshes the visibility fields of its cull record.
 *
 * An instance is listed when it is paired geometry with a range or with a
 * visibility parent, so descendants without a range of their own still
 * inherit their ancestors' state during the cull pass.
 */
func (c *RendererSceneCull) updateInstanceVisibilityDependencies(instance *Instance) {
	isGeometry := instance.isGeometry()
	hasRange := instance.hasVisibilityRange()
	needsCull := c.needsVisibilityCull(instance)

	if !needsCull && instance.visibilityIndex != -1 {
		instance.scenario.instanceVisibility.RemoveAt(int(instance.visibilityIndex))
		instance.visibilityIndex = -1
	} else if needsCull && instance.visibilityIndex == -1 {
		vd := InstanceVisibilityData{
			RangeBegin:        instance.visibilityRangeBegin,
			RangeEnd:          instance.visibilityRangeEnd,
			RangeBeginMargin:  instance.visibilityRangeBeginMargin,
			RangeEndMargin:    instance.visibilityRangeEndMargin,
			FadeMode:          instance.visibilityRangeFadeMode,
			Position:          instance.transformedAABB.Center(),
			ArrayIndex:        instance.arrayIndex,
			ChildrenFadeAlpha: 1,
			instance:          instance,
		}
		instance.scenario.instanceVisibility.Insert(vd, instance.visibilityDependenciesDepth)
	}

	idata := instance.data()
	if idata == nil {
		return
	}
	idata.VisibilityIndex = instance.visibilityIndex

	if isGeometry {
		if hasRange && instance.visibilityRangeFadeMode == metadata.VISIBILITY_RANGE_FADE_SELF {
			begin := instance.visibilityRangeBegin
			end := instance.visibilityRangeEnd
			beginMargin := instance.visibilityRangeBeginMargin
			endMargin := instance.visibilityRangeEndMargin
			idata.InstanceGeometry.SetFadeRange(begin > 0, begin-beginMargin, begin+beginMargin, end > 0, end-endMargin, end+endMargin)
		} else {
			idata.InstanceGeometry.SetFadeRange(false, 0, 0, false, 0, 0)
		}
	}

	needsCheck := (hasRange || instance.visibilityParent != nil) &&
		(instance.visibilityIndex == -1 || instance.visibilityDependenciesDepth == 0)
	if instance.visibilityIndex == -1 {
		// the cull pass no longer refreshes this record
		idata.Flags &^= visibilityDependencyStateMask
	}
	idata.setFlag(FLAG_VISIBILITY_DEPENDENCY_NEEDS_CHECK, needsCheck)

	idata.ParentArrayIndex = parentArrayIndex(instance)
	if idata.ParentArrayIndex == -1 && isGeometry {
		idata.InstanceGeometry.SetParentFadeAlpha(1.0)
	}
}

/**
 * @brief Classifies the distance from the camera against the entry's
 * range, updating its per-viewport state and children fade alpha.
 *
 * Returns rangeBeyondEnd, rangeBeforeBegin, rangeFade or rangeVisible.
 * Without fading the margins act as hysteresis: a viewport that saw the
 * entry keeps it until the camera crosses the far side of the margin.
 */
func visibilityRangeCheck(vd *InstanceVisibilityData, cameraPos math.Vec3, viewportMask uint64) int {
	dist := cameraPos.Distance(vd.Position)
	fadeMode := vd.FadeMode

	beginOffset := -vd.RangeBeginMargin
	endOffset := vd.RangeEndMargin

	if fadeMode == metadata.VISIBILITY_RANGE_FADE_DISABLED && viewportMask&vd.ViewportState == 0 {
		beginOffset = -beginOffset
		endOffset = -endOffset
	}

	if vd.RangeEnd > 0 && dist > vd.RangeEnd+endOffset {
		vd.ViewportState &^= viewportMask
		return rangeBeyondEnd
	}
	if vd.RangeBegin > 0 && dist < vd.RangeBegin+beginOffset {
		vd.ViewportState &^= viewportMask
		return rangeBeforeBegin
	}

	vd.ViewportState |= viewportMask
	if fadeMode != metadata.VISIBILITY_RANGE_FADE_DISABLED {
		vd.ChildrenFadeAlpha = 1
		if vd.RangeEnd > 0 && dist > vd.RangeEnd-endOffset {
			if fadeMode == metadata.VISIBILITY_RANGE_FADE_DEPENDENCIES {
				vd.ChildrenFadeAlpha = min(1, (dist-(vd.RangeEnd-endOffset))/(2*vd.RangeEndMargin))
			}
			return rangeFade
		} else if vd.RangeBegin > 0 && dist < vd.RangeBegin-beginOffset {
			if fadeMode == metadata.VISIBILITY_RANGE_FADE_DEPENDENCIES {
				vd.ChildrenFadeAlpha = min(1, 1-(dist-(vd.RangeBegin+beginOffset))/(2*vd.RangeBeginMargin))
			}
			return rangeFade
		}
	}
	return rangeVisible
}

/**
 * @brief Runs the visibility range cull of a scenario for a camera.
 *
 * The list is processed one depth bin at a time, deepest first. Entries of
 * a bin are independent of each other, so a large bin is split across the
 * worker pool; bins are separated by a barrier so parents are final before
 * any child reads them.
 *
 * @param viewportMask The bit identifying the viewport doing the cull.
 */
func (c *RendererSceneCull) VisibilityCull(scenarioRID core.RID, cameraPos math.Vec3, viewportMask uint64) {
	scenario := c.scenarioOwner.GetOrNil(scenarioRID)
	if scenario == nil {
		core.LogError("VisibilityCull: invalid scenario %s", scenarioRID)
		return
	}

	list := scenario.instanceVisibility
	total := list.Len()
	c.counters.VisibilityCulls += total
	if total == 0 {
		return
	}

	threaded := c.workers != nil && c.workers.ThreadCount() > 1 && total >= c.threadCullThreshold

	for bin := list.BinCount() - 1; bin >= 0; bin-- {
		from, to := list.BinRange(bin)
		count := to - from
		if count == 0 {
			continue
		}
		if !threaded || count < c.workers.ThreadCount() {
			c.visibilityCullRange(scenario, cameraPos, viewportMask, from, to)
			continue
		}
		threads := c.workers.ThreadCount()
		c.workers.ParallelFor(threads, func(thread int) {
			binFrom := from + thread*count/threads
			binTo := from + (thread+1)*count/threads
			if thread+1 == threads {
				binTo = to
			}
			c.visibilityCullRange(scenario, cameraPos, viewportMask, binFrom, binTo)
		})
	}
}

func (c *RendererSceneCull) visibilityCullRange(scenario *Scenario, cameraPos math.Vec3, viewportMask uint64, from, to int) {
	for i := from; i < to; i++ {
		vd := scenario.instanceVisibility.Get(i)
		idata := &scenario.instanceData[vd.ArrayIndex]

		if idata.ParentArrayIndex >= 0 {
			parent := &scenario.instanceData[idata.ParentArrayIndex]
			parentFlags := parent.Flags

			if parentFlags&FLAG_VISIBILITY_DEPENDENCY_HIDDEN != 0 ||
				parentFlags&(FLAG_VISIBILITY_DEPENDENCY_HIDDEN_CLOSE_RANGE|FLAG_VISIBILITY_DEPENDENCY_FADE_CHILDREN) == 0 {
				idata.Flags = idata.Flags&^visibilityDependencyStateMask | FLAG_VISIBILITY_DEPENDENCY_HIDDEN
				continue
			}

			fade := float32(1)
			if parentFlags&FLAG_VISIBILITY_DEPENDENCY_FADE_CHILDREN != 0 && parent.VisibilityIndex >= 0 {
				fade = scenario.instanceVisibility.Get(int(parent.VisibilityIndex)).ChildrenFadeAlpha
			}
			idata.InstanceGeometry.SetParentFadeAlpha(fade)
		}

		switch visibilityRangeCheck(vd, cameraPos, viewportMask) {
		case rangeBeyondEnd:
			idata.Flags = idata.Flags&^visibilityDependencyStateMask | FLAG_VISIBILITY_DEPENDENCY_HIDDEN
		case rangeBeforeBegin:
			idata.Flags = idata.Flags&^visibilityDependencyStateMask | FLAG_VISIBILITY_DEPENDENCY_HIDDEN_CLOSE_RANGE
		case rangeFade:
			idata.Flags = idata.Flags&^visibilityDependencyStateMask | FLAG_VISIBILITY_DEPENDENCY_FADE_CHILDREN
		default:
			idata.Flags &^= visibilityDependencyStateMask
		}
	}
}

/**
 * @brief Reports whether the visibility parent of a cull record lets it be
 * drawn after the last VisibilityCull: the parent is hidden only because
 * the camera is too close, or it is fading its children in.
 */
func (c *RendererSceneCull) VisibilityParentCheck(scenario *Scenario, idata *InstanceData) bool {
	if idata.ParentArrayIndex == -1 {
		return true
	}
	parentFlags := scenario.instanceData[idata.ParentArrayIndex].Flags
	return parentFlags&FLAG_VISIBILITY_DEPENDENCY_NEEDS_CHECK == FLAG_VISIBILITY_DEPENDENCY_HIDDEN_CLOSE_RANGE ||
		parentFlags&FLAG_VISIBILITY_DEPENDENCY_FADE_CHILDREN != 0
}

// InstanceIsVisibilityHidden reports whether the last VisibilityCull hid
// the instance because of its range or an ancestor's.
func (c *RendererSceneCull) InstanceIsVisibilityHidden(rid core.RID) bool {
	instance := c.getInstance(rid, "InstanceIsVisibilityHidden")
	if instance == nil {
		return false
	}
	idata := instance.data()
	if idata == nil {
		return false
	}
	return idata.Flags&FLAG_VISIBILITY_DEPENDENCY_HIDDEN != 0
}

// InstanceVisibilityFlags returns the visibility dependency bits of the
// instance's cull record, 0 when it is not paired.
func (c *RendererSceneCull) InstanceVisibilityFlags(rid core.RID) uint32 {
	instance := c.getInstance(rid, "InstanceVisibilityFlags")
	if instance == nil {
		return 0
	}
	idata := instance.data()
	if idata == nil {
		return 0
	}
	return idata.Flags & visibilityDependencyStateMask
}
