package metadata

import "github.com/spaghettifunk/scenecull/engine/core"

type DependencyChangedNotification int

const (
	DEPENDENCY_CHANGED_AABB DependencyChangedNotification = iota
	DEPENDENCY_CHANGED_MATERIAL
	DEPENDENCY_CHANGED_MESH
	DEPENDENCY_CHANGED_MULTIMESH
	DEPENDENCY_CHANGED_PARTICLES
	DEPENDENCY_CHANGED_SKELETON_DATA
	DEPENDENCY_CHANGED_SKELETON_BONES
	DEPENDENCY_CHANGED_PARTICLES_INSTANCES
)

/**
 * @brief Records which resources an object currently depends on so that
 * storages can notify it when one of them changes. Dependencies are
 * re-declared between UpdateBegin and UpdateEnd; anything not declared
 * again is dropped.
 */
type DependencyTracker struct {
	OnChanged func(what DependencyChangedNotification, rid core.RID)
	OnDeleted func(rid core.RID)

	pass         uint64
	dependencies map[core.RID]uint64
}

func NewDependencyTracker() *DependencyTracker {
	return &DependencyTracker{dependencies: make(map[core.RID]uint64)}
}

func (dt *DependencyTracker) UpdateBegin() {
	dt.pass++
}

// Track declares rid as a dependency for the current pass.
func (dt *DependencyTracker) Track(rid core.RID) {
	if rid.IsNull() {
		return
	}
	dt.dependencies[rid] = dt.pass
}

// UpdateEnd drops dependencies not declared since UpdateBegin and returns
// them.
func (dt *DependencyTracker) UpdateEnd() []core.RID {
	var dropped []core.RID
	for rid, pass := range dt.dependencies {
		if pass != dt.pass {
			dropped = append(dropped, rid)
			delete(dt.dependencies, rid)
		}
	}
	return dropped
}

func (dt *DependencyTracker) DependsOn(rid core.RID) bool {
	_, ok := dt.dependencies[rid]
	return ok
}

func (dt *DependencyTracker) Len() int {
	return len(dt.dependencies)
}

// Changed is called by storages when a tracked resource changed.
func (dt *DependencyTracker) Changed(what DependencyChangedNotification, rid core.RID) {
	if dt.OnChanged != nil && dt.DependsOn(rid) {
		dt.OnChanged(what, rid)
	}
}

// Deleted is called by storages when a tracked resource was freed.
func (dt *DependencyTracker) Deleted(rid core.RID) {
	if !dt.DependsOn(rid) {
		return
	}
	delete(dt.dependencies, rid)
	if dt.OnDeleted != nil {
		dt.OnDeleted(rid)
	}
}

// Clear forgets every dependency.
func (dt *DependencyTracker) Clear() {
	for rid := range dt.dependencies {
		delete(dt.dependencies, rid)
	}
}
