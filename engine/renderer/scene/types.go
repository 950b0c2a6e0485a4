package scene

import (
	"github.com/google/uuid"

	"github.com/spaghettifunk/scenecull/engine/bvh"
	"github.com/spaghettifunk/scenecull/engine/containers"
	"github.com/spaghettifunk/scenecull/engine/core"
	"github.com/spaghettifunk/scenecull/engine/math"
	"github.com/spaghettifunk/scenecull/engine/renderer/metadata"
)

// Flags stored in InstanceData.Flags. The low byte holds the base type.
const (
	FLAG_BASE_TYPE_MASK                           uint32 = 0xFF
	FLAG_CAST_SHADOWS                             uint32 = 1 << 8
	FLAG_CAST_SHADOWS_ONLY                        uint32 = 1 << 9
	FLAG_REDRAW_IF_VISIBLE                        uint32 = 1 << 10
	FLAG_USES_BAKED_LIGHT                         uint32 = 1 << 16
	FLAG_USES_MESH_INSTANCE                       uint32 = 1 << 17
	FLAG_IGNORE_OCCLUSION_CULLING                 uint32 = 1 << 19
	FLAG_VISIBILITY_DEPENDENCY_HIDDEN_CLOSE_RANGE uint32 = 1 << 20
	FLAG_VISIBILITY_DEPENDENCY_HIDDEN             uint32 = 1 << 21
	FLAG_VISIBILITY_DEPENDENCY_NEEDS_CHECK        uint32 = FLAG_VISIBILITY_DEPENDENCY_HIDDEN_CLOSE_RANGE | FLAG_VISIBILITY_DEPENDENCY_HIDDEN
	FLAG_VISIBILITY_DEPENDENCY_FADE_CHILDREN      uint32 = 1 << 22
	FLAG_IGNORE_ALL_CULLING                       uint32 = 1 << 24
)

const visibilityDependencyStateMask = FLAG_VISIBILITY_DEPENDENCY_HIDDEN | FLAG_VISIBILITY_DEPENDENCY_HIDDEN_CLOSE_RANGE | FLAG_VISIBILITY_DEPENDENCY_FADE_CHILDREN

/**
 * @brief Per-instance record on the cull fast path. Lives in
 * Scenario.instanceData at the instance's array index.
 */
type InstanceData struct {
	Flags            uint32
	LayerMask        uint32
	BaseRID          core.RID
	InstanceGeometry metadata.GeometryInstance
	// ParentArrayIndex is the visibility parent's array index, -1 if none.
	ParentArrayIndex int32
	// VisibilityIndex is the entry in the visibility list, -1 if not listed.
	VisibilityIndex int32

	instance *Instance
}

func (d *InstanceData) BaseType() metadata.InstanceType {
	return metadata.InstanceType(d.Flags & FLAG_BASE_TYPE_MASK)
}

func (d *InstanceData) setFlag(flag uint32, enabled bool) {
	if enabled {
		d.Flags |= flag
	} else {
		d.Flags &^= flag
	}
}

/** @brief Visibility range state of one listed instance. */
type InstanceVisibilityData struct {
	RangeBegin       float32
	RangeEnd         float32
	RangeBeginMargin float32
	RangeEndMargin   float32
	FadeMode         metadata.VisibilityRangeFadeMode
	Position         math.Vec3
	ArrayIndex       int32
	// ViewportState has one bit per viewport that saw the instance within
	// range on its last check.
	ViewportState     uint64
	ChildrenFadeAlpha float32

	instance *Instance
}

// InstancePair links two overlapping instances that interact.
type InstancePair struct {
	a *Instance
	b *Instance
}

type indexerType int

const (
	indexerGeometry indexerType = iota
	indexerVolumes
	indexerMax
)

/**
 * @brief A world. Owns the spatial indexes and the cull arrays of every
 * instance placed in it.
 */
type Scenario struct {
	self core.RID
	// ID identifies the scenario in logs across runs.
	ID uuid.UUID

	indexers [indexerMax]*bvh.DynamicBVH[*Instance]

	instanceData       []InstanceData
	instanceAABBs      []math.AABB
	instanceVisibility *containers.BinSortedArray[InstanceVisibilityData]

	instances map[*Instance]struct{}
}

func (s *Scenario) RID() core.RID {
	return s.self
}

// InstanceDataLen returns the number of instances paired into the scenario.
func (s *Scenario) InstanceDataLen() int {
	return len(s.instanceData)
}

// InstanceDataAt returns the cull record at i.
func (s *Scenario) InstanceDataAt(i int) *InstanceData {
	return &s.instanceData[i]
}

func (s *Scenario) InstanceAABBAt(i int) math.AABB {
	return s.instanceAABBs[i]
}

func (s *Scenario) VisibilityLen() int {
	return s.instanceVisibility.Len()
}

func (s *Scenario) VisibilityAt(i int) *InstanceVisibilityData {
	return s.instanceVisibility.Get(i)
}

type instanceShaderParameter struct {
	info         metadata.InstanceShaderParam
	index        int32
	value        interface{}
	defaultValue interface{}
}

/**
 * @brief One placed object. Owned by the instance registry, referenced by
 * at most one scenario.
 */
type Instance struct {
	self     core.RID
	baseType metadata.InstanceType
	base     core.RID

	// geometry is set for geometry base types.
	geometry metadata.GeometryInstance
	// collisionInstance is set for particle collision bases.
	collisionInstance  core.RID
	materialIsAnimated bool
	canCastShadows     bool

	transform           math.Transform3D
	aabb                math.AABB
	transformedAABB     math.AABB
	prevTransformedAABB math.AABB
	customAABB          *math.AABB
	extraMargin         float32

	visible         bool
	layerMask       uint32
	sortingOffset   float32
	useAABBCenter   bool
	objectID        uint64
	lodBias         float32
	transparency    float32
	castShadows     metadata.ShadowCastingSetting
	bakedLight      bool
	dynamicGI       bool
	redrawIfVisible bool
	ignoreOcclusion bool
	ignoreCulling   bool

	skeleton         core.RID
	meshInstance     core.RID
	materials        []core.RID
	materialOverride core.RID
	materialOverlay  core.RID

	shaderUniforms          map[string]*instanceShaderParameter
	allocatedShaderUniforms bool
	shaderUniformsOffset    int32

	dependencyTracker *metadata.DependencyTracker

	scenario   *Scenario
	arrayIndex int32
	indexerID  bvh.ID

	pairs     []containers.Handle
	pairCheck uint64

	visibilityParent            *Instance
	visibilityDependencies      map[*Instance]struct{}
	visibilityDependenciesDepth int
	visibilityIndex             int32
	visibilityRangeBegin        float32
	visibilityRangeEnd          float32
	visibilityRangeBeginMargin  float32
	visibilityRangeEndMargin    float32
	visibilityRangeFadeMode     metadata.VisibilityRangeFadeMode

	updateAABB         bool
	updateDependencies bool
	inUpdateList       bool

	version uint64
}

func (i *Instance) init(self core.RID) {
	*i = Instance{
		self:                   self,
		transform:              math.NewTransformIdentity(),
		visible:                true,
		layerMask:              1,
		lodBias:                1,
		castShadows:            metadata.SHADOW_CASTING_SETTING_ON,
		shaderUniformsOffset:   -1,
		shaderUniforms:         make(map[string]*instanceShaderParameter),
		dependencyTracker:      metadata.NewDependencyTracker(),
		arrayIndex:             -1,
		indexerID:              bvh.InvalidID,
		visibilityDependencies: make(map[*Instance]struct{}),
		visibilityIndex:        -1,
	}
}

func (i *Instance) isGeometry() bool {
	return i.baseType.IsGeometry() && i.geometry != nil
}

func (i *Instance) indexer() indexerType {
	if i.baseType.IsGeometry() {
		return indexerGeometry
	}
	return indexerVolumes
}

// data returns the instance's cull record or nil when it is not paired.
func (i *Instance) data() *InstanceData {
	if i.scenario == nil || i.arrayIndex < 0 {
		return nil
	}
	return &i.scenario.instanceData[i.arrayIndex]
}

func (i *Instance) hasVisibilityRange() bool {
	return i.visibilityRangeBegin > 0 || i.visibilityRangeEnd > 0
}
