package dummy

import (
	"sync"

	"github.com/spaghettifunk/scenecull/engine/core"
	"github.com/spaghettifunk/scenecull/engine/math"
	"github.com/spaghettifunk/scenecull/engine/renderer/metadata"
)

/**
 * @brief Draw state recorded for one instance. Fields mirror the last value
 * pushed by the scene cull; TransformUpdates counts SetTransform calls.
 *
 * The scene cull only calls SetParentFadeAlpha from worker goroutines, and
 * never for the same instance twice in one pass.
 */
type GeometryInstance struct {
	Base core.RID

	Transform        math.Transform3D
	AABB             math.AABB
	TransformedAABB  math.AABB
	TransformUpdates int

	Skeleton         core.RID
	MaterialOverride core.RID
	MaterialOverlay  core.RID
	SurfaceMaterials []core.RID
	MeshInstance     core.RID

	LayerMask     uint32
	SortingOffset float32
	UseAABBCenter bool

	FadeBeginEnabled bool
	FadeBeginMin     float32
	FadeBeginMax     float32
	FadeEndEnabled   bool
	FadeEndMin       float32
	FadeEndMax       float32
	ParentFadeAlpha  float32

	LODBias                float32
	Transparency           float32
	UseBakedLight          bool
	UseDynamicGI           bool
	CastDoubleSidedShadows bool
	ShaderUniformsOffset   int32
}

func (g *GeometryInstance) SetTransform(transform math.Transform3D, aabb math.AABB, transformedAABB math.AABB) {
	g.Transform = transform
	g.AABB = aabb
	g.TransformedAABB = transformedAABB
	g.TransformUpdates++
}

func (g *GeometryInstance) SetSkeleton(skeleton core.RID)         { g.Skeleton = skeleton }
func (g *GeometryInstance) SetMaterialOverride(material core.RID) { g.MaterialOverride = material }
func (g *GeometryInstance) SetMaterialOverlay(material core.RID)  { g.MaterialOverlay = material }
func (g *GeometryInstance) SetMeshInstance(meshInstance core.RID) { g.MeshInstance = meshInstance }
func (g *GeometryInstance) SetLayerMask(mask uint32)              { g.LayerMask = mask }
func (g *GeometryInstance) SetParentFadeAlpha(alpha float32)      { g.ParentFadeAlpha = alpha }
func (g *GeometryInstance) SetLODBias(bias float32)               { g.LODBias = bias }
func (g *GeometryInstance) SetTransparency(transparency float32)  { g.Transparency = transparency }
func (g *GeometryInstance) SetUseBakedLight(enable bool)          { g.UseBakedLight = enable }
func (g *GeometryInstance) SetUseDynamicGI(enable bool)           { g.UseDynamicGI = enable }
func (g *GeometryInstance) SetCastDoubleSidedShadows(enable bool) { g.CastDoubleSidedShadows = enable }
func (g *GeometryInstance) SetInstanceShaderUniformsOffset(offset int32) {
	g.ShaderUniformsOffset = offset
}

func (g *GeometryInstance) SetSurfaceMaterials(materials []core.RID) {
	g.SurfaceMaterials = append(g.SurfaceMaterials[:0], materials...)
}

func (g *GeometryInstance) SetPivotData(sortingOffset float32, useAABBCenter bool) {
	g.SortingOffset = sortingOffset
	g.UseAABBCenter = useAABBCenter
}

func (g *GeometryInstance) SetFadeRange(beginEnabled bool, beginMin, beginMax float32, endEnabled bool, endMin, endMax float32) {
	g.FadeBeginEnabled = beginEnabled
	g.FadeBeginMin = beginMin
	g.FadeBeginMax = beginMax
	g.FadeEndEnabled = endEnabled
	g.FadeEndMin = endMin
	g.FadeEndMax = endMax
}

type renderBuffers struct {
	width, height uint32
}

func (b *renderBuffers) Configure(width, height uint32) {
	b.width = width
	b.height = height
}

/**
 * @brief A scene renderer that draws nothing. It hands out recording
 * geometry instances and counts the frames it was asked to prepare.
 */
type SceneRender struct {
	mu        sync.Mutex
	instances map[*GeometryInstance]struct{}
	updates   int
	time      float64
	step      float64
	debugDraw metadata.ViewportDebugDraw
}

func NewSceneRender() *SceneRender {
	return &SceneRender{instances: make(map[*GeometryInstance]struct{})}
}

func (r *SceneRender) GeometryInstanceCreate(base core.RID) metadata.GeometryInstance {
	r.mu.Lock()
	defer r.mu.Unlock()

	g := &GeometryInstance{
		Base:                 base,
		Transform:            math.NewTransformIdentity(),
		LayerMask:            1,
		ParentFadeAlpha:      1,
		LODBias:              1,
		ShaderUniformsOffset: -1,
	}
	r.instances[g] = struct{}{}
	return g
}

func (r *SceneRender) GeometryInstanceFree(instance metadata.GeometryInstance) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := instance.(*GeometryInstance)
	if !ok {
		core.LogError("GeometryInstanceFree: foreign geometry instance %T", instance)
		return
	}
	delete(r.instances, g)
}

// GeometryInstanceCount is the number of live geometry instances.
func (r *SceneRender) GeometryInstanceCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.instances)
}

func (r *SceneRender) RenderBuffersCreate() metadata.RenderSceneBuffers {
	return &renderBuffers{}
}

func (r *SceneRender) Update() {
	r.mu.Lock()
	r.updates++
	r.mu.Unlock()
}

// Updates counts the Update calls.
func (r *SceneRender) Updates() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updates
}

// Free is a no-op: this renderer owns no handles of its own.
func (r *SceneRender) Free(rid core.RID) bool {
	return false
}

func (r *SceneRender) SetTime(time float64, step float64) {
	r.mu.Lock()
	r.time = time
	r.step = step
	r.mu.Unlock()
}

func (r *SceneRender) SetDebugDrawMode(mode metadata.ViewportDebugDraw) {
	r.mu.Lock()
	r.debugDraw = mode
	r.mu.Unlock()
}

// Time returns the last values passed to SetTime.
func (r *SceneRender) Time() (float64, float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.time, r.step
}

func (r *SceneRender) DebugDrawMode() metadata.ViewportDebugDraw {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.debugDraw
}
