package testbed

import (
	"sync/atomic"

	"github.com/chewxy/math32"
	"golang.org/x/exp/rand"

	"github.com/spaghettifunk/scenecull/engine"
	"github.com/spaghettifunk/scenecull/engine/config"
	"github.com/spaghettifunk/scenecull/engine/core"
	"github.com/spaghettifunk/scenecull/engine/math"
	"github.com/spaghettifunk/scenecull/engine/renderer/components"
	"github.com/spaghettifunk/scenecull/engine/renderer/metadata"
)

// OVERVIEW_CAMERA_NAME is the second, static camera looking at the scene
// from above. It has its own viewport bit.
const OVERVIEW_CAMERA_NAME = "overview"

type TestGame struct {
	*engine.Game
}

type mover struct {
	rid    core.RID
	origin math.Vec3
	phase  float32
	radius float32
}

type gameState struct {
	rng      *rand.Rand
	scenario core.RID
	time     float32

	WorldCamera    *components.Camera
	OverviewCamera *components.Camera
	cameraSpeed    float32

	materials []core.RID
	meshes    []core.RID
	proxy     core.RID

	// every root instance spawned, in spawn order
	roots []core.RID
	// LOD children by root
	children map[core.RID][]core.RID
	movers   []mover

	reloaded atomic.Bool
	frames   uint64
}

func NewTestGame(cfg config.Config, configPath string) (*TestGame, error) {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: &engine.ApplicationConfig{
				StartWidth:  1280,
				StartHeight: 720,
				Name:        cfg.Engine.Name,
				ConfigPath:  configPath,
				Config:      cfg,
			},
			State: &gameState{
				children:    make(map[core.RID][]core.RID),
				cameraSpeed: 5,
			},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg, nil
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *TestGame) Initialize() error {
	core.LogInfo("initializing testbed...")
	state := g.state()
	tb := g.ApplicationConfig.Config.Testbed
	state.rng = rand.New(rand.NewSource(tb.Seed))

	cameras := g.SystemManager.CameraSystem
	state.WorldCamera = cameras.GetDefault()
	state.WorldCamera.SetPosition(math.NewVec3(tb.Spread/2, 2, tb.Spread))
	overview, err := cameras.Acquire(OVERVIEW_CAMERA_NAME)
	if err != nil {
		return err
	}
	overview.SetPosition(math.NewVec3(tb.Spread/2, tb.Spread, tb.Spread/2))
	state.OverviewCamera = overview

	storage := g.Storage
	tint := metadata.InstanceShaderParam{Name: "tint", Type: metadata.SHADER_PARAMETER_TYPE_COLOR, Index: 0, DefaultValue: [4]float32{1, 1, 1, 1}}
	state.materials = []core.RID{
		storage.MaterialCreate(true, false),
		storage.MaterialCreate(true, false, tint),
		storage.MaterialCreate(false, true),
	}
	for _, size := range []float32{0.5, 1, 2, 4} {
		h := size / 2
		aabb := math.NewAABB(math.NewVec3(-h, -h, -h), math.NewVec3(size, size, size))
		mat := state.materials[state.rng.Intn(len(state.materials))]
		state.meshes = append(state.meshes, storage.MeshCreate(aabb, mat))
	}
	state.proxy = storage.MeshCreate(math.NewAABB(math.NewVec3(-8, -8, -8), math.NewVec3(16, 16, 16)), state.materials[0])

	state.scenario = g.Renderer.Cull().ScenarioCreate()
	g.spawn(tb.Instances)

	core.LogInfo("testbed spawned %d root instances in scenario %s", len(state.roots), state.scenario)

	core.EventRegister(core.EVENT_CODE_CONFIG_RELOADED, g, g.onConfigReloaded)
	return nil
}

func (g *TestGame) randomPosition() math.Vec3 {
	state := g.state()
	spread := g.ApplicationConfig.Config.Testbed.Spread
	return math.NewVec3(state.rng.Float32()*spread, state.rng.Float32()*spread/8, state.rng.Float32()*spread)
}

// spawn adds count root instances to the scenario.
func (g *TestGame) spawn(count int) {
	state := g.state()
	cull := g.Renderer.Cull()
	storage := g.Storage
	spread := g.ApplicationConfig.Config.Testbed.Spread

	for i := 0; i < count; i++ {
		pos := g.randomPosition()
		var rid core.RID

		switch kind := state.rng.Intn(20); {
		case kind < 14:
			rid = cull.InstanceCreate2(state.meshes[state.rng.Intn(len(state.meshes))], state.scenario)
			cull.InstanceGeometrySetVisibilityRange(rid, 0, spread/3, 0, 2, metadata.VISIBILITY_RANGE_FADE_DISABLED)
			if state.rng.Intn(4) == 0 {
				cull.InstanceGeometrySetShaderParameter(rid, "tint", [4]float32{state.rng.Float32(), state.rng.Float32(), state.rng.Float32(), 1})
			}
			if state.rng.Intn(10) == 0 {
				state.movers = append(state.movers, mover{rid: rid, origin: pos, phase: state.rng.Float32() * 2 * math32.Pi, radius: 1 + state.rng.Float32()*4})
			}
		case kind < 16:
			rid = g.spawnLOD(pos)
		case kind < 18:
			rid = cull.InstanceCreate2(storage.ParticlesCreate(math.AABB{}), state.scenario)
			bounds := math.NewAABB(math.NewVec3(-3, -3, -3), math.NewVec3(6, 6, 6))
			cull.InstanceSetCustomAABB(rid, &bounds)
			state.movers = append(state.movers, mover{rid: rid, origin: pos, phase: state.rng.Float32() * 2 * math32.Pi, radius: 6})
		default:
			size := 4 + state.rng.Float32()*8
			rid = cull.InstanceCreate2(storage.ParticlesCollisionCreate(math.NewAABB(math.NewVec3(-size/2, -size/2, -size/2), math.NewVec3(size, size, size)), state.rng.Intn(3) == 0), state.scenario)
		}

		cull.InstanceSetTransform(rid, math.NewTransformFromPosition(pos))
		cull.InstanceAttachObjectInstanceID(rid, uint64(len(state.roots)))
		state.roots = append(state.roots, rid)
	}
}

/**
 * @brief Builds a two level HLOD chain: a coarse proxy seen from afar whose
 * close range hands over to detailed children, which in turn hand over to
 * even finer grandchildren.
 */
func (g *TestGame) spawnLOD(pos math.Vec3) core.RID {
	state := g.state()
	cull := g.Renderer.Cull()
	spread := g.ApplicationConfig.Config.Testbed.Spread

	root := cull.InstanceCreate2(state.proxy, state.scenario)
	cull.InstanceGeometrySetVisibilityRange(root, 30, spread, 2, 4, metadata.VISIBILITY_RANGE_FADE_DEPENDENCIES)

	var children []core.RID
	for c := 0; c < 4; c++ {
		offset := math.NewVec3(float32(c%2)*4-2, 0, float32(c/2)*4-2)
		child := cull.InstanceCreate2(state.meshes[2], state.scenario)
		cull.InstanceSetTransform(child, math.NewTransformFromPosition(pos.Add(offset)))
		cull.InstanceGeometrySetVisibilityRange(child, 10, 32, 1, 2, metadata.VISIBILITY_RANGE_FADE_SELF)
		cull.InstanceSetVisibilityParent(child, root)
		children = append(children, child)

		detail := cull.InstanceCreate2(state.meshes[0], state.scenario)
		cull.InstanceSetTransform(detail, math.NewTransformFromPosition(pos.Add(offset).Add(math.NewVec3(0, 1, 0))))
		cull.InstanceSetVisibilityParent(detail, child)
		children = append(children, detail)
	}
	state.children[root] = children
	return root
}

// despawn frees the count most recent root instances and their children.
func (g *TestGame) despawn(count int) {
	state := g.state()
	cull := g.Renderer.Cull()
	count = min(count, len(state.roots))
	removed := make(map[core.RID]struct{}, count)

	for i := 0; i < count; i++ {
		rid := state.roots[len(state.roots)-1]
		state.roots = state.roots[:len(state.roots)-1]
		// children first, so no child ever points at a freed parent
		for j := len(state.children[rid]) - 1; j >= 0; j-- {
			cull.Free(state.children[rid][j])
		}
		delete(state.children, rid)
		cull.Free(rid)
		removed[rid] = struct{}{}
	}

	kept := state.movers[:0]
	for _, m := range state.movers {
		if _, ok := removed[m.rid]; !ok {
			kept = append(kept, m)
		}
	}
	state.movers = kept
}

func (g *TestGame) Update(deltaTime float64) error {
	state := g.state()
	state.frames++
	dt := float32(deltaTime)
	state.time += dt

	if state.reloaded.Swap(false) {
		g.resize()
	}

	// fly the world camera along a slow circle
	cam := state.WorldCamera
	cam.MoveForward(state.cameraSpeed * dt)
	cam.Yaw(0.1 * dt)

	cull := g.Renderer.Cull()
	for _, m := range state.movers {
		angle := state.time + m.phase
		s, c := math32.Sincos(angle)
		pos := m.origin.Add(math.NewVec3(c*m.radius, 0, s*m.radius))
		cull.InstanceSetTransform(m.rid, math.NewTransformFromPosition(pos))
	}

	if state.frames%600 == 0 {
		g.logStats()
	}
	return nil
}

// resize matches the scene to the configured instance count after a reload.
func (g *TestGame) resize() {
	state := g.state()
	want := g.ApplicationConfig.Config.Testbed.Instances
	switch have := len(state.roots); {
	case want > have:
		g.spawn(want - have)
	case want < have:
		g.despawn(have - want)
	default:
		return
	}
	core.LogInfo("testbed now has %d root instances", len(state.roots))
}

func (g *TestGame) logStats() {
	state := g.state()
	cull := g.Renderer.Cull()
	hidden := 0
	for _, rid := range state.roots {
		if cull.InstanceIsVisibilityHidden(rid) {
			hidden++
		}
	}
	geometry, volumes := cull.ScenarioIndexerLeafCount(state.scenario)
	core.LogInfo("testbed: %d instances (%d geometry leaves, %d volume leaves), %d pairs, %d/%d roots hidden, %d shader slots",
		cull.ScenarioInstanceCount(state.scenario), geometry, volumes, cull.PairCount(), hidden, len(state.roots),
		g.Storage.GlobalShaderParametersAllocated())
}

func (g *TestGame) Render(packet *metadata.RenderPacket, deltaTime float64) error {
	state := g.state()
	for _, view := range []struct {
		name   string
		camera *components.Camera
	}{
		{components.DEFAULT_CAMERA_NAME, state.WorldCamera},
		{OVERVIEW_CAMERA_NAME, state.OverviewCamera},
	} {
		packet.AddView(&metadata.RenderViewPacket{
			Name:           view.name,
			Scenario:       state.scenario,
			CameraPosition: view.camera.GetPosition(),
			ViewportMask:   view.camera.ViewportMask,
		})
	}
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	core.LogDebug("testbed render size %dx%d", width, height)
	return nil
}

func (g *TestGame) Shutdown() error {
	state := g.state()
	core.EventUnregister(core.EVENT_CODE_CONFIG_RELOADED, g)
	g.despawn(len(state.roots))
	g.Renderer.Cull().Free(state.scenario)
	g.SystemManager.CameraSystem.Release(OVERVIEW_CAMERA_NAME)
	return nil
}

// onConfigReloaded runs on the watcher goroutine; the scene is resized on
// the next Update.
func (g *TestGame) onConfigReloaded(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	g.state().reloaded.Store(true)
	return false
}
