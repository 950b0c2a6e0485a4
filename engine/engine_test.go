package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/scenecull/engine/config"
	"github.com/spaghettifunk/scenecull/engine/core"
	"github.com/spaghettifunk/scenecull/engine/math"
	"github.com/spaghettifunk/scenecull/engine/renderer/metadata"
)

// countingGame places a single mesh and reports one view per frame.
type countingGame struct {
	*Game
	scenario core.RID
	instance core.RID
	updates  int
	renders  int
	resized  [2]uint32
	stopAt   int
	engine   *Engine
	fail     error
}

func newCountingGame(frames int) *countingGame {
	cfg := config.Default()
	cfg.Engine.Frames = frames
	cfg.Engine.TargetFPS = 0
	cfg.Jobs.Workers = 2
	g := &countingGame{Game: &Game{
		ApplicationConfig: &ApplicationConfig{Name: "test", StartWidth: 320, StartHeight: 200, Config: cfg},
	}}
	g.FnInitialize = func() error {
		cull := g.Renderer.Cull()
		g.scenario = cull.ScenarioCreate()
		mesh := g.Storage.MeshCreate(math.NewAABB(math.NewVec3(-1, -1, -1), math.NewVec3(2, 2, 2)))
		g.instance = cull.InstanceCreate2(mesh, g.scenario)
		cull.InstanceGeometrySetVisibilityRange(g.instance, 0, 10, 0, 0, metadata.VISIBILITY_RANGE_FADE_DISABLED)
		return nil
	}
	g.FnUpdate = func(float64) error {
		g.updates++
		if g.stopAt > 0 && g.updates == g.stopAt {
			g.engine.Stop()
		}
		return g.fail
	}
	g.FnRender = func(packet *metadata.RenderPacket, _ float64) error {
		g.renders++
		packet.AddView(&metadata.RenderViewPacket{Scenario: g.scenario, CameraPosition: math.NewVec3(0, 0, 50), ViewportMask: 1})
		return nil
	}
	g.FnOnResize = func(w, h uint32) error {
		g.resized = [2]uint32{w, h}
		return nil
	}
	return g
}

func start(t *testing.T, g *countingGame) *Engine {
	t.Helper()
	e, err := New(g.Game)
	require.NoError(t, err)
	g.engine = e
	require.NoError(t, e.Initialize())
	assert.Equal(t, EngineStageInitialized, e.Stage())
	return e
}

func TestEngineRunsConfiguredFrames(t *testing.T) {
	g := newCountingGame(3)
	e := start(t, g)
	assert.Equal(t, [2]uint32{320, 200}, g.resized)

	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, 3, g.updates)
	assert.Equal(t, 3, g.renders)
	assert.Equal(t, uint64(3), e.FrameCount())
	assert.Equal(t, uint64(3), e.Renderer().FrameNumber())
	assert.Equal(t, 1, e.Metrics().Last.VisibilityCulls)
	assert.Equal(t, 1, e.Metrics().Total.DirtyInstances)
	assert.True(t, e.Renderer().Cull().InstanceIsVisibilityHidden(g.instance))

	require.NoError(t, e.Shutdown())
	assert.Equal(t, EngineStageUninitialized, e.Stage())
}

func TestEngineStopsOnQuitEvent(t *testing.T) {
	g := newCountingGame(0)
	g.stopAt = 2
	e := start(t, g)
	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, 2, g.updates)
	require.NoError(t, e.Shutdown())
}

func TestEngineStopsOnCanceledContext(t *testing.T) {
	g := newCountingGame(0)
	e := start(t, g)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, e.Run(ctx))
	assert.Zero(t, g.updates)
	require.NoError(t, e.Shutdown())
}

func TestEngineReturnsGameErrors(t *testing.T) {
	g := newCountingGame(0)
	g.fail = errors.New("boom")
	e := start(t, g)
	assert.ErrorIs(t, e.Run(context.Background()), g.fail)
	require.NoError(t, e.Shutdown())
}

func TestEngineAppliesReloadedConfig(t *testing.T) {
	g := newCountingGame(1)
	e := start(t, g)

	reloaded := g.ApplicationConfig.Config
	reloaded.SpatialIndexer.ThreadedCullMinimumInstances = 7
	reloaded.Engine.Frames = 2
	reloaded.Jobs.Workers = 16
	e.onConfigReload(reloaded)

	require.NoError(t, e.Run(context.Background()))
	cfg := g.ApplicationConfig.Config
	assert.Equal(t, 7, cfg.SpatialIndexer.ThreadedCullMinimumInstances)
	assert.Equal(t, 2, g.updates)
	// worker count only changes on restart
	assert.Equal(t, 2, cfg.Jobs.Workers)
	require.NoError(t, e.Shutdown())
}

func TestEngineResizeEvent(t *testing.T) {
	g := newCountingGame(1)
	e := start(t, g)

	var ctx core.EventContext
	ctx.Data.U32[0] = 1024
	ctx.Data.U32[1] = 768
	assert.True(t, core.EventFire(core.EVENT_CODE_RESIZED, nil, ctx))
	w, h := e.GetFramebufferSize()
	assert.Equal(t, uint32(1024), w)
	assert.Equal(t, uint32(768), h)
	assert.Equal(t, [2]uint32{1024, 768}, g.resized)

	// same size is not handled again
	assert.False(t, core.EventFire(core.EVENT_CODE_RESIZED, nil, ctx))
	require.NoError(t, e.Shutdown())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	g := newCountingGame(1)
	g.ApplicationConfig.Config.Jobs.Workers = 0
	_, err := New(g.Game)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}
