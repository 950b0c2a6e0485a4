package testbed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/scenecull/engine"
	"github.com/spaghettifunk/scenecull/engine/config"
	"github.com/spaghettifunk/scenecull/engine/core"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Engine.Frames = 5
	cfg.Engine.TargetFPS = 0
	cfg.Jobs.Workers = 2
	cfg.Testbed.Instances = 200
	cfg.Testbed.Spread = 100
	cfg.SpatialIndexer.ThreadedCullMinimumInstances = 16
	return cfg
}

func TestTestbedRunsAndCleansUp(t *testing.T) {
	tg, err := NewTestGame(testConfig(), "")
	require.NoError(t, err)
	e, err := engine.New(tg.Game)
	require.NoError(t, err)
	require.NoError(t, e.Initialize())

	state := tg.state()
	assert.Len(t, state.roots, 200)
	assert.NotEqual(t, state.WorldCamera.ViewportMask, state.OverviewCamera.ViewportMask)

	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, uint64(5), e.FrameCount())

	cull := tg.Renderer.Cull()
	assert.GreaterOrEqual(t, cull.ScenarioInstanceCount(state.scenario), 200)
	// every view ran a range cull on every frame
	assert.Positive(t, e.Metrics().Last.VisibilityCulls)

	// a reload shrinks the scene on the next update
	tg.ApplicationConfig.Config.Testbed.Instances = 50
	tg.onConfigReloaded(core.EVENT_CODE_CONFIG_RELOADED, nil, tg, core.EventContext{})
	require.NoError(t, tg.Update(0.016))
	assert.Len(t, state.roots, 50)
	for _, m := range state.movers {
		assert.True(t, cull.IsInstance(m.rid))
	}

	scenario := state.scenario
	require.NoError(t, e.Shutdown())
	assert.Empty(t, state.roots)
	assert.False(t, cull.IsScenario(scenario))
	assert.Zero(t, tg.Storage.GlobalShaderParametersAllocated())
}
