package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/scenecull/engine/config"
	"github.com/spaghettifunk/scenecull/engine/core"
	"github.com/spaghettifunk/scenecull/engine/renderer"
	"github.com/spaghettifunk/scenecull/engine/renderer/dummy"
	"github.com/spaghettifunk/scenecull/engine/renderer/metadata"
	"github.com/spaghettifunk/scenecull/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

// metricsLogInterval is how many frames pass between two metrics log lines.
const metricsLogInterval = 120

/**
 * @brief Runs the headless frame loop: the game moves its instances, the
 * renderer drains the scene cull and runs the visibility cull of every
 * view the game submits.
 */
type Engine struct {
	currentStage  Stage
	gameInstance  *Game
	isRunning     atomic.Bool
	isSuspended   bool
	backend       *dummy.Backend
	renderer      *renderer.Renderer
	systemManager *systems.SystemManager
	watcher       *config.Watcher
	width         uint32
	height        uint32
	clock         *core.Clock
	metrics       *core.Metrics
	lastTime      time.Duration
	frameCount    uint64

	pendingMutex  sync.Mutex
	pendingConfig *config.Config
	reloads       uint64
}

func New(g *Game) (*Engine, error) {
	cfg := g.ApplicationConfig.Config
	if err := cfg.Validate(); err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	sm, err := systems.NewSystemManager(cfg)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	return &Engine{
		currentStage:  EngineStageBootComplete,
		gameInstance:  g,
		systemManager: sm,
		clock:         core.NewClock(),
		metrics:       core.NewMetrics(),
		width:         g.ApplicationConfig.StartWidth,
		height:        g.ApplicationConfig.StartHeight,
	}, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing
	app := e.gameInstance.ApplicationConfig
	applyLogLevel(app.Config.Log.Level)

	// initialize events
	if !core.EventInitialize() {
		return fmt.Errorf("failed to initialize the event system")
	}
	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	core.EventRegister(core.EVENT_CODE_RESIZED, e, e.onResized)

	e.backend = dummy.NewBackend()
	r, err := renderer.New(e.backend, &metadata.RendererBackendConfig{
		ApplicationName: app.Name,
		Width:           e.width,
		Height:          e.height,
	}, app.Config.SpatialIndexer, e.systemManager.JobSystem)
	if err != nil {
		return err
	}
	e.renderer = r

	if app.ConfigPath != "" {
		w, err := config.NewWatcher(app.ConfigPath, e.onConfigReload)
		if err != nil {
			return fmt.Errorf("watching %s: %w", app.ConfigPath, err)
		}
		e.watcher = w
	}

	e.gameInstance.SystemManager = e.systemManager
	e.gameInstance.Renderer = e.renderer
	e.gameInstance.Storage = e.backend.DummyStorage()

	if err := e.gameInstance.FnInitialize(); err != nil {
		return err
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}
	e.currentStage = EngineStageInitialized
	return nil
}

/**
 * @brief Runs frames until ctx is done, the game quits, or the configured
 * frame count is reached.
 */
func (e *Engine) Run(ctx context.Context) error {
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.isRunning.Load() {
		select {
		case <-ctx.Done():
			core.LogInfo("context done, stopping the frame loop")
			e.isRunning.Store(false)
			continue
		default:
		}

		e.applyPendingConfig()
		cfg := e.gameInstance.ApplicationConfig.Config

		if e.isSuspended {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		// Update clock and get delta time.
		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := (currentTime - e.lastTime).Seconds()
		frameStartTime := time.Now()

		if err := e.gameInstance.FnUpdate(delta); err != nil {
			core.LogError("Game update failed, shutting down: %s", err)
			e.isRunning.Store(false)
			return err
		}

		packet := &metadata.RenderPacket{DeltaTime: delta}
		if err := e.gameInstance.FnRender(packet, delta); err != nil {
			core.LogError("Game render failed, shutting down: %s", err)
			e.isRunning.Store(false)
			return err
		}

		if err := e.renderer.DrawFrame(packet); err != nil {
			e.isRunning.Store(false)
			return err
		}

		frameElapsedTime := time.Since(frameStartTime)
		counters := e.renderer.Cull().Metrics()
		e.metrics.Update(frameElapsedTime, counters)
		e.frameCount++
		e.fireFrameEnd(frameElapsedTime, counters)

		if e.frameCount%metricsLogInterval == 0 {
			fps, ms := e.metrics.Frame()
			core.LogDebug("frame %d: %.0f fps, %.3f ms avg, dirty %d, pairs +%d/-%d, range culls %d",
				e.frameCount, fps, ms, counters.DirtyInstances, counters.PairsCreated, counters.PairsDestroyed, counters.VisibilityCulls)
		}

		// Figure out how long the frame took and, if below the target,
		// give the time back.
		if cfg.Engine.TargetFPS > 0 {
			target := time.Second / time.Duration(cfg.Engine.TargetFPS)
			if remaining := target - frameElapsedTime; remaining > 0 {
				time.Sleep(remaining)
			}
		}

		if cfg.Engine.Frames > 0 && e.frameCount >= uint64(cfg.Engine.Frames) {
			e.isRunning.Store(false)
		}

		// Update last time
		e.lastTime = currentTime
	}
	e.clock.Stop()
	return nil
}

// Stop asks the frame loop to exit after the current frame. Safe to call
// from any goroutine.
func (e *Engine) Stop() {
	core.EventFire(core.EVENT_CODE_APPLICATION_QUIT, e, core.EventContext{})
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	var errs []error
	if e.watcher != nil {
		errs = append(errs, e.watcher.Close())
		e.watcher = nil
	}
	if e.gameInstance.FnShutdown != nil {
		errs = append(errs, e.gameInstance.FnShutdown())
	}
	if e.renderer != nil {
		errs = append(errs, e.renderer.Shutdown())
	}
	errs = append(errs, e.systemManager.Shutdown())
	errs = append(errs, core.EventShutdown())
	e.currentStage = EngineStageUninitialized
	return errors.Join(errs...)
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

func (e *Engine) Renderer() *renderer.Renderer {
	return e.renderer
}

func (e *Engine) Metrics() *core.Metrics {
	return e.metrics
}

func (e *Engine) FrameCount() uint64 {
	return e.frameCount
}

// GetFramebufferSize returns the width and height (in this order) of the
// render buffers.
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

// onConfigReload runs on the watcher goroutine. The new config is applied
// by the frame loop.
func (e *Engine) onConfigReload(cfg config.Config) {
	e.pendingMutex.Lock()
	e.pendingConfig = &cfg
	e.reloads++
	generation := e.reloads
	e.pendingMutex.Unlock()

	var ctx core.EventContext
	ctx.Data.U64[0] = generation
	core.EventFire(core.EVENT_CODE_CONFIG_RELOADED, e, ctx)
}

func (e *Engine) applyPendingConfig() {
	e.pendingMutex.Lock()
	pending := e.pendingConfig
	e.pendingConfig = nil
	e.pendingMutex.Unlock()
	if pending == nil {
		return
	}

	app := e.gameInstance.ApplicationConfig
	if pending.Jobs != app.Config.Jobs {
		core.LogWarn("jobs settings change on restart only")
		pending.Jobs = app.Config.Jobs
	}
	applyLogLevel(pending.Log.Level)
	e.renderer.ApplyIndexerConfig(pending.SpatialIndexer)
	app.Config = *pending
}

func (e *Engine) fireFrameEnd(elapsed time.Duration, counters core.CullCounters) {
	var ctx core.EventContext
	ctx.Data.U64[0] = e.frameCount
	ctx.Data.F64[0] = float64(elapsed) / float64(time.Millisecond)
	ctx.Data.I32[0] = int32(counters.DirtyInstances)
	ctx.Data.I32[1] = int32(counters.PairsCreated)
	ctx.Data.I32[2] = int32(counters.PairsDestroyed)
	ctx.Data.I32[3] = int32(counters.VisibilityCulls)
	core.EventFire(core.EVENT_CODE_FRAME_END, e, ctx)
}

func (e *Engine) onEvent(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	switch code {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning.Store(false)
		return true
	}
	return false
}

func (e *Engine) onResized(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	if code != core.EVENT_CODE_RESIZED {
		return false
	}
	width := data.Data.U32[0]
	height := data.Data.U32[1]

	// Check if different. If so, trigger a resize event.
	if width == e.width && height == e.height {
		return false
	}
	e.width = width
	e.height = height
	core.LogDebug("Render buffers resize: %d, %d", width, height)

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Render buffers empty, suspending application.")
		e.isSuspended = true
		return true
	}
	if e.isSuspended {
		core.LogInfo("Render buffers restored, resuming application.")
		e.isSuspended = false
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(width, height); err != nil {
			core.LogError(err.Error())
		}
	}
	if err := e.renderer.OnResize(width, height); err != nil {
		core.LogError(err.Error())
	}
	return true
}

func applyLogLevel(level string) {
	l, err := core.ParseLogLevel(level)
	if err != nil {
		core.LogWarn(err.Error())
		return
	}
	core.SetLogLevel(l)
}
