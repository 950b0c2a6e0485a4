package dummy

import (
	"fmt"

	"github.com/spaghettifunk/scenecull/engine/core"
	"github.com/spaghettifunk/scenecull/engine/renderer/metadata"
)

/**
 * @brief A headless renderer backend: frames are bracketed and counted but
 * nothing reaches a GPU. Used by the testbed, the benchmarks and the tests.
 */
type Backend struct {
	storage *Storage
	render  *SceneRender
	buffers metadata.RenderSceneBuffers

	config      metadata.RendererBackendConfig
	initialized bool
	inFrame     bool
	frameNumber uint64
}

func NewBackend() *Backend {
	return &Backend{
		storage: NewStorage(),
		render:  NewSceneRender(),
	}
}

func (b *Backend) Initialize(config *metadata.RendererBackendConfig) error {
	if b.initialized {
		return fmt.Errorf("dummy backend already initialized")
	}
	b.config = *config
	b.render.SetDebugDrawMode(config.DebugDraw)
	b.buffers = b.render.RenderBuffersCreate()
	b.buffers.Configure(config.Width, config.Height)
	b.initialized = true

	core.LogInfo("dummy renderer backend initialized for '%s' (%dx%d)", config.ApplicationName, config.Width, config.Height)
	return nil
}

func (b *Backend) Shutdown() error {
	if !b.initialized {
		return nil
	}
	b.initialized = false
	core.LogInfo("dummy renderer backend shut down after %d frames", b.frameNumber)
	return nil
}

func (b *Backend) Resized(width, height uint32) error {
	if !b.initialized {
		return fmt.Errorf("dummy backend not initialized")
	}
	b.config.Width = width
	b.config.Height = height
	b.buffers.Configure(width, height)
	return nil
}

func (b *Backend) BeginFrame(deltaTime float64) error {
	if !b.initialized {
		return fmt.Errorf("dummy backend not initialized")
	}
	if b.inFrame {
		return fmt.Errorf("BeginFrame called twice without EndFrame (frame %d)", b.frameNumber)
	}
	b.inFrame = true
	return nil
}

func (b *Backend) EndFrame(deltaTime float64) error {
	if !b.inFrame {
		return fmt.Errorf("EndFrame called without BeginFrame")
	}
	b.inFrame = false
	b.frameNumber++
	return nil
}

func (b *Backend) Storage() metadata.Storage {
	return b.storage.Bundle()
}

func (b *Backend) SceneRender() metadata.RendererSceneRender {
	return b.render
}

// DummyStorage exposes the concrete storage so callers can create resources.
func (b *Backend) DummyStorage() *Storage {
	return b.storage
}

func (b *Backend) DummySceneRender() *SceneRender {
	return b.render
}

// FrameNumber is the number of completed frames.
func (b *Backend) FrameNumber() uint64 {
	return b.frameNumber
}

func (b *Backend) Size() (uint32, uint32) {
	return b.config.Width, b.config.Height
}
