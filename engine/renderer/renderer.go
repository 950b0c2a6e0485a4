package renderer

import (
	"github.com/spaghettifunk/scenecull/engine/config"
	"github.com/spaghettifunk/scenecull/engine/core"
	"github.com/spaghettifunk/scenecull/engine/renderer/metadata"
	"github.com/spaghettifunk/scenecull/engine/renderer/scene"
)

/**
 * @brief The renderer front end. It owns the backend and the scene cull
 * built on the backend's storages, and drives both once per frame.
 */
type Renderer struct {
	backend RendererBackend
	cull    *scene.RendererSceneCull

	time        float64
	frameNumber uint64
}

/**
 * @brief Initializes the backend and builds the scene cull on top of it.
 * @param workers The pool used by the visibility cull. May be nil.
 */
func New(backend RendererBackend, backendConfig *metadata.RendererBackendConfig, indexer config.SpatialIndexerConfig, workers metadata.WorkerPool) (*Renderer, error) {
	if err := backend.Initialize(backendConfig); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	return &Renderer{
		backend: backend,
		cull:    scene.New(indexer, backend.Storage(), backend.SceneRender(), workers),
	}, nil
}

func (r *Renderer) Shutdown() error {
	return r.backend.Shutdown()
}

// Cull returns the scene cull every scenario and instance lives in.
func (r *Renderer) Cull() *scene.RendererSceneCull {
	return r.cull
}

func (r *Renderer) Backend() RendererBackend {
	return r.backend
}

func (r *Renderer) FrameNumber() uint64 {
	return r.frameNumber
}

func (r *Renderer) OnResize(width, height uint32) error {
	return r.backend.Resized(width, height)
}

// ApplyIndexerConfig pushes reloaded spatial index settings to the cull.
func (r *Renderer) ApplyIndexerConfig(cfg config.SpatialIndexerConfig) {
	r.cull.SetIndexerUpdateIterations(cfg.UpdateIterationsPerFrame)
	r.cull.SetThreadCullThreshold(cfg.ThreadedCullMinimumInstances)
}

/**
 * @brief Draws a frame: the scene cull processes every pending change,
 * then each view runs its visibility-range cull.
 */
func (r *Renderer) DrawFrame(renderPacket *metadata.RenderPacket) error {
	r.time += renderPacket.DeltaTime
	r.backend.SceneRender().SetTime(r.time, renderPacket.DeltaTime)

	if err := r.backend.BeginFrame(renderPacket.DeltaTime); err != nil {
		core.LogError(err.Error())
		return err
	}

	r.cull.Update()
	for _, view := range renderPacket.ViewPackets {
		r.cull.VisibilityCull(view.Scenario, view.CameraPosition, view.ViewportMask)
	}

	if err := r.backend.EndFrame(renderPacket.DeltaTime); err != nil {
		core.LogError("RendererEndFrame failed. Application shutting down...")
		return err
	}
	r.frameNumber++
	return nil
}
