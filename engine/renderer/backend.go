package renderer

import "github.com/spaghettifunk/scenecull/engine/renderer/metadata"

/**
 * @brief A renderer backend owns the resource storages and the scene
 * render the scene cull talks to, and brackets every frame.
 */
type RendererBackend interface {
	Initialize(config *metadata.RendererBackendConfig) error
	Shutdown() error
	Resized(width, height uint32) error
	BeginFrame(deltaTime float64) error
	EndFrame(deltaTime float64) error
	Storage() metadata.Storage
	SceneRender() metadata.RendererSceneRender
}
