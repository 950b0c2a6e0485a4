package engine

import (
	"github.com/spaghettifunk/scenecull/engine/renderer"
	"github.com/spaghettifunk/scenecull/engine/renderer/dummy"
	"github.com/spaghettifunk/scenecull/engine/renderer/metadata"
	"github.com/spaghettifunk/scenecull/engine/systems"
)

/**
 * @brief The hooks a game hands to the engine. SystemManager, Renderer and
 * Storage are filled in by Engine.Initialize before FnInitialize runs.
 */
type Game struct {
	ApplicationConfig *ApplicationConfig
	SystemManager     *systems.SystemManager
	Renderer          *renderer.Renderer
	Storage           *dummy.Storage
	State             interface{}
	FnInitialize      Initialize
	FnUpdate          Update
	FnRender          Render
	FnOnResize        OnResize
	FnShutdown        Shutdown
}

type Initialize func() error
type Update func(deltaTime float64) error
type Render func(packet *metadata.RenderPacket, deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
