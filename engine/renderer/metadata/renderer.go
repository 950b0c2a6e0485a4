package metadata

import (
	"github.com/spaghettifunk/scenecull/engine/core"
	"github.com/spaghettifunk/scenecull/engine/math"
)

/** @brief Settings handed to a renderer backend when it starts. */
type RendererBackendConfig struct {
	/** @brief The name of the application. */
	ApplicationName string
	/** @brief Width and height of the main viewport's render buffers. */
	Width  uint32
	Height uint32
	/** @brief Debug draw mode applied to the scene render. */
	DebugDraw ViewportDebugDraw
}

/**
 * @brief A single view of a scenario for one frame: the camera position
 * drives the visibility-range cull and the viewport mask selects the
 * hysteresis bits.
 */
type RenderViewPacket struct {
	Name           string
	Scenario       core.RID
	CameraPosition math.Vec3
	ViewportMask   uint64
}

/** @brief Everything the renderer needs to draw a frame. */
type RenderPacket struct {
	DeltaTime float64
	/** The number of views to be rendered. */
	ViewCount uint16
	/** An array of ViewPackets to be rendered. */
	ViewPackets []*RenderViewPacket
}

// AddView appends a view and keeps ViewCount in sync.
func (p *RenderPacket) AddView(view *RenderViewPacket) {
	p.ViewPackets = append(p.ViewPackets, view)
	p.ViewCount = uint16(len(p.ViewPackets))
}
