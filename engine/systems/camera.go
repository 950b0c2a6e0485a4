package systems

import (
	"fmt"

	"github.com/spaghettifunk/scenecull/engine/core"
	"github.com/spaghettifunk/scenecull/engine/renderer/components"
)

// maxViewports is the number of bits of a viewport mask.
const maxViewports = 64

const invalidCameraID = ^uint16(0)

type CameraSystem struct {
	Config  *CameraSystemConfig
	Lookup  map[string]uint16
	Cameras []*components.CameraLookup
	// A default, non-registered camera that always exists as a fallback.
	DefaultCamera *components.Camera
}

/** @brief The camera system configuration. */
type CameraSystemConfig struct {
	/**
	 * @brief The maximum number of named cameras. The default camera takes
	 * viewport bit 0, so at most 63 are allowed.
	 */
	MaxCameraCount uint16
}

/**
 * @brief Creates the camera system. Slot i of the system owns viewport bit
 * i+1; the default camera owns bit 0.
 */
func NewCameraSystem(config *CameraSystemConfig) (*CameraSystem, error) {
	if config.MaxCameraCount == 0 {
		err := fmt.Errorf("func NewCameraSystem - config.MaxCameraCount must be > 0")
		core.LogError(err.Error())
		return nil, err
	}
	if config.MaxCameraCount >= maxViewports {
		err := fmt.Errorf("func NewCameraSystem - config.MaxCameraCount must be < %d", maxViewports)
		core.LogError(err.Error())
		return nil, err
	}
	cs := &CameraSystem{
		Config:  config,
		Cameras: make([]*components.CameraLookup, config.MaxCameraCount),
		Lookup:  make(map[string]uint16, config.MaxCameraCount),
	}
	// Invalidate all cameras in the array.
	for i := uint16(0); i < cs.Config.MaxCameraCount; i++ {
		cs.Cameras[i] = &components.CameraLookup{
			ID:             invalidCameraID,
			ReferenceCount: 0,
		}
	}
	// Setup default camera.
	cs.DefaultCamera = components.NewCamera(1)
	return cs, nil
}

func (cs *CameraSystem) Shutdown() error {
	for name := range cs.Lookup {
		delete(cs.Lookup, name)
	}
	return nil
}

/**
 * @brief Acquires a camera by name. If one is not found, a new one is
 * created with a free viewport bit. Internal reference counter is
 * incremented.
 *
 * @param name The name of the camera to acquire.
 */
func (cs *CameraSystem) Acquire(name string) (*components.Camera, error) {
	if name == components.DEFAULT_CAMERA_NAME {
		return cs.DefaultCamera, nil
	}
	id, ok := cs.Lookup[name]
	if !ok {
		// Find free slot
		id = invalidCameraID
		for i := uint16(0); i < cs.Config.MaxCameraCount; i++ {
			if cs.Cameras[i].ID == invalidCameraID {
				id = i
				break
			}
		}
		if id == invalidCameraID {
			err := fmt.Errorf("func CameraSystemAcquire failed to acquire new slot. Adjust camera system config to allow more")
			core.LogError(err.Error())
			return nil, err
		}

		// Create/register the new camera.
		core.LogDebug("Creating new camera named '%s'...", name)
		cs.Cameras[id].Camera = components.NewCamera(uint64(1) << (id + 1))
		cs.Cameras[id].ID = id

		cs.Lookup[name] = id
	}
	cs.Cameras[id].ReferenceCount++
	return cs.Cameras[id].Camera, nil
}

/**
 * @brief Releases a camera with the given name. Internal reference
 * counter is decremented. If this reaches 0, the slot and its viewport bit
 * become usable by a new camera.
 *
 * @param name The name of the camera to release.
 */
func (cs *CameraSystem) Release(name string) {
	if name == components.DEFAULT_CAMERA_NAME {
		core.LogDebug("Cannot release default camera. Nothing was done.")
		return
	}
	id, ok := cs.Lookup[name]
	if !ok {
		core.LogWarn("CameraSystemRelease failed lookup. Nothing was done.")
		return
	}
	// Decrement the reference count, and reset the camera if the counter reaches 0.
	cs.Cameras[id].ReferenceCount--
	if cs.Cameras[id].ReferenceCount < 1 {
		cs.Cameras[id].Camera = nil
		cs.Cameras[id].ID = invalidCameraID
		delete(cs.Lookup, name)
	}
}

/**
 * @brief Gets the default camera.
 */
func (cs *CameraSystem) GetDefault() *components.Camera {
	return cs.DefaultCamera
}

// Active returns every live camera by name, the default one included.
func (cs *CameraSystem) Active() map[string]*components.Camera {
	out := map[string]*components.Camera{components.DEFAULT_CAMERA_NAME: cs.DefaultCamera}
	for name, id := range cs.Lookup {
		out[name] = cs.Cameras[id].Camera
	}
	return out
}
