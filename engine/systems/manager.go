package systems

import (
	"errors"

	"github.com/spaghettifunk/scenecull/engine/config"
)

// SystemManager owns the engine-wide systems shared by the renderer and the
// game.
type SystemManager struct {
	CameraSystem *CameraSystem
	JobSystem    *JobSystem
}

func NewSystemManager(cfg config.Config) (*SystemManager, error) {
	js, err := NewJobSystem(cfg.Jobs.Workers, cfg.Jobs.QueueSize)
	if err != nil {
		return nil, err
	}

	cs, err := NewCameraSystem(&CameraSystemConfig{
		MaxCameraCount: 8,
	})
	if err != nil {
		_ = js.Shutdown()
		return nil, err
	}
	return &SystemManager{
		CameraSystem: cs,
		JobSystem:    js,
	}, nil
}

func (sm *SystemManager) Shutdown() error {
	return errors.Join(
		sm.CameraSystem.Shutdown(),
		sm.JobSystem.Shutdown(),
	)
}
