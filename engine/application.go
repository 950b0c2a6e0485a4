package engine

import (
	"github.com/spaghettifunk/scenecull/engine/config"
)

type ApplicationConfig struct {
	// Render buffer starting width.
	StartWidth uint32
	// Render buffer starting height.
	StartHeight uint32
	// The application name used in logs.
	Name string
	// ConfigPath is watched for changes when set.
	ConfigPath string
	// Config holds the current values. It is replaced on reload, between
	// frames.
	Config config.Config
}
