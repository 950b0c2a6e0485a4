package config

import (
	"fmt"
	"os"
	"runtime"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/scenecull/engine/core"
)

type EngineConfig struct {
	Name string `toml:"name"`
	// Frames stops the loop after that many frames; 0 runs until stopped.
	Frames    int `toml:"frames"`
	TargetFPS int `toml:"target_fps"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

/** @brief Tuning of the scene cull's spatial indexes and cull pass. */
type SpatialIndexerConfig struct {
	/** @brief Leaves reinserted per index per frame. Negative rebuilds every leaf. */
	UpdateIterationsPerFrame int `toml:"update_iterations_per_frame"`
	/** @brief Below this many visibility entries the range cull runs on the caller. */
	ThreadedCullMinimumInstances int `toml:"threaded_cull_minimum_instances"`
}

type JobsConfig struct {
	Workers   int `toml:"workers"`
	QueueSize int `toml:"queue_size"`
}

type TestbedConfig struct {
	Instances int     `toml:"instances"`
	Seed      uint64  `toml:"seed"`
	Spread    float32 `toml:"spread"`
}

type Config struct {
	Engine         EngineConfig         `toml:"engine"`
	Log            LogConfig            `toml:"log"`
	SpatialIndexer SpatialIndexerConfig `toml:"spatial_indexer"`
	Jobs           JobsConfig           `toml:"jobs"`
	Testbed        TestbedConfig        `toml:"testbed"`
}

func Default() Config {
	return Config{
		Engine: EngineConfig{
			Name:      "scenecull",
			TargetFPS: 60,
		},
		Log: LogConfig{Level: "info"},
		SpatialIndexer: SpatialIndexerConfig{
			UpdateIterationsPerFrame:     10,
			ThreadedCullMinimumInstances: 1000,
		},
		Jobs: JobsConfig{
			Workers:   runtime.NumCPU(),
			QueueSize: 256,
		},
		Testbed: TestbedConfig{
			Instances: 2000,
			Seed:      1,
			Spread:    200,
		},
	}
}

// Parse decodes TOML on top of the defaults, so missing keys keep their
// default value.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", core.ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if _, err := core.ParseLogLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", core.ErrInvalidConfig, err)
	}
	if c.Engine.Frames < 0 {
		return fmt.Errorf("%w: engine.frames must not be negative", core.ErrInvalidConfig)
	}
	if c.Engine.TargetFPS < 0 {
		return fmt.Errorf("%w: engine.target_fps must not be negative", core.ErrInvalidConfig)
	}
	if c.SpatialIndexer.ThreadedCullMinimumInstances < 0 {
		return fmt.Errorf("%w: spatial_indexer.threaded_cull_minimum_instances must not be negative", core.ErrInvalidConfig)
	}
	if c.Jobs.Workers <= 0 {
		return fmt.Errorf("%w: jobs.workers must be positive", core.ErrInvalidConfig)
	}
	if c.Jobs.QueueSize < 0 {
		return fmt.Errorf("%w: jobs.queue_size must not be negative", core.ErrInvalidConfig)
	}
	if c.Testbed.Instances < 0 || c.Testbed.Spread < 0 {
		return fmt.Errorf("%w: testbed values must not be negative", core.ErrInvalidConfig)
	}
	return nil
}

// Marshal encodes the config back to TOML.
func (c Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}
