package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spaghettifunk/scenecull/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeepsDefaultsForMissingKeys(t *testing.T) {
	cfg, err := Parse([]byte(`
[engine]
frames = 30

[spatial_indexer]
threaded_cull_minimum_instances = 64
`))
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, 30, cfg.Engine.Frames)
	assert.Equal(t, 64, cfg.SpatialIndexer.ThreadedCullMinimumInstances)
	assert.Equal(t, def.SpatialIndexer.UpdateIterationsPerFrame, cfg.SpatialIndexer.UpdateIterationsPerFrame)
	assert.Equal(t, def.Jobs, cfg.Jobs)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestParseRejectsInvalidValues(t *testing.T) {
	_, err := Parse([]byte("[log]\nlevel = \"chatty\"\n"))
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	_, err = Parse([]byte("[jobs]\nworkers = 0\n"))
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	_, err = Parse([]byte("not toml ["))
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestMarshalRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Testbed.Seed = 99
	data, err := cfg.Marshal()
	require.NoError(t, err)

	back, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenecull.toml")
	require.NoError(t, os.WriteFile(path, []byte("[engine]\nframes = 1\n"), 0o644))

	reloaded := make(chan Config, 16)
	w, err := NewWatcher(path, func(c Config) {
		select {
		case reloaded <- c:
		default:
		}
	})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("[engine]\nframes = 7\n"), 0o644))

	// a truncating write may be observed half way, so wait for the final value
	timeout := time.After(5 * time.Second)
	for {
		select {
		case c := <-reloaded:
			if c.Engine.Frames == 7 {
				return
			}
		case <-timeout:
			t.Fatal("config was not reloaded")
		}
	}
}

func TestWatcherCloseTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenecull.toml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))
	w, err := NewWatcher(path, nil)
	require.NoError(t, err)
	assert.NoError(t, w.Close())
	assert.Error(t, w.Close())
}
