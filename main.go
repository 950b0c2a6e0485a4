/*
Headless driver that fills a scenario with moving instances, LOD chains,
particles and collision volumes and runs the scene cull on every frame.
*/
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/scenecull/engine"
	"github.com/spaghettifunk/scenecull/engine/config"
	"github.com/spaghettifunk/scenecull/engine/core"
	"github.com/spaghettifunk/scenecull/testbed"
)

func main() {
	configPath := flag.String("config", "scenecull.toml", "TOML config file, watched for changes; empty for defaults")
	frames := flag.Int("frames", -1, "stop after this many frames (overrides engine.frames)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			core.LogFatal(err.Error())
		}
		cfg = loaded
	}
	if *frames >= 0 {
		cfg.Engine.Frames = *frames
	}

	tb, err := testbed.NewTestGame(cfg, *configPath)
	if err != nil {
		panic(err)
	}

	engine, err := engine.New(tb.Game)
	if err != nil {
		panic(err)
	}

	if err := engine.Initialize(); err != nil {
		panic(err)
	}

	// capture sigterm and other system calls
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	runErr := engine.Run(ctx)
	if err := engine.Shutdown(); err != nil {
		core.LogError(err.Error())
	}
	if runErr != nil {
		core.LogError(runErr.Error())
		os.Exit(1)
	}
}
