//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Test mg.Namespace

// Runs every package's tests.
func (Test) All() error {
	_, err := executeCmd("go", withArgs("test", "./..."), withStream())
	return err
}

// Runs the tests with the race detector; the cull pass and the config
// watcher both run on worker goroutines.
func (Test) Race() error {
	_, err := executeCmd("go", withArgs("test", "-race", "./..."), withStream())
	return err
}

type Bench mg.Namespace

// Benchmarks the scene cull update and the visibility range pass.
func (Bench) Cull() error {
	_, err := executeCmd("go", withArgs("test", "-run", "^$", "-bench", ".", "-benchmem", "./engine/renderer/scene"), withStream())
	return err
}
