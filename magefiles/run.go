//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Tidies the module and runs the headless testbed with scenecull.toml.
func (Run) Testbed() error {
	if err := goTidy(); err != nil {
		return err
	}
	fmt.Println("Run testbed...")
	if _, err := executeCmd("go", withArgs("run", "main.go", "-config", "scenecull.toml"), withStream()); err != nil {
		return err
	}
	return nil
}
