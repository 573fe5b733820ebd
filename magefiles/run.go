//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Runs the headless testbed for a fixed number of frames.
func (Run) Testbed() error {
	fmt.Println("Run testbed...")
	if _, err := executeCmd("go", withArgs("run", ".", "-frames", "1000"), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs the testbed in a window with the configuration in continuum.toml,
// reloading it whenever the file changes.
func (Run) Window() error {
	if _, err := executeCmd("go", withArgs("run", ".", "-window", "-config", "continuum.toml"), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs every test with the race detector, which needs cgo.
func (Run) Tests() error {
	if _, err := executeCmd("go", withArgs("test", "-race", "-count=1", "./..."), withEnv("CGO_ENABLED=1"), withStream()); err != nil {
		return err
	}
	return nil
}
