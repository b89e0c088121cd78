//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Compiles the shaders and runs the testbed in a window.
func (Run) Engine() error {
	mg.Deps(Build.Shaders)
	fmt.Println("Run engine...")
	_, err := executeCmd("go", withArgs("run", ".", "-config", "assets/engine.toml"), withStream())
	return err
}

// Records a few frames without a GPU and captures the last one.
func (Run) Headless() error {
	_, err := executeCmd("go", withArgs("run", ".", "-headless", "-frames", "120", "-capture", "frame.bmp"), withStream())
	return err
}

// Runs the unit tests.
func (Run) Test() error {
	_, err := executeCmd("go", withArgs("test", "./..."), withStream())
	return err
}
