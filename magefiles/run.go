//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Compiles the shaders and runs the engine with strata.toml.
func (Run) Engine() error {
	if err := buildShaders(); err != nil {
		return err
	}
	fmt.Println("Run engine...")
	_, err := executeCmd("go", withArgs("run", ".", "strata.toml"), withStream())
	return err
}

// Runs the engine on the headless backend; no window or GPU is needed.
func (Run) Headless() error {
	fmt.Println("Run engine headless...")
	_, err := executeCmd("go", withArgs("run", ".", "-headless", "strata.toml"), withStream())
	return err
}

// Runs the test suite.
func (Run) Tests() error {
	_, err := executeCmd("go", withArgs("test", "./engine/...", "./testbed/..."), withStream())
	return err
}
