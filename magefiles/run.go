//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Compiles the shaders and runs the testbed on the Vulkan backend.
func (Run) Engine() error {
	mg.Deps(Build.Shaders)
	fmt.Println("Run engine...")
	return goCmd("run", ".", "-backend", "vulkan")
}

// Runs the testbed on the headless backend, without a window or GPU.
func (Run) Headless() error {
	mg.Deps(Build.Shaders)
	return goCmd("run", ".", "-backend", "headless")
}

// Runs the unit tests.
func Test() error {
	return goCmd("test", "./...")
}
