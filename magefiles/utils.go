//go:build mage

package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const binary = "bin/prism"

// goEnv pins the toolchain flags shared by every go invocation.
func goEnv() map[string]string {
	env := map[string]string{"CGO_ENABLED": "1"}
	if flags := os.Getenv("PRISM_GOFLAGS"); flags != "" {
		env["GOFLAGS"] = flags
	}
	return env
}

// goCmd runs the go tool, streaming its output.
func goCmd(args ...string) error {
	fmt.Printf("Executing: go %s\n", strings.Join(args, " "))
	if mg.Verbose() {
		return sh.RunWithV(goEnv(), mg.GoCmd(), args...)
	}
	_, err := sh.Exec(goEnv(), os.Stdout, os.Stderr, mg.GoCmd(), args...)
	return err
}

// requireTool fails early when an external binary the target needs is missing.
func requireTool(name string) error {
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("%s not found in PATH: %w", name, err)
	}
	return nil
}
