//go:build mage

package main

import (
	"fmt"
	"path/filepath"

	"github.com/magefile/mage/mg"

	"github.com/spaghettifunk/prism/engine/assets"
	"github.com/spaghettifunk/prism/engine/core"
)

type Build mg.Namespace

// Compiles every GLSL shader under assets/shaders into the shader cache.
func (Build) Shaders() error {
	return buildShaders()
}

// Builds the prism binary.
func (Build) Binary() error {
	return goCmd("build", "-o", binary, ".")
}

func buildShaders() error {
	cfg := core.DefaultConfig()
	logger, err := core.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	if err := requireTool(cfg.Assets.ShaderCompiler); err != nil {
		return err
	}
	cache := assets.NewShaderCache(logger, cfg.Assets.ShaderCache, cfg.Assets.ShaderCompiler)
	for _, pattern := range []string{"*.vert", "*.frag"} {
		sources, err := filepath.Glob(filepath.Join(cfg.Assets.Dir, "shaders", pattern))
		if err != nil {
			return err
		}
		for _, src := range sources {
			if _, err := cache.Load(src); err != nil {
				return fmt.Errorf("compiling %s: %w", src, err)
			}
		}
	}
	return nil
}
