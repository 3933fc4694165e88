//go:build mage

package main

import (
	"fmt"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

const shaderDir = "assets/shaders"

var shaderSources = []string{"instanced.vert", "instanced.frag"}

type Build mg.Namespace

// Compiles the GLSL shaders to SPIR-V with glslc.
func (Build) Shaders() error {
	return buildShaders()
}

// Builds the engine binary into bin/.
func (Build) Engine() error {
	mg.Deps(Build.Shaders)
	_, err := executeCmd("go", withArgs("build", "-o", filepath.Join("bin", "strata"), "."), withStream())
	return err
}

func buildShaders() error {
	for _, src := range shaderSources {
		in := filepath.Join(shaderDir, src)
		out := in + ".spv"
		if _, err := executeCmd("glslc", withArgs(in, "-o", out), withStream()); err != nil {
			return fmt.Errorf("failed to compile %s: %w", in, err)
		}
	}
	return nil
}
