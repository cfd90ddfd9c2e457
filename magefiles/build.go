//go:build mage

package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/magefile/mage/mg"

	"github.com/spaghettifunk/hawk/engine/renderer"
	"github.com/spaghettifunk/hawk/engine/renderer/metadata"
)

type Build mg.Namespace

const shaderDir = "assets/shaders"

var shaderEntries = []struct {
	file    string
	entry   string
	profile metadata.ShaderProfile
}{
	{renderer.FillShaderFile, metadata.EntryPointVS, metadata.ShaderProfileVS},
	{renderer.FillShaderFile, metadata.EntryPointPS, metadata.ShaderProfilePS},
	{renderer.AmbientOcclusionShaderFile, metadata.EntryPointCS, metadata.ShaderProfileCS},
	{renderer.ReflectionShaderFile, metadata.EntryPointCS, metadata.ShaderProfileCS},
	{renderer.CompositeShaderFile, metadata.EntryPointVS, metadata.ShaderProfileVS},
	{renderer.CompositeShaderFile, metadata.EntryPointPS, metadata.ShaderProfilePS},
}

// Validates every WGSL entry point the frame graph loads.
func (Build) Shaders() error {
	return buildShaders()
}

// Builds the engine binary into bin/hawk.
func (Build) Engine() error {
	mg.Deps(Build.Shaders)
	_, err := executeCmd("go", withArgs("build", "-o", filepath.Join("bin", "hawk"), "."), withStream())
	return err
}

func buildShaders() error {
	var errs []error
	for _, s := range shaderEntries {
		module, err := renderer.CompileShader(renderer.ShaderSource{
			Path:       filepath.Join(shaderDir, s.file),
			EntryPoint: s.entry,
			Profile:    s.profile,
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		fmt.Printf("%s:%s ok (%d bytes of SPIR-V)\n", s.file, s.entry, len(module.Bytecode))
	}
	return errors.Join(errs...)
}
