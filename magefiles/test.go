//go:build mage

package main

import (
	"path/filepath"

	"github.com/magefile/mage/mg"
)

type Test mg.Namespace

// Runs every package test with the race detector, which needs cgo.
func (Test) All() error {
	_, err := executeCmd("go", withArgs("test", "-race", "-count=1", "./..."), withEnv("CGO_ENABLED=1"), withStream())
	return err
}

// Runs the frame graph tests on the headless device only.
func (Test) Renderer() error {
	_, err := executeCmd("go", withArgs("test", "-count=1", "./..."), withDir(filepath.Join("engine", "renderer")), withStream())
	return err
}
