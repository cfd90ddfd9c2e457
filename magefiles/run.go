//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Runs the engine in a window.
func (Run) Engine() error {
	if err := buildShaders(); err != nil {
		return err
	}
	fmt.Println("Run engine...")
	_, err := executeCmd("go", withArgs("run", "."), withStream())
	return err
}

// Renders 120 frames on the simulated device, without a window.
func (Run) Headless() error {
	if err := buildShaders(); err != nil {
		return err
	}
	fmt.Println("Run engine headless...")
	_, err := executeCmd("go", withArgs("run", ".", "-headless", "-frames", "120"), withStream())
	return err
}
