/*
Hawk renders a scene through a deferred frame graph: G-buffer fill, ambient
occlusion and reflections on compute, then a composite into the swap chain.
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/hawk/engine"
	"github.com/spaghettifunk/hawk/engine/core"
)

func main() {
	configPath := flag.String("config", "hawk.toml", "path to the TOML configuration")
	headlessMode := flag.Bool("headless", false, "render on the simulated device without a window")
	frames := flag.Uint64("frames", 0, "stop after this many frames (0 runs until quit)")
	scene := flag.String("scene", "", "scene to load, a glTF path or procedural:<shape>")
	flag.Parse()

	if err := run(*configPath, *headlessMode, *frames, *scene); err != nil {
		fmt.Fprintf(os.Stderr, "hawk: %s\n", err)
		os.Exit(1)
	}
}

func run(configPath string, headlessMode bool, frames uint64, scene string) (err error) {
	config, err := engine.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if headlessMode {
		config.Headless = true
		config.HotReload = false
	}
	if frames > 0 {
		config.FrameLimit = frames
	}
	if scene != "" {
		config.Scene = scene
	}

	// Precondition violations are programmer errors: report and exit.
	defer func() {
		if r := recover(); r != nil {
			if perr, ok := r.(error); ok && errors.Is(perr, core.ErrPrecondition) {
				err = perr
				return
			}
			panic(r)
		}
	}()

	e, err := engine.New(config)
	if err != nil {
		return err
	}
	defer func() {
		if shutdownErr := e.Shutdown(); shutdownErr != nil {
			core.LogError("shutdown: %s", shutdownErr)
		}
	}()

	if err := e.Initialize(); err != nil {
		return err
	}

	// signal channel to capture system calls
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	return e.Run(ctx)
}
