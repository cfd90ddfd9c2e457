//go:build mage

package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/magefile/mage/mg"
)

type cmdOptions struct {
	args   []string
	dir    string
	env    []string
	stream bool
}

type cmdOption func(*cmdOptions)

func withArgs(args ...string) cmdOption {
	return func(o *cmdOptions) { o.args = args }
}

func withDir(dir string) cmdOption {
	return func(o *cmdOptions) { o.dir = dir }
}

// withEnv adds KEY=VALUE pairs on top of the current environment.
func withEnv(env ...string) cmdOption {
	return func(o *cmdOptions) { o.env = append(o.env, env...) }
}

func withStream() cmdOption {
	return func(o *cmdOptions) { o.stream = true }
}

// executeCmd runs command and returns its combined output. Output is streamed
// when asked to or when mage runs verbose, otherwise it is only printed on
// failure.
func executeCmd(command string, options ...cmdOption) (string, error) {
	opts := &cmdOptions{}
	for _, o := range options {
		o(opts)
	}

	fmt.Printf("==> %s %s\n", command, strings.Join(opts.args, " "))
	cmd := exec.Command(command, opts.args...)
	cmd.Dir = opts.dir
	if len(opts.env) > 0 {
		cmd.Env = append(os.Environ(), opts.env...)
	}

	var out bytes.Buffer
	stream := mg.Verbose() || opts.stream
	if stream {
		cmd.Stdout = io.MultiWriter(&out, os.Stdout)
		cmd.Stderr = io.MultiWriter(&out, os.Stderr)
	} else {
		cmd.Stdout = &out
		cmd.Stderr = &out
	}
	if err := cmd.Run(); err != nil {
		if !stream {
			fmt.Println(out.String())
		}
		return "", fmt.Errorf("%s %s: %w", command, strings.Join(opts.args, " "), err)
	}
	return out.String(), nil
}
