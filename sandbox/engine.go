// Copyright 2026 The Burrow Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"io"
	"time"
)

// BoundMount is a validated host-to-container bind. HostPath is
// always fully resolved by the policy engine before it reaches an
// engine.
type BoundMount struct {
	HostPath      string
	ContainerPath string
	Readonly      bool
}

// ContainerSpec describes one sandbox to launch.
type ContainerSpec struct {
	// Name identifies the container to the engine, used for stop and
	// kill. Unique per run.
	Name string

	// Image is the container image reference.
	Image string

	// Command is the entrypoint command and arguments.
	Command []string

	// Mounts are the validated binds, standard layout plus extras.
	Mounts []BoundMount

	// Env is extra environment for the sandbox process.
	Env map[string]string

	// WorkingDir is the initial working directory inside the
	// container.
	WorkingDir string
}

// Container is a running sandbox.
type Container interface {
	// Stdin is the sandbox process's standard input. The caller
	// writes the invocation and closes it.
	Stdin() io.WriteCloser

	// Stdout and Stderr stream the sandbox process's output.
	Stdout() io.Reader
	Stderr() io.Reader

	// Wait blocks until the sandbox process exits and returns its
	// exit code. It must be called exactly once.
	Wait() (int, error)

	// Stop asks the sandbox to terminate gracefully, waiting up to
	// grace before the engine kills it.
	Stop(ctx context.Context, grace time.Duration) error

	// Kill terminates the sandbox immediately.
	Kill(ctx context.Context) error
}

// Engine launches sandboxes. The isolation mechanism (namespaces,
// cgroups, seccomp) belongs entirely to the engine; this package only
// decides what crosses the boundary.
type Engine interface {
	Start(ctx context.Context, spec ContainerSpec) (Container, error)
}
