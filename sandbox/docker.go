// Copyright 2026 The Burrow Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strconv"
	"syscall"
	"time"
)

// DockerEngine launches sandboxes with a docker-compatible CLI
// (docker or podman). The binary name comes from configuration.
type DockerEngine struct {
	// Binary is the engine executable, "docker" by default.
	Binary string
}

// NewDockerEngine returns an engine driving the given CLI binary.
func NewDockerEngine(binary string) *DockerEngine {
	if binary == "" {
		binary = "docker"
	}
	return &DockerEngine{Binary: binary}
}

// Start launches a container described by spec. The container is
// removed on exit (--rm) and named so Stop and Kill can target it.
func (e *DockerEngine) Start(ctx context.Context, spec ContainerSpec) (Container, error) {
	args := []string{"run", "--rm", "-i", "--name", spec.Name}
	for _, mount := range spec.Mounts {
		bind := mount.HostPath + ":" + mount.ContainerPath
		if mount.Readonly {
			bind += ":ro"
		}
		args = append(args, "-v", bind)
	}
	// Deterministic flag order keeps logs and tests stable.
	envKeys := make([]string, 0, len(spec.Env))
	for key := range spec.Env {
		envKeys = append(envKeys, key)
	}
	sort.Strings(envKeys)
	for _, key := range envKeys {
		args = append(args, "-e", key+"="+spec.Env[key])
	}
	if spec.WorkingDir != "" {
		args = append(args, "-w", spec.WorkingDir)
	}
	args = append(args, spec.Image)
	args = append(args, spec.Command...)

	cmd := exec.CommandContext(ctx, e.Binary, args...)
	// Own process group so a kill cannot take the daemon with it.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", e.Binary, err)
	}
	return &dockerContainer{
		binary: e.Binary,
		name:   spec.Name,
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}, nil
}

type dockerContainer struct {
	binary string
	name   string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.Reader
	stderr io.Reader
}

func (c *dockerContainer) Stdin() io.WriteCloser { return c.stdin }
func (c *dockerContainer) Stdout() io.Reader     { return c.stdout }
func (c *dockerContainer) Stderr() io.Reader     { return c.stderr }

func (c *dockerContainer) Wait() (int, error) {
	err := c.cmd.Wait()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

// Stop issues `docker stop -t <grace>`, which sends SIGTERM and
// escalates to SIGKILL after the grace period.
func (c *dockerContainer) Stop(ctx context.Context, grace time.Duration) error {
	seconds := int(grace / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	stop := exec.CommandContext(ctx, c.binary, "stop", "-t", strconv.Itoa(seconds), c.name)
	if output, err := stop.CombinedOutput(); err != nil {
		return fmt.Errorf("stopping container %s: %w: %s", c.name, err, output)
	}
	return nil
}

func (c *dockerContainer) Kill(ctx context.Context) error {
	kill := exec.CommandContext(ctx, c.binary, "kill", c.name)
	if output, err := kill.CombinedOutput(); err != nil {
		return fmt.Errorf("killing container %s: %w: %s", c.name, err, output)
	}
	return nil
}
