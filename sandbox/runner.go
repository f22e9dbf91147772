// Copyright 2026 The Burrow Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/burrow-systems/burrow/lib/clock"
	"github.com/burrow-systems/burrow/lib/config"
	"github.com/burrow-systems/burrow/lib/redact"
	"github.com/burrow-systems/burrow/lib/schema"
)

// Runner executes invocations in sandboxes. Runs for the same tenant
// are serialized; different tenants run concurrently.
type Runner struct {
	cfg       *config.Config
	engine    Engine
	validator *Validator
	clk       clock.Clock
	logger    *slog.Logger
	tasks     TaskSnapshotter
	tenants   TenantSnapshotter

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewRunner wires a runner. tasks and tenants may be nil, disabling
// the corresponding session snapshots.
func NewRunner(cfg *config.Config, engine Engine, validator *Validator, clk clock.Clock, logger *slog.Logger, tasks TaskSnapshotter, tenants TenantSnapshotter) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{
		cfg:       cfg,
		engine:    engine,
		validator: validator,
		clk:       clk,
		logger:    logger,
		tasks:     tasks,
		tenants:   tenants,
		locks:     make(map[string]*sync.Mutex),
	}
}

func (r *Runner) tenantLock(folder string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[folder]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[folder] = lock
	}
	return lock
}

// Execute runs one invocation to completion in a fresh sandbox and
// returns the parsed execution result. Failures come back as a
// *RunError classifying what went wrong; the run log is written in
// every case.
func (r *Runner) Execute(ctx context.Context, tenant *schema.Tenant, invocation *schema.Invocation) (*schema.ExecutionResult, error) {
	lock := r.tenantLock(tenant.Folder)
	lock.Lock()
	defer lock.Unlock()

	runID := uuid.NewString()
	startedAt := r.clk.Now()
	logger := r.logger.With("tenant", tenant.Folder, "run_id", runID)

	mailboxDir := r.cfg.Paths.MailboxDir(tenant.Folder)
	if err := os.MkdirAll(mailboxDir, 0o755); err != nil {
		return nil, &RunError{Kind: FailureSpawn, Err: fmt.Errorf("creating mailbox: %w", err)}
	}
	if err := writeStateSnapshot(mailboxDir, tenant, r.tasks, r.tenants); err != nil {
		logger.Warn("session snapshot failed, running with stale view", "error", err)
	}

	mounts, err := assembleMounts(&r.cfg.Paths, tenant, r.validator)
	if err != nil {
		return nil, &RunError{Kind: FailureSpawn, Err: err}
	}

	runDir := filepath.Join(r.cfg.Paths.Root, "run")
	if err := os.MkdirAll(runDir, 0o700); err != nil {
		return nil, &RunError{Kind: FailureSpawn, Err: fmt.Errorf("creating run directory: %w", err)}
	}
	credentialsPath, credentialValues, err := writeCredentials(&r.cfg.Credentials, runDir, runID)
	if err != nil {
		return nil, &RunError{Kind: FailureSpawn, Err: err}
	}
	if credentialsPath != "" {
		defer os.Remove(credentialsPath)
		mounts = append(mounts, BoundMount{
			HostPath:      credentialsPath,
			ContainerPath: credentialsMount,
			Readonly:      true,
		})
	}

	payload, err := invocation.Encode()
	if err != nil {
		return nil, &RunError{Kind: FailureSpawn, Err: err}
	}

	spec := ContainerSpec{
		Name:       fmt.Sprintf("burrow-%s-%s", tenant.Folder, runID[:8]),
		Image:      r.cfg.Container.Image,
		Command:    r.cfg.Container.Command,
		Mounts:     mounts,
		WorkingDir: workspaceMount,
		Env: map[string]string{
			"BURROW_TENANT": tenant.Folder,
			"BURROW_RUN_ID": runID,
		},
	}

	logger.Info("starting sandbox", "image", spec.Image, "mounts", len(mounts))
	container, err := r.engine.Start(ctx, spec)
	if err != nil {
		runErr := &RunError{Kind: FailureSpawn, Err: err}
		r.writeRunLog(logger, tenant, runID, startedAt, "spawn-failure", invocation.Prompt, mounts, nil, nil, credentialValues)
		return nil, runErr
	}

	stdout, stdoutDone := capture(container.Stdout(), r.cfg.Container.CaptureLimitBytes)
	stderr, stderrDone := capture(container.Stderr(), r.cfg.Container.CaptureLimitBytes)

	timeout := r.cfg.Container.Timeout()
	if tenant.TimeoutSeconds > 0 {
		timeout = time.Duration(tenant.TimeoutSeconds) * time.Second
	}

	// The deadline must be armed before anything that can block on
	// the sandbox. A sandbox that never reads its input stalls the
	// stdin write on a full pipe, so the write gets its own goroutine
	// and the timeout races it like everything else.
	outcome := newOutcomeCell()
	go func() {
		code, waitErr := container.Wait()
		if waitErr != nil {
			outcome.resolveError(waitErr)
			return
		}
		outcome.resolveExit(code)
	}()
	go func() {
		select {
		case <-r.clk.After(timeout):
			outcome.resolveTimeout()
		case <-outcome.done:
		}
	}()
	stdinDone := make(chan struct{})
	go func() {
		defer close(stdinDone)
		stdin := container.Stdin()
		if _, err := stdin.Write(payload); err != nil {
			logger.Warn("writing invocation failed", "error", err)
		}
		stdin.Close()
	}()

	outcome.wait()

	// Stop/kill cleanup runs for every outcome that is not a natural
	// exit; a wait failure can leave the container alive just like a
	// timeout. Docker's --rm handles the exited case.
	if outcome.timedOut || outcome.err != nil {
		if outcome.timedOut {
			logger.Warn("sandbox deadline exceeded, stopping", "timeout", timeout)
		} else {
			logger.Warn("sandbox wait failed, stopping", "error", outcome.err)
		}
		stopCtx, cancel := context.WithTimeout(context.Background(), r.cfg.Container.StopGrace()+10*time.Second)
		if err := container.Stop(stopCtx, r.cfg.Container.StopGrace()); err != nil {
			logger.Warn("graceful stop failed, killing", "error", err)
			if err := container.Kill(stopCtx); err != nil {
				logger.Error("kill failed", "error", err)
			}
		}
		cancel()
	}

	// An exited or stopped container closes its pipes, so these
	// drains cannot block past cleanup. A write still in flight ends
	// with a pipe error the goroutine logs.
	<-stdinDone
	<-stdoutDone
	<-stderrDone
	duration := r.clk.Now().Sub(startedAt)

	switch {
	case outcome.timedOut:
		r.writeRunLog(logger, tenant, runID, startedAt, "timeout", invocation.Prompt, mounts, stdout, stderr, credentialValues)
		return nil, &RunError{
			Kind:   FailureTimeout,
			Detail: fmt.Sprintf("exceeded %s", timeout),
		}

	case outcome.err != nil:
		r.writeRunLog(logger, tenant, runID, startedAt, "wait-failure", invocation.Prompt, mounts, stdout, stderr, credentialValues)
		return nil, &RunError{Kind: FailureSpawn, Err: outcome.err}

	case outcome.exitCode != 0:
		r.writeRunLog(logger, tenant, runID, startedAt, fmt.Sprintf("exit-%d", outcome.exitCode), invocation.Prompt, mounts, stdout, stderr, credentialValues)
		return nil, &RunError{
			Kind:     FailureExit,
			ExitCode: outcome.exitCode,
			Detail:   redact.Tail(stderr.String(), 4096),
		}
	}

	result, framed, err := schema.ExtractResult([]byte(stdout.String()))
	if err != nil {
		r.writeRunLog(logger, tenant, runID, startedAt, "parse-failure", invocation.Prompt, mounts, stdout, stderr, credentialValues)
		return nil, &RunError{Kind: FailureParse, Detail: err.Error(), Err: err}
	}
	if !framed {
		logger.Debug("no result frame in output, using last line fallback")
	}

	outcomeLabel := "success"
	if result.Status == schema.StatusError {
		outcomeLabel = "agent-error"
	}
	r.writeRunLog(logger, tenant, runID, startedAt, outcomeLabel, invocation.Prompt, mounts, stdout, stderr, credentialValues)
	logger.Info("sandbox finished", "outcome", outcomeLabel, "duration", duration.Round(time.Millisecond))
	return result, nil
}

func (r *Runner) writeRunLog(logger *slog.Logger, tenant *schema.Tenant, runID string, startedAt time.Time, outcome, prompt string, mounts []BoundMount, stdout, stderr *boundedBuffer, secrets []string) {
	entry := runLog{
		RunID:     runID,
		Tenant:    tenant.Folder,
		StartedAt: startedAt,
		Duration:  r.clk.Now().Sub(startedAt),
		Outcome:   outcome,
		Prompt:    prompt,
		secrets:   secrets,
	}
	for _, mount := range mounts {
		mode := "rw"
		if mount.Readonly {
			mode = "ro"
		}
		entry.Mounts = append(entry.Mounts, fmt.Sprintf("%s -> %s (%s)", mount.HostPath, mount.ContainerPath, mode))
	}
	if stdout != nil {
		entry.Stdout = stdout.String()
		entry.foldOut = stdout.Truncated()
		if entry.foldOut {
			logger.Warn("stdout capture truncated", "limit_bytes", r.cfg.Container.CaptureLimitBytes)
		}
	}
	if stderr != nil {
		entry.Stderr = stderr.String()
		entry.foldErr = stderr.Truncated()
		if entry.foldErr {
			logger.Warn("stderr capture truncated", "limit_bytes", r.cfg.Container.CaptureLimitBytes)
		}
	}
	path, err := entry.write(r.cfg.Paths.LogDir(tenant.Folder), r.cfg.Container.CaptureLimitBytes, r.cfg.Container.Verbose)
	if err != nil {
		logger.Error("writing run log failed", "error", err)
		return
	}
	logger.Debug("run log written", "path", path)
}
