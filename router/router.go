// Copyright 2026 The Burrow Authors
// SPDX-License-Identifier: Apache-2.0

// Package router is the filesystem IPC surface between sandboxes and
// the host. Sandboxes drop JSON files into their mounted mailbox; the
// router polls, decodes, authorizes, and acts on them.
//
// Processing is at-most-once: a mailbox file is removed before its
// payload is acted on, so a crash mid-action drops the request rather
// than replaying it. Undecodable payloads move to a content-addressed
// quarantine for operator inspection.
package router

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/burrow-systems/burrow/lib/clock"
	"github.com/burrow-systems/burrow/lib/config"
	"github.com/burrow-systems/burrow/lib/schema"
	"github.com/burrow-systems/burrow/state"
)

// Mailbox subdirectories. Sandboxes write message envelopes under
// messages/ and task operations under tasks/.
const (
	messagesSubdir = "messages"
	tasksSubdir    = "tasks"
)

// Messenger delivers outbound chat messages. The chat bridge behind
// it is not this package's concern.
type Messenger interface {
	Send(ctx context.Context, destination, text string) error
}

// OperationApplier performs authorized task operations. Satisfied by
// *scheduler.Scheduler.
type OperationApplier interface {
	Apply(ctx context.Context, operation *schema.TaskOperation, source *schema.Tenant) error
}

// Router polls tenant mailboxes and routes their contents.
type Router struct {
	paths      *config.PathsConfig
	state      *state.Store
	messenger  Messenger
	operations OperationApplier
	clk        clock.Clock
	logger     *slog.Logger
	interval   time.Duration

	startOnce sync.Once
	done      chan struct{}
}

// Config holds the router's collaborators and tuning.
type Config struct {
	Paths      *config.PathsConfig
	State      *state.Store
	Messenger  Messenger
	Operations OperationApplier
	Clock      clock.Clock
	Logger     *slog.Logger

	// PollInterval is how often mailboxes are scanned.
	PollInterval time.Duration
}

// New wires a router. Start must be called to run the loop.
func New(cfg Config) *Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Router{
		paths:      cfg.Paths,
		state:      cfg.State,
		messenger:  cfg.Messenger,
		operations: cfg.Operations,
		clk:        cfg.Clock,
		logger:     logger,
		interval:   cfg.PollInterval,
		done:       make(chan struct{}),
	}
}

// Start launches the poll loop. Idempotent: repeated calls start one
// loop. The loop exits when ctx is cancelled.
func (r *Router) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		go r.run(ctx)
	})
}

// Wait blocks until the loop has exited.
func (r *Router) Wait() {
	<-r.done
}

func (r *Router) run(ctx context.Context) {
	defer close(r.done)
	r.logger.Info("router started", "poll_interval", r.interval)
	ticker := r.clk.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("router stopped")
			return
		case <-ticker.C:
			r.poll(ctx)
		}
	}
}

// poll scans every registered tenant's mailbox once.
func (r *Router) poll(ctx context.Context) {
	for _, tenant := range r.state.Tenants() {
		if ctx.Err() != nil {
			return
		}
		r.pollTenant(ctx, tenant)
	}
}

func (r *Router) pollTenant(ctx context.Context, tenant schema.Tenant) {
	mailbox := r.paths.MailboxDir(tenant.Folder)
	for _, file := range listJSONFiles(filepath.Join(mailbox, messagesSubdir)) {
		r.handleFile(ctx, tenant, file, r.handleMessage)
	}
	for _, file := range listJSONFiles(filepath.Join(mailbox, tasksSubdir)) {
		r.handleFile(ctx, tenant, file, r.handleTaskOperation)
	}
}

// handleFile consumes one mailbox file with at-most-once semantics:
// read, remove, then act. Removal failure skips the action so the
// file cannot be double-processed by a concurrent or restarted
// router.
func (r *Router) handleFile(ctx context.Context, tenant schema.Tenant, path string, handle func(context.Context, schema.Tenant, []byte) error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		r.logger.Warn("mailbox file unreadable", "tenant", tenant.Folder, "path", path, "error", err)
		return
	}
	if err := os.Remove(path); err != nil {
		r.logger.Warn("mailbox file not removable, skipping", "tenant", tenant.Folder, "path", path, "error", err)
		return
	}

	if err := handle(ctx, tenant, payload); err != nil {
		quarantined, qErr := quarantine(r.paths.QuarantineDir(tenant.Folder), payload)
		if qErr != nil {
			r.logger.Error("quarantine failed, payload dropped",
				"tenant", tenant.Folder, "path", path, "error", qErr, "cause", err)
			return
		}
		r.logger.Warn("mailbox file rejected",
			"tenant", tenant.Folder, "path", path, "quarantine", quarantined, "error", err)
	}
}

// handleMessage validates, authorizes, and delivers one message
// envelope. A messenger failure is a logged drop, not a retry: the
// file is already consumed and at-most-once wins over delivery
// guarantees here.
func (r *Router) handleMessage(ctx context.Context, tenant schema.Tenant, payload []byte) error {
	envelope, err := schema.DecodeMessage(payload)
	if err != nil {
		return err
	}

	destination := r.state.Translate(envelope.Destination)
	if !schema.CanMessage(&tenant, destination) {
		r.logger.Warn("message not authorized, dropped",
			"tenant", tenant.Folder, "destination", destination)
		return nil
	}

	if err := r.messenger.Send(ctx, destination, envelope.Text); err != nil {
		r.logger.Error("message delivery failed, dropped",
			"tenant", tenant.Folder, "destination", destination, "error", err)
		return nil
	}
	r.state.SetLastResponse(tenant.Folder, r.clk.Now())
	r.logger.Info("message delivered", "tenant", tenant.Folder, "destination", destination)
	return nil
}

// handleTaskOperation validates one task operation and forwards it to
// the dispatcher, which authorizes against the targeted task's owner.
func (r *Router) handleTaskOperation(ctx context.Context, tenant schema.Tenant, payload []byte) error {
	operation, err := schema.DecodeTaskOperation(payload)
	if err != nil {
		return err
	}
	if err := r.operations.Apply(ctx, operation, &tenant); err != nil {
		if errors.Is(err, schema.ErrUnauthorized) {
			r.logger.Warn("task operation not authorized, dropped",
				"tenant", tenant.Folder, "operation", operation.Type, "error", err)
			return nil
		}
		return err
	}
	r.logger.Info("task operation applied", "tenant", tenant.Folder, "operation", operation.Type)
	return nil
}

// listJSONFiles returns the .json files in dir, sorted by name for
// deterministic processing order. A missing directory is an empty
// mailbox, not an error.
func listJSONFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files
}
