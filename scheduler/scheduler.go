// Copyright 2026 The Burrow Authors
// SPDX-License-Identifier: Apache-2.0

// Package scheduler runs scheduled tasks: a poll loop that finds due
// tasks, executes them through the sandbox runner, and advances their
// schedules; and a dispatcher that applies sandbox-originated task
// operations after authorization.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/burrow-systems/burrow/lib/clock"
	"github.com/burrow-systems/burrow/lib/redact"
	"github.com/burrow-systems/burrow/lib/schema"
	"github.com/burrow-systems/burrow/state"
	"github.com/burrow-systems/burrow/taskstore"
)

// Detail strings stored on tasks and run rows are bounded to keep the
// database and snapshots small.
const detailLimit = 1024

// Executor runs one invocation in a sandbox. Satisfied by
// *sandbox.Runner.
type Executor interface {
	Execute(ctx context.Context, tenant *schema.Tenant, invocation *schema.Invocation) (*schema.ExecutionResult, error)
}

// Scheduler polls for due tasks and executes them.
type Scheduler struct {
	store    *taskstore.Store
	state    *state.Store
	executor Executor
	clk      clock.Clock
	logger   *slog.Logger
	interval time.Duration
	location *time.Location

	startOnce sync.Once
	done      chan struct{}
}

// Config holds the scheduler's collaborators and tuning.
type Config struct {
	Store    *taskstore.Store
	State    *state.Store
	Executor Executor
	Clock    clock.Clock
	Logger   *slog.Logger

	// PollInterval is how often the due scan runs.
	PollInterval time.Duration

	// Location is the timezone cron expressions are evaluated in.
	Location *time.Location
}

// New wires a scheduler. Start must be called to run the loop.
func New(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	location := cfg.Location
	if location == nil {
		location = time.UTC
	}
	return &Scheduler{
		store:    cfg.Store,
		state:    cfg.State,
		executor: cfg.Executor,
		clk:      cfg.Clock,
		logger:   logger,
		interval: cfg.PollInterval,
		location: location,
		done:     make(chan struct{}),
	}
}

// Start launches the poll loop. Idempotent: repeated calls start one
// loop. The loop exits when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		go s.run(ctx)
	})
}

// Wait blocks until the loop has exited.
func (s *Scheduler) Wait() {
	<-s.done
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)
	s.logger.Info("scheduler started", "poll_interval", s.interval, "timezone", s.location.String())
	ticker := s.clk.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

// poll scans for due tasks and runs each to completion. One task's
// failure never stops the scan.
func (s *Scheduler) poll(ctx context.Context) {
	now := s.clk.Now()
	due, err := s.store.Due(ctx, now)
	if err != nil {
		s.logger.Error("due scan failed", "error", err)
		return
	}
	for taskIndex := range due {
		if ctx.Err() != nil {
			return
		}
		s.dispatch(ctx, due[taskIndex].ID)
	}
}

// dispatch re-reads the task and executes it if it is still due. The
// re-read closes the race with a pause or cancel landing between the
// scan and the run.
func (s *Scheduler) dispatch(ctx context.Context, taskID string) {
	task, err := s.store.Get(ctx, taskID)
	if err != nil {
		s.logger.Warn("due task vanished before dispatch", "task_id", taskID, "error", err)
		return
	}
	now := s.clk.Now()
	if task.Status != schema.TaskActive || task.NextRun == nil || task.NextRun.After(now) {
		return
	}

	tenant, ok := s.state.TenantByFolder(task.TenantFolder)
	if !ok {
		s.logger.Error("task references unknown tenant, pausing",
			"task_id", task.ID, "tenant", task.TenantFolder)
		if err := s.store.Pause(ctx, task.ID); err != nil {
			s.logger.Error("pausing orphaned task failed", "task_id", task.ID, "error", err)
		}
		return
	}

	logger := s.logger.With("task_id", task.ID, "tenant", task.TenantFolder)
	logger.Info("running scheduled task", "kind", task.Kind)

	invocation := &schema.Invocation{
		Prompt:          task.Prompt,
		TenantFolder:    task.TenantFolder,
		DestinationID:   task.DestinationID,
		IsMain:          tenant.IsMain,
		IsScheduledTask: true,
	}
	if task.Context == schema.ContextTenantShared {
		invocation.SessionID = s.state.SessionID(task.TenantFolder)
	}

	startedAt := s.clk.Now()
	result, execErr := s.executor.Execute(ctx, &tenant, invocation)
	duration := s.clk.Now().Sub(startedAt)

	run := schema.TaskRun{
		TaskID:    task.ID,
		StartedAt: startedAt,
		Duration:  duration,
	}
	switch {
	case execErr != nil:
		run.Status = schema.StatusError
		run.Detail = boundDetail(execErr.Error())
		logger.Error("scheduled task failed", "error", execErr, "duration", duration)
	case result.Status == schema.StatusError:
		run.Status = schema.StatusError
		run.Detail = boundDetail(result.Error)
		logger.Warn("scheduled task reported error", "detail", run.Detail)
	default:
		run.Status = schema.StatusSuccess
		if result.Result != nil {
			run.Detail = boundDetail(*result.Result)
		}
		logger.Info("scheduled task succeeded", "duration", duration)
	}

	if execErr == nil && result.NewSessionID != "" && task.Context == schema.ContextTenantShared {
		s.state.SetSessionID(task.TenantFolder, result.NewSessionID)
	}

	next, err := nextRun(task.Kind, task.Schedule, s.clk.Now(), s.location, true)
	if err != nil {
		// Unparseable schedule on a task that already ran: leave the
		// task never-due and surface it loudly.
		logger.Error("schedule no longer computable", "schedule", task.Schedule, "error", err)
		next = nil
	}
	if err := s.store.RecordRun(ctx, task.ID, next, run); err != nil {
		logger.Error("recording run failed", "error", err)
	}
}

// Apply performs a sandbox-originated task operation on behalf of
// source. Authorization is enforced here because only the dispatcher
// sees the targeted task's owner.
func (s *Scheduler) Apply(ctx context.Context, operation *schema.TaskOperation, source *schema.Tenant) error {
	ownerFolder := ""
	switch operation.Type {
	case schema.OperationPauseTask, schema.OperationResumeTask, schema.OperationCancelTask:
		task, err := s.store.Get(ctx, operation.TaskID)
		if err != nil {
			return err
		}
		ownerFolder = task.TenantFolder
	}

	if err := schema.AuthorizeTaskOperation(operation, source, ownerFolder); err != nil {
		s.logger.Warn("task operation denied",
			"operation", operation.Type, "source", source.Folder, "error", err)
		return err
	}

	switch operation.Type {
	case schema.OperationScheduleTask:
		return s.scheduleTask(ctx, operation)
	case schema.OperationPauseTask:
		return s.store.Pause(ctx, operation.TaskID)
	case schema.OperationResumeTask:
		return s.resumeTask(ctx, operation.TaskID)
	case schema.OperationCancelTask:
		return s.store.Cancel(ctx, operation.TaskID)
	case schema.OperationRegisterTenant:
		return s.state.RegisterTenant(*operation.Tenant)
	case schema.OperationRefreshTenants:
		// State is re-read on every lookup; the snapshot refresh
		// happens on the next run. Nothing to invalidate.
		s.logger.Info("tenant refresh requested", "source", source.Folder)
		return nil
	}
	return fmt.Errorf("unknown task operation %q", operation.Type)
}

// scheduleTask creates a task from a schedule_task operation,
// computing its first run time.
func (s *Scheduler) scheduleTask(ctx context.Context, operation *schema.TaskOperation) error {
	contextMode := operation.ContextMode
	if contextMode == "" {
		contextMode = schema.ContextTenantShared
	}

	next, err := nextRun(operation.ScheduleKind, operation.Schedule, s.clk.Now(), s.location, false)
	if err != nil {
		return err
	}

	task := &schema.Task{
		TenantFolder:  operation.TenantFolder,
		DestinationID: operation.DestinationID,
		Prompt:        operation.Prompt,
		Kind:          operation.ScheduleKind,
		Schedule:      operation.Schedule,
		Context:       contextMode,
		NextRun:       next,
	}
	if err := s.store.Create(ctx, task); err != nil {
		return err
	}
	s.logger.Info("task scheduled",
		"task_id", task.ID, "tenant", task.TenantFolder, "kind", task.Kind, "next_run", next)
	return nil
}

// resumeTask reactivates a paused task with a freshly computed next
// run time; a once task whose time has passed becomes due immediately.
func (s *Scheduler) resumeTask(ctx context.Context, taskID string) error {
	task, err := s.store.Get(ctx, taskID)
	if err != nil {
		return err
	}

	now := s.clk.Now()
	next, err := nextRun(task.Kind, task.Schedule, now, s.location, false)
	if err != nil {
		return err
	}
	at := now
	if next != nil {
		at = *next
		if task.Kind == schema.ScheduleOnce && at.Before(now) {
			at = now
		}
	}
	return s.store.Resume(ctx, taskID, at)
}

func boundDetail(text string) string {
	return redact.Tail(redact.String(text), detailLimit)
}
