// Copyright 2026 The Burrow Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import "time"

// ScheduleKind governs how a task's next run time is computed.
type ScheduleKind string

const (
	// ScheduleCron recurs per a 5-field cron expression evaluated in
	// the scheduler's configured timezone.
	ScheduleCron ScheduleKind = "cron"

	// ScheduleInterval recurs a fixed number of milliseconds after
	// each completed run.
	ScheduleInterval ScheduleKind = "interval"

	// ScheduleOnce runs a single time, then completes.
	ScheduleOnce ScheduleKind = "once"
)

// Valid reports whether the kind is one of the defined values.
func (k ScheduleKind) Valid() bool {
	return k == ScheduleCron || k == ScheduleInterval || k == ScheduleOnce
}

// ContextMode governs the session context a scheduled run executes in.
type ContextMode string

const (
	// ContextTenantShared resumes the tenant's current session, so
	// scheduled runs share conversational state with interactive use.
	ContextTenantShared ContextMode = "tenant-shared"

	// ContextIsolated starts every run with a fresh session.
	ContextIsolated ContextMode = "isolated"
)

// Valid reports whether the mode is one of the defined values.
func (m ContextMode) Valid() bool {
	return m == ContextTenantShared || m == ContextIsolated
}

// TaskStatus is a scheduled task's lifecycle state.
type TaskStatus string

const (
	TaskActive    TaskStatus = "active"
	TaskPaused    TaskStatus = "paused"
	TaskCompleted TaskStatus = "completed"
)

// Task is a scheduled unit of work. Invariant: Status is
// TaskCompleted iff Kind is ScheduleOnce and the task has run.
type Task struct {
	// ID is the task's unique identifier (UUID).
	ID string `json:"id"`

	// TenantFolder is the tenant the task runs as.
	TenantFolder string `json:"tenantFolder"`

	// DestinationID is where run results are delivered.
	DestinationID string `json:"destinationId"`

	// Prompt is the work description passed to the sandbox.
	Prompt string `json:"prompt"`

	// Kind selects the schedule interpretation.
	Kind ScheduleKind `json:"scheduleKind"`

	// Schedule is the kind-specific value: cron expression, interval
	// milliseconds, or RFC 3339 time for once.
	Schedule string `json:"schedule"`

	// Context selects the session context for runs.
	Context ContextMode `json:"contextMode"`

	// NextRun is when the task is next due. Nil means never (paused
	// tasks keep their value; completed once-tasks clear it).
	NextRun *time.Time `json:"nextRun"`

	// LastRun is when the task last started executing.
	LastRun *time.Time `json:"lastRun,omitempty"`

	// LastResult is a bounded summary of the last run's outcome.
	LastResult string `json:"lastResult,omitempty"`

	// Status is the lifecycle state.
	Status TaskStatus `json:"status"`

	// CreatedAt is when the task was scheduled.
	CreatedAt time.Time `json:"createdAt"`
}

// TaskRun is one row of the append-only run log. Rows are immutable
// once written.
type TaskRun struct {
	// TaskID is the task that ran.
	TaskID string `json:"taskId"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"startedAt"`

	// Duration is the run's wall-clock duration.
	Duration time.Duration `json:"duration"`

	// Status is "success" or "error".
	Status string `json:"status"`

	// Detail is the bounded result text or error description.
	Detail string `json:"detail,omitempty"`
}
