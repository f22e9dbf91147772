// Copyright 2026 The Burrow Authors
// SPDX-License-Identifier: Apache-2.0

// Package taskstore persists scheduled tasks and their append-only run
// history in SQLite. The scheduler is the only writer of task rows;
// run rows are immutable once written.
package taskstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/burrow-systems/burrow/lib/clock"
	"github.com/burrow-systems/burrow/lib/schema"
	"github.com/burrow-systems/burrow/lib/sqlitepool"
)

// ErrNotFound is returned when a task ID does not exist.
var ErrNotFound = errors.New("task not found")

const storeSchema = `
	CREATE TABLE IF NOT EXISTS tasks (
		id             TEXT PRIMARY KEY,
		tenant_folder  TEXT NOT NULL,
		destination_id TEXT NOT NULL,
		prompt         TEXT NOT NULL,
		kind           TEXT NOT NULL,
		schedule       TEXT NOT NULL,
		context_mode   TEXT NOT NULL,
		next_run       INTEGER,
		last_run       INTEGER,
		last_result    TEXT NOT NULL DEFAULT '',
		status         TEXT NOT NULL,
		created_at     INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_due ON tasks(status, next_run);
	CREATE INDEX IF NOT EXISTS idx_tasks_tenant ON tasks(tenant_folder, created_at);

	CREATE TABLE IF NOT EXISTS task_runs (
		task_id     TEXT NOT NULL,
		started_at  INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		status      TEXT NOT NULL,
		detail      TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_task_runs_task ON task_runs(task_id, started_at);
`

// StoreConfig holds the parameters for opening a task store.
type StoreConfig struct {
	// Path is the SQLite database file. ":memory:" works for tests
	// with PoolSize 1.
	Path string

	// PoolSize is the connection pool size. Defaults to 4.
	PoolSize int

	// Clock provides creation timestamps.
	Clock clock.Clock

	// Logger receives operational messages.
	Logger *slog.Logger
}

// Store is the SQLite-backed task store. Safe for concurrent use.
type Store struct {
	pool   *sqlitepool.Pool
	clock  clock.Clock
	logger *slog.Logger
}

// Open creates the store, creating the schema on first connection.
func Open(cfg StoreConfig) (*Store, error) {
	if cfg.Clock == nil {
		return nil, fmt.Errorf("taskstore: Clock is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Logger:   logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, storeSchema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("taskstore: %w", err)
	}
	return &Store{pool: pool, clock: cfg.Clock, logger: logger}, nil
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Create inserts a new task. A missing ID is assigned; CreatedAt and
// Status are set by the store. The caller must have computed NextRun.
func (s *Store) Create(ctx context.Context, task *schema.Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Status == "" {
		task.Status = schema.TaskActive
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = s.clock.Now()
	}
	if !task.Kind.Valid() {
		return fmt.Errorf("taskstore: invalid schedule kind %q", task.Kind)
	}
	if !task.Context.Valid() {
		return fmt.Errorf("taskstore: invalid context mode %q", task.Context)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("taskstore: create: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `INSERT INTO tasks
		(id, tenant_folder, destination_id, prompt, kind, schedule,
		 context_mode, next_run, last_run, last_result, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
		Args: []any{
			task.ID,
			task.TenantFolder,
			task.DestinationID,
			task.Prompt,
			string(task.Kind),
			task.Schedule,
			string(task.Context),
			timePtrToMillis(task.NextRun),
			timePtrToMillis(task.LastRun),
			task.LastResult,
			string(task.Status),
			task.CreatedAt.UnixMilli(),
		},
	})
	if err != nil {
		return fmt.Errorf("taskstore: create %s: %w", task.ID, err)
	}
	s.logger.Info("task created",
		"task_id", task.ID, "tenant", task.TenantFolder, "kind", task.Kind)
	return nil
}

// Get returns the task with the given ID, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*schema.Task, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("taskstore: get: %w", err)
	}
	defer s.pool.Put(conn)

	return getTask(conn, id)
}

func getTask(conn *sqlite.Conn, id string) (*schema.Task, error) {
	var task *schema.Task
	err := sqlitex.Execute(conn, selectColumns+` WHERE id = ?`, &sqlitex.ExecOptions{
		Args: []any{id},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			task = scanTask(stmt)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("taskstore: get %s: %w", id, err)
	}
	if task == nil {
		return nil, fmt.Errorf("taskstore: %s: %w", id, ErrNotFound)
	}
	return task, nil
}

// Due returns the active tasks whose next run time has arrived, oldest
// first.
func (s *Store) Due(ctx context.Context, now time.Time) ([]schema.Task, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("taskstore: due: %w", err)
	}
	defer s.pool.Put(conn)

	var tasks []schema.Task
	err = sqlitex.Execute(conn, selectColumns+`
		WHERE status = ? AND next_run IS NOT NULL AND next_run <= ?
		ORDER BY next_run`, &sqlitex.ExecOptions{
		Args: []any{string(schema.TaskActive), now.UnixMilli()},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			tasks = append(tasks, *scanTask(stmt))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("taskstore: due: %w", err)
	}
	return tasks, nil
}

// ListForTenant returns a tenant's tasks, or every task when all is
// set (the main tenant's view). Newest first.
func (s *Store) ListForTenant(ctx context.Context, folder string, all bool) ([]schema.Task, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("taskstore: list: %w", err)
	}
	defer s.pool.Put(conn)

	query := selectColumns + ` WHERE tenant_folder = ? ORDER BY created_at DESC`
	args := []any{folder}
	if all {
		query = selectColumns + ` ORDER BY created_at DESC`
		args = nil
	}

	var tasks []schema.Task
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			tasks = append(tasks, *scanTask(stmt))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("taskstore: list: %w", err)
	}
	return tasks, nil
}

// RecordRun updates a task after an execution and appends the run to
// the history, in one transaction. nextRun nil with kind "once" marks
// the task completed; nil for recurring kinds leaves the task active
// but never due (operator intervention required).
func (s *Store) RecordRun(ctx context.Context, taskID string, nextRun *time.Time, run schema.TaskRun) (err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("taskstore: record run: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("taskstore: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	task, err := getTask(conn, taskID)
	if err != nil {
		return err
	}

	status := task.Status
	if task.Kind == schema.ScheduleOnce {
		status = schema.TaskCompleted
		nextRun = nil
	}

	err = sqlitex.Execute(conn, `UPDATE tasks
		SET next_run = ?, last_run = ?, last_result = ?, status = ?
		WHERE id = ?`, &sqlitex.ExecOptions{
		Args: []any{
			timePtrToMillis(nextRun),
			run.StartedAt.UnixMilli(),
			run.Detail,
			string(status),
			taskID,
		},
	})
	if err != nil {
		return fmt.Errorf("taskstore: record run %s: %w", taskID, err)
	}

	err = sqlitex.Execute(conn, `INSERT INTO task_runs
		(task_id, started_at, duration_ms, status, detail)
		VALUES (?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
		Args: []any{
			taskID,
			run.StartedAt.UnixMilli(),
			run.Duration.Milliseconds(),
			run.Status,
			run.Detail,
		},
	})
	if err != nil {
		return fmt.Errorf("taskstore: append run %s: %w", taskID, err)
	}
	return nil
}

// Pause suspends an active task. Its NextRun is preserved but ignored
// until resume. Pausing a completed task is an error.
func (s *Store) Pause(ctx context.Context, id string) error {
	return s.transition(ctx, id, schema.TaskPaused, nil, func(task *schema.Task) error {
		if task.Status == schema.TaskCompleted {
			return fmt.Errorf("taskstore: %s is completed", id)
		}
		return nil
	})
}

// Resume reactivates a paused task with a freshly computed next run
// time.
func (s *Store) Resume(ctx context.Context, id string, nextRun time.Time) error {
	return s.transition(ctx, id, schema.TaskActive, &nextRun, func(task *schema.Task) error {
		if task.Status != schema.TaskPaused {
			return fmt.Errorf("taskstore: %s is not paused", id)
		}
		return nil
	})
}

func (s *Store) transition(ctx context.Context, id string, status schema.TaskStatus, nextRun *time.Time, check func(*schema.Task) error) (err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("taskstore: transition: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("taskstore: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	task, err := getTask(conn, id)
	if err != nil {
		return err
	}
	if err := check(task); err != nil {
		return err
	}

	query := `UPDATE tasks SET status = ? WHERE id = ?`
	args := []any{string(status), id}
	if nextRun != nil {
		query = `UPDATE tasks SET status = ?, next_run = ? WHERE id = ?`
		args = []any{string(status), nextRun.UnixMilli(), id}
	}
	if err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{Args: args}); err != nil {
		return fmt.Errorf("taskstore: transition %s: %w", id, err)
	}
	s.logger.Info("task transitioned", "task_id", id, "status", status)
	return nil
}

// Cancel deletes a task. Its run history stays.
func (s *Store) Cancel(ctx context.Context, id string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("taskstore: cancel: %w", err)
	}
	defer s.pool.Put(conn)

	if _, err := getTask(conn, id); err != nil {
		return err
	}
	err = sqlitex.Execute(conn, `DELETE FROM tasks WHERE id = ?`, &sqlitex.ExecOptions{
		Args: []any{id},
	})
	if err != nil {
		return fmt.Errorf("taskstore: cancel %s: %w", id, err)
	}
	s.logger.Info("task cancelled", "task_id", id)
	return nil
}

// Runs returns a task's run history, newest first, capped at limit.
func (s *Store) Runs(ctx context.Context, taskID string, limit int) ([]schema.TaskRun, error) {
	if limit <= 0 {
		limit = 50
	}
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("taskstore: runs: %w", err)
	}
	defer s.pool.Put(conn)

	var runs []schema.TaskRun
	err = sqlitex.Execute(conn, `SELECT task_id, started_at, duration_ms, status, detail
		FROM task_runs WHERE task_id = ? ORDER BY started_at DESC LIMIT ?`, &sqlitex.ExecOptions{
		Args: []any{taskID, limit},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			runs = append(runs, schema.TaskRun{
				TaskID:    stmt.ColumnText(0),
				StartedAt: time.UnixMilli(stmt.ColumnInt64(1)).UTC(),
				Duration:  time.Duration(stmt.ColumnInt64(2)) * time.Millisecond,
				Status:    stmt.ColumnText(3),
				Detail:    stmt.ColumnText(4),
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("taskstore: runs %s: %w", taskID, err)
	}
	return runs, nil
}

const selectColumns = `SELECT id, tenant_folder, destination_id, prompt,
	kind, schedule, context_mode, next_run, last_run, last_result,
	status, created_at FROM tasks`

func scanTask(stmt *sqlite.Stmt) *schema.Task {
	task := &schema.Task{
		ID:            stmt.ColumnText(0),
		TenantFolder:  stmt.ColumnText(1),
		DestinationID: stmt.ColumnText(2),
		Prompt:        stmt.ColumnText(3),
		Kind:          schema.ScheduleKind(stmt.ColumnText(4)),
		Schedule:      stmt.ColumnText(5),
		Context:       schema.ContextMode(stmt.ColumnText(6)),
		LastResult:    stmt.ColumnText(9),
		Status:        schema.TaskStatus(stmt.ColumnText(10)),
		CreatedAt:     time.UnixMilli(stmt.ColumnInt64(11)).UTC(),
	}
	if stmt.ColumnType(7) != sqlite.TypeNull {
		at := time.UnixMilli(stmt.ColumnInt64(7)).UTC()
		task.NextRun = &at
	}
	if stmt.ColumnType(8) != sqlite.TypeNull {
		at := time.UnixMilli(stmt.ColumnInt64(8)).UTC()
		task.LastRun = &at
	}
	return task
}

func timePtrToMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}
