// Copyright 2026 The Burrow Authors
// SPDX-License-Identifier: Apache-2.0

package taskstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/burrow-systems/burrow/lib/clock"
	"github.com/burrow-systems/burrow/lib/schema"
)

func openTestStore(t *testing.T, clk clock.Clock) *Store {
	t.Helper()
	store, err := Open(StoreConfig{
		Path:     filepath.Join(t.TempDir(), "tasks.db"),
		PoolSize: 2,
		Clock:    clk,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func activeTask(nextRun time.Time) *schema.Task {
	return &schema.Task{
		TenantFolder:  "research",
		DestinationID: "dest-1",
		Prompt:        "collect the morning digest",
		Kind:          schema.ScheduleCron,
		Schedule:      "0 9 * * *",
		Context:       schema.ContextIsolated,
		NextRun:       &nextRun,
	}
}

func TestCreateAndGet(t *testing.T) {
	clk := clock.Fake(time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC))
	store := openTestStore(t, clk)
	ctx := context.Background()

	task := activeTask(clk.Now().Add(time.Hour))
	if err := store.Create(ctx, task); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if task.ID == "" {
		t.Fatal("Create must assign an ID")
	}

	loaded, err := store.Get(ctx, task.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if loaded.Prompt != task.Prompt || loaded.Kind != schema.ScheduleCron {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}
	if loaded.Status != schema.TaskActive {
		t.Fatalf("new task should be active, got %s", loaded.Status)
	}
	if loaded.NextRun == nil || !loaded.NextRun.Equal(*task.NextRun) {
		t.Fatalf("next run mismatch: %v vs %v", loaded.NextRun, task.NextRun)
	}
}

func TestGetMissing(t *testing.T) {
	store := openTestStore(t, clock.Real())
	_, err := store.Get(context.Background(), "no-such-task")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateRejectsInvalidKind(t *testing.T) {
	store := openTestStore(t, clock.Real())
	task := activeTask(time.Now())
	task.Kind = "hourly"
	if err := store.Create(context.Background(), task); err == nil {
		t.Fatal("invalid schedule kind must be rejected")
	}
}

func TestDueSelectsOnlyArrivedActiveTasks(t *testing.T) {
	clk := clock.Fake(time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC))
	store := openTestStore(t, clk)
	ctx := context.Background()

	due := activeTask(clk.Now().Add(-time.Minute))
	future := activeTask(clk.Now().Add(time.Hour))
	paused := activeTask(clk.Now().Add(-time.Minute))
	for _, task := range []*schema.Task{due, future, paused} {
		if err := store.Create(ctx, task); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.Pause(ctx, paused.ID); err != nil {
		t.Fatal(err)
	}

	tasks, err := store.Due(ctx, clk.Now())
	if err != nil {
		t.Fatalf("Due: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != due.ID {
		t.Fatalf("expected exactly the due task, got %+v", tasks)
	}
}

func TestRecordRunAdvancesRecurringTask(t *testing.T) {
	clk := clock.Fake(time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))
	store := openTestStore(t, clk)
	ctx := context.Background()

	task := activeTask(clk.Now())
	if err := store.Create(ctx, task); err != nil {
		t.Fatal(err)
	}

	next := clk.Now().Add(24 * time.Hour)
	run := schema.TaskRun{
		TaskID:    task.ID,
		StartedAt: clk.Now(),
		Duration:  3 * time.Second,
		Status:    schema.StatusSuccess,
		Detail:    "digest sent",
	}
	if err := store.RecordRun(ctx, task.ID, &next, run); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	loaded, err := store.Get(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Status != schema.TaskActive {
		t.Fatalf("recurring task must stay active, got %s", loaded.Status)
	}
	if loaded.NextRun == nil || !loaded.NextRun.Equal(next) {
		t.Fatalf("next run not advanced: %v", loaded.NextRun)
	}
	if loaded.LastResult != "digest sent" {
		t.Fatalf("last result not recorded: %q", loaded.LastResult)
	}

	runs, err := store.Runs(ctx, task.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Detail != "digest sent" {
		t.Fatalf("run history missing: %+v", runs)
	}
}

func TestRecordRunCompletesOnceTask(t *testing.T) {
	clk := clock.Fake(time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))
	store := openTestStore(t, clk)
	ctx := context.Background()

	at := clk.Now()
	task := &schema.Task{
		TenantFolder:  "ops",
		DestinationID: "dest-2",
		Prompt:        "rotate the report",
		Kind:          schema.ScheduleOnce,
		Schedule:      at.Format(time.RFC3339),
		Context:       schema.ContextTenantShared,
		NextRun:       &at,
	}
	if err := store.Create(ctx, task); err != nil {
		t.Fatal(err)
	}

	// A stray next run must be discarded for once tasks.
	stray := at.Add(time.Hour)
	run := schema.TaskRun{TaskID: task.ID, StartedAt: at, Status: schema.StatusSuccess}
	if err := store.RecordRun(ctx, task.ID, &stray, run); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.Get(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Status != schema.TaskCompleted {
		t.Fatalf("once task must complete after its run, got %s", loaded.Status)
	}
	if loaded.NextRun != nil {
		t.Fatalf("completed task must have no next run, got %v", loaded.NextRun)
	}
}

func TestPauseResumeLifecycle(t *testing.T) {
	clk := clock.Fake(time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))
	store := openTestStore(t, clk)
	ctx := context.Background()

	task := activeTask(clk.Now().Add(-time.Minute))
	if err := store.Create(ctx, task); err != nil {
		t.Fatal(err)
	}

	if err := store.Pause(ctx, task.ID); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := store.Resume(ctx, task.ID, clk.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Resume: %v", err)
	}

	loaded, err := store.Get(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Status != schema.TaskActive {
		t.Fatalf("resumed task should be active, got %s", loaded.Status)
	}

	if err := store.Resume(ctx, task.ID, clk.Now()); err == nil {
		t.Fatal("resuming an active task must fail")
	}
}

func TestCancelRemovesTaskKeepsHistory(t *testing.T) {
	clk := clock.Fake(time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))
	store := openTestStore(t, clk)
	ctx := context.Background()

	task := activeTask(clk.Now())
	if err := store.Create(ctx, task); err != nil {
		t.Fatal(err)
	}
	run := schema.TaskRun{TaskID: task.ID, StartedAt: clk.Now(), Status: schema.StatusSuccess}
	next := clk.Now().Add(time.Hour)
	if err := store.RecordRun(ctx, task.ID, &next, run); err != nil {
		t.Fatal(err)
	}

	if err := store.Cancel(ctx, task.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := store.Get(ctx, task.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cancelled task should be gone, got %v", err)
	}

	runs, err := store.Runs(ctx, task.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("run history must survive cancellation, got %d rows", len(runs))
	}
}

func TestListForTenant(t *testing.T) {
	clk := clock.Fake(time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))
	store := openTestStore(t, clk)
	ctx := context.Background()

	mine := activeTask(clk.Now())
	other := activeTask(clk.Now())
	other.TenantFolder = "ops"
	for _, task := range []*schema.Task{mine, other} {
		if err := store.Create(ctx, task); err != nil {
			t.Fatal(err)
		}
	}

	tasks, err := store.ListForTenant(ctx, "research", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 || tasks[0].TenantFolder != "research" {
		t.Fatalf("tenant view leaked: %+v", tasks)
	}

	all, err := store.ListForTenant(ctx, "", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("main view should see every task, got %d", len(all))
	}
}
