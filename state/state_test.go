// Copyright 2026 The Burrow Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/burrow-systems/burrow/lib/clock"
	"github.com/burrow-systems/burrow/lib/schema"
)

func testStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.cbor")
	store, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return store, path
}

func TestOpenEmptyWhenMissing(t *testing.T) {
	store, _ := testStore(t)
	if len(store.Tenants()) != 0 {
		t.Fatal("fresh store should have no tenants")
	}
}

func TestOpenRejectsCorruptSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.cbor")
	if err := os.WriteFile(path, []byte("not cbor at all"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path, nil); err == nil {
		t.Fatal("corrupt snapshot must be an error, not silently discarded")
	}
}

func TestRegisterTenantPersistsImmediately(t *testing.T) {
	store, path := testStore(t)
	tenant := schema.Tenant{
		Name:          "Research",
		Folder:        "research",
		DestinationID: "dest-1",
	}
	if err := store.RegisterTenant(tenant); err != nil {
		t.Fatalf("RegisterTenant: %v", err)
	}

	reopened, err := Open(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	loaded, ok := reopened.TenantByFolder("research")
	if !ok || loaded.Name != "Research" {
		t.Fatalf("registration did not survive restart: %+v", reopened.Tenants())
	}
}

func TestRegisterTenantRejectsDuplicates(t *testing.T) {
	store, _ := testStore(t)
	tenant := schema.Tenant{Name: "A", Folder: "shared-folder"}
	if err := store.RegisterTenant(tenant); err != nil {
		t.Fatal(err)
	}
	err := store.RegisterTenant(schema.Tenant{Name: "B", Folder: "shared-folder"})
	if !errors.Is(err, ErrDuplicateTenant) {
		t.Fatalf("expected ErrDuplicateTenant, got %v", err)
	}
}

func TestRegisterTenantRejectsSecondMain(t *testing.T) {
	store, _ := testStore(t)
	if err := store.RegisterTenant(schema.Tenant{Name: "A", Folder: "a", IsMain: true}); err != nil {
		t.Fatal(err)
	}
	if err := store.RegisterTenant(schema.Tenant{Name: "B", Folder: "b", IsMain: true}); err == nil {
		t.Fatal("a second main tenant must be rejected")
	}
}

func TestSessionRoundTrip(t *testing.T) {
	store, path := testStore(t)
	if err := store.RegisterTenant(schema.Tenant{Name: "A", Folder: "a"}); err != nil {
		t.Fatal(err)
	}
	store.SetSessionID("a", "session-42")
	if err := store.Flush(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := reopened.SessionID("a"); got != "session-42" {
		t.Fatalf("session not restored: %q", got)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	store, path := testStore(t)
	at := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	store.SetCursor(Cursor{LastTimestamp: at, LastMessageID: "msg-99"})
	store.SetLastResponse("research", at.Add(time.Second))
	if err := store.Flush(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	cursor := reopened.Cursor()
	if cursor.LastMessageID != "msg-99" || !cursor.LastTimestamp.Equal(at) {
		t.Fatalf("cursor did not survive restart: %+v", cursor)
	}
	if got := reopened.LastResponse("research"); !got.Equal(at.Add(time.Second)) {
		t.Fatalf("last response did not survive restart: %v", got)
	}
	if got := reopened.LastResponse("never-heard-of"); !got.IsZero() {
		t.Fatalf("unknown tenant should have zero last response, got %v", got)
	}
}

func TestTranslateAliases(t *testing.T) {
	store, _ := testStore(t)
	store.SetAlias("legacy-handle", "dest-1")

	if got := store.Translate("legacy-handle"); got != "dest-1" {
		t.Fatalf("alias not applied: %q", got)
	}
	if got := store.Translate("unknown"); got != "unknown" {
		t.Fatalf("unaliased identity must pass through: %q", got)
	}
}

func TestTenantByDestinationFollowsAliases(t *testing.T) {
	store, _ := testStore(t)
	if err := store.RegisterTenant(schema.Tenant{Name: "A", Folder: "a", DestinationID: "dest-1"}); err != nil {
		t.Fatal(err)
	}
	store.SetAlias("old-dest", "dest-1")

	tenant, ok := store.TenantByDestination("old-dest")
	if !ok || tenant.Folder != "a" {
		t.Fatalf("alias lookup failed: %+v ok=%v", tenant, ok)
	}
}

func TestFlushSkipsWhenClean(t *testing.T) {
	store, path := testStore(t)
	if err := store.RegisterTenant(schema.Tenant{Name: "A", Folder: "a"}); err != nil {
		t.Fatal(err)
	}
	before, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := store.Flush(); err != nil {
		t.Fatal(err)
	}
	after, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if !after.ModTime().Equal(before.ModTime()) {
		t.Fatal("clean store must not rewrite the snapshot")
	}
}

func TestFlusherFlushesOnTickAndShutdown(t *testing.T) {
	store, path := testStore(t)
	if err := store.RegisterTenant(schema.Tenant{Name: "A", Folder: "a"}); err != nil {
		t.Fatal(err)
	}

	clk := clock.Fake(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	flusher := NewFlusher(store, clk, 30*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	flusher.Start(ctx)
	flusher.Start(ctx) // idempotent

	store.SetSessionID("a", "tick-session")
	clk.WaitForTimers(1)
	clk.Advance(31 * time.Second)

	waitFor(t, func() bool {
		reopened, err := Open(path, nil)
		return err == nil && reopened.SessionID("a") == "tick-session"
	})

	store.SetSessionID("a", "final-session")
	cancel()
	flusher.Wait()

	reopened, err := Open(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := reopened.SessionID("a"); got != "final-session" {
		t.Fatalf("shutdown must flush pending state, got %q", got)
	}
}

func waitFor(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
