// Copyright 2026 The Burrow Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/burrow-systems/burrow/lib/schema"
)

// TaskSnapshotter provides the task view published into a sandbox's
// mailbox before each run.
type TaskSnapshotter interface {
	// TasksForTenant returns the tasks visible to the tenant: its own
	// tasks, or every task for the main tenant.
	TasksForTenant(folder string, isMain bool) ([]schema.Task, error)
}

// TenantSnapshotter provides the peer-tenant view for the main tenant.
type TenantSnapshotter interface {
	Tenants() []schema.Tenant
}

// writeStateSnapshot refreshes tasks.json and tenants.json in the
// tenant's mailbox so the sandbox sees current kernel state without
// any host round-trip. The tenant list is populated only for the main
// tenant; everyone else gets an empty list. Snapshot failures are
// non-fatal for the run; the caller logs and continues.
func writeStateSnapshot(dir string, tenant *schema.Tenant, tasks TaskSnapshotter, tenants TenantSnapshotter) error {
	if tasks != nil {
		visible, err := tasks.TasksForTenant(tenant.Folder, tenant.IsMain)
		if err != nil {
			return fmt.Errorf("listing tasks: %w", err)
		}
		if visible == nil {
			visible = []schema.Task{}
		}
		if err := writeJSONFile(filepath.Join(dir, "tasks.json"), visible); err != nil {
			return err
		}
	}

	if tenants != nil {
		peers := []schema.Tenant{}
		if tenant.IsMain {
			peers = tenants.Tenants()
		}
		if err := writeJSONFile(filepath.Join(dir, "tenants.json"), peers); err != nil {
			return err
		}
	}
	return nil
}

// writeJSONFile writes via a temp file and rename so the sandbox never
// observes a half-written snapshot.
func writeJSONFile(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	temp := path + ".tmp"
	if err := os.WriteFile(temp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", temp, err)
	}
	if err := os.Rename(temp, path); err != nil {
		os.Remove(temp)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
