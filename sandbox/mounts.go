// Copyright 2026 The Burrow Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"
	"os"
	"path"

	"github.com/burrow-systems/burrow/lib/config"
	"github.com/burrow-systems/burrow/lib/schema"
)

// Container-side mount points of the standard sandbox layout. Extra
// mounts live under /extra and cannot shadow these.
const (
	workspaceMount   = "/workspace"
	sharedMount      = "/shared"
	sessionMount     = "/session"
	mailboxMount     = "/mailbox"
	credentialsMount = "/run/burrow/credentials.env"
)

// assembleMounts builds the standard mount set for one tenant run.
//
// Main tenant: the full workspace read-write plus its own tenant
// folder at /workspace/<folder>. Non-main tenant: its own
// folder under tenants/ read-write plus the shared folder read-only
// when it exists. Every tenant gets its session store read-write and
// its own mailbox read-write (the outbox path for sending messages).
// Extra mounts are policy-validated and remapped under /extra.
func assembleMounts(paths *config.PathsConfig, tenant *schema.Tenant, validator *Validator) ([]BoundMount, error) {
	var mounts []BoundMount

	if tenant.IsMain {
		if err := os.MkdirAll(paths.Workspace, 0o755); err != nil {
			return nil, fmt.Errorf("creating workspace: %w", err)
		}
		mounts = append(mounts, BoundMount{
			HostPath:      paths.Workspace,
			ContainerPath: workspaceMount,
		})
		tenantDir := paths.TenantDir(tenant.Folder)
		if err := os.MkdirAll(tenantDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating tenant folder: %w", err)
		}
		// Binds deeper than /workspace shadow it inside the sandbox.
		mounts = append(mounts, BoundMount{
			HostPath:      tenantDir,
			ContainerPath: path.Join(workspaceMount, tenant.Folder),
		})
	} else {
		tenantDir := paths.TenantDir(tenant.Folder)
		if err := os.MkdirAll(tenantDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating tenant folder: %w", err)
		}
		mounts = append(mounts, BoundMount{
			HostPath:      tenantDir,
			ContainerPath: workspaceMount,
		})
		if info, err := os.Stat(paths.Shared); err == nil && info.IsDir() {
			mounts = append(mounts, BoundMount{
				HostPath:      paths.Shared,
				ContainerPath: sharedMount,
				Readonly:      true,
			})
		}
	}

	sessionDir := paths.SessionDir(tenant.Folder)
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating session store: %w", err)
	}
	mounts = append(mounts, BoundMount{
		HostPath:      sessionDir,
		ContainerPath: sessionMount,
	})

	mailboxDir := paths.MailboxDir(tenant.Folder)
	if err := os.MkdirAll(mailboxDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating mailbox: %w", err)
	}
	mounts = append(mounts, BoundMount{
		HostPath:      mailboxDir,
		ContainerPath: mailboxMount,
	})

	mounts = append(mounts, validator.ValidateBatch(tenant.ExtraMounts, tenant.IsMain, tenant.Folder)...)
	return mounts, nil
}
