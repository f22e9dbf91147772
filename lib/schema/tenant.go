// Copyright 2026 The Burrow Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"fmt"
	"regexp"
	"strings"
)

// Tenant is an isolated configuration and identity unit with its own
// filesystem scope. The main tenant has broader, elevated scope: it
// sees the full workspace, every tenant's tasks, and the peer-tenant
// snapshot, and it alone may register tenants or address arbitrary
// message destinations.
//
// Tenants are created by an explicit main-tenant-only registration and
// are never deleted at runtime.
type Tenant struct {
	// Name is the human-facing tenant name.
	Name string `json:"name" cbor:"1,keyasint"`

	// Folder is the tenant's filesystem identifier: the directory
	// name under tenants/, mailbox/, sessions/, and logs/. Lowercase
	// alphanumerics, hyphens, underscores.
	Folder string `json:"folder" cbor:"2,keyasint"`

	// TriggerPattern selects this tenant for inbound messages.
	TriggerPattern string `json:"triggerPattern,omitempty" cbor:"3,keyasint,omitempty"`

	// DestinationID is the chat destination bound to this tenant's
	// identity. A non-main tenant may only send to this destination.
	DestinationID string `json:"destinationId,omitempty" cbor:"4,keyasint,omitempty"`

	// ExtraMounts are tenant-specific mount requests, granted only
	// when the mount policy allows them.
	ExtraMounts []MountRequest `json:"extraMounts,omitempty" cbor:"5,keyasint,omitempty"`

	// TimeoutSeconds overrides the default per-run wall-clock timeout
	// when positive.
	TimeoutSeconds int `json:"timeoutSeconds,omitempty" cbor:"6,keyasint,omitempty"`

	// IsMain marks the single elevated tenant.
	IsMain bool `json:"isMain,omitempty" cbor:"7,keyasint,omitempty"`
}

// MountRequest asks for a host path to be exposed inside the sandbox
// at a container-relative path. Requests are granted or rejected by
// the mount policy; a rejected request is dropped, never fatal.
type MountRequest struct {
	// HostPath is the host filesystem path. Tilde and relative forms
	// are expanded during validation.
	HostPath string `json:"hostPath" cbor:"1,keyasint"`

	// ContainerPath is where the mount appears inside the sandbox,
	// relative to the extra-mount namespace. Must be non-empty,
	// relative, and free of ".." segments.
	ContainerPath string `json:"containerPath" cbor:"2,keyasint"`

	// Readonly requests read-only exposure. Read-write is granted
	// only when policy and tenant standing both permit it.
	Readonly bool `json:"readonly,omitempty" cbor:"3,keyasint,omitempty"`
}

var folderPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Validate checks structural validity of a tenant record.
func (t *Tenant) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("tenant: name is required")
	}
	if !folderPattern.MatchString(t.Folder) {
		return fmt.Errorf("tenant %q: invalid folder %q", t.Name, t.Folder)
	}
	if t.TimeoutSeconds < 0 {
		return fmt.Errorf("tenant %q: negative timeout", t.Name)
	}
	return nil
}
