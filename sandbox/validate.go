// Copyright 2026 The Burrow Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/burrow-systems/burrow/lib/schema"
)

// MountDecision is the outcome of validating one mount request.
type MountDecision struct {
	// Allowed reports whether the mount may proceed.
	Allowed bool

	// Reason explains a rejection in operator terms. Empty when
	// Allowed.
	Reason string

	// RealHostPath is the fully resolved host path (symlinks
	// evaluated). Only set when Allowed; mounts must bind this path,
	// never the requested one.
	RealHostPath string

	// Readonly is the effective access mode after policy clamping.
	Readonly bool
}

// Validate checks one mount request against the policy for the given
// tenant capability. It never returns an error: every failure mode is
// a rejection with a reason, so callers cannot accidentally treat a
// policy failure as retryable.
//
// The decision is computed on the symlink-resolved path. Containment
// is judged with filepath.Rel against each resolved root, never by
// string prefix, so sibling directories sharing a prefix (/data vs
// /database) cannot bleed into each other.
func (v *Validator) Validate(request schema.MountRequest, isMain bool) MountDecision {
	if v.loadErr != nil {
		return rejected(fmt.Sprintf("mount policy unavailable: %v", v.loadErr))
	}

	if request.ContainerPath == "" {
		return rejected("container path is empty")
	}
	if filepath.IsAbs(request.ContainerPath) {
		return rejected(fmt.Sprintf("container path %q must be relative", request.ContainerPath))
	}
	for _, component := range strings.Split(request.ContainerPath, "/") {
		if component == ".." {
			return rejected(fmt.Sprintf("container path %q contains a parent reference", request.ContainerPath))
		}
	}

	expanded, err := expandPath(request.HostPath)
	if err != nil {
		return rejected(fmt.Sprintf("host path %q: %v", request.HostPath, err))
	}
	resolved, err := filepath.EvalSymlinks(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			return rejected(fmt.Sprintf("host path %q does not exist", request.HostPath))
		}
		return rejected(fmt.Sprintf("resolving host path %q: %v", request.HostPath, err))
	}

	if pattern, hit := v.blockedBy(resolved); hit {
		v.logger.Warn("mount request hit blocked pattern",
			"host_path", request.HostPath,
			"resolved", resolved,
			"pattern", pattern,
		)
		return rejected(fmt.Sprintf("path %q matches blocked pattern %q", resolved, pattern))
	}

	root, contained := v.containingRoot(resolved)
	if !contained {
		return rejected(fmt.Sprintf("path %q is outside every allowed root", resolved))
	}

	requestedRW := !request.Readonly
	grantRW := requestedRW && root.AllowReadWrite && (isMain || !v.policy.NonMainReadOnly)

	return MountDecision{
		Allowed:      true,
		RealHostPath: resolved,
		Readonly:     !grantRW,
	}
}

// ValidateBatch validates a tenant's extra mount requests. Rejected
// requests are logged and dropped; accepted ones are returned as
// bound mounts with their container paths remapped under extra/ so a
// tenant cannot shadow the standard sandbox layout.
func (v *Validator) ValidateBatch(requests []schema.MountRequest, isMain bool, tenantFolder string) []BoundMount {
	var mounts []BoundMount
	for _, request := range requests {
		decision := v.Validate(request, isMain)
		if !decision.Allowed {
			v.logger.Warn("dropping extra mount",
				"tenant", tenantFolder,
				"host_path", request.HostPath,
				"reason", decision.Reason,
			)
			continue
		}
		mounts = append(mounts, BoundMount{
			HostPath:      decision.RealHostPath,
			ContainerPath: filepath.Join("/extra", request.ContainerPath),
			Readonly:      decision.Readonly,
		})
	}
	return mounts
}

// blockedBy reports the first blocked pattern the resolved path
// matches. A pattern matches when it equals any path component or
// occurs as a substring of the full path.
func (v *Validator) blockedBy(resolved string) (string, bool) {
	components := strings.Split(resolved, string(filepath.Separator))
	for _, pattern := range v.policy.BlockedPatterns {
		if strings.Contains(resolved, pattern) {
			return pattern, true
		}
		for _, component := range components {
			if component == pattern {
				return pattern, true
			}
		}
	}
	return "", false
}

// containingRoot finds the first allowed root containing the resolved
// path. Roots that fail to resolve (deleted since policy load) are
// skipped.
func (v *Validator) containingRoot(resolved string) (AllowedRoot, bool) {
	for _, root := range v.policy.AllowedRoots {
		rootResolved, err := filepath.EvalSymlinks(root.Path)
		if err != nil {
			continue
		}
		relative, err := filepath.Rel(rootResolved, resolved)
		if err != nil {
			continue
		}
		if relative == ".." || strings.HasPrefix(relative, ".."+string(filepath.Separator)) {
			continue
		}
		return root, true
	}
	return AllowedRoot{}, false
}

func rejected(reason string) MountDecision {
	return MountDecision{Reason: reason}
}

// expandPath turns ~ and relative forms into an absolute path without
// touching the filesystem.
func expandPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty path")
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return filepath.Abs(path)
}
