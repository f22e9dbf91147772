// Copyright 2026 The Burrow Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/tidwall/jsonc"
)

// Policy is the on-disk mount policy: an ordered allowlist of roots,
// a blocklist of patterns merged with the built-in set, and the
// non-main read-only switch. Authored as JSONC (comments and trailing
// commas tolerated).
type Policy struct {
	// AllowedRoots are the only host subtrees mountable into
	// sandboxes. Order matters: the first containing root decides the
	// read-write capability.
	AllowedRoots []AllowedRoot `json:"allowedRoots"`

	// BlockedPatterns extend the built-in blocked set. A pattern
	// blocks a path when it equals any path component or occurs as a
	// substring of the full path.
	BlockedPatterns []string `json:"blockedPatterns"`

	// NonMainReadOnly forces every grant to a non-main tenant to
	// read-only, regardless of the request and the matched root.
	NonMainReadOnly bool `json:"nonMainReadOnly"`
}

// AllowedRoot is one entry of the policy allowlist.
type AllowedRoot struct {
	// Path is the host directory. Tilde and relative forms are
	// expanded at load time.
	Path string `json:"path"`

	// AllowReadWrite permits read-write grants under this root.
	AllowReadWrite bool `json:"allowReadWrite"`

	// Description is operator documentation, unused by the engine.
	Description string `json:"description,omitempty"`
}

// Policy load failures. Both fail closed: a Validator carrying either
// error rejects every request.
var (
	// ErrPolicyNotFound means the policy file does not exist or could
	// not be read.
	ErrPolicyNotFound = errors.New("mount policy not found")

	// ErrPolicyParse means the policy file exists but is not valid
	// JSONC or is structurally invalid.
	ErrPolicyParse = errors.New("mount policy parse failure")
)

// builtinBlockedPatterns are always merged into the policy's blocked
// set. They cover credential directories, private key material, and
// environment files that must never cross into a sandbox no matter
// what the operator's policy says.
var builtinBlockedPatterns = []string{
	".ssh",
	".gnupg",
	".aws",
	".azure",
	".kube",
	".docker",
	".config/gcloud",
	".netrc",
	".env",
	".npmrc",
	".pypirc",
	".git-credentials",
	".password-store",
	"id_rsa",
	"id_ed25519",
	"id_ecdsa",
	"credentials",
	"secrets",
}

// LoadPolicy reads and parses the policy file. Tilde and relative
// root paths are expanded; blocked patterns are merged with the
// built-in set. Callers normally construct a Validator instead of
// calling this directly.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrPolicyNotFound, path, err)
	}

	var policy Policy
	if err := json.Unmarshal(jsonc.ToJSON(data), &policy); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrPolicyParse, path, err)
	}
	if len(policy.AllowedRoots) == 0 {
		return nil, fmt.Errorf("%w: %s has no allowedRoots", ErrPolicyParse, path)
	}
	for rootIndex := range policy.AllowedRoots {
		expanded, err := expandPath(policy.AllowedRoots[rootIndex].Path)
		if err != nil {
			return nil, fmt.Errorf("%w: root %q: %v", ErrPolicyParse, policy.AllowedRoots[rootIndex].Path, err)
		}
		policy.AllowedRoots[rootIndex].Path = expanded
	}

	policy.BlockedPatterns = append(policy.BlockedPatterns, builtinBlockedPatterns...)
	return &policy, nil
}

// Validator is the mount policy engine. The policy is loaded once at
// construction and cached for the process lifetime; edits require a
// restart. A load failure is remembered and every subsequent
// validation fails closed instead of crashing.
type Validator struct {
	policy  *Policy
	loadErr error
	logger  *slog.Logger
}

// NewValidator loads the policy from path. On load failure the
// returned Validator is still usable — it rejects everything and
// LoadError reports why.
func NewValidator(path string, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	policy, err := LoadPolicy(path)
	if err != nil {
		logger.Error("mount policy unavailable, all mount requests will be rejected",
			"path", path, "error", err)
		return &Validator{loadErr: err, logger: logger}
	}
	logger.Info("mount policy loaded",
		"path", path,
		"allowed_roots", len(policy.AllowedRoots),
		"blocked_patterns", len(policy.BlockedPatterns),
		"non_main_read_only", policy.NonMainReadOnly,
	)
	return &Validator{policy: policy, logger: logger}
}

// LoadError returns the policy load failure, or nil if the policy
// loaded cleanly.
func (v *Validator) LoadError() error {
	return v.loadErr
}
