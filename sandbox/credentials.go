// Copyright 2026 The Burrow Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/burrow-systems/burrow/lib/config"
	"github.com/burrow-systems/burrow/lib/sealed"
	"github.com/burrow-systems/burrow/lib/secret"
)

// writeCredentials generates a per-run credentials file holding only
// the allowlisted variables from the configured source and returns its
// path plus the mounted values, so captured output can be scrubbed of
// them before it is persisted. The source is an env-style file, or an
// age-sealed bundle when the path has a .age suffix. Returns "" when
// credentials are disabled, the source file does not exist, or the
// allowlist filters everything out; the run proceeds without the
// mount in each case.
//
// The caller must remove the file when the run ends.
func writeCredentials(cfg *config.CredentialsConfig, dir string, runID string) (string, []string, error) {
	if cfg.Path == "" || len(cfg.Allow) == 0 {
		return "", nil, nil
	}
	if _, err := os.Stat(cfg.Path); errors.Is(err, os.ErrNotExist) {
		return "", nil, nil
	}

	source, err := readCredentialSource(cfg)
	if err != nil {
		return "", nil, err
	}
	defer source.Close()

	variables := parseEnvFile(source.String())
	allowed := make(map[string]bool, len(cfg.Allow))
	for _, name := range cfg.Allow {
		allowed[name] = true
	}

	names := make([]string, 0, len(variables))
	for name := range variables {
		if allowed[name] {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "", nil, nil
	}
	sort.Strings(names)

	values := make([]string, 0, len(names))
	var builder strings.Builder
	for _, name := range names {
		builder.WriteString(name)
		builder.WriteByte('=')
		builder.WriteString(variables[name])
		builder.WriteByte('\n')
		values = append(values, variables[name])
	}

	path := filepath.Join(dir, "credentials-"+runID+".env")
	if err := os.WriteFile(path, []byte(builder.String()), 0o600); err != nil {
		return "", nil, fmt.Errorf("writing credentials file: %w", err)
	}
	return path, values, nil
}

func readCredentialSource(cfg *config.CredentialsConfig) (*secret.Buffer, error) {
	if filepath.Ext(cfg.Path) != ".age" {
		buffer, err := secret.ReadFile(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("reading credentials source: %w", err)
		}
		return buffer, nil
	}

	identity, err := sealed.LoadIdentity(cfg.Identity)
	if err != nil {
		return nil, fmt.Errorf("loading credentials identity: %w", err)
	}
	defer identity.Close()

	buffer, err := sealed.DecryptFile(cfg.Path, identity)
	if err != nil {
		return nil, fmt.Errorf("unsealing credentials bundle: %w", err)
	}
	return buffer, nil
}

// parseEnvFile parses NAME=value lines. Blank lines and # comments
// are skipped; values keep everything after the first '=', with one
// layer of matching quotes stripped.
func parseEnvFile(content string) map[string]string {
	variables := make(map[string]string)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		name, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		value = strings.TrimSpace(value)
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}
		variables[name] = value
	}
	return variables
}
