// Copyright 2026 The Burrow Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/burrow-systems/burrow/lib/config"
)

func TestParseEnvFile(t *testing.T) {
	content := `
# provider keys
API_KEY=sk-abc-123
export GH_TOKEN="ghp_quoted"
EMPTY=
BROKEN LINE WITHOUT EQUALS
SINGLE='quoted value'
`
	variables := parseEnvFile(content)
	tests := []struct {
		name string
		want string
	}{
		{"API_KEY", "sk-abc-123"},
		{"GH_TOKEN", "ghp_quoted"},
		{"EMPTY", ""},
		{"SINGLE", "quoted value"},
	}
	for _, test := range tests {
		if got, ok := variables[test.name]; !ok || got != test.want {
			t.Errorf("%s = %q (present=%v), want %q", test.name, got, ok, test.want)
		}
	}
	if _, ok := variables["BROKEN LINE WITHOUT EQUALS"]; ok {
		t.Error("lines without '=' must be skipped")
	}
}

func TestWriteCredentialsFiltersByAllowlist(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "creds.env")
	if err := os.WriteFile(source, []byte("API_KEY=sk-1\nDB_PASSWORD=hunter2\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := &config.CredentialsConfig{Path: source, Allow: []string{"API_KEY"}}
	path, values, err := writeCredentials(cfg, dir, "run-1")
	if err != nil {
		t.Fatalf("writeCredentials: %v", err)
	}
	defer os.Remove(path)

	if len(values) != 1 || values[0] != "sk-1" {
		t.Fatalf("mounted values not reported for scrubbing: %v", values)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "API_KEY=sk-1\n" {
		t.Fatalf("unexpected credentials file: %q", data)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("credentials file must be 0600, got %v", info.Mode().Perm())
	}
}

func TestWriteCredentialsDisabled(t *testing.T) {
	dir := t.TempDir()

	// No source configured.
	path, _, err := writeCredentials(&config.CredentialsConfig{}, dir, "run-1")
	if err != nil || path != "" {
		t.Fatalf("disabled credentials should be a no-op, got %q, %v", path, err)
	}

	// Source configured but empty allowlist.
	source := filepath.Join(dir, "creds.env")
	if err := os.WriteFile(source, []byte("API_KEY=sk-1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	path, _, err = writeCredentials(&config.CredentialsConfig{Path: source}, dir, "run-1")
	if err != nil || path != "" {
		t.Fatalf("empty allowlist should be a no-op, got %q, %v", path, err)
	}
}

func TestWriteCredentialsMissingSourceIsAbsent(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"nope.env", "nope.age"} {
		cfg := &config.CredentialsConfig{
			Path:  filepath.Join(dir, name),
			Allow: []string{"API_KEY"},
		}
		path, values, err := writeCredentials(cfg, dir, "run-1")
		if err != nil {
			t.Fatalf("%s: a missing source must not fail the run: %v", name, err)
		}
		if path != "" || values != nil {
			t.Fatalf("%s: missing source means no mount, got %q", name, path)
		}
	}
}

func TestWriteCredentialsAllowlistMissesEverything(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "creds.env")
	if err := os.WriteFile(source, []byte("API_KEY=sk-1\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := &config.CredentialsConfig{Path: source, Allow: []string{"MISSING_NAME"}}
	path, _, err := writeCredentials(cfg, dir, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if path != "" {
		t.Fatalf("nothing allowed means no file, got %q", path)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "credentials-") {
			t.Fatalf("stray credentials file %s", entry.Name())
		}
	}
}
