// Copyright 2026 The Burrow Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/burrow-systems/burrow/lib/redact"
)

// Run logs above this size are compressed with zstd and saved with a
// .log.zst suffix.
const compressThreshold = 256 << 10

// runLog is the per-run artifact written to the tenant's log
// directory after every run, success or failure.
type runLog struct {
	RunID     string
	Tenant    string
	StartedAt time.Time
	Duration  time.Duration
	Outcome   string
	Prompt    string
	Mounts    []string
	Stdout    string
	Stderr    string
	foldOut   bool
	foldErr   bool

	// secrets are the credential values mounted into the run; every
	// occurrence in captured output is masked before persisting.
	secrets []string
}

// write persists the run log. Output is redacted before it touches
// disk; non-verbose mode keeps only a bounded tail of each stream.
func (l *runLog) write(logDir string, captureLimit int, verbose bool) (string, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return "", fmt.Errorf("creating log directory: %w", err)
	}

	stdout := redact.String(redact.Values(l.Stdout, l.secrets))
	stderr := redact.String(redact.Values(l.Stderr, l.secrets))
	if !verbose {
		stdout = redact.Tail(stdout, 16<<10)
		stderr = redact.Tail(stderr, 16<<10)
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, "run: %s\n", l.RunID)
	fmt.Fprintf(&builder, "tenant: %s\n", l.Tenant)
	fmt.Fprintf(&builder, "started: %s\n", l.StartedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&builder, "duration: %s\n", l.Duration.Round(time.Millisecond))
	fmt.Fprintf(&builder, "outcome: %s\n", l.Outcome)
	fmt.Fprintf(&builder, "prompt: %s\n", redact.String(l.Prompt))
	for _, mount := range l.Mounts {
		fmt.Fprintf(&builder, "mount: %s\n", mount)
	}
	builder.WriteString("\n--- stdout ---\n")
	builder.WriteString(stdout)
	if l.foldOut {
		fmt.Fprintf(&builder, "\n[stdout truncated at %d bytes]\n", captureLimit)
	}
	builder.WriteString("\n--- stderr ---\n")
	builder.WriteString(stderr)
	if l.foldErr {
		fmt.Fprintf(&builder, "\n[stderr truncated at %d bytes]\n", captureLimit)
	}
	builder.WriteByte('\n')

	content := []byte(builder.String())
	name := l.StartedAt.UTC().Format("20060102-150405") + "-" + l.RunID

	if len(content) > compressThreshold {
		path := filepath.Join(logDir, name+".log.zst")
		if err := writeCompressed(path, content); err != nil {
			return "", err
		}
		return path, nil
	}

	path := filepath.Join(logDir, name+".log")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("writing run log: %w", err)
	}
	return path, nil
}

func writeCompressed(path string, content []byte) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating run log: %w", err)
	}
	encoder, err := zstd.NewWriter(file)
	if err != nil {
		file.Close()
		return fmt.Errorf("zstd writer: %w", err)
	}
	if _, err := encoder.Write(content); err != nil {
		encoder.Close()
		file.Close()
		return fmt.Errorf("compressing run log: %w", err)
	}
	if err := encoder.Close(); err != nil {
		file.Close()
		return fmt.Errorf("finishing run log: %w", err)
	}
	return file.Close()
}
