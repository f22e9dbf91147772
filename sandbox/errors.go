// Copyright 2026 The Burrow Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import "fmt"

// FailureKind classifies how a sandbox run failed. It is a closed
// set: callers switch on it to decide retry and reporting behavior.
type FailureKind string

const (
	// FailureSpawn means the container never started.
	FailureSpawn FailureKind = "spawn"

	// FailureTimeout means the run exceeded its deadline and was
	// terminated.
	FailureTimeout FailureKind = "timeout"

	// FailureExit means the sandbox process exited non-zero.
	FailureExit FailureKind = "exit"

	// FailureParse means the process exited zero but emitted a
	// malformed result frame.
	FailureParse FailureKind = "parse"
)

// RunError is a classified sandbox run failure.
type RunError struct {
	Kind     FailureKind
	ExitCode int
	Detail   string
	Err      error
}

func (e *RunError) Error() string {
	switch e.Kind {
	case FailureSpawn:
		return fmt.Sprintf("sandbox spawn failed: %v", e.Err)
	case FailureTimeout:
		return fmt.Sprintf("sandbox timed out: %s", e.Detail)
	case FailureExit:
		return fmt.Sprintf("sandbox exited with code %d: %s", e.ExitCode, e.Detail)
	case FailureParse:
		return fmt.Sprintf("sandbox result unparseable: %s", e.Detail)
	}
	return fmt.Sprintf("sandbox failure (%s): %s", e.Kind, e.Detail)
}

func (e *RunError) Unwrap() error { return e.Err }
