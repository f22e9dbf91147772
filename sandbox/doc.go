// Copyright 2026 The Burrow Authors
// SPDX-License-Identifier: Apache-2.0

// Package sandbox contains Burrow's secure execution kernel: the mount
// policy engine that decides which host paths may be exposed to a
// tenant's sandbox, and the container runner that assembles the mount
// set, spawns one short-lived sandbox per invocation, captures its
// output within fixed bounds, enforces the wall-clock timeout, and
// parses the sentinel-framed execution result.
//
// Process isolation itself is delegated to an external OS-level
// container engine behind the Engine interface; this package is
// responsible for everything the engine is not: what the sandbox may
// see, how long it may run, and how its output is interpreted.
package sandbox
