// Copyright 2026 The Burrow Authors
// SPDX-License-Identifier: Apache-2.0

// Package version exposes build-time version information for Burrow
// binaries. The variables are populated via -ldflags at build time;
// the defaults identify an untagged development build.
package version

import (
	"fmt"
	"runtime"
)

// Build-time variables, set via:
//
//	go build -ldflags "-X .../lib/version.Version=v0.3.0 ..."
var (
	// Version is the semantic version of this build.
	Version = "dev"

	// GitCommit is the short commit SHA the binary was built from.
	GitCommit = "unknown"

	// BuildTime is the UTC build timestamp in RFC 3339 format.
	BuildTime = "unknown"
)

// Info returns a one-line human-readable version string.
func Info() string {
	return fmt.Sprintf("%s (%s, %s)", Version, GitCommit, BuildTime)
}

// Full returns detailed version information including the Go toolchain
// and target platform.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
