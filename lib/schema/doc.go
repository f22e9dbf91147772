// Copyright 2026 The Burrow Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema defines the typed payloads that cross Burrow's file
// and stream boundaries: the invocation written to a sandbox's input,
// the sentinel-framed execution result parsed from its output, the
// mailbox envelopes sandboxes write for the router, the scheduled task
// model shared by the store and scheduler, and the tenant record.
//
// Every boundary decode goes through an explicit Decode* function that
// validates the payload; internal code trusts the decoded types
// afterward. Malformed payloads are the caller's problem to quarantine
// — nothing in this package panics on bad input.
package schema
