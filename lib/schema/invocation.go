// Copyright 2026 The Burrow Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Invocation is the single structured message the runner writes to a
// sandbox's input channel before closing it. One invocation per
// sandbox; the sandbox runs it to completion and exits.
type Invocation struct {
	// Prompt is the work to perform.
	Prompt string `json:"prompt"`

	// SessionID resumes a previous session when set; empty starts
	// fresh.
	SessionID string `json:"sessionId,omitempty"`

	// TenantFolder identifies the invoking tenant.
	TenantFolder string `json:"tenantFolder"`

	// DestinationID is where results and side-effect messages are
	// addressed.
	DestinationID string `json:"destinationId"`

	// IsMain grants the sandbox the main tenant's view (full task
	// snapshot, peer tenants).
	IsMain bool `json:"isMain"`

	// IsScheduledTask marks scheduler-driven runs, letting the
	// sandbox distinguish them from interactive triggers.
	IsScheduledTask bool `json:"isScheduledTask,omitempty"`
}

// Validate checks the fields a sandbox cannot function without.
func (inv *Invocation) Validate() error {
	if strings.TrimSpace(inv.Prompt) == "" {
		return fmt.Errorf("invocation: prompt is required")
	}
	if inv.TenantFolder == "" {
		return fmt.Errorf("invocation: tenantFolder is required")
	}
	if inv.DestinationID == "" {
		return fmt.Errorf("invocation: destinationId is required")
	}
	return nil
}

// Encode renders the invocation as a single JSON line for the sandbox
// input channel.
func (inv *Invocation) Encode() ([]byte, error) {
	if err := inv.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(inv)
	if err != nil {
		return nil, fmt.Errorf("encoding invocation: %w", err)
	}
	return append(data, '\n'), nil
}

// Result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ExecutionResult is the structured payload a sandbox frames between
// the sentinel markers on its output stream.
type ExecutionResult struct {
	// Status is "success" or "error".
	Status string `json:"status"`

	// Result is the response text, or null for a successful run with
	// no output.
	Result *string `json:"result"`

	// NewSessionID is set when the sandbox started or rotated a
	// session that later invocations should resume.
	NewSessionID string `json:"newSessionId,omitempty"`

	// Error carries the failure description when Status is "error".
	Error string `json:"error,omitempty"`
}

// Validate checks that the result has a known status.
func (r *ExecutionResult) Validate() error {
	if r.Status != StatusSuccess && r.Status != StatusError {
		return fmt.Errorf("execution result: unknown status %q", r.Status)
	}
	return nil
}

// Sentinel markers framing the execution result within a sandbox's raw
// output. Fixed literals shared with the in-sandbox agent shim;
// changing them is a protocol break.
const (
	ResultBeginMarker = "-----BURROW RESULT BEGIN-----"
	ResultEndMarker   = "-----BURROW RESULT END-----"
)

// FrameResult renders a result framed between the sentinel markers,
// ready to write to the sandbox's output stream. The in-sandbox shim
// uses this; the host side uses ExtractResult.
func FrameResult(result *ExecutionResult) ([]byte, error) {
	if err := result.Validate(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encoding execution result: %w", err)
	}
	var framed bytes.Buffer
	framed.WriteString(ResultBeginMarker)
	framed.WriteByte('\n')
	framed.Write(payload)
	framed.WriteByte('\n')
	framed.WriteString(ResultEndMarker)
	framed.WriteByte('\n')
	return framed.Bytes(), nil
}

// ExtractResult scans raw sandbox output for the sentinel markers and
// parses the payload between them.
//
// Marker handling:
//   - Both markers present: the substring between them must be a valid
//     ExecutionResult, otherwise an error is returned (the caller
//     reports a distinct output-parse failure).
//   - Markers absent: the last non-empty output line is returned as a
//     plain-text success result (found=false tells the caller the
//     fallback was used).
//   - Begin without end (truncated output): treated as a parse error.
func ExtractResult(output []byte) (result *ExecutionResult, found bool, err error) {
	text := string(output)

	beginIndex := strings.Index(text, ResultBeginMarker)
	if beginIndex >= 0 {
		rest := text[beginIndex+len(ResultBeginMarker):]
		endIndex := strings.Index(rest, ResultEndMarker)
		if endIndex < 0 {
			return nil, true, fmt.Errorf("result begin marker without end marker")
		}
		payload := strings.TrimSpace(rest[:endIndex])

		var decoded ExecutionResult
		if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
			return nil, true, fmt.Errorf("parsing framed result: %w", err)
		}
		if err := decoded.Validate(); err != nil {
			return nil, true, err
		}
		return &decoded, true, nil
	}

	// Fallback: last non-empty line as a plain-text success.
	lines := strings.Split(text, "\n")
	for lineIndex := len(lines) - 1; lineIndex >= 0; lineIndex-- {
		line := strings.TrimSpace(lines[lineIndex])
		if line == "" {
			continue
		}
		return &ExecutionResult{Status: StatusSuccess, Result: &line}, false, nil
	}

	empty := ""
	return &ExecutionResult{Status: StatusSuccess, Result: &empty}, false, nil
}
