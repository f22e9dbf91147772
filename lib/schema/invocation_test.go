// Copyright 2026 The Burrow Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"bytes"
	"strings"
	"testing"
)

func TestInvocationEncode(t *testing.T) {
	invocation := &Invocation{
		Prompt:        "summarize the log",
		SessionID:     "sess-1",
		TenantFolder:  "ops",
		DestinationID: "dest-ops",
		IsMain:        false,
	}
	data, err := invocation.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.HasSuffix(data, []byte("\n")) {
		t.Error("Encode output missing trailing newline")
	}
	if !bytes.Contains(data, []byte(`"tenantFolder":"ops"`)) {
		t.Errorf("Encode output missing tenantFolder: %s", data)
	}
}

func TestInvocationValidate(t *testing.T) {
	tests := []struct {
		name       string
		invocation Invocation
		wantErr    string
	}{
		{"no_prompt", Invocation{TenantFolder: "a", DestinationID: "b"}, "prompt is required"},
		{"no_folder", Invocation{Prompt: "p", DestinationID: "b"}, "tenantFolder is required"},
		{"no_destination", Invocation{Prompt: "p", TenantFolder: "a"}, "destinationId is required"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.invocation.Validate()
			if err == nil || !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, test.wantErr)
			}
		})
	}
}

func TestResultRoundTrip(t *testing.T) {
	text := "all services nominal"
	original := &ExecutionResult{
		Status:       StatusSuccess,
		Result:       &text,
		NewSessionID: "sess-2",
	}

	framed, err := FrameResult(original)
	if err != nil {
		t.Fatalf("FrameResult: %v", err)
	}

	// Surround the frame with the kind of noise a real sandbox emits.
	output := append([]byte("booting agent...\nprogress 50%\n"), framed...)
	output = append(output, []byte("shutting down\n")...)

	parsed, found, err := ExtractResult(output)
	if err != nil {
		t.Fatalf("ExtractResult: %v", err)
	}
	if !found {
		t.Fatal("ExtractResult found = false, markers were present")
	}
	if parsed.Status != original.Status {
		t.Errorf("Status = %q, want %q", parsed.Status, original.Status)
	}
	if parsed.Result == nil || *parsed.Result != text {
		t.Errorf("Result = %v, want %q", parsed.Result, text)
	}
	if parsed.NewSessionID != original.NewSessionID {
		t.Errorf("NewSessionID = %q, want %q", parsed.NewSessionID, original.NewSessionID)
	}
}

func TestResultRoundTripNullResult(t *testing.T) {
	original := &ExecutionResult{Status: StatusError, Result: nil, Error: "model refused"}
	framed, err := FrameResult(original)
	if err != nil {
		t.Fatalf("FrameResult: %v", err)
	}
	parsed, found, err := ExtractResult(framed)
	if err != nil || !found {
		t.Fatalf("ExtractResult: found=%v err=%v", found, err)
	}
	if parsed.Result != nil {
		t.Errorf("Result = %v, want nil", parsed.Result)
	}
	if parsed.Error != "model refused" {
		t.Errorf("Error = %q, want preserved", parsed.Error)
	}
}

func TestExtractResultFallbackLastLine(t *testing.T) {
	output := []byte("line one\nline two\nfinal answer\n\n")
	result, found, err := ExtractResult(output)
	if err != nil {
		t.Fatalf("ExtractResult: %v", err)
	}
	if found {
		t.Error("found = true without markers")
	}
	if result.Status != StatusSuccess {
		t.Errorf("Status = %q, want success", result.Status)
	}
	if result.Result == nil || *result.Result != "final answer" {
		t.Errorf("Result = %v, want last non-empty line", result.Result)
	}
}

func TestExtractResultEmptyOutput(t *testing.T) {
	result, found, err := ExtractResult(nil)
	if err != nil {
		t.Fatalf("ExtractResult: %v", err)
	}
	if found {
		t.Error("found = true on empty output")
	}
	if result.Result == nil || *result.Result != "" {
		t.Errorf("Result = %v, want empty string", result.Result)
	}
}

func TestExtractResultMalformedPayload(t *testing.T) {
	output := []byte(ResultBeginMarker + "\n{not json}\n" + ResultEndMarker + "\n")
	_, found, err := ExtractResult(output)
	if err == nil {
		t.Fatal("ExtractResult = nil error for malformed payload")
	}
	if !found {
		t.Error("found = false, markers were present")
	}
}

func TestExtractResultTruncatedFrame(t *testing.T) {
	output := []byte("noise\n" + ResultBeginMarker + "\n{\"status\":\"success\"")
	_, _, err := ExtractResult(output)
	if err == nil || !strings.Contains(err.Error(), "without end marker") {
		t.Errorf("ExtractResult = %v, want begin-without-end error", err)
	}
}

func TestExtractResultUnknownStatus(t *testing.T) {
	output := []byte(ResultBeginMarker + "\n{\"status\":\"maybe\",\"result\":null}\n" + ResultEndMarker)
	_, _, err := ExtractResult(output)
	if err == nil || !strings.Contains(err.Error(), "unknown status") {
		t.Errorf("ExtractResult = %v, want unknown-status error", err)
	}
}
