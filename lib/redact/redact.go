// Copyright 2026 The Burrow Authors
// SPDX-License-Identifier: Apache-2.0

// Package redact masks credential-shaped substrings in text that is
// about to be persisted: run-log artifacts, captured output tails,
// quarantined payload excerpts. It is a best-effort filter for
// accidental leakage, not a security boundary — the real protection
// is the credential allowlist on the runner's mount set.
package redact

import (
	"fmt"
	"regexp"
	"strings"
)

// Mask is the replacement for every redacted span.
const Mask = "[redacted]"

// patterns match, in order: well-known credential prefixes, assignments
// to secret-ish variable names, and long high-entropy-looking tokens.
var patterns = []*regexp.Regexp{
	// Provider-issued key formats with recognizable prefixes.
	regexp.MustCompile(`\b(sk|pk)-[A-Za-z0-9_-]{16,}`),
	regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`),
	regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{20,}\b`),
	regexp.MustCompile(`\bxox[baprs]-[A-Za-z0-9-]{10,}`),
	regexp.MustCompile(`\bAGE-SECRET-KEY-1[A-Z0-9]{10,}`),
	regexp.MustCompile(`\beyJ[A-Za-z0-9_-]{20,}\.[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`),

	// Bearer tokens in header-shaped text.
	regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._~+/-]{16,}=*`),

	// KEY=value and "key": "value" assignments where the key name is
	// secret-shaped. The name is kept; only the value is masked.
	regexp.MustCompile(`(?i)([A-Z0-9_]*(?:SECRET|TOKEN|PASSWORD|API_?KEY|CREDENTIAL)[A-Z0-9_]*\s*[=:]\s*)\S+`),
}

var assignmentPattern = patterns[len(patterns)-1]

// String returns text with every credential-shaped span replaced by
// Mask. Assignment matches keep the variable name and mask only the
// value.
func String(text string) string {
	for _, pattern := range patterns {
		if pattern == assignmentPattern {
			text = pattern.ReplaceAllString(text, "${1}"+Mask)
			continue
		}
		text = pattern.ReplaceAllString(text, Mask)
	}
	return text
}

// Values returns text with every occurrence of the given literal
// values replaced by Mask. The runner calls this with the credential
// values it mounted, so a sandbox echoing a credential back never gets
// it into a persisted artifact. Empty and very short values are
// skipped — masking them would shred unrelated text.
func Values(text string, values []string) string {
	for _, value := range values {
		if len(value) < 6 {
			continue
		}
		text = strings.ReplaceAll(text, value, Mask)
	}
	return text
}

// Tail returns the last limit bytes of text, redacted, with a marker
// noting how much was dropped. Used for bounded error excerpts in run
// logs and error replies.
func Tail(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return String(text)
	}
	dropped := len(text) - limit
	return fmt.Sprintf("[... %d bytes elided ...]%s", dropped, String(text[dropped:]))
}
