// Copyright 2026 The Burrow Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Mailbox file types. A sandbox communicates side effects by dropping
// JSON files into its mailbox: message envelopes under messages/, task
// operations under tasks/. The router polls, validates, authorizes,
// and removes them.
const (
	EnvelopeTypeMessage = "message"

	OperationScheduleTask   = "schedule_task"
	OperationPauseTask      = "pause_task"
	OperationResumeTask     = "resume_task"
	OperationCancelTask     = "cancel_task"
	OperationRegisterTenant = "register_tenant"
	OperationRefreshTenants = "refresh_tenants"
)

// MessageEnvelope is an outbound chat message written by a sandbox.
type MessageEnvelope struct {
	// Type must be "message".
	Type string `json:"type"`

	// Destination is the chat destination identifier.
	Destination string `json:"destination"`

	// Text is the message body.
	Text string `json:"text"`
}

// DecodeMessage parses and validates a message envelope file. A nil
// error means the envelope is structurally sound; authorization is a
// separate, later check.
func DecodeMessage(data []byte) (*MessageEnvelope, error) {
	var envelope MessageEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("parsing message envelope: %w", err)
	}
	if envelope.Type != EnvelopeTypeMessage {
		return nil, fmt.Errorf("message envelope: unexpected type %q", envelope.Type)
	}
	if envelope.Destination == "" {
		return nil, fmt.Errorf("message envelope: destination is required")
	}
	if strings.TrimSpace(envelope.Text) == "" {
		return nil, fmt.Errorf("message envelope: text is required")
	}
	return &envelope, nil
}

// TaskOperation is a task-control request written by a sandbox. The
// Type field selects the operation; the remaining fields are
// populated per type (see Validate).
type TaskOperation struct {
	// Type is one of the Operation* constants.
	Type string `json:"type"`

	// TaskID targets an existing task for pause/resume/cancel.
	TaskID string `json:"taskId,omitempty"`

	// TenantFolder is the tenant a new task runs as.
	TenantFolder string `json:"tenantFolder,omitempty"`

	// DestinationID is where a new task's results are delivered.
	DestinationID string `json:"destinationId,omitempty"`

	// Prompt is the new task's work description.
	Prompt string `json:"prompt,omitempty"`

	// ScheduleKind is cron, interval, or once.
	ScheduleKind ScheduleKind `json:"scheduleKind,omitempty"`

	// Schedule is the kind-specific schedule value: a cron
	// expression, an interval in milliseconds, or an RFC 3339 time.
	Schedule string `json:"schedule,omitempty"`

	// ContextMode is tenant-shared or isolated for a new task.
	ContextMode ContextMode `json:"contextMode,omitempty"`

	// Tenant is the record to register for register_tenant.
	Tenant *Tenant `json:"tenant,omitempty"`
}

// DecodeTaskOperation parses and validates a task operation file.
func DecodeTaskOperation(data []byte) (*TaskOperation, error) {
	var operation TaskOperation
	if err := json.Unmarshal(data, &operation); err != nil {
		return nil, fmt.Errorf("parsing task operation: %w", err)
	}
	if err := operation.Validate(); err != nil {
		return nil, err
	}
	return &operation, nil
}

// Validate checks the per-type required fields.
func (op *TaskOperation) Validate() error {
	switch op.Type {
	case OperationScheduleTask:
		if op.TenantFolder == "" {
			return fmt.Errorf("schedule_task: tenantFolder is required")
		}
		if strings.TrimSpace(op.Prompt) == "" {
			return fmt.Errorf("schedule_task: prompt is required")
		}
		if op.Schedule == "" {
			return fmt.Errorf("schedule_task: schedule is required")
		}
		if !op.ScheduleKind.Valid() {
			return fmt.Errorf("schedule_task: invalid schedule kind %q", op.ScheduleKind)
		}
		if op.ContextMode != "" && !op.ContextMode.Valid() {
			return fmt.Errorf("schedule_task: invalid context mode %q", op.ContextMode)
		}
	case OperationPauseTask, OperationResumeTask, OperationCancelTask:
		if op.TaskID == "" {
			return fmt.Errorf("%s: taskId is required", op.Type)
		}
	case OperationRegisterTenant:
		if op.Tenant == nil {
			return fmt.Errorf("register_tenant: tenant record is required")
		}
		if err := op.Tenant.Validate(); err != nil {
			return fmt.Errorf("register_tenant: %w", err)
		}
	case OperationRefreshTenants:
		// No fields.
	default:
		return fmt.Errorf("task operation: unknown type %q", op.Type)
	}
	return nil
}
