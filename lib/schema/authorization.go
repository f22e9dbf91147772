// Copyright 2026 The Burrow Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"errors"
	"fmt"
)

// ErrUnauthorized marks a denied operation. Callers that consume
// files distinguish it from malformed input: a denial is dropped with
// a warning, not quarantined.
var ErrUnauthorized = errors.New("unauthorized")

// Multi-tenant authorization. The rules are deliberately small enough
// to state in full:
//
//   - The main tenant may do anything.
//   - A non-main tenant may send messages only to its own bound
//     destination.
//   - A non-main tenant may create tasks only for its own tenant, and
//     pause/resume/cancel only tasks its tenant owns.
//   - Tenant registration, peer refresh, and every main-only side
//     channel require the main tenant.
//
// Enforcement is split the way the data flows: message authorization
// happens in the router before delivery; task-operation authorization
// happens in the operation dispatcher, which sees the target task's
// owner.

// CanMessage reports whether source may deliver a message to
// destination.
func CanMessage(source *Tenant, destination string) bool {
	if source.IsMain {
		return true
	}
	return source.DestinationID != "" && destination == source.DestinationID
}

// AuthorizeTaskOperation checks a task operation against its source
// tenant. ownerFolder is the folder of the tenant that owns the
// targeted task, resolved by the dispatcher; it is ignored for
// operations that create rather than target.
func AuthorizeTaskOperation(operation *TaskOperation, source *Tenant, ownerFolder string) error {
	if source.IsMain {
		return nil
	}

	switch operation.Type {
	case OperationScheduleTask:
		if operation.TenantFolder != source.Folder {
			return fmt.Errorf("tenant %q may only schedule tasks for itself, not %q: %w",
				source.Folder, operation.TenantFolder, ErrUnauthorized)
		}
		return nil
	case OperationPauseTask, OperationResumeTask, OperationCancelTask:
		if ownerFolder != source.Folder {
			return fmt.Errorf("tenant %q may not %s task owned by %q: %w",
				source.Folder, operation.Type, ownerFolder, ErrUnauthorized)
		}
		return nil
	default:
		return fmt.Errorf("operation %q requires the main tenant: %w", operation.Type, ErrUnauthorized)
	}
}
