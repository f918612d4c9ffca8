// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldService = "service"
	FieldVersion = "version"
	FieldRunID   = "run_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Guide fields
	FieldChannelID = "channel_id"
	FieldProgramID = "program_id"
	FieldWindow    = "window"
	FieldBatch     = "batch"
	FieldAttempt   = "attempt"

	// Path / URL fields
	FieldPath = "path"
	FieldURL  = "url"
)
