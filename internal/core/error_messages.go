// Package core provides the record reconciliation and batched upsert pipeline.
//
// # Error Codes Reference
//
// This file defines operator-facing error messages with codes for support
// reference. The CLI prints the code next to the message so a failed run
// can be diagnosed from the terminal output alone.
//
// Error codes are grouped by category:
//
// # Mapping Errors (MAP001-MAP099)
//
//	MAP001 - Mapping file not found
//	         Action: Check MAPPING_DIR and the entity's mapping file name
//	         Patterns: "mapping file not found"
//
//	MAP002 - Mapping file is malformed
//	         Action: Every rule line must read "source column = target field"
//	         Patterns: "invalid mapping"
//
// # Column Errors (COL001-COL099)
//
//	COL001 - Required column is missing
//	         Action: Compare the export header with the rename table
//	         Patterns: "missing required column"
//
//	COL002 - Source sheet is empty
//	         Action: Check the header row setting and the sheet name
//	         Patterns: "no header row", "empty sheet"
//
// # Reference Errors (REF001-REF099)
//
//	REF001 - Reference table was not provided
//	         Action: Pass the mapped output of the parent entity with --ref
//	         Patterns: "reference table"
//
//	REF002 - Reference configuration is incomplete
//	         Action: The entity definition names fields that do not exist
//	         Patterns: "source and target fields are required"
//
// # Run Errors (RUN001-RUN099)
//
//	RUN001 - Unknown entity
//	         Action: Run "crmimport entities" for the list of entities
//	         Patterns: "unknown entity"
//
//	RUN002 - Record has no external id
//	         Action: Check the entity's import id settings
//	         Patterns: "no external id"
//
//	RUN003 - Remote result count mismatch
//	         Action: Re-run the entity; upserts are idempotent
//	         Patterns: "remote returned"
//
//	RUN004 - Run was cancelled
//	         Action: Re-run the entity; upserts are idempotent
//	         Patterns: "context canceled"
//
//	RUN005 - Run timed out
//	         Action: Raise SF_HTTP_TIMEOUT or lower RUN_CHUNK_SIZE
//	         Patterns: "context deadline exceeded", "timeout"
//
//	RUN006 - Run not found in the ledger
//	         Action: List runs with GET /api/runs
//	         Patterns: "run not found"
//
//	RUN007 - Run ledger is not configured
//	         Action: Set DATABASE_URL to record and query run history
//	         Patterns: "ledger is not configured"
//
// # Remote Errors (SF001-SF099)
//
//	SF001 - Login rejected
//	        Action: Check SF_USERNAME, SF_PASSWORD and SF_TOKEN
//	        Patterns: "invalid_grant", "authentication failure"
//
//	SF002 - Session expired
//	        Action: Re-run; a new session is requested at start-up
//	        Patterns: "invalid_session_id"
//
//	SF003 - API request limit reached
//	        Action: Wait for the org's API allowance to recover
//	        Patterns: "request_limit_exceeded", "rate limit"
//
//	SF004 - Remote unreachable
//	        Action: Check SF_DOMAIN and network access
//	        Patterns: "connection refused", "no such host"
//
//	SF005 - Chunk rejected by the remote system
//	        Action: Inspect the skipped chunks and re-run the entity
//	        Patterns: "chunk"
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Check the log output for the technical error
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so more specific patterns should be
// defined before general ones. Chunk errors wrap their cause, so the
// generic "chunk" pattern comes last.
package core

import (
	"fmt"
	"strings"
)

// UserMessage provides operator-facing error information with actionable guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins, so order matters.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Mapping Errors (MAP001-MAP002)
	// =========================================================================
	{
		pattern: "mapping file not found",
		msg: UserMessage{
			Message: "Mapping file not found",
			Action:  "Check MAPPING_DIR and the entity's mapping file name",
			Code:    "MAP001",
		},
	},
	{
		pattern: "invalid mapping",
		msg: UserMessage{
			Message: "Mapping file is malformed",
			Action:  `Every rule line must read "source column = target field"`,
			Code:    "MAP002",
		},
	},

	// =========================================================================
	// Column Errors (COL001-COL002)
	// =========================================================================
	{
		pattern: "missing required column",
		msg: UserMessage{
			Message: "Required column is missing",
			Action:  "Compare the export header with the rename table",
			Code:    "COL001",
		},
	},
	{
		pattern: "no header row",
		msg: UserMessage{
			Message: "Source sheet is empty",
			Action:  "Check the header row setting and the sheet name",
			Code:    "COL002",
		},
	},
	{
		pattern: "empty sheet",
		msg: UserMessage{
			Message: "Source sheet is empty",
			Action:  "Check the header row setting and the sheet name",
			Code:    "COL002",
		},
	},

	// =========================================================================
	// Reference Errors (REF001-REF002)
	// =========================================================================
	{
		pattern: "reference table",
		msg: UserMessage{
			Message: "Reference table was not provided",
			Action:  "Pass the mapped output of the parent entity with --ref",
			Code:    "REF001",
		},
	},
	{
		pattern: "source and target fields are required",
		msg: UserMessage{
			Message: "Reference configuration is incomplete",
			Action:  "The entity definition names fields that do not exist",
			Code:    "REF002",
		},
	},

	// =========================================================================
	// Run Errors (RUN001-RUN005)
	// =========================================================================
	{
		pattern: "unknown entity",
		msg: UserMessage{
			Message: "Unknown entity",
			Action:  `Run "crmimport entities" for the list of entities`,
			Code:    "RUN001",
		},
	},
	{
		pattern: "no external id",
		msg: UserMessage{
			Message: "Record has no external id",
			Action:  "Check the entity's import id settings",
			Code:    "RUN002",
		},
	},
	{
		pattern: "remote returned",
		msg: UserMessage{
			Message: "Remote result count did not match the submitted records",
			Action:  "Re-run the entity; upserts are idempotent",
			Code:    "RUN003",
		},
	},
	{
		pattern: "run not found",
		msg: UserMessage{
			Message: "Run not found",
			Action:  "List runs with GET /api/runs",
			Code:    "RUN006",
		},
	},
	{
		pattern: "ledger is not configured",
		msg: UserMessage{
			Message: "Run ledger is not configured",
			Action:  "Set DATABASE_URL to record and query run history",
			Code:    "RUN007",
		},
	},

	// =========================================================================
	// Remote Errors (SF001-SF004)
	// Checked before cancellation so wrapped API errors keep their code.
	// =========================================================================
	{
		pattern: "invalid_grant",
		msg: UserMessage{
			Message: "Login rejected",
			Action:  "Check SF_USERNAME, SF_PASSWORD and SF_TOKEN",
			Code:    "SF001",
		},
	},
	{
		pattern: "authentication failure",
		msg: UserMessage{
			Message: "Login rejected",
			Action:  "Check SF_USERNAME, SF_PASSWORD and SF_TOKEN",
			Code:    "SF001",
		},
	},
	{
		pattern: "invalid_session_id",
		msg: UserMessage{
			Message: "Session expired",
			Action:  "Re-run; a new session is requested at start-up",
			Code:    "SF002",
		},
	},
	{
		pattern: "request_limit_exceeded",
		msg: UserMessage{
			Message: "API request limit reached",
			Action:  "Wait for the org's API allowance to recover",
			Code:    "SF003",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "API request limit reached",
			Action:  "Wait for the org's API allowance to recover",
			Code:    "SF003",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Remote unreachable",
			Action:  "Check SF_DOMAIN and network access",
			Code:    "SF004",
		},
	},
	{
		pattern: "no such host",
		msg: UserMessage{
			Message: "Remote unreachable",
			Action:  "Check SF_DOMAIN and network access",
			Code:    "SF004",
		},
	},

	// =========================================================================
	// Cancellation (RUN004-RUN005)
	// =========================================================================
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Run was cancelled",
			Action:  "Re-run the entity; upserts are idempotent",
			Code:    "RUN004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Run timed out",
			Action:  "Raise SF_HTTP_TIMEOUT or lower RUN_CHUNK_SIZE",
			Code:    "RUN005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Run timed out",
			Action:  "Raise SF_HTTP_TIMEOUT or lower RUN_CHUNK_SIZE",
			Code:    "RUN005",
		},
	},

	// =========================================================================
	// Generic chunk failure (SF005)
	// =========================================================================
	{
		pattern: "chunk",
		msg: UserMessage{
			Message: "Chunk rejected by the remote system",
			Action:  "Inspect the skipped chunks and re-run the entity",
			Code:    "SF005",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the log output for the technical error",
	Code:    "ERR000",
}

// MapError converts a technical error to an operator-facing message.
// It searches through known error patterns (case-insensitive) and returns
// the first match. If no pattern matches, a generic fallback message with
// code ERR000 is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing checks if an error matches a known pattern.
// Returns true if the error matches a specific pattern (not the generic ERR000 fallback).
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	msg := MapError(err)
	return msg.Code != defaultMessage.Code
}

// UserError wraps a technical error with an operator-facing message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // Message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError creates a UserError by mapping a technical error.
// Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
