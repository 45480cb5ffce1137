// Package catalog loads datasets into tables and keeps them by key.
//
// # Error Codes Reference
//
// Errors surfaced to API clients carry a code for support reference.
// Codes are grouped by category:
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Invalid epoch: A daily variable declares an unreadable zero day
//	         Action: Use YYYY-MM-DD for display.zeroDay
//	         Patterns: "invalid zeroday"
//
//	VAL004 - Missing column: Required entity columns are missing
//	         Action: Include entityName, entityCode and entityId headers
//	         Patterns: "missing required columns"
//
//	VAL005 - Column not found: The requested column does not exist
//	         Action: Check the column slug against the dataset's columns
//	         Patterns: "column not found"
//
//	VAL006 - Unknown entity: The entity is not in this dataset
//	         Action: Check the entity name against the dataset's entities
//	         Patterns: "entity not found"
//
//	VAL007 - Invalid column: The column definition was rejected
//	         Action: Check the column options and try again
//	         Patterns: "invalid column spec"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: File exceeds the configured size limit
//	          Action: Split the file into smaller files
//	          Patterns: "file too large", "request body too large"
//
//	FILE002 - Invalid CSV: File is not valid delimited text
//	          Action: Check quoting and the configured delimiter
//	          Patterns: "parse error", "read header", "read line"
//
//	FILE003 - Invalid JSON: Legacy payload is not valid JSON
//	          Action: Validate the payload and upload it again
//	          Patterns: "decode legacy payload"
//
//	FILE005 - Empty file: The file has nothing to load
//	          Action: Provide a file with data rows
//	          Patterns: "empty input"
//
//	FILE006 - Unsupported format: The file type is not recognised
//	          Action: Use .csv, .tsv or .json files
//	          Patterns: "unsupported format"
//
// # Dataset Errors (TBL001-TBL099)
//
//	TBL001 - Dataset not found: The specified dataset does not exist
//	         Action: Verify the dataset key or id
//	         Patterns: "dataset not found"
//
//	TBL002 - Duplicate dataset: A dataset with this key is already loaded
//	         Action: Choose a different key
//	         Patterns: "dataset already registered"
//
//	TBL003 - Unknown export format: The export format is not supported
//	         Action: Use csv, json or parquet
//	         Patterns: "unsupported export format"
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again or contact support
//
// Patterns are matched case-insensitively with strings.Contains; the first
// match wins.
package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned by the catalog.
var (
	ErrDatasetNotFound = errors.New("dataset not found")
	ErrDatasetExists   = errors.New("dataset already registered")
	ErrEntityNotFound  = errors.New("entity not found")
	ErrFileTooLarge    = errors.New("file too large")
	ErrUnsupported     = errors.New("unsupported format")
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// =========================================================================
	// Validation Errors
	// =========================================================================
	{
		pattern: "invalid zeroday",
		msg: UserMessage{
			Message: "A daily variable declares an unreadable zero day",
			Action:  "Use YYYY-MM-DD for display.zeroDay",
			Code:    "VAL001",
		},
	},
	{
		pattern: "missing required columns",
		msg: UserMessage{
			Message: "Required entity columns are missing",
			Action:  "Include entityName, entityCode and entityId headers",
			Code:    "VAL004",
		},
	},
	{
		pattern: "column not found",
		msg: UserMessage{
			Message: "The requested column does not exist",
			Action:  "Check the column slug against the dataset's columns",
			Code:    "VAL005",
		},
	},
	{
		pattern: "entity not found",
		msg: UserMessage{
			Message: "The entity is not in this dataset",
			Action:  "Check the entity name against the dataset's entities",
			Code:    "VAL006",
		},
	},
	{
		pattern: "invalid column spec",
		msg: UserMessage{
			Message: "The column definition was rejected",
			Action:  "Check the column options and try again",
			Code:    "VAL007",
		},
	},

	// =========================================================================
	// File Errors
	// =========================================================================
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the configured size limit",
			Action:  "Split the file into smaller files",
			Code:    "FILE001",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds the configured size limit",
			Action:  "Split the file into smaller files",
			Code:    "FILE001",
		},
	},
	{
		pattern: "parse error",
		msg: UserMessage{
			Message: "File is not valid delimited text",
			Action:  "Check quoting and the configured delimiter",
			Code:    "FILE002",
		},
	},
	{
		pattern: "read header",
		msg: UserMessage{
			Message: "File is not valid delimited text",
			Action:  "Check quoting and the configured delimiter",
			Code:    "FILE002",
		},
	},
	{
		pattern: "read line",
		msg: UserMessage{
			Message: "File is not valid delimited text",
			Action:  "Check quoting and the configured delimiter",
			Code:    "FILE002",
		},
	},
	{
		pattern: "decode legacy payload",
		msg: UserMessage{
			Message: "Legacy payload is not valid JSON",
			Action:  "Validate the payload and upload it again",
			Code:    "FILE003",
		},
	},
	{
		pattern: "empty input",
		msg: UserMessage{
			Message: "The file has nothing to load",
			Action:  "Provide a file with data rows",
			Code:    "FILE005",
		},
	},
	{
		pattern: "unsupported export format",
		msg: UserMessage{
			Message: "The export format is not supported",
			Action:  "Use csv, json or parquet",
			Code:    "TBL003",
		},
	},
	{
		pattern: "unsupported format",
		msg: UserMessage{
			Message: "The file type is not recognised",
			Action:  "Use .csv, .tsv or .json files",
			Code:    "FILE006",
		},
	},

	// =========================================================================
	// Dataset Errors
	// =========================================================================
	{
		pattern: "dataset not found",
		msg: UserMessage{
			Message: "The specified dataset does not exist",
			Action:  "Verify the dataset key or id",
			Code:    "TBL001",
		},
	},
	{
		pattern: "dataset already registered",
		msg: UserMessage{
			Message: "A dataset with this key is already loaded",
			Action:  "Choose a different key",
			Code:    "TBL002",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. A nil error
// maps to the zero UserMessage.
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

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
