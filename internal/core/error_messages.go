package core

// error_messages.go maps technical errors to user-facing messages with
// stable codes. Clients and support staff quote the code instead of the
// raw error text.
//
// Codes:
//
//	PRF001 - profile or run not found
//	PRF002 - invalid profile definition
//	PRF003 - field kind not supported
//	FILE001 - file exceeds the size limit
//	FILE002 - no file provided
//	FILE003 - file could not be parsed as CSV
//	DB001 - record store unreachable
//	DB002 - record store constraint violated
//	REQ001 - request cancelled
//	REQ002 - request timed out
//	ERR000 - fallback for everything else
//
// Typed errors are matched first via errors.As; everything else falls
// back to case-insensitive substring patterns, first match wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error substrings (case-insensitive) to user
// messages. Specific patterns come before general ones.
var errorPatterns = []errorPattern{
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Attach a CSV file to the request",
			Code:    "FILE002",
		},
	},
	{
		pattern: "unterminated",
		msg: UserMessage{
			Message: "File could not be parsed as CSV",
			Action:  "Check the profile separator and quote settings",
			Code:    "FILE003",
		},
	},
	{
		pattern: "parse rows",
		msg: UserMessage{
			Message: "File could not be parsed as CSV",
			Action:  "Check the profile separator and quote settings",
			Code:    "FILE003",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Record store is unreachable",
			Action:  "Please try again in a few moments",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Record store connection was interrupted",
			Action:  "Please try again",
			Code:    "DB001",
		},
	},
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this key already exists",
			Action:  "Review the profile domain columns for duplicates",
			Code:    "DB002",
		},
	},
	{
		pattern: "violates",
		msg: UserMessage{
			Message: "Record store rejected the data",
			Action:  "Review the import report for the offending rows",
			Code:    "DB002",
		},
	},
	{
		pattern: "not found",
		msg: UserMessage{
			Message: "Profile or run not found",
			Action:  "Check the profile name or run id",
			Code:    "PRF001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
// Support staff should check the application logs for the original
// technical error when users report ERR000.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	err := &ProfileConfigError{Field: "amount", Reason: "unknown kind"}
//	msg := MapError(err)
//	// msg.Code == "PRF002"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var (
		profileErr *ProfileConfigError
		implErr    *NotImplementedError
	)
	switch {
	case errors.As(err, &profileErr):
		return UserMessage{
			Message: profileErr.Error(),
			Action:  "Fix the profile definition and try again",
			Code:    "PRF002",
		}
	case errors.As(err, &implErr):
		return UserMessage{
			Message: implErr.Error(),
			Action:  "Use one of the supported field kinds",
			Code:    "PRF003",
		}
	case errors.Is(err, context.Canceled):
		return UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "REQ001",
		}
	case errors.Is(err, context.DeadlineExceeded):
		return UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or raise the import timeout",
			Code:    "REQ002",
		}
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
