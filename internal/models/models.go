// Package models defines the core data structures for BotWeave.
//
// This file holds shared error values, validation constants, and the API
// response types used by the HTTP layer.
package models

import "errors"

// Validation constants for flow graphs and replies
const (
	// MaxReplyLength defines the maximum accepted length for a raw reply
	MaxReplyLength = 4096
	// MaxRetryMessageLength defines the maximum length for a configured retry message
	MaxRetryMessageLength = 1000
)

// DefaultRetryMessage is emitted when an input block rejects a reply and no
// retryMessageContent is configured.
const DefaultRetryMessage = "Invalid message. Please, try again."

// Error variables for better error handling and testability.
//
// The first group are defect errors: they indicate a corrupt session pointer
// or malformed graph, are never recovered internally, and map to an internal
// server error at the transport boundary.
var (
	ErrCurrentBlockNotFound = errors.New("session current block not found in flow")
	ErrNotInputBlock        = errors.New("session current block is not an input block")
	ErrUnknownBlockType     = errors.New("unknown block type")
	ErrTraversalDepth       = errors.New("flow traversal depth limit exceeded")

	// ErrNotFound distinguishes a missing record from a transient store
	// failure across all storage backends.
	ErrNotFound = errors.New("record not found")

	ErrEmptyFlow      = errors.New("flow has no groups")
	ErrMissingFlowID  = errors.New("flow ID is required")
	ErrReplyTooLong   = errors.New("reply exceeds maximum length")
	ErrMissingSession = errors.New("session ID is required")
)

// IsDefect reports whether the error indicates a corrupt session or
// malformed graph rather than a transient failure.
func IsDefect(err error) bool {
	return errors.Is(err, ErrCurrentBlockNotFound) ||
		errors.Is(err, ErrNotInputBlock) ||
		errors.Is(err, ErrUnknownBlockType) ||
		errors.Is(err, ErrTraversalDepth)
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// API Response types for consistent JSON responses

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
