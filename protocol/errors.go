package protocol

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents standardized transport-level error codes
type ErrorCode int

const (
	// Connection errors (1000-1099)
	ErrorCodeConnectionRefused ErrorCode = 1001
	ErrorCodeTimeout           ErrorCode = 1002
	ErrorCodeAuthFailed        ErrorCode = 1003
	ErrorCodeVersionMismatch   ErrorCode = 1004
	ErrorCodeBackpressure      ErrorCode = 1010

	// Protocol errors (2000-2099)
	ErrorCodeProtocolError ErrorCode = 2001
)

// Server-reported per-operation error codes. These appear inside
// writeErrors/writeConcernError entries of a reply and drive the driver's
// error classification.
const (
	// CodeIllegalOperation rejects an operation that is invalid on the
	// target collection, such as deleting from a capped collection.
	CodeIllegalOperation = 20

	// CodeExceededTimeLimit reports that the server gave up on the
	// operation before acknowledging it.
	CodeExceededTimeLimit = 50

	// CodeWriteConcernFailed reports the requested acknowledgment level
	// could not be satisfied in time.
	CodeWriteConcernFailed = 64

	// CodeDuplicateKey and its legacy variants report a unique index
	// violation.
	CodeDuplicateKey       = 11000
	CodeDuplicateKeyLegacy = 11001
	CodeDuplicateKeyUpdate = 12582
)

// IsDuplicateKeyCode reports whether a server error code is one of the
// recognized duplicate-key conditions.
func IsDuplicateKeyCode(code int) bool {
	switch code {
	case CodeDuplicateKey, CodeDuplicateKeyLegacy, CodeDuplicateKeyUpdate:
		return true
	default:
		return false
	}
}

// IsWriteConcernTimeoutCode reports whether a write concern error code
// indicates the acknowledgment timed out rather than failed outright.
func IsWriteConcernTimeoutCode(code int) bool {
	return code == CodeWriteConcernFailed || code == CodeExceededTimeLimit
}

// TransportError represents an error with structured error code
type TransportError struct {
	Code        ErrorCode              `json:"code"`
	Message     string                 `json:"message"`
	Details     map[string]interface{} `json:"details,omitempty"`
	IsRetryable bool                   `json:"isRetryable"`
}

// Error implements the error interface
func (e *TransportError) Error() string {
	if len(e.Details) > 0 {
		detailsJSON, _ := json.Marshal(e.Details)
		return fmt.Sprintf("[%d] %s (details: %s)", e.Code, e.Message, string(detailsJSON))
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// NewTransportError creates a new transport error
func NewTransportError(code ErrorCode, message string, details map[string]interface{}) *TransportError {
	return &TransportError{
		Code:        code,
		Message:     message,
		Details:     details,
		IsRetryable: isRetryable(code),
	}
}

// isRetryable determines if an error code represents a retryable error
func isRetryable(code ErrorCode) bool {
	switch code {
	case ErrorCodeTimeout, ErrorCodeBackpressure:
		return true
	default:
		return false
	}
}

// ConnectionRefusedError creates a connection-related transport error
func ConnectionRefusedError(message string, details map[string]interface{}) *TransportError {
	return NewTransportError(ErrorCodeConnectionRefused, message, details)
}

// TimeoutError creates a timeout transport error
func TimeoutError(message string, details map[string]interface{}) *TransportError {
	return NewTransportError(ErrorCodeTimeout, message, details)
}

// AuthError creates an authentication transport error
func AuthError(message string, details map[string]interface{}) *TransportError {
	return NewTransportError(ErrorCodeAuthFailed, message, details)
}

// VersionMismatchError creates a protocol version mismatch error
func VersionMismatchError(message string, details map[string]interface{}) *TransportError {
	return NewTransportError(ErrorCodeVersionMismatch, message, details)
}

// BackpressureError creates a backpressure transport error
func BackpressureError(queueDepth int) *TransportError {
	return NewTransportError(ErrorCodeBackpressure, "message queue full", map[string]interface{}{
		"queueDepth": queueDepth,
	})
}
