package model

import "github.com/m-mizutani/goerr/v2"

// ErrorType is the taxonomy every tool operation reports through on
// failure (spec §4.7/§7).
type ErrorType string

const (
	ErrorTypeValidation     ErrorType = "VALIDATION_ERROR"
	ErrorTypeConnection     ErrorType = "CONNECTION_ERROR"
	ErrorTypeTimeout        ErrorType = "TIMEOUT_ERROR"
	ErrorTypeServer         ErrorType = "SERVER_ERROR"
	ErrorTypeClient         ErrorType = "CLIENT_ERROR"
	ErrorTypeNotFound       ErrorType = "NOT_FOUND_ERROR"
	ErrorTypeAuthentication ErrorType = "AUTHENTICATION_ERROR"
	ErrorTypeExecution      ErrorType = "EXECUTION_ERROR"
	ErrorTypeUnknown        ErrorType = "UNKNOWN_ERROR"
)

// Envelope is the uniform success/failure shape every tool operation
// returns (spec §4.7).
type Envelope struct {
	Success   bool           `json:"success"`
	Message   string         `json:"message"`
	Data      any            `json:"data,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Error     string         `json:"error,omitempty"`
	ErrorType ErrorType      `json:"error_type,omitempty"`
}

// SuccessResponse builds a successful envelope.
func SuccessResponse(message string, data any, metadata map[string]any) *Envelope {
	return &Envelope{
		Success:  true,
		Message:  message,
		Data:     data,
		Metadata: metadata,
	}
}

// ErrorResponse builds a failed envelope. errorType defaults to
// UNKNOWN_ERROR and the error detail defaults to message when not
// supplied, matching the teacher-style "zero value is sensible"
// convention used across this codebase.
func ErrorResponse(message string, errorType ErrorType, detail string, metadata map[string]any) *Envelope {
	if errorType == "" {
		errorType = ErrorTypeUnknown
	}
	if detail == "" {
		detail = message
	}
	return &Envelope{
		Success:   false,
		Message:   message,
		Error:     detail,
		ErrorType: errorType,
		Metadata:  metadata,
	}
}

// ValidationError builds a VALIDATION_ERROR envelope carrying
// structured validation details in metadata.validation_details.
func ValidationError(message string, details any) *Envelope {
	metadata := map[string]any{}
	if details != nil {
		metadata["validation_details"] = details
	}
	return ErrorResponse(message, ErrorTypeValidation, message, metadata)
}

// NotFoundError builds a NOT_FOUND_ERROR envelope for a missing
// resource, e.g. NotFoundError("memory") -> "memory not found".
func NotFoundError(resource string) *Envelope {
	msg := resource + " not found"
	return ErrorResponse(msg, ErrorTypeNotFound, msg, nil)
}

// ErrNotFound is the sentinel returned by lower layers (vector index,
// orchestrator) when a lookup misses; callers translate it to
// NotFoundError at the envelope boundary.
var ErrNotFound = goerr.New("resource not found")
