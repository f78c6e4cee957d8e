package domain

// ErrorCode represents categorized error types.
// These codes are stable and can be used for programmatic error handling.
type ErrorCode string

const (
	ErrCodeConfigMissing   ErrorCode = "config_missing"
	ErrCodeStructural      ErrorCode = "structural_violation"
	ErrCodeValue           ErrorCode = "value_violation"
	ErrCodeExternalTool    ErrorCode = "external_tool_failure"
	ErrCodeExternalService ErrorCode = "external_service_failure"
)

// String returns the error code as a string.
func (c ErrorCode) String() string {
	return string(c)
}

// Title returns a user-friendly title for this error code.
func (c ErrorCode) Title() string {
	switch c {
	case ErrCodeConfigMissing:
		return "Configuration Error"
	case ErrCodeStructural:
		return "Structural Violation"
	case ErrCodeValue:
		return "Value Violation"
	case ErrCodeExternalTool:
		return "External Tool Failure"
	case ErrCodeExternalService:
		return "External Service Failure"
	default:
		return "Error"
	}
}

// AppError is a structured error with code, message, and optional cause.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// ConfigError creates a configuration error. A missing required input
// document aborts validation of that document immediately.
func ConfigError(message string) *AppError {
	return &AppError{Code: ErrCodeConfigMissing, Message: message}
}

// StructuralError creates a structural violation error (a required element
// or attribute is absent).
func StructuralError(message string) *AppError {
	return &AppError{Code: ErrCodeStructural, Message: message}
}

// ValueError creates a value violation error (an element or attribute is
// present but fails a format, range, or enumerated-set check).
func ValueError(message string) *AppError {
	return &AppError{Code: ErrCodeValue, Message: message}
}

// ExternalToolError creates an external tool failure with optional cause.
func ExternalToolError(message string, cause error) *AppError {
	return &AppError{Code: ErrCodeExternalTool, Message: message, Cause: cause}
}

// ExternalServiceError creates an external service failure with optional cause.
func ExternalServiceError(message string, cause error) *AppError {
	return &AppError{Code: ErrCodeExternalService, Message: message, Cause: cause}
}
