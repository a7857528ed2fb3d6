package chat

import "net/http"

// ErrorKind classifies why a question could not be answered.
type ErrorKind string

const (
	KindConfiguration        ErrorKind = "configuration"
	KindGenerationRejected   ErrorKind = "generation_rejected"
	KindGenerationFailed     ErrorKind = "generation_failed"
	KindSanitizationRejected ErrorKind = "sanitization_rejected"
	KindExecutionFailed      ErrorKind = "execution_failed"
	KindTimeout              ErrorKind = "timeout"
)

const (
	msgMissingAPIKey = "Server Configuration Error: API Key missing."
	msgUnsafeSQL     = "Unsafe or invalid query generated."
	msgExecution     = "Execution Failed: "
	msgGenTimeout    = "Timeout: the AI service did not answer in time."
)

func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindGenerationRejected, KindSanitizationRejected:
		return http.StatusBadRequest
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Error is the client-facing failure of one pipeline run.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}
