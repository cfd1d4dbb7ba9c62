package model

// ErrorResponse is the standard envelope for HTTP route errors.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the structured error information returned by the API.
type ErrorDetail struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// StatusSuccess and StatusError are the values of the "status" field carried
// by every operation result document.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// OperationError is the document returned to tool callers when an operation
// fails. It mirrors the success documents' "status" field so clients can
// branch on a single key.
type OperationError struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Tool    string `json:"tool"`
}

// NewOperationError builds an OperationError for the named operation.
func NewOperationError(tool, message string) OperationError {
	return OperationError{Status: StatusError, Message: message, Tool: tool}
}
