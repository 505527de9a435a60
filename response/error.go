package response

import "fmt"

// Error is an error response. The body is {"message": ..., "error": ...}
type Error struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
	Reason     string `json:"error"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("HTTP %d: %s: %s", e.StatusCode, e.Message, e.Reason)
}

func (e *Error) WithMessage(msg string) *Error {
	e.Message = msg
	return e
}

func (e *Error) WithReason(reason string) *Error {
	e.Reason = reason
	return e
}

func makeError(status int) *Error {
	return &Error{
		StatusCode: status,
	}
}

// -----------------------------------------------

func ErrBadRequest() *Error {
	return makeError(400).
		WithMessage("Bad request")
}

func ErrNotFound() *Error {
	return makeError(404).
		WithMessage("Requested resources not found")
}

func ErrMethodNotAllowed() *Error {
	return makeError(405).
		WithMessage("Method not allowed")
}

func ErrInvalidJson() *Error {
	return ErrBadRequest().WithReason("Invalid JSON body")
}

// ErrUnhandled is written when a handler panics
func ErrUnhandled() *Error {
	return ErrBadRequest().WithReason("An unexpected error has occurred")
}
