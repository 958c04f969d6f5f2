package httpapi

import "fmt"

const (
	CodeValidation  = "validation"
	CodeNotFound    = "not_found"
	CodeUnavailable = "unavailable"
	CodeInternal    = "internal"
)

type Error struct {
	Code    string
	Message string
	Status  int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func statusForCode(code string) int {
	switch code {
	case CodeValidation:
		return 400
	case CodeNotFound:
		return 404
	case CodeUnavailable:
		return 503
	default:
		return 500
	}
}

func newError(code, message string) *Error {
	return &Error{Code: code, Message: message, Status: statusForCode(code)}
}

func NewValidationError(message string) *Error {
	return newError(CodeValidation, message)
}

func NewValidationJSONError(err error) *Error {
	return newError(CodeValidation, "invalid json: "+err.Error())
}

func NewNotFoundError(message string) *Error {
	return newError(CodeNotFound, message)
}

func NewInternalError(message string) *Error {
	return newError(CodeInternal, message)
}
