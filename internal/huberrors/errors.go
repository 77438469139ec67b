// Package huberrors defines the error kinds callers branch on with errors.Is: a missing video
// (HTTP 404, job completed) and rejected input (HTTP 400).
package huberrors

// Sentinels for errors.Is. Any *NotFoundError or *ValidationError matches its sentinel.
var (
	ErrNotFound   = &NotFoundError{}
	ErrValidation = &ValidationError{}
)

// NotFoundError reports a resource, usually a video, that does not exist.
type NotFoundError struct {
	Resource string
	Message  string
}

func NewNotFoundError(resource, message string) *NotFoundError {
	return &NotFoundError{Resource: resource, Message: message}
}

func (e *NotFoundError) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Resource != "":
		return e.Resource + " not found"
	default:
		return "resource not found"
	}
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)

	return ok
}

// ValidationError reports input the store or a service refuses, e.g. a vector of the wrong size.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Field != "":
		return "validation failed for field: " + e.Field
	default:
		return "validation error"
	}
}

func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)

	return ok
}
