package errors

// ErrorDetails represents detailed information about an error.
type ErrorDetails struct {
	// Message (required) is the user-defined error message.
	// E.g. "tick price must be positive".
	Message string

	// Code (required) is the machine-readable error code string.
	// E.g. "tick_validation_error".
	Code string

	// Field (optional) is the related field the error occurred on, if any.
	Field string

	// Object (optional) is the related object the error occurred on, if any.
	Object interface{}
}

// NewErrorDetails creates a new ErrorDetails struct with the given parameters.
func NewErrorDetails(message, code, field string) *ErrorDetails {
	return &ErrorDetails{
		Message: message,
		Code:    code,
		Field:   field,
	}
}

// NewErrorDetailsWithObject creates a new ErrorDetails struct with an associated object.
func NewErrorDetailsWithObject(message, code, field string, object interface{}) *ErrorDetails {
	return &ErrorDetails{
		Message: message,
		Code:    code,
		Field:   field,
		Object:  object,
	}
}

func (e *ErrorDetails) Error() string {
	return e.Message
}

// Is reports whether target carries the same error code.
func (e *ErrorDetails) Is(target error) bool {
	details, ok := target.(*ErrorDetails)
	if !ok {
		return false
	}
	return details.Code == e.Code
}
