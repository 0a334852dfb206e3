package criteria

import (
	"errors"
	"fmt"
)

// =====================================
// Error Handling
// =====================================

// Error is returned by every criteria operation. Type classifies the
// failure for the Is helpers below; Code narrows it further when a caller
// may want to branch on the exact condition.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Code    string
}

// Codes carried by Error.Code.
const (
	// CodeDeadlineExceeded marks a provider call cut off by its deadline.
	CodeDeadlineExceeded = "deadline_exceeded"
	// CodeCanceled marks a provider call whose context was canceled.
	CodeCanceled = "canceled"
	// CodeNonPortable and CodeAmbiguous mark constructs rejected by policy.
	CodeNonPortable = string(FlagNonPortable)
	CodeAmbiguous   = string(FlagAmbiguous)
)

func (e Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Code != "" {
		msg += " [" + e.Code + "]"
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Cause)
	}
	return msg
}

func (e Error) Unwrap() error { return e.Cause }

// Is matches any Error of the same Type, whatever its message or code.
func (e Error) Is(target error) bool {
	t, ok := target.(Error)
	return ok && e.Type == t.Type
}

func NewError(errorType ErrorType, message string) Error {
	return Error{Type: errorType, Message: message}
}

func NewErrorWithCause(errorType ErrorType, message string, cause error) Error {
	return Error{Type: errorType, Message: message, Cause: cause}
}

func NewErrorWithCode(errorType ErrorType, message string, code string) Error {
	return Error{Type: errorType, Message: message, Code: code}
}

// ErrorCode returns the code of the first Error in err's chain that has one.
func ErrorCode(err error) string {
	for _, e := range errorsIn(err) {
		if e.Code != "" {
			return e.Code
		}
	}
	return ""
}

// errorsIn lists the Errors in err's tree, depth-first.
func errorsIn(err error) []Error {
	var out []Error
	var visit func(error)
	visit = func(err error) {
		if err == nil {
			return
		}
		if e, ok := err.(Error); ok {
			out = append(out, e)
		}
		switch x := err.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range x.Unwrap() {
				visit(inner)
			}
		case interface{ Unwrap() error }:
			visit(x.Unwrap())
		}
	}
	visit(err)
	return out
}

func errorf(errorType ErrorType, format string, args ...any) Error {
	return NewError(errorType, fmt.Sprintf(format, args...))
}

// IsErrorType checks if an error, or any error it wraps, is of a specific type
func IsErrorType(err error, errorType ErrorType) bool {
	return errors.Is(err, Error{Type: errorType})
}

// IsInvalidArgument checks if an error is an "invalid argument" error
func IsInvalidArgument(err error) bool {
	return IsErrorType(err, ErrorTypeInvalidArgument)
}

// IsInvalidState checks if an error is an "invalid state" error
func IsInvalidState(err error) bool {
	return IsErrorType(err, ErrorTypeInvalidState)
}

// IsUnknownType checks if an error is an "unknown type" error
func IsUnknownType(err error) bool {
	return IsErrorType(err, ErrorTypeUnknownType)
}

// IsMultipleRoots checks if an error is a "multiple roots" error
func IsMultipleRoots(err error) bool {
	return IsErrorType(err, ErrorTypeMultipleRoots)
}

// IsUnboundParameter checks if an error is an "unbound parameter" error
func IsUnboundParameter(err error) bool {
	return IsErrorType(err, ErrorTypeUnboundParameter)
}

// IsNoResult checks if an error is a "no result" error
func IsNoResult(err error) bool {
	return IsErrorType(err, ErrorTypeNoResult)
}

// IsNonUniqueResult checks if an error is a "non unique result" error
func IsNonUniqueResult(err error) bool {
	return IsErrorType(err, ErrorTypeNonUniqueResult)
}

// IsUnsupported checks if an error is an "unsupported" error
func IsUnsupported(err error) bool {
	return IsErrorType(err, ErrorTypeUnsupported)
}

// IsProviderError checks if an error was reported by a provider
func IsProviderError(err error) bool {
	return IsErrorType(err, ErrorTypeProvider)
}

// IsTimeout checks if an error is a "timeout" error
func IsTimeout(err error) bool {
	return IsErrorType(err, ErrorTypeTimeout)
}

// IsConfiguration checks if an error is a "configuration" error
func IsConfiguration(err error) bool {
	return IsErrorType(err, ErrorTypeConfiguration)
}
