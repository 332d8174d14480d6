package faults

import "errors"

type ErrorCategory string

const (
	ConfigurationError       ErrorCategory = "ConfigurationError"
	UnsupportedOperation     ErrorCategory = "UnsupportedOperation"
	MissingURLParameter      ErrorCategory = "MissingURLParameter"
	InvalidMemberIdentifier  ErrorCategory = "InvalidMemberIdentifier"
	InvalidOrderChangeBatch  ErrorCategory = "InvalidOrderChangeBatch"
	MalformedServiceResponse ErrorCategory = "MalformedServiceResponse"
	NotFoundError            ErrorCategory = "NotFoundError"
	TransportError           ErrorCategory = "TransportError"
	InternalError            ErrorCategory = "InternalError"
)

type TypedError struct {
	Category ErrorCategory
	Message  string
	Cause    error
}

func (e *TypedError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Message != "" && e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return string(e.Category)
}

func (e *TypedError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func NewTypedError(category ErrorCategory, message string, cause error) *TypedError {
	return &TypedError{
		Category: category,
		Message:  message,
		Cause:    cause,
	}
}

func IsCategory(err error, category ErrorCategory) bool {
	if err == nil {
		return false
	}

	var typedErr *TypedError
	if !errors.As(err, &typedErr) {
		return false
	}
	return typedErr.Category == category
}

type Severity string

const (
	SeverityInfo    Severity = "Info"
	SeverityWarning Severity = "Warning"
	SeverityError   Severity = "Error"
)

// DeployError is a change-scoped failure. It names the offending element so
// batch results stay attributable; sibling changes are unaffected.
type DeployError struct {
	ElementID string
	Severity  Severity
	Message   string
	Cause     error
}

func (e *DeployError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.ElementID == "" {
		return msg
	}
	if msg == "" {
		return e.ElementID
	}
	return e.ElementID + ": " + msg
}

func (e *DeployError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func NewDeployError(elementID string, severity Severity, message string, cause error) *DeployError {
	return &DeployError{
		ElementID: elementID,
		Severity:  severity,
		Message:   message,
		Cause:     cause,
	}
}
