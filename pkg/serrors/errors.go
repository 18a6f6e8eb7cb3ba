package serrors

import "fmt"

// Base is a coded domain error. Code is stable and machine-readable,
// Message is for humans.
type Base struct {
	Code    string
	Message string
}

func (e *Base) Error() string { return e.Message }

func NewError(code, message string) *Base {
	return &Base{Code: code, Message: message}
}

func NewFieldRequiredError(field string) *Base {
	return &Base{Code: "FIELD_REQUIRED", Message: fmt.Sprintf("%s is required", field)}
}

// ServiceError carries an HTTP-equivalent status alongside the code so the
// presentation layer can translate without inspecting message text.
type ServiceError struct {
	Status  int
	Code    string
	Message string
	Cause   error
}

func (e *ServiceError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *ServiceError) Unwrap() error { return e.Cause }

func New(status int, code, message string, cause error) *ServiceError {
	return &ServiceError{Status: status, Code: code, Message: message, Cause: cause}
}

func NotFound(code, message string) *ServiceError {
	return New(404, code, message, nil)
}

func Validation(code, message string) *ServiceError {
	return New(400, code, message, nil)
}

func Conflict(code, message string) *ServiceError {
	return New(409, code, message, nil)
}

// NoPendingApproval is deliberately generic: it does not distinguish
// "wrong approver" from "nothing pending" so callers cannot probe for
// who the real approver is.
func NoPendingApproval() *ServiceError {
	return New(403, "APPROVAL_NOT_ASSIGNED", "no pending approval request assigned to this user for the selected stage", nil)
}

// Persistence wraps a store failure so required-persistence deployments can
// tell a broken store apart from a missing record.
func Persistence(message string, cause error) *ServiceError {
	return New(503, "PERSISTENCE_FAILURE", message, cause)
}
