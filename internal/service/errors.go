package service

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error kinds returned by services. Match with errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("insufficient permissions")
	ErrInvalidState     = errors.New("invalid state")
	ErrConflict         = errors.New("conflict")
	ErrValidation       = errors.New("validation failed")
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrAssigneeSync     = errors.New("task assignee update pending")
)

// Error carries a message safe to show to API clients and unwraps to its kind.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func notFound(what string) *Error {
	return newError(ErrNotFound, "%s not found", what)
}

func denied() *Error {
	return &Error{Kind: ErrPermissionDenied, Message: "Insufficient permissions"}
}

func invalid(format string, args ...any) *Error {
	return newError(ErrValidation, format, args...)
}

// AssigneeSyncError reports that an approval committed but the task's
// assignee could not be rewritten. The approval stands; retry with the
// resync operation or wait for the reconciler.
type AssigneeSyncError struct {
	AssignmentID primitive.ObjectID
	TaskID       primitive.ObjectID
	Err          error
}

func (e *AssigneeSyncError) Error() string {
	return fmt.Sprintf("assignment %s approved but task %s assignee not updated: %v",
		e.AssignmentID.Hex(), e.TaskID.Hex(), e.Err)
}

func (e *AssigneeSyncError) Unwrap() error { return e.Err }

func (e *AssigneeSyncError) Is(target error) bool { return target == ErrAssigneeSync }

// Message is the client-facing text for any service error.
func Message(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Error()
	}
	var sync *AssigneeSyncError
	if errors.As(err, &sync) {
		return "Assignment approved; task assignee update pending, retry resync"
	}
	return "Internal server error"
}
