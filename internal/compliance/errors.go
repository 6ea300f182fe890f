package compliance

import (
	"errors"
	"fmt"

	"fieldops-backend/internal/models"
)

// Kind classifies an engine failure so hosts can branch on it.
type Kind string

const (
	KindPrecondition        Kind = "precondition"
	KindValidation          Kind = "validation"
	KindGuardFailure        Kind = "guard_failure"
	KindDataIntegrity       Kind = "data_integrity"
	KindLocationUnavailable Kind = "location_unavailable"
)

// Sentinels for errors.Is checks.
var (
	ErrPrecondition        = errors.New("precondition not satisfied")
	ErrValidation          = errors.New("validation failed")
	ErrGuardFailure        = errors.New("guard check failed")
	ErrDataIntegrity       = errors.New("data integrity violation")
	ErrLocationUnavailable = errors.New("location unavailable")
)

var sentinels = map[Kind]error{
	KindPrecondition:        ErrPrecondition,
	KindValidation:          ErrValidation,
	KindGuardFailure:        ErrGuardFailure,
	KindDataIntegrity:       ErrDataIntegrity,
	KindLocationUnavailable: ErrLocationUnavailable,
}

// Error is returned by every engine operation that refuses a transition.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Guards  []models.GuardResult
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

// Unwrap lets errors.Is match the per-kind sentinel.
func (e *Error) Unwrap() error {
	return sentinels[e.Kind]
}

func newError(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

func Precondition(op, format string, args ...interface{}) *Error {
	return newError(KindPrecondition, op, format, args...)
}

func Validation(op, format string, args ...interface{}) *Error {
	return newError(KindValidation, op, format, args...)
}

func DataIntegrity(op, format string, args ...interface{}) *Error {
	return newError(KindDataIntegrity, op, format, args...)
}

func LocationUnavailable(op string) *Error {
	return newError(KindLocationUnavailable, op, "no current location available")
}

// GuardFailure builds a guard error listing every failed check.
func GuardFailure(op string, guards []models.GuardResult) *Error {
	msg := "guard check failed"
	if len(guards) > 0 {
		msg = guards[0].Result.Message
		if len(guards) > 1 {
			msg = fmt.Sprintf("%s (and %d more)", msg, len(guards)-1)
		}
	}
	return &Error{Kind: KindGuardFailure, Op: op, Message: msg, Guards: guards}
}

// KindOf returns the engine kind of err, or "" when err did not come from the engine.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// GuardsOf returns the failed guards carried by err, if any.
func GuardsOf(err error) []models.GuardResult {
	var e *Error
	if errors.As(err, &e) {
		return e.Guards
	}
	return nil
}
