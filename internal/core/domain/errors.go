package domain

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeUnknownAircraftType ErrorCode = "UNKNOWN_AIRCRAFT_TYPE"
	CodeUnknownPartType     ErrorCode = "UNKNOWN_PART_TYPE"
	CodeCountMismatch       ErrorCode = "COUNT_MISMATCH"
	CodeDuplicatePart       ErrorCode = "DUPLICATE_PART"
	CodePartUnavailable     ErrorCode = "PART_UNAVAILABLE"
	CodePartTypeMismatch    ErrorCode = "PART_TYPE_MISMATCH"
	CodeConcurrentConflict  ErrorCode = "CONCURRENT_CONFLICT"
	CodeNotFound            ErrorCode = "NOT_FOUND"
	CodeAlreadyConsumed     ErrorCode = "ALREADY_CONSUMED"
	CodeForbidden           ErrorCode = "FORBIDDEN"
	CodeInvalidArgument     ErrorCode = "INVALID_ARGUMENT"
	CodeDuplicateRequest    ErrorCode = "DUPLICATE_REQUEST"
)

// Error is the typed failure returned by the engine. It always names the
// offending part type or part id when one exists.
type Error struct {
	Code     ErrorCode
	PartType PartType
	PartID   string
	Required int
	Provided int
	Detail   string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Detail)
	}
	return string(e.Code)
}

// Is matches any *Error carrying the same code, so the package sentinels
// work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Retryable is true only for conflicts a caller may resolve by re-reading
// availability and resubmitting.
func (e *Error) Retryable() bool {
	return e.Code == CodeConcurrentConflict
}

var (
	ErrUnknownAircraftType = &Error{Code: CodeUnknownAircraftType}
	ErrUnknownPartType     = &Error{Code: CodeUnknownPartType}
	ErrCountMismatch       = &Error{Code: CodeCountMismatch}
	ErrDuplicatePart       = &Error{Code: CodeDuplicatePart}
	ErrPartUnavailable     = &Error{Code: CodePartUnavailable}
	ErrPartTypeMismatch    = &Error{Code: CodePartTypeMismatch}
	ErrConcurrentConflict  = &Error{Code: CodeConcurrentConflict}
	ErrNotFound            = &Error{Code: CodeNotFound}
	ErrAlreadyConsumed     = &Error{Code: CodeAlreadyConsumed}
	ErrForbidden           = &Error{Code: CodeForbidden}
	ErrInvalidArgument     = &Error{Code: CodeInvalidArgument}
	ErrDuplicateRequest    = &Error{Code: CodeDuplicateRequest}
)

// Store level failures. They never leave the storage adapters unwrapped by
// the services.
var (
	// ErrConflict means a batch consumption found a claimed part missing,
	// consumed or incompatible; nothing was applied.
	ErrConflict = errors.New("part consumption conflict")
	// ErrDuplicateSerial means a serial number is already taken.
	ErrDuplicateSerial = errors.New("serial number already in use")
)

// PartConflictError is the store's ErrConflict naming the claim that failed.
type PartConflictError struct {
	PartID string
	Reason string
}

func PartConflict(partID, reason string) *PartConflictError {
	return &PartConflictError{PartID: partID, Reason: reason}
}

func (e *PartConflictError) Error() string {
	return fmt.Sprintf("%s: part %s %s", ErrConflict, e.PartID, e.Reason)
}

func (e *PartConflictError) Is(target error) bool {
	return target == ErrConflict
}

func UnknownAircraftType(t AircraftType) *Error {
	return &Error{Code: CodeUnknownAircraftType, Detail: fmt.Sprintf("unknown aircraft type %q", t)}
}

func UnknownPartType(t PartType) *Error {
	return &Error{Code: CodeUnknownPartType, PartType: t, Detail: fmt.Sprintf("unknown part type %q", t)}
}

func CountMismatch(t PartType, required, provided int) *Error {
	return &Error{
		Code:     CodeCountMismatch,
		PartType: t,
		Required: required,
		Provided: provided,
		Detail:   fmt.Sprintf("%s requires %d parts, %d provided", t, required, provided),
	}
}

func DuplicatePart(id string) *Error {
	return &Error{Code: CodeDuplicatePart, PartID: id, Detail: fmt.Sprintf("part %s selected more than once", id)}
}

func PartUnavailable(id string, reason string) *Error {
	return &Error{Code: CodePartUnavailable, PartID: id, Detail: fmt.Sprintf("part %s is not available: %s", id, reason)}
}

func PartTypeMismatch(id string, want, got PartType) *Error {
	return &Error{
		Code:     CodePartTypeMismatch,
		PartID:   id,
		PartType: want,
		Detail:   fmt.Sprintf("part %s is a %s, submitted as %s", id, got, want),
	}
}

// ConcurrentConflict reports a commit lost to another assembly. partID
// names the part that could not be claimed, when known.
func ConcurrentConflict(partID, detail string) *Error {
	return &Error{Code: CodeConcurrentConflict, PartID: partID, Detail: detail}
}

func NotFound(entity, id string) *Error {
	e := &Error{Code: CodeNotFound, Detail: fmt.Sprintf("%s %s not found", entity, id)}
	if entity == "part" {
		e.PartID = id
	}
	return e
}

func AlreadyConsumed(id string) *Error {
	return &Error{Code: CodeAlreadyConsumed, PartID: id, Detail: fmt.Sprintf("part %s is used in an aircraft", id)}
}

func Forbidden(detail string) *Error {
	return &Error{Code: CodeForbidden, Detail: detail}
}

func InvalidArgument(detail string) *Error {
	return &Error{Code: CodeInvalidArgument, Detail: detail}
}

// AsError extracts the typed error from err, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
