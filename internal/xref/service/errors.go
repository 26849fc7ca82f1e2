package service

import (
	"errors"
	"fmt"

	"github.com/Nickin919/WAIGO-sub001/internal/xref/repository"
)

// Kind 错误分类
type Kind int

const (
	KindValidation Kind = iota + 1
	KindPrecondition
	KindNotFound
	KindForbidden
	KindConflict
)

// 哨兵错误，用于 errors.Is 判断分类
var (
	ErrValidation   = &Error{Kind: KindValidation}
	ErrPrecondition = &Error{Kind: KindPrecondition}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrForbidden    = &Error{Kind: KindForbidden}
	ErrConflict     = &Error{Kind: KindConflict}
)

// Error is a rejected operation with a caller-facing reason.
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string {
	return e.Reason
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func validationf(format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Reason: fmt.Sprintf(format, args...)}
}

func preconditionf(format string, args ...interface{}) error {
	return &Error{Kind: KindPrecondition, Reason: fmt.Sprintf(format, args...)}
}

func notFoundf(format string, args ...interface{}) error {
	return &Error{Kind: KindNotFound, Reason: fmt.Sprintf(format, args...)}
}

func forbiddenf(format string, args ...interface{}) error {
	return &Error{Kind: KindForbidden, Reason: fmt.Sprintf(format, args...)}
}

func conflictf(format string, args ...interface{}) error {
	return &Error{Kind: KindConflict, Reason: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or 0 for infrastructure errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// notFoundOr converts a missing-row error into KindNotFound and wraps anything else.
func notFoundOr(err error, what, id string) error {
	if repository.IsNotFound(err) {
		return notFoundf("%s not found: %s", what, id)
	}
	return fmt.Errorf("load %s: %w", what, err)
}

// ErrValidationReason builds a validation error for callers outside the package.
func ErrValidationReason(reason string) error {
	return &Error{Kind: KindValidation, Reason: reason}
}
