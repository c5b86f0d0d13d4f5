package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a stable, enumerable failure category. Its string form is part of
// the public API surface and must not change.
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindForbidden        Kind = "forbidden"
	KindQuotaExceeded    Kind = "quota_exceeded"
	KindConflict         Kind = "conflict"
	KindIntegrityAnomaly Kind = "integrity_anomaly"
	KindStoreUnavailable Kind = "store_unavailable"
	KindInvalid          Kind = "invalid"
	KindInternal         Kind = "internal"
)

// Sentinels for errors.Is comparisons against a bare kind.
var (
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrForbidden        = &Error{Kind: KindForbidden}
	ErrQuotaExceeded    = &Error{Kind: KindQuotaExceeded}
	ErrConflict         = &Error{Kind: KindConflict}
	ErrIntegrityAnomaly = &Error{Kind: KindIntegrityAnomaly}
	ErrStoreUnavailable = &Error{Kind: KindStoreUnavailable}
	ErrInvalid          = &Error{Kind: KindInvalid}
)

type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Msg != "" {
		msg = msg + ": " + e.Msg
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Kind, so errors.Is(err, ErrNotFound)
// holds for every not-found error regardless of Op or message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func NotFound(op, format string, args ...any) *Error {
	return New(KindNotFound, op, format, args...)
}

func Forbidden(op, format string, args ...any) *Error {
	return New(KindForbidden, op, format, args...)
}

func QuotaExceeded(op, format string, args ...any) *Error {
	return New(KindQuotaExceeded, op, format, args...)
}

func Conflict(op, format string, args ...any) *Error {
	return New(KindConflict, op, format, args...)
}

func IntegrityAnomaly(op, format string, args ...any) *Error {
	return New(KindIntegrityAnomaly, op, format, args...)
}

func Invalid(op, format string, args ...any) *Error {
	return New(KindInvalid, op, format, args...)
}

// KindOf returns the kind of the outermost *Error in err's chain, or
// KindInternal for errors the taxonomy does not cover.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Retryable reports whether the caller may retry the whole operation.
func Retryable(err error) bool {
	return KindOf(err) == KindStoreUnavailable
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden, KindIntegrityAnomaly:
		return http.StatusForbidden
	case KindQuotaExceeded:
		return http.StatusPaymentRequired
	case KindConflict:
		return http.StatusConflict
	case KindInvalid:
		return http.StatusBadRequest
	case KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
