package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindAuth               Kind = "AuthError"
	KindValidation         Kind = "ValidationError"
	KindDocumentProcessing Kind = "DocumentProcessingError"
	KindGenerationFormat   Kind = "GenerationFormatError"
	KindGradingFormat      Kind = "GradingFormatError"
	KindBackendUnavailable Kind = "BackendUnavailableError"
	KindInternal           Kind = "InternalError"
)

// Error is the single error type crossing component boundaries.
// Op names the failing operation, UserID is set where a user scope exists.
type Error struct {
	Kind    Kind
	Op      string
	UserID  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	prefix := string(e.Kind)
	if e.Op != "" {
		prefix = e.Op + ": " + prefix
	}
	if e.UserID != "" {
		prefix = prefix + " (user " + e.UserID + ")"
	}
	if msg == "" {
		return prefix
	}
	return prefix + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// Public returns the message safe to show to API clients.
func (e *Error) Public() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil && e.Kind != KindInternal {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func newError(kind Kind, op string, err error, format string, args ...any) *Error {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &Error{Kind: kind, Op: op, Message: msg, Err: err}
}

func Auth(op, format string, args ...any) *Error {
	return newError(KindAuth, op, nil, format, args...)
}

func Validation(op, format string, args ...any) *Error {
	return newError(KindValidation, op, nil, format, args...)
}

func DocumentProcessing(op string, err error, format string, args ...any) *Error {
	return newError(KindDocumentProcessing, op, err, format, args...)
}

func GenerationFormat(op string, err error, format string, args ...any) *Error {
	return newError(KindGenerationFormat, op, err, format, args...)
}

func GradingFormat(op string, err error, format string, args ...any) *Error {
	return newError(KindGradingFormat, op, err, format, args...)
}

func BackendUnavailable(op string, err error, format string, args ...any) *Error {
	return newError(KindBackendUnavailable, op, err, format, args...)
}

func Internal(op string, err error) *Error {
	return &Error{Kind: KindInternal, Op: op, Err: err}
}

// ForUser tags err with a user id, wrapping plain errors as internal ones.
func ForUser(err error, userID string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		tagged := *e
		tagged.UserID = userID
		return &tagged
	}
	return &Error{Kind: KindInternal, UserID: userID, Err: err}
}

// KindOf returns KindInternal for errors outside the taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindAuth:
		return http.StatusUnauthorized
	case KindValidation:
		return http.StatusBadRequest
	case KindDocumentProcessing:
		return http.StatusUnprocessableEntity
	case KindGenerationFormat, KindGradingFormat:
		return http.StatusBadGateway
	case KindBackendUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether a job failing with this kind may be resubmitted.
func Retryable(kind Kind) bool {
	return kind == KindBackendUnavailable || kind == KindGenerationFormat || kind == KindGradingFormat
}

// PublicMessage extracts the client-facing message of any error.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Public()
	}
	return "Internal Server Error"
}
