package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Status  int         `json:"status"`
	Details interface{} `json:"details,omitempty"`
	Err     error       `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target carries the same code, so clones and wraps of a
// predefined error still match it.
func (e *Error) Is(target error) bool {
	var t *Error
	if e == nil || !errors.As(target, &t) || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound          = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden         = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized      = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict          = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation        = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal          = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss         = New("CACHE_MISS", http.StatusNotFound, "cache miss")
	ErrMissingRequired   = New("MISSING_REQUIRED", http.StatusUnprocessableEntity, "please answer all required questions")
	ErrValidationFailed  = New("VALIDATION_FAILED", http.StatusUnprocessableEntity, "answer validation failed")
	ErrInvalidLink       = New("INVALID_LINK", http.StatusBadRequest, "must be a Google Drive file or folder link")
	ErrMissingLink       = New("MISSING_LINK", http.StatusBadRequest, "evidence link is blank")
	ErrDependencyCycle   = New("DEPENDENCY_CYCLE", http.StatusUnprocessableEntity, "question dependencies must not form a cycle")
	ErrMissingDependency = New("MISSING_DEPENDENCY", http.StatusServiceUnavailable, "report renderer is not available")
	ErrGeneration        = New("GENERATION_ERROR", http.StatusInternalServerError, "composite report generation failed")
)

// MissingRequiredDetails lists unanswered required questions.
type MissingRequiredDetails struct {
	QuestionIDs []string `json:"question_ids"`
}

// ValidationFailedDetails identifies the answer that failed validation.
type ValidationFailedDetails struct {
	QuestionID string `json:"question_id"`
	Reason     string `json:"reason"`
}

// MissingRequired builds the error returned when required answers are blank.
func MissingRequired(questionIDs []string) *Error {
	e := Clone(ErrMissingRequired, "")
	e.Details = MissingRequiredDetails{QuestionIDs: questionIDs}
	return e
}

// ValidationFailed builds the error returned when a single answer is rejected.
func ValidationFailed(questionID string, cause error) *Error {
	reason := "invalid"
	var typed *Error
	if errors.As(cause, &typed) {
		switch typed.Code {
		case ErrInvalidLink.Code:
			reason = "invalid_link"
		case ErrMissingLink.Code:
			reason = "missing_link"
		}
	}
	e := Wrap(cause, ErrValidationFailed.Code, ErrValidationFailed.Status, fmt.Sprintf("invalid answer for question %s", questionID))
	e.Details = ValidationFailedDetails{QuestionID: questionID, Reason: reason}
	return e
}

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
