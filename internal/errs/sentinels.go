// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Common sentinels across api/view layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates the session is missing or expired (HTTP 401).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the server refused the action for this user (HTTP 403).
	ErrForbidden = errors.New("forbidden")

	// ErrConflict indicates a state conflict, e.g. a second review or a repeated purchase.
	ErrConflict = errors.New("conflict")

	// ErrBadRequest indicates the server rejected the request payload (HTTP 400).
	ErrBadRequest = errors.New("bad request")

	// ErrValidation indicates a client-side validation failure; the request was not sent.
	ErrValidation = errors.New("validation")

	// ErrBusy indicates a mutating request is already in flight for this view.
	ErrBusy = errors.New("request in flight")

	// ErrNotAllowed indicates the action is not legal for the viewer's role.
	ErrNotAllowed = errors.New("action not allowed")

	// ErrCanceled indicates the user declined a confirmation.
	ErrCanceled = errors.New("canceled by user")

	// ErrNoAttachments indicates nothing could be downloaded for a material.
	ErrNoAttachments = errors.New("no attachments")
)

// APIError is a non-2xx response carrying the backend's {"error": "..."} body.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

// Unwrap maps the status code onto a sentinel so callers can use errors.Is.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	}
	return nil
}

// Handled reports whether err was already dealt with globally: a 401 has sent the
// user to the login screen, so callers return it without alerting, logging or
// recording it again.
func Handled(err error) bool { return errors.Is(err, ErrUnauthorized) }

// Validation wraps ErrValidation with a user-facing message.
func Validation(msg string) error {
	return &ValidationError{Message: msg}
}

// ValidationError carries the localized alert text shown for a blocked submission.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Message returns the text to show the user for err: the backend message for API
// errors, the validation text for validation errors, and fallback otherwise.
func Message(err error, fallback string) string {
	var ae *APIError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	return fallback
}
