package session

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/stemsi/exstem-runner/internal/authority"
)

// Kind classifies every failure the session can surface.
type Kind string

const (
	KindAuthExpired Kind = "AUTH_EXPIRED"
	KindForbidden   Kind = "FORBIDDEN"
	KindNotFound    Kind = "NOT_FOUND"
	KindUnavailable Kind = "UNAVAILABLE"
	KindIncomplete  Kind = "INCOMPLETE"
	KindTransient   Kind = "TRANSIENT"
)

const (
	reasonAuthExpired = "Your sign-in has expired. Sign in again to continue; your answers are kept on this device."
	reasonNotFound    = "This exam could not be found."
	reasonUnavailable = "This exam is not available right now."
	reasonTransient   = "Could not reach the exam server. Your answers are saved; try again."
)

// Error is a classified session failure. Reason is what the subject sees.
type Error struct {
	Kind    Kind
	Reason  string
	Missing int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Recoverable reports whether the same action may simply be tried again.
func (e *Error) Recoverable() bool {
	return e.Kind == KindTransient || e.Kind == KindIncomplete
}

func incompleteError(missing int) *Error {
	noun := "questions are"
	if missing == 1 {
		noun = "question is"
	}
	return &Error{
		Kind:    KindIncomplete,
		Missing: missing,
		Reason:  fmt.Sprintf("%d %s still unanswered.", missing, noun),
	}
}

func unavailableError(reason string) *Error {
	if reason == "" {
		reason = reasonUnavailable
	}
	return &Error{Kind: KindUnavailable, Reason: reason}
}

// Classify maps any error from the authority client or the answer store
// onto a Kind. Anything unrecognised is transient.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var se *Error
	if errors.As(err, &se) {
		return se
	}

	if errors.Is(err, authority.ErrCredentialMissing) || errors.Is(err, authority.ErrCredentialExpired) {
		return &Error{Kind: KindAuthExpired, Reason: reasonAuthExpired, Err: err}
	}

	var apiErr *authority.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized:
			return &Error{Kind: KindAuthExpired, Reason: reasonAuthExpired, Err: err}
		case http.StatusForbidden:
			return &Error{Kind: KindForbidden, Reason: apiErr.Message, Err: err}
		case http.StatusNotFound:
			return &Error{Kind: KindNotFound, Reason: reasonNotFound, Err: err}
		case http.StatusConflict, http.StatusGone, http.StatusUnprocessableEntity:
			return &Error{Kind: KindUnavailable, Reason: apiErr.Message, Err: err}
		}
	}

	return &Error{Kind: KindTransient, Reason: reasonTransient, Err: err}
}
