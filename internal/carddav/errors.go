package carddav

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/johnbchron/kith/internal/store"
	"github.com/johnbchron/kith/internal/vcard"
)

// Error is the kind-tagged error every handler returns. It maps directly to
// an HTTP status; the short message is sent to the client, never a stack
// trace.
type Error struct {
	Status  int
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

var (
	errUnauthorized = &Error{Status: http.StatusUnauthorized, Message: "unauthorized"}
	errNotFound     = &Error{Status: http.StatusNotFound, Message: "not found"}
	errPrecondition = &Error{Status: http.StatusPreconditionFailed, Message: "precondition failed"}
	errMalformedXML = &Error{Status: http.StatusBadRequest, Message: "malformed XML"}
)

func badRequest(msg string) *Error {
	return &Error{Status: http.StatusBadRequest, Message: msg}
}

func forbidden(msg string) *Error {
	return &Error{Status: http.StatusForbidden, Message: msg}
}

func conflict(err error) *Error {
	return &Error{Status: http.StatusConflict, Message: "conflict", cause: err}
}

func internal(err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Message: "internal error", cause: err}
}

// mapStoreErr classifies store failures: lifecycle-state violations are
// client-visible conflicts (a race between syncing clients), everything else
// is internal.
func mapStoreErr(err error) *Error {
	switch {
	case errors.Is(err, store.ErrAlreadySuperseded),
		errors.Is(err, store.ErrAlreadyRetracted),
		errors.Is(err, store.ErrSelfSupersession):
		return conflict(err)
	case errors.Is(err, store.ErrSubjectNotFound),
		errors.Is(err, store.ErrFactNotFound):
		return errNotFound
	default:
		return internal(err)
	}
}

// mapVcardErr turns codec failures into 400s: the body came from the client.
func mapVcardErr(err error) *Error {
	var cle *vcard.ContentLineError
	if errors.Is(err, vcard.ErrMissingEnvelope) ||
		errors.Is(err, vcard.ErrUnsupportedVersion) ||
		errors.Is(err, vcard.ErrInvalidImppURI) ||
		errors.As(err, &cle) {
		return &Error{Status: http.StatusBadRequest, Message: "malformed vCard", cause: err}
	}
	return internal(err)
}

// writeError logs and serializes an error response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var he *Error
	if !errors.As(err, &he) {
		he = internal(err)
	}

	if he.Status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"method", r.Method, "path", r.URL.Path, "status", he.Status, "err", err)
	} else {
		slog.Debug("request rejected",
			"method", r.Method, "path", r.URL.Path, "status", he.Status, "err", err)
	}

	if he.Status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Basic realm="kith"`)
	}
	http.Error(w, he.Message, he.Status)
}
