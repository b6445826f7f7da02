package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"housefin/internal/core"
	applog "housefin/internal/log"
)

const unavailableMessage = "Service temporarily unavailable, try again later."

var errNotFound = fmt.Errorf("%w: no such page", core.ErrNotFound)

// statusFor maps the core error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrBadBody):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrConnection), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage is the text shown to users for err. Internal details stay
// in the logs.
func publicMessage(err error) string {
	if ve, ok := core.AsValidation(err); ok {
		return ve.Message()
	}
	switch statusFor(err) {
	case http.StatusBadRequest:
		return "Malformed request."
	case http.StatusUnauthorized:
		return "Not authenticated."
	case http.StatusNotFound:
		return "Not found."
	case http.StatusServiceUnavailable:
		return unavailableMessage
	default:
		return "Something went wrong."
	}
}

// writeError logs err and answers with JSON or an HTML error page depending
// on the client. Unauthenticated HTML clients are redirected to /login.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	status := statusFor(err)

	fields := applog.NewFields().
		WithError(err).
		WithHTTPRequest(r.Method, r.URL.Path, "", "", "")
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentHTTP)
	if status >= 500 {
		logger.ErrorContext(ctx, "Request failed", fields.ToSlice()...)
	} else {
		logger.WarnContext(ctx, "Request rejected", fields.ToSlice()...)
	}

	if status == http.StatusUnauthorized {
		s.unauthenticated(w, r, false)
		return
	}

	if wantsJSON(r) {
		if ve, ok := core.AsValidation(err); ok {
			FieldErrorResponse(ve.Field, ve.Message()).Write(w)
			return
		}
		b := ErrorResponse(status, publicMessage(err))
		if status == http.StatusServiceUnavailable {
			b.Header("Retry-After", "5")
		}
		b.Write(w)
		return
	}

	s.render(w, r, status, "error.html", errorPage{
		Page: Page{
			Title:    http.StatusText(status),
			User:     userRef(r),
			Error:    publicMessage(err),
			Degraded: status == http.StatusServiceUnavailable,
		},
		Status: status,
	})
}

type errorPage struct {
	Page
	Status int
}

// formError returns the inline message for a validation failure, or ""
// when err is some other kind of failure the caller must escalate.
func formError(err error) string {
	if ve, ok := core.AsValidation(err); ok {
		return ve.Message()
	}
	return ""
}

func errFields(err error) []any {
	return applog.NewFields().WithError(err).ToSlice()
}
