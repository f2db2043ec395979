package errors

import (
	"context"
	"errors"
	"net/http"
)

// MapStatus maps a non-2xx backend response to an AppError.
// detail is the human-readable message extracted from the response body and may be empty:
//   - 401 → Unauthorized
//   - 403 → Forbidden
//   - 404 → NotFound
//   - 400, 409, 422 → Validation
//   - anything else → Internal
func MapStatus(status int, detail string) *AppError {
	code := codeForStatus(status)
	msg := detail
	if msg == "" {
		msg = http.StatusText(status)
	}
	if msg == "" {
		msg = "request failed"
	}
	return &AppError{
		Code:    code,
		Message: msg,
		Status:  status,
		Detail:  detail,
	}
}

func codeForStatus(status int) ErrorCode {
	switch status {
	case http.StatusUnauthorized:
		return ErrCodeUnauthorized
	case http.StatusForbidden:
		return ErrCodeForbidden
	case http.StatusNotFound:
		return ErrCodeNotFound
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return ErrCodeValidation
	default:
		return ErrCodeInternal
	}
}

// MapTransportError classifies an error returned by an HTTP round trip.
// Context cancellation is reported as Canceled so callers can drop it silently;
// every other failure means the backend could not be reached.
func MapTransportError(err error) *AppError {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return Wrap(err, ErrCodeCanceled, "request canceled")
	}
	return Transport(err)
}

// StatusOf returns the backend HTTP status carried by err, or zero.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return 0
}

// DetailOf returns the backend-supplied detail text carried by err, or "".
func DetailOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Detail
	}
	return ""
}
