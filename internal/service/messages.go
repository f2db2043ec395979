package service

import (
	"errors"
	"fmt"
	"net/http"

	apperrors "github.com/publicvoice/portal/internal/errors"
)

const (
	msgRequestFailed     = "Request failed"
	msgInvalidCredential = "Invalid email or password"
)

// ErrorMessage renders err for display:
//   - unreachable backend names the configured base URL
//   - backend detail text is shown verbatim
//   - a bare 401 means bad credentials
//   - client-side validation shows its own message
//   - anything else is "Request failed".
func ErrorMessage(err error, baseURL string) string {
	if err == nil {
		return ""
	}
	if apperrors.IsTransport(err) {
		return fmt.Sprintf("Cannot reach server. Is the backend running at %s?", baseURL)
	}
	if detail := apperrors.DetailOf(err); detail != "" {
		return detail
	}

	status := apperrors.StatusOf(err)
	if status == http.StatusUnauthorized {
		return msgInvalidCredential
	}

	var appErr *apperrors.AppError
	if status == 0 && apperrors.IsValidation(err) && errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return msgRequestFailed
}
