package httpx

import (
	"context"
	"errors"
	"net/http"

	"github.com/factorykpi/factorykpi/internal/shared"
)

// RespondError maps domain errors to RFC7807 responses. Unknown errors are
// reported as 500 with detail as the only message.
func RespondError(w http.ResponseWriter, err error, detail string) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrForbidden), errors.Is(err, shared.ErrCSRFTokenMissing), errors.Is(err, shared.ErrCSRFTokenMismatch):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		Problem(w, http.StatusGatewayTimeout, "Gateway Timeout", detail)
	default:
		Problem(w, http.StatusInternalServerError, "Internal Server Error", detail)
	}
}
