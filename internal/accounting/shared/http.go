package shared

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// RespondError writes err as a problem document, mapping the ledger error
// kinds first and falling back to the platform sentinels.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	case errors.Is(err, ErrInvalidState):
		httpx.Problem(w, http.StatusConflict, "Invalid State", err.Error())
	case errors.Is(err, ErrConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}

// IsClientError reports whether err maps to a 4xx response.
func IsClientError(err error) bool {
	return Kind(err) != nil ||
		errors.Is(err, httpx.ErrValidation) ||
		errors.Is(err, httpx.ErrNotFound) ||
		errors.Is(err, httpx.ErrConflict)
}

// URLID parses a positive integer path parameter.
func URLID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, Validationf("invalid %s", name)
	}
	return id, nil
}

// QueryDate reads a YYYY-MM-DD query parameter, returning def when absent.
func QueryDate(r *http.Request, name string, def time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return DateOnly(def), nil
	}
	return ParseDate(raw)
}

// OptionalDate parses raw when present.
func OptionalDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := ParseDate(raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
