// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Transport-level sentinels. Domain packages carry their own taxonomy and
// fall back to these for request decoding failures.
var (
	ErrNotFound   = errors.New("resource not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")
)

var errorStatus = []struct {
	err    error
	status int
	title  string
}{
	{ErrValidation, http.StatusBadRequest, "Validation Failed"},
	{ErrNotFound, http.StatusNotFound, "Not Found"},
	{ErrConflict, http.StatusConflict, "Conflict"},
}

// RespondError maps err to an RFC7807 response. Unknown errors become a 500
// without leaking the message.
func RespondError(w http.ResponseWriter, err error) {
	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			Problem(w, m.status, m.title, err.Error())
			return
		}
	}
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
