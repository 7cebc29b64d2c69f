package shared

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

func TestRespondErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ErrUnbalanced, http.StatusUnprocessableEntity},
		{ErrNotDraft, http.StatusConflict},
		{ErrSourceAlreadyLinked, http.StatusConflict},
		{ErrJournalNotFound, http.StatusNotFound},
		{Wrap(ErrForbidden, "system account"), http.StatusForbidden},
		{fmt.Errorf("%w: malformed json", httpx.ErrValidation), http.StatusBadRequest},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		assert.Equal(t, tc.want, rec.Code, tc.err.Error())
		assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	}
	assert.True(t, IsClientError(ErrUnbalanced))
	assert.True(t, IsClientError(httpx.ErrValidation))
	assert.False(t, IsClientError(errors.New("db down")))
}

func TestURLIDAndQueryDate(t *testing.T) {
	r := chi.NewRouter()
	var (
		gotID  int64
		gotErr error
	)
	r.Get("/items/{id}", func(w http.ResponseWriter, req *http.Request) {
		gotID, gotErr = URLID(req, "id")
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/42", nil))
	require.NoError(t, gotErr)
	assert.EqualValues(t, 42, gotID)

	for _, raw := range []string{"0", "-3", "x"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/"+raw, nil))
		assert.ErrorIs(t, gotErr, ErrValidation, raw)
	}

	def := Date(2025, 6, 30)
	req := httptest.NewRequest(http.MethodGet, "/?as_of=2025-01-31", nil)
	got, err := QueryDate(req, "as_of", def)
	require.NoError(t, err)
	assert.True(t, got.Equal(Date(2025, 1, 31)))

	got, err = QueryDate(httptest.NewRequest(http.MethodGet, "/", nil), "as_of", def)
	require.NoError(t, err)
	assert.True(t, got.Equal(def))

	_, err = QueryDate(httptest.NewRequest(http.MethodGet, "/?as_of=31-01-2025", nil), "as_of", def)
	assert.ErrorIs(t, err, ErrValidation)
}
