package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: bad body", ErrValidation), http.StatusBadRequest},
		{ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("wrap: %w", ErrConflict), http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

		var body ProblemDetail
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, tc.status, body.Status)
		if tc.status == http.StatusInternalServerError {
			assert.Empty(t, body.Detail)
		}
	}
}

type sample struct {
	Name  string `json:"name" validate:"required"`
	Count int    `json:"count" validate:"gte=0"`
}

func request(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
}

func TestDecodeAndValidate(t *testing.T) {
	var ok sample
	require.NoError(t, DecodeAndValidate(request(`{"name":"rent","count":2}`), &ok))
	assert.Equal(t, "rent", ok.Name)

	for _, body := range []string{
		`{"name":"rent","extra":true}`,
		`{"name":"rent"}{"name":"again"}`,
		`{"count":1}`,
		`{"name":"rent","count":-1}`,
		`not json`,
	} {
		var s sample
		err := DecodeAndValidate(request(body), &s)
		assert.ErrorIs(t, err, ErrValidation, body)
	}
}

func TestDecodeJSONRejectsOversizedBody(t *testing.T) {
	body := `{"name":"` + strings.Repeat("x", MaxBodyBytes) + `"}`
	var s sample
	assert.Error(t, DecodeJSON(request(body), &s))
}
