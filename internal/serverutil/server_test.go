package serverutil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clerrs "github.com/jdholdren/clearly/internal/errors"
)

func TestBearerAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name    string
		secret  string
		header  string
		status  int
		message string
	}{
		{name: "no secret configured", secret: "", header: "Bearer anything", status: http.StatusInternalServerError, message: "Server misconfiguration"},
		{name: "missing header", secret: "s3cret", status: http.StatusUnauthorized, message: "Unauthorized"},
		{name: "wrong scheme", secret: "s3cret", header: "Basic s3cret", status: http.StatusUnauthorized, message: "Unauthorized"},
		{name: "wrong token", secret: "s3cret", header: "Bearer nope", status: http.StatusUnauthorized, message: "Unauthorized"},
		{name: "good token", secret: "s3cret", header: "Bearer s3cret", status: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				req = httptest.NewRequest(http.MethodPost, "/api/jobs/digests", nil)
				rec = httptest.NewRecorder()
			)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			BearerAuth(tt.secret)(ok).ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.message != "" {
				var body map[string]any
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				assert.Equal(t, tt.message, body["message"])
			}
		})
	}
}

func TestHandlerFuncE(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{name: "structured", err: clerrs.E("nope", http.StatusTeapot), status: http.StatusTeapot, body: `{"message":"nope","status":418}`},
		{name: "wrapped structured", err: errors.Join(clerrs.E("gone", http.StatusGone)), status: http.StatusGone, body: `{"message":"gone","status":410}`},
		{name: "plain", err: errors.New("db exploded"), status: http.StatusInternalServerError, body: `{"message":"internal server error","status":500}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HandlerFuncE(func(http.ResponseWriter, *http.Request) error {
				return tt.err
			}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.status, rec.Code)
			assert.JSONEq(t, tt.body, rec.Body.String())
		})
	}
}

type createReq struct {
	Name string `json:"name"`
}

func (c createReq) Validate() error {
	if c.Name == "" {
		return clerrs.E("missing name", http.StatusBadRequest)
	}
	return nil
}

func TestDecodeValid(t *testing.T) {
	v, err := DecodeValid[createReq](strings.NewReader(`{"name":"Birthday"}`))
	require.NoError(t, err)
	assert.Equal(t, "Birthday", v.Name)

	var sErr *clerrs.Error
	_, err = DecodeValid[createReq](strings.NewReader(`{`))
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, http.StatusBadRequest, sErr.Status)

	_, err = DecodeValid[createReq](strings.NewReader(`{}`))
	require.ErrorAs(t, err, &sErr)
	assert.EqualError(t, sErr.Err, "missing name")
}
