package middleware

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		check    func(t *testing.T, got string)
	}{
		{"generated when absent", "", func(t *testing.T, got string) { assert.Len(t, got, 36) }},
		{"caller id kept", "desk-7-0001", func(t *testing.T, got string) { assert.Equal(t, "desk-7-0001", got) }},
		{"oversized id replaced", strings.Repeat("x", 200), func(t *testing.T, got string) { assert.Len(t, got, 36) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/departments", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			rec := httptest.NewRecorder()

			var seen string
			err := RequestID()(func(c echo.Context) error {
				seen, _ = c.Get(RequestIDKey).(string)
				return nil
			})(e.NewContext(req, rec))

			require.NoError(t, err)
			tt.check(t, seen)
			assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
		})
	}
}

func TestLogger_RecordsStatusAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/api/v1/visits", nil), httptest.NewRecorder())
	c.Set(RequestIDKey, "req-42")

	err := Logger(zerolog.New(&buf))(func(c echo.Context) error {
		return c.NoContent(http.StatusCreated)
	})(c)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"request_id":"req-42"`)
	assert.Contains(t, out, `"status":201`)
	assert.Contains(t, out, `"path":"/api/v1/visits"`)
	assert.Contains(t, out, `"level":"info"`)
}

func TestLogger_UsesHTTPErrorCodeAndCause(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil), httptest.NewRecorder())

	err := Logger(zerolog.New(&buf))(func(echo.Context) error {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "store temporarily unavailable").
			SetInternal(errors.New("dial tcp: connection refused"))
	})(c)
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, `"status":503`)
	assert.Contains(t, out, "connection refused")
	assert.Contains(t, out, `"level":"error"`)
}

func TestLogger_ClientErrorsWarn(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/patients/x", nil), httptest.NewRecorder())

	_ = Logger(zerolog.New(&buf))(func(echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	})(c)
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestRecovery_CatchesPanic(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/api/v1/visits", nil), httptest.NewRecorder())
	c.Set(RequestIDKey, "req-panic")

	err := Recovery(zerolog.New(&buf))(func(echo.Context) error {
		panic("nil visit")
	})(c)

	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusInternalServerError, he.Code)
	assert.Equal(t, map[string]string{"error": "internal server error", "request_id": "req-panic"}, he.Message)
	assert.Contains(t, buf.String(), "nil visit")
	assert.Contains(t, buf.String(), `"stack"`)
}

func TestRecovery_PassesThrough(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), httptest.NewRecorder())

	err := Recovery(zerolog.Nop())(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})(c)
	assert.NoError(t, err)
}

func TestRecovery_ReraisesAbort(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/patients/export", nil), httptest.NewRecorder())

	h := Recovery(zerolog.Nop())(func(echo.Context) error {
		panic(http.ErrAbortHandler)
	})
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() { _ = h(c) })
}
