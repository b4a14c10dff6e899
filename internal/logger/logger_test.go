package logger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	httpmiddleware "github.com/wolfeidau/webstarter/internal/http"
)

func TestSetup_level(t *testing.T) {
	require.Equal(t, zerolog.InfoLevel, Setup(false).GetLevel())
	require.Equal(t, zerolog.DebugLevel, Setup(true).GetLevel())
}

func TestHTTPRequests(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	var fromContext *zerolog.Logger
	handler := httpmiddleware.RequestIDMiddleware()(HTTPRequests(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromContext = zerolog.Ctx(r.Context())
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/public/js/app.js", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.1")

	handler.ServeHTTP(w, r)

	require.Equal(t, http.StatusTeapot, w.Code)
	require.NotNil(t, fromContext)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "GET", entry["method"])
	require.Equal(t, "/public/js/app.js", entry["path"])
	require.Equal(t, float64(http.StatusTeapot), entry["status"])
	require.Equal(t, float64(len("short and stout")), entry["bytes"])
	require.Equal(t, "203.0.113.1", entry["client_ip"])
	require.Equal(t, w.Header().Get(httpmiddleware.RequestIDHeader), entry["request_id"])
	require.NotEmpty(t, entry["request_id"])
}

func TestHTTPRequests_serverErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	handler := HTTPRequests(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "error", entry["level"])
}
