// internal/middleware/middleware_test.go

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestOriginAllowed(t *testing.T) {
	patterns := []string{"localhost:5173", "*.example.com"}

	assert.True(t, OriginAllowed("http://localhost:5173", patterns))
	assert.True(t, OriginAllowed("https://play.EXAMPLE.com", patterns))
	assert.False(t, OriginAllowed("http://localhost:3000", patterns))
	assert.False(t, OriginAllowed("http://evil.com", patterns))
	assert.False(t, OriginAllowed("not a url", patterns))
}

func TestCORSAllowedOrigin(t *testing.T) {
	h := CORS([]string{"localhost:5173"})(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/rooms", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSRejectedOrigin(t *testing.T) {
	h := CORS([]string{"localhost:5173"})(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/rooms", nil)
	req.Header.Set("Origin", "http://evil.com")
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	h := CORS([]string{"localhost:5173"})(okHandler)

	req := httptest.NewRequest(http.MethodOptions, "/rooms", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Less(t, w.Code, 300)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "GET")
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodOptions, "/rooms", nil)
	req.Header.Set("Origin", "http://evil.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Methods"))
}

func TestCORSPreflightDisallowedMethod(t *testing.T) {
	h := CORS([]string{"localhost:5173"})(okHandler)

	req := httptest.NewRequest(http.MethodOptions, "/rooms", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "DELETE")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestLogMiddleware(t *testing.T) {
	logger, hook := test.NewNullLogger()
	h := LogMiddleware(logger)(okHandler)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "/healthz", entry.Data["path"])
	assert.Equal(t, http.MethodGet, entry.Data["method"])
}

func TestLogMiddlewareRecordsStatus(t *testing.T) {
	logger, hook := test.NewNullLogger()
	h := LogMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "room not found", http.StatusNotFound)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/rooms/ZZZZZZ", nil))
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, http.StatusNotFound, entry.Data["status"])
	assert.Equal(t, logrus.InfoLevel, entry.Level)

	h = LogMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))
	entry = hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, http.StatusInternalServerError, entry.Data["status"])
	assert.Equal(t, logrus.WarnLevel, entry.Level)
}

func TestLogMiddlewareImplicitOK(t *testing.T) {
	logger, hook := test.NewNullLogger()
	h := LogMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, http.StatusOK, entry.Data["status"])
}

func TestLogWebSocketDisconnect(t *testing.T) {
	logger, hook := test.NewNullLogger()
	LogWebSocketDisconnect(logger, "c1", "1.2.3.4:5", []string{"ABC123"}, nil)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "c1", entry.Data["conn"])
	assert.Equal(t, []string{"ABC123"}, entry.Data["rooms"])
	assert.NotContains(t, entry.Data, "error")
}
