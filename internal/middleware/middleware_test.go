package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubeview/panelview/internal/config"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusTeapot)
	w.Write([]byte("ok"))
})

func TestRequestIDGeneratedAndPropagated(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.True(t, strings.HasPrefix(seen, "pv-"))
	assert.Len(t, seen, len("pv-")+36)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(RequestIDHeader, "abc")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc", seen)
	assert.Equal(t, "abc", rec.Header().Get(RequestIDHeader))
	assert.Empty(t, GetRequestID(context.Background()))
}

func TestRequestIDReplacesUnsafeHeader(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	for _, bad := range []string{"two words", "line\nbreak", strings.Repeat("a", 65)} {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set(RequestIDHeader, bad)
		h.ServeHTTP(httptest.NewRecorder(), req)
		assert.True(t, strings.HasPrefix(seen, "pv-"), "header %q", bad)
	}
}

func TestStructuredLoggingJSON(t *testing.T) {
	var buf bytes.Buffer
	h := RequestID(StructuredLoggingTo(NewLogger("json", &buf))(okHandler))

	req := httptest.NewRequest("GET", "/panel/node-cpu", nil)
	req.Header.Set("X-Request-Id", "req-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "http request", entry["msg"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/panel/node-cpu", entry["path"])
	assert.Equal(t, float64(http.StatusTeapot), entry["status"])
	assert.Equal(t, float64(2), entry["bytes"])
	assert.Equal(t, "req-1", entry["request_id"])
}

func TestStructuredLoggingText(t *testing.T) {
	var buf bytes.Buffer
	h := StructuredLoggingTo(NewLogger("text", &buf))(okHandler)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", nil))

	assert.Contains(t, buf.String(), "INFO")
	assert.Contains(t, buf.String(), "http request")
	assert.Contains(t, buf.String(), `"path": "/health"`)
	assert.Contains(t, buf.String(), `"status": 418`)
}

func TestAuthDisabledWithoutPassword(t *testing.T) {
	h := Auth(config.DashboardConfig{})(okHandler)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/panel/x", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestAuthProtectsPanelRoutes(t *testing.T) {
	h := Auth(config.DashboardConfig{Password: "s3cret"})(okHandler)

	tests := []struct {
		name   string
		req    func() *http.Request
		status int
	}{
		{"health open", func() *http.Request { return httptest.NewRequest("GET", "/health", nil) }, http.StatusTeapot},
		{"page login form", func() *http.Request { return httptest.NewRequest("GET", "/panel/x", nil) }, http.StatusUnauthorized},
		{"frame json", func() *http.Request { return httptest.NewRequest("GET", "/panel/x/frame", nil) }, http.StatusUnauthorized},
		{"presets", func() *http.Request { return httptest.NewRequest("GET", "/presets", nil) }, http.StatusUnauthorized},
		{"query token", func() *http.Request { return httptest.NewRequest("GET", "/panel/x?token=s3cret", nil) }, http.StatusTeapot},
		{"header token", func() *http.Request {
			r := httptest.NewRequest("GET", "/presets", nil)
			r.Header.Set("X-Dashboard-Token", "s3cret")
			return r
		}, http.StatusTeapot},
		{"cookie", func() *http.Request {
			r := httptest.NewRequest("GET", "/panel/x/frame", nil)
			r.AddCookie(&http.Cookie{Name: tokenCookie, Value: "s3cret"})
			return r
		}, http.StatusTeapot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, tt.req())
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestAuthLoginSetsCookie(t *testing.T) {
	h := Auth(config.DashboardConfig{Password: "s3cret"})(okHandler)

	form := url.Values{"password": {"s3cret"}}
	req := httptest.NewRequest("POST", "/panel/node-cpu", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/panel/node-cpu", rec.Header().Get("Location"))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, tokenCookie, cookies[0].Name)
}

func TestAuthPostNeverReachesPage(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

	post := func(h http.Handler, password string) *httptest.ResponseRecorder {
		form := url.Values{"password": {password}}
		req := httptest.NewRequest("POST", "/panel/node-cpu", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := post(Auth(config.DashboardConfig{})(next), "")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/panel/node-cpu", rec.Header().Get("Location"))
	assert.Empty(t, rec.Result().Cookies())

	rec = post(Auth(config.DashboardConfig{Password: "s3cret"})(next), "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Panel Login")

	assert.False(t, called)
}

func TestRateLimiterBucket(t *testing.T) {
	rl := newRateLimiter(60, 2)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("a"))
	assert.True(t, rl.allow("a"))
	assert.False(t, rl.allow("a"))
	assert.True(t, rl.allow("b"))

	now = now.Add(time.Second)
	assert.True(t, rl.allow("a"))
	assert.False(t, rl.allow("a"))

	now = now.Add(10 * time.Minute)
	rl.cleanup()
	rl.mu.Lock()
	assert.Empty(t, rl.buckets)
	rl.mu.Unlock()
}

func TestRateLimitOnlyPanelRoutes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := RateLimit(ctx, config.RateLimitConfig{Enabled: true, RequestsPerMin: 1, BurstSize: 1})(okHandler)

	do := func(path string) int {
		req := httptest.NewRequest("GET", path, nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusTeapot, do("/panel/a"))
	assert.Equal(t, http.StatusTooManyRequests, do("/panel/a"))
	assert.Equal(t, http.StatusTeapot, do("/health"))
}
