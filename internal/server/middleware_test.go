package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDMiddleware(t *testing.T) {
	srv := New(Config{}, nil).(*serverImpl)

	var seen string
	h := srv.requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "client-chosen")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "client-chosen", seen)
	assert.Equal(t, "client-chosen", rec.Header().Get("X-Request-ID"))
}

func TestRecoveryMiddleware(t *testing.T) {
	srv := New(Config{}, nil).(*serverImpl)
	h := srv.recoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/v1/operations", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body struct {
		Errors []apiError `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Errors, 1)
	assert.Equal(t, "internal", body.Errors[0].Code)
}

func TestRecoveryMiddleware_AbortHandler(t *testing.T) {
	srv := New(Config{}, nil).(*serverImpl)
	h := srv.recoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	})
}

func TestLoggingMiddleware_CapturesStatus(t *testing.T) {
	srv := New(Config{}, nil).(*serverImpl)

	var inner http.ResponseWriter
	h := srv.loggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner = w
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	rw, ok := inner.(*responseWriter)
	require.True(t, ok)
	assert.Equal(t, http.StatusTeapot, rw.statusCode)
	assert.Same(t, http.ResponseWriter(rec), rw.Unwrap())
}

func TestResponseWriter_FlushAndHijack(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	rw.Flush()
	assert.True(t, rec.Flushed)

	_, _, err := rw.Hijack()
	assert.ErrorIs(t, err, http.ErrNotSupported)
}

func TestCORSMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		allowed     []string
		origin      string
		method      string
		wantOrigin  string
		wantStatus  int
		wantReached bool
	}{
		{"allowed origin", []string{"https://app.example"}, "https://app.example", "GET", "https://app.example", http.StatusOK, true},
		{"foreign origin", []string{"https://app.example"}, "https://evil.example", "GET", "", http.StatusOK, true},
		{"wildcard", []string{"*"}, "https://any.example", "GET", "https://any.example", http.StatusOK, true},
		{"empty list allows all", nil, "https://any.example", "GET", "https://any.example", http.StatusOK, true},
		{"preflight", []string{"https://app.example"}, "https://app.example", "OPTIONS", "https://app.example", http.StatusNoContent, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.CORS.Enabled = true
			cfg.CORS.AllowedOrigins = tt.allowed
			srv := New(cfg, nil).(*serverImpl)

			reached := false
			h := srv.corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				reached = true
			}))

			req := httptest.NewRequest(tt.method, "/v1/operations", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantReached, reached)
			if tt.wantOrigin != "" {
				assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
				assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))
			}
		})
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.Requests = 2
	cfg.RateLimit.Window = time.Minute
	srv := New(cfg, nil).(*serverImpl)
	t.Cleanup(srv.limiter.Stop)

	h := srv.Handler()
	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/healthz", nil)
		req.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.NotEqual(t, http.StatusTooManyRequests, send("192.0.2.1").Code)
	assert.NotEqual(t, http.StatusTooManyRequests, send("192.0.2.1").Code)

	rec := send("192.0.2.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	assert.NotEqual(t, http.StatusTooManyRequests, send("192.0.2.2").Code)
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { order = append(order, "handler") }),
		mw("outer"), mw("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}
