package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/leakwatch/api/middleware"
	"github.com/OldStager01/leakwatch/pkg/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"trace_id": middleware.GetTraceID(c)})
	})
	r.POST("/echo", func(c *gin.Context) {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, body)
	})
	return r
}

func TestTraceID(t *testing.T) {
	r := newRouter(middleware.TraceID())

	t.Run("propagates caller id", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(middleware.TraceIDHeader, "abc-123")
		r.ServeHTTP(w, req)

		assert.Equal(t, "abc-123", w.Header().Get(middleware.TraceIDHeader))
		assert.Contains(t, w.Body.String(), "abc-123")
	})

	t.Run("mints id", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Len(t, w.Header().Get(middleware.TraceIDHeader), 36)
	})
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		cfg         middleware.CORSConfig
		origin      string
		method      string
		wantOrigin  string
		wantStatus  int
		wantCredHdr string
	}{
		{
			name:       "wildcard",
			cfg:        middleware.DefaultCORSConfig(),
			origin:     "http://panel.local",
			method:     http.MethodGet,
			wantOrigin: "*",
			wantStatus: http.StatusOK,
		},
		{
			name:       "preflight",
			cfg:        middleware.DefaultCORSConfig(),
			origin:     "http://panel.local",
			method:     http.MethodOptions,
			wantOrigin: "*",
			wantStatus: http.StatusNoContent,
		},
		{
			name: "credentials echo origin",
			cfg: middleware.CORSFromConfig(config.CORSConfig{
				AllowedOrigins:   []string{"*"},
				AllowCredentials: true,
			}),
			origin:      "http://panel.local",
			method:      http.MethodGet,
			wantOrigin:  "http://panel.local",
			wantStatus:  http.StatusOK,
			wantCredHdr: "true",
		},
		{
			name: "origin not listed",
			cfg: middleware.CORSFromConfig(config.CORSConfig{
				AllowedOrigins: []string{"http://panel.local"},
			}),
			origin:     "http://evil.local",
			method:     http.MethodGet,
			wantOrigin: "",
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(middleware.CORS(tt.cfg))
			r.OPTIONS("/ping", func(c *gin.Context) {})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, "/ping", nil)
			req.Header.Set("Origin", tt.origin)
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCredHdr, w.Header().Get("Access-Control-Allow-Credentials"))
			assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")
		})
	}
}

func TestRateLimit(t *testing.T) {
	rl := middleware.NewRateLimiter(60, 2)
	r := newRouter(middleware.RateLimit(rl))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// Other clients have their own bucket.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "10.0.0.2:5000"
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, rl.Len())
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := middleware.NewRateLimiter(0, 0)
	for i := 0; i < 100; i++ {
		require.True(t, rl.Allow("10.0.0.1"))
	}
	assert.Equal(t, 0, rl.Cleanup())
}

func TestRequestSizeLimit(t *testing.T) {
	r := newRouter(middleware.RequestSizeLimit(16))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"a":1}`))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"flujo":1.2345678901234}`))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestSecurityHeaders(t *testing.T) {
	r := newRouter(middleware.SecurityHeaders())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	r := newRouter(middleware.TraceID(), middleware.RequestLogger("/ping"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
