package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.POST("/echo", func(c *gin.Context) {
		body := make([]byte, 64)
		n, _ := c.Request.Body.Read(body)
		c.String(http.StatusOK, string(body[:n]))
	})
	return r
}

func TestRequestIDMintsWhenAbsent(t *testing.T) {
	r := newRouter(RequestID())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	if id := w.Header().Get(HeaderRequestID); id == "" {
		t.Error("no request id on response")
	}
}

func TestRequestIDEchoesCallerValue(t *testing.T) {
	r := newRouter(RequestID())
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderRequestID, "caller-id")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get(HeaderRequestID); got != "caller-id" {
		t.Errorf("request id = %q, want caller-id", got)
	}
}

func TestRecoveryConvertsPanicTo500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery())
	r.GET("/boom", func(*gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	cfg := &CORSConfig{AllowedOrigins: []string{"https://app.example.com"}, AllowedMethods: []string{"GET"}}
	r := newRouter(CORS(cfg))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("allow-origin = %q", got)
	}
}

func TestCORSIgnoresUnknownOrigin(t *testing.T) {
	cfg := &CORSConfig{AllowedOrigins: []string{"https://app.example.com"}}
	r := newRouter(CORS(cfg))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("allow-origin = %q, want empty", got)
	}
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	cfg := &CORSConfig{AllowedOrigins: []string{"*"}}
	r := newRouter(CORS(cfg))

	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "https://anywhere.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
}

func TestBodySizeLimitRejectsOversizedBody(t *testing.T) {
	r := newRouter(BodySizeLimit("10B"))

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(strings.Repeat("x", 64)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	// MaxBytesReader trips inside the handler's read.
	if w.Body.String() == strings.Repeat("x", 64) {
		t.Error("oversized body was read in full")
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"10MB", 10 << 20},
		{"512KB", 512 << 10},
		{"1GB", 1 << 30},
		{"100B", 100},
		{"42", 42},
		{"", defaultMaxBodySize},
		{"garbage", defaultMaxBodySize},
		{"-5MB", defaultMaxBodySize},
	}
	for _, tt := range tests {
		if got := parseSize(tt.in, defaultMaxBodySize); got != tt.want {
			t.Errorf("parseSize(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
