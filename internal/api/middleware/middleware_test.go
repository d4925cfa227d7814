package middleware

import (
	"Chatline/internal/pkg/ratelimit"
	"Chatline/internal/service"
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type stubAuth struct {
	token string
}

func (s stubAuth) Authenticate(_ context.Context, token string) (*service.AuthIdentity, error) {
	if token == "" {
		return nil, service.ErrUnauthenticated
	}
	if token != s.token {
		return nil, service.ErrTokenInvalid
	}
	return &service.AuthIdentity{UserID: 7, SessionID: 11}, nil
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthMiddleware(stubAuth{token: "good"}), func(c *gin.Context) {
		if Identity(c).UserID != c.GetUint64(UserIDKey) {
			t.Error("identity and user_id disagree")
		}
		c.String(http.StatusOK, strconv.FormatUint(c.GetUint64(SessionIDKey), 10))
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"ok", "Bearer good", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			if tt.status == http.StatusOK && w.Body.String() != "11" {
				t.Fatalf("session id = %q", w.Body.String())
			}
		})
	}
}

func TestExtractTokenQueryFallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/ws?token=abc", nil)

	if got := ExtractToken(c, false); got != "" {
		t.Fatalf("header-only extraction = %q", got)
	}
	if got := ExtractToken(c, true); got != "abc" {
		t.Fatalf("query extraction = %q", got)
	}
	c.Request.Header.Set("Authorization", "Bearer hdr")
	if got := ExtractToken(c, true); got != "hdr" {
		t.Fatalf("header should win, got %q", got)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimitMiddleware(ratelimit.NewStore(1, 2, time.Minute)))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for range 3 {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware([]string{"https://app.example"}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://app.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent || w.Header().Get("Access-Control-Allow-Origin") != "https://app.example" {
		t.Fatalf("preflight code=%d origin=%q", w.Code, w.Header().Get("Access-Control-Allow-Origin"))
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("unlisted origin must not be echoed")
	}
}

func TestTraceMiddlewareEchoesID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TraceMiddleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Trace-ID", "trace-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get("X-Trace-ID") != "trace-1" {
		t.Fatalf("trace header = %q", w.Header().Get("X-Trace-ID"))
	}
}
