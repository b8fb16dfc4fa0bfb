package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	ok := func(c *gin.Context) { c.String(http.StatusOK, RequestID(c)) }
	r.GET("/api/v1/observations", ok)
	r.GET("/api/v1/health", ok)
	return r
}

func get(r http.Handler, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestIDMiddleware(t *testing.T) {
	r := newEngine(RequestIDMiddleware())

	w := get(r, "/api/v1/observations", nil)
	id := w.Header().Get(RequestIDHeader)
	if len(id) != 36 || w.Body.String() != id {
		t.Errorf("generated id = %q, body = %q", id, w.Body.String())
	}

	w = get(r, "/api/v1/observations", http.Header{RequestIDHeader: {"abc-123"}})
	if w.Header().Get(RequestIDHeader) != "abc-123" || w.Body.String() != "abc-123" {
		t.Errorf("caller id not reused: %q", w.Header().Get(RequestIDHeader))
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	r := newEngine(RateLimitMiddleware(rate.NewLimiter(0, 1)))

	if w := get(r, "/api/v1/observations", nil); w.Code != http.StatusOK {
		t.Fatalf("first request = %d", w.Code)
	}
	if w := get(r, "/api/v1/observations", nil); w.Code != http.StatusTooManyRequests {
		t.Errorf("second request = %d, want 429", w.Code)
	}
	if w := get(r, "/api/v1/health", nil); w.Code != http.StatusOK {
		t.Errorf("health should bypass the limiter, got %d", w.Code)
	}
}

func TestIPRateLimitMiddleware(t *testing.T) {
	r := newEngine(IPRateLimitMiddleware(NewIPRateLimiter(0, 1)))

	first := http.Header{"X-Forwarded-For": {"10.0.0.1"}}
	second := http.Header{"X-Forwarded-For": {"10.0.0.2"}}

	if w := get(r, "/api/v1/observations", first); w.Code != http.StatusOK {
		t.Fatalf("first client = %d", w.Code)
	}
	if w := get(r, "/api/v1/observations", first); w.Code != http.StatusTooManyRequests {
		t.Errorf("first client repeat = %d, want 429", w.Code)
	}
	if w := get(r, "/api/v1/observations", second); w.Code != http.StatusOK {
		t.Errorf("second client = %d, want its own bucket", w.Code)
	}
}

func TestRequestIDWithoutMiddleware(t *testing.T) {
	r := newEngine()
	if w := get(r, "/api/v1/observations", nil); w.Body.String() != "-" {
		t.Errorf("RequestID() = %q, want -", w.Body.String())
	}
}
