package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func signedRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CorrelationMiddleware(), HMACMiddleware(secret))
	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.POST("/api/v1/news/run", func(c *gin.Context) {
		body, _ := io.ReadAll(c.Request.Body)
		c.String(http.StatusOK, string(body))
	})
	return r
}

func TestHMACAcceptsValidSignature(t *testing.T) {
	r := signedRouter("topsecret")
	body := `{"force":true}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/news/run", strings.NewReader(body))
	req.Header.Set("X-Signature", Sign("topsecret", []byte(body)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("signed request rejected: %d %s", w.Code, w.Body.String())
	}
	// The middleware must leave the body readable for the handler.
	if w.Body.String() != body {
		t.Fatalf("handler saw body %q, want %q", w.Body.String(), body)
	}
}

func TestHMACRejectsMissingAndBadSignatures(t *testing.T) {
	r := signedRouter("topsecret")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/news/run", strings.NewReader("{}"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unsigned request should 401, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/news/run", strings.NewReader("{}"))
	req.Header.Set("X-Signature", Sign("wrong-secret", []byte("{}")))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong-key signature should 401, got %d", w.Code)
	}

	// Signature over a different body than the one sent.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/news/run", strings.NewReader(`{"a":1}`))
	req.Header.Set("X-Signature", Sign("topsecret", []byte(`{"a":2}`)))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("tampered body should 401, got %d", w.Code)
	}
}

func TestHMACLeavesHealthOpen(t *testing.T) {
	r := signedRouter("topsecret")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("health probe should bypass signing, got %d", w.Code)
	}
}

func TestHMACDisabledWithoutSecret(t *testing.T) {
	r := signedRouter("")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/news/run", strings.NewReader("{}"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("empty secret should disable the check, got %d", w.Code)
	}
}

func TestCorrelationIDEchoedOrMinted(t *testing.T) {
	r := signedRouter("")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Correlation-Id", "trace-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Correlation-Id"); got != "trace-42" {
		t.Fatalf("caller's correlation id not echoed, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Correlation-Id"); got == "" {
		t.Fatalf("a correlation id should be minted when absent")
	}
}
