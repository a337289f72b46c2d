package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestSecurityHeaders_SetsAllHeaders(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/snapshots/abc", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := SecurityHeaders()(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []struct {
		header string
		value  string
	}{
		{"X-Content-Type-Options", "nosniff"},
		{"X-Frame-Options", "DENY"},
		{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
		{"Strict-Transport-Security", "max-age=31536000; includeSubDomains"},
		{"Referrer-Policy", "no-referrer"},
		{"Cache-Control", "no-store"},
	}
	for _, h := range expected {
		if got := rec.Header().Get(h.header); got != h.value {
			t.Errorf("%s: expected %q, got %q", h.header, h.value, got)
		}
	}
}

func TestSecurityHeaders_PropagatesHandlerError(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	want := errors.New("boom")
	err := SecurityHeaders()(func(echo.Context) error { return want })(c)
	if !errors.Is(err, want) {
		t.Errorf("expected handler error, got %v", err)
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("expected headers to be set even when the handler fails")
	}
}
