package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestParseLimit(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"1M", 1 << 20},
		{"2MB", 2 << 20},
		{"512K", 512 << 10},
		{"1G", 1 << 30},
		{"2048", 2048},
		{"", 1 << 20},
		{"abc", 1 << 20},
		{"-5K", 1 << 20},
	}
	for _, tt := range tests {
		if got := parseLimit(tt.in); got != tt.want {
			t.Errorf("parseLimit(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func runBodyLimit(t *testing.T, method, path, body string, handler echo.HandlerFunc) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	err := BodyLimit("16", "64")(handler)(c)
	return rec, err
}

func TestBodyLimit_AllowsSmallBody(t *testing.T) {
	handler := func(c echo.Context) error {
		b, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return err
		}
		return c.String(http.StatusOK, string(b))
	}
	rec, err := runBodyLimit(t, http.MethodPost, "/api/v1/snapshots", `{"a":1}`, handler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Body.String() != `{"a":1}` {
		t.Errorf("expected body echoed back, got %q", rec.Body.String())
	}
}

func TestBodyLimit_RejectsOversizedBody_ContentLength(t *testing.T) {
	called := false
	handler := func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	}
	rec, err := runBodyLimit(t, http.MethodPost, "/api/v1/snapshots", strings.Repeat("x", 32), handler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Error("handler must not run for an oversized body")
	}
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "payload_too_large") {
		t.Errorf("expected error code in body, got %s", rec.Body.String())
	}
}

func TestBodyLimit_UsesLargerLimitForAnalysis(t *testing.T) {
	rec, err := runBodyLimit(t, http.MethodPost, "/api/v1/analysis", strings.Repeat("x", 32), okHandler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 under the analysis limit, got %d", rec.Code)
	}
}

func TestBodyLimit_RejectsAnalysisOverLimit(t *testing.T) {
	rec, err := runBodyLimit(t, http.MethodPost, "/api/v1/analysis", strings.Repeat("x", 100), okHandler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", rec.Code)
	}
}

func TestBodyLimit_SkipsNilBody(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/snapshots/abc", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := BodyLimit("1", "1")(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestBodyLimit_EnforcesLimitDuringRead(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/snapshots", strings.NewReader(strings.Repeat("x", 32)))
	req.ContentLength = -1
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var readErr error
	handler := func(c echo.Context) error {
		_, readErr = io.ReadAll(c.Request().Body)
		return nil
	}
	if err := BodyLimit("16", "64")(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	he, ok := readErr.(*echo.HTTPError)
	if !ok || he.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413 read error, got %v", readErr)
	}
}
