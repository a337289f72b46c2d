package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// logLine decodes the single JSON event written to buf.
func logLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var line map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("expected one JSON log line, got %q: %v", buf.String(), err)
	}
	return line
}

func analysisContext(patientID string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients/"+patientID+"/analysis", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/v1/patients/:patient_id/analysis")
	c.SetParamNames("patient_id")
	c.SetParamValues(patientID)
	return c, rec
}

func TestRequestID_GeneratesNew(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/snapshots", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen string
	err := RequestID()(func(c echo.Context) error {
		seen, _ = c.Get("request_id").(string)
		return nil
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen == "" {
		t.Fatal("expected request_id to be generated")
	}
	if got := rec.Header().Get(RequestIDHeader); got != seen {
		t.Errorf("expected response header %q, got %q", seen, got)
	}
}

func TestRequestID_PreservesCallerID(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/snapshots", nil)
	req.Header.Set(RequestIDHeader, "clinic-trace-7")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	_ = RequestID()(func(c echo.Context) error { return nil })(c)

	if got := c.Get("request_id"); got != "clinic-trace-7" {
		t.Errorf("expected caller id to be kept, got %v", got)
	}
	if got := rec.Header().Get(RequestIDHeader); got != "clinic-trace-7" {
		t.Errorf("expected caller id in response header, got %q", got)
	}
}

func TestRequestID_ReplacesOverlongID(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/snapshots", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 200))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	_ = RequestID()(func(c echo.Context) error { return nil })(c)

	if got := rec.Header().Get(RequestIDHeader); len(got) > 128 || got == "" {
		t.Errorf("expected a generated id, got %q", got)
	}
}

func TestLogger_RecordsRouteAndStatus(t *testing.T) {
	var buf bytes.Buffer
	c, _ := analysisContext("p-42")
	c.Set("request_id", "req-1")
	c.Set("tenant_id", "northside")

	err := Logger(zerolog.New(&buf))(func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "moderate"})
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	line := logLine(t, &buf)
	if line["level"] != "info" {
		t.Errorf("expected info level, got %v", line["level"])
	}
	if line["route"] != "/api/v1/patients/:patient_id/analysis" {
		t.Errorf("unexpected route %v", line["route"])
	}
	if line["path"] != "/api/v1/patients/p-42/analysis" {
		t.Errorf("unexpected path %v", line["path"])
	}
	if line["status"] != float64(http.StatusOK) {
		t.Errorf("expected status 200, got %v", line["status"])
	}
	if line["request_id"] != "req-1" || line["tenant_id"] != "northside" {
		t.Errorf("expected request and tenant ids, got %v / %v", line["request_id"], line["tenant_id"])
	}
}

func TestLogger_ErrorStatusFromHTTPError(t *testing.T) {
	var buf bytes.Buffer
	c, _ := analysisContext("p-42")

	want := echo.NewHTTPError(http.StatusServiceUnavailable, "store unavailable")
	err := Logger(zerolog.New(&buf))(func(echo.Context) error { return want })(c)
	if !errors.Is(err, want) {
		t.Fatalf("expected handler error to pass through, got %v", err)
	}

	line := logLine(t, &buf)
	if line["level"] != "error" {
		t.Errorf("expected error level for 503, got %v", line["level"])
	}
	if line["status"] != float64(http.StatusServiceUnavailable) {
		t.Errorf("expected status 503, got %v", line["status"])
	}
}

func TestLogger_ClientErrorIsWarning(t *testing.T) {
	var buf bytes.Buffer
	c, _ := analysisContext("p-42")

	_ = Logger(zerolog.New(&buf))(func(echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "snapshot not found")
	})(c)

	if line := logLine(t, &buf); line["level"] != "warn" {
		t.Errorf("expected warn level for 404, got %v", line["level"])
	}
}

func TestRecovery_WritesUniformErrorBody(t *testing.T) {
	var buf bytes.Buffer
	c, rec := analysisContext("p-42")
	c.Set("request_id", "req-9")

	err := Recovery(zerolog.New(&buf))(func(echo.Context) error {
		panic("nil biomarker map")
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rec.Code)
	}
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if body.Error.Code != "internal_error" {
		t.Errorf("expected internal_error code, got %q", body.Error.Code)
	}
	if strings.Contains(rec.Body.String(), "nil biomarker map") {
		t.Error("panic value must not reach the client")
	}

	line := logLine(t, &buf)
	if line["panic"] != "nil biomarker map" || line["request_id"] != "req-9" {
		t.Errorf("unexpected recovery log %v", line)
	}
	if _, ok := line["stack"]; !ok {
		t.Error("expected stack in recovery log")
	}
}

func TestRecovery_CommittedResponseIsLeftAlone(t *testing.T) {
	c, rec := analysisContext("p-42")

	err := Recovery(zerolog.Nop())(func(c echo.Context) error {
		_ = c.String(http.StatusOK, "partial")
		panic("after write")
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK || rec.Body.String() != "partial" {
		t.Errorf("expected the written response to stay untouched, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestRecovery_PassesThrough(t *testing.T) {
	c, rec := analysisContext("p-42")

	err := Recovery(zerolog.Nop())(func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestAudit_LogsPatientFromRoute(t *testing.T) {
	var buf bytes.Buffer
	c, _ := analysisContext("p-42")
	c.Set("tenant_id", "northside")
	c.Set("request_id", "req-3")

	if err := Audit(zerolog.New(&buf))(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	line := logLine(t, &buf)
	want := map[string]interface{}{
		"audit":      "access",
		"patient_id": "p-42",
		"resource":   "patients",
		"action":     "read",
		"tenant_id":  "northside",
		"request_id": "req-3",
		"status":     float64(http.StatusOK),
	}
	for k, v := range want {
		if line[k] != v {
			t.Errorf("%s: expected %v, got %v", k, v, line[k])
		}
	}
}
