package reporting

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labstack/echo/v4"
)

func TestPredefinedMeasures(t *testing.T) {
	expectedIDs := []string{
		"patient-count",
		"progress-category-distribution",
		"average-score-by-stage",
		"snapshots-per-patient",
	}
	if len(PredefinedMeasures) != len(expectedIDs) {
		t.Fatalf("expected %d predefined measures, got %d", len(expectedIDs), len(PredefinedMeasures))
	}
	for i, id := range expectedIDs {
		if PredefinedMeasures[i].ID != id {
			t.Errorf("expected measure[%d].ID = %s, got %s", i, id, PredefinedMeasures[i].ID)
		}
	}
}

func TestPredefinedMeasures_Complete(t *testing.T) {
	for _, m := range PredefinedMeasures {
		if m.SQL == "" || m.Name == "" || m.Description == "" {
			t.Errorf("measure %s is incomplete", m.ID)
		}
		for _, p := range m.Parameters {
			if _, _, err := bindParameters([]Parameter{p}, func(string) string { return "" }); err != nil {
				t.Errorf("measure %s: default of %s does not bind: %v", m.ID, p.Name, err)
			}
		}
	}
}

func TestFindMeasure(t *testing.T) {
	m := FindMeasure("patient-count")
	if m == nil || m.Name != "Patient Count" {
		t.Fatalf("expected Patient Count, got %+v", m)
	}
	if FindMeasure("nonexistent") != nil {
		t.Error("expected nil for nonexistent measure")
	}
}

func TestBindParameters(t *testing.T) {
	params := []Parameter{sinceParam, {Name: "limit", Type: "int", Default: "50"}}
	query := map[string]string{"since": "2024-02-01"}

	args, used, err := bindParameters(params, func(k string) string { return query[k] })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(args))
	}
	if d, ok := args[0].(time.Time); !ok || !d.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected date arg %v", args[0])
	}
	if n, ok := args[1].(int); !ok || n != 50 {
		t.Errorf("expected default limit 50, got %v", args[1])
	}
	if used["since"] != "2024-02-01" || used["limit"] != "50" {
		t.Errorf("unexpected used parameters %v", used)
	}
}

func TestBindParameters_Invalid(t *testing.T) {
	tests := []struct {
		param Parameter
		value string
	}{
		{sinceParam, "01/02/2024"},
		{Parameter{Name: "limit", Type: "int"}, "ten"},
		{Parameter{Name: "limit", Type: "int"}, "0"},
		{Parameter{Name: "limit", Type: "int"}, "501"},
	}
	for _, tt := range tests {
		if _, _, err := bindParameters([]Parameter{tt.param}, func(string) string { return tt.value }); err == nil {
			t.Errorf("expected error for %s=%q", tt.param.Name, tt.value)
		}
	}
}

func TestRowMap(t *testing.T) {
	fields := []pgconn.FieldDescription{{Name: "category"}, {Name: "patients"}}
	row := rowMap(fields, []any{"moderate", int64(3)})
	if row["category"] != "moderate" || row["patients"] != int64(3) {
		t.Errorf("unexpected row %v", row)
	}
}

func TestHandler_ListMeasures(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/reports/measures", nil), rec)

	if err := NewHandler(nil).ListMeasures(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != len(PredefinedMeasures) {
		t.Errorf("expected %d measures, got %d", len(PredefinedMeasures), len(out))
	}
	if _, ok := out[0]["sql"]; ok {
		t.Error("measure SQL must not be exposed")
	}
}

func TestHandler_EvaluateMeasure_NotFound(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("unknown")

	err := NewHandler(nil).EvaluateMeasure(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_EvaluateMeasure_BadParameter(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?limit=abc", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("snapshots-per-patient")

	err := NewHandler(nil).EvaluateMeasure(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_RegisterRoutes(t *testing.T) {
	e := echo.New()
	NewHandler(nil).RegisterRoutes(e.Group("/api/v1"))

	want := map[string]bool{
		"GET:/api/v1/reports/measures":              false,
		"GET:/api/v1/reports/measures/:id/evaluate": false,
	}
	for _, r := range e.Routes() {
		key := r.Method + ":" + r.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for k, found := range want {
		if !found {
			t.Errorf("missing route %s", k)
		}
	}
}
