// Package reporting evaluates predefined cohort measures over the snapshots
// and analysis reports of the requesting clinic.
package reporting

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/optm/optm/internal/platform/auth"
	"github.com/optm/optm/internal/platform/db"
)

// Parameter is a query-string argument of a measure, bound positionally
// ($1, $2, ...) in the order declared.
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // date, int
	Default     string `json:"default"`
	Description string `json:"description"`
}

type MeasureDefinition struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	SQL         string      `json:"-"`
	Parameters  []Parameter `json:"parameters"`
}

type MeasureReport struct {
	MeasureID   string                   `json:"measure_id"`
	MeasureName string                   `json:"measure_name"`
	TenantID    string                   `json:"tenant_id,omitempty"`
	GeneratedAt time.Time                `json:"generated_at"`
	Parameters  map[string]string        `json:"parameters"`
	Results     []map[string]interface{} `json:"results"`
}

var sinceParam = Parameter{
	Name:        "since",
	Type:        "date",
	Default:     "1970-01-01",
	Description: "only count analyses created on or after this date (YYYY-MM-DD)",
}

var PredefinedMeasures = []MeasureDefinition{
	{
		ID:          "patient-count",
		Name:        "Patient Count",
		Description: "Distinct patients with at least one snapshot, and the total number of snapshots",
		SQL:         `SELECT COUNT(DISTINCT patient_id) AS patients, COUNT(*) AS snapshots FROM patient_snapshot`,
		Parameters:  []Parameter{},
	},
	{
		ID:          "progress-category-distribution",
		Name:        "Progress Category Distribution",
		Description: "Patients per improvement category, using each patient's most recent analysis",
		SQL: `SELECT category, COUNT(*) AS patients, ROUND(AVG(score)::numeric, 2) AS average_score
FROM (
    SELECT DISTINCT ON (patient_id) patient_id, category, score
    FROM analysis_report
    WHERE created_at >= $1
    ORDER BY patient_id, created_at DESC
) latest
GROUP BY category
ORDER BY patients DESC, category`,
		Parameters: []Parameter{sinceParam},
	},
	{
		ID:          "average-score-by-stage",
		Name:        "Average Score by Treatment Stage",
		Description: "Mean composite score of analyses grouped by the treatment stage of the current snapshot",
		SQL: `SELECT s.treatment_stage, COUNT(*) AS analyses, ROUND(AVG(r.score)::numeric, 2) AS average_score
FROM analysis_report r
JOIN patient_snapshot s ON s.id = r.current_snapshot_id
WHERE r.created_at >= $1
GROUP BY s.treatment_stage
ORDER BY s.treatment_stage`,
		Parameters: []Parameter{sinceParam},
	},
	{
		ID:          "snapshots-per-patient",
		Name:        "Snapshots per Patient",
		Description: "Patients with the most recorded snapshots",
		SQL: `SELECT patient_id, COUNT(*) AS snapshots, MAX(last_updated) AS last_updated
FROM patient_snapshot
GROUP BY patient_id
ORDER BY snapshots DESC, patient_id
LIMIT $1`,
		Parameters: []Parameter{{Name: "limit", Type: "int", Default: "50", Description: "maximum number of patients (1-500)"}},
	},
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Handler struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewHandler(pool *pgxpool.Pool) *Handler {
	return &Handler{pool: pool, now: time.Now}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/reports", auth.RequireRole("admin", "physician"))
	g.GET("/measures", h.ListMeasures)
	g.GET("/measures/:id/evaluate", h.EvaluateMeasure)
}

func (h *Handler) ListMeasures(c echo.Context) error {
	return c.JSON(http.StatusOK, PredefinedMeasures)
}

func (h *Handler) EvaluateMeasure(c echo.Context) error {
	measure := FindMeasure(c.Param("id"))
	if measure == nil {
		return echo.NewHTTPError(http.StatusNotFound, "measure not found")
	}

	args, used, err := bindParameters(measure.Parameters, c.QueryParam)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	results, err := execute(ctx, h.querier(ctx), measure.SQL, args...)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "measure evaluation failed")
	}

	return c.JSON(http.StatusOK, MeasureReport{
		MeasureID:   measure.ID,
		MeasureName: measure.Name,
		TenantID:    db.TenantFromContext(ctx),
		GeneratedAt: h.now().UTC(),
		Parameters:  used,
		Results:     results,
	})
}

// querier prefers the clinic-scoped connection so measures only see the
// requesting clinic's schema.
func (h *Handler) querier(ctx context.Context) querier {
	if conn := db.ConnFromContext(ctx); conn != nil {
		return conn
	}
	return h.pool
}

// bindParameters validates the query-string values of params, substituting
// defaults, and returns the positional SQL arguments and the values used.
func bindParameters(params []Parameter, lookup func(string) string) ([]any, map[string]string, error) {
	args := make([]any, 0, len(params))
	used := make(map[string]string, len(params))
	for _, p := range params {
		raw := lookup(p.Name)
		if raw == "" {
			raw = p.Default
		}
		switch p.Type {
		case "date":
			d, err := time.Parse("2006-01-02", raw)
			if err != nil {
				return nil, nil, fmt.Errorf("parameter %s must be a date (YYYY-MM-DD)", p.Name)
			}
			args = append(args, d)
		case "int":
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > 500 {
				return nil, nil, fmt.Errorf("parameter %s must be an integer between 1 and 500", p.Name)
			}
			args = append(args, n)
		default:
			args = append(args, raw)
		}
		used[p.Name] = raw
	}
	return args, used, nil
}

func execute(ctx context.Context, q querier, sql string, args ...any) ([]map[string]interface{}, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	results := []map[string]interface{}{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		results = append(results, rowMap(fields, values))
	}
	return results, rows.Err()
}

func rowMap(fields []pgconn.FieldDescription, values []any) map[string]interface{} {
	row := make(map[string]interface{}, len(fields))
	for i, fd := range fields {
		row[fd.Name] = values[i]
	}
	return row
}

func FindMeasure(id string) *MeasureDefinition {
	for i := range PredefinedMeasures {
		if PredefinedMeasures[i].ID == id {
			return &PredefinedMeasures[i]
		}
	}
	return nil
}
