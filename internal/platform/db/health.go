package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
}

func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
	}
}

// Check is one dependency probed by the health endpoint.
type Check struct {
	Name string
	// Required checks turn the endpoint unhealthy; optional ones only degrade it.
	Required bool
	Ping     func(ctx context.Context) error
}

// PoolCheck probes the database pool. It is always required.
func PoolCheck(pool *pgxpool.Pool) Check {
	return Check{Name: "database", Required: true, Ping: pool.Ping}
}

type checkResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type healthResponse struct {
	Status string                 `json:"status"`
	Checks map[string]checkResult `json:"checks"`
	Pool   *PoolStats             `json:"pool,omitempty"`
}

// HealthHandler runs every check with a shared 5 second deadline. It answers
// 503 when a required check fails and reports "degraded" when only optional
// ones do.
func HealthHandler(pool *pgxpool.Pool, checks ...Check) echo.HandlerFunc {
	if pool != nil {
		checks = append([]Check{PoolCheck(pool)}, checks...)
	}
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		resp := runChecks(ctx, checks)
		if pool != nil {
			resp.Pool = GetPoolStats(pool)
		}

		code := http.StatusOK
		if resp.Status == "unhealthy" {
			code = http.StatusServiceUnavailable
		}
		return c.JSON(code, resp)
	}
}

func runChecks(ctx context.Context, checks []Check) healthResponse {
	resp := healthResponse{Status: "healthy", Checks: make(map[string]checkResult, len(checks))}
	for _, chk := range checks {
		if err := chk.Ping(ctx); err != nil {
			resp.Checks[chk.Name] = checkResult{Status: "down", Error: err.Error()}
			switch {
			case chk.Required:
				resp.Status = "unhealthy"
			case resp.Status == "healthy":
				resp.Status = "degraded"
			}
			continue
		}
		resp.Checks[chk.Name] = checkResult{Status: "up"}
	}
	return resp
}
