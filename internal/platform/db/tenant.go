package db

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	TenantIDKey contextKey = "tenant_id"
	DBConnKey   contextKey = "db_conn"
)

// TenantHeader lets service accounts pick a clinic without a tenant claim.
const TenantHeader = "X-Tenant-ID"

// Every clinic lives in its own schema named schemaPrefix + tenant id.
const schemaPrefix = "clinic_"

var tenantIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_]{1,48}$`)

// ValidTenantID reports whether id may be used to build a schema name.
func ValidTenantID(id string) bool {
	return tenantIDPattern.MatchString(id)
}

// SchemaName returns the schema holding a clinic's snapshots and reports.
func SchemaName(tenantID string) string {
	return schemaPrefix + strings.ToLower(tenantID)
}

// TenantMiddleware resolves the clinic of a request, pins a pooled connection
// to its schema and stores both on the request context. Requests for which
// skipper returns true get neither.
func TenantMiddleware(pool *pgxpool.Pool, defaultTenant string, skipper func(echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper != nil && skipper(c) {
				return next(c)
			}

			tenantID := extractTenantID(c, defaultTenant)
			if !ValidTenantID(tenantID) {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid tenant identifier")
			}

			ctx := c.Request().Context()
			conn, err := pool.Acquire(ctx)
			if err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
			}
			defer conn.Release()

			if _, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s, public", SchemaName(tenantID))); err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "tenant resolution failed")
			}
			// The connection goes back to the pool after this request.
			defer conn.Exec(context.WithoutCancel(ctx), "RESET search_path")

			ctx = context.WithValue(ctx, TenantIDKey, tenantID)
			ctx = context.WithValue(ctx, DBConnKey, conn)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("tenant_id", tenantID)

			return next(c)
		}
	}
}

// extractTenantID prefers the token claim, then the header, then the default.
func extractTenantID(c echo.Context, defaultTenant string) string {
	if tid, ok := c.Get("jwt_tenant_id").(string); ok && tid != "" {
		return tid
	}
	if tid := c.Request().Header.Get(TenantHeader); tid != "" {
		return tid
	}
	return defaultTenant
}

// ConnFromContext retrieves the tenant-scoped database connection from context.
func ConnFromContext(ctx context.Context) *pgxpool.Conn {
	conn, _ := ctx.Value(DBConnKey).(*pgxpool.Conn)
	return conn
}

// WithTenant marks ctx as belonging to a clinic. Used by jobs that run outside
// an HTTP request.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, TenantIDKey, tenantID)
}

func TenantFromContext(ctx context.Context) string {
	tid, _ := ctx.Value(TenantIDKey).(string)
	return tid
}

// CreateTenantSchema creates the schema of a new clinic and applies every
// migration from m to it. A nil migrator only creates the schema.
func CreateTenantSchema(ctx context.Context, pool *pgxpool.Pool, tenantID string, m *Migrator) error {
	if !ValidTenantID(tenantID) {
		return fmt.Errorf("invalid tenant identifier: %q", tenantID)
	}
	schema := SchemaName(tenantID)

	if _, err := pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)); err != nil {
		return fmt.Errorf("create schema %s: %w", schema, err)
	}
	if m == nil {
		return nil
	}
	if _, err := m.Up(ctx, schema); err != nil {
		return fmt.Errorf("run migrations for %s: %w", schema, err)
	}
	return nil
}

// ListTenants returns the ids of all clinics that have a schema.
func ListTenants(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	rows, err := pool.Query(ctx,
		`SELECT schema_name FROM information_schema.schemata WHERE schema_name LIKE $1 ORDER BY schema_name`,
		schemaPrefix+"%")
	if err != nil {
		return nil, fmt.Errorf("list tenant schemas: %w", err)
	}
	defer rows.Close()

	var tenants []string
	for rows.Next() {
		var schema string
		if err := rows.Scan(&schema); err != nil {
			return nil, fmt.Errorf("scan schema name: %w", err)
		}
		tenants = append(tenants, strings.TrimPrefix(schema, schemaPrefix))
	}
	return tenants, rows.Err()
}
