package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/optm/optm/internal/platform/auth"
)

// AuditEntry records one access to patient data.
type AuditEntry struct {
	UserID     string
	UserRoles  []string
	TenantID   string
	Resource   string
	PatientID  string
	Action     string // read, create, update, delete
	IPAddress  string
	UserAgent  string
	Path       string
	Method     string
	Timestamp  time.Time
	RequestID  string
	StatusCode int
}

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// Audit logs every /api/v1 request after it has been handled. When a recorder
// is supplied the entry is also handed to it; recorder failures are logged and
// never fail the request.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !strings.HasPrefix(req.URL.Path, "/api/v1/") {
				return next(c)
			}

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}

			ctx := req.Context()
			entry := AuditEntry{
				UserID:     auth.UserIDFromContext(ctx),
				UserRoles:  auth.RolesFromContext(ctx),
				Resource:   resourceFromPath(req.URL.Path),
				PatientID:  patientFromRequest(c),
				Action:     httpMethodToAction(req.Method),
				IPAddress:  c.RealIP(),
				UserAgent:  req.UserAgent(),
				Path:       req.URL.Path,
				Method:     req.Method,
				Timestamp:  time.Now().UTC(),
				StatusCode: status,
			}
			entry.TenantID, _ = c.Get("tenant_id").(string)
			entry.RequestID, _ = c.Get("request_id").(string)

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).Str("request_id", entry.RequestID).Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("audit", "access").
				Str("user_id", entry.UserID).
				Strs("roles", entry.UserRoles).
				Str("tenant_id", entry.TenantID).
				Str("resource", entry.Resource).
				Str("patient_id", entry.PatientID).
				Str("action", entry.Action).
				Int("status", entry.StatusCode).
				Str("request_id", entry.RequestID).
				Str("ip", entry.IPAddress).
				Msg("patient data access")

			return err
		}
	}
}

func httpMethodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// resourceFromPath returns the first segment after /api/v1/, so
// /api/v1/patients/p-1/analysis yields "patients".
func resourceFromPath(path string) string {
	rest := strings.TrimPrefix(path, "/api/v1/")
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" {
		return "unknown"
	}
	return rest
}

// patientFromRequest finds the patient a request concerns: the :patient_id
// route parameter, a /patients/<id> path segment or a ?patient_id query.
func patientFromRequest(c echo.Context) string {
	if id := c.Param("patient_id"); id != "" {
		return id
	}
	if rest, ok := strings.CutPrefix(c.Request().URL.Path, "/api/v1/patients/"); ok {
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			rest = rest[:i]
		}
		if rest != "" {
			return rest
		}
	}
	return c.QueryParam("patient_id")
}
