package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// RequireRole returns middleware that checks if the user has at least one of the specified roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userRoles := RolesFromContext(c.Request().Context())
			for _, required := range roles {
				for _, has := range userRoles {
					if has == required || has == "admin" {
						return next(c)
					}
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// IsPatientOnly reports whether the caller's only role is "patient".
func IsPatientOnly(ctx context.Context) bool {
	roles := RolesFromContext(ctx)
	if len(roles) == 0 {
		return false
	}
	for _, r := range roles {
		if r != "patient" {
			return false
		}
	}
	return true
}

// CanAccessPatient reports whether the caller may see data of patientID.
// Clinical staff see every patient of their clinic; patients see themselves.
func CanAccessPatient(ctx context.Context, patientID string) bool {
	if !IsPatientOnly(ctx) {
		return true
	}
	own := PatientIDFromContext(ctx)
	return own != "" && own == patientID
}

// RequirePatientSelf rejects patient-role callers whose token is not bound to
// the :patient_id route parameter.
func RequirePatientSelf() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !CanAccessPatient(c.Request().Context(), c.Param("patient_id")) {
				return echo.NewHTTPError(http.StatusForbidden, "access to this patient is not permitted")
			}
			return next(c)
		}
	}
}
