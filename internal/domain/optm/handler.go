package optm

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/optm/optm/internal/platform/auth"
	"github.com/optm/optm/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints – admin, physician, therapist, patient
	readGroup := api.Group("", auth.RequireRole("admin", "physician", "therapist", "patient"))
	readGroup.GET("/snapshots/:id", h.GetSnapshot)
	readGroup.GET("/biomarkers/reference-ranges", h.ListReferenceRanges)

	// Patients may only read their own record.
	patientGroup := readGroup.Group("/patients/:patient_id", auth.RequirePatientSelf())
	patientGroup.GET("/snapshots", h.ListSnapshots)
	patientGroup.GET("/analysis", h.AnalyzePatient)
	patientGroup.GET("/analysis/visualization", h.VisualizePatient)
	patientGroup.GET("/analysis/reports", h.ListReports)

	// Write endpoints – admin, physician, therapist
	writeGroup := api.Group("", auth.RequireRole("admin", "physician", "therapist"))
	writeGroup.POST("/snapshots", h.CreateSnapshot)
	writeGroup.DELETE("/snapshots/:id", h.DeleteSnapshot)
	writeGroup.POST("/analysis", h.AnalyzeSnapshots)
}

// -- Snapshot Handlers --

func (h *Handler) CreateSnapshot(c echo.Context) error {
	var s PatientSnapshot
	if err := c.Bind(&s); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateSnapshot(c.Request().Context(), &s); err != nil {
		return errorToHTTP(err)
	}
	return c.JSON(http.StatusCreated, s)
}

func (h *Handler) GetSnapshot(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	s, err := h.svc.GetSnapshot(ctx, id)
	if err != nil || !auth.CanAccessPatient(ctx, s.PatientID) {
		return echo.NewHTTPError(http.StatusNotFound, "snapshot not found")
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) DeleteSnapshot(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteSnapshot(c.Request().Context(), id); err != nil {
		return errorToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListSnapshots(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListSnapshots(c.Request().Context(), c.Param("patient_id"), pg.Limit, pg.Offset)
	if err != nil {
		return errorToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(c, items, total, pg))
}

// -- Analysis Handlers --

func (h *Handler) AnalyzePatient(c echo.Context) error {
	result, err := h.svc.AnalyzePatient(c.Request().Context(), c.Param("patient_id"))
	if err != nil {
		return errorToHTTP(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) VisualizePatient(c echo.Context) error {
	data, err := h.svc.VisualizePatient(c.Request().Context(), c.Param("patient_id"))
	if err != nil {
		return errorToHTTP(err)
	}
	return c.JSON(http.StatusOK, data)
}

func (h *Handler) ListReports(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListReports(c.Request().Context(), c.Param("patient_id"), pg.Limit, pg.Offset)
	if err != nil {
		return errorToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(c, items, total, pg))
}

// AnalyzeSnapshotsRequest is the body of an ad-hoc comparison.
type AnalyzeSnapshotsRequest struct {
	Current  *PatientSnapshot `json:"current"`
	Previous *PatientSnapshot `json:"previous"`
}

func (h *Handler) AnalyzeSnapshots(c echo.Context) error {
	var req AnalyzeSnapshotsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	result, err := h.svc.AnalyzeSnapshots(c.Request().Context(), req.Current, req.Previous)
	if err != nil {
		return errorToHTTP(err)
	}
	if c.QueryParam("visualize") == "true" {
		return c.JSON(http.StatusOK, PrepareVisualizationData(req.Current, req.Previous, result))
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) ListReferenceRanges(c echo.Context) error {
	return c.JSON(http.StatusOK, ReferenceTable())
}

func errorToHTTP(err error) error {
	switch {
	case errors.Is(err, ErrSnapshotNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInsufficientSnapshots), errors.Is(err, ErrInvalidSnapshot):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}
