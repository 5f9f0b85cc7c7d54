package handlers

import (
	"net/http"

	"github.com/ZanzyTHEbar/karten-melder/internal/database"
	"github.com/ZanzyTHEbar/karten-melder/internal/errors"
	"github.com/ZanzyTHEbar/karten-melder/internal/privacy"
	"github.com/ZanzyTHEbar/karten-melder/internal/reports"
	"github.com/ZanzyTHEbar/karten-melder/internal/types"
	"github.com/gin-gonic/gin"
)

// submitReport godoc
// @Summary Report an advertising card
// @Description Stores a sighting and returns the running stats for the phone number.
// @Tags reports
// @Accept json
// @Produce json
// @Param report body types.SubmitReportRequest true "Report"
// @Success 201 {object} reports.SubmitResult
// @Failure 400 {object} errors.ErrorResponse
// @Failure 429 {object} errors.ErrorResponse
// @Router /api/reports [post]
func (h *Handler) submitReport(c *gin.Context) {
	var req types.SubmitReportRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.deps.Reports.Submit(c.Request.Context(), req)
	if err != nil {
		errors.Respond(c, err)
		return
	}

	result.Report = privacy.RedactReport(result.Report)
	c.JSON(http.StatusCreated, result)
}

// getPublicReport godoc
// @Summary Get a report
// @Tags reports
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} database.Report
// @Failure 404 {object} errors.ErrorResponse
// @Router /api/reports/{id} [get]
func (h *Handler) getPublicReport(c *gin.Context) {
	report, err := h.deps.Reports.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		errors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, privacy.RedactReport(*report))
}

// listReports serves the admin report table
func (h *Handler) listReports(c *gin.Context) {
	list, err := h.deps.Reports.List(c.Request.Context(), reports.ListOptions{
		Search: c.Query("search"),
		Sort:   c.Query("sort"),
	})
	if err != nil {
		errors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, types.NewListResponse(list))
}

func (h *Handler) createReport(c *gin.Context) {
	var req types.AdminReportRequest
	if !bindJSON(c, &req) {
		return
	}

	report, err := h.deps.Reports.Create(c.Request.Context(), req)
	if err != nil {
		errors.Respond(c, err)
		return
	}
	audit(c, "create_report", "id", report.ID)
	c.JSON(http.StatusCreated, report)
}

func (h *Handler) getReport(c *gin.Context) {
	report, err := h.deps.Reports.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		errors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) updateReport(c *gin.Context) {
	var req types.UpdateReportRequest
	if !bindJSON(c, &req) {
		return
	}

	report, err := h.deps.Reports.Update(c.Request.Context(), c.Param("id"), req.ToUpdate())
	if err != nil {
		errors.Respond(c, err)
		return
	}
	audit(c, "update_report", "id", report.ID)
	c.JSON(http.StatusOK, report)
}

func (h *Handler) deleteReport(c *gin.Context) {
	if err := h.deps.Reports.Delete(c.Request.Context(), c.Param("id")); err != nil {
		errors.Respond(c, err)
		return
	}
	audit(c, "delete_report", "id", c.Param("id"))
	c.Status(http.StatusNoContent)
}

// exportSnapshot downloads every table as one JSON document
func (h *Handler) exportSnapshot(c *gin.Context) {
	snap, err := h.deps.Snapshots.Export(c.Request.Context())
	if err != nil {
		errors.Respond(c, errors.NewInternalError("failed to export data", err))
		return
	}

	filename := "karten-melder-" + h.deps.Clock.Now().UTC().Format("20060102-150405") + ".json"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.JSON(http.StatusOK, snap)
}

// importSnapshot merges an exported snapshot. Malformed input imports nothing.
func (h *Handler) importSnapshot(c *gin.Context) {
	data, err := c.GetRawData()
	if err != nil {
		errors.Respond(c, errors.NewValidationError("could not read request body", "body"))
		return
	}

	result, err := h.deps.Snapshots.Import(c.Request.Context(), database.ParseSnapshot(data), h.deps.Clock.Now(), h.deps.Postal.IsCore)
	if err != nil {
		errors.Respond(c, errors.NewInternalError("failed to import data", err))
		return
	}

	audit(c, "import",
		"reports", result.Reports,
		"feedback", result.Feedback,
		"postal_codes", result.PostalCodes,
		"skipped", result.Skipped,
	)
	h.deps.Rankings.Invalidate()
	c.JSON(http.StatusOK, result)
}

// cleanup applies the retention policy now
func (h *Handler) cleanup(c *gin.Context) {
	result, err := h.deps.Privacy.Cleanup(c.Request.Context())
	if err != nil {
		errors.Respond(c, errors.NewInternalError("data cleanup failed", err))
		return
	}

	audit(c, "cleanup", "reports_deleted", result.ReportsDeleted, "feedback_deleted", result.FeedbackDeleted)
	if result.ReportsDeleted > 0 {
		h.deps.Rankings.Invalidate()
	}
	c.JSON(http.StatusOK, result)
}
