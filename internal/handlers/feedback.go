package handlers

import (
	"net/http"

	"github.com/ZanzyTHEbar/karten-melder/internal/database"
	"github.com/ZanzyTHEbar/karten-melder/internal/errors"
	"github.com/ZanzyTHEbar/karten-melder/internal/types"
	"github.com/gin-gonic/gin"
)

// publicSettings godoc
// @Summary Site switches
// @Tags settings
// @Produce json
// @Success 200 {object} database.Settings
// @Router /api/settings [get]
func (h *Handler) publicSettings(c *gin.Context) {
	settings, err := h.deps.Feedback.Settings(c.Request.Context())
	if err != nil {
		errors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// submitFeedback godoc
// @Summary Send feedback
// @Tags feedback
// @Accept json
// @Produce json
// @Param feedback body types.FeedbackRequest true "Feedback"
// @Success 201 {object} types.MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /api/feedback [post]
func (h *Handler) submitFeedback(c *gin.Context) {
	var req types.FeedbackRequest
	if !bindJSON(c, &req) {
		return
	}

	if _, err := h.deps.Feedback.Submit(c.Request.Context(), req); err != nil {
		errors.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, types.MessageResponse{Message: "Vielen Dank für dein Feedback!"})
}

func (h *Handler) listFeedback(c *gin.Context) {
	summaries, err := h.deps.Feedback.ListSummaries(c.Request.Context())
	if err != nil {
		errors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, types.NewListResponse(summaries))
}

func (h *Handler) getFeedback(c *gin.Context) {
	entry, err := h.deps.Feedback.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		errors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *Handler) deleteFeedback(c *gin.Context) {
	if err := h.deps.Feedback.Delete(c.Request.Context(), c.Param("id")); err != nil {
		errors.Respond(c, err)
		return
	}
	audit(c, "delete_feedback", "id", c.Param("id"))
	c.Status(http.StatusNoContent)
}

func (h *Handler) adminSettings(c *gin.Context) {
	h.publicSettings(c)
}

func (h *Handler) updateSettings(c *gin.Context) {
	var req types.SettingsRequest
	if !bindJSON(c, &req) {
		return
	}

	settings, err := h.deps.Feedback.UpdateSettings(c.Request.Context(), database.Settings{
		FeedbackEnabled: *req.FeedbackEnabled,
	})
	if err != nil {
		errors.Respond(c, err)
		return
	}
	audit(c, "update_settings", "feedback_enabled", settings.FeedbackEnabled)
	c.JSON(http.StatusOK, settings)
}

func (h *Handler) listCustomPostalCodes(c *gin.Context) {
	codes, err := h.deps.Postal.ListCustom(c.Request.Context())
	if err != nil {
		errors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, types.NewListResponse(codes))
}

// login godoc
// @Summary Admin login
// @Tags admin
// @Accept json
// @Produce json
// @Param credentials body types.LoginRequest true "Credentials"
// @Success 200 {object} security.Session
// @Failure 401 {object} errors.ErrorResponse
// @Router /api/admin/login [post]
func (h *Handler) login(c *gin.Context) {
	var req types.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.deps.Sessions.Login(req.Username, req.Password)
	if err != nil {
		errors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}
