package handlers

import (
	"net/http"

	"github.com/ZanzyTHEbar/karten-melder/internal/errors"
	"github.com/ZanzyTHEbar/karten-melder/internal/ranking"
	"github.com/ZanzyTHEbar/karten-melder/internal/types"
	"github.com/gin-gonic/gin"
)

// CityRankingResponse is a ranking of cities by report count
type CityRankingResponse struct {
	Days   int                `json:"days"`
	Limit  int                `json:"limit"`
	Cities []ranking.CityStat `json:"cities"`
}

// PhoneSummaryResponse is the short stats block for one phone number
type PhoneSummaryResponse struct {
	PhoneNumber string       `json:"phone_number"`
	Count       int          `json:"count"`
	AvgScore    float64      `json:"avg_score"`
	Tier        ranking.Tier `json:"tier"`
	Level       string       `json:"level"`
}

// cityRanking godoc
// @Summary Cities with the most reports
// @Tags rankings
// @Produce json
// @Param days query int false "Only count the last N days (0 = all time)"
// @Param limit query int false "Maximum number of cities (0 = all)"
// @Success 200 {object} CityRankingResponse
// @Failure 400 {object} errors.ErrorResponse
// @Router /api/rankings/cities [get]
func (h *Handler) cityRanking(c *gin.Context) {
	days, err := queryInt(c, "days", 0)
	if err != nil {
		errors.Respond(c, err)
		return
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		errors.Respond(c, err)
		return
	}

	cities, err := h.deps.Rankings.CityRanking(c.Request.Context(), days, limit)
	if err != nil {
		errors.Respond(c, err)
		return
	}
	if cities == nil {
		cities = []ranking.CityStat{}
	}

	c.JSON(http.StatusOK, CityRankingResponse{Days: days, Limit: limit, Cities: cities})
}

// cityNumbers godoc
// @Summary Most reported phone numbers in a city
// @Tags rankings
// @Produce json
// @Param city path string true "City name"
// @Success 200 {object} types.ListResponse[ranking.NumberStat]
// @Router /api/rankings/cities/{city}/numbers [get]
func (h *Handler) cityNumbers(c *gin.Context) {
	numbers, err := h.deps.Rankings.CityNumbers(c.Request.Context(), c.Param("city"))
	if err != nil {
		errors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, types.NewListResponse(numbers))
}

// phoneSummary godoc
// @Summary Report count and score for a phone number
// @Tags rankings
// @Produce json
// @Param phone path string true "Phone number"
// @Success 200 {object} PhoneSummaryResponse
// @Router /api/rankings/phones/{phone} [get]
func (h *Handler) phoneSummary(c *gin.Context) {
	phone := c.Param("phone")

	stats, err := h.deps.Rankings.PhoneStats(c.Request.Context(), phone)
	if err != nil {
		errors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, PhoneSummaryResponse{
		PhoneNumber: phone,
		Count:       stats.Count,
		AvgScore:    stats.AvgScore,
		Tier:        ranking.TierFor(stats.Count),
		Level:       ranking.ScoreLevel(stats.AvgScore),
	})
}

// phoneProfile godoc
// @Summary Activity profile of a phone number
// @Tags rankings
// @Produce json
// @Param phone path string true "Phone number"
// @Success 200 {object} ranking.PhoneProfile
// @Failure 404 {object} errors.ErrorResponse
// @Router /api/rankings/phones/{phone}/profile [get]
func (h *Handler) phoneProfile(c *gin.Context) {
	profile, err := h.deps.Rankings.PhoneProfile(c.Request.Context(), c.Param("phone"))
	if err != nil {
		errors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}
