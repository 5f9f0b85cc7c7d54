package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ZanzyTHEbar/karten-melder/internal/database"
	"github.com/ZanzyTHEbar/karten-melder/internal/errors"
	"github.com/ZanzyTHEbar/karten-melder/internal/feedback"
	"github.com/ZanzyTHEbar/karten-melder/internal/monitoring"
	"github.com/ZanzyTHEbar/karten-melder/internal/plz"
	"github.com/ZanzyTHEbar/karten-melder/internal/privacy"
	"github.com/ZanzyTHEbar/karten-melder/internal/ranking"
	"github.com/ZanzyTHEbar/karten-melder/internal/ratelimit"
	"github.com/ZanzyTHEbar/karten-melder/internal/reports"
	"github.com/ZanzyTHEbar/karten-melder/internal/security"
	"github.com/ZanzyTHEbar/karten-melder/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// SnapshotStore exports and imports the whole data set
type SnapshotStore interface {
	Export(ctx context.Context) (*database.Snapshot, error)
	Import(ctx context.Context, snap *database.Snapshot, now time.Time, reserved database.ReservedZip) (*database.ImportResult, error)
}

// ReportCounter is used by the health check
type ReportCounter interface {
	CountReports(ctx context.Context) (int, error)
}

// audit logs an admin write together with the account that made it
func audit(c *gin.Context, action string, attrs ...any) {
	args := append([]any{"action", action, "admin", security.AdminSubject(c)}, attrs...)
	slog.Info("Admin action", args...)
}

// PoolReporter exposes database connection pool statistics
type PoolReporter interface {
	GetPoolStats() map[string]interface{}
}

// Limits are the per-IP rates for the public write endpoints
type Limits struct {
	Submissions ratelimit.Rate
	Logins      ratelimit.Rate
}

// Deps holds everything the HTTP layer talks to
type Deps struct {
	Reports   *reports.Service
	Rankings  *ranking.Service
	Feedback  *feedback.Service
	Postal    *plz.Service
	Privacy   *privacy.PrivacyService
	Sessions  *security.SessionManager
	Snapshots SnapshotStore
	Counter   ReportCounter
	Database  PoolReporter
	Metrics   *monitoring.Metrics
	Limiter   *ratelimit.RateLimiter
	Redis     *ratelimit.RedisClient
	Limits    Limits
	Clock     clockwork.Clock
}

// Handler serves the JSON API
type Handler struct {
	deps Deps
}

// New creates a new API handler
func New(deps Deps) *Handler {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	return &Handler{deps: deps}
}

// Register mounts every route on r
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/health", h.health)
	if h.deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.deps.Metrics.Handler()))
	}
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api")
	{
		api.GET("/privacy/policy", h.privacyPolicy)
		api.GET("/settings", h.publicSettings)
		api.GET("/plz/:zip", h.lookupPostalCode)

		api.POST("/reports", h.limit("submissions", h.deps.Limits.Submissions), h.submitReport)
		api.GET("/reports/:id", h.getPublicReport)

		api.GET("/rankings/cities", h.cityRanking)
		api.GET("/rankings/cities/:city/numbers", h.cityNumbers)
		api.GET("/rankings/phones/:phone", h.phoneSummary)
		api.GET("/rankings/phones/:phone/profile", h.phoneProfile)

		api.POST("/feedback", h.limit("feedback", h.deps.Limits.Submissions), h.submitFeedback)
		api.POST("/admin/login", h.limit("login", h.deps.Limits.Logins), h.login)
	}

	admin := api.Group("/admin", h.deps.Sessions.RequireAdmin())
	{
		admin.GET("/reports", h.listReports)
		admin.POST("/reports", h.createReport)
		admin.GET("/reports/:id", h.getReport)
		admin.PUT("/reports/:id", h.updateReport)
		admin.DELETE("/reports/:id", h.deleteReport)

		admin.GET("/feedback", h.listFeedback)
		admin.GET("/feedback/:id", h.getFeedback)
		admin.DELETE("/feedback/:id", h.deleteFeedback)

		admin.GET("/settings", h.adminSettings)
		admin.PUT("/settings", h.updateSettings)

		admin.GET("/plz", h.listCustomPostalCodes)

		admin.GET("/export", h.exportSnapshot)
		admin.POST("/import", h.importSnapshot)
		admin.POST("/cleanup", h.cleanup)
	}
}

func (h *Handler) limit(name string, rate ratelimit.Rate) gin.HandlerFunc {
	if h.deps.Limiter == nil || rate.Limit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return h.deps.Limiter.Middleware(name, rate)
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		errors.Respond(c, errors.NewValidationError("invalid request body: "+err.Error(), "body"))
		return false
	}
	return true
}

func queryInt(c *gin.Context, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.NewValidationError(name+" must be a non-negative integer", name)
	}
	return n, nil
}

// health godoc
// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} types.HealthResponse
// @Failure 503 {object} types.HealthResponse
// @Router /health [get]
func (h *Handler) health(c *gin.Context) {
	ctx := c.Request.Context()
	resp := types.HealthResponse{
		Status:    "ok",
		Timestamp: h.deps.Clock.Now().UTC(),
	}

	status := http.StatusOK
	if h.deps.Counter != nil {
		count, err := h.deps.Counter.CountReports(ctx)
		if err != nil {
			slog.Error("Health check could not count reports", "error", err)
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
		resp.Reports = count
	}

	// a failing redis only degrades rate limiting to memory
	if h.deps.Redis.IsEnabled() {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := h.deps.Redis.HealthCheck(pingCtx)
		cancel()
		if err != nil {
			slog.Warn("Redis health check failed", "error", err)
		}
		resp.Redis = err == nil
	}

	if h.deps.Rankings != nil {
		resp.Cache = h.deps.Rankings.CacheStats()
	}
	if h.deps.Limiter != nil {
		resp.RateLimit = h.deps.Limiter.GetStats()
	}
	if h.deps.Database != nil {
		resp.Database = h.deps.Database.GetPoolStats()
	}

	c.JSON(status, resp)
}

// privacyPolicy godoc
// @Summary Data retention policy
// @Tags privacy
// @Produce json
// @Success 200 {object} privacy.Policy
// @Router /api/privacy/policy [get]
func (h *Handler) privacyPolicy(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Privacy.Policy())
}

// lookupPostalCode godoc
// @Summary Resolve a postal code to its city
// @Tags plz
// @Produce json
// @Param zip path string true "5-digit postal code"
// @Success 200 {object} PostalCodeResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /api/plz/{zip} [get]
func (h *Handler) lookupPostalCode(c *gin.Context) {
	zip := c.Param("zip")

	city, err := h.deps.Postal.City(c.Request.Context(), zip)
	if err != nil {
		errors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, PostalCodeResponse{
		ZipCode:  zip,
		CityName: city,
		Core:     h.deps.Postal.IsCore(zip),
	})
}

// PostalCodeResponse is a resolved postal code
type PostalCodeResponse struct {
	ZipCode  string `json:"zip_code"`
	CityName string `json:"city_name"`
	Core     bool   `json:"core"`
}
