package security

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ZanzyTHEbar/karten-melder/internal/errors"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// SecurityConfig holds security configuration
type SecurityConfig struct {
	MaxFieldLength   int           `json:"max_field_length"`
	MaxMessageLength int           `json:"max_message_length"`
	MaxBodyBytes     int64         `json:"max_body_bytes"`
	AllowedOrigins   []string      `json:"allowed_origins"`
	TrustedProxies   []string      `json:"trusted_proxies"`
	RequestTimeout   time.Duration `json:"request_timeout"`
	EnableHSTS       bool          `json:"enable_hsts"`
}

// DefaultSecurityConfig returns secure defaults
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		MaxFieldLength:   200,
		MaxMessageLength: 2000,
		MaxBodyBytes:     5 << 20,
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
		TrustedProxies:   []string{"127.0.0.1", "::1", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"},
		RequestTimeout:   30 * time.Second,
	}
}

// SecurityMiddleware bundles request hardening middleware and input checks
type SecurityMiddleware struct {
	config SecurityConfig
}

// NewSecurityMiddleware creates a new security middleware instance
func NewSecurityMiddleware(config SecurityConfig) *SecurityMiddleware {
	return &SecurityMiddleware{config: config}
}

// Config returns the active configuration
func (sm *SecurityMiddleware) Config() SecurityConfig {
	return sm.config
}

var suspiciousPatterns = []string{
	`<script`, `</script>`, `javascript:`, `vbscript:`, `data:text/html`,
}

// ValidateInput checks a single free-text value against maxLen runes
func (sm *SecurityMiddleware) ValidateInput(input string, maxLen int) error {
	if !utf8.ValidString(input) {
		return fmt.Errorf("input contains invalid UTF-8 encoding")
	}

	if utf8.RuneCountInString(input) > maxLen {
		return fmt.Errorf("input exceeds maximum length of %d characters", maxLen)
	}

	if strings.Contains(input, "\x00") {
		return fmt.Errorf("input contains invalid characters")
	}

	inputLower := strings.ToLower(input)
	for _, pattern := range suspiciousPatterns {
		if strings.Contains(inputLower, pattern) {
			return fmt.Errorf("input contains suspicious patterns")
		}
	}

	return nil
}

// ValidateFields checks short fields and long messages and collects every
// failure into one validation error keyed by field name
func (sm *SecurityMiddleware) ValidateFields(fields map[string]string, messages map[string]string) error {
	problems := make(map[string]string)

	for name, value := range fields {
		if err := sm.ValidateInput(value, sm.config.MaxFieldLength); err != nil {
			problems[name] = err.Error()
		}
	}
	for name, value := range messages {
		if err := sm.ValidateInput(value, sm.config.MaxMessageLength); err != nil {
			problems[name] = err.Error()
		}
	}

	if len(problems) > 0 {
		return errors.NewValidationErrorWithMap(problems)
	}
	return nil
}

var (
	scriptPattern      = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	htmlTagPattern     = regexp.MustCompile(`<[^>]+>`)
	inlineSpacePattern = regexp.MustCompile(`[ \t\f\v]+`)
)

// SanitizeInput strips markup from user text and collapses runs of spaces.
// Line breaks are kept so descriptions keep their paragraphs.
func (sm *SecurityMiddleware) SanitizeInput(input string) string {
	input = strings.TrimSpace(input)
	input = scriptPattern.ReplaceAllString(input, "")
	input = htmlTagPattern.ReplaceAllString(input, "")
	input = inlineSpacePattern.ReplaceAllString(input, " ")
	return strings.TrimSpace(input)
}

// SecurityHeaders adds security headers to responses
func (sm *SecurityMiddleware) SecurityHeaders(c *gin.Context) {
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("X-Frame-Options", "DENY")
	c.Header("X-XSS-Protection", "1; mode=block")
	c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
	c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

	// the swagger UI needs its own scripts and styles
	if !strings.HasPrefix(c.Request.URL.Path, "/swagger/") {
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
	}

	if sm.config.EnableHSTS || c.Request.TLS != nil {
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}

	c.Next()
}

// ValidateContentType requires JSON bodies on write requests
func (sm *SecurityMiddleware) ValidateContentType(c *gin.Context) {
	switch c.Request.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		c.Next()
		return
	}

	if c.Request.ContentLength == 0 {
		c.Next()
		return
	}

	contentType := strings.ToLower(c.GetHeader("Content-Type"))
	if !strings.HasPrefix(contentType, "application/json") {
		c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, errors.ErrorResponse{
			Error:    "unsupported content type",
			Category: errors.CategoryValidation,
			Code:     "UNSUPPORTED_MEDIA_TYPE",
		})
		return
	}

	c.Next()
}

// LimitBody caps the number of bytes a handler may read from the request
func (sm *SecurityMiddleware) LimitBody(c *gin.Context) {
	if c.Request.Body != nil && sm.config.MaxBodyBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, sm.config.MaxBodyBytes)
	}
	c.Next()
}

// RequestTimeout attaches a deadline to the request context
func (sm *SecurityMiddleware) RequestTimeout(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), sm.config.RequestTimeout)
	defer cancel()

	c.Request = c.Request.WithContext(ctx)
	c.Header("X-Timeout", strconv.Itoa(int(sm.config.RequestTimeout.Seconds())))

	c.Next()
}

// CORS allows the configured frontends to call the API
func (sm *SecurityMiddleware) CORS() gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", "X-Request-ID"},
		ExposeHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}

	if allowsAnyOrigin(sm.config.AllowedOrigins) {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = sm.config.AllowedOrigins
		config.AllowCredentials = true
	}

	return cors.New(config)
}

func allowsAnyOrigin(origins []string) bool {
	if len(origins) == 0 {
		return true
	}
	for _, origin := range origins {
		if origin == "*" {
			return true
		}
	}
	return false
}
