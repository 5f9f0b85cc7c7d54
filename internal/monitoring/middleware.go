package monitoring

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// slowRequestThreshold marks requests worth a performance log line
const slowRequestThreshold = 5 * time.Second

// MonitoringMiddleware creates Gin middleware for request monitoring
func MonitoringMiddleware(metrics *Metrics, logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		metrics.IncrementRequest()

		ip := c.ClientIP()
		userAgent := c.GetHeader("User-Agent")
		method := c.Request.Method
		path := c.Request.URL.Path

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		// route templates keep label cardinality bounded
		metrics.ObserveRequest(method, c.FullPath(), statusCode, duration)

		if statusCode >= 400 {
			metrics.IncrementError()
		}

		logger.RequestLogger(method, path, ip, userAgent, statusCode, duration)

		for _, err := range c.Errors {
			logger.APIErrorLogger(err.Err, method, path, ip, statusCode)
		}

		if duration > slowRequestThreshold {
			logger.PerformanceLogger("slow_request", duration.Seconds(), "seconds")
		}

		if statusCode >= 500 {
			logger.SystemLogger("server_error", fmt.Sprintf("Status %d for %s %s", statusCode, method, path))
		}
	}
}

// SecurityMonitoringMiddleware logs requests that look like scanner traffic
func SecurityMonitoringMiddleware(logger *Logger, maxBodyBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		userAgent := c.GetHeader("User-Agent")

		suspicious := false
		details := make(map[string]interface{})

		if containsSQLInjectionPatterns(c.Request.URL.RawQuery) {
			suspicious = true
			details["type"] = "potential_sql_injection"
			details["query"] = c.Request.URL.RawQuery
		}

		if c.Request.Method != "GET" && c.Request.ContentLength > maxBodyBytes {
			suspicious = true
			details["type"] = "large_request_body"
			details["size_bytes"] = c.Request.ContentLength
		}

		if containsSuspiciousUserAgent(userAgent) {
			suspicious = true
			details["type"] = "suspicious_user_agent"
		}

		if suspicious {
			details["path"] = c.Request.URL.Path
			logger.SecurityLogger("suspicious_activity_detected", ip, userAgent, details)
		}

		c.Next()
	}
}

var sqlInjectionPatterns = []string{
	"union select",
	"union all",
	"select * from",
	"drop table",
	"delete from",
	"';--",
	"/*",
	"*/",
	" xp_",
	" sp_",
}

// containsSQLInjectionPatterns checks for common SQL injection patterns
func containsSQLInjectionPatterns(query string) bool {
	lower := strings.ToLower(query)
	for _, pattern := range sqlInjectionPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

var suspiciousAgents = []string{
	"sqlmap",
	"nmap",
	"masscan",
	"zmap",
	"dirbuster",
	"gobuster",
	"nikto",
	"acunetix",
	"openvas",
	"nessus",
}

// containsSuspiciousUserAgent checks for known scanner user agents
func containsSuspiciousUserAgent(userAgent string) bool {
	lower := strings.ToLower(userAgent)
	for _, agent := range suspiciousAgents {
		if strings.Contains(lower, agent) {
			return true
		}
	}
	return false
}
