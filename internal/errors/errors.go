package errors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/gin-gonic/gin"
)

// ErrorCategory defines the type of error for proper handling
type ErrorCategory string

const (
	CategoryValidation    ErrorCategory = "validation"
	CategoryNotFound      ErrorCategory = "not_found"
	CategoryUnauthorized  ErrorCategory = "unauthorized"
	CategoryForbidden     ErrorCategory = "forbidden"
	CategoryTimeout       ErrorCategory = "timeout"
	CategoryRateLimit     ErrorCategory = "rate_limit"
	CategoryInternal      ErrorCategory = "internal"
	CategoryConfiguration ErrorCategory = "configuration"
)

// AppError wraps an errbuilder error with the HTTP mapping used by handlers
type AppError struct {
	*errbuilder.ErrBuilder
	Category   ErrorCategory `json:"category"`
	HTTPStatus int           `json:"http_status"`
	Timestamp  time.Time     `json:"timestamp"`
	StackTrace string        `json:"stack_trace,omitempty"`
}

// ErrorResponse is the JSON body written for every failed request
type ErrorResponse struct {
	Error    string            `json:"error"`
	Category ErrorCategory     `json:"category"`
	Code     string            `json:"code"`
	Details  map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code(), e.ErrBuilder.Msg)
}

// Code returns the stable machine-readable code for the error
func (e *AppError) Code() string {
	switch e.ErrBuilder.ErrCode() {
	case errbuilder.CodeInvalidArgument:
		return "VALIDATION_ERROR"
	case errbuilder.CodeNotFound:
		return "NOT_FOUND"
	case errbuilder.CodeUnauthenticated:
		return "UNAUTHORIZED"
	case errbuilder.CodePermissionDenied:
		return "FORBIDDEN"
	case errbuilder.CodeDeadlineExceeded:
		return "TIMEOUT_ERROR"
	case errbuilder.CodeResourceExhausted:
		return "RATE_LIMIT_EXCEEDED"
	case errbuilder.CodeFailedPrecondition:
		return "CONFIGURATION_ERROR"
	case errbuilder.CodeInternal:
		return "INTERNAL_ERROR"
	default:
		return "UNKNOWN_ERROR"
	}
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.ErrBuilder.Unwrap()
}

// Response renders the error into its public JSON shape
func (e *AppError) Response() ErrorResponse {
	resp := ErrorResponse{
		Error:    e.ErrBuilder.Msg,
		Category: e.Category,
		Code:     e.Code(),
	}
	// internal details stay in the logs
	if e.Category == CategoryInternal || e.Category == CategoryConfiguration {
		return resp
	}
	if errs := e.ErrBuilder.Details.Errors; len(errs) > 0 {
		resp.Details = make(map[string]string, len(errs))
		for key, err := range errs {
			if err != nil {
				resp.Details[key] = errMessage(err)
			}
		}
	}
	return resp
}

func errMessage(err error) string {
	var eb *errbuilder.ErrBuilder
	if errors.As(err, &eb) {
		return eb.Msg
	}
	return err.Error()
}

// NewAppError creates an AppError from errbuilder with additional context
func NewAppError(builder *errbuilder.ErrBuilder, category ErrorCategory, httpStatus int) *AppError {
	return &AppError{
		ErrBuilder: builder,
		Category:   category,
		HTTPStatus: httpStatus,
		Timestamp:  time.Now(),
	}
}

// NewValidationError creates a validation error. The optional detail is keyed by field.
func NewValidationError(message string, field ...string) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(message)

	if len(field) > 0 && field[0] != "" {
		errorMap := errbuilder.ErrorMap{}
		errorMap.Set(field[0], errors.New(message))
		builder = builder.WithDetails(errbuilder.NewErrDetails(errorMap))
	}

	return NewAppError(builder, CategoryValidation, http.StatusBadRequest)
}

// NewValidationErrorWithMap creates a validation error carrying one message per field
func NewValidationErrorWithMap(validationErrors map[string]string) *AppError {
	errMap := errbuilder.ErrorMap{}

	for field, message := range validationErrors {
		errMap.Set(field, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(message))
	}

	builder := errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg("Multiple validation errors").
		WithDetails(errbuilder.NewErrDetails(errMap))

	return NewAppError(builder, CategoryValidation, http.StatusBadRequest)
}

// NewNotFoundError reports a missing resource such as a report or feedback id
func NewNotFoundError(resource, id string) *AppError {
	errorMap := errbuilder.ErrorMap{}
	errorMap.Set(resource, fmt.Errorf("%s not found", id))

	builder := errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg(fmt.Sprintf("%s not found", resource)).
		WithDetails(errbuilder.NewErrDetails(errorMap))

	return NewAppError(builder, CategoryNotFound, http.StatusNotFound)
}

// NewUnauthorizedError is returned for missing or invalid admin sessions
func NewUnauthorizedError(message string) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeUnauthenticated).
		WithMsg(message)

	return NewAppError(builder, CategoryUnauthorized, http.StatusUnauthorized)
}

// NewForbiddenError is returned when a feature is switched off
func NewForbiddenError(message string) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodePermissionDenied).
		WithMsg(message)

	return NewAppError(builder, CategoryForbidden, http.StatusForbidden)
}

// NewTimeoutError creates a timeout error using errbuilder
func NewTimeoutError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeDeadlineExceeded).
		WithMsg(message)

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return NewAppError(builder, CategoryTimeout, http.StatusGatewayTimeout)
}

// NewRateLimitError creates a rate limit error using errbuilder
func NewRateLimitError(retryAfter time.Duration) *AppError {
	errorMap := errbuilder.ErrorMap{}
	errorMap.Set("retry_after", errors.New(retryAfter.Round(time.Second).String()))

	builder := errbuilder.New().
		WithCode(errbuilder.CodeResourceExhausted).
		WithMsg("Rate limit exceeded").
		WithDetails(errbuilder.NewErrDetails(errorMap))

	return NewAppError(builder, CategoryRateLimit, http.StatusTooManyRequests)
}

// NewInternalError creates an internal server error using errbuilder
func NewInternalError(message string, cause error) *AppError {
	errorMap := errbuilder.ErrorMap{}
	errorMap.Set("internal_details", errors.New(message))

	builder := errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg("Internal server error").
		WithDetails(errbuilder.NewErrDetails(errorMap))

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	appErr := NewAppError(builder, CategoryInternal, http.StatusInternalServerError)

	if gin.Mode() == gin.DebugMode {
		appErr.StackTrace = captureStackTrace()
	}

	return appErr
}

// NewConfigurationError creates a configuration error using errbuilder
func NewConfigurationError(message string, cause error) *AppError {
	errorMap := errbuilder.ErrorMap{}
	errorMap.Set("config_details", errors.New(message))

	builder := errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg("Configuration error").
		WithDetails(errbuilder.NewErrDetails(errorMap))

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return NewAppError(builder, CategoryConfiguration, http.StatusInternalServerError)
}

// captureStackTrace captures a stack trace for debugging
func captureStackTrace() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// ToAppError converts any error to an AppError
func ToAppError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	if errors.Is(err, sql.ErrNoRows) {
		return NewNotFoundError("record", "requested")
	}

	if errors.Is(err, context.Canceled) {
		return NewTimeoutError("Request cancelled", err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError("Request deadline exceeded", err)
	}

	var ebErr *errbuilder.ErrBuilder
	if errors.As(err, &ebErr) {
		return NewAppError(ebErr, CategoryInternal, http.StatusInternalServerError)
	}

	return NewInternalError("An unexpected error occurred", err)
}

// IsNotFound reports whether err maps to a missing resource
func IsNotFound(err error) bool {
	appErr := ToAppError(err)
	return appErr != nil && appErr.Category == CategoryNotFound
}

// Respond logs err and writes its JSON response, aborting the handler chain
func Respond(c *gin.Context, err error) {
	appErr := ToAppError(err)
	LogError(c, appErr)
	c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.Response())
}

// ErrorHandler is a Gin middleware that renders errors attached with c.Error
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		appErr := ToAppError(c.Errors.Last().Err)
		LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr.Response())
	}
}

// RecoveryHandler provides panic recovery with structured error responses
func RecoveryHandler() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		appErr := NewInternalError(
			fmt.Sprintf("Panic recovered: %v", recovered),
			fmt.Errorf("%v", recovered),
		)
		appErr.StackTrace = captureStackTrace()

		LogError(c, appErr)
		c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.Response())
	})
}

// LogError logs an error with appropriate level and context
func LogError(c *gin.Context, err *AppError) {
	logEntry := slog.With(
		"error_category", err.Category,
		"error_code", err.Code(),
		"http_status", err.HTTPStatus,
		"ip", c.ClientIP(),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"request_id", c.GetHeader("X-Request-ID"),
	)

	errorMsg := err.ErrBuilder.Msg
	details := err.ErrBuilder.Details.Errors

	switch err.Category {
	case CategoryValidation, CategoryNotFound, CategoryRateLimit, CategoryUnauthorized, CategoryForbidden:
		if len(details) > 0 {
			logEntry.Warn(errorMsg, "details", details)
		} else {
			logEntry.Warn(errorMsg)
		}
	case CategoryTimeout:
		logEntry.Info(errorMsg, "cause", err.ErrBuilder.Unwrap())
	default:
		if cause := err.ErrBuilder.Unwrap(); cause != nil {
			logEntry.Error(errorMsg, "cause", cause)
		} else {
			logEntry.Error(errorMsg)
		}
	}

	if err.StackTrace != "" && gin.Mode() == gin.DebugMode {
		logEntry.Debug("stack_trace", "trace", err.StackTrace)
	}
}

// WrapError wraps an error with additional context
func WrapError(err error, message string, args ...interface{}) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%s: %w", fmt.Sprintf(message, args...), err)
}

// SafeClose closes a resource and logs any error
func SafeClose(closer interface{ Close() error }, resourceName string) {
	if closer == nil {
		return
	}

	if err := closer.Close(); err != nil {
		slog.Warn("Failed to close resource",
			"resource", resourceName,
			"error", err)
	}
}
