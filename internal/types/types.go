package types

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/karten-melder/internal/database"
)

// Score is an admin-entered Nerv-Score. It accepts a JSON number or a numeric
// string; anything else reads as 0.
type Score int

// UnmarshalJSON implements json.Unmarshaler
func (s *Score) UnmarshalJSON(data []byte) error {
	*s = 0

	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*s = Score(truncate(f))
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return nil
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(str), 64); err == nil {
		*s = Score(truncate(f))
	}
	return nil
}

// truncate drops the fraction and clamps in float space so huge values
// cannot overflow int.
func truncate(f float64) int {
	switch {
	case math.IsNaN(f):
		return 0
	case f > database.MaxScore:
		return database.MaxScore
	case f < database.MinScore:
		return database.MinScore
	}
	return int(math.Trunc(f))
}

// SubmitReportRequest is the public report form
type SubmitReportRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required" example:"0176 12345678"`
	CompanyName string `json:"company_name" example:"Autoankauf Schmidt"`
	Email       string `json:"email" example:"melder@example.org"`
	ZipCode     string `json:"zip_code" binding:"required" example:"01067"`
	// CityName is only used when the zip code is unknown
	CityName    string `json:"city_name" example:"Dresden"`
	Description string `json:"description"`
	NervScore   *int   `json:"nerv_score" example:"7"`
}

// AdminReportRequest creates a report from the admin console
type AdminReportRequest struct {
	PhoneNumber string `json:"phone_number"`
	CompanyName string `json:"company_name"`
	Email       string `json:"email"`
	ZipCode     string `json:"zip_code"`
	CityName    string `json:"city_name"`
	Description string `json:"description"`
	NervScore   *Score `json:"nerv_score" swaggertype:"integer"`
}

// UpdateReportRequest is a partial admin edit. Omitted fields are unchanged.
type UpdateReportRequest struct {
	PhoneNumber *string `json:"phone_number"`
	CompanyName *string `json:"company_name"`
	Email       *string `json:"email"`
	ZipCode     *string `json:"zip_code"`
	CityName    *string `json:"city_name"`
	Description *string `json:"description"`
	NervScore   *Score  `json:"nerv_score" swaggertype:"integer"`
}

// ToUpdate converts the request into a store update
func (r UpdateReportRequest) ToUpdate() database.ReportUpdate {
	u := database.ReportUpdate{
		PhoneNumber: r.PhoneNumber,
		CompanyName: r.CompanyName,
		Email:       r.Email,
		ZipCode:     r.ZipCode,
		CityName:    r.CityName,
		Description: r.Description,
	}
	if r.NervScore != nil {
		score := int(*r.NervScore)
		u.NervScore = &score
	}
	return u
}

// FeedbackRequest is the public feedback form
type FeedbackRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message" example:"Tolle Idee!"`
}

// SettingsRequest updates site-wide switches
type SettingsRequest struct {
	FeedbackEnabled *bool `json:"feedback_enabled" binding:"required"`
}

// LoginRequest is the admin login form
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// HealthResponse is returned by the health endpoint
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Reports   int       `json:"reports"`
	Redis     bool      `json:"redis"`

	Cache     map[string]interface{} `json:"cache,omitempty"`
	RateLimit map[string]interface{} `json:"rate_limit,omitempty"`
	Database  map[string]interface{} `json:"database,omitempty"`
}

// ListResponse wraps a list with its size
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

// NewListResponse builds a ListResponse. A nil slice is rendered as an empty list.
func NewListResponse[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, Total: len(items)}
}

// MessageResponse is a plain confirmation
type MessageResponse struct {
	Message string `json:"message"`
}
