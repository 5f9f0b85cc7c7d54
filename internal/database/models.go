package database

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

const (
	MinScore = 0
	MaxScore = 10
)

var zipPattern = regexp.MustCompile(`^\d{5}$`)

// IsValidZip reports whether zip is exactly five digits
func IsValidZip(zip string) bool {
	return zipPattern.MatchString(zip)
}

// Report is one sighting of an advertising card left on a parked car
type Report struct {
	ID          string    `json:"id" db:"id"`
	PhoneNumber string    `json:"phone_number" db:"phone_number"`
	CompanyName string    `json:"company_name,omitempty" db:"company_name"`
	Email       string    `json:"email,omitempty" db:"email"`
	ZipCode     string    `json:"zip_code" db:"zip_code"`
	CityName    string    `json:"city_name" db:"city_name"`
	Location    string    `json:"location" db:"-"`
	Description string    `json:"description,omitempty" db:"description"`
	NervScore   int       `json:"nerv_score" db:"nerv_score"`
	CreatedAt   time.Time `json:"timestamp" db:"created_at"`
}

// ReportUpdate holds a partial report change. Nil fields are left untouched.
type ReportUpdate struct {
	PhoneNumber *string `json:"phone_number,omitempty"`
	CompanyName *string `json:"company_name,omitempty"`
	Email       *string `json:"email,omitempty"`
	ZipCode     *string `json:"zip_code,omitempty"`
	CityName    *string `json:"city_name,omitempty"`
	Description *string `json:"description,omitempty"`
	NervScore   *int    `json:"nerv_score,omitempty"`
}

// Feedback is a free-text message sent through the public feedback form
type Feedback struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name,omitempty" db:"name"`
	Email     string    `json:"email,omitempty" db:"email"`
	Message   string    `json:"message" db:"message"`
	CreatedAt time.Time `json:"timestamp" db:"created_at"`
}

// CustomPostalCode is a user-contributed zip to city mapping
type CustomPostalCode struct {
	ZipCode   string    `json:"zip_code" db:"zip_code"`
	CityName  string    `json:"city_name" db:"city_name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Settings holds site-wide switches
type Settings struct {
	FeedbackEnabled bool `json:"feedback_enabled"`
}

// DefaultSettings is used when nothing (or nothing readable) is stored
func DefaultSettings() Settings {
	return Settings{FeedbackEnabled: true}
}

// NewReport creates a report with a generated id and creation time
func NewReport(phone, company, email, zip, city, description string, score int, now time.Time) *Report {
	r := &Report{
		ID:          uuid.New().String(),
		PhoneNumber: phone,
		CompanyName: company,
		Email:       email,
		ZipCode:     zip,
		CityName:    city,
		Description: description,
		NervScore:   ClampScore(score),
		CreatedAt:   now.UTC().Truncate(time.Millisecond),
	}
	r.RefreshLocation()
	return r
}

// NewFeedback creates a feedback entry with a generated id and creation time
func NewFeedback(name, email, message string, now time.Time) *Feedback {
	return &Feedback{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		Message:   message,
		CreatedAt: now.UTC().Truncate(time.Millisecond),
	}
}

// FormatLocation renders the "City (ZIP)" label shown next to a report
func FormatLocation(city, zip string) string {
	return fmt.Sprintf("%s (%s)", city, zip)
}

// RefreshLocation recomputes the derived location label
func (r *Report) RefreshLocation() {
	r.Location = FormatLocation(r.CityName, r.ZipCode)
}

// Apply merges a partial update into the report
func (r *Report) Apply(u ReportUpdate) {
	if u.PhoneNumber != nil {
		r.PhoneNumber = *u.PhoneNumber
	}
	if u.CompanyName != nil {
		r.CompanyName = *u.CompanyName
	}
	if u.Email != nil {
		r.Email = *u.Email
	}
	if u.ZipCode != nil {
		r.ZipCode = *u.ZipCode
	}
	if u.CityName != nil {
		r.CityName = *u.CityName
	}
	if u.Description != nil {
		r.Description = *u.Description
	}
	if u.NervScore != nil {
		r.NervScore = ClampScore(*u.NervScore)
	}
	r.RefreshLocation()
}

// ClampScore keeps a score inside [MinScore, MaxScore]
func ClampScore(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}
