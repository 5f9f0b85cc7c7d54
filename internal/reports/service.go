package reports

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"github.com/ZanzyTHEbar/karten-melder/internal/database"
	"github.com/ZanzyTHEbar/karten-melder/internal/errors"
	"github.com/ZanzyTHEbar/karten-melder/internal/plz"
	"github.com/ZanzyTHEbar/karten-melder/internal/ranking"
	"github.com/ZanzyTHEbar/karten-melder/internal/types"
	"github.com/jonboulle/clockwork"
)

const (
	DefaultScore     = 5
	MinPublicScore   = 1
	MaxPublicScore   = 10
	AdminDescription = "Manuell durch Admin hinzugefügt"
)

// Sort options for List
const (
	SortDateDesc  = "date_desc"
	SortScoreDesc = "score_desc"
	SortScoreAsc  = "score_asc"
)

const (
	fieldPhoneNumber = "phone_number"
	fieldZipCode     = "zip_code"
	fieldCityName    = "city_name"
	fieldNervScore   = "nerv_score"
	fieldEmail       = "email"
	fieldCompanyName = "company_name"
	fieldDescription = "description"
	fieldSort        = "sort"
)

// Store persists reports
type Store interface {
	InsertReport(ctx context.Context, report *database.Report) error
	GetReport(ctx context.Context, id string) (*database.Report, error)
	UpdateReport(ctx context.Context, report *database.Report) error
	DeleteReport(ctx context.Context, id string) error
	ListReports(ctx context.Context) ([]database.Report, error)
}

// PostalCodes resolves and records zip codes
type PostalCodes interface {
	City(ctx context.Context, zip string) (string, error)
	AddCustom(ctx context.Context, zip, city string) error
}

// Rankings is the part of the ranking service that reacts to writes
type Rankings interface {
	PhoneStats(ctx context.Context, phone string) (ranking.PhoneStat, error)
	Invalidate()
}

// InputChecker validates and cleans free text
type InputChecker interface {
	ValidateFields(fields map[string]string, messages map[string]string) error
	SanitizeInput(input string) string
}

// Counter records created reports
type Counter interface {
	IncrementReportsCreated()
}

// SubmitResult is returned after a public submission
type SubmitResult struct {
	Report database.Report   `json:"report"`
	Stats  ranking.PhoneStat `json:"stats"`
	Tier   ranking.Tier      `json:"tier"`
	Level  string            `json:"level"`
}

// ListOptions filters and orders the admin report list
type ListOptions struct {
	Search string
	Sort   string
}

// Service implements report submission and moderation
type Service struct {
	store    Store
	postal   PostalCodes
	rankings Rankings
	input    InputChecker
	counter  Counter
	clock    clockwork.Clock
}

// NewService creates a new report service. counter may be nil.
func NewService(store Store, postal PostalCodes, rankings Rankings, input InputChecker, counter Counter, clock clockwork.Clock) *Service {
	return &Service{
		store:    store,
		postal:   postal,
		rankings: rankings,
		input:    input,
		counter:  counter,
		clock:    clock,
	}
}

// CleanPhone keeps digits, '+' and spaces
func CleanPhone(phone string) string {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '+' || r == ' ' {
			return r
		}
		return -1
	}, phone)
	return strings.TrimSpace(cleaned)
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}

// Submit stores a report from the public form and returns the phone's running stats
func (s *Service) Submit(ctx context.Context, req types.SubmitReportRequest) (*SubmitResult, error) {
	phone := CleanPhone(req.PhoneNumber)
	if !hasDigit(phone) {
		return nil, errors.NewValidationError("Bitte eine gültige Telefonnummer angeben", fieldPhoneNumber)
	}

	zip := strings.TrimSpace(req.ZipCode)
	if !plz.IsValid(zip) {
		return nil, errors.NewValidationError("Die PLZ muss aus 5 Ziffern bestehen", fieldZipCode)
	}

	score := DefaultScore
	if req.NervScore != nil {
		score = *req.NervScore
		if score < MinPublicScore || score > MaxPublicScore {
			return nil, errors.NewValidationError(
				fmt.Sprintf("Der Nerv-Score muss zwischen %d und %d liegen", MinPublicScore, MaxPublicScore), fieldNervScore)
		}
	}

	if err := s.checkText(req.CompanyName, req.Email, req.CityName, req.Description); err != nil {
		return nil, err
	}

	email := strings.TrimSpace(req.Email)
	if email != "" && !strings.Contains(email, "@") {
		return nil, errors.NewValidationError("Bitte eine gültige E-Mail-Adresse angeben", fieldEmail)
	}

	city, err := s.resolveCity(ctx, zip, req.CityName)
	if err != nil {
		return nil, err
	}

	report := database.NewReport(
		phone,
		s.input.SanitizeInput(req.CompanyName),
		email,
		zip,
		city,
		s.input.SanitizeInput(req.Description),
		score,
		s.clock.Now(),
	)

	if err := s.insert(ctx, report); err != nil {
		return nil, err
	}

	stats, err := s.rankings.PhoneStats(ctx, phone)
	if err != nil {
		return nil, err
	}

	slog.Info("Report submitted",
		"report_id", report.ID,
		"zip_code", report.ZipCode,
		"nerv_score", report.NervScore,
		"phone_reports", stats.Count,
	)

	return &SubmitResult{
		Report: *report,
		Stats:  stats,
		Tier:   ranking.TierFor(stats.Count),
		Level:  ranking.ScoreLevel(stats.AvgScore),
	}, nil
}

// resolveCity prefers the known city for zip and otherwise records the manual one
func (s *Service) resolveCity(ctx context.Context, zip, manual string) (string, error) {
	city, err := s.postal.City(ctx, zip)
	if err == nil {
		return city, nil
	}
	if !errors.IsNotFound(err) {
		return "", err
	}

	manual = s.input.SanitizeInput(manual)
	if manual == "" {
		return "", errors.NewValidationError(
			fmt.Sprintf("Unbekannte PLZ %s: bitte den Ortsnamen angeben", zip), fieldCityName)
	}

	if err := s.postal.AddCustom(ctx, zip, manual); err != nil {
		return "", err
	}
	return manual, nil
}

func (s *Service) checkText(company, email, city, description string) error {
	return s.input.ValidateFields(
		map[string]string{
			fieldCompanyName: company,
			fieldEmail:       email,
			fieldCityName:    city,
		},
		map[string]string{
			fieldDescription: description,
		},
	)
}

func (s *Service) insert(ctx context.Context, report *database.Report) error {
	if err := s.store.InsertReport(ctx, report); err != nil {
		return errors.NewInternalError("failed to save report", err)
	}
	if s.counter != nil {
		s.counter.IncrementReportsCreated()
	}
	s.rankings.Invalidate()
	return nil
}

// Create adds a report from the admin console. The score is clamped rather than rejected.
func (s *Service) Create(ctx context.Context, req types.AdminReportRequest) (*database.Report, error) {
	phone := strings.TrimSpace(req.PhoneNumber)
	city := strings.TrimSpace(req.CityName)
	zip := strings.TrimSpace(req.ZipCode)

	missing := make(map[string]string)
	if phone == "" {
		missing[fieldPhoneNumber] = "required"
	}
	if city == "" {
		missing[fieldCityName] = "required"
	}
	if zip == "" {
		missing[fieldZipCode] = "required"
	}
	if len(missing) > 0 {
		return nil, errors.NewValidationErrorWithMap(missing)
	}

	if err := s.checkText(req.CompanyName, req.Email, city, req.Description); err != nil {
		return nil, err
	}

	score := DefaultScore
	if req.NervScore != nil {
		score = int(*req.NervScore)
	}

	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = AdminDescription
	}

	report := database.NewReport(
		phone,
		strings.TrimSpace(req.CompanyName),
		strings.TrimSpace(req.Email),
		zip,
		city,
		description,
		score,
		s.clock.Now(),
	)

	if err := s.insert(ctx, report); err != nil {
		return nil, err
	}

	slog.Info("Report created by admin", "report_id", report.ID)
	return report, nil
}

// Get returns a single report
func (s *Service) Get(ctx context.Context, id string) (*database.Report, error) {
	report, err := s.store.GetReport(ctx, id)
	if err != nil {
		return nil, storeError(err, id, "failed to load report")
	}
	return report, nil
}

// Update merges a partial change into a report
func (s *Service) Update(ctx context.Context, id string, update database.ReportUpdate) (*database.Report, error) {
	report, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	report.Apply(update)

	if strings.TrimSpace(report.PhoneNumber) == "" {
		return nil, errors.NewValidationError("phone number must not be empty", fieldPhoneNumber)
	}
	if err := s.checkText(report.CompanyName, report.Email, report.CityName, report.Description); err != nil {
		return nil, err
	}

	if err := s.store.UpdateReport(ctx, report); err != nil {
		return nil, storeError(err, id, "failed to update report")
	}
	s.rankings.Invalidate()

	slog.Info("Report updated", "report_id", id)
	return report, nil
}

// Delete removes a report
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteReport(ctx, id); err != nil {
		return storeError(err, id, "failed to delete report")
	}
	s.rankings.Invalidate()

	slog.Info("Report deleted", "report_id", id)
	return nil
}

// List returns reports matching opts.Search in opts.Sort order
func (s *Service) List(ctx context.Context, opts ListOptions) ([]database.Report, error) {
	sortOption, err := ParseSort(opts.Sort)
	if err != nil {
		return nil, err
	}

	all, err := s.store.ListReports(ctx)
	if err != nil {
		return nil, errors.NewInternalError("failed to list reports", err)
	}

	matched := Search(all, opts.Search)
	SortReports(matched, sortOption)
	return matched, nil
}

// ParseSort validates a sort option. An empty option means date_desc.
func ParseSort(option string) (string, error) {
	switch option {
	case "":
		return SortDateDesc, nil
	case SortDateDesc, SortScoreDesc, SortScoreAsc:
		return option, nil
	default:
		return "", errors.NewValidationError(
			fmt.Sprintf("unknown sort option %q", option), fieldSort)
	}
}

// Search keeps reports whose phone contains term, or whose location or
// company contains it ignoring case. An empty term keeps everything.
func Search(reports []database.Report, term string) []database.Report {
	if term == "" {
		return reports
	}

	lower := strings.ToLower(term)
	matched := make([]database.Report, 0, len(reports))
	for _, r := range reports {
		if strings.Contains(r.PhoneNumber, term) ||
			strings.Contains(strings.ToLower(r.Location), lower) ||
			strings.Contains(strings.ToLower(r.CompanyName), lower) {
			matched = append(matched, r)
		}
	}
	return matched
}

// SortReports orders reports in place
func SortReports(reports []database.Report, option string) {
	switch option {
	case SortScoreDesc:
		sort.SliceStable(reports, func(i, j int) bool {
			return reports[i].NervScore > reports[j].NervScore
		})
	case SortScoreAsc:
		sort.SliceStable(reports, func(i, j int) bool {
			return reports[i].NervScore < reports[j].NervScore
		})
	default:
		sort.SliceStable(reports, func(i, j int) bool {
			return reports[i].CreatedAt.After(reports[j].CreatedAt)
		})
	}
}

func storeError(err error, id, message string) error {
	if stderrors.Is(err, database.ErrNotFound) {
		return errors.NewNotFoundError("report", id)
	}
	return errors.NewInternalError(message, err)
}
