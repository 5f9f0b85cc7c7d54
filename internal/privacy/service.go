package privacy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ZanzyTHEbar/karten-melder/internal/database"
	"github.com/jonboulle/clockwork"
)

// Store deletes records past their retention period
type Store interface {
	DeleteReportsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteFeedbackBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PurgeRecorder receives retention counts
type PurgeRecorder interface {
	RecordRetentionPurge(reports, feedback int64)
}

// CleanupResult reports what a retention run removed
type CleanupResult struct {
	Cutoff          time.Time `json:"cutoff"`
	ReportsDeleted  int64     `json:"reports_deleted"`
	FeedbackDeleted int64     `json:"feedback_deleted"`
	Disabled        bool      `json:"disabled,omitempty"`
}

// Policy describes what is stored and for how long
type Policy struct {
	RetentionDays   int      `json:"retention_days"`
	RetentionActive bool     `json:"retention_active"`
	PublicFields    []string `json:"public_fields"`
	PrivateFields   []string `json:"private_fields"`
	CleanupSchedule string   `json:"cleanup_schedule"`
}

// PrivacyService applies the retention policy and redacts private report data
type PrivacyService struct {
	store         Store
	recorder      PurgeRecorder
	clock         clockwork.Clock
	retentionDays int
}

// NewService creates a new privacy service. retentionDays <= 0 disables deletion.
func NewService(store Store, recorder PurgeRecorder, clock clockwork.Clock, retentionDays int) *PrivacyService {
	if retentionDays < 0 {
		retentionDays = 0
	}
	return &PrivacyService{
		store:         store,
		recorder:      recorder,
		clock:         clock,
		retentionDays: retentionDays,
	}
}

// RetentionDays returns the configured retention period
func (ps *PrivacyService) RetentionDays() int {
	return ps.retentionDays
}

// Policy returns the public retention policy
func (ps *PrivacyService) Policy() Policy {
	schedule := "disabled"
	if ps.retentionDays > 0 {
		schedule = "daily"
	}
	return Policy{
		RetentionDays:   ps.retentionDays,
		RetentionActive: ps.retentionDays > 0,
		PublicFields:    []string{"phone_number", "company_name", "zip_code", "city_name", "description", "nerv_score", "timestamp"},
		PrivateFields:   []string{"email", "feedback"},
		CleanupSchedule: schedule,
	}
}

// RedactReport returns a copy of report that is safe to show publicly
func RedactReport(report database.Report) database.Report {
	report.Email = ""
	return report
}

// RedactReports redacts every report in place and returns the slice
func RedactReports(reports []database.Report) []database.Report {
	for i := range reports {
		reports[i] = RedactReport(reports[i])
	}
	return reports
}

// Cleanup deletes reports and feedback older than the retention period
func (ps *PrivacyService) Cleanup(ctx context.Context) (*CleanupResult, error) {
	if ps.retentionDays <= 0 {
		return &CleanupResult{Disabled: true}, nil
	}

	cutoff := ps.clock.Now().Add(-time.Duration(ps.retentionDays) * 24 * time.Hour)

	reports, err := ps.store.DeleteReportsBefore(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to delete old reports: %w", err)
	}

	feedback, err := ps.store.DeleteFeedbackBefore(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to delete old feedback: %w", err)
	}

	if ps.recorder != nil {
		ps.recorder.RecordRetentionPurge(reports, feedback)
	}

	slog.Info("Data cleanup completed",
		"cutoff_date", cutoff,
		"reports_deleted", reports,
		"feedback_deleted", feedback,
	)

	return &CleanupResult{
		Cutoff:          cutoff,
		ReportsDeleted:  reports,
		FeedbackDeleted: feedback,
	}, nil
}

// ScheduleCleanup runs Cleanup once a day until ctx is done. afterCleanup,
// when set, is called after every run that deleted something.
func (ps *PrivacyService) ScheduleCleanup(ctx context.Context, afterCleanup func()) {
	if ps.retentionDays <= 0 {
		slog.Info("Data retention disabled")
		return
	}

	slog.Info("Scheduling data cleanup", "retention_days", ps.retentionDays)

	run := func() {
		result, err := ps.Cleanup(ctx)
		if err != nil {
			slog.Error("Scheduled data cleanup failed", "error", err)
			return
		}
		if afterCleanup != nil && result.ReportsDeleted+result.FeedbackDeleted > 0 {
			afterCleanup()
		}
	}

	run()

	ticker := ps.clock.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			run()
		}
	}
}
