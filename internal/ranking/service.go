package ranking

import (
	"context"
	"log/slog"
	"time"

	"github.com/ZanzyTHEbar/karten-melder/internal/database"
	"github.com/ZanzyTHEbar/karten-melder/internal/errors"
	"github.com/jonboulle/clockwork"
)

// ReportSource provides reports in insertion order
type ReportSource interface {
	ListReportsInInsertOrder(ctx context.Context) ([]database.Report, error)
}

// HomeView is a ranking shown on the landing page and kept warm
type HomeView struct {
	Days  int
	Limit int
}

// Service computes city and phone rankings on top of the report store
type Service struct {
	source    ReportSource
	cache     *RankingCache
	clock     clockwork.Clock
	homeViews []HomeView
}

// NewService creates a new ranking service
func NewService(source ReportSource, cache *RankingCache, clock clockwork.Clock, homeViews ...HomeView) *Service {
	return &Service{
		source:    source,
		cache:     cache,
		clock:     clock,
		homeViews: homeViews,
	}
}

func (s *Service) reports(ctx context.Context) ([]database.Report, error) {
	reports, err := s.source.ListReportsInInsertOrder(ctx)
	if err != nil {
		return nil, errors.NewInternalError("failed to load reports", err)
	}
	return reports, nil
}

// CityRanking returns the cities with the most reports in the last days days.
// Days <= 0 covers all time and limit <= 0 returns every city.
func (s *Service) CityRanking(ctx context.Context, days, limit int) ([]CityStat, error) {
	if days < 0 {
		days = 0
	}
	if limit < 0 {
		limit = 0
	}

	generation := s.cache.Generation()
	if stats, ok := s.cache.GetCityRanking(days, limit); ok {
		return stats, nil
	}

	reports, err := s.reports(ctx)
	if err != nil {
		return nil, err
	}

	stats := CityStats(reports, Cutoff(s.clock.Now(), days))
	if limit > 0 && len(stats) > limit {
		stats = stats[:limit]
	}

	s.cache.SetCityRanking(generation, days, limit, stats)
	return stats, nil
}

// CityNumbers ranks the phone numbers reported in city
func (s *Service) CityNumbers(ctx context.Context, city string) ([]NumberStat, error) {
	generation := s.cache.Generation()
	if stats, ok := s.cache.GetCityNumbers(city); ok {
		return stats, nil
	}

	reports, err := s.reports(ctx)
	if err != nil {
		return nil, err
	}

	stats := TopNumbersByCity(reports, city)
	s.cache.SetCityNumbers(generation, city, stats)
	return stats, nil
}

// PhoneStats returns the count and average score for phone
func (s *Service) PhoneStats(ctx context.Context, phone string) (PhoneStat, error) {
	generation := s.cache.Generation()
	if stat, ok := s.cache.GetPhoneStats(phone); ok {
		return stat, nil
	}

	reports, err := s.reports(ctx)
	if err != nil {
		return PhoneStat{}, err
	}

	stat := PhoneStats(reports, phone)
	s.cache.SetPhoneStats(generation, phone, stat)
	return stat, nil
}

// PhoneProfile returns the activity profile for phone
func (s *Service) PhoneProfile(ctx context.Context, phone string) (*PhoneProfile, error) {
	reports, err := s.reports(ctx)
	if err != nil {
		return nil, err
	}

	profile, ok := BuildPhoneProfile(reports, phone)
	if !ok {
		return nil, errors.NewNotFoundError("phone number", phone)
	}
	return profile, nil
}

// Invalidate drops cached rankings after a write
func (s *Service) Invalidate() {
	s.cache.InvalidateAll()
}

// WarmCache pre-computes the home page rankings
func (s *Service) WarmCache(ctx context.Context) {
	slog.Debug("Warming ranking cache", "views", len(s.homeViews))

	for _, view := range s.homeViews {
		if _, err := s.CityRanking(ctx, view.Days, view.Limit); err != nil {
			slog.Error("Failed to warm ranking cache",
				"error", err, "days", view.Days, "limit", view.Limit)
		}
	}
}

// AutoRefresh rebuilds the home page rankings every interval until ctx is done
func (s *Service) AutoRefresh(ctx context.Context, interval time.Duration) {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.cache.InvalidateAll()
			s.WarmCache(ctx)
		}
	}
}

// CacheStats exposes ranking cache statistics
func (s *Service) CacheStats() map[string]interface{} {
	return s.cache.GetStats()
}
