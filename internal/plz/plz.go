package plz

import (
	"context"
	_ "embed"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/karten-melder/internal/database"
	"github.com/ZanzyTHEbar/karten-melder/internal/errors"
	"github.com/jonboulle/clockwork"
	"gopkg.in/yaml.v3"
)

//go:embed data/plz.yaml
var coreTableYAML []byte

// Store persists user-contributed postal codes
type Store interface {
	UpsertCustomPostalCode(ctx context.Context, zip, city string, now time.Time) error
	GetCustomCity(ctx context.Context, zip string) (string, error)
	ListCustomPostalCodes(ctx context.Context) ([]database.CustomPostalCode, error)
}

// Service resolves 5-digit postal codes to city names
type Service struct {
	core  map[string]string
	store Store
	clock clockwork.Clock
}

type coreTable struct {
	PostalCodes map[string]string `yaml:"postal_codes"`
}

// LoadCoreTable parses the embedded postal code table
func LoadCoreTable() (map[string]string, error) {
	return parseCoreTable(coreTableYAML)
}

func parseCoreTable(data []byte) (map[string]string, error) {
	var table coreTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse postal code table: %w", err)
	}

	core := make(map[string]string, len(table.PostalCodes))
	for zip, city := range table.PostalCodes {
		if !IsValid(zip) || strings.TrimSpace(city) == "" {
			slog.Warn("Ignoring invalid core postal code", "zip", zip, "city", city)
			continue
		}
		core[zip] = strings.TrimSpace(city)
	}
	return core, nil
}

// NewService creates a lookup over the embedded table and store
func NewService(store Store, clock clockwork.Clock) (*Service, error) {
	core, err := LoadCoreTable()
	if err != nil {
		return nil, err
	}

	return &Service{core: core, store: store, clock: clock}, nil
}

// IsValid reports whether zip is exactly five digits
func IsValid(zip string) bool {
	return database.IsValidZip(zip)
}

// IsCore reports whether zip belongs to the built-in table
func (s *Service) IsCore(zip string) bool {
	_, ok := s.core[zip]
	return ok
}

// City resolves zip against the core table, then the user overlay
func (s *Service) City(ctx context.Context, zip string) (string, error) {
	if city, ok := s.core[zip]; ok {
		return city, nil
	}
	if !IsValid(zip) {
		return "", errors.NewValidationError("Postal code must be 5 digits", "zip_code")
	}

	city, err := s.store.GetCustomCity(ctx, zip)
	if stderrors.Is(err, database.ErrNotFound) {
		return "", errors.NewNotFoundError("postal code", zip)
	}
	if err != nil {
		return "", errors.NewInternalError("failed to look up postal code", err)
	}

	return city, nil
}

// AddCustom stores a user-contributed mapping. Core codes are never overridden.
func (s *Service) AddCustom(ctx context.Context, zip, city string) error {
	city = strings.TrimSpace(city)
	if !IsValid(zip) {
		return errors.NewValidationError("Postal code must be 5 digits", "zip_code")
	}
	if city == "" {
		return errors.NewValidationError("City name is required", "city_name")
	}
	if s.IsCore(zip) {
		slog.Debug("Not overriding core postal code", "zip", zip)
		return nil
	}

	if err := s.store.UpsertCustomPostalCode(ctx, zip, city, s.clock.Now()); err != nil {
		return errors.NewInternalError("failed to save postal code", err)
	}

	slog.Info("Custom postal code saved", "zip", zip, "city", city)
	return nil
}

// ListCustom returns the user overlay ordered by zip
func (s *Service) ListCustom(ctx context.Context) ([]database.CustomPostalCode, error) {
	codes, err := s.store.ListCustomPostalCodes(ctx)
	if err != nil {
		return nil, errors.NewInternalError("failed to list postal codes", err)
	}
	return codes, nil
}

// CoreCodes returns the built-in zips in ascending order
func (s *Service) CoreCodes() []string {
	zips := make([]string, 0, len(s.core))
	for zip := range s.core {
		zips = append(zips, zip)
	}
	sort.Strings(zips)
	return zips
}
