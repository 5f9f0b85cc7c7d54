package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Snapshot is the portable JSON form of everything the service stores
type Snapshot struct {
	Reports           []Report           `json:"reports"`
	Feedback          []Feedback         `json:"feedback"`
	CustomPostalCodes []CustomPostalCode `json:"custom_postal_codes"`
	Settings          *Settings          `json:"settings,omitempty"`
}

// ImportResult summarizes what an import wrote and skipped
type ImportResult struct {
	Reports     int `json:"reports"`
	Feedback    int `json:"feedback"`
	PostalCodes int `json:"postal_codes"`
	Skipped     int `json:"skipped"`
}

// ParseSnapshot decodes data. Malformed input is treated as an empty snapshot.
func ParseSnapshot(data []byte) *Snapshot {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		slog.Warn("Snapshot is malformed, treating as empty", "error", err)
		return &Snapshot{}
	}
	return &snap
}

// Export reads every table into a snapshot
func (r *Repository) Export(ctx context.Context) (*Snapshot, error) {
	reports, err := r.ListReportsInInsertOrder(ctx)
	if err != nil {
		return nil, err
	}

	feedback, err := r.ListFeedback(ctx)
	if err != nil {
		return nil, err
	}

	codes, err := r.ListCustomPostalCodes(ctx)
	if err != nil {
		return nil, err
	}

	settings, err := r.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Reports:           reports,
		Feedback:          feedback,
		CustomPostalCodes: codes,
		Settings:          &settings,
	}, nil
}

// ReservedZip reports whether a postal code belongs to the built-in table and
// must not get an overlay row.
type ReservedZip func(zip string) bool

// Import upserts the snapshot contents in one transaction. Entries without an
// id or required fields are skipped, as are malformed zips and overlay rows for
// reserved codes. Scores are clamped. reserved may be nil.
func (r *Repository) Import(ctx context.Context, snap *Snapshot, now time.Time, reserved ReservedZip) (*ImportResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin import: %w", err)
	}
	defer tx.Rollback()

	result := &ImportResult{}

	for _, rep := range snap.Reports {
		if strings.TrimSpace(rep.ID) == "" || strings.TrimSpace(rep.PhoneNumber) == "" || !IsValidZip(rep.ZipCode) {
			result.Skipped++
			continue
		}
		created := rep.CreatedAt
		if created.IsZero() {
			created = now
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO reports (`+reportColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				phone_number = excluded.phone_number,
				company_name = excluded.company_name,
				email = excluded.email,
				zip_code = excluded.zip_code,
				city_name = excluded.city_name,
				description = excluded.description,
				nerv_score = excluded.nerv_score,
				created_at = excluded.created_at`,
			rep.ID, rep.PhoneNumber, nullString(rep.CompanyName), nullString(rep.Email),
			rep.ZipCode, rep.CityName, nullString(rep.Description), ClampScore(rep.NervScore),
			created.UnixMilli(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to import report %s: %w", rep.ID, err)
		}
		result.Reports++
	}

	for _, f := range snap.Feedback {
		if strings.TrimSpace(f.ID) == "" || strings.TrimSpace(f.Message) == "" {
			result.Skipped++
			continue
		}
		created := f.CreatedAt
		if created.IsZero() {
			created = now
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO feedback (id, name, email, message, created_at) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				email = excluded.email,
				message = excluded.message,
				created_at = excluded.created_at`,
			f.ID, nullString(f.Name), nullString(f.Email), f.Message, created.UnixMilli())
		if err != nil {
			return nil, fmt.Errorf("failed to import feedback %s: %w", f.ID, err)
		}
		result.Feedback++
	}

	for _, c := range snap.CustomPostalCodes {
		if !IsValidZip(c.ZipCode) || strings.TrimSpace(c.CityName) == "" || (reserved != nil && reserved(c.ZipCode)) {
			result.Skipped++
			continue
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO custom_postal_codes (zip_code, city_name, created_at) VALUES (?, ?, ?)
			ON CONFLICT(zip_code) DO UPDATE SET city_name = excluded.city_name`,
			c.ZipCode, strings.TrimSpace(c.CityName), now.UnixMilli())
		if err != nil {
			return nil, fmt.Errorf("failed to import postal code %s: %w", c.ZipCode, err)
		}
		result.PostalCodes++
	}

	if snap.Settings != nil {
		data, err := json.Marshal(snap.Settings)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal settings: %w", err)
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			settingsKey, string(data), now.UnixMilli())
		if err != nil {
			return nil, fmt.Errorf("failed to import settings: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit import: %w", err)
	}

	slog.Info("Snapshot imported",
		"reports", result.Reports,
		"feedback", result.Feedback,
		"postal_codes", result.PostalCodes,
		"skipped", result.Skipped)

	return result, nil
}
