package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const settingsKey = "app_settings"

// GetSettings returns the stored settings. Missing or unreadable values yield the defaults.
func (r *Repository) GetSettings(ctx context.Context) (Settings, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, settingsKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}

	settings := DefaultSettings()
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		slog.Warn("Stored settings are malformed, using defaults", "error", err)
		return DefaultSettings(), nil
	}

	return settings, nil
}

// SaveSettings replaces the stored settings
func (r *Repository) SaveSettings(ctx context.Context, settings Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		settingsKey, string(data), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	return nil
}
