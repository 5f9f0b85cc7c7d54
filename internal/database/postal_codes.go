package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UpsertCustomPostalCode stores or replaces a user-contributed zip mapping
func (r *Repository) UpsertCustomPostalCode(ctx context.Context, zip, city string, now time.Time) error {
	stmt, err := r.db.GetPreparedStatement("upsert_postal_code")
	if err != nil {
		return err
	}

	if _, err := stmt.ExecContext(ctx, zip, city, now.UnixMilli()); err != nil {
		return fmt.Errorf("failed to save postal code: %w", err)
	}

	return nil
}

// GetCustomCity looks up a user-contributed zip mapping
func (r *Repository) GetCustomCity(ctx context.Context, zip string) (string, error) {
	stmt, err := r.db.GetPreparedStatement("get_postal_code")
	if err != nil {
		return "", err
	}

	var city string
	err = stmt.QueryRowContext(ctx, zip).Scan(&city)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get postal code: %w", err)
	}

	return city, nil
}

// ListCustomPostalCodes returns every user-contributed mapping ordered by zip
func (r *Repository) ListCustomPostalCodes(ctx context.Context) ([]CustomPostalCode, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT zip_code, city_name, created_at FROM custom_postal_codes ORDER BY zip_code`)
	if err != nil {
		return nil, fmt.Errorf("failed to query postal codes: %w", err)
	}
	defer rows.Close()

	codes := make([]CustomPostalCode, 0)
	for rows.Next() {
		var (
			c         CustomPostalCode
			createdAt int64
		)
		if err := rows.Scan(&c.ZipCode, &c.CityName, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan postal code: %w", err)
		}
		c.CreatedAt = time.UnixMilli(createdAt).UTC()
		codes = append(codes, c)
	}

	return codes, rows.Err()
}
