package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const reportColumns = `id, phone_number, company_name, email, zip_code, city_name, description, nerv_score, created_at`

// Repository handles database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*Report, error) {
	var (
		r                     Report
		company, email, descr sql.NullString
		createdAt             int64
	)
	if err := row.Scan(
		&r.ID, &r.PhoneNumber, &company, &email, &r.ZipCode, &r.CityName,
		&descr, &r.NervScore, &createdAt,
	); err != nil {
		return nil, err
	}
	r.CompanyName = company.String
	r.Email = email.String
	r.Description = descr.String
	r.CreatedAt = time.UnixMilli(createdAt).UTC()
	r.RefreshLocation()
	return &r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// InsertReport stores a new report
func (r *Repository) InsertReport(ctx context.Context, report *Report) error {
	stmt, err := r.db.GetPreparedStatement("insert_report")
	if err != nil {
		return err
	}

	_, err = stmt.ExecContext(ctx,
		report.ID, report.PhoneNumber, nullString(report.CompanyName), nullString(report.Email),
		report.ZipCode, report.CityName, nullString(report.Description), report.NervScore,
		report.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}

	return nil
}

// GetReport loads a report by id
func (r *Repository) GetReport(ctx context.Context, id string) (*Report, error) {
	stmt, err := r.db.GetPreparedStatement("get_report")
	if err != nil {
		return nil, err
	}

	report, err := scanReport(stmt.QueryRowContext(ctx, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	return report, nil
}

// UpdateReport writes every mutable column of an existing report
func (r *Repository) UpdateReport(ctx context.Context, report *Report) error {
	stmt, err := r.db.GetPreparedStatement("update_report")
	if err != nil {
		return err
	}

	res, err := stmt.ExecContext(ctx,
		report.PhoneNumber, nullString(report.CompanyName), nullString(report.Email),
		report.ZipCode, report.CityName, nullString(report.Description), report.NervScore,
		report.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update report: %w", err)
	}

	return expectAffected(res)
}

// DeleteReport removes a report by id
func (r *Repository) DeleteReport(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}

	return expectAffected(res)
}

// ListReports returns all reports, newest first
func (r *Repository) ListReports(ctx context.Context) ([]Report, error) {
	return r.queryReports(ctx, `SELECT `+reportColumns+` FROM reports ORDER BY created_at DESC, rowid DESC`)
}

// ListReportsInInsertOrder returns all reports in the order they were stored.
// Aggregations rely on this order for ties.
func (r *Repository) ListReportsInInsertOrder(ctx context.Context) ([]Report, error) {
	return r.queryReports(ctx, `SELECT `+reportColumns+` FROM reports ORDER BY rowid ASC`)
}

// CountReports returns the number of stored reports
func (r *Repository) CountReports(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count reports: %w", err)
	}
	return n, nil
}

// DeleteReportsBefore removes reports created before cutoff
func (r *Repository) DeleteReportsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reports WHERE created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old reports: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// queryReports runs query and scans every row. Unreadable rows are skipped.
func (r *Repository) queryReports(ctx context.Context, query string, args ...any) ([]Report, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	reports := make([]Report, 0)
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			slog.Warn("Skipping malformed report row", "error", err)
			continue
		}
		reports = append(reports, *report)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reports: %w", err)
	}

	return reports, nil
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
