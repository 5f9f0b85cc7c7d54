package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

func scanFeedback(row rowScanner) (*Feedback, error) {
	var (
		f           Feedback
		name, email sql.NullString
		createdAt   int64
	)
	if err := row.Scan(&f.ID, &name, &email, &f.Message, &createdAt); err != nil {
		return nil, err
	}
	f.Name = name.String
	f.Email = email.String
	f.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &f, nil
}

// InsertFeedback stores a new feedback entry
func (r *Repository) InsertFeedback(ctx context.Context, f *Feedback) error {
	stmt, err := r.db.GetPreparedStatement("insert_feedback")
	if err != nil {
		return err
	}

	_, err = stmt.ExecContext(ctx, f.ID, nullString(f.Name), nullString(f.Email), f.Message, f.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}

	return nil
}

// GetFeedback loads a feedback entry by id
func (r *Repository) GetFeedback(ctx context.Context, id string) (*Feedback, error) {
	stmt, err := r.db.GetPreparedStatement("get_feedback")
	if err != nil {
		return nil, err
	}

	f, err := scanFeedback(stmt.QueryRowContext(ctx, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feedback: %w", err)
	}

	return f, nil
}

// ListFeedback returns all feedback entries, newest first
func (r *Repository) ListFeedback(ctx context.Context) ([]Feedback, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, email, message, created_at FROM feedback ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer rows.Close()

	entries := make([]Feedback, 0)
	for rows.Next() {
		f, err := scanFeedback(rows)
		if err != nil {
			slog.Warn("Skipping malformed feedback row", "error", err)
			continue
		}
		entries = append(entries, *f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feedback: %w", err)
	}

	return entries, nil
}

// DeleteFeedback removes a feedback entry by id
func (r *Repository) DeleteFeedback(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM feedback WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete feedback: %w", err)
	}

	return expectAffected(res)
}

// DeleteFeedbackBefore removes feedback created before cutoff
func (r *Repository) DeleteFeedbackBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM feedback WHERE created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old feedback: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
