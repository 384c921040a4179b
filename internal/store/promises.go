package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Promise is one commitment tracked for a user. StartDate and EndDate are
// zero when open-ended.
type Promise struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Text         string    `json:"text"`
	HoursPerWeek float64   `json:"hours_per_week"`
	Recurrence   string    `json:"recurrence,omitempty"`
	StartDate    time.Time `json:"start_date,omitempty"`
	EndDate      time.Time `json:"end_date,omitempty"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreatePromise inserts a promise, stamping created/updated times.
func (s *Store) CreatePromise(ctx context.Context, p *Promise) error {
	if p.ID == "" {
		return fmt.Errorf("promise requires an id")
	}
	if p.UserID == "" || p.Text == "" {
		return fmt.Errorf("promise requires a user id and text")
	}

	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.Active = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO promises (id, user_id, text, hours_per_week, recurrence, start_date, end_date, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		p.ID, p.UserID, p.Text, p.HoursPerWeek, p.Recurrence,
		unixOrZero(p.StartDate), unixOrZero(p.EndDate), now.Unix(), now.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert promise: %w", err)
	}

	s.logger.Debug().Str("promise_id", p.ID).Str("user_id", p.UserID).Msg("Promise created")
	return nil
}

// GetPromise fetches one promise scoped to the user.
func (s *Store) GetPromise(ctx context.Context, userID, id string) (*Promise, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, text, hours_per_week, recurrence, start_date, end_date, active, created_at, updated_at
		FROM promises WHERE id = ? AND user_id = ?`, id, userID)
	return scanPromise(row)
}

// ListPromises returns the user's promises, newest first. With activeOnly it
// skips promises that were marked done or deleted.
func (s *Store) ListPromises(ctx context.Context, userID string, activeOnly bool) ([]Promise, error) {
	query := `
		SELECT id, user_id, text, hours_per_week, recurrence, start_date, end_date, active, created_at, updated_at
		FROM promises WHERE user_id = ?`
	if activeOnly {
		query += ` AND active = 1`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list promises: %w", err)
	}
	defer rows.Close()

	return collectPromises(rows)
}

// SearchPromises matches promise text case-insensitively.
func (s *Store) SearchPromises(ctx context.Context, userID, query string, limit int) ([]Promise, error) {
	if limit <= 0 {
		limit = 10
	}
	pattern := "%" + escapeLike(query) + "%"

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, text, hours_per_week, recurrence, start_date, end_date, active, created_at, updated_at
		FROM promises
		WHERE user_id = ? AND active = 1 AND text LIKE ? ESCAPE '\'
		ORDER BY created_at DESC LIMIT ?`, userID, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search promises: %w", err)
	}
	defer rows.Close()

	return collectPromises(rows)
}

// UpdatePromise rewrites the mutable fields of a promise the user owns.
func (s *Store) UpdatePromise(ctx context.Context, p *Promise) error {
	p.UpdatedAt = time.Now()

	result, err := s.db.ExecContext(ctx, `
		UPDATE promises
		SET text = ?, hours_per_week = ?, recurrence = ?, start_date = ?, end_date = ?, active = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		p.Text, p.HoursPerWeek, p.Recurrence,
		unixOrZero(p.StartDate), unixOrZero(p.EndDate), boolToInt(p.Active), p.UpdatedAt.Unix(),
		p.ID, p.UserID)
	if err != nil {
		return fmt.Errorf("failed to update promise: %w", err)
	}
	return requireRow(result)
}

// DeletePromise removes a promise the user owns.
func (s *Store) DeletePromise(ctx context.Context, userID, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM promises WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete promise: %w", err)
	}
	return requireRow(result)
}

// DuePromises returns active promises still running at the given time,
// for the reminder sweep. Promises with a zero end date never expire.
func (s *Store) DuePromises(ctx context.Context, asOf time.Time) ([]Promise, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, text, hours_per_week, recurrence, start_date, end_date, active, created_at, updated_at
		FROM promises
		WHERE active = 1 AND (end_date = 0 OR end_date >= ?)
		ORDER BY user_id, created_at`, asOf.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query due promises: %w", err)
	}
	defer rows.Close()

	return collectPromises(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPromise(row rowScanner) (*Promise, error) {
	var p Promise
	var start, end, created, updated int64
	var active int

	err := row.Scan(&p.ID, &p.UserID, &p.Text, &p.HoursPerWeek, &p.Recurrence,
		&start, &end, &active, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan promise: %w", err)
	}

	p.StartDate = timeOrZero(start)
	p.EndDate = timeOrZero(end)
	p.Active = active != 0
	p.CreatedAt = time.Unix(created, 0)
	p.UpdatedAt = time.Unix(updated, 0)
	return &p, nil
}

func collectPromises(rows *sql.Rows) ([]Promise, error) {
	var promises []Promise
	for rows.Next() {
		p, err := scanPromise(rows)
		if err != nil {
			return nil, err
		}
		promises = append(promises, *p)
	}
	return promises, rows.Err()
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func timeOrZero(unix int64) time.Time {
	if unix == 0 {
		return time.Time{}
	}
	return time.Unix(unix, 0)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// escapeLike escapes LIKE wildcards in user-supplied search text.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}
