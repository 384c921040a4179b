package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Action is one logged event against a promise: time spent, a completion,
// or a note.
type Action struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	PromiseID string    `json:"promise_id,omitempty"`
	Kind      string    `json:"kind"`
	Note      string    `json:"note,omitempty"`
	Hours     float64   `json:"hours,omitempty"`
	LoggedAt  time.Time `json:"logged_at"`
}

// LogAction records one action.
func (s *Store) LogAction(ctx context.Context, a *Action) error {
	if a.ID == "" {
		return fmt.Errorf("action requires an id")
	}
	if a.UserID == "" || a.Kind == "" {
		return fmt.Errorf("action requires a user id and kind")
	}
	if a.LoggedAt.IsZero() {
		a.LoggedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO actions (id, user_id, promise_id, kind, note, hours, logged_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.PromiseID, a.Kind, a.Note, a.Hours, a.LoggedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert action: %w", err)
	}

	s.logger.Debug().Str("action_id", a.ID).Str("user_id", a.UserID).Str("kind", a.Kind).Msg("Action logged")
	return nil
}

// ListActions returns the user's actions since the given time, newest first.
// An empty promiseID matches actions on any promise.
func (s *Store) ListActions(ctx context.Context, userID, promiseID string, since time.Time) ([]Action, error) {
	query := `
		SELECT id, user_id, promise_id, kind, note, hours, logged_at
		FROM actions WHERE user_id = ? AND logged_at >= ?`
	args := []interface{}{userID, since.Unix()}
	if promiseID != "" {
		query += ` AND promise_id = ?`
		args = append(args, promiseID)
	}
	query += ` ORDER BY logged_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list actions: %w", err)
	}
	defer rows.Close()

	var actions []Action
	for rows.Next() {
		var a Action
		var logged int64
		if err := rows.Scan(&a.ID, &a.UserID, &a.PromiseID, &a.Kind, &a.Note, &a.Hours, &logged); err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		a.LoggedAt = time.Unix(logged, 0)
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// HoursSince sums hours logged against a promise since the given time. Used
// for weekly progress against the promised hours.
func (s *Store) HoursSince(ctx context.Context, userID, promiseID string, since time.Time) (float64, error) {
	var total sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT SUM(hours) FROM actions
		WHERE user_id = ? AND promise_id = ? AND logged_at >= ?`,
		userID, promiseID, since.Unix()).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum hours: %w", err)
	}
	return total.Float64, nil
}
