package store

import (
	"context"
	"fmt"
	"time"
)

// HistoryMessage is one persisted conversation turn used to build context
// for later runs.
type HistoryMessage struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// AppendHistory records one conversation turn.
func (s *Store) AppendHistory(ctx context.Context, userID, role, content string) error {
	if userID == "" || role == "" {
		return fmt.Errorf("history requires a user id and role")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO history (user_id, role, content, created_at)
		VALUES (?, ?, ?, ?)`,
		userID, role, content, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

// RecentHistory returns the user's last n turns in chronological order.
func (s *Store) RecentHistory(ctx context.Context, userID string, limit int) ([]HistoryMessage, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, role, content, created_at FROM (
			SELECT id, user_id, role, content, created_at
			FROM history WHERE user_id = ?
			ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	defer rows.Close()

	var messages []HistoryMessage
	for rows.Next() {
		var m HistoryMessage
		var created int64
		if err := rows.Scan(&m.ID, &m.UserID, &m.Role, &m.Content, &created); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		m.CreatedAt = time.Unix(created, 0)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// PruneHistory drops all but the newest keep turns for a user.
func (s *Store) PruneHistory(ctx context.Context, userID string, keep int) error {
	if keep < 0 {
		keep = 0
	}

	_, err := s.db.ExecContext(ctx, `
		DELETE FROM history
		WHERE user_id = ? AND id NOT IN (
			SELECT id FROM history WHERE user_id = ? ORDER BY id DESC LIMIT ?
		)`, userID, userID, keep)
	if err != nil {
		return fmt.Errorf("failed to prune history: %w", err)
	}
	return nil
}
