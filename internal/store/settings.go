package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Default settings for users who never changed anything.
const (
	DefaultReminderHour = 21
	DefaultTimezone     = "UTC"
	DefaultLanguage     = "en"
)

// Settings holds per-user preferences.
type Settings struct {
	UserID       string    `json:"user_id"`
	ReminderHour int       `json:"reminder_hour"`
	Timezone     string    `json:"timezone"`
	Language     string    `json:"language"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// GetSettings returns the user's settings, falling back to defaults when the
// user has no row yet. It never returns ErrNotFound.
func (s *Store) GetSettings(ctx context.Context, userID string) (*Settings, error) {
	settings := &Settings{
		UserID:       userID,
		ReminderHour: DefaultReminderHour,
		Timezone:     DefaultTimezone,
		Language:     DefaultLanguage,
	}

	var updated int64
	err := s.db.QueryRowContext(ctx, `
		SELECT reminder_hour, timezone, language, updated_at
		FROM settings WHERE user_id = ?`, userID).
		Scan(&settings.ReminderHour, &settings.Timezone, &settings.Language, &updated)
	if err == sql.ErrNoRows {
		return settings, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	settings.UpdatedAt = time.Unix(updated, 0)
	return settings, nil
}

// UpsertSettings writes the user's settings.
func (s *Store) UpsertSettings(ctx context.Context, settings *Settings) error {
	if settings.UserID == "" {
		return fmt.Errorf("settings require a user id")
	}
	if settings.ReminderHour < 0 || settings.ReminderHour > 23 {
		return fmt.Errorf("reminder hour %d out of range", settings.ReminderHour)
	}

	settings.UpdatedAt = time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (user_id, reminder_hour, timezone, language, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			reminder_hour = excluded.reminder_hour,
			timezone = excluded.timezone,
			language = excluded.language,
			updated_at = excluded.updated_at`,
		settings.UserID, settings.ReminderHour, settings.Timezone, settings.Language,
		settings.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert settings: %w", err)
	}
	return nil
}
