// Package cron runs the nightly reminder sweep: once an hour it finds users
// whose reminder hour just arrived in their own timezone and injects a
// reminder message for their still-running promises into the normal message
// pipeline.
package cron

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/zana-AI/zana-planner/internal/observability"
	"github.com/zana-AI/zana-planner/internal/store"
)

// hourlySpec fires at the top of every hour; per-user reminder hours are
// resolved inside the sweep.
const hourlySpec = "0 * * * *"

// InjectFunc delivers a reminder into the message pipeline on behalf of a
// user, as if the user had been messaged by the system.
type InjectFunc func(ctx context.Context, userID, text string) error

// ReminderService owns the hourly sweep.
type ReminderService struct {
	store  *store.Store
	inject InjectFunc
	logger zerolog.Logger
	runner *cron.Cron

	mu        sync.Mutex
	lastSweep time.Time
}

// Config holds reminder service configuration.
type Config struct {
	Store  *store.Store
	Inject InjectFunc
	Logger zerolog.Logger
}

// NewReminderService creates the service without starting it.
func NewReminderService(cfg Config) (*ReminderService, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Inject == nil {
		return nil, fmt.Errorf("inject callback is required")
	}

	observability.EnsureRegistered()

	return &ReminderService{
		store:  cfg.Store,
		inject: cfg.Inject,
		logger: cfg.Logger.With().Str("component", "reminders").Logger(),
	}, nil
}

// Start schedules the hourly sweep.
func (s *ReminderService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runner != nil {
		return nil
	}

	runner := cron.New()
	_, err := runner.AddFunc(hourlySpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		s.Sweep(ctx, time.Now())
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reminder sweep: %w", err)
	}

	runner.Start()
	s.runner = runner
	s.logger.Info().Str("spec", hourlySpec).Msg("Reminder service started")
	return nil
}

// Stop halts the sweep and waits for a running one to finish.
func (s *ReminderService) Stop() {
	s.mu.Lock()
	runner := s.runner
	s.runner = nil
	s.mu.Unlock()

	if runner != nil {
		<-runner.Stop().Done()
		s.logger.Info().Msg("Reminder service stopped")
	}
}

// Sweep finds users whose reminder hour matches now in their timezone and
// sends each one a reminder covering their running promises. It is exported
// so a manual trigger can run it outside the schedule.
func (s *ReminderService) Sweep(ctx context.Context, now time.Time) {
	s.mu.Lock()
	s.lastSweep = now
	s.mu.Unlock()

	promises, err := s.store.DuePromises(ctx, now)
	if err != nil {
		s.logger.Error().Err(err).Msg("Reminder sweep failed to load promises")
		observability.RecordReminderRun(false)
		return
	}

	byUser := make(map[string][]store.Promise)
	for _, p := range promises {
		byUser[p.UserID] = append(byUser[p.UserID], p)
	}

	userIDs := make([]string, 0, len(byUser))
	for userID := range byUser {
		userIDs = append(userIDs, userID)
	}
	sort.Strings(userIDs)

	sent := 0
	for _, userID := range userIDs {
		settings, err := s.store.GetSettings(ctx, userID)
		if err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("Skipping user, settings unreadable")
			continue
		}

		if !reminderDue(now, settings) {
			continue
		}

		text := buildReminderText(byUser[userID])
		if err := s.inject(ctx, userID, text); err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to inject reminder")
			continue
		}
		sent++
	}

	s.logger.Info().Int("users", len(byUser)).Int("sent", sent).Msg("Reminder sweep finished")
	observability.RecordReminderRun(true)
}

// LastSweep returns when the last sweep ran, zero before the first one.
func (s *ReminderService) LastSweep() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSweep
}

// reminderDue reports whether now falls in the user's reminder hour, in the
// user's timezone. An unloadable timezone falls back to UTC.
func reminderDue(now time.Time, settings *store.Settings) bool {
	loc, err := time.LoadLocation(settings.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return now.In(loc).Hour() == settings.ReminderHour
}

// buildReminderText renders the nightly check-in message.
func buildReminderText(promises []store.Promise) string {
	var b strings.Builder
	b.WriteString("Evening check-in! Here's what you promised:\n")
	for _, p := range promises {
		if p.HoursPerWeek > 0 {
			fmt.Fprintf(&b, "- %s (%.1fh/week)\n", p.Text, p.HoursPerWeek)
		} else {
			fmt.Fprintf(&b, "- %s\n", p.Text)
		}
	}
	b.WriteString("How did it go today?")
	return b.String()
}
