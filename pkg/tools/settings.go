package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/zana-AI/zana-planner/pkg/toolguard"
)

func (r *Registry) getSettingsSchema() toolguard.Schema {
	return toolguard.Schema{
		Name:        "get_settings",
		Description: "Read the user's reminder and language settings.",
		Handler:     r.getSettings,
	}
}

func (r *Registry) getSettings(ctx context.Context, userID string, _ map[string]interface{}) (interface{}, error) {
	settings, err := r.store.GetSettings(ctx, userID)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"reminder_hour": settings.ReminderHour,
		"timezone":      settings.Timezone,
		"language":      settings.Language,
	}, nil
}

func (r *Registry) updateSettingsSchema() toolguard.Schema {
	return toolguard.Schema{
		Name:        "update_settings",
		Description: "Change the user's reminder hour, timezone, or language.",
		Parameters: []toolguard.Parameter{
			{Name: "reminder_hour", Type: "number", Description: "Hour of day for reminders, 0-23"},
			{Name: "timezone", Type: "string", Description: "IANA timezone name, e.g. Europe/Paris"},
			{Name: "language", Type: "string", Description: "Two-letter language code"},
		},
		Handler:  r.updateSettings,
		Mutating: true,
	}
}

func (r *Registry) updateSettings(ctx context.Context, userID string, args map[string]interface{}) (interface{}, error) {
	settings, err := r.store.GetSettings(ctx, userID)
	if err != nil {
		return nil, err
	}

	if hour, ok := floatArg(args, "reminder_hour"); ok {
		settings.ReminderHour = int(hour)
	}
	if tz := stringArg(args, "timezone"); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return nil, fmt.Errorf("unknown timezone %q", tz)
		}
		settings.Timezone = tz
	}
	if lang := stringArg(args, "language"); lang != "" {
		settings.Language = lang
	}

	if err := r.store.UpsertSettings(ctx, settings); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"reminder_hour": settings.ReminderHour,
		"timezone":      settings.Timezone,
		"language":      settings.Language,
	}, nil
}
