package tools

import (
	"context"
	"errors"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/zana-AI/zana-planner/internal/store"
	"github.com/zana-AI/zana-planner/pkg/toolguard"
)

func (r *Registry) addPromiseSchema() toolguard.Schema {
	return toolguard.Schema{
		Name:        "add_promise",
		Description: "Create a new promise the user commits to keeping.",
		Parameters: []toolguard.Parameter{
			{Name: "text", Type: "string", Description: "What the user promises to do", Required: true},
			{Name: "hours_per_week", Type: "number", Description: "Hours per week the user commits to"},
			{Name: "recurrence", Type: "string", Description: "How often, e.g. daily or weekly"},
			{Name: "end_date", Type: "string", Description: "When the promise ends, YYYY-MM-DD"},
		},
		Handler:  r.addPromise,
		Mutating: true,
	}
}

func (r *Registry) addPromise(ctx context.Context, userID string, args map[string]interface{}) (interface{}, error) {
	endDate, err := dateArg(args, "end_date")
	if err != nil {
		return nil, err
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate promise id: %w", err)
	}

	p := &store.Promise{
		ID:         "p_" + id,
		UserID:     userID,
		Text:       stringArg(args, "text"),
		Recurrence: stringArg(args, "recurrence"),
		EndDate:    endDate,
	}
	if hours, ok := floatArg(args, "hours_per_week"); ok {
		p.HoursPerWeek = hours
	}

	if err := r.store.CreatePromise(ctx, p); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"promise_id": p.ID,
		"text":       p.Text,
	}, nil
}

func (r *Registry) listPromisesSchema() toolguard.Schema {
	return toolguard.Schema{
		Name:        "list_promises",
		Description: "List the user's promises.",
		Parameters: []toolguard.Parameter{
			{Name: "active_only", Type: "boolean", Description: "Only promises still being tracked"},
		},
		Handler: r.listPromises,
	}
}

func (r *Registry) listPromises(ctx context.Context, userID string, args map[string]interface{}) (interface{}, error) {
	activeOnly, ok := boolArg(args, "active_only")
	if !ok {
		activeOnly = true
	}

	promises, err := r.store.ListPromises(ctx, userID, activeOnly)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"count":    len(promises),
		"promises": promises,
	}, nil
}

func (r *Registry) updatePromiseSchema() toolguard.Schema {
	return toolguard.Schema{
		Name:        "update_promise",
		Description: "Update an existing promise's text, commitment, or active state.",
		Parameters: []toolguard.Parameter{
			{Name: "promise_id", Type: "string", Description: "Promise to update", Required: true},
			{Name: "text", Type: "string", Description: "New promise text"},
			{Name: "hours_per_week", Type: "number", Description: "New weekly hours commitment"},
			{Name: "recurrence", Type: "string", Description: "New recurrence"},
			{Name: "active", Type: "boolean", Description: "Set false when the promise is done"},
		},
		Handler:  r.updatePromise,
		Mutating: true,
	}
}

func (r *Registry) updatePromise(ctx context.Context, userID string, args map[string]interface{}) (interface{}, error) {
	promiseID := stringArg(args, "promise_id")

	p, err := r.store.GetPromise(ctx, userID, promiseID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("promise %s not found", promiseID)
		}
		return nil, err
	}

	if text := stringArg(args, "text"); text != "" {
		p.Text = text
	}
	if hours, ok := floatArg(args, "hours_per_week"); ok {
		p.HoursPerWeek = hours
	}
	if recurrence := stringArg(args, "recurrence"); recurrence != "" {
		p.Recurrence = recurrence
	}
	if active, ok := boolArg(args, "active"); ok {
		p.Active = active
	}

	if err := r.store.UpdatePromise(ctx, p); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"promise_id": p.ID,
		"text":       p.Text,
		"active":     p.Active,
	}, nil
}

func (r *Registry) deletePromiseSchema() toolguard.Schema {
	return toolguard.Schema{
		Name:        "delete_promise",
		Description: "Delete a promise permanently.",
		Parameters: []toolguard.Parameter{
			{Name: "promise_id", Type: "string", Description: "Promise to delete", Required: true},
		},
		Handler:  r.deletePromise,
		Mutating: true,
	}
}

func (r *Registry) deletePromise(ctx context.Context, userID string, args map[string]interface{}) (interface{}, error) {
	promiseID := stringArg(args, "promise_id")

	if err := r.store.DeletePromise(ctx, userID, promiseID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("promise %s not found", promiseID)
		}
		return nil, err
	}

	return map[string]interface{}{"promise_id": promiseID, "deleted": true}, nil
}

func (r *Registry) searchPromisesSchema() toolguard.Schema {
	return toolguard.Schema{
		Name:        "search_promises",
		Description: "Search the user's active promises by text.",
		Parameters: []toolguard.Parameter{
			{Name: "query", Type: "string", Description: "Text to match against promise wording", Required: true},
			{Name: "limit", Type: "number", Description: "Maximum results, default 10"},
		},
		Handler: r.searchPromises,
	}
}

func (r *Registry) searchPromises(ctx context.Context, userID string, args map[string]interface{}) (interface{}, error) {
	limit := 10
	if v, ok := floatArg(args, "limit"); ok && v > 0 {
		limit = int(v)
	}

	promises, err := r.store.SearchPromises(ctx, userID, stringArg(args, "query"), limit)
	if err != nil {
		return nil, err
	}

	results := make([]map[string]interface{}, 0, len(promises))
	for _, p := range promises {
		results = append(results, map[string]interface{}{
			"promise_id": p.ID,
			"text":       p.Text,
		})
	}

	out := map[string]interface{}{
		"count":   len(results),
		"matches": results,
	}
	// Single-match convenience fields feed later plan steps directly.
	if len(results) == 1 {
		out["promise_id"] = results[0]["promise_id"]
		out["text"] = results[0]["text"]
	}
	return out, nil
}
