package tools

import (
	"context"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/zana-AI/zana-planner/internal/store"
	"github.com/zana-AI/zana-planner/pkg/toolguard"
)

func (r *Registry) logActionSchema() toolguard.Schema {
	return toolguard.Schema{
		Name:        "log_action",
		Description: "Log time spent or progress against a promise.",
		Parameters: []toolguard.Parameter{
			{Name: "promise_id", Type: "string", Description: "Promise the action counts toward", Required: true},
			{Name: "kind", Type: "string", Description: "Action kind: time_spent, completed, or note"},
			{Name: "hours", Type: "number", Description: "Hours spent"},
			{Name: "note", Type: "string", Description: "Free-form note"},
		},
		Handler:  r.logAction,
		Mutating: true,
	}
}

func (r *Registry) logAction(ctx context.Context, userID string, args map[string]interface{}) (interface{}, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate action id: %w", err)
	}

	kind := stringArg(args, "kind")
	if kind == "" {
		kind = "time_spent"
	}

	a := &store.Action{
		ID:        "a_" + id,
		UserID:    userID,
		PromiseID: stringArg(args, "promise_id"),
		Kind:      kind,
		Note:      stringArg(args, "note"),
	}
	if hours, ok := floatArg(args, "hours"); ok {
		a.Hours = hours
	}

	if err := r.store.LogAction(ctx, a); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"action_id":  a.ID,
		"promise_id": a.PromiseID,
		"kind":       a.Kind,
	}, nil
}
