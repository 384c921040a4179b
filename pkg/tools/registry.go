// Package tools defines the domain tools the agent can call: promise CRUD,
// action logging, search, and settings. Every tool is registered behind an
// invocation guard so handlers always receive the authenticated user id.
package tools

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
	"github.com/zana-AI/zana-planner/internal/store"
	"github.com/zana-AI/zana-planner/pkg/toolguard"
)

// Registry builds and holds the guarded tool set.
type Registry struct {
	store  *store.Store
	logger zerolog.Logger
	guards map[string]*toolguard.Guard
}

// NewRegistry creates all domain tools over the given store. Each tool's
// generated input schema is compiled with gojsonschema at registration so a
// malformed declaration fails startup instead of a model call.
func NewRegistry(st *store.Store, logger zerolog.Logger) (*Registry, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}

	r := &Registry{
		store:  st,
		logger: logger.With().Str("component", "tools").Logger(),
		guards: make(map[string]*toolguard.Guard),
	}

	schemas := []toolguard.Schema{
		r.addPromiseSchema(),
		r.listPromisesSchema(),
		r.updatePromiseSchema(),
		r.deletePromiseSchema(),
		r.searchPromisesSchema(),
		r.logActionSchema(),
		r.getSettingsSchema(),
		r.updateSettingsSchema(),
	}

	for _, schema := range schemas {
		if _, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema.InputSchema())); err != nil {
			return nil, fmt.Errorf("tool %s has an invalid input schema: %w", schema.Name, err)
		}
		guard, err := toolguard.New(schema, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to register tool %s: %w", schema.Name, err)
		}
		r.guards[schema.Name] = guard
	}

	r.logger.Info().Int("tools", len(r.guards)).Msg("Tool registry built")
	return r, nil
}

// Guards returns the guarded tool set keyed by tool name.
func (r *Registry) Guards() map[string]*toolguard.Guard {
	return r.guards
}

// Names returns the registered tool names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.guards))
	for name := range r.guards {
		names = append(names, name)
	}
	return names
}

// stringArg reads an optional string argument.
func stringArg(args map[string]interface{}, name string) string {
	if v, ok := args[name].(string); ok {
		return v
	}
	return ""
}

// floatArg reads an optional numeric argument; JSON numbers decode as
// float64 but models occasionally send quoted numbers, which are ignored.
func floatArg(args map[string]interface{}, name string) (float64, bool) {
	switch v := args[name].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

func boolArg(args map[string]interface{}, name string) (bool, bool) {
	if v, ok := args[name].(bool); ok {
		return v, true
	}
	return false, false
}

// dateArg parses an optional "2006-01-02" date argument.
func dateArg(args map[string]interface{}, name string) (time.Time, error) {
	raw := stringArg(args, name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: expected YYYY-MM-DD, got %q", name, raw)
	}
	return t, nil
}
