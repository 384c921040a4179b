package toolguard

import "context"

// Parameter describes one declared tool argument.
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Handler is the function signature for tool implementations. The acting
// user id is passed explicitly; handlers never read identity from args.
type Handler func(ctx context.Context, userID string, args map[string]interface{}) (interface{}, error)

// Schema declares a tool's callable surface. It is built once at
// registration time; the guard filters arguments against it on every call
// instead of inspecting the handler at runtime.
type Schema struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
	Handler     Handler     `json:"-"`

	// Mutating marks tools that change persisted state (create, update,
	// delete). The mutation-execution contract only counts these.
	Mutating bool `json:"mutating,omitempty"`
}

// RequiredNames returns the names of required parameters in declaration order.
func (s *Schema) RequiredNames() []string {
	var names []string
	for _, p := range s.Parameters {
		if p.Required {
			names = append(names, p.Name)
		}
	}
	return names
}

// HasParameter reports whether the schema declares a parameter by name.
func (s *Schema) HasParameter(name string) bool {
	for _, p := range s.Parameters {
		if p.Name == name {
			return true
		}
	}
	return false
}

// InputSchema renders the schema as a JSON-schema-shaped map for binding the
// tool to a model.
func (s *Schema) InputSchema() map[string]interface{} {
	properties := make(map[string]interface{}, len(s.Parameters))
	required := []string{}

	for _, p := range s.Parameters {
		properties[p.Name] = map[string]interface{}{
			"type":        p.Type,
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}

	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
