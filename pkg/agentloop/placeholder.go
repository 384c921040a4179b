package agentloop

import (
	"regexp"
	"strings"

	"github.com/zana-AI/zana-planner/pkg/toolguard"
)

// Placeholder markers are a string-based inter-step data-passing mechanism:
// "from_search" pulls the most recent search tool result, and
// "from tool : <name> : <field>" pulls a field from an earlier tool result in
// the same run. Matching is deliberately permissive across case and
// whitespace; a literal argument that happens to match these patterns will be
// resolved instead of passed through. That ambiguity is inherited from the
// convention itself, so the matching rules stay exactly as documented rather
// than growing stricter validation.
var (
	fromSearchPattern = regexp.MustCompile(`(?i)^\s*from[_\s]+search\b`)
	fromToolPattern   = regexp.MustCompile(`(?i)^\s*from[_\s]+tool\s*[:\s]\s*([\w.-]+)\s*[:\s]\s*([\w.-]+)\s*$`)
)

// IsFromSearchPlaceholder reports whether the value requests resolution from
// the most recent search tool result.
func IsFromSearchPlaceholder(value string) bool {
	return fromSearchPattern.MatchString(value)
}

// ParseFromToolPlaceholder extracts the tool name and field from a
// "from tool" placeholder, lowercased for matching.
func ParseFromToolPlaceholder(value string) (tool, field string, ok bool) {
	m := fromToolPattern.FindStringSubmatch(value)
	if m == nil {
		return "", "", false
	}
	return strings.ToLower(m[1]), strings.ToLower(m[2]), true
}

// ResolveArgs returns a copy of args with placeholder values resolved from
// the results already executed this run. Placeholders that cannot be
// resolved are left as their literal value; resolution never fails a run.
func ResolveArgs(args map[string]interface{}, executed []toolguard.Result) map[string]interface{} {
	if len(args) == 0 {
		return args
	}

	resolved := make(map[string]interface{}, len(args))
	for name, value := range args {
		s, isString := value.(string)
		if !isString {
			resolved[name] = value
			continue
		}

		if IsFromSearchPlaceholder(s) {
			if output, ok := latestSearchOutput(executed); ok {
				resolved[name] = output
				continue
			}
		}

		if tool, field, ok := ParseFromToolPlaceholder(s); ok {
			if fieldValue, found := fieldFromToolResult(executed, tool, field); found {
				resolved[name] = fieldValue
				continue
			}
		}

		resolved[name] = value
	}
	return resolved
}

// latestSearchOutput finds the most recent successful result of a search
// tool.
func latestSearchOutput(executed []toolguard.Result) (interface{}, bool) {
	for i := len(executed) - 1; i >= 0; i-- {
		result := executed[i]
		if result.Success && strings.Contains(strings.ToLower(result.ToolName), "search") {
			return result.Output, true
		}
	}
	return nil, false
}

// fieldFromToolResult pulls a named field from the most recent successful
// result of the given tool. Field lookup is case-insensitive.
func fieldFromToolResult(executed []toolguard.Result, tool, field string) (interface{}, bool) {
	for i := len(executed) - 1; i >= 0; i-- {
		result := executed[i]
		if !result.Success || strings.ToLower(result.ToolName) != tool {
			continue
		}
		output, ok := result.Output.(map[string]interface{})
		if !ok {
			return nil, false
		}
		for key, value := range output {
			if strings.EqualFold(key, field) {
				return value, true
			}
		}
		return nil, false
	}
	return nil, false
}
