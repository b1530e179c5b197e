package policy

import (
	"context"
	"strings"
)

// ElevatedMode controls whether a session-scoped override can bypass an
// approval gate outright for a configured set of tools, grounded on
// internal/agent/runtime_context.go's ElevatedMode/ElevatedFull and
// internal/agent/loop.go's elevatedMode == ElevatedFull bypass check.
type ElevatedMode string

const (
	ElevatedOff  ElevatedMode = "off"
	ElevatedAsk  ElevatedMode = "ask"
	ElevatedFull ElevatedMode = "full"
)

// ParseElevatedMode normalizes a user-facing directive ("on"/"full"/"off")
// to an ElevatedMode, defaulting to off for anything unrecognized.
func ParseElevatedMode(value string) ElevatedMode {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "on", "ask":
		return ElevatedAsk
	case "full":
		return ElevatedFull
	default:
		return ElevatedOff
	}
}

type elevatedKey struct{}

// WithElevated stores a per-request elevated mode override in ctx.
func WithElevated(ctx context.Context, mode ElevatedMode) context.Context {
	return context.WithValue(ctx, elevatedKey{}, mode)
}

// ElevatedFromContext retrieves the elevated mode from ctx (default: off).
func ElevatedFromContext(ctx context.Context) ElevatedMode {
	mode, ok := ctx.Value(elevatedKey{}).(ElevatedMode)
	if !ok {
		return ElevatedOff
	}
	return mode
}

// MatchesToolPattern reports whether name matches pattern. A pattern
// ending in ".*" matches any name sharing that prefix; otherwise pattern
// must equal name exactly. Grounded on internal/agent/tool_registry.go's
// matchToolPattern, narrowed to this core's flat tool names (no "mcp:"
// namespace to special-case).
func MatchesToolPattern(pattern, name string) bool {
	if pattern == "" || name == "" {
		return false
	}
	if strings.HasSuffix(pattern, ".*") {
		return strings.HasPrefix(name, strings.TrimSuffix(pattern, ".*"))
	}
	return pattern == name
}

// MatchesAnyToolPattern reports whether name matches any of patterns.
func MatchesAnyToolPattern(patterns []string, name string) bool {
	for _, p := range patterns {
		if MatchesToolPattern(p, name) {
			return true
		}
	}
	return false
}
