// Package policy implements the approval gate and flow-controller: the
// policy layer that decides whether a tool call may proceed without asking,
// and whether labeled content may egress to a given destination.
package policy

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// CanonicalJSON re-serializes an arbitrary JSON argument payload with sorted
// object keys and fixed number formatting, so that two semantically
// identical argument sets always produce byte-identical output. This is the
// stability spec.md §9 requires for the approval-id cache key: "Canonicalization
// must be stable across runs... otherwise cache hit rate degrades."
func CanonicalJSON(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "null", nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("canonicalize json: %w", err)
	}
	var sb strings.Builder
	if err := writeCanonical(&sb, v); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func writeCanonical(sb *strings.Builder, v any) error {
	switch val := v.(type) {
	case nil:
		sb.WriteString("null")
	case bool:
		if val {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case float64:
		sb.WriteString(formatNumber(val))
	case string:
		b, err := json.Marshal(val)
		if err != nil {
			return err
		}
		sb.Write(b)
	case []any:
		sb.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				sb.WriteByte(',')
			}
			if err := writeCanonical(sb, item); err != nil {
				return err
			}
		}
		sb.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			sb.Write(kb)
			sb.WriteByte(':')
			if err := writeCanonical(sb, val[k]); err != nil {
				return err
			}
		}
		sb.WriteByte('}')
	default:
		return fmt.Errorf("canonicalize json: unsupported type %T", v)
	}
	return nil
}

// formatNumber applies a fixed formatting rule: integral float64 values are
// printed without a decimal point, everything else uses the shortest
// round-trippable representation. Both rules are deterministic across runs,
// which is all the approval-id cache key needs.
func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
