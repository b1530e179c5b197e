package audit

import (
	"strings"

	"github.com/haasonsaas/meao/internal/secrets"
)

// neverLogSections are the metadata top-level keys spec.md calls
// "known-sensitive sections": message, tool, file, memory, response.
// Resolving spec.md's Open Question, NEVER_LOG is treated as a whole-subtree
// ban on any field named content/output/text anywhere under one of these
// sections, not just the five exact paths spec.md lists literally — so a
// nested metadata shape (e.g. metadata.tool.result.output) is still caught.
var neverLogSections = map[string]bool{
	"message": true,
	"tool":    true,
	"file":    true,
	"memory":  true,
	"response": true,
}

var neverLogLeafNames = map[string]bool{
	"content": true,
	"output":  true,
	"text":    true,
}

// sanitize mutates metadata in place, deleting every NEVER_LOG leaf under a
// known-sensitive section, and redacts error_message through the secret
// detector. Deletion is path-based; sibling fields survive untouched.
func sanitize(e *Entry, detector *secrets.Detector) {
	if e.Metadata != nil {
		for section, val := range e.Metadata {
			if !neverLogSections[section] {
				continue
			}
			m, ok := val.(map[string]any)
			if !ok {
				continue
			}
			stripLeaves(m)
		}
	}

	if e.ErrorMsg != "" {
		msg := e.ErrorMsg
		if len(msg) > 500 {
			msg = msg[:500]
		}
		if detector != nil {
			msg = detector.RedactDefault(msg)
		}
		e.ErrorMsg = msg
	}
}

// stripLeaves recursively deletes any key named content/output/text from a
// nested map, leaving sibling keys intact.
func stripLeaves(m map[string]any) {
	for k, v := range m {
		if neverLogLeafNames[strings.ToLower(k)] {
			delete(m, k)
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			stripLeaves(nested)
		}
	}
}
