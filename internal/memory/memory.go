// Package memory exposes the semantic memory store FC-2 gates writes
// into: a thin Store interface plus an in-process backend scoring
// relevance over term-frequency vectors.
//
// Grounded on internal/memory/backend/sqlitevec/backend.go's
// cosineSimilarity scoring and session/channel/agent scope filtering,
// narrowed from float32 embedding vectors (which would require wiring an
// embedding provider this core has no use for) to term-frequency vectors
// computed directly from stored content — the same cosine-similarity
// math, over a vector this package can build itself without an external
// embedding call. The teacher's hand-rolled sqrt32 Newton-Raphson
// approximation (needed only because it worked in float32) is unneeded
// here; this package uses math.Sqrt directly over float64.
package memory

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/haasonsaas/meao/internal/labels"
)

// Entry is one semantic memory record.
type Entry struct {
	ID        string
	SessionID string
	Content   string
	Label     labels.ContentLabel
	CreatedAt time.Time
}

// Store is the boundary the orchestrator/tools writes semantic memory
// through. Callers are expected to have already run the entry's label
// through policy.FlowController.CanEgress(..., DestinationSemanticMemory)
// and, on confirmation, policy.PromoteForMemory before calling Write —
// Store itself does not re-check flow control.
type Store interface {
	Write(ctx context.Context, entry Entry) error
	SearchRelevant(ctx context.Context, sessionID, query string, limit int) ([]Entry, error)
}

// InProcess is an in-memory Store backend suitable for local development
// and tests.
type InProcess struct {
	mu      sync.Mutex
	entries []Entry
}

// NewInProcess constructs an empty in-process memory store.
func NewInProcess() *InProcess {
	return &InProcess{}
}

// Write implements Store.
func (s *InProcess) Write(ctx context.Context, entry Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// SearchRelevant implements Store, scoring stored entries scoped to
// sessionID (or all sessions if sessionID is empty) against query by
// term-frequency cosine similarity, returning the top `limit` matches in
// descending score order.
func (s *InProcess) SearchRelevant(ctx context.Context, sessionID, query string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	queryVec := termFrequency(query)

	s.mu.Lock()
	candidates := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if sessionID != "" && e.SessionID != sessionID {
			continue
		}
		candidates = append(candidates, e)
	}
	s.mu.Unlock()

	type scored struct {
		entry Entry
		score float64
	}
	results := make([]scored, 0, len(candidates))
	for _, e := range candidates {
		score := cosineSimilarity(queryVec, termFrequency(e.Content))
		if score <= 0 {
			continue
		}
		results = append(results, scored{entry: e, score: score})
	}

	for i := 0; i < len(results)-1; i++ {
		for j := i + 1; j < len(results); j++ {
			if results[j].score > results[i].score {
				results[i], results[j] = results[j], results[i]
			}
		}
	}
	if len(results) > limit {
		results = results[:limit]
	}

	out := make([]Entry, len(results))
	for i, r := range results {
		out[i] = r.entry
	}
	return out, nil
}

func termFrequency(text string) map[string]float64 {
	vec := make(map[string]float64)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		vec[word]++
	}
	return vec
}

func cosineSimilarity(a, b map[string]float64) float64 {
	var dot, normA, normB float64
	for term, weight := range a {
		normA += weight * weight
		if other, ok := b[term]; ok {
			dot += weight * other
		}
	}
	for _, weight := range b {
		normB += weight * weight
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
