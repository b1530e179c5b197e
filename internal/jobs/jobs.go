// Package jobs tracks long-running tool calls that the orchestrator
// dispatches asynchronously instead of blocking the turn loop on them, a
// supplemented feature beyond spec.md's synchronous tool-call path
// (every spec.md scenario completes within a single ProcessMessage call;
// this package gives SPEC_FULL.md's async tool jobs supplement a place to
// land a tool that legitimately runs past a turn boundary).
//
// Grounded on internal/jobs/store.go's Job/Status/Store/MemoryStore
// shape, and internal/agent/loop.go's
// isAsyncTool/queueAsyncJob/runToolJob dispatch, adapted from that
// loop's models.ToolCall/models.ToolResult types to this core's
// tools.Call/tools.Result.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/haasonsaas/meao/internal/tools"
)

// Status is a job's lifecycle state.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Job represents one asynchronously-dispatched tool call.
type Job struct {
	ID         string
	ToolName   string
	ToolCallID string
	Status     Status
	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time
	Result     *tools.Result
	Error      string
}

// Store persists job records.
type Store interface {
	Create(ctx context.Context, job *Job) error
	Update(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, bool, error)
	List(ctx context.Context, limit, offset int) ([]*Job, error)
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// MemoryStore is an in-process Store, suitable for local development and
// tests.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	keys []string
}

// NewMemoryStore constructs an empty in-process job store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*Job)}
}

// Create implements Store.
func (s *MemoryStore) Create(ctx context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; !exists {
		s.keys = append(s.keys, job.ID)
	}
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

// Update implements Store.
func (s *MemoryStore) Update(ctx context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Job, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, false, nil
	}
	return cloneJob(job), true, nil
}

// List implements Store, returning jobs in creation order.
func (s *MemoryStore) List(ctx context.Context, limit, offset int) ([]*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if offset < 0 {
		offset = 0
	}
	if offset >= len(s.keys) {
		return nil, nil
	}
	end := len(s.keys)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]*Job, 0, end-offset)
	for _, id := range s.keys[offset:end] {
		if job, ok := s.jobs[id]; ok {
			out = append(out, cloneJob(job))
		}
	}
	return out, nil
}

// Prune implements Store, removing jobs created before the cutoff.
func (s *MemoryStore) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	var pruned int64
	kept := s.keys[:0:0]
	for _, id := range s.keys {
		job, ok := s.jobs[id]
		if !ok {
			continue
		}
		if job.CreatedAt.Before(cutoff) {
			delete(s.jobs, id)
			pruned++
			continue
		}
		kept = append(kept, id)
	}
	s.keys = kept
	return pruned, nil
}

func cloneJob(job *Job) *Job {
	if job == nil {
		return nil
	}
	clone := *job
	if job.Result != nil {
		result := *job.Result
		clone.Result = &result
	}
	return &clone
}
