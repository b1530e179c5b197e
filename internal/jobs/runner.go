package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/meao/internal/tools"
)

// ToolRunner matches orchestrator.ToolRunner's Execute signature, kept
// local to this package so Runner doesn't import internal/orchestrator
// (jobs is a dependency of the orchestrator's async path, not the other
// way around).
type ToolRunner interface {
	Execute(ctx context.Context, call tools.Call, tctx tools.Context, env tools.InvocationEnv) tools.Result
}

// Runner dispatches tool calls asynchronously against a Store, mirroring
// internal/agent/loop.go's queueAsyncJob/runToolJob split: Queue returns
// immediately with a job handle the caller can hand back to the provider
// as the tool_result payload, while the actual tool execution continues
// in a background goroutine and updates the job's status as it
// progresses.
type Runner struct {
	store Store
	exec  ToolRunner
	sem   chan struct{}
}

// NewRunner constructs a Runner. maxConcurrent bounds how many async jobs
// may execute at once; 0 means unbounded, matching the teacher's
// jobSem == nil fallback.
func NewRunner(store Store, exec ToolRunner, maxConcurrent int) *Runner {
	r := &Runner{store: store, exec: exec}
	if maxConcurrent > 0 {
		r.sem = make(chan struct{}, maxConcurrent)
	}
	return r
}

// Queue creates a job record for call and starts its execution in the
// background, returning the job immediately in StatusQueued.
func (r *Runner) Queue(call tools.Call, tctx tools.Context, env tools.InvocationEnv) (*Job, error) {
	job := &Job{
		ID:         uuid.NewString(),
		ToolName:   call.Name,
		ToolCallID: call.ID,
		Status:     StatusQueued,
		CreatedAt:  time.Now(),
	}
	if err := r.store.Create(context.Background(), job); err != nil {
		return nil, err
	}

	if r.sem == nil {
		go r.run(call, tctx, env, job.ID)
	} else {
		go func() {
			r.sem <- struct{}{}
			defer func() { <-r.sem }()
			r.run(call, tctx, env, job.ID)
		}()
	}

	return job, nil
}

func (r *Runner) run(call tools.Call, tctx tools.Context, env tools.InvocationEnv, jobID string) {
	ctx := context.Background()
	job, ok, err := r.store.Get(ctx, jobID)
	if err != nil || !ok {
		return
	}

	job.Status = StatusRunning
	job.StartedAt = time.Now()
	_ = r.store.Update(ctx, job)

	result := r.exec.Execute(ctx, call, tctx, env)

	job.FinishedAt = time.Now()
	job.Result = &result
	if result.Success {
		job.Status = StatusSucceeded
	} else {
		job.Status = StatusFailed
		job.Error = result.Output
	}
	_ = r.store.Update(ctx, job)
}
