package jobs

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreCreateGetRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	job := &Job{ID: "j1", ToolName: "shell", Status: StatusQueued, CreatedAt: time.Now()}
	if err := store.Create(ctx, job); err != nil {
		t.Fatal(err)
	}
	got, ok, err := store.Get(ctx, "j1")
	if err != nil || !ok {
		t.Fatalf("expected job to be found, err=%v ok=%v", err, ok)
	}
	if got.ToolName != "shell" {
		t.Errorf("unexpected job: %+v", got)
	}
}

func TestMemoryStoreGetClonesSoMutationDoesNotLeak(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	job := &Job{ID: "j1", Status: StatusQueued, CreatedAt: time.Now()}
	if err := store.Create(ctx, job); err != nil {
		t.Fatal(err)
	}
	got, _, _ := store.Get(ctx, "j1")
	got.Status = StatusFailed

	reGot, _, _ := store.Get(ctx, "j1")
	if reGot.Status != StatusQueued {
		t.Errorf("expected stored job to be unaffected by caller mutation, got status %v", reGot.Status)
	}
}

func TestMemoryStoreUpdateOverwrites(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	job := &Job{ID: "j1", Status: StatusQueued, CreatedAt: time.Now()}
	if err := store.Create(ctx, job); err != nil {
		t.Fatal(err)
	}
	job.Status = StatusSucceeded
	if err := store.Update(ctx, job); err != nil {
		t.Fatal(err)
	}
	got, _, _ := store.Get(ctx, "j1")
	if got.Status != StatusSucceeded {
		t.Errorf("expected updated status, got %v", got.Status)
	}
}

func TestMemoryStoreListRespectsLimitAndOffset(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		id := string(rune('a' + i))
		if err := store.Create(ctx, &Job{ID: id, CreatedAt: time.Now()}); err != nil {
			t.Fatal(err)
		}
	}
	page, err := store.List(ctx, 2, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 {
		t.Fatalf("expected page of 2, got %d", len(page))
	}
}

func TestMemoryStorePruneRemovesOldJobs(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	old := &Job{ID: "old", CreatedAt: time.Now().Add(-2 * time.Hour)}
	fresh := &Job{ID: "fresh", CreatedAt: time.Now()}
	if err := store.Create(ctx, old); err != nil {
		t.Fatal(err)
	}
	if err := store.Create(ctx, fresh); err != nil {
		t.Fatal(err)
	}

	pruned, err := store.Prune(ctx, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if pruned != 1 {
		t.Fatalf("expected 1 pruned job, got %d", pruned)
	}
	if _, ok, _ := store.Get(ctx, "old"); ok {
		t.Error("expected old job to be pruned")
	}
	if _, ok, _ := store.Get(ctx, "fresh"); !ok {
		t.Error("expected fresh job to survive pruning")
	}
}
