package session

import (
	"context"
	"testing"

	"github.com/haasonsaas/meao/internal/orchestrator"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	sess := &orchestrator.Session{
		ID:        "sess-1",
		UserID:    "user-1",
		Lifecycle: orchestrator.LifecycleActive,
		Messages: []orchestrator.Message{
			{Role: "user", Blocks: []orchestrator.Block{{Kind: orchestrator.BlockText, Text: "hi"}}},
		},
		TotalUsage: orchestrator.Usage{InputTokens: 10, OutputTokens: 5},
	}

	ctx := context.Background()
	if err := store.Save(ctx, sess); err != nil {
		t.Fatal(err)
	}

	got, ok, err := store.Load(ctx, "sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected session to be found")
	}
	if got.UserID != "user-1" || len(got.Messages) != 1 || got.TotalUsage.InputTokens != 10 {
		t.Errorf("round-tripped session mismatch: %+v", got)
	}
}

func TestLoadMissingSessionReturnsNotOK(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	_, ok, err := store.Load(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected ok=false for missing session")
	}
}

func TestSaveUpsertsExistingSession(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	sess := &orchestrator.Session{ID: "sess-1", UserID: "user-1", Lifecycle: orchestrator.LifecycleActive}
	if err := store.Save(ctx, sess); err != nil {
		t.Fatal(err)
	}
	sess.Lifecycle = orchestrator.LifecycleCompleted
	if err := store.Save(ctx, sess); err != nil {
		t.Fatal(err)
	}

	got, ok, err := store.Load(ctx, "sess-1")
	if err != nil || !ok {
		t.Fatalf("expected session to round-trip, err=%v ok=%v", err, ok)
	}
	if got.Lifecycle != orchestrator.LifecycleCompleted {
		t.Errorf("expected upsert to update lifecycle, got %v", got.Lifecycle)
	}
}

func TestListByUserOrdersMostRecentFirst(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	if err := store.Save(ctx, &orchestrator.Session{ID: "a", UserID: "u1"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, &orchestrator.Session{ID: "b", UserID: "u1"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, &orchestrator.Session{ID: "c", UserID: "u2"}); err != nil {
		t.Fatal(err)
	}

	ids, err := store.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 sessions for u1, got %v", ids)
	}
}

func TestDeleteRemovesSession(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	if err := store.Save(ctx, &orchestrator.Session{ID: "sess-1", UserID: "user-1"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, "sess-1"); err != nil {
		t.Fatal(err)
	}
	_, ok, err := store.Load(ctx, "sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected session to be gone after delete")
	}
}

func TestDeleteNonExistentSessionIsNotAnError(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if err := store.Delete(context.Background(), "never-existed"); err != nil {
		t.Errorf("expected no error deleting missing session, got %v", err)
	}
}
