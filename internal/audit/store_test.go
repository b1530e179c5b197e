package audit

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(dir, WithIntegrity(true))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAppendRejectsUnknownCategory(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Append(Entry{Category: "bogus", Severity: SeverityInfo, Action: "x"})
	if err == nil {
		t.Fatal("expected error for unknown category")
	}
}

func TestAppendStripsNeverLogContent(t *testing.T) {
	s := newTestStore(t)
	e := Entry{
		Category: CategoryTool,
		Severity: SeverityInfo,
		Action:   "tool_completed",
		Metadata: map[string]any{
			"tool": map[string]any{
				"output": "super secret output",
				"name":   "read_file",
			},
		},
	}
	written, err := s.Append(e)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	toolMeta := written.Metadata["tool"].(map[string]any)
	if _, ok := toolMeta["output"]; ok {
		t.Errorf("output field survived sanitize: %+v", toolMeta)
	}
	if toolMeta["name"] != "read_file" {
		t.Errorf("sibling field was stripped: %+v", toolMeta)
	}

	entries, err := ReadDay(s.dir, written.Timestamp)
	if err != nil {
		t.Fatalf("ReadDay: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry on disk, got %d", len(entries))
	}
	data := mustMarshalForSearch(t, entries[0])
	if strings.Contains(data, "super secret output") {
		t.Errorf("raw output leaked to disk: %s", data)
	}
}

func TestAppendRedactsErrorMessage(t *testing.T) {
	s := newTestStore(t)
	key := "sk-" + strings.Repeat("a", 48)
	written, err := s.Append(Entry{
		Category: CategoryTool,
		Severity: SeverityWarning,
		Action:   "tool_failed",
		ErrorMsg: "failed with key " + key,
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if strings.Contains(written.ErrorMsg, key) {
		t.Errorf("raw secret leaked in error_message: %s", written.ErrorMsg)
	}
}

func TestAppendRotatesDailyFiles(t *testing.T) {
	s := newTestStore(t)
	day1 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)

	if _, err := s.Append(Entry{Category: CategoryAuth, Severity: SeverityInfo, Action: "login", Timestamp: day1}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Append(Entry{Category: CategoryAuth, Severity: SeverityInfo, Action: "login", Timestamp: day2}); err != nil {
		t.Fatal(err)
	}

	e1, err := ReadDay(s.dir, day1)
	if err != nil || len(e1) != 1 {
		t.Fatalf("day1 entries = %d, err = %v", len(e1), err)
	}
	e2, err := ReadDay(s.dir, day2)
	if err != nil || len(e2) != 1 {
		t.Fatalf("day2 entries = %d, err = %v", len(e2), err)
	}
}

func TestIntegrityChainVerifies(t *testing.T) {
	s := newTestStore(t)
	ts := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if _, err := s.Append(Entry{Category: CategoryTool, Severity: SeverityInfo, Action: "x", Timestamp: ts}); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := ReadDay(s.dir, ts)
	if err != nil {
		t.Fatal(err)
	}
	if err := VerifyChain(entries); err != nil {
		t.Errorf("chain should verify: %v", err)
	}

	entries[2].Action = "tampered"
	if err := VerifyChain(entries); err == nil {
		t.Error("expected tampered chain to fail verification")
	}
}

func TestEscalationPromotesRepeatedEvents(t *testing.T) {
	s := newTestStore(t)
	ts := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	var lastSeverity Severity
	for i := 0; i < 15; i++ {
		written, err := s.Append(Entry{
			Category: CategoryTool, Severity: SeverityWarning, Action: "repeated_denial",
			ToolName: "exec", Timestamp: ts.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatal(err)
		}
		lastSeverity = written.Severity
	}
	if lastSeverity != SeverityAlert {
		t.Errorf("expected escalation to alert after repeated events, got %v", lastSeverity)
	}
}

func TestRetentionNeverDeletesUnder30Days(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	if _, err := s.Append(Entry{Category: CategoryAuth, Severity: SeverityDebug, Action: "x", Timestamp: now}); err != nil {
		t.Fatal(err)
	}
	_ = s.Close()

	deleted, err := Purge(dir, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(deleted) != 0 {
		t.Errorf("purge deleted recent entries: %v", deleted)
	}
}

func mustMarshalForSearch(t *testing.T, e Entry) string {
	t.Helper()
	b, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}
