package secrets

import (
	"strings"
	"testing"
)

func TestScanDefiniteOpenAIKey(t *testing.T) {
	d := New()
	key := "sk-" + strings.Repeat("a", 48)
	res := d.Scan("API_KEY=" + key)
	if res.DefiniteCount != 1 {
		t.Fatalf("expected 1 definite finding, got %d (%+v)", res.DefiniteCount, res.Findings)
	}
	var definite Finding
	for _, f := range res.Findings {
		if f.Confidence == Definite {
			definite = f
		}
	}
	if definite.Service != "openai" {
		t.Errorf("service = %q, want openai", definite.Service)
	}
}

func TestRedactRemovesRawKey(t *testing.T) {
	d := New()
	key := "sk-" + strings.Repeat("a", 48)
	text := "here is my key: " + key + " do not share it"
	redacted := d.RedactDefault(text)
	if strings.Contains(redacted, key) {
		t.Fatalf("redacted text still contains raw key: %s", redacted)
	}
	if !strings.Contains(redacted, "[REDACTED:api_key:openai]") {
		t.Errorf("redacted text missing expected marker: %s", redacted)
	}
}

func TestRedactRightToLeftPreservesEarlierOffsets(t *testing.T) {
	d := New()
	ghp := "ghp_" + strings.Repeat("a", 36)
	aws := "AKIA" + strings.Repeat("B", 16)
	text := "first " + ghp + " then " + aws + " end"
	redacted := d.RedactDefault(text)
	if strings.Contains(redacted, ghp) || strings.Contains(redacted, aws) {
		t.Fatalf("raw secrets survived redaction: %s", redacted)
	}
	if !strings.HasPrefix(redacted, "first [REDACTED:api_key:github]") {
		t.Errorf("unexpected redaction prefix: %s", redacted)
	}
}

func TestPossibleNeverAutoRedacted(t *testing.T) {
	d := New()
	blob := strings.Repeat("a1b2c3d4", 8) // 64 hex chars
	text := "my secret key hex: " + blob
	res := d.Scan(text)
	if res.PossibleCount == 0 {
		t.Fatalf("expected a possible finding for contextual hex blob")
	}
	redacted := d.Redact(text, Probable)
	if !strings.Contains(redacted, blob) {
		t.Errorf("possible-tier finding was redacted at probable threshold: %s", redacted)
	}
}

func TestHexNearHashContextExcluded(t *testing.T) {
	d := New()
	blob := strings.Repeat("deadbeef", 8)
	text := "commit hash: " + blob
	res := d.Scan(text)
	if res.PossibleCount != 0 {
		t.Errorf("expected hex near 'hash'/'commit' to be excluded, got %d possible findings", res.PossibleCount)
	}
}

func TestFalsePositiveFixturesProduceNoDefiniteFindings(t *testing.T) {
	d := New()
	fixtures := []string{
		"sk-short",
		"AKIA123",
		"ghp_tooShort",
		"just a normal sentence about api keys and tokens",
		"The commit sha is abc123def456",
		"config.yaml has a token field but no value here",
	}
	for _, f := range fixtures {
		res := d.Scan(f)
		if res.DefiniteCount != 0 {
			t.Errorf("fixture %q produced %d definite findings, want 0: %+v", f, res.DefiniteCount, res.Findings)
		}
	}
}

func TestSummarizeCounts(t *testing.T) {
	findings := []Finding{
		{Confidence: Definite}, {Confidence: Definite}, {Confidence: Probable}, {Confidence: Possible},
	}
	s := Summarize(findings)
	if s.DefiniteCount != 2 || s.ProbableCount != 1 || s.PossibleCount != 1 {
		t.Errorf("unexpected summary %+v", s)
	}
}

func TestDetectorIsStatelessAcrossCalls(t *testing.T) {
	d := New()
	key := "sk-" + strings.Repeat("x", 48)
	_ = d.Scan(key)
	res := d.Scan("no secrets here")
	if res.DefiniteCount != 0 {
		t.Errorf("detector leaked state across scans")
	}
}

func TestScanChunkAppliesOffset(t *testing.T) {
	d := New()
	key := "AKIA" + strings.Repeat("Z", 16)
	res := d.ScanChunk(key, 100)
	if len(res.Findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(res.Findings))
	}
	if res.Findings[0].Start != 100 {
		t.Errorf("start = %d, want 100", res.Findings[0].Start)
	}
}
