package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/haasonsaas/meao/internal/secrets"
)

func TestLoggerRedactsSecretsFromMessage(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Output: &buf, Format: "text"}, secrets.New())
	leaked := "API_KEY=sk-" + strings.Repeat("a", 48)
	logger.Info(context.Background(), leaked)

	out := buf.String()
	if strings.Contains(out, strings.Repeat("a", 48)) {
		t.Errorf("expected raw secret to be redacted from log output, got %q", out)
	}
	if !strings.Contains(out, "REDACTED") {
		t.Errorf("expected redaction marker in log output, got %q", out)
	}
}

func TestLoggerRedactsSecretsFromErrorArg(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Output: &buf, Format: "text"}, secrets.New())
	leaked := "API_KEY=sk-" + strings.Repeat("b", 48)
	logger.Error(context.Background(), "tool failed", "error", errString(leaked))

	if strings.Contains(buf.String(), strings.Repeat("b", 48)) {
		t.Errorf("expected error arg to be redacted, got %q", buf.String())
	}
}

type errString string

func (e errString) Error() string { return string(e) }

func TestWithSessionAddsCorrelationFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Output: &buf, Format: "text"}, secrets.New())
	scoped := logger.WithSession("sess-1", 3, "processing")
	scoped.Info(context.Background(), "state transition")

	out := buf.String()
	if !strings.Contains(out, "sess-1") || !strings.Contains(out, "processing") {
		t.Errorf("expected session/phase fields in log output, got %q", out)
	}
}
