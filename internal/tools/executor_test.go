package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/haasonsaas/meao/internal/audit"
	"github.com/haasonsaas/meao/internal/labels"
	"github.com/haasonsaas/meao/internal/policy"
	"github.com/haasonsaas/meao/internal/secrets"
)

func newTestExecutor(t *testing.T, gate *policy.Gate) (*Executor, *Registry, *audit.Store) {
	ex, reg, store, _ := newTestExecutorWithDir(t, gate)
	return ex, reg, store
}

func newTestExecutorWithDir(t *testing.T, gate *policy.Gate) (*Executor, *Registry, *audit.Store, string) {
	t.Helper()
	reg := NewRegistry()
	dir := t.TempDir()
	store, err := audit.NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if gate == nil {
		gate = policy.NewGate(nil, nil)
	}
	return NewExecutor(reg, gate, secrets.New(), store), reg, store, dir
}

func simpleSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"msg":{"type":"string"}},"required":["msg"]}`)
}

func TestExecuteUnknownToolReturnsFailure(t *testing.T) {
	ex, _, _ := newTestExecutor(t, nil)
	res := ex.Execute(context.Background(), Call{Name: "missing", Args: json.RawMessage(`{}`)}, Context{}, InvocationEnv{})
	if res.Success || res.Output != "Unknown tool" {
		t.Errorf("got %+v", res)
	}
}

func TestExecuteValidationFailure(t *testing.T) {
	ex, reg, _ := newTestExecutor(t, nil)
	_ = reg.Register(&fakePlugin{name: "echo", schema: simpleSchema()})
	res := ex.Execute(context.Background(), Call{Name: "echo", Args: json.RawMessage(`{}`)}, Context{}, InvocationEnv{})
	if res.Success {
		t.Error("expected validation failure")
	}
}

func TestExecuteAutoLevelRunsWithoutApproval(t *testing.T) {
	ex, reg, _ := newTestExecutor(t, nil)
	_ = reg.Register(&fakePlugin{
		name:   "echo",
		schema: simpleSchema(),
		cap:    Capability{Approval: policy.ApprovalConfig{Level: policy.LevelAuto}},
	})
	res := ex.Execute(context.Background(), Call{Name: "echo", Args: json.RawMessage(`{"msg":"hi"}`)}, Context{}, InvocationEnv{})
	if !res.Success || res.Output != "ok" {
		t.Errorf("got %+v", res)
	}
}

func TestExecuteAskLevelDeniedByGate(t *testing.T) {
	gate := policy.NewGate(&denyPrompter{}, nil)
	ex, reg, _ := newTestExecutor(t, gate)
	_ = reg.Register(&fakePlugin{
		name:   "shell",
		schema: simpleSchema(),
		cap:    Capability{Approval: policy.ApprovalConfig{Level: policy.LevelAsk}},
	})
	res := ex.Execute(context.Background(), Call{Name: "shell", Args: json.RawMessage(`{"msg":"hi"}`)}, Context{SessionID: "s1"}, InvocationEnv{})
	if res.Success || res.Output != "denied" {
		t.Errorf("got %+v", res)
	}
}

func TestExecuteAskLevelApprovedAndCached(t *testing.T) {
	gate := policy.NewGate(&allowPrompter{}, nil)
	ex, reg, _ := newTestExecutor(t, gate)
	_ = reg.Register(&fakePlugin{
		name:   "shell",
		schema: simpleSchema(),
		cap:    Capability{Approval: policy.ApprovalConfig{Level: policy.LevelAsk}},
	})
	call := Call{Name: "shell", Args: json.RawMessage(`{"msg":"hi"}`)}
	res1 := ex.Execute(context.Background(), call, Context{SessionID: "s1"}, InvocationEnv{})
	if !res1.Success {
		t.Fatalf("expected first call to succeed: %+v", res1)
	}
	res2 := ex.Execute(context.Background(), call, Context{SessionID: "s1"}, InvocationEnv{})
	if !res2.Success {
		t.Errorf("expected cached approval to allow second call: %+v", res2)
	}
}

func TestExecuteAskLevelApprovedWithoutRememberReprompts(t *testing.T) {
	prompter := &countingAllowPrompter{}
	gate := policy.NewGate(prompter, nil)
	ex, reg, _ := newTestExecutor(t, gate)
	_ = reg.Register(&fakePlugin{
		name:   "shell",
		schema: simpleSchema(),
		cap:    Capability{Approval: policy.ApprovalConfig{Level: policy.LevelAsk}},
	})
	call := Call{Name: "shell", Args: json.RawMessage(`{"msg":"hi"}`)}
	ex.Execute(context.Background(), call, Context{SessionID: "s2"}, InvocationEnv{})
	ex.Execute(context.Background(), call, Context{SessionID: "s2"}, InvocationEnv{})
	if prompter.calls != 2 {
		t.Errorf("expected approval without remember_session to re-prompt on the second identical call, got %d prompts", prompter.calls)
	}
}

func TestExecuteRecoversPluginPanic(t *testing.T) {
	ex, reg, _ := newTestExecutor(t, nil)
	_ = reg.Register(&fakePlugin{name: "boom", schema: simpleSchema(), panicMsg: "kaboom"})
	res := ex.Execute(context.Background(), Call{Name: "boom", Args: json.RawMessage(`{"msg":"hi"}`)}, Context{}, InvocationEnv{})
	if res.Success {
		t.Error("expected panic to produce a failed result")
	}
	if !strings.Contains(res.Output, "kaboom") {
		t.Errorf("expected panic message in output, got %q", res.Output)
	}
}

func TestExecuteRedactsOutputSecret(t *testing.T) {
	ex, reg, _ := newTestExecutor(t, nil)
	key := "sk-" + strings.Repeat("a", 48)
	_ = reg.Register(&fakePlugin{
		name:   "leaky",
		schema: simpleSchema(),
		invoke: func(ctx context.Context, args json.RawMessage, env InvocationEnv) (Output, error) {
			return Output{Success: true, Text: "here is a key: " + key}, nil
		},
	})
	res := ex.Execute(context.Background(), Call{Name: "leaky", Args: json.RawMessage(`{"msg":"hi"}`)}, Context{}, InvocationEnv{})
	if strings.Contains(res.Output, key) {
		t.Errorf("secret leaked through tool output: %s", res.Output)
	}
}

func TestExecuteOutputLabelOverridesFromCapability(t *testing.T) {
	ex, reg, _ := newTestExecutor(t, nil)
	secretClass := labels.Secret
	_ = reg.Register(&fakePlugin{
		name:   "override",
		schema: simpleSchema(),
		cap:    Capability{OutputDataClass: &secretClass},
	})
	res := ex.Execute(context.Background(), Call{Name: "override", Args: json.RawMessage(`{"msg":"hi"}`)}, Context{}, InvocationEnv{
		InputLabels: []labels.ContentLabel{labels.New(labels.User, labels.Public, "test")},
	})
	if res.Labels.Class != labels.Secret {
		t.Errorf("expected output_data_class override to apply, got %v", res.Labels.Class)
	}
}

type allowPrompter struct{}

func (allowPrompter) Prompt(ctx context.Context, req *policy.Request) (policy.Decision, bool, error) {
	return policy.DecisionAllowed, true, nil
}

type denyPrompter struct{}

func (denyPrompter) Prompt(ctx context.Context, req *policy.Request) (policy.Decision, bool, error) {
	return policy.DecisionDenied, false, nil
}

// countingAllowPrompter approves every call but never opts into
// remember_session, so the gate must re-prompt on every identical call.
type countingAllowPrompter struct {
	calls int
}

func (p *countingAllowPrompter) Prompt(ctx context.Context, req *policy.Request) (policy.Decision, bool, error) {
	p.calls++
	return policy.DecisionAllowed, false, nil
}

func TestExecuteElevatedFullBypassesApprovalGate(t *testing.T) {
	// No prompter configured: if the gate were consulted at all, Check
	// would return an error instead of the plugin's actual output.
	gate := policy.NewGate(nil, nil)
	ex, reg, _, dir := newTestExecutorWithDir(t, gate)
	ex.SetElevatedTools([]string{"danger.*"})
	_ = reg.Register(&fakePlugin{name: "danger_tool", schema: simpleSchema(), cap: Capability{Approval: policy.ApprovalConfig{Level: policy.LevelAsk}}})

	ctx := policy.WithElevated(context.Background(), policy.ElevatedFull)
	res := ex.Execute(ctx, Call{Name: "danger_tool", Args: json.RawMessage(`{"msg":"hi"}`)}, Context{SessionID: "s1"}, InvocationEnv{})
	if !res.Success {
		t.Fatalf("expected elevated bypass to allow the call, got %+v", res)
	}

	entries, err := audit.ReadDay(dir, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	var sawAlert bool
	for _, e := range entries {
		if e.Action == "elevated_approval_bypass" && e.Severity == audit.SeverityAlert {
			sawAlert = true
		}
	}
	if !sawAlert {
		t.Error("expected an alert-severity elevated_approval_bypass audit entry")
	}
}

func TestExecuteElevatedModeWithoutMatchingPatternStillAsks(t *testing.T) {
	gate := policy.NewGate(denyPrompter{}, nil)
	ex, reg, _ := newTestExecutor(t, gate)
	ex.SetElevatedTools([]string{"danger.*"})
	_ = reg.Register(&fakePlugin{name: "shell", schema: simpleSchema(), cap: Capability{Approval: policy.ApprovalConfig{Level: policy.LevelAsk}}})

	ctx := policy.WithElevated(context.Background(), policy.ElevatedFull)
	res := ex.Execute(ctx, Call{Name: "shell", Args: json.RawMessage(`{"msg":"hi"}`)}, Context{SessionID: "s2"}, InvocationEnv{})
	if res.Success {
		t.Error("expected a non-matching tool name to still go through the approval gate and be denied")
	}
}
