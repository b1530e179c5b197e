package tools

import (
	"context"
	"encoding/json"
	"testing"
)

type fakePlugin struct {
	name     string
	schema   json.RawMessage
	cap      Capability
	invoke   func(ctx context.Context, args json.RawMessage, env InvocationEnv) (Output, error)
	panicMsg string
}

func (p *fakePlugin) Name() string                      { return p.name }
func (p *fakePlugin) Action() string                     { return "invoke" }
func (p *fakePlugin) ParameterSchema() json.RawMessage   { return p.schema }
func (p *fakePlugin) Capability() Capability             { return p.cap }
func (p *fakePlugin) Invoke(ctx context.Context, args json.RawMessage, env InvocationEnv) (Output, error) {
	if p.panicMsg != "" {
		panic(p.panicMsg)
	}
	if p.invoke != nil {
		return p.invoke(ctx, args, env)
	}
	return Output{Success: true, Text: "ok"}, nil
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	p := &fakePlugin{name: "echo", schema: json.RawMessage(`{"type":"object"}`)}
	if err := r.Register(p); err != nil {
		t.Fatal(err)
	}
	got, schema, ok := r.Lookup("echo")
	if !ok || got.Name() != "echo" || schema == nil {
		t.Errorf("lookup failed: ok=%v got=%v schema=%v", ok, got, schema)
	}
}

func TestRegistryLookupMissingTool(t *testing.T) {
	r := NewRegistry()
	_, _, ok := r.Lookup("nonexistent")
	if ok {
		t.Error("expected lookup to fail for unregistered tool")
	}
}

func TestRegistryRejectsInvalidSchema(t *testing.T) {
	r := NewRegistry()
	p := &fakePlugin{name: "bad", schema: json.RawMessage(`{not valid json`)}
	if err := r.Register(p); err == nil {
		t.Error("expected error for invalid schema")
	}
}
