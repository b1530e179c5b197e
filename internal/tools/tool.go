// Package tools implements the ToolRegistry, capability model, and the
// ToolExecutor pipeline: schema validation, approval gating, output
// labeling, secret redaction, and audit emission. The executor does not
// dispatch to a sandbox itself: plugins that run commands or touch files
// call a sandbox.Executor under the InvocationEnv they are given.
//
// Grounded on internal/agent/executor.go's parallel tool executor, adapted
// from a generic retry/backoff runner into the capability-checked,
// approval-gated, sandboxed dispatch pipeline spec.md §4.2 specifies.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/haasonsaas/meao/internal/labels"
	"github.com/haasonsaas/meao/internal/policy"
	"github.com/haasonsaas/meao/internal/sandbox"
)

// Capability declares the security-relevant behavior of a ToolPlugin: its
// approval requirement, sandbox execution profile, output labeling
// override, and audit verbosity.
type Capability struct {
	IsDestructive bool

	Approval policy.ApprovalConfig

	Execution ExecutionProfile

	// OutputTrust/OutputDataClass, when non-nil, override the combine-based
	// output label the ToolExecutor would otherwise derive from input
	// labels (spec.md §4.2 step 8).
	OutputTrust     *labels.TrustLevel
	OutputDataClass *labels.DataClass

	LogArgs   bool
	LogOutput bool
}

// ExecutionProfile is the subset of sandbox.Config a capability declares
// statically. The ToolExecutor does not read it and fills in no per-call
// fields: a plugin runs under the sandbox.Config its caller passes in
// InvocationEnv.Sandbox.
type ExecutionProfile struct {
	Sandbox sandbox.Tier
	Network sandbox.NetworkMode
	Image   string
}

// ToolPlugin is a single invocable tool. ParameterSchema is raw JSON Schema;
// it is compiled once and cached by the registry.
type ToolPlugin interface {
	Name() string
	Action() string
	ParameterSchema() json.RawMessage
	Capability() Capability
	// Invoke performs the tool's actual work. It must never itself consult
	// the ApprovalGate or AuditStore — those are the ToolExecutor's job, run
	// uniformly around every plugin. Sandboxed work is the plugin's own: it
	// goes through a sandbox.Executor under env.Sandbox.
	Invoke(ctx context.Context, args json.RawMessage, env InvocationEnv) (Output, error)
}

// InvocationEnv is what a ToolPlugin needs to do its work: a resolved
// sandbox config (already tier-appropriate) and the set of input labels to
// combine for output labeling.
type InvocationEnv struct {
	Sandbox     sandbox.Config
	InputLabels []labels.ContentLabel
}

// Output is a ToolPlugin's raw result, before labeling, redaction, or
// DATA-marker wrapping.
type Output struct {
	Success bool
	Text    string
}

// Registry holds the compiled ToolPlugin set, keyed by name.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]ToolPlugin
	schemas map[string]*jsonschema.Schema
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		plugins: make(map[string]ToolPlugin),
		schemas: make(map[string]*jsonschema.Schema),
	}
}

// Register compiles plugin's parameter schema and adds it to the registry.
func (r *Registry) Register(plugin ToolPlugin) error {
	compiled, err := compileSchema(plugin.Name(), plugin.ParameterSchema())
	if err != nil {
		return fmt.Errorf("register tool %s: %w", plugin.Name(), err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins[plugin.Name()] = plugin
	r.schemas[plugin.Name()] = compiled
	return nil
}

// Lookup returns the named plugin and its compiled schema, or ok=false if
// the tool is unknown.
func (r *Registry) Lookup(name string) (ToolPlugin, *jsonschema.Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	if !ok {
		return nil, nil, false
	}
	return p, r.schemas[name], true
}

func compileSchema(name string, raw json.RawMessage) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	url := "mem://" + name + ".json"
	if err := c.AddResource(url, bytesReader(raw)); err != nil {
		return nil, err
	}
	return c.Compile(url)
}

func bytesReader(raw json.RawMessage) io.Reader {
	if len(raw) == 0 {
		return bytes.NewReader([]byte(`{}`))
	}
	return bytes.NewReader(raw)
}
