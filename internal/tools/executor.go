package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/haasonsaas/meao/internal/audit"
	"github.com/haasonsaas/meao/internal/labels"
	"github.com/haasonsaas/meao/internal/policy"
	"github.com/haasonsaas/meao/internal/secrets"
)

// Context carries everything a single tool call's execution needs, per
// spec.md §4.2: "{session_id, request_id, work_dir, granted_approvals,
// sandbox, audit}". granted_approvals itself lives inside the ApprovalGate,
// keyed by SessionID, rather than being passed as a standalone set here.
type Context struct {
	SessionID string
	RequestID string
	WorkDir   string

	UserID string
}

// Call is a single provider-emitted tool invocation.
type Call struct {
	ID     string
	Name   string
	Action string
	Args   json.RawMessage
}

// Result is the ToolExecutor's output for one Call: exactly the shape
// spec.md requires for a tool_result block.
type Result struct {
	Success bool
	Output  string
	Labels  labels.ContentLabel
}

// Executor is the ToolExecutor: it runs the full per-call pipeline spec.md
// §4.2 specifies around every ToolPlugin uniformly, so no individual plugin
// has to reimplement approval checks, labeling, or redaction. It does not
// sandbox the plugin: env is handed to Invoke as the caller supplied it.
type Executor struct {
	registry      *Registry
	gate          *policy.Gate
	detector      *secrets.Detector
	auditLog      *audit.Store
	elevatedTools []string
}

// NewExecutor wires a ToolExecutor from its four collaborators, one per
// pipeline stage: registry (lookup + schema), gate (approval), detector
// (output redaction), auditLog (the single choke point every call reports
// through).
func NewExecutor(registry *Registry, gate *policy.Gate, detector *secrets.Detector, auditLog *audit.Store) *Executor {
	return &Executor{registry: registry, gate: gate, detector: detector, auditLog: auditLog}
}

// SetElevatedTools configures the tool-name patterns eligible for the
// elevated-full approval bypass (policy.ElevatedFull in ctx). Grounded on
// internal/agent/loop.go's config.ElevatedTools.
func (e *Executor) SetElevatedTools(patterns []string) {
	e.elevatedTools = patterns
}

// Execute runs the full pipeline for one call. It never panics out to the
// caller: a plugin panic is recovered and converted into a {success:false}
// result with a critical-severity audit entry, grounded on
// internal/agent/executor.go's executeWithTimeout panic recovery.
func (e *Executor) Execute(ctx context.Context, call Call, tctx Context, env InvocationEnv) Result {
	start := time.Now()

	plugin, schema, ok := e.registry.Lookup(call.Name)
	if !ok {
		return e.finish(call, tctx, Result{Success: false, Output: "Unknown tool"}, start, nil)
	}

	if err := schema.Validate(toAny(call.Args)); err != nil {
		return e.finish(call, tctx, Result{Success: false, Output: fmt.Sprintf("validation error: %v", err)}, start, plugin)
	}

	cap := plugin.Capability()

	canonArgs, err := policy.CanonicalJSON(call.Args)
	if err != nil {
		return e.finish(call, tctx, Result{Success: false, Output: fmt.Sprintf("argument encoding error: %v", err)}, start, plugin)
	}
	approvalID, err := policy.ApprovalID(call.Name, call.Action, call.Args)
	if err != nil {
		return e.finish(call, tctx, Result{Success: false, Output: fmt.Sprintf("approval id error: %v", err)}, start, plugin)
	}

	level := policy.EffectiveLevel(cap.Approval, canonArgs)
	if level != policy.LevelAuto {
		if policy.ElevatedFromContext(ctx) == policy.ElevatedFull && policy.MatchesAnyToolPattern(e.elevatedTools, call.Name) {
			e.auditElevatedBypass(call, tctx)
		} else {
			decision, err := e.gate.Check(ctx, tctx.SessionID, approvalID, level, policy.Request{
				ToolName:      call.Name,
				Action:        call.Action,
				ArgsCanonical: canonArgs,
				Reason:        "tool capability requires approval",
			})
			if err != nil {
				return e.finish(call, tctx, Result{Success: false, Output: fmt.Sprintf("approval error: %v", err)}, start, plugin)
			}
			if decision != policy.DecisionAllowed {
				return e.finish(call, tctx, Result{Success: false, Output: "denied"}, start, plugin)
			}
		}
	}

	out, invokeErr := e.invokeSafely(ctx, plugin, call.Args, env)
	if invokeErr != nil {
		return e.finishWithSeverity(call, tctx, Result{Success: false, Output: invokeErr.Error()}, start, plugin, audit.SeverityCritical)
	}

	// spec.md §4.2 step 8: an explicit output_trust/output_data_class
	// replaces the combine-derived label outright, rather than merely
	// bounding it.
	outLabel := labels.Combine(call.Name, env.InputLabels...)
	if cap.OutputTrust != nil {
		outLabel.Trust = *cap.OutputTrust
	}
	if cap.OutputDataClass != nil {
		outLabel.Class = *cap.OutputDataClass
	}

	text := out.Text
	if e.detector != nil {
		text = e.detector.RedactDefault(text)
	}

	result := Result{Success: out.Success, Output: text, Labels: outLabel}
	return e.finish(call, tctx, result, start, plugin)
}

// invokeSafely calls plugin.Invoke, recovering any panic into an error so a
// single misbehaving tool can never crash the orchestrator's goroutine.
func (e *Executor) invokeSafely(ctx context.Context, plugin ToolPlugin, args json.RawMessage, env InvocationEnv) (out Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %s panicked: %v\n%s", plugin.Name(), r, debug.Stack())
		}
	}()
	return plugin.Invoke(ctx, args, env)
}

// auditElevatedBypass records that a call skipped its approval gate under
// an elevated-full override, at alert severity: this is a deliberate
// security-relevant bypass, not a routine allow, and must stand out in the
// audit trail even when nothing else about the call was notable.
func (e *Executor) auditElevatedBypass(call Call, tctx Context) {
	if e.auditLog == nil {
		return
	}
	_, _ = e.auditLog.Append(audit.Entry{
		Category:  audit.CategoryTool,
		Severity:  audit.SeverityAlert,
		Action:    "elevated_approval_bypass",
		SessionID: tctx.SessionID,
		UserID:    tctx.UserID,
		ToolName:  call.Name,
	})
}

func (e *Executor) finish(call Call, tctx Context, result Result, start time.Time, plugin ToolPlugin) Result {
	return e.finishWithSeverity(call, tctx, result, start, plugin, severityFor(result))
}

func severityFor(result Result) audit.Severity {
	if result.Success {
		return audit.SeverityInfo
	}
	return audit.SeverityWarning
}

func (e *Executor) finishWithSeverity(call Call, tctx Context, result Result, start time.Time, plugin ToolPlugin, sev audit.Severity) Result {
	if e.auditLog != nil {
		toolMeta := toolAuditMetadata(call, result, plugin)
		toolMeta["duration_ms"] = time.Since(start).Milliseconds()
		entry := audit.Entry{
			Category:  audit.CategoryTool,
			Severity:  sev,
			Action:    "tool_completed",
			SessionID: tctx.SessionID,
			UserID:    tctx.UserID,
			ToolName:  call.Name,
			Metadata: map[string]any{
				"tool": toolMeta,
			},
		}
		if !result.Success {
			entry.ErrorMsg = result.Output
		}
		_, _ = e.auditLog.Append(entry)
	}
	return result
}

// toolAuditMetadata honors capability.log_args/log_output: raw values are
// included only when the capability explicitly opts in; otherwise only a
// hash summary is recorded (spec.md §4.2 step 10).
func toolAuditMetadata(call Call, result Result, plugin ToolPlugin) map[string]any {
	m := map[string]any{"name": call.Name, "success": result.Success}
	if plugin == nil {
		return m
	}
	cap := plugin.Capability()
	if cap.LogArgs {
		m["args"] = json.RawMessage(call.Args)
	} else {
		m["args_hash"] = hashArgs(call.Args)
	}
	if cap.LogOutput {
		m["output"] = result.Output
	}
	return m
}

func hashArgs(args json.RawMessage) string {
	canon, err := policy.CanonicalJSON(args)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256([]byte(canon))
	return hex.EncodeToString(sum[:])
}

func toAny(raw json.RawMessage) any {
	var v any
	if len(raw) == 0 {
		return map[string]any{}
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return map[string]any{}
	}
	return v
}
