package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/haasonsaas/meao/internal/audit"
	"github.com/haasonsaas/meao/internal/labels"
	"github.com/haasonsaas/meao/internal/policy"
	"github.com/haasonsaas/meao/internal/secrets"
	"github.com/haasonsaas/meao/internal/tools"
)

// defaultMaxTurns/defaultMaxToolCallsPerTurn bound a session when it does not set
// its own limits, preventing an unbounded tool loop from running forever.
const (
	defaultMaxTurns            = 50
	defaultMaxToolCallsPerTurn = 25

	// maxFollowUpRounds bounds how many times a single ProcessMessage call
	// will auto-continue on queued follow-up messages before stopping
	// outright, so an operator that never stops queuing follow-ups can't
	// keep one call running forever.
	maxFollowUpRounds = 10
)

// ToolRunner is the subset of tools.Executor the orchestrator depends on,
// narrowed to ease testing with fakes.
type ToolRunner interface {
	Execute(ctx context.Context, call tools.Call, tctx tools.Context, env tools.InvocationEnv) tools.Result
}

// Orchestrator drives the turn/tool-loop state machine for sessions it
// owns. A single Orchestrator instance is the sole mutator of any Session
// it is given (spec.md §3's ownership rule), enforced here with a
// per-session mutex rather than a global lock so unrelated sessions never
// contend.
//
// Grounded on internal/agent/loop.go's AgenticLoop.Run, generalized from
// its channel-driven streaming shape into the synchronous call/response
// contract spec.md §4.1 specifies while keeping the same phase structure:
// call provider, execute tools, continue or stop.
type Orchestrator struct {
	provider Provider
	toolRun  ToolRunner
	flow     *policy.FlowController
	auditLog *audit.Store
	metrics  *Metrics
	detector *secrets.Detector

	mu       sync.Mutex
	inFlight map[string]*sync.Mutex

	steerMu  sync.Mutex
	steering map[string]*SteeringQueue
}

// New wires an Orchestrator from its collaborators. detector may be nil, in
// which case a fresh *secrets.Detector is constructed; callers that already
// hold one (e.g. the one backing the FlowController) should pass the same
// instance so redaction patterns are compiled once per process.
func New(provider Provider, toolRun ToolRunner, flow *policy.FlowController, auditLog *audit.Store, metrics *Metrics, detector *secrets.Detector) *Orchestrator {
	if metrics == nil {
		metrics = NewMetrics()
	}
	if detector == nil {
		detector = secrets.New()
	}
	return &Orchestrator{
		provider: provider,
		toolRun:  toolRun,
		flow:     flow,
		auditLog: auditLog,
		metrics:  metrics,
		detector: detector,
		inFlight: make(map[string]*sync.Mutex),
		steering: make(map[string]*SteeringQueue),
	}
}

// Steering returns (and lazily creates) the SteeringQueue for sessionID, so
// an external operator can interrupt or extend that session's current turn
// from another goroutine.
func (o *Orchestrator) Steering(sessionID string) *SteeringQueue {
	o.steerMu.Lock()
	defer o.steerMu.Unlock()
	q, ok := o.steering[sessionID]
	if !ok {
		q = NewSteeringQueue()
		o.steering[sessionID] = q
	}
	return q
}

// ErrSessionBusy is returned when ProcessMessage is called concurrently for
// the same session; per spec.md §9 a session processes at most one message
// at a time and a second concurrent call must fail fast rather than queue.
var ErrSessionBusy = fmt.Errorf("session is already processing a message")

// sessionLock returns (and lazily creates) the exclusive lock for a
// session ID. The returned mutex is shared by every call on this
// Orchestrator for that session ID, so two ProcessMessage calls racing on the same session
// observe the same lock, implementing invariant 11 (fail-fast concurrency
// guard) without a global lock serializing unrelated sessions.
func (o *Orchestrator) sessionLock(sessionID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.inFlight[sessionID]
	if !ok {
		l = &sync.Mutex{}
		o.inFlight[sessionID] = l
	}
	return l
}

// ProcessMessage runs one full turn for sess: appends the user message,
// loops provider calls and tool executions until the provider reaches
// end_turn or a loop limit trips, and returns the finalized Turn.
func (o *Orchestrator) ProcessMessage(ctx context.Context, sess *Session, userText string, userLabel labels.ContentLabel) (Turn, error) {
	lock := o.sessionLock(sess.ID)
	if !lock.TryLock() {
		return Turn{}, ErrSessionBusy
	}
	defer lock.Unlock()

	if sess.Lifecycle == LifecycleCompleted || sess.Lifecycle == LifecycleExpired {
		return Turn{}, fmt.Errorf("session %s is %s", sess.ID, sess.Lifecycle)
	}
	sess.Lifecycle = LifecycleActive

	maxTurns := sess.MaxTurns
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	maxToolCalls := sess.MaxToolCallsPerTurn
	if maxToolCalls <= 0 {
		maxToolCalls = defaultMaxToolCallsPerTurn
	}
	if len(sess.Turns) >= maxTurns {
		return Turn{}, fmt.Errorf("session %s reached max_turns (%d)", sess.ID, maxTurns)
	}

	userMsg := Message{Role: "user", Labels: userLabel, Blocks: []Block{{Kind: BlockText, Text: userText}}}
	sess.Messages = append(sess.Messages, userMsg)

	turn := Turn{UserMessage: userMsg, StartedAt: o.now()}
	o.metrics.TurnsStarted.Inc()

	steerQ := o.Steering(sess.ID)
	toolCallCount := 0
	followUpRounds := 0
	for {
		resp, err := o.provider.Complete(ctx, CompletionRequest{SessionID: sess.ID, Messages: sess.Messages})
		if err != nil {
			// spec.md §4.1 failure semantics: a provider error ends the turn
			// with a redacted error block rather than propagating a panic
			// or leaving the session stuck mid-turn.
			errBlock := Block{Kind: BlockError, ErrorCode: "provider_error", ErrorMessage: o.redactProviderError(err)}
			turn.AssistantBlocks = append(turn.AssistantBlocks, errBlock)
			sess.Messages = append(sess.Messages, Message{Role: "assistant", Blocks: []Block{errBlock}})
			o.logOrchestrator(sess, "provider_error", audit.SeverityWarning, err)
			break
		}

		turn.Usage = turn.Usage.Add(resp.Usage)
		sess.TotalUsage = sess.TotalUsage.Add(resp.Usage)
		sess.EstimatedCost = sess.Cost()
		o.metrics.InputTokens.Add(float64(resp.Usage.InputTokens))
		o.metrics.OutputTokens.Add(float64(resp.Usage.OutputTokens))

		turn.AssistantBlocks = append(turn.AssistantBlocks, resp.Blocks...)
		sess.Messages = append(sess.Messages, Message{Role: "assistant", Blocks: resp.Blocks})

		if resp.StopReason != StopToolUse {
			if followUps, ok := o.nextFollowUpRound(steerQ, &followUpRounds); ok {
				injectTexts(sess, followUps)
				continue
			}
			break
		}

		toolUses := toolUseBlocks(resp.Blocks)
		if len(toolUses) == 0 {
			if followUps, ok := o.nextFollowUpRound(steerQ, &followUpRounds); ok {
				injectTexts(sess, followUps)
				continue
			}
			break
		}

		steerMsgs := steerQ.GetSteeringMessages()
		skipRemaining := false
		for _, m := range steerMsgs {
			if m.SkipRemainingTools {
				skipRemaining = true
			}
		}

		var resultBlocks []Block
		limitExceeded := false
		for _, use := range toolUses {
			if skipRemaining {
				resultBlocks = append(resultBlocks, Block{
					Kind: BlockToolResult, ToolResultID: use.ToolUseID,
					Success: false, Output: "skipped: steering message interrupted this turn",
				})
				continue
			}
			if toolCallCount >= maxToolCalls {
				limitExceeded = true
				break
			}
			toolCallCount++
			o.metrics.ToolCallsExecuted.Inc()

			result := o.toolRun.Execute(ctx, tools.Call{
				ID:   use.ToolUseID,
				Name: use.ToolName,
				Args: use.ToolInput,
			}, tools.Context{SessionID: sess.ID, UserID: sess.UserID}, tools.InvocationEnv{})

			turn.ToolCalls = append(turn.ToolCalls, use)
			resultBlocks = append(resultBlocks, Block{
				Kind: BlockToolResult, ToolResultID: use.ToolUseID,
				Success: result.Success, Output: result.Output, Labels: result.Labels,
			})
			// FC-3: wrap tool output in DATA markers so the model can never
			// mistake it for an instruction, regardless of tool success.
			resultBlocks[len(resultBlocks)-1].Output = policy.WrapAsData(use.ToolName, result.Output)
		}

		// spec.md invariant: tool calls execute and their results append in
		// the order the provider emitted them, never reordered by outcome.
		if len(resultBlocks) > 0 {
			sess.Messages = append(sess.Messages, Message{Role: "user", Blocks: resultBlocks})
		}

		if len(steerMsgs) > 0 {
			texts := make([]string, len(steerMsgs))
			for i, m := range steerMsgs {
				texts[i] = m.Text
			}
			injectTexts(sess, texts)
			o.logSteeringInjected(sess, len(steerMsgs), skipRemaining)
		}

		if limitExceeded {
			// S5: stop the loop outright rather than trickling denial
			// results back to a provider that will just re-request more.
			errBlock := Block{Kind: BlockError, ErrorCode: "max_tool_calls_exceeded", ErrorMessage: "max_tool_calls_per_turn exceeded"}
			turn.AssistantBlocks = append(turn.AssistantBlocks, errBlock)
			sess.Messages = append(sess.Messages, Message{Role: "assistant", Blocks: []Block{errBlock}})
			o.logOrchestrator(sess, "max_tool_calls_exceeded", audit.SeverityWarning, fmt.Errorf("session %s exceeded max_tool_calls_per_turn (%d)", sess.ID, maxToolCalls))
			break
		}

		select {
		case <-ctx.Done():
			turn.EndedAt = o.now()
			turn.MessageCountAfter = len(sess.Messages)
			sess.Turns = append(sess.Turns, turn)
			return turn, ctx.Err()
		default:
		}
	}

	turn.EndedAt = o.now()
	turn.MessageCountAfter = len(sess.Messages)
	sess.Turns = append(sess.Turns, turn)
	o.metrics.TurnsCompleted.Inc()
	return turn, nil
}

func (o *Orchestrator) now() time.Time { return time.Now() }

// nextFollowUpRound drains one round of queued follow-up messages, bounded
// by maxFollowUpRounds: an operator that keeps queuing follow-ups forever
// would otherwise keep a single ProcessMessage call running indefinitely.
func (o *Orchestrator) nextFollowUpRound(q *SteeringQueue, rounds *int) ([]string, bool) {
	if !q.HasFollowUp() || *rounds >= maxFollowUpRounds {
		return nil, false
	}
	msgs := q.GetFollowUpMessages()
	if len(msgs) == 0 {
		return nil, false
	}
	*rounds++
	texts := make([]string, len(msgs))
	for i, m := range msgs {
		texts[i] = m.Text
	}
	return texts, true
}

// injectTexts appends each text as its own user-role message, so the next
// provider call sees steering/follow-up content exactly as if the user had
// sent it.
func injectTexts(sess *Session, texts []string) {
	for _, t := range texts {
		sess.Messages = append(sess.Messages, Message{Role: "user", Blocks: []Block{{Kind: BlockText, Text: t}}})
	}
}

func (o *Orchestrator) logSteeringInjected(sess *Session, count int, skipRemaining bool) {
	if o.auditLog == nil {
		return
	}
	_, _ = o.auditLog.Append(audit.Entry{
		Category:  audit.CategoryOrchestr,
		Severity:  audit.SeverityInfo,
		Action:    "steering_injected",
		SessionID: sess.ID,
		UserID:    sess.UserID,
		Metadata:  map[string]any{"count": count, "skip_remaining_tools": skipRemaining},
	})
}

func toolUseBlocks(blocks []Block) []Block {
	var out []Block
	for _, b := range blocks {
		if b.Kind == BlockToolUse {
			out = append(out, b)
		}
	}
	return out
}

// redactProviderError strips anything in the error's message text that
// looks like a secret; provider client errors sometimes embed request
// bodies that can carry API keys or prior conversation content.
func (o *Orchestrator) redactProviderError(err error) string {
	return o.detector.RedactDefault(err.Error())
}

func (o *Orchestrator) logOrchestrator(sess *Session, action string, sev audit.Severity, err error) {
	if o.auditLog == nil {
		return
	}
	_, _ = o.auditLog.Append(audit.Entry{
		Category:  audit.CategoryOrchestr,
		Severity:  sev,
		Action:    action,
		SessionID: sess.ID,
		UserID:    sess.UserID,
		ErrorMsg:  err.Error(),
	})
}
