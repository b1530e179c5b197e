package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/haasonsaas/meao/internal/audit"
	"github.com/haasonsaas/meao/internal/builtin"
	"github.com/haasonsaas/meao/internal/channel"
	"github.com/haasonsaas/meao/internal/config"
	"github.com/haasonsaas/meao/internal/jobs"
	"github.com/haasonsaas/meao/internal/labels"
	"github.com/haasonsaas/meao/internal/memory"
	"github.com/haasonsaas/meao/internal/observability"
	"github.com/haasonsaas/meao/internal/orchestrator"
	"github.com/haasonsaas/meao/internal/policy"
	"github.com/haasonsaas/meao/internal/sandbox"
	"github.com/haasonsaas/meao/internal/secrets"
	"github.com/haasonsaas/meao/internal/session"
	"github.com/haasonsaas/meao/internal/tools"
)

// runRun implements the run command: wire every collaborator from cfg and
// drive the orchestrator from the CLI channel until EOF or a shutdown
// signal, persisting the session after each processed message.
//
// Grounded on cmd/nexus/handlers.go's runServe: config load, collaborator
// construction, signal.NotifyContext-driven graceful shutdown -- adapted
// from a long-running gRPC/HTTP gateway to a single synchronous
// read-process-reply loop over one CLI channel.
func runRun(cmd *cobra.Command, configPath, userID, providerName string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	detector := secrets.New()
	logger := observability.NewLogger(observability.LogConfig{}, detector)

	reg := prometheus.NewRegistry()
	_ = observability.NewMetrics(reg)
	orchMetrics := orchestrator.NewMetrics()
	if err := orchMetrics.Register(reg); err != nil {
		return fmt.Errorf("register orchestrator metrics: %w", err)
	}
	go serveMetrics(reg)

	auditStore, err := audit.NewStore(cfg.Audit.Dir, audit.WithIntegrity(cfg.Audit.IntegrityEnabled))
	if err != nil {
		return fmt.Errorf("open audit store: %w", err)
	}
	defer auditStore.Close()

	sessionStore, err := session.Open(cfg.Session.DatabasePath)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer sessionStore.Close()

	branchStore, err := session.OpenBranchStore(cfg.Session.DatabasePath)
	if err != nil {
		return fmt.Errorf("open branch store: %w", err)
	}
	defer branchStore.Close()

	flow := policy.NewFlowController(detector)
	gate := policy.NewGate(policy.NewCLIPrompter(os.Stdin, os.Stdout), policy.NewMemoryStore())

	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolve work dir: %w", err)
	}

	registry := tools.NewRegistry()
	sandboxExec := sandbox.New()
	jobStore := jobs.NewMemoryStore()

	dangerPatterns := compileDangerPatterns(cfg.Approval.DangerPatterns, logger)
	approveLevel := policy.Level(cfg.Approval.DefaultLevel)
	memStore := memory.NewInProcess()

	if err := registerBuiltinTools(registry, sandboxExec, jobStore, memStore, flow, approveLevel, dangerPatterns); err != nil {
		return fmt.Errorf("register builtin tools: %w", err)
	}

	executor := tools.NewExecutor(registry, gate, detector, auditStore)
	executor.SetElevatedTools(cfg.Approval.ElevatedTools)
	runner := newSandboxedRunner(executor, cfg.Sandbox, workDir)
	jobRunner := jobs.NewRunner(jobStore, runner, 4)

	if err := registry.Register(builtin.NewAsyncShellTool(jobRunner, approveLevel)); err != nil {
		return fmt.Errorf("register async_shell tool: %w", err)
	}

	llmProvider, err := buildProvider(cfg, providerName)
	if err != nil {
		return fmt.Errorf("build provider: %w", err)
	}

	orch := orchestrator.New(llmProvider, runner, flow, auditStore, orchMetrics, detector)

	cli := channel.NewCLI(os.Stdin, os.Stdout, nil)
	defer cli.Close()

	sess, err := loadOrCreateSession(ctx, sessionStore, userID, cfg.Orchestrator)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	primaryBranch, err := branchStore.EnsurePrimaryBranch(ctx, sess)
	if err != nil {
		return fmt.Errorf("ensure primary branch: %w", err)
	}

	logger.Info(ctx, "meao run started", "session_id", sess.ID, "user_id", userID)

	if err := cli.Send(ctx, fmt.Sprintf("meao ready (session %s). Type a message, Ctrl+D to exit.", sess.ID)); err != nil {
		return err
	}

	elevated := policy.ElevatedOff

	for {
		text, ok, err := cli.Receive(ctx)
		if err != nil {
			logger.Error(ctx, "channel receive failed", "error", err)
			break
		}
		if !ok {
			break
		}
		if text == "" {
			continue
		}

		if directive, payload, handled := parseControlDirective(text); handled {
			switch directive {
			case controlElevate:
				elevated = policy.ParseElevatedMode(payload)
				if sendErr := cli.Send(ctx, fmt.Sprintf("elevated mode set to %s", elevated)); sendErr != nil {
					logger.Error(ctx, "channel send failed", "error", sendErr)
				}
			case controlSteer:
				orch.Steering(sess.ID).SteerText(payload)
				if sendErr := cli.Send(ctx, "steering message queued for the next turn"); sendErr != nil {
					logger.Error(ctx, "channel send failed", "error", sendErr)
				}
			case controlFollowUp:
				orch.Steering(sess.ID).FollowUpText(payload)
				if sendErr := cli.Send(ctx, "follow-up message queued"); sendErr != nil {
					logger.Error(ctx, "channel send failed", "error", sendErr)
				}
			}
			continue
		}

		userLabel := labels.New(labels.User, labels.Internal, "cli")
		turn, err := orch.ProcessMessage(policy.WithElevated(ctx, elevated), sess, text, userLabel)
		if err != nil {
			if sendErr := cli.Send(ctx, fmt.Sprintf("error: %v", err)); sendErr != nil {
				logger.Error(ctx, "channel send failed", "error", sendErr)
			}
			continue
		}

		for _, block := range turn.AssistantBlocks {
			if block.Kind != orchestrator.BlockText || block.Text == "" {
				continue
			}
			if err := cli.Send(ctx, block.Text); err != nil {
				logger.Error(ctx, "channel send failed", "error", err)
			}
		}

		if err := sessionStore.Save(ctx, sess); err != nil {
			logger.Error(ctx, "session save failed", "error", err)
		}
		if err := branchStore.Update(ctx, primaryBranch.ID, sess); err != nil {
			logger.Error(ctx, "primary branch update failed", "error", err)
		}
	}

	logger.Info(ctx, "meao run stopped")
	return nil
}

// controlDirective identifies a CLI line that controls the session rather
// than feeding a message to the orchestrator.
type controlDirective int

const (
	controlElevate controlDirective = iota
	controlSteer
	controlFollowUp
)

// parseControlDirective recognizes the three operator-facing control
// prefixes -- "/elevate", "/steer", "/followup" -- that the run loop
// intercepts instead of passing to Orchestrator.ProcessMessage. Grounded
// on internal/agent/runtime_context.go's ElevatedMode directives and
// internal/agent/steering.go's Steer/FollowUp entry points, adapted to
// this core's plain-text CLI channel (the teacher exposes these as gRPC
// request fields, not slash commands).
func parseControlDirective(text string) (directive controlDirective, payload string, handled bool) {
	switch {
	case strings.HasPrefix(text, "/elevate "):
		return controlElevate, strings.TrimSpace(strings.TrimPrefix(text, "/elevate ")), true
	case strings.HasPrefix(text, "/steer "):
		return controlSteer, strings.TrimSpace(strings.TrimPrefix(text, "/steer ")), true
	case strings.HasPrefix(text, "/followup "):
		return controlFollowUp, strings.TrimSpace(strings.TrimPrefix(text, "/followup ")), true
	default:
		return 0, "", false
	}
}

func loadOrCreateSession(ctx context.Context, store *session.Store, userID string, ocfg config.OrchestratorConfig) (*orchestrator.Session, error) {
	ids, err := store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		sess, ok, err := store.Load(ctx, ids[0])
		if err != nil {
			return nil, err
		}
		if ok && sess.Lifecycle == orchestrator.LifecycleActive {
			return sess, nil
		}
	}

	sess := &orchestrator.Session{
		ID:                    uuid.NewString(),
		UserID:                userID,
		Lifecycle:             orchestrator.LifecycleActive,
		MaxTurns:              ocfg.MaxTurns,
		MaxToolCallsPerTurn:   ocfg.MaxToolCallsPerTurn,
		InputPricePerMillion:  ocfg.InputPricePerMillion,
		OutputPricePerMillion: ocfg.OutputPricePerMillion,
	}
	return sess, store.Save(ctx, sess)
}

func registerBuiltinTools(registry *tools.Registry, exec *sandbox.Executor, jobStore jobs.Store, memStore memory.Store, flow *policy.FlowController, approve policy.Level, danger []*regexp.Regexp) error {
	plugins := []tools.ToolPlugin{
		builtin.NewShellTool(exec, builtin.ShellConfig{Approve: approve, DangerPatterns: danger}),
		builtin.NewReadFileTool(exec, 0),
		builtin.NewWriteFileTool(exec),
		builtin.NewJobStatusTool(jobStore),
		builtin.NewRememberTool(memStore, flow),
		builtin.NewRecallTool(memStore),
	}
	for _, p := range plugins {
		if err := registry.Register(p); err != nil {
			return fmt.Errorf("register tool %s: %w", p.Name(), err)
		}
	}
	return nil
}

func compileDangerPatterns(patterns []string, logger *observability.Logger) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			logger.Warn(context.Background(), "skipping invalid danger pattern", "pattern", p, "error", err)
			continue
		}
		compiled = append(compiled, re)
	}
	return compiled
}

func serveMetrics(reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: "127.0.0.1:9464", Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Warn("metrics server stopped", "error", err)
	}
}

// runAuditVerify verifies the prev_hash/entry_hash chain for one day's
// audit log, exercising internal/audit.ReadDay + VerifyChain outside of
// tests.
func runAuditVerify(cmd *cobra.Command, configPath, day string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ts, err := time.Parse("2006-01-02", day)
	if err != nil {
		return fmt.Errorf("invalid --day %q: %w", day, err)
	}
	entries, err := audit.ReadDay(cfg.Audit.Dir, ts)
	if err != nil {
		return fmt.Errorf("read audit day: %w", err)
	}
	if err := audit.VerifyChain(entries); err != nil {
		return fmt.Errorf("integrity chain broken: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d entries verified for %s\n", len(entries), day)
	return nil
}

// runAuditPurge deletes audit log days past their per-severity retention
// window, exercising internal/audit.Purge outside of tests.
func runAuditPurge(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	deleted, err := audit.Purge(cfg.Audit.Dir, time.Now())
	if err != nil {
		return fmt.Errorf("purge audit log: %w", err)
	}
	for _, f := range deleted {
		fmt.Fprintln(cmd.OutOrStdout(), "deleted", f)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d file(s) deleted\n", len(deleted))
	return nil
}

// runSessionsBranchList lists every branch recorded for a session.
func runSessionsBranchList(cmd *cobra.Command, configPath, sessionID string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	bs, err := session.OpenBranchStore(cfg.Session.DatabasePath)
	if err != nil {
		return fmt.Errorf("open branch store: %w", err)
	}
	defer bs.Close()

	branches, err := bs.ListBranches(cmd.Context(), sessionID)
	if err != nil {
		return fmt.Errorf("list branches: %w", err)
	}
	for _, b := range branches {
		kind := "fork"
		if b.ParentBranchID == "" {
			kind = "primary"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\tbranch_point=%d\tstatus=%s\n", b.ID, kind, b.Name, b.BranchPoint, b.Status)
	}
	return nil
}

// runSessionsBranchFork forks parentBranchID at branchPoint into a new
// named branch.
func runSessionsBranchFork(cmd *cobra.Command, configPath, parentBranchID, name string, branchPoint int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	bs, err := session.OpenBranchStore(cfg.Session.DatabasePath)
	if err != nil {
		return fmt.Errorf("open branch store: %w", err)
	}
	defer bs.Close()

	fork, _, err := bs.Fork(cmd.Context(), parentBranchID, branchPoint, name)
	if err != nil {
		return fmt.Errorf("fork branch: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "forked %s into %s (%s)\n", parentBranchID, fork.ID, fork.Name)
	return nil
}

// runSessionsBranchMerge merges sourceBranchID's turns after its fork point
// into targetBranchID.
func runSessionsBranchMerge(cmd *cobra.Command, configPath, sourceBranchID, targetBranchID string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	bs, err := session.OpenBranchStore(cfg.Session.DatabasePath)
	if err != nil {
		return fmt.Errorf("open branch store: %w", err)
	}
	defer bs.Close()

	if err := bs.MergeBranch(cmd.Context(), sourceBranchID, targetBranchID); err != nil {
		return fmt.Errorf("merge branch: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "merged %s into %s\n", sourceBranchID, targetBranchID)
	return nil
}

// runSessionsBranchArchive archives a branch, refusing further forks/merges
// from it.
func runSessionsBranchArchive(cmd *cobra.Command, configPath, branchID string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	bs, err := session.OpenBranchStore(cfg.Session.DatabasePath)
	if err != nil {
		return fmt.Errorf("open branch store: %w", err)
	}
	defer bs.Close()

	if err := bs.ArchiveBranch(cmd.Context(), branchID); err != nil {
		return fmt.Errorf("archive branch: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "archived %s\n", branchID)
	return nil
}
