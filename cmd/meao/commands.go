package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// buildRunCmd builds the `run` subcommand: load config, wire every
// collaborator, and drive the orchestrator from the CLI channel until EOF
// or a shutdown signal.
func buildRunCmd() *cobra.Command {
	var configPath string
	var userID string
	var providerName string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run meao against the CLI channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, resolveConfigPath(configPath), userID, providerName)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Path to meao.yaml (default: $MEAO_CONFIG or meao.yaml)")
	cmd.Flags().StringVar(&userID, "user", "local", "User ID to attach to the session")
	cmd.Flags().StringVar(&providerName, "provider", "", "Provider to use (default: first configured)")
	return cmd
}

// buildAuditCmd groups maintenance operations over the audit log's
// day-rotated JSONL files (verify reads them; purge deletes expired days),
// grounded on internal/audit.ReadDay/
// VerifyChain/Purge which are otherwise only exercised by tests.
func buildAuditCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit trail",
	}

	var day string
	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify the integrity chain for one day's audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuditVerify(cmd, resolveConfigPath(configPath), day)
		},
	}
	verifyCmd.Flags().StringVar(&day, "day", time.Now().UTC().Format("2006-01-02"), "Day to verify, YYYY-MM-DD (UTC)")

	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete audit log days past their retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuditPurge(cmd, resolveConfigPath(configPath))
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to meao.yaml (default: $MEAO_CONFIG or meao.yaml)")
	cmd.AddCommand(verifyCmd, purgeCmd)
	return cmd
}

// buildSessionsCmd groups operations over the branch store `meao run`
// maintains alongside each session: listing forks, forking a speculative
// continuation from a turn index, merging one back, and archiving a
// branch nobody needs anymore. Grounded on internal/sessions/branch_store.go,
// scoped down to this core's single-process, SQLite-backed session store.
func buildSessionsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and fork session branches",
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to meao.yaml (default: $MEAO_CONFIG or meao.yaml)")

	branchesCmd := &cobra.Command{Use: "branches", Short: "Manage session branches"}

	listCmd := &cobra.Command{
		Use:   "list <session-id>",
		Short: "List every branch recorded for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsBranchList(cmd, resolveConfigPath(configPath), args[0])
		},
	}

	var branchPoint int
	var forkName string
	forkCmd := &cobra.Command{
		Use:   "fork <parent-branch-id>",
		Short: "Fork a branch at a turn index into a new named branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsBranchFork(cmd, resolveConfigPath(configPath), args[0], forkName, branchPoint)
		},
	}
	forkCmd.Flags().IntVar(&branchPoint, "at-turn", 0, "Turn index to fork from")
	forkCmd.Flags().StringVar(&forkName, "name", "", "Name for the new branch")

	mergeCmd := &cobra.Command{
		Use:   "merge <source-branch-id> <target-branch-id>",
		Short: "Merge a branch's turns after its fork point into another branch",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsBranchMerge(cmd, resolveConfigPath(configPath), args[0], args[1])
		},
	}

	archiveCmd := &cobra.Command{
		Use:   "archive <branch-id>",
		Short: "Archive a branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsBranchArchive(cmd, resolveConfigPath(configPath), args[0])
		},
	}

	branchesCmd.AddCommand(listCmd, forkCmd, mergeCmd, archiveCmd)
	cmd.AddCommand(branchesCmd)
	return cmd
}

// buildJobsCmd prints a description of the async tool-job runner `meao run`
// wires; it takes no flags and queries nothing, since jobs.MemoryStore only
// lives as long as the run process does.
func buildJobsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "Describe the async tool-job runner",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), "async tool jobs are tracked in-process by `meao run`; there is no standalone job store to query between runs.")
			return nil
		},
	}
}
