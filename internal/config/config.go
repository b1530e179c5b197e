// Package config loads meao's YAML configuration: provider credentials,
// orchestrator limits, sandbox defaults, approval policy, and audit
// retention.
//
// Grounded on internal/config/config.go's section-per-concern struct
// layout (ToolsConfig/SandboxConfig/ApprovalConfig/LLMConfig), narrowed to
// the sections this core actually owns.
package config

import "time"

// Config is the root configuration document.
type Config struct {
	Providers    map[string]ProviderConfig `yaml:"providers"`
	Orchestrator OrchestratorConfig        `yaml:"orchestrator"`
	Sandbox      SandboxConfig             `yaml:"sandbox"`
	Approval     ApprovalConfig            `yaml:"approval"`
	Audit        AuditConfig               `yaml:"audit"`
	Session      SessionConfig             `yaml:"session"`
}

// ProviderConfig is one LLM provider's credentials and defaults, keyed by
// provider name ("anthropic", "openai") in Config.Providers.
type ProviderConfig struct {
	APIKey       string `yaml:"api_key"`
	DefaultModel string `yaml:"default_model"`
	BaseURL      string `yaml:"base_url"`
	MaxRetries   int    `yaml:"max_retries"`
}

// OrchestratorConfig bounds a session's turn/tool-loop.
type OrchestratorConfig struct {
	MaxTurns              int     `yaml:"max_turns"`
	MaxToolCallsPerTurn   int     `yaml:"max_tool_calls_per_turn"`
	InputPricePerMillion  float64 `yaml:"input_price_per_million"`
	OutputPricePerMillion float64 `yaml:"output_price_per_million"`
}

// SandboxConfig is the process-wide default sandbox profile; individual
// tool capabilities may override Tier/Network per spec.md §4.3.
type SandboxConfig struct {
	DefaultTier     string        `yaml:"default_tier"`
	Image           string        `yaml:"image"`
	TimeoutMS       int64         `yaml:"timeout_ms"`
	MaxOutputBytes  int64         `yaml:"max_output_bytes"`
	MemLimitMB      int64         `yaml:"mem_limit_mb"`
	CPULimit        float64       `yaml:"cpu_limit"`
	PidsLimit       int64         `yaml:"pids_limit"`
	EgressAllowlist []string      `yaml:"egress_allowlist"`
	AllowedPaths    []string      `yaml:"allowed_paths"`
	RequestTTL      time.Duration `yaml:"request_ttl"`

	// MicroVMKernelPath/MicroVMRootFSPath select the boot images the
	// microvm tier uses; required only when DefaultTier (or a tool
	// capability's Execution.Sandbox) is "microvm".
	MicroVMKernelPath string `yaml:"microvm_kernel_path"`
	MicroVMRootFSPath string `yaml:"microvm_rootfs_path"`
	MicroVMVCPUs      int64  `yaml:"microvm_vcpus"`
	MicroVMMemMB      int64  `yaml:"microvm_mem_mb"`
}

// ApprovalConfig is the process-wide default approval policy;
// tool-specific overrides live on each ToolPlugin's Capability.
type ApprovalConfig struct {
	DefaultLevel   string   `yaml:"default_level"`
	SafeBins       []string `yaml:"safe_bins"`
	DangerPatterns []string `yaml:"danger_patterns"`

	// ElevatedTools lists tool-name patterns eligible for the elevated-full
	// approval bypass (see internal/policy.ElevatedFull).
	ElevatedTools []string `yaml:"elevated_tools"`
}

// AuditConfig configures the AuditStore's persistence.
type AuditConfig struct {
	Dir              string `yaml:"dir"`
	IntegrityEnabled bool   `yaml:"integrity_enabled"`
}

// SessionConfig configures session persistence.
type SessionConfig struct {
	DatabasePath string        `yaml:"database_path"`
	Idle         time.Duration `yaml:"idle_timeout"`
}
