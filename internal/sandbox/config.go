// Package sandbox implements the escalating tool-execution isolation tiers
// (none/process/container, plus a microvm tier) and the egress proxy that mediates any
// network access a sandboxed tool call is granted.
//
// Grounded on internal/tools/sandbox/executor.go's Docker-backed executor,
// generalized from a single code-execution tool into a general-purpose
// command sandbox selected per tool capability.
package sandbox

import "time"

// Tier selects the isolation strength a tool call executes under.
type Tier string

const (
	TierNone      Tier = "none"
	TierProcess   Tier = "process"
	TierContainer Tier = "container"
	TierMicroVM   Tier = "microvm"
)

// EnvPolicy controls what environment variables a process/container tier
// execution inherits.
type EnvPolicy string

const (
	EnvInherit  EnvPolicy = "inherit"
	EnvClean    EnvPolicy = "clean"
	EnvExplicit EnvPolicy = "explicit"
)

// NetworkMode selects the container tier's network namespace configuration.
type NetworkMode string

const (
	NetworkNone  NetworkMode = "none"
	NetworkProxy NetworkMode = "proxy"
	NetworkHost  NetworkMode = "host"
)

// Config parameterizes a single sandboxed execution. It is constructed fresh
// per tool call; SandboxExecutor owns no state across calls (spec.md §3
// ownership rule).
type Config struct {
	Tier Tier

	WorkDir        string
	TimeoutMS      int
	MaxOutputBytes int

	EnvPolicy      EnvPolicy
	EnvAllowlist   []string // only used when EnvPolicy == EnvExplicit
	AllowedPaths   []string
	BlockedPaths   []string

	Network NetworkMode

	// Container-only fields.
	Image        string
	MemLimitMB   int
	CPULimit     float64 // cores, e.g. 0.5
	PidsLimit    int
	Mounts       []Mount
	DropAllCaps  bool
	ReadOnlyRoot bool
	NonRootUID   bool

	// EgressAllowlist is the set of glob host patterns the egress proxy
	// permits when Network == NetworkProxy.
	EgressAllowlist []string
	// ExtraBlockedRanges supplements the built-in RFC1918/loopback/
	// link-local/cloud-metadata blocklist with operator-configured CIDRs.
	ExtraBlockedRanges []string

	// MicroVM parameterizes the microvm tier; ignored by every other tier.
	MicroVM MicroVMProfile
}

// MicroVMProfile names the kernel/rootfs images and resource shape a
// microvm-tier call boots. Unlike the container tier's portable --image
// flag, these are host-local filesystem paths a deployment must provision,
// so they are never defaulted the way Image/MemLimitMB are.
type MicroVMProfile struct {
	KernelPath string
	RootFSPath string
	VCPUs      int64
	MemSizeMB  int64
}

// Mount describes a container bind mount.
type Mount struct {
	HostPath      string
	ContainerPath string
	ReadOnly      bool
}

func (c Config) timeout() time.Duration {
	if c.TimeoutMS <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// Result is the outcome of a single sandboxed command execution.
type Result struct {
	ExitCode   int
	Stdout     string
	Stderr     string
	TimedOut   bool
	Truncated  bool
	DurationMS int64
}

// Command is a single, non-shell-interpolated program invocation.
type Command struct {
	Path string
	Args []string
	// Stdin, if non-empty, is piped to the process.
	Stdin string
}
