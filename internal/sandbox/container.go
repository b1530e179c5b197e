package sandbox

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// runContainer executes cmd inside an OCI container via the docker CLI,
// applying the container tier's full lockdown: dropped capabilities,
// read-only root, non-root user, pids/CPU/memory limits, and the selected
// network mode.
//
// Grounded on dockerExecutor.Run/baseDockerArgs, generalized from a fixed
// per-language image to an arbitrary cfg.Image and from a single hardcoded
// "--network none" to the three-way NetworkMode this package exposes.
func runContainer(ctx context.Context, cfg Config, cmd Command) (Result, error) {
	timeout := cfg.timeout()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{"run", "--rm"}
	args = append(args, containerNetworkArgs(cfg)...)
	args = append(args, containerResourceArgs(cfg)...)
	args = append(args, containerSecurityArgs(cfg)...)
	args = append(args, containerMountArgs(cfg)...)

	if cmd.Stdin != "" {
		args = append(args, "-i")
	}
	args = append(args, "-w", "/workspace")
	args = append(args, cfg.Image)
	args = append(args, cmd.Path)
	args = append(args, cmd.Args...)

	dc := exec.CommandContext(ctx, "docker", args...)
	if cmd.Stdin != "" {
		dc.Stdin = strings.NewReader(cmd.Stdin)
	}

	var stdout, stderr limitedBuffer
	maxBytes := cfg.MaxOutputBytes
	if maxBytes <= 0 {
		maxBytes = 10 * 1024 * 1024
	}
	stdout.limit, stderr.limit = maxBytes, maxBytes
	dc.Stdout, dc.Stderr = &stdout, &stderr

	start := time.Now()
	err := dc.Run()
	elapsed := time.Since(start)

	result := Result{
		Stdout:     stdout.buf.String(),
		Stderr:     stderr.buf.String(),
		Truncated:  stdout.truncated || stderr.truncated,
		DurationMS: elapsed.Milliseconds(),
	}

	if ctx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		return result, nil
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("docker run: %w", err)
	}
	return result, nil
}

func containerNetworkArgs(cfg Config) []string {
	switch cfg.Network {
	case NetworkHost:
		return []string{"--network", "host"}
	case NetworkProxy:
		// The egress proxy mediates all traffic from inside a "none"
		// network namespace's perspective is impossible; proxy mode runs
		// the container with a dedicated bridge network that only the
		// egress proxy listens on.
		return []string{"--network", "meao-egress-proxy"}
	case NetworkNone:
		fallthrough
	default:
		return []string{"--network", "none"}
	}
}

func containerResourceArgs(cfg Config) []string {
	mem := cfg.MemLimitMB
	if mem <= 0 {
		mem = 512
	}
	cpu := cfg.CPULimit
	if cpu <= 0 {
		cpu = 1.0
	}
	pids := cfg.PidsLimit
	if pids <= 0 {
		pids = 100
	}
	return []string{
		"--cpus", strconv.FormatFloat(cpu, 'f', 2, 64),
		"--memory", fmt.Sprintf("%dm", mem),
		"--memory-swap", fmt.Sprintf("%dm", mem),
		"--pids-limit", strconv.Itoa(pids),
		"--ulimit", "nofile=1024:1024",
	}
}

// containerSecurityArgs applies the non-negotiable container tier defaults:
// all capabilities dropped, read-only root filesystem, non-root user. These
// are always on regardless of cfg fields, matching spec.md §4.3's "Default
// capabilities: all dropped" / "Root filesystem: read-only" language, which
// states the container tier's baseline rather than a configurable option.
func containerSecurityArgs(cfg Config) []string {
	return []string{"--cap-drop", "ALL", "--security-opt", "no-new-privileges", "--read-only", "--user", "65534:65534"}
}

func containerMountArgs(cfg Config) []string {
	args := []string{"--tmpfs", "/tmp:rw,noexec,nosuid,size=64m"}
	args = append(args, "-v", fmt.Sprintf("%s:/workspace:rw", cfg.WorkDir))
	for _, m := range cfg.Mounts {
		mode := "ro"
		if !m.ReadOnly {
			mode = "rw"
		}
		args = append(args, "-v", fmt.Sprintf("%s:%s:%s", m.HostPath, m.ContainerPath, mode))
	}
	return args
}
