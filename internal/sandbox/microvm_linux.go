//go:build linux

package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/firecracker-microvm/firecracker-go-sdk"
	fcmodels "github.com/firecracker-microvm/firecracker-go-sdk/client/models"
	"github.com/google/uuid"
)

// runMicroVM executes cmd by booting a single-use Firecracker microVM whose
// kernel command line runs cmd.Path/cmd.Args as the init process, capturing
// the serial console as the command's output. This is the tier §4.3
// reserves for untrusted code the container tier's shared-kernel isolation
// is not strong enough for.
//
// Grounded on internal/tools/sandbox/firecracker/vm.go's
// buildFirecrackerConfig/NewMicroVM/Start, narrowed from that file's
// persistent VM-pool-plus-vsock-guest-agent model (reused VMs executing
// RPCs over a long-lived vsock connection to a guest agent) to a
// single-shot boot/exec/collect/exit cycle: the workload command becomes
// the kernel's init= argument instead of a vsock RPC payload, since a
// sandbox.Config is already built fresh per call (spec.md §3's per-call
// ownership rule) and has no use for VM reuse across calls.
func runMicroVM(ctx context.Context, cfg Config, cmd Command) (Result, error) {
	if cfg.MicroVM.KernelPath == "" || cfg.MicroVM.RootFSPath == "" {
		return Result{}, fmt.Errorf("sandbox: microvm tier requires MicroVM.KernelPath and MicroVM.RootFSPath")
	}

	timeout := cfg.timeout()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	workDir := filepath.Join(os.TempDir(), "meao-microvm", uuid.NewString())
	if err := os.MkdirAll(workDir, 0o700); err != nil {
		return Result{}, fmt.Errorf("microvm: create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	logPath := filepath.Join(workDir, "console.log")
	if f, err := os.Create(logPath); err != nil {
		return Result{}, fmt.Errorf("microvm: create console log: %w", err)
	} else {
		f.Close()
	}

	vcpus := cfg.MicroVM.VCPUs
	if vcpus <= 0 {
		vcpus = 1
	}
	memMB := cfg.MicroVM.MemSizeMB
	if memMB <= 0 {
		memMB = 256
	}

	bootArgs := fmt.Sprintf("console=ttyS0 reboot=k panic=1 pci=off init=%s -- %s", cmd.Path, strings.Join(cmd.Args, " "))

	fcCfg := firecracker.Config{
		SocketPath:      filepath.Join(workDir, "api.sock"),
		LogPath:         logPath,
		LogLevel:        "Warning",
		KernelImagePath: cfg.MicroVM.KernelPath,
		KernelArgs:      bootArgs,
		Drives: []fcmodels.Drive{{
			DriveID:      firecracker.String("rootfs"),
			PathOnHost:   firecracker.String(cfg.MicroVM.RootFSPath),
			IsRootDevice: firecracker.Bool(true),
			IsReadOnly:   firecracker.Bool(false),
		}},
		MachineCfg: fcmodels.MachineConfiguration{
			VcpuCount:  firecracker.Int64(vcpus),
			MemSizeMib: firecracker.Int64(memMB),
			Smt:        firecracker.Bool(false),
		},
	}

	bin, err := exec.LookPath("firecracker")
	if err != nil {
		return Result{}, fmt.Errorf("microvm: firecracker binary not found: %w", err)
	}
	runner := firecracker.VMCommandBuilder{}.WithBin(bin).WithSocketPath(fcCfg.SocketPath).Build(ctx)

	machine, err := firecracker.NewMachine(ctx, fcCfg, firecracker.WithProcessRunner(runner))
	if err != nil {
		return Result{}, fmt.Errorf("microvm: create machine: %w", err)
	}

	start := time.Now()
	if err := machine.Start(ctx); err != nil {
		return Result{}, fmt.Errorf("microvm: start: %w", err)
	}
	defer machine.StopVMM()

	waitErr := machine.Wait(ctx)
	elapsed := time.Since(start)

	console, _ := os.ReadFile(logPath)
	result := Result{Stdout: string(console), DurationMS: elapsed.Milliseconds()}

	if ctx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		return result, nil
	}
	if waitErr != nil {
		// The guest's own exit code never reaches the host in this
		// single-shot model (no vsock RPC channel); a non-clean VMM
		// shutdown is the only failure signal available.
		result.ExitCode = 1
	}
	return result, nil
}
