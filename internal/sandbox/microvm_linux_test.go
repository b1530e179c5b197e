//go:build linux

package sandbox

import (
	"context"
	"strings"
	"testing"
)

func TestRunMicroVMRequiresKernelAndRootFS(t *testing.T) {
	_, err := runMicroVM(context.Background(), Config{Tier: TierMicroVM}, Command{Path: "/sbin/true"})
	if err == nil {
		t.Fatal("expected error for missing MicroVM profile")
	}
	if !strings.Contains(err.Error(), "KernelPath") {
		t.Errorf("expected error to mention KernelPath, got %v", err)
	}
}

func TestRunMicroVMSurfacesMissingBinary(t *testing.T) {
	cfg := Config{
		Tier: TierMicroVM,
		MicroVM: MicroVMProfile{
			KernelPath: "/nonexistent/vmlinux",
			RootFSPath: "/nonexistent/rootfs.ext4",
		},
	}
	_, err := runMicroVM(context.Background(), cfg, Command{Path: "/sbin/true"})
	if err == nil {
		t.Fatal("expected error when the firecracker binary is unavailable")
	}
}
