//go:build !linux

package sandbox

import (
	"context"
	"errors"
)

// ErrMicroVMUnsupported is returned for the microvm tier on platforms
// Firecracker does not run on.
//
// Grounded on internal/tools/sandbox/firecracker/stub_other.go's
// !linux build-tagged stand-in for the real backend.
var ErrMicroVMUnsupported = errors.New("sandbox: microvm tier is only supported on Linux")

func runMicroVM(ctx context.Context, cfg Config, cmd Command) (Result, error) {
	return Result{}, ErrMicroVMUnsupported
}
