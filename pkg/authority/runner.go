package authority

import (
	"context"
	"fmt"
	"os/exec"

	"golang.org/x/time/rate"
)

// Runner executes one query against the authority CLI and returns its stdout.
// It is the only seam between the audit pipeline and the outside world, which
// keeps every package above it testable without a real binary.
type Runner interface {
	Run(ctx context.Context, args ...string) ([]byte, error)
}

// ExecRunner invokes the authority binary as a child process. All calls pass
// through a shared token bucket so fan-out stages cannot burst past the
// authority's API throttle.
type ExecRunner struct {
	BinaryPath string
	limiter    *rate.Limiter
}

// NewExecRunner creates a runner for the given binary. ratePerSec <= 0
// disables throttling.
func NewExecRunner(binaryPath string, ratePerSec int) *ExecRunner {
	limit := rate.Inf
	burst := 1
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
		burst = ratePerSec
	}
	return &ExecRunner{
		BinaryPath: binaryPath,
		limiter:    rate.NewLimiter(limit, burst),
	}
}

func (r *ExecRunner) Run(ctx context.Context, args ...string) ([]byte, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, r.BinaryPath, args...)
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%s %v: %w: %s", r.BinaryPath, args, err, string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("%s %v: %w", r.BinaryPath, args, err)
	}
	return output, nil
}
