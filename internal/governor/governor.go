// Package governor bounds process-wide concurrent CPU-bound work and open
// file descriptors across simultaneous runs, using two anonymous counting
// semaphores sized independently of any single run's worker count.
package governor

import (
	"context"
	"runtime"

	"github.com/adapipe/adapipe/internal/errs"
)

// Governor hands out CPU and file-descriptor permits. A single Governor is
// constructed explicitly by the CLI or caller and threaded into every run;
// it is never an ambient singleton, so tests can give each run its own
// limits.
type Governor struct {
	cpu chan struct{}
	fd  chan struct{}
}

// New builds a Governor with the given permit counts. A non-positive count
// defaults to runtime.NumCPU() for cpuPermits and 4*runtime.NumCPU() for
// fdPermits.
func New(cpuPermits, fdPermits int) *Governor {
	if cpuPermits <= 0 {
		cpuPermits = runtime.NumCPU()
	}
	if fdPermits <= 0 {
		fdPermits = 4 * runtime.NumCPU()
	}
	return &Governor{
		cpu: make(chan struct{}, cpuPermits),
		fd:  make(chan struct{}, fdPermits),
	}
}

// AcquireCPU blocks until a CPU permit is free or ctx is done.
func (g *Governor) AcquireCPU(ctx context.Context) error {
	select {
	case g.cpu <- struct{}{}:
		return nil
	case <-ctx.Done():
		return errs.Wrap(errs.Cancelled, "governor.AcquireCPU", "acquire cpu permit", ctx.Err())
	}
}

// ReleaseCPU returns a CPU permit. Must be paired with a prior successful
// AcquireCPU.
func (g *Governor) ReleaseCPU() {
	<-g.cpu
}

// AcquireFD blocks until a file-descriptor permit is free or ctx is done.
func (g *Governor) AcquireFD(ctx context.Context) error {
	select {
	case g.fd <- struct{}{}:
		return nil
	case <-ctx.Done():
		return errs.Wrap(errs.Cancelled, "governor.AcquireFD", "acquire fd permit", ctx.Err())
	}
}

// ReleaseFD returns a file-descriptor permit. Must be paired with a prior
// successful AcquireFD.
func (g *Governor) ReleaseFD() {
	<-g.fd
}

// CPUAvailable reports the number of free CPU permits, for diagnostics.
func (g *Governor) CPUAvailable() int { return cap(g.cpu) - len(g.cpu) }

// FDAvailable reports the number of free file-descriptor permits.
func (g *Governor) FDAvailable() int { return cap(g.fd) - len(g.fd) }
