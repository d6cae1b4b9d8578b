// Package procctx defines ProcessingContext, the per-run mutable state
// shared by every stage invocation in a single run. It is owned exclusively
// by the orchestrator and cloned (shallow, copy-on-write for counters) per
// worker task.
package procctx

import (
	"sync"
	"time"
)

// SecurityLevel is descriptive run metadata carried on the processing
// context; it is not written to the container and does not gate behavior
// in this implementation.
type SecurityLevel string

const (
	SecurityPublic       SecurityLevel = "public"
	SecurityInternal     SecurityLevel = "internal"
	SecurityConfidential SecurityLevel = "confidential"
	SecurityRestricted   SecurityLevel = "restricted"
)

// SecurityContext carries the security level and active key id for a run.
type SecurityContext struct {
	Level SecurityLevel
	KeyID string
}

// Context is per-run mutable state: input/output paths, the security
// context, running checksums keyed by stage name, bytes processed, and the
// run's start time.
type Context struct {
	RunID      string
	InputPath  string
	OutputPath string
	Security   SecurityContext
	StartTime  time.Time

	mu             sync.Mutex
	checksums      map[string][]byte
	bytesProcessed int64
}

// New creates a fresh Context for one run.
func New(runID, inputPath, outputPath string, security SecurityContext) *Context {
	return &Context{
		RunID:      runID,
		InputPath:  inputPath,
		OutputPath: outputPath,
		Security:   security,
		StartTime:  time.Now(),
		checksums:  make(map[string][]byte),
	}
}

// Clone returns a shallow copy suitable for handing to a worker task: the
// checksum map is shared by reference (stages synchronize their own writes
// to it), but the per-worker counter fields are independent.
func (c *Context) Clone() *Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &Context{
		RunID:      c.RunID,
		InputPath:  c.InputPath,
		OutputPath: c.OutputPath,
		Security:   c.Security,
		StartTime:  c.StartTime,
		checksums:  c.checksums,
	}
}

// SetChecksum records the running digest for a named stage.
func (c *Context) SetChecksum(stageName string, digest []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checksums[stageName] = digest
}

// Checksum returns the running digest for a named stage, if any.
func (c *Context) Checksum(stageName string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.checksums[stageName]
	return d, ok
}

// AddBytesProcessed accumulates bytes seen by the run.
func (c *Context) AddBytesProcessed(n int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bytesProcessed += n
}

// BytesProcessed returns the total bytes processed so far.
func (c *Context) BytesProcessed() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytesProcessed
}
