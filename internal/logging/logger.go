// internal/logging/logger.go
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Log levels
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
	LevelFatal = "fatal"
)

// Log formats
const (
	FormatJSON   = "json"
	FormatText   = "text"
	FormatLogfmt = "logfmt"
)

// Context keys. A run has exactly two pieces of ambient identity worth
// carrying on a context.Context: which run it is and which persisted
// pipeline definition it is executing. Per-chunk state (sequence number,
// stage name) moves too fast and too concurrently to live on a context —
// it is threaded explicitly through procctx.Context and FileChunk instead.
type contextKey string

var (
	ContextKeyRunID      = contextKey("run_id")
	ContextKeyPipelineID = contextKey("pipeline_id")
)

// LevelValue returns numeric value for level comparison
func LevelValue(level string) int {
	switch level {
	case LevelDebug:
		return 0
	case LevelInfo:
		return 1
	case LevelWarn:
		return 2
	case LevelError:
		return 3
	case LevelFatal:
		return 4
	default:
		return 1
	}
}

// LoggerConfig configures a logger. When Aggregator is set, entries are
// handed to it for batched delivery instead of being formatted and written
// inline; Output and Format then only apply to loggers sharing this config
// without the aggregator.
type LoggerConfig struct {
	Level      string         `json:"level"`
	Format     string         `json:"format"`
	Output     io.Writer      `json:"-"`
	Async      bool           `json:"async"`
	Aggregator *LogAggregator `json:"-"`
}

// Validate checks configuration
func (c *LoggerConfig) Validate() error {
	validLevels := map[string]bool{
		LevelDebug: true, LevelInfo: true, LevelWarn: true,
		LevelError: true, LevelFatal: true, "": true,
	}
	if !validLevels[c.Level] {
		return fmt.Errorf("logging: invalid level: %s", c.Level)
	}
	return nil
}

// ApplyDefaults fills in default values
func (c *LoggerConfig) ApplyDefaults() {
	if c.Level == "" {
		c.Level = LevelInfo
	}
	if c.Format == "" {
		c.Format = FormatJSON
	}
	if c.Output == nil {
		c.Output = os.Stdout
	}
}

// LogEntry represents a log entry
type LogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Timestamp time.Time              `json:"timestamp"`
	Logger    string                 `json:"logger,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Logger is a structured logger
type Logger struct {
	config  *LoggerConfig
	fields  map[string]interface{}
	name    string
	asyncCh chan *LogEntry
	mu      sync.Mutex
}

// NewLogger creates a logger
func NewLogger(config *LoggerConfig) *Logger {
	if config == nil {
		config = &LoggerConfig{}
	}
	config.ApplyDefaults()

	l := &Logger{
		config: config,
		fields: make(map[string]interface{}),
	}

	if config.Async {
		l.asyncCh = make(chan *LogEntry, 1000)
		go l.asyncWriter()
	}

	return l
}

func (l *Logger) asyncWriter() {
	for entry := range l.asyncCh {
		l.writeEntry(entry)
	}
}

// Sync flushes async logs
func (l *Logger) Sync() {
	if l.asyncCh != nil {
		// Wait for channel to drain
		for len(l.asyncCh) > 0 {
			time.Sleep(10 * time.Millisecond)
		}
		time.Sleep(10 * time.Millisecond)
		// An entry may have been dequeued but not yet written; taking the
		// write mutex waits out any in-flight writeEntry.
		l.mu.Lock()
		l.mu.Unlock() //nolint:staticcheck // empty critical section is the point
	}
}

// With returns a logger with additional fields
func (l *Logger) With(keyvals ...string) *Logger {
	child := &Logger{
		config:  l.config,
		fields:  make(map[string]interface{}),
		name:    l.name,
		asyncCh: l.asyncCh,
	}

	// Copy parent fields
	for k, v := range l.fields {
		child.fields[k] = v
	}

	// Add new fields
	for i := 0; i < len(keyvals)-1; i += 2 {
		child.fields[keyvals[i]] = keyvals[i+1]
	}

	return child
}

// WithError returns a logger with error field
func (l *Logger) WithError(err error) *Logger {
	child := l.With()
	child.fields["error"] = err.Error()
	return child
}

// WithContext extracts the run and pipeline id, if present, from ctx.
// Orchestrator.Process stamps both onto the run's context at the top of the
// run; Orchestrator.Restore stamps the run id at the top and the pipeline id
// once the container header has been read, so every log line emitted for
// that run after that point — including
// ones logged deep inside a helper that doesn't have req.PipelineID in
// scope — carries the same two identifiers.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	child := l.With()

	if v := ctx.Value(ContextKeyRunID); v != nil {
		child.fields["run_id"] = v
	}
	if v := ctx.Value(ContextKeyPipelineID); v != nil {
		child.fields["pipeline_id"] = v
	}

	return child
}

// WithRun returns a child logger tagged with runID under the same field
// name WithContext uses, for call sites that have a run id in hand but no
// context.Context worth threading (e.g. a one-off CLI report line).
func (l *Logger) WithRun(runID string) *Logger {
	return l.With("run_id", runID)
}

// WithPipeline returns a child logger tagged with pipelineID under the
// same field name WithContext uses.
func (l *Logger) WithPipeline(pipelineID string) *Logger {
	return l.With("pipeline_id", pipelineID)
}

// Named returns a named child logger
func (l *Logger) Named(name string) *Logger {
	child := l.With()
	if l.name != "" {
		child.name = l.name + "." + name
	} else {
		child.name = name
	}
	return child
}

func (l *Logger) log(level, message string) {
	if LevelValue(level) < LevelValue(l.config.Level) {
		return
	}

	entry := &LogEntry{
		Level:     level,
		Message:   message,
		Timestamp: time.Now().UTC(),
		Logger:    l.name,
		Fields:    l.fields,
	}

	if l.config.Aggregator != nil {
		l.config.Aggregator.Add(entry)
		return
	}

	if l.asyncCh != nil {
		select {
		case l.asyncCh <- entry:
		default:
			// Channel full, write synchronously
			l.writeEntry(entry)
		}
	} else {
		l.writeEntry(entry)
	}
}

func (l *Logger) writeEntry(entry *LogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var output string
	switch l.config.Format {
	case FormatJSON:
		output = l.formatJSON(entry)
	case FormatText:
		output = l.formatText(entry)
	case FormatLogfmt:
		output = l.formatLogfmt(entry)
	default:
		output = l.formatJSON(entry)
	}

	_, _ = fmt.Fprint(l.config.Output, output)
}

func (l *Logger) formatJSON(entry *LogEntry) string {
	data := map[string]interface{}{
		"level":     entry.Level,
		"message":   entry.Message,
		"timestamp": entry.Timestamp.Format(time.RFC3339),
	}

	if entry.Logger != "" {
		data["logger"] = entry.Logger
	}

	for k, v := range entry.Fields {
		data[k] = v
	}

	bytes, _ := json.Marshal(data)
	return string(bytes) + "\n"
}

func (l *Logger) formatText(entry *LogEntry) string {
	var sb strings.Builder
	sb.WriteString(entry.Timestamp.Format("2006-01-02 15:04:05"))
	sb.WriteString(" ")
	sb.WriteString(strings.ToUpper(entry.Level))
	sb.WriteString(" ")
	sb.WriteString(entry.Message)

	for k, v := range entry.Fields {
		sb.WriteString(" ")
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(fmt.Sprintf("%v", v))
	}

	sb.WriteString("\n")
	return sb.String()
}

func (l *Logger) formatLogfmt(entry *LogEntry) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("ts=%s ", entry.Timestamp.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("level=%s ", entry.Level))
	sb.WriteString(fmt.Sprintf("msg=%q ", entry.Message))

	for k, v := range entry.Fields {
		sb.WriteString(fmt.Sprintf("%s=%v ", k, v))
	}

	sb.WriteString("\n")
	return sb.String()
}

// Debug logs at debug level
func (l *Logger) Debug(message string) {
	l.log(LevelDebug, message)
}

// Info logs at info level
func (l *Logger) Info(message string) {
	l.log(LevelInfo, message)
}

// Warn logs at warn level
func (l *Logger) Warn(message string) {
	l.log(LevelWarn, message)
}

// Error logs at error level
func (l *Logger) Error(message string) {
	l.log(LevelError, message)
}

// Fatal logs at fatal level
func (l *Logger) Fatal(message string) {
	l.log(LevelFatal, message)
}

// AggregatorConfig configures batched log delivery. MinLevel is a second
// floor below which entries are discarded outright; batching parameters
// bound memory and flush latency.
type AggregatorConfig struct {
	BufferSize    int           `json:"buffer_size"`
	FlushInterval time.Duration `json:"flush_interval"`
	MinLevel      string        `json:"min_level"`
}

// AggregatorStats counts what the aggregator has done with entries so far.
type AggregatorStats struct {
	Buffered int64
	Flushed  int64
	Dropped  int64
}

// Destination receives flushed batches of entries.
type Destination interface {
	Write(entries []*LogEntry) error
}

// WriterDestination renders each entry of a batch as one flattened JSON
// line on an io.Writer, matching the shape Logger's own JSON format emits:
// fields are promoted to top-level keys rather than nested under "fields".
type WriterDestination struct {
	Writer io.Writer
}

func (d *WriterDestination) Write(entries []*LogEntry) error {
	for _, entry := range entries {
		line := map[string]interface{}{
			"level":     entry.Level,
			"message":   entry.Message,
			"timestamp": entry.Timestamp.Format(time.RFC3339),
		}
		if entry.Logger != "" {
			line["logger"] = entry.Logger
		}
		for k, v := range entry.Fields {
			line[k] = v
		}
		data, err := json.Marshal(line)
		if err != nil {
			continue
		}
		if _, err := d.Writer.Write(append(data, '\n')); err != nil {
			return err
		}
	}
	return nil
}

// LogAggregator batches run log entries before delivering them to its
// destinations. A multi-gigabyte run emits log lines in bursts — one
// sampled progress line per committed chunk window, plus per-stage events
// — and writing each one to the terminal individually puts a syscall on
// the run's hot path. The aggregator absorbs those bursts in memory and
// flushes them on an interval, or on Stop at the end of the process.
// When the buffer is full, new entries are dropped and counted rather
// than blocking the run.
type LogAggregator struct {
	config       *AggregatorConfig
	mu           sync.Mutex
	buffer       []*LogEntry
	destinations []Destination
	onFlush      func([]*LogEntry)
	stats        AggregatorStats
	stopCh       chan struct{}
	stopOnce     sync.Once
}

// NewLogAggregator builds an aggregator; nil config gets the defaults.
func NewLogAggregator(config *AggregatorConfig) *LogAggregator {
	if config == nil {
		config = &AggregatorConfig{}
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 1000
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 5 * time.Second
	}
	return &LogAggregator{
		config: config,
		buffer: make([]*LogEntry, 0, config.BufferSize),
		stopCh: make(chan struct{}),
	}
}

// Add buffers one entry for the next flush. Entries below MinLevel are
// discarded; entries arriving while the buffer is full are dropped and
// counted, never blocked on.
func (a *LogAggregator) Add(entry *LogEntry) {
	if a.config.MinLevel != "" && LevelValue(entry.Level) < LevelValue(a.config.MinLevel) {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.buffer) >= a.config.BufferSize {
		a.stats.Dropped++
		return
	}
	a.buffer = append(a.buffer, entry)
	a.stats.Buffered++
}

// AddDestination registers a flush target.
func (a *LogAggregator) AddDestination(dest Destination) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.destinations = append(a.destinations, dest)
}

// OnFlush sets a callback invoked with each flushed batch, before the
// destinations see it.
func (a *LogAggregator) OnFlush(fn func([]*LogEntry)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onFlush = fn
}

// Start launches the interval flush loop.
func (a *LogAggregator) Start() {
	go func() {
		ticker := time.NewTicker(a.config.FlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				a.Flush()
			case <-a.stopCh:
				return
			}
		}
	}()
}

// Stop ends the flush loop and flushes whatever is still buffered.
// Idempotent, so it can sit in a defer next to an explicit call.
func (a *LogAggregator) Stop() {
	a.stopOnce.Do(func() { close(a.stopCh) })
	a.Flush()
}

// Flush swaps the buffer out under the lock, then delivers the batch to
// the callback and destinations without holding it.
func (a *LogAggregator) Flush() {
	a.mu.Lock()
	if len(a.buffer) == 0 {
		a.mu.Unlock()
		return
	}
	entries := a.buffer
	a.buffer = make([]*LogEntry, 0, a.config.BufferSize)
	a.stats.Flushed += int64(len(entries))
	a.stats.Buffered -= int64(len(entries))
	onFlush := a.onFlush
	destinations := a.destinations
	a.mu.Unlock()

	if onFlush != nil {
		onFlush(entries)
	}
	for _, dest := range destinations {
		_ = dest.Write(entries)
	}
}

// Stats returns a snapshot of the aggregator's counters.
func (a *LogAggregator) Stats() AggregatorStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// ChunkProgressReporter adapts a Logger into an orchestrator.ProgressReporter
// (it satisfies that interface structurally: OnChunkWritten(sequenceNumber,
// totalChunks uint64)). It is always called from the executor's single
// writer goroutine, once per committed chunk, in sequence order — the same
// goroutine that enforces the reorder-window ordering guarantee. Logging
// every chunk synchronously there would put disk I/O for a log line on the
// critical path of every write; a multi-gigabyte run can commit tens of
// thousands of chunks. So this reporter forces asynchronous delivery
// (regardless of the underlying Logger's own LoggerConfig.Async setting)
// and samples: it logs every sampleEvery-th chunk plus, always, the final
// one.
type ChunkProgressReporter struct {
	logger      *Logger
	sampleEvery uint64
}

// NewChunkProgressReporter builds a reporter that logs through a private
// async child of logger.
func NewChunkProgressReporter(logger *Logger, sampleEvery uint64) *ChunkProgressReporter {
	if sampleEvery == 0 {
		sampleEvery = 1
	}
	return &ChunkProgressReporter{logger: logger.withAsync(), sampleEvery: sampleEvery}
}

// OnChunkWritten logs a sampled progress line. It never blocks: the
// underlying async logger enqueues onto a buffered channel and, if that
// channel is momentarily full, falls back to a synchronous write rather
// than stalling the caller indefinitely (see Logger.log).
func (p *ChunkProgressReporter) OnChunkWritten(sequenceNumber, totalChunks uint64) {
	final := totalChunks > 0 && sequenceNumber+1 == totalChunks
	if !final && sequenceNumber%p.sampleEvery != 0 {
		return
	}
	p.logger.With(
		"sequence", fmt.Sprint(sequenceNumber+1),
		"total", fmt.Sprint(totalChunks),
	).Info("chunk committed")
}

// withAsync returns a child logger with its own async delivery channel and
// background drain goroutine, independent of the parent's Async setting.
func (l *Logger) withAsync() *Logger {
	child := l.With()
	child.asyncCh = make(chan *LogEntry, 1000)
	go child.asyncWriter()
	return child
}
