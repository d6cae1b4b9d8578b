// cmd/adapipe/main.go
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/adapipe/adapipe/internal/config"
	"github.com/adapipe/adapipe/internal/database"
	"github.com/adapipe/adapipe/internal/errs"
	"github.com/adapipe/adapipe/internal/governor"
	"github.com/adapipe/adapipe/internal/keyprovider"
	"github.com/adapipe/adapipe/internal/logging"
	"github.com/adapipe/adapipe/internal/metrics"
	"github.com/adapipe/adapipe/internal/orchestrator"
	"github.com/adapipe/adapipe/internal/pipelinedef"
)

// Exit codes map the errs.Kind taxonomy onto a stable CLI contract.
const (
	exitOK              = 0
	exitUsage           = 1
	exitNotFound        = 2
	exitIntegrityFailed = 3
	exitIOError         = 4
	exitCancelled       = 5
	exitInternal        = 6
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return exitUsage
	}

	cfg := config.Default()
	config.LoadFromEnv(cfg)

	zlog, _ := zap.NewProduction()
	defer func() { _ = zlog.Sync() }()

	// Run log lines are batched: a long run emits them in bursts (sampled
	// chunk progress, stage events), and flushing on an interval keeps log
	// I/O off the chunk-commit path. Stop flushes whatever remains before
	// the exit code is returned.
	aggregator := logging.NewLogAggregator(&logging.AggregatorConfig{
		FlushInterval: cfg.Observability.FlushInterval,
		MinLevel:      cfg.Observability.LogLevel,
	})
	aggregator.AddDestination(&logging.WriterDestination{Writer: os.Stderr})
	aggregator.Start()
	defer aggregator.Stop()

	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:      cfg.Observability.LogLevel,
		Format:     cfg.Observability.LogFormat,
		Aggregator: aggregator,
	})

	repo, err := database.NewPostgres(database.Config{
		Host: cfg.Database.Host, Port: cfg.Database.Port, Database: cfg.Database.Database,
		User: cfg.Database.User, Password: cfg.Database.Password, SSLMode: cfg.Database.SSLMode,
	}, zlog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "adapipe: connect pipeline repository: %v\n", err)
		return exitIOError
	}
	defer func() { _ = repo.Close() }()
	if err := repo.CreateTables(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "adapipe: initialize schema: %v\n", err)
		return exitIOError
	}

	gov := governor.New(cfg.Governor.CPUPermits, cfg.Governor.FDPermits)
	collector := metrics.NewCollector(prometheus.NewRegistry())
	orch := orchestrator.New(repo, gov, collector, logger, cfg.Sizing)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Warn("signal received, cancelling in-flight run")
		cancel()
	}()
	defer cancel()

	switch args[0] {
	case "run":
		return cmdRun(ctx, orch, logger, args[1:])
	case "restore":
		return cmdRestore(ctx, orch, logger, args[1:])
	case "pipeline":
		return cmdPipeline(ctx, repo, args[1:])
	case "-h", "--help", "help":
		printUsage()
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "adapipe: unknown command %q\n", args[0])
		printUsage()
		return exitUsage
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `adapipe: adaptive file processing pipeline

Usage:
  adapipe run --pipeline <id> --in <path> --out <path> [--overwrite] [--key id=hexkey ...]
  adapipe restore --in <path> --out <path> [--overwrite] [--key id=hexkey ...]
  adapipe pipeline create --name <name> --preset <fast|archive|secure> [--key-id <id>]
  adapipe pipeline list
  adapipe pipeline show <id>
  adapipe pipeline delete <id>`)
}

type keyFlags map[string][]byte

func (k keyFlags) String() string { return "" }

func (k keyFlags) Set(value string) error {
	id, hexKey, ok := splitKeyFlag(value)
	if !ok {
		return fmt.Errorf("--key must be id=hexkey, got %q", value)
	}
	raw, err := decodeHexKey(hexKey)
	if err != nil {
		return err
	}
	k[id] = raw
	return nil
}

// progressSampleEvery bounds chunk-progress log volume: one line per this
// many committed chunks, plus always the final one.
const progressSampleEvery = 100

func cmdRun(ctx context.Context, orch *orchestrator.Orchestrator, logger *logging.Logger, args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	pipelineID := fs.String("pipeline", "", "pipeline definition id")
	in := fs.String("in", "", "input file path")
	out := fs.String("out", "", "output .adapipe container path")
	overwrite := fs.Bool("overwrite", false, "overwrite an existing output file")
	keys := make(keyFlags)
	fs.Var(keys, "key", "encryption key as id=hexkey, repeatable")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *pipelineID == "" || *in == "" || *out == "" {
		fmt.Fprintln(os.Stderr, "adapipe run: --pipeline, --in, and --out are required")
		return exitUsage
	}

	kp, err := keyprovider.NewStatic(keys)
	if err != nil {
		fmt.Fprintf(os.Stderr, "adapipe run: %v\n", err)
		return exitUsage
	}

	report, err := orch.Process(ctx, orchestrator.RunRequest{
		InputPath:   *in,
		OutputPath:  *out,
		PipelineID:  *pipelineID,
		Overwrite:   *overwrite,
		KeyProvider: kp,
		Progress:    logging.NewChunkProgressReporter(logger.Named("progress"), progressSampleEvery),
	})
	if err != nil {
		return reportError("run", err)
	}
	fmt.Printf("wrote %s (%d bytes in %s)\n", report.OutputPath, report.BytesProcessed, report.Duration)
	return exitOK
}

func cmdRestore(ctx context.Context, orch *orchestrator.Orchestrator, logger *logging.Logger, args []string) int {
	fs := flag.NewFlagSet("restore", flag.ContinueOnError)
	in := fs.String("in", "", ".adapipe container path")
	out := fs.String("out", "", "restored output path")
	overwrite := fs.Bool("overwrite", false, "overwrite an existing output file")
	keys := make(keyFlags)
	fs.Var(keys, "key", "encryption key as id=hexkey, repeatable")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *in == "" || *out == "" {
		fmt.Fprintln(os.Stderr, "adapipe restore: --in and --out are required")
		return exitUsage
	}

	kp, err := keyprovider.NewStatic(keys)
	if err != nil {
		fmt.Fprintf(os.Stderr, "adapipe restore: %v\n", err)
		return exitUsage
	}

	report, err := orch.Restore(ctx, orchestrator.RunRequest{
		InputPath:   *in,
		OutputPath:  *out,
		Overwrite:   *overwrite,
		KeyProvider: kp,
		Progress:    logging.NewChunkProgressReporter(logger.Named("progress"), progressSampleEvery),
	})
	if err != nil {
		return reportError("restore", err)
	}
	fmt.Printf("restored %s (%d bytes in %s)\n", report.OutputPath, report.BytesProcessed, report.Duration)
	return exitOK
}

func cmdPipeline(ctx context.Context, repo pipelinedef.Repository, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "adapipe pipeline: create|list|show|delete")
		return exitUsage
	}
	switch args[0] {
	case "create":
		return cmdPipelineCreate(ctx, repo, args[1:])
	case "list":
		return cmdPipelineList(ctx, repo)
	case "show":
		return cmdPipelineShow(ctx, repo, args[1:])
	case "delete":
		return cmdPipelineDelete(ctx, repo, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "adapipe pipeline: unknown subcommand %q\n", args[0])
		return exitUsage
	}
}

func cmdPipelineCreate(ctx context.Context, repo pipelinedef.Repository, args []string) int {
	fs := flag.NewFlagSet("pipeline create", flag.ContinueOnError)
	name := fs.String("name", "", "pipeline name")
	preset := fs.String("preset", "", "fast|archive|secure")
	keyID := fs.String("key-id", "", "encryption key id bound into the preset, if any")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *name == "" || *preset == "" {
		fmt.Fprintln(os.Stderr, "adapipe pipeline create: --name and --preset are required")
		return exitUsage
	}

	p, err := config.GetPreset(*preset, *keyID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "adapipe pipeline create: %v\n", err)
		return exitUsage
	}

	builder := pipelinedef.NewBuilder(*name)
	for _, s := range p.Stages {
		builder.AddStage(s.Kind, s.Algorithm, s.Level, s.KeyID)
	}
	def, err := builder.Build(newPipelineID(), time.Now().UTC())
	if err != nil {
		fmt.Fprintf(os.Stderr, "adapipe pipeline create: %v\n", err)
		return exitUsage
	}
	if err := repo.Save(ctx, def); err != nil {
		fmt.Fprintf(os.Stderr, "adapipe pipeline create: %v\n", err)
		return exitIOError
	}
	fmt.Println(def.ID)
	return exitOK
}

func cmdPipelineList(ctx context.Context, repo pipelinedef.Repository) int {
	summaries, err := repo.List(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "adapipe pipeline list: %v\n", err)
		return exitIOError
	}
	for _, s := range summaries {
		fmt.Printf("%s\t%s\t%s\n", s.ID, s.Name, s.Status)
	}
	return exitOK
}

func cmdPipelineShow(ctx context.Context, repo pipelinedef.Repository, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "adapipe pipeline show: expected exactly one pipeline id")
		return exitUsage
	}
	def, err := repo.Load(ctx, args[0])
	if err != nil {
		return reportError("pipeline show", err)
	}
	fmt.Printf("id:     %s\nname:   %s\nstatus: %s\n", def.ID, def.Name, def.Status)
	for _, s := range def.Stages {
		fmt.Printf("  %d. %-12s %s\n", s.Ordinal, s.Kind, s.Algorithm)
	}
	return exitOK
}

func cmdPipelineDelete(ctx context.Context, repo pipelinedef.Repository, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "adapipe pipeline delete: expected exactly one pipeline id")
		return exitUsage
	}
	if err := repo.Delete(ctx, args[0]); err != nil {
		return reportError("pipeline delete", err)
	}
	return exitOK
}

// newPipelineID mints a time-ordered pipeline identifier. UUIDv7 sorts by
// creation time without adding a ULID-specific dependency.
func newPipelineID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func splitKeyFlag(value string) (id, hexKey string, ok bool) {
	idPart, keyPart, found := strings.Cut(value, "=")
	if !found || idPart == "" || keyPart == "" {
		return "", "", false
	}
	return idPart, keyPart, true
}

func decodeHexKey(hexKey string) ([]byte, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode key material: %w", err)
	}
	return raw, nil
}

// reportError prints err and maps its errs.Kind onto a process exit code.
func reportError(op string, err error) int {
	fmt.Fprintf(os.Stderr, "adapipe %s: %v\n", op, err)
	if errors.Is(err, pipelinedef.ErrNotFound) {
		return exitNotFound
	}
	kind, ok := errs.KindOf(err)
	if !ok {
		return exitInternal
	}
	switch kind {
	case errs.InvalidInput, errs.InvalidStageOrder:
		return exitUsage
	case errs.IntegrityFailure:
		return exitIntegrityFailed
	case errs.IoError:
		return exitIOError
	case errs.Cancelled:
		return exitCancelled
	default:
		return exitInternal
	}
}
