package orchestrator

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/adapipe/adapipe/internal/config"
	"github.com/adapipe/adapipe/internal/errs"
	"github.com/adapipe/adapipe/internal/keyprovider"
	"github.com/adapipe/adapipe/internal/pipelinedef"
)

// fakeRepository is an in-memory pipelinedef.Repository for orchestrator
// tests, standing in for the postgres-backed one.
type fakeRepository struct {
	defs map[string]*pipelinedef.PipelineDef
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{defs: make(map[string]*pipelinedef.PipelineDef)}
}

func (f *fakeRepository) Load(_ context.Context, id string) (*pipelinedef.PipelineDef, error) {
	d, ok := f.defs[id]
	if !ok {
		return nil, errs.New(errs.InvalidInput, "fakeRepository.Load", nil)
	}
	return d, nil
}

func (f *fakeRepository) Save(_ context.Context, def *pipelinedef.PipelineDef) error {
	f.defs[def.ID] = def
	return nil
}

func (f *fakeRepository) Delete(_ context.Context, id string) error {
	delete(f.defs, id)
	return nil
}

func (f *fakeRepository) List(_ context.Context) ([]pipelinedef.PipelineSummary, error) {
	out := make([]pipelinedef.PipelineSummary, 0, len(f.defs))
	for _, d := range f.defs {
		out = append(out, pipelinedef.PipelineSummary{ID: d.ID, Name: d.Name, Status: d.Status})
	}
	return out, nil
}

func testKeyProvider(t *testing.T) keyprovider.Provider {
	t.Helper()
	kp, err := keyprovider.NewStatic(map[string][]byte{
		"k1": bytes.Repeat([]byte{0x42}, keyprovider.KeySize),
	})
	require.NoError(t, err)
	return kp
}

func newTestOrchestrator(t *testing.T, repo pipelinedef.Repository) *Orchestrator {
	t.Helper()
	return New(repo, nil, nil, nil, config.SizingConfig{})
}

func writeTempFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestOrchestrator_RoundTrip_ArchivePreset(t *testing.T) {
	repo := newFakeRepository()
	preset, err := config.GetPreset("archive", "k1")
	require.NoError(t, err)
	def, err := pipelinedef.NewBuilder("archive-roundtrip").
		AddStage(preset.Stages[0].Kind, preset.Stages[0].Algorithm, preset.Stages[0].Level, preset.Stages[0].KeyID).
		AddStage(preset.Stages[1].Kind, preset.Stages[1].Algorithm, preset.Stages[1].Level, preset.Stages[1].KeyID).
		AddStage(preset.Stages[2].Kind, preset.Stages[2].Algorithm, preset.Stages[2].Level, preset.Stages[2].KeyID).
		AddStage(preset.Stages[3].Kind, preset.Stages[3].Algorithm, preset.Stages[3].Level, preset.Stages[3].KeyID).
		Build("pipeline-1", time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), def))

	dir := t.TempDir()
	input := writeTempFile(t, dir, "input.txt", bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog. "), 5000))
	containerPath := filepath.Join(dir, "output.adapipe")
	restoredPath := filepath.Join(dir, "restored.txt")

	orch := newTestOrchestrator(t, repo)
	kp := testKeyProvider(t)

	processReport, err := orch.Process(context.Background(), RunRequest{
		InputPath:   input,
		OutputPath:  containerPath,
		PipelineID:  "pipeline-1",
		KeyProvider: kp,
	})
	require.NoError(t, err)
	require.Greater(t, processReport.BytesProcessed, int64(0))
	require.FileExists(t, containerPath)

	restoreReport, err := orch.Restore(context.Background(), RunRequest{
		InputPath:   containerPath,
		OutputPath:  restoredPath,
		KeyProvider: kp,
	})
	require.NoError(t, err)
	require.Greater(t, restoreReport.BytesProcessed, int64(0))

	want, err := os.ReadFile(input)
	require.NoError(t, err)
	got, err := os.ReadFile(restoredPath)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestOrchestrator_RoundTrip_EmptyFile(t *testing.T) {
	repo := newFakeRepository()
	def, err := pipelinedef.NewBuilder("passthrough").
		AddStage(pipelinedef.KindPassThrough, "", 0, "").
		Build("pipeline-empty", time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), def))

	dir := t.TempDir()
	input := writeTempFile(t, dir, "empty.bin", nil)
	containerPath := filepath.Join(dir, "empty.adapipe")
	restoredPath := filepath.Join(dir, "empty.out")

	orch := newTestOrchestrator(t, repo)

	_, err = orch.Process(context.Background(), RunRequest{
		InputPath:  input,
		OutputPath: containerPath,
		PipelineID: "pipeline-empty",
	})
	require.NoError(t, err)

	_, err = orch.Restore(context.Background(), RunRequest{
		InputPath:  containerPath,
		OutputPath: restoredPath,
	})
	require.NoError(t, err)

	got, err := os.ReadFile(restoredPath)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestOrchestrator_Process_RejectsInvalidStageOrderBeforeIO(t *testing.T) {
	repo := newFakeRepository()
	// Built directly (bypassing Builder.Build's own validation) to exercise
	// the orchestrator's own pre-I/O guard.
	repo.defs["bad-order"] = &pipelinedef.PipelineDef{
		ID:     "bad-order",
		Name:   "bad-order",
		Status: pipelinedef.StatusActive,
		Stages: []pipelinedef.StageDef{
			{Ordinal: 1, Kind: pipelinedef.KindEncryption, Algorithm: "aes-256-gcm", KeyID: "k1"},
			{Ordinal: 2, Kind: pipelinedef.KindCompression, Algorithm: "zstd"},
		},
	}

	dir := t.TempDir()
	input := writeTempFile(t, dir, "input.txt", []byte("hello"))
	containerPath := filepath.Join(dir, "output.adapipe")

	orch := newTestOrchestrator(t, repo)
	_, err := orch.Process(context.Background(), RunRequest{
		InputPath:   input,
		OutputPath:  containerPath,
		PipelineID:  "bad-order",
		KeyProvider: testKeyProvider(t),
	})
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.InvalidStageOrder))
	require.NoFileExists(t, containerPath)
}

func TestOrchestrator_Process_UnknownPipelineID(t *testing.T) {
	repo := newFakeRepository()
	dir := t.TempDir()
	input := writeTempFile(t, dir, "input.txt", []byte("hello"))

	orch := newTestOrchestrator(t, repo)
	_, err := orch.Process(context.Background(), RunRequest{
		InputPath:  input,
		OutputPath: filepath.Join(dir, "out.adapipe"),
		PipelineID: "does-not-exist",
	})
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.InvalidInput))
}

func TestOrchestrator_Process_RefusesOverwriteWithoutFlag(t *testing.T) {
	repo := newFakeRepository()
	def, err := pipelinedef.NewBuilder("fast").
		AddStage(pipelinedef.KindEncryption, "aes-256-gcm", 0, "k1").
		Build("pipeline-fast", time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), def))

	dir := t.TempDir()
	input := writeTempFile(t, dir, "input.txt", []byte("hello world"))
	containerPath := writeTempFile(t, dir, "existing.adapipe", []byte("not a real container"))

	orch := newTestOrchestrator(t, repo)
	_, err = orch.Process(context.Background(), RunRequest{
		InputPath:   input,
		OutputPath:  containerPath,
		PipelineID:  "pipeline-fast",
		KeyProvider: testKeyProvider(t),
	})
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.InvalidInput))
}

func TestOrchestrator_Restore_WrongKeyFailsIntegrity(t *testing.T) {
	repo := newFakeRepository()
	def, err := pipelinedef.NewBuilder("secure").
		AddStage(pipelinedef.KindEncryption, "aes-256-gcm", 0, "k1").
		Build("pipeline-secure", time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), def))

	dir := t.TempDir()
	input := writeTempFile(t, dir, "input.txt", []byte("top secret payload"))
	containerPath := filepath.Join(dir, "secure.adapipe")
	restoredPath := filepath.Join(dir, "secure.out")

	orch := newTestOrchestrator(t, repo)
	_, err = orch.Process(context.Background(), RunRequest{
		InputPath:   input,
		OutputPath:  containerPath,
		PipelineID:  "pipeline-secure",
		KeyProvider: testKeyProvider(t),
	})
	require.NoError(t, err)

	wrongKey, err := keyprovider.NewStatic(map[string][]byte{
		"k1": bytes.Repeat([]byte{0x99}, keyprovider.KeySize),
	})
	require.NoError(t, err)

	_, err = orch.Restore(context.Background(), RunRequest{
		InputPath:   containerPath,
		OutputPath:  restoredPath,
		KeyProvider: wrongKey,
	})
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.IntegrityFailure))
	require.NoFileExists(t, restoredPath)
}

func TestOrchestrator_Restore_TamperedTrailingChecksumFails(t *testing.T) {
	repo := newFakeRepository()
	def, err := pipelinedef.NewBuilder("plain").
		AddStage(pipelinedef.KindPassThrough, "", 0, "").
		Build("pipeline-plain", time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), def))

	dir := t.TempDir()
	input := writeTempFile(t, dir, "input.txt", bytes.Repeat([]byte("data"), 100))
	containerPath := filepath.Join(dir, "plain.adapipe")
	restoredPath := filepath.Join(dir, "plain.out")

	orch := newTestOrchestrator(t, repo)
	_, err = orch.Process(context.Background(), RunRequest{
		InputPath:  input,
		OutputPath: containerPath,
		PipelineID: "pipeline-plain",
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(containerPath)
	require.NoError(t, err)
	require.Greater(t, len(raw), 64)
	raw[len(raw)-20] ^= 0xFF
	require.NoError(t, os.WriteFile(containerPath, raw, 0o644))

	_, err = orch.Restore(context.Background(), RunRequest{
		InputPath:  containerPath,
		OutputPath: restoredPath,
	})
	require.Error(t, err)
}

func TestOrchestrator_Process_Cancellation(t *testing.T) {
	repo := newFakeRepository()
	def, err := pipelinedef.NewBuilder("cancel-me").
		AddStage(pipelinedef.KindCompression, "zstd", 0, "").
		Build("pipeline-cancel", time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), def))

	dir := t.TempDir()
	input := writeTempFile(t, dir, "input.txt", bytes.Repeat([]byte("cancel me please"), 10000))
	containerPath := filepath.Join(dir, "cancel.adapipe")

	orch := newTestOrchestrator(t, repo)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = orch.Process(ctx, RunRequest{
		InputPath:  input,
		OutputPath: containerPath,
		PipelineID: "pipeline-cancel",
	})
	require.Error(t, err)
	require.NoFileExists(t, containerPath)
}
