package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adapipe/adapipe/internal/pipelinedef"
)

func newMockRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &Repository{db: db}, mock
}

func testDef() *pipelinedef.PipelineDef {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &pipelinedef.PipelineDef{
		ID:   "01HQZX000000000000000001",
		Name: "secure-archive",
		Stages: []pipelinedef.StageDef{
			{Ordinal: 1, Kind: pipelinedef.KindCompression, Algorithm: "zstd", Level: 9},
			{Ordinal: 2, Kind: pipelinedef.KindEncryption, Algorithm: "aes-256-gcm", KeyID: "k1"},
			{Ordinal: 3, Kind: pipelinedef.KindChecksum, Algorithm: "sha-256"},
		},
		Status:    pipelinedef.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRepository_Save(t *testing.T) {
	repo, mock := newMockRepository(t)
	def := testDef()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO pipelines").
		WithArgs(def.ID, def.Name, string(def.Status), def.CreatedAt, def.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM pipeline_stages").
		WithArgs(def.ID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	for range def.Stages {
		mock.ExpectExec("INSERT INTO pipeline_stages").
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	err := repo.Save(context.Background(), def)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Save_RollsBackOnStageError(t *testing.T) {
	repo, mock := newMockRepository(t)
	def := testDef()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO pipelines").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM pipeline_stages").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO pipeline_stages").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.Save(context.Background(), def)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Save_RejectsInvalidDef(t *testing.T) {
	repo, _ := newMockRepository(t)
	def := testDef()
	def.Stages = nil

	err := repo.Save(context.Background(), def)
	require.Error(t, err)
}

func TestRepository_Load(t *testing.T) {
	repo, mock := newMockRepository(t)
	def := testDef()

	mock.ExpectQuery("SELECT id, name, status, created_at, updated_at FROM pipelines").
		WithArgs(def.ID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "status", "created_at", "updated_at"}).
			AddRow(def.ID, def.Name, string(def.Status), def.CreatedAt, def.UpdatedAt))

	stageRows := sqlmock.NewRows([]string{"ordinal", "kind", "algorithm", "parameters"})
	for _, s := range def.Stages {
		params := []byte(`{}`)
		if s.Level != 0 || s.KeyID != "" {
			params = []byte(`{"level":` + itoa(s.Level) + `,"key_id":"` + s.KeyID + `"}`)
		}
		stageRows.AddRow(s.Ordinal, string(s.Kind), s.Algorithm, params)
	}
	mock.ExpectQuery("SELECT ordinal, kind, algorithm, parameters FROM pipeline_stages").
		WithArgs(def.ID).
		WillReturnRows(stageRows)

	got, err := repo.Load(context.Background(), def.ID)
	require.NoError(t, err)
	assert.Equal(t, def.ID, got.ID)
	assert.Equal(t, def.Name, got.Name)
	require.Len(t, got.Stages, len(def.Stages))
	assert.Equal(t, def.Stages[0].Algorithm, got.Stages[0].Algorithm)
	assert.Equal(t, def.Stages[1].KeyID, got.Stages[1].KeyID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Load_NotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("SELECT id, name, status, created_at, updated_at FROM pipelines").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Load(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, pipelinedef.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Delete(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec("DELETE FROM pipelines").
		WithArgs("pid").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Delete(context.Background(), "pid")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Delete_NotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec("DELETE FROM pipelines").
		WithArgs("pid").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "pid")
	require.Error(t, err)
	assert.ErrorIs(t, err, pipelinedef.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_List(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("SELECT id, name, status FROM pipelines").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "status"}).
			AddRow("p1", "fast", "active").
			AddRow("p2", "secure", "archived"))

	summaries, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "p1", summaries[0].ID)
	assert.Equal(t, pipelinedef.StatusArchived, summaries[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
