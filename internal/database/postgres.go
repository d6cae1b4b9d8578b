// Package database implements pipelinedef.Repository against PostgreSQL:
// database/sql plus github.com/lib/pq, explicit connection-pool tuning
// (SetMaxOpenConns/SetMaxIdleConns/SetConnMaxLifetime), and a
// CreateTables migration-on-boot method for the pipelines/pipeline_stages
// schema.
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"

	"github.com/adapipe/adapipe/internal/pipelinedef"
)

// Repository is a pipelinedef.Repository backed by a PostgreSQL connection
// pool.
type Repository struct {
	db     *sql.DB
	logger *zap.Logger
}

// stageParams is the JSONB-encoded shape of a StageDef's free-form
// parameters; kept as an independent wire type so the table schema doesn't
// silently change when pipelinedef.StageDef gains fields.
type stageParams struct {
	Level int    `json:"level,omitempty"`
	KeyID string `json:"key_id,omitempty"`
}

// NewPostgres opens a connection pool against cfg. logger may be nil, in
// which case a no-op logger is used.
func NewPostgres(cfg Config, logger *zap.Logger) (*Repository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("database: open: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	logger.Info("pipeline repository connected",
		zap.String("host", cfg.Host), zap.String("database", cfg.Database))

	return &Repository{db: db, logger: logger}, nil
}

// DB exposes the underlying pool for callers that need direct access.
func (r *Repository) DB() *sql.DB { return r.db }

// Close releases the connection pool.
func (r *Repository) Close() error { return r.db.Close() }

// Ping verifies connectivity.
func (r *Repository) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

// CreateTables runs the repository's migration-on-boot: create the
// pipelines and pipeline_stages tables if they don't already exist.
func (r *Repository) CreateTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS pipelines (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			status VARCHAR(32) NOT NULL DEFAULT 'active',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS pipeline_stages (
			pipeline_id VARCHAR(64) NOT NULL REFERENCES pipelines(id) ON DELETE CASCADE,
			ordinal INTEGER NOT NULL,
			kind VARCHAR(32) NOT NULL,
			algorithm VARCHAR(64) NOT NULL,
			parameters JSONB NOT NULL DEFAULT '{}',
			PRIMARY KEY (pipeline_id, ordinal)
		)`,
	}
	for _, q := range queries {
		if _, err := r.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("database: create table: %w", err)
		}
	}
	return nil
}

// Save upserts def and replaces its stage rows wholesale inside a single
// transaction, so a save never leaves a pipeline with a partial stage list.
func (r *Repository) Save(ctx context.Context, def *pipelinedef.PipelineDef) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("database: save: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("database: save: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO pipelines (id, name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`, def.ID, def.Name, string(def.Status), def.CreatedAt, def.UpdatedAt)
	if err != nil {
		return fmt.Errorf("database: save: upsert pipeline: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM pipeline_stages WHERE pipeline_id = $1`, def.ID); err != nil {
		return fmt.Errorf("database: save: clear stages: %w", err)
	}

	for _, s := range def.Stages {
		encoded, err := json.Marshal(stageParams{Level: s.Level, KeyID: s.KeyID})
		if err != nil {
			return fmt.Errorf("database: save: encode stage parameters: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO pipeline_stages (pipeline_id, ordinal, kind, algorithm, parameters)
			VALUES ($1, $2, $3, $4, $5)
		`, def.ID, s.Ordinal, string(s.Kind), s.Algorithm, encoded)
		if err != nil {
			return fmt.Errorf("database: save: insert stage: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("database: save: commit: %w", err)
	}
	return nil
}

// Load fetches the pipeline row and its ordered stages.
func (r *Repository) Load(ctx context.Context, id string) (*pipelinedef.PipelineDef, error) {
	var def pipelinedef.PipelineDef
	var status string
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, status, created_at, updated_at FROM pipelines WHERE id = $1
	`, id)
	if err := row.Scan(&def.ID, &def.Name, &status, &def.CreatedAt, &def.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("database: load: pipeline %q: %w", id, pipelinedef.ErrNotFound)
		}
		return nil, fmt.Errorf("database: load: %w", err)
	}
	def.Status = pipelinedef.Status(status)

	rows, err := r.db.QueryContext(ctx, `
		SELECT ordinal, kind, algorithm, parameters FROM pipeline_stages
		WHERE pipeline_id = $1 ORDER BY ordinal ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("database: load: query stages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s pipelinedef.StageDef
		var kind, algo string
		var rawParams []byte
		if err := rows.Scan(&s.Ordinal, &kind, &algo, &rawParams); err != nil {
			return nil, fmt.Errorf("database: load: scan stage: %w", err)
		}
		var params stageParams
		if len(rawParams) > 0 {
			if err := json.Unmarshal(rawParams, &params); err != nil {
				return nil, fmt.Errorf("database: load: decode stage parameters: %w", err)
			}
		}
		s.Kind = pipelinedef.StageKind(kind)
		s.Algorithm = algo
		s.Level = params.Level
		s.KeyID = params.KeyID
		def.Stages = append(def.Stages, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: load: iterate stages: %w", err)
	}

	return &def, nil
}

// Delete removes a pipeline and its stages (via ON DELETE CASCADE).
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pipelines WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("database: delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("database: delete: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("database: delete: pipeline %q: %w", id, pipelinedef.ErrNotFound)
	}
	return nil
}

// List returns a lightweight summary of every persisted pipeline.
func (r *Repository) List(ctx context.Context) ([]pipelinedef.PipelineSummary, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, status FROM pipelines ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("database: list: %w", err)
	}
	defer rows.Close()

	var out []pipelinedef.PipelineSummary
	for rows.Next() {
		var s pipelinedef.PipelineSummary
		var status string
		if err := rows.Scan(&s.ID, &s.Name, &status); err != nil {
			return nil, fmt.Errorf("database: list: scan: %w", err)
		}
		s.Status = pipelinedef.Status(status)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: list: iterate: %w", err)
	}
	return out, nil
}

var _ pipelinedef.Repository = (*Repository)(nil)
