// Package store provides storage backends for BotWeave.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "embed"

	"github.com/BotWeave/BotWeave/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

// SaveFlow stores or replaces a flow definition as JSONB.
func (s *PostgresStore) SaveFlow(ctx context.Context, f models.Flow) error {
	if f.ID == "" {
		return models.ErrMissingFlowID
	}
	definition, err := json.Marshal(f)
	if err != nil {
		slog.Error("PostgresStore SaveFlow marshal failed", "error", err, "flowID", f.ID)
		return fmt.Errorf("marshal flow %s: %w", f.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO flows (id, name, definition, updated_at) VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, definition = EXCLUDED.definition, updated_at = NOW()`,
		f.ID, f.Name, definition)
	if err != nil {
		slog.Error("PostgresStore SaveFlow failed", "error", err, "flowID", f.ID)
		return fmt.Errorf("save flow %s: %w", f.ID, err)
	}
	slog.Debug("PostgresStore SaveFlow succeeded", "flowID", f.ID)
	return nil
}

// GetFlow retrieves a flow definition by ID.
func (s *PostgresStore) GetFlow(ctx context.Context, id string) (models.Flow, error) {
	var definition []byte
	err := s.db.QueryRowContext(ctx, `SELECT definition FROM flows WHERE id = $1`, id).Scan(&definition)
	if errors.Is(err, sql.ErrNoRows) {
		slog.Debug("PostgresStore GetFlow not found", "flowID", id)
		return models.Flow{}, models.ErrNotFound
	}
	if err != nil {
		slog.Error("PostgresStore GetFlow failed", "error", err, "flowID", id)
		return models.Flow{}, fmt.Errorf("get flow %s: %w", id, err)
	}
	var f models.Flow
	if err := json.Unmarshal(definition, &f); err != nil {
		slog.Error("PostgresStore GetFlow unmarshal failed", "error", err, "flowID", id)
		return models.Flow{}, fmt.Errorf("unmarshal flow %s: %w", id, err)
	}
	return f, nil
}

// CreateResult inserts a new result row.
func (s *PostgresStore) CreateResult(ctx context.Context, r models.Result) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO results (id, flow_id, has_started, is_completed, created_at) VALUES ($1, $2, $3, $4, $5)`,
		r.ID, r.FlowID, r.HasStarted, r.IsCompleted, r.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore CreateResult failed", "error", err, "resultID", r.ID)
		return fmt.Errorf("create result %s: %w", r.ID, err)
	}
	slog.Debug("PostgresStore CreateResult succeeded", "resultID", r.ID)
	return nil
}

// GetResult retrieves a result by ID.
func (s *PostgresStore) GetResult(ctx context.Context, id string) (models.Result, error) {
	var r models.Result
	err := s.db.QueryRowContext(ctx, `
		SELECT id, flow_id, has_started, is_completed, created_at FROM results WHERE id = $1`, id).
		Scan(&r.ID, &r.FlowID, &r.HasStarted, &r.IsCompleted, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Result{}, models.ErrNotFound
	}
	if err != nil {
		slog.Error("PostgresStore GetResult failed", "error", err, "resultID", id)
		return models.Result{}, fmt.Errorf("get result %s: %w", id, err)
	}
	return r, nil
}

// UpdateResult applies a partial status update to a result.
func (s *PostgresStore) UpdateResult(ctx context.Context, id string, upd models.ResultUpdate) error {
	var sets []string
	var args []interface{}
	if upd.HasStarted != nil {
		args = append(args, *upd.HasStarted)
		sets = append(sets, fmt.Sprintf("has_started = $%d", len(args)))
	}
	if upd.IsCompleted != nil {
		args = append(args, *upd.IsCompleted)
		sets = append(sets, fmt.Sprintf("is_completed = $%d", len(args)))
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE results SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		slog.Error("PostgresStore UpdateResult failed", "error", err, "resultID", id)
		return fmt.Errorf("update result %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.ErrNotFound
	}
	slog.Debug("PostgresStore UpdateResult succeeded", "resultID", id)
	return nil
}

// UpsertAnswer stores the answer under its (resultID, groupID, blockID) key,
// overwriting any previous content and recomputed storage.
func (s *PostgresStore) UpsertAnswer(ctx context.Context, a models.Answer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO answers (result_id, group_id, block_id, content, variable_id, storage_used, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (result_id, group_id, block_id) DO UPDATE SET
			content = EXCLUDED.content,
			variable_id = EXCLUDED.variable_id,
			storage_used = EXCLUDED.storage_used,
			updated_at = NOW()`,
		a.ResultID, a.GroupID, a.BlockID, a.Content, nilIfEmpty(a.VariableID), a.StorageUsed)
	if err != nil {
		slog.Error("PostgresStore UpsertAnswer failed", "error", err, "resultID", a.ResultID, "blockID", a.BlockID)
		return fmt.Errorf("upsert answer for block %s: %w", a.BlockID, err)
	}
	slog.Debug("PostgresStore UpsertAnswer succeeded", "resultID", a.ResultID, "blockID", a.BlockID)
	return nil
}

// GetAnswer retrieves a stored answer by its composite key.
func (s *PostgresStore) GetAnswer(ctx context.Context, resultID, groupID, blockID string) (models.Answer, error) {
	var a models.Answer
	var variableID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT result_id, group_id, block_id, content, variable_id, storage_used
		FROM answers WHERE result_id = $1 AND group_id = $2 AND block_id = $3`,
		resultID, groupID, blockID).
		Scan(&a.ResultID, &a.GroupID, &a.BlockID, &a.Content, &variableID, &a.StorageUsed)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Answer{}, models.ErrNotFound
	}
	if err != nil {
		slog.Error("PostgresStore GetAnswer failed", "error", err, "resultID", resultID, "blockID", blockID)
		return models.Answer{}, fmt.Errorf("get answer for block %s: %w", blockID, err)
	}
	a.VariableID = variableID.String
	return a, nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}
