// Package store provides storage backends for BotWeave.
//
// This file implements the SQLite-backed store.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "embed"

	"github.com/BotWeave/BotWeave/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// SaveFlow stores or replaces a flow definition as JSON.
func (s *SQLiteStore) SaveFlow(ctx context.Context, f models.Flow) error {
	if f.ID == "" {
		return models.ErrMissingFlowID
	}
	definition, err := json.Marshal(f)
	if err != nil {
		slog.Error("SQLiteStore SaveFlow marshal failed", "error", err, "flowID", f.ID)
		return fmt.Errorf("marshal flow %s: %w", f.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO flows (id, name, definition, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, definition = excluded.definition, updated_at = CURRENT_TIMESTAMP`,
		f.ID, f.Name, string(definition))
	if err != nil {
		slog.Error("SQLiteStore SaveFlow failed", "error", err, "flowID", f.ID)
		return fmt.Errorf("save flow %s: %w", f.ID, err)
	}
	slog.Debug("SQLiteStore SaveFlow succeeded", "flowID", f.ID)
	return nil
}

// GetFlow retrieves a flow definition by ID.
func (s *SQLiteStore) GetFlow(ctx context.Context, id string) (models.Flow, error) {
	var definition string
	err := s.db.QueryRowContext(ctx, `SELECT definition FROM flows WHERE id = ?`, id).Scan(&definition)
	if errors.Is(err, sql.ErrNoRows) {
		slog.Debug("SQLiteStore GetFlow not found", "flowID", id)
		return models.Flow{}, models.ErrNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore GetFlow failed", "error", err, "flowID", id)
		return models.Flow{}, fmt.Errorf("get flow %s: %w", id, err)
	}
	var f models.Flow
	if err := json.Unmarshal([]byte(definition), &f); err != nil {
		slog.Error("SQLiteStore GetFlow unmarshal failed", "error", err, "flowID", id)
		return models.Flow{}, fmt.Errorf("unmarshal flow %s: %w", id, err)
	}
	return f, nil
}

// CreateResult inserts a new result row.
func (s *SQLiteStore) CreateResult(ctx context.Context, r models.Result) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO results (id, flow_id, has_started, is_completed, created_at) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.FlowID, r.HasStarted, r.IsCompleted, r.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore CreateResult failed", "error", err, "resultID", r.ID)
		return fmt.Errorf("create result %s: %w", r.ID, err)
	}
	slog.Debug("SQLiteStore CreateResult succeeded", "resultID", r.ID)
	return nil
}

// GetResult retrieves a result by ID.
func (s *SQLiteStore) GetResult(ctx context.Context, id string) (models.Result, error) {
	var r models.Result
	err := s.db.QueryRowContext(ctx, `
		SELECT id, flow_id, has_started, is_completed, created_at FROM results WHERE id = ?`, id).
		Scan(&r.ID, &r.FlowID, &r.HasStarted, &r.IsCompleted, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Result{}, models.ErrNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore GetResult failed", "error", err, "resultID", id)
		return models.Result{}, fmt.Errorf("get result %s: %w", id, err)
	}
	return r, nil
}

// UpdateResult applies a partial status update to a result.
func (s *SQLiteStore) UpdateResult(ctx context.Context, id string, upd models.ResultUpdate) error {
	var sets []string
	var args []interface{}
	if upd.HasStarted != nil {
		sets = append(sets, "has_started = ?")
		args = append(args, *upd.HasStarted)
	}
	if upd.IsCompleted != nil {
		sets = append(sets, "is_completed = ?")
		args = append(args, *upd.IsCompleted)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := s.db.ExecContext(ctx, `UPDATE results SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		slog.Error("SQLiteStore UpdateResult failed", "error", err, "resultID", id)
		return fmt.Errorf("update result %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.ErrNotFound
	}
	slog.Debug("SQLiteStore UpdateResult succeeded", "resultID", id)
	return nil
}

// UpsertAnswer stores the answer under its (resultID, groupID, blockID) key,
// overwriting any previous content and recomputed storage.
func (s *SQLiteStore) UpsertAnswer(ctx context.Context, a models.Answer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO answers (result_id, group_id, block_id, content, variable_id, storage_used, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(result_id, group_id, block_id) DO UPDATE SET
			content = excluded.content,
			variable_id = excluded.variable_id,
			storage_used = excluded.storage_used,
			updated_at = CURRENT_TIMESTAMP`,
		a.ResultID, a.GroupID, a.BlockID, a.Content, nilIfEmpty(a.VariableID), a.StorageUsed)
	if err != nil {
		slog.Error("SQLiteStore UpsertAnswer failed", "error", err, "resultID", a.ResultID, "blockID", a.BlockID)
		return fmt.Errorf("upsert answer for block %s: %w", a.BlockID, err)
	}
	slog.Debug("SQLiteStore UpsertAnswer succeeded", "resultID", a.ResultID, "blockID", a.BlockID)
	return nil
}

// GetAnswer retrieves a stored answer by its composite key.
func (s *SQLiteStore) GetAnswer(ctx context.Context, resultID, groupID, blockID string) (models.Answer, error) {
	var a models.Answer
	var variableID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT result_id, group_id, block_id, content, variable_id, storage_used
		FROM answers WHERE result_id = ? AND group_id = ? AND block_id = ?`,
		resultID, groupID, blockID).
		Scan(&a.ResultID, &a.GroupID, &a.BlockID, &a.Content, &variableID, &a.StorageUsed)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Answer{}, models.ErrNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore GetAnswer failed", "error", err, "resultID", resultID, "blockID", blockID)
		return models.Answer{}, fmt.Errorf("get answer for block %s: %w", blockID, err)
	}
	a.VariableID = variableID.String
	return a, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}
