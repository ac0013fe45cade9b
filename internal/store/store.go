// Package store provides storage backends for BotWeave.
//
// It persists flow definitions, results, and answers behind a single Store
// interface, with in-memory, SQLite, and PostgreSQL implementations. A
// missing record is always reported as models.ErrNotFound so callers can
// distinguish "not found" from transient failures.
package store

import (
	"context"
	"strings"
	"sync"

	"github.com/BotWeave/BotWeave/internal/models"
)

// Store is the persistence surface consumed by the engine and API layers.
type Store interface {
	SaveFlow(ctx context.Context, f models.Flow) error
	GetFlow(ctx context.Context, id string) (models.Flow, error)

	CreateResult(ctx context.Context, r models.Result) error
	GetResult(ctx context.Context, id string) (models.Result, error)
	UpdateResult(ctx context.Context, id string, upd models.ResultUpdate) error

	UpsertAnswer(ctx context.Context, a models.Answer) error
	GetAnswer(ctx context.Context, resultID, groupID, blockID string) (models.Answer, error)

	Close() error
}

// Opts holds configuration options for storage backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for storage backends.
type Option func(*Opts)

// WithDSN sets the database connection string (a file path for SQLite, a
// postgres URL or key=value DSN for PostgreSQL).
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite".
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

type answerKey struct {
	resultID string
	groupID  string
	blockID  string
}

// InMemoryStore is a mutex-guarded map-backed store, used in tests and when
// no DSN is configured.
type InMemoryStore struct {
	mu      sync.RWMutex
	flows   map[string]models.Flow
	results map[string]models.Result
	answers map[answerKey]models.Answer
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		flows:   make(map[string]models.Flow),
		results: make(map[string]models.Result),
		answers: make(map[answerKey]models.Answer),
	}
}

// SaveFlow stores or replaces a flow definition.
func (s *InMemoryStore) SaveFlow(ctx context.Context, f models.Flow) error {
	if f.ID == "" {
		return models.ErrMissingFlowID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flows[f.ID] = f
	return nil
}

// GetFlow retrieves a flow definition by ID.
func (s *InMemoryStore) GetFlow(ctx context.Context, id string) (models.Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.flows[id]
	if !ok {
		return models.Flow{}, models.ErrNotFound
	}
	return f, nil
}

// CreateResult stores a new result row.
func (s *InMemoryStore) CreateResult(ctx context.Context, r models.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[r.ID] = r
	return nil
}

// GetResult retrieves a result by ID.
func (s *InMemoryStore) GetResult(ctx context.Context, id string) (models.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[id]
	if !ok {
		return models.Result{}, models.ErrNotFound
	}
	return r, nil
}

// UpdateResult applies a partial status update to a result.
func (s *InMemoryStore) UpdateResult(ctx context.Context, id string, upd models.ResultUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[id]
	if !ok {
		return models.ErrNotFound
	}
	if upd.HasStarted != nil {
		r.HasStarted = *upd.HasStarted
	}
	if upd.IsCompleted != nil {
		r.IsCompleted = *upd.IsCompleted
	}
	s.results[id] = r
	return nil
}

// UpsertAnswer stores the answer under its (resultID, groupID, blockID) key,
// overwriting any previous content.
func (s *InMemoryStore) UpsertAnswer(ctx context.Context, a models.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers[answerKey{a.ResultID, a.GroupID, a.BlockID}] = a
	return nil
}

// GetAnswer retrieves a stored answer by its composite key.
func (s *InMemoryStore) GetAnswer(ctx context.Context, resultID, groupID, blockID string) (models.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.answers[answerKey{resultID, groupID, blockID}]
	if !ok {
		return models.Answer{}, models.ErrNotFound
	}
	return a, nil
}

// AnswerCount reports the number of stored answers (for tests).
func (s *InMemoryStore) AnswerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.answers)
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }
