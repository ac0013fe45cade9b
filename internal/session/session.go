// Package session stores in-flight conversation session state.
//
// Sessions are JSON blobs keyed by session ID, held in Redis (or in memory
// for tests and single-node setups) with a sliding TTL. The engine assumes
// at most one concurrent turn per session; serializing turns per session is
// the caller's responsibility, not enforced here.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BotWeave/BotWeave/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long an idle session survives before expiring.
const DefaultTTL = 4 * time.Hour

// DefaultKeyPrefix namespaces session keys in Redis.
const DefaultKeyPrefix = "botweave:session:"

// ErrNotFound reports a missing or expired session.
var ErrNotFound = errors.New("session not found")

// Store persists session state between turns.
type Store interface {
	Save(ctx context.Context, state models.SessionState) error
	Load(ctx context.Context, sessionID string) (models.SessionState, error)
	Delete(ctx context.Context, sessionID string) error
}

// Opts holds configuration options for session stores.
type Opts struct {
	TTL       time.Duration
	KeyPrefix string
}

// Option defines a configuration option for session stores.
type Option func(*Opts)

// WithTTL sets the idle session expiry.
func WithTTL(ttl time.Duration) Option {
	return func(o *Opts) { o.TTL = ttl }
}

// WithKeyPrefix sets the Redis key namespace.
func WithKeyPrefix(prefix string) Option {
	return func(o *Opts) { o.KeyPrefix = prefix }
}

// RedisStore keeps sessions in Redis. Each save refreshes the TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisStore creates a session store on an existing Redis client.
func NewRedisStore(client *redis.Client, opts ...Option) *RedisStore {
	cfg := Opts{TTL: DefaultTTL, KeyPrefix: DefaultKeyPrefix}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("session.NewRedisStore", "ttl", cfg.TTL, "prefix", cfg.KeyPrefix)
	return &RedisStore{client: client, ttl: cfg.TTL, prefix: cfg.KeyPrefix}
}

// Save serializes the state and writes it under the session key.
func (s *RedisStore) Save(ctx context.Context, state models.SessionState) error {
	if state.SessionID == "" {
		return models.ErrMissingSession
	}
	payload, err := json.Marshal(state)
	if err != nil {
		slog.Error("session.RedisStore Save marshal failed", "error", err, "sessionID", state.SessionID)
		return fmt.Errorf("marshal session %s: %w", state.SessionID, err)
	}
	if err := s.client.Set(ctx, s.prefix+state.SessionID, payload, s.ttl).Err(); err != nil {
		slog.Error("session.RedisStore Save failed", "error", err, "sessionID", state.SessionID)
		return fmt.Errorf("save session %s: %w", state.SessionID, err)
	}
	slog.Debug("session.RedisStore Save succeeded", "sessionID", state.SessionID)
	return nil
}

// Load reads and deserializes the state for a session ID.
func (s *RedisStore) Load(ctx context.Context, sessionID string) (models.SessionState, error) {
	payload, err := s.client.Get(ctx, s.prefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		slog.Debug("session.RedisStore Load not found", "sessionID", sessionID)
		return models.SessionState{}, ErrNotFound
	}
	if err != nil {
		slog.Error("session.RedisStore Load failed", "error", err, "sessionID", sessionID)
		return models.SessionState{}, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	var state models.SessionState
	if err := json.Unmarshal(payload, &state); err != nil {
		slog.Error("session.RedisStore Load unmarshal failed", "error", err, "sessionID", sessionID)
		return models.SessionState{}, fmt.Errorf("unmarshal session %s: %w", sessionID, err)
	}
	return state, nil
}

// Delete removes a session.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.prefix+sessionID).Err(); err != nil {
		slog.Error("session.RedisStore Delete failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}

// InMemoryStore keeps sessions in a map. TTLs are honored lazily on Load.
type InMemoryStore struct {
	mu       sync.RWMutex
	ttl      time.Duration
	sessions map[string]inMemoryEntry
}

type inMemoryEntry struct {
	state     models.SessionState
	expiresAt time.Time
}

// NewInMemoryStore creates an in-memory session store.
func NewInMemoryStore(opts ...Option) *InMemoryStore {
	cfg := Opts{TTL: DefaultTTL}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &InMemoryStore{ttl: cfg.TTL, sessions: make(map[string]inMemoryEntry)}
}

// Save stores the state under the session key, refreshing its expiry.
func (s *InMemoryStore) Save(ctx context.Context, state models.SessionState) error {
	if state.SessionID == "" {
		return models.ErrMissingSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[state.SessionID] = inMemoryEntry{state: state, expiresAt: time.Now().Add(s.ttl)}
	return nil
}

// Load retrieves the state for a session ID.
func (s *InMemoryStore) Load(ctx context.Context, sessionID string) (models.SessionState, error) {
	s.mu.RLock()
	entry, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return models.SessionState{}, ErrNotFound
	}
	return entry.state, nil
}

// Delete removes a session.
func (s *InMemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
