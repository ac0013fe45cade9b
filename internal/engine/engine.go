// Package engine implements the flow execution engine: it consumes one user
// reply, validates it, mutates session state, resolves the next edge, and
// walks the flow graph until the next input block or exhaustion.
package engine

import (
	"context"
	"log/slog"

	"github.com/BotWeave/BotWeave/internal/fetch"
	"github.com/BotWeave/BotWeave/internal/models"
)

// DefaultMaxTraversalDepth bounds group-to-group recursion within one turn.
// The data model does not forbid cyclic graphs, so the bound is what turns a
// cycle into a surfaced defect instead of a hang.
const DefaultMaxTraversalDepth = 100

// Store is the persistence surface the engine needs. The full store
// implementations in internal/store satisfy it.
type Store interface {
	UpsertAnswer(ctx context.Context, a models.Answer) error
	CreateResult(ctx context.Context, r models.Result) error
	UpdateResult(ctx context.Context, id string, upd models.ResultUpdate) error
	GetFlow(ctx context.Context, id string) (models.Flow, error)
}

// SizeFetcher resolves the byte size of an uploaded file reference. Absence
// of a length is a valid, non-error outcome.
type SizeFetcher interface {
	ContentLength(ctx context.Context, url string) (int64, bool, error)
}

// Opts holds configuration options for the engine.
type Opts struct {
	MaxDepth int
	Fetcher  SizeFetcher
}

// Option defines a configuration option for the engine.
type Option func(*Opts)

// WithMaxDepth overrides the traversal depth bound.
func WithMaxDepth(n int) Option {
	return func(o *Opts) { o.MaxDepth = n }
}

// WithSizeFetcher overrides the fetcher used for file storage accounting.
func WithSizeFetcher(f SizeFetcher) Option {
	return func(o *Opts) { o.Fetcher = f }
}

// Engine executes flow turns against a persistence backend.
type Engine struct {
	store    Store
	recorder *Recorder
	maxDepth int
}

// New creates an engine backed by the given store.
func New(st Store, opts ...Option) *Engine {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultMaxTraversalDepth
	}
	if cfg.Fetcher == nil {
		cfg.Fetcher = fetch.NewClient()
	}
	slog.Debug("engine.New: creating engine", "maxDepth", cfg.MaxDepth)
	return &Engine{
		store:    st,
		recorder: NewRecorder(st, cfg.Fetcher),
		maxDepth: cfg.MaxDepth,
	}
}

// Recorder exposes the engine's answer recorder, mainly for the API layer
// and tests.
func (e *Engine) Recorder() *Recorder {
	return e.recorder
}
