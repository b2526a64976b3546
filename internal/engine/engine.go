// Package engine implements the hybrid retrieval and memory-ranking engine:
// BM25 lexical search fused with semantic similarity via reciprocal rank
// fusion, optional re-ranking, and the temporal retention model that decays
// and prunes memories over time.
package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/reverie-ai/reverie/internal/index"
	"github.com/reverie-ai/reverie/internal/store"
)

// SearchConfig is the mutable search-time configuration. Reads take a
// consistent snapshot for the duration of one query; setters swap the whole
// cell so in-flight queries are unaffected.
type SearchConfig struct {
	Weights         FusionWeights
	RRFK            float64
	RerankEnabled   bool
	CandidateWindow int // per-source candidates before fusion; 0 derives from topK
	ProviderTimeout time.Duration
}

// DefaultSearchConfig returns the stock hybrid-search parameters.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		Weights:         FusionWeights{BM25Weight: 0.5, SemanticWeight: 0.5},
		RRFK:            DefaultRRFK,
		RerankEnabled:   true,
		ProviderTimeout: 5 * time.Second,
	}
}

// Engine orchestrates hybrid search, index lifecycle, and memory retention.
type Engine struct {
	DB       *store.DB
	Index    *index.Index
	Embedder Embedder

	heuristic    Reranker
	crossEncoder Reranker

	searchCfg atomic.Pointer[SearchConfig]
	decayCfg  atomic.Pointer[DecayConfig]

	log    zerolog.Logger
	stopCh chan struct{}
}

// New creates an Engine over the given store and lexical index.
func New(db *store.DB, ix *index.Index, log zerolog.Logger) *Engine {
	e := &Engine{
		DB:        db,
		Index:     ix,
		heuristic: HeuristicReranker{},
		log:       log,
		stopCh:    make(chan struct{}),
	}
	searchCfg := DefaultSearchConfig()
	decayCfg := DefaultDecayConfig()
	e.searchCfg.Store(&searchCfg)
	e.decayCfg.Store(&decayCfg)
	return e
}

// SetEmbedder configures the semantic similarity provider.
func (e *Engine) SetEmbedder(emb Embedder) {
	e.Embedder = emb
}

// SetCrossEncoder configures an optional cross-encoder reranker. When it
// fails at query time, search falls back to the heuristic reranker.
func (e *Engine) SetCrossEncoder(r Reranker) {
	e.crossEncoder = r
}

// SearchConfig returns the current search configuration snapshot.
func (e *Engine) SearchConfig() SearchConfig {
	return *e.searchCfg.Load()
}

// DecayConfig returns the current decay configuration snapshot.
func (e *Engine) DecayConfig() DecayConfig {
	return *e.decayCfg.Load()
}

// SetFusionWeights updates the fusion weights. Each weight must be in [0,1];
// they need not sum to 1. Rejected values are never clamped.
func (e *Engine) SetFusionWeights(bm25, semantic float64) error {
	if bm25 < 0 || bm25 > 1 {
		return fmt.Errorf("%w: bm25 weight must be in [0,1], got %g", ErrInvalidConfig, bm25)
	}
	if semantic < 0 || semantic > 1 {
		return fmt.Errorf("%w: semantic weight must be in [0,1], got %g", ErrInvalidConfig, semantic)
	}

	cfg := e.SearchConfig()
	cfg.Weights = FusionWeights{BM25Weight: bm25, SemanticWeight: semantic}
	e.searchCfg.Store(&cfg)
	return nil
}

// SetRRFK updates the reciprocal rank fusion smoothing constant (must be > 0).
func (e *Engine) SetRRFK(k float64) error {
	if k <= 0 {
		return fmt.Errorf("%w: rrf k must be > 0, got %g", ErrInvalidConfig, k)
	}

	cfg := e.SearchConfig()
	cfg.RRFK = k
	e.searchCfg.Store(&cfg)
	return nil
}

// SetCandidateWindow sets the per-source candidate list size used before
// fusion. Zero derives the window from each query's topK.
func (e *Engine) SetCandidateWindow(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: candidate window must be >= 0, got %d", ErrInvalidConfig, n)
	}

	cfg := e.SearchConfig()
	cfg.CandidateWindow = n
	e.searchCfg.Store(&cfg)
	return nil
}

// SetProviderTimeout bounds semantic provider calls per query.
func (e *Engine) SetProviderTimeout(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: provider timeout must be > 0, got %s", ErrInvalidConfig, d)
	}

	cfg := e.SearchConfig()
	cfg.ProviderTimeout = d
	e.searchCfg.Store(&cfg)
	return nil
}

// SetRerankingEnabled toggles the re-ranking stage for subsequent queries.
func (e *Engine) SetRerankingEnabled(enabled bool) {
	cfg := e.SearchConfig()
	cfg.RerankEnabled = enabled
	e.searchCfg.Store(&cfg)
}

// SetDecayConfig replaces the decay configuration. Validation fails fast;
// the running worker picks up the new values on its next cycle.
func (e *Engine) SetDecayConfig(cfg DecayConfig) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	e.decayCfg.Store(&cfg)
	return nil
}

// Stop shuts down the engine's background goroutines.
func (e *Engine) Stop() {
	close(e.stopCh)
}

// EmbedMemory generates and stores an embedding for a single memory.
func (e *Engine) EmbedMemory(ctx context.Context, m *store.MemoryRecord) error {
	if e.Embedder == nil || m.Content == "" {
		return nil
	}

	vec, err := e.Embedder.Embed(ctx, m.Content)
	if err != nil {
		return fmt.Errorf("embed memory %s: %w", m.ID, err)
	}
	return e.DB.SaveVector(m.ID, vec, e.Embedder.Model())
}

// EmbedMissing embeds all memories that don't have a vector or whose vector
// was produced by a different model.
func (e *Engine) EmbedMissing(ctx context.Context) (int, error) {
	if e.Embedder == nil {
		return 0, nil
	}

	memories, err := e.DB.ListMemories()
	if err != nil {
		return 0, fmt.Errorf("list memories: %w", err)
	}

	embedded := 0
	for i := range memories {
		if memories[i].Content == "" {
			continue
		}

		existing, err := e.DB.GetVector(memories[i].ID)
		if err != nil {
			e.log.Warn().Err(err).Str("memory", memories[i].ID).Msg("embed missing: get vector")
			continue
		}
		if existing != nil && existing.Model == e.Embedder.Model() {
			continue
		}

		if err := e.EmbedMemory(ctx, &memories[i]); err != nil {
			e.log.Warn().Err(err).Msg("embed missing")
			continue
		}
		embedded++
	}

	return embedded, nil
}
