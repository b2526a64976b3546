package cli

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/reverie-ai/reverie/internal/config"
	"github.com/reverie-ai/reverie/internal/engine"
	"github.com/reverie-ai/reverie/internal/index"
	"github.com/reverie-ai/reverie/internal/store"
)

// openStore opens the configured database, resolving the default path when
// none is configured.
func openStore(cfg *config.Config) (*store.DB, error) {
	dbPath := cfg.Database.Path
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
	}
	return store.Open(dbPath)
}

// buildEngine wires the engine from config: lexical index constants, fusion
// weights, RRF constant, reranking toggle, and decay parameters.
func buildEngine(cfg *config.Config, db *store.DB, log zerolog.Logger) (*engine.Engine, error) {
	ix := index.New(cfg.Search.K1, cfg.Search.B)
	eng := engine.New(db, ix, log)

	if err := eng.SetFusionWeights(cfg.Search.BM25Weight, cfg.Search.SemanticWeight); err != nil {
		return nil, err
	}
	if err := eng.SetRRFK(cfg.Search.RRFK); err != nil {
		return nil, err
	}
	eng.SetRerankingEnabled(cfg.Rerank.Enabled)

	providerTimeout := time.Duration(cfg.Search.ProviderTimeoutSeconds) * time.Second
	if err := eng.SetCandidateWindow(cfg.Search.CandidateWindow); err != nil {
		return nil, err
	}
	if err := eng.SetProviderTimeout(providerTimeout); err != nil {
		return nil, err
	}

	perType := make(map[store.MemoryType]float64, len(cfg.Decay.PerTypeStrength))
	for t, strength := range cfg.Decay.PerTypeStrength {
		perType[store.MemoryType(t)] = strength
	}
	if err := eng.SetDecayConfig(engine.DecayConfig{
		WorkerIntervalHours:  cfg.Decay.WorkerIntervalHours,
		BaseDecayStrength:    cfg.Decay.BaseStrength,
		PerTypeDecayStrength: perType,
		PruneThreshold:       cfg.Decay.PruneThreshold,
		AutoPrune:            cfg.Decay.AutoPrune,
	}); err != nil {
		return nil, err
	}

	if cfg.Rerank.URL != "" {
		eng.SetCrossEncoder(engine.NewCrossEncoderReranker(cfg.Rerank.URL, cfg.Rerank.Model, providerTimeout))
	}

	return eng, nil
}

// configureEmbedder attaches the best available semantic provider: Ollama if
// reachable, otherwise a TF-IDF fallback built from the stored memories.
func configureEmbedder(eng *engine.Engine, cfg *config.Config, db *store.DB, log zerolog.Logger) {
	if engine.ProbeOllama(cfg.Embedding.OllamaURL, cfg.Embedding.Model) {
		timeout := time.Duration(cfg.Search.ProviderTimeoutSeconds) * time.Second
		eng.SetEmbedder(engine.NewOllamaEmbedder(cfg.Embedding.OllamaURL, cfg.Embedding.Model, cfg.Embedding.Dimensions, timeout))
		log.Info().Str("model", cfg.Embedding.Model).Msg("embedder: ollama")
		return
	}

	emb, err := engine.NewTFIDFEmbedder(db, 512)
	if err != nil {
		log.Warn().Err(err).Msg("tfidf embedder init failed, semantic search disabled")
		return
	}
	eng.SetEmbedder(emb)
	log.Info().Msg("embedder: tfidf (fallback)")
}
