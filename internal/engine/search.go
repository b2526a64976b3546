package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/reverie-ai/reverie/internal/index"
	"github.com/reverie-ai/reverie/internal/store"
)

// SearchResult is a single hybrid search hit with every contributing
// sub-score attached for explainability.
type SearchResult struct {
	Memory store.MemoryRecord `json:"memory"`
	ScoredCandidate
}

// Search runs the full hybrid pipeline: BM25 and semantic scoring in
// parallel, each truncated to a candidate window, fused with weighted RRF,
// optionally reranked, then truncated to topK.
//
// Degraded modes are successes, not errors: a cold (unbuilt) index yields
// empty results with a warning; a semantic provider timeout falls back to
// BM25-only; a cross-encoder failure falls back to the heuristic reranker.
func (e *Engine) Search(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		topK = 10
	}
	if query == "" {
		return nil, nil
	}

	cfg := e.SearchConfig()

	if !e.Index.Built() {
		e.log.Warn().Str("query", query).Msg("search before index build, returning empty results")
		return nil, nil
	}

	window := cfg.CandidateWindow
	if window <= 0 {
		window = 4 * topK
		if window < 20 {
			window = 20
		}
	}

	// Semantic scoring runs concurrently with BM25; fusion waits for both so
	// a slow provider can't silently under-count candidates. The provider
	// call is bounded by its own timeout.
	semCh := make(chan []index.DocScore, 1)
	go func() {
		if e.Embedder == nil {
			semCh <- nil
			return
		}
		sctx, cancel := context.WithTimeout(ctx, cfg.ProviderTimeout)
		defer cancel()

		ranked, err := e.semanticRanked(sctx, query, window)
		if err != nil {
			e.log.Warn().Err(err).Msg("semantic scoring failed, degrading to bm25-only")
			semCh <- nil
			return
		}
		semCh <- ranked
	}()

	bm25Ranked := e.Index.Score(query)
	if len(bm25Ranked) > window {
		bm25Ranked = bm25Ranked[:window]
	}

	semanticRanked := <-semCh

	fused := Fuse(bm25Ranked, semanticRanked, cfg.Weights, cfg.RRFK)
	if len(fused) == 0 {
		return nil, nil
	}

	// Attach memory records and content before re-ranking: the heuristic
	// reranker scores against the stored text.
	ids := make([]string, len(fused))
	for i, c := range fused {
		ids[i] = c.ID
	}
	records, err := e.DB.GetMemoriesByIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}
	byID := make(map[string]store.MemoryRecord, len(records))
	for _, m := range records {
		byID[m.ID] = m
	}
	for i := range fused {
		if m, ok := byID[fused[i].ID]; ok {
			fused[i].Content = m.Content
		} else if d, ok := e.Index.Document(fused[i].ID); ok {
			fused[i].Content = d.Content
		}
	}

	final := fused
	if cfg.RerankEnabled {
		final = e.rerank(ctx, query, fused, topK)
	}
	if len(final) > topK {
		final = final[:topK]
	}

	results := make([]SearchResult, 0, len(final))
	for _, c := range final {
		m, ok := byID[c.ID]
		if !ok {
			// Indexed but since deleted from the store; skip.
			continue
		}
		results = append(results, SearchResult{Memory: m, ScoredCandidate: c})
	}

	// Retrieval reinforces retention.
	for _, r := range results {
		if err := e.DB.TouchMemory(r.Memory.ID); err != nil {
			e.log.Warn().Err(err).Str("memory", r.Memory.ID).Msg("touch after retrieval")
		}
	}

	return results, nil
}

// rerank applies the configured reranker, falling back to the heuristic
// reranker when the cross-encoder is unavailable.
func (e *Engine) rerank(ctx context.Context, query string, candidates []ScoredCandidate, topK int) []ScoredCandidate {
	if e.crossEncoder != nil {
		reranked, err := e.crossEncoder.Rerank(ctx, query, candidates, topK)
		if err == nil {
			return reranked
		}
		e.log.Warn().Err(err).Str("reranker", e.crossEncoder.Name()).Msg("cross-encoder rerank failed, falling back to heuristic")
	}

	reranked, err := e.heuristic.Rerank(ctx, query, candidates, topK)
	if err != nil {
		// The heuristic reranker cannot fail today; keep the fused order if
		// that ever changes.
		e.log.Warn().Err(err).Msg("heuristic rerank failed, keeping fused order")
		return candidates
	}
	return reranked
}

// semanticRanked embeds the query and ranks all stored vectors by cosine
// similarity, descending, truncated to limit. Non-positive similarities are
// dropped.
func (e *Engine) semanticRanked(ctx context.Context, query string, limit int) ([]index.DocScore, error) {
	queryVec, err := e.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	vectors, err := e.DB.AllVectors()
	if err != nil {
		return nil, fmt.Errorf("load vectors: %w", err)
	}
	if len(vectors) == 0 {
		return nil, nil
	}

	ranked := make([]index.DocScore, 0, len(vectors))
	for _, v := range vectors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sim := CosineSimilarity(queryVec, v.Embedding)
		if sim > 0 {
			ranked = append(ranked, index.DocScore{ID: v.MemoryID, Score: sim})
		}
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ID < ranked[j].ID
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// RebuildIndex rebuilds the lexical index from the current memory store
// snapshot. Queries in flight keep reading the previous index generation.
func (e *Engine) RebuildIndex(ctx context.Context) (index.Stats, error) {
	if err := ctx.Err(); err != nil {
		return index.Stats{}, err
	}

	memories, err := e.DB.ListMemories()
	if err != nil {
		return index.Stats{}, fmt.Errorf("list memories for index: %w", err)
	}

	docs := make([]index.Document, 0, len(memories))
	for _, m := range memories {
		docs = append(docs, index.Document{ID: m.ID, Content: m.Content})
	}

	stats := e.Index.Build(docs)
	e.log.Info().Int("documents", stats.TotalDocs).Float64("avg_doc_len", stats.AvgDocLen).Msg("lexical index rebuilt")
	return stats, nil
}
