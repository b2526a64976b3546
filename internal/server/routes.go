package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/reverie-ai/reverie/internal/engine"
	"github.com/reverie-ai/reverie/internal/store"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "q required")
		return
	}

	topK := 10
	if k := r.URL.Query().Get("k"); k != "" {
		n, err := strconv.Atoi(k)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "k must be a positive integer")
			return
		}
		topK = n
	}

	results, err := s.engine.Search(r.Context(), query, topK)
	if err != nil {
		s.log.Error().Err(err).Str("query", query).Msg("search failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"count":   len(results),
		"results": results,
	})
}

func (s *Server) handleCreateMemory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content    string `json:"content"`
		MemoryType string `json:"memory_type"`
		Pinned     bool   `json:"pinned"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content required")
		return
	}

	memType := store.MemoryType(req.MemoryType)
	if req.MemoryType == "" {
		memType = engine.ClassifyMemoryType(req.Content)
	} else if !store.ValidMemoryType(memType) {
		writeError(w, http.StatusBadRequest, "invalid memory_type")
		return
	}

	m := &store.MemoryRecord{
		Content:    req.Content,
		MemoryType: memType,
		IsPinned:   req.Pinned,
	}
	if err := s.db.CreateMemory(m); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Embed asynchronously; the index picks the memory up on next rebuild.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.engine.EmbedMemory(ctx, m); err != nil {
			s.log.Warn().Err(err).Str("memory", m.ID).Msg("embed new memory")
		}
	}()

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":          m.ID,
		"memory_type": m.MemoryType,
	})
}

func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	memories, err := s.db.ListMemories()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	type memoryDTO struct {
		ID             string  `json:"id"`
		Content        string  `json:"content"`
		MemoryType     string  `json:"memory_type"`
		RetentionScore float64 `json:"retention_score"`
		IsPinned       bool    `json:"is_pinned"`
		AccessCount    int     `json:"access_count"`
		CreatedAt      int64   `json:"created_at"`
	}
	out := make([]memoryDTO, 0, len(memories))
	for _, m := range memories {
		out = append(out, memoryDTO{
			ID:             m.ID,
			Content:        m.Content,
			MemoryType:     string(m.MemoryType),
			RetentionScore: m.RetentionScore,
			IsPinned:       m.IsPinned,
			AccessCount:    m.AccessCount,
			CreatedAt:      m.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(out), "memories": out})
}

func (s *Server) handlePin(w http.ResponseWriter, r *http.Request) {
	s.togglePin(w, r, true)
}

func (s *Server) handleUnpin(w http.ResponseWriter, r *http.Request) {
	s.togglePin(w, r, false)
}

func (s *Server) togglePin(w http.ResponseWriter, r *http.Request, pinned bool) {
	id := chi.URLParam(r, "memoryID")

	m, err := s.db.GetMemory(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "memory not found")
		return
	}

	if pinned {
		err = s.engine.PinMemory(id)
	} else {
		err = s.engine.UnpinMemory(id)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": id, "pinned": pinned})
}

func (s *Server) handleRebuildIndex(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.RebuildIndex(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"documents":      stats.TotalDocs,
		"avg_doc_length": stats.AvgDocLen,
	})
}

func (s *Server) handleSetFusion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BM25Weight     *float64 `json:"bm25_weight"`
		SemanticWeight *float64 `json:"semantic_weight"`
		RRFK           *float64 `json:"rrf_k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if req.BM25Weight != nil || req.SemanticWeight != nil {
		current := s.engine.SearchConfig().Weights
		bm25, semantic := current.BM25Weight, current.SemanticWeight
		if req.BM25Weight != nil {
			bm25 = *req.BM25Weight
		}
		if req.SemanticWeight != nil {
			semantic = *req.SemanticWeight
		}
		if err := s.engine.SetFusionWeights(bm25, semantic); err != nil {
			writeConfigError(w, err)
			return
		}
	}
	if req.RRFK != nil {
		if err := s.engine.SetRRFK(*req.RRFK); err != nil {
			writeConfigError(w, err)
			return
		}
	}

	cfg := s.engine.SearchConfig()
	writeJSON(w, http.StatusOK, map[string]any{
		"bm25_weight":     cfg.Weights.BM25Weight,
		"semantic_weight": cfg.Weights.SemanticWeight,
		"rrf_k":           cfg.RRFK,
	})
}

func (s *Server) handleSetRerank(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	s.engine.SetRerankingEnabled(req.Enabled)
	writeJSON(w, http.StatusOK, map[string]any{"enabled": req.Enabled})
}

func (s *Server) handleSetDecay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WorkerIntervalHours *int               `json:"worker_interval_hours"`
		BaseStrength        *float64           `json:"base_strength"`
		PerTypeStrength     map[string]float64 `json:"per_type_strength"`
		PruneThreshold      *float64           `json:"prune_threshold"`
		AutoPrune           *bool              `json:"auto_prune"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	cfg := s.engine.DecayConfig()
	if req.WorkerIntervalHours != nil {
		cfg.WorkerIntervalHours = *req.WorkerIntervalHours
	}
	if req.BaseStrength != nil {
		cfg.BaseDecayStrength = *req.BaseStrength
	}
	if req.PerTypeStrength != nil {
		perType := make(map[store.MemoryType]float64, len(req.PerTypeStrength))
		for t, strength := range req.PerTypeStrength {
			perType[store.MemoryType(t)] = strength
		}
		cfg.PerTypeDecayStrength = perType
	}
	if req.PruneThreshold != nil {
		cfg.PruneThreshold = *req.PruneThreshold
	}
	if req.AutoPrune != nil {
		cfg.AutoPrune = *req.AutoPrune
	}

	if err := s.engine.SetDecayConfig(cfg); err != nil {
		writeConfigError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleRunRetention(w http.ResponseWriter, r *http.Request) {
	updated, err := s.engine.UpdateAllRetentionScores(r.Context())
	if err != nil {
		// Best-effort semantics: report how many succeeded before the failure.
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   err.Error(),
			"updated": updated,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"updated": updated})
}

func (s *Server) handlePrune(w http.ResponseWriter, r *http.Request) {
	threshold := s.engine.DecayConfig().PruneThreshold

	var req struct {
		Threshold *float64 `json:"threshold"`
	}
	// Body is optional; an empty body keeps the configured threshold.
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.Threshold != nil {
		threshold = *req.Threshold
	}

	removed, err := s.engine.PruneLowRetentionMemories(r.Context(), threshold)
	if err != nil {
		writeConfigError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"removed": removed, "threshold": threshold})
}

// writeConfigError maps validation rejections to 400 and everything else to 500.
func writeConfigError(w http.ResponseWriter, err error) {
	if errors.Is(err, engine.ErrInvalidConfig) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
