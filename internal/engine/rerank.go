package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/reverie-ai/reverie/internal/index"
)

// Reranker applies a secondary scoring pass to fused candidates.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []ScoredCandidate, topK int) ([]ScoredCandidate, error)
	Name() string
}

// HeuristicReranker rescores candidates with cheap lexical signals. It is
// deterministic, pure, and always available.
type HeuristicReranker struct{}

func (HeuristicReranker) Name() string { return "heuristic" }

// Rerank boosts candidates that contain the exact query phrase, cover more
// query terms, or repeat query terms often, and slightly penalizes low
// original ranks. Truncates to topK after re-sorting.
func (HeuristicReranker) Rerank(_ context.Context, query string, candidates []ScoredCandidate, topK int) ([]ScoredCandidate, error) {
	queryLower := strings.ToLower(strings.TrimSpace(query))
	queryTerms := index.Tokenize(query)

	reranked := make([]ScoredCandidate, len(candidates))
	copy(reranked, candidates)

	for i := range reranked {
		contentLower := strings.ToLower(reranked[i].Content)
		score := reranked[i].FusedScore

		// Exact phrase match
		if queryLower != "" && strings.Contains(contentLower, queryLower) {
			score += 0.3
		}

		// Term coverage and frequency
		if len(queryTerms) > 0 {
			covered := 0
			occurrences := 0
			for _, term := range queryTerms {
				n := strings.Count(contentLower, term)
				if n > 0 {
					covered++
				}
				occurrences += n
			}
			score += 0.2 * float64(covered) / float64(len(queryTerms))
			score += math.Min(0.2, 0.05*float64(occurrences))
		}

		// Original rank is the 1-based position in the fused list
		score -= math.Min(0.1, 0.01*float64(i+1))

		reranked[i].RerankScore = score
		reranked[i].Reranked = true
	}

	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].RerankScore > reranked[j].RerankScore
	})
	if topK > 0 && len(reranked) > topK {
		reranked = reranked[:topK]
	}
	return reranked, nil
}

// CrossEncoderReranker scores query/document pairs with an external scoring
// model over HTTP. Calls carry a timeout; any failure is reported so the
// orchestrator can fall back to the heuristic reranker.
type CrossEncoderReranker struct {
	url    string
	model  string
	client *http.Client
}

// NewCrossEncoderReranker creates a reranker backed by a rerank API endpoint.
func NewCrossEncoderReranker(url, model string, timeout time.Duration) *CrossEncoderReranker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CrossEncoderReranker{
		url:    url,
		model:  model,
		client: &http.Client{Timeout: timeout},
	}
}

func (r *CrossEncoderReranker) Name() string { return "cross-encoder:" + r.model }

// Rerank sends the query and candidate texts to the scoring model and
// re-sorts candidates by the returned scores.
func (r *CrossEncoderReranker) Rerank(ctx context.Context, query string, candidates []ScoredCandidate, topK int) ([]ScoredCandidate, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = c.Content
	}

	reqBody, err := json.Marshal(map[string]any{
		"model":     r.model,
		"query":     query,
		"documents": docs,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", r.url+"/api/rerank", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: rerank api: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read rerank response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: rerank status %d: %s", ErrProviderUnavailable, resp.StatusCode, respBody)
	}

	var result struct {
		Scores []float64 `json:"scores"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}
	if len(result.Scores) != len(candidates) {
		return nil, fmt.Errorf("rerank returned %d scores for %d candidates", len(result.Scores), len(candidates))
	}

	reranked := make([]ScoredCandidate, len(candidates))
	copy(reranked, candidates)
	for i := range reranked {
		reranked[i].RerankScore = result.Scores[i]
		reranked[i].Reranked = true
	}

	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].RerankScore > reranked[j].RerankScore
	})
	if topK > 0 && len(reranked) > topK {
		reranked = reranked[:topK]
	}
	return reranked, nil
}
