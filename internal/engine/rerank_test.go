package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeuristicRerankExactPhraseWins(t *testing.T) {
	candidates := []ScoredCandidate{
		{ID: "m1", Content: "notes about many different things", FusedScore: 0.016},
		{ID: "m2", Content: "user loves morning coffee rituals", FusedScore: 0.016},
	}

	reranked, err := HeuristicReranker{}.Rerank(context.Background(), "morning coffee", candidates, 10)
	require.NoError(t, err)
	require.Len(t, reranked, 2)

	assert.Equal(t, "m2", reranked[0].ID)
	assert.True(t, reranked[0].Reranked)
	assert.Greater(t, reranked[0].RerankScore, reranked[1].RerankScore)
}

func TestHeuristicRerankDeterministic(t *testing.T) {
	candidates := []ScoredCandidate{
		{ID: "m1", Content: "coffee coffee coffee", FusedScore: 0.01},
		{ID: "m2", Content: "coffee once", FusedScore: 0.012},
		{ID: "m3", Content: "tea instead", FusedScore: 0.011},
	}

	first, err := HeuristicReranker{}.Rerank(context.Background(), "coffee", candidates, 10)
	require.NoError(t, err)
	second, err := HeuristicReranker{}.Rerank(context.Background(), "coffee", candidates, 10)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestHeuristicRerankPositionPenalty(t *testing.T) {
	// Identical content and fused score: the earlier candidate keeps a
	// smaller penalty and must stay ahead.
	candidates := []ScoredCandidate{
		{ID: "m1", Content: "same text", FusedScore: 0.01},
		{ID: "m2", Content: "same text", FusedScore: 0.01},
	}

	reranked, err := HeuristicReranker{}.Rerank(context.Background(), "unrelated", candidates, 10)
	require.NoError(t, err)
	assert.Equal(t, "m1", reranked[0].ID)
	assert.Greater(t, reranked[0].RerankScore, reranked[1].RerankScore)
}

func TestHeuristicRerankTruncates(t *testing.T) {
	candidates := make([]ScoredCandidate, 5)
	for i := range candidates {
		candidates[i] = ScoredCandidate{ID: string(rune('a' + i)), Content: "text"}
	}

	reranked, err := HeuristicReranker{}.Rerank(context.Background(), "q", candidates, 2)
	require.NoError(t, err)
	assert.Len(t, reranked, 2)
}

func TestCrossEncoderRerank(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/rerank", r.URL.Path)
		w.Write([]byte(`{"scores": [0.1, 0.9]}`))
	}))
	defer srv.Close()

	r := NewCrossEncoderReranker(srv.URL, "test-model", 2*time.Second)
	candidates := []ScoredCandidate{
		{ID: "m1", Content: "first"},
		{ID: "m2", Content: "second"},
	}

	reranked, err := r.Rerank(context.Background(), "query", candidates, 10)
	require.NoError(t, err)
	require.Len(t, reranked, 2)
	assert.Equal(t, "m2", reranked[0].ID)
	assert.Equal(t, 0.9, reranked[0].RerankScore)
}

func TestCrossEncoderUnavailable(t *testing.T) {
	r := NewCrossEncoderReranker("http://127.0.0.1:1", "test-model", 200*time.Millisecond)
	_, err := r.Rerank(context.Background(), "query", []ScoredCandidate{{ID: "m1", Content: "x"}}, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestCrossEncoderScoreCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"scores": [0.5]}`))
	}))
	defer srv.Close()

	r := NewCrossEncoderReranker(srv.URL, "test-model", 2*time.Second)
	candidates := []ScoredCandidate{
		{ID: "m1", Content: "first"},
		{ID: "m2", Content: "second"},
	}
	_, err := r.Rerank(context.Background(), "query", candidates, 10)
	assert.Error(t, err)
}
