package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reverie-ai/reverie/internal/index"
)

func TestFuseConsensusBeatsSingleSource(t *testing.T) {
	bm25 := []index.DocScore{{ID: "both", Score: 9.1}, {ID: "lexical-only", Score: 3.0}}
	semantic := []index.DocScore{{ID: "both", Score: 0.92}, {ID: "semantic-only", Score: 0.80}}

	weights := FusionWeights{BM25Weight: 0.5, SemanticWeight: 0.5}
	fused := Fuse(bm25, semantic, weights, 60)
	require.Len(t, fused, 3)

	// Present at rank 1 in both lists must strictly beat any single-source candidate.
	assert.Equal(t, "both", fused[0].ID)
	assert.Greater(t, fused[0].FusedScore, fused[1].FusedScore)
	assert.Greater(t, fused[0].FusedScore, fused[2].FusedScore)
}

func TestFuseBM25OnlyWeightsMatchBM25Ranking(t *testing.T) {
	bm25 := []index.DocScore{{ID: "a", Score: 5}, {ID: "b", Score: 4}, {ID: "c", Score: 3}}
	semantic := []index.DocScore{{ID: "c", Score: 0.99}, {ID: "b", Score: 0.5}}

	fused := Fuse(bm25, semantic, FusionWeights{BM25Weight: 1.0, SemanticWeight: 0.0}, 60)
	require.Len(t, fused, 3)
	assert.Equal(t, "a", fused[0].ID)
	assert.Equal(t, "b", fused[1].ID)
	assert.Equal(t, "c", fused[2].ID)
}

func TestFuseMissingSourceContributesZero(t *testing.T) {
	bm25 := []index.DocScore{{ID: "a", Score: 5}}
	fused := Fuse(bm25, nil, FusionWeights{BM25Weight: 0.7, SemanticWeight: 0.3}, 60)

	require.Len(t, fused, 1)
	assert.Equal(t, 1, fused[0].BM25Rank)
	assert.Zero(t, fused[0].SemanticRank)
	assert.InDelta(t, 0.7/61.0, fused[0].FusedScore, 1e-12)
}

func TestFuseAnnotatesSubScores(t *testing.T) {
	bm25 := []index.DocScore{{ID: "a", Score: 5.5}}
	semantic := []index.DocScore{{ID: "b", Score: 0.88}, {ID: "a", Score: 0.42}}

	fused := Fuse(bm25, semantic, FusionWeights{BM25Weight: 0.5, SemanticWeight: 0.5}, 60)
	require.Len(t, fused, 2)

	byID := map[string]ScoredCandidate{}
	for _, c := range fused {
		byID[c.ID] = c
	}
	a := byID["a"]
	assert.Equal(t, 5.5, a.BM25Score)
	assert.Equal(t, 1, a.BM25Rank)
	assert.Equal(t, 0.42, a.SemanticScore)
	assert.Equal(t, 2, a.SemanticRank)

	b := byID["b"]
	assert.Zero(t, b.BM25Rank)
	assert.Equal(t, 1, b.SemanticRank)
}

func TestFuseTieBreak(t *testing.T) {
	// Two candidates each appearing only in one list at rank 1 fuse to the
	// same score with equal weights; the one holding a BM25 rank wins.
	bm25 := []index.DocScore{{ID: "lex", Score: 2}}
	semantic := []index.DocScore{{ID: "sem", Score: 0.9}}

	fused := Fuse(bm25, semantic, FusionWeights{BM25Weight: 0.5, SemanticWeight: 0.5}, 60)
	require.Len(t, fused, 2)
	assert.Equal(t, fused[0].FusedScore, fused[1].FusedScore)
	assert.Equal(t, "lex", fused[0].ID)
}

func TestFuseInputOrderInvariance(t *testing.T) {
	bm25 := []index.DocScore{{ID: "a", Score: 5}, {ID: "b", Score: 4}, {ID: "c", Score: 3}}
	semantic := []index.DocScore{{ID: "c", Score: 0.9}, {ID: "b", Score: 0.5}}

	// Same (id, score) pairs, shuffled: ranks must come from the scores, so
	// the fused ranking cannot change.
	bm25Shuffled := []index.DocScore{{ID: "c", Score: 3}, {ID: "a", Score: 5}, {ID: "b", Score: 4}}
	semanticShuffled := []index.DocScore{{ID: "b", Score: 0.5}, {ID: "c", Score: 0.9}}

	weights := FusionWeights{BM25Weight: 0.6, SemanticWeight: 0.4}
	assert.Equal(t,
		Fuse(bm25, semantic, weights, 60),
		Fuse(bm25Shuffled, semanticShuffled, weights, 60))
}

func TestFuseLeavesInputsUntouched(t *testing.T) {
	bm25 := []index.DocScore{{ID: "b", Score: 1}, {ID: "a", Score: 2}}
	Fuse(bm25, nil, FusionWeights{BM25Weight: 1}, 60)
	assert.Equal(t, []index.DocScore{{ID: "b", Score: 1}, {ID: "a", Score: 2}}, bm25)
}

func TestFuseDefaultsRRFK(t *testing.T) {
	bm25 := []index.DocScore{{ID: "a", Score: 1}}
	fused := Fuse(bm25, nil, FusionWeights{BM25Weight: 1, SemanticWeight: 0}, 0)
	require.Len(t, fused, 1)
	assert.InDelta(t, 1.0/(DefaultRRFK+1), fused[0].FusedScore, 1e-12)
}
