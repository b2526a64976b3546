package engine

import (
	"sort"

	"github.com/reverie-ai/reverie/internal/index"
)

// DefaultRRFK is the standard smoothing constant for reciprocal rank fusion.
const DefaultRRFK = 60.0

// FusionWeights control how much each ranking source contributes to the
// fused score. Each weight lives in [0,1]; they are not required to sum to 1.
type FusionWeights struct {
	BM25Weight     float64 `json:"bm25_weight"`
	SemanticWeight float64 `json:"semantic_weight"`
}

// ScoredCandidate is one document moving through fusion and re-ranking.
// A rank of 0 means the candidate was absent from that source's list; ranks
// are otherwise 1-based. Transient — constructed per query, never persisted.
type ScoredCandidate struct {
	ID            string  `json:"id"`
	Content       string  `json:"-"`
	BM25Score     float64 `json:"bm25_score,omitempty"`
	BM25Rank      int     `json:"bm25_rank,omitempty"`
	SemanticScore float64 `json:"semantic_score,omitempty"`
	SemanticRank  int     `json:"semantic_rank,omitempty"`
	FusedScore    float64 `json:"fused_score"`
	RerankScore   float64 `json:"rerank_score,omitempty"`
	Reranked      bool    `json:"reranked,omitempty"`
}

// Fuse combines two ranked lists with weighted Reciprocal Rank Fusion:
//
//	fused = bm25Weight * 1/(k + bm25Rank) + semanticWeight * 1/(k + semanticRank)
//
// Ranks are derived from each source's scores (descending, ties by ID), not
// from the order the caller happened to pass the slices in, so fusion is
// invariant to input array order. A source missing a candidate contributes 0
// for its term. Rank-based fusion is used because BM25 and cosine-similarity
// scores live on incomparable scales. Output is sorted by fused score
// descending; ties go to the better (lower) BM25 rank, then to document ID.
func Fuse(bm25Ranked, semanticRanked []index.DocScore, weights FusionWeights, rrfK float64) []ScoredCandidate {
	if rrfK <= 0 {
		rrfK = DefaultRRFK
	}

	bm25Ranked = sortByScore(bm25Ranked)
	semanticRanked = sortByScore(semanticRanked)

	byID := make(map[string]*ScoredCandidate, len(bm25Ranked)+len(semanticRanked))

	for i, d := range bm25Ranked {
		byID[d.ID] = &ScoredCandidate{
			ID:        d.ID,
			BM25Score: d.Score,
			BM25Rank:  i + 1,
		}
	}
	for i, d := range semanticRanked {
		c, ok := byID[d.ID]
		if !ok {
			c = &ScoredCandidate{ID: d.ID}
			byID[d.ID] = c
		}
		c.SemanticScore = d.Score
		c.SemanticRank = i + 1
	}

	fused := make([]ScoredCandidate, 0, len(byID))
	for _, c := range byID {
		var score float64
		if c.BM25Rank > 0 {
			score += weights.BM25Weight / (rrfK + float64(c.BM25Rank))
		}
		if c.SemanticRank > 0 {
			score += weights.SemanticWeight / (rrfK + float64(c.SemanticRank))
		}
		c.FusedScore = score
		fused = append(fused, *c)
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].FusedScore != fused[j].FusedScore {
			return fused[i].FusedScore > fused[j].FusedScore
		}
		ri, rj := rankOrMax(fused[i].BM25Rank), rankOrMax(fused[j].BM25Rank)
		if ri != rj {
			return ri < rj
		}
		return fused[i].ID < fused[j].ID
	})
	return fused
}

func rankOrMax(rank int) int {
	if rank <= 0 {
		return int(^uint(0) >> 1)
	}
	return rank
}

// sortByScore copies a source list and orders it by score descending, ID
// ascending. The copy keeps Fuse from mutating caller-owned slices.
func sortByScore(list []index.DocScore) []index.DocScore {
	sorted := make([]index.DocScore, len(list))
	copy(sorted, list)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}
