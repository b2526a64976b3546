// Package index implements a BM25 lexical index over memory documents.
//
// The index is an immutable snapshot behind an atomic pointer: Build
// constructs a brand-new snapshot and swaps it in, so queries in flight keep
// reading the previous generation until they complete. At most one build runs
// at a time.
package index

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
)

// Default BM25 constants.
const (
	DefaultK1 = 1.5
	DefaultB  = 0.75
)

// Document is a single indexed memory unit.
type Document struct {
	ID        string
	Content   string
	TermFreqs map[string]int
	Length    int
}

// DocScore is a scored document, the unit of a ranked result list.
type DocScore struct {
	ID    string
	Score float64
}

// Stats describes the index at the time of its last build. AvgDocLen is
// frozen per build and goes stale until the next rebuild; this is a known,
// accepted approximation.
type Stats struct {
	TotalDocs int
	AvgDocLen float64
	K1        float64
	B         float64
}

// snapshot is one immutable generation of the inverted index.
type snapshot struct {
	postings map[string]map[string]int // term -> docID -> tf
	docFreq  map[string]int            // term -> number of docs containing it
	docs     map[string]Document
	stats    Stats
}

// Index is a BM25 inverted index with atomic-swap rebuilds.
type Index struct {
	snap    atomic.Pointer[snapshot]
	buildMu sync.Mutex
	k1      float64
	b       float64
}

// New creates an empty, unbuilt index. A non-positive k1 or a negative b
// falls back to the BM25 default; b = 0 is a valid setting (no length
// normalization) and is honored.
func New(k1, b float64) *Index {
	if k1 <= 0 {
		k1 = DefaultK1
	}
	if b < 0 {
		b = DefaultB
	}
	return &Index{k1: k1, b: b}
}

// Built reports whether at least one build has completed.
func (ix *Index) Built() bool {
	return ix.snap.Load() != nil
}

// Stats returns the stats of the current snapshot, or a zero Stats if the
// index has never been built.
func (ix *Index) Stats() Stats {
	s := ix.snap.Load()
	if s == nil {
		return Stats{K1: ix.k1, B: ix.b}
	}
	return s.stats
}

// Build performs a full rebuild from the given documents. Prior postings are
// discarded; term frequencies and lengths are computed here, so callers only
// need to supply ID and Content. Empty input degenerates to an empty index.
// Idempotent and safe to call concurrently with Score.
func (ix *Index) Build(docs []Document) Stats {
	ix.buildMu.Lock()
	defer ix.buildMu.Unlock()

	s := &snapshot{
		postings: make(map[string]map[string]int),
		docFreq:  make(map[string]int),
		docs:     make(map[string]Document, len(docs)),
	}

	var totalLen int
	for _, d := range docs {
		tokens := Tokenize(d.Content)
		d.TermFreqs = make(map[string]int, len(tokens))
		for _, tok := range tokens {
			d.TermFreqs[tok]++
		}
		d.Length = len(tokens)
		totalLen += d.Length
		s.docs[d.ID] = d

		for term, tf := range d.TermFreqs {
			posting, ok := s.postings[term]
			if !ok {
				posting = make(map[string]int)
				s.postings[term] = posting
			}
			posting[d.ID] = tf
			s.docFreq[term] = len(posting)
		}
	}

	avg := 0.0
	if len(s.docs) > 0 {
		avg = float64(totalLen) / float64(len(s.docs))
	}
	s.stats = Stats{
		TotalDocs: len(s.docs),
		AvgDocLen: avg,
		K1:        ix.k1,
		B:         ix.b,
	}

	ix.snap.Store(s)
	return s.stats
}

// Score ranks documents against the query by BM25, descending, ties broken by
// document ID ascending. An empty query, unknown terms, or an unbuilt index
// all yield an empty result.
func (ix *Index) Score(query string) []DocScore {
	s := ix.snap.Load()
	if s == nil || s.stats.TotalDocs == 0 {
		return nil
	}

	terms := Tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	// Deduplicate query terms; repeated terms don't accumulate twice.
	seen := make(map[string]bool, len(terms))

	n := float64(s.stats.TotalDocs)
	avgdl := s.stats.AvgDocLen
	if avgdl <= 0 {
		avgdl = 1
	}

	scores := make(map[string]float64)
	for _, term := range terms {
		if seen[term] {
			continue
		}
		seen[term] = true

		posting, ok := s.postings[term]
		if !ok {
			continue // absent terms contribute zero
		}

		df := float64(s.docFreq[term])
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))

		for docID, tf := range posting {
			docLen := float64(s.docs[docID].Length)
			if docLen <= 0 {
				docLen = 1 // avoid division by zero on empty documents
			}
			num := float64(tf) * (ix.k1 + 1)
			den := float64(tf) + ix.k1*(1-ix.b+ix.b*docLen/avgdl)
			scores[docID] += idf * num / den
		}
	}

	if len(scores) == 0 {
		return nil
	}

	ranked := make([]DocScore, 0, len(scores))
	for id, score := range scores {
		ranked = append(ranked, DocScore{ID: id, Score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ID < ranked[j].ID
	})
	return ranked
}

// Document returns the indexed document for an ID from the current snapshot.
func (ix *Index) Document(id string) (Document, bool) {
	s := ix.snap.Load()
	if s == nil {
		return Document{}, false
	}
	d, ok := s.docs[id]
	return d, ok
}
