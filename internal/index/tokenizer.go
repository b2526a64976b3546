package index

import "strings"

// stopWords are filtered during tokenization. Kept small on purpose — BM25's
// idf already down-weights common terms; this only strips pure glue words.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "for": true, "if": true, "in": true,
	"into": true, "is": true, "it": true, "of": true, "on": true, "or": true,
	"that": true, "the": true, "to": true, "was": true, "with": true,
}

// Tokenize splits text into lowercase tokens, stripping punctuation and
// stop words. Single-character tokens are skipped.
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	var tokens []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 1 {
			tok := current.String()
			if !stopWords[tok] {
				tokens = append(tokens, tok)
			}
		}
		current.Reset()
	}
	for _, r := range text {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			current.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}
