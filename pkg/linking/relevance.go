package linking

import (
	"math"
	"strings"
	"time"
	"unicode"
)

// stopwords are excluded from term extraction; they match everything and
// carry no signal.
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"of": {}, "to": {}, "in": {}, "on": {}, "for": {}, "with": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {},
	"it": {}, "its": {}, "this": {}, "that": {}, "these": {}, "those": {},
	"at": {}, "by": {}, "from": {}, "as": {}, "into": {}, "over": {},
	"after": {}, "before": {}, "not": {}, "no": {}, "we": {}, "i": {},
}

// extractTerms lowercases, tokenizes and de-duplicates the meaningful words
// of the given texts. Words shorter than three characters and stopwords are
// dropped.
func extractTerms(texts ...string) []string {
	seen := make(map[string]struct{})
	var terms []string
	for _, text := range texts {
		for _, word := range splitWords(strings.ToLower(text)) {
			if len(word) < 3 {
				continue
			}
			if _, stop := stopwords[word]; stop {
				continue
			}
			if _, dup := seen[word]; dup {
				continue
			}
			seen[word] = struct{}{}
			terms = append(terms, word)
		}
	}
	return terms
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

// termOverlap returns the matched terms and the overlap ratio against the
// task's term set. The denominator is capped so long descriptions do not
// drown a strong partial match.
func termOverlap(taskTerms []string, content string) ([]string, float64) {
	if len(taskTerms) == 0 {
		return nil, 0
	}

	contentWords := make(map[string]struct{})
	for _, w := range splitWords(strings.ToLower(content)) {
		contentWords[w] = struct{}{}
	}

	var matched []string
	for _, term := range taskTerms {
		if _, ok := contentWords[term]; ok {
			matched = append(matched, term)
		}
	}

	denom := len(taskTerms)
	if denom > 10 {
		denom = 10
	}
	ratio := float64(len(matched)) / float64(denom)
	if ratio > 1 {
		ratio = 1
	}
	return matched, ratio
}

// tagOverlap returns the share of task tags also present on the memory.
func tagOverlap(taskTags, memoryTags []string) float64 {
	if len(taskTags) == 0 || len(memoryTags) == 0 {
		return 0
	}

	memSet := make(map[string]struct{}, len(memoryTags))
	for _, tag := range memoryTags {
		memSet[strings.ToLower(tag)] = struct{}{}
	}

	hits := 0
	for _, tag := range taskTags {
		if _, ok := memSet[strings.ToLower(tag)]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(taskTags))
}

// recencyScore decays exponentially with memory age: 1.0 now, 0.5 after one
// half-life.
func recencyScore(createdAt, now time.Time, halfLifeDays float64) float64 {
	if halfLifeDays <= 0 {
		halfLifeDays = 30
	}
	ageDays := now.Sub(createdAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Exp(-math.Ln2 * ageDays / halfLifeDays)
}

// combine blends the individual signals into a single [0,1] relevance.
// Without a semantic score the lexical term signal carries half the weight;
// with one, a quarter of the weight shifts onto it.
func combine(term, tag, recency, semantic float64, hasSemantic bool) float64 {
	var score float64
	if hasSemantic {
		score = 0.35*term + 0.15*tag + 0.2*recency + 0.3*semantic
	} else {
		score = 0.5*term + 0.2*tag + 0.3*recency
	}
	return clamp01(score)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
