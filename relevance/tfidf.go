// Package relevance ranks short texts against a query with TF-IDF vectors
// and cosine similarity.
package relevance

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

const (
	DefaultBestMatchThreshold = 0.15
	DefaultTopKThreshold      = 0.1
	DefaultTopK               = 3
)

type (
	Match struct {
		Text  string
		Index int
		// Score is the best observed score even when Found is false.
		Score float64
		Found bool
	}

	Scored struct {
		Text  string
		Index int
		Score float64
	}
)

// Score returns one similarity in [0,1] per candidate, in candidate order.
// It returns nil when there are no candidates or the query has no tokens.
func Score(query string, candidates []string) []float64 {
	if len(candidates) == 0 {
		return nil
	}
	queryTokens := Tokenize(query)
	if len(queryTokens) == 0 {
		return nil
	}

	docs := make([][]string, 0, len(candidates)+1)
	for _, c := range candidates {
		docs = append(docs, Tokenize(c))
	}
	docs = append(docs, queryTokens)

	vocab, idf := buildIDF(docs)
	queryVec := vectorize(queryTokens, vocab, idf)

	scores := make([]float64, len(candidates))
	for i := range candidates {
		scores[i] = cosine(queryVec, vectorize(docs[i], vocab, idf))
	}
	return scores
}

// BestMatch returns the highest scoring candidate. Found is set only when
// its score reaches threshold.
func BestMatch(query string, candidates []string, threshold float64) Match {
	scores := Score(query, candidates)
	if scores == nil {
		return Match{Index: -1}
	}

	best := Match{Index: -1, Score: -1}
	for i, s := range scores {
		if s > best.Score {
			best = Match{Text: candidates[i], Index: i, Score: s}
		}
	}
	if best.Score >= threshold {
		best.Found = true
		return best
	}
	return Match{Index: -1, Score: best.Score}
}

// TopK returns at most k candidates scoring at least threshold, highest
// first; equal scores keep candidate order.
func TopK(query string, candidates []string, threshold float64, k int) []Scored {
	if k <= 0 {
		return nil
	}
	scores := Score(query, candidates)

	var res []Scored
	for i, s := range scores {
		if s >= threshold {
			res = append(res, Scored{Text: candidates[i], Index: i, Score: s})
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].Score > res[j].Score
	})
	if len(res) > k {
		res = res[:k]
	}
	return res
}

func Texts(scored []Scored) []string {
	texts := make([]string, len(scored))
	for i, s := range scored {
		texts[i] = s.Text
	}
	return texts
}

// buildIDF returns the vocabulary in first-seen order and ln(N/(1+df)) per term.
func buildIDF(docs [][]string) (map[string]int, []float64) {
	vocab := map[string]int{}
	var df []float64
	for _, doc := range docs {
		seen := map[string]struct{}{}
		for _, term := range doc {
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}

			idx, ok := vocab[term]
			if !ok {
				idx = len(df)
				vocab[term] = idx
				df = append(df, 0)
			}
			df[idx]++
		}
	}

	n := float64(len(docs))
	idf := make([]float64, len(df))
	for i, f := range df {
		idf[i] = math.Log(n / (1 + f))
	}
	return vocab, idf
}

func vectorize(tokens []string, vocab map[string]int, idf []float64) []float64 {
	vec := make([]float64, len(idf))
	if len(tokens) == 0 {
		return vec
	}

	counts := map[int]float64{}
	for _, t := range tokens {
		if idx, ok := vocab[t]; ok {
			counts[idx]++
		}
	}
	total := float64(len(tokens))
	for idx, c := range counts {
		vec[idx] = c / total * idf[idx]
	}
	return vec
}

func cosine(a, b []float64) float64 {
	magA, magB := floats.Norm(a, 2), floats.Norm(b, 2)
	if magA == 0 || magB == 0 {
		return 0
	}
	s := floats.Dot(a, b) / (magA * magB)
	return math.Min(1, math.Max(0, s))
}
