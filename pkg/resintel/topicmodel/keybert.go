package topicmodel

import (
	"context"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/cognicore/resintel/pkg/resintel/embed"
	"github.com/cognicore/resintel/pkg/resintel/internalerr"
)

const (
	DefaultTopNWords      = 10
	DefaultCandidateWords = 30
)

// KeyBERTInspired re-ranks each topic's c-TF-IDF candidates by the cosine
// similarity between the term embedding and the topic centroid.
type KeyBERTInspired struct {
	Embedder   embed.Embedder
	TopN       int
	Candidates int
}

// NewKeyBERTInspired uses the default candidate and output sizes.
func NewKeyBERTInspired(e embed.Embedder) *KeyBERTInspired {
	return &KeyBERTInspired{Embedder: e, TopN: DefaultTopNWords, Candidates: DefaultCandidateWords}
}

// CandidateCount is how many c-TF-IDF terms the model should pass in.
func (k *KeyBERTInspired) CandidateCount() int {
	if k.Candidates <= 0 {
		return DefaultCandidateWords
	}
	return k.Candidates
}

func (k *KeyBERTInspired) Represent(ctx context.Context, candidates map[int][]TermScore, centroids map[int][]float64) (map[int][]TermScore, error) {
	topN := k.TopN
	if topN <= 0 {
		topN = DefaultTopNWords
	}

	index := make(map[string]int)
	var words []string
	for _, terms := range candidates {
		for _, ts := range terms {
			if _, ok := index[ts.Term]; !ok {
				index[ts.Term] = 0
				words = append(words, ts.Term)
			}
		}
	}
	if len(words) == 0 {
		return candidates, nil
	}
	sort.Strings(words)
	for i, w := range words {
		index[w] = i
	}

	vecs, err := k.Embedder.Embed(ctx, words)
	if err != nil {
		return nil, fmt.Errorf("%w: embed candidate terms: %v", internalerr.ErrModelUnavailable, err)
	}

	out := make(map[int][]TermScore, len(candidates))
	for id, terms := range candidates {
		centroid, ok := centroids[id]
		if !ok || len(terms) == 0 {
			out[id] = truncate(terms, topN)
			continue
		}
		ranked := make([]TermScore, len(terms))
		for i, ts := range terms {
			ranked[i] = TermScore{Term: ts.Term, Score: cosine(vecs.RawRowView(index[ts.Term]), centroid)}
		}
		sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].Score > ranked[b].Score })
		out[id] = truncate(ranked, topN)
	}
	return out, nil
}

func truncate(terms []TermScore, n int) []TermScore {
	if len(terms) > n {
		return terms[:n]
	}
	return terms
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}
