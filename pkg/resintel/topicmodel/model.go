package topicmodel

import (
	"context"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/cognicore/resintel/pkg/resintel/internalerr"
)

// Config wires the stages of a topic model. Representation is optional.
type Config struct {
	Reducer        Reducer
	Clusterer      Clusterer
	Vectorizer     Vectorizer
	Weighting      Weighting
	Representation Representation
	TopNWords      int
}

// Model is a topic model fitted on one corpus.
//
// Topic ids are ordered by size: the largest cluster is topic 0.
// OutlierTopic keeps its id.
type Model struct {
	cfg Config

	docs       []string
	terms      [][]string
	embeddings *mat.Dense
	reduced    *mat.Dense

	assignments []int
	membership  *mat.Dense

	vocab     []string
	docCounts []map[int]float64
	weights   *TermWeights
	rowOf     map[int]int
	topics    map[int]*Topic
}

// New validates cfg. A missing stage is ErrModelUnavailable.
func New(cfg Config) (*Model, error) {
	switch {
	case cfg.Reducer == nil:
		return nil, fmt.Errorf("%w: no reducer", internalerr.ErrModelUnavailable)
	case cfg.Clusterer == nil:
		return nil, fmt.Errorf("%w: no clusterer", internalerr.ErrModelUnavailable)
	case cfg.Vectorizer == nil:
		return nil, fmt.Errorf("%w: no vectorizer", internalerr.ErrModelUnavailable)
	case cfg.Weighting == nil:
		return nil, fmt.Errorf("%w: no term weighting", internalerr.ErrModelUnavailable)
	}
	if cfg.TopNWords <= 0 {
		cfg.TopNWords = DefaultTopNWords
	}
	return &Model{cfg: cfg}, nil
}

// Analyze runs the vectorizer over every document.
func Analyze(v Vectorizer, docs []string) [][]string {
	out := make([][]string, len(docs))
	for i, d := range docs {
		out[i] = v.Analyze(d)
	}
	return out
}

// Fit reduces and clusters the embeddings, then describes every topic.
func (m *Model) Fit(ctx context.Context, docs []string, embeddings *mat.Dense) error {
	return m.FitAnalyzed(ctx, docs, Analyze(m.cfg.Vectorizer, docs), embeddings)
}

// FitAnalyzed is Fit with the vectorizer output supplied by the caller, so that
// many models of the same corpus can share it. terms must not be modified afterwards.
func (m *Model) FitAnalyzed(ctx context.Context, docs []string, terms [][]string, embeddings *mat.Dense) error {
	n, _ := embeddings.Dims()
	if n != len(docs) || len(terms) != len(docs) {
		return fmt.Errorf("%w: %d documents, %d term lists, %d embeddings",
			internalerr.ErrInvalidInput, len(docs), len(terms), n)
	}

	reduced, err := m.cfg.Reducer.Transform(embeddings)
	if err != nil {
		return err
	}
	labels, err := m.cfg.Clusterer.Fit(ctx, reduced)
	if err != nil {
		return err
	}

	m.docs = docs
	m.terms = terms
	m.embeddings = embeddings
	m.reduced = reduced

	assignments := sortBySize(labels)
	if soft, ok := m.cfg.Clusterer.(SoftClusterer); ok {
		m.membership = soft.Membership(reduced, assignments)
	}
	return m.UpdateTopics(ctx, assignments)
}

// sortBySize renumbers clusters so that larger clusters get smaller ids.
// Equal sizes keep their relative order.
func sortBySize(labels []int) []int {
	size := make(map[int]int)
	for _, l := range labels {
		if l != Noise {
			size[l]++
		}
	}
	ids := make([]int, 0, len(size))
	for id := range size {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	sort.SliceStable(ids, func(i, j int) bool { return size[ids[i]] > size[ids[j]] })

	remap := make(map[int]int, len(ids))
	for newID, old := range ids {
		remap[old] = newID
	}
	out := make([]int, len(labels))
	for i, l := range labels {
		if l == Noise {
			out[i] = OutlierTopic
			continue
		}
		out[i] = remap[l]
	}
	return out
}

// UpdateTopics recomputes term weights and representations for new assignments.
// Topic ids are kept as given.
func (m *Model) UpdateTopics(ctx context.Context, assignments []int) error {
	if len(assignments) != len(m.docs) {
		return fmt.Errorf("%w: %d assignments for %d documents", internalerr.ErrInvalidInput, len(assignments), len(m.docs))
	}

	ids := uniqueSorted(assignments)
	rowOf := make(map[int]int, len(ids))
	for i, id := range ids {
		rowOf[id] = i
	}

	perTopic := make([]map[string]float64, len(ids))
	for i := range perTopic {
		perTopic[i] = make(map[string]float64)
	}
	for d, id := range assignments {
		for _, t := range m.terms[d] {
			perTopic[rowOf[id]][t]++
		}
	}

	minDF := m.cfg.Vectorizer.MinDF()
	df := make(map[string]int)
	for _, counts := range perTopic {
		for t := range counts {
			df[t]++
		}
	}
	vocab := make([]string, 0, len(df))
	for t, n := range df {
		if n >= minDF {
			vocab = append(vocab, t)
		}
	}
	if len(vocab) == 0 {
		return fmt.Errorf("%w: no terms left after vectorizing", internalerr.ErrInsufficientData)
	}
	sort.Strings(vocab)
	vocabIdx := make(map[string]int, len(vocab))
	for i, t := range vocab {
		vocabIdx[t] = i
	}

	classCounts := mat.NewDense(len(ids), len(vocab), nil)
	for r, counts := range perTopic {
		row := classCounts.RawRowView(r)
		for t, n := range counts {
			if j, ok := vocabIdx[t]; ok {
				row[j] = n
			}
		}
	}
	docCounts := make([]map[int]float64, len(m.docs))
	for d, terms := range m.terms {
		counts := make(map[int]float64)
		for _, t := range terms {
			if j, ok := vocabIdx[t]; ok {
				counts[j]++
			}
		}
		docCounts[d] = counts
	}

	weights := m.cfg.Weighting.Fit(classCounts)

	nCandidates := m.cfg.TopNWords
	if cc, ok := m.cfg.Representation.(interface{ CandidateCount() int }); ok && cc.CandidateCount() > nCandidates {
		nCandidates = cc.CandidateCount()
	}
	candidates := make(map[int][]TermScore, len(ids))
	for _, id := range ids {
		candidates[id] = topTerms(weights.Row(rowOf[id]), vocab, nCandidates)
	}

	described := candidates
	if m.cfg.Representation != nil {
		var err error
		described, err = m.cfg.Representation.Represent(ctx, candidates, centroids(m.embeddings, assignments))
		if err != nil {
			return err
		}
	}

	topics := make(map[int]*Topic, len(ids))
	for _, id := range ids {
		terms := truncate(described[id], m.cfg.TopNWords)
		t := &Topic{ID: id}
		for _, ts := range terms {
			t.Terms = append(t.Terms, ts.Term)
			t.Weights = append(t.Weights, ts.Score)
		}
		if old, ok := m.topics[id]; ok {
			t.Label = old.Label
		}
		topics[id] = t
	}
	for _, id := range assignments {
		topics[id].Count++
	}

	m.assignments = append([]int(nil), assignments...)
	m.vocab = vocab
	m.docCounts = docCounts
	m.weights = weights
	m.rowOf = rowOf
	m.topics = topics
	return nil
}

// topTerms returns up to n terms with a positive weight, heaviest first.
// Ties keep vocabulary order.
func topTerms(row []float64, vocab []string, n int) []TermScore {
	idx := make([]int, 0, len(row))
	for j, w := range row {
		if w > 0 {
			idx = append(idx, j)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool { return row[idx[a]] > row[idx[b]] })
	if len(idx) > n {
		idx = idx[:n]
	}
	out := make([]TermScore, len(idx))
	for i, j := range idx {
		out[i] = TermScore{Term: vocab[j], Score: row[j]}
	}
	return out
}

func centroids(X *mat.Dense, assignments []int) map[int][]float64 {
	_, d := X.Dims()
	sums := make(map[int][]float64)
	counts := make(map[int]int)
	for i, id := range assignments {
		if sums[id] == nil {
			sums[id] = make([]float64, d)
		}
		floats.Add(sums[id], X.RawRowView(i))
		counts[id]++
	}
	for id, s := range sums {
		floats.Scale(1/float64(counts[id]), s)
	}
	return sums
}

func uniqueSorted(xs []int) []int {
	seen := make(map[int]struct{})
	var out []int
	for _, x := range xs {
		if _, ok := seen[x]; !ok {
			seen[x] = struct{}{}
			out = append(out, x)
		}
	}
	sort.Ints(out)
	return out
}

// Topics returns every topic ordered by id, the outlier topic first when present.
func (m *Model) Topics() []Topic {
	ids := make([]int, 0, len(m.topics))
	for id := range m.topics {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]Topic, len(ids))
	for i, id := range ids {
		t := *m.topics[id]
		t.Terms = append([]string(nil), t.Terms...)
		t.Weights = append([]float64(nil), t.Weights...)
		out[i] = t
	}
	return out
}

// TopicTerms returns the representative terms of topic id.
func (m *Model) TopicTerms(id int) ([]string, bool) {
	t, ok := m.topics[id]
	if !ok {
		return nil, false
	}
	return append([]string(nil), t.Terms...), true
}

// SetLabel names topic id.
func (m *Model) SetLabel(id int, label string) error {
	t, ok := m.topics[id]
	if !ok {
		return fmt.Errorf("%w: topic %d", internalerr.ErrNotFound, id)
	}
	t.Label = label
	return nil
}

// Assignments returns the topic id of every document.
func (m *Model) Assignments() []int {
	return append([]int(nil), m.assignments...)
}

// Membership returns the soft cluster membership matrix, or nil when the clusterer
// does not provide one.
func (m *Model) Membership() *mat.Dense {
	return m.membership
}

// Docs returns the number of fitted documents.
func (m *Model) Docs() int {
	return len(m.docs)
}
