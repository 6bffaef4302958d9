// Package topicmodel clusters document embeddings into topics and describes each
// topic by its highest weighted terms.
package topicmodel

import (
	"context"

	"gonum.org/v1/gonum/mat"
)

// OutlierTopic is the id of the topic holding unclustered documents.
const OutlierTopic = -1

// Topic is one discovered topic.
type Topic struct {
	ID      int
	Terms   []string
	Weights []float64
	Count   int
	Label   string
}

// Reducer projects embeddings into the space the clusterer works in.
type Reducer interface {
	Transform(X *mat.Dense) (*mat.Dense, error)
}

// Clusterer assigns a cluster id or Noise to each row.
type Clusterer interface {
	Fit(ctx context.Context, X *mat.Dense) ([]int, error)
}

// SoftClusterer additionally reports per-cluster membership probabilities.
type SoftClusterer interface {
	Clusterer
	Membership(X *mat.Dense, labels []int) *mat.Dense
}

// Vectorizer turns a document into the terms that are counted.
type Vectorizer interface {
	Analyze(text string) []string
	// MinDF is the minimum number of topics a term must occur in to be kept.
	MinDF() int
}

// Weighting turns per-topic term counts into term weights.
type Weighting interface {
	Fit(classCounts *mat.Dense) *TermWeights
}

// TermScore is a term and its weight within a topic.
type TermScore struct {
	Term  string
	Score float64
}

// Representation re-ranks candidate terms of each topic.
// centroids holds the mean raw embedding of each topic's documents.
type Representation interface {
	Represent(ctx context.Context, candidates map[int][]TermScore, centroids map[int][]float64) (map[int][]TermScore, error)
}
