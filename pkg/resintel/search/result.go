package search

import (
	"sort"

	"github.com/cognicore/resintel/pkg/resintel/topicmodel"
)

// CandidateResult is the outcome of one granularity candidate.
// Coherence is meaningful only when Defined is true.
type CandidateResult struct {
	MinClusterSize int
	Coherence      float64
	Defined        bool
	Topics         int
	Model          *topicmodel.Model
	Err            error
}

// Selection is the best defined candidate. Found is false when no candidate
// produced a defined score.
type Selection struct {
	MinClusterSize int
	Coherence      float64
	Model          *topicmodel.Model
	Found          bool
}

// CurvePoint is one point of the coherence curve.
type CurvePoint struct {
	MinClusterSize int     `json:"min_cluster_size"`
	Coherence      float64 `json:"coherence_score"`
	Best           bool    `json:"best,omitempty"`
}

// Select scans results in order and keeps the first maximum: a later candidate
// replaces the current best only when its score is strictly greater.
func Select(results []CandidateResult) Selection {
	var sel Selection
	for _, r := range results {
		if !r.Defined {
			continue
		}
		if !sel.Found || r.Coherence > sel.Coherence {
			sel = Selection{MinClusterSize: r.MinClusterSize, Coherence: r.Coherence, Model: r.Model, Found: true}
		}
	}
	return sel
}

// Curve returns the defined candidates sorted by minimum cluster size, with the
// selected one marked.
func Curve(results []CandidateResult, sel Selection) []CurvePoint {
	var out []CurvePoint
	for _, r := range results {
		if !r.Defined {
			continue
		}
		out = append(out, CurvePoint{
			MinClusterSize: r.MinClusterSize,
			Coherence:      r.Coherence,
			Best:           sel.Found && r.MinClusterSize == sel.MinClusterSize,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MinClusterSize < out[j].MinClusterSize })
	return out
}

// Viable lists the candidates with a defined score in ascending order.
func Viable(results []CandidateResult) []int {
	var out []int
	for _, r := range results {
		if r.Defined {
			out = append(out, r.MinClusterSize)
		}
	}
	sort.Ints(out)
	return out
}
