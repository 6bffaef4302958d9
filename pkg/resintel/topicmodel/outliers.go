package topicmodel

import (
	"math"
	"sort"
)

// ReduceOutliers proposes a topic for every outlier document.
//
// Each outlier's c-TF-IDF weighted terms are compared by cosine similarity with
// every topic's weights, and the document moves to the most similar topic when
// that similarity exceeds threshold. Documents that share no weighted term with
// any topic fall back to the most probable cluster of the soft membership matrix.
// The model itself is unchanged; pass the result to UpdateTopics.
func (m *Model) ReduceOutliers(threshold float64) []int {
	out := m.Assignments()
	if m.weights == nil {
		return out
	}

	ids := make([]int, 0, len(m.rowOf))
	for id := range m.rowOf {
		if id != OutlierTopic {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return out
	}
	sort.Ints(ids)

	norms := make(map[int]float64, len(ids))
	for _, id := range ids {
		var s float64
		for _, w := range m.weights.Row(m.rowOf[id]) {
			s += w * w
		}
		norms[id] = math.Sqrt(s)
	}

	for d, id := range out {
		if id != OutlierTopic {
			continue
		}
		doc := m.weights.Doc(m.docCounts[d])
		var docNorm float64
		for _, w := range doc {
			docNorm += w * w
		}
		docNorm = math.Sqrt(docNorm)

		best, bestSim := OutlierTopic, threshold
		if docNorm > 0 {
			for _, tid := range ids {
				if norms[tid] == 0 {
					continue
				}
				row := m.weights.Row(m.rowOf[tid])
				var dot float64
				for j, w := range doc {
					dot += w * row[j]
				}
				if sim := dot / (docNorm * norms[tid]); sim > bestSim {
					best, bestSim = tid, sim
				}
			}
		}
		if best == OutlierTopic {
			best = m.mostProbable(d)
		}
		out[d] = best
	}
	return out
}

func (m *Model) mostProbable(doc int) int {
	if m.membership == nil {
		return OutlierTopic
	}
	best, bestP := OutlierTopic, 0.0
	for c, p := range m.membership.RawRowView(doc) {
		if _, ok := m.topics[c]; !ok {
			continue
		}
		if p > bestP {
			best, bestP = c, p
		}
	}
	return best
}
