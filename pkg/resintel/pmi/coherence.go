package pmi

// DefaultTopN is how many leading terms of each topic enter the coherence score.
const DefaultTopN = 15

// TopicCoherence averages NPMI over all pairs of the first topN terms of a topic.
// Terms absent from the dictionary are skipped. ok is false when fewer than two
// terms remain.
func (c *Calculator) TopicCoherence(terms []string, dict *Dictionary, topN int) (float64, bool) {
	if topN <= 0 {
		topN = DefaultTopN
	}
	if len(terms) > topN {
		terms = terms[:topN]
	}
	known := make([]string, 0, len(terms))
	for _, t := range terms {
		if dict.Contains(t) {
			known = append(known, t)
		}
	}
	if len(known) < 2 {
		return 0, false
	}

	N := dict.TotalDocs()
	var sum float64
	var pairs int
	for i := 0; i < len(known); i++ {
		for j := i + 1; j < len(known); j++ {
			a, b := known[i], known[j]
			sum += c.NPMI(dict.PairCount(a, b), dict.DocFreq(a), dict.DocFreq(b), N)
			pairs++
		}
	}
	return sum / float64(pairs), true
}

// Coherence is the mean topic coherence over topics that produced a score.
// ok is false when no topic could be scored.
func (c *Calculator) Coherence(topics [][]string, dict *Dictionary, topN int) (float64, bool) {
	var sum float64
	var n int
	for _, terms := range topics {
		v, ok := c.TopicCoherence(terms, dict, topN)
		if !ok {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
