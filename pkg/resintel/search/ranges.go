package search

// Range is a half-open interval [Lo, Hi) of minimum cluster sizes.
type Range struct {
	Lo, Hi int
}

type tier struct {
	below int
	r     Range
}

var tiers = []tier{
	{500, Range{4, 18}},
	{1000, Range{8, 25}},
	{1500, Range{12, 30}},
	{2500, Range{15, 35}},
	{3500, Range{18, 42}},
	{4500, Range{20, 45}},
	{5500, Range{21, 50}},
	{6500, Range{23, 50}},
	{7500, Range{25, 55}},
	{8500, Range{30, 60}},
	{10000, Range{35, 65}},
}

// CandidateRange picks the minimum cluster sizes to sweep for a corpus of nDocs.
// Larger corpora get coarser granularities.
func CandidateRange(nDocs int) Range {
	for _, t := range tiers {
		if nDocs < t.below {
			return t.r
		}
	}
	return Range{50, 85}
}

// Values lists the range in ascending order.
func (r Range) Values() []int {
	if r.Hi <= r.Lo {
		return nil
	}
	out := make([]int, 0, r.Hi-r.Lo)
	for v := r.Lo; v < r.Hi; v++ {
		out = append(out, v)
	}
	return out
}
