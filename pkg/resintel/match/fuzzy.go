package match

import "math/bits"

// pattern is a precompiled needle for repeated partial ratio scoring.
type pattern struct {
	runes []rune
	// masks holds one bit per needle position for every rune, used when
	// the needle fits a machine word.
	masks map[rune]uint64
}

func compile(s string) *pattern {
	p := &pattern{runes: []rune(s)}
	if len(p.runes) <= 64 {
		p.masks = make(map[rune]uint64, len(p.runes))
		for i, r := range p.runes {
			p.masks[r] |= 1 << uint(i)
		}
	}
	return p
}

// PartialRatio scores how well the shorter of a and b matches its best
// aligned window in the longer one, from 0 to 100. Windows are the
// Indel-normalized similarity 200*LCS/(len1+len2); windows hanging over
// either end of the longer string are considered too.
func PartialRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	switch {
	case len(ra) == 0 && len(rb) == 0:
		return 100
	case len(ra) == 0 || len(rb) == 0:
		return 0
	}
	if len(ra) > len(rb) {
		a, b, ra, rb = b, a, rb, ra
	}
	score := compile(a).partialRatio(rb)
	if len(ra) == len(rb) && score < 100 {
		if alt := compile(b).partialRatio(ra); alt > score {
			score = alt
		}
	}
	return score
}

// partialRatio assumes the needle is not longer than text.
func (p *pattern) partialRatio(text []rune) float64 {
	m, n := len(p.runes), len(text)
	best := 0.0
	try := func(window []rune) bool {
		if s := ratio(p.lcs(window), m, len(window)); s > best {
			best = s
		}
		return best >= 100
	}
	for i := 0; i+m <= n; i++ {
		if try(text[i : i+m]) {
			return 100
		}
	}
	for i := 1; i < m; i++ {
		if try(text[:i]) || try(text[n-i:]) {
			return 100
		}
	}
	return best
}

func ratio(lcs, len1, len2 int) float64 {
	if len1+len2 == 0 {
		return 100
	}
	return 200 * float64(lcs) / float64(len1+len2)
}

// lcs returns the length of the longest common subsequence of the needle and s.
func (p *pattern) lcs(s []rune) int {
	if p.masks != nil {
		return p.lcsBits(s)
	}
	return lcsTable(p.runes, s)
}

// lcsBits is the bit-parallel LCS length of Hyyrö for needles of at most 64 runes.
func (p *pattern) lcsBits(s []rune) int {
	m := len(p.runes)
	mask := ^uint64(0)
	if m < 64 {
		mask = (1 << uint(m)) - 1
	}
	v := ^uint64(0)
	for _, r := range s {
		u := v & p.masks[r]
		v = (v + u) | (v - u)
	}
	return bits.OnesCount64(^v & mask)
}

func lcsTable(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
