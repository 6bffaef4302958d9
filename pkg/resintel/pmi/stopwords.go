package pmi

import (
	"math"
	"sort"
)

// StopwordThresholds decide which tokens are too common and too unspecific to
// describe a topic.
type StopwordThresholds struct {
	// DFPercent is the document frequency, in percent, a token must exceed.
	DFPercent float64
	// NPMIMax is the bound its strongest association with any other token must stay under.
	NPMIMax float64
}

// DefaultStopwordThresholds flags tokens in more than 60% of documents whose
// best NPMI partner stays under 0.15.
func DefaultStopwordThresholds() StopwordThresholds {
	return StopwordThresholds{DFPercent: 60, NPMIMax: 0.15}
}

// StopwordCandidate is a token suggested for the stoplist.
type StopwordCandidate struct {
	Token     string  `json:"token" yaml:"token"`
	DFPercent float64 `json:"df_percent" yaml:"df_percent"`
	NPMIMax   float64 `json:"npmi_max" yaml:"npmi_max"`
	Score     float64 `json:"score" yaml:"score"`
}

// SuggestStopwords returns tokens of dict that appear in most documents yet
// associate with no other token, highest score first. Tokens for which skip
// reports true are left out; skip may be nil.
func (c *Calculator) SuggestStopwords(dict *Dictionary, th StopwordThresholds, skip func(string) bool) []StopwordCandidate {
	n := dict.TotalDocs()
	if n == 0 {
		return nil
	}
	if th == (StopwordThresholds{}) {
		th = DefaultStopwordThresholds()
	}
	vocab := dict.Vocabulary()

	var out []StopwordCandidate
	for _, tok := range vocab {
		if skip != nil && skip(tok) {
			continue
		}
		df := dict.DocFreq(tok)
		dfPct := float64(df) / float64(n) * 100
		if dfPct <= th.DFPercent {
			continue
		}
		best := math.Inf(-1)
		for _, other := range vocab {
			if other == tok {
				continue
			}
			v := c.NPMI(dict.PairCount(tok, other), df, dict.DocFreq(other), n)
			if v > best {
				best = v
			}
		}
		// a lone token has nothing to associate with
		if math.IsInf(best, -1) {
			best = 0
		}
		if best >= th.NPMIMax {
			continue
		}
		out = append(out, StopwordCandidate{
			Token:     tok,
			DFPercent: dfPct,
			NPMIMax:   best,
			Score:     (dfPct/100 + (1 - best)) / 2,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
