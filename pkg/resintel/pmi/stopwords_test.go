package pmi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stopwordFixture() *Dictionary {
	return NewDictionary([][]string{
		{"study", "database", "query"},
		{"study", "database", "query"},
		{"study", "database", "index"},
		{"study", "neural", "network"},
		{"study", "neural", "network"},
		{"study", "neural", "gradient"},
		{"study", "paper", "protein"},
		{"paper", "protein", "gene"},
		{"study", "gene", "protein"},
		{"study", "gene", "cell"},
	})
}

func TestSuggestStopwords(t *testing.T) {
	calc := NewCalculator(0)
	got := calc.SuggestStopwords(stopwordFixture(), DefaultStopwordThresholds(), nil)

	require.Len(t, got, 1)
	assert.Equal(t, "study", got[0].Token)
	assert.InDelta(t, 90, got[0].DFPercent, 1e-9)
	assert.Less(t, got[0].NPMIMax, 0.15)
	assert.Greater(t, got[0].Score, 0.5)
}

func TestSuggestStopwordsSkipsKnown(t *testing.T) {
	calc := NewCalculator(0)
	got := calc.SuggestStopwords(stopwordFixture(), StopwordThresholds{}, func(tok string) bool { return tok == "study" })
	assert.Empty(t, got)
}

func TestSuggestStopwordsLowerThreshold(t *testing.T) {
	calc := NewCalculator(0)
	// database co-occurs with query, so a strict NPMI bound keeps it
	got := calc.SuggestStopwords(stopwordFixture(), StopwordThresholds{DFPercent: 25, NPMIMax: 0.15}, nil)
	var tokens []string
	for _, c := range got {
		tokens = append(tokens, c.Token)
	}
	assert.Contains(t, tokens, "study")
	assert.NotContains(t, tokens, "database")

	assert.Nil(t, calc.SuggestStopwords(NewDictionary(nil), DefaultStopwordThresholds(), nil))
}
