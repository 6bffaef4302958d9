package pmi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func coherenceFixture() *Dictionary {
	return NewDictionary([][]string{
		{"query", "index", "database"},
		{"query", "index", "database"},
		{"query", "index"},
		{"neural", "network", "training"},
		{"neural", "network", "training"},
		{"neural", "network"},
	})
}

func TestTopicCoherenceRelatedBeatsUnrelated(t *testing.T) {
	calc := NewCalculator(0)
	dict := coherenceFixture()

	related, ok := calc.TopicCoherence([]string{"query", "index", "database"}, dict, 0)
	require.True(t, ok)
	mixed, ok := calc.TopicCoherence([]string{"query", "neural", "training"}, dict, 0)
	require.True(t, ok)

	assert.Greater(t, related, mixed)
	assert.InDelta(t, -1.0, mixedDisjoint(calc, dict), 1e-9)
}

func mixedDisjoint(calc *Calculator, dict *Dictionary) float64 {
	v, _ := calc.TopicCoherence([]string{"database", "training"}, dict, 0)
	return v
}

func TestTopicCoherenceSkipsUnknownTerms(t *testing.T) {
	calc := NewCalculator(0)
	dict := coherenceFixture()

	_, ok := calc.TopicCoherence([]string{"query", "quantum"}, dict, 0)
	assert.False(t, ok, "one known term leaves no pairs")

	withUnknown, ok := calc.TopicCoherence([]string{"query", "quantum", "index"}, dict, 0)
	require.True(t, ok)
	without, _ := calc.TopicCoherence([]string{"query", "index"}, dict, 0)
	assert.Equal(t, without, withUnknown)
}

func TestTopicCoherenceTruncatesToTopN(t *testing.T) {
	calc := NewCalculator(0)
	dict := coherenceFixture()

	v, ok := calc.TopicCoherence([]string{"query", "index", "neural", "network"}, dict, 2)
	require.True(t, ok)
	want, _ := calc.TopicCoherence([]string{"query", "index"}, dict, 2)
	assert.Equal(t, want, v)
}

func TestCoherenceMean(t *testing.T) {
	calc := NewCalculator(0)
	dict := coherenceFixture()

	a, _ := calc.TopicCoherence([]string{"query", "index", "database"}, dict, 0)
	b, _ := calc.TopicCoherence([]string{"neural", "network", "training"}, dict, 0)

	got, ok := calc.Coherence([][]string{
		{"query", "index", "database"},
		{"neural", "network", "training"},
		{"unknown"},
	}, dict, 0)
	require.True(t, ok)
	assert.InDelta(t, (a+b)/2, got, 1e-12)

	_, ok = calc.Coherence(nil, dict, 0)
	assert.False(t, ok)
}
