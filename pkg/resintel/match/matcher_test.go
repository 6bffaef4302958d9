package match

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/resintel/pkg/resintel/internalerr"
)

func TestMatchDatabasesScenario(t *testing.T) {
	docs := []string{
		"Efficient Transaction Processing for in-memory stores",
		"Deep learning for image segmentation",
		"Protein folding with language models",
		"A survey of graph neural networks",
		"Compilers and static analysis",
		"Quantum error correction codes",
	}
	m := New(Config{}, []Entry{{Field: "Databases", Keywords: []string{"transaction"}}}, nil, nil)

	results, err := m.Match(context.Background(), docs)
	require.NoError(t, err)
	require.Len(t, results, len(docs))

	assert.Equal(t, "Databases", results[0].Field)
	assert.Equal(t, 100.0, results[0].Score)
	assert.True(t, results[0].MetThreshold)
	for i, r := range results {
		assert.Equal(t, i, r.Doc)
	}
}

func TestBestPrefersThresholdField(t *testing.T) {
	m := New(Config{Threshold: Threshold(80)}, []Entry{
		{Field: "Networks", Keywords: []string{"routing protocol"}},
		{Field: "Security", Keywords: []string{"encryption"}},
	}, nil, nil)

	r := m.Best("Lightweight ENCRYPTION for sensor nodes")
	assert.Equal(t, "Security", r.Field)
	assert.True(t, r.MetThreshold)

	below := m.Best("zzzz")
	assert.False(t, below.MetThreshold)
	assert.Empty(t, below.Field)
	assert.False(t, below.Matched())
}

func TestBestFallsBackToGlobalMaximum(t *testing.T) {
	m := New(Config{Threshold: Threshold(99)}, []Entry{
		{Field: "A", Keywords: []string{"xyzw"}},
		{Field: "B", Keywords: []string{"kernel"}},
	}, nil, nil)
	r := m.Best("the kernal scheduler")
	assert.Equal(t, "B", r.Field)
	assert.False(t, r.MetThreshold)
	assert.Less(t, r.Score, 99.0)
}

func TestZeroThresholdAcceptsAnyScore(t *testing.T) {
	taxonomy := []Entry{{Field: "Operating Systems", Keywords: []string{"kernel"}}}

	r := New(Config{}, taxonomy, nil, nil).Best("the kornal scheduler")
	assert.False(t, r.MetThreshold, "the default threshold is 80")

	r = New(Config{Threshold: Threshold(0)}, taxonomy, nil, nil).Best("the kornal scheduler")
	assert.Equal(t, "Operating Systems", r.Field)
	assert.True(t, r.MetThreshold)
}

func TestBestEarliestKeywordWinsTies(t *testing.T) {
	m := New(Config{}, []Entry{
		{Field: "First", Keywords: []string{"graph"}},
		{Field: "Second", Keywords: []string{"graph"}},
	}, nil, nil)
	assert.Equal(t, "First", m.Best("graph theory").Field)
}

func TestMatchRejectsSmallCorpus(t *testing.T) {
	m := New(Config{}, nil, nil, nil)
	_, err := m.Match(context.Background(), []string{"a", "b"})
	assert.True(t, errors.Is(err, internalerr.ErrInsufficientData))
}

func TestMatchConcurrentEqualsSequential(t *testing.T) {
	taxonomy := []Entry{
		{Field: "Databases", Keywords: []string{"query", "transaction", "index"}},
		{Field: "Machine Learning", Keywords: []string{"neural", "training"}},
		{Field: "Biology", Keywords: []string{"protein", "genome"}},
	}
	var docs []string
	for i := 0; i < 40; i++ {
		docs = append(docs, fmt.Sprintf("doc %d about %s", i, []string{"query planning", "neural training", "protein genome", "misc"}[i%4]))
	}
	seq, err := New(Config{Workers: 1}, taxonomy, nil, nil).Match(context.Background(), docs)
	require.NoError(t, err)
	par, err := New(Config{Workers: 8}, taxonomy, nil, nil).Match(context.Background(), docs)
	require.NoError(t, err)
	assert.Equal(t, seq, par)
}

func TestTopFields(t *testing.T) {
	results := []Result{
		{Field: "B"}, {Field: "A"}, {Field: "B"}, {}, {Field: "C"}, {Field: "A"}, {Field: "D"},
	}
	top := TopFields(results, 3)
	assert.Equal(t, []FieldCount{{"B", 2}, {"A", 2}, {"C", 1}}, top)
	assert.Equal(t, []string{"B", "A", "C"}, Fields(top))

	assert.Len(t, TopFields(results, 0), 4)
	assert.Empty(t, TopFields(nil, 5))
}
