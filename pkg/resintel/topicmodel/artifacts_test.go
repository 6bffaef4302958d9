package topicmodel

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/cognicore/resintel/pkg/resintel/embed"
	"github.com/cognicore/resintel/pkg/resintel/internalerr"
)

func TestFitPCAFindsMainAxis(t *testing.T) {
	X := mat.NewDense(5, 2, []float64{0, 0, 1, 2, 2, 4, 3, 6, 4, 8})
	p, err := FitPCA(X, 1)
	require.NoError(t, err)

	in, out := p.Dims()
	assert.Equal(t, 2, in)
	assert.Equal(t, 1, out)
	assert.InDelta(t, 2.0, p.Mean[0], 1e-12)
	assert.InDelta(t, 4.0, p.Mean[1], 1e-12)
	assert.InDelta(t, 1/math.Sqrt(5), math.Abs(p.Components[0][0]), 1e-9)
	assert.InDelta(t, 2/math.Sqrt(5), math.Abs(p.Components[1][0]), 1e-9)

	Y, err := p.Transform(X)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, Y.At(2, 0), 1e-9, "the mean projects to the origin")
	assert.InDelta(t, math.Sqrt(20), math.Abs(Y.At(0, 0)), 1e-9)

	_, err = FitPCA(X, 3)
	assert.True(t, errors.Is(err, internalerr.ErrInvalidInput))
}

func TestArtifactsRoundTrip(t *testing.T) {
	texts := []string{
		"graph database query processing",
		"neural network training",
		"protein folding prediction",
		"index selection for databases",
		"transformer language models",
		"gene expression analysis",
	}
	e := embed.NewHashingEmbedder(32, nil)
	a, err := FitArtifacts(context.Background(), e, texts, 3, nil, CTFIDF{ReduceFrequentWords: true})
	require.NoError(t, err)
	assert.Equal(t, "hashing", a.Embedding.Name)
	assert.Equal(t, 32, a.Embedding.Dimension)

	dir := t.TempDir()
	var buf bytes.Buffer
	require.NoError(t, a.Write(&buf))
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultArtifactName), buf.Bytes(), 0o644))

	loaded, err := LoadArtifacts(context.Background(), FileSource{Dir: dir}, "")
	require.NoError(t, err)
	assert.True(t, loaded.Weighting.ReduceFrequentWords)
	in, out := loaded.Reducer.Dims()
	assert.Equal(t, 32, in)
	assert.Equal(t, 3, out)

	m, err := loaded.NewModel(NewHDBSCAN(2), nil)
	require.NoError(t, err)
	X, err := e.Embed(context.Background(), texts)
	require.NoError(t, err)
	require.NoError(t, m.Fit(context.Background(), texts, X))
}

func TestArtifactsMissingParts(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "no reducer", yaml: "vectorizer: {}\nctfidf: {}\n"},
		{name: "no vectorizer", yaml: "reducer:\n  mean: [0]\n  components: [[1]]\nctfidf: {}\n"},
		{name: "no weighting", yaml: "reducer:\n  mean: [0]\n  components: [[1]]\nvectorizer: {}\n"},
		{name: "mean mismatch", yaml: "reducer:\n  mean: [0, 0]\n  components: [[1]]\nvectorizer: {}\nctfidf: {}\n"},
		{name: "garbage", yaml: "reducer: [1, 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseArtifacts(strings.NewReader(tt.yaml))
			assert.True(t, errors.Is(err, internalerr.ErrModelUnavailable), "got %v", err)
		})
	}

	_, err := LoadArtifacts(context.Background(), FileSource{Dir: t.TempDir()}, "absent.yaml")
	assert.True(t, errors.Is(err, internalerr.ErrModelUnavailable))
}
