package embed

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/cognicore/resintel/pkg/resintel/internalerr"
)

type roundTrip func(*http.Request) (*http.Response, error)

func (f roundTrip) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func TestHTTPEmbedderBatches(t *testing.T) {
	var calls int
	e := NewHTTPEmbedder(Config{BaseURL: "https://emb.local/v1/", APIKey: "k", BatchSize: 2})
	e.HTTPClient = &http.Client{Transport: roundTrip(func(r *http.Request) (*http.Response, error) {
		calls++
		assert.Equal(t, "https://emb.local/v1/embeddings", r.URL.String())
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultModel, req.Model)

		// answer in reverse order; rows must be placed by index
		type item struct {
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		}
		var items []item
		for i := len(req.Input) - 1; i >= 0; i-- {
			items = append(items, item{Index: i, Embedding: []float64{float64(len(req.Input[i])), 1}})
		}
		body, _ := json.Marshal(map[string]any{"data": items})
		return jsonResponse(http.StatusOK, string(body)), nil
	})}

	m, err := e.Embed(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	r, c := m.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, []float64{1, 2, 3}, []float64{m.At(0, 0), m.At(1, 0), m.At(2, 0)})
	assert.Equal(t, 2, e.Dimension())
}

func TestHTTPEmbedderConcurrentCalls(t *testing.T) {
	e := NewHTTPEmbedder(Config{BaseURL: "https://emb.local/v1"})
	e.HTTPClient = &http.Client{Transport: roundTrip(func(r *http.Request) (*http.Response, error) {
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, err
		}
		var data []map[string]any
		for i := range req.Input {
			data = append(data, map[string]any{"index": i, "embedding": []float64{1, 2, 3}})
		}
		body, _ := json.Marshal(map[string]any{"data": data})
		return jsonResponse(http.StatusOK, string(body)), nil
	})}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Embed(context.Background(), []string{"graph", "query"})
			assert.NoError(t, err)
			_ = e.Dimension()
		}()
	}
	wg.Wait()
	assert.Equal(t, 3, e.Dimension())
}

func TestHTTPEmbedderFailure(t *testing.T) {
	e := NewHTTPEmbedder(Config{})
	e.HTTPClient = &http.Client{Transport: roundTrip(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusServiceUnavailable, "down"), nil
	})}

	_, err := e.Embed(context.Background(), []string{"x"})
	assert.True(t, errors.Is(err, internalerr.ErrModelUnavailable))

	_, err = e.Embed(context.Background(), nil)
	assert.True(t, errors.Is(err, internalerr.ErrInvalidInput))
}

func TestHashingEmbedderDeterministic(t *testing.T) {
	h := NewHashingEmbedder(64, nil)
	texts := []string{"graph database query", "graph database query", "neural network training", "the of"}

	m, err := h.Embed(context.Background(), texts)
	require.NoError(t, err)

	assert.Equal(t, m.RawRowView(0), m.RawRowView(1))
	assert.InDelta(t, 1.0, floats.Norm(m.RawRowView(0), 2), 1e-9)
	assert.Equal(t, 0.0, floats.Norm(m.RawRowView(3), 2), "stopword-only text embeds to zero")
	assert.NotEqual(t, m.RawRowView(0), m.RawRowView(2))
}

func TestNew(t *testing.T) {
	e, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, "hashing", e.Name())
	assert.Equal(t, DefaultHashingDimension, e.Dimension())

	_, err = New(Config{Provider: "openai"})
	assert.True(t, errors.Is(err, internalerr.ErrInvalidConfig))

	_, err = New(Config{Provider: "word2vec"})
	assert.True(t, errors.Is(err, internalerr.ErrInvalidConfig))
}
