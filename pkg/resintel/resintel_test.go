package resintel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/cognicore/resintel/pkg/resintel/embed"
	"github.com/cognicore/resintel/pkg/resintel/grouping"
	"github.com/cognicore/resintel/pkg/resintel/ingest"
	"github.com/cognicore/resintel/pkg/resintel/internalerr"
	"github.com/cognicore/resintel/pkg/resintel/match"
	"github.com/cognicore/resintel/pkg/resintel/search"
	"github.com/cognicore/resintel/pkg/resintel/topicmodel"
)

var vocabularies = [][]string{
	{"database", "query", "index", "transaction", "storage", "optimizer", "join", "schema"},
	{"neural", "network", "training", "gradient", "layer", "dropout", "activation", "tensor"},
	{"protein", "gene", "sequence", "expression", "genome", "cell", "enzyme", "mutation"},
}

func documents(perTopic int) []ingest.Document {
	var docs []ingest.Document
	for _, vocab := range vocabularies {
		for i := 0; i < perTopic; i++ {
			w := make([]string, 5)
			for k := range w {
				w[k] = vocab[(i+k*(i%3+1))%len(vocab)]
			}
			docs = append(docs, ingest.Document{
				Title:    w[0] + " " + w[1],
				Abstract: fmt.Sprintf("%s %s %s", w[2], w[3], w[4]),
			})
		}
	}
	return docs
}

func corpus(t *testing.T, id string, perTopic int) *ingest.Corpus {
	t.Helper()
	c, err := ingest.NewCorpus(id, documents(perTopic))
	require.NoError(t, err)
	return c
}

func newEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	e := embed.NewHashingEmbedder(64, nil)
	ref := corpus(t, "reference", 20)
	artifacts, err := topicmodel.FitArtifacts(context.Background(), e, ref.Texts(), 5, nil, topicmodel.CTFIDF{})
	require.NoError(t, err)

	if opts.Embedder == nil {
		opts.Embedder = e
	}
	opts.Artifacts = artifacts
	opts.Search = search.Config{Workers: 2}
	eng, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })
	return eng
}

func TestArtifactsRequiredForDiscovery(t *testing.T) {
	eng, err := New(Options{})
	require.NoError(t, err)
	require.NoError(t, eng.Register(corpus(t, "papers.csv", 3)))
	_, err = eng.Discover(context.Background(), "papers.csv")
	assert.True(t, errors.Is(err, internalerr.ErrModelUnavailable))

	// matching does not need them
	_, err = eng.Match(context.Background(), "papers.csv")
	assert.NoError(t, err)
}

func TestNewRejectsMismatchedEmbedder(t *testing.T) {
	e := embed.NewHashingEmbedder(64, nil)
	artifacts, err := topicmodel.FitArtifacts(context.Background(), e, corpus(t, "r", 10).Texts(), 3, nil, topicmodel.CTFIDF{})
	require.NoError(t, err)
	_, err = New(Options{Artifacts: artifacts, Embedder: embed.NewHashingEmbedder(32, nil)})
	assert.True(t, errors.Is(err, internalerr.ErrModelUnavailable))
}

func TestDiscoverThenRefine(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t, Options{})
	require.NoError(t, eng.Register(corpus(t, "papers.csv", 20)))

	_, err := eng.Refine(ctx, "papers.csv", 5)
	assert.True(t, errors.Is(err, internalerr.ErrNotFound), "refine before discover")

	d, err := eng.Discover(ctx, "papers.csv")
	require.NoError(t, err)
	require.True(t, d.Best.Found)
	assert.Equal(t, search.Range{Lo: 4, Hi: 18}, d.Range)
	assert.Contains(t, d.Viable, d.Best.MinClusterSize)
	assert.NotEmpty(t, d.RunID)

	res, err := eng.Refine(ctx, "papers.csv", d.Best.MinClusterSize)
	require.NoError(t, err)
	assert.Positive(t, res.TopicCount)

	runs, err := eng.History(ctx, "papers.csv", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, d.RunID, runs[0].ID)
	assert.Equal(t, d.Best.MinClusterSize, runs[0].MinClusterSize)

	refs, err := eng.Refinements(ctx, d.RunID)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, res.TopicCount, len(refs[0].Topics))
}

func TestConcurrentDiscoverShareWork(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t, Options{})
	require.NoError(t, eng.Register(corpus(t, "papers.csv", 15)))

	var wg sync.WaitGroup
	out := make([]*Discovery, 4)
	errs := make([]error, 4)
	for i := range out {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out[i], errs[i] = eng.Discover(ctx, "papers.csv")
		}()
	}
	wg.Wait()
	for i := range out {
		require.NoError(t, errs[i])
		assert.Equal(t, out[0].Curve, out[i].Curve)
	}
}

func TestReRegisterDropsAnalysis(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t, Options{})
	require.NoError(t, eng.Register(corpus(t, "papers.csv", 15)))
	_, err := eng.Discover(ctx, "papers.csv")
	require.NoError(t, err)

	require.NoError(t, eng.Register(corpus(t, "papers.csv", 16)))
	_, err = eng.Refine(ctx, "papers.csv", 5)
	assert.True(t, errors.Is(err, internalerr.ErrNotFound))
}

// gatedEmbedder blocks every Embed call until release is closed and closes
// entered on the first call.
type gatedEmbedder struct {
	embed.Embedder
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedEmbedder() *gatedEmbedder {
	return &gatedEmbedder{
		Embedder: embed.NewHashingEmbedder(64, nil),
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
	}
}

func (g *gatedEmbedder) Embed(ctx context.Context, texts []string) (*mat.Dense, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return g.Embedder.Embed(ctx, texts)
}

func discoverAsync(eng *Engine, id string) <-chan error {
	done := make(chan error, 1)
	go func() {
		_, err := eng.Discover(context.Background(), id)
		done <- err
	}()
	return done
}

func TestRemoveDuringDiscover(t *testing.T) {
	ctx := context.Background()
	gate := newGatedEmbedder()
	eng := newEngine(t, Options{Embedder: gate})
	require.NoError(t, eng.Register(corpus(t, "papers.csv", 15)))

	done := discoverAsync(eng, "papers.csv")
	<-gate.entered
	require.NoError(t, eng.Remove(ctx, "papers.csv"))
	close(gate.release)

	assert.True(t, errors.Is(<-done, internalerr.ErrNotFound))
	_, err := eng.Refine(ctx, "papers.csv", 5)
	assert.True(t, errors.Is(err, internalerr.ErrNotFound))
	assert.Equal(t, 0, eng.cache.Len())
	runs, err := eng.History(ctx, "papers.csv", 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestReplaceDuringDiscover(t *testing.T) {
	ctx := context.Background()
	gate := newGatedEmbedder()
	eng := newEngine(t, Options{Embedder: gate})
	require.NoError(t, eng.Register(corpus(t, "papers.csv", 15)))

	done := discoverAsync(eng, "papers.csv")
	<-gate.entered
	replacement := corpus(t, "papers.csv", 20)
	require.NoError(t, eng.Register(replacement))
	close(gate.release)

	assert.True(t, errors.Is(<-done, internalerr.ErrNotFound))
	_, err := eng.Refine(ctx, "papers.csv", 5)
	assert.True(t, errors.Is(err, internalerr.ErrNotFound), "no analysis of the replaced documents")

	_, err = eng.Discover(ctx, "papers.csv")
	require.NoError(t, err)
	entry, err := eng.cache.Get("papers.csv")
	require.NoError(t, err)
	assert.Equal(t, replacement.Texts(), entry.Docs)
	runs, err := eng.History(ctx, "papers.csv", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, replacement.Len(), runs[0].Docs)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t, Options{})
	require.NoError(t, eng.Register(corpus(t, "papers.csv", 15)))
	_, err := eng.Discover(ctx, "papers.csv")
	require.NoError(t, err)

	require.NoError(t, eng.Remove(ctx, "papers.csv"))
	_, err = eng.Discover(ctx, "papers.csv")
	assert.True(t, errors.Is(err, internalerr.ErrNotFound))
	runs, err := eng.History(ctx, "papers.csv", 0)
	require.NoError(t, err)
	assert.Empty(t, runs)

	assert.True(t, errors.Is(eng.Remove(ctx, "papers.csv"), internalerr.ErrNotFound))
}

func TestDiscoverNeedsFiveDocuments(t *testing.T) {
	eng := newEngine(t, Options{})
	small := &ingest.Corpus{ID: "tiny.csv", Docs: documents(1)}
	require.NoError(t, eng.Register(small))
	_, err := eng.Discover(context.Background(), "tiny.csv")
	assert.True(t, errors.Is(err, internalerr.ErrInsufficientData))
}

func TestMatchAndGroup(t *testing.T) {
	ctx := context.Background()
	taxonomy := []match.Entry{
		{Field: "Databases", Keywords: []string{"transaction", "query"}},
		{Field: "Machine Learning", Keywords: []string{"neural network", "gradient"}},
		{Field: "Bioinformatics", Keywords: []string{"genome", "protein"}},
	}
	eng := newEngine(t, Options{
		Matcher: match.New(match.Config{Workers: 4}, taxonomy, nil, nil),
		Grouper: grouping.New(grouping.Config{}, nil, nil, nil),
	})
	require.NoError(t, eng.Register(corpus(t, "papers.csv", 10)))

	results, err := eng.Match(ctx, "papers.csv")
	require.NoError(t, err)
	require.Len(t, results, 30)

	g, err := eng.Group(ctx, "papers.csv", 2)
	require.NoError(t, err)
	assert.Equal(t, grouping.SourceFallback, g.Source)
	require.NotEmpty(t, g.TopFields)
	var grouped []string
	for _, grp := range g.Groups {
		grouped = append(grouped, grp.Fields...)
	}
	assert.Equal(t, match.Fields(g.TopFields), grouped)

	_, err = eng.Match(ctx, "missing.csv")
	assert.True(t, errors.Is(err, internalerr.ErrNotFound))
}
