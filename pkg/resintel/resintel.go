// Package resintel is the research intelligence engine: topic discovery with a
// granularity sweep and on-demand refinement, and taxonomy matching with
// field grouping. Every operation is keyed by corpus id.
package resintel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel/attribute"

	"github.com/cognicore/resintel/pkg/resintel/cache"
	"github.com/cognicore/resintel/pkg/resintel/embed"
	"github.com/cognicore/resintel/pkg/resintel/grouping"
	"github.com/cognicore/resintel/pkg/resintel/ingest"
	"github.com/cognicore/resintel/pkg/resintel/internalerr"
	"github.com/cognicore/resintel/pkg/resintel/logger"
	"github.com/cognicore/resintel/pkg/resintel/match"
	"github.com/cognicore/resintel/pkg/resintel/metrics"
	"github.com/cognicore/resintel/pkg/resintel/refine"
	"github.com/cognicore/resintel/pkg/resintel/search"
	"github.com/cognicore/resintel/pkg/resintel/store"
	"github.com/cognicore/resintel/pkg/resintel/store/memstore"
	"github.com/cognicore/resintel/pkg/resintel/topicmodel"
	"github.com/cognicore/resintel/pkg/resintel/tracer"
)

// Options configures an Engine. Discover and Refine need Artifacts; matching
// and grouping run without them.
type Options struct {
	Embedder  embed.Embedder
	Artifacts *topicmodel.Artifacts
	Tokenizer *ingest.Tokenizer
	Search    search.Config

	// Labeler names refined topics; nil leaves them unlabeled.
	Labeler refine.Labeler
	Matcher *match.Matcher
	Grouper *grouping.Engine
	// Store keeps run history; nil keeps it in memory.
	Store store.Store

	Logger  logger.Interface
	Metrics *metrics.Metrics
}

// Engine is the facade over every resintel component.
type Engine struct {
	mu      sync.RWMutex
	corpora map[string]*ingest.Corpus

	embedder  embed.Embedder
	artifacts *topicmodel.Artifacts
	tokenizer *ingest.Tokenizer

	cache   *cache.Cache
	search  *search.Engine
	refiner *refine.Refiner
	matcher *match.Matcher
	grouper *grouping.Engine
	store   store.Store

	log     logger.Interface
	metrics *metrics.Metrics
}

// New wires an engine from opts. An embedder whose width differs from the
// artifacts' reducer is ErrModelUnavailable.
func New(opts Options) (*Engine, error) {
	log := logger.OrNop(opts.Logger)
	e := &Engine{
		corpora:   make(map[string]*ingest.Corpus),
		embedder:  opts.Embedder,
		artifacts: opts.Artifacts,
		tokenizer: opts.Tokenizer,
		cache:     cache.New(opts.Metrics),
		search:    search.New(opts.Search, log, opts.Metrics),
		matcher:   opts.Matcher,
		grouper:   opts.Grouper,
		store:     opts.Store,
		log:       log,
		metrics:   opts.Metrics,
	}
	if e.tokenizer == nil {
		e.tokenizer = ingest.NewTokenizer(nil)
	}
	var in int
	if opts.Artifacts.Validate() == nil {
		in, _ = opts.Artifacts.Reducer.Dims()
	}
	if e.embedder == nil {
		e.embedder = embed.NewHashingEmbedder(in, e.tokenizer)
	}
	if d := e.embedder.Dimension(); in != 0 && d != 0 && d != in {
		return nil, fmt.Errorf("%w: embedder %s has %d dimensions, artifacts expect %d",
			internalerr.ErrModelUnavailable, e.embedder.Name(), d, in)
	}
	if e.matcher == nil {
		e.matcher = match.New(match.Config{}, nil, log, opts.Metrics)
	}
	if e.grouper == nil {
		e.grouper = grouping.New(grouping.Config{}, nil, log, opts.Metrics)
	}
	if e.store == nil {
		e.store = memstore.New()
	}
	e.refiner = refine.New(e.cache, opts.Labeler, log)
	return e, nil
}

// Close releases the run history store.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Register adds or replaces a corpus. Replacing drops its cached analysis.
func (e *Engine) Register(c *ingest.Corpus) error {
	if c == nil || c.ID == "" {
		return fmt.Errorf("%w: corpus needs an id", internalerr.ErrInvalidInput)
	}
	e.mu.Lock()
	_, replaced := e.corpora[c.ID]
	e.corpora[c.ID] = c
	if replaced {
		e.cache.Delete(c.ID)
	}
	e.mu.Unlock()
	e.log.Info("corpus registered", nil, map[string]interface{}{
		"corpus":   c.ID,
		"docs":     c.Len(),
		"replaced": replaced,
	})
	return nil
}

// Remove forgets a corpus, its cached analysis and its run history.
func (e *Engine) Remove(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.corpora[id]; !ok {
		return fmt.Errorf("%w: corpus %q", internalerr.ErrNotFound, id)
	}
	delete(e.corpora, id)
	e.cache.Delete(id)
	if err := e.store.DeleteCorpus(ctx, id); err != nil {
		return eris.Wrapf(err, "delete history of %q", id)
	}
	return nil
}

// Corpus returns a registered corpus.
func (e *Engine) Corpus(id string) (*ingest.Corpus, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.corpora[id]
	if !ok {
		return nil, fmt.Errorf("%w: corpus %q", internalerr.ErrNotFound, id)
	}
	return c, nil
}

// Best is the selected granularity. Found is false when no candidate had a defined score.
type Best struct {
	MinClusterSize int     `json:"min_cluster_size"`
	Coherence      float64 `json:"coherence_score"`
	Found          bool    `json:"found"`
}

// Discovery is what phase one reports: the coherence curve and the default choice.
type Discovery struct {
	CorpusID string              `json:"corpus_id"`
	RunID    string              `json:"run_id"`
	Range    search.Range        `json:"-"`
	Curve    []search.CurvePoint `json:"curve"`
	Best     Best                `json:"best"`
	Viable   []int               `json:"viable"`
	// Shared reports that a concurrent Discover of the same corpus did the work.
	Shared bool `json:"-"`
}

// Discover embeds the corpus, sweeps the granularity range and caches the
// analysis for Refine. Concurrent calls for one corpus share a single sweep;
// a later call recomputes and replaces the cached analysis. If the corpus is
// removed or replaced while the sweep runs, nothing is cached or recorded and
// Discover fails with ErrNotFound.
func (e *Engine) Discover(ctx context.Context, id string) (*Discovery, error) {
	e.mu.RLock()
	corpus, ok := e.corpora[id]
	gen := e.cache.Generation(id)
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: corpus %q", internalerr.ErrNotFound, id)
	}
	ctx, span := tracer.Start(ctx, "resintel.Discover", attribute.String("corpus", id))
	defer span.End()

	entry, shared, err := e.cache.Compute(ctx, id, gen, func(ctx context.Context) (*cache.Entry, error) {
		return e.analyze(ctx, corpus)
	})
	if err == nil && !shared {
		err = e.recordRun(ctx, entry, gen)
	}
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	return &Discovery{
		CorpusID: id,
		RunID:    entry.Handle,
		Range:    search.CandidateRange(len(entry.Docs)),
		Curve:    entry.Curve,
		Best: Best{
			MinClusterSize: entry.Best.MinClusterSize,
			Coherence:      entry.Best.Coherence,
			Found:          entry.Best.Found,
		},
		Viable: entry.Viable,
		Shared: shared,
	}, nil
}

func (e *Engine) analyze(ctx context.Context, corpus *ingest.Corpus) (*cache.Entry, error) {
	if corpus.Len() < internalerr.MinDocuments {
		return nil, fmt.Errorf("%w: corpus %q has %d documents, need at least %d",
			internalerr.ErrInsufficientData, corpus.ID, corpus.Len(), internalerr.MinDocuments)
	}
	if err := e.artifacts.Validate(); err != nil {
		return nil, err
	}
	docs := corpus.Texts()
	started := time.Now()
	embeddings, err := e.embedder.Embed(ctx, docs)
	if err != nil {
		return nil, eris.Wrapf(err, "embed corpus %q", corpus.ID)
	}
	e.log.Debug("corpus embedded", nil, map[string]interface{}{
		"corpus":   corpus.ID,
		"embedder": e.embedder.Name(),
		"elapsed":  time.Since(started).String(),
	})

	tokens := e.tokenizer.TokenizeAll(docs)
	out, err := e.search.Run(ctx, search.Input{
		Docs:       docs,
		Embeddings: embeddings,
		Tokens:     tokens,
		Artifacts:  e.artifacts,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "sweep corpus %q", corpus.ID)
	}

	entry := &cache.Entry{
		CorpusID:   corpus.ID,
		Handle:     cache.NewHandle(),
		Docs:       docs,
		Tokens:     tokens,
		Embeddings: embeddings,
		Embedder:   e.embedder,
		Artifacts:  e.artifacts,
		Curve:      out.Curve,
		Best:       out.Best,
		Viable:     out.Viable,
		CreatedAt:  time.Now(),
	}
	return entry, nil
}

// recordRun writes history for a run started at generation gen. A corpus
// removed or replaced since then is ErrNotFound; a failing store never fails
// discovery.
func (e *Engine) recordRun(ctx context.Context, entry *cache.Entry, gen uint64) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.cache.Generation(entry.CorpusID) != gen {
		return fmt.Errorf("%w: corpus %q was removed during discovery", internalerr.ErrNotFound, entry.CorpusID)
	}
	r := search.CandidateRange(len(entry.Docs))
	run := &store.Run{
		ID:             entry.Handle,
		CorpusID:       entry.CorpusID,
		Docs:           len(entry.Docs),
		RangeLo:        r.Lo,
		RangeHi:        r.Hi,
		Found:          entry.Best.Found,
		MinClusterSize: entry.Best.MinClusterSize,
		Coherence:      entry.Best.Coherence,
		Viable:         entry.Viable,
		CreatedAt:      entry.CreatedAt.UTC(),
	}
	for _, p := range entry.Curve {
		run.Curve = append(run.Curve, store.CurvePoint{MinClusterSize: p.MinClusterSize, Coherence: p.Coherence, Best: p.Best})
	}
	if err := e.store.SaveRun(ctx, run); err != nil {
		e.log.Warn("run history not saved", err, map[string]interface{}{"corpus": entry.CorpusID})
	}
	return nil
}

// Refine refits the cached analysis at minClusterSize and labels the topics.
// It fails with ErrNotFound until Discover has run for the corpus.
// A corpus removed or replaced during the refit is ErrNotFound.
func (e *Engine) Refine(ctx context.Context, id string, minClusterSize int) (*refine.Result, error) {
	gen := e.cache.Generation(id)
	res, err := e.refiner.Refine(ctx, id, minClusterSize)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.cache.Generation(id) != gen {
		return nil, fmt.Errorf("%w: corpus %q was removed during refinement", internalerr.ErrNotFound, id)
	}
	ref := &store.Refinement{
		RunID:          res.RunID,
		CorpusID:       id,
		MinClusterSize: minClusterSize,
		CreatedAt:      res.CreatedAt.UTC(),
	}
	for _, t := range res.Topics {
		ref.Topics = append(ref.Topics, store.Topic{ID: t.ID, Label: t.Label, Count: t.Count, Terms: t.Terms})
	}
	if err := e.store.SaveRefinement(ctx, ref); err != nil {
		e.log.Warn("refinement history not saved", err, map[string]interface{}{"corpus": id})
	}
	return res, nil
}

// Match classifies every document of a corpus against the taxonomy.
func (e *Engine) Match(ctx context.Context, id string) ([]match.Result, error) {
	corpus, err := e.Corpus(id)
	if err != nil {
		return nil, err
	}
	return e.matcher.Match(ctx, corpus.Texts())
}

// Grouping is the grouping of a corpus's most frequent fields.
type Grouping struct {
	grouping.Result
	// TopFields is the chart data the groups were built from.
	TopFields []match.FieldCount `json:"top_fields"`
}

// Group matches the corpus, takes its most frequent fields and groups them
// into n themes (0 selects the default).
func (e *Engine) Group(ctx context.Context, id string, n int) (*Grouping, error) {
	results, err := e.Match(ctx, id)
	if err != nil {
		return nil, err
	}
	top := match.TopFields(results, match.DefaultTopFields)
	res := e.grouper.Group(ctx, match.Fields(top), n)
	return &Grouping{Result: res, TopFields: top}, nil
}

// History lists past discovery runs, newest first. An empty id lists all corpora.
func (e *Engine) History(ctx context.Context, id string, limit int) ([]store.Run, error) {
	return e.store.ListRuns(ctx, id, limit)
}

// Refinements lists the refinements recorded for a run.
func (e *Engine) Refinements(ctx context.Context, runID string) ([]store.Refinement, error) {
	return e.store.ListRefinements(ctx, runID)
}
