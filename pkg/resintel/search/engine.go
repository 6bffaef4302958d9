// Package search sweeps the minimum cluster size of the topic model and picks
// the granularity with the most coherent topics.
package search

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/cognicore/resintel/pkg/resintel/internalerr"
	"github.com/cognicore/resintel/pkg/resintel/logger"
	"github.com/cognicore/resintel/pkg/resintel/metrics"
	"github.com/cognicore/resintel/pkg/resintel/pmi"
	"github.com/cognicore/resintel/pkg/resintel/topicmodel"
	"github.com/cognicore/resintel/pkg/resintel/tracer"
)

const (
	// MinTopicSize is the smallest topic that counts toward coherence.
	MinTopicSize = 5
	// MinTopics is how many qualifying topics make a score defined.
	MinTopics = 2
)

// Config tunes the sweep.
type Config struct {
	// Workers bounds concurrent candidate fits. 1 runs them one after another.
	Workers int `yaml:"workers"`
	// CoherenceTopN is how many terms per topic enter the coherence score.
	// Candidate models keep at least that many terms per topic.
	CoherenceTopN int `yaml:"coherence_top_n"`
}

// Evaluator fits and scores a single candidate.
type Evaluator interface {
	Evaluate(ctx context.Context, minClusterSize int) CandidateResult
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(ctx context.Context, minClusterSize int) CandidateResult

func (f EvaluatorFunc) Evaluate(ctx context.Context, m int) CandidateResult { return f(ctx, m) }

// Engine runs granularity sweeps.
type Engine struct {
	cfg     Config
	log     logger.Interface
	metrics *metrics.Metrics
}

// New returns an engine. A nil logger or metrics disables them.
func New(cfg Config, log logger.Interface, m *metrics.Metrics) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.CoherenceTopN <= 0 {
		cfg.CoherenceTopN = pmi.DefaultTopN
	}
	return &Engine{cfg: cfg, log: logger.OrNop(log), metrics: m}
}

// Input is one corpus prepared for a sweep.
type Input struct {
	Docs       []string
	Embeddings *mat.Dense
	// Tokens are the tokenized documents the co-occurrence dictionary is built from.
	Tokens    [][]string
	Artifacts *topicmodel.Artifacts
}

// Outcome is the result of a full sweep.
type Outcome struct {
	Range   Range
	Results []CandidateResult
	Best    Selection
	Curve   []CurvePoint
	Viable  []int
}

// Run sweeps the candidate range chosen for the corpus size.
// Only missing input or artifacts fail the run; failed candidates are recorded as undefined.
func (e *Engine) Run(ctx context.Context, in Input) (*Outcome, error) {
	if len(in.Docs) < internalerr.MinDocuments {
		return nil, fmt.Errorf("%w: %d documents, need at least %d",
			internalerr.ErrInsufficientData, len(in.Docs), internalerr.MinDocuments)
	}
	if err := in.Artifacts.Validate(); err != nil {
		return nil, err
	}
	if in.Embeddings == nil {
		return nil, fmt.Errorf("%w: no embeddings", internalerr.ErrInvalidInput)
	}

	r := CandidateRange(len(in.Docs))
	ctx, span := tracer.Start(ctx, "search.Run",
		attribute.Int("docs", len(in.Docs)),
		attribute.Int("range.lo", r.Lo),
		attribute.Int("range.hi", r.Hi),
	)
	defer span.End()

	eval := e.NewEvaluator(in)
	started := time.Now()
	results := e.Sweep(ctx, r.Values(), eval)
	e.metrics.SweepFinished(len(in.Docs), time.Since(started))

	best := Select(results)
	out := &Outcome{
		Range:   r,
		Results: results,
		Best:    best,
		Curve:   Curve(results, best),
		Viable:  Viable(results),
	}
	fields := map[string]interface{}{
		"docs":    len(in.Docs),
		"viable":  len(out.Viable),
		"elapsed": time.Since(started).String(),
	}
	if best.Found {
		fields["best_min_cluster_size"] = best.MinClusterSize
		fields["best_coherence"] = best.Coherence
		span.SetAttributes(attribute.Int("best.min_cluster_size", best.MinClusterSize))
	}
	e.log.Info("granularity sweep finished", nil, fields)
	return out, nil
}

// Sweep evaluates every candidate on at most Workers goroutines. Results keep
// the order of candidates regardless of completion order. A panicking
// candidate is recorded as undefined.
func (e *Engine) Sweep(ctx context.Context, candidates []int, eval Evaluator) []CandidateResult {
	results := make([]CandidateResult, len(candidates))

	g := new(errgroup.Group)
	g.SetLimit(e.cfg.Workers)
	for idx, m := range candidates {
		g.Go(func() error {
			results[idx] = e.evaluate(ctx, eval, m)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (e *Engine) evaluate(ctx context.Context, eval Evaluator, m int) (res CandidateResult) {
	ctx, span := tracer.Start(ctx, "search.candidate", attribute.Int("min_cluster_size", m))
	defer span.End()
	defer func() {
		if p := recover(); p != nil {
			res = CandidateResult{MinClusterSize: m, Err: fmt.Errorf("candidate %d panicked: %v", m, p)}
		}
		outcome := "defined"
		switch {
		case res.Err != nil:
			outcome = "error"
			tracer.RecordError(span, res.Err)
			e.log.Warn("candidate failed", res.Err, map[string]interface{}{"min_cluster_size": m})
		case !res.Defined:
			outcome = "undefined"
			e.log.Debug("candidate has too few topics", nil, map[string]interface{}{
				"min_cluster_size": m,
				"topics":           res.Topics,
			})
		default:
			e.log.Debug("candidate scored", nil, map[string]interface{}{
				"min_cluster_size": m,
				"coherence":        res.Coherence,
				"topics":           res.Topics,
			})
		}
		e.metrics.CandidateEvaluated(outcome)
	}()

	res = eval.Evaluate(ctx, m)
	res.MinClusterSize = m
	if res.Err != nil {
		res.Defined = false
		res.Model = nil
	}
	return res
}
