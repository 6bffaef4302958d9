package search

import (
	"context"

	"github.com/cognicore/resintel/pkg/resintel/pmi"
	"github.com/cognicore/resintel/pkg/resintel/topicmodel"
)

// modelEvaluator fits a topic model per candidate over shared corpus state.
type modelEvaluator struct {
	in    Input
	terms [][]string
	dict  *pmi.Dictionary
	calc  *pmi.Calculator
	topN  int
}

// NewEvaluator prepares the state every candidate shares: vectorizer output and
// the co-occurrence dictionary.
func (e *Engine) NewEvaluator(in Input) Evaluator {
	return &modelEvaluator{
		in:    in,
		terms: topicmodel.Analyze(in.Artifacts.Vectorizer, in.Docs),
		dict:  pmi.NewDictionary(in.Tokens),
		calc:  pmi.NewCalculator(0),
		topN:  e.cfg.CoherenceTopN,
	}
}

func (ev *modelEvaluator) Evaluate(ctx context.Context, m int) CandidateResult {
	res := CandidateResult{MinClusterSize: m}

	// topics carry at least as many terms as the coherence score reads
	model, err := ev.in.Artifacts.NewModelTopN(topicmodel.NewHDBSCAN(m), nil, max(topicmodel.DefaultTopNWords, ev.topN))
	if err != nil {
		res.Err = err
		return res
	}
	if err := model.FitAnalyzed(ctx, ev.in.Docs, ev.terms, ev.in.Embeddings); err != nil {
		res.Err = err
		return res
	}

	var topics [][]string
	for _, t := range model.Topics() {
		if t.ID == topicmodel.OutlierTopic || t.Count < MinTopicSize {
			continue
		}
		topics = append(topics, t.Terms)
	}
	res.Topics = len(topics)
	if len(topics) < MinTopics {
		return res
	}

	score, ok := ev.calc.Coherence(topics, ev.dict, ev.topN)
	if !ok {
		return res
	}
	res.Coherence = score
	res.Defined = true
	res.Model = model
	return res
}
