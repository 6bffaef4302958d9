// Package refine refits the topic model of a cached corpus at a chosen
// granularity and labels the resulting topics.
package refine

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel/attribute"

	"github.com/cognicore/resintel/pkg/resintel/cache"
	"github.com/cognicore/resintel/pkg/resintel/internalerr"
	"github.com/cognicore/resintel/pkg/resintel/logger"
	"github.com/cognicore/resintel/pkg/resintel/topicmodel"
	"github.com/cognicore/resintel/pkg/resintel/tracer"
)

// OutlierThreshold is the similarity an outlier needs to join a topic.
const OutlierThreshold = 0.0

// Labeler names the topics of a fitted model.
type Labeler interface {
	LabelModel(ctx context.Context, model *topicmodel.Model) error
}

// Topic is one refined topic.
type Topic struct {
	ID    int      `json:"id"`
	Label string   `json:"label"`
	Count int      `json:"count"`
	Terms []string `json:"terms"`
}

// Result is the outcome of a refinement.
type Result struct {
	CorpusID       string            `json:"corpus_id"`
	RunID          string            `json:"run_id"`
	MinClusterSize int               `json:"min_cluster_size"`
	TopicCount     int               `json:"topic_count"`
	Topics         []Topic           `json:"topics"`
	Model          *topicmodel.Model `json:"-"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Refiner serves phase two of discovery from the analysis cache.
type Refiner struct {
	cache   *cache.Cache
	labeler Labeler
	log     logger.Interface
}

// New returns a refiner. A nil labeler leaves topics unlabeled.
func New(c *cache.Cache, l Labeler, log logger.Interface) *Refiner {
	return &Refiner{cache: c, labeler: l, log: logger.OrNop(log)}
}

// Refine rebuilds only the clusterer with minClusterSize, refits on the cached
// embeddings, reassigns outliers and labels every topic.
func (r *Refiner) Refine(ctx context.Context, corpusID string, minClusterSize int) (*Result, error) {
	if minClusterSize < 2 {
		return nil, fmt.Errorf("%w: min cluster size %d, need at least 2", internalerr.ErrInvalidInput, minClusterSize)
	}
	entry, err := r.cache.Get(corpusID)
	if err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "refine.Refine",
		attribute.String("corpus", corpusID),
		attribute.Int("min_cluster_size", minClusterSize),
	)
	defer span.End()
	started := time.Now()

	model, err := entry.Artifacts.NewModel(topicmodel.NewHDBSCAN(minClusterSize), entry.Representation())
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}
	if err := model.Fit(ctx, entry.Docs, entry.Embeddings); err != nil {
		tracer.RecordError(span, err)
		return nil, eris.Wrapf(err, "refit corpus %q at %d", corpusID, minClusterSize)
	}
	if err := model.UpdateTopics(ctx, model.ReduceOutliers(OutlierThreshold)); err != nil {
		tracer.RecordError(span, err)
		return nil, eris.Wrapf(err, "update topics of corpus %q", corpusID)
	}
	if r.labeler != nil {
		if err := r.labeler.LabelModel(ctx, model); err != nil {
			tracer.RecordError(span, err)
			return nil, eris.Wrap(err, "label topics")
		}
	}

	res := &Result{
		CorpusID:       corpusID,
		RunID:          entry.Handle,
		MinClusterSize: minClusterSize,
		Model:          model,
		CreatedAt:      time.Now(),
	}
	for _, t := range model.Topics() {
		if t.ID == topicmodel.OutlierTopic {
			continue
		}
		res.Topics = append(res.Topics, Topic{ID: t.ID, Label: t.Label, Count: t.Count, Terms: t.Terms})
	}
	res.TopicCount = len(res.Topics)

	r.log.Info("topics refined", nil, map[string]interface{}{
		"corpus":           corpusID,
		"min_cluster_size": minClusterSize,
		"topics":           res.TopicCount,
		"elapsed":          time.Since(started).String(),
	})
	return res, nil
}
