// Package match classifies documents against a fixed taxonomy of research
// fields by fuzzy keyword matching.
package match

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/cognicore/resintel/pkg/resintel/internalerr"
	"github.com/cognicore/resintel/pkg/resintel/logger"
	"github.com/cognicore/resintel/pkg/resintel/metrics"
	"github.com/cognicore/resintel/pkg/resintel/tracer"
)

const (
	DefaultThreshold = 80
	DefaultTopFields = 10
)

// Entry is one taxonomy field and its keywords.
type Entry struct {
	Field    string   `yaml:"field" json:"field"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// Result is the field chosen for one document.
type Result struct {
	Doc   int     `json:"doc"`
	Field string  `json:"field,omitempty"`
	Score float64 `json:"score"`
	// MetThreshold reports whether Field came from a keyword scoring at least the threshold.
	MetThreshold bool `json:"met_threshold"`
}

// Matched reports whether any field was assigned.
func (r Result) Matched() bool { return r.Field != "" }

// Config tunes matching.
type Config struct {
	// Threshold is the score, 0..100, a keyword needs to count as a match.
	// Nil selects DefaultThreshold; 0 lets any positive score match.
	Threshold *float64 `yaml:"threshold"`
	Workers   int      `yaml:"workers"`
}

// Threshold returns a pointer for Config.Threshold.
func Threshold(v float64) *float64 { return &v }

type compiledKeyword struct {
	field string
	p     *pattern
}

// Matcher scores documents against a taxonomy. It is safe for concurrent use.
type Matcher struct {
	cfg       Config
	threshold float64
	keywords []compiledKeyword
	log      logger.Interface
	metrics  *metrics.Metrics
}

// New compiles taxonomy. Keyword order follows taxonomy order, which decides ties.
func New(cfg Config, taxonomy []Entry, log logger.Interface, m *metrics.Metrics) *Matcher {
	threshold := float64(DefaultThreshold)
	if cfg.Threshold != nil {
		threshold = *cfg.Threshold
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	mt := &Matcher{cfg: cfg, threshold: threshold, log: logger.OrNop(log), metrics: m}
	for _, e := range taxonomy {
		for _, kw := range e.Keywords {
			kw = strings.ToLower(kw)
			if strings.TrimSpace(kw) == "" {
				continue
			}
			mt.keywords = append(mt.keywords, compiledKeyword{field: e.Field, p: compile(kw)})
		}
	}
	return mt
}

// Best returns the field for a single text. The best field meeting the
// threshold wins; otherwise the best field overall; otherwise none.
func (mt *Matcher) Best(text string) Result {
	doc := []rune(strings.ToLower(text))

	var (
		bestScore, thrScore float64
		bestField, thrField string
	)
	for _, kw := range mt.keywords {
		s := kw.score(doc)
		if s > bestScore {
			bestScore, bestField = s, kw.field
		}
		if s >= mt.threshold && s > thrScore {
			thrScore, thrField = s, kw.field
		}
	}
	if thrField != "" {
		return Result{Field: thrField, Score: thrScore, MetThreshold: true}
	}
	return Result{Field: bestField, Score: bestScore}
}

func (kw compiledKeyword) score(doc []rune) float64 {
	if len(doc) == 0 {
		return 0
	}
	if len(kw.p.runes) < len(doc) {
		return kw.p.partialRatio(doc)
	}
	return PartialRatio(string(doc), string(kw.p.runes))
}

// Match classifies every document. Results are in document order.
func (mt *Matcher) Match(ctx context.Context, docs []string) ([]Result, error) {
	if len(docs) < internalerr.MinDocuments {
		return nil, fmt.Errorf("%w: %d documents, need at least %d",
			internalerr.ErrInsufficientData, len(docs), internalerr.MinDocuments)
	}
	ctx, span := tracer.Start(ctx, "match.Match",
		attribute.Int("docs", len(docs)),
		attribute.Int("keywords", len(mt.keywords)),
	)
	defer span.End()
	started := time.Now()

	results := make([]Result, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(mt.cfg.Workers)
	for i, d := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r := mt.Best(d)
			r.Doc = i
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	mt.metrics.MatchFinished(time.Since(started))
	matched := 0
	for _, r := range results {
		if r.MetThreshold {
			matched++
		}
	}
	mt.log.Info("keyword matching finished", nil, map[string]interface{}{
		"docs":            len(docs),
		"above_threshold": matched,
		"elapsed":         time.Since(started).String(),
	})
	return results, nil
}

// FieldCount is how many documents were assigned a field.
type FieldCount struct {
	Field string `json:"field"`
	Count int    `json:"count"`
}

// TopFields ranks assigned fields by frequency, most frequent first.
// Equal counts keep the order in which fields were first seen.
func TopFields(results []Result, n int) []FieldCount {
	if n <= 0 {
		n = DefaultTopFields
	}
	index := make(map[string]int)
	var counts []FieldCount
	for _, r := range results {
		if !r.Matched() {
			continue
		}
		i, ok := index[r.Field]
		if !ok {
			i = len(counts)
			index[r.Field] = i
			counts = append(counts, FieldCount{Field: r.Field})
		}
		counts[i].Count++
	}
	sort.SliceStable(counts, func(a, b int) bool { return counts[a].Count > counts[b].Count })
	if len(counts) > n {
		counts = counts[:n]
	}
	return counts
}

// Fields returns the field names of counts.
func Fields(counts []FieldCount) []string {
	out := make([]string, len(counts))
	for i, c := range counts {
		out[i] = c.Field
	}
	return out
}
