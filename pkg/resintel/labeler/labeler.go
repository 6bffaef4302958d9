// Package labeler names topics from their representative terms with a chat model.
package labeler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/cognicore/resintel/internal/llm"
	"github.com/cognicore/resintel/pkg/resintel/logger"
	"github.com/cognicore/resintel/pkg/resintel/metrics"
	"github.com/cognicore/resintel/pkg/resintel/topicmodel"
	"github.com/cognicore/resintel/pkg/resintel/tracer"
)

const (
	DefaultModel       = "llama-3.3-70b-versatile"
	DefaultTemperature = 0.2
	DefaultMaxTokens   = 20
	DefaultTimeout     = 10 * time.Second
)

const promptTemplate = `Generate a short and clear topic label (maximum 5 words) based on the following keywords:
%s
The label must:
- Be in English
- Accurately represent the core meaning of the keywords
- Be concise and descriptive
- Return only the label text (no explanations)`

// Completer is the chat endpoint used for labels. *llm.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// Config tunes label requests. Empty fields select the defaults; Temperature
// is a pointer so that 0 can be asked for.
type Config struct {
	Model       string   `yaml:"model"`
	Temperature *float64 `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`
	TimeoutS    int      `yaml:"timeout_seconds"`
	// Concurrency bounds parallel label requests. 0 or 1 labels topics one by one.
	Concurrency int `yaml:"concurrency"`
}

// DefaultConfig returns the label request defaults.
func DefaultConfig() Config {
	return Config{
		Model:       DefaultModel,
		Temperature: llm.Temperature(DefaultTemperature),
		MaxTokens:   DefaultMaxTokens,
		TimeoutS:    int(DefaultTimeout / time.Second),
		Concurrency: 1,
	}
}

// AutoLabeler labels topics and never fails: any problem yields a placeholder.
type AutoLabeler struct {
	cfg       Config
	completer Completer
	log       logger.Interface
	metrics   *metrics.Metrics
}

// New returns a labeler. A nil completer makes every label a placeholder.
func New(cfg Config, c Completer, log logger.Interface, m *metrics.Metrics) *AutoLabeler {
	def := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Temperature == nil {
		cfg.Temperature = def.Temperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.TimeoutS <= 0 {
		cfg.TimeoutS = def.TimeoutS
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &AutoLabeler{cfg: cfg, completer: c, log: logger.OrNop(log), metrics: m}
}

// Placeholder is the label used when no label could be generated.
func Placeholder(id int) string {
	return fmt.Sprintf("Topic %d", id)
}

// Prompt builds the label request for terms.
func Prompt(terms []string) string {
	return fmt.Sprintf(promptTemplate, strings.Join(terms, ", "))
}

// Label returns a label for topic id described by terms.
func (l *AutoLabeler) Label(ctx context.Context, id int, terms []string) string {
	if l.completer == nil || len(terms) == 0 {
		l.metrics.LabelRequested("placeholder")
		return Placeholder(id)
	}
	ctx, cancel := context.WithTimeout(ctx, time.Duration(l.cfg.TimeoutS)*time.Second)
	defer cancel()

	out, err := l.completer.Complete(ctx, llm.Request{
		User:        Prompt(terms),
		Model:       l.cfg.Model,
		Temperature: llm.Temperature(*l.cfg.Temperature),
		MaxTokens:   l.cfg.MaxTokens,
	})
	if err != nil {
		l.metrics.LabelRequested("error")
		l.log.Warn("topic label failed", err, map[string]interface{}{"topic": id})
		return Placeholder(id)
	}
	label := clean(out)
	if label == "" {
		l.metrics.LabelRequested("empty")
		return Placeholder(id)
	}
	l.metrics.LabelRequested("ok")
	return label
}

// LabelModel labels every non-outlier topic of model in place.
func (l *AutoLabeler) LabelModel(ctx context.Context, model *topicmodel.Model) error {
	topics := model.Topics()
	ctx, span := tracer.Start(ctx, "labeler.LabelModel", attribute.Int("topics", len(topics)))
	defer span.End()

	labels := make([]string, len(topics))
	g := new(errgroup.Group)
	g.SetLimit(l.cfg.Concurrency)
	for i, t := range topics {
		if t.ID == topicmodel.OutlierTopic {
			continue
		}
		g.Go(func() error {
			labels[i] = l.Label(ctx, t.ID, t.Terms)
			return nil
		})
	}
	_ = g.Wait()

	for i, t := range topics {
		if t.ID == topicmodel.OutlierTopic {
			continue
		}
		if err := model.SetLabel(t.ID, labels[i]); err != nil {
			return err
		}
	}
	return nil
}

// clean keeps the first line of a reply without surrounding quotes.
func clean(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimPrefix(s, "Label:")
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), `"'*`))
}
