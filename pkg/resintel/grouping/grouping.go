// Package grouping organizes research fields into higher-level themes with a
// chat model, falling back to a deterministic split when the model is unusable.
package grouping

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/cognicore/resintel/internal/llm"
	"github.com/cognicore/resintel/pkg/resintel/logger"
	"github.com/cognicore/resintel/pkg/resintel/metrics"
	"github.com/cognicore/resintel/pkg/resintel/tracer"
)

const (
	DefaultGroups      = 5
	DefaultModel       = "llama3-70b-8192"
	DefaultTemperature = 0.3
	DefaultTimeout     = 30 * time.Second

	SystemPrompt = "You are a helpful assistant for research topic classification and grouping."

	// OtherFieldsGroup collects fields the model left out when repair is on.
	OtherFieldsGroup = "Other Fields"
)

// Group is one theme and the fields it covers.
type Group struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Fields      []string `json:"fields"`
}

// Source tells which strategy produced the groups.
type Source string

const (
	SourceJSON     Source = "json"
	SourceLines    Source = "lines"
	SourceFallback Source = "fallback"
	SourceEmpty    Source = "empty"
)

// Completer is the chat endpoint used for grouping. *llm.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// Config tunes grouping requests. Empty fields select the defaults;
// Temperature is a pointer so that 0 can be asked for.
type Config struct {
	Model       string   `yaml:"model"`
	Temperature *float64 `yaml:"temperature"`
	TimeoutS    int      `yaml:"timeout_seconds"`
	// Repair enforces that every input field lands in exactly one group.
	Repair bool `yaml:"repair"`
}

// Result is a grouping with its provenance.
type Result struct {
	Groups []Group `json:"groups"`
	Source Source  `json:"source"`
	// Violations counts fields that were missing, duplicated or unknown in the model's answer.
	Violations Violations `json:"violations"`
}

// Engine groups fields.
type Engine struct {
	cfg       Config
	completer Completer
	log       logger.Interface
	metrics   *metrics.Metrics
}

// New returns an engine. A nil completer always uses the deterministic split.
func New(cfg Config, c Completer, log logger.Interface, m *metrics.Metrics) *Engine {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature == nil {
		cfg.Temperature = llm.Temperature(DefaultTemperature)
	}
	if cfg.TimeoutS <= 0 {
		cfg.TimeoutS = int(DefaultTimeout / time.Second)
	}
	return &Engine{cfg: cfg, completer: c, log: logger.OrNop(log), metrics: m}
}

// Prompt builds the grouping request for fields.
func Prompt(fields []string, n int) string {
	var list strings.Builder
	for i, f := range fields {
		if i > 0 {
			list.WriteByte('\n')
		}
		list.WriteString("- " + f)
	}
	return fmt.Sprintf(`
I have the following scientific research fields:

%s

Please group them into %d fundamental research groups based on thematic similarity.
For each group, provide:
1. A descriptive group name (2-4 words)
2. A brief description explaining the group's focus
3. List all fields that belong to this group

Return the result in JSON format like this:
[
  {
    "name": "Group Name",
    "description": "Brief description of the group's focus",
    "fields": ["Field 1", "Field 2", "Field 3"]
  },
  ...
]

Make sure each field appears in exactly one group.
`, list.String(), n)
}

// Group organizes fields into n groups. It never fails: call errors, empty
// answers and unparseable answers all produce the deterministic split.
func (e *Engine) Group(ctx context.Context, fields []string, n int) Result {
	if n <= 0 {
		n = DefaultGroups
	}
	ctx, span := tracer.Start(ctx, "grouping.Group",
		attribute.Int("fields", len(fields)),
		attribute.Int("groups", n),
	)
	defer span.End()

	res := e.group(ctx, fields, n)
	span.SetAttributes(attribute.String("source", string(res.Source)))
	e.metrics.GroupingResolved(string(res.Source))
	return res
}

func (e *Engine) group(ctx context.Context, fields []string, n int) Result {
	if len(fields) == 0 {
		return Result{Source: SourceEmpty, Groups: []Group{{
			Name:        "No Data",
			Description: "No fields found to group",
			Fields:      []string{},
		}}}
	}
	if e.completer == nil {
		return Result{Source: SourceFallback, Groups: Fallback(fields, n)}
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(e.cfg.TimeoutS)*time.Second)
	defer cancel()
	reply, err := e.completer.Complete(ctx, llm.Request{
		System:      SystemPrompt,
		User:        Prompt(fields, n),
		Model:       e.cfg.Model,
		Temperature: llm.Temperature(*e.cfg.Temperature),
	})
	if err != nil {
		e.log.Warn("grouping request failed, using fallback", err, map[string]interface{}{"fields": len(fields)})
		return Result{Source: SourceFallback, Groups: Fallback(fields, n)}
	}

	parsed := Parse(reply)
	if len(parsed.Groups) == 0 {
		e.log.Warn("grouping reply unusable, using fallback", nil, map[string]interface{}{"reply_bytes": len(reply)})
		return Result{Source: SourceFallback, Groups: Fallback(fields, n)}
	}

	res := Result{Groups: parsed.Groups, Source: parsed.Source}
	res.Violations = Check(fields, res.Groups)
	if !res.Violations.Empty() {
		e.metrics.GroupingViolations("missing", len(res.Violations.Missing))
		e.metrics.GroupingViolations("duplicate", len(res.Violations.Duplicate))
		e.metrics.GroupingViolations("unknown", len(res.Violations.Unknown))
		e.log.Warn("grouping does not place every field exactly once", nil, map[string]interface{}{
			"missing":   res.Violations.Missing,
			"duplicate": res.Violations.Duplicate,
			"unknown":   res.Violations.Unknown,
			"repair":    e.cfg.Repair,
		})
		if e.cfg.Repair {
			res.Groups = Repair(fields, res.Groups)
		}
	}
	return res
}

// Fallback splits fields in order into chunks of ceil(len/n).
func Fallback(fields []string, n int) []Group {
	if n <= 0 {
		n = DefaultGroups
	}
	size := (len(fields) + n - 1) / n
	if size == 0 {
		return nil
	}
	var groups []Group
	for i := 0; i < len(fields); i += size {
		end := i + size
		if end > len(fields) {
			end = len(fields)
		}
		chunk := append([]string(nil), fields[i:end]...)
		groups = append(groups, Group{
			Name:        fmt.Sprintf("Research Group %d", len(groups)+1),
			Description: fmt.Sprintf("Research group containing %d related fields", len(chunk)),
			Fields:      chunk,
		})
	}
	return groups
}
