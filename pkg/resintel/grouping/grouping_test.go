package grouping

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/resintel/internal/llm"
)

type completerFunc func(ctx context.Context, req llm.Request) (string, error)

func (f completerFunc) Complete(ctx context.Context, req llm.Request) (string, error) {
	return f(ctx, req)
}

func reply(s string) Completer {
	return completerFunc(func(context.Context, llm.Request) (string, error) { return s, nil })
}

var fields = []string{"Databases", "Machine Learning", "Computer Vision", "Networks", "Security", "Compilers", "Bioinformatics"}

func TestFallbackChunking(t *testing.T) {
	groups := Fallback(fields, 3)
	require.Len(t, groups, 3)
	assert.Equal(t, []string{"Databases", "Machine Learning", "Computer Vision"}, groups[0].Fields)
	assert.Equal(t, []string{"Networks", "Security", "Compilers"}, groups[1].Fields)
	assert.Equal(t, []string{"Bioinformatics"}, groups[2].Fields)
	assert.Equal(t, "Research Group 3", groups[2].Name)
	assert.Equal(t, "Research group containing 1 related fields", groups[2].Description)

	few := Fallback(fields[:2], 5)
	require.Len(t, few, 2)
	assert.Equal(t, []string{"Machine Learning"}, few[1].Fields)
}

func TestGroupRequest(t *testing.T) {
	var got llm.Request
	e := New(Config{}, completerFunc(func(_ context.Context, req llm.Request) (string, error) {
		got = req
		return `[{"name":"Data","description":"data systems","fields":["Databases"]}]`, nil
	}), nil, nil)

	res := e.Group(context.Background(), []string{"Databases"}, 2)
	assert.Equal(t, SourceJSON, res.Source)
	assert.Equal(t, SystemPrompt, got.System)
	assert.Equal(t, DefaultModel, got.Model)
	require.NotNil(t, got.Temperature)
	assert.Equal(t, DefaultTemperature, *got.Temperature)
	assert.Contains(t, got.User, "- Databases")
	assert.Contains(t, got.User, "into 2 fundamental research groups")
}

func TestGroupZeroTemperature(t *testing.T) {
	var got llm.Request
	e := New(Config{Temperature: llm.Temperature(0)}, completerFunc(func(_ context.Context, req llm.Request) (string, error) {
		got = req
		return `[{"name":"Data","fields":["Databases"]}]`, nil
	}), nil, nil)
	e.Group(context.Background(), []string{"Databases"}, 1)
	require.NotNil(t, got.Temperature)
	assert.Zero(t, *got.Temperature)
}

func TestGroupTimeoutFallsBack(t *testing.T) {
	e := New(Config{TimeoutS: 1}, completerFunc(func(ctx context.Context, _ llm.Request) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(5 * time.Second):
			return `[{"name":"late","fields":["Databases"]}]`, nil
		}
	}), nil, nil)

	res := e.Group(context.Background(), fields, 5)
	assert.Equal(t, SourceFallback, res.Source)
	assert.Equal(t, Fallback(fields, 5), res.Groups)
}

func TestGroupFallbacks(t *testing.T) {
	tests := []struct {
		name string
		c    Completer
	}{
		{name: "no completer"},
		{name: "error", c: completerFunc(func(context.Context, llm.Request) (string, error) {
			return "", errors.New("503")
		})},
		{name: "prose", c: reply("I cannot help with that request.")},
		{name: "empty json", c: reply(`[]`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := New(Config{}, tt.c, nil, nil).Group(context.Background(), fields, 0)
			assert.Equal(t, SourceFallback, res.Source)
			assert.Len(t, res.Groups, 4)
		})
	}
}

func TestGroupNoData(t *testing.T) {
	res := New(Config{}, nil, nil, nil).Group(context.Background(), nil, 5)
	assert.Equal(t, SourceEmpty, res.Source)
	require.Len(t, res.Groups, 1)
	assert.Equal(t, "No Data", res.Groups[0].Name)
	assert.Empty(t, res.Groups[0].Fields)
}

func TestParseJSONForms(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{name: "array", reply: `[{"name":"Data","description":"d","fields":["Databases","Security"]}]`},
		{name: "object", reply: `{"groups":[{"name":"Data","description":"d","fields":["Databases","Security"]}]}`},
		{name: "fenced", reply: "```json\n[{\"name\":\"Data\",\"description\":\"d\",\"fields\":[\"Databases\",\"Security\"]}]\n```"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Parse(tt.reply)
			assert.Equal(t, SourceJSON, res.Source)
			assert.Equal(t, []Group{{Name: "Data", Description: "d", Fields: []string{"Databases", "Security"}}}, res.Groups)
		})
	}
}

func TestParseLines(t *testing.T) {
	text := `Here is the grouping:

1. **Data and Systems**
Description: Storage and infrastructure
- Databases
- Networks
2. **Learning**
• Machine Learning
* Computer Vision
SECURITY
- Security
- AI`

	res := Parse(text)
	assert.Equal(t, SourceLines, res.Source)
	require.Len(t, res.Groups, 3)

	assert.Equal(t, "Data and Systems", res.Groups[0].Name)
	assert.Equal(t, "Storage and infrastructure", res.Groups[0].Description)
	assert.Equal(t, []string{"Databases", "Networks"}, res.Groups[0].Fields)

	assert.Equal(t, "Learning", res.Groups[1].Name)
	assert.Equal(t, DefaultDescription, res.Groups[1].Description)
	assert.Equal(t, []string{"Machine Learning", "Computer Vision"}, res.Groups[1].Fields)

	assert.Equal(t, "SECURITY", res.Groups[2].Name)
	assert.Equal(t, []string{"Security", "AI"}, res.Groups[2].Fields)
}

func TestParseNothing(t *testing.T) {
	assert.Empty(t, Parse("").Groups)
	assert.Empty(t, Parse("no structure here").Groups)
}

func TestCheckAndRepair(t *testing.T) {
	input := []string{"Databases", "Networks", "Security", "Compilers"}
	groups := []Group{
		{Name: "Systems", Fields: []string{"databases", "Networks", "Quantum"}},
		{Name: "Safety", Fields: []string{"Security", "Networks"}},
		{Name: "Ghost", Fields: []string{"Astronomy"}},
	}

	v := Check(input, groups)
	assert.Equal(t, []string{"Compilers"}, v.Missing)
	assert.Equal(t, []string{"Networks"}, v.Duplicate)
	assert.Equal(t, []string{"Quantum", "Astronomy"}, v.Unknown)
	assert.False(t, v.Empty())

	fixed := Repair(input, groups)
	require.Len(t, fixed, 3)
	assert.Equal(t, []string{"Databases", "Networks"}, fixed[0].Fields)
	assert.Equal(t, []string{"Security"}, fixed[1].Fields)
	assert.Equal(t, OtherFieldsGroup, fixed[2].Name)
	assert.Equal(t, []string{"Compilers"}, fixed[2].Fields)
	assert.True(t, Check(input, fixed).Empty())
}

func TestGroupRepairsWhenEnabled(t *testing.T) {
	c := reply(`[{"name":"Data","description":"d","fields":["Databases","Databases"]}]`)
	input := []string{"Databases", "Networks"}

	plain := New(Config{}, c, nil, nil).Group(context.Background(), input, 2)
	assert.Equal(t, []string{"Networks"}, plain.Violations.Missing)
	assert.Len(t, plain.Groups, 1)

	fixed := New(Config{Repair: true}, c, nil, nil).Group(context.Background(), input, 2)
	require.Len(t, fixed.Groups, 2)
	assert.Equal(t, []string{"Databases"}, fixed.Groups[0].Fields)
	assert.Equal(t, OtherFieldsGroup, fixed.Groups[1].Name)
}
