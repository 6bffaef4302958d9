package main

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/resintel/pkg/resintel"
	"github.com/cognicore/resintel/pkg/resintel/search"
)

func testDiscovery() *resintel.Discovery {
	return &resintel.Discovery{
		CorpusID: "papers.csv",
		Curve: []search.CurvePoint{
			{MinClusterSize: 4, Coherence: 0.12},
			{MinClusterSize: 6, Coherence: 0.31, Best: true},
			{MinClusterSize: 9, Coherence: -0.05},
		},
		Best: resintel.Best{MinClusterSize: 6, Coherence: 0.31, Found: true},
	}
}

func press(t *testing.T, m pickerModel, keys ...string) (pickerModel, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "up":
			msg = tea.KeyMsg{Type: tea.KeyUp}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		next, c := m.Update(msg)
		m, cmd = next.(pickerModel), c
	}
	return m, cmd
}

func TestPickerStartsOnBest(t *testing.T) {
	m := newPicker(testDiscovery())
	assert.Equal(t, 1, m.cursor)

	m, cmd := press(t, m, "enter")
	require.NotNil(t, cmd)
	size, ok := m.Choice()
	assert.True(t, ok)
	assert.Equal(t, 6, size)
	assert.Empty(t, m.View())
}

func TestPickerMovesWithinCurve(t *testing.T) {
	m := newPicker(testDiscovery())

	m, _ = press(t, m, "down", "down", "down")
	assert.Equal(t, 2, m.cursor)
	m, _ = press(t, m, "up", "k", "up")
	assert.Equal(t, 0, m.cursor)

	m, _ = press(t, m, "j", "enter")
	size, ok := m.Choice()
	assert.True(t, ok)
	assert.Equal(t, 6, size)
}

func TestPickerQuit(t *testing.T) {
	m, cmd := press(t, newPicker(testDiscovery()), "q")
	require.NotNil(t, cmd)
	_, ok := m.Choice()
	assert.False(t, ok)
}

func TestPickerView(t *testing.T) {
	view := newPicker(testDiscovery()).View()
	assert.Contains(t, view, "papers.csv")
	assert.Contains(t, view, "+0.3100")
	assert.Contains(t, view, "best")
	assert.Contains(t, view, "-0.0500")
}

func TestPickerEmptyCurve(t *testing.T) {
	m, cmd := press(t, newPicker(&resintel.Discovery{CorpusID: "x"}), "down", "enter")
	assert.Nil(t, cmd)
	_, ok := m.Choice()
	assert.False(t, ok)
}

func TestBarScales(t *testing.T) {
	assert.Len(t, []rune(bar(1, 0, 1)), barWidth)
	assert.Equal(t, 1, countBlocks(bar(0, 0, 1)))
	assert.Equal(t, barWidth, countBlocks(bar(1, 0, 1)))
	assert.Equal(t, barWidth, countBlocks(bar(0.5, 0.5, 0.5)))
}

func countBlocks(s string) int {
	var n int
	for _, r := range s {
		if r == '█' {
			n++
		}
	}
	return n
}
