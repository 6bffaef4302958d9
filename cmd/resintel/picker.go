package main

import (
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cognicore/resintel/pkg/resintel"
	"github.com/cognicore/resintel/pkg/resintel/search"
)

const barWidth = 30

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	subtleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	bestStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	barStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	curveBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// pickerModel lets the user choose a granularity from the coherence curve.
// The cursor starts on the best point.
type pickerModel struct {
	corpus   string
	curve    []search.CurvePoint
	cursor   int
	chosen   int
	quitting bool
}

func newPicker(d *resintel.Discovery) pickerModel {
	m := pickerModel{corpus: d.CorpusID, curve: d.Curve}
	for i, p := range d.Curve {
		if p.Best {
			m.cursor = i
		}
	}
	return m
}

// Choice returns the picked min_cluster_size, or false when the user quit.
func (m pickerModel) Choice() (int, bool) {
	if m.chosen == 0 {
		return 0, false
	}
	return m.chosen, true
}

func (m pickerModel) Init() tea.Cmd { return nil }

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "ctrl+c", "q", "esc":
		m.quitting = true
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.curve)-1 {
			m.cursor++
		}
	case "home", "g":
		m.cursor = 0
	case "end", "G":
		if len(m.curve) > 0 {
			m.cursor = len(m.curve) - 1
		}
	case "enter":
		if len(m.curve) == 0 {
			return m, nil
		}
		m.chosen = m.curve[m.cursor].MinClusterSize
		return m, tea.Quit
	}
	return m, nil
}

func (m pickerModel) View() string {
	if m.quitting || m.chosen != 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Granularity for " + m.corpus))
	b.WriteString("\n")
	b.WriteString(subtleStyle.Render("min_cluster_size vs. coherence (NPMI)"))
	b.WriteString("\n")

	lo, hi := coherenceBounds(m.curve)
	var rows []string
	for i, p := range m.curve {
		prefix := "  "
		if i == m.cursor {
			prefix = cursorStyle.Render("> ")
		}
		row := fmt.Sprintf("%3d  %s %+.4f", p.MinClusterSize, barStyle.Render(bar(p.Coherence, lo, hi)), p.Coherence)
		if p.Best {
			row += bestStyle.Render("  best")
		}
		rows = append(rows, prefix+row)
	}
	b.WriteString(curveBoxStyle.Render(strings.Join(rows, "\n")))
	b.WriteString("\n")
	b.WriteString(subtleStyle.Render("up/down move  enter refine  q quit"))
	b.WriteString("\n")
	return b.String()
}

func coherenceBounds(curve []search.CurvePoint) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range curve {
		lo = math.Min(lo, p.Coherence)
		hi = math.Max(hi, p.Coherence)
	}
	return lo, hi
}

// bar scales v into lo..hi. A flat curve gets full bars.
func bar(v, lo, hi float64) string {
	n := barWidth
	if hi > lo {
		n = 1 + int(math.Round((v-lo)/(hi-lo)*float64(barWidth-1)))
	}
	return strings.Repeat("█", n) + strings.Repeat(" ", barWidth-n)
}
