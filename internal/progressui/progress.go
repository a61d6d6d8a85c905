// Package progressui renders a live view of an internal/ruleengine.Run
// in progress: one line per key, a spinner while anything is still
// outstanding, and an aggregate progress bar.
package progressui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"shakedb/internal/ruleengine"
)

type keyItem struct {
	key    ruleengine.Key
	status ruleengine.Status
}

type eventMsg ruleengine.Event
type doneMsg struct{}

type progressModel struct {
	title   string
	events  <-chan ruleengine.Event
	spinner spinner.Model
	prog    progress.Model
	items   []keyItem
	index   map[ruleengine.Key]int
	width   int
	done    bool
}

// NewProgressModel returns a Bubble Tea model that renders the progress
// of a ruleengine.Run driving keys, reading Events off events until it
// is closed.
func NewProgressModel(title string, keys []ruleengine.Key, events <-chan ruleengine.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	items := make([]keyItem, 0, len(keys))
	index := make(map[ruleengine.Key]int, len(keys))
	for i, k := range keys {
		items = append(items, keyItem{key: k, status: ruleengine.Queued})
		index[k] = i
	}
	return &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		items:   items,
		index:   index,
		width:   80,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(ruleengine.Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case progress.FrameMsg:
		pm, cmd := m.prog.Update(msg)
		m.prog = pm.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	if len(m.items) == 0 {
		return ""
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := m.title
	if m.done {
		header = fmt.Sprintf("done: %s", header)
	} else {
		header = fmt.Sprintf("%s %s", m.spinner.View(), header)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	statusWidth := 12
	nameWidth := m.width - statusWidth - 4
	if nameWidth < 20 {
		nameWidth = 20
	}

	for _, item := range m.items {
		name := truncate(string(item.key), nameWidth)
		label := statusLabel(item.status)
		styled := styleStatus(item.status).Render(fmt.Sprintf("%12s", label))
		b.WriteString(fmt.Sprintf("  %s %s\n", styled, name))
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")

	return b.String()
}

func (m *progressModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) applyEvent(ev ruleengine.Event) tea.Cmd {
	idx, ok := m.index[ev.Key]
	if !ok {
		// a key not in the initial target list (a transitive dependency);
		// track it too so its progress still counts.
		idx = len(m.items)
		m.items = append(m.items, keyItem{key: ev.Key})
		m.index[ev.Key] = idx
	}
	m.items[idx].status = ev.Status

	total := 0.0
	for _, item := range m.items {
		total += progressFromStatus(item.status)
	}
	pct := 0.0
	if len(m.items) > 0 {
		pct = total / float64(len(m.items))
	}
	return m.prog.SetPercent(pct)
}

func progressFromStatus(status ruleengine.Status) float64 {
	switch status {
	case ruleengine.Queued:
		return 0.0
	case ruleengine.Blocked:
		return 0.3
	case ruleengine.Executing:
		return 0.6
	case ruleengine.Ready, ruleengine.Failed:
		return 1.0
	default:
		return 0.0
	}
}

func statusLabel(status ruleengine.Status) string {
	if status == 0 {
		return "queued"
	}
	return status.String()
}

func styleStatus(status ruleengine.Status) lipgloss.Style {
	switch status {
	case ruleengine.Ready:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case ruleengine.Failed:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case ruleengine.Executing, ruleengine.Blocked:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	}
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}
