package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/winnow-sh/winnow/filter"
	"github.com/winnow-sh/winnow/finder"
)

// blankPattern is what an empty input box queries as: it transforms to zero
// terms, which the worker answers with the whole snapshot.
const blankPattern = " "

var (
	headerStyle   = lipgloss.NewStyle().Faint(true)
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	selectedStyle = lipgloss.NewStyle().Bold(true)
	statusStyle   = lipgloss.NewStyle().Faint(true)
	matchStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Underline(true)
)

// querier is the slice of the finder session the UI drives.
type querier interface {
	Input(pattern string)
}

// Messages delivered from outside the Update loop.
type (
	eventMsg     struct{ event finder.Event }
	setupDoneMsg struct{}
	setupErrMsg  struct{ err error }
)

type model struct {
	session querier
	events  <-chan finder.Event

	input textinput.Model

	mode    string
	dir     string
	matcher string

	candidates []string
	pending    []string
	cursor     int
	querying   bool
	ready      bool
	selected   string
	setupErr   error

	width  int
	height int
}

func newModel(session querier, events <-chan finder.Event, mode, dir, matcher string) model {
	ti := textinput.New()
	ti.Placeholder = "type to filter"
	ti.Prompt = "> "
	ti.Focus()

	return model{
		session: session,
		events:  events,
		input:   ti,
		mode:    mode,
		dir:     dir,
		matcher: matcher,
		width:   80,
		height:  24,
	}
}

// Init starts the cursor blink and the event pump.
func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, listenEvents(m.events))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - 4
		return m, nil

	case setupDoneMsg:
		m.ready = true
		// sync whatever was typed while the worker was starting
		m.session.Input(queryFor(m.input.Value()))
		return m, nil

	case setupErrMsg:
		m.setupErr = msg.err
		return m, tea.Quit

	case eventMsg:
		return m.handleEvent(msg.event)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.selected = ""
		return m, tea.Quit

	case "enter":
		if m.cursor >= 0 && m.cursor < len(m.candidates) {
			m.selected = m.candidates[m.cursor]
		}
		return m, tea.Quit

	case "up", "ctrl+p":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case "down", "ctrl+n":
		if m.cursor < len(m.candidates)-1 {
			m.cursor++
		}
		return m, nil
	}

	prev := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if v := m.input.Value(); v != prev {
		m.session.Input(queryFor(v))
	}
	return m, cmd
}

func (m model) handleEvent(e finder.Event) (tea.Model, tea.Cmd) {
	switch e := e.(type) {
	case finder.EventBegin:
		// worker is starting; the status line already says so

	case finder.EventFlush:
		m.querying = true
		m.pending = nil

	case finder.EventAppend:
		m.pending = append(m.pending, e.Candidates...)

	case finder.EventRefresh:
		m.candidates = m.pending
		m.pending = nil
		m.querying = false
		if m.cursor >= len(m.candidates) {
			m.cursor = len(m.candidates) - 1
		}
		if m.cursor < 0 {
			m.cursor = 0
		}

	case finder.EventDestroyed:
		return m, tea.Quit
	}

	return m, listenEvents(m.events)
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("winnow · %s · %s", m.mode, m.dir)))
	b.WriteByte('\n')
	b.WriteString(m.input.View())
	b.WriteByte('\n')

	terms := filter.Transform(m.input.Value())
	height := m.listHeight()
	start := 0
	if m.cursor >= height {
		start = m.cursor - height + 1
	}
	for i := start; i < len(m.candidates) && i < start+height; i++ {
		line := truncate(m.candidates[i], m.width-2)
		if i == m.cursor {
			b.WriteString(cursorStyle.Render("> "))
			b.WriteString(selectedStyle.Render(line))
		} else {
			b.WriteString("  ")
			b.WriteString(highlightLine(line, terms, m.matcher))
		}
		b.WriteByte('\n')
	}

	b.WriteString(statusStyle.Render(m.statusLine()))
	return b.String()
}

func (m model) statusLine() string {
	if m.setupErr != nil {
		return fmt.Sprintf("error: %v", m.setupErr)
	}
	if !m.ready {
		return "starting worker…"
	}
	status := fmt.Sprintf("%d candidates", len(m.candidates))
	if m.querying {
		status += " · filtering"
	}
	return status
}

// listHeight is the number of candidate rows that fit between the input and
// the status line.
func (m model) listHeight() int {
	h := m.height - 4
	if h < 1 {
		return 1
	}
	return h
}

func queryFor(value string) string {
	if value == "" {
		return blankPattern
	}
	return value
}

// truncate cuts s to at most max runes, on a rune boundary.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

func listenEvents(ch <-chan finder.Event) tea.Cmd {
	return func() tea.Msg {
		return eventMsg{event: <-ch}
	}
}
