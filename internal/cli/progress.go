package cli

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Task display states for the progress table.
const (
	taskQueued = iota
	taskRunning
	taskDone
	taskFailed
	taskSkipped
)

// taskMsg is one task lifecycle event forwarded from the task graph.
type taskMsg struct {
	name   string
	state  int
	cached bool
	dur    time.Duration
	err    error
}

// runDoneMsg signals that the pipeline returned and the table can close.
type runDoneMsg struct{}

// maxVisibleTasks bounds the live region so large runs don't scroll the
// terminal away.
const maxVisibleTasks = 12

// progressModel is the bubbletea model behind --progress: a counter line
// plus the most recently active tasks.
type progressModel struct {
	order  []string
	state  map[string]taskMsg
	counts [taskSkipped + 1]int
	total  int
	quit   bool
}

func newProgressModel() progressModel {
	return progressModel{state: make(map[string]taskMsg)}
}

func (m progressModel) Init() tea.Cmd {
	return nil
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case taskMsg:
		if _, seen := m.state[msg.name]; !seen {
			m.order = append(m.order, msg.name)
			m.total++
		} else {
			m.counts[m.state[msg.name].state]--
		}
		m.state[msg.name] = msg
		m.counts[msg.state]++
	case runDoneMsg:
		m.quit = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Interrupt
		}
	}
	return m, nil
}

func (m progressModel) View() string {
	if m.quit {
		return ""
	}
	var b strings.Builder

	b.WriteString(StyleTitle.Render("eftrich"))
	b.WriteString(StyleDim.Render(fmt.Sprintf(
		"  %d tasks · %d running · %d done · %d failed · %d skipped\n",
		m.total, m.counts[taskRunning], m.counts[taskDone],
		m.counts[taskFailed], m.counts[taskSkipped])))

	// Show running tasks first, then the most recent terminal ones.
	var running, finished []string
	for _, name := range m.order {
		switch m.state[name].state {
		case taskRunning:
			running = append(running, name)
		case taskDone, taskFailed, taskSkipped:
			finished = append(finished, name)
		}
	}
	if len(finished) > maxVisibleTasks-len(running) {
		finished = finished[len(finished)-(maxVisibleTasks-len(running)):]
	}
	for _, name := range finished {
		b.WriteString(m.renderTask(name))
	}
	for _, name := range running {
		b.WriteString(m.renderTask(name))
	}
	return b.String()
}

func (m progressModel) renderTask(name string) string {
	t := m.state[name]
	switch t.state {
	case taskRunning:
		return styleIconSpinner.Render("…") + " " + StyleValue.Render(name) + "\n"
	case taskDone:
		note := styleComputed.Render(iconFresh)
		if t.cached {
			note = styleCached.Render(iconCached)
		}
		return styleIconSuccess.Render(iconSuccess) + " " + name +
			StyleDim.Render(fmt.Sprintf(" %s (%s)", note, t.dur.Round(time.Millisecond))) + "\n"
	case taskFailed:
		return styleIconError.Render(iconError) + " " + name +
			StyleDim.Render(fmt.Sprintf(" %v", t.err)) + "\n"
	case taskSkipped:
		return StyleDim.Render("- " + name + " skipped\n")
	}
	return ""
}
