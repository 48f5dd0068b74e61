package chat

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type turnMsg struct {
	result *TurnResult
	err    error
}

type tuiModel struct {
	ctx     context.Context
	session *Session

	input   textinput.Model
	history []string
	waiting bool
	err     error

	width  int
	height int
}

func newTUIModel(ctx context.Context, s *Session) tuiModel {
	ti := textinput.New()
	ti.Placeholder = "Say something (esc to quit)"
	ti.Prompt = "> "
	ti.CharLimit = 4096
	ti.Focus()

	return tuiModel{
		ctx:     ctx,
		session: s,
		input:   ti,
	}
}

func (m tuiModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - 4
		return m, nil

	case turnMsg:
		m.waiting = false
		if msg.err != nil {
			m.err = msg.err
			m.history = append(m.history, RenderError(msg.err))
			return m, nil
		}
		m.err = nil
		m.history = append(m.history,
			RenderSnapshot(msg.result),
			msg.result.Reply,
			RenderTrace(msg.result),
			"",
		)
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.waiting {
				return m, nil
			}
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			m.input.Reset()
			m.waiting = true
			m.history = append(m.history, "> "+text)
			return m, m.turnCmd(text)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m tuiModel) turnCmd(text string) tea.Cmd {
	return func() tea.Msg {
		tr, err := m.session.Do(m.ctx, text)
		return turnMsg{result: tr, err: err}
	}
}

func (m tuiModel) View() string {
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render("routeprobe chat  alias=" + m.session.Alias))
	b.WriteString("\n\n")

	// Show as much of the tail of the history as the terminal fits.
	lines := strings.Split(strings.Join(m.history, "\n"), "\n")
	budget := m.height - 5
	if budget > 0 && len(lines) > budget {
		lines = lines[len(lines)-budget:]
	}
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\n")

	if m.waiting {
		b.WriteString(labelStyle.Render("waiting for reply..."))
	} else {
		b.WriteString(m.input.View())
	}
	b.WriteString("\n")
	return b.String()
}
