// Package ui is the toggleable chat panel: a viewport transcript over a
// textarea input, driven by the chat session. All I/O runs in commands; the
// update loop itself never blocks and never lets an error escape.
package ui

import (
	"context"
	"errors"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"mika/internal/chat"
	"mika/internal/render"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	userLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	mikaLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	statusStyle    = lipgloss.NewStyle().Faint(true)
	closedStyle    = lipgloss.NewStyle().Faint(true).Padding(1, 0)
)

type submitResultMsg struct{ err error }

type Model struct {
	session  *chat.Session
	renderer *render.Renderer

	viewport viewport.Model
	input    textarea.Model
	spin     spinner.Model

	open    bool
	width   int
	height  int
	status  string
	pending bool
}

func New(session *chat.Session, renderer *render.Renderer) Model {
	input := textarea.New()
	input.Placeholder = "Ask Mika..."
	input.Prompt = "| "
	input.SetHeight(2)
	input.CharLimit = 4096
	input.ShowLineNumbers = false
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))

	vp := viewport.New(80, 20)

	m := Model{
		session:  session,
		renderer: renderer,
		viewport: vp,
		input:    input,
		spin:     spin,
		open:     true,
	}
	m.refreshTranscript()
	return m
}

func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "ctrl+t":
			m.open = !m.open
			return m, nil
		case "ctrl+y":
			m.status = m.copySQLPayload()
			return m, nil
		case "ctrl+k":
			m.status = m.copyLastFence()
			return m, nil
		case "enter":
			return m.submit()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-6, 3)
		m.input.SetWidth(msg.Width - 2)
		m.refreshTranscript()
		return m, nil

	case spinner.TickMsg:
		if !m.pending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case submitResultMsg:
		m.pending = false
		m.status = ""
		if msg.err != nil {
			m.status = statusForError(msg.err)
		}
		m.refreshTranscript()
		return m, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// submit dispatches one user turn; the send action is disabled while a
// request is in flight.
func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.pending {
		return m, nil
	}
	text := m.input.Value()
	if strings.TrimSpace(text) == "" {
		return m, nil
	}

	m.input.Reset()
	m.pending = true
	m.status = "Thinking..."
	session := m.session
	return m, tea.Batch(
		m.spin.Tick,
		func() tea.Msg {
			return submitResultMsg{err: session.Submit(context.Background(), text)}
		},
	)
}

func statusForError(err error) string {
	switch {
	case errors.Is(err, chat.ErrNotReady):
		return "Not configured. Run `mika login` first."
	case errors.Is(err, chat.ErrBusy):
		return "Still waiting on the previous reply."
	case errors.Is(err, chat.ErrEmptyPrompt):
		return ""
	default:
		return err.Error()
	}
}

func (m *Model) refreshTranscript() {
	m.viewport.SetContent(Transcript(m.renderer, m.session.Messages()))
	m.viewport.GotoBottom()
}

// copySQLPayload puts the most recent reply's standalone SQL on the
// clipboard.
func (m *Model) copySQLPayload() string {
	msgs := m.session.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Sender == chat.SenderAssistant && msgs[i].CodePayload != "" {
			if err := clipboard.WriteAll(msgs[i].CodePayload); err != nil {
				return "Copy failed: " + err.Error()
			}
			return "SQL copied to clipboard."
		}
	}
	return "No SQL to copy."
}

// copyLastFence puts the last fenced code block of the latest reply on the
// clipboard.
func (m *Model) copyLastFence() string {
	msgs := m.session.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Sender != chat.SenderAssistant {
			continue
		}
		code, _, ok := render.LastFencedBlock(msgs[i].Text)
		if !ok {
			break
		}
		if err := clipboard.WriteAll(code); err != nil {
			return "Copy failed: " + err.Error()
		}
		return "Code copied to clipboard."
	}
	return "No code block to copy."
}

func (m Model) View() string {
	if !m.open {
		return closedStyle.Render("Mika chat hidden — ctrl+t to open, ctrl+c to quit.")
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Mika"))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	if m.pending {
		b.WriteString(m.spin.View())
		b.WriteString(" Waiting for Mika...\n")
	} else {
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}
	footer := m.status
	if footer == "" {
		footer = "enter send · ctrl+y copy SQL · ctrl+k copy code · ctrl+t hide · ctrl+c quit"
	}
	b.WriteString(statusStyle.Render(footer))
	return b.String()
}

// Transcript renders the full message log in display order.
func Transcript(renderer *render.Renderer, msgs []chat.Message) string {
	var b strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			b.WriteString("\n")
		}
		if msg.Sender == chat.SenderUser {
			b.WriteString(userLabelStyle.Render("You"))
		} else {
			b.WriteString(mikaLabelStyle.Render("Mika"))
		}
		b.WriteString("\n")
		b.WriteString(strings.TrimRight(renderer.Render(msg), "\n"))
		b.WriteString("\n")
	}
	return b.String()
}
