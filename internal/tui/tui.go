// Package tui renders one chat conversation in the terminal: a scrollback
// transcript, a typing/progress status line, and an input field. All
// conversation state arrives as listener events; the model never reaches into
// the session loop.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/corpusai/corpus-cli/internal/channel"
	"github.com/corpusai/corpus-cli/internal/session"
	"github.com/corpusai/corpus-cli/internal/wire"
)

// Conversation is the slice of the orchestrator the UI drives.
type Conversation interface {
	SendUserMessage(text string)
}

type theme struct {
	header    lipgloss.Style
	user      lipgloss.Style
	assistant lipgloss.Style
	citation  lipgloss.Style
	status    lipgloss.Style
	errText   lipgloss.Style
	inputBox  lipgloss.Style
	help      lipgloss.Style
}

func newTheme() theme {
	blue := lipgloss.Color("#01cdfe")
	mint := lipgloss.Color("#05ffa1")
	pink := lipgloss.Color("#ff71ce")
	muted := lipgloss.Color("#9ca3d8")

	return theme{
		header: lipgloss.NewStyle().
			Foreground(blue).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(muted),
		user:      lipgloss.NewStyle().Foreground(mint).Bold(true),
		assistant: lipgloss.NewStyle().Foreground(blue).Bold(true),
		citation:  lipgloss.NewStyle().Foreground(muted),
		status:    lipgloss.NewStyle().Foreground(blue),
		errText:   lipgloss.NewStyle().Foreground(pink).Bold(true),
		inputBox: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(mint).
			Padding(0, 1),
		help: lipgloss.NewStyle().Foreground(muted),
	}
}

// Model is the bubbletea model for one conversation.
type Model struct {
	conv Conversation
	sink *Sink

	conversationID string
	messages       []wire.Message
	typing         bool
	progress       session.Progress
	lastError      string
	channelState   channel.State

	transcript viewport.Model
	input      textinput.Model
	spinner    spinner.Model
	theme      theme

	width  int
	height int
	ready  bool
}

// New builds the model. sink must be the session.Listener registered with
// the orchestrator that conv fronts.
func New(conv Conversation, sink *Sink) Model {
	input := textinput.New()
	input.Prompt = "❯ "
	input.Placeholder = "Ask about your documents"
	input.CharLimit = 4000
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#05ffa1"))

	transcript := viewport.New(0, 0)
	transcript.MouseWheelEnabled = true

	return Model{
		conv:         conv,
		sink:         sink,
		channelState: channel.StateClosed,
		transcript:   transcript,
		input:        input,
		spinner:      sp,
		theme:        newTheme(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitEvent(m.sink))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case sessionStartedMsg:
		m.conversationID = msg.conversationID
		cmds = append(cmds, waitEvent(m.sink))
	case transcriptMsg:
		m.messages = append(m.messages, msg.message)
		m.renderTranscript()
		m.transcript.GotoBottom()
		cmds = append(cmds, waitEvent(m.sink))
	case typingMsg:
		m.typing = msg.active
		cmds = append(cmds, waitEvent(m.sink))
	case progressMsg:
		m.progress = msg.progress
		if m.progress.Stage != session.StageIdle {
			m.lastError = ""
		}
		cmds = append(cmds, waitEvent(m.sink))
	case sessionErrorMsg:
		m.lastError = msg.text
		cmds = append(cmds, waitEvent(m.sink))
	case channelStateMsg:
		m.channelState = msg.state
		cmds = append(cmds, waitEvent(m.sink))
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.renderTranscript()
		m.ready = true
	case tea.MouseMsg:
		var cmd tea.Cmd
		m.transcript, cmd = m.transcript.Update(msg)
		cmds = append(cmds, cmd)
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text != "" {
				m.conv.SendUserMessage(text)
				m.input.Reset()
			}
			return m, tea.Batch(cmds...)
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.transcript, cmd = m.transcript.Update(msg)
			cmds = append(cmds, cmd)
			return m, tea.Batch(cmds...)
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) resize() {
	const chromeLines = 5 // header, status, input box borders
	h := m.height - chromeLines
	if h < 3 {
		h = 3
	}
	m.transcript.Width = m.width
	m.transcript.Height = h
	m.input.Width = m.width - 6
}

func (m *Model) renderTranscript() {
	var b strings.Builder
	for i, msg := range m.messages {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.renderMessage(msg))
	}
	m.transcript.SetContent(b.String())
}

func (m *Model) renderMessage(msg wire.Message) string {
	label := m.theme.assistant.Render("assistant")
	if msg.Role == wire.RoleUser {
		label = m.theme.user.Render("you")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", label, msg.CreatedAt.Format("15:04:05"))
	b.WriteString(msg.Content)
	b.WriteString("\n")

	if msg.Metadata != nil && len(msg.Metadata.Citations) > 0 {
		var refs []string
		for _, c := range msg.Metadata.Citations {
			title := c.Title
			if title == "" {
				title = c.DocumentID
			}
			refs = append(refs, title)
		}
		b.WriteString(m.theme.citation.Render("sources: " + strings.Join(refs, ", ")))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) statusLine() string {
	if m.lastError != "" {
		return m.theme.errText.Render("error: " + m.lastError)
	}
	if m.typing {
		return m.theme.status.Render(m.spinner.View() + " assistant is typing")
	}
	switch m.progress.Stage {
	case session.StageSearching, session.StageAnalyzing, session.StageGenerating:
		return m.theme.status.Render(fmt.Sprintf("%s %s documents (%d%%)",
			m.spinner.View(), m.progress.Stage, m.progress.Percent))
	case session.StageDone:
		return m.theme.status.Render("done")
	default:
		return m.theme.help.Render("enter to send · esc to quit")
	}
}

func (m Model) headerLine() string {
	title := "corpus chat"
	if m.conversationID != "" {
		title += " · " + m.conversationID
	}
	return m.theme.header.Render(fmt.Sprintf("%s · channel %s", title, m.channelState))
}

func (m Model) View() string {
	if !m.ready {
		return "starting..."
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerLine(),
		m.transcript.View(),
		m.statusLine(),
		m.theme.inputBox.Render(m.input.View()),
	)
}
