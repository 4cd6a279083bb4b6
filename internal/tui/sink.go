package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/corpusai/corpus-cli/internal/channel"
	"github.com/corpusai/corpus-cli/internal/session"
	"github.com/corpusai/corpus-cli/internal/wire"
	"github.com/corpusai/corpus-cli/pkg/logger"
)

type sessionStartedMsg struct{ conversationID string }
type transcriptMsg struct{ message wire.Message }
type typingMsg struct{ active bool }
type progressMsg struct{ progress session.Progress }
type sessionErrorMsg struct{ text string }
type channelStateMsg struct{ state channel.State }

// Sink adapts conversation updates into bubbletea messages. It implements
// session.Listener; the model drains the queue with waitEvent.
type Sink struct {
	ch chan tea.Msg
}

// NewSink returns a sink with a bounded queue.
func NewSink() *Sink {
	return &Sink{ch: make(chan tea.Msg, 256)}
}

// post never blocks the event loop; on a full queue the update is dropped.
func (s *Sink) post(msg tea.Msg) {
	select {
	case s.ch <- msg:
	default:
		logger.Warnf("ui event queue full, dropping %T", msg)
	}
}

func (s *Sink) OnSessionStarted(conversationID string) {
	s.post(sessionStartedMsg{conversationID: conversationID})
}

func (s *Sink) OnTranscriptAppend(msg wire.Message) {
	s.post(transcriptMsg{message: msg})
}

func (s *Sink) OnTyping(active bool) {
	s.post(typingMsg{active: active})
}

func (s *Sink) OnProgress(p session.Progress) {
	s.post(progressMsg{progress: p})
}

func (s *Sink) OnError(message string) {
	s.post(sessionErrorMsg{text: message})
}

func (s *Sink) OnChannelState(st channel.State) {
	s.post(channelStateMsg{state: st})
}

var _ session.Listener = (*Sink)(nil)

// waitEvent blocks on the sink queue and resolves to the next update.
func waitEvent(s *Sink) tea.Cmd {
	return func() tea.Msg {
		return <-s.ch
	}
}
