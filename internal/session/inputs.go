package session

import (
	"github.com/corpusai/corpus-cli/internal/actor"
	"github.com/corpusai/corpus-cli/internal/channel"
	"github.com/corpusai/corpus-cli/internal/wire"
)

// Timer names used by the cosmetic stage simulation.
const (
	timerStageAnalyzing  = "stage-analyzing"
	timerStageGenerating = "stage-generating"
	timerProgressReset   = "progress-reset"
)

// Stage simulation schedule, relative to the start of a send.
const (
	stageAnalyzingAfterMs  = 500
	stageGeneratingAfterMs = 2000
	progressResetAfterMs   = 1500
)

// Command is a marker interface for caller requests consumed by the reducer.
type Command interface {
	actor.Input
	isSessionCommand()
}

// Event is a marker interface for runtime observations consumed by the reducer.
type Event interface {
	actor.Input
	isSessionEvent()
}

// cmdSendMessage submits one user message.
//
// MessageID and NowMs are generated by the caller so the reducer stays
// deterministic.
type cmdSendMessage struct {
	actor.InputBase
	Text      string
	MessageID string
	NowMs     int64
}

func (cmdSendMessage) isSessionCommand() {}

// evChannelStateChanged mirrors a transport lifecycle transition.
type evChannelStateChanged struct {
	actor.InputBase
	State channel.State
}

func (evChannelStateChanged) isSessionEvent() {}

// evChannelMessage carries an assistant message delivered over the channel.
type evChannelMessage struct {
	actor.InputBase
	Message wire.Message
	NowMs   int64
}

func (evChannelMessage) isSessionEvent() {}

// evChannelTyping signals the assistant is composing. It may arrive zero or
// many times before a terminal message/error event.
type evChannelTyping struct {
	actor.InputBase
}

func (evChannelTyping) isSessionEvent() {}

// evChannelError carries a server-signaled application error from the channel.
type evChannelError struct {
	actor.InputBase
	Text string
}

func (evChannelError) isSessionEvent() {}

// evTimerFired reports a named cosmetic timer elapsing.
type evTimerFired struct {
	actor.InputBase
	Name string
}

func (evTimerFired) isSessionEvent() {}

// evFallbackSucceeded reports a successful one-shot chat request.
type evFallbackSucceeded struct {
	actor.InputBase
	ConversationID string
	Message        wire.Message
	NowMs          int64
}

func (evFallbackSucceeded) isSessionEvent() {}

// evFallbackFailed reports a failed one-shot chat request (non-2xx response,
// network fault, or timeout; all three look identical here).
//
// MessageID identifies the synthesized error-substitute assistant message.
type evFallbackFailed struct {
	actor.InputBase
	ErrText   string
	MessageID string
	NowMs     int64
}

func (evFallbackFailed) isSessionEvent() {}
