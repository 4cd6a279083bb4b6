package session

import (
	framework "github.com/corpusai/corpus-cli/internal/actor"
	"github.com/corpusai/corpus-cli/internal/channel"
	"github.com/corpusai/corpus-cli/internal/wire"
)

// SendMessage returns a command input that submits one user message.
// messageID is the client-generated id for the optimistic transcript entry.
func SendMessage(text, messageID string, nowMs int64) framework.Input {
	return cmdSendMessage{Text: text, MessageID: messageID, NowMs: nowMs}
}

// ChannelStateChanged returns an event input mirroring a transport
// lifecycle transition.
func ChannelStateChanged(s channel.State) framework.Input {
	return evChannelStateChanged{State: s}
}

// ChannelMessage returns an event input for an assistant message delivered
// over the channel.
func ChannelMessage(msg wire.Message, nowMs int64) framework.Input {
	return evChannelMessage{Message: msg, NowMs: nowMs}
}

// ChannelTyping returns an event input for an inbound typing frame.
func ChannelTyping() framework.Input {
	return evChannelTyping{}
}

// ChannelError returns an event input for an inbound error frame.
func ChannelError(text string) framework.Input {
	return evChannelError{Text: text}
}

// TimerFired returns an event input for a named cosmetic timer elapsing.
func TimerFired(name string) framework.Input {
	return evTimerFired{Name: name}
}

// FallbackSucceeded returns an event input for a successful one-shot chat
// request.
func FallbackSucceeded(conversationID string, msg wire.Message, nowMs int64) framework.Input {
	return evFallbackSucceeded{ConversationID: conversationID, Message: msg, NowMs: nowMs}
}

// FallbackFailed returns an event input for a failed one-shot chat request.
// messageID identifies the synthesized error-substitute assistant entry.
func FallbackFailed(errText, messageID string, nowMs int64) framework.Input {
	return evFallbackFailed{ErrText: errText, MessageID: messageID, NowMs: nowMs}
}
