package session

import (
	"github.com/corpusai/corpus-cli/internal/actor"
	"github.com/corpusai/corpus-cli/internal/wire"
)

// Effect is a marker interface for effects emitted by the session reducer.
type Effect interface {
	actor.Effect
	isSessionEffect()
}

// effStartTimer arms a named cosmetic timer. Re-arming a name supersedes the
// previous timer.
type effStartTimer struct {
	actor.EffectBase
	Name    string
	AfterMs int64
}

func (effStartTimer) isSessionEffect() {}

// effCancelTimer cancels a named timer if armed.
type effCancelTimer struct {
	actor.EffectBase
	Name string
}

func (effCancelTimer) isSessionEffect() {}

// effChannelSend dispatches a frame over the realtime channel without
// blocking. A drop on a channel that closed meanwhile is logged by the
// transport and never retried.
type effChannelSend struct {
	actor.EffectBase
	Frame wire.OutboundFrame
}

func (effChannelSend) isSessionEffect() {}

// effFallbackRequest issues the bounded one-shot chat request.
type effFallbackRequest struct {
	actor.EffectBase
	Request wire.ChatRequest
}

func (effFallbackRequest) isSessionEffect() {}

// effConnectChannel opens the realtime channel for a conversation. Emitted
// once a server-issued conversation id becomes known.
type effConnectChannel struct {
	actor.EffectBase
	ConversationID string
}

func (effConnectChannel) isSessionEffect() {}
