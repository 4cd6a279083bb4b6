package session

import (
	"strings"
	"time"

	"github.com/corpusai/corpus-cli/internal/actor"
	"github.com/corpusai/corpus-cli/internal/channel"
	"github.com/corpusai/corpus-cli/internal/wire"
)

// Reduce is the session reducer. It is pure: all timestamps and ids arrive
// through inputs, and all I/O leaves as effects.
func Reduce(state State, input actor.Input) (State, []actor.Effect) {
	switch in := input.(type) {
	case cmdSendMessage:
		return reduceSendMessage(state, in)
	case evChannelStateChanged:
		state.ChannelState = in.State
		return state, nil
	case evChannelMessage:
		return reduceChannelMessage(state, in)
	case evChannelTyping:
		state.Typing = true
		return state, nil
	case evChannelError:
		return reduceChannelError(state, in)
	case evTimerFired:
		return reduceTimerFired(state, in)
	case evFallbackSucceeded:
		return reduceFallbackSucceeded(state, in)
	case evFallbackFailed:
		return reduceFallbackFailed(state, in)
	default:
		return state, nil
	}
}

func reduceSendMessage(state State, cmd cmdSendMessage) (State, []actor.Effect) {
	text := strings.TrimSpace(cmd.Text)
	if text == "" {
		return state, nil
	}
	if state.SendInFlight {
		// A fallback round trip is outstanding; drop the duplicate send.
		return state, nil
	}

	userMsg := wire.Message{
		ID:        cmd.MessageID,
		Role:      wire.RoleUser,
		Content:   text,
		CreatedAt: time.UnixMilli(cmd.NowMs),
	}
	if len(state.DocumentIDs) > 0 {
		userMsg.Metadata = &wire.MessageMetadata{DocumentIDs: state.DocumentIDs}
	}

	// Optimistic append: the user message lands regardless of the transport
	// outcome and is never removed.
	state.Messages = append(state.Messages, userMsg)
	state.LastError = ""
	state.Progress = Progress{Stage: StageSearching, Percent: 0}

	effects := []actor.Effect{
		effCancelTimer{Name: timerProgressReset},
		effStartTimer{Name: timerStageAnalyzing, AfterMs: stageAnalyzingAfterMs},
		effStartTimer{Name: timerStageGenerating, AfterMs: stageGeneratingAfterMs},
	}

	contextData := map[string]any{
		"conversation_size": len(state.Messages),
	}

	if state.ChannelState == channel.StateOpen && state.ConversationID != "" {
		// Channel path: non-blocking dispatch, resolution arrives later as an
		// inbound event. The in-flight guard releases with this step.
		effects = append(effects, effChannelSend{Frame: wire.OutboundFrame{
			Type:        wire.FrameMessage,
			Content:     text,
			DocumentIDs: state.DocumentIDs,
			Model:       state.Model,
			ContextData: contextData,
		}})
		return state, effects
	}

	// Fallback path: one bounded request; the guard holds until it resolves.
	state.SendInFlight = true
	effects = append(effects, effFallbackRequest{Request: wire.ChatRequest{
		Message:        text,
		ConversationID: state.ConversationID,
		DocumentIDs:    state.DocumentIDs,
		Model:          state.Model,
		Stream:         false,
		ContextData:    contextData,
	}})
	return state, effects
}

func reduceChannelMessage(state State, ev evChannelMessage) (State, []actor.Effect) {
	msg := ev.Message
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.UnixMilli(ev.NowMs)
	}
	// Appended unconditionally: a channel reply landing after the fallback
	// already resolved still applies, so both results stay visible.
	state.Messages = append(state.Messages, msg)
	state.Typing = false
	state.Progress = Progress{Stage: StageDone, Percent: 100}
	return state, []actor.Effect{
		effCancelTimer{Name: timerStageAnalyzing},
		effCancelTimer{Name: timerStageGenerating},
		effStartTimer{Name: timerProgressReset, AfterMs: progressResetAfterMs},
	}
}

func reduceChannelError(state State, ev evChannelError) (State, []actor.Effect) {
	// Server-signaled errors clear in-progress UI state but never append a
	// transcript entry themselves; surfacing one is the caller's choice.
	state.Typing = false
	state.Progress = Progress{Stage: StageIdle, Percent: 0}
	state.LastError = ev.Text
	return state, []actor.Effect{
		effCancelTimer{Name: timerStageAnalyzing},
		effCancelTimer{Name: timerStageGenerating},
	}
}

func reduceTimerFired(state State, ev evTimerFired) (State, []actor.Effect) {
	switch ev.Name {
	case timerStageAnalyzing:
		// Advance only from the expected predecessor; a terminal stage is
		// never regressed by a late cosmetic tick.
		if state.Progress.Stage == StageSearching {
			state.Progress = Progress{Stage: StageAnalyzing, Percent: 25}
		}
		return state, nil
	case timerStageGenerating:
		if state.Progress.Stage == StageSearching || state.Progress.Stage == StageAnalyzing {
			state.Progress = Progress{Stage: StageGenerating, Percent: 50}
		}
		return state, nil
	case timerProgressReset:
		if state.Progress.Stage == StageDone {
			state.Progress = Progress{Stage: StageIdle, Percent: 0}
		}
		return state, nil
	default:
		return state, nil
	}
}

func reduceFallbackSucceeded(state State, ev evFallbackSucceeded) (State, []actor.Effect) {
	state.SendInFlight = false

	var effects []actor.Effect
	newConversation := state.ConversationID == "" && ev.ConversationID != ""
	if ev.ConversationID != "" {
		state.ConversationID = ev.ConversationID
	}

	msg := ev.Message
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.UnixMilli(ev.NowMs)
	}
	state.Messages = append(state.Messages, msg)
	state.Typing = false
	state.Progress = Progress{Stage: StageDone, Percent: 100}

	effects = append(effects,
		effCancelTimer{Name: timerStageAnalyzing},
		effCancelTimer{Name: timerStageGenerating},
		effStartTimer{Name: timerProgressReset, AfterMs: progressResetAfterMs},
	)
	if newConversation {
		// A realtime channel only exists once the server has issued an id.
		effects = append(effects, effConnectChannel{ConversationID: state.ConversationID})
	}
	return state, effects
}

func reduceFallbackFailed(state State, ev evFallbackFailed) (State, []actor.Effect) {
	state.SendInFlight = false
	state.Typing = false
	state.LastError = ev.ErrText
	state.Progress = Progress{Stage: StageIdle, Percent: 0}

	// The failure is visible twice: the transient banner above and a
	// permanent error-substitute assistant entry. The user message that
	// triggered it stays in place.
	state.Messages = append(state.Messages, wire.Message{
		ID:        ev.MessageID,
		Role:      wire.RoleAssistant,
		Content:   "Sorry, I could not answer that: " + ev.ErrText,
		CreatedAt: time.UnixMilli(ev.NowMs),
	})

	return state, []actor.Effect{
		effCancelTimer{Name: timerStageAnalyzing},
		effCancelTimer{Name: timerStageGenerating},
	}
}
