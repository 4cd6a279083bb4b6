// Package session orchestrates one chat conversation: it owns the transcript,
// decides per outgoing message between the realtime channel and the one-shot
// fallback request, and drives the progress display so the UI never shows a
// contradictory status.
//
// The orchestrator is built as a mailbox-fed pure reducer plus an effect
// runtime. Cosmetic stage timers and transport completions are independent
// producers; both land in one serialized mailbox, which makes their races
// deterministic and testable.
package session

import (
	"github.com/corpusai/corpus-cli/internal/channel"
	"github.com/corpusai/corpus-cli/internal/wire"
)

// Stage is the user-visible progress stage for the current exchange.
type Stage string

const (
	// StageIdle means no exchange is in progress.
	StageIdle Stage = "idle"
	// StageSearching means the corpus is (nominally) being searched.
	StageSearching Stage = "searching"
	// StageAnalyzing means retrieved passages are (nominally) being analyzed.
	StageAnalyzing Stage = "analyzing"
	// StageGenerating means the answer is (nominally) being generated.
	StageGenerating Stage = "generating"
	// StageDone means the exchange resolved.
	StageDone Stage = "done"
)

// Terminal reports whether a stage must not be regressed by a cosmetic timer.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageIdle
}

// Progress is the advisory progress display. It is last-writer-wins and
// carries no correctness weight; the transcript is the source of truth.
type Progress struct {
	Stage   Stage
	Percent int
}

// State is the loop-owned conversation state.
//
// The transcript is strictly append-only: entries never change id and are
// never reordered or removed, even when a later error follows a user message.
type State struct {
	// ConversationID is empty until the first server-confirmed exchange.
	ConversationID string

	// Messages is the append-only transcript.
	Messages []wire.Message

	// Progress is the advisory progress display.
	Progress Progress

	// Typing is true while the assistant is composing over the channel.
	Typing bool

	// LastError is the transient error banner text; cleared on each send.
	LastError string

	// SendInFlight guards against duplicate sends while a fallback request
	// is outstanding. Channel dispatch is non-blocking, so it acquires and
	// releases the guard within a single reducer step.
	SendInFlight bool

	// ChannelState mirrors the transport state, fed in as events.
	ChannelState channel.State

	// Model is the assistant model requested for chat turns.
	Model string
	// DocumentIDs is the selected-document scope attached to each turn.
	DocumentIDs []string
}

// NewState returns the initial conversation state. conversationID may be
// empty (a fresh conversation, created lazily on first send) or a known id
// when resuming from history.
func NewState(conversationID, model string, documentIDs []string) State {
	return State{
		ConversationID: conversationID,
		Progress:       Progress{Stage: StageIdle},
		ChannelState:   channel.StateClosed,
		Model:          model,
		DocumentIDs:    documentIDs,
	}
}
