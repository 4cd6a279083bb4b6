package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/corpusai/corpus-cli/internal/actor"
	"github.com/corpusai/corpus-cli/internal/channel"
	"github.com/corpusai/corpus-cli/internal/wire"
	"github.com/corpusai/corpus-cli/pkg/logger"
)

// Listener receives conversation updates. Methods are invoked from the
// orchestrator's event loop, one at a time, and must not block.
type Listener interface {
	// OnSessionStarted is called once when the server issues a conversation id.
	OnSessionStarted(conversationID string)
	// OnTranscriptAppend delivers each new transcript entry in order.
	OnTranscriptAppend(msg wire.Message)
	// OnTyping reports typing indicator changes.
	OnTyping(active bool)
	// OnProgress reports progress display changes.
	OnProgress(p Progress)
	// OnError delivers the transient error banner text.
	OnError(message string)
	// OnChannelState reports transport lifecycle changes.
	OnChannelState(s channel.State)
}

// Channel is the transport contract the orchestrator relies on. The channel
// object itself stays exclusively owned by the connection manager; the
// orchestrator never touches socket internals.
type Channel interface {
	ChannelTransport
	Disconnect()
	OnPayload(fn func([]byte))
	OnStateChange(fn func(channel.State))
}

// Options configures an Orchestrator.
type Options struct {
	// ConversationID resumes an existing conversation; empty starts fresh.
	ConversationID string
	// Model is the assistant model requested for chat turns.
	Model string
	// DocumentIDs is the selected-document scope attached to each turn.
	DocumentIDs []string
	// RequestTimeout bounds the fallback chat request.
	RequestTimeout time.Duration
	// Clock overrides the time source (tests).
	Clock actor.Clock
	// Listener receives conversation updates; may be nil.
	Listener Listener
}

// Orchestrator owns one conversation end to end.
type Orchestrator struct {
	a        *actor.Actor[State]
	runtime  *effectRuntime
	ch       Channel
	clock    actor.Clock
	listener Listener
}

// New creates an orchestrator over the given transport and chat API.
// channelURL maps a conversation id to its channel endpoint.
func New(ch Channel, api ChatAPI, channelURL func(conversationID string) string, opts Options) *Orchestrator {
	clock := opts.Clock
	if clock == nil {
		clock = actor.RealClock{}
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	o := &Orchestrator{
		ch:       ch,
		clock:    clock,
		listener: opts.Listener,
	}
	o.runtime = newEffectRuntime(ch, api, channelURL, clock, timeout)
	o.a = actor.New(
		NewState(opts.ConversationID, opts.Model, opts.DocumentIDs),
		Reduce,
		o.runtime,
		actor.WithHooks(actor.Hooks[State]{OnTransition: o.notifyTransition}),
	)
	return o
}

// Start wires the transport into the mailbox and launches the event loop.
// When resuming a known conversation the channel is opened immediately;
// otherwise it opens after the first server-confirmed exchange.
func (o *Orchestrator) Start() {
	o.ch.OnPayload(o.handleChannelPayload)
	o.ch.OnStateChange(func(s channel.State) {
		o.a.Enqueue(ChannelStateChanged(s))
	})
	o.a.Start()

	if id := o.a.State().ConversationID; id != "" {
		go o.runtime.connectChannel(id)
	}
}

// Close tears the conversation down: the channel is disconnected (which
// suppresses reconnection) and the event loop stops. History is not kept
// client-side; the server remains authoritative.
func (o *Orchestrator) Close() {
	o.ch.Disconnect()
	o.a.Stop()
}

// SendUserMessage submits one user message. Whitespace-only input and sends
// issued while a fallback round trip is outstanding are dropped inside the
// reducer without any network activity.
func (o *Orchestrator) SendUserMessage(text string) {
	o.a.Enqueue(SendMessage(text, uuid.NewString(), o.clock.Now().UnixMilli()))
}

// Snapshot returns a copy of the current conversation state.
func (o *Orchestrator) Snapshot() State {
	return o.a.State()
}

// handleChannelPayload interprets a raw inbound frame and feeds the matching
// event into the mailbox. The transport delivers payloads opaque; frame
// typing is decided here.
func (o *Orchestrator) handleChannelPayload(data []byte) {
	frame, err := wire.ParseInbound(data)
	if err != nil {
		// Malformed frames are logged and dropped; the close/reconnect path
		// owns transport-level recovery.
		logger.Warnf("dropping inbound channel frame: %v", err)
		return
	}
	switch frame.Type {
	case wire.FrameMessage:
		o.a.Enqueue(ChannelMessage(*frame.Message, o.clock.Now().UnixMilli()))
	case wire.FrameTyping:
		o.a.Enqueue(ChannelTyping())
	case wire.FrameError:
		o.a.Enqueue(ChannelError(frame.ErrorText))
	}
}

// notifyTransition diffs consecutive states and forwards the deltas to the
// listener. It runs on the event loop, so callbacks observe a consistent
// ordering.
func (o *Orchestrator) notifyTransition(prev, next State, _ actor.Input) {
	if o.listener == nil {
		return
	}
	if prev.ConversationID == "" && next.ConversationID != "" {
		o.listener.OnSessionStarted(next.ConversationID)
	}
	for _, msg := range next.Messages[len(prev.Messages):] {
		o.listener.OnTranscriptAppend(msg)
	}
	if prev.Typing != next.Typing {
		o.listener.OnTyping(next.Typing)
	}
	if prev.Progress != next.Progress {
		o.listener.OnProgress(next.Progress)
	}
	if next.LastError != "" && next.LastError != prev.LastError {
		o.listener.OnError(next.LastError)
	}
	if prev.ChannelState != next.ChannelState {
		o.listener.OnChannelState(next.ChannelState)
	}
}
