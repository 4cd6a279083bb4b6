package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/corpusai/corpus-cli/internal/actor/actortest"
	"github.com/corpusai/corpus-cli/internal/channel"
	"github.com/corpusai/corpus-cli/internal/wire"
)

type fakeChannel struct {
	mu         sync.Mutex
	state      channel.State
	sent       [][]byte
	connects   []string
	connectErr error

	onPayload func([]byte)
	onState   func(channel.State)
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{state: channel.StateClosed}
}

func (f *fakeChannel) Connect(url string) error {
	f.mu.Lock()
	f.connects = append(f.connects, url)
	if f.connectErr != nil {
		err := f.connectErr
		f.mu.Unlock()
		return err
	}
	f.state = channel.StateOpen
	notify := f.onState
	f.mu.Unlock()
	if notify != nil {
		notify(channel.StateOpen)
	}
	return nil
}

func (f *fakeChannel) Disconnect() {
	f.mu.Lock()
	f.state = channel.StateClosed
	f.mu.Unlock()
}

func (f *fakeChannel) Send(payload []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != channel.StateOpen {
		return false
	}
	f.sent = append(f.sent, payload)
	return true
}

func (f *fakeChannel) OnPayload(fn func([]byte)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onPayload = fn
}

func (f *fakeChannel) OnStateChange(fn func(channel.State)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onState = fn
}

// deliver pushes a raw inbound frame as if it arrived over the wire.
func (f *fakeChannel) deliver(t *testing.T, raw string) {
	t.Helper()
	f.mu.Lock()
	fn := f.onPayload
	f.mu.Unlock()
	require.NotNil(t, fn, "payload handler not wired")
	fn([]byte(raw))
}

func (f *fakeChannel) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeChannel) sentPayload(i int) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[i]
}

func (f *fakeChannel) connectURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.connects...)
}

type fakeAPI struct {
	mu    sync.Mutex
	calls []wire.ChatRequest
	resp  *wire.ChatResponse
	err   error
}

func (f *fakeAPI) SendChat(_ context.Context, req wire.ChatRequest) (*wire.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recordingListener struct {
	mu         sync.Mutex
	sessionIDs []string
	appended   []wire.Message
	typing     []bool
	errors     []string
}

func (l *recordingListener) OnSessionStarted(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessionIDs = append(l.sessionIDs, id)
}

func (l *recordingListener) OnTranscriptAppend(msg wire.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.appended = append(l.appended, msg)
}

func (l *recordingListener) OnTyping(active bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.typing = append(l.typing, active)
}

func (l *recordingListener) OnProgress(Progress) {}

func (l *recordingListener) OnError(message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, message)
}

func (l *recordingListener) OnChannelState(channel.State) {}

func (l *recordingListener) appendedMessages() []wire.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]wire.Message(nil), l.appended...)
}

func (l *recordingListener) errorTexts() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.errors...)
}

func (l *recordingListener) startedIDs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.sessionIDs...)
}

func (l *recordingListener) typingSeq() []bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]bool(nil), l.typing...)
}

func testChannelURL(conversationID string) string {
	return "ws://test/ws/chat/" + conversationID
}

func waitForSession(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func startOrchestrator(t *testing.T, ch *fakeChannel, api ChatAPI, opts Options) (*Orchestrator, *recordingListener) {
	t.Helper()
	listener := &recordingListener{}
	opts.Listener = listener
	if opts.Model == "" {
		opts.Model = "gpt-4o-mini"
	}
	o := New(ch, api, testChannelURL, opts)
	o.Start()
	t.Cleanup(o.Close)
	return o, listener
}

func TestOrchestrator_FallbackRoundTrip(t *testing.T) {
	t.Parallel()

	ch := newFakeChannel()
	api := &fakeAPI{resp: &wire.ChatResponse{
		ConversationID: "abc",
		Response:       wire.Message{ID: "srv-1", Role: wire.RoleAssistant, Content: "A summary."},
	}}
	clock := actortest.NewFakeClock(time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC))
	o, listener := startOrchestrator(t, ch, api, Options{Clock: clock})

	o.SendUserMessage("Summarize this")

	waitForSession(t, func() bool { return len(o.Snapshot().Messages) == 2 }, "transcript never reached 2 entries")

	st := o.Snapshot()
	require.Equal(t, "abc", st.ConversationID)
	require.Equal(t, wire.RoleUser, st.Messages[0].Role)
	require.Equal(t, "Summarize this", st.Messages[0].Content)
	require.Equal(t, clock.Now().UnixMilli(), st.Messages[0].CreatedAt.UnixMilli())
	require.Equal(t, wire.RoleAssistant, st.Messages[1].Role)
	require.Equal(t, "A summary.", st.Messages[1].Content)
	require.Equal(t, StageDone, st.Progress.Stage)
	require.False(t, st.SendInFlight)
	require.Equal(t, 1, api.callCount())

	require.Equal(t, []string{"abc"}, listener.startedIDs())
	appended := listener.appendedMessages()
	require.Len(t, appended, 2)
	require.Equal(t, wire.RoleUser, appended[0].Role)
	require.Equal(t, wire.RoleAssistant, appended[1].Role)
}

func TestOrchestrator_FallbackOpensChannelForNewConversation(t *testing.T) {
	t.Parallel()

	ch := newFakeChannel()
	api := &fakeAPI{resp: &wire.ChatResponse{
		ConversationID: "abc",
		Response:       wire.Message{ID: "srv-1", Role: wire.RoleAssistant, Content: "hi"},
	}}
	o, _ := startOrchestrator(t, ch, api, Options{})

	o.SendUserMessage("hello")

	waitForSession(t, func() bool { return len(ch.connectURLs()) == 1 }, "channel never connected")
	require.Equal(t, []string{"ws://test/ws/chat/abc"}, ch.connectURLs())
	waitForSession(t, func() bool { return o.Snapshot().ChannelState == channel.StateOpen }, "channel state never reached open")
}

func TestOrchestrator_FallbackErrorSynthesizesEntry(t *testing.T) {
	t.Parallel()

	ch := newFakeChannel()
	// With the channel unreachable the resumed conversation stays on the
	// fallback path.
	ch.connectErr = errors.New("dial refused")
	api := &fakeAPI{err: errors.New("LLM unavailable")}
	o, listener := startOrchestrator(t, ch, api, Options{ConversationID: "abc"})

	o.SendUserMessage("Summarize this")

	waitForSession(t, func() bool { return len(o.Snapshot().Messages) == 2 }, "error entry never appended")

	st := o.Snapshot()
	require.Equal(t, wire.RoleUser, st.Messages[0].Role)
	require.Equal(t, wire.RoleAssistant, st.Messages[1].Role)
	require.Contains(t, st.Messages[1].Content, "LLM unavailable")
	require.Equal(t, "LLM unavailable", st.LastError)
	require.Equal(t, StageIdle, st.Progress.Stage)
	require.False(t, st.SendInFlight)
	require.Equal(t, []string{"LLM unavailable"}, listener.errorTexts())
}

func TestOrchestrator_ChannelPathSkipsFallback(t *testing.T) {
	t.Parallel()

	ch := newFakeChannel()
	api := &fakeAPI{}
	o, _ := startOrchestrator(t, ch, api, Options{ConversationID: "abc"})

	// Resuming a known conversation opens the channel on Start.
	waitForSession(t, func() bool { return o.Snapshot().ChannelState == channel.StateOpen }, "channel never opened")

	o.SendUserMessage("hello")

	waitForSession(t, func() bool { return ch.sentCount() == 1 }, "frame never sent over channel")
	require.Equal(t, 0, api.callCount())

	var frame wire.OutboundFrame
	require.NoError(t, json.Unmarshal(ch.sentPayload(0), &frame))
	require.Equal(t, wire.FrameMessage, frame.Type)
	require.Equal(t, "hello", frame.Content)
}

func TestOrchestrator_ChannelTypingThenMessage(t *testing.T) {
	t.Parallel()

	ch := newFakeChannel()
	o, listener := startOrchestrator(t, ch, &fakeAPI{}, Options{ConversationID: "abc"})
	waitForSession(t, func() bool { return o.Snapshot().ChannelState == channel.StateOpen }, "channel never opened")

	o.SendUserMessage("hello")
	waitForSession(t, func() bool { return ch.sentCount() == 1 }, "frame never sent")

	ch.deliver(t, `{"type":"typing"}`)
	waitForSession(t, func() bool { return o.Snapshot().Typing }, "typing indicator never set")

	ch.deliver(t, `{"type":"message","message":{"id":"srv-1","role":"assistant","content":"hi there"}}`)
	waitForSession(t, func() bool { return len(o.Snapshot().Messages) == 2 }, "assistant message never appended")

	st := o.Snapshot()
	require.False(t, st.Typing)
	require.Equal(t, StageDone, st.Progress.Stage)
	require.Equal(t, "hi there", st.Messages[1].Content)
	require.Equal(t, []bool{true, false}, listener.typingSeq())
}

func TestOrchestrator_ChannelErrorFrame(t *testing.T) {
	t.Parallel()

	ch := newFakeChannel()
	o, listener := startOrchestrator(t, ch, &fakeAPI{}, Options{ConversationID: "abc"})
	waitForSession(t, func() bool { return o.Snapshot().ChannelState == channel.StateOpen }, "channel never opened")

	o.SendUserMessage("hello")
	waitForSession(t, func() bool { return ch.sentCount() == 1 }, "frame never sent")

	ch.deliver(t, `{"type":"error","message":"backend overloaded"}`)
	waitForSession(t, func() bool { return o.Snapshot().LastError != "" }, "error never surfaced")

	st := o.Snapshot()
	require.Equal(t, "backend overloaded", st.LastError)
	require.Len(t, st.Messages, 1, "error frames must not append transcript entries")
	require.Equal(t, []string{"backend overloaded"}, listener.errorTexts())
}

func TestOrchestrator_MalformedFrameDropped(t *testing.T) {
	t.Parallel()

	ch := newFakeChannel()
	o, _ := startOrchestrator(t, ch, &fakeAPI{}, Options{ConversationID: "abc"})
	waitForSession(t, func() bool { return o.Snapshot().ChannelState == channel.StateOpen }, "channel never opened")

	ch.deliver(t, `{not json`)
	ch.deliver(t, `{"type":"message","message":{"id":"srv-1","role":"assistant","content":"ok"}}`)
	waitForSession(t, func() bool { return len(o.Snapshot().Messages) == 1 }, "valid frame after malformed one never applied")
}

func TestOrchestrator_WhitespaceSendIsInert(t *testing.T) {
	t.Parallel()

	ch := newFakeChannel()
	api := &fakeAPI{}
	o, _ := startOrchestrator(t, ch, api, Options{ConversationID: "abc"})
	waitForSession(t, func() bool { return o.Snapshot().ChannelState == channel.StateOpen }, "channel never opened")

	o.SendUserMessage("   \n\t")

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 0, api.callCount())
	require.Equal(t, 0, ch.sentCount())
	require.Empty(t, o.Snapshot().Messages)
}

func TestOrchestrator_StageTimersAdvanceProgress(t *testing.T) {
	t.Parallel()

	ch := newFakeChannel()
	// A fallback that never resolves within the test window keeps the
	// exchange pending while the cosmetic timers run.
	blocked := make(chan struct{})
	api := &blockingAPI{release: blocked}
	o, _ := startOrchestrator(t, ch, api, Options{ConversationID: ""})
	t.Cleanup(func() { close(blocked) })

	o.SendUserMessage("hello")

	waitForSession(t, func() bool { return o.Snapshot().Progress.Stage == StageAnalyzing }, "stage never reached analyzing")
	waitForSession(t, func() bool { return o.Snapshot().Progress.Stage == StageGenerating }, "stage never reached generating")
}

type blockingAPI struct {
	release chan struct{}
}

func (b *blockingAPI) SendChat(ctx context.Context, _ wire.ChatRequest) (*wire.ChatResponse, error) {
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return nil, errors.New("request aborted")
}
