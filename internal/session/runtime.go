package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/corpusai/corpus-cli/internal/actor"
	"github.com/corpusai/corpus-cli/internal/wire"
	"github.com/corpusai/corpus-cli/pkg/logger"
)

// ChannelTransport is the slice of the channel client the runtime drives.
type ChannelTransport interface {
	Connect(url string) error
	Send(payload []byte) bool
}

// ChatAPI is the fallback request surface.
type ChatAPI interface {
	SendChat(ctx context.Context, req wire.ChatRequest) (*wire.ChatResponse, error)
}

// effectRuntime interprets session effects: named timers, channel dispatch,
// fallback requests, and channel connects. All observations return to the
// actor through emit.
type effectRuntime struct {
	transport  ChannelTransport
	api        ChatAPI
	channelURL func(conversationID string) string
	clock      actor.Clock
	timeout    time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
}

var _ actor.Runtime = (*effectRuntime)(nil)

func newEffectRuntime(transport ChannelTransport, api ChatAPI, channelURL func(string) string, clock actor.Clock, timeout time.Duration) *effectRuntime {
	if clock == nil {
		clock = actor.RealClock{}
	}
	return &effectRuntime{
		transport:  transport,
		api:        api,
		channelURL: channelURL,
		clock:      clock,
		timeout:    timeout,
		timers:     make(map[string]*time.Timer),
	}
}

// HandleEffects implements actor.Runtime.
func (r *effectRuntime) HandleEffects(ctx context.Context, effects []actor.Effect, emit func(actor.Input)) {
	for _, eff := range effects {
		switch e := eff.(type) {
		case effStartTimer:
			r.startTimer(e.Name, e.AfterMs, emit)
		case effCancelTimer:
			r.cancelTimer(e.Name)
		case effChannelSend:
			r.channelSend(e.Frame)
		case effFallbackRequest:
			go r.fallbackRequest(ctx, e.Request, emit)
		case effConnectChannel:
			go r.connectChannel(e.ConversationID)
		default:
			logger.Warnf("unhandled session effect %T", eff)
		}
	}
}

// Stop implements actor.Runtime.
func (r *effectRuntime) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, t := range r.timers {
		t.Stop()
		delete(r.timers, name)
	}
}

func (r *effectRuntime) startTimer(name string, afterMs int64, emit func(actor.Input)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.timers[name]; ok {
		prev.Stop()
	}
	r.timers[name] = time.AfterFunc(time.Duration(afterMs)*time.Millisecond, func() {
		emit(TimerFired(name))
	})
}

func (r *effectRuntime) cancelTimer(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.timers[name]; ok {
		t.Stop()
		delete(r.timers, name)
	}
}

func (r *effectRuntime) channelSend(frame wire.OutboundFrame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		logger.Errorf("encode channel frame: %v", err)
		return
	}
	// A drop here means the channel closed after the reducer branched; the
	// transport logs it and the message is not retried.
	_ = r.transport.Send(payload)
}

func (r *effectRuntime) fallbackRequest(ctx context.Context, req wire.ChatRequest, emit func(actor.Input)) {
	reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.api.SendChat(reqCtx, req)
	nowMs := r.clock.Now().UnixMilli()
	if err != nil {
		emit(FallbackFailed(err.Error(), uuid.NewString(), nowMs))
		return
	}
	emit(FallbackSucceeded(resp.ConversationID, resp.Response, nowMs))
}

func (r *effectRuntime) connectChannel(conversationID string) {
	if r.channelURL == nil {
		return
	}
	if err := r.transport.Connect(r.channelURL(conversationID)); err != nil {
		// The transport schedules its own retries; nothing more to do here.
		logger.Debugf("channel connect failed: %v", err)
	}
}
