// Package actor provides the event-loop scaffold the chat session core is
// built on: a single goroutine owns all mutable state, a pure reducer
// transforms state for each input, and a runtime interprets the declarative
// effects the reducer returns.
//
// Two independent producers feed one chat session (cosmetic stage timers and
// transport completions). Serializing both through one mailbox makes their
// interleaving deterministic and the reducer testable in isolation.
package actor

import (
	"context"
	"sync"
)

// Input is an item delivered to an actor mailbox.
//
// Inputs are either commands (requests from callers) or events (observations
// from the runtime). The loop does not distinguish the two; domain packages
// layer their own marker interfaces on top.
type Input interface {
	isActorInput()
}

// Effect is a declarative side-effect produced by a reducer.
//
// Effects are data, not execution. The Runtime interprets them and feeds any
// resulting observations back into the mailbox as new inputs.
type Effect interface {
	isActorEffect()
}

// ReducerFunc is a pure state transition function.
//
// Reducers must not perform I/O, spawn goroutines, or read clocks; anything
// time- or randomness-dependent arrives through the input instead. A reducer
// must be deterministic for a given (state, input).
type ReducerFunc[S any] func(state S, input Input) (next S, effects []Effect)

// Runtime interprets effects and emits follow-up inputs back to the actor.
//
// Implementations must not mutate actor state directly, must return from
// HandleEffects quickly (blocking work runs asynchronously), and must stop
// emitting once the context is canceled.
type Runtime interface {
	HandleEffects(ctx context.Context, effects []Effect, emit func(Input))

	// Stop requests that the runtime abandon background work. It may be
	// called multiple times.
	Stop()
}

// Hooks provide optional observability into an actor's execution.
type Hooks[S any] struct {
	// OnInput is called after an input is dequeued, before reducing.
	OnInput func(input Input)
	// OnTransition is called after the reduced state is applied.
	OnTransition func(prev S, next S, input Input)
}

// Actor runs a single-threaded event loop that owns state of type S.
type Actor[S any] struct {
	reduce  ReducerFunc[S]
	runtime Runtime
	hooks   Hooks[S]

	mu      sync.Mutex
	state   S
	mailbox chan Input
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

// Option configures an Actor.
type Option[S any] func(*Actor[S])

// WithHooks attaches hooks for observability.
func WithHooks[S any](hooks Hooks[S]) Option[S] {
	return func(a *Actor[S]) { a.hooks = hooks }
}

// WithMailboxSize sets the actor mailbox buffer size.
func WithMailboxSize[S any](n int) Option[S] {
	return func(a *Actor[S]) {
		if n > 0 {
			a.mailbox = make(chan Input, n)
		}
	}
}

// New creates an actor with initial state, reducer, and runtime.
func New[S any](initial S, reducer ReducerFunc[S], runtime Runtime, opts ...Option[S]) *Actor[S] {
	ctx, cancel := context.WithCancel(context.Background())
	a := &Actor[S]{
		reduce:  reducer,
		runtime: runtime,
		state:   initial,
		mailbox: make(chan Input, 256),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start launches the actor loop in its own goroutine. Start is idempotent.
func (a *Actor[S]) Start() {
	a.once.Do(func() { go a.loop() })
}

// Stop cancels the actor context and stops the runtime. Safe to call
// multiple times.
func (a *Actor[S]) Stop() {
	a.cancel()
	if a.runtime != nil {
		a.runtime.Stop()
	}
}

// Done returns a channel that closes when the actor loop exits.
func (a *Actor[S]) Done() <-chan struct{} { return a.done }

// Enqueue delivers an input to the actor mailbox.
//
// Enqueue returns false when the actor is stopped or the mailbox is full;
// callers that need backpressure should size the mailbox accordingly.
func (a *Actor[S]) Enqueue(input Input) bool {
	if input == nil {
		return false
	}
	select {
	case <-a.ctx.Done():
		return false
	default:
	}
	select {
	case a.mailbox <- input:
		return true
	default:
		return false
	}
}

// State returns a snapshot of the current actor state.
//
// Intended for observability and tests; production code should derive
// behavior from reducer outputs instead of polling state.
func (a *Actor[S]) State() S {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Actor[S]) loop() {
	defer close(a.done)

	emit := func(in Input) {
		_ = a.Enqueue(in)
	}

	for {
		select {
		case <-a.ctx.Done():
			return
		case in := <-a.mailbox:
			if in == nil {
				continue
			}
			if a.hooks.OnInput != nil {
				a.hooks.OnInput(in)
			}

			a.mu.Lock()
			prev := a.state
			a.mu.Unlock()

			next, effects := a.reduce(prev, in)

			a.mu.Lock()
			a.state = next
			a.mu.Unlock()

			if a.hooks.OnTransition != nil {
				a.hooks.OnTransition(prev, next, in)
			}
			if a.runtime != nil && len(effects) > 0 {
				a.runtime.HandleEffects(a.ctx, effects, emit)
			}
		}
	}
}
