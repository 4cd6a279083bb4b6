package channel

import "time"

// ReconnectPolicy describes the automatic reconnect schedule for a channel.
//
// The policy is a value type: Advance and Reset return copies, which keeps
// the back-off schedule testable without touching a live client.
type ReconnectPolicy struct {
	// Attempt is the number of automatic reconnect attempts already made
	// since the last successful open.
	Attempt int
	// MaxAttempts caps automatic reconnects; past it the channel stays
	// closed until an explicit Connect.
	MaxAttempts int
	// BaseDelay is the delay before the first reconnect attempt.
	BaseDelay time.Duration
	// MaxDelay caps the exponential back-off.
	MaxDelay time.Duration
}

// DefaultReconnectPolicy returns the production reconnect schedule:
// 1s, 2s, 4s, 8s, 16s, then give up.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// Exhausted reports whether automatic reconnection has been abandoned.
func (p ReconnectPolicy) Exhausted() bool {
	return p.Attempt >= p.MaxAttempts
}

// NextDelay returns the delay before the next reconnect attempt:
// min(BaseDelay * 2^Attempt, MaxDelay).
func (p ReconnectPolicy) NextDelay() time.Duration {
	delay := p.BaseDelay
	for i := 0; i < p.Attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Advance returns a copy of the policy with the attempt counter incremented.
func (p ReconnectPolicy) Advance() ReconnectPolicy {
	p.Attempt++
	return p
}

// Reset returns a copy of the policy with the attempt counter cleared.
func (p ReconnectPolicy) Reset() ReconnectPolicy {
	p.Attempt = 0
	return p
}
