package socket

import "time"

const (
	DefaultBaseDelay   = 1 * time.Second
	DefaultMaxDelay    = 30 * time.Second
	DefaultMaxAttempts = 5
)

// Backoff is the reconnect policy. Attempt n (starting at 1) waits
// min(Base * 2^n, Max).
type Backoff struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int
}

func DefaultBackoff() Backoff {
	return Backoff{
		Base:        DefaultBaseDelay,
		Max:         DefaultMaxDelay,
		MaxAttempts: DefaultMaxAttempts,
	}
}

// Delay returns the wait before reconnect attempt n.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := b.Base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= b.Max {
			return b.Max
		}
	}
	if delay > b.Max {
		return b.Max
	}
	return delay
}

// Allows reports whether another attempt may follow after attempts have
// already been made.
func (b Backoff) Allows(attempts int) bool {
	return attempts < b.MaxAttempts
}
