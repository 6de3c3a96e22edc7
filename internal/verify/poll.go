package verify

import (
	"context"
	"time"
)

// PollConfig bounds how long a replicated read is retried. The budget is the
// propagation interval: the harness never waits longer than it for a value to
// show up, but stops as soon as it does.
type PollConfig struct {
	Budget         time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// DefaultPollConfig matches a 100ms propagation interval.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		Budget:         100 * time.Millisecond,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     50 * time.Millisecond,
		Multiplier:     2,
	}
}

func (c PollConfig) withDefaults() PollConfig {
	d := DefaultPollConfig()
	if c.Budget < 0 {
		c.Budget = 0
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = d.InitialBackoff
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = c.InitialBackoff
	}
	if c.Multiplier < 1 {
		c.Multiplier = d.Multiplier
	}
	return c
}

// poll calls attempt until it returns true, the budget is spent or ctx is
// done, and returns the number of attempts made. attempt always runs at
// least once.
func poll(ctx context.Context, cfg PollConfig, attempt func() bool) int {
	deadline := time.Now().Add(cfg.Budget)
	backoff := cfg.InitialBackoff

	for attempts := 1; ; attempts++ {
		if attempt() {
			return attempts
		}
		remaining := time.Until(deadline)
		if remaining <= 0 || ctx.Err() != nil {
			return attempts
		}

		wait := min(backoff, remaining)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempts
		case <-timer.C:
		}

		backoff = min(time.Duration(float64(backoff)*cfg.Multiplier), cfg.MaxBackoff)
	}
}
