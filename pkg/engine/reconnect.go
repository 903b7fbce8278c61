package engine

import (
	"context"
	"time"
)

// ReconnectPolicy controls how a degraded engine retries opening its
// channel. The zero value disables reconnection.
type ReconnectPolicy struct {
	// Interval is the initial wait before the first retry.
	Interval time.Duration
	// Multiplier scales the interval after every failed attempt.
	// Values below 1 are treated as 1 (constant interval).
	Multiplier float64
	// MaxAttempts bounds the number of retries. Zero means unlimited.
	MaxAttempts int
}

// Enabled reports whether the policy performs any retries.
func (p ReconnectPolicy) Enabled() bool {
	return p.Interval > 0
}

// backoff returns a wait function: each call blocks for the current
// interval (or until ctx is done) and then grows the interval.
func (p ReconnectPolicy) backoff() func(context.Context) error {
	interval := p.Interval
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	return func(ctx context.Context) error {
		timer := time.NewTimer(interval)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			interval = time.Duration(float64(interval) * mult)
			return nil
		}
	}
}
