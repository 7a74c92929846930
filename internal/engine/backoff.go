package engine

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// newReconnectBackoff builds the per-connection reconnect policy: initial
// delay doubling on each consecutive failure, capped at max, reset on a
// successful open. Randomization is disabled so the schedule is deterministic
// (2s, 4s, 8s, ... capped).
func newReconnectBackoff(initial, max time.Duration) *backoff.ExponentialBackOff {
	if initial <= 0 {
		initial = 2 * time.Second
	}
	if max < initial {
		max = 30 * time.Second
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = max
	// Backoff is the sole throttle; the policy never gives up on its own.
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}
