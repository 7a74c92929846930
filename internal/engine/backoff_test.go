package engine

import (
	"testing"
	"time"
)

func TestReconnectBackoff(t *testing.T) {
	t.Run("doubles and caps", func(t *testing.T) {
		policy := newReconnectBackoff(2*time.Second, 30*time.Second)

		want := []time.Duration{
			2 * time.Second,
			4 * time.Second,
			8 * time.Second,
			16 * time.Second,
			30 * time.Second,
			30 * time.Second,
		}
		for i, w := range want {
			if got := policy.NextBackOff(); got != w {
				t.Errorf("attempt %d: got %v, want %v", i+1, got, w)
			}
		}
	})

	t.Run("reset restarts the schedule", func(t *testing.T) {
		policy := newReconnectBackoff(2*time.Second, 30*time.Second)
		policy.NextBackOff()
		policy.NextBackOff()
		policy.Reset()

		if got := policy.NextBackOff(); got != 2*time.Second {
			t.Errorf("after reset: got %v, want 2s", got)
		}
	})

	t.Run("never gives up", func(t *testing.T) {
		policy := newReconnectBackoff(2*time.Second, 30*time.Second)
		for i := 0; i < 100; i++ {
			if policy.NextBackOff() < 0 {
				t.Fatalf("policy stopped at attempt %d", i+1)
			}
		}
	})

	t.Run("zero values fall back to defaults", func(t *testing.T) {
		policy := newReconnectBackoff(0, 0)
		if got := policy.NextBackOff(); got != 2*time.Second {
			t.Errorf("got %v, want 2s", got)
		}
	})
}
