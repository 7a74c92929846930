package engine

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/jobsync/internal/backend"
	"github.com/desertthunder/jobsync/internal/shared"
)

// manualScheduler records scheduled tasks and fires them on demand, so
// backoff behavior is observable without wall-clock waits.
type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

func (s *manualScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{delay: d, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

// delays returns every scheduled delay in order, including stopped timers.
func (s *manualScheduler) delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.timers))
	for i, t := range s.timers {
		out[i] = t.delay
	}
	return out
}

func (s *manualScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.fired && !t.stopped {
			n++
		}
	}
	return n
}

// fireNext runs the oldest pending timer.
func (s *manualScheduler) fireNext() bool {
	s.mu.Lock()
	var next *manualTimer
	for _, t := range s.timers {
		if !t.fired && !t.stopped {
			next = t
			break
		}
	}
	if next == nil {
		s.mu.Unlock()
		return false
	}
	next.fired = true
	fn := next.fn
	s.mu.Unlock()
	fn()
	return true
}

// fakeStream is a scriptable event channel.
type fakeStream struct {
	events chan backend.Event
	errs   chan error
	done   chan struct{}
	once   sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		events: make(chan backend.Event, 16),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
}

func (s *fakeStream) Listen(ctx context.Context, handler func(backend.Event)) error {
	for {
		select {
		case ev := <-s.events:
			handler(ev)
		case err := <-s.errs:
			return err
		case <-s.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *fakeStream) fail(err error) {
	s.errs <- err
}

// fakeDialer hands out fakeStreams, optionally failing the first N dials per
// key. The overview connection uses the empty key.
type fakeDialer struct {
	mu       sync.Mutex
	failures map[string]int
	dials    map[string]int
	streams  map[string]*fakeStream
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{
		failures: map[string]int{},
		dials:    map[string]int{},
		streams:  map[string]*fakeStream{},
	}
}

func (d *fakeDialer) failNext(key string, n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[key] = n
}

func (d *fakeDialer) dialCount(key string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials[key]
}

func (d *fakeDialer) stream(key string) *fakeStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streams[key]
}

func (d *fakeDialer) dial(key string) (Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials[key]++
	if d.failures[key] > 0 {
		d.failures[key]--
		return nil, errors.New("dial refused")
	}
	s := newFakeStream()
	d.streams[key] = s
	return s, nil
}

func (d *fakeDialer) DialOverview(ctx context.Context) (Stream, error) {
	return d.dial("")
}

func (d *fakeDialer) DialJob(ctx context.Context, jobID string) (Stream, error) {
	return d.dial(jobID)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		runtime.Gosched()
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestSupervisor(dialer Dialer, sched Scheduler, onEvent func(backend.Event)) *Supervisor {
	if onEvent == nil {
		onEvent = func(backend.Event) {}
	}
	return NewSupervisor(dialer, sched, shared.NewLogger(nil), 2*time.Second, 30*time.Second, onEvent)
}

func TestSupervisor(t *testing.T) {
	t.Run("opens the overview connection when the backend comes up", func(t *testing.T) {
		dialer := newFakeDialer()
		s := newTestSupervisor(dialer, &manualScheduler{}, nil)
		defer s.Shutdown()

		s.SetAvailable(true)
		waitFor(t, "overview open", func() bool { return s.Connected("") })
	})

	t.Run("reconnects with doubling delays capped at the max", func(t *testing.T) {
		dialer := newFakeDialer()
		sched := &manualScheduler{}
		s := newTestSupervisor(dialer, sched, nil)
		defer s.Shutdown()

		dialer.failNext("", 6)
		s.SetAvailable(true)

		want := []time.Duration{
			2 * time.Second,
			4 * time.Second,
			8 * time.Second,
			16 * time.Second,
			30 * time.Second,
			30 * time.Second,
		}
		for i, w := range want {
			waitFor(t, "retry scheduled", func() bool { return sched.pending() == 1 })
			got := sched.delays()
			if got[len(got)-1] != w {
				t.Fatalf("retry %d: delay %v, want %v", i+1, got[len(got)-1], w)
			}
			attempts := dialer.dialCount("")
			sched.fireNext()
			waitFor(t, "redial", func() bool { return dialer.dialCount("") > attempts })
		}

		// Seventh dial succeeds; the policy resets on open.
		waitFor(t, "overview open", func() bool { return s.Connected("") })
		dialer.stream("").fail(errors.New("connection dropped"))
		waitFor(t, "retry scheduled", func() bool { return sched.pending() == 1 })
		got := sched.delays()
		if got[len(got)-1] != 2*time.Second {
			t.Errorf("post-success delay = %v, want 2s", got[len(got)-1])
		}
	})

	t.Run("desired job set reconciliation is idempotent", func(t *testing.T) {
		dialer := newFakeDialer()
		s := newTestSupervisor(dialer, &manualScheduler{}, nil)
		defer s.Shutdown()

		s.SetAvailable(true)
		desired := map[string]struct{}{"j1": {}, "j2": {}}
		s.SetDesiredJobs(desired)
		waitFor(t, "job conns open", func() bool { return s.Connected("j1") && s.Connected("j2") })

		before1, before2 := dialer.dialCount("j1"), dialer.dialCount("j2")
		s.SetDesiredJobs(desired)
		if dialer.dialCount("j1") != before1 || dialer.dialCount("j2") != before2 {
			t.Error("unchanged desired set should not redial")
		}

		s.SetDesiredJobs(map[string]struct{}{"j1": {}})
		waitFor(t, "j2 closed", func() bool { return !s.Connected("j2") })
		if !s.Connected("j1") {
			t.Error("j1 should stay open")
		}
	})

	t.Run("backend loss cancels connections and pending retries", func(t *testing.T) {
		dialer := newFakeDialer()
		sched := &manualScheduler{}
		s := newTestSupervisor(dialer, sched, nil)
		defer s.Shutdown()

		dialer.failNext("j1", 1)
		s.SetAvailable(true)
		s.SetDesiredJobs(map[string]struct{}{"j1": {}})
		waitFor(t, "retry scheduled", func() bool { return sched.pending() > 0 })

		s.SetAvailable(false)
		if sched.pending() != 0 {
			t.Error("pending retry should be cancelled")
		}
		if s.Connected("") {
			t.Error("overview should be closed")
		}

		// A stale timer that already left the scheduler must not reconnect.
		attempts := dialer.dialCount("j1")
		sched.fireNext()
		time.Sleep(10 * time.Millisecond)
		if dialer.dialCount("j1") != attempts {
			t.Error("fired timer reconnected while backend is down")
		}
	})

	t.Run("events flow to the callback", func(t *testing.T) {
		dialer := newFakeDialer()
		events := make(chan backend.Event, 1)
		s := newTestSupervisor(dialer, &manualScheduler{}, func(ev backend.Event) { events <- ev })
		defer s.Shutdown()

		s.SetAvailable(true)
		waitFor(t, "overview open", func() bool { return s.Connected("") })

		dialer.stream("").events <- backend.UpdateEvent{Job: "j1", Status: "running"}
		select {
		case ev := <-events:
			if ev.JobID() != "j1" {
				t.Errorf("event job = %q", ev.JobID())
			}
		case <-time.After(2 * time.Second):
			t.Fatal("event never arrived")
		}
	})

	t.Run("drop job tears the connection down", func(t *testing.T) {
		dialer := newFakeDialer()
		s := newTestSupervisor(dialer, &manualScheduler{}, nil)
		defer s.Shutdown()

		s.SetAvailable(true)
		s.SetDesiredJobs(map[string]struct{}{"j1": {}})
		waitFor(t, "j1 open", func() bool { return s.Connected("j1") })

		s.DropJob("j1")
		if s.Connected("j1") {
			t.Error("dropped job should be disconnected")
		}
	})
}
