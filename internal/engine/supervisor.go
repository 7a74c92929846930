package engine

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"

	"github.com/desertthunder/jobsync/internal/backend"
)

// Stream is one open event channel; satisfied by [backend.EventStream].
type Stream interface {
	Listen(ctx context.Context, handler func(backend.Event)) error
	Close() error
}

// Dialer opens event channels. Production wiring uses [WebsocketDialer];
// tests substitute a fake.
type Dialer interface {
	DialOverview(ctx context.Context) (Stream, error)
	DialJob(ctx context.Context, jobID string) (Stream, error)
}

// WebsocketDialer adapts [backend.StreamDialer] to the [Dialer] seam.
type WebsocketDialer struct {
	D *backend.StreamDialer
}

func (w WebsocketDialer) DialOverview(ctx context.Context) (Stream, error) {
	return w.D.DialOverview(ctx)
}

func (w WebsocketDialer) DialJob(ctx context.Context, jobID string) (Stream, error) {
	return w.D.DialJob(ctx, jobID)
}

// overviewKey identifies the job-set-wide connection in the conn table.
const overviewKey = ""

// conn tracks one event connection's lifecycle: idle → connecting → open →
// closed, with at most one pending reconnect timer.
type conn struct {
	key     string
	desired bool
	open    bool
	dialing bool
	policy  *backoff.ExponentialBackOff
	retry   Timer
	cancel  context.CancelFunc
}

// Supervisor owns the overview event connection and the per-job connections.
// It reconciles the set of open connections against a desired set after every
// cache mutation, reconnects each with independent exponential backoff, and
// tears everything down when the backend stops being available.
type Supervisor struct {
	mu sync.Mutex

	dialer  Dialer
	sched   Scheduler
	logger  *log.Logger
	onEvent func(backend.Event)

	backoffInitial time.Duration
	backoffMax     time.Duration

	available bool
	shutdown  bool
	conns     map[string]*conn
}

// NewSupervisor creates a supervisor. onEvent receives every decoded event
// from every connection; it must be safe to call from connection goroutines.
func NewSupervisor(dialer Dialer, sched Scheduler, logger *log.Logger, backoffInitial, backoffMax time.Duration, onEvent func(backend.Event)) *Supervisor {
	return &Supervisor{
		dialer:         dialer,
		sched:          sched,
		logger:         logger,
		onEvent:        onEvent,
		backoffInitial: backoffInitial,
		backoffMax:     backoffMax,
		conns:          map[string]*conn{},
	}
}

// SetAvailable reports a backend-availability transition. Leaving the running
// state tears down all active connections and pending timers immediately and
// suppresses reconnection; entering it restores the overview connection and
// the current desired set.
func (s *Supervisor) SetAvailable(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.available == running || s.shutdown {
		return
	}
	s.available = running
	if !running {
		for _, c := range s.conns {
			s.stopLocked(c)
		}
		return
	}
	s.ensureLocked(overviewKey)
	s.reconcileLocked()
}

// SetDesiredJobs reconciles per-job connections against the desired set of
// job ids. Idempotent: calling it with an unchanged set is a no-op.
func (s *Supervisor) SetDesiredJobs(ids map[string]struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown {
		return
	}

	for id := range ids {
		s.ensureLocked(id)
	}
	for key, c := range s.conns {
		if key == overviewKey {
			continue
		}
		if _, want := ids[key]; !want {
			c.desired = false
		}
	}
	s.reconcileLocked()
}

// DropJob tears down the connection state for one job immediately, used when
// the job is deleted.
func (s *Supervisor) DropJob(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.conns[id]; ok {
		s.stopLocked(c)
		delete(s.conns, id)
	}
}

// Shutdown cancels every pending timer and closes every connection's
// transport. The supervisor is unusable afterwards.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown = true
	for _, c := range s.conns {
		s.stopLocked(c)
	}
	s.conns = map[string]*conn{}
}

// Connected reports whether the connection for key (job id, or empty for the
// overview) is currently open.
func (s *Supervisor) Connected(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conns[key]
	return ok && c.open
}

func (s *Supervisor) ensureLocked(key string) {
	c, ok := s.conns[key]
	if !ok {
		c = &conn{key: key, policy: newReconnectBackoff(s.backoffInitial, s.backoffMax)}
		s.conns[key] = c
	}
	c.desired = true
}

// reconcileLocked opens and closes connections to match the desired set. It
// compares desired against actual rather than diffing individual transitions.
func (s *Supervisor) reconcileLocked() {
	for key, c := range s.conns {
		switch {
		case !c.desired:
			s.stopLocked(c)
			if key != overviewKey {
				delete(s.conns, key)
			}
		case s.available && !c.open && !c.dialing && c.retry == nil:
			s.startLocked(c)
		}
	}
}

func (s *Supervisor) stopLocked(c *conn) {
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.open = false
	c.dialing = false
}

// startLocked spawns the dial-and-listen goroutine for c.
func (s *Supervisor) startLocked(c *conn) {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.dialing = true
	key := c.key

	go func() {
		var (
			stream Stream
			err    error
		)
		if key == overviewKey {
			stream, err = s.dialer.DialOverview(ctx)
		} else {
			stream, err = s.dialer.DialJob(ctx, key)
		}

		s.mu.Lock()
		cur, ok := s.conns[key]
		if !ok || cur != c || s.shutdown {
			s.mu.Unlock()
			if stream != nil {
				stream.Close()
			}
			return
		}
		c.dialing = false
		if err != nil {
			s.mu.Unlock()
			s.logger.Debug("connection open failed", "key", connLabel(key), "err", err)
			s.onConnDown(c)
			return
		}
		c.open = true
		c.policy.Reset()
		s.mu.Unlock()

		s.logger.Debug("connection open", "key", connLabel(key))
		listenErr := stream.Listen(ctx, s.onEvent)
		stream.Close()

		s.mu.Lock()
		c.open = false
		s.mu.Unlock()
		if listenErr != nil && ctx.Err() == nil {
			s.logger.Debug("connection lost", "key", connLabel(key), "err", listenErr)
		}
		s.onConnDown(c)
	}()
}

// onConnDown schedules exactly one reconnect for a connection that closed
// unexpectedly, unless it is no longer desired or the backend went away.
func (s *Supervisor) onConnDown(c *conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown || !c.desired || !s.available || c.retry != nil {
		return
	}
	if cur, ok := s.conns[c.key]; !ok || cur != c {
		return
	}

	delay := c.policy.NextBackOff()
	key := c.key
	c.retry = s.sched.AfterFunc(delay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		cur, ok := s.conns[key]
		if !ok || cur != c {
			return
		}
		c.retry = nil
		if s.shutdown || !c.desired || !s.available || c.open || c.dialing {
			return
		}
		s.startLocked(c)
	})
}

func connLabel(key string) string {
	if key == overviewKey {
		return "overview"
	}
	return key
}
