package backend

import "sync"

// Availability is the reported state of the backend process. Every connection
// and fetch is gated on [AvailabilityRunning].
type Availability string

const (
	AvailabilityUnknown   Availability = "unknown"
	AvailabilityUnpacking Availability = "unpacking"
	AvailabilityStarting  Availability = "starting"
	AvailabilityRunning   Availability = "running"
	AvailabilityStopped   Availability = "stopped"
)

// Running reports whether the backend accepts connections and requests.
func (a Availability) Running() bool {
	return a == AvailabilityRunning
}

// AvailabilitySource is an explicit, injected holder for the backend process
// state. It is created once at app start and handed to the engine; nothing
// reads it through a global.
type AvailabilitySource struct {
	mu    sync.Mutex
	state Availability
	subs  []chan Availability
}

// NewAvailabilitySource returns a source starting in [AvailabilityUnknown].
func NewAvailabilitySource() *AvailabilitySource {
	return &AvailabilitySource{state: AvailabilityUnknown}
}

// Get returns the current availability.
func (s *AvailabilitySource) Get() Availability {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Set updates the availability and notifies subscribers. Setting the same
// state twice is a no-op.
func (s *AvailabilitySource) Set(a Availability) {
	s.mu.Lock()
	if s.state == a {
		s.mu.Unlock()
		return
	}
	s.state = a
	subs := append([]chan Availability(nil), s.subs...)
	s.mu.Unlock()

	for _, ch := range subs {
		// Latest-wins: evict a stale buffered transition rather than block.
		select {
		case ch <- a:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- a:
			default:
			}
		}
	}
}

// Subscribe returns a channel receiving availability transitions. A slow
// consumer misses intermediate transitions but always observes the latest.
func (s *AvailabilitySource) Subscribe() <-chan Availability {
	ch := make(chan Availability, 1)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}
