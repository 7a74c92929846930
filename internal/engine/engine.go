package engine

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/jobsync/internal/backend"
	"github.com/desertthunder/jobsync/internal/models"
	"github.com/desertthunder/jobsync/internal/shared"
)

// Notifier is the external sink for playlist-attention side effects.
type Notifier interface {
	// NotifyPlaylistAttention tells the user a backgrounded playlist job is
	// waiting on a selection whose entry count grew.
	NotifyPlaylistAttention(jobID, title string, entryCount int)

	// CancelPlaylistAttention withdraws a previous notification.
	CancelPlaylistAttention(jobID string)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) NotifyPlaylistAttention(string, string, int) {}
func (NopNotifier) CancelPlaylistAttention(string)              {}

// Options wires an [Engine]. API and Availability are required; everything
// else has a working default.
type Options struct {
	API          API
	Dialer       Dialer
	Availability *backend.AvailabilitySource
	Notifier     Notifier
	Scheduler    Scheduler
	Logger       *log.Logger
	Sync         shared.SyncConfig
}

// Engine is the composition root: it owns the cache and the selection queue,
// supervises connections, executes commands, and fans a single coalesced
// "state changed" signal out to observers.
type Engine struct {
	api          API
	fetcher      *Fetcher
	supervisor   *Supervisor
	availability *backend.AvailabilitySource
	notifier     Notifier
	logger       *log.Logger

	loopCh  chan func()
	quit    chan struct{}
	once    sync.Once
	started bool
	startMu sync.Mutex

	updates chan struct{}

	// Everything below is confined to the sync goroutine.
	cache            *Cache
	queue            *SelectionQueue
	subs             map[string]int
	selectionHandled map[string]struct{}
	attentionSent    map[string]bool
	lastEntryCount   map[string]int
	foreground       bool
	lastErr          error
}

// New creates an engine. Call [Engine.Initialize] before use.
func New(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Notifier == nil {
		opts.Notifier = NopNotifier{}
	}
	if opts.Scheduler == nil {
		opts.Scheduler = NewScheduler()
	}
	if opts.Availability == nil {
		opts.Availability = backend.NewAvailabilitySource()
	}

	e := &Engine{
		api:              opts.API,
		availability:     opts.Availability,
		notifier:         opts.Notifier,
		logger:           opts.Logger,
		loopCh:           make(chan func(), 64),
		quit:             make(chan struct{}),
		updates:          make(chan struct{}, 1),
		cache:            NewCache(),
		queue:            NewSelectionQueue(),
		subs:             map[string]int{},
		selectionHandled: map[string]struct{}{},
		attentionSent:    map[string]bool{},
		lastEntryCount:   map[string]int{},
		foreground:       true,
	}
	e.fetcher = NewFetcher(opts.API, opts.Sync.RefreshRate, opts.Sync.RefreshBurst)
	if opts.Dialer != nil {
		e.supervisor = NewSupervisor(
			opts.Dialer,
			opts.Scheduler,
			opts.Logger,
			opts.Sync.BackoffInitial(),
			opts.Sync.BackoffMax(),
			e.enqueueEvent,
		)
	}
	return e
}

// Initialize starts the sync goroutine, begins watching the backend
// availability signal, and performs an initial job-list refresh when the
// backend is already running. Idempotent.
func (e *Engine) Initialize(ctx context.Context) error {
	e.startMu.Lock()
	if e.started {
		e.startMu.Unlock()
		return nil
	}
	e.started = true
	e.startMu.Unlock()

	go e.run()
	go e.watchAvailability()

	state := e.availability.Get()
	if e.supervisor != nil {
		e.supervisor.SetAvailable(state.Running())
	}
	if state.Running() {
		if err := e.RefreshJobs(ctx); err != nil {
			// Initial sync failures are not fatal; the engine converges once
			// events or a later refresh arrive.
			e.logger.Warn("initial refresh failed", "err", err)
		}
	}
	return nil
}

// Shutdown tears the engine down: every pending timer and open connection is
// cancelled and the sync goroutine stops. In-flight fetches may complete but
// their results are discarded.
func (e *Engine) Shutdown() {
	e.once.Do(func() {
		close(e.quit)
		if e.supervisor != nil {
			e.supervisor.Shutdown()
		}
	})
}

func (e *Engine) run() {
	for {
		select {
		case fn := <-e.loopCh:
			fn()
		case <-e.quit:
			return
		}
	}
}

// do submits fn to the sync goroutine without waiting for it. Before
// [Engine.Initialize] the loop is not draining, so submission fails fast
// instead of parking the caller.
func (e *Engine) do(fn func()) error {
	e.startMu.Lock()
	started := e.started
	e.startMu.Unlock()
	if !started {
		return shared.ErrEngineStopped
	}

	select {
	case e.loopCh <- fn:
		return nil
	case <-e.quit:
		return shared.ErrEngineStopped
	}
}

// call runs fn on the sync goroutine and waits for it to finish.
func (e *Engine) call(fn func()) error {
	done := make(chan struct{})
	if err := e.do(func() {
		defer close(done)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-e.quit:
		return shared.ErrEngineStopped
	}
}

func (e *Engine) watchAvailability() {
	ch := e.availability.Subscribe()
	for {
		select {
		case <-e.quit:
			return
		case <-ch:
			state := e.availability.Get()
			e.logger.Info("backend availability changed", "state", state)
			if e.supervisor != nil {
				e.supervisor.SetAvailable(state.Running())
			}
			if state.Running() {
				go func() {
					if err := e.RefreshJobs(context.Background()); err != nil {
						e.logger.Warn("refresh after backend start failed", "err", err)
					}
				}()
			}
			e.signal()
		}
	}
}

// Updates returns the coalesced state-change signal: one receive per logical
// batch of mutations, however many jobs it touched.
func (e *Engine) Updates() <-chan struct{} {
	return e.updates
}

func (e *Engine) signal() {
	select {
	case e.updates <- struct{}{}:
	default:
	}
}

// Jobs returns all cached jobs sorted by createdAt descending, ties broken by
// insertion order. When the engine is not running the list is empty.
func (e *Engine) Jobs() []models.Job {
	var out []models.Job
	e.call(func() { out = e.cache.OrderedList() })
	return out
}

// JobByID returns a copy of the cached job. When the engine is not running it
// reports not-found.
func (e *Engine) JobByID(id string) (models.Job, bool) {
	var (
		job models.Job
		ok  bool
	)
	e.call(func() { job, ok = e.cache.Get(id) })
	return job, ok
}

// BackendState returns the current backend availability.
func (e *Engine) BackendState() backend.Availability {
	return e.availability.Get()
}

// LastError returns the most recent surfaced failure, or nil after the last
// operation succeeded.
func (e *Engine) LastError() error {
	var err error
	e.call(func() { err = e.lastErr })
	return err
}

// SetForeground reports an app foreground/background transition. Returning to
// the foreground withdraws pending playlist-attention notifications.
func (e *Engine) SetForeground(fg bool) {
	e.call(func() {
		if e.foreground == fg {
			return
		}
		e.foreground = fg
		if fg {
			for id := range e.attentionSent {
				e.notifier.CancelPlaylistAttention(id)
			}
			e.attentionSent = map[string]bool{}
		} else {
			e.reviewAttention()
		}
	})
}

// setErrLocked records a surfaced failure. Repeated identical messages do not
// re-notify observers.
func (e *Engine) setErrLocked(err error) {
	if err == nil {
		if e.lastErr != nil {
			e.lastErr = nil
			e.signal()
		}
		return
	}
	if e.lastErr != nil && e.lastErr.Error() == err.Error() {
		return
	}
	e.lastErr = err
	e.signal()
}

// recordErr surfaces err through the lastError slot from off-loop code.
func (e *Engine) recordErr(err error) {
	e.call(func() { e.setErrLocked(err) })
}

// guardRunning short-circuits operations while the backend is not running.
func (e *Engine) guardRunning() error {
	if e.availability.Get().Running() {
		return nil
	}
	err := shared.ErrBackendUnavailable
	e.recordErr(err)
	return err
}

// afterMutationLocked re-derives everything that hangs off the cache after a
// change: selection queue membership, attention notifications, the desired
// connection set, and the observer signal. Runs on the sync goroutine.
func (e *Engine) afterMutationLocked(changed bool) {
	if !changed {
		return
	}
	e.syncSelectionLocked()
	e.syncConnectionsLocked()
	e.signal()
}

func (e *Engine) syncSelectionLocked() {
	for _, id := range e.cache.IDs() {
		job, _ := e.cache.Get(id)
		if job.RequiresPlaylistSelection() {
			if _, handled := e.selectionHandled[id]; !handled && e.queue.Active() != id {
				e.queue.Enqueue(id)
			}
		} else {
			e.queue.Remove(id)
			delete(e.selectionHandled, id)
			e.clearAttentionLocked(id)
		}
	}
	// Jobs that vanished from the cache leave the queue lazily through
	// Dequeue's stillRequired filter, but their attention state goes now.
	for id := range e.attentionSent {
		if _, ok := e.cache.Get(id); !ok {
			e.clearAttentionLocked(id)
		}
	}
	e.reviewAttention()
}

// reviewAttention fires the once-per-transition "needs attention" side effect
// for backgrounded selection-pending jobs whose entry count grew.
func (e *Engine) reviewAttention() {
	for _, id := range e.cache.IDs() {
		job, _ := e.cache.Get(id)
		if !job.RequiresPlaylistSelection() {
			continue
		}
		count := job.Playlist.KnownEntryTotal()
		last := e.lastEntryCount[id]
		e.lastEntryCount[id] = count
		if e.foreground {
			continue
		}
		pending := e.queue.Contains(id) || e.queue.Active() == id
		if pending && count > last && !e.attentionSent[id] {
			title := job.MainFile
			if p := job.Playlist; p != nil && p.Title != "" {
				title = p.Title
			}
			e.notifier.NotifyPlaylistAttention(id, title, count)
			e.attentionSent[id] = true
		}
	}
}

func (e *Engine) clearAttentionLocked(id string) {
	if e.attentionSent[id] {
		e.notifier.CancelPlaylistAttention(id)
	}
	delete(e.attentionSent, id)
	delete(e.lastEntryCount, id)
}

// syncConnectionsLocked recomputes which jobs deserve a dedicated event
// connection: explicit subscriptions, non-terminal active statuses, and jobs
// awaiting a playlist selection.
func (e *Engine) syncConnectionsLocked() {
	if e.supervisor == nil {
		return
	}
	desired := map[string]struct{}{}
	for _, id := range e.cache.IDs() {
		job, _ := e.cache.Get(id)
		switch {
		case e.subs[id] > 0:
			desired[id] = struct{}{}
		case job.Status.Active():
			desired[id] = struct{}{}
		case job.RequiresPlaylistSelection():
			desired[id] = struct{}{}
		}
	}
	e.supervisor.SetDesiredJobs(desired)
}

// removeJobLocked drops a job everywhere: cache, selection queue, attention
// state, subscriptions, and its dedicated connection.
func (e *Engine) removeJobLocked(id string) bool {
	changed := e.cache.Remove(id)
	e.queue.Remove(id)
	delete(e.selectionHandled, id)
	delete(e.subs, id)
	e.clearAttentionLocked(id)
	if e.supervisor != nil {
		e.supervisor.DropJob(id)
	}
	return changed
}

// SubscribeToPlaylistUpdates adds a reference-counted manual subscription
// keeping the job's dedicated connection open regardless of status.
func (e *Engine) SubscribeToPlaylistUpdates(id string) {
	e.call(func() {
		e.subs[id]++
		e.syncConnectionsLocked()
	})
}

// UnsubscribePlaylistUpdates drops one reference.
func (e *Engine) UnsubscribePlaylistUpdates(id string) {
	e.call(func() {
		if e.subs[id] <= 1 {
			delete(e.subs, id)
		} else {
			e.subs[id]--
		}
		e.syncConnectionsLocked()
	})
}

// TakeNextPlaylistSelectionRequest pops the next job awaiting a playlist
// selection, skipping jobs that no longer qualify. Only one request may be
// active at a time; callers complete it before taking another.
func (e *Engine) TakeNextPlaylistSelectionRequest() (models.Job, bool) {
	var (
		job models.Job
		ok  bool
	)
	e.call(func() {
		id, got := e.queue.Dequeue(func(id string) bool {
			j, exists := e.cache.Get(id)
			if !exists {
				return false
			}
			if _, handled := e.selectionHandled[id]; handled {
				return false
			}
			return j.RequiresPlaylistSelection()
		})
		if !got {
			return
		}
		job, ok = e.cache.Get(id)
	})
	return job, ok
}

// CompletePlaylistSelectionRequest releases the active selection request.
// Without keepQueued the job is suppressed from re-entering the queue until
// it stops requiring a selection (normally because the submitted selection
// lands backend-side); with keepQueued it stays eligible for Requeue.
func (e *Engine) CompletePlaylistSelectionRequest(id string, keepQueued bool) {
	e.call(func() {
		e.queue.Complete(id)
		if !keepQueued {
			e.selectionHandled[id] = struct{}{}
		}
		e.signal()
	})
}

// RequeuePlaylistSelection clears any active marker for the job and re-enters
// it at the tail of the selection queue.
func (e *Engine) RequeuePlaylistSelection(id string) {
	e.call(func() {
		delete(e.selectionHandled, id)
		if e.queue.Requeue(id) {
			e.signal()
		}
	})
}

// PendingSelections returns the queued selection-request ids in order.
func (e *Engine) PendingSelections() []string {
	var out []string
	e.call(func() { out = e.queue.Pending() })
	return out
}
