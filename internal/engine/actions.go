package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/desertthunder/jobsync/internal/backend"
	"github.com/desertthunder/jobsync/internal/models"
	"github.com/desertthunder/jobsync/internal/shared"
)

// RefreshJobs reconciles the cache against a fresh job-list snapshot. Jobs
// absent from the snapshot are dropped.
func (e *Engine) RefreshJobs(ctx context.Context) error {
	if err := e.guardRunning(); err != nil {
		return err
	}
	jobs, err := e.fetcher.JobList(ctx)
	if err != nil {
		e.recordErr(fmt.Errorf("refresh jobs: %w", err))
		return err
	}
	return e.call(func() {
		e.applySetLocked(jobs, true)
		e.setErrLocked(nil)
	})
}

// StartDownload submits a new download job and caches the backend's initial
// snapshot. Caller metadata hints (e.g. "is_playlist") and an owner tag are
// passed through; the request always carries a client-generated id so a
// retried submission can be correlated server-side.
func (e *Engine) StartDownload(ctx context.Context, rawURL string, options *models.OptionsDoc, metadata map[string]any, owner string) (models.Job, error) {
	if strings.TrimSpace(rawURL) == "" {
		err := fmt.Errorf("%w: empty url", shared.ErrInvalidInput)
		e.recordErr(err)
		return models.Job{}, err
	}
	if err := e.guardRunning(); err != nil {
		return models.Job{}, err
	}

	meta := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	if _, ok := meta["client_request_id"]; !ok {
		meta["client_request_id"] = shared.GenerateID()
	}

	job, err := e.api.CreateJob(ctx, backend.CreateJobRequest{
		URL:      rawURL,
		Options:  options,
		Metadata: meta,
		Owner:    owner,
	})
	if err != nil {
		err = fmt.Errorf("start download: %w", err)
		e.recordErr(err)
		return models.Job{}, err
	}

	out := job.Clone()
	callErr := e.call(func() {
		e.applyLocked(*job)
		e.setErrLocked(nil)
	})
	return out, callErr
}

// command describes one remote job command for the optimistic executor.
type command struct {
	verb string

	// optimistic is applied to the cached job before the round-trip; empty
	// means no local status change.
	optimistic models.Status

	// expectDeletion removes the job on success even when the response does
	// not say "deleted".
	expectDeletion bool

	invoke func(ctx context.Context) (*backend.CommandResponse, error)
}

// perform runs a job command optimistically: the status flips locally first,
// the remote call follows, and a failure restores the pre-call snapshot
// exactly, including its prior error. A not-found answer is an implicit
// deletion rather than a failure.
func (e *Engine) perform(ctx context.Context, id string, cmd command) error {
	if err := e.guardRunning(); err != nil {
		return err
	}

	var (
		prev  models.Job
		found bool
	)
	if err := e.call(func() {
		prev, found = e.cache.Get(id)
		if !found {
			return
		}
		if cmd.optimistic != "" {
			next := prev.Clone()
			next.Status = cmd.optimistic
			e.cache.Replace(next)
			e.afterMutationLocked(true)
		}
	}); err != nil {
		return err
	}
	if !found {
		err := fmt.Errorf("%w: %s %s", shared.ErrJobNotFound, cmd.verb, id)
		e.recordErr(err)
		return err
	}

	resp, err := cmd.invoke(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrJobNotFound) {
			// The job is gone server-side; converge instead of rolling back.
			e.call(func() { e.afterMutationLocked(e.removeJobLocked(id)) })
			return nil
		}
		e.call(func() {
			e.cache.Replace(prev)
			e.afterMutationLocked(true)
			e.setErrLocked(fmt.Errorf("%w: %s %s: %v", shared.ErrCommandFailed, cmd.verb, id, err))
		})
		return fmt.Errorf("%w: %s %s: %v", shared.ErrCommandFailed, cmd.verb, id, err)
	}

	return e.call(func() {
		if cmd.expectDeletion || resp.Deleted() {
			e.afterMutationLocked(e.removeJobLocked(id))
			e.setErrLocked(nil)
			return
		}
		if status := models.ParseStatus(resp.Status); resp.Status != "" && status != models.StatusUnknown {
			e.applyLocked(models.Job{ID: id, Status: status, Error: resp.Error})
		} else {
			// A bare ack or an unrecognized status cannot settle the
			// optimistic flip; let a single-job refresh find the real one.
			go e.refreshJob(id)
		}
		e.setErrLocked(nil)
	})
}

// PauseJob asks the backend to pause the job, flipping it to pausing locally
// until the backend confirms.
func (e *Engine) PauseJob(ctx context.Context, id string) error {
	return e.perform(ctx, id, command{
		verb:       "pause",
		optimistic: models.StatusPausing,
		invoke:     func(ctx context.Context) (*backend.CommandResponse, error) { return e.api.PauseJob(ctx, id) },
	})
}

// ResumeJob asks the backend to resume a paused job.
func (e *Engine) ResumeJob(ctx context.Context, id string) error {
	return e.perform(ctx, id, command{
		verb:       "resume",
		optimistic: models.StatusRunning,
		invoke:     func(ctx context.Context) (*backend.CommandResponse, error) { return e.api.ResumeJob(ctx, id) },
	})
}

// CancelJob asks the backend to cancel the job.
func (e *Engine) CancelJob(ctx context.Context, id string) error {
	return e.perform(ctx, id, command{
		verb:       "cancel",
		optimistic: models.StatusCancelling,
		invoke:     func(ctx context.Context) (*backend.CommandResponse, error) { return e.api.CancelJob(ctx, id) },
	})
}

// RetryJob asks the backend to retry a failed job.
func (e *Engine) RetryJob(ctx context.Context, id string) error {
	return e.perform(ctx, id, command{
		verb:       "retry",
		optimistic: models.StatusRetrying,
		invoke:     func(ctx context.Context) (*backend.CommandResponse, error) { return e.api.RetryJob(ctx, id) },
	})
}

// DeleteJob removes the job server-side and drops it from the cache.
func (e *Engine) DeleteJob(ctx context.Context, id string) error {
	return e.perform(ctx, id, command{
		verb:           "delete",
		expectDeletion: true,
		invoke:         func(ctx context.Context) (*backend.CommandResponse, error) { return e.api.DeleteJob(ctx, id) },
	})
}

// RetryPlaylistEntries retries the named playlist entries by index or entry
// id. At least one selector is required.
func (e *Engine) RetryPlaylistEntries(ctx context.Context, id string, indices []int, entryIDs []string) error {
	if len(indices) == 0 && len(entryIDs) == 0 {
		err := fmt.Errorf("%w: no entries to retry", shared.ErrInvalidInput)
		e.recordErr(err)
		return err
	}
	if err := e.guardRunning(); err != nil {
		return err
	}

	if _, err := e.api.RetryPlaylistEntries(ctx, id, indices, entryIDs); err != nil {
		if errors.Is(err, shared.ErrJobNotFound) {
			e.call(func() { e.afterMutationLocked(e.removeJobLocked(id)) })
			return nil
		}
		err = fmt.Errorf("%w: retry-entries %s: %v", shared.ErrCommandFailed, id, err)
		e.recordErr(err)
		return err
	}

	// The per-entry outcome arrives over the event channel; a refresh covers
	// the window before it does.
	go e.refreshJob(id)
	return e.call(func() { e.setErrLocked(nil) })
}

// RetryAllFailedPlaylistEntries retries every failed entry that is not
// already queued for a retry.
func (e *Engine) RetryAllFailedPlaylistEntries(ctx context.Context, id string) error {
	var (
		indices []int
		found   bool
	)
	if err := e.call(func() {
		var job models.Job
		job, found = e.cache.Get(id)
		if !found || job.Playlist == nil {
			return
		}
		pending := map[int]struct{}{}
		for _, idx := range job.Playlist.PendingRetryIndices {
			pending[idx] = struct{}{}
		}
		failed := map[int]struct{}{}
		for _, idx := range job.Playlist.FailedIndices {
			failed[idx] = struct{}{}
		}
		for _, entry := range job.Playlist.Entries {
			if entry.Status == models.StatusFailed {
				failed[entry.Index] = struct{}{}
			}
		}
		for idx := range failed {
			if _, ok := pending[idx]; !ok {
				indices = append(indices, idx)
			}
		}
		sort.Ints(indices)
	}); err != nil {
		return err
	}
	if !found {
		err := fmt.Errorf("%w: retry-entries %s", shared.ErrJobNotFound, id)
		e.recordErr(err)
		return err
	}
	if len(indices) == 0 {
		err := fmt.Errorf("%w: no failed entries to retry", shared.ErrInvalidInput)
		e.recordErr(err)
		return err
	}
	return e.RetryPlaylistEntries(ctx, id, indices, nil)
}

// SubmitPlaylistSelection sends the user's entry selection. A nil indices
// slice selects all entries. On success the selection is recorded locally so
// the job stops requiring one without waiting for the backend echo.
func (e *Engine) SubmitPlaylistSelection(ctx context.Context, id string, indices []int) error {
	if err := e.guardRunning(); err != nil {
		return err
	}

	if _, err := e.api.SubmitPlaylistSelection(ctx, id, indices); err != nil {
		if errors.Is(err, shared.ErrJobNotFound) {
			e.call(func() { e.afterMutationLocked(e.removeJobLocked(id)) })
			return nil
		}
		err = fmt.Errorf("%w: selection %s: %v", shared.ErrCommandFailed, id, err)
		e.recordErr(err)
		return err
	}

	return e.call(func() {
		meta := map[string]any{"requires_playlist_selection": false}
		if indices != nil {
			meta["selected_indices"] = append([]int(nil), indices...)
		}
		e.applyLocked(models.Job{ID: id, Metadata: meta})
		e.setErrLocked(nil)
	})
}

// LoadJobOptions hydrates and returns the job's options document.
func (e *Engine) LoadJobOptions(ctx context.Context, id string) (*models.OptionsDoc, error) {
	if err := e.guardRunning(); err != nil {
		return nil, err
	}
	payload, err := e.fetcher.Options(ctx, id, backend.EntrySelector{})
	if err != nil {
		e.recordErr(fmt.Errorf("load options: %w", err))
		return nil, err
	}
	callErr := e.call(func() {
		e.applyLocked(models.Job{
			ID:              id,
			Options:         payload.Options,
			OptionsVersion:  payload.Version,
			OptionsExternal: payload.External,
		})
		e.setErrLocked(nil)
	})
	return payload.Options.Clone(), callErr
}

// LoadJobLogs hydrates and returns the job's log tail. The fetch asks for a
// delta since the cached version; a full or out-of-sequence payload replaces
// the cached list.
func (e *Engine) LoadJobLogs(ctx context.Context, id string) ([]models.LogEntry, error) {
	if err := e.guardRunning(); err != nil {
		return nil, err
	}

	var since int64
	e.call(func() {
		if job, ok := e.cache.Get(id); ok {
			since = job.LogsVersion
		}
	})

	payload, err := e.fetcher.Logs(ctx, id, backend.EntrySelector{}, since)
	if err != nil {
		e.recordErr(fmt.Errorf("load logs: %w", err))
		return nil, err
	}

	var out []models.LogEntry
	callErr := e.call(func() {
		job, ok := e.cache.Get(id)
		if !ok {
			out = append([]models.LogEntry(nil), payload.Entries...)
			return
		}
		logs, version := ReconcileLogs(job.Logs, job.LogsVersion, payload)
		job.Logs = logs
		job.LogsVersion = version
		e.cache.Replace(job)
		e.afterMutationLocked(true)
		e.setErrLocked(nil)
		out = append([]models.LogEntry(nil), logs...)
	})
	return out, callErr
}

// LoadPlaylist hydrates and returns the job's playlist view, delta-fetched
// against the cached entries version.
func (e *Engine) LoadPlaylist(ctx context.Context, id string) (*models.PlaylistSummary, error) {
	if err := e.guardRunning(); err != nil {
		return nil, err
	}

	var since int64
	e.call(func() {
		if job, ok := e.cache.Get(id); ok && job.Playlist != nil {
			since = job.Playlist.EntriesVersion
		}
	})

	payload, err := e.fetcher.Playlist(ctx, id, since)
	if err != nil {
		e.recordErr(fmt.Errorf("load playlist: %w", err))
		return nil, err
	}

	var out *models.PlaylistSummary
	callErr := e.call(func() {
		job, ok := e.cache.Get(id)
		if !ok {
			out = ReconcilePlaylist(nil, payload)
			return
		}
		job.Playlist = ReconcilePlaylist(job.Playlist, payload)
		e.cache.Replace(job)
		e.afterMutationLocked(true)
		e.setErrLocked(nil)
		out = job.Playlist.Clone()
	})
	return out, callErr
}

// LoadEntryJobOptions fetches one playlist entry's options document. Entry
// documents are returned to the caller without touching the job cache.
func (e *Engine) LoadEntryJobOptions(ctx context.Context, id string, sel backend.EntrySelector) (*models.OptionsDoc, error) {
	if err := e.guardRunning(); err != nil {
		return nil, err
	}
	payload, err := e.fetcher.Options(ctx, id, sel)
	if err != nil {
		e.recordErr(fmt.Errorf("load entry options: %w", err))
		return nil, err
	}
	return payload.Options.Clone(), nil
}

// LoadEntryJobLogs fetches one playlist entry's logs without touching the job
// cache.
func (e *Engine) LoadEntryJobLogs(ctx context.Context, id string, sel backend.EntrySelector) ([]models.LogEntry, error) {
	if err := e.guardRunning(); err != nil {
		return nil, err
	}
	payload, err := e.fetcher.Logs(ctx, id, sel, 0)
	if err != nil {
		e.recordErr(fmt.Errorf("load entry logs: %w", err))
		return nil, err
	}
	return append([]models.LogEntry(nil), payload.Entries...), nil
}

// PreviewURL resolves a URL to its title and playlist shape without creating
// a job.
func (e *Engine) PreviewURL(ctx context.Context, rawURL string) (*models.PlaylistPreviewEntry, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, fmt.Errorf("%w: empty url", shared.ErrInvalidInput)
	}
	if err := e.guardRunning(); err != nil {
		return nil, err
	}
	preview, err := e.api.PreviewURL(ctx, rawURL)
	if err != nil {
		e.recordErr(fmt.Errorf("preview: %w", err))
		return nil, err
	}
	return preview, nil
}
