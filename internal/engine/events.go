package engine

import (
	"context"
	"errors"
	"time"

	"github.com/desertthunder/jobsync/internal/backend"
	"github.com/desertthunder/jobsync/internal/models"
	"github.com/desertthunder/jobsync/internal/shared"
)

// deletedReason is the authoritative deletion signal on updates and command
// responses, regardless of transport.
const deletedReason = "deleted"

// enqueueEvent hands a decoded event from a connection goroutine to the sync
// goroutine. Safe to call concurrently.
func (e *Engine) enqueueEvent(ev backend.Event) {
	e.do(func() { e.handleEventLocked(ev) })
}

// handleEventLocked dispatches one inbound event. The switch is exhaustive
// over the tagged variants produced by the connection boundary; a malformed
// payload never reaches this point.
func (e *Engine) handleEventLocked(ev backend.Event) {
	if id := ev.JobID(); id != "" {
		if _, ok := e.cache.Get(id); !ok {
			// The cache self-heals from missed create events: refresh the
			// job instead of silently discarding what we cannot apply.
			e.selfHealLocked(id)
			return
		}
	}

	switch ev := ev.(type) {
	case backend.UpdateEvent:
		if ev.Reason == deletedReason {
			e.afterMutationLocked(e.removeJobLocked(ev.Job))
			return
		}
		e.applyLocked(models.Job{
			ID:       ev.Job,
			Status:   ev.Status,
			Kind:     ev.Kind,
			Error:    ev.Error,
			Metadata: ev.Metadata,
			Playlist: ev.Playlist,
			Progress: ev.Progress,
		})

	case backend.LogEvent:
		if ev.EntryIndex != nil {
			// Entry-scoped lines never mix into the job's own log tail; they
			// are served on demand through the entry log fetch.
			return
		}
		job, _ := e.cache.Get(ev.Job)
		e.cache.Replace(job.WithAppendedLogs(ev.Entry))
		e.afterMutationLocked(true)

	case backend.OverviewEvent:
		if ev.Jobs == nil {
			return
		}
		e.applySetLocked(ev.Jobs, true)

	case backend.ProgressEvent:
		p := ev.Progress
		e.applyLocked(models.Job{ID: ev.Job, Progress: &p})

	case backend.PlaylistSnapshotEvent:
		// Snapshot replaces the playlist view wholesale.
		job, _ := e.cache.Get(ev.Job)
		job.Playlist = ev.Playlist.Clone()
		if ev.Status != "" {
			job.Status = ev.Status
		}
		e.cache.Replace(job)
		e.afterMutationLocked(true)

	case backend.PlaylistProgressEvent:
		pl := ev.Playlist
		e.applyLocked(models.Job{ID: ev.Job, Playlist: &pl})

	case backend.PlaylistEntryProgressEvent:
		e.applyLocked(models.Job{ID: ev.Job, Playlist: &models.PlaylistSummary{
			Entries: []models.PlaylistEntry{ev.Entry},
		}})

	case backend.GlobalInfoEvent:
		e.applyLocked(globalInfoUpdate(ev))

	case backend.EntryInfoEvent:
		e.applyLocked(models.Job{ID: ev.Job, Playlist: &models.PlaylistSummary{
			Entries: []models.PlaylistEntry{previewToEntry(ev.Entry)},
		}})

	case backend.ListInfoEndsEvent:
		e.applyLocked(listInfoEndsUpdate(ev))

	default:
		e.logger.Warn("unhandled event variant", "event", ev)
	}
}

// applyLocked merges a partial job update into the cache and re-derives the
// dependent state.
func (e *Engine) applyLocked(partial models.Job) {
	_, changed := e.cache.Upsert(partial)
	e.afterMutationLocked(changed)
}

// applySetLocked reconciles the cache against a full job-set snapshot,
// optionally pruning jobs the snapshot no longer contains.
func (e *Engine) applySetLocked(jobs []models.Job, prune bool) {
	changed := false
	seen := map[string]struct{}{}
	for _, j := range jobs {
		seen[j.ID] = struct{}{}
		if _, c := e.cache.Upsert(j); c {
			changed = true
		}
	}
	if prune {
		for _, id := range e.cache.IDs() {
			if _, ok := seen[id]; !ok {
				if e.removeJobLocked(id) {
					changed = true
				}
			}
		}
	}
	e.afterMutationLocked(changed)
}

// selfHealLocked schedules a best-effort single-job refresh for an event that
// named a job the cache has never seen, bounded by the refresh limiter.
func (e *Engine) selfHealLocked(id string) {
	if !e.fetcher.AllowSelfHeal() {
		e.logger.Debug("self-heal refresh suppressed", "job", id)
		return
	}
	e.logger.Debug("event for unknown job, refreshing", "job", id)
	go e.refreshJob(id)
}

// refreshJob fetches one job and applies the result, treating not-found as an
// implicit deletion. Runs off-loop.
func (e *Engine) refreshJob(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	job, err := e.fetcher.Job(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrJobNotFound) {
			e.call(func() { e.afterMutationLocked(e.removeJobLocked(id)) })
			return
		}
		e.logger.Debug("single-job refresh failed", "job", id, "err", err)
		return
	}
	e.call(func() { e.applyLocked(*job) })
}

func globalInfoUpdate(ev backend.GlobalInfoEvent) models.Job {
	update := models.Job{
		ID:       ev.Job,
		Status:   ev.Status,
		Kind:     ev.Kind,
		Error:    ev.Error,
		Playlist: ev.Playlist.Clone(),
		Metadata: map[string]any{},
	}
	if ev.IsPlaylist != nil {
		update.Metadata["is_playlist"] = *ev.IsPlaylist
	}
	if ev.SelectionRequired != nil {
		update.Metadata["requires_playlist_selection"] = *ev.SelectionRequired
	}
	if ev.Preview != nil {
		update.Metadata["preview"] = *ev.Preview
	}
	if ev.PlaylistTotalItems != nil {
		update.Metadata["playlist_total_items"] = *ev.PlaylistTotalItems
		if update.Playlist == nil {
			update.Playlist = &models.PlaylistSummary{}
		}
		if update.Playlist.TotalItems == nil {
			update.Playlist.TotalItems = models.IntPtr(*ev.PlaylistTotalItems)
		}
	}
	return update
}

func listInfoEndsUpdate(ev backend.ListInfoEndsEvent) models.Job {
	entries := make([]models.PlaylistEntry, 0, len(ev.Entries))
	for _, p := range ev.Entries {
		entries = append(entries, previewToEntry(p))
	}
	pl := &models.PlaylistSummary{
		Entries:             entries,
		IsCollectingEntries: models.BoolPtr(false),
		CollectionComplete:  models.BoolPtr(true),
	}
	if ev.EntryCount != nil {
		pl.EntryCount = models.IntPtr(*ev.EntryCount)
	} else if len(entries) > 0 {
		pl.EntryCount = models.IntPtr(len(entries))
	}
	update := models.Job{ID: ev.Job, Playlist: pl}
	if ev.Error != "" {
		msg := ev.Error
		update.Error = &msg
	}
	return update
}

func previewToEntry(p models.PlaylistPreviewEntry) models.PlaylistEntry {
	return models.PlaylistEntry{
		Index:   p.Index,
		EntryID: p.EntryID,
		URL:     p.URL,
		Title:   p.Title,
	}
}
