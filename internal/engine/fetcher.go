package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/desertthunder/jobsync/internal/backend"
	"github.com/desertthunder/jobsync/internal/models"
)

// API is the pull-style backend surface the engine consumes. *backend.Client
// implements it; tests substitute a fake.
type API interface {
	ListJobs(ctx context.Context) ([]models.Job, error)
	GetJob(ctx context.Context, id string) (*models.Job, error)
	CreateJob(ctx context.Context, req backend.CreateJobRequest) (*models.Job, error)
	PauseJob(ctx context.Context, id string) (*backend.CommandResponse, error)
	ResumeJob(ctx context.Context, id string) (*backend.CommandResponse, error)
	CancelJob(ctx context.Context, id string) (*backend.CommandResponse, error)
	RetryJob(ctx context.Context, id string) (*backend.CommandResponse, error)
	DeleteJob(ctx context.Context, id string) (*backend.CommandResponse, error)
	RetryPlaylistEntries(ctx context.Context, id string, indices []int, entryIDs []string) (*backend.CommandResponse, error)
	SubmitPlaylistSelection(ctx context.Context, id string, indices []int) (*backend.CommandResponse, error)
	JobOptions(ctx context.Context, id string, sel backend.EntrySelector) (*backend.OptionsPayload, error)
	JobLogs(ctx context.Context, id string, sel backend.EntrySelector, sinceVersion int64) (*backend.LogsPayload, error)
	Playlist(ctx context.Context, id string, sinceVersion int64) (*backend.PlaylistPayload, error)
	PreviewURL(ctx context.Context, rawURL string) (*models.PlaylistPreviewEntry, error)
}

// Fetcher wraps the API's snapshot fetches with in-flight de-duplication: for
// every (resource-kind, job id, entry selector) tuple at most one fetch is in
// flight, and concurrent callers share its result.
type Fetcher struct {
	api   API
	group singleflight.Group

	// heal throttles best-effort single-job refreshes triggered by events
	// naming a job the cache has never seen, so an event burst for a missed
	// job cannot fan out into a fetch storm.
	heal *rate.Limiter
}

// NewFetcher creates a fetcher. refreshRate/refreshBurst bound self-heal
// refreshes; zero values fall back to 1/sec with a burst of 3.
func NewFetcher(api API, refreshRate float64, refreshBurst int) *Fetcher {
	if refreshRate <= 0 {
		refreshRate = 1
	}
	if refreshBurst <= 0 {
		refreshBurst = 3
	}
	return &Fetcher{
		api:  api,
		heal: rate.NewLimiter(rate.Limit(refreshRate), refreshBurst),
	}
}

func selKey(sel backend.EntrySelector) string {
	return fmt.Sprintf("%s#%d", sel.EntryID, sel.EntryIndex)
}

// JobList fetches the job list, de-duplicated across concurrent callers.
func (f *Fetcher) JobList(ctx context.Context) ([]models.Job, error) {
	v, err, _ := f.group.Do("list", func() (any, error) {
		return f.api.ListJobs(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Job), nil
}

// Job fetches a single job snapshot.
func (f *Fetcher) Job(ctx context.Context, id string) (*models.Job, error) {
	v, err, _ := f.group.Do("job/"+id, func() (any, error) {
		return f.api.GetJob(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Job), nil
}

// Options fetches a job's (or one entry's) options document.
func (f *Fetcher) Options(ctx context.Context, id string, sel backend.EntrySelector) (*backend.OptionsPayload, error) {
	v, err, _ := f.group.Do("options/"+id+"/"+selKey(sel), func() (any, error) {
		return f.api.JobOptions(ctx, id, sel)
	})
	if err != nil {
		return nil, err
	}
	return v.(*backend.OptionsPayload), nil
}

// Logs fetches a job's (or one entry's) logs. The de-dup key deliberately
// excludes the since-version: a second caller racing the first gets the first
// caller's payload and reconciles from there.
func (f *Fetcher) Logs(ctx context.Context, id string, sel backend.EntrySelector, sinceVersion int64) (*backend.LogsPayload, error) {
	v, err, _ := f.group.Do("logs/"+id+"/"+selKey(sel), func() (any, error) {
		return f.api.JobLogs(ctx, id, sel, sinceVersion)
	})
	if err != nil {
		return nil, err
	}
	return v.(*backend.LogsPayload), nil
}

// Playlist fetches a job's playlist entries.
func (f *Fetcher) Playlist(ctx context.Context, id string, sinceVersion int64) (*backend.PlaylistPayload, error) {
	v, err, _ := f.group.Do("playlist/"+id, func() (any, error) {
		return f.api.Playlist(ctx, id, sinceVersion)
	})
	if err != nil {
		return nil, err
	}
	return v.(*backend.PlaylistPayload), nil
}

// AllowSelfHeal reports whether another unknown-job refresh may run now.
func (f *Fetcher) AllowSelfHeal() bool {
	return f.heal.Allow()
}

// ReconcileLogs applies a logs payload onto the cached list. An incremental
// payload is appended only when its since-version matches the cached version;
// anything else is treated as authoritative and replaces the cache wholesale,
// protecting against lost updates.
func ReconcileLogs(cached []models.LogEntry, cachedVersion int64, p *backend.LogsPayload) ([]models.LogEntry, int64) {
	if p == nil {
		return cached, cachedVersion
	}
	if !p.Full && p.Since == cachedVersion {
		merged := append(append([]models.LogEntry(nil), cached...), p.Entries...)
		if len(merged) > models.LogCap {
			merged = merged[len(merged)-models.LogCap:]
		}
		return merged, p.Version
	}
	out := append([]models.LogEntry(nil), p.Entries...)
	if len(out) > models.LogCap {
		out = out[len(out)-models.LogCap:]
	}
	return out, p.Version
}

// ReconcilePlaylist applies a playlist payload onto the cached summary under
// the same delta rules as logs: incremental entries union in by index, a full
// or version-mismatched payload replaces the entry list wholesale.
func ReconcilePlaylist(cached *models.PlaylistSummary, p *backend.PlaylistPayload) *models.PlaylistSummary {
	if p == nil {
		return cached.Clone()
	}

	out := cached.Merge(p.Playlist)
	if out == nil {
		out = &models.PlaylistSummary{}
	}

	incremental := !p.Full && cached != nil && p.Since == cached.EntriesVersion
	if incremental {
		out = out.Merge(&models.PlaylistSummary{Entries: p.Entries})
	} else if p.Entries != nil || p.Full {
		out.Entries = nil
		out = out.Merge(&models.PlaylistSummary{Entries: p.Entries})
	}
	out.EntriesVersion = p.Version
	return out
}
