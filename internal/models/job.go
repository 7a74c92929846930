package models

import (
	"reflect"
	"strings"
	"time"
)

// LogCap bounds the number of log entries retained per job, newest last.
const LogCap = 200

// Job is the client's view of one remote download task. The id is immutable
// once created; everything else converges toward the backend's view through
// [Job.Merge].
type Job struct {
	ID        string     `json:"id"`
	Status    Status     `json:"status"`
	Kind      Kind       `json:"kind"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	URLs []string `json:"urls,omitempty"`

	// Options may be a placeholder when the backend reports them as
	// externally stored; OptionsVersion drives delta re-fetch.
	Options         *OptionsDoc `json:"options,omitempty"`
	OptionsExternal bool        `json:"options_external,omitempty"`
	OptionsVersion  int64       `json:"options_version,omitempty"`
	LogsVersion     int64       `json:"logs_version,omitempty"`

	Progress *Progress        `json:"progress,omitempty"`
	Logs     []LogEntry       `json:"logs,omitempty"`
	Playlist *PlaylistSummary `json:"playlist,omitempty"`

	// Metadata is a free-form map carrying preview and playlist hints.
	Metadata map[string]any `json:"metadata,omitempty"`

	Error *string `json:"error,omitempty"`

	GeneratedFiles []string `json:"generated_files,omitempty"`
	MainFile       string   `json:"main_file,omitempty"`
}

// Clone returns a deep copy of the job.
func (j Job) Clone() Job {
	out := j
	out.CreatedAt = cloneTimePtr(j.CreatedAt)
	out.StartedAt = cloneTimePtr(j.StartedAt)
	out.FinishedAt = cloneTimePtr(j.FinishedAt)
	out.URLs = append([]string(nil), j.URLs...)
	out.Options = j.Options.Clone()
	if j.Progress != nil {
		p := *j.Progress
		out.Progress = &p
	}
	out.Logs = append([]LogEntry(nil), j.Logs...)
	out.Playlist = j.Playlist.Clone()
	if j.Metadata != nil {
		out.Metadata = make(map[string]any, len(j.Metadata))
		for k, v := range j.Metadata {
			out.Metadata[k] = v
		}
	}
	if j.Error != nil {
		e := *j.Error
		out.Error = &e
	}
	out.GeneratedFiles = append([]string(nil), j.GeneratedFiles...)
	return out
}

// Equal reports whether two jobs carry identical content.
func (j Job) Equal(other Job) bool {
	return reflect.DeepEqual(j, other)
}

// Merge combines the cached job with an incoming, possibly partial, update and
// returns the result. Field precedence:
//
//  1. non-zero incoming scalar fields replace cached ones;
//  2. options and logs are replaced only when the incoming payload is
//     non-empty or the incoming version differs from the cached one, so an
//     event update cannot erase data hydrated by a separate snapshot fetch;
//  3. the playlist is merged recursively via [PlaylistSummary.Merge].
func (j Job) Merge(in Job) Job {
	out := j.Clone()

	if in.Status != "" {
		out.Status = in.Status
	}
	if in.Kind != "" {
		out.Kind = in.Kind
	}
	if in.CreatedAt != nil {
		out.CreatedAt = cloneTimePtr(in.CreatedAt)
	}
	if in.StartedAt != nil {
		out.StartedAt = cloneTimePtr(in.StartedAt)
	}
	if in.FinishedAt != nil {
		out.FinishedAt = cloneTimePtr(in.FinishedAt)
	}
	if len(in.URLs) > 0 {
		out.URLs = append([]string(nil), in.URLs...)
	}

	if in.Options.Len() > 0 || (in.OptionsVersion != 0 && in.OptionsVersion != j.OptionsVersion) {
		out.Options = in.Options.Clone()
		if in.OptionsVersion != 0 {
			out.OptionsVersion = in.OptionsVersion
		}
	}
	if in.OptionsExternal {
		out.OptionsExternal = true
	}

	if len(in.Logs) > 0 || (in.LogsVersion != 0 && in.LogsVersion != j.LogsVersion) {
		out.Logs = capLogs(append([]LogEntry(nil), in.Logs...))
		if in.LogsVersion != 0 {
			out.LogsVersion = in.LogsVersion
		}
	}

	if in.Progress != nil {
		p := *in.Progress
		out.Progress = &p
	}

	out.Playlist = j.Playlist.Merge(in.Playlist)

	if len(in.Metadata) > 0 {
		if out.Metadata == nil {
			out.Metadata = make(map[string]any, len(in.Metadata))
		}
		for k, v := range in.Metadata {
			out.Metadata[k] = v
		}
	}

	if in.Error != nil {
		e := *in.Error
		out.Error = &e
	}
	if len(in.GeneratedFiles) > 0 {
		out.GeneratedFiles = append([]string(nil), in.GeneratedFiles...)
	}
	if in.MainFile != "" {
		out.MainFile = in.MainFile
	}
	return out
}

// WithAppendedLogs returns a copy of the job with entries appended, keeping at
// most [LogCap] entries (newest last).
func (j Job) WithAppendedLogs(entries ...LogEntry) Job {
	out := j.Clone()
	out.Logs = capLogs(append(out.Logs, entries...))
	return out
}

func capLogs(logs []LogEntry) []LogEntry {
	if len(logs) <= LogCap {
		return logs
	}
	return append([]LogEntry(nil), logs[len(logs)-LogCap:]...)
}

func cloneTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// collectingStages are stage names the backend emits while it is still
// enumerating playlist entries. Best-effort; see CollectingEntries.
var collectingStages = []string{
	"collecting",
	"extracting entries",
	"fetching playlist",
	"listing entries",
}

// CollectingEntries reports whether the backend appears to still be
// enumerating the job's playlist entries. Precedence: the backend's explicit
// flag, then count comparison, then the stage-name heuristic. The heuristic
// tail is best-effort and can disagree with the backend in edge cases (a
// playlist whose total is briefly reported as 0); the flag always wins.
func (j Job) CollectingEntries() bool {
	if j.Status.Terminal() {
		return false
	}
	p := j.Playlist
	if p != nil {
		if p.IsCollectingEntries != nil {
			return *p.IsCollectingEntries
		}
		if p.CollectionComplete != nil && *p.CollectionComplete {
			return false
		}
		if p.TotalItems != nil && *p.TotalItems > 0 && len(p.Entries) >= *p.TotalItems {
			return false
		}
		if p.HasIndefiniteLength != nil && *p.HasIndefiniteLength {
			return true
		}
	}
	if j.Progress != nil {
		stage := strings.ToLower(j.Progress.Stage)
		for _, s := range collectingStages {
			if strings.Contains(stage, s) {
				return true
			}
		}
	}
	return false
}

// LooksLikePlaylist reports whether the job appears to be a playlist: the
// explicit metadata flag, an inferred entry count above one, or active entry
// collection with indefinite length.
func (j Job) LooksLikePlaylist() bool {
	// A resolved single-entry "playlist" is just one download; it never
	// needs a selection.
	if j.Playlist.KnownEntryTotal() == 1 && !j.CollectingEntries() {
		return false
	}
	if j.Kind == KindPlaylist {
		return true
	}
	if flag, ok := j.Metadata["is_playlist"].(bool); ok && flag {
		return true
	}
	if j.Playlist.KnownEntryTotal() > 1 {
		return true
	}
	if n, ok := metadataInt(j.Metadata, "playlist_total_items"); ok && n > 1 {
		return true
	}
	if j.CollectingEntries() && j.Playlist != nil &&
		j.Playlist.HasIndefiniteLength != nil && *j.Playlist.HasIndefiniteLength {
		return true
	}
	return false
}

// HasPersistedSelection reports whether the user's playlist selection is
// already settled: the backend's explicit hint, a configured playlist_items
// option, or selected indices recorded in metadata all count.
func (j Job) HasPersistedSelection() bool {
	if flag, ok := j.Metadata["requires_playlist_selection"].(bool); ok && !flag {
		return true
	}
	if items, ok := j.Options.GetString("playlist_items"); ok && items != "" {
		return true
	}
	if sel, ok := j.Metadata["selected_indices"]; ok {
		switch v := sel.(type) {
		case []any:
			if len(v) > 0 {
				return true
			}
		case []int:
			if len(v) > 0 {
				return true
			}
		}
	}
	return false
}

// RequiresPlaylistSelection reports whether the job is waiting on the user to
// decide which playlist entries to download.
func (j Job) RequiresPlaylistSelection() bool {
	if j.Status.Terminal() {
		return false
	}
	if j.HasPersistedSelection() {
		return false
	}
	return j.LooksLikePlaylist()
}

func metadataInt(m map[string]any, key string) (int, bool) {
	switch v := m[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
