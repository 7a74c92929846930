package backend

import (
	"encoding/json"
	"fmt"

	"github.com/desertthunder/jobsync/internal/models"
	"github.com/desertthunder/jobsync/internal/shared"
)

// Event is one inbound message from an event channel, decoded once at the
// connection boundary into a tagged variant. The dispatcher switches
// exhaustively over the concrete types below.
type Event interface {
	// JobID names the job the event is about; empty for job-set-wide events.
	JobID() string

	event()
}

// UpdateEvent is a job-set-wide status update from the overview channel.
type UpdateEvent struct {
	Job      string
	Status   models.Status
	Kind     models.Kind
	Reason   string
	Error    *string
	Metadata map[string]any
	Playlist *models.PlaylistSummary
	Progress *models.Progress
}

// LogEvent appends one log line to a job (or one of its playlist entries).
type LogEvent struct {
	Job        string
	EntryIndex *int
	Entry      models.LogEntry
}

// OverviewEvent is a full snapshot of the job set pushed over the overview
// channel.
type OverviewEvent struct {
	Jobs []models.Job
}

// ProgressEvent carries a fresh progress snapshot for one job.
type ProgressEvent struct {
	Job      string
	Progress models.Progress
}

// PlaylistSnapshotEvent replaces a job's playlist view wholesale.
type PlaylistSnapshotEvent struct {
	Job      string
	Playlist models.PlaylistSummary
	Status   models.Status
}

// PlaylistProgressEvent carries playlist-wide counters for one job.
type PlaylistProgressEvent struct {
	Job      string
	Playlist models.PlaylistSummary
}

// PlaylistEntryProgressEvent updates a single playlist entry by index.
type PlaylistEntryProgressEvent struct {
	Job   string
	Entry models.PlaylistEntry
}

// GlobalInfoEvent carries early hints about a job: whether it is a playlist,
// whether a selection is required, a preview, and optional status fields.
type GlobalInfoEvent struct {
	Job                string
	IsPlaylist         *bool
	SelectionRequired  *bool
	Preview            *models.PlaylistPreviewEntry
	Playlist           *models.PlaylistSummary
	PlaylistTotalItems *int
	Status             models.Status
	Kind               models.Kind
	Reason             string
	Error              *string
}

// EntryInfoEvent carries a preview for one playlist entry.
type EntryInfoEvent struct {
	Job   string
	Entry models.PlaylistPreviewEntry
}

// ListInfoEndsEvent signals that playlist entry collection finished.
type ListInfoEndsEvent struct {
	Job        string
	Entries    []models.PlaylistPreviewEntry
	EntryCount *int
	Error      string
}

func (e UpdateEvent) JobID() string                { return e.Job }
func (e LogEvent) JobID() string                   { return e.Job }
func (e OverviewEvent) JobID() string              { return "" }
func (e ProgressEvent) JobID() string              { return e.Job }
func (e PlaylistSnapshotEvent) JobID() string      { return e.Job }
func (e PlaylistProgressEvent) JobID() string      { return e.Job }
func (e PlaylistEntryProgressEvent) JobID() string { return e.Job }
func (e GlobalInfoEvent) JobID() string            { return e.Job }
func (e EntryInfoEvent) JobID() string             { return e.Job }
func (e ListInfoEndsEvent) JobID() string          { return e.Job }

func (UpdateEvent) event()                {}
func (LogEvent) event()                   {}
func (OverviewEvent) event()              {}
func (ProgressEvent) event()              {}
func (PlaylistSnapshotEvent) event()      {}
func (PlaylistProgressEvent) event()      {}
func (PlaylistEntryProgressEvent) event() {}
func (GlobalInfoEvent) event()            {}
func (EntryInfoEvent) event()             {}
func (ListInfoEndsEvent) event()          {}

// envelope is the wire form of every event: {"event": name, "payload": {...}}.
type envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// entryIndexAliases tolerates the three names the backend uses for a playlist
// entry index.
type entryIndexAliases struct {
	Index         *int `json:"index"`
	EntryIndex    *int `json:"entry_index"`
	PlaylistIndex *int `json:"playlist_index"`
}

func (a entryIndexAliases) value() (int, bool) {
	switch {
	case a.Index != nil:
		return *a.Index, true
	case a.EntryIndex != nil:
		return *a.EntryIndex, true
	case a.PlaylistIndex != nil:
		return *a.PlaylistIndex, true
	default:
		return 0, false
	}
}

// DecodeEvent decodes one wire message into its tagged variant. Unknown event
// names and undecodable payloads return a [shared.ErrDecode]-wrapped error;
// the caller drops and logs them, never propagates.
func DecodeEvent(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: bad envelope: %v", shared.ErrDecode, err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("%w: envelope missing event name", shared.ErrDecode)
	}

	fail := func(err error) (Event, error) {
		return nil, fmt.Errorf("%w: %s payload: %v", shared.ErrDecode, env.Event, err)
	}

	switch env.Event {
	case "update":
		var p struct {
			JobID    string                  `json:"job_id"`
			Status   string                  `json:"status"`
			Kind     string                  `json:"kind"`
			Reason   string                  `json:"reason"`
			Error    *string                 `json:"error"`
			Metadata map[string]any          `json:"metadata"`
			Playlist *models.PlaylistSummary `json:"playlist"`
			Progress *models.Progress        `json:"progress"`
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fail(err)
		}
		return UpdateEvent{
			Job:      p.JobID,
			Status:   models.ParseStatus(p.Status),
			Kind:     models.ParseKind(p.Kind),
			Reason:   p.Reason,
			Error:    p.Error,
			Metadata: p.Metadata,
			Playlist: p.Playlist,
			Progress: p.Progress,
		}, nil

	case "log":
		var p struct {
			JobID string `json:"job_id"`
			entryIndexAliases
			models.LogEntry
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fail(err)
		}
		ev := LogEvent{Job: p.JobID, Entry: p.LogEntry}
		if idx, ok := p.value(); ok {
			ev.EntryIndex = &idx
		}
		return ev, nil

	case "overview", "overview-snapshot":
		var p struct {
			Jobs []models.Job `json:"jobs"`
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fail(err)
		}
		return OverviewEvent{Jobs: p.Jobs}, nil

	case "progress":
		var p struct {
			JobID string `json:"job_id"`
			models.Progress
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fail(err)
		}
		return ProgressEvent{Job: p.JobID, Progress: p.Progress}, nil

	case "playlist-snapshot":
		var p struct {
			JobID    string                 `json:"job_id"`
			Status   string                 `json:"status"`
			Playlist models.PlaylistSummary `json:"playlist"`
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fail(err)
		}
		return PlaylistSnapshotEvent{Job: p.JobID, Playlist: p.Playlist, Status: models.ParseStatus(p.Status)}, nil

	case "playlist-progress":
		var p struct {
			JobID string `json:"job_id"`
			models.PlaylistSummary
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fail(err)
		}
		return PlaylistProgressEvent{Job: p.JobID, Playlist: p.PlaylistSummary}, nil

	case "playlist-entry-progress":
		var p struct {
			JobID string `json:"job_id"`
			entryIndexAliases
			EntryID  string           `json:"entry_id"`
			URL      string           `json:"url"`
			Title    string           `json:"title"`
			Status   string           `json:"status"`
			Error    string           `json:"error"`
			Progress *models.Progress `json:"progress"`
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fail(err)
		}
		idx, ok := p.value()
		if !ok || idx <= 0 {
			return fail(fmt.Errorf("missing entry index"))
		}
		return PlaylistEntryProgressEvent{
			Job: p.JobID,
			Entry: models.PlaylistEntry{
				Index:    idx,
				EntryID:  p.EntryID,
				URL:      p.URL,
				Title:    p.Title,
				Status:   models.ParseStatus(p.Status),
				Error:    p.Error,
				Progress: p.Progress,
			},
		}, nil

	case "global-info":
		var p struct {
			JobID              string                       `json:"job_id"`
			IsPlaylist         *bool                        `json:"is_playlist"`
			SelectionRequired  *bool                        `json:"selection_required"`
			Preview            *models.PlaylistPreviewEntry `json:"preview"`
			Playlist           *models.PlaylistSummary      `json:"playlist"`
			PlaylistTotalItems *int                         `json:"playlist_total_items"`
			Status             string                       `json:"status"`
			Kind               string                       `json:"kind"`
			Reason             string                       `json:"reason"`
			Error              *string                      `json:"error"`
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fail(err)
		}
		return GlobalInfoEvent{
			Job:                p.JobID,
			IsPlaylist:         p.IsPlaylist,
			SelectionRequired:  p.SelectionRequired,
			Preview:            p.Preview,
			Playlist:           p.Playlist,
			PlaylistTotalItems: p.PlaylistTotalItems,
			Status:             models.ParseStatus(p.Status),
			Kind:               models.ParseKind(p.Kind),
			Reason:             p.Reason,
			Error:              p.Error,
		}, nil

	case "entry-info", "preview-entry":
		var p struct {
			JobID string `json:"job_id"`
			models.PlaylistPreviewEntry
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fail(err)
		}
		return EntryInfoEvent{Job: p.JobID, Entry: p.PlaylistPreviewEntry}, nil

	case "list-info-ends":
		var p struct {
			JobID      string                        `json:"job_id"`
			Entries    []models.PlaylistPreviewEntry `json:"entries"`
			EntryCount *int                          `json:"entry_count"`
			Error      string                        `json:"error"`
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fail(err)
		}
		return ListInfoEndsEvent{Job: p.JobID, Entries: p.Entries, EntryCount: p.EntryCount, Error: p.Error}, nil

	default:
		return nil, fmt.Errorf("%w: unknown event %q", shared.ErrDecode, env.Event)
	}
}
