package models

import "strings"

// Status is the lifecycle state of a [Job], driven by the backend except for
// optimistic transitions applied ahead of a command round-trip.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusStarting   Status = "starting"
	StatusRunning    Status = "running"
	StatusPausing    Status = "pausing"
	StatusPaused     Status = "paused"
	StatusRetrying   Status = "retrying"
	StatusCancelling Status = "cancelling"
	StatusCancelled  Status = "cancelled"
	StatusCompleted  Status = "completed"

	// StatusCompletedWithErrors marks a finished job where some playlist
	// entries failed.
	StatusCompletedWithErrors Status = "completed_with_errors"

	StatusFailed Status = "failed"

	// StatusUnknown is the decode fallback for an unrecognized status string.
	// It is never terminal.
	StatusUnknown Status = "unknown"
)

// ParseStatus maps a backend status string onto a [Status], falling back to
// [StatusUnknown] for anything unrecognized. An empty string stays empty so a
// partial update without a status field does not overwrite the cached one.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return ""
	case "queued", "pending":
		return StatusQueued
	case "starting":
		return StatusStarting
	case "running", "downloading", "in_progress":
		return StatusRunning
	case "resuming":
		// The backend reports a transient "resuming" that lands in running.
		return StatusRunning
	case "pausing":
		return StatusPausing
	case "paused":
		return StatusPaused
	case "retrying":
		return StatusRetrying
	case "cancelling", "canceling":
		return StatusCancelling
	case "cancelled", "canceled":
		return StatusCancelled
	case "completed", "finished", "done":
		return StatusCompleted
	case "completed_with_errors", "completedwitherrors":
		return StatusCompletedWithErrors
	case "failed", "error":
		return StatusFailed
	default:
		return StatusUnknown
	}
}

// Terminal reports whether no further backend-driven transition occurs from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCompletedWithErrors, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Active reports whether s makes a job eligible for a dedicated event
// connection.
func (s Status) Active() bool {
	switch s {
	case StatusQueued, StatusStarting, StatusRunning, StatusRetrying, StatusPausing, StatusCancelling:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	return string(s)
}

// Kind classifies what a job downloads.
type Kind string

const (
	KindVideo    Kind = "video"
	KindAudio    Kind = "audio"
	KindPlaylist Kind = "playlist"
)

// ParseKind maps a backend kind string onto a [Kind]; unrecognized values pass
// through unchanged so the cache reflects what the backend said.
func ParseKind(s string) Kind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "video":
		return KindVideo
	case "audio":
		return KindAudio
	case "playlist":
		return KindPlaylist
	default:
		return Kind(s)
	}
}
