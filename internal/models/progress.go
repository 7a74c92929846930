package models

import "time"

// Progress is an immutable snapshot of a job's (or playlist entry's) download
// progress. A new value replaces the old one inside [Job.Merge]; fields are
// never mutated in place.
type Progress struct {
	DownloadedBytes int64   `json:"downloaded_bytes"`
	TotalBytes      int64   `json:"total_bytes"`
	Percent         float64 `json:"percent"`
	Stage           string  `json:"stage"`
	StageCode       int     `json:"stage_code"`
	ETASeconds      int     `json:"eta_seconds"`
	Speed           float64 `json:"speed"`

	// Playlist-wide counters, populated for playlist jobs.
	PlaylistTotalItems          *int  `json:"playlist_total_items,omitempty"`
	PlaylistCompletedItems      *int  `json:"playlist_completed_items,omitempty"`
	PlaylistPendingItems        *int  `json:"playlist_pending_items,omitempty"`
	PlaylistCurrentIndex        *int  `json:"playlist_current_index,omitempty"`
	PlaylistFailedIndices       []int `json:"playlist_failed_indices,omitempty"`
	PlaylistPendingRetryIndices []int `json:"playlist_pending_retry_indices,omitempty"`
}

// LogEntry is one line of backend output attached to a job or a playlist
// entry, newest last.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Text      string    `json:"text"`
}

// PlaylistPreviewEntry is a lightweight preview of a playlist entry, produced
// before the backend has materialized the entry as its own sub-job.
type PlaylistPreviewEntry struct {
	Index     int    `json:"index"`
	EntryID   string `json:"entry_id"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	Uploader  string `json:"uploader"`
	Duration  int    `json:"duration"`
	Thumbnail string `json:"thumbnail"`
}
