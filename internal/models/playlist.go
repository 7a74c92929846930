package models

import (
	"sort"
	"time"
)

// PlaylistEntry is one entry of a playlist job, ordered by its 1-based index.
type PlaylistEntry struct {
	Index    int       `json:"index"`
	EntryID  string    `json:"entry_id"`
	URL      string    `json:"url"`
	Title    string    `json:"title"`
	Status   Status    `json:"status"`
	Error    string    `json:"error,omitempty"`
	Progress *Progress `json:"progress,omitempty"`
}

// PlaylistEntryError records a failed playlist entry, ordered by when the
// failure was observed.
type PlaylistEntryError struct {
	Index        int       `json:"index"`
	EntryID      string    `json:"entry_id"`
	URL          string    `json:"url"`
	Message      string    `json:"message"`
	PendingRetry bool      `json:"pending_retry"`
	LastStatus   Status    `json:"last_status"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// PlaylistSummary aggregates everything the engine knows about a playlist job.
// Entries may be a strict subset of the full playlist; counts and flags are
// pointers so a partial update can leave the cached value alone.
type PlaylistSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`

	EntryCount     *int     `json:"entry_count,omitempty"`
	TotalItems     *int     `json:"total_items,omitempty"`
	CompletedItems *int     `json:"completed_items,omitempty"`
	PendingItems   *int     `json:"pending_items,omitempty"`
	Percent        *float64 `json:"percent,omitempty"`
	CurrentIndex   *int     `json:"current_index,omitempty"`
	CurrentEntryID string   `json:"current_entry_id,omitempty"`

	Entries   []PlaylistEntry `json:"entries,omitempty"`
	EntryRefs []string        `json:"entry_refs,omitempty"`

	CompletedIndices    []int                `json:"completed_indices,omitempty"`
	FailedIndices       []int                `json:"failed_indices,omitempty"`
	PendingRetryIndices []int                `json:"pending_retry_indices,omitempty"`
	EntryErrors         []PlaylistEntryError `json:"entry_errors,omitempty"`

	IsCollectingEntries *bool `json:"is_collecting_entries,omitempty"`
	CollectionComplete  *bool `json:"collection_complete,omitempty"`
	HasIndefiniteLength *bool `json:"has_indefinite_length,omitempty"`

	// EntriesExternal means entries are not inlined and must be fetched
	// separately.
	EntriesExternal bool  `json:"entries_external,omitempty"`
	EntriesVersion  int64 `json:"entries_version,omitempty"`
}

// KnownEntryTotal returns the best available total entry count, preferring the
// explicit entry count, then the playlist total, then the inlined entries.
func (p *PlaylistSummary) KnownEntryTotal() int {
	if p == nil {
		return 0
	}
	if p.EntryCount != nil && *p.EntryCount > 0 {
		return *p.EntryCount
	}
	if p.TotalItems != nil && *p.TotalItems > 0 {
		return *p.TotalItems
	}
	return len(p.Entries)
}

// Entry returns the inlined entry with the given 1-based index.
func (p *PlaylistSummary) Entry(index int) (PlaylistEntry, bool) {
	if p == nil {
		return PlaylistEntry{}, false
	}
	for _, e := range p.Entries {
		if e.Index == index {
			return e, true
		}
	}
	return PlaylistEntry{}, false
}

// Clone returns a deep copy of the summary. Cloning nil yields nil.
func (p *PlaylistSummary) Clone() *PlaylistSummary {
	if p == nil {
		return nil
	}
	out := *p
	out.EntryCount = cloneIntPtr(p.EntryCount)
	out.TotalItems = cloneIntPtr(p.TotalItems)
	out.CompletedItems = cloneIntPtr(p.CompletedItems)
	out.PendingItems = cloneIntPtr(p.PendingItems)
	out.CurrentIndex = cloneIntPtr(p.CurrentIndex)
	out.IsCollectingEntries = cloneBoolPtr(p.IsCollectingEntries)
	out.CollectionComplete = cloneBoolPtr(p.CollectionComplete)
	out.HasIndefiniteLength = cloneBoolPtr(p.HasIndefiniteLength)
	if p.Percent != nil {
		v := *p.Percent
		out.Percent = &v
	}
	out.Entries = append([]PlaylistEntry(nil), p.Entries...)
	out.EntryRefs = append([]string(nil), p.EntryRefs...)
	out.CompletedIndices = append([]int(nil), p.CompletedIndices...)
	out.FailedIndices = append([]int(nil), p.FailedIndices...)
	out.PendingRetryIndices = append([]int(nil), p.PendingRetryIndices...)
	out.EntryErrors = append([]PlaylistEntryError(nil), p.EntryErrors...)
	return &out
}

// Merge combines the cached summary with an incoming partial update and
// returns the result. Entries are unioned by index with incoming entries
// winning; index lists and entry errors are taken wholesale from the incoming
// producer when it supplies them; counts and flags prefer non-nil incoming
// values.
func (p *PlaylistSummary) Merge(in *PlaylistSummary) *PlaylistSummary {
	if in == nil {
		return p.Clone()
	}
	if p == nil {
		return in.Clone()
	}

	out := p.Clone()
	if in.ID != "" {
		out.ID = in.ID
	}
	if in.Title != "" {
		out.Title = in.Title
	}
	if in.EntryCount != nil {
		out.EntryCount = cloneIntPtr(in.EntryCount)
	}
	if in.TotalItems != nil {
		out.TotalItems = cloneIntPtr(in.TotalItems)
	}
	if in.CompletedItems != nil {
		out.CompletedItems = cloneIntPtr(in.CompletedItems)
	}
	if in.PendingItems != nil {
		out.PendingItems = cloneIntPtr(in.PendingItems)
	}
	if in.Percent != nil {
		v := *in.Percent
		out.Percent = &v
	}
	if in.CurrentIndex != nil {
		out.CurrentIndex = cloneIntPtr(in.CurrentIndex)
	}
	if in.CurrentEntryID != "" {
		out.CurrentEntryID = in.CurrentEntryID
	}

	out.Entries = mergeEntries(out.Entries, in.Entries)

	if in.EntryRefs != nil {
		out.EntryRefs = append([]string(nil), in.EntryRefs...)
	}
	if in.CompletedIndices != nil {
		out.CompletedIndices = append([]int(nil), in.CompletedIndices...)
	}
	if in.FailedIndices != nil {
		out.FailedIndices = append([]int(nil), in.FailedIndices...)
	}
	if in.PendingRetryIndices != nil {
		out.PendingRetryIndices = append([]int(nil), in.PendingRetryIndices...)
	}
	if in.EntryErrors != nil {
		out.EntryErrors = append([]PlaylistEntryError(nil), in.EntryErrors...)
	}

	if in.IsCollectingEntries != nil {
		out.IsCollectingEntries = cloneBoolPtr(in.IsCollectingEntries)
	}
	if in.CollectionComplete != nil {
		out.CollectionComplete = cloneBoolPtr(in.CollectionComplete)
	}
	if in.HasIndefiniteLength != nil {
		out.HasIndefiniteLength = cloneBoolPtr(in.HasIndefiniteLength)
	}
	if in.EntriesExternal {
		out.EntriesExternal = true
	}
	if in.EntriesVersion != 0 {
		out.EntriesVersion = in.EntriesVersion
	}
	return out
}

// mergeEntries unions two entry lists by index. Incoming entries overwrite
// cached ones; indices must be positive and appear at most once.
func mergeEntries(cached, incoming []PlaylistEntry) []PlaylistEntry {
	if len(incoming) == 0 {
		return cached
	}
	byIndex := make(map[int]PlaylistEntry, len(cached)+len(incoming))
	for _, e := range cached {
		if e.Index > 0 {
			byIndex[e.Index] = e
		}
	}
	for _, e := range incoming {
		if e.Index > 0 {
			byIndex[e.Index] = e
		}
	}
	out := make([]PlaylistEntry, 0, len(byIndex))
	for _, e := range byIndex {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

func cloneIntPtr(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneBoolPtr(v *bool) *bool {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// IntPtr returns a pointer to v. Convenience for building partial updates.
func IntPtr(v int) *int { return &v }

// BoolPtr returns a pointer to v.
func BoolPtr(v bool) *bool { return &v }
