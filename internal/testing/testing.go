// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/desertthunder/jobsync/internal/backend"
	"github.com/desertthunder/jobsync/internal/models"
)

// FakeAPI is a test double for the engine's backend API. Each method delegates
// to the matching function field when set and returns an empty success
// otherwise; call counters are safe for concurrent use.
type FakeAPI struct {
	ListJobsFn             func(ctx context.Context) ([]models.Job, error)
	GetJobFn               func(ctx context.Context, id string) (*models.Job, error)
	CreateJobFn            func(ctx context.Context, req backend.CreateJobRequest) (*models.Job, error)
	PauseJobFn             func(ctx context.Context, id string) (*backend.CommandResponse, error)
	ResumeJobFn            func(ctx context.Context, id string) (*backend.CommandResponse, error)
	CancelJobFn            func(ctx context.Context, id string) (*backend.CommandResponse, error)
	RetryJobFn             func(ctx context.Context, id string) (*backend.CommandResponse, error)
	DeleteJobFn            func(ctx context.Context, id string) (*backend.CommandResponse, error)
	RetryEntriesFn         func(ctx context.Context, id string, indices []int, entryIDs []string) (*backend.CommandResponse, error)
	SubmitSelectionFn      func(ctx context.Context, id string, indices []int) (*backend.CommandResponse, error)
	JobOptionsFn           func(ctx context.Context, id string, sel backend.EntrySelector) (*backend.OptionsPayload, error)
	JobLogsFn              func(ctx context.Context, id string, sel backend.EntrySelector, since int64) (*backend.LogsPayload, error)
	PlaylistFn             func(ctx context.Context, id string, since int64) (*backend.PlaylistPayload, error)
	PreviewFn              func(ctx context.Context, rawURL string) (*models.PlaylistPreviewEntry, error)

	ListCalls     atomic.Int64
	GetCalls      atomic.Int64
	OptionsCalls  atomic.Int64
	LogsCalls     atomic.Int64
	PlaylistCalls atomic.Int64
}

func (f *FakeAPI) ListJobs(ctx context.Context) ([]models.Job, error) {
	f.ListCalls.Add(1)
	if f.ListJobsFn != nil {
		return f.ListJobsFn(ctx)
	}
	return nil, nil
}

func (f *FakeAPI) GetJob(ctx context.Context, id string) (*models.Job, error) {
	f.GetCalls.Add(1)
	if f.GetJobFn != nil {
		return f.GetJobFn(ctx, id)
	}
	return &models.Job{ID: id}, nil
}

func (f *FakeAPI) CreateJob(ctx context.Context, req backend.CreateJobRequest) (*models.Job, error) {
	if f.CreateJobFn != nil {
		return f.CreateJobFn(ctx, req)
	}
	return &models.Job{ID: "created", URLs: []string{req.URL}}, nil
}

func (f *FakeAPI) PauseJob(ctx context.Context, id string) (*backend.CommandResponse, error) {
	if f.PauseJobFn != nil {
		return f.PauseJobFn(ctx, id)
	}
	return &backend.CommandResponse{}, nil
}

func (f *FakeAPI) ResumeJob(ctx context.Context, id string) (*backend.CommandResponse, error) {
	if f.ResumeJobFn != nil {
		return f.ResumeJobFn(ctx, id)
	}
	return &backend.CommandResponse{}, nil
}

func (f *FakeAPI) CancelJob(ctx context.Context, id string) (*backend.CommandResponse, error) {
	if f.CancelJobFn != nil {
		return f.CancelJobFn(ctx, id)
	}
	return &backend.CommandResponse{}, nil
}

func (f *FakeAPI) RetryJob(ctx context.Context, id string) (*backend.CommandResponse, error) {
	if f.RetryJobFn != nil {
		return f.RetryJobFn(ctx, id)
	}
	return &backend.CommandResponse{}, nil
}

func (f *FakeAPI) DeleteJob(ctx context.Context, id string) (*backend.CommandResponse, error) {
	if f.DeleteJobFn != nil {
		return f.DeleteJobFn(ctx, id)
	}
	return &backend.CommandResponse{Status: "deleted"}, nil
}

func (f *FakeAPI) RetryPlaylistEntries(ctx context.Context, id string, indices []int, entryIDs []string) (*backend.CommandResponse, error) {
	if f.RetryEntriesFn != nil {
		return f.RetryEntriesFn(ctx, id, indices, entryIDs)
	}
	return &backend.CommandResponse{}, nil
}

func (f *FakeAPI) SubmitPlaylistSelection(ctx context.Context, id string, indices []int) (*backend.CommandResponse, error) {
	if f.SubmitSelectionFn != nil {
		return f.SubmitSelectionFn(ctx, id, indices)
	}
	return &backend.CommandResponse{}, nil
}

func (f *FakeAPI) JobOptions(ctx context.Context, id string, sel backend.EntrySelector) (*backend.OptionsPayload, error) {
	f.OptionsCalls.Add(1)
	if f.JobOptionsFn != nil {
		return f.JobOptionsFn(ctx, id, sel)
	}
	return &backend.OptionsPayload{}, nil
}

func (f *FakeAPI) JobLogs(ctx context.Context, id string, sel backend.EntrySelector, since int64) (*backend.LogsPayload, error) {
	f.LogsCalls.Add(1)
	if f.JobLogsFn != nil {
		return f.JobLogsFn(ctx, id, sel, since)
	}
	return &backend.LogsPayload{}, nil
}

func (f *FakeAPI) Playlist(ctx context.Context, id string, since int64) (*backend.PlaylistPayload, error) {
	f.PlaylistCalls.Add(1)
	if f.PlaylistFn != nil {
		return f.PlaylistFn(ctx, id, since)
	}
	return &backend.PlaylistPayload{}, nil
}

func (f *FakeAPI) PreviewURL(ctx context.Context, rawURL string) (*models.PlaylistPreviewEntry, error) {
	if f.PreviewFn != nil {
		return f.PreviewFn(ctx, rawURL)
	}
	return &models.PlaylistPreviewEntry{URL: rawURL}, nil
}

// Notification records one playlist-attention callback.
type Notification struct {
	JobID      string
	Title      string
	EntryCount int
}

// RecordingNotifier captures attention notifications and cancellations.
type RecordingNotifier struct {
	mu        sync.Mutex
	Sent      []Notification
	Cancelled []string
}

func (r *RecordingNotifier) NotifyPlaylistAttention(jobID, title string, entryCount int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Sent = append(r.Sent, Notification{JobID: jobID, Title: title, EntryCount: entryCount})
}

func (r *RecordingNotifier) CancelPlaylistAttention(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Cancelled = append(r.Cancelled, jobID)
}

// SentCount returns the number of notifications recorded so far.
func (r *RecordingNotifier) SentCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Sent)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}
