// REST client for the job backend.
//
// Wraps the documented point-in-time contract: job list and single-job
// snapshots, job creation, command round-trips, and the delta-parameterized
// options/logs/playlist fetches.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/desertthunder/jobsync/internal/models"
	"github.com/desertthunder/jobsync/internal/shared"
)

const defaultBaseURL = "http://localhost:9863"

// Client talks to the job backend over HTTP. The zero value is not usable;
// construct with [NewClient].
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     oauth2.TokenSource
}

// NewClient creates a backend client. tokens may be nil when the backend runs
// without authentication.
func NewClient(baseURL string, client *http.Client, tokens oauth2.TokenSource) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: baseURL, httpClient: client, tokens: tokens}
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if c.tokens != nil {
		tok, err := c.tokens.Token()
		if err != nil {
			return fmt.Errorf("%w: token source: %v", shared.ErrTransport, err)
		}
		tok.SetAuthHeader(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s %s", shared.ErrJobNotFound, method, endpoint)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Detail string `json:"detail"`
			Error  string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil {
			if errResp.Detail == "" {
				errResp.Detail = errResp.Error
			}
			if errResp.Detail != "" {
				return fmt.Errorf("%w: status %d: %s", shared.ErrAPIRequest, resp.StatusCode, errResp.Detail)
			}
		}
		return fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("%w: response: %v", shared.ErrDecode, err)
		}
	}
	return nil
}

// ListJobs fetches the full job list.
func (c *Client) ListJobs(ctx context.Context) ([]models.Job, error) {
	var resp struct {
		Jobs []models.Job `json:"jobs"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/api/jobs", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// GetJob fetches a single job snapshot.
func (c *Client) GetJob(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	if err := c.doRequest(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// CreateJobRequest describes a new download job.
type CreateJobRequest struct {
	URL      string             `json:"url"`
	Options  *models.OptionsDoc `json:"options,omitempty"`
	Metadata map[string]any     `json:"metadata,omitempty"`
	Owner    string             `json:"owner,omitempty"`
}

// CreateJob submits a new job and returns the backend's initial snapshot.
func (c *Client) CreateJob(ctx context.Context, req CreateJobRequest) (*models.Job, error) {
	var job models.Job
	if err := c.doRequest(ctx, http.MethodPost, "/api/jobs", req, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// CommandResponse is the backend's answer to a job command. A deleted
// reason or status is the authoritative deletion signal.
type CommandResponse struct {
	Status string  `json:"status"`
	Reason string  `json:"reason"`
	Error  *string `json:"error"`
}

// Deleted reports whether the response authoritatively deletes the job.
func (r *CommandResponse) Deleted() bool {
	if r == nil {
		return false
	}
	return r.Status == "deleted" || r.Reason == "deleted"
}

func (c *Client) command(ctx context.Context, id, verb string) (*CommandResponse, error) {
	var resp CommandResponse
	endpoint := "/api/jobs/" + url.PathEscape(id) + "/" + verb
	if err := c.doRequest(ctx, http.MethodPost, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PauseJob asks the backend to pause a running job.
func (c *Client) PauseJob(ctx context.Context, id string) (*CommandResponse, error) {
	return c.command(ctx, id, "pause")
}

// ResumeJob asks the backend to resume a paused job.
func (c *Client) ResumeJob(ctx context.Context, id string) (*CommandResponse, error) {
	return c.command(ctx, id, "resume")
}

// CancelJob asks the backend to cancel a job.
func (c *Client) CancelJob(ctx context.Context, id string) (*CommandResponse, error) {
	return c.command(ctx, id, "cancel")
}

// RetryJob asks the backend to retry a failed job.
func (c *Client) RetryJob(ctx context.Context, id string) (*CommandResponse, error) {
	return c.command(ctx, id, "retry")
}

// DeleteJob removes the job server-side.
func (c *Client) DeleteJob(ctx context.Context, id string) (*CommandResponse, error) {
	var resp CommandResponse
	if err := c.doRequest(ctx, http.MethodDelete, "/api/jobs/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Status == "" {
		resp.Status = "deleted"
	}
	return &resp, nil
}

// RetryPlaylistEntries retries the named playlist entries by index or id.
func (c *Client) RetryPlaylistEntries(ctx context.Context, id string, indices []int, entryIDs []string) (*CommandResponse, error) {
	req := struct {
		Indices  []int    `json:"indices,omitempty"`
		EntryIDs []string `json:"entry_ids,omitempty"`
	}{Indices: indices, EntryIDs: entryIDs}

	var resp CommandResponse
	endpoint := "/api/jobs/" + url.PathEscape(id) + "/retry-entries"
	if err := c.doRequest(ctx, http.MethodPost, endpoint, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SubmitPlaylistSelection submits the user's entry selection. A nil indices
// slice selects all entries.
func (c *Client) SubmitPlaylistSelection(ctx context.Context, id string, indices []int) (*CommandResponse, error) {
	req := struct {
		Indices []int  `json:"indices,omitempty"`
		All     string `json:"all,omitempty"`
	}{}
	if indices == nil {
		req.All = "all"
	} else {
		req.Indices = indices
	}

	var resp CommandResponse
	endpoint := "/api/jobs/" + url.PathEscape(id) + "/selection"
	if err := c.doRequest(ctx, http.MethodPost, endpoint, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// EntrySelector names a playlist entry within a parent job, by id or 1-based
// index. The zero value selects the whole job.
type EntrySelector struct {
	EntryID    string
	EntryIndex int
}

func (s EntrySelector) query() string {
	q := url.Values{}
	if s.EntryID != "" {
		q.Set("entry_id", s.EntryID)
	}
	if s.EntryIndex > 0 {
		q.Set("entry_index", fmt.Sprintf("%d", s.EntryIndex))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// OptionsPayload is the result of an options fetch.
type OptionsPayload struct {
	Options  *models.OptionsDoc `json:"options"`
	Version  int64              `json:"version"`
	External bool               `json:"external"`
}

// JobOptions fetches a job's (or one entry's) options document.
func (c *Client) JobOptions(ctx context.Context, id string, sel EntrySelector) (*OptionsPayload, error) {
	var resp OptionsPayload
	endpoint := "/api/jobs/" + url.PathEscape(id) + "/options" + sel.query()
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogsPayload is the result of a logs fetch. Full reports whether the payload
// replaces the cached list or appends to it; Since echoes the requested
// version for an incremental payload.
type LogsPayload struct {
	Entries []models.LogEntry `json:"entries"`
	Version int64             `json:"version"`
	Full    bool              `json:"full"`
	Since   int64             `json:"since"`
}

// JobLogs fetches a job's (or one entry's) logs, optionally as a delta since
// a previously seen version.
func (c *Client) JobLogs(ctx context.Context, id string, sel EntrySelector, sinceVersion int64) (*LogsPayload, error) {
	endpoint := "/api/jobs/" + url.PathEscape(id) + "/logs"
	q := url.Values{}
	if sel.EntryID != "" {
		q.Set("entry_id", sel.EntryID)
	}
	if sel.EntryIndex > 0 {
		q.Set("entry_index", fmt.Sprintf("%d", sel.EntryIndex))
	}
	if sinceVersion > 0 {
		q.Set("since", fmt.Sprintf("%d", sinceVersion))
	}
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var resp LogsPayload
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PlaylistPayload is the result of a playlist entries fetch.
type PlaylistPayload struct {
	Playlist *models.PlaylistSummary `json:"playlist"`
	Entries  []models.PlaylistEntry  `json:"entries"`
	Version  int64                   `json:"version"`
	Full     bool                    `json:"full"`
	Since    int64                   `json:"since"`
}

// Playlist fetches a job's playlist entries, optionally as a delta since a
// previously seen entries version.
func (c *Client) Playlist(ctx context.Context, id string, sinceVersion int64) (*PlaylistPayload, error) {
	endpoint := "/api/jobs/" + url.PathEscape(id) + "/playlist"
	if sinceVersion > 0 {
		endpoint += "?since=" + fmt.Sprintf("%d", sinceVersion)
	}

	var resp PlaylistPayload
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PreviewURL asks the backend to preview a URL without creating a job.
func (c *Client) PreviewURL(ctx context.Context, rawURL string) (*models.PlaylistPreviewEntry, error) {
	req := struct {
		URL string `json:"url"`
	}{URL: rawURL}

	var resp models.PlaylistPreviewEntry
	if err := c.doRequest(ctx, http.MethodPost, "/api/preview", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
