package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/desertthunder/jobsync/internal/backend"
	"github.com/desertthunder/jobsync/internal/models"
	"github.com/desertthunder/jobsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// ready starts the engine's sync loop and performs the initial refresh.
func (r *Runner) ready(ctx context.Context) error {
	return r.engine.Initialize(ctx)
}

// JobsList prints every tracked job, newest first.
func (r *Runner) JobsList(ctx context.Context, cmd *cli.Command) error {
	if err := r.ready(ctx); err != nil {
		return err
	}

	jobs := r.engine.Jobs()
	if cmd.Bool("json") {
		return r.writeJSON(jobs, cmd.Bool("pretty"))
	}

	if len(jobs) == 0 {
		return r.writePlain("no jobs\n")
	}
	r.writePlain("%s", renderJobTable(jobs))
	return nil
}

// JobShow prints one job in full.
func (r *Runner) JobShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: job id", shared.ErrMissingArgument)
	}
	if err := r.ready(ctx); err != nil {
		return err
	}

	job, ok := r.engine.JobByID(id)
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrJobNotFound, id)
	}
	return r.writeJSON(job, cmd.Bool("pretty"))
}

// JobsWatch streams live updates until interrupted.
func (r *Runner) JobsWatch(ctx context.Context, cmd *cli.Command) error {
	if err := r.ready(ctx); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.logger.Info("watching jobs", "backend", r.config.Backend.BaseURL)
	r.writePlain("%s", renderJobTable(r.engine.Jobs()))

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.engine.Updates():
			if err := r.engine.LastError(); err != nil {
				r.writePlain("%s\n", styles.err.Render(err.Error()))
			}
			r.writePlain("%s", renderJobTable(r.engine.Jobs()))
		}
	}
}

// JobLogs prints a job's (or one entry's) log tail.
func (r *Runner) JobLogs(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: job id", shared.ErrMissingArgument)
	}
	if err := r.ready(ctx); err != nil {
		return err
	}

	sel := backend.EntrySelector{
		EntryID:    cmd.String("entry-id"),
		EntryIndex: int(cmd.Int("entry-index")),
	}

	var (
		logs []models.LogEntry
		err  error
	)
	if sel == (backend.EntrySelector{}) {
		logs, err = r.engine.LoadJobLogs(ctx, id)
	} else {
		logs, err = r.engine.LoadEntryJobLogs(ctx, id, sel)
	}
	if err != nil {
		return err
	}

	for _, entry := range logs {
		r.writePlain("%s\n", renderLogEntry(entry))
	}
	return nil
}

// JobOptions prints a job's (or one entry's) effective options.
func (r *Runner) JobOptions(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: job id", shared.ErrMissingArgument)
	}
	if err := r.ready(ctx); err != nil {
		return err
	}

	sel := backend.EntrySelector{
		EntryID:    cmd.String("entry-id"),
		EntryIndex: int(cmd.Int("entry-index")),
	}

	var (
		options *models.OptionsDoc
		err     error
	)
	if sel == (backend.EntrySelector{}) {
		options, err = r.engine.LoadJobOptions(ctx, id)
	} else {
		options, err = r.engine.LoadEntryJobOptions(ctx, id, sel)
	}
	if err != nil {
		return err
	}
	return r.writeJSON(options, cmd.Bool("pretty"))
}

// Start submits a new download job.
func (r *Runner) Start(ctx context.Context, cmd *cli.Command) error {
	rawURL := cmd.StringArg("url")
	if rawURL == "" {
		return fmt.Errorf("%w: url", shared.ErrMissingArgument)
	}
	if err := r.ready(ctx); err != nil {
		return err
	}

	var options *models.OptionsDoc
	if raw := cmd.String("options"); raw != "" {
		options = &models.OptionsDoc{}
		if err := json.Unmarshal([]byte(raw), options); err != nil {
			return fmt.Errorf("%w: options is not a valid JSON object: %v", shared.ErrInvalidInput, err)
		}
	}

	var metadata map[string]any
	if raw := cmd.String("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
			return fmt.Errorf("%w: metadata is not a valid JSON object: %v", shared.ErrInvalidInput, err)
		}
	}

	job, err := r.engine.StartDownload(ctx, rawURL, options, metadata, cmd.String("owner"))
	if err != nil {
		return err
	}
	r.logger.Info("job created", "id", job.ID)
	r.writePlain("%s %s\n", styles.ok.Render("created"), job.ID)
	return nil
}

func (r *Runner) control(ctx context.Context, cmd *cli.Command, verb string, fn func(context.Context, string) error) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: job id", shared.ErrMissingArgument)
	}
	if err := r.ready(ctx); err != nil {
		return err
	}
	if err := fn(ctx, id); err != nil {
		return err
	}
	r.writePlain("%s %s\n", styles.ok.Render(verb), id)
	return nil
}

// Pause pauses a running job.
func (r *Runner) Pause(ctx context.Context, cmd *cli.Command) error {
	return r.control(ctx, cmd, "pausing", r.engine.PauseJob)
}

// Resume resumes a paused job.
func (r *Runner) Resume(ctx context.Context, cmd *cli.Command) error {
	return r.control(ctx, cmd, "resuming", r.engine.ResumeJob)
}

// Cancel cancels a job.
func (r *Runner) Cancel(ctx context.Context, cmd *cli.Command) error {
	return r.control(ctx, cmd, "cancelling", r.engine.CancelJob)
}

// Retry retries a failed job.
func (r *Runner) Retry(ctx context.Context, cmd *cli.Command) error {
	return r.control(ctx, cmd, "retrying", r.engine.RetryJob)
}

// Delete removes a job server-side.
func (r *Runner) Delete(ctx context.Context, cmd *cli.Command) error {
	return r.control(ctx, cmd, "deleted", r.engine.DeleteJob)
}

// PlaylistEntries lists a playlist job's entries.
func (r *Runner) PlaylistEntries(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: job id", shared.ErrMissingArgument)
	}
	if err := r.ready(ctx); err != nil {
		return err
	}

	playlist, err := r.engine.LoadPlaylist(ctx, id)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(playlist, true)
	}

	if playlist == nil || len(playlist.Entries) == 0 {
		return r.writePlain("no entries\n")
	}
	for _, entry := range playlist.Entries {
		r.writePlain("%s\n", renderEntryLine(entry))
	}
	return nil
}

// PlaylistSelect submits an entry selection.
func (r *Runner) PlaylistSelect(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: job id", shared.ErrMissingArgument)
	}

	var indices []int
	if !cmd.Bool("all") {
		var err error
		indices, err = parseIndices(cmd.String("indices"))
		if err != nil {
			return err
		}
		if len(indices) == 0 {
			return fmt.Errorf("%w: --indices or --all", shared.ErrMissingArgument)
		}
	}

	if err := r.ready(ctx); err != nil {
		return err
	}
	if err := r.engine.SubmitPlaylistSelection(ctx, id, indices); err != nil {
		return err
	}
	r.writePlain("%s %s\n", styles.ok.Render("selection submitted"), id)
	return nil
}

// PlaylistRetryEntries retries failed playlist entries.
func (r *Runner) PlaylistRetryEntries(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: job id", shared.ErrMissingArgument)
	}
	if err := r.ready(ctx); err != nil {
		return err
	}

	if cmd.Bool("all-failed") {
		if err := r.engine.RetryAllFailedPlaylistEntries(ctx, id); err != nil {
			return err
		}
		r.writePlain("%s %s\n", styles.ok.Render("retrying failed entries"), id)
		return nil
	}

	indices, err := parseIndices(cmd.String("indices"))
	if err != nil {
		return err
	}
	if err := r.engine.RetryPlaylistEntries(ctx, id, indices, nil); err != nil {
		return err
	}
	r.writePlain("%s %s\n", styles.ok.Render("retrying entries"), id)
	return nil
}

// PlaylistPending lists jobs waiting on a selection.
func (r *Runner) PlaylistPending(ctx context.Context, cmd *cli.Command) error {
	if err := r.ready(ctx); err != nil {
		return err
	}

	pending := r.engine.PendingSelections()
	if len(pending) == 0 {
		return r.writePlain("no pending selections\n")
	}
	for _, id := range pending {
		if job, ok := r.engine.JobByID(id); ok {
			r.writePlain("%s  %d entries\n", id, job.Playlist.KnownEntryTotal())
		} else {
			r.writePlain("%s\n", id)
		}
	}
	return nil
}

// Preview resolves a URL without creating a job.
func (r *Runner) Preview(ctx context.Context, cmd *cli.Command) error {
	rawURL := cmd.StringArg("url")
	if rawURL == "" {
		return fmt.Errorf("%w: url", shared.ErrMissingArgument)
	}
	if err := r.ready(ctx); err != nil {
		return err
	}

	preview, err := r.engine.PreviewURL(ctx, rawURL)
	if err != nil {
		return err
	}
	return r.writeJSON(preview, cmd.Bool("pretty"))
}

// Setup writes the starter config file.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	r.logger.Info("config created", "path", path)
	r.writePlain("%s %s\n", styles.ok.Render("wrote"), path)
	return nil
}

// parseIndices parses a comma-separated list of positive 1-based indices.
func parseIndices(raw string) ([]int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%w: bad index %q", shared.ErrInvalidArgument, part)
		}
		out = append(out, n)
	}
	return out, nil
}
