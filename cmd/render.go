// submodule render contains terminal output styling
package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/jobsync/internal/models"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

// statusStyle picks a style for a job status.
func statusStyle(s models.Status) lipgloss.Style {
	switch s {
	case models.StatusCompleted:
		return styles.ok
	case models.StatusFailed, models.StatusCancelled:
		return styles.err
	case models.StatusCompletedWithErrors, models.StatusPausing, models.StatusPaused, models.StatusRetrying:
		return styles.warn
	default:
		return styles.help
	}
}

// renderJobTable renders the job list, newest first.
func renderJobTable(jobs []models.Job) string {
	var b strings.Builder
	b.WriteString(styles.title.Render(fmt.Sprintf("%d job(s)", len(jobs))))
	b.WriteString("\n")
	for _, job := range jobs {
		b.WriteString(renderJobLine(job))
		b.WriteString("\n")
	}
	return b.String()
}

func renderJobLine(job models.Job) string {
	status := statusStyle(job.Status).Render(string(job.Status))

	name := job.MainFile
	if name == "" && len(job.URLs) > 0 {
		name = job.URLs[0]
	}

	line := fmt.Sprintf("%-12s %s  %s", status, job.ID, name)
	if job.Progress != nil && job.Progress.Percent > 0 {
		line += styles.help.Render(fmt.Sprintf("  %.1f%%", job.Progress.Percent))
	}
	if job.RequiresPlaylistSelection() {
		line += "  " + styles.warn.Render("selection needed")
	}
	if job.Error != nil && *job.Error != "" {
		line += "  " + styles.err.Render(*job.Error)
	}
	return line
}

func renderEntryLine(entry models.PlaylistEntry) string {
	status := statusStyle(entry.Status).Render(string(entry.Status))
	line := fmt.Sprintf("%3d. %-12s %s", entry.Index, status, entry.Title)
	if entry.Error != "" {
		line += "  " + styles.err.Render(entry.Error)
	}
	return line
}

func renderLogEntry(entry models.LogEntry) string {
	ts := entry.Timestamp.Format("15:04:05")
	level := entry.Level
	switch strings.ToLower(level) {
	case "error":
		level = styles.err.Render(level)
	case "warn", "warning":
		level = styles.warn.Render(level)
	default:
		level = styles.help.Render(level)
	}
	return fmt.Sprintf("%s %s %s", styles.help.Render(ts), level, entry.Text)
}
