package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/desertthunder/jobsync/internal/models"
)

func ts(day int) *time.Time {
	t := time.Date(2026, 4, day, 12, 0, 0, 0, time.UTC)
	return &t
}

func TestCacheUpsert(t *testing.T) {
	t.Run("new job reports a change", func(t *testing.T) {
		c := NewCache()
		_, changed := c.Upsert(models.Job{ID: "a", Status: models.StatusQueued})
		if !changed {
			t.Error("insert should report a change")
		}
		if c.Len() != 1 {
			t.Errorf("len = %d", c.Len())
		}
	})

	t.Run("identical upsert is a no-op", func(t *testing.T) {
		c := NewCache()
		update := models.Job{ID: "a", Status: models.StatusRunning, Progress: &models.Progress{Percent: 10}}
		c.Upsert(update)
		if _, changed := c.Upsert(update); changed {
			t.Error("identical content must not report a change")
		}
	})

	t.Run("merge changes report", func(t *testing.T) {
		c := NewCache()
		c.Upsert(models.Job{ID: "a", Status: models.StatusRunning})
		merged, changed := c.Upsert(models.Job{ID: "a", Status: models.StatusPaused})
		if !changed || merged.Status != models.StatusPaused {
			t.Errorf("changed=%v status=%q", changed, merged.Status)
		}
	})

	t.Run("empty id is rejected", func(t *testing.T) {
		c := NewCache()
		if _, changed := c.Upsert(models.Job{}); changed {
			t.Error("empty id should not insert")
		}
	})

	t.Run("first insert caps the log tail", func(t *testing.T) {
		c := NewCache()
		logs := make([]models.LogEntry, models.LogCap+50)
		for i := range logs {
			logs[i] = models.LogEntry{Text: fmt.Sprintf("line %d", i)}
		}
		c.Upsert(models.Job{ID: "a", Status: models.StatusRunning, Logs: logs})

		got, _ := c.Get("a")
		if len(got.Logs) != models.LogCap {
			t.Fatalf("stored %d log entries, want %d", len(got.Logs), models.LogCap)
		}
		if got.Logs[len(got.Logs)-1].Text != fmt.Sprintf("line %d", models.LogCap+49) {
			t.Error("newest entries should survive the cap")
		}
	})

	t.Run("stored jobs are isolated from caller mutations", func(t *testing.T) {
		c := NewCache()
		in := models.Job{ID: "a", Playlist: &models.PlaylistSummary{Title: "p"}}
		c.Upsert(in)
		in.Playlist.Title = "mutated"

		got, _ := c.Get("a")
		if got.Playlist.Title != "p" {
			t.Error("cache shares memory with caller")
		}
	})
}

func TestCacheOrdering(t *testing.T) {
	t.Run("createdAt descending", func(t *testing.T) {
		c := NewCache()
		c.Upsert(models.Job{ID: "old", CreatedAt: ts(1)})
		c.Upsert(models.Job{ID: "new", CreatedAt: ts(3)})
		c.Upsert(models.Job{ID: "mid", CreatedAt: ts(2)})

		got := ids(c.OrderedList())
		want := []string{"new", "mid", "old"}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("order = %v, want %v", got, want)
			}
		}
	})

	t.Run("new job without createdAt sorts first", func(t *testing.T) {
		c := NewCache()
		c.Upsert(models.Job{ID: "a", CreatedAt: ts(5)})
		c.Upsert(models.Job{ID: "fresh"})

		if got := ids(c.OrderedList()); got[0] != "fresh" {
			t.Errorf("order = %v, want fresh first", got)
		}
	})

	t.Run("ties break by insertion order", func(t *testing.T) {
		c := NewCache()
		c.Upsert(models.Job{ID: "first", CreatedAt: ts(1)})
		c.Upsert(models.Job{ID: "second", CreatedAt: ts(1)})

		got := ids(c.OrderedList())
		if got[0] != "first" || got[1] != "second" {
			t.Errorf("order = %v", got)
		}
	})

	t.Run("late createdAt moves the job into place", func(t *testing.T) {
		c := NewCache()
		c.Upsert(models.Job{ID: "a", CreatedAt: ts(2)})
		c.Upsert(models.Job{ID: "b"})
		c.Upsert(models.Job{ID: "b", CreatedAt: ts(1)})

		got := ids(c.OrderedList())
		if got[0] != "a" || got[1] != "b" {
			t.Errorf("order = %v, want [a b]", got)
		}
	})

	t.Run("remove drops from the ordering", func(t *testing.T) {
		c := NewCache()
		c.Upsert(models.Job{ID: "a", CreatedAt: ts(1)})
		c.Upsert(models.Job{ID: "b", CreatedAt: ts(2)})

		if !c.Remove("b") {
			t.Fatal("remove should report a change")
		}
		if c.Remove("b") {
			t.Error("second remove should be a no-op")
		}
		got := ids(c.OrderedList())
		if len(got) != 1 || got[0] != "a" {
			t.Errorf("order = %v", got)
		}
	})
}

func TestCacheReplace(t *testing.T) {
	c := NewCache()
	c.Upsert(models.Job{ID: "a", Status: models.StatusRunning, Logs: []models.LogEntry{{Text: "x"}}})

	// Replace bypasses merge precedence entirely: the stored job becomes the
	// argument verbatim, logs and all.
	c.Replace(models.Job{ID: "a", Status: models.StatusQueued})
	got, _ := c.Get("a")
	if got.Status != models.StatusQueued || len(got.Logs) != 0 {
		t.Errorf("replace did not store verbatim: %+v", got)
	}
}

func ids(jobs []models.Job) []string {
	out := make([]string, len(jobs))
	for i, j := range jobs {
		out[i] = j.ID
	}
	return out
}
