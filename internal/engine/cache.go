package engine

import (
	"sort"
	"time"

	"github.com/desertthunder/jobsync/internal/models"
)

// Cache is the canonical keyed store of jobs plus the derived display
// ordering. It is owned by the engine's sync loop and needs no internal
// locking; every mutation flows through Upsert or Remove.
type Cache struct {
	jobs map[string]models.Job

	// seq records insertion order for tie-breaking and for sorting jobs
	// whose createdAt is not yet known.
	seq     map[string]int
	nextSeq int

	order      []string
	orderDirty bool
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{
		jobs: map[string]models.Job{},
		seq:  map[string]int{},
	}
}

// Len returns the number of cached jobs.
func (c *Cache) Len() int {
	return len(c.jobs)
}

// Get returns a copy of the cached job.
func (c *Cache) Get(id string) (models.Job, bool) {
	j, ok := c.jobs[id]
	if !ok {
		return models.Job{}, false
	}
	return j.Clone(), true
}

// Upsert merges an incoming, possibly partial, job into the cache and returns
// the merged value plus whether anything actually changed. An upsert with
// identical content is a no-op and must not trigger a change notification.
func (c *Cache) Upsert(in models.Job) (models.Job, bool) {
	if in.ID == "" {
		return models.Job{}, false
	}

	existing, ok := c.jobs[in.ID]
	if !ok {
		// An oversized first snapshot still honors the log cap.
		merged := in.WithAppendedLogs()
		c.jobs[in.ID] = merged
		c.seq[in.ID] = c.nextSeq
		c.nextSeq++
		c.orderDirty = true
		return merged.Clone(), true
	}

	merged := existing.Merge(in)
	if merged.Equal(existing) {
		return existing.Clone(), false
	}

	if !timesEqual(existing.CreatedAt, merged.CreatedAt) {
		c.orderDirty = true
	}
	c.jobs[in.ID] = merged
	return merged.Clone(), true
}

// Replace stores the job verbatim, bypassing merge precedence. Used for
// optimistic rollback, where the pre-call snapshot must be restored exactly.
func (c *Cache) Replace(j models.Job) {
	if j.ID == "" {
		return
	}
	existing, ok := c.jobs[j.ID]
	if !ok {
		c.seq[j.ID] = c.nextSeq
		c.nextSeq++
		c.orderDirty = true
	} else if !timesEqual(existing.CreatedAt, j.CreatedAt) {
		c.orderDirty = true
	}
	c.jobs[j.ID] = j.Clone()
}

// Remove drops the job from the cache.
func (c *Cache) Remove(id string) bool {
	if _, ok := c.jobs[id]; !ok {
		return false
	}
	delete(c.jobs, id)
	delete(c.seq, id)
	c.orderDirty = true
	return true
}

// OrderedList returns jobs sorted by createdAt descending, ties broken by
// insertion order. A job whose createdAt is unknown sorts as most recent until
// a real timestamp arrives. The ordering is cached and recomputed only when
// the set or a createdAt changes.
func (c *Cache) OrderedList() []models.Job {
	if c.orderDirty || c.order == nil {
		c.recomputeOrder()
	}
	out := make([]models.Job, 0, len(c.order))
	for _, id := range c.order {
		if j, ok := c.jobs[id]; ok {
			out = append(out, j.Clone())
		}
	}
	return out
}

// IDs returns the cached job ids in no particular order.
func (c *Cache) IDs() []string {
	out := make([]string, 0, len(c.jobs))
	for id := range c.jobs {
		out = append(out, id)
	}
	return out
}

func (c *Cache) recomputeOrder() {
	ids := c.IDs()
	sort.SliceStable(ids, func(a, b int) bool {
		ja, jb := c.jobs[ids[a]], c.jobs[ids[b]]
		switch {
		case ja.CreatedAt == nil && jb.CreatedAt == nil:
			// Most recently inserted first among unknowns.
			return c.seq[ids[a]] > c.seq[ids[b]]
		case ja.CreatedAt == nil:
			return true
		case jb.CreatedAt == nil:
			return false
		case !ja.CreatedAt.Equal(*jb.CreatedAt):
			return ja.CreatedAt.After(*jb.CreatedAt)
		default:
			return c.seq[ids[a]] < c.seq[ids[b]]
		}
	})
	c.order = ids
	c.orderDirty = false
}

func timesEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
