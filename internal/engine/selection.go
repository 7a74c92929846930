package engine

// SelectionQueue is the FIFO of jobs awaiting a user decision on which
// playlist entries to download. Membership is tracked so a job is queued at
// most once, and only one job may be active (handed to the UI) at a time.
// Owned by the engine's sync loop; no internal locking.
type SelectionQueue struct {
	order   []string
	members map[string]struct{}
	active  string
}

// NewSelectionQueue returns an empty queue.
func NewSelectionQueue() *SelectionQueue {
	return &SelectionQueue{members: map[string]struct{}{}}
}

// Enqueue adds the job at the tail unless it is already queued or active.
// Reports whether the queue changed.
func (q *SelectionQueue) Enqueue(id string) bool {
	if id == "" || id == q.active {
		return false
	}
	if _, ok := q.members[id]; ok {
		return false
	}
	q.members[id] = struct{}{}
	q.order = append(q.order, id)
	return true
}

// Dequeue pops the first queued job that still requires a selection according
// to stillRequired, discarding stale heads (jobs that vanished or completed).
// Only one job may be active at a time: while a previous dequeue has not been
// completed, Dequeue returns false.
func (q *SelectionQueue) Dequeue(stillRequired func(id string) bool) (string, bool) {
	if q.active != "" {
		return "", false
	}
	for len(q.order) > 0 {
		id := q.order[0]
		q.order = q.order[1:]
		delete(q.members, id)
		if stillRequired == nil || stillRequired(id) {
			q.active = id
			return id, true
		}
	}
	return "", false
}

// Complete clears the active marker for id so the next Dequeue can proceed.
func (q *SelectionQueue) Complete(id string) bool {
	if q.active != id {
		return false
	}
	q.active = ""
	return true
}

// Requeue clears any active marker for id and re-enters it at the tail.
func (q *SelectionQueue) Requeue(id string) bool {
	if q.active == id {
		q.active = ""
	}
	return q.Enqueue(id)
}

// Remove drops the job from the queue and from the active slot.
func (q *SelectionQueue) Remove(id string) {
	if q.active == id {
		q.active = ""
	}
	if _, ok := q.members[id]; !ok {
		return
	}
	delete(q.members, id)
	for i, qid := range q.order {
		if qid == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
}

// Contains reports whether id is queued (not counting the active slot).
func (q *SelectionQueue) Contains(id string) bool {
	_, ok := q.members[id]
	return ok
}

// Active returns the job currently handed to the UI, if any.
func (q *SelectionQueue) Active() string {
	return q.active
}

// Len returns the number of queued jobs, excluding the active one.
func (q *SelectionQueue) Len() int {
	return len(q.order)
}

// Pending returns the queued ids in order.
func (q *SelectionQueue) Pending() []string {
	return append([]string(nil), q.order...)
}
