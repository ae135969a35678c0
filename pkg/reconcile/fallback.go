package reconcile

import (
	"sort"
	"sync"
)

// FallbackDisplayLimit caps how many candidates Candidates returns for UI
// display. The full queue is still available via All.
const FallbackDisplayLimit = 20

// FallbackQueue holds sessions awaiting manual map-based resolution. A
// session appears at most once; entries are ordered by session date
// descending.
type FallbackQueue struct {
	mu      sync.Mutex
	seen    map[string]bool
	entries []FallbackCandidate
}

func NewFallbackQueue() *FallbackQueue {
	return &FallbackQueue{seen: make(map[string]bool)}
}

// Add queues a candidate unless its session is already present.
func (q *FallbackQueue) Add(c FallbackCandidate) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.seen[c.SessionID] {
		return
	}
	q.seen[c.SessionID] = true
	q.entries = append(q.entries, c)
	sort.SliceStable(q.entries, func(i, j int) bool {
		return q.entries[i].SessionDate.After(q.entries[j].SessionDate)
	})
}

// Remove drops a session from the queue, typically after manual resolution.
func (q *FallbackQueue) Remove(sessionID string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.seen[sessionID] {
		return
	}
	delete(q.seen, sessionID)
	for i, c := range q.entries {
		if c.SessionID == sessionID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			break
		}
	}
}

// Reset clears the queue at run start.
func (q *FallbackQueue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seen = make(map[string]bool)
	q.entries = nil
}

// Candidates returns up to FallbackDisplayLimit entries, newest first.
func (q *FallbackQueue) Candidates() []FallbackCandidate {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.entries)
	if n > FallbackDisplayLimit {
		n = FallbackDisplayLimit
	}
	out := make([]FallbackCandidate, n)
	copy(out, q.entries[:n])
	return out
}

// All returns the complete queue, newest first.
func (q *FallbackQueue) All() []FallbackCandidate {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]FallbackCandidate, len(q.entries))
	copy(out, q.entries)
	return out
}

// Len reports the number of queued sessions.
func (q *FallbackQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
