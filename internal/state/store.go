package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/five82/newsdesk/internal/content"
)

// Source says where a queue's items came from.
type Source string

const (
	SourceLive     Source = "live"
	SourceMirror   Source = "mirror"
	SourceDegraded Source = "degraded"
)

// Queue is one editorial list as last seen.
type Queue struct {
	Status    content.Status
	Items     []content.Item
	Source    Source
	FetchedAt time.Time
	Loaded    bool
}

// Snapshot represents the latest data available to the UI.
type Snapshot struct {
	Pending             Queue
	Approved            Queue
	Rejected            Queue
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int // Number of consecutive refresh failures
	PendingPatches      int
}

// Queue returns the queue for status.
func (s Snapshot) Queue(status content.Status) Queue {
	switch status {
	case content.StatusApproved:
		return s.Approved
	case content.StatusRejected:
		return s.Rejected
	default:
		return s.Pending
	}
}

// IsOffline returns true when the backend has been unreachable for multiple
// refreshes.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Degraded reports whether any loaded queue is not live.
func (s Snapshot) Degraded() bool {
	for _, q := range []Queue{s.Pending, s.Approved, s.Rejected} {
		if q.Loaded && q.Source != SourceLive {
			return true
		}
	}
	return false
}

// patch is an optimistic change waiting for an authoritative fetch to agree.
type patch struct {
	item content.Item
	from content.Status
}

// Store holds the working copy of every queue. Writers replace whole queues or
// apply confirmed changes; readers get cloned snapshots.
type Store struct {
	mu       sync.RWMutex
	queues   map[content.Status]Queue
	patches  map[string]patch
	lastErr  error
	failures int
	updated  time.Time
	now      func() time.Time
}

// Replace installs a freshly fetched queue. For a live queue every pending
// patch that touches it is settled: ids whose placement the backend agrees
// with are confirmed, the rest are discarded and returned so the caller can
// report them. Non-live queues replace the working copy without settling.
func (s *Store) Replace(status content.Status, items []content.Item, source Source) (discarded []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()

	now := s.clock()
	s.queues[status] = Queue{
		Status:    status,
		Items:     content.Clone(items),
		Source:    source,
		FetchedAt: now,
		Loaded:    true,
	}
	if source != SourceLive {
		return nil
	}

	for id, p := range s.patches {
		present := content.IndexOf(items, id) >= 0
		switch {
		case p.item.Status == status:
			if !present {
				discarded = append(discarded, id)
			}
			delete(s.patches, id)
		case p.from == status:
			if present {
				discarded = append(discarded, id)
				delete(s.patches, id)
			}
		}
	}
	return discarded
}

// Apply records a confirmed change ahead of the next fetch: the item leaves
// every queue and joins the one matching its status. from is the status it
// had before, or empty for a new item.
func (s *Store) Apply(item content.Item, from content.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()

	for status, q := range s.queues {
		if i := content.IndexOf(q.Items, item.ID); i >= 0 {
			q.Items = append(content.Clone(q.Items[:i]), q.Items[i+1:]...)
			s.queues[status] = q
		}
	}
	q := s.queues[item.Status]
	q.Status = item.Status
	q.Items = append([]content.Item{item}, q.Items...)
	s.queues[item.Status] = q
	s.patches[item.ID] = patch{item: item, from: from}
}

// Find looks an item up in the working copy.
func (s *Store) Find(id string) (content.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, status := range []content.Status{content.StatusPending, content.StatusRejected, content.StatusApproved} {
		q := s.queues[status]
		if i := content.IndexOf(q.Items, id); i >= 0 {
			return q.Items[i], true
		}
	}
	return content.Item{}, false
}

// RecordRefresh notes the outcome of a full refresh. When err is non-nil the
// queues are kept but the error is recorded for visibility.
func (s *Store) RecordRefresh(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.updated = s.clock()
	if err != nil {
		s.lastErr = err
		s.failures++
		return
	}
	s.lastErr = nil
	s.failures = 0
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Pending:             cloneQueue(s.queues[content.StatusPending], content.StatusPending),
		Approved:            cloneQueue(s.queues[content.StatusApproved], content.StatusApproved),
		Rejected:            cloneQueue(s.queues[content.StatusRejected], content.StatusRejected),
		LastUpdated:         s.updated,
		ConsecutiveFailures: s.failures,
		PendingPatches:      len(s.patches),
	}
	if s.lastErr != nil {
		snap.LastError = fmt.Errorf("%w", s.lastErr)
	}
	return snap
}

func (s *Store) init() {
	if s.queues == nil {
		s.queues = make(map[content.Status]Queue)
	}
	if s.patches == nil {
		s.patches = make(map[string]patch)
	}
}

func (s *Store) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func cloneQueue(q Queue, status content.Status) Queue {
	q.Status = status
	q.Items = content.Clone(q.Items)
	return q
}
