package state

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/five82/newsdesk/internal/content"
)

func items(status content.Status, ids ...string) []content.Item {
	out := make([]content.Item, 0, len(ids))
	for _, id := range ids {
		out = append(out, content.Item{ID: id, Title: "t" + id, Status: status})
	}
	return out
}

func TestStore_ReplaceAndSnapshotClone(t *testing.T) {
	var s Store

	before := time.Now()
	s.Replace(content.StatusPending, items(content.StatusPending, "1", "2"), SourceLive)

	snap := s.Snapshot()
	q := snap.Queue(content.StatusPending)
	if !q.Loaded || q.Source != SourceLive || len(q.Items) != 2 {
		t.Fatalf("pending queue = %#v, want 2 live items", q)
	}
	if q.FetchedAt.Before(before) {
		t.Fatalf("FetchedAt = %v, want >= %v", q.FetchedAt, before)
	}
	if snap.Approved.Loaded {
		t.Fatalf("approved queue reported loaded")
	}

	// Returned snapshot should be independent of the stored one.
	q.Items[0].ID = "999"
	again := s.Snapshot().Pending
	if again.Items[0].ID != "1" {
		t.Fatalf("Snapshot should clone items; got id %q want 1", again.Items[0].ID)
	}
}

func TestStore_ApplyMovesItemBetweenQueues(t *testing.T) {
	var s Store
	s.Replace(content.StatusPending, items(content.StatusPending, "1", "2"), SourceLive)
	s.Replace(content.StatusApproved, items(content.StatusApproved, "9"), SourceLive)

	approved := content.Item{ID: "1", Title: "t1", Status: content.StatusApproved}
	s.Apply(approved, content.StatusPending)

	snap := s.Snapshot()
	if content.IndexOf(snap.Pending.Items, "1") >= 0 {
		t.Fatalf("item 1 still pending: %#v", snap.Pending.Items)
	}
	if len(snap.Approved.Items) != 2 || snap.Approved.Items[0].ID != "1" {
		t.Fatalf("approved = %#v, want 1 first", snap.Approved.Items)
	}
	if snap.PendingPatches != 1 {
		t.Fatalf("PendingPatches = %d, want 1", snap.PendingPatches)
	}

	got, ok := s.Find("1")
	if !ok || got.Status != content.StatusApproved {
		t.Fatalf("Find = %#v %v, want approved item", got, ok)
	}
}

func TestStore_ReplaceSettlesPatches(t *testing.T) {
	var s Store
	s.Replace(content.StatusPending, items(content.StatusPending, "1", "2"), SourceLive)
	s.Apply(content.Item{ID: "1", Status: content.StatusApproved}, content.StatusPending)
	s.Apply(content.Item{ID: "2", Status: content.StatusRejected}, content.StatusPending)

	// The backend still lists 2 as pending: that patch is discarded.
	discarded := s.Replace(content.StatusPending, items(content.StatusPending, "2"), SourceLive)
	if !reflect.DeepEqual(discarded, []string{"2"}) {
		t.Fatalf("discarded = %v, want [2]", discarded)
	}
	if got := s.Snapshot().Pending.Items; len(got) != 1 || got[0].ID != "2" {
		t.Fatalf("pending = %#v, want authoritative list", got)
	}

	// The approved list agrees with patch 1.
	if discarded := s.Replace(content.StatusApproved, items(content.StatusApproved, "1"), SourceLive); len(discarded) != 0 {
		t.Fatalf("discarded = %v, want none", discarded)
	}
	if n := s.Snapshot().PendingPatches; n != 0 {
		t.Fatalf("PendingPatches = %d, want 0", n)
	}
}

func TestStore_NonLiveReplaceKeepsPatches(t *testing.T) {
	var s Store
	s.Apply(content.Item{ID: "1", Status: content.StatusApproved}, content.StatusPending)

	if discarded := s.Replace(content.StatusApproved, nil, SourceMirror); discarded != nil {
		t.Fatalf("discarded = %v, want nil", discarded)
	}
	snap := s.Snapshot()
	if snap.PendingPatches != 1 {
		t.Fatalf("PendingPatches = %d, want 1", snap.PendingPatches)
	}
	if !snap.Degraded() {
		t.Fatalf("Degraded() = false with a mirror queue")
	}
}

func TestStore_RecordRefreshErrorKeepsQueues(t *testing.T) {
	var s Store
	s.Replace(content.StatusPending, items(content.StatusPending, "1"), SourceLive)

	origErr := errors.New("boom")
	s.RecordRefresh(origErr)

	snap := s.Snapshot()
	if len(snap.Pending.Items) != 1 {
		t.Fatalf("queue changed on error: %#v", snap.Pending.Items)
	}
	if snap.LastError == nil || snap.LastError.Error() != "boom" {
		t.Fatalf("LastError = %v, want boom", snap.LastError)
	}
	if reflect.ValueOf(snap.LastError).Pointer() == reflect.ValueOf(origErr).Pointer() {
		t.Fatalf("Snapshot should clone error instance")
	}
}

func TestStore_ConsecutiveFailures(t *testing.T) {
	var s Store

	if s.Snapshot().IsOffline() {
		t.Fatal("IsOffline() = true, want false with 0 failures")
	}

	s.RecordRefresh(errors.New("fail 1"))
	if snap := s.Snapshot(); snap.ConsecutiveFailures != 1 || snap.IsOffline() {
		t.Fatalf("after 1 failure: failures=%d offline=%v", snap.ConsecutiveFailures, snap.IsOffline())
	}

	s.RecordRefresh(errors.New("fail 2"))
	if snap := s.Snapshot(); snap.ConsecutiveFailures != 2 || !snap.IsOffline() {
		t.Fatalf("after 2 failures: failures=%d offline=%v", snap.ConsecutiveFailures, snap.IsOffline())
	}

	// Success resets counter
	s.RecordRefresh(nil)
	if snap := s.Snapshot(); snap.ConsecutiveFailures != 0 || snap.IsOffline() || snap.LastError != nil {
		t.Fatalf("after success: %#v", snap)
	}
}
