// Package state holds the working copy of the editorial queues shared by the
// engine, the background poller and the UI.
//
// # Overview
//
// Each queue (pending, approved, rejected) is stored whole, together with the
// source it came from: live from the backend, the local mirror, or synthesized
// placeholders. The Store is guarded by a sync.RWMutex; Snapshot hands out
// copies so renderers never observe a half-applied change.
//
// # Optimistic Changes
//
// A confirmed approve, reject, resubmit or edit is applied to the working copy
// immediately with Apply, so the item leaves its old queue before the next
// refresh. The change is remembered as a patch. When Replace later installs
// an authoritative (live) queue the patch is settled:
//
//	patched into this queue, present   → confirmed
//	patched into this queue, missing   → discarded
//	patched out of this queue, present → discarded
//
// Discarded ids are returned so the caller can log them. The authoritative
// list always wins; patches are never re-applied on top of it.
//
// # Refresh Health
//
// RecordRefresh mirrors the poll bookkeeping of a status poller: errors keep
// the previous queues, count consecutive failures, and IsOffline turns true
// after two in a row.
//
// The zero Store is ready to use.
package state
