// Package mirror keeps a best-effort local copy of the last successful list
// per logical query, and synthesizes clearly marked placeholders when even
// that copy is missing.
//
// The mirror is never authoritative. It is read only after live retrieval has
// failed, and written only by whole-value replacement after a successful fetch
// or a confirmed status change. MemoryCache suits tests and short sessions;
// SQLiteCache survives restarts.
//
// Synthesize must never back a write. Its items carry Placeholder = true so
// callers can show an offline indicator.
package mirror
