// Package content defines the canonical content item, drafts and patches, and
// the local validation applied before anything is sent to the backend.
//
// Every response shape the backend produces is normalized into Item by the
// backend package; nothing outside this package should need to know about
// legacy field names or timestamp layouts.
package content
