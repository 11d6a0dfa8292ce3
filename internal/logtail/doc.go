// Package logtail reads the tail of the newsdesk log file for the TUI log
// pane.
//
// Read keeps a ring buffer of maxLines entries so large files are scanned
// once in O(maxLines) memory. A missing file is not an error; it yields no
// lines.
//
// Parse understands the line shape produced by the logging package:
//
//	[cascade] 2026/10/16 09:12:44.120031 list_pending: v2-pending returned 503, retrying
//
// Filter narrows lines to one component, and Entry.Level gives the UI a
// coarse severity for colouring.
package logtail
