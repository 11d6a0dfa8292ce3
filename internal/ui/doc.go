// Package ui implements the newsdesk review terminal UI on Bubble Tea.
//
// The model polls the desk snapshot on a tick, shows one tab per queue with a
// detail pane for the selected item, and drives approve, reject and resubmit
// through the desk so workflow rules and optimistic placement stay in one
// place. A log view tails the CLI log file via logtail. Theme and last queue
// are persisted through prefs.
package ui
