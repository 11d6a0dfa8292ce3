// Package app is the composition root for newsdesk.
//
// # Architecture
//
// Run follows a simple initialization pattern:
//
//  1. Load configuration from ~/.config/newsdesk/config.toml
//  2. Open the log file; every component logs there while the TUI owns the
//     terminal
//  3. Build the credential resolver, backend client, endpoint cascade, local
//     mirror and Desk
//  4. Either import a feed and exit, or refresh once, start the poller and
//     run the TUI until the user quits or the context is cancelled
//
// # Data Flow
//
//	┌──────────────┐
//	│   Run()      │
//	└──────┬───────┘
//	       ├─────> config.Load()      TOML + NEWSDESK_* overrides
//	       ├─────> Build()            resolver, client, cascade, mirror, desk
//	       ├─────> Desk.Refresh()     populate the working copy
//	       ├─────> StartPoller()      background refresh with backoff
//	       └─────> ui.Run()           review TUI (blocks)
//
// # Polling Behavior
//
// The poller refreshes every queue at the configured interval (default 30
// seconds). A refresh that fails, or that had to serve any queue from the
// mirror or from placeholders, counts as a failure; consecutive failures
// double the wait up to five minutes, and the first success resets it.
//
// # Error Handling
//
// Fatal errors (returned from Run): invalid configuration, an unusable base
// URL, a mirror database that cannot be opened, and feed import failures.
// Refresh failures are logged and retried by the poller.
package app
