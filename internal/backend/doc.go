// Package backend talks to the content backend over HTTP.
//
// # Overview
//
// Deployments of the backend expose the same logical operations under
// different routes, methods and response envelopes. This package hides those
// differences behind three pieces:
//
//   - client.go: one attempt against one endpoint, bounded by a timeout
//   - cascade.go: ordered fallback across an operation's endpoint candidates
//   - normalize.go: mapping of any supported envelope onto content.Item
//
// endpoint.go holds the catalog of known variants and errors.go the error
// taxonomy every caller switches on.
//
// # Cascade Rules
//
// Candidates are tried strictly one at a time, in declared order:
//
//	2xx with a usable body     → success, stop
//	2xx with an unusable body  → next candidate (reads may treat as empty)
//	404 / 405 / 501            → next candidate
//	5xx, network, timeout      → retried by the scheduler, then next candidate
//	401 / 403                  → *UnauthorizedError, stop
//	other 4xx                  → *RejectedError, stop
//
// When every candidate fails the caller gets *ExhaustedError with one Attempt
// per candidate, in order.
//
// # Usage
//
//	client, err := backend.NewClient(backend.Options{BaseURL: cfg.Backend.BaseURL})
//	if err != nil {
//		return err
//	}
//	cascade := backend.NewCascade(client, retry.New(3, 500*time.Millisecond), logger)
//	resp, err := cascade.Fetch(ctx, backend.OpListPending, token, catalog.Candidates(backend.OpListPending), "", backend.Request{})
//	if err != nil {
//		return err
//	}
//	items, err := backend.Normalize(resp.Body)
//
// # Normalization
//
// Envelopes are matched in order: a bare list, {"data": [...]}, an object with
// exactly one non-empty list field, and a single item object. Anything else
// is an empty list. Records are mapped with per-field fallbacks so that
// "headline", "news_id" or a nested {"category": {"name": ...}} all land in
// the right place. Records with neither an id nor a title are dropped.
package backend
