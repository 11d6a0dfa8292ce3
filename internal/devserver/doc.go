// Package devserver emulates the content backend newsdesk talks to, for local
// development and integration tests.
//
// Three route families are served, each with its own record naming and
// envelope, so the endpoint cascade and the response normalizer see the same
// variety the real deployments produce:
//
//	v2      /api/v2/news?status=...      {"data": [...]} or {"results": [...]}
//	legacy  /api/news/{status}           bare list, _id/headline/approvalStatus
//	admin   /api/admin/news/{status}     {"news": [...]}, isApproved/isRejected
//
// Options can leave families unmounted (their routes answer 404), fail every
// Nth request with 503, require a bearer token, and refuse named payload
// fields with a schema-cache error that the submission gateway's fallback
// ladder recognises. Creates honour the Idempotency-Key header.
//
// Items live in memory and ids are random UUIDs.
package devserver
