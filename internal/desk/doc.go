// Package desk is the engine facade collaborators call: list the three
// editorial queues, fetch one item, create, edit, approve or reject, and
// resubmit.
//
// Reads never block a caller on an outage. A list runs the endpoint cascade,
// retries an exhausted cascade once more when its failures were transient,
// then falls back to the local mirror and finally to placeholders. Every
// ListResult says which of those answered. Missing or refused credentials are
// surfaced instead of hidden behind a fallback.
//
// Writes never fall back. Drafts and patches are validated locally, status
// changes are checked by the workflow package against the working copy, and
// only a change the backend confirmed is applied to the working copy and the
// mirror.
package desk
