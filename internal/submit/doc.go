// Package submit sends content writes to the backend.
//
// Creates and updates go through a three-rung ladder. The full rung sends
// every field, as multipart/form-data when a media binary is attached. When
// the backend refuses a field it does not know (matched against configurable
// markers such as "unknown column" or "schema cache"), the reduced rung drops
// the optional fields named in the refusal, or all of them when none are
// named. The minimal rung sends title, body, category and status only. A
// result that lost media always carries a warning, and a ladder that runs out
// returns *SubmissionError listing every rung and why it failed.
//
// Status changes bypass the ladder: DispatchStatus sends one small JSON
// request through the set-status or resubmit endpoints.
package submit
