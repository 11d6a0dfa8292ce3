// Package workflow owns the editorial state machine for content items.
//
// Items start pending. Reviewers (editor or admin role) move them to approved
// or rejected; the original submitter may resubmit a rejected item, which
// returns it to pending and clears the rejection reason. Approved is terminal
// here: un-approving is not a legal transition.
//
// Plan performs every check locally, so an illegal or forbidden request never
// reaches the network. Manager then dispatches the change as one request and
// reports the item as the backend confirmed it.
package workflow
