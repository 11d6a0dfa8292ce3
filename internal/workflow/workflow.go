package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/five82/newsdesk/internal/content"
)

// DefaultRejectionReason is recorded when a reviewer rejects without a reason.
const DefaultRejectionReason = "This submission does not meet our editorial standards."

var (
	// ErrInvalidTransition is matched by every *TransitionError.
	ErrInvalidTransition = errors.New("workflow: invalid status transition")
	// ErrForbidden means the transition exists but the actor may not make it.
	ErrForbidden = errors.New("workflow: actor not permitted")
	// ErrPlaceholder means the item was synthesized offline and has no backend
	// counterpart.
	ErrPlaceholder = errors.New("workflow: placeholder items cannot change status")
)

// TransitionError describes an illegal status change.
type TransitionError struct {
	ID   string
	From content.Status
	To   content.Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("item %s: cannot move from %s to %s", e.ID, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// Role is an actor's editorial capacity.
type Role string

const (
	RoleReporter Role = "reporter"
	RoleEditor   Role = "editor"
	RoleAdmin    Role = "admin"
)

// ParseRole maps a configured role name onto a Role, defaulting to reporter.
func ParseRole(value string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleEditor:
		return RoleEditor
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleReporter
	}
}

// Actor is whoever requests a transition.
type Actor struct {
	ID   string
	Role Role
}

// CanReview reports whether the actor may approve or reject.
func (a Actor) CanReview() bool {
	return a.Role == RoleEditor || a.Role == RoleAdmin
}

// Owns reports whether the actor submitted item.
func (a Actor) Owns(item content.Item) bool {
	return a.ID != "" && item.AuthorID != "" && a.ID == item.AuthorID
}

// Change is a validated transition ready to dispatch.
type Change struct {
	Item     content.Item
	To       content.Status
	Reason   string
	Resubmit bool
}

// Dispatcher sends a validated change to the backend as a single request and
// returns the backend's view of the item. A zero item means the backend
// confirmed without echoing it.
type Dispatcher interface {
	DispatchStatus(ctx context.Context, token string, change Change) (content.Item, error)
}

// Manager is the only path through which an item's status changes.
type Manager struct {
	dispatcher Dispatcher
	logger     *log.Logger
	now        func() time.Time
}

// NewManager builds a Manager that dispatches confirmed changes through d.
func NewManager(d Dispatcher, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Manager{dispatcher: d, logger: logger, now: time.Now}
}

// Plan validates a transition without touching the network.
//
//	pending  → approved  reviewer only, reason cleared
//	pending  → rejected  reviewer only, reason defaulted when blank
//	rejected → pending   original submitter only, reason cleared
//
// Everything else is a *TransitionError.
func Plan(actor Actor, item content.Item, to content.Status, reason string) (Change, error) {
	if item.Placeholder {
		return Change{}, ErrPlaceholder
	}
	from := item.Status
	change := Change{Item: item, To: to}
	switch {
	case from == content.StatusPending && to == content.StatusApproved:
		if !actor.CanReview() {
			return Change{}, fmt.Errorf("approve %s: %w", item.ID, ErrForbidden)
		}
	case from == content.StatusPending && to == content.StatusRejected:
		if !actor.CanReview() {
			return Change{}, fmt.Errorf("reject %s: %w", item.ID, ErrForbidden)
		}
		change.Reason = strings.TrimSpace(reason)
		if change.Reason == "" {
			change.Reason = DefaultRejectionReason
		}
	case from == content.StatusRejected && to == content.StatusPending:
		if !actor.Owns(item) {
			return Change{}, fmt.Errorf("resubmit %s: only the original submitter may resubmit: %w", item.ID, ErrForbidden)
		}
		change.Resubmit = true
	default:
		return Change{}, &TransitionError{ID: item.ID, From: from, To: to}
	}
	return change, nil
}

// SetStatus approves or rejects a pending item. The returned item reflects the
// confirmed change; nothing is applied locally until the backend confirms.
func (m *Manager) SetStatus(ctx context.Context, token string, actor Actor, item content.Item, to content.Status, reason string) (content.Item, error) {
	if to != content.StatusApproved && to != content.StatusRejected {
		return content.Item{}, &TransitionError{ID: item.ID, From: item.Status, To: to}
	}
	change, err := Plan(actor, item, to, reason)
	if err != nil {
		return content.Item{}, err
	}
	return m.dispatch(ctx, token, change)
}

// Resubmit returns a rejected item to pending.
func (m *Manager) Resubmit(ctx context.Context, token string, actor Actor, item content.Item) (content.Item, error) {
	change, err := Plan(actor, item, content.StatusPending, "")
	if err != nil {
		return content.Item{}, err
	}
	return m.dispatch(ctx, token, change)
}

func (m *Manager) dispatch(ctx context.Context, token string, change Change) (content.Item, error) {
	confirmed, err := m.dispatcher.DispatchStatus(ctx, token, change)
	if err != nil {
		return content.Item{}, fmt.Errorf("%s %s: %w", verb(change), change.Item.ID, err)
	}
	m.logger.Printf("%s %s: %s -> %s", verb(change), change.Item.ID, change.Item.Status, change.To)
	return m.settle(change, confirmed), nil
}

// settle merges the backend echo with the change so the returned item always
// carries the new status, the matching reason and an advanced UpdatedAt.
func (m *Manager) settle(change Change, confirmed content.Item) content.Item {
	out := change.Item
	if confirmed.ID != "" {
		out = confirmed
		if out.AuthorID == "" {
			out.AuthorID = change.Item.AuthorID
		}
		if out.CreatedAt.IsZero() {
			out.CreatedAt = change.Item.CreatedAt
		}
	}
	out.Status = change.To
	out.RejectionReason = ""
	if change.To == content.StatusRejected {
		out.RejectionReason = change.Reason
	}
	now := m.now()
	if !out.UpdatedAt.After(change.Item.UpdatedAt) {
		out.UpdatedAt = now
	}
	return out
}

func verb(change Change) string {
	switch {
	case change.Resubmit:
		return "resubmit"
	case change.To == content.StatusApproved:
		return "approve"
	default:
		return "reject"
	}
}
