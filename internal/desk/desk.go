package desk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/five82/newsdesk/internal/backend"
	"github.com/five82/newsdesk/internal/content"
	"github.com/five82/newsdesk/internal/credential"
	"github.com/five82/newsdesk/internal/mirror"
	"github.com/five82/newsdesk/internal/retry"
	"github.com/five82/newsdesk/internal/state"
	"github.com/five82/newsdesk/internal/submit"
	"github.com/five82/newsdesk/internal/workflow"
)

var (
	// ErrNotFound means neither the backend nor the working copy knows the id.
	ErrNotFound = errors.New("desk: item not found")
	// ErrNotEditable means the item's status no longer allows content edits.
	ErrNotEditable = errors.New("desk: item is not editable")
)

// TokenSource supplies the bearer credential for each operation.
type TokenSource interface {
	Resolve(ctx context.Context) (credential.Credential, error)
}

// ListResult is one queue as returned to a caller.
type ListResult struct {
	Status    content.Status
	Items     []content.Item
	Source    state.Source
	FetchedAt time.Time
	// Cause is the live failure that forced a mirror or degraded result.
	Cause error
}

// Options configure a Desk.
type Options struct {
	Catalog backend.Catalog
	// CascadeRetries is how many more times an exhausted read cascade runs
	// before the mirror is consulted.
	CascadeRetries int
	RetryDelay     time.Duration
	Actor          workflow.Actor
	Markers        []string
	Logger         *log.Logger
}

// Desk exposes the editorial operations to collaborators.
type Desk struct {
	creds    TokenSource
	fetch    submit.Fetcher
	catalog  backend.Catalog
	reads    *retry.Scheduler
	cache    mirror.Cache
	gateway  *submit.Gateway
	workflow *workflow.Manager
	store    *state.Store
	actor    workflow.Actor
	logger   *log.Logger
	now      func() time.Time
}

// New wires a Desk. cache may be nil, in which case an in-memory mirror is
// used.
func New(creds TokenSource, fetch submit.Fetcher, cache mirror.Cache, opts Options) *Desk {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	catalog := opts.Catalog
	if catalog == nil {
		catalog = backend.DefaultCatalog()
	}
	if cache == nil {
		cache = mirror.NewMemoryCache()
	}
	retries := opts.CascadeRetries
	if retries < 0 {
		retries = 0
	}
	reads := retry.New(retries+1, opts.RetryDelay)
	reads.OnRetry = func(attempt int, delay time.Duration, err error) {
		logger.Printf("read cascade attempt %d failed, retrying in %s: %v", attempt, delay, err)
	}
	gateway := submit.New(fetch, catalog, submit.Options{Markers: opts.Markers, Logger: logger})
	return &Desk{
		creds:    creds,
		fetch:    fetch,
		catalog:  catalog,
		reads:    reads,
		cache:    cache,
		gateway:  gateway,
		workflow: workflow.NewManager(gateway, logger),
		store:    &state.Store{},
		actor:    opts.Actor,
		logger:   logger,
		now:      time.Now,
	}
}

// Actor returns the identity operations run as.
func (d *Desk) Actor() workflow.Actor { return d.actor }

// Snapshot returns the current working copy.
func (d *Desk) Snapshot() state.Snapshot { return d.store.Snapshot() }

func (d *Desk) ListPending(ctx context.Context) (ListResult, error) {
	return d.list(ctx, content.StatusPending)
}

func (d *Desk) ListApproved(ctx context.Context) (ListResult, error) {
	return d.list(ctx, content.StatusApproved)
}

func (d *Desk) ListRejected(ctx context.Context) (ListResult, error) {
	return d.list(ctx, content.StatusRejected)
}

// List returns the queue for status.
func (d *Desk) List(ctx context.Context, status content.Status) (ListResult, error) {
	if !status.Valid() {
		return ListResult{}, fmt.Errorf("unknown status %q", status)
	}
	return d.list(ctx, status)
}

// Refresh reloads every queue and records the outcome for offline detection.
// Any queue served from a fallback counts as a failed refresh.
func (d *Desk) Refresh(ctx context.Context) error {
	var errs []error
	for _, status := range []content.Status{content.StatusPending, content.StatusApproved, content.StatusRejected} {
		res, err := d.list(ctx, status)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("%s: %w", status, err))
		case res.Cause != nil:
			errs = append(errs, fmt.Errorf("%s served from %s: %w", status, res.Source, res.Cause))
		}
		if ctx.Err() != nil {
			break
		}
	}
	err := errors.Join(errs...)
	if ctx.Err() == nil {
		d.store.RecordRefresh(err)
	}
	return err
}

// GetByID fetches one item directly. When no direct endpoint answers, the
// pending and rejected queues are scanned instead.
func (d *Desk) GetByID(ctx context.Context, id string) (content.Item, error) {
	cred, err := d.creds.Resolve(ctx)
	if err != nil {
		return content.Item{}, err
	}
	var item content.Item
	err = d.reads.Do(ctx, func(ctx context.Context) error {
		resp, err := d.fetch.Fetch(ctx, backend.OpGetByID, cred.Token, d.catalog.Candidates(backend.OpGetByID), id, backend.Request{})
		if err != nil {
			return err
		}
		item, err = backend.NormalizeOne(resp.Body)
		return err
	})
	if err == nil && item.ID != "" {
		return item, nil
	}
	if stop(ctx, err) {
		return content.Item{}, err
	}
	d.logger.Printf("direct fetch of %s unavailable, scanning queues: %v", id, err)

	for _, status := range []content.Status{content.StatusPending, content.StatusRejected} {
		res, listErr := d.list(ctx, status)
		if listErr != nil {
			return content.Item{}, listErr
		}
		if i := content.IndexOf(res.Items, id); i >= 0 && !res.Items[i].Placeholder {
			return res.Items[i], nil
		}
	}
	return content.Item{}, fmt.Errorf("%s: %w", id, ErrNotFound)
}

// CreateItem validates draft locally and submits it as a new pending item.
func (d *Desk) CreateItem(ctx context.Context, draft content.Draft) (submit.Result, error) {
	if draft.AuthorID == "" {
		draft.AuthorID = d.actor.ID
	}
	if draft.ContentType == "" {
		draft.ContentType = content.TypeStandard
	}
	if err := content.ValidateDraft(draft); err != nil {
		return submit.Result{}, err
	}
	cred, err := d.creds.Resolve(ctx)
	if err != nil {
		return submit.Result{}, err
	}
	res, err := d.gateway.Submit(ctx, cred.Token, submit.Request{Mode: submit.ModeCreate, Draft: draft, Status: content.StatusPending})
	if err != nil {
		return submit.Result{}, err
	}
	res.Item.Status = content.StatusPending
	res.Item.RejectionReason = ""
	d.commit(ctx, res.Item, "")
	return res, nil
}

// UpdateItem edits content fields of a pending or rejected item owned by the
// actor. Status is never changed here.
func (d *Desk) UpdateItem(ctx context.Context, id string, patch content.Patch) (submit.Result, error) {
	item, err := d.lookup(ctx, id)
	if err != nil {
		return submit.Result{}, err
	}
	if item.Placeholder {
		return submit.Result{}, workflow.ErrPlaceholder
	}
	if item.Status != content.StatusPending && item.Status != content.StatusRejected {
		return submit.Result{}, fmt.Errorf("%s is %s: %w", id, item.Status, ErrNotEditable)
	}
	if !d.actor.Owns(item) {
		return submit.Result{}, fmt.Errorf("edit %s: %w", id, workflow.ErrForbidden)
	}
	if err := content.ValidatePatch(item, patch); err != nil {
		return submit.Result{}, err
	}

	cred, err := d.creds.Resolve(ctx)
	if err != nil {
		return submit.Result{}, err
	}
	draft := content.DraftFrom(patch.Apply(item))
	draft.Upload = patch.Upload
	res, err := d.gateway.Submit(ctx, cred.Token, submit.Request{Mode: submit.ModeUpdate, ID: id, Draft: draft, Status: item.Status})
	if err != nil {
		return submit.Result{}, err
	}

	res.Item.ID = item.ID
	res.Item.Status = item.Status
	if item.Status == content.StatusRejected && res.Item.RejectionReason == "" {
		res.Item.RejectionReason = item.RejectionReason
	}
	if res.Item.CreatedAt.IsZero() {
		res.Item.CreatedAt = item.CreatedAt
	}
	if !res.Item.UpdatedAt.After(item.UpdatedAt) {
		res.Item.UpdatedAt = d.now()
	}
	d.commit(ctx, res.Item, item.Status)
	return res, nil
}

// SetStatus approves or rejects a pending item. An illegal or forbidden
// transition is refused before any request is made.
func (d *Desk) SetStatus(ctx context.Context, id string, status content.Status, reason string) (content.Item, error) {
	item, err := d.lookup(ctx, id)
	if err != nil {
		return content.Item{}, err
	}
	if status != content.StatusApproved && status != content.StatusRejected {
		return content.Item{}, &workflow.TransitionError{ID: id, From: item.Status, To: status}
	}
	if _, err := workflow.Plan(d.actor, item, status, reason); err != nil {
		return content.Item{}, err
	}
	cred, err := d.creds.Resolve(ctx)
	if err != nil {
		return content.Item{}, err
	}
	updated, err := d.workflow.SetStatus(ctx, cred.Token, d.actor, item, status, reason)
	if err != nil {
		return content.Item{}, err
	}
	d.commit(ctx, updated, item.Status)
	return updated, nil
}

// Resubmit returns a rejected item to pending.
func (d *Desk) Resubmit(ctx context.Context, id string) (content.Item, error) {
	item, err := d.lookup(ctx, id)
	if err != nil {
		return content.Item{}, err
	}
	if _, err := workflow.Plan(d.actor, item, content.StatusPending, ""); err != nil {
		return content.Item{}, err
	}
	cred, err := d.creds.Resolve(ctx)
	if err != nil {
		return content.Item{}, err
	}
	updated, err := d.workflow.Resubmit(ctx, cred.Token, d.actor, item)
	if err != nil {
		return content.Item{}, err
	}
	d.commit(ctx, updated, item.Status)
	return updated, nil
}

func (d *Desk) list(ctx context.Context, status content.Status) (ListResult, error) {
	op := listOp(status)
	cred, err := d.creds.Resolve(ctx)
	if err != nil {
		return ListResult{}, err
	}

	var items []content.Item
	err = d.reads.Do(ctx, func(ctx context.Context) error {
		resp, err := d.fetch.Fetch(ctx, op, cred.Token, d.catalog.Candidates(op), "", backend.Request{})
		if err != nil {
			return err
		}
		items, err = backend.Normalize(resp.Body)
		return err
	})
	if err != nil && malformedOnly(err) {
		d.logger.Printf("%s: no usable body from any endpoint, treating as empty: %v", op, err)
		items, err = nil, nil
	}
	if err == nil {
		for i := range items {
			items[i].Status = status
			if status != content.StatusRejected {
				items[i].RejectionReason = ""
			}
		}
		for _, id := range d.store.Replace(status, items, state.SourceLive) {
			d.logger.Printf("%s: backend disagrees with local change to %s, discarding it", op, id)
		}
		if putErr := d.cache.Put(ctx, string(op), items); putErr != nil {
			d.logger.Printf("%s: mirror update failed: %v", op, putErr)
		}
		return d.result(status, nil), nil
	}
	if stop(ctx, err) {
		return ListResult{}, err
	}

	d.logger.Printf("%s: live retrieval failed, falling back: %v", op, err)
	entry, ok, cacheErr := d.cache.Get(ctx, string(op))
	if cacheErr != nil {
		d.logger.Printf("%s: mirror read failed: %v", op, cacheErr)
	}
	if ok {
		d.store.Replace(status, entry.Items, state.SourceMirror)
		return d.result(status, err), nil
	}
	d.store.Replace(status, mirror.Synthesize(status, d.now()), state.SourceDegraded)
	return d.result(status, err), nil
}

func (d *Desk) result(status content.Status, cause error) ListResult {
	q := d.store.Snapshot().Queue(status)
	return ListResult{Status: status, Items: q.Items, Source: q.Source, FetchedAt: q.FetchedAt, Cause: cause}
}

// lookup prefers the working copy so that local checks need no request.
func (d *Desk) lookup(ctx context.Context, id string) (content.Item, error) {
	if item, ok := d.store.Find(id); ok {
		return item, nil
	}
	return d.GetByID(ctx, id)
}

// commit applies a confirmed change to the working copy and rewrites the
// mirror entries it touched.
func (d *Desk) commit(ctx context.Context, item content.Item, from content.Status) {
	d.store.Apply(item, from)
	snap := d.store.Snapshot()
	for _, status := range []content.Status{from, item.Status} {
		if status == "" {
			continue
		}
		q := snap.Queue(status)
		if !q.Loaded || q.Source == state.SourceDegraded {
			continue
		}
		if err := d.cache.Put(ctx, string(listOp(status)), q.Items); err != nil {
			d.logger.Printf("%s: mirror update failed: %v", listOp(status), err)
		}
	}
}

// stop reports whether a read failure must be surfaced instead of falling
// back: cancellation and credential problems.
func stop(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, backend.ErrUnauthorized) || errors.Is(err, credential.ErrNotFound)
}

func malformedOnly(err error) bool {
	var ex *backend.ExhaustedError
	if errors.As(err, &ex) {
		return ex.MalformedOnly()
	}
	return errors.Is(err, backend.ErrMalformedResponse)
}

func listOp(status content.Status) backend.Op {
	switch status {
	case content.StatusApproved:
		return backend.OpListApproved
	case content.StatusRejected:
		return backend.OpListRejected
	default:
		return backend.OpListPending
	}
}
