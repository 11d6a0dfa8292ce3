package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/five82/newsdesk/internal/backend"
	"github.com/five82/newsdesk/internal/content"
	"github.com/five82/newsdesk/internal/workflow"
)

// DefaultMarkers are substrings of rejection bodies that mean "this backend
// does not know one of the fields you sent".
var DefaultMarkers = []string{
	"unknown column",
	"unrecognized field",
	"unknown field",
	"does not exist",
	"could not find the",
	"schema cache",
}

// Mode says whether a submission creates or updates.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeUpdate Mode = "update"
)

// Rung is one step of the payload fallback ladder.
type Rung string

const (
	RungFull    Rung = "full"
	RungReduced Rung = "reduced"
	RungMinimal Rung = "minimal"
)

// Fetcher runs a logical operation across endpoint candidates.
type Fetcher interface {
	Fetch(ctx context.Context, op backend.Op, token string, candidates []backend.Endpoint, id string, req backend.Request) (*backend.Response, error)
}

// Ensure the cascade satisfies Fetcher at compile time.
var _ Fetcher = (*backend.Cascade)(nil)

// Request is one create or update.
type Request struct {
	Mode  Mode
	ID    string
	Draft content.Draft
	// Status is sent with the payload; creates default to pending.
	Status content.Status
}

// Result is a successful submission.
type Result struct {
	Item     content.Item
	Rung     Rung
	Warnings []string
}

// RungFailure records why one rung did not succeed.
type RungFailure struct {
	Rung    Rung
	Dropped []string
	Err     error
}

func (f RungFailure) String() string {
	if len(f.Dropped) > 0 {
		return fmt.Sprintf("%s (without %s): %v", f.Rung, strings.Join(f.Dropped, ", "), f.Err)
	}
	return fmt.Sprintf("%s: %v", f.Rung, f.Err)
}

// SubmissionError is returned when no rung succeeded.
type SubmissionError struct {
	Mode  Mode
	Rungs []RungFailure
}

func (e *SubmissionError) Error() string {
	parts := make([]string, 0, len(e.Rungs))
	for _, r := range e.Rungs {
		parts = append(parts, r.String())
	}
	return fmt.Sprintf("%s failed after %d rung(s): %s", e.Mode, len(e.Rungs), strings.Join(parts, "; "))
}

// Unwrap exposes every rung's failure to errors.Is and errors.As.
func (e *SubmissionError) Unwrap() []error {
	errs := make([]error, 0, len(e.Rungs))
	for _, r := range e.Rungs {
		errs = append(errs, r.Err)
	}
	return errs
}

// Options configure a Gateway.
type Options struct {
	Markers []string
	Logger  *log.Logger
}

// Gateway sends writes to the backend.
type Gateway struct {
	fetch   Fetcher
	catalog backend.Catalog
	markers []string
	logger  *log.Logger
	newKey  func() string
	now     func() time.Time
}

// Ensure Gateway can back the workflow manager.
var _ workflow.Dispatcher = (*Gateway)(nil)

// New builds a Gateway over fetch using the endpoints in catalog.
func New(fetch Fetcher, catalog backend.Catalog, opts Options) *Gateway {
	markers := opts.Markers
	if len(markers) == 0 {
		markers = DefaultMarkers
	}
	lowered := make([]string, 0, len(markers))
	for _, m := range markers {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			lowered = append(lowered, m)
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Gateway{
		fetch:   fetch,
		catalog: catalog,
		markers: lowered,
		logger:  logger,
		newKey:  uuid.NewString,
		now:     time.Now,
	}
}

// Submit walks the ladder full → reduced → minimal. A rung is only left when
// the backend refuses a field; credential problems, outages and cancellation
// end the ladder at once. Each rung runs at most once.
func (g *Gateway) Submit(ctx context.Context, token string, req Request) (Result, error) {
	op, id, err := g.target(req)
	if err != nil {
		return Result{}, err
	}
	status := req.Status
	if status == "" {
		status = content.StatusPending
	}

	full := fullPayload(req.Draft, status)
	subErr := &SubmissionError{Mode: req.Mode}
	tried := make(map[string]bool)

	current := full
	rung := RungFull
	for {
		sig := current.signature()
		if !tried[sig] {
			tried[sig] = true
			dropped := droppedOptional(full, current)
			item, err := g.send(ctx, op, token, id, current)
			if err == nil {
				res := Result{Item: item, Rung: rung, Warnings: warnings(full, current)}
				if rung != RungFull {
					g.logger.Printf("%s %s succeeded on %s rung without %s", req.Mode, item.ID, rung, strings.Join(dropped, ", "))
				}
				return res, nil
			}
			subErr.Rungs = append(subErr.Rungs, RungFailure{Rung: rung, Dropped: dropped, Err: err})
			g.logger.Printf("%s on %s rung failed: %v", req.Mode, rung, err)
			if !g.advance(rung, err) {
				return Result{}, subErr
			}
		}

		switch rung {
		case RungFull:
			rung = RungReduced
			named := namedFields(rejectionBody(subErr.Rungs[len(subErr.Rungs)-1].Err))
			if len(named) == 0 {
				named = current.optionalPresent()
			}
			current = full.without(named)
			if current.signature() == full.signature() {
				current = full.without(full.optionalPresent())
			}
		case RungReduced:
			rung = RungMinimal
			current = full.minimal()
		default:
			return Result{}, subErr
		}
	}
}

// DispatchStatus sends a validated status change as one JSON request. A reply
// without an item body is a confirmation with nothing to echo.
func (g *Gateway) DispatchStatus(ctx context.Context, token string, change workflow.Change) (content.Item, error) {
	op := backend.OpSetStatus
	if change.Resubmit {
		op = backend.OpResubmit
	}
	body := map[string]string{"status": string(change.To)}
	if change.To == content.StatusRejected {
		body["rejectionReason"] = change.Reason
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return content.Item{}, fmt.Errorf("encode status change: %w", err)
	}
	resp, err := g.fetch.Fetch(ctx, op, token, g.catalog.Candidates(op), change.Item.ID, backend.Request{
		Body:           payload,
		ContentType:    "application/json",
		IdempotencyKey: g.newKey(),
		AllowEmpty:     true,
	})
	if err != nil {
		return content.Item{}, err
	}
	item, err := backend.NormalizeOne(resp.Body)
	if err == nil {
		return item, nil
	}
	if !acknowledgement(resp.Body) {
		return content.Item{}, fmt.Errorf("%s: %w", resp.Endpoint.Label(), err)
	}
	return content.Item{}, nil
}

// acknowledgement reports whether a 2xx body without an item still reads as
// the backend's own reply: nothing at all, or JSON such as {"success":true}.
// Anything else (a proxy's HTML page) cannot confirm a write.
func acknowledgement(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) == 0 || json.Valid(trimmed)
}

func (g *Gateway) target(req Request) (backend.Op, string, error) {
	switch req.Mode {
	case ModeCreate:
		return backend.OpCreate, "", nil
	case ModeUpdate:
		if strings.TrimSpace(req.ID) == "" {
			return "", "", fmt.Errorf("update requires an id")
		}
		return backend.OpUpdate, req.ID, nil
	default:
		return "", "", fmt.Errorf("unknown submission mode %q", req.Mode)
	}
}

func (g *Gateway) send(ctx context.Context, op backend.Op, token, id string, p payload) (content.Item, error) {
	body, contentType, err := p.encode()
	if err != nil {
		return content.Item{}, err
	}
	resp, err := g.fetch.Fetch(ctx, op, token, g.catalog.Candidates(op), id, backend.Request{
		Body:           body,
		ContentType:    contentType,
		IdempotencyKey: g.newKey(),
	})
	if err != nil {
		return content.Item{}, err
	}

	echoed, err := backend.NormalizeOne(resp.Body)
	local := itemFrom(id, p)
	if err != nil {
		// Confirmed without an item; a create without an id cannot be
		// tracked, so report it as malformed.
		if id == "" || !acknowledgement(resp.Body) {
			return content.Item{}, fmt.Errorf("%s: %w", resp.Endpoint.Label(), backend.ErrMalformedResponse)
		}
		local.UpdatedAt = g.now()
		return local, nil
	}
	if echoed.ID == "" {
		echoed.ID = id
	}
	if echoed.AuthorID == "" {
		echoed.AuthorID = local.AuthorID
	}
	if echoed.UpdatedAt.IsZero() {
		echoed.UpdatedAt = g.now()
	}
	if echoed.CreatedAt.IsZero() && op == backend.OpCreate {
		echoed.CreatedAt = echoed.UpdatedAt
	}
	return echoed, nil
}

// advance decides whether a failure on rung may fall through to the next one.
func (g *Gateway) advance(rung Rung, err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var rej *backend.RejectedError
	if !errors.As(err, &rej) {
		return false
	}
	if rung == RungReduced {
		return true
	}
	return g.fieldRejection(rej.Body)
}

func (g *Gateway) fieldRejection(body string) bool {
	lower := strings.ToLower(body)
	for _, m := range g.markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func rejectionBody(err error) string {
	var rej *backend.RejectedError
	if errors.As(err, &rej) {
		return rej.Body
	}
	return ""
}

func droppedOptional(full, p payload) []string {
	var dropped []string
	kept := p.optionalPresent()
	for _, k := range full.optionalPresent() {
		if !containsKey(kept, k) {
			dropped = append(dropped, k)
		}
	}
	return dropped
}

func warnings(full, p payload) []string {
	var out []string
	media := droppedMedia(full, p)
	if len(media) > 0 {
		out = append(out, fmt.Sprintf("media was dropped: the backend did not accept %s", strings.Join(media, ", ")))
	}
	var other []string
	for _, k := range droppedOptional(full, p) {
		if !containsKey(media, k) {
			other = append(other, k)
		}
	}
	if len(other) > 0 {
		out = append(out, fmt.Sprintf("fields not saved: %s", strings.Join(other, ", ")))
	}
	return out
}
