package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/five82/newsdesk/internal/retry"
)

// Cascade walks an operation's endpoint candidates in declared order, one at
// a time, until one answers usefully.
type Cascade struct {
	sender Sender
	retry  *retry.Scheduler
	logger *log.Logger
}

// NewCascade builds a cascade. Each candidate attempt is retried on transient
// failure by sched; a nil scheduler means one try per candidate.
func NewCascade(sender Sender, sched *retry.Scheduler, logger *log.Logger) *Cascade {
	if sched == nil {
		sched = retry.New(1, 0)
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Cascade{sender: sender, retry: sched, logger: logger}
}

// Fetch returns the first usable response. 404-class replies, 5xx, network
// failures and unusable 2xx bodies move on to the next candidate; 401/403
// abort with *UnauthorizedError; any other 4xx aborts with *RejectedError.
// When every candidate fails the result is *ExhaustedError.
//
// A request with a body may already have been applied once it is answered
// with 2xx, so that reply ends the cascade whatever its body holds; judging
// it is left to the caller.
func (c *Cascade) Fetch(ctx context.Context, op Op, token string, candidates []Endpoint, id string, req Request) (*Response, error) {
	exhausted := &ExhaustedError{Op: op}
	for _, ep := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var resp *Response
		tries := 0
		err := c.retry.Do(ctx, func(ctx context.Context) error {
			tries++
			r, err := c.sender.Send(ctx, token, ep, id, req)
			if err != nil {
				return err
			}
			if r.Status >= 500 && r.Status != http.StatusNotImplemented {
				return &TransientError{Endpoint: ep.Label(), Status: r.Status, Outcome: OutcomeServerError}
			}
			resp = r
			return nil
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			attempt := Attempt{Endpoint: ep, Outcome: OutcomeNetwork, Tries: tries, Err: err}
			var te *TransientError
			if errors.As(err, &te) {
				attempt.Outcome = te.Outcome
				attempt.Status = te.Status
			} else if !retry.IsTransient(err) {
				// Request construction problems are not worth another candidate
				// with the same inputs.
				return nil, err
			}
			c.logger.Printf("%s: %s failed after %d tries: %v", op, ep.Label(), tries, err)
			exhausted.Attempts = append(exhausted.Attempts, attempt)
			continue
		}

		switch {
		case resp.Status >= 200 && resp.Status < 300:
			if req.AllowEmpty || req.Body != nil || usableBody(resp.Body) {
				return resp, nil
			}
			c.logger.Printf("%s: %s answered %d with an unusable body", op, ep.Label(), resp.Status)
			exhausted.Attempts = append(exhausted.Attempts, Attempt{
				Endpoint: ep, Status: resp.Status, Outcome: OutcomeMalformed, Tries: tries, Err: ErrMalformedResponse,
			})
		case resp.Status == http.StatusNotFound || resp.Status == http.StatusMethodNotAllowed || resp.Status == http.StatusNotImplemented:
			exhausted.Attempts = append(exhausted.Attempts, Attempt{
				Endpoint: ep, Status: resp.Status, Outcome: OutcomeMissing, Tries: tries,
			})
		case resp.Status == http.StatusUnauthorized || resp.Status == http.StatusForbidden:
			c.logger.Printf("%s: %s refused the credential (%d)", op, ep.Label(), resp.Status)
			return nil, &UnauthorizedError{Endpoint: ep.Label(), Status: resp.Status}
		default:
			return nil, &RejectedError{Endpoint: ep.Label(), Status: resp.Status, Body: string(resp.Body)}
		}
	}
	return nil, exhausted
}

func usableBody(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && json.Valid(trimmed)
}
