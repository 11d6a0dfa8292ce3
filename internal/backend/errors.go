package backend

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnauthorized means the token was presented and refused (401/403).
	ErrUnauthorized = errors.New("backend: unauthorized")
	// ErrTransient covers network failures, attempt timeouts and 5xx replies.
	ErrTransient = errors.New("backend: transient failure")
	// ErrMalformedResponse means a body was present but not a usable shape.
	ErrMalformedResponse = errors.New("backend: malformed response")
	// ErrRejected means an endpoint exists and refused the request (other 4xx).
	ErrRejected = errors.New("backend: request rejected")
)

// Outcome classifies a failed candidate attempt.
type Outcome string

const (
	OutcomeMissing     Outcome = "missing"
	OutcomeServerError Outcome = "server_error"
	OutcomeNetwork     Outcome = "network"
	OutcomeTimeout     Outcome = "timeout"
	OutcomeMalformed   Outcome = "malformed"
)

// Transient reports whether the outcome may succeed on retry.
func (o Outcome) Transient() bool {
	switch o {
	case OutcomeServerError, OutcomeNetwork, OutcomeTimeout:
		return true
	}
	return false
}

// TransientError wraps a failure worth retrying.
type TransientError struct {
	Endpoint string
	Status   int
	Outcome  Outcome
	Err      error
}

func (e *TransientError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s returned status %d", e.Endpoint, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Endpoint, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient implements the retry package's classification.
func (e *TransientError) Transient() bool { return true }

func (e *TransientError) Is(target error) bool { return target == ErrTransient }

// UnauthorizedError aborts a cascade immediately.
type UnauthorizedError struct {
	Endpoint string
	Status   int
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("%s returned status %d: credential refused", e.Endpoint, e.Status)
}

func (e *UnauthorizedError) Is(target error) bool { return target == ErrUnauthorized }

// RejectedError carries a 4xx refusal and the server's explanation.
type RejectedError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *RejectedError) Error() string {
	msg := fmt.Sprintf("%s returned status %d", e.Endpoint, e.Status)
	if detail := snippet(e.Body, 160); detail != "" {
		msg += ": " + detail
	}
	return msg
}

func (e *RejectedError) Is(target error) bool { return target == ErrRejected }

// Attempt records one candidate's final failure in a cascade.
type Attempt struct {
	Endpoint Endpoint
	Status   int
	Outcome  Outcome
	Tries    int
	Err      error
}

func (a Attempt) String() string {
	label := a.Endpoint.Label()
	if a.Status > 0 {
		return fmt.Sprintf("%s: %s (status %d)", label, a.Outcome, a.Status)
	}
	if a.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", label, a.Outcome, a.Err)
	}
	return fmt.Sprintf("%s: %s", label, a.Outcome)
}

// ExhaustedError is returned when every candidate failed without an abort.
type ExhaustedError struct {
	Op       Op
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("%s: no endpoint candidates configured", e.Op)
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, a.String())
	}
	return fmt.Sprintf("%s: all %d endpoints failed: %s", e.Op, len(e.Attempts), strings.Join(parts, "; "))
}

// Unwrap exposes each attempt's error to errors.Is and errors.As.
func (e *ExhaustedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		if a.Err != nil {
			errs = append(errs, a.Err)
		}
	}
	return errs
}

// Transient reports whether at least one candidate failed transiently, which
// makes the whole cascade worth another pass.
func (e *ExhaustedError) Transient() bool {
	for _, a := range e.Attempts {
		if a.Outcome.Transient() {
			return true
		}
	}
	return false
}

// MalformedOnly reports whether every candidate answered 2xx with an unusable
// body. Reads treat that as an empty result rather than an outage.
func (e *ExhaustedError) MalformedOnly() bool {
	return e.only(OutcomeMalformed)
}

// MissingOnly reports whether no candidate exists on this deployment.
func (e *ExhaustedError) MissingOnly() bool {
	return e.only(OutcomeMissing)
}

func (e *ExhaustedError) only(o Outcome) bool {
	if len(e.Attempts) == 0 {
		return false
	}
	for _, a := range e.Attempts {
		if a.Outcome != o {
			return false
		}
	}
	return true
}

func snippet(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
