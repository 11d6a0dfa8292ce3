package backend

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/five82/newsdesk/internal/retry"
)

type scriptedSender struct {
	replies map[string][]reply
	calls   []string
}

type reply struct {
	status int
	body   string
	err    error
}

func (s *scriptedSender) Send(_ context.Context, _ string, ep Endpoint, _ string, _ Request) (*Response, error) {
	s.calls = append(s.calls, ep.Name)
	queue := s.replies[ep.Name]
	if len(queue) == 0 {
		return &Response{Endpoint: ep, Status: http.StatusNotFound}, nil
	}
	r := queue[0]
	if len(queue) > 1 {
		s.replies[ep.Name] = queue[1:]
	}
	if r.err != nil {
		return nil, r.err
	}
	return &Response{Endpoint: ep, Status: r.status, Body: []byte(r.body)}, nil
}

func candidates(names ...string) []Endpoint {
	eps := make([]Endpoint, 0, len(names))
	for _, n := range names {
		eps = append(eps, Endpoint{Name: n, Method: http.MethodGet, Path: "/" + n})
	}
	return eps
}

func TestCascade_StopsAtFirstUsableCandidate(t *testing.T) {
	sender := &scriptedSender{replies: map[string][]reply{
		"a": {{status: http.StatusNotFound}},
		"b": {{status: http.StatusOK, body: `[{"id":"1","title":"x"}]`}},
		"c": {{status: http.StatusOK, body: `[]`}},
	}}
	c := NewCascade(sender, nil, nil)

	resp, err := c.Fetch(context.Background(), OpListPending, "tok", candidates("a", "b", "c"), "", Request{})
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if resp.Endpoint.Name != "b" {
		t.Fatalf("endpoint = %q, want b", resp.Endpoint.Name)
	}
	if len(sender.calls) != 2 || sender.calls[0] != "a" || sender.calls[1] != "b" {
		t.Fatalf("calls = %v, want [a b]", sender.calls)
	}
}

func TestCascade_UnauthorizedAborts(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		sender := &scriptedSender{replies: map[string][]reply{
			"a": {{status: status}},
			"b": {{status: http.StatusOK, body: `[]`}},
		}}
		c := NewCascade(sender, nil, nil)

		_, err := c.Fetch(context.Background(), OpListApproved, "tok", candidates("a", "b"), "", Request{})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("status %d: error = %v, want ErrUnauthorized", status, err)
		}
		if len(sender.calls) != 1 {
			t.Fatalf("status %d: calls = %v, want only a", status, sender.calls)
		}
	}
}

func TestCascade_OtherClientErrorRejects(t *testing.T) {
	sender := &scriptedSender{replies: map[string][]reply{
		"a": {{status: http.StatusUnprocessableEntity, body: `{"error":"unknown column featured_image"}`}},
	}}
	c := NewCascade(sender, nil, nil)

	_, err := c.Fetch(context.Background(), OpCreate, "tok", candidates("a", "b"), "", Request{})
	var rej *RejectedError
	if !errors.As(err, &rej) {
		t.Fatalf("error = %v, want *RejectedError", err)
	}
	if rej.Status != http.StatusUnprocessableEntity || rej.Body == "" {
		t.Fatalf("rejection = %#v, want 422 with body", rej)
	}
	if len(sender.calls) != 1 {
		t.Fatalf("calls = %v, want only a", sender.calls)
	}
}

func TestCascade_RetriesServerErrorsThenExhausts(t *testing.T) {
	sender := &scriptedSender{replies: map[string][]reply{
		"a": {{status: http.StatusBadGateway}},
		"b": {{err: &TransientError{Endpoint: "b", Outcome: OutcomeNetwork, Err: errors.New("connection refused")}}},
	}}
	c := NewCascade(sender, retry.New(2, time.Millisecond), nil)

	_, err := c.Fetch(context.Background(), OpListRejected, "tok", candidates("a", "b"), "", Request{})
	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("error = %v, want *ExhaustedError", err)
	}
	if len(ex.Attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(ex.Attempts))
	}
	if ex.Attempts[0].Outcome != OutcomeServerError || ex.Attempts[0].Tries != 2 {
		t.Fatalf("first attempt = %+v, want server_error after 2 tries", ex.Attempts[0])
	}
	if ex.Attempts[1].Outcome != OutcomeNetwork {
		t.Fatalf("second attempt = %+v, want network", ex.Attempts[1])
	}
	if !ex.Transient() || !errors.Is(err, ErrTransient) {
		t.Fatalf("exhaustion should be transient: %v", err)
	}
	if len(sender.calls) != 4 {
		t.Fatalf("calls = %v, want 4", sender.calls)
	}
}

func TestCascade_MalformedBodiesMoveOn(t *testing.T) {
	sender := &scriptedSender{replies: map[string][]reply{
		"a": {{status: http.StatusOK, body: `<html>gateway</html>`}},
		"b": {{status: http.StatusOK, body: ``}},
	}}
	c := NewCascade(sender, nil, nil)

	_, err := c.Fetch(context.Background(), OpListPending, "tok", candidates("a", "b"), "", Request{})
	var ex *ExhaustedError
	if !errors.As(err, &ex) || !ex.MalformedOnly() {
		t.Fatalf("error = %v, want malformed-only exhaustion", err)
	}
	if ex.Transient() {
		t.Fatalf("malformed exhaustion should not be transient")
	}
}

func TestCascade_AllowEmptyAcceptsNoContent(t *testing.T) {
	sender := &scriptedSender{replies: map[string][]reply{
		"a": {{status: http.StatusNoContent}},
	}}
	c := NewCascade(sender, nil, nil)

	resp, err := c.Fetch(context.Background(), OpSetStatus, "tok", candidates("a"), "7", Request{AllowEmpty: true})
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if resp.Status != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.Status)
	}
}

func TestCascade_WriteEndsOnAnySuccess(t *testing.T) {
	for _, body := range []string{``, `<html>created</html>`} {
		sender := &scriptedSender{replies: map[string][]reply{
			"a": {{status: http.StatusCreated, body: body}},
			"b": {{status: http.StatusCreated, body: `{"id":"1","title":"x"}`}},
		}}
		c := NewCascade(sender, nil, nil)

		resp, err := c.Fetch(context.Background(), OpCreate, "tok", candidates("a", "b"), "", Request{
			Body:        []byte(`{"title":"x"}`),
			ContentType: "application/json",
		})
		if err != nil {
			t.Fatalf("Fetch(%q) returned error: %v", body, err)
		}
		if resp.Endpoint.Name != "a" {
			t.Fatalf("endpoint = %q, want a", resp.Endpoint.Name)
		}
		if len(sender.calls) != 1 || sender.calls[0] != "a" {
			t.Fatalf("calls = %v, want [a]", sender.calls)
		}
	}
}

func TestCascade_MissingOnly(t *testing.T) {
	sender := &scriptedSender{replies: map[string][]reply{}}
	c := NewCascade(sender, nil, nil)

	_, err := c.Fetch(context.Background(), OpGetByID, "tok", candidates("a", "b"), "1", Request{})
	var ex *ExhaustedError
	if !errors.As(err, &ex) || !ex.MissingOnly() {
		t.Fatalf("error = %v, want missing-only exhaustion", err)
	}
}

func TestCascade_CancelledContextStops(t *testing.T) {
	sender := &scriptedSender{replies: map[string][]reply{}}
	c := NewCascade(sender, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Fetch(ctx, OpListPending, "tok", candidates("a"), "", Request{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if len(sender.calls) != 0 {
		t.Fatalf("calls = %v, want none", sender.calls)
	}
}
