package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"github.com/five82/newsdesk/internal/backend"
	"github.com/five82/newsdesk/internal/content"
	"github.com/five82/newsdesk/internal/workflow"
)

type call struct {
	op   backend.Op
	id   string
	req  backend.Request
	json map[string]string
}

type fakeFetcher struct {
	calls   []call
	results []result
}

type result struct {
	resp *backend.Response
	err  error
}

func (f *fakeFetcher) Fetch(_ context.Context, op backend.Op, _ string, _ []backend.Endpoint, id string, req backend.Request) (*backend.Response, error) {
	c := call{op: op, id: id, req: req}
	if req.ContentType == "application/json" {
		_ = json.Unmarshal(req.Body, &c.json)
	}
	f.calls = append(f.calls, c)
	if len(f.results) == 0 {
		return &backend.Response{Status: http.StatusOK, Body: []byte(`{}`)}, nil
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r.resp, r.err
}

func ok(body string) result {
	return result{resp: &backend.Response{Status: http.StatusOK, Body: []byte(body)}}
}

func rejected(status int, body string) result {
	return result{err: &backend.RejectedError{Endpoint: "v2-create", Status: status, Body: body}}
}

func draft() content.Draft {
	return content.Draft{
		Title:       "Flood warning",
		Body:        "<p>River rising</p>",
		Category:    "Weather",
		Region:      content.Region{State: "Assam", District: "Kamrup"},
		ContentType: content.TypeStandard,
		Media:       content.Media{FeaturedImage: "https://img/flood.jpg"},
		AuthorID:    "rep-1",
	}
}

func newGateway(f *fakeFetcher) *Gateway {
	g := New(f, backend.DefaultCatalog(), Options{})
	n := 0
	g.newKey = func() string {
		n++
		return "key-" + string(rune('0'+n))
	}
	return g
}

func TestSubmit_FullRungSucceeds(t *testing.T) {
	f := &fakeFetcher{results: []result{ok(`{"data":{"id":"n-9","title":"Flood warning","featuredImage":"https://img/flood.jpg","status":"pending"}}`)}}
	g := newGateway(f)

	res, err := g.Submit(context.Background(), "tok", Request{Mode: ModeCreate, Draft: draft()})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if res.Rung != RungFull || len(res.Warnings) != 0 {
		t.Fatalf("result = %+v, want full rung without warnings", res)
	}
	if res.Item.ID != "n-9" || res.Item.AuthorID != "rep-1" || res.Item.Status != content.StatusPending {
		t.Fatalf("item = %+v", res.Item)
	}
	if len(f.calls) != 1 || f.calls[0].op != backend.OpCreate {
		t.Fatalf("calls = %+v, want one create", f.calls)
	}
	sent := f.calls[0].json
	if sent["featuredImage"] != "https://img/flood.jpg" || sent["status"] != "pending" || sent["state"] != "Assam" {
		t.Fatalf("payload = %v", sent)
	}
	if f.calls[0].req.IdempotencyKey == "" {
		t.Fatalf("idempotency key missing")
	}
}

func TestSubmit_UnknownFieldFallsBackToReduced(t *testing.T) {
	f := &fakeFetcher{results: []result{
		rejected(http.StatusBadRequest, `{"message":"Could not find the 'featured_image' column of 'news' in the schema cache"}`),
		ok(`{"id":"n-1","title":"Flood warning","status":"pending"}`),
	}}
	g := newGateway(f)

	res, err := g.Submit(context.Background(), "tok", Request{Mode: ModeCreate, Draft: draft()})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if res.Rung != RungReduced {
		t.Fatalf("rung = %q, want reduced", res.Rung)
	}
	if res.Item.Media.FeaturedImage != "" {
		t.Fatalf("item media = %+v, want none", res.Item.Media)
	}
	if len(res.Warnings) == 0 || !strings.Contains(res.Warnings[0], "media was dropped") {
		t.Fatalf("warnings = %v, want media warning", res.Warnings)
	}
	if len(f.calls) != 2 {
		t.Fatalf("calls = %d, want 2", len(f.calls))
	}
	reduced := f.calls[1].json
	if _, ok := reduced["featuredImage"]; ok {
		t.Fatalf("reduced payload still has featuredImage: %v", reduced)
	}
	if reduced["state"] != "Assam" || reduced["title"] != "Flood warning" {
		t.Fatalf("reduced payload dropped unnamed fields: %v", reduced)
	}
	if f.calls[0].req.IdempotencyKey == f.calls[1].req.IdempotencyKey {
		t.Fatalf("rungs share an idempotency key")
	}
}

func TestSubmit_LadderExhaustion(t *testing.T) {
	f := &fakeFetcher{results: []result{
		rejected(http.StatusBadRequest, `unknown column "district"`),
		rejected(http.StatusUnprocessableEntity, `body too short`),
		rejected(http.StatusUnprocessableEntity, `body too short`),
	}}
	g := newGateway(f)

	_, err := g.Submit(context.Background(), "tok", Request{Mode: ModeCreate, Draft: draft()})
	var se *SubmissionError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *SubmissionError", err)
	}
	if len(se.Rungs) != 3 || se.Rungs[0].Rung != RungFull || se.Rungs[1].Rung != RungReduced || se.Rungs[2].Rung != RungMinimal {
		t.Fatalf("rungs = %+v, want full, reduced, minimal", se.Rungs)
	}
	if !errors.Is(err, backend.ErrRejected) {
		t.Fatalf("error does not unwrap to ErrRejected: %v", err)
	}
	minimal := f.calls[2].json
	if len(minimal) != 4 {
		t.Fatalf("minimal payload = %v, want required fields only", minimal)
	}
}

func TestSubmit_StopsOnNonFieldFailures(t *testing.T) {
	tests := []struct {
		name string
		res  result
		want error
	}{
		{name: "unauthorized", res: result{err: &backend.UnauthorizedError{Endpoint: "v2-create", Status: 401}}, want: backend.ErrUnauthorized},
		{name: "transient", res: result{err: &backend.ExhaustedError{Op: backend.OpCreate, Attempts: []backend.Attempt{{Outcome: backend.OutcomeServerError, Status: 503}}}}, want: nil},
		{name: "plain rejection", res: rejected(http.StatusConflict, `duplicate title`), want: backend.ErrRejected},
		{name: "cancelled", res: result{err: context.Canceled}, want: context.Canceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFetcher{results: []result{tt.res}}
			g := newGateway(f)
			_, err := g.Submit(context.Background(), "tok", Request{Mode: ModeCreate, Draft: draft()})
			var se *SubmissionError
			if !errors.As(err, &se) || len(se.Rungs) != 1 {
				t.Fatalf("error = %v, want single-rung SubmissionError", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			if len(f.calls) != 1 {
				t.Fatalf("calls = %d, want 1", len(f.calls))
			}
		})
	}
}

func TestSubmit_UploadUsesMultipart(t *testing.T) {
	d := draft()
	d.Media = content.Media{}
	d.Upload = &content.Upload{Filename: "flood.jpg", ContentType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff}}
	f := &fakeFetcher{results: []result{ok(`{"id":"n-2","title":"Flood warning"}`)}}
	g := newGateway(f)

	if _, err := g.Submit(context.Background(), "tok", Request{Mode: ModeCreate, Draft: d}); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	req := f.calls[0].req
	mediaType, params, err := mime.ParseMediaType(req.ContentType)
	if err != nil || mediaType != "multipart/form-data" {
		t.Fatalf("content type = %q, want multipart/form-data", req.ContentType)
	}
	r := multipart.NewReader(bytes.NewReader(req.Body), params["boundary"])
	parts := map[string]string{}
	for {
		p, err := r.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextPart returned error: %v", err)
		}
		b, _ := io.ReadAll(p)
		parts[p.FormName()] = string(b)
	}
	if parts["title"] != "Flood warning" || len(parts[uploadField]) != 3 {
		t.Fatalf("parts = %v, want fields and upload", parts)
	}
}

func TestSubmit_UpdateWithoutEcho(t *testing.T) {
	f := &fakeFetcher{results: []result{ok(`{"success":true}`)}}
	g := newGateway(f)

	res, err := g.Submit(context.Background(), "tok", Request{Mode: ModeUpdate, ID: "n-5", Draft: draft(), Status: content.StatusRejected})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if res.Item.ID != "n-5" || res.Item.Title != "Flood warning" || res.Item.UpdatedAt.IsZero() {
		t.Fatalf("item = %+v, want local copy of payload", res.Item)
	}
	if f.calls[0].op != backend.OpUpdate || f.calls[0].id != "n-5" {
		t.Fatalf("call = %+v, want update n-5", f.calls[0])
	}

	if _, err := g.Submit(context.Background(), "tok", Request{Mode: ModeUpdate, Draft: draft()}); err == nil {
		t.Fatalf("update without id returned nil error")
	}
}

func TestSubmit_CreateEchoWithListFields(t *testing.T) {
	f := &fakeFetcher{results: []result{
		ok(`{"id":"n-12","title":"Flood warning","status":"pending","tags":["weather"],"images":["https://img/flood.jpg"]}`),
	}}
	g := newGateway(f)

	res, err := g.Submit(context.Background(), "tok", Request{Mode: ModeCreate, Draft: draft()})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if res.Item.ID != "n-12" {
		t.Fatalf("item id = %q, want %q", res.Item.ID, "n-12")
	}
	if len(f.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(f.calls))
	}
}

func TestSubmit_UnreadableSuccessIsMalformed(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		body string
	}{
		{name: "create empty", req: Request{Mode: ModeCreate, Draft: draft()}, body: ``},
		{name: "create html", req: Request{Mode: ModeCreate, Draft: draft()}, body: `<html>maintenance</html>`},
		{name: "update html", req: Request{Mode: ModeUpdate, ID: "n-5", Draft: draft()}, body: `<html>maintenance</html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFetcher{results: []result{{resp: &backend.Response{Status: http.StatusCreated, Body: []byte(tt.body)}}}}
			g := newGateway(f)

			_, err := g.Submit(context.Background(), "tok", tt.req)
			if !errors.Is(err, backend.ErrMalformedResponse) {
				t.Fatalf("error = %v, want ErrMalformedResponse", err)
			}
			if len(f.calls) != 1 {
				t.Fatalf("calls = %d, want 1", len(f.calls))
			}
		})
	}
}

func TestDispatchStatus(t *testing.T) {
	f := &fakeFetcher{results: []result{
		{resp: &backend.Response{Status: http.StatusNoContent}},
		ok(`{"item":{"id":"n-3","title":"x","status":"pending"}}`),
	}}
	g := newGateway(f)

	it, err := g.DispatchStatus(context.Background(), "tok", workflow.Change{
		Item: content.Item{ID: "n-3"}, To: content.StatusRejected, Reason: "duplicate",
	})
	if err != nil {
		t.Fatalf("DispatchStatus returned error: %v", err)
	}
	if it.ID != "" {
		t.Fatalf("item = %+v, want zero for empty confirmation", it)
	}
	if f.calls[0].op != backend.OpSetStatus || f.calls[0].json["rejectionReason"] != "duplicate" || !f.calls[0].req.AllowEmpty {
		t.Fatalf("call = %+v", f.calls[0])
	}

	it, err = g.DispatchStatus(context.Background(), "tok", workflow.Change{
		Item: content.Item{ID: "n-3"}, To: content.StatusPending, Resubmit: true,
	})
	if err != nil {
		t.Fatalf("DispatchStatus returned error: %v", err)
	}
	if it.ID != "n-3" || f.calls[1].op != backend.OpResubmit {
		t.Fatalf("resubmit = %+v via %s", it, f.calls[1].op)
	}
	if _, ok := f.calls[1].json["rejectionReason"]; ok {
		t.Fatalf("resubmit payload carries a reason: %v", f.calls[1].json)
	}

	f.results = []result{ok(`{"success":true}`), ok(`<html>maintenance</html>`)}
	if _, err := g.DispatchStatus(context.Background(), "tok", workflow.Change{
		Item: content.Item{ID: "n-3"}, To: content.StatusApproved,
	}); err != nil {
		t.Fatalf("DispatchStatus with json acknowledgement returned error: %v", err)
	}
	_, err = g.DispatchStatus(context.Background(), "tok", workflow.Change{
		Item: content.Item{ID: "n-3"}, To: content.StatusApproved,
	})
	if !errors.Is(err, backend.ErrMalformedResponse) {
		t.Fatalf("error = %v, want ErrMalformedResponse", err)
	}
}

func TestNamedFields(t *testing.T) {
	got := namedFields(`ERROR: column "video_source" of relation "news" does not exist`)
	if len(got) != 1 || got[0] != "videoSource" {
		t.Fatalf("namedFields = %v, want [videoSource]", got)
	}
	if got := namedFields("statement timeout"); len(got) != 0 {
		t.Fatalf("namedFields = %v, want none", got)
	}
}
