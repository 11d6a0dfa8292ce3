package devserver

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/five82/newsdesk/internal/backend"
	"github.com/five82/newsdesk/internal/content"
)

func do(t *testing.T, h http.Handler, method, path string, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestListShapesNormalizeAlike(t *testing.T) {
	srv := New(Options{Seed: true})
	paths := map[string]string{
		FamilyV2:     "/api/v2/news?status=",
		FamilyLegacy: "/api/news/",
		FamilyAdmin:  "/api/admin/news/",
	}
	want := map[content.Status]int{
		content.StatusPending:  2,
		content.StatusApproved: 1,
		content.StatusRejected: 1,
	}

	for family, prefix := range paths {
		for status, count := range want {
			rec := do(t, srv.Handler(), http.MethodGet, prefix+string(status), "", nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("%s %s: status = %d, want 200", family, status, rec.Code)
			}
			items, err := backend.Normalize(rec.Body.Bytes())
			if err != nil {
				t.Fatalf("%s %s: Normalize: %v", family, status, err)
			}
			if len(items) != count {
				t.Fatalf("%s %s: got %d items, want %d", family, status, len(items), count)
			}
			for _, item := range items {
				if item.ID == "" || item.Title == "" || item.AuthorID == "" {
					t.Fatalf("%s %s: incomplete item %+v", family, status, item)
				}
				if item.Status != status {
					t.Fatalf("%s: Status = %q, want %q", family, item.Status, status)
				}
				if status == content.StatusRejected && item.RejectionReason != "Needs a second source" {
					t.Fatalf("%s: RejectionReason = %q", family, item.RejectionReason)
				}
			}
		}
	}
}

func TestV2EnvelopeRotation(t *testing.T) {
	srv := New(Options{Seed: true, Families: []string{FamilyV2}, Rotate: true})
	first := do(t, srv.Handler(), http.MethodGet, "/api/v2/news?status=pending", "", nil)
	second := do(t, srv.Handler(), http.MethodGet, "/api/v2/news?status=pending", "", nil)
	if !strings.Contains(first.Body.String(), `"data"`) || !strings.Contains(second.Body.String(), `"results"`) {
		t.Fatalf("envelopes = %s / %s", first.Body.String(), second.Body.String())
	}
	for _, rec := range []*httptest.ResponseRecorder{first, second} {
		items, err := backend.Normalize(rec.Body.Bytes())
		if err != nil || len(items) != 2 {
			t.Fatalf("Normalize = %d items, %v", len(items), err)
		}
	}
}

func TestUnmountedFamilyIsMissing(t *testing.T) {
	srv := New(Options{Families: []string{FamilyLegacy}})
	if rec := do(t, srv.Handler(), http.MethodGet, "/api/v2/news?status=pending", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if rec := do(t, srv.Handler(), http.MethodGet, "/api/news/pending", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestTokenAndFaults(t *testing.T) {
	srv := New(Options{Token: "a.b.c"})
	if rec := do(t, srv.Handler(), http.MethodGet, "/api/news/pending", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	auth := map[string]string{"Authorization": "Bearer a.b.c"}
	srv.FailNext(1)
	if rec := do(t, srv.Handler(), http.MethodGet, "/api/news/pending", "", auth); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if rec := do(t, srv.Handler(), http.MethodGet, "/api/news/pending", "", auth); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if srv.Requests() != 3 {
		t.Fatalf("Requests = %d, want 3", srv.Requests())
	}
}

func TestFailEvery(t *testing.T) {
	srv := New(Options{FailEvery: 2})
	codes := []int{}
	for i := 0; i < 4; i++ {
		codes = append(codes, do(t, srv.Handler(), http.MethodGet, "/api/news/pending", "", nil).Code)
	}
	want := []int{200, 503, 200, 503}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("codes = %v, want %v", codes, want)
		}
	}
}

func TestCreateHonoursIdempotencyKey(t *testing.T) {
	srv := New(Options{})
	body := `{"title":"Road closed","body":"Detour via ring road","category":"Traffic","status":"approved"}`
	key := map[string]string{"Idempotency-Key": "k-1"}

	first := do(t, srv.Handler(), http.MethodPost, "/api/v2/news", body, key)
	second := do(t, srv.Handler(), http.MethodPost, "/api/v2/news", body, key)
	if first.Code != http.StatusCreated || second.Code != http.StatusOK {
		t.Fatalf("codes = %d/%d, want 201/200", first.Code, second.Code)
	}
	if n := len(srv.Items()); n != 1 {
		t.Fatalf("stored %d items, want 1", n)
	}
	item, err := backend.NormalizeOne(first.Body.Bytes())
	if err != nil {
		t.Fatalf("NormalizeOne: %v", err)
	}
	if item.Status != content.StatusPending {
		t.Fatalf("Status = %q, want pending regardless of the payload", item.Status)
	}
}

func TestCreateRefusesUnknownField(t *testing.T) {
	srv := New(Options{UnknownFields: []string{"featuredImage"}})
	body := `{"title":"Fair","body":"b","category":"Culture","status":"pending","featuredImage":"https://cdn.example.org/f.jpg"}`
	rec := do(t, srv.Handler(), http.MethodPost, "/api/news", body, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "schema cache") || !strings.Contains(rec.Body.String(), "featuredImage") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestTransitions(t *testing.T) {
	srv := New(Options{})
	item := srv.Add(content.Item{Title: "t", Category: "c", AuthorID: "u-1"})

	reject := `{"status":"rejected"}`
	rec := do(t, srv.Handler(), http.MethodPatch, "/api/v2/news/"+item.ID+"/status", reject, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reject status = %d, body %s", rec.Code, rec.Body.String())
	}
	got, err := backend.NormalizeOne(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("NormalizeOne: %v", err)
	}
	if got.Status != content.StatusRejected || got.RejectionReason != "No reason provided" {
		t.Fatalf("item = %+v", got)
	}

	if rec := do(t, srv.Handler(), http.MethodPost, "/api/admin/news/"+item.ID+"/review", `{"status":"approved"}`, nil); rec.Code != http.StatusConflict {
		t.Fatalf("approve rejected = %d, want 409", rec.Code)
	}
	if rec := do(t, srv.Handler(), http.MethodPatch, "/api/news/"+item.ID+"/resubmit", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("resubmit = %d, want 200", rec.Code)
	}
	if rec := do(t, srv.Handler(), http.MethodPost, "/api/admin/news/"+item.ID+"/review", `{"status":"approved"}`, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("approve = %d, want 204", rec.Code)
	}
	if rec := do(t, srv.Handler(), http.MethodPut, "/api/v2/news/"+item.ID, `{"title":"x"}`, nil); rec.Code != http.StatusConflict {
		t.Fatalf("edit approved = %d, want 409", rec.Code)
	}
	if rec := do(t, srv.Handler(), http.MethodGet, "/api/news/missing-id", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("get missing = %d, want 404", rec.Code)
	}
}

func TestLegacyUpdateOnlyAcknowledges(t *testing.T) {
	srv := New(Options{})
	item := srv.Add(content.Item{Title: "old", Category: "c"})
	payload, _ := json.Marshal(map[string]string{"title": "new"})
	rec := do(t, srv.Handler(), http.MethodPatch, "/api/news/"+item.ID, string(payload), nil)
	if rec.Code != http.StatusOK || !bytes.Contains(rec.Body.Bytes(), []byte(`"success":true`)) {
		t.Fatalf("update = %d %s", rec.Code, rec.Body.String())
	}
	if got := srv.Items()[0].Title; got != "new" {
		t.Fatalf("Title = %q, want %q", got, "new")
	}
}
