package feedimport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/mmcdole/gofeed"

	"github.com/five82/newsdesk/internal/backend"
	"github.com/five82/newsdesk/internal/content"
	"github.com/five82/newsdesk/internal/submit"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>District Wire</title>
    <item>
      <title>Bridge reopens</title>
      <guid>wire-1</guid>
      <description>Traffic resumes on the river bridge.</description>
      <category>Infrastructure</category>
      <enclosure url="https://cdn.example.org/bridge.jpg" type="image/jpeg" length="1"/>
    </item>
    <item>
      <title>Council meeting</title>
      <guid>wire-2</guid>
      <link>https://www.youtube.com/watch?v=abc123</link>
      <description>Full recording.</description>
    </item>
    <item>
      <title>Bridge reopens</title>
      <guid>wire-1</guid>
    </item>
    <item>
      <title>   </title>
      <guid>wire-3</guid>
    </item>
  </channel>
</rss>`

type fakeCreator struct {
	drafts []content.Draft
	fail   map[string]error
}

func (f *fakeCreator) CreateItem(_ context.Context, draft content.Draft) (submit.Result, error) {
	f.drafts = append(f.drafts, draft)
	if err := f.fail[draft.Title]; err != nil {
		return submit.Result{}, err
	}
	return submit.Result{
		Item: content.Item{ID: fmt.Sprintf("n-%d", len(f.drafts)), Title: draft.Title},
		Rung: submit.RungFull,
	}, nil
}

func TestImportString(t *testing.T) {
	creator := &fakeCreator{}
	report, err := New(creator, Options{}).ImportString(context.Background(), sampleFeed)
	if err != nil {
		t.Fatalf("ImportString: %v", err)
	}
	if report.Feed != "District Wire" {
		t.Fatalf("Feed = %q, want %q", report.Feed, "District Wire")
	}
	if len(report.Outcomes) != 4 {
		t.Fatalf("outcomes = %d, want 4", len(report.Outcomes))
	}
	if report.Created() != 2 || report.Failed() != 1 {
		t.Fatalf("created/failed = %d/%d, want 2/1", report.Created(), report.Failed())
	}
	if !report.Outcomes[2].Skipped {
		t.Fatalf("duplicate guid was not skipped: %+v", report.Outcomes[2])
	}
	if !errors.Is(report.Outcomes[3].Err, content.ErrValidation) {
		t.Fatalf("blank title err = %v, want validation error", report.Outcomes[3].Err)
	}
	if len(creator.drafts) != 2 {
		t.Fatalf("submitted %d drafts, want 2", len(creator.drafts))
	}

	first := creator.drafts[0]
	if first.Category != "Infrastructure" || first.Media.FeaturedImage != "https://cdn.example.org/bridge.jpg" {
		t.Fatalf("first draft = %+v", first)
	}
	second := creator.drafts[1]
	if second.ContentType != content.TypeVideo || second.Media.VideoSource != "https://www.youtube.com/watch?v=abc123" {
		t.Fatalf("second draft = %+v, want video post", second)
	}
	if second.Category != DefaultCategory {
		t.Fatalf("Category = %q, want %q", second.Category, DefaultCategory)
	}
}

func TestImportStopsOnUnauthorized(t *testing.T) {
	creator := &fakeCreator{fail: map[string]error{
		"Bridge reopens": &backend.UnauthorizedError{Endpoint: "v2-create", Status: 401},
	}}
	report, err := New(creator, Options{}).ImportString(context.Background(), sampleFeed)
	if !errors.Is(err, backend.ErrUnauthorized) {
		t.Fatalf("err = %v, want unauthorized", err)
	}
	if len(creator.drafts) != 1 || len(report.Outcomes) != 1 {
		t.Fatalf("drafts/outcomes = %d/%d, want 1/1", len(creator.drafts), len(report.Outcomes))
	}
}

func TestImportContinuesPastRejectedEntry(t *testing.T) {
	creator := &fakeCreator{fail: map[string]error{
		"Bridge reopens": errors.New("backend said no"),
	}}
	report, err := New(creator, Options{Category: "Local", Limit: 5}).ImportString(context.Background(), sampleFeed)
	if err != nil {
		t.Fatalf("ImportString: %v", err)
	}
	if report.Created() != 1 {
		t.Fatalf("Created = %d, want 1", report.Created())
	}
	for _, d := range creator.drafts {
		if d.Category != "Local" {
			t.Fatalf("Category = %q, want override %q", d.Category, "Local")
		}
	}
}

func TestImportLimit(t *testing.T) {
	creator := &fakeCreator{}
	if _, err := New(creator, Options{Limit: 1}).ImportString(context.Background(), sampleFeed); err != nil {
		t.Fatalf("ImportString: %v", err)
	}
	if len(creator.drafts) != 1 {
		t.Fatalf("submitted %d drafts, want 1", len(creator.drafts))
	}
}

func TestDraftPrefersContentOverDescription(t *testing.T) {
	entry := &gofeed.Item{
		Title:       " Flood warning ",
		Content:     "<p>Full text</p>",
		Description: "Summary",
		Author:      &gofeed.Person{Name: "Desk", Email: "reporter-7"},
		Image:       &gofeed.Image{URL: "https://cdn.example.org/flood.png"},
	}
	draft := Draft(entry, Options{Region: content.Region{State: "Kerala"}})
	if draft.Title != "Flood warning" || draft.Body != "<p>Full text</p>" {
		t.Fatalf("draft = %+v", draft)
	}
	if draft.AuthorID != "reporter-7" || draft.Region.State != "Kerala" {
		t.Fatalf("draft = %+v", draft)
	}
	if draft.Media.FeaturedImage != "https://cdn.example.org/flood.png" {
		t.Fatalf("FeaturedImage = %q", draft.Media.FeaturedImage)
	}
}

func TestImportStringRejectsGarbage(t *testing.T) {
	_, err := New(&fakeCreator{}, Options{}).ImportString(context.Background(), "not a feed")
	if err == nil || !strings.Contains(err.Error(), "parse feed") {
		t.Fatalf("err = %v, want parse feed error", err)
	}
}
