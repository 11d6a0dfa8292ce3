// Package feedimport turns RSS and Atom entries into drafts and submits them
// through the desk, one entry at a time.
package feedimport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/five82/newsdesk/internal/backend"
	"github.com/five82/newsdesk/internal/content"
	"github.com/five82/newsdesk/internal/credential"
	"github.com/five82/newsdesk/internal/submit"
)

// DefaultCategory is used when an entry carries no category of its own.
const DefaultCategory = "general"

// Creator submits a draft. *desk.Desk satisfies it.
type Creator interface {
	CreateItem(ctx context.Context, draft content.Draft) (submit.Result, error)
}

// Options tune how entries become drafts.
type Options struct {
	// Category overrides every entry's own category when set.
	Category string
	Region   content.Region
	// Limit caps the number of entries submitted; zero means all.
	Limit  int
	Logger *log.Logger
}

// Outcome is what happened to one feed entry.
type Outcome struct {
	GUID     string
	Title    string
	ItemID   string
	Rung     submit.Rung
	Warnings []string
	Err      error
	Skipped  bool
}

// Report summarizes one import run.
type Report struct {
	Feed     string
	Outcomes []Outcome
}

// Created counts entries that produced an item.
func (r Report) Created() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err == nil && !o.Skipped {
			n++
		}
	}
	return n
}

// Failed counts entries whose submission returned an error.
func (r Report) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// Importer parses feeds and submits their entries.
type Importer struct {
	parser  *gofeed.Parser
	creator Creator
	opts    Options
	logger  *log.Logger
}

// New builds an Importer around creator.
func New(creator Creator, opts Options) *Importer {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Importer{
		parser:  gofeed.NewParser(),
		creator: creator,
		opts:    opts,
		logger:  logger,
	}
}

// ImportURL fetches and imports the feed at feedURL.
func (im *Importer) ImportURL(ctx context.Context, feedURL string) (Report, error) {
	feed, err := im.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return Report{Feed: feedURL}, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}
	return im.Import(ctx, feed)
}

// ImportString imports a feed document held in memory.
func (im *Importer) ImportString(ctx context.Context, body string) (Report, error) {
	feed, err := im.parser.ParseString(body)
	if err != nil {
		return Report{}, fmt.Errorf("parse feed: %w", err)
	}
	return im.Import(ctx, feed)
}

// Import submits each entry of an already parsed feed. Entries that fail
// validation or submission are recorded and the run continues; a missing or
// refused credential stops it, since every later entry would fail the same way.
func (im *Importer) Import(ctx context.Context, feed *gofeed.Feed) (Report, error) {
	report := Report{Feed: strings.TrimSpace(feed.Title)}
	seen := make(map[string]bool)
	submitted := 0

	for _, entry := range feed.Items {
		if entry == nil {
			continue
		}
		if im.opts.Limit > 0 && submitted >= im.opts.Limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		outcome := Outcome{GUID: guidOf(entry), Title: strings.TrimSpace(entry.Title)}
		if outcome.GUID != "" && seen[outcome.GUID] {
			outcome.Skipped = true
			report.Outcomes = append(report.Outcomes, outcome)
			continue
		}
		seen[outcome.GUID] = true

		draft := Draft(entry, im.opts)
		if err := content.ValidateDraft(draft); err != nil {
			outcome.Err = err
			report.Outcomes = append(report.Outcomes, outcome)
			im.logger.Printf("skip %q: %v", outcome.Title, err)
			continue
		}

		submitted++
		res, err := im.creator.CreateItem(ctx, draft)
		if err != nil {
			outcome.Err = err
			report.Outcomes = append(report.Outcomes, outcome)
			im.logger.Printf("import %q failed: %v", outcome.Title, err)
			if fatal(err) {
				return report, err
			}
			continue
		}
		outcome.ItemID = res.Item.ID
		outcome.Rung = res.Rung
		outcome.Warnings = res.Warnings
		report.Outcomes = append(report.Outcomes, outcome)
		im.logger.Printf("imported %q as %s (%s payload)", outcome.Title, res.Item.ID, res.Rung)
	}
	return report, nil
}

// Draft maps one feed entry onto a draft. Entries whose link or enclosure
// points at a video become video posts.
func Draft(entry *gofeed.Item, opts Options) content.Draft {
	draft := content.Draft{
		Title:       strings.TrimSpace(entry.Title),
		Body:        strings.TrimSpace(entry.Content),
		Category:    strings.TrimSpace(opts.Category),
		Region:      opts.Region,
		ContentType: content.TypeStandard,
	}
	if draft.Body == "" {
		draft.Body = strings.TrimSpace(entry.Description)
	}
	if draft.Category == "" {
		for _, c := range entry.Categories {
			if c = strings.TrimSpace(c); c != "" {
				draft.Category = c
				break
			}
		}
	}
	if draft.Category == "" {
		draft.Category = DefaultCategory
	}
	if author := entry.Author; author != nil {
		draft.AuthorID = strings.TrimSpace(author.Email)
	}

	if video := videoOf(entry); video != "" {
		draft.ContentType = content.TypeVideo
		draft.Media.VideoSource = video
		return draft
	}
	draft.Media.FeaturedImage = imageOf(entry)
	return draft
}

func guidOf(entry *gofeed.Item) string {
	if guid := strings.TrimSpace(entry.GUID); guid != "" {
		return guid
	}
	return strings.TrimSpace(entry.Link)
}

func videoOf(entry *gofeed.Item) string {
	for _, enc := range entry.Enclosures {
		if enc != nil && strings.HasPrefix(strings.ToLower(enc.Type), "video/") && enc.URL != "" {
			return enc.URL
		}
	}
	link := strings.ToLower(entry.Link)
	if strings.Contains(link, "youtube.com/watch") || strings.Contains(link, "youtu.be/") || strings.Contains(link, "vimeo.com/") {
		return entry.Link
	}
	return ""
}

func imageOf(entry *gofeed.Item) string {
	if entry.Image != nil && entry.Image.URL != "" {
		return entry.Image.URL
	}
	for _, enc := range entry.Enclosures {
		if enc != nil && strings.HasPrefix(strings.ToLower(enc.Type), "image/") && enc.URL != "" {
			return enc.URL
		}
	}
	return ""
}

func fatal(err error) bool {
	return errors.Is(err, backend.ErrUnauthorized) ||
		errors.Is(err, credential.ErrNotFound) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
