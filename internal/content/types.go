package content

import (
	"strings"
	"time"
)

const legacyTimestampLayout = "2006-01-02 15:04:05"

// Status is the editorial state of a content item.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is one of the three editorial states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// ParseStatus maps the many spellings backends use onto a Status. Unknown or
// empty values are treated as pending, which is where every item starts.
func ParseStatus(value string) Status {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "approved", "approve", "published", "accepted", "live":
		return StatusApproved
	case "rejected", "reject", "declined", "denied":
		return StatusRejected
	default:
		return StatusPending
	}
}

// Type distinguishes regular posts from video posts.
type Type string

const (
	TypeStandard Type = "standard"
	TypeVideo    Type = "video"
)

// ParseType maps backend spellings onto a Type, defaulting to standard.
func ParseType(value string) Type {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "video", "video_news", "videonews", "youtube":
		return TypeVideo
	default:
		return TypeStandard
	}
}

// Region locates a post geographically.
type Region struct {
	State    string `json:"state"`
	District string `json:"district"`
}

// IsZero reports whether no region component is set.
func (r Region) IsZero() bool {
	return strings.TrimSpace(r.State) == "" && strings.TrimSpace(r.District) == ""
}

// Media references the single visual asset of a post.
type Media struct {
	FeaturedImage string `json:"featuredImage,omitempty"`
	VideoSource   string `json:"videoSource,omitempty"`
}

// IsZero reports whether neither reference is set.
func (m Media) IsZero() bool {
	return m.FeaturedImage == "" && m.VideoSource == ""
}

// Item is the canonical content item every response shape is normalized into.
type Item struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Body            string    `json:"body"`
	Category        string    `json:"category"`
	Region          Region    `json:"region"`
	ContentType     Type      `json:"contentType"`
	Status          Status    `json:"status"`
	RejectionReason string    `json:"rejectionReason,omitempty"`
	Media           Media     `json:"media"`
	AuthorID        string    `json:"authorId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`

	// Placeholder marks synthesized, non-authoritative items.
	Placeholder bool `json:"placeholder,omitempty"`
}

// Upload carries a media binary attached to a draft.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Draft is what a submitter provides when creating an item.
type Draft struct {
	Title       string
	Body        string
	Category    string
	Region      Region
	ContentType Type
	Media       Media
	Upload      *Upload
	AuthorID    string
}

// Patch holds optional content-field edits. Nil fields are left untouched.
type Patch struct {
	Title       *string
	Body        *string
	Category    *string
	Region      *Region
	ContentType *Type
	Media       *Media
	Upload      *Upload
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Body == nil && p.Category == nil && p.Region == nil &&
		p.ContentType == nil && p.Media == nil && p.Upload == nil
}

// Apply returns a copy of item with the patch applied. Status, reason and
// identity are never touched.
func (p Patch) Apply(item Item) Item {
	out := item
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Body != nil {
		out.Body = *p.Body
	}
	if p.Category != nil {
		out.Category = *p.Category
	}
	if p.Region != nil {
		out.Region = *p.Region
	}
	if p.ContentType != nil {
		out.ContentType = *p.ContentType
	}
	if p.Media != nil {
		out.Media = *p.Media
	}
	return out
}

// DraftFrom rebuilds the draft that would produce item's content fields.
func DraftFrom(item Item) Draft {
	return Draft{
		Title:       item.Title,
		Body:        item.Body,
		Category:    item.Category,
		Region:      item.Region,
		ContentType: item.ContentType,
		Media:       item.Media,
		AuthorID:    item.AuthorID,
	}
}

// Clone returns a copy of items that shares no backing array with the input.
func Clone(items []Item) []Item {
	if len(items) == 0 {
		return nil
	}
	dup := make([]Item, len(items))
	copy(dup, items)
	return dup
}

// IndexOf returns the position of the item with id, or -1.
func IndexOf(items []Item, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

// ParseTime accepts RFC 3339, the legacy "YYYY-MM-DD hh:mm:ss" layout, bare
// dates and unix seconds or milliseconds. It returns the zero time otherwise.
func ParseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	for _, layout := range []string{legacyTimestampLayout, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t
		}
	}
	if n, ok := parseUnix(value); ok {
		if n > 1e12 {
			return time.UnixMilli(n).UTC()
		}
		return time.Unix(n, 0).UTC()
	}
	return time.Time{}
}

func parseUnix(value string) (int64, bool) {
	var n int64
	for _, r := range value {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int64(r-'0')
	}
	return n, n > 0
}
