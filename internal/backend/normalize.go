package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/five82/newsdesk/internal/content"
)

// Field fallbacks, most specific first. Backends have renamed most of these at
// least once.
var (
	idKeys       = []string{"id", "_id", "newsId", "news_id", "uuid"}
	titleKeys    = []string{"title", "headline", "heading"}
	bodyKeys     = []string{"body", "content", "description", "html", "text"}
	categoryKeys = []string{"category", "categoryName", "category_name", "section"}
	stateKeys    = []string{"state", "stateName", "state_name"}
	districtKeys = []string{"district", "districtName", "district_name"}
	typeKeys     = []string{"contentType", "content_type", "newsType", "news_type", "type", "mediaType"}
	statusKeys   = []string{"status", "approvalStatus", "approval_status", "reviewStatus", "review_status"}
	reasonKeys   = []string{"rejectionReason", "rejection_reason", "rejectReason", "reject_reason", "reason", "remarks"}
	imageKeys    = []string{"featuredImage", "featured_image", "image", "imageUrl", "image_url", "thumbnail", "coverImage", "cover_image"}
	videoKeys    = []string{"videoSource", "video_source", "videoUrl", "video_url", "video", "youtubeUrl", "youtube_url"}
	authorKeys   = []string{"authorId", "author_id", "submittedBy", "submitted_by", "createdBy", "created_by", "userId", "user_id"}
	createdKeys  = []string{"createdAt", "created_at", "createdOn", "created_on", "publishedAt", "date"}
	updatedKeys  = []string{"updatedAt", "updated_at", "modifiedAt", "modified_at"}
	nestedKeys   = []string{"name", "title", "slug", "_id", "id"}
)

type record map[string]json.RawMessage

// Normalize maps any supported envelope onto a list of items. The first
// matching rule wins:
//
//  1. the body is a list;
//  2. the body is an object whose "data" field is a list;
//  3. the body is an object that looks like a single item, whatever list
//     fields (tags, images) it carries;
//  4. the body is an object with exactly one field holding a list of
//     item-shaped objects;
//  5. anything else is an empty list.
//
// Only a body that is not JSON at all is an error.
func Normalize(body []byte) ([]content.Item, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("%w: body is not json", ErrMalformedResponse)
	}
	raws := extractRecords(trimmed)
	items := make([]content.Item, 0, len(raws))
	for _, raw := range raws {
		item, ok := mapRecord(raw)
		if !ok {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// NormalizeOne extracts the single item a write or direct fetch returns. It
// also unwraps {"data": {...}}, {"item": {...}} and {"news": {...}}.
func NormalizeOne(body []byte) (content.Item, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return content.Item{}, fmt.Errorf("%w: empty body", ErrMalformedResponse)
	}
	if !json.Valid(trimmed) {
		return content.Item{}, fmt.Errorf("%w: body is not json", ErrMalformedResponse)
	}
	if trimmed[0] == '{' {
		var obj record
		if err := json.Unmarshal(trimmed, &obj); err == nil {
			for _, key := range []string{"data", "item", "news"} {
				if inner, ok := obj[key]; ok && kindOf(inner) == '{' {
					return NormalizeOne(inner)
				}
			}
			if obj.looksLikeItem() {
				if item, ok := mapRecord(trimmed); ok {
					return item, nil
				}
			}
		}
	}
	items, err := Normalize(trimmed)
	if err != nil {
		return content.Item{}, err
	}
	if len(items) == 0 {
		return content.Item{}, fmt.Errorf("%w: no item in response", ErrMalformedResponse)
	}
	return items[0], nil
}

func extractRecords(body []byte) []json.RawMessage {
	switch kindOf(body) {
	case '[':
		return decodeList(body)
	case '{':
	default:
		return nil
	}

	var obj record
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil
	}
	if data, ok := obj["data"]; ok && kindOf(data) == '[' {
		return decodeList(data)
	}

	if obj.looksLikeItem() {
		return []json.RawMessage{json.RawMessage(body)}
	}

	var only []json.RawMessage
	lists := 0
	for _, value := range obj {
		if kindOf(value) != '[' {
			continue
		}
		list := decodeList(value)
		if !itemList(list) {
			continue
		}
		lists++
		only = list
	}
	if lists == 1 {
		return only
	}
	return nil
}

// itemList reports whether list holds at least one object with an id or a
// title. Lists of strings or bare numbers are attributes, not envelopes.
func itemList(list []json.RawMessage) bool {
	for _, raw := range list {
		if kindOf(raw) != '{' {
			continue
		}
		var obj record
		if err := json.Unmarshal(raw, &obj); err == nil && obj.looksLikeItem() {
			return true
		}
	}
	return false
}

func mapRecord(raw json.RawMessage) (content.Item, bool) {
	if kindOf(raw) != '{' {
		return content.Item{}, false
	}
	var obj record
	if err := json.Unmarshal(raw, &obj); err != nil {
		return content.Item{}, false
	}

	item := content.Item{
		ID:       obj.str(idKeys...),
		Title:    obj.str(titleKeys...),
		Body:     obj.str(bodyKeys...),
		Category: obj.str(categoryKeys...),
		AuthorID: obj.str(authorKeys...),
	}
	if item.AuthorID == "" {
		if author := obj.object("author", "user", "submitter"); author != nil {
			item.AuthorID = author.str("id", "_id", "userId", "user_id")
		} else {
			item.AuthorID = scalar(obj["author"])
		}
	}
	if item.ID == "" && item.Title == "" {
		return content.Item{}, false
	}

	if region := obj.object("region", "location"); region != nil {
		item.Region = content.Region{State: region.str(stateKeys...), District: region.str(districtKeys...)}
	} else {
		item.Region = content.Region{State: obj.str(stateKeys...), District: obj.str(districtKeys...)}
	}

	item.Status = content.ParseStatus(obj.str(statusKeys...))
	if !obj.has(statusKeys...) {
		switch {
		case obj.boolean("isApproved", "is_approved", "approved"):
			item.Status = content.StatusApproved
		case obj.boolean("isRejected", "is_rejected", "rejected"):
			item.Status = content.StatusRejected
		}
	}
	if item.Status == content.StatusRejected {
		item.RejectionReason = obj.str(reasonKeys...)
	}

	media := content.Media{FeaturedImage: obj.str(imageKeys...), VideoSource: obj.str(videoKeys...)}
	if nested := obj.object("media"); nested != nil {
		if v := nested.str(imageKeys...); v != "" {
			media.FeaturedImage = v
		}
		if v := nested.str(videoKeys...); v != "" {
			media.VideoSource = v
		}
	}
	if obj.has(typeKeys...) {
		item.ContentType = content.ParseType(obj.str(typeKeys...))
	} else if media.VideoSource != "" {
		item.ContentType = content.TypeVideo
	} else {
		item.ContentType = content.TypeStandard
	}
	// Exactly one media reference survives, chosen by type.
	if item.ContentType == content.TypeVideo {
		media.FeaturedImage = ""
	} else {
		media.VideoSource = ""
	}
	item.Media = media

	item.CreatedAt = content.ParseTime(obj.str(createdKeys...))
	item.UpdatedAt = content.ParseTime(obj.str(updatedKeys...))
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = item.CreatedAt
	}
	return item, true
}

func (r record) looksLikeItem() bool {
	return r.has(idKeys...) || r.has(titleKeys...)
}

func (r record) has(keys ...string) bool {
	for _, k := range keys {
		if v, ok := r[k]; ok && kindOf(v) != 'n' {
			return true
		}
	}
	return false
}

// str returns the first non-empty string form among keys. Numbers are kept
// verbatim and objects contribute their name-like field.
func (r record) str(keys ...string) string {
	for _, k := range keys {
		v, ok := r[k]
		if !ok {
			continue
		}
		if s := scalar(v); s != "" {
			return s
		}
		if kindOf(v) == '{' {
			var nested record
			if err := json.Unmarshal(v, &nested); err == nil {
				for _, nk := range nestedKeys {
					if s := scalar(nested[nk]); s != "" {
						return s
					}
				}
			}
		}
	}
	return ""
}

func (r record) object(keys ...string) record {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || kindOf(v) != '{' {
			continue
		}
		var nested record
		if err := json.Unmarshal(v, &nested); err == nil {
			return nested
		}
	}
	return nil
}

func (r record) boolean(keys ...string) bool {
	for _, k := range keys {
		v, ok := r[k]
		if !ok {
			continue
		}
		var b bool
		if err := json.Unmarshal(v, &b); err == nil {
			return b
		}
	}
	return false
}

func scalar(raw json.RawMessage) string {
	switch kindOf(raw) {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return strings.TrimSpace(s)
		}
	case '0':
		var n json.Number
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&n); err == nil {
			return n.String()
		}
	}
	return ""
}

func decodeList(raw json.RawMessage) []json.RawMessage {
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}
	return list
}

// kindOf classifies a JSON value by its first byte: '{', '[', '"', '0' for
// numbers, 't'/'f' for booleans, 'n' for null and 0 for empty input.
func kindOf(raw []byte) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	switch c := trimmed[0]; {
	case c == '-' || (c >= '0' && c <= '9'):
		return '0'
	default:
		return c
	}
}
