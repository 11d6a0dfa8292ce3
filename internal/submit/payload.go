package submit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"sort"
	"strings"
	"unicode"

	"github.com/five82/newsdesk/internal/content"
)

// uploadField is the multipart part name carrying the media binary.
const uploadField = "media"

// field is one payload key and the spellings a backend may use for it in an
// error message.
type field struct {
	key     string
	aliases []string
	media   bool
}

var requiredFields = []string{"title", "body", "category", "status"}

var optionalFields = []field{
	{key: "contentType", aliases: []string{"content_type", "type"}},
	{key: "state", aliases: []string{"region"}},
	{key: "district", aliases: []string{"region"}},
	{key: "featuredImage", aliases: []string{"featured_image", "image"}, media: true},
	{key: "videoSource", aliases: []string{"video_source", "video"}, media: true},
	{key: "authorId", aliases: []string{"author_id", "author"}},
	{key: uploadField, aliases: []string{"file", "upload"}, media: true},
}

// payload is the set of fields sent on one rung.
type payload struct {
	fields map[string]string
	upload *content.Upload
}

func fullPayload(d content.Draft, status content.Status) payload {
	p := payload{fields: map[string]string{
		"title":    d.Title,
		"body":     d.Body,
		"category": d.Category,
		"status":   string(status),
	}}
	set := func(k, v string) {
		if strings.TrimSpace(v) != "" {
			p.fields[k] = v
		}
	}
	contentType := d.ContentType
	if contentType == "" {
		contentType = content.TypeStandard
	}
	set("contentType", string(contentType))
	set("state", d.Region.State)
	set("district", d.Region.District)
	set("featuredImage", d.Media.FeaturedImage)
	set("videoSource", d.Media.VideoSource)
	set("authorId", d.AuthorID)
	if d.Upload != nil && len(d.Upload.Data) > 0 {
		p.upload = d.Upload
	}
	return p
}

// without returns a copy of p lacking the named optional fields.
func (p payload) without(keys []string) payload {
	out := payload{fields: make(map[string]string, len(p.fields)), upload: p.upload}
	drop := make(map[string]bool, len(keys))
	for _, k := range keys {
		drop[k] = true
	}
	for k, v := range p.fields {
		if !drop[k] {
			out.fields[k] = v
		}
	}
	if drop[uploadField] {
		out.upload = nil
	}
	return out
}

// minimal keeps required fields only.
func (p payload) minimal() payload {
	out := payload{fields: make(map[string]string, len(requiredFields))}
	for _, k := range requiredFields {
		if v, ok := p.fields[k]; ok {
			out.fields[k] = v
		}
	}
	return out
}

// optionalPresent lists the optional keys this payload carries.
func (p payload) optionalPresent() []string {
	var keys []string
	for _, f := range optionalFields {
		if f.key == uploadField {
			if p.upload != nil {
				keys = append(keys, f.key)
			}
			continue
		}
		if _, ok := p.fields[f.key]; ok {
			keys = append(keys, f.key)
		}
	}
	return keys
}

func (p payload) signature() string {
	keys := make([]string, 0, len(p.fields)+1)
	for k := range p.fields {
		keys = append(keys, k)
	}
	if p.upload != nil {
		keys = append(keys, uploadField)
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

// encode renders the payload as JSON, or as multipart/form-data when it
// carries an upload.
func (p payload) encode() ([]byte, string, error) {
	if p.upload == nil {
		body, err := json.Marshal(p.fields)
		if err != nil {
			return nil, "", fmt.Errorf("encode payload: %w", err)
		}
		return body, "application/json", nil
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	keys := make([]string, 0, len(p.fields))
	for k := range p.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.WriteField(k, p.fields[k]); err != nil {
			return nil, "", fmt.Errorf("encode field %s: %w", k, err)
		}
	}
	header := make(textproto.MIMEHeader)
	filename := p.upload.Filename
	if filename == "" {
		filename = "upload.bin"
	}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, uploadField, filename))
	ct := p.upload.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	header.Set("Content-Type", ct)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("encode upload: %w", err)
	}
	if _, err := part.Write(p.upload.Data); err != nil {
		return nil, "", fmt.Errorf("encode upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("encode payload: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// namedFields returns the optional keys an error message mentions. Matching is
// by whole word, case-insensitive, over every alias.
func namedFields(message string) []string {
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	}) {
		words[w] = true
	}
	var keys []string
	for _, f := range optionalFields {
		for _, name := range append([]string{f.key}, f.aliases...) {
			if words[strings.ToLower(name)] {
				keys = append(keys, f.key)
				break
			}
		}
	}
	return keys
}

// droppedMedia reports which media the draft had that p no longer carries.
func droppedMedia(full, p payload) []string {
	var dropped []string
	for _, f := range optionalFields {
		if !f.media {
			continue
		}
		had := containsKey(full.optionalPresent(), f.key)
		kept := containsKey(p.optionalPresent(), f.key)
		if had && !kept {
			dropped = append(dropped, f.key)
		}
	}
	return dropped
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

// itemFrom builds the item a payload describes, for backends that confirm a
// write without echoing it.
func itemFrom(id string, p payload) content.Item {
	return content.Item{
		ID:          id,
		Title:       p.fields["title"],
		Body:        p.fields["body"],
		Category:    p.fields["category"],
		Status:      content.ParseStatus(p.fields["status"]),
		ContentType: content.ParseType(p.fields["contentType"]),
		Region:      content.Region{State: p.fields["state"], District: p.fields["district"]},
		Media:       content.Media{FeaturedImage: p.fields["featuredImage"], VideoSource: p.fields["videoSource"]},
		AuthorID:    p.fields["authorId"],
	}
}
