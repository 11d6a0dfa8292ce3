package devserver

import (
	"encoding/json"
	"net/http"

	"github.com/five82/newsdesk/internal/content"
)

const legacyLayout = "2006-01-02 15:04:05"

// encodeRecord renders item in the field naming of one route family.
func encodeRecord(family string, item content.Item) map[string]any {
	switch family {
	case FamilyLegacy:
		rec := map[string]any{
			"_id":            item.ID,
			"headline":       item.Title,
			"content":        item.Body,
			"categoryName":   item.Category,
			"region":         map[string]any{"state": item.Region.State, "district": item.Region.District},
			"newsType":       string(item.ContentType),
			"approvalStatus": string(item.Status),
			"submittedBy":    item.AuthorID,
			"created_at":     item.CreatedAt.UTC().Format(legacyLayout),
			"updated_at":     item.UpdatedAt.UTC().Format(legacyLayout),
		}
		if item.Status == content.StatusRejected {
			rec["reason"] = item.RejectionReason
		}
		if item.Media.FeaturedImage != "" {
			rec["image"] = item.Media.FeaturedImage
		}
		if item.Media.VideoSource != "" {
			rec["videoUrl"] = item.Media.VideoSource
		}
		return rec
	case FamilyAdmin:
		rec := map[string]any{
			"newsId":       item.ID,
			"title":        item.Title,
			"description":  item.Body,
			"category":     map[string]any{"name": item.Category},
			"stateName":    item.Region.State,
			"districtName": item.Region.District,
			"type":         string(item.ContentType),
			"isApproved":   item.Status == content.StatusApproved,
			"isRejected":   item.Status == content.StatusRejected,
			"author":       map[string]any{"id": item.AuthorID},
			"createdOn":    item.CreatedAt.UnixMilli(),
		}
		if item.Status == content.StatusRejected {
			rec["remarks"] = item.RejectionReason
		}
		if item.Media.FeaturedImage != "" {
			rec["thumbnail"] = item.Media.FeaturedImage
		}
		if item.Media.VideoSource != "" {
			rec["youtubeUrl"] = item.Media.VideoSource
		}
		return rec
	default:
		rec := map[string]any{
			"id":          item.ID,
			"title":       item.Title,
			"body":        item.Body,
			"category":    item.Category,
			"state":       item.Region.State,
			"district":    item.Region.District,
			"contentType": string(item.ContentType),
			"status":      string(item.Status),
			"authorId":    item.AuthorID,
			"createdAt":   item.CreatedAt.UTC(),
			"updatedAt":   item.UpdatedAt.UTC(),
		}
		if item.Status == content.StatusRejected {
			rec["rejectionReason"] = item.RejectionReason
		}
		if item.Media.FeaturedImage != "" {
			rec["featuredImage"] = item.Media.FeaturedImage
		}
		if item.Media.VideoSource != "" {
			rec["videoSource"] = item.Media.VideoSource
		}
		return rec
	}
}

func writeItem(w http.ResponseWriter, status int, family string, item content.Item) {
	rec := encodeRecord(family, item)
	if family == FamilyV2 {
		writeJSON(w, status, map[string]any{"data": rec})
		return
	}
	writeJSON(w, status, rec)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
