package mirror

import (
	"fmt"
	"time"

	"github.com/five82/newsdesk/internal/content"
)

// PlaceholderCount is how many items Synthesize produces per query.
const PlaceholderCount = 3

// Synthesize builds the last-resort result for a read when neither the backend
// nor the mirror can answer. The items are deterministic for a given status
// and time, and every one is flagged as a placeholder.
func Synthesize(status content.Status, now time.Time) []content.Item {
	if !status.Valid() {
		status = content.StatusPending
	}
	items := make([]content.Item, 0, PlaceholderCount)
	for i := 1; i <= PlaceholderCount; i++ {
		at := now.Add(-time.Duration(i) * time.Hour).UTC().Truncate(time.Second)
		item := content.Item{
			ID:          fmt.Sprintf("offline-%s-%d", status, i),
			Title:       fmt.Sprintf("Offline placeholder %d", i),
			Body:        "The content service could not be reached. This entry is not real and cannot be edited.",
			Category:    "Offline",
			ContentType: content.TypeStandard,
			Status:      status,
			CreatedAt:   at,
			UpdatedAt:   at,
			Placeholder: true,
		}
		if status == content.StatusRejected {
			item.RejectionReason = "Unavailable while offline."
		}
		items = append(items, item)
	}
	return items
}

// IsPlaceholder reports whether any item in items was synthesized.
func IsPlaceholder(items []content.Item) bool {
	for _, it := range items {
		if it.Placeholder {
			return true
		}
	}
	return false
}
