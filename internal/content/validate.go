package content

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidation marks drafts rejected locally, before any network call.
var ErrValidation = errors.New("content: validation failed")

// ValidationError lists every problem found in a draft.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid draft: %s", strings.Join(e.Problems, "; "))
}

// Is lets callers match with errors.Is(err, ErrValidation).
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ValidateDraft checks the fields the backend requires and the media
// invariant: a standard post may carry a featured image or nothing, a video post
// must carry a video source, and never both.
func ValidateDraft(d Draft) error {
	var problems []string
	if strings.TrimSpace(d.Title) == "" {
		problems = append(problems, "title is required")
	}
	if strings.TrimSpace(d.Category) == "" {
		problems = append(problems, "category is required")
	}
	problems = append(problems, mediaProblems(d.ContentType, d.Media, d.Upload)...)
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// ValidatePatch checks a patch against the item it will be applied to.
func ValidatePatch(item Item, p Patch) error {
	if p.IsEmpty() {
		return &ValidationError{Problems: []string{"patch changes nothing"}}
	}
	patched := p.Apply(item)
	draft := DraftFrom(patched)
	draft.Upload = p.Upload
	return ValidateDraft(draft)
}

func mediaProblems(kind Type, media Media, upload *Upload) []string {
	if kind == "" {
		kind = TypeStandard
	}
	var problems []string
	if media.FeaturedImage != "" && media.VideoSource != "" {
		problems = append(problems, "only one of featured image or video source may be set")
	}
	switch kind {
	case TypeStandard:
		if media.VideoSource != "" {
			problems = append(problems, "standard posts cannot carry a video source")
		}
	case TypeVideo:
		if media.FeaturedImage != "" {
			problems = append(problems, "video posts cannot carry a featured image")
		}
		if media.VideoSource == "" && upload == nil {
			problems = append(problems, "video posts require a video source")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown content type %q", kind))
	}
	return problems
}
