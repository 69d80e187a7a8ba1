// Package metadata answers questions about a single annotation record.
package metadata

import "github.com/lalith-99/marginalia/internal/models"

// IsReply reports whether a has ancestors.
func IsReply(a models.Annotation) bool {
	return len(a.References) > 0
}

// IsSaved reports whether a has been persisted and assigned an ID.
func IsSaved(a models.Annotation) bool {
	return a.ID != ""
}

// IsNew reports whether a has not been persisted yet.
func IsNew(a models.Annotation) bool {
	return a.ID == ""
}

// HasSelector reports whether a refers to a specific region of a document.
func HasSelector(a models.Annotation) bool {
	return len(a.Target) > 0 && len(a.Target[0].Selector) > 0
}

// IsWaitingToAnchor reports whether anchoring of a has not resolved yet
// and has not timed out.
func IsWaitingToAnchor(a models.Annotation) bool {
	return HasSelector(a) && a.Orphan == nil && !a.AnchorTimeout
}

// IsOrphan reports whether a refers to a region that could not be found.
func IsOrphan(a models.Annotation) bool {
	return HasSelector(a) && a.Orphan != nil && *a.Orphan
}

// IsPageNote reports whether a refers to the whole document.
func IsPageNote(a models.Annotation) bool {
	return !HasSelector(a) && !IsReply(a)
}

// IsAnnotation reports whether a is an anchored top-level annotation.
func IsAnnotation(a models.Annotation) bool {
	return HasSelector(a) && !IsOrphan(a)
}

// IsHighlight reports whether a is a highlight: a saved annotation on a
// region with no text or tags, or a new one made with the highlight
// button.
func IsHighlight(a models.Annotation) bool {
	if a.Highlight {
		return true
	}
	if IsNew(a) {
		return false
	}
	return !IsPageNote(a) && !IsReply(a) && !a.Hidden && a.Text == "" && len(a.Tags) == 0
}

// Description returns the description of a's selection, if any.
func Description(a models.Annotation) string {
	if len(a.Target) == 0 {
		return ""
	}
	return a.Target[0].Description
}

// Mentions reports whether a mentions userID.
func Mentions(a models.Annotation, userID string) bool {
	if userID == "" {
		return false
	}
	for _, m := range a.Mentions {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// CountIf counts the annotations matching pred in one pass.
func CountIf(anns []models.Annotation, pred func(models.Annotation) bool) int {
	n := 0
	for _, a := range anns {
		if pred(a) {
			n++
		}
	}
	return n
}
