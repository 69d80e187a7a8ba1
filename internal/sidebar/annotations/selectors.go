package annotations

import (
	"github.com/lalith-99/marginalia/internal/models"
	"github.com/lalith-99/marginalia/internal/sidebar/metadata"
	"github.com/lalith-99/marginalia/internal/store"
)

// AllAnnotations returns the collection in its stored order.
func AllAnnotations(s *State) []models.Annotation { return s.Annotations }

// AnnotationCount counts anchored top-level annotations.
var AnnotationCount = store.Memo(func(s *State) int {
	return metadata.CountIf(s.Annotations, metadata.IsAnnotation)
})

// NoteCount counts page notes.
var NoteCount = store.Memo(func(s *State) int {
	return metadata.CountIf(s.Annotations, metadata.IsPageNote)
})

// OrphanCount counts annotations whose target could not be found.
var OrphanCount = store.Memo(func(s *State) int {
	return metadata.CountIf(s.Annotations, metadata.IsOrphan)
})

// AnnotationExists reports whether an annotation with id is loaded.
func AnnotationExists(s *State, id string) bool {
	_, ok := findByID(s.Annotations, id)
	return ok
}

// FindAnnotationByID returns a copy of the annotation with id, or nil.
func FindAnnotationByID(s *State, id string) *models.Annotation {
	a, ok := findByID(s.Annotations, id)
	if !ok {
		return nil
	}
	return &a
}

// FindAnnotationByTag returns a copy of the annotation with tag, or nil.
func FindAnnotationByTag(s *State, tag string) *models.Annotation {
	a, ok := findByTag(s.Annotations, tag)
	if !ok {
		return nil
	}
	return &a
}

// FindIDsForTags returns the IDs of saved annotations with the given tags,
// in the order the tags were given.
func FindIDsForTags(s *State, tags []string) []string {
	var ids []string
	for _, tag := range tags {
		if a, ok := findByTag(s.Annotations, tag); ok && a.ID != "" {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

// HoveredAnnotations returns the sorted tags of hovered annotations.
var HoveredAnnotations = store.Memo(func(s *State) []string {
	return trueKeys(s.Hovered)
})

// HighlightedAnnotations returns the sorted IDs of highlighted annotations.
var HighlightedAnnotations = store.Memo(func(s *State) []string {
	return trueKeys(s.Highlighted)
})

// IsAnnotationHovered reports whether the annotation with tag is hovered.
func IsAnnotationHovered(s *State, tag string) bool { return s.Hovered[tag] }

// IsWaitingToAnchorAnnotations reports whether any annotation is still
// waiting to anchor.
var IsWaitingToAnchorAnnotations = store.Memo(func(s *State) bool {
	for _, a := range s.Annotations {
		if metadata.IsWaitingToAnchor(a) {
			return true
		}
	}
	return false
})

func filter(anns []models.Annotation, pred func(models.Annotation) bool) []models.Annotation {
	out := []models.Annotation{}
	for _, a := range anns {
		if pred(a) {
			out = append(out, a)
		}
	}
	return out
}

// NewAnnotations returns unsaved annotations that are not highlights.
var NewAnnotations = store.Memo(func(s *State) []models.Annotation {
	return filter(s.Annotations, func(a models.Annotation) bool {
		return metadata.IsNew(a) && !metadata.IsHighlight(a)
	})
})

// NewHighlights returns unsaved highlights.
var NewHighlights = store.Memo(func(s *State) []models.Annotation {
	return filter(s.Annotations, func(a models.Annotation) bool {
		return metadata.IsNew(a) && metadata.IsHighlight(a)
	})
})

// SavedAnnotations returns annotations that have an ID.
var SavedAnnotations = store.Memo(func(s *State) []models.Annotation {
	return filter(s.Annotations, metadata.IsSaved)
})
