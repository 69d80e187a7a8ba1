package repository

import (
	"context"

	"github.com/lalith-99/marginalia/internal/models"
)

// AnnotationRepository persists annotations for the relay. Records are
// stored without client-only fields.
type AnnotationRepository interface {
	// Create assigns an ID and timestamps to ann and stores it.
	Create(ctx context.Context, ann models.Annotation) (*models.Annotation, error)

	// Get returns the annotation with id. Returns nil, nil if not found.
	Get(ctx context.Context, id string) (*models.Annotation, error)

	// Update replaces the stored annotation with ann.ID and bumps its
	// updated timestamp. Returns nil, nil if not found.
	Update(ctx context.Context, ann models.Annotation) (*models.Annotation, error)

	// Delete removes the annotation with id, reporting whether it existed.
	Delete(ctx context.Context, id string) (bool, error)

	// ListByGroup returns up to limit annotations in group, most recently
	// updated first. Returns an empty slice, not nil.
	ListByGroup(ctx context.Context, group string, limit int) ([]models.Annotation, error)

	// CountByGroup returns how many annotations group holds.
	CountByGroup(ctx context.Context, group string) (int, error)
}
