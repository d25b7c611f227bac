package encounter

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the read-only encounter store. Implementations must return
// encounters with their patient identity, safety answers, and chief
// complaint already attached.
type Repository interface {
	// List returns encounters ordered by creation time descending.
	List(ctx context.Context, limit, offset int) ([]*Encounter, int, error)
	// ListByStages returns encounters whose current stage is in stages,
	// ordered by creation time descending.
	ListByStages(ctx context.Context, stages []string, limit, offset int) ([]*Encounter, int, error)
	// GetByID returns a single encounter with joined rows attached.
	GetByID(ctx context.Context, id uuid.UUID) (*Encounter, error)
}
