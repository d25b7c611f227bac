package encounter

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// inProgressStages are the stages shown on the "in progress" encounter
// list before AI triage takes over.
var inProgressStages = []string{
	StageSafetyScreen,
	StageChiefComplaint,
	StageChiefComplaintComplete,
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ListEncounters returns all encounters, newest first.
func (s *Service) ListEncounters(ctx context.Context, limit, offset int) ([]*Encounter, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// ListByStage returns encounters in a single stage. The stage name is
// validated so a typo in a query parameter fails loudly instead of
// returning an empty board.
func (s *Service) ListByStage(ctx context.Context, stage string, limit, offset int) ([]*Encounter, int, error) {
	if !ValidStages[stage] {
		return nil, 0, fmt.Errorf("invalid stage: %s", stage)
	}
	return s.repo.ListByStages(ctx, []string{stage}, limit, offset)
}

// ListInProgress returns encounters still working through patient intake
// (safety screen or chief complaint capture).
func (s *Service) ListInProgress(ctx context.Context, limit, offset int) ([]*Encounter, int, error) {
	return s.repo.ListByStages(ctx, inProgressStages, limit, offset)
}

// GetEncounter returns one encounter with its joined rows.
func (s *Service) GetEncounter(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	return s.repo.GetByID(ctx, id)
}
