package board

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/triageboard/triageboard/internal/domain/dashboard"
	"github.com/triageboard/triageboard/internal/domain/encounter"
)

// -- Mock encounter repository --

type mockEncRepo struct {
	encounters []*encounter.Encounter
}

func (m *mockEncRepo) add(stage string) *encounter.Encounter {
	enc := newEnc(stage)
	m.encounters = append(m.encounters, enc)
	return enc
}

func (m *mockEncRepo) List(_ context.Context, limit, offset int) ([]*encounter.Encounter, int, error) {
	return m.encounters, len(m.encounters), nil
}

func (m *mockEncRepo) ListByStages(_ context.Context, stages []string, limit, offset int) ([]*encounter.Encounter, int, error) {
	want := make(map[string]bool, len(stages))
	for _, s := range stages {
		want[s] = true
	}
	var result []*encounter.Encounter
	for _, enc := range m.encounters {
		if want[enc.CurrentStage] {
			result = append(result, enc)
		}
	}
	return result, len(result), nil
}

func (m *mockEncRepo) GetByID(_ context.Context, id uuid.UUID) (*encounter.Encounter, error) {
	for _, enc := range m.encounters {
		if enc.EncounterID == id {
			return enc, nil
		}
	}
	return nil, fmt.Errorf("not found")
}

// -- Mock dashboard loader --

type mockLoader struct {
	mu         sync.Mutex
	dashboards map[string]*dashboard.Dashboard
	fail       map[string]bool
	inFlight   int
	maxSeen    int
}

func newMockLoader() *mockLoader {
	return &mockLoader{
		dashboards: make(map[string]*dashboard.Dashboard),
		fail:       make(map[string]bool),
	}
}

func (m *mockLoader) LoadDashboard(_ context.Context, encounterID string) (*dashboard.Dashboard, error) {
	m.mu.Lock()
	m.inFlight++
	if m.inFlight > m.maxSeen {
		m.maxSeen = m.inFlight
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail[encounterID] {
		return nil, fmt.Errorf("backend unavailable")
	}
	if d, ok := m.dashboards[encounterID]; ok {
		return d, nil
	}
	return &dashboard.Dashboard{
		EncounterID:    encounterID,
		QuestionEvents: []dashboard.QuestionEvent{},
		TierSummaries:  []dashboard.TierSummary{},
	}, nil
}

func newTestBoardService() (*Service, *mockEncRepo, *mockLoader) {
	repo := &mockEncRepo{}
	loader := newMockLoader()
	svc := NewService(encounter.NewService(repo), loader, zerolog.Nop())
	return svc, repo, loader
}

func TestService_LoadBoard(t *testing.T) {
	svc, repo, loader := newTestBoardService()

	urgent := repo.add(encounter.StageTriageFinished)
	loader.dashboards[urgent.EncounterID.String()] = finalDash(urgent.EncounterID.String(), intPtr(1))
	repo.add(encounter.StageSafetyScreen)

	b, err := svc.LoadBoard(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(b.Urgent) != 1 || len(b.InProgress) != 1 {
		t.Errorf("unexpected columns: urgent=%d in_progress=%d", len(b.Urgent), len(b.InProgress))
	}
	if len(b.Dashboards) != 2 {
		t.Errorf("expected 2 dashboards, got %d", len(b.Dashboards))
	}
}

func TestService_LoadBoard_ToleratesSnapshotFailures(t *testing.T) {
	svc, repo, loader := newTestBoardService()

	broken := repo.add(encounter.StageTriageFinished)
	loader.fail[broken.EncounterID.String()] = true

	b, err := svc.LoadBoard(context.Background())
	if err != nil {
		t.Fatalf("one failed snapshot must not fail the board: %v", err)
	}
	if len(b.InProgress) != 1 {
		t.Errorf("encounter with no dashboard should land in InProgress, got %+v", b.Columns)
	}
	if _, ok := b.Dashboards[broken.EncounterID.String()]; ok {
		t.Error("failed snapshot should be omitted from the dashboards map")
	}
}

func TestService_LoadBoard_BoundsConcurrency(t *testing.T) {
	svc, repo, loader := newTestBoardService()
	svc.SetLoadConcurrency(2)

	for i := 0; i < 10; i++ {
		repo.add(encounter.StageSafetyScreen)
	}

	if _, err := svc.LoadBoard(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loader.mu.Lock()
	defer loader.mu.Unlock()
	if loader.maxSeen > 2 {
		t.Errorf("expected at most 2 concurrent snapshot loads, saw %d", loader.maxSeen)
	}
}
