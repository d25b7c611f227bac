package board

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/triageboard/triageboard/internal/domain/dashboard"
	"github.com/triageboard/triageboard/internal/domain/encounter"
)

// defaultLoadConcurrency bounds parallel snapshot requests against the
// triage backend during a full board load.
const defaultLoadConcurrency = 8

// DashboardLoader is the slice of the triage backend client the board
// loader needs.
type DashboardLoader interface {
	LoadDashboard(ctx context.Context, encounterID string) (*dashboard.Dashboard, error)
}

// Board is the full board response: the classified columns plus the raw
// dashboards they were derived from, keyed by encounter id.
type Board struct {
	Columns
	Dashboards map[string]*dashboard.Dashboard `json:"dashboards"`
}

type Service struct {
	encounters  *encounter.Service
	loader      DashboardLoader
	concurrency int
	boardLimit  int
	logger      zerolog.Logger
}

func NewService(encounters *encounter.Service, loader DashboardLoader, logger zerolog.Logger) *Service {
	return &Service{
		encounters:  encounters,
		loader:      loader,
		concurrency: defaultLoadConcurrency,
		boardLimit:  200,
		logger:      logger,
	}
}

// SetLoadConcurrency overrides the parallel snapshot fetch bound.
func (s *Service) SetLoadConcurrency(n int) {
	if n > 0 {
		s.concurrency = n
	}
}

// LoadBoard lists the active encounters, fetches each one's dashboard
// snapshot from the triage backend, and classifies them into columns.
// Snapshot failures for individual encounters are tolerated: the encounter
// stays on the board with no dashboard, which routes it to In Progress.
func (s *Service) LoadBoard(ctx context.Context) (*Board, error) {
	encs, _, err := s.encounters.ListEncounters(ctx, s.boardLimit, 0)
	if err != nil {
		return nil, err
	}

	dashboards := s.loadDashboards(ctx, encs)
	cols := Classify(encs, dashboards)

	return &Board{Columns: cols, Dashboards: dashboards}, nil
}

// loadDashboards fetches snapshots with bounded concurrency. Entries for
// encounters whose fetch failed are omitted from the map.
func (s *Service) loadDashboards(ctx context.Context, encs []*encounter.Encounter) map[string]*dashboard.Dashboard {
	results := make([]*dashboard.Dashboard, len(encs))

	var wg sync.WaitGroup
	sem := make(chan struct{}, s.concurrency)

	for i, enc := range encs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			d, err := s.loader.LoadDashboard(ctx, id)
			if err != nil {
				s.logger.Warn().Err(err).Str("encounter_id", id).Msg("board snapshot load failed")
				return
			}
			results[i] = d
		}(i, enc.EncounterID.String())
	}
	wg.Wait()

	dashboards := make(map[string]*dashboard.Dashboard, len(encs))
	for i, enc := range encs {
		if results[i] != nil {
			dashboards[enc.EncounterID.String()] = results[i]
		}
	}
	return dashboards
}
