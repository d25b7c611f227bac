package board

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/triageboard/triageboard/internal/domain/dashboard"
	"github.com/triageboard/triageboard/internal/platform/triageapi"
)

// TriageAPI is the slice of the triage backend client a panel session needs:
// one snapshot fetch plus the live event stream.
type TriageAPI interface {
	LoadDashboard(ctx context.Context, encounterID string) (*dashboard.Dashboard, error)
	SubscribeStream(ctx context.Context, encounterID string, h triageapi.StreamHandlers) (*triageapi.Subscription, error)
}

// NotifyFunc receives the reconciled dashboard after every applied stream
// event, tagged with the event type that caused the change. Implementations
// must not block: they run on the stream's reader goroutine.
type NotifyFunc func(eventType, encounterID string, state *dashboard.Dashboard)

// PanelManager owns the single detail-panel session: at most one encounter
// is open at a time, backed by one dashboard engine and at most one live
// stream subscription. Opening a new encounter always cancels the previous
// subscription before anything else happens.
type PanelManager struct {
	mu     sync.Mutex
	api    TriageAPI
	engine *dashboard.Engine
	sub    *triageapi.Subscription
	notify NotifyFunc
	logger zerolog.Logger
}

func NewPanelManager(api TriageAPI, logger zerolog.Logger) *PanelManager {
	return &PanelManager{
		api:    api,
		engine: dashboard.NewEngine(),
		logger: logger,
	}
}

// SetNotify installs the update fan-out callback. Must be called before the
// first Open.
func (m *PanelManager) SetNotify(fn NotifyFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notify = fn
}

// Open switches the panel to an encounter: it cancels any previous
// subscription, resets the engine, loads the snapshot, and only then
// subscribes to the live stream. A failed snapshot load leaves the panel
// closed with no subscription; stale data is never shown under a live feed.
func (m *PanelManager) Open(ctx context.Context, encounterID string) (*dashboard.Dashboard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeLocked()
	m.engine.Reset(encounterID)

	snap, err := m.api.LoadDashboard(ctx, encounterID)
	if err != nil {
		m.engine.Reset("")
		return nil, err
	}
	if !m.engine.ApplySnapshot(*snap) {
		m.engine.Reset("")
		return nil, fmt.Errorf("snapshot for encounter %s is keyed to encounter %q", encounterID, snap.EncounterID)
	}

	// The subscription must outlive the caller: request contexts are
	// cancelled the moment the handler returns, while the stream runs until
	// the panel closes or switches. Only the snapshot fetch above stays tied
	// to the caller's context.
	sub, err := m.api.SubscribeStream(context.WithoutCancel(ctx), encounterID, m.streamHandlers(encounterID))
	if err != nil {
		m.engine.Reset("")
		return nil, err
	}
	m.sub = sub

	return m.engine.State(), nil
}

// streamHandlers wires stream events into the engine. The encounter id is
// captured here, at subscription time: every apply re-checks it against the
// engine so a late event from this subscription is dropped once the panel
// has moved on.
func (m *PanelManager) streamHandlers(encounterID string) triageapi.StreamHandlers {
	return triageapi.StreamHandlers{
		OnLiveState: func(ls dashboard.LiveState) {
			if m.engine.ApplyLiveState(ls) {
				m.broadcast(triageapi.EventLiveStateUpdated, encounterID)
			}
		},
		OnQuestionGenerated: func(ev dashboard.QuestionEvent) {
			if m.engine.ApplyQuestionEvent(ev) {
				m.broadcast(triageapi.EventQuestionGenerated, encounterID)
			}
		},
		OnQuestionValidated: func(ev dashboard.QuestionEvent) {
			if m.engine.ApplyQuestionEvent(ev) {
				m.broadcast(triageapi.EventQuestionValidated, encounterID)
			}
		},
		OnTierSummary: func(ts dashboard.TierSummary) {
			if m.engine.ApplyTierSummary(ts) {
				m.broadcast(triageapi.EventTierSummary, encounterID)
			}
		},
		OnFinalSummary: func(fs dashboard.FinalSummary) {
			if m.engine.ApplyFinalSummary(fs) {
				m.broadcast(triageapi.EventFinalSummary, encounterID)
			}
		},
		OnParseError: func(err error) {
			m.logger.Warn().Err(err).Str("encounter_id", encounterID).Msg("panel stream parse failure")
		},
	}
}

// broadcast runs on the stream reader goroutine; it must not take m.mu, the
// engine serializes state access on its own.
func (m *PanelManager) broadcast(eventType, encounterID string) {
	if m.notify == nil {
		return
	}
	if m.engine.EncounterID() != encounterID {
		return
	}
	m.notify(eventType, encounterID, m.engine.State())
}

// Close cancels the live subscription and clears the panel state.
func (m *PanelManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked()
	m.engine.Reset("")
}

func (m *PanelManager) closeLocked() {
	if m.sub != nil {
		m.sub.Cancel()
		m.sub = nil
	}
}

// EncounterID returns the encounter the panel is showing, or "" when closed.
func (m *PanelManager) EncounterID() string {
	return m.engine.EncounterID()
}

// State returns the current reconciled dashboard, or nil when no panel is
// open.
func (m *PanelManager) State() *dashboard.Dashboard {
	return m.engine.State()
}
