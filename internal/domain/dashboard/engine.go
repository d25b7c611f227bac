package dashboard

import (
	"sync"
)

// Engine owns the authoritative reconciled dashboard for the encounter a
// detail panel is currently showing. It merges a one-time snapshot with an
// unbounded, at-least-once stream of events into one consistent view.
//
// Every mutation is keyed by the encounter id carried on the incoming
// record. Events tagged for any other encounter are dropped, so a
// late-arriving event from a cancelled subscription can never corrupt the
// state of the encounter that replaced it. All mutations are serialized by
// an internal mutex; callers observe them in apply order.
type Engine struct {
	mu          sync.Mutex
	encounterID string
	state       *Dashboard
}

// NewEngine returns an engine with no active encounter and no state.
func NewEngine() *Engine {
	return &Engine{}
}

// Reset discards all state and re-keys the engine to a new encounter.
// Called when the detail panel closes or switches encounters.
func (e *Engine) Reset(encounterID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.encounterID = encounterID
	e.state = nil
}

// EncounterID returns the encounter the engine is currently keyed to.
func (e *Engine) EncounterID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.encounterID
}

// Loaded reports whether a snapshot or synthesized shell is present.
func (e *Engine) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state != nil
}

// ApplySnapshot installs the initial dashboard. The collections are sorted
// defensively; the backend's own ordering is not trusted. Returns false if
// the snapshot belongs to a different encounter than the engine is keyed to.
func (e *Engine) ApplySnapshot(d Dashboard) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if d.EncounterID != e.encounterID {
		return false
	}
	SortQuestionEvents(d.QuestionEvents)
	SortTierSummaries(d.TierSummaries)
	e.state = &d
	return true
}

// ApplyLiveState replaces the live state slot wholesale. If no snapshot has
// landed yet a shell dashboard is synthesized so the live state is never
// dropped.
func (e *Engine) ApplyLiveState(ls LiveState) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ls.EncounterID != e.encounterID {
		return false
	}
	if e.state == nil {
		e.state = &Dashboard{
			EncounterID:    e.encounterID,
			QuestionEvents: []QuestionEvent{},
			TierSummaries:  []TierSummary{},
		}
	}
	e.state.LiveState = &ls
	return true
}

// ApplyQuestionEvent upserts by id and re-sorts by question_sequence.
// Generated and validated events share this path: a validation is the same
// event progressing through its status field, so the replace naturally
// supersedes the generated row.
func (e *Engine) ApplyQuestionEvent(ev QuestionEvent) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ev.EncounterID != e.encounterID || e.state == nil {
		return false
	}
	e.state.QuestionEvents = upsertQuestionEvent(e.state.QuestionEvents, ev)
	SortQuestionEvents(e.state.QuestionEvents)
	return true
}

// ApplyTierSummary upserts by id and re-sorts ascending by tier.
func (e *Engine) ApplyTierSummary(ts TierSummary) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ts.EncounterID != e.encounterID || e.state == nil {
		return false
	}
	e.state.TierSummaries = upsertTierSummary(e.state.TierSummaries, ts)
	SortTierSummaries(e.state.TierSummaries)
	return true
}

// ApplyFinalSummary replaces the final summary slot wholesale; a later
// update never merges fields with an earlier one.
func (e *Engine) ApplyFinalSummary(fs FinalSummary) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if fs.EncounterID != e.encounterID || e.state == nil {
		return false
	}
	e.state.FinalSummary = &fs
	return true
}

// State returns a copy of the reconciled dashboard, or nil when nothing has
// loaded. The slice headers and singleton slots are copied so later applies
// do not mutate what the caller holds; payload maps inside individual
// records are shared and must be treated as read-only.
func (e *Engine) State() *Dashboard {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil
	}
	cp := Dashboard{
		EncounterID: e.state.EncounterID,
		StreamURL:   e.state.StreamURL,
	}
	if e.state.LiveState != nil {
		ls := *e.state.LiveState
		cp.LiveState = &ls
	}
	if e.state.FinalSummary != nil {
		fs := *e.state.FinalSummary
		cp.FinalSummary = &fs
	}
	cp.QuestionEvents = make([]QuestionEvent, len(e.state.QuestionEvents))
	copy(cp.QuestionEvents, e.state.QuestionEvents)
	cp.TierSummaries = make([]TierSummary, len(e.state.TierSummaries))
	copy(cp.TierSummaries, e.state.TierSummaries)
	return &cp
}
