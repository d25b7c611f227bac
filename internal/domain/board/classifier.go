// Package board partitions encounters into the triage board's display
// columns and manages the live detail-panel session for the encounter a
// nurse has open.
package board

import (
	"github.com/triageboard/triageboard/internal/domain/dashboard"
	"github.com/triageboard/triageboard/internal/domain/encounter"
)

// Columns are the four disjoint board buckets. CurrentOrder is reserved for
// a future called-in queue; it is always present and currently always empty.
type Columns struct {
	CurrentOrder  []*encounter.Encounter `json:"current_order"`
	AiTriageOrder []*encounter.Encounter `json:"ai_triage_order"`
	InProgress    []*encounter.Encounter `json:"in_progress"`
	Urgent        []*encounter.Encounter `json:"urgent"`
}

// Classify partitions encounters into board columns from their reconciled
// dashboards (keyed by encounter id; a missing or nil entry means "no
// dashboard known"). The partition is stable: each bucket preserves the
// relative order of the input list.
func Classify(encounters []*encounter.Encounter, dashboards map[string]*dashboard.Dashboard) Columns {
	cols := Columns{
		CurrentOrder:  []*encounter.Encounter{},
		AiTriageOrder: []*encounter.Encounter{},
		InProgress:    []*encounter.Encounter{},
		Urgent:        []*encounter.Encounter{},
	}

	for _, enc := range encounters {
		d := dashboards[enc.EncounterID.String()]
		tier := suggestedTier(d)

		switch {
		case !triageCompleted(d):
			cols.InProgress = append(cols.InProgress, enc)
		case enc.CurrentStage == encounter.StageTriageFinished && tierIn(tier, 1, 2):
			cols.Urgent = append(cols.Urgent, enc)
		case tierIn(tier, 3, 5):
			cols.AiTriageOrder = append(cols.AiTriageOrder, enc)
		default:
			// Completed but unclassifiable (no tier, or finished-stage with a
			// moderate tier outside both ranges).
			cols.InProgress = append(cols.InProgress, enc)
		}
	}

	return cols
}

// suggestedTier resolves the display tier: the final summary wins, then the
// live state's suggested tier, then its current tier. Nil when none is set
// or no dashboard exists.
func suggestedTier(d *dashboard.Dashboard) *int {
	if d == nil {
		return nil
	}
	if d.FinalSummary != nil && d.FinalSummary.SuggestedTier != nil {
		return d.FinalSummary.SuggestedTier
	}
	if d.LiveState != nil {
		if d.LiveState.SuggestedTier != nil {
			return d.LiveState.SuggestedTier
		}
		if d.LiveState.CurrentTier != nil {
			return d.LiveState.CurrentTier
		}
	}
	return nil
}

// triageCompleted reports whether AI triage has concluded for the
// encounter: either the live state says so or a final summary exists.
func triageCompleted(d *dashboard.Dashboard) bool {
	if d == nil {
		return false
	}
	if d.FinalSummary != nil {
		return true
	}
	return d.LiveState != nil && d.LiveState.Status != nil && *d.LiveState.Status == dashboard.StatusCompleted
}

func tierIn(tier *int, low, high int) bool {
	return tier != nil && *tier >= low && *tier <= high
}
