package dashboard

import (
	"testing"
)

func intPtr(i int) *int       { return &i }
func strPtr(s string) *string { return &s }

func qe(encounterID, id string, seq *int, status string) QuestionEvent {
	return QuestionEvent{
		ID:               id,
		EncounterID:      encounterID,
		QuestionSequence: seq,
		QuestionStatus:   strPtr(status),
	}
}

func newLoadedEngine(encounterID string) *Engine {
	e := NewEngine()
	e.Reset(encounterID)
	e.ApplySnapshot(Dashboard{EncounterID: encounterID})
	return e
}

func TestEngine_NilUntilSnapshot(t *testing.T) {
	e := NewEngine()
	e.Reset("enc-1")

	if e.Loaded() {
		t.Error("engine should not be loaded before a snapshot")
	}
	if e.State() != nil {
		t.Error("State should be nil before a snapshot")
	}
	if e.ApplyQuestionEvent(qe("enc-1", "q1", intPtr(1), QuestionGenerated)) {
		t.Error("question event must not apply before a snapshot")
	}
	if e.ApplyFinalSummary(FinalSummary{ID: "f1", EncounterID: "enc-1"}) {
		t.Error("final summary must not apply before a snapshot")
	}
}

func TestEngine_SnapshotSortsCollections(t *testing.T) {
	e := NewEngine()
	e.Reset("enc-1")

	ok := e.ApplySnapshot(Dashboard{
		EncounterID: "enc-1",
		QuestionEvents: []QuestionEvent{
			qe("enc-1", "q3", nil, QuestionGenerated),
			qe("enc-1", "q2", intPtr(5), QuestionGenerated),
			qe("enc-1", "q1", intPtr(2), QuestionGenerated),
		},
		TierSummaries: []TierSummary{
			{ID: "t3", EncounterID: "enc-1", Tier: 3},
			{ID: "t1", EncounterID: "enc-1", Tier: 1},
		},
	})
	if !ok {
		t.Fatal("snapshot should apply")
	}

	st := e.State()
	gotQ := []string{st.QuestionEvents[0].ID, st.QuestionEvents[1].ID, st.QuestionEvents[2].ID}
	wantQ := []string{"q1", "q2", "q3"}
	for i := range wantQ {
		if gotQ[i] != wantQ[i] {
			t.Errorf("question order[%d]: want %s, got %s", i, wantQ[i], gotQ[i])
		}
	}
	if st.TierSummaries[0].Tier != 1 || st.TierSummaries[1].Tier != 3 {
		t.Errorf("tier summaries not sorted: %+v", st.TierSummaries)
	}
}

func TestEngine_SortInvariantAcrossUpserts(t *testing.T) {
	e := newLoadedEngine("enc-1")

	seqs := []*int{intPtr(7), nil, intPtr(2), intPtr(9), nil, intPtr(1)}
	for i, s := range seqs {
		id := string(rune('a' + i))
		e.ApplyQuestionEvent(qe("enc-1", id, s, QuestionGenerated))

		events := e.State().QuestionEvents
		seenNil := false
		prev := -1
		for _, ev := range events {
			if ev.QuestionSequence == nil {
				seenNil = true
				continue
			}
			if seenNil {
				t.Fatalf("sequenced event after sequence-less event: %+v", events)
			}
			if *ev.QuestionSequence < prev {
				t.Fatalf("sequence order violated: %+v", events)
			}
			prev = *ev.QuestionSequence
		}
	}
}

func TestEngine_UpsertIdempotent(t *testing.T) {
	e := newLoadedEngine("enc-1")

	ev := qe("enc-1", "q1", intPtr(3), QuestionGenerated)
	e.ApplyQuestionEvent(ev)
	e.ApplyQuestionEvent(ev)

	events := e.State().QuestionEvents
	if len(events) != 1 {
		t.Fatalf("expected 1 event after duplicate upsert, got %d", len(events))
	}
}

func TestEngine_UpsertReplacesNotMerges(t *testing.T) {
	e := newLoadedEngine("enc-1")

	first := qe("enc-1", "q1", intPtr(3), QuestionGenerated)
	first.NotesForNurse = strPtr("check vitals")
	e.ApplyQuestionEvent(first)

	// Second record for the same id omits the note; it must not survive.
	second := qe("enc-1", "q1", intPtr(3), QuestionValidated)
	e.ApplyQuestionEvent(second)

	events := e.State().QuestionEvents
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].NotesForNurse != nil {
		t.Error("old field value resurrected by upsert; expected wholesale replace")
	}
	if *events[0].QuestionStatus != QuestionValidated {
		t.Errorf("expected validated status, got %s", *events[0].QuestionStatus)
	}
}

func TestEngine_UpsertOrderingScenario(t *testing.T) {
	// q1 seq 3, then q2 seq 1, then q1 again (validated): order [q2, q1],
	// q1 reflects the validated status.
	e := newLoadedEngine("enc-1")

	e.ApplyQuestionEvent(qe("enc-1", "q1", intPtr(3), QuestionGenerated))
	e.ApplyQuestionEvent(qe("enc-1", "q2", intPtr(1), QuestionGenerated))
	e.ApplyQuestionEvent(qe("enc-1", "q1", intPtr(3), QuestionValidated))

	events := e.State().QuestionEvents
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].ID != "q2" || events[1].ID != "q1" {
		t.Errorf("expected [q2, q1], got [%s, %s]", events[0].ID, events[1].ID)
	}
	if *events[1].QuestionStatus != QuestionValidated {
		t.Errorf("q1 should be validated, got %s", *events[1].QuestionStatus)
	}
}

func TestEngine_SingletonOverwrite(t *testing.T) {
	e := newLoadedEngine("enc-1")

	e.ApplyLiveState(LiveState{EncounterID: "enc-1", Status: strPtr("active"), CurrentTier: intPtr(4)})
	e.ApplyLiveState(LiveState{EncounterID: "enc-1", Status: strPtr(StatusCompleted)})

	ls := e.State().LiveState
	if ls == nil || *ls.Status != StatusCompleted {
		t.Fatalf("expected second live state, got %+v", ls)
	}
	if ls.CurrentTier != nil {
		t.Error("live state overwrite must not merge fields from the previous value")
	}

	e.ApplyFinalSummary(FinalSummary{ID: "f1", EncounterID: "enc-1", SuggestedTier: intPtr(2), RenderText: "first"})
	e.ApplyFinalSummary(FinalSummary{ID: "f2", EncounterID: "enc-1", RenderText: "second"})

	fs := e.State().FinalSummary
	if fs == nil || fs.ID != "f2" {
		t.Fatalf("expected second final summary, got %+v", fs)
	}
	if fs.SuggestedTier != nil {
		t.Error("final summary overwrite must not merge fields from the previous value")
	}
}

func TestEngine_LiveStateSynthesizesShell(t *testing.T) {
	e := NewEngine()
	e.Reset("enc-1")

	if !e.ApplyLiveState(LiveState{EncounterID: "enc-1", Status: strPtr("active")}) {
		t.Fatal("live state should apply even before a snapshot")
	}

	st := e.State()
	if st == nil {
		t.Fatal("expected a synthesized shell dashboard")
	}
	if st.EncounterID != "enc-1" {
		t.Errorf("shell keyed to wrong encounter: %s", st.EncounterID)
	}
	if st.QuestionEvents == nil || len(st.QuestionEvents) != 0 {
		t.Error("shell should carry an empty question event list")
	}
	if st.FinalSummary != nil {
		t.Error("shell should have no final summary")
	}
}

func TestEngine_StaleEncounterIsolation(t *testing.T) {
	e := newLoadedEngine("enc-a")
	e.ApplyQuestionEvent(qe("enc-a", "qa", intPtr(1), QuestionGenerated))

	// Panel switches to encounter B.
	e.Reset("enc-b")
	e.ApplySnapshot(Dashboard{EncounterID: "enc-b"})

	// Late events still tagged for A must be dropped.
	if e.ApplyQuestionEvent(qe("enc-a", "qa2", intPtr(2), QuestionGenerated)) {
		t.Error("stale event for encounter A applied to encounter B state")
	}
	if e.ApplyLiveState(LiveState{EncounterID: "enc-a"}) {
		t.Error("stale live state for encounter A applied")
	}
	if e.ApplyFinalSummary(FinalSummary{ID: "f", EncounterID: "enc-a"}) {
		t.Error("stale final summary for encounter A applied")
	}

	st := e.State()
	if len(st.QuestionEvents) != 0 {
		t.Errorf("encounter B state corrupted: %+v", st.QuestionEvents)
	}

	// And the snapshot guard works in the other direction too.
	if e.ApplySnapshot(Dashboard{EncounterID: "enc-a"}) {
		t.Error("snapshot for encounter A installed while keyed to B")
	}
}

func TestEngine_StateIsACopy(t *testing.T) {
	e := newLoadedEngine("enc-1")
	e.ApplyQuestionEvent(qe("enc-1", "q1", intPtr(1), QuestionGenerated))

	before := e.State()
	e.ApplyQuestionEvent(qe("enc-1", "q0", intPtr(0), QuestionGenerated))

	if len(before.QuestionEvents) != 1 {
		t.Error("previously returned state mutated by a later apply")
	}
}

func TestEngine_TierSummaryUpsert(t *testing.T) {
	e := newLoadedEngine("enc-1")

	e.ApplyTierSummary(TierSummary{ID: "t2", EncounterID: "enc-1", Tier: 2, RenderText: "tier two"})
	e.ApplyTierSummary(TierSummary{ID: "t1", EncounterID: "enc-1", Tier: 1, RenderText: "tier one"})
	e.ApplyTierSummary(TierSummary{ID: "t2", EncounterID: "enc-1", Tier: 2, RenderText: "tier two revised"})

	sums := e.State().TierSummaries
	if len(sums) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(sums))
	}
	if sums[0].Tier != 1 || sums[1].Tier != 2 {
		t.Errorf("summaries not sorted by tier: %+v", sums)
	}
	if sums[1].RenderText != "tier two revised" {
		t.Errorf("upsert did not replace t2: %s", sums[1].RenderText)
	}
}
