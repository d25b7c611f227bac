package dashboard

import (
	"encoding/json"
	"sort"
	"time"
)

// Workflow phases reported by the triage backend in LiveState.
const (
	PhaseNormalQuestioning = "normal_questioning"
	PhaseFollowUp          = "follow_up"
	PhaseTierSummary       = "tier_summary"
	PhaseCompleted         = "completed"
)

// Question lifecycle statuses. A question event is inserted as "generated"
// and later updated in place to "validated" under the same id.
const (
	QuestionGenerated = "generated"
	QuestionValidated = "validated"
)

// StatusCompleted is the LiveState status that marks a finished triage thread.
const StatusCompleted = "completed"

// LiveState is the single current snapshot of an in-progress triage thread.
type LiveState struct {
	ID                           string                 `json:"id,omitempty"`
	EncounterID                  string                 `json:"encounter_id"`
	ThreadID                     *string                `json:"thread_id"`
	PatientInfoSnapshot          map[string]interface{} `json:"patient_info_snapshot"`
	Status                       *string                `json:"status"`
	WorkflowPhase                *string                `json:"workflow_phase"`
	CurrentFlag                  *string                `json:"current_flag"`
	CurrentTier                  *int                   `json:"current_tier"`
	SuggestedTier                *int                   `json:"suggested_tier"`
	ActiveQuestionEventID        *string                `json:"active_question_event_id"`
	ActiveQuestionKind           *string                `json:"active_question_kind"`
	InFollowUp                   *bool                  `json:"in_follow_up"`
	CurrentFollowUpDiscriminator *string                `json:"current_follow_up_discriminator_id"`
	ViolatedDiscriminatorIDs     []string               `json:"violated_discriminator_ids"`
	LatestTierSummaryID          *string                `json:"latest_tier_summary_id"`
	LatestFinalSummaryID         *string                `json:"latest_final_summary_id"`
	UpdatedAt                    time.Time              `json:"updated_at"`
	CreatedAt                    *time.Time             `json:"created_at,omitempty"`
}

// QuestionEvent is one question asked by the triage AI and its lifecycle
// from generation through validation, including any follow-up outcome.
type QuestionEvent struct {
	ID                       string                 `json:"id"`
	EncounterID              string                 `json:"encounter_id"`
	ThreadID                 *string                `json:"thread_id"`
	QuestionSequence         *int                   `json:"question_sequence"`
	QuestionKind             *string                `json:"question_kind"`
	Tier                     *int                   `json:"tier"`
	WorkflowPhaseAtInsert    *string                `json:"workflow_phase_at_insert"`
	InFollowUp               *bool                  `json:"in_follow_up"`
	ParentQuestionEventID    *string                `json:"parent_question_event_id"`
	ParentDiscriminatorID    *string                `json:"parent_discriminator_id"`
	CoveredDiscriminatorIDs  []string               `json:"covered_discriminator_ids"`
	QuestionPayload          map[string]interface{} `json:"question_payload"`
	QuestionText             *string                `json:"question_text"`
	QuestionType             *string                `json:"question_type"`
	QuestionStatus           *string                `json:"question_status"`
	UserAnswerPayload        interface{}            `json:"user_answer_payload,omitempty"`
	NormalizedAnswerText     *string                `json:"normalized_answer_text,omitempty"`
	ValidationResultPayload  map[string]interface{} `json:"validation_result_payload,omitempty"`
	FollowUpOutcomePayload   map[string]interface{} `json:"follow_up_outcome_payload,omitempty"`
	ResultingFlag            *string                `json:"resulting_flag,omitempty"`
	ViolatedDiscriminatorIDs []string               `json:"violated_discriminator_ids,omitempty"`
	NotesForNurse            *string                `json:"notes_for_nurse,omitempty"`
	AskedAt                  *time.Time             `json:"asked_at,omitempty"`
	AnsweredAt               *time.Time             `json:"answered_at,omitempty"`
	ValidatedAt              *time.Time             `json:"validated_at,omitempty"`
}

// TierSummary explains why a given acuity tier was ruled in or out.
type TierSummary struct {
	ID                   string                 `json:"id"`
	EncounterID          string                 `json:"encounter_id"`
	ThreadID             *string                `json:"thread_id"`
	Tier                 int                    `json:"tier"`
	SummarySchemaVersion string                 `json:"summary_schema_version"`
	SummaryPayload       map[string]interface{} `json:"summary_payload"`
	RenderText           string                 `json:"render_text"`
	CreatedAt            *time.Time             `json:"created_at,omitempty"`
}

// FinalSummary is the terminal handoff artifact produced once triage
// concludes.
type FinalSummary struct {
	ID                       string                 `json:"id"`
	EncounterID              string                 `json:"encounter_id"`
	ThreadID                 *string                `json:"thread_id"`
	SummarySchemaVersion     string                 `json:"summary_schema_version"`
	SuggestedTier            *int                   `json:"suggested_tier"`
	ViolatedDiscriminatorIDs []string               `json:"violated_discriminator_ids"`
	SummaryPayload           map[string]interface{} `json:"summary_payload"`
	RenderText               string                 `json:"render_text"`
	CreatedAt                *time.Time             `json:"created_at,omitempty"`
}

// Dashboard is the reconciled triage view for one encounter. It is also the
// wire shape of the snapshot endpoint response.
type Dashboard struct {
	EncounterID    string          `json:"encounter_id"`
	LiveState      *LiveState      `json:"live_state"`
	QuestionEvents []QuestionEvent `json:"question_events"`
	TierSummaries  []TierSummary   `json:"tier_summaries"`
	FinalSummary   *FinalSummary   `json:"final_summary"`
	StreamURL      string          `json:"stream_url"`
}

// Envelope is the generic wrapper every stream message decodes into before
// typed extraction. Payload values stay raw until an event-specific decode.
type Envelope struct {
	EventType   string                     `json:"event_type"`
	EventID     string                     `json:"event_id"`
	EncounterID string                     `json:"encounter_id"`
	ThreadID    *string                    `json:"thread_id"`
	Timestamp   time.Time                  `json:"timestamp"`
	Payload     map[string]json.RawMessage `json:"payload"`
}

// SortQuestionEvents orders events ascending by question_sequence. Events
// without a sequence sort after all sequenced events; the sort is stable so
// ties and sequence-less entries keep their relative order.
func SortQuestionEvents(events []QuestionEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i].QuestionSequence, events[j].QuestionSequence
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return *a < *b
	})
}

// SortTierSummaries orders summaries ascending by tier.
func SortTierSummaries(summaries []TierSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].Tier < summaries[j].Tier
	})
}

// upsertQuestionEvent replaces the entry with a matching id wholesale, or
// appends when the id is new. The incoming record always wins; fields absent
// from it are not preserved from the old entry.
func upsertQuestionEvent(events []QuestionEvent, next QuestionEvent) []QuestionEvent {
	for i := range events {
		if events[i].ID == next.ID {
			events[i] = next
			return events
		}
	}
	return append(events, next)
}

func upsertTierSummary(summaries []TierSummary, next TierSummary) []TierSummary {
	for i := range summaries {
		if summaries[i].ID == next.ID {
			summaries[i] = next
			return summaries
		}
	}
	return append(summaries, next)
}
