package encounter

import (
	"time"

	"github.com/google/uuid"
)

// Workflow stages an encounter moves through. TriageFinished is an
// out-of-band marker used only for board column routing; the backend never
// stores it as a regular stage progression value.
const (
	StageSafetyScreen           = "safety_screen"
	StageIntake                 = "intake"
	StageChiefComplaint         = "chief_complaint"
	StageChiefComplaintComplete = "chief_complaint_complete"
	StageNurseReview            = "nurse_review"
	StageCompleted              = "completed"
	StageHandoffTriage          = "handoff_triage"
	StageTriageFinished         = "triage_finished"
)

// Encounter statuses.
const (
	StatusActive          = "active"
	StatusPausedForReview = "paused_for_review"
	StatusEscalated       = "escalated"
	StatusCompleted       = "completed"
	StatusClosed          = "closed"
)

// ValidStages holds every stage value the list endpoints accept as a filter.
var ValidStages = map[string]bool{
	StageSafetyScreen:           true,
	StageIntake:                 true,
	StageChiefComplaint:         true,
	StageChiefComplaintComplete: true,
	StageNurseReview:            true,
	StageCompleted:              true,
	StageHandoffTriage:          true,
	StageTriageFinished:         true,
}

// Encounter maps to the encounters table plus its joined rows. Created and
// mutated entirely by the backend; this service only reads it.
type Encounter struct {
	EncounterID       uuid.UUID        `db:"encounter_id" json:"encounter_id"`
	EncounterToken    string           `db:"encounter_token" json:"encounter_token"`
	CurrentStage      string           `db:"current_stage" json:"current_stage"`
	Status            string           `db:"status" json:"status"`
	CreatedAt         time.Time        `db:"created_at" json:"created_at"`
	PatientIdentityID *uuid.UUID       `db:"patient_identity_id" json:"-"`
	PatientIdentity   *PatientIdentity `json:"patient_identity"`
	SafetyAnswers     []SafetyAnswer   `json:"safety_answers"`
	ChiefComplaint    *ChiefComplaint  `json:"chief_complaint"`
}

// PatientIdentity maps to the patient_identity table.
type PatientIdentity struct {
	PatientIdentityID uuid.UUID `db:"patient_identity_id" json:"patient_identity_id"`
	FullName          string    `db:"full_name" json:"full_name"`
	DateOfBirth       time.Time `db:"date_of_birth" json:"date_of_birth"`
	IdentitySource    string    `db:"identity_source" json:"identity_source"`
	Verified          bool      `db:"verified" json:"verified"`
}

// SafetyAnswer maps to the encounter_safety_answers table.
type SafetyAnswer struct {
	ID                     uuid.UUID `db:"id" json:"id"`
	EncounterID            uuid.UUID `db:"encounter_id" json:"-"`
	QuestionID             string    `db:"question_id" json:"question_id"`
	Response               string    `db:"response" json:"response"`
	SeverityIfPositive     *string   `db:"severity_if_positive" json:"severity_if_positive"`
	TreatNotSureAsPositive *bool     `db:"treat_not_sure_as_positive" json:"treat_not_sure_as_positive"`
}

// ChiefComplaint maps to the encounter_chief_complaint table plus its
// category selections and presentation rows.
type ChiefComplaint struct {
	ID                 uuid.UUID                    `db:"id" json:"id"`
	EncounterID        uuid.UUID                    `db:"encounter_id" json:"encounter_id"`
	OverallText        *string                      `db:"overall_text" json:"overall_text"`
	CreatedAt          time.Time                    `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time                    `db:"updated_at" json:"updated_at"`
	CategorySelections []ChiefComplaintCategory     `json:"category_selections"`
	Presentations      []ChiefComplaintPresentation `json:"presentations"`
}

// ChiefComplaintCategory maps to encounter_chief_complaint_category_selections.
type ChiefComplaintCategory struct {
	ID           uuid.UUID `db:"id" json:"id"`
	EncounterID  uuid.UUID `db:"encounter_id" json:"-"`
	CategoryID   string    `db:"category_id" json:"category_id"`
	CategoryName *string   `db:"category_name" json:"category_name"`
}

// ChiefComplaintPresentation maps to encounter_chief_complaint_presentations.
type ChiefComplaintPresentation struct {
	ID             uuid.UUID `db:"id" json:"id"`
	EncounterID    uuid.UUID `db:"encounter_id" json:"-"`
	CategoryID     string    `db:"category_id" json:"category_id"`
	PresentationID string    `db:"presentation_id" json:"presentation_id"`
	Offset         *string   `db:"offset" json:"offset"`
	Trend          *string   `db:"trend" json:"trend"`
}
