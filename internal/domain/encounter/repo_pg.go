package encounter

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct {
	pool *pgxpool.Pool
}

// NewRepo creates a Postgres-backed encounter repository.
func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const encCols = `encounter_id, encounter_token, current_stage, status, created_at, patient_identity_id`

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Encounter, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM encounters`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+encCols+` FROM encounters ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	encs, err := collectEncs(rows)
	if err != nil {
		return nil, 0, err
	}
	if err := r.attachJoins(ctx, encs); err != nil {
		return nil, 0, err
	}
	return encs, total, nil
}

func (r *repoPG) ListByStages(ctx context.Context, stages []string, limit, offset int) ([]*Encounter, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM encounters WHERE current_stage = ANY($1)`, stages).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+encCols+` FROM encounters WHERE current_stage = ANY($1) ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		stages, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	encs, err := collectEncs(rows)
	if err != nil {
		return nil, 0, err
	}
	if err := r.attachJoins(ctx, encs); err != nil {
		return nil, 0, err
	}
	return encs, total, nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+encCols+` FROM encounters WHERE encounter_id = $1`, id)
	enc, err := scanEnc(row)
	if err != nil {
		return nil, err
	}
	if err := r.attachJoins(ctx, []*Encounter{enc}); err != nil {
		return nil, err
	}
	return enc, nil
}

// joinLookups are the per-batch lookup maps for joined rows. They are built
// once per query and passed around explicitly; nothing here is cached across
// calls.
type joinLookups struct {
	patients        map[uuid.UUID]*PatientIdentity
	safetyAnswers   map[uuid.UUID][]SafetyAnswer
	chiefComplaints map[uuid.UUID]*ChiefComplaint
}

// attachJoins loads patient identities, safety answers, and chief complaint
// rows for the batch and attaches them to each encounter.
func (r *repoPG) attachJoins(ctx context.Context, encs []*Encounter) error {
	if len(encs) == 0 {
		return nil
	}

	encounterIDs := make([]uuid.UUID, 0, len(encs))
	patientIDs := make([]uuid.UUID, 0, len(encs))
	for _, e := range encs {
		encounterIDs = append(encounterIDs, e.EncounterID)
		if e.PatientIdentityID != nil {
			patientIDs = append(patientIDs, *e.PatientIdentityID)
		}
	}

	lookups := joinLookups{
		patients:        make(map[uuid.UUID]*PatientIdentity),
		safetyAnswers:   make(map[uuid.UUID][]SafetyAnswer),
		chiefComplaints: make(map[uuid.UUID]*ChiefComplaint),
	}

	if err := r.loadPatients(ctx, patientIDs, &lookups); err != nil {
		return fmt.Errorf("load patient identities: %w", err)
	}
	if err := r.loadSafetyAnswers(ctx, encounterIDs, &lookups); err != nil {
		return fmt.Errorf("load safety answers: %w", err)
	}
	if err := r.loadChiefComplaints(ctx, encounterIDs, &lookups); err != nil {
		return fmt.Errorf("load chief complaints: %w", err)
	}

	for _, e := range encs {
		if e.PatientIdentityID != nil {
			e.PatientIdentity = lookups.patients[*e.PatientIdentityID]
		}
		if answers, ok := lookups.safetyAnswers[e.EncounterID]; ok {
			e.SafetyAnswers = answers
		} else {
			e.SafetyAnswers = []SafetyAnswer{}
		}
		e.ChiefComplaint = lookups.chiefComplaints[e.EncounterID]
	}
	return nil
}

func (r *repoPG) loadPatients(ctx context.Context, patientIDs []uuid.UUID, lookups *joinLookups) error {
	if len(patientIDs) == 0 {
		return nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT patient_identity_id, full_name, date_of_birth, identity_source, verified
		FROM patient_identity WHERE patient_identity_id = ANY($1)`, patientIDs)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var p PatientIdentity
		if err := rows.Scan(&p.PatientIdentityID, &p.FullName, &p.DateOfBirth, &p.IdentitySource, &p.Verified); err != nil {
			return err
		}
		lookups.patients[p.PatientIdentityID] = &p
	}
	return rows.Err()
}

func (r *repoPG) loadSafetyAnswers(ctx context.Context, encounterIDs []uuid.UUID, lookups *joinLookups) error {
	rows, err := r.pool.Query(ctx, `
		SELECT id, encounter_id, question_id, response, severity_if_positive, treat_not_sure_as_positive
		FROM encounter_safety_answers WHERE encounter_id = ANY($1)`, encounterIDs)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var a SafetyAnswer
		if err := rows.Scan(&a.ID, &a.EncounterID, &a.QuestionID, &a.Response, &a.SeverityIfPositive, &a.TreatNotSureAsPositive); err != nil {
			return err
		}
		lookups.safetyAnswers[a.EncounterID] = append(lookups.safetyAnswers[a.EncounterID], a)
	}
	return rows.Err()
}

func (r *repoPG) loadChiefComplaints(ctx context.Context, encounterIDs []uuid.UUID, lookups *joinLookups) error {
	rows, err := r.pool.Query(ctx, `
		SELECT id, encounter_id, overall_text, created_at, updated_at
		FROM encounter_chief_complaint WHERE encounter_id = ANY($1)`, encounterIDs)
	if err != nil {
		return err
	}
	for rows.Next() {
		var cc ChiefComplaint
		if err := rows.Scan(&cc.ID, &cc.EncounterID, &cc.OverallText, &cc.CreatedAt, &cc.UpdatedAt); err != nil {
			rows.Close()
			return err
		}
		cc.CategorySelections = []ChiefComplaintCategory{}
		cc.Presentations = []ChiefComplaintPresentation{}
		lookups.chiefComplaints[cc.EncounterID] = &cc
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(lookups.chiefComplaints) == 0 {
		return nil
	}

	catRows, err := r.pool.Query(ctx, `
		SELECT id, encounter_id, category_id, category_name
		FROM encounter_chief_complaint_category_selections WHERE encounter_id = ANY($1)`, encounterIDs)
	if err != nil {
		return err
	}
	for catRows.Next() {
		var c ChiefComplaintCategory
		if err := catRows.Scan(&c.ID, &c.EncounterID, &c.CategoryID, &c.CategoryName); err != nil {
			catRows.Close()
			return err
		}
		if cc := lookups.chiefComplaints[c.EncounterID]; cc != nil {
			cc.CategorySelections = append(cc.CategorySelections, c)
		}
	}
	catRows.Close()
	if err := catRows.Err(); err != nil {
		return err
	}

	presRows, err := r.pool.Query(ctx, `
		SELECT id, encounter_id, category_id, presentation_id, "offset", trend
		FROM encounter_chief_complaint_presentations WHERE encounter_id = ANY($1)`, encounterIDs)
	if err != nil {
		return err
	}
	for presRows.Next() {
		var p ChiefComplaintPresentation
		if err := presRows.Scan(&p.ID, &p.EncounterID, &p.CategoryID, &p.PresentationID, &p.Offset, &p.Trend); err != nil {
			presRows.Close()
			return err
		}
		if cc := lookups.chiefComplaints[p.EncounterID]; cc != nil {
			cc.Presentations = append(cc.Presentations, p)
		}
	}
	presRows.Close()
	return presRows.Err()
}

func scanEnc(row pgx.Row) (*Encounter, error) {
	var e Encounter
	err := row.Scan(&e.EncounterID, &e.EncounterToken, &e.CurrentStage, &e.Status, &e.CreatedAt, &e.PatientIdentityID)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func collectEncs(rows pgx.Rows) ([]*Encounter, error) {
	var encs []*Encounter
	for rows.Next() {
		var e Encounter
		if err := rows.Scan(&e.EncounterID, &e.EncounterToken, &e.CurrentStage, &e.Status, &e.CreatedAt, &e.PatientIdentityID); err != nil {
			return nil, err
		}
		encs = append(encs, &e)
	}
	return encs, rows.Err()
}
