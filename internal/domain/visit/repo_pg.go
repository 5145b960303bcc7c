package visit

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	"github.com/careorbit/clinic/internal/domain"
	"github.com/careorbit/clinic/internal/platform/db"
)

type repoPG struct {
	db db.Querier
}

func NewRepo(q db.Querier) Repository {
	return &repoPG{db: q}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.db)
}

const visitCols = `id, patient_id, doctor_id, department_id, visit_date, reason_for_visit, status,
	symptoms, diagnosis, medications, instructions, follow_up_date,
	prescription_timestamp, last_modified, modified_by, created_at`

func (r *repoPG) Create(ctx context.Context, v *Visit) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO visit (id, patient_id, doctor_id, department_id, visit_date, reason_for_visit, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		v.ID, v.PatientID, v.DoctorID, v.DepartmentID, v.VisitDate, v.ReasonForVisit, v.Status, v.CreatedAt,
	)
	if err != nil {
		return db.MapError(fmt.Errorf("create visit: %w", err))
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Visit, error) {
	return r.get(ctx, `SELECT `+visitCols+` FROM visit WHERE id = $1`, id)
}

func (r *repoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Visit, error) {
	return r.get(ctx, `SELECT `+visitCols+` FROM visit WHERE id = $1 FOR UPDATE`, id)
}

func (r *repoPG) get(ctx context.Context, query string, id uuid.UUID) (*Visit, error) {
	var v Visit
	if err := pgxscan.Get(ctx, r.conn(ctx), &v, query, id); err != nil {
		if pgxscan.NotFound(err) {
			return nil, fmt.Errorf("%w: visit %s", domain.ErrNotFound, id)
		}
		return nil, db.MapError(fmt.Errorf("get visit %s: %w", id, err))
	}
	return &v, nil
}

// Visit fields win over the prescription record; the record only fills
// fields the visit left empty.
const detailsSQL = `
	SELECT v.id, v.patient_id, v.doctor_id, v.department_id, v.visit_date, v.reason_for_visit, v.status,
		COALESCE(NULLIF(v.symptoms, ''), pr.symptoms, '') AS symptoms,
		COALESCE(NULLIF(v.diagnosis, ''), pr.diagnosis, '') AS diagnosis,
		COALESCE(NULLIF(v.medications, ''), pr.medications, '') AS medications,
		COALESCE(NULLIF(v.instructions, ''), pr.instructions, '') AS instructions,
		COALESCE(v.follow_up_date, pr.follow_up_date) AS follow_up_date,
		v.prescription_timestamp, v.last_modified, v.modified_by, v.created_at,
		COALESCE(p.patient_id, 'Unknown') AS patient_code,
		COALESCE(p.name, 'Unknown') AS patient_name,
		COALESCE(p.gender, 'Unknown') AS patient_gender,
		COALESCE(p.contact_number, 'Unknown') AS patient_contact,
		p.date_of_birth AS patient_dob,
		COALESCE(p.allergies, 'None') AS allergies,
		COALESCE(p.chronic_illness, 'None') AS chronic_illness,
		COALESCE(d.name, 'Unknown') AS doctor_name,
		COALESCE(dp.department_name, 'Unknown') AS department_name
	FROM visit v
	LEFT JOIN patient p ON p.id = v.patient_id
	LEFT JOIN doctor d ON d.id = v.doctor_id
	LEFT JOIN department dp ON dp.id = v.department_id
	LEFT JOIN prescription pr ON pr.visit_id = v.id
	WHERE v.id = $1`

func (r *repoPG) GetDetails(ctx context.Context, id uuid.UUID) (*Details, error) {
	var d Details
	if err := pgxscan.Get(ctx, r.conn(ctx), &d, detailsSQL, id); err != nil {
		if pgxscan.NotFound(err) {
			return nil, fmt.Errorf("%w: visit %s", domain.ErrNotFound, id)
		}
		return nil, db.MapError(fmt.Errorf("get visit details %s: %w", id, err))
	}
	return &d, nil
}

func (r *repoPG) References(ctx context.Context, patientID, doctorID, departmentID uuid.UUID) (Refs, error) {
	var refs Refs
	var doctorDept *uuid.UUID
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT
			EXISTS (SELECT 1 FROM patient WHERE id = $1),
			EXISTS (SELECT 1 FROM doctor WHERE id = $2 AND active),
			EXISTS (SELECT 1 FROM department WHERE id = $3),
			(SELECT department_id FROM doctor WHERE id = $2)`,
		patientID, doctorID, departmentID,
	).Scan(&refs.PatientExists, &refs.DoctorExists, &refs.DepartmentExists, &doctorDept)
	if err != nil {
		return Refs{}, db.MapError(fmt.Errorf("check visit references: %w", err))
	}
	if doctorDept != nil {
		refs.DoctorDepartmentID = *doctorDept
	}
	return refs, nil
}

const worklistSQL = `
	SELECT v.id AS visit_id, v.visit_date, v.reason_for_visit, v.status,
		v.symptoms, v.diagnosis, v.medications, v.instructions, v.follow_up_date,
		p.id AS patient_uuid, p.patient_id, p.name AS patient_name, p.contact_number,
		p.gender, p.address, p.date_of_birth, p.allergies, p.chronic_illness
	FROM visit v
	JOIN patient p ON p.id = v.patient_id
	WHERE v.doctor_id = $1 AND v.visit_date >= $2 AND v.visit_date < $3`

func (r *repoPG) ListForDoctor(ctx context.Context, doctorID uuid.UUID, start, end time.Time, activeOnly bool) ([]*WorklistItem, error) {
	query := worklistSQL
	if activeOnly {
		query += ` AND v.status IN ('assigned', 'in_progress')`
	}
	query += ` ORDER BY v.visit_date ASC`

	items := make([]*WorklistItem, 0)
	if err := pgxscan.Select(ctx, r.conn(ctx), &items, query, doctorID, start, end); err != nil {
		return nil, db.MapError(fmt.Errorf("list visits for doctor %s: %w", doctorID, err))
	}
	return items, nil
}

func (r *repoPG) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*Summary, error) {
	items := make([]*Summary, 0)
	err := pgxscan.Select(ctx, r.conn(ctx), &items, `
		SELECT v.id AS visit_id, v.visit_date,
			COALESCE(d.name, 'Unknown') AS doctor_name,
			COALESCE(dp.department_name, 'Unknown') AS department_name,
			v.reason_for_visit, v.status, v.symptoms, v.diagnosis, v.medications,
			v.instructions, v.follow_up_date
		FROM visit v
		LEFT JOIN doctor d ON d.id = v.doctor_id
		LEFT JOIN department dp ON dp.id = v.department_id
		WHERE v.patient_id = $1
		ORDER BY v.visit_date DESC`, patientID)
	if err != nil {
		return nil, db.MapError(fmt.Errorf("visit history for patient %s: %w", patientID, err))
	}
	return items, nil
}

func (r *repoPG) TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE visit SET status = $3 WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return false, db.MapError(fmt.Errorf("transition visit %s: %w", id, err))
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) Complete(ctx context.Context, rx *PrescriptionRecord, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE visit SET symptoms = $2, diagnosis = $3, medications = $4, instructions = $5,
			follow_up_date = $6, status = 'completed', prescription_timestamp = $7
		WHERE id = $1`,
		rx.VisitID, rx.Symptoms, rx.Diagnosis, rx.Medications, rx.Instructions, rx.FollowUpDate, at,
	)
	if err != nil {
		return db.MapError(fmt.Errorf("attach prescription to visit %s: %w", rx.VisitID, err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: visit %s", domain.ErrNotFound, rx.VisitID)
	}
	return nil
}

func (r *repoPG) Revise(ctx context.Context, rx *PrescriptionRecord, editor uuid.UUID, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE visit SET symptoms = $2, diagnosis = $3, medications = $4, instructions = $5,
			follow_up_date = COALESCE($6, follow_up_date), last_modified = $7, modified_by = $8
		WHERE id = $1`,
		rx.VisitID, rx.Symptoms, rx.Diagnosis, rx.Medications, rx.Instructions, rx.FollowUpDate, at, editor,
	)
	if err != nil {
		return db.MapError(fmt.Errorf("revise prescription on visit %s: %w", rx.VisitID, err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: visit %s", domain.ErrNotFound, rx.VisitID)
	}
	return nil
}

func (r *repoPG) UpsertPrescription(ctx context.Context, rx *PrescriptionRecord, at time.Time) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO prescription (visit_id, patient_id, doctor_id, symptoms, diagnosis, medications,
			instructions, follow_up_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (visit_id) DO UPDATE SET
			doctor_id = EXCLUDED.doctor_id,
			symptoms = EXCLUDED.symptoms,
			diagnosis = EXCLUDED.diagnosis,
			medications = EXCLUDED.medications,
			instructions = EXCLUDED.instructions,
			follow_up_date = EXCLUDED.follow_up_date,
			updated_at = EXCLUDED.created_at`,
		rx.VisitID, rx.PatientID, rx.DoctorID, rx.Symptoms, rx.Diagnosis, rx.Medications,
		rx.Instructions, rx.FollowUpDate, at,
	)
	if err != nil {
		return db.MapError(fmt.Errorf("upsert prescription for visit %s: %w", rx.VisitID, err))
	}
	return nil
}

func (r *repoPG) GetPrescription(ctx context.Context, visitID uuid.UUID) (*PrescriptionRecord, error) {
	var rx PrescriptionRecord
	err := pgxscan.Get(ctx, r.conn(ctx), &rx, `
		SELECT visit_id, patient_id, doctor_id, symptoms, diagnosis, medications, instructions,
			follow_up_date, created_at, updated_at
		FROM prescription WHERE visit_id = $1`, visitID)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, fmt.Errorf("%w: prescription for visit %s", domain.ErrNotFound, visitID)
		}
		return nil, db.MapError(fmt.Errorf("get prescription %s: %w", visitID, err))
	}
	return &rx, nil
}

func (r *repoPG) AppendAudit(ctx context.Context, e *AuditEntry) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO prescription_audit (id, visit_id, doctor_id, edited_at, original_data, new_data)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.VisitID, e.DoctorID, e.EditedAt, e.OriginalData, e.NewData,
	)
	if err != nil {
		return db.MapError(fmt.Errorf("append audit for visit %s: %w", e.VisitID, err))
	}
	return nil
}

func (r *repoPG) ListAudit(ctx context.Context, visitID uuid.UUID) ([]*AuditEntry, error) {
	entries := make([]*AuditEntry, 0)
	err := pgxscan.Select(ctx, r.conn(ctx), &entries, `
		SELECT a.id, a.visit_id, a.doctor_id, COALESCE(d.name, 'Unknown') AS doctor_name,
			a.edited_at, a.original_data, a.new_data
		FROM prescription_audit a
		LEFT JOIN doctor d ON d.id = a.doctor_id
		WHERE a.visit_id = $1
		ORDER BY a.edited_at DESC`, visitID)
	if err != nil {
		return nil, db.MapError(fmt.Errorf("list audit for visit %s: %w", visitID, err))
	}
	return entries, nil
}
