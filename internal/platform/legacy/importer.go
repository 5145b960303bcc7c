package legacy

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/careorbit/clinic/internal/platform/db"
)

// Copier bulk-loads rows. *pgxpool.Pool and pgx.Tx both satisfy it.
type Copier interface {
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, rows pgx.CopyFromSource) (int64, error)
}

// Writer loads a Plan with COPY inside one transaction, so a failed import
// leaves the target untouched. Loading into a database that already holds
// the same rows fails with a duplicate error.
type Writer struct {
	tx     db.TxRunner
	pool   Copier
	logger zerolog.Logger
}

func NewWriter(tx db.TxRunner, pool Copier, logger zerolog.Logger) *Writer {
	return &Writer{tx: tx, pool: pool, logger: logger}
}

func (w *Writer) copier(ctx context.Context) Copier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return w.pool
}

type table struct {
	name    string
	columns []string
	rows    [][]any
}

func tables(p *Plan) []table {
	ts := []table{
		{name: "department", columns: []string{"id", "department_name", "description", "created_at"}},
		{name: "admin", columns: []string{"id", "username", "password_hash", "name", "email", "active", "last_login", "created_at"}},
		{name: "doctor", columns: []string{"id", "username", "password_hash", "name", "department_id", "specialization",
			"room_no", "email", "phone", "active", "last_login", "created_at"}},
		{name: "patient", columns: []string{"id", "patient_id", "name", "contact_number", "date_of_birth", "gender",
			"address", "allergies", "chronic_illness", "aadhaar_number", "created_at", "updated_at"}},
		{name: "visit", columns: []string{"id", "patient_id", "doctor_id", "department_id", "visit_date", "reason_for_visit",
			"status", "symptoms", "diagnosis", "medications", "instructions", "follow_up_date",
			"prescription_timestamp", "last_modified", "modified_by", "created_at"}},
		{name: "prescription", columns: []string{"visit_id", "patient_id", "doctor_id", "symptoms", "diagnosis",
			"medications", "instructions", "follow_up_date", "created_at", "updated_at"}},
		{name: "prescription_audit", columns: []string{"id", "visit_id", "doctor_id", "edited_at", "original_data", "new_data"}},
	}
	for _, d := range p.Departments {
		ts[0].rows = append(ts[0].rows, []any{d.ID, d.DepartmentName, d.Description, d.CreatedAt})
	}
	for _, a := range p.Admins {
		ts[1].rows = append(ts[1].rows, []any{a.ID, a.Username, a.PasswordHash, a.Name, a.Email, a.Active, a.LastLogin, a.CreatedAt})
	}
	for _, d := range p.Doctors {
		ts[2].rows = append(ts[2].rows, []any{d.ID, d.Username, d.PasswordHash, d.Name, d.DepartmentID, d.Specialization,
			d.RoomNo, d.Email, d.Phone, d.Active, d.LastLogin, d.CreatedAt})
	}
	for _, pt := range p.Patients {
		ts[3].rows = append(ts[3].rows, []any{pt.ID, pt.PatientID, pt.Name, pt.ContactNumber, pt.DateOfBirth, pt.Gender,
			pt.Address, pt.Allergies, pt.ChronicIllness, pt.AadhaarNumber, pt.CreatedAt, pt.UpdatedAt})
	}
	for _, v := range p.Visits {
		ts[4].rows = append(ts[4].rows, []any{v.ID, v.PatientID, v.DoctorID, v.DepartmentID, v.VisitDate, v.ReasonForVisit,
			string(v.Status), v.Symptoms, v.Diagnosis, v.Medications, v.Instructions, v.FollowUpDate,
			v.PrescriptionTimestamp, v.LastModified, v.ModifiedBy, v.CreatedAt})
	}
	for _, rx := range p.Prescriptions {
		ts[5].rows = append(ts[5].rows, []any{rx.VisitID, rx.PatientID, rx.DoctorID, rx.Symptoms, rx.Diagnosis,
			rx.Medications, rx.Instructions, rx.FollowUpDate, rx.CreatedAt, rx.UpdatedAt})
	}
	for _, e := range p.Audit {
		ts[6].rows = append(ts[6].rows, []any{e.ID, e.VisitID, e.DoctorID, e.EditedAt, e.OriginalData, e.NewData})
	}
	return ts
}

// Apply writes the plan. Empty tables are skipped.
func (w *Writer) Apply(ctx context.Context, p *Plan) error {
	return w.tx.RunInTx(ctx, func(ctx context.Context) error {
		cp := w.copier(ctx)
		for _, t := range tables(p) {
			if len(t.rows) == 0 {
				continue
			}
			n, err := cp.CopyFrom(ctx, pgx.Identifier{t.name}, t.columns, pgx.CopyFromRows(t.rows))
			if err != nil {
				return db.MapError(fmt.Errorf("copy %s: %w", t.name, err))
			}
			w.logger.Info().Str("table", t.name).Int64("rows", n).Msg("imported")
		}
		return nil
	})
}
