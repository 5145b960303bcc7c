package db

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
)

// IssueKind classifies an integrity finding.
type IssueKind string

const (
	IssueOrphanVisitPatient    IssueKind = "visit_missing_patient"
	IssueOrphanVisitDoctor     IssueKind = "visit_missing_doctor"
	IssueOrphanVisitDepartment IssueKind = "visit_missing_department"
	IssueOrphanDoctor          IssueKind = "doctor_missing_department"
	IssueDuplicatePatient      IssueKind = "duplicate_patient"
	IssueOrphanPrescription    IssueKind = "prescription_missing_visit"
)

type Issue struct {
	Kind     IssueKind `json:"kind"`
	RecordID string    `json:"record_id"`
	Detail   string    `json:"detail"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s %s: %s", i.Kind, i.RecordID, i.Detail)
}

// IntegrityChecker finds references the schema deliberately leaves unenforced.
type IntegrityChecker struct {
	db Querier
}

func NewIntegrityChecker(db Querier) *IntegrityChecker {
	return &IntegrityChecker{db: db}
}

type orphanRow struct {
	ID  uuid.UUID `db:"id"`
	Ref uuid.UUID `db:"ref"`
}

var orphanChecks = []struct {
	kind  IssueKind
	label string
	query string
}{
	{IssueOrphanVisitPatient, "patient_id", `
		SELECT v.id, v.patient_id AS ref FROM visit v
		WHERE NOT EXISTS (SELECT 1 FROM patient p WHERE p.id = v.patient_id)
		ORDER BY v.visit_date`},
	{IssueOrphanVisitDoctor, "doctor_id", `
		SELECT v.id, v.doctor_id AS ref FROM visit v
		WHERE NOT EXISTS (SELECT 1 FROM doctor d WHERE d.id = v.doctor_id)
		ORDER BY v.visit_date`},
	{IssueOrphanVisitDepartment, "department_id", `
		SELECT v.id, v.department_id AS ref FROM visit v
		WHERE NOT EXISTS (SELECT 1 FROM department d WHERE d.id = v.department_id)
		ORDER BY v.visit_date`},
	{IssueOrphanDoctor, "department_id", `
		SELECT d.id, d.department_id AS ref FROM doctor d
		WHERE NOT EXISTS (SELECT 1 FROM department dp WHERE dp.id = d.department_id)
		ORDER BY d.name`},
	{IssueOrphanPrescription, "visit_id", `
		SELECT p.visit_id AS id, p.visit_id AS ref FROM prescription p
		WHERE NOT EXISTS (SELECT 1 FROM visit v WHERE v.id = p.visit_id)`},
}

type duplicateRow struct {
	ContactNumber string   `db:"contact_number"`
	Name          string   `db:"name"`
	Aadhaar       *string  `db:"aadhaar_number"`
	PatientIDs    []string `db:"patient_ids"`
}

const duplicatePatientsSQL = `
	SELECT contact_number, name, aadhaar_number, array_agg(patient_id ORDER BY patient_id) AS patient_ids
	FROM patient
	GROUP BY contact_number, name, aadhaar_number
	HAVING COUNT(*) > 1
	ORDER BY name`

// Check runs every integrity query and returns all findings. An empty slice
// means the check passed; a store failure is returned as an error rather
// than as a finding.
func (c *IntegrityChecker) Check(ctx context.Context) ([]Issue, error) {
	issues := make([]Issue, 0)

	for _, chk := range orphanChecks {
		var rows []orphanRow
		if err := pgxscan.Select(ctx, c.db, &rows, chk.query); err != nil {
			return nil, MapError(fmt.Errorf("integrity %s: %w", chk.kind, err))
		}
		for _, r := range rows {
			issues = append(issues, Issue{
				Kind:     chk.kind,
				RecordID: r.ID.String(),
				Detail:   fmt.Sprintf("%s %s does not exist", chk.label, r.Ref),
			})
		}
	}

	var dups []duplicateRow
	if err := pgxscan.Select(ctx, c.db, &dups, duplicatePatientsSQL); err != nil {
		return nil, MapError(fmt.Errorf("integrity duplicates: %w", err))
	}
	for _, d := range dups {
		aadhaar := "none"
		if d.Aadhaar != nil {
			aadhaar = *d.Aadhaar
		}
		issues = append(issues, Issue{
			Kind:     IssueDuplicatePatient,
			RecordID: d.PatientIDs[0],
			Detail:   fmt.Sprintf("name=%q contact=%s aadhaar=%s shared by %v", d.Name, d.ContactNumber, aadhaar, d.PatientIDs),
		})
	}
	return issues, nil
}
