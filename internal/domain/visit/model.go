package visit

import (
	"time"

	"github.com/google/uuid"

	"github.com/careorbit/clinic/pkg/derive"
)

type Status string

const (
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Active reports whether the visit still counts toward a doctor's load.
func (s Status) Active() bool {
	return s == StatusAssigned || s == StatusInProgress
}

const DefaultReason = "General consultation"

// Unknown stands in for a doctor or department a visit no longer resolves to.
const Unknown = "Unknown"

// Visit maps to the visit table. The clinical fields hold the prescription
// once one has been attached.
type Visit struct {
	ID                    uuid.UUID  `db:"id" json:"id"`
	PatientID             uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID              uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	DepartmentID          uuid.UUID  `db:"department_id" json:"department_id"`
	VisitDate             time.Time  `db:"visit_date" json:"visit_date"`
	ReasonForVisit        string     `db:"reason_for_visit" json:"reason_for_visit"`
	Status                Status     `db:"status" json:"status"`
	Symptoms              string     `db:"symptoms" json:"symptoms"`
	Diagnosis             string     `db:"diagnosis" json:"diagnosis"`
	Medications           string     `db:"medications" json:"medications"`
	Instructions          string     `db:"instructions" json:"instructions"`
	FollowUpDate          *time.Time `db:"follow_up_date" json:"follow_up_date,omitempty"`
	PrescriptionTimestamp *time.Time `db:"prescription_timestamp" json:"prescription_timestamp,omitempty"`
	LastModified          *time.Time `db:"last_modified" json:"last_modified,omitempty"`
	ModifiedBy            *uuid.UUID `db:"modified_by" json:"modified_by,omitempty"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
}

// Clinical snapshots the prescription fields of v.
func (v *Visit) Clinical() ClinicalData {
	return ClinicalData{
		Symptoms:     v.Symptoms,
		Diagnosis:    v.Diagnosis,
		Medications:  v.Medications,
		Instructions: v.Instructions,
		FollowUpDate: formatDate(v.FollowUpDate),
	}
}

// ClinicalData is the prescription payload. Audit entries store it as JSON,
// with the follow-up date as YYYY-MM-DD.
type ClinicalData struct {
	Symptoms     string  `json:"symptoms"`
	Diagnosis    string  `json:"diagnosis"`
	Medications  string  `json:"medications"`
	Instructions string  `json:"instructions"`
	FollowUpDate *string `json:"follow_up_date"`
}

// PrescriptionRecord is the denormalized copy kept one per visit.
type PrescriptionRecord struct {
	VisitID      uuid.UUID  `db:"visit_id" json:"visit_id"`
	PatientID    uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID     uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	Symptoms     string     `db:"symptoms" json:"symptoms"`
	Diagnosis    string     `db:"diagnosis" json:"diagnosis"`
	Medications  string     `db:"medications" json:"medications"`
	Instructions string     `db:"instructions" json:"instructions"`
	FollowUpDate *time.Time `db:"follow_up_date" json:"follow_up_date,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// AuditEntry records one prescription edit. Entries are never changed.
type AuditEntry struct {
	ID           uuid.UUID    `db:"id" json:"id"`
	VisitID      uuid.UUID    `db:"visit_id" json:"visit_id"`
	DoctorID     uuid.UUID    `db:"doctor_id" json:"doctor_id"`
	DoctorName   string       `db:"doctor_name" json:"doctor_name"`
	EditedAt     time.Time    `db:"edited_at" json:"edited_at"`
	OriginalData ClinicalData `db:"original_data" json:"original_data"`
	NewData      ClinicalData `db:"new_data" json:"new_data"`
}

// Summary is one row of a patient's visit history.
type Summary struct {
	VisitID        uuid.UUID  `db:"visit_id" json:"visit_id"`
	VisitDate      time.Time  `db:"visit_date" json:"visit_date"`
	DoctorName     string     `db:"doctor_name" json:"doctor_name"`
	DepartmentName string     `db:"department_name" json:"department_name"`
	ReasonForVisit string     `db:"reason_for_visit" json:"reason_for_visit"`
	Status         Status     `db:"status" json:"status"`
	Symptoms       string     `db:"symptoms" json:"symptoms"`
	Diagnosis      string     `db:"diagnosis" json:"diagnosis"`
	Medications    string     `db:"medications" json:"medications"`
	Instructions   string     `db:"instructions" json:"instructions"`
	FollowUpDate   *time.Time `db:"follow_up_date" json:"follow_up_date,omitempty"`
}

// WorklistItem is a visit on a doctor's daily list with the patient inlined.
type WorklistItem struct {
	VisitID        uuid.UUID  `db:"visit_id" json:"visit_id"`
	VisitDate      time.Time  `db:"visit_date" json:"visit_date"`
	ReasonForVisit string     `db:"reason_for_visit" json:"reason_for_visit"`
	Status         Status     `db:"status" json:"status"`
	Symptoms       string     `db:"symptoms" json:"symptoms"`
	Diagnosis      string     `db:"diagnosis" json:"diagnosis"`
	Medications    string     `db:"medications" json:"medications"`
	Instructions   string     `db:"instructions" json:"instructions"`
	FollowUpDate   *time.Time `db:"follow_up_date" json:"follow_up_date,omitempty"`
	PatientUUID    uuid.UUID  `db:"patient_uuid" json:"patient_uuid"`
	PatientID      string     `db:"patient_id" json:"patient_id"`
	PatientName    string     `db:"patient_name" json:"patient_name"`
	ContactNumber  string     `db:"contact_number" json:"contact_number"`
	Gender         string     `db:"gender" json:"gender"`
	Address        string     `db:"address" json:"address"`
	DateOfBirth    *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Allergies      string     `db:"allergies" json:"allergies"`
	ChronicIllness string     `db:"chronic_illness" json:"chronic_illness"`
	Age            int        `db:"-" json:"age"`
}

// Details is a visit with its patient, doctor and department resolved.
// Clinical fields fall back to the prescription record when the visit
// itself carries none.
type Details struct {
	Visit
	PatientCode    string     `db:"patient_code" json:"patient_code"`
	PatientName    string     `db:"patient_name" json:"patient_name"`
	PatientGender  string     `db:"patient_gender" json:"patient_gender"`
	PatientContact string     `db:"patient_contact" json:"patient_contact"`
	PatientDOB     *time.Time `db:"patient_dob" json:"-"`
	PatientAge     int        `db:"-" json:"patient_age"`
	Allergies      string     `db:"allergies" json:"allergies"`
	ChronicIllness string     `db:"chronic_illness" json:"chronic_illness"`
	DoctorName     string     `db:"doctor_name" json:"doctor_name"`
	DepartmentName string     `db:"department_name" json:"department_name"`
}

// Refs reports which references an assignment names actually exist.
type Refs struct {
	PatientExists      bool
	DoctorExists       bool
	DepartmentExists   bool
	DoctorDepartmentID uuid.UUID
}

type AssignInput struct {
	PatientID    uuid.UUID `json:"patient_id"`
	DoctorID     uuid.UUID `json:"doctor_id"`
	DepartmentID uuid.UUID `json:"department_id"`
	Reason       string    `json:"reason_for_visit"`
}

// PrescriptionInput carries prescription fields from a doctor. FollowUpDate
// is YYYY-MM-DD or empty.
type PrescriptionInput struct {
	Symptoms     string `json:"symptoms"`
	Diagnosis    string `json:"diagnosis"`
	Medications  string `json:"medications"`
	Instructions string `json:"instructions"`
	FollowUpDate string `json:"follow_up_date"`
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(derive.DateLayout)
	return &s
}
