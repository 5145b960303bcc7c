package legacy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/careorbit/clinic/internal/domain/visit"
)

var now = time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

type legacyFixture struct {
	snap              *Snapshot
	ent, cardio       primitive.ObjectID
	smith, johnson    primitive.ObjectID
	doe, smithPatient primitive.ObjectID
}

func newLegacyFixture() *legacyFixture {
	f := &legacyFixture{
		ent: primitive.NewObjectID(), cardio: primitive.NewObjectID(),
		smith: primitive.NewObjectID(), johnson: primitive.NewObjectID(),
		doe: primitive.NewObjectID(), smithPatient: primitive.NewObjectID(),
	}
	f.snap = &Snapshot{
		Departments: []Department{
			{ID: f.ent, DepartmentName: "ENT"},
			{ID: f.cardio, Name: "Cardiology"},
		},
		Admins: []Admin{{ID: primitive.NewObjectID(), Username: "admin1", Name: "System Administrator"}},
		Doctors: []Doctor{
			{ID: f.smith, Username: "dr_smith", Name: "Dr. John Smith", DepartmentID: f.ent, RoomNo: "R101"},
			{ID: f.johnson, Username: "dr_johnson", Name: "Dr. Sarah Johnson", DepartmentID: f.cardio, IsActive: ptr(false)},
		},
		Patients: []Patient{
			{ID: f.doe, PatientID: "P001", Name: "John Doe", ContactNumber: "9876543210",
				AadhaarNumber: "1234-5678-9012", DateOfBirth: ptr(time.Date(1985, 5, 15, 10, 30, 0, 0, time.UTC)), Gender: "Male"},
			{ID: f.smithPatient, PatientID: "P002", Name: "Jane Smith", ContactNumber: "9876543211",
				Gender: "Female", Allergies: "Penicillin", ChronicConditions: "Hypertension"},
		},
	}
	return f
}

func TestConvert_FoldsLegacyFieldNames(t *testing.T) {
	f := newLegacyFixture()
	visitID := primitive.NewObjectID()
	f.snap.Visits = []Visit{{
		ID: visitID, PatientID: f.doe, DoctorID: f.smith, DepartmentID: f.ent,
		VisitDateTime: ptr(now.AddDate(0, 0, -5)), Status: "in-progress",
	}}

	plan, report := Convert(f.snap, Options{PasswordHash: "hash", Now: now})
	require.Empty(t, report.Skipped)

	assert.Equal(t, "Cardiology", plan.Departments[1].DepartmentName)
	assert.Equal(t, "Hypertension", plan.Patients[1].ChronicIllness)
	assert.Equal(t, "None", plan.Patients[0].Allergies)
	assert.Nil(t, plan.Patients[1].AadhaarNumber)
	assert.Equal(t, "P001", plan.Patients[0].PatientID)
	assert.Equal(t, time.Date(1985, 5, 15, 0, 0, 0, 0, time.UTC), *plan.Patients[0].DateOfBirth)

	v := plan.Visits[0]
	assert.Equal(t, now.AddDate(0, 0, -5), v.VisitDate)
	assert.Equal(t, visit.StatusInProgress, v.Status)
	assert.Equal(t, visit.DefaultReason, v.ReasonForVisit)
	assert.Equal(t, IDFor(CollVisit, visitID), v.ID)
	assert.Equal(t, plan.Doctors[0].DepartmentID, v.DepartmentID)
}

func TestConvert_AccountsGetReplacementHashAndActiveDefault(t *testing.T) {
	f := newLegacyFixture()
	plan, _ := Convert(f.snap, Options{PasswordHash: "$2a$10$temp", Now: now})

	require.Len(t, plan.Doctors, 2)
	assert.Equal(t, "$2a$10$temp", plan.Doctors[0].PasswordHash)
	assert.Equal(t, "$2a$10$temp", plan.Admins[0].PasswordHash)
	assert.True(t, plan.Doctors[0].Active)
	assert.False(t, plan.Doctors[1].Active)
	assert.Equal(t, now, plan.Admins[0].CreatedAt)
}

func TestConvert_SkipsInvariantViolations(t *testing.T) {
	f := newLegacyFixture()
	orphanDept := primitive.NewObjectID()
	f.snap.Doctors = append(f.snap.Doctors, Doctor{ID: primitive.NewObjectID(), Username: "dr_lost", DepartmentID: orphanDept})
	f.snap.Patients = append(f.snap.Patients,
		Patient{ID: primitive.NewObjectID(), PatientID: "P001", Name: "Copy", ContactNumber: "1"},
		Patient{ID: primitive.NewObjectID(), PatientID: "P003", Name: "John Doe", ContactNumber: "9876543210", AadhaarNumber: "1234-5678-9012"},
		Patient{ID: primitive.NewObjectID(), PatientID: "XYZ", Name: "Bad", ContactNumber: "2"},
		Patient{ID: primitive.NewObjectID(), PatientID: "P004", Name: "", ContactNumber: "3"},
	)
	f.snap.Visits = []Visit{
		{ID: primitive.NewObjectID(), PatientID: primitive.NewObjectID(), DoctorID: f.smith, DepartmentID: f.ent},
		{ID: primitive.NewObjectID(), PatientID: f.doe, DoctorID: f.smith, DepartmentID: f.cardio},
		{ID: primitive.NewObjectID(), PatientID: f.doe, DoctorID: f.smith, DepartmentID: f.ent, Status: "cancelled"},
	}
	f.snap.Audit = []AuditRecord{{ID: primitive.NewObjectID(), VisitID: primitive.NewObjectID()}}

	plan, report := Convert(f.snap, Options{Now: now})

	assert.Len(t, plan.Doctors, 2)
	assert.Len(t, plan.Patients, 2)
	assert.Empty(t, plan.Visits)
	assert.Empty(t, plan.Audit)
	assert.Len(t, report.Skipped, 9)
	assert.Equal(t, 2, report.Imported[CollPatient])

	reasons := map[string]int{}
	for _, s := range report.Skipped {
		reasons[s.Collection]++
	}
	assert.Equal(t, map[string]int{CollDoctor: 1, CollPatient: 4, CollVisit: 3, CollAudit: 1}, reasons)
}

func TestConvert_PrescriptionAndAudit(t *testing.T) {
	f := newLegacyFixture()
	visitID := primitive.NewObjectID()
	f.snap.Visits = []Visit{{
		ID: visitID, PatientID: f.doe, DoctorID: f.smith, DepartmentID: f.ent, VisitDate: ptr(now),
		Status: "completed", Clinical: Clinical{Diagnosis: "Otitis"},
	}}
	f.snap.Prescriptions = []Prescription{
		{ID: primitive.NewObjectID(), VisitID: visitID, Clinical: Clinical{Diagnosis: "first"}},
		{ID: primitive.NewObjectID(), VisitID: visitID, Clinical: Clinical{Diagnosis: "second",
			FollowUpDate: ptr(time.Date(2024, 6, 17, 18, 0, 0, 0, time.UTC))}},
	}
	f.snap.Audit = []AuditRecord{{
		ID: primitive.NewObjectID(), VisitID: visitID, DoctorID: primitive.NewObjectID(),
		OriginalData: Clinical{Diagnosis: "first", FollowUpDate: ptr(time.Date(2024, 6, 17, 0, 0, 0, 0, time.UTC))},
		NewData:      Clinical{Diagnosis: "second"},
	}}

	plan, report := Convert(f.snap, Options{Now: now})
	require.Empty(t, report.Skipped)

	require.Len(t, plan.Prescriptions, 1)
	assert.Equal(t, "second", plan.Prescriptions[0].Diagnosis)
	assert.Equal(t, time.Date(2024, 6, 17, 0, 0, 0, 0, time.UTC), *plan.Prescriptions[0].FollowUpDate)

	require.Len(t, plan.Audit, 1)
	e := plan.Audit[0]
	assert.Equal(t, plan.Visits[0].DoctorID, e.DoctorID, "unknown editor falls back to the visit's doctor")
	assert.Equal(t, "2024-06-17", *e.OriginalData.FollowUpDate)
	assert.Nil(t, e.NewData.FollowUpDate)
	assert.Equal(t, now, e.EditedAt)
}

func TestIDFor_Deterministic(t *testing.T) {
	oid := primitive.NewObjectID()
	assert.Equal(t, IDFor(CollPatient, oid), IDFor(CollPatient, oid))
	assert.NotEqual(t, IDFor(CollPatient, oid), IDFor(CollVisit, oid))
}
