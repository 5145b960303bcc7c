// Package legacy imports the clinic's earlier MongoDB database into the
// Postgres schema. Collections are read whole, normalized in memory and
// written in a single transaction.
package legacy

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Documents as the old application stored them. Several fields were written
// under two names over time; both are read and folded together.

type Department struct {
	ID             primitive.ObjectID `bson:"_id"`
	DepartmentName string             `bson:"department_name"`
	Name           string             `bson:"name"`
	Description    string             `bson:"description"`
	CreatedAt      *time.Time         `bson:"created_at"`
}

type Admin struct {
	ID          primitive.ObjectID `bson:"_id"`
	Username    string             `bson:"username"`
	Name        string             `bson:"name"`
	ContactInfo string             `bson:"contact_info"`
	IsActive    *bool              `bson:"is_active"`
	LastLogin   *time.Time         `bson:"last_login"`
	CreatedAt   *time.Time         `bson:"created_at"`
}

type Doctor struct {
	ID             primitive.ObjectID `bson:"_id"`
	Username       string             `bson:"username"`
	Name           string             `bson:"name"`
	DepartmentID   primitive.ObjectID `bson:"department_id"`
	Specialization string             `bson:"specialization"`
	RoomNo         string             `bson:"room_no"`
	ContactNumber  string             `bson:"contact_number"`
	Email          string             `bson:"email"`
	IsActive       *bool              `bson:"is_active"`
	LastLogin      *time.Time         `bson:"last_login"`
	CreatedAt      *time.Time         `bson:"created_at"`
}

type Patient struct {
	ID                primitive.ObjectID `bson:"_id"`
	PatientID         string             `bson:"patient_id"`
	Name              string             `bson:"name"`
	ContactNumber     string             `bson:"contact_number"`
	AadhaarNumber     string             `bson:"aadhaar_number"`
	DateOfBirth       *time.Time         `bson:"date_of_birth"`
	Gender            string             `bson:"gender"`
	Address           string             `bson:"address"`
	Allergies         string             `bson:"allergies"`
	ChronicIllness    string             `bson:"chronic_illness"`
	ChronicConditions string             `bson:"chronic_conditions"`
	CreatedAt         *time.Time         `bson:"created_at"`
	UpdatedAt         *time.Time         `bson:"updated_at"`
}

type Clinical struct {
	Symptoms     string     `bson:"symptoms"`
	Diagnosis    string     `bson:"diagnosis"`
	Medications  string     `bson:"medications"`
	Instructions string     `bson:"instructions"`
	FollowUpDate *time.Time `bson:"follow_up_date"`
}

type Visit struct {
	ID                    primitive.ObjectID  `bson:"_id"`
	PatientID             primitive.ObjectID  `bson:"patient_id"`
	DoctorID              primitive.ObjectID  `bson:"doctor_id"`
	DepartmentID          primitive.ObjectID  `bson:"department_id"`
	VisitDate             *time.Time          `bson:"visit_date"`
	VisitDateTime         *time.Time          `bson:"visit_date_time"`
	ReasonForVisit        string              `bson:"reason_for_visit"`
	Status                string              `bson:"status"`
	Clinical              `bson:",inline"`
	PrescriptionTimestamp *time.Time          `bson:"prescription_timestamp"`
	LastModified          *time.Time          `bson:"last_modified"`
	ModifiedBy            *primitive.ObjectID `bson:"modified_by"`
	CreatedAt             *time.Time          `bson:"created_at"`
}

type Prescription struct {
	ID        primitive.ObjectID `bson:"_id"`
	VisitID   primitive.ObjectID `bson:"visit_id"`
	Clinical  `bson:",inline"`
	CreatedAt *time.Time         `bson:"created_at"`
	UpdatedAt *time.Time         `bson:"updated_at"`
}

type AuditRecord struct {
	ID           primitive.ObjectID `bson:"_id"`
	VisitID      primitive.ObjectID `bson:"visit_id"`
	DoctorID     primitive.ObjectID `bson:"doctor_id"`
	EditedAt     *time.Time         `bson:"edited_at"`
	OriginalData Clinical           `bson:"original_data"`
	NewData      Clinical           `bson:"new_data"`
}

// Snapshot is the full legacy database held in memory.
type Snapshot struct {
	Departments   []Department
	Admins        []Admin
	Doctors       []Doctor
	Patients      []Patient
	Visits        []Visit
	Prescriptions []Prescription
	Audit         []AuditRecord
}
